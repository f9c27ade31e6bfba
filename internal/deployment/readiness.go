package deployment

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/util"
)

// ReadinessProbe checks, through the executor, whether a service is actually
// ready to take requests, not merely RUNNING. Probes are issued from the
// login node because compute nodes are typically unreachable from outside the
// cluster.
type ReadinessProbe func(m *Manager, hostname string, port int, expectedModel string) bool

var readinessProbes = map[string]ReadinessProbe{}

// RegisterReadinessProbe installs or replaces the probe for a service type.
// Unregistered types fall back to a generic TCP check.
func RegisterReadinessProbe(serviceType string, probe ReadinessProbe) {
	readinessProbes[serviceType] = probe
}

func init() {
	RegisterReadinessProbe("ollama", probeOllama)
	RegisterReadinessProbe("vllm", probeVllm)
	RegisterReadinessProbe("redis", tcpProbe(6379))
	RegisterReadinessProbe("postgres", tcpProbe(5432))
	RegisterReadinessProbe("chroma", tcpProbe(8000))
}

// WaitForReady polls the service-type probe until it succeeds or maxWait
// elapses, backing off between attempts. Like the other waits, a timeout
// leaves the job untouched.
func (m *Manager) WaitForReady(serviceType, hostname string, port int, expectedModel string, maxWait time.Duration) bool {
	if hostname == "" {
		return false
	}
	probe, ok := readinessProbes[serviceType]
	if !ok {
		probe = genericProbe
	}
	deadline := m.clock.Now().Add(maxWait)
	for attempt := 0; ; attempt++ {
		if probe(m, hostname, port, expectedModel) {
			return true
		}
		if !m.clock.Now().Before(deadline) {
			m.log.Warnf("service %s:%d (%s) not ready within %s", hostname, port, serviceType, maxWait)
			return false
		}
		time.Sleep(util.ExponentialDelay(attempt, m.config.EndpointBackoffBase, m.config.EndpointBackoffCap))
	}
}

func probeOllama(m *Manager, hostname string, port int, expectedModel string) bool {
	if port == 0 {
		port = 11434
	}
	result, err := m.execute(fmt.Sprintf("curl -s --max-time 5 http://%s:%d/api/tags", hostname, port))
	if err != nil || !result.Success() {
		return false
	}
	if expectedModel != "" {
		return strings.Contains(result.Stdout, expectedModel)
	}
	return strings.Contains(result.Stdout, "models")
}

func probeVllm(m *Manager, hostname string, port int, expectedModel string) bool {
	if port == 0 {
		port = 8000
	}
	result, err := m.execute(fmt.Sprintf(
		"curl -s --max-time 5 -o /dev/null -w '%%{http_code}' http://%s:%d/health", hostname, port))
	if err == nil && result.Success() && strings.TrimSpace(result.Stdout) == "200" {
		return true
	}
	result, err = m.execute(fmt.Sprintf("curl -s --max-time 5 http://%s:%d/v1/models", hostname, port))
	return err == nil && result.Success() && strings.Contains(result.Stdout, "data")
}

func tcpProbe(defaultPort int) ReadinessProbe {
	return func(m *Manager, hostname string, port int, _ string) bool {
		if port == 0 {
			port = defaultPort
		}
		return tcpCheck(m, hostname, port)
	}
}

func genericProbe(m *Manager, hostname string, port int, _ string) bool {
	if port == 0 {
		// Nothing to probe; hostname resolution already succeeded.
		return true
	}
	return tcpCheck(m, hostname, port)
}

func tcpCheck(m *Manager, hostname string, port int) bool {
	result, err := m.execute(fmt.Sprintf(
		"timeout 3 bash -c 'cat < /dev/null > /dev/tcp/%s/%d' 2>/dev/null && echo OK", hostname, port))
	return err == nil && result.Success() && strings.Contains(result.Stdout, "OK")
}
