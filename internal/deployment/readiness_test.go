package deployment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitForReadyTcpProbe(t *testing.T) {
	executor := newFakeExecutor()
	executor.tcpReady = true
	m, _ := newTestManager(t, executor)
	assert.True(t, m.WaitForReady("redis", "node-1", 0, "", 50*time.Millisecond))
}

func TestWaitForReadyTimesOut(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	assert.False(t, m.WaitForReady("redis", "node-1", 0, "", 10*time.Millisecond))
}

func TestWaitForReadyRequiresHostname(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	assert.False(t, m.WaitForReady("redis", "", 6379, "", time.Second))
}

func TestWaitForReadyOllamaChecksModel(t *testing.T) {
	executor := newFakeExecutor()
	executor.curlResponses = map[string]string{
		"/api/tags": `{"models":[{"name":"llama3:8b"}]}`,
	}
	m, _ := newTestManager(t, executor)
	assert.True(t, m.WaitForReady("ollama", "node-1", 0, "llama3:8b", 50*time.Millisecond))
	assert.False(t, m.WaitForReady("ollama", "node-1", 0, "mistral", 10*time.Millisecond))
}

func TestWaitForReadyVllmHealthEndpoint(t *testing.T) {
	executor := newFakeExecutor()
	executor.curlResponses = map[string]string{"/health": "200"}
	m, _ := newTestManager(t, executor)
	assert.True(t, m.WaitForReady("vllm", "node-1", 8000, "", 50*time.Millisecond))
}

func TestWaitForReadyGenericWithoutPort(t *testing.T) {
	m, _ := newTestManager(t, newFakeExecutor())
	assert.True(t, m.WaitForReady("customsvc", "node-1", 0, "", 50*time.Millisecond))
}
