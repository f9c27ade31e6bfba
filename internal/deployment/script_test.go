package deployment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderServiceScript(t *testing.T) {
	renderer := &SlurmRenderer{}
	script, err := renderer.RenderService(ServiceSpec{
		Name:           "vllm-svc",
		ContainerImage: "vllm/vllm-openai:latest",
		Command:        "python -m vllm.entrypoints.openai.api_server",
		Gpus:           2,
		EnvVars:        map[string]string{"HF_HOME": "/scratch/hf"},
		Modules:        []string{"CUDA"},
	}.withDefaults(), RenderContext{
		CampaignID: "c1",
		WorkingDir: "/home/u1/benchmark_c1",
	})
	require.NoError(t, err)

	assert.Contains(t, script, "#SBATCH --job-name=vllm-svc")
	assert.Contains(t, script, "#SBATCH --gpus=2")
	assert.Contains(t, script, "#SBATCH --partition=gpu")
	assert.Contains(t, script, "module load CUDA")
	assert.Contains(t, script, "export HF_HOME='/scratch/hf'")
	assert.Contains(t, script, "--nv")
	// Discovery markers must be written before the container pull.
	markerIdx := strings.Index(script, "vllm-svc.hostname")
	pullIdx := strings.Index(script, "apptainer pull")
	require.Positive(t, markerIdx)
	require.Positive(t, pullIdx)
	assert.Less(t, markerIdx, pullIdx)
}

func TestRenderServiceScriptCpuOnly(t *testing.T) {
	renderer := &SlurmRenderer{}
	script, err := renderer.RenderService(ServiceSpec{
		Name:           "pg",
		ContainerImage: "postgres:16",
		Command:        "postgres",
	}.withDefaults(), RenderContext{WorkingDir: "/wd"})
	require.NoError(t, err)
	assert.NotContains(t, script, "--gpus")
	assert.NotContains(t, script, "--nv")
}

func TestRenderClientScript(t *testing.T) {
	renderer := &SlurmRenderer{}
	script, err := renderer.RenderClient(ClientSpec{
		Name:        "client-1",
		ServiceName: "pg",
		Command:     "pgbench -c 8",
	}.withDefaults(), RenderContext{
		CampaignID:  "c1",
		WorkingDir:  "/wd",
		ServiceHost: "node-4",
		ServicePort: 5432,
		ServiceURL:  "http://node-4:5432",
	})
	require.NoError(t, err)

	assert.Contains(t, script, "#SBATCH --partition=cpu")
	assert.Contains(t, script, `export SERVICE_HOSTNAME="node-4"`)
	assert.Contains(t, script, `export SERVICE_PORT="5432"`)
	assert.Contains(t, script, `export BENCHMARK_ID="c1"`)
	assert.Contains(t, script, "pgbench -c 8")
	assert.Contains(t, script, "mkdir -p /wd/metrics")
}
