package benchctl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecipe = `
target: meluxina
service:
  name: vllm-server
  image: docker://vllm/vllm-openai:latest
  serviceType: vllm
  port: 8000
  gpus: 1
  modules:
    - Apptainer
  env:
    HF_HOME: /scratch/hf
  expectedModel: mistral-7b
clients:
  count: 4
  prefix: loadgen
  command: python3 bench_client.py --concurrency 8
`

func writeRecipe(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRecipe(t *testing.T) {
	recipe, err := LoadRecipe(writeRecipe(t, sampleRecipe))
	require.NoError(t, err)

	assert.Equal(t, "meluxina", recipe.Target)
	assert.Equal(t, "vllm-server", recipe.Service.Name)
	assert.Equal(t, 4, recipe.Clients.Count)
	assert.Equal(t, "loadgen", recipe.ClientPrefix())

	spec := recipe.ServiceSpec()
	assert.Equal(t, "docker://vllm/vllm-openai:latest", spec.ContainerImage)
	assert.Equal(t, "vllm", spec.ServiceType)
	assert.Equal(t, 8000, spec.Port)
	assert.Equal(t, 1, spec.Gpus)
	assert.Equal(t, []string{"Apptainer"}, spec.Modules)
	assert.Equal(t, "mistral-7b", spec.ExpectedModel)
	assert.True(t, spec.Wait, "wait defaults to true")

	clientSpec := recipe.ClientSpec()
	assert.Equal(t, "vllm-server", clientSpec.ServiceName)
	assert.Equal(t, "python3 bench_client.py --concurrency 8", clientSpec.Command)
}

func TestLoadRecipeRejectsUnknownKeys(t *testing.T) {
	_, err := LoadRecipe(writeRecipe(t, `
service:
  name: svc
  image: img
  partitionn: gpu
clients:
  count: 0
`))
	require.Error(t, err)
}

func TestLoadRecipeValidation(t *testing.T) {
	cases := map[string]string{
		"missing service name": `
service:
  image: img
clients:
  count: 0
`,
		"missing image": `
service:
  name: svc
clients:
  count: 0
`,
		"clients without command": `
service:
  name: svc
  image: img
clients:
  count: 2
`,
		"negative client count": `
service:
  name: svc
  image: img
clients:
  count: -1
  command: run
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRecipe(writeRecipe(t, content))
			assert.Error(t, err)
		})
	}
}

func TestRecipeWaitOverride(t *testing.T) {
	recipe, err := LoadRecipe(writeRecipe(t, `
service:
  name: svc
  image: img
  wait: false
clients:
  count: 0
`))
	require.NoError(t, err)
	assert.False(t, recipe.ServiceSpec().Wait)
}

func TestRecipeDefaultClientPrefix(t *testing.T) {
	recipe := &Recipe{}
	assert.Equal(t, "client", recipe.ClientPrefix())
}
