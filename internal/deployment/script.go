package deployment

import (
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// ServiceSpec describes a service job to deploy.
type ServiceSpec struct {
	Name           string
	ContainerImage string
	Command        string
	ServiceType    string
	Port           int
	TimeLimit      string
	Partition      string
	Account        string
	Nodes          int
	Gpus           int
	CpusPerTask    int
	Memory         string
	EnvVars        map[string]string
	Modules        []string
	PreRunCommands []string
	// ExpectedModel is checked by the readiness probe of generative services.
	ExpectedModel string
	// Wait blocks the deploy call until the job is RUNNING and the endpoint
	// marker has been written.
	Wait bool
}

// ClientSpec describes a load-generating client job.
type ClientSpec struct {
	Name        string
	ServiceName string
	Command     string
	TimeLimit   string
	Partition   string
	Account     string
	Nodes       int
	Gpus        int
}

func (s ServiceSpec) withDefaults() ServiceSpec {
	if s.TimeLimit == "" {
		s.TimeLimit = "01:00:00"
	}
	if s.Partition == "" {
		s.Partition = "gpu"
	}
	if s.Nodes <= 0 {
		s.Nodes = 1
	}
	return s
}

func (c ClientSpec) withDefaults() ClientSpec {
	if c.TimeLimit == "" {
		c.TimeLimit = "01:00:00"
	}
	if c.Partition == "" {
		c.Partition = "cpu"
	}
	if c.Nodes <= 0 {
		c.Nodes = 1
	}
	return c
}

// RenderContext is the deploy-time information a template needs beyond the
// spec itself.
type RenderContext struct {
	CampaignID  string
	WorkingDir  string
	ServiceHost string
	ServicePort int
	ServiceURL  string
}

// ScriptRenderer turns a deployment spec into a batch script ready for
// submission. The scheduler dialect lives entirely behind this interface.
type ScriptRenderer interface {
	RenderService(spec ServiceSpec, ctx RenderContext) (string, error)
	RenderClient(spec ClientSpec, ctx RenderContext) (string, error)
}

// SlurmRenderer renders sbatch scripts that run the workload in an Apptainer
// container. Service scripts write the job's hostname and id to marker files
// in the working directory before the container pull, so clients can discover
// the service while the (potentially slow) pull is still in progress.
type SlurmRenderer struct{}

var serviceScriptTemplate = template.Must(template.New("service").Parse(`#!/bin/bash -l
#SBATCH --job-name={{.Spec.Name}}
#SBATCH --time={{.Spec.TimeLimit}}
#SBATCH --qos=default
#SBATCH --partition={{.Spec.Partition}}
#SBATCH --account={{.Spec.Account}}
#SBATCH --nodes={{.Spec.Nodes}}
#SBATCH --ntasks={{.Spec.Nodes}}
#SBATCH --ntasks-per-node=1
{{- if gt .Spec.Gpus 0}}
#SBATCH --gpus={{.Spec.Gpus}}
{{- end}}
{{- if gt .Spec.CpusPerTask 0}}
#SBATCH --cpus-per-task={{.Spec.CpusPerTask}}
{{- end}}
{{- if .Spec.Memory}}
#SBATCH --mem={{.Spec.Memory}}
{{- end}}
#SBATCH --output={{.Ctx.WorkingDir}}/logs/{{.Spec.Name}}_%j.out
#SBATCH --error={{.Ctx.WorkingDir}}/logs/{{.Spec.Name}}_%j.err

echo "Service: {{.Spec.Name}}"
echo "Date: $(date)"
echo "Hostname: $(hostname -s)"

# Publish discovery markers before the container pull, which can be slow.
echo "$(hostname)" > {{.Ctx.WorkingDir}}/{{.Spec.Name}}.hostname
echo "$SLURM_JOB_ID" > {{.Ctx.WorkingDir}}/{{.Spec.Name}}.jobid

module add Apptainer
{{- range .Spec.Modules}}
module load {{.}}
{{- end}}

IMAGE_NAME=$(echo {{.Spec.ContainerImage}} | sed 's|.*/||' | sed 's|:.*||')
SIF_FILE="${IMAGE_NAME}_latest.sif"
if [ ! -f "$SIF_FILE" ]; then
  apptainer pull docker://{{.Spec.ContainerImage}}
fi

{{- range $key, $value := .Spec.EnvVars}}
export {{$key}}='{{$value}}'
{{- end}}
{{- range .Spec.PreRunCommands}}
{{.}}
{{- end}}

apptainer exec {{if gt .Spec.Gpus 0}}--nv {{end}}{{range $key, $value := .Spec.EnvVars}}--env {{$key}}='{{$value}}' {{end}}"$SIF_FILE" {{.Spec.Command}}
`))

var clientScriptTemplate = template.Must(template.New("client").Parse(`#!/bin/bash -l
#SBATCH --job-name={{.Spec.Name}}
#SBATCH --time={{.Spec.TimeLimit}}
#SBATCH --qos=default
#SBATCH --partition={{.Spec.Partition}}
#SBATCH --account={{.Spec.Account}}
#SBATCH --nodes={{.Spec.Nodes}}
#SBATCH --ntasks={{.Spec.Nodes}}
#SBATCH --ntasks-per-node=1
{{- if gt .Spec.Gpus 0}}
#SBATCH --gpus={{.Spec.Gpus}}
{{- end}}
#SBATCH --output={{.Ctx.WorkingDir}}/logs/{{.Spec.Name}}_%j.out
#SBATCH --error={{.Ctx.WorkingDir}}/logs/{{.Spec.Name}}_%j.err

echo "Client: {{.Spec.Name}}"
echo "Service: {{.Spec.ServiceName}}"
echo "Date: $(date)"
echo "Hostname: $(hostname -s)"

export SERVICE_NAME="{{.Spec.ServiceName}}"
export SERVICE_HOSTNAME="{{.Ctx.ServiceHost}}"
export SERVICE_PORT="{{if gt .Ctx.ServicePort 0}}{{.Ctx.ServicePort}}{{end}}"
export SERVICE_URL="{{.Ctx.ServiceURL}}"
export BENCHMARK_ID="{{.Ctx.CampaignID}}"
export BENCHMARK_OUTPUT_DIR="{{.Ctx.WorkingDir}}/metrics"
export CLIENT_NAME="{{.Spec.Name}}"

echo "$(hostname)" > {{.Ctx.WorkingDir}}/{{.Spec.Name}}.hostname
echo "$SLURM_JOB_ID" > {{.Ctx.WorkingDir}}/{{.Spec.Name}}.jobid

mkdir -p {{.Ctx.WorkingDir}}/metrics

{{.Spec.Command}}

echo "Benchmark completed at $(date)"
`))

type scriptData struct {
	Spec interface{}
	Ctx  RenderContext
}

func render(t *template.Template, data scriptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", errors.WithStack(err)
	}
	return b.String(), nil
}

func (r *SlurmRenderer) RenderService(spec ServiceSpec, ctx RenderContext) (string, error) {
	return render(serviceScriptTemplate, scriptData{Spec: spec, Ctx: ctx})
}

func (r *SlurmRenderer) RenderClient(spec ClientSpec, ctx RenderContext) (string, error) {
	return render(clientScriptTemplate, scriptData{Spec: spec, Ctx: ctx})
}
