package benchctl

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/common/bencherrors"
	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/deployment"
)

// Recipe is one declarative benchmark campaign: the service under test plus
// the load clients driven against it. Loaded from a YAML file given to
// `benchctl deploy`.
type Recipe struct {
	// Target overrides the configured SSH target when set.
	Target string `yaml:"target,omitempty"`

	Service RecipeService `yaml:"service"`
	Clients RecipeClients `yaml:"clients"`
}

type RecipeService struct {
	Name           string            `yaml:"name"`
	Image          string            `yaml:"image"`
	Command        string            `yaml:"command,omitempty"`
	ServiceType    string            `yaml:"serviceType"`
	Port           int               `yaml:"port,omitempty"`
	TimeLimit      string            `yaml:"timeLimit,omitempty"`
	Partition      string            `yaml:"partition,omitempty"`
	Account        string            `yaml:"account,omitempty"`
	Nodes          int               `yaml:"nodes,omitempty"`
	Gpus           int               `yaml:"gpus,omitempty"`
	CpusPerTask    int               `yaml:"cpusPerTask,omitempty"`
	Memory         string            `yaml:"memory,omitempty"`
	EnvVars        map[string]string `yaml:"env,omitempty"`
	Modules        []string          `yaml:"modules,omitempty"`
	PreRunCommands []string          `yaml:"preRun,omitempty"`
	ExpectedModel  string            `yaml:"expectedModel,omitempty"`
	// Wait blocks the deploy until the service is running and reachable.
	// Defaults to true; clients deployed against a service that is still
	// queueing fail fast.
	Wait *bool `yaml:"wait,omitempty"`
}

type RecipeClients struct {
	Count     int    `yaml:"count"`
	Prefix    string `yaml:"prefix,omitempty"`
	Command   string `yaml:"command"`
	TimeLimit string `yaml:"timeLimit,omitempty"`
	Partition string `yaml:"partition,omitempty"`
	Account   string `yaml:"account,omitempty"`
	Nodes     int    `yaml:"nodes,omitempty"`
	Gpus      int    `yaml:"gpus,omitempty"`
}

// LoadRecipe reads and validates a recipe YAML file. Unknown keys are
// rejected so a typo in a recipe fails loudly instead of silently deploying
// with defaults.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	recipe := &Recipe{}
	if err := yaml.UnmarshalStrict(data, recipe); err != nil {
		return nil, errors.Wrapf(err, "cannot parse recipe %s", path)
	}
	if err := recipe.Validate(); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (r *Recipe) Validate() error {
	if r.Service.Name == "" {
		return recipeError("service.name", "must be non-empty")
	}
	if r.Service.Image == "" {
		return recipeError("service.image", "must be non-empty")
	}
	if r.Clients.Count < 0 {
		return recipeError("clients.count", "must not be negative")
	}
	if r.Clients.Count > 0 && r.Clients.Command == "" {
		return recipeError("clients.command", "must be non-empty when clients are requested")
	}
	return nil
}

func recipeError(field, message string) error {
	return errors.WithStack(&bencherrors.ErrInvalidArgument{
		Name:    field,
		Message: message,
	})
}

// ServiceSpec translates the recipe's service section into a deploy spec.
func (r *Recipe) ServiceSpec() deployment.ServiceSpec {
	wait := true
	if r.Service.Wait != nil {
		wait = *r.Service.Wait
	}
	return deployment.ServiceSpec{
		Name:           r.Service.Name,
		ContainerImage: r.Service.Image,
		Command:        r.Service.Command,
		ServiceType:    r.Service.ServiceType,
		Port:           r.Service.Port,
		TimeLimit:      r.Service.TimeLimit,
		Partition:      r.Service.Partition,
		Account:        r.Service.Account,
		Nodes:          r.Service.Nodes,
		Gpus:           r.Service.Gpus,
		CpusPerTask:    r.Service.CpusPerTask,
		Memory:         r.Service.Memory,
		EnvVars:        r.Service.EnvVars,
		Modules:        r.Service.Modules,
		PreRunCommands: r.Service.PreRunCommands,
		ExpectedModel:  r.Service.ExpectedModel,
		Wait:           wait,
	}
}

// ClientSpec translates the recipe's clients section into the base spec used
// for every client instance.
func (r *Recipe) ClientSpec() deployment.ClientSpec {
	return deployment.ClientSpec{
		ServiceName: r.Service.Name,
		Command:     r.Clients.Command,
		TimeLimit:   r.Clients.TimeLimit,
		Partition:   r.Clients.Partition,
		Account:     r.Clients.Account,
		Nodes:       r.Clients.Nodes,
		Gpus:        r.Clients.Gpus,
	}
}

// ClientPrefix is the name prefix for client instances, "client" by default.
func (r *Recipe) ClientPrefix() string {
	if r.Clients.Prefix != "" {
		return r.Clients.Prefix
	}
	return "client"
}
