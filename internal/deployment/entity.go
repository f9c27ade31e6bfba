package deployment

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/MarioCapodanno/Team1-EUMASTER4HPC2526-sub000/internal/storage"
)

// ServiceDeployment is the persisted record of one service job. It is created
// at deploy time and mutated in place as the endpoint and timestamps resolve;
// it is never deleted, cancellation changes job state, not existence.
type ServiceDeployment struct {
	Name           string     `mapstructure:"name" json:"name"`
	ContainerImage string     `mapstructure:"container_image" json:"container_image"`
	Command        string     `mapstructure:"command" json:"command"`
	ServiceType    string     `mapstructure:"service_type" json:"service_type"`
	JobID          string     `mapstructure:"job_id" json:"job_id"`
	Hostname       string     `mapstructure:"hostname" json:"hostname"`
	NodeName       string     `mapstructure:"node_name" json:"node_name"`
	Port           int        `mapstructure:"port" json:"port"`
	WorkingDir     string     `mapstructure:"working_dir" json:"working_dir"`
	LogFile        string     `mapstructure:"log_file" json:"log_file"`
	SubmitTime     *time.Time `mapstructure:"submit_time" json:"submit_time,omitempty"`
	StartTime      *time.Time `mapstructure:"start_time" json:"start_time,omitempty"`
	EndTime        *time.Time `mapstructure:"end_time" json:"end_time,omitempty"`
}

// ClientDeployment is the persisted record of one load-generating client job.
type ClientDeployment struct {
	Name        string     `mapstructure:"name" json:"name"`
	ServiceName string     `mapstructure:"service_name" json:"service_name"`
	Command     string     `mapstructure:"command" json:"command"`
	JobID       string     `mapstructure:"job_id" json:"job_id"`
	Hostname    string     `mapstructure:"hostname" json:"hostname"`
	NodeName    string     `mapstructure:"node_name" json:"node_name"`
	WorkingDir  string     `mapstructure:"working_dir" json:"working_dir"`
	LogFile     string     `mapstructure:"log_file" json:"log_file"`
	MetricsFile string     `mapstructure:"metrics_file" json:"metrics_file"`
	SubmitTime  *time.Time `mapstructure:"submit_time" json:"submit_time,omitempty"`
	StartTime   *time.Time `mapstructure:"start_time" json:"start_time,omitempty"`
	EndTime     *time.Time `mapstructure:"end_time" json:"end_time,omitempty"`
}

// toAttrs flattens an entity into the attribute map the store persists.
func toAttrs(entity interface{}) (storage.Attrs, error) {
	attrs := storage.Attrs{}
	if err := mapstructure.Decode(entity, &attrs); err != nil {
		return nil, errors.WithStack(err)
	}
	return attrs, nil
}

// fromAttrs rebuilds an entity from a persisted attribute map. Timestamps
// come back from the store as RFC3339 strings and numeric fields as float64;
// both are coerced here.
func fromAttrs(attrs storage.Attrs, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		DecodeHook: mapstructure.StringToTimeHookFunc(storage.TimeFormat),
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(decoder.Decode(attrs))
}

// Attrs returns the storable attribute map for the service.
func (s *ServiceDeployment) Attrs() (storage.Attrs, error) {
	return toAttrs(s)
}

// ServiceFromAttrs rebuilds a ServiceDeployment from stored attributes.
func ServiceFromAttrs(attrs storage.Attrs) (*ServiceDeployment, error) {
	s := &ServiceDeployment{}
	if err := fromAttrs(attrs, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Attrs returns the storable attribute map for the client.
func (c *ClientDeployment) Attrs() (storage.Attrs, error) {
	return toAttrs(c)
}

// ClientFromAttrs rebuilds a ClientDeployment from stored attributes.
func ClientFromAttrs(attrs storage.Attrs) (*ClientDeployment, error) {
	c := &ClientDeployment{}
	if err := fromAttrs(attrs, c); err != nil {
		return nil, err
	}
	return c, nil
}

// equalTimes compares optional timestamps at store resolution.
func equalTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Equal compares two service records field by field, timestamps at store
// resolution. Used by tests and by callers that want to skip no-op saves.
func (s *ServiceDeployment) Equal(other *ServiceDeployment) bool {
	if other == nil {
		return false
	}
	if !equalTimes(s.SubmitTime, other.SubmitTime) ||
		!equalTimes(s.StartTime, other.StartTime) ||
		!equalTimes(s.EndTime, other.EndTime) {
		return false
	}
	a, b := *s, *other
	a.SubmitTime, a.StartTime, a.EndTime = nil, nil, nil
	b.SubmitTime, b.StartTime, b.EndTime = nil, nil, nil
	return reflect.DeepEqual(a, b)
}
