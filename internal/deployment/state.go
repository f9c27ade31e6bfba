package deployment

// JobState is the scheduler-reported lifecycle state of a remote job.
//
// Jobs move SUBMITTED -> PENDING -> RUNNING and then into exactly one of the
// terminal states. Terminal states are absorbing: once a handle has been
// observed terminal it never transitions again.
type JobState string

const (
	StateSubmitted JobState = "SUBMITTED"
	StatePending   JobState = "PENDING"
	StateRunning   JobState = "RUNNING"
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
	StateCancelled JobState = "CANCELLED"
	StateTimeout   JobState = "TIMEOUT"

	// StateUnknown is the degraded sentinel used when the scheduler cannot be
	// queried; it is distinguishable from every legitimate state.
	StateUnknown JobState = "UNKNOWN"
)

// Terminal reports whether the state is absorbing.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateTimeout:
		return true
	}
	return false
}
