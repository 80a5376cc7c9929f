package workflow

// State is the lifecycle status of a flow instance. Values match the
// instance status stored with each instance.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in-progress"
	StateCompleted  State = "completed"
	StateRejected   State = "rejected"
)

// IsTerminal reports whether no further decisions are accepted in s
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateRejected
}

func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known instance state
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateInProgress, StateCompleted, StateRejected:
		return true
	}
	return false
}
