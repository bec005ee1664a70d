package stream

// State is the lifecycle state of a run.
type State int

const (
	// StateInit opens the source and decides the output policy.
	StateInit State = iota
	// StateRunning processes frames.
	StateRunning
	// StateDrained is the terminal state after the source is exhausted or the run is stopped.
	StateDrained
	// StateFailed is the terminal state after a fatal error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDrained:
		return "drained"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDrained || s == StateFailed
}
