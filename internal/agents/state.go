package agents

import "sync/atomic"

// State tracks where an agent is in one operation's lifecycle.
type State int32

const (
	StateIdle State = iota
	StateGenerating
	StateStreaming
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateStreaming:
		return "streaming"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// stateMachine is embedded by agents; reads are safe from other goroutines
// observing progress while an operation runs.
type stateMachine struct {
	state atomic.Int32
}

func (m *stateMachine) setState(s State) {
	m.state.Store(int32(s))
}

// State returns the agent's current lifecycle state.
func (m *stateMachine) State() State {
	return State(m.state.Load())
}
