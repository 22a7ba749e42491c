package channel

import "sync/atomic"

// State is the lifecycle state of a channel endpoint.
type State int32

const (
	StateUnopened State = iota
	StateOpen
	StatePeerClosed
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "Unopened"
	case StateOpen:
		return "Open"
	case StatePeerClosed:
		return "PeerClosed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Lifecycle is the Unopened → Open → (PeerClosed) → Closed state machine
// embedded by every transport. Transitions are atomic so that Close may race
// with a blocked read or write on another goroutine.
type Lifecycle struct {
	state atomic.Int32
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// TransitionTo moves to newState if the transition is valid.
func (l *Lifecycle) TransitionTo(newState State) error {
	for {
		old := l.State()
		if err := validTransition(old, newState); err != nil {
			return err
		}
		if l.state.CompareAndSwap(int32(old), int32(newState)) {
			return nil
		}
	}
}

func validTransition(from, to State) error {
	switch from {
	case StateUnopened:
		if to == StateOpen || to == StateClosed {
			return nil
		}
		return ErrNotOpen
	case StateOpen:
		if to == StatePeerClosed || to == StateClosed {
			return nil
		}
		return ErrAlreadyOpen
	case StatePeerClosed:
		if to == StateClosed {
			return nil
		}
		if to == StateOpen {
			return ErrAlreadyOpen
		}
		return ErrEndOfStream
	default:
		return ErrClosed
	}
}

// Open moves Unopened → Open.
func (l *Lifecycle) Open() error {
	return l.TransitionTo(StateOpen)
}

// BeginClose moves to Closed and reports whether this call did it. Only the
// first caller releases resources.
func (l *Lifecycle) BeginClose() bool {
	return l.TransitionTo(StateClosed) == nil
}

// MarkPeerClosed records that the peer closed. It reports whether this call
// made the transition, so side effects such as logging run exactly once.
func (l *Lifecycle) MarkPeerClosed() bool {
	return l.state.CompareAndSwap(int32(StateOpen), int32(StatePeerClosed))
}

// Check returns nil when the endpoint is open, and otherwise the error an
// I/O call should fail with.
func (l *Lifecycle) Check() error {
	switch l.State() {
	case StateOpen:
		return nil
	case StateUnopened:
		return ErrNotOpen
	case StatePeerClosed:
		return ErrEndOfStream
	default:
		return ErrClosed
	}
}
