package link

import "sync/atomic"

// State is the connection state of a session.
type State uint32

const (
	// IdleState is the state before the open handshake starts.
	IdleState State = iota
	// AwaitingPeerState is the Receiver waiting for SET.
	AwaitingPeerState
	// AwaitingAckState is the Transmitter waiting for UA.
	AwaitingAckState
	// EstablishedState accepts Send and Receive.
	EstablishedState
	// AwaitingDiscState is the Receiver's close handshake: waiting for the peer's DISC
	// or, after answering it, for the final UA.
	AwaitingDiscState
	// AwaitingDiscAckState is the Transmitter's close handshake: waiting for the
	// Receiver's DISC.
	AwaitingDiscAckState
	// ClosedState is terminal; the transport has been released.
	ClosedState
)

func (s State) String() string {
	switch s {
	case IdleState:
		return "Idle"
	case AwaitingPeerState:
		return "AwaitingPeer"
	case AwaitingAckState:
		return "AwaitingAck"
	case EstablishedState:
		return "Established"
	case AwaitingDiscState:
		return "AwaitingDisc"
	case AwaitingDiscAckState:
		return "AwaitingDiscAck"
	case ClosedState:
		return "Closed"
	default:
		return "Unknown"
	}
}

// AtomicState holds a State with compare-and-swap transitions.
type AtomicState struct {
	state atomic.Uint32
}

func (st *AtomicState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicState) Get() State {
	return State(st.state.Load())
}

// Set stores state unconditionally.
func (st *AtomicState) Set(state State) {
	st.state.Store(uint32(state))
}

func (st *AtomicState) IsEstablished() bool {
	return st.Get() == EstablishedState
}

func (st *AtomicState) IsClosed() bool {
	return st.Get() == ClosedState
}

// ToOpening moves Idle to the role's handshake state.
func (st *AtomicState) ToOpening(role Role) bool {
	next := AwaitingAckState
	if role == Receiver {
		next = AwaitingPeerState
	}

	return st.state.CompareAndSwap(uint32(IdleState), uint32(next))
}

// ToEstablished completes the open handshake.
func (st *AtomicState) ToEstablished() bool {
	if st.IsEstablished() {
		return true
	}
	if st.state.CompareAndSwap(uint32(AwaitingAckState), uint32(EstablishedState)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(AwaitingPeerState), uint32(EstablishedState))
}

// ToClosing moves Established to the role's close handshake state. It also
// succeeds when the session is already in that state, e.g. after the peer's
// DISC was seen by Send or Receive.
func (st *AtomicState) ToClosing(role Role) bool {
	next := AwaitingDiscAckState
	if role == Receiver {
		next = AwaitingDiscState
	}
	if st.Get() == next {
		return true
	}

	return st.state.CompareAndSwap(uint32(EstablishedState), uint32(next))
}

// ToClosed moves any state to Closed. It returns false if the session was
// already closed, so the caller releases resources exactly once.
func (st *AtomicState) ToClosed() bool {
	return State(st.state.Swap(uint32(ClosedState))) != ClosedState
}
