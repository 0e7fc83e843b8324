package link

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicState_TransmitterLifecycle(t *testing.T) {
	require := require.New(t)

	var st AtomicState
	require.Equal(IdleState, st.Get())

	require.True(st.ToOpening(Transmitter))
	require.Equal(AwaitingAckState, st.Get())
	require.False(st.ToOpening(Transmitter), "opening twice")

	require.True(st.ToEstablished())
	require.True(st.IsEstablished())
	require.True(st.ToEstablished(), "already established")

	require.True(st.ToClosing(Transmitter))
	require.Equal(AwaitingDiscAckState, st.Get())
	require.True(st.ToClosing(Transmitter), "already closing")

	require.True(st.ToClosed())
	require.True(st.IsClosed())
	require.False(st.ToClosed(), "closed twice")
}

func TestAtomicState_ReceiverLifecycle(t *testing.T) {
	require := require.New(t)

	var st AtomicState

	require.True(st.ToOpening(Receiver))
	require.Equal(AwaitingPeerState, st.Get())
	require.Equal("AwaitingPeer", st.String())

	require.True(st.ToEstablished())
	require.True(st.ToClosing(Receiver))
	require.Equal(AwaitingDiscState, st.Get())
}

func TestAtomicState_InvalidTransitions(t *testing.T) {
	require := require.New(t)

	var st AtomicState
	require.False(st.ToEstablished(), "idle cannot be established")
	require.False(st.ToClosing(Transmitter), "idle cannot start closing")

	st.Set(ClosedState)
	require.False(st.ToOpening(Receiver))
}

func TestState_String(t *testing.T) {
	require.Equal(t, "Idle", IdleState.String())
	require.Equal(t, "AwaitingAck", AwaitingAckState.String())
	require.Equal(t, "Established", EstablishedState.String())
	require.Equal(t, "AwaitingDisc", AwaitingDiscState.String())
	require.Equal(t, "AwaitingDiscAck", AwaitingDiscAckState.String())
	require.Equal(t, "Closed", ClosedState.String())
	require.Equal(t, "Unknown", State(99).String())
}
