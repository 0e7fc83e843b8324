package link

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReceive_InOrderFrames(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	tr := newScriptedTransport()
	tr.queue(iframe(0, []byte("AB")), iframe(1, []byte("CD")))
	s := establishedSession(t, tr, Receiver)

	payload, err := s.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte("AB"), payload)
	require.Equal(rr(1), tr.lastWrite())
	require.Equal(uint8(1), s.RxExpected())

	payload, err = s.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte("CD"), payload)
	require.Equal(rr(0), tr.lastWrite())
	require.Equal(uint8(0), s.RxExpected())

	stats := s.Stats()
	require.Equal(int64(2), stats.FramesReceived)
	require.Equal(int64(4), stats.BytesReceived)
}

func TestReceive_DuplicateSuppressed(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	tr := newScriptedTransport()
	tr.queue(iframe(0, []byte("AB")), iframe(0, []byte("AB")), iframe(1, []byte("CD")))
	s := establishedSession(t, tr, Receiver)

	payload, err := s.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte("AB"), payload)

	payload, err = s.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte("CD"), payload, "the repeated AB is never delivered")

	require.Equal([][]byte{rr(1), rr(1), rr(0)}, tr.writes)
	require.Equal(int64(1), s.Metrics().Duplicates.Value())
}

func TestReceiveFrame_ClassifiesDuplicate(t *testing.T) {
	require := require.New(t)

	tr := newScriptedTransport()
	tr.queue(iframe(1, []byte("old")))
	s := establishedSession(t, tr, Receiver)

	result, payload, err := s.receiveFrame(context.Background())
	require.NoError(err)
	require.Equal(rxDuplicate, result)
	require.Nil(payload)
	require.Equal(rr(0), tr.lastWrite(), "duplicate is answered with RR(expected)")
	require.Equal(uint8(0), s.RxExpected())
}

func TestReceive_ChecksumMismatch(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	bad := []byte{Flag, AddrTx, CtrlI0, BCC1(AddrTx, CtrlI0), 'A', 'B', 0x00, Flag}

	tr := newScriptedTransport()
	tr.queue(bad, iframe(0, []byte("AB")))
	s := establishedSession(t, tr, Receiver)

	_, err := s.Receive(ctx)
	require.ErrorIs(err, ErrChecksum)
	require.Equal(rej(0), tr.lastWrite())
	require.Equal(uint8(0), s.RxExpected())

	payload, err := s.Receive(ctx)
	require.NoError(err)
	require.Equal([]byte("AB"), payload)
	require.Equal(int64(1), s.Metrics().RejectsSent.Value())
}

func TestReceive_RejectCarriesExpectedSequence(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	bad := []byte{Flag, AddrTx, CtrlI1, BCC1(AddrTx, CtrlI1), 'C', 'D', 0x00, Flag}

	tr := newScriptedTransport()
	tr.queue(iframe(0, []byte("AB")), bad)
	s := establishedSession(t, tr, Receiver)

	_, err := s.Receive(ctx)
	require.NoError(err)

	_, err = s.Receive(ctx)
	require.ErrorIs(err, ErrChecksum)
	require.Equal(rej(1), tr.lastWrite())
}

func TestReceive_ProtocolErrors(t *testing.T) {
	tests := []struct {
		desc  string
		frame []byte
		opts  []Option
	}{
		{
			desc:  "invalid escape",
			frame: []byte{Flag, AddrTx, CtrlI0, BCC1(AddrTx, CtrlI0), Esc, 0x01, 0x00, Flag},
		},
		{
			desc:  "escape before closing flag",
			frame: []byte{Flag, AddrTx, CtrlI0, BCC1(AddrTx, CtrlI0), 'A', Esc, Flag},
		},
		{
			desc:  "oversized frame",
			frame: iframe(0, []byte("ABCDE")),
			opts:  []Option{WithMaxFrameSize(4)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			tr := newScriptedTransport()
			tr.queue(tt.frame, iframe(0, []byte("ok")))
			s := establishedSession(t, tr, Receiver, tt.opts...)

			_, err := s.Receive(ctx)
			require.ErrorIs(err, ErrProtocol)
			require.Equal(rej(0), tr.lastWrite())

			payload, err := s.Receive(ctx)
			require.NoError(err)
			require.Equal([]byte("ok"), payload)
		})
	}
}

func TestReceive_MaxFrameSizeBoundary(t *testing.T) {
	require := require.New(t)

	tr := newScriptedTransport()
	tr.queue(iframe(0, []byte("ABCD")))
	s := establishedSession(t, tr, Receiver, WithMaxFrameSize(4))

	payload, err := s.Receive(context.Background())
	require.NoError(err)
	require.Equal([]byte("ABCD"), payload)
}

func TestReceive_HeaderDamageResyncs(t *testing.T) {
	require := require.New(t)

	damaged := []byte{Flag, AddrTx, CtrlI0, 0x55, 'A', 'B', 0x03, Flag}
	wrongAddr := []byte{Flag, AddrRx, CtrlI0, BCC1(AddrRx, CtrlI0), 'X', 'X', 0x00, Flag}

	tr := newScriptedTransport()
	tr.queue([]byte{0x11, 0x22}, damaged, wrongAddr, iframe(0, []byte("AB")))
	s := establishedSession(t, tr, Receiver)

	payload, err := s.Receive(context.Background())
	require.NoError(err)
	require.Equal([]byte("AB"), payload)
	require.Equal([][]byte{rr(1)}, tr.writes, "header damage is dropped silently")
}

func TestReceive_SpecialBytes(t *testing.T) {
	require := require.New(t)

	data := []byte{Flag, Esc, 0x00, Flag, 0x5E, 0x5D}

	tr := newScriptedTransport()
	tr.queue(iframe(0, data))
	s := establishedSession(t, tr, Receiver)

	payload, err := s.Receive(context.Background())
	require.NoError(err)
	require.Equal(data, payload)
}

func TestReceive_EmptyPayload(t *testing.T) {
	require := require.New(t)

	tr := newScriptedTransport()
	tr.queue(iframe(0, nil))
	s := establishedSession(t, tr, Receiver)

	payload, err := s.Receive(context.Background())
	require.NoError(err)
	require.NotNil(payload)
	require.Empty(payload)
	require.Equal(rr(1), tr.lastWrite())
}

func TestReceive_PayloadIsNotAliased(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	tr := newScriptedTransport()
	tr.queue(iframe(0, []byte("AB")), iframe(1, []byte("CD")))
	s := establishedSession(t, tr, Receiver)

	first, err := s.Receive(ctx)
	require.NoError(err)
	_, err = s.Receive(ctx)
	require.NoError(err)

	require.Equal([]byte("AB"), first)
}

func TestReceive_PeerDisconnects(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	tr := newScriptedTransport()
	tr.queue(sup(AddrTx, CtrlDISC))
	s := establishedSession(t, tr, Receiver)

	payload, err := s.Receive(ctx)
	require.ErrorIs(err, ErrPeerClosed)
	require.Nil(payload)
	require.Equal(sup(AddrRx, CtrlDISC), tr.lastWrite())
	require.Equal(AwaitingDiscState, s.State())

	_, err = s.Receive(ctx)
	require.ErrorIs(err, ErrSessionClosed)

	tr.queue(sup(AddrRx, CtrlUA))
	require.NoError(s.Close(ctx, false))
	require.Len(tr.writes, 1, "DISC is not sent twice")
	require.Equal(ClosedState, s.State())
}

func TestReceive_RepeatedSetReacknowledged(t *testing.T) {
	require := require.New(t)

	tr := newScriptedTransport()
	tr.queue(sup(AddrTx, CtrlSET), iframe(0, []byte("X")))
	s := establishedSession(t, tr, Receiver)

	payload, err := s.Receive(context.Background())
	require.NoError(err)
	require.Equal([]byte("X"), payload)
	require.Equal([][]byte{sup(AddrTx, CtrlUA), rr(1)}, tr.writes)
}

func TestReceive_Preconditions(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	tr := newScriptedTransport()
	tx := establishedSession(t, tr, Transmitter)
	_, err := tx.Receive(ctx)
	require.ErrorIs(err, ErrWrongRole)

	idle := newSession(testConfig(t, tr, Receiver))
	_, err = idle.Receive(ctx)
	require.ErrorIs(err, ErrSessionClosed)
}

func TestFrameParser_FlagAfterHeaderStartsNewFrame(t *testing.T) {
	require := require.New(t)

	p := newFrameParser(16)
	input := append([]byte{Flag, AddrTx, CtrlI0, BCC1(AddrTx, CtrlI0)}, iframe(1, []byte("Z"))...)

	var events []parseEvent
	for _, b := range input {
		if ev := p.feed(b); ev != evNone {
			events = append(events, ev)
		}
	}

	require.Equal([]parseEvent{evInfo}, events)
	require.Equal(uint8(1), p.seq())
	require.Equal([]byte{'Z', 'Z'}, p.body)
}

func TestReceive_TransportFailureReleasesTransport(t *testing.T) {
	tests := map[string]func(tr *scriptedTransport){
		"read": func(tr *scriptedTransport) { tr.readErr = errors.New("line down") },
		"write": func(tr *scriptedTransport) {
			tr.queue(iframe(0, []byte("AB")))
			tr.writeErr = errors.New("line down")
		},
	}

	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			tr := newScriptedTransport()
			s := establishedSession(t, tr, Receiver)
			setup(tr)

			_, err := s.Receive(context.Background())
			require.ErrorIs(err, ErrTransport)
			require.Equal(ClosedState, s.State())
			require.Equal(1, tr.closed)
			require.Equal(uint8(0), s.RxExpected(), "frame not acknowledged")
		})
	}
}
