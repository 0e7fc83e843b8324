package link

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// SessionMetrics contains the transfer counters of a session.
//
// Counters are safe to read from other goroutines while the session runs,
// e.g. from a prometheus CounterFunc.
type SessionMetrics struct {
	// FramesSent counts I-frame transmissions, resends included.
	FramesSent *xsync.Counter
	// FramesAcked counts I-frames acknowledged with RR.
	FramesAcked *xsync.Counter
	// FramesReceived counts new I-frames delivered to the caller.
	FramesReceived *xsync.Counter
	// Retransmissions counts resends caused by a timeout or a REJ.
	Retransmissions *xsync.Counter
	// Timeouts counts acknowledgement waits that expired.
	Timeouts *xsync.Counter
	// RejectsReceived counts REJ frames seen by the Transmitter.
	RejectsReceived *xsync.Counter
	// RejectsSent counts REJ frames sent by the Receiver.
	RejectsSent *xsync.Counter
	// Duplicates counts duplicate I-frames dropped by the Receiver.
	Duplicates *xsync.Counter
	// BytesSent counts payload bytes acknowledged by the peer.
	BytesSent *xsync.Counter
	// BytesReceived counts payload bytes delivered to the caller.
	BytesReceived *xsync.Counter
}

func newSessionMetrics() *SessionMetrics {
	return &SessionMetrics{
		FramesSent:      xsync.NewCounter(),
		FramesAcked:     xsync.NewCounter(),
		FramesReceived:  xsync.NewCounter(),
		Retransmissions: xsync.NewCounter(),
		Timeouts:        xsync.NewCounter(),
		RejectsReceived: xsync.NewCounter(),
		RejectsSent:     xsync.NewCounter(),
		Duplicates:      xsync.NewCounter(),
		BytesSent:       xsync.NewCounter(),
		BytesReceived:   xsync.NewCounter(),
	}
}

func (m *SessionMetrics) reset() {
	m.FramesSent.Reset()
	m.FramesAcked.Reset()
	m.FramesReceived.Reset()
	m.Retransmissions.Reset()
	m.Timeouts.Reset()
	m.RejectsReceived.Reset()
	m.RejectsSent.Reset()
	m.Duplicates.Reset()
	m.BytesSent.Reset()
	m.BytesReceived.Reset()
}

// Statistics is a point-in-time copy of a session's counters.
type Statistics struct {
	Role            Role
	FramesSent      int64
	FramesAcked     int64
	FramesReceived  int64
	Retransmissions int64
	Timeouts        int64
	RejectsReceived int64
	RejectsSent     int64
	Duplicates      int64
	BytesSent       int64
	BytesReceived   int64
	Elapsed         time.Duration
}

func (m *SessionMetrics) snapshot(role Role, elapsed time.Duration) Statistics {
	return Statistics{
		Role:            role,
		FramesSent:      m.FramesSent.Value(),
		FramesAcked:     m.FramesAcked.Value(),
		FramesReceived:  m.FramesReceived.Value(),
		Retransmissions: m.Retransmissions.Value(),
		Timeouts:        m.Timeouts.Value(),
		RejectsReceived: m.RejectsReceived.Value(),
		RejectsSent:     m.RejectsSent.Value(),
		Duplicates:      m.Duplicates.Value(),
		BytesSent:       m.BytesSent.Value(),
		BytesReceived:   m.BytesReceived.Value(),
		Elapsed:         elapsed,
	}
}

// KeyValues flattens the statistics into logger key-value pairs.
func (s Statistics) KeyValues() []any {
	return []any{
		"role", s.Role.String(),
		"framesSent", s.FramesSent,
		"framesAcked", s.FramesAcked,
		"framesReceived", s.FramesReceived,
		"retransmissions", s.Retransmissions,
		"timeouts", s.Timeouts,
		"rejectsReceived", s.RejectsReceived,
		"rejectsSent", s.RejectsSent,
		"duplicates", s.Duplicates,
		"bytesSent", s.BytesSent,
		"bytesReceived", s.BytesReceived,
		"elapsed", s.Elapsed,
	}
}
