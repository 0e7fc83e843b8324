package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-datalink/internal/util"
	"github.com/arloliu/go-datalink/logger"
)

// Session is one open link between a Transmitter and a Receiver.
//
// A Session owns its transport from Open until Close. It is NOT
// goroutine-safe: Send, Receive and Close must be called from one goroutine,
// consistent with the stop-and-wait nature of the protocol. Stats and
// Metrics may be read concurrently.
type Session struct {
	cfg       *Config
	transport Transport
	clock     Clock
	logger    logger.Logger

	state AtomicState

	// txSequence is the sequence number of the next I-frame to send.
	txSequence uint8
	// rxExpected is the sequence number of the next new I-frame to accept.
	rxExpected uint8

	// lastFrameSent is the wire image of the I-frame awaiting acknowledgement.
	lastFrameSent []byte

	// peerDisc is set once the peer's DISC has been seen outside a close handshake.
	peerDisc bool

	parser   *frameParser
	openedAt time.Time
	metrics  *SessionMetrics
}

func newSession(cfg *Config) *Session {
	return &Session{
		cfg:       cfg,
		transport: cfg.transport,
		clock:     cfg.clock,
		logger:    cfg.logger.With("role", cfg.role.String()),
		parser:    newFrameParser(cfg.maxFrameSize),
		metrics:   newSessionMetrics(),
	}
}

// Open runs the open handshake for cfg's role and returns the established session.
//
// The Transmitter sends SET and waits for UA, resending on every timeout up to
// the retry budget. The Receiver waits for SET without a timer, bounded only by
// ctx, and answers with UA.
//
// On failure the transport is released and the error wraps ErrConnection.
func Open(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("link: config is nil")
	}

	s := newSession(cfg)
	s.resetSequences()

	if !s.state.ToOpening(cfg.role) {
		return nil, fmt.Errorf("%w: unexpected state %s", ErrConnection, s.state.String())
	}

	var err error
	if cfg.IsTransmitter() {
		err = s.openTransmitter(ctx)
	} else {
		err = s.openReceiver(ctx)
	}

	if err != nil {
		s.release()

		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	s.state.ToEstablished()
	s.openedAt = s.clock.Now()
	s.logger.Info("link: session established")

	return s, nil
}

// Close runs the close handshake and releases the transport.
//
// The Transmitter sends DISC, waits for the Receiver's DISC under the
// timeout/retry policy and answers with UA. The Receiver waits for the
// Transmitter's DISC (unless Receive already returned ErrPeerClosed), answers
// with DISC and waits for the final UA.
//
// When showStats is true the session statistics are logged at Info level.
// The transport is released even when the handshake fails; the error then
// wraps ErrClose.
func (s *Session) Close(ctx context.Context, showStats bool) error {
	if s.state.IsClosed() {
		return ErrSessionClosed
	}
	if !s.state.ToClosing(s.cfg.role) {
		s.release()

		return fmt.Errorf("%w: unexpected state %s", ErrClose, s.state.String())
	}

	var err error
	if s.cfg.IsTransmitter() {
		err = s.closeTransmitter(ctx)
	} else {
		err = s.closeReceiver(ctx)
	}

	stats := s.Stats()
	s.release()

	if showStats {
		s.logger.Info("link: session statistics", stats.KeyValues()...)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrClose, err)
	}

	s.logger.Info("link: session closed")

	return nil
}

// State returns the current connection state.
func (s *Session) State() State {
	return s.state.Get()
}

// Role returns the session role.
func (s *Session) Role() Role {
	return s.cfg.role
}

// Config returns the session configuration.
func (s *Session) Config() *Config {
	return s.cfg
}

// TxSequence returns the sequence number the next Send will use.
func (s *Session) TxSequence() uint8 {
	return s.txSequence
}

// RxExpected returns the sequence number Receive expects next.
func (s *Session) RxExpected() uint8 {
	return s.rxExpected
}

// LastFrameSent returns a copy of the wire image of the last I-frame sent.
func (s *Session) LastFrameSent() []byte {
	if s.lastFrameSent == nil {
		return nil
	}

	return util.CloneSlice(s.lastFrameSent, 0)
}

// Metrics returns the live counters of the session.
func (s *Session) Metrics() *SessionMetrics {
	return s.metrics
}

// Stats returns a snapshot of the session counters and the time since Open.
func (s *Session) Stats() Statistics {
	var elapsed time.Duration
	if !s.openedAt.IsZero() {
		elapsed = s.clock.Now().Sub(s.openedAt)
	}

	return s.metrics.snapshot(s.cfg.role, elapsed)
}

func (s *Session) resetSequences() {
	s.txSequence = 0
	s.rxExpected = 0
	s.lastFrameSent = nil
	s.peerDisc = false
	s.metrics.reset()
}

// write sends a complete frame to the transport.
func (s *Session) write(frame []byte) error {
	for written := 0; written < len(frame); {
		n, err := s.transport.Write(frame[written:])
		written += n

		if err != nil {
			return fmt.Errorf("%w: write: %w", ErrTransport, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: write: %w", ErrTransport, io.ErrShortWrite)
		}
	}

	return nil
}

// abort releases the transport when err is a transport failure and returns err.
func (s *Session) abort(err error) error {
	if errors.Is(err, ErrTransport) {
		s.logger.Error("link: transport failure, closing session", "error", err)
		s.release()
	}

	return err
}

// release marks the session closed and closes the transport exactly once.
func (s *Session) release() {
	if !s.state.ToClosed() {
		return
	}

	if err := s.transport.Close(); err != nil {
		s.logger.Error("link: failed to close transport", "error", err)
	}
}
