package link

import (
	"context"
	"errors"
	"fmt"
)

// sendResult classifies the outcome of a single transmission attempt so the
// retry loop can decide whether to resend, stop or abort.
type sendResult int

const (
	sendOK         sendResult = iota // Frame acknowledged with RR(Ns^1).
	sendTimeout                      // No acknowledgement before the deadline.
	sendRejected                     // REJ received; resend immediately.
	sendPeerClosed                   // The Receiver sent DISC.
	sendAbort                        // Non-retryable failure (transport error, context done).
)

// Send delivers payload to the Receiver with stop-and-wait ARQ and returns
// the number of bytes written to the wire for the accepted transmission.
//
// The I-frame is resent on every acknowledgement timeout and on every REJ, up
// to MaxRetransmissions resends. When the budget is exhausted the session is
// closed, the transport released, and the error wraps ErrTimeoutExceeded.
//
// Send returns ErrPeerClosed if the Receiver starts the disconnect handshake;
// Close then only sends the final UA.
func (s *Session) Send(ctx context.Context, payload []byte) (int, error) {
	if !s.cfg.IsTransmitter() {
		return 0, fmt.Errorf("%w: %s cannot send", ErrWrongRole, s.cfg.role)
	}
	if !s.state.IsEstablished() {
		return 0, fmt.Errorf("%w: state %s", ErrSessionClosed, s.state.String())
	}

	seq := s.txSequence
	s.lastFrameSent = EncodeInformationFrame(AddrTx, seq, payload)

	attempts := s.cfg.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			s.metrics.Retransmissions.Inc()
		}

		result, err := s.transmitOnce(ctx, seq)

		switch result {
		case sendOK:
			s.txSequence = seq ^ 1
			s.metrics.FramesAcked.Inc()
			s.metrics.BytesSent.Add(int64(len(payload)))

			return len(s.lastFrameSent), nil

		case sendRejected:
			s.metrics.RejectsReceived.Inc()
			s.logger.Debug("link: frame rejected, resending",
				"seq", seq, "attempt", attempt, "maxAttempts", attempts)

		case sendTimeout:
			s.metrics.Timeouts.Inc()
			s.logger.Debug("link: acknowledgement timeout, resending",
				"seq", seq, "attempt", attempt, "maxAttempts", attempts, "timeout", s.cfg.timeout)

		case sendPeerClosed:
			s.peerDisc = true
			s.state.ToClosing(s.cfg.role)
			s.logger.Info("link: peer closed the link during send", "seq", seq)

			return 0, ErrPeerClosed

		case sendAbort:
			return 0, s.abort(err)
		}
	}

	s.logger.Warn("link: retransmission limit exceeded, closing session",
		"seq", seq, "attempts", attempts)
	s.release()

	return 0, fmt.Errorf("%w: %s not acknowledged after %d attempts", ErrTimeoutExceeded, ControlName(ControlI(seq)), attempts)
}

// transmitOnce writes lastFrameSent and waits for the Receiver's verdict.
//
// RR(seq^1) accepts the frame. RR(seq) is the Receiver re-acknowledging the
// previous frame and is ignored; the wait continues against the same deadline.
func (s *Session) transmitOnce(ctx context.Context, seq uint8) (sendResult, error) {
	if err := s.write(s.lastFrameSent); err != nil {
		return sendAbort, err
	}
	s.metrics.FramesSent.Inc()

	deadline := s.deadline()

	for {
		key, err := s.awaitSupervisory(ctx, deadline,
			rrKey(0), rrKey(1), rejKey(0), rejKey(1), discReply)
		if errors.Is(err, errDeadline) {
			return sendTimeout, nil
		}
		if err != nil {
			return sendAbort, err
		}

		switch {
		case key == discReply:
			return sendPeerClosed, nil
		case IsREJ(key.control):
			return sendRejected, nil
		case SequenceOf(key.control) == seq^1:
			return sendOK, nil
		default:
			s.logger.Debug("link: stale acknowledgement ignored", "frame", key, "seq", seq)
		}
	}
}
