package link

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// exchange writes cmd and waits for a reply matching one of accept, resending
// cmd each time the timeout expires, up to cfg.Attempts() transmissions.
//
// It returns an error wrapping ErrTimeoutExceeded when no reply arrived.
func (s *Session) exchange(ctx context.Context, cmd frameKey, accept ...frameKey) (frameKey, error) {
	attempts := s.cfg.Attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := s.write(cmd.encode()); err != nil {
			return frameKey{}, err
		}

		s.logger.Debug("link: command sent", "frame", cmd, "attempt", attempt, "maxAttempts", attempts)

		key, err := s.awaitSupervisory(ctx, s.deadline(), accept...)
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, errDeadline) {
			return frameKey{}, err
		}

		s.metrics.Timeouts.Inc()
		s.logger.Debug("link: reply timeout", "frame", cmd, "attempt", attempt, "timeout", s.cfg.timeout)
	}

	s.logger.Warn("link: no reply, retry budget exhausted", "frame", cmd, "attempts", attempts)

	return frameKey{}, fmt.Errorf("%w: no reply to %s after %d attempts", ErrTimeoutExceeded, cmd, attempts)
}

// deadline returns the end of an acknowledgement wait starting now.
func (s *Session) deadline() time.Time {
	return s.clock.Now().Add(s.cfg.timeout)
}

// openTransmitter sends SET and waits for the Receiver's UA.
func (s *Session) openTransmitter(ctx context.Context) error {
	_, err := s.exchange(ctx, setCommand, uaReply)

	return err
}

// openReceiver waits for a well-formed SET and answers with UA.
//
// Malformed candidates are dropped by the recognizer, which resynchronizes on
// the next flag. There is no timer on this side.
func (s *Session) openReceiver(ctx context.Context) error {
	if _, err := s.awaitSupervisory(ctx, time.Time{}, setCommand); err != nil {
		return err
	}

	s.logger.Debug("link: SET received")

	return s.write(uaReply.encode())
}

// closeTransmitter sends DISC, waits for the Receiver's DISC and answers with UA.
//
// When Send already saw the Receiver's DISC, only the final UA is sent.
func (s *Session) closeTransmitter(ctx context.Context) error {
	if !s.peerDisc {
		if _, err := s.exchange(ctx, discCommand, discReply); err != nil {
			return err
		}
	}

	return s.write(uaFinal.encode())
}

// closeReceiver completes the close handshake started by the Transmitter.
//
// Unless Receive already answered the Transmitter's DISC, it waits for DISC
// without a timer and answers it. It then waits for the final UA, resending
// its DISC whenever the timeout expires or the Transmitter repeats DISC
// because our reply was lost.
func (s *Session) closeReceiver(ctx context.Context) error {
	if !s.peerDisc {
		if _, err := s.awaitSupervisory(ctx, time.Time{}, discCommand); err != nil {
			return err
		}
		if err := s.write(discReply.encode()); err != nil {
			return err
		}
		s.peerDisc = true
	}

	attempts := s.cfg.Attempts()
	for attempt := 1; ; attempt++ {
		key, err := s.awaitSupervisory(ctx, s.deadline(), uaFinal, discCommand)

		switch {
		case err == nil && key == uaFinal:
			return nil
		case err == nil:
			s.logger.Debug("link: DISC repeated by peer", "attempt", attempt)
		case errors.Is(err, errDeadline):
			s.metrics.Timeouts.Inc()
			s.logger.Debug("link: UA timeout", "attempt", attempt, "timeout", s.cfg.timeout)
		default:
			return err
		}

		if attempt >= attempts {
			s.logger.Warn("link: no UA, retry budget exhausted", "attempts", attempts)

			return fmt.Errorf("%w: no UA after %d attempts", ErrTimeoutExceeded, attempts)
		}

		if err := s.write(discReply.encode()); err != nil {
			return err
		}
	}
}
