package link

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-datalink/internal/util"
)

type parseState int

const (
	psStart     parseState = iota
	psFlag                 // opening flag seen
	psAddr                 // address seen
	psCtrl                 // control seen
	psUnnumEnd             // valid DISC/SET header, closing flag expected
	psPayload              // inside the stuffed information field
	psEscape               // escape byte seen inside the information field
	psDiscard              // broken frame, skipping to the next flag
)

// parseEvent is what a byte completed, if anything.
type parseEvent int

const (
	evNone  parseEvent = iota
	evInfo             // complete I-frame; seq and body are valid
	evDisc             // DISC command from the Transmitter
	evSet              // SET command from the Transmitter
	evError            // malformed information field; err is set
)

// frameParser reconstructs frames sent by the Transmitter one byte at a time.
//
// Header bytes are validated as they arrive. Header damage silently
// resynchronizes; a FLAG anywhere in the header is treated as the start of a
// new frame. Damage inside the information field is reported with evError so
// the receiver can answer with REJ.
type frameParser struct {
	state   parseState
	control byte
	maxBody int

	// body holds the destuffed information field, BCC2 included.
	body []byte
	err  error
}

func newFrameParser(maxFrameSize int) *frameParser {
	return &frameParser{maxBody: maxFrameSize + 1}
}

func (p *frameParser) reset() {
	p.state = psStart
	p.body = p.body[:0]
	p.err = nil
}

func (p *frameParser) seq() uint8 {
	return SequenceOf(p.control)
}

// feed advances the parser by one byte.
func (p *frameParser) feed(b byte) parseEvent {
	switch p.state {
	case psStart:
		if b == Flag {
			p.state = psFlag
		}

	case psFlag:
		switch b {
		case Flag:
		case AddrTx:
			p.state = psAddr
		default:
			p.state = psStart
		}

	case psAddr:
		switch {
		case b == Flag:
			p.state = psFlag
		case IsInformation(b), b == CtrlDISC, b == CtrlSET:
			p.control = b
			p.state = psCtrl
		default:
			p.state = psStart
		}

	case psCtrl:
		switch {
		case b == BCC1(AddrTx, p.control):
			if IsInformation(p.control) {
				p.body = p.body[:0]
				p.state = psPayload
			} else {
				p.state = psUnnumEnd
			}
		case b == Flag:
			p.state = psFlag
		default:
			p.state = psStart
		}

	case psUnnumEnd:
		if b != Flag {
			p.state = psStart
			return evNone
		}
		p.state = psStart
		if p.control == CtrlDISC {
			return evDisc
		}

		return evSet

	case psPayload:
		switch b {
		case Flag:
			if len(p.body) == 0 {
				// No information field at all: the flag opens a new frame.
				p.state = psFlag
				return evNone
			}
			p.state = psStart

			return evInfo
		case Esc:
			p.state = psEscape
		default:
			return p.append(b)
		}

	case psEscape:
		switch b {
		case escFlag:
			p.state = psPayload
			return p.append(Flag)
		case escEsc:
			p.state = psPayload
			return p.append(Esc)
		case Flag:
			p.state = psFlag
			return p.fail(fmt.Errorf("%w: escape byte before closing flag", ErrProtocol))
		default:
			p.state = psDiscard
			return p.fail(fmt.Errorf("%w: invalid escape sequence 0x7D 0x%02X", ErrProtocol, b))
		}

	case psDiscard:
		if b == Flag {
			p.state = psFlag
		}
	}

	return evNone
}

func (p *frameParser) append(b byte) parseEvent {
	if len(p.body) >= p.maxBody {
		p.state = psDiscard
		return p.fail(fmt.Errorf("%w: information field exceeds %d bytes", ErrProtocol, p.maxBody-1))
	}
	p.body = append(p.body, b)

	return evNone
}

func (p *frameParser) fail(err error) parseEvent {
	p.err = err
	return evError
}

// rxResult classifies a frame handled by receiveFrame.
type rxResult int

const (
	rxNew        rxResult = iota // new payload for the caller
	rxDuplicate                  // repeated frame, acknowledged again and dropped
	rxReconnect                  // repeated SET, acknowledged again
	rxPeerClosed                 // DISC answered
)

// Receive returns the payload of the next new I-frame.
//
// A duplicate frame, caused by a lost RR, is acknowledged again and dropped
// without being returned. When the Transmitter starts the disconnect handshake
// Receive answers its DISC and returns an empty payload with ErrPeerClosed;
// Close then only waits for the final UA.
//
// Errors wrapping ErrChecksum and ErrProtocol are recoverable: the frame was
// rejected with REJ and the Transmitter will resend it, so the caller may call
// Receive again. Receive has no timer and is bounded only by ctx.
func (s *Session) Receive(ctx context.Context) ([]byte, error) {
	if !s.cfg.IsReceiver() {
		return nil, fmt.Errorf("%w: %s cannot receive", ErrWrongRole, s.cfg.role)
	}
	if !s.state.IsEstablished() {
		return nil, fmt.Errorf("%w: state %s", ErrSessionClosed, s.state.String())
	}

	for {
		result, payload, err := s.receiveFrame(ctx)
		if err != nil {
			return nil, s.abort(err)
		}

		switch result {
		case rxNew:
			return payload, nil
		case rxPeerClosed:
			return nil, ErrPeerClosed
		case rxDuplicate, rxReconnect:
			continue
		}
	}
}

// receiveFrame reads bytes until one complete frame from the Transmitter has
// been handled and its response sent.
func (s *Session) receiveFrame(ctx context.Context) (rxResult, []byte, error) {
	p := s.parser
	p.reset()

	for {
		b, err := s.readByte(ctx, time.Time{})
		if err != nil {
			return 0, nil, err
		}

		switch p.feed(b) {
		case evNone:
			continue

		case evInfo:
			return s.handleInformation(p.seq(), p.body)

		case evError:
			if werr := s.reject(); werr != nil {
				return 0, nil, werr
			}
			s.logger.Debug("link: malformed frame rejected", "expected", s.rxExpected, "error", p.err)

			return 0, nil, p.err

		case evDisc:
			if err := s.write(discReply.encode()); err != nil {
				return 0, nil, err
			}
			s.peerDisc = true
			s.state.ToClosing(s.cfg.role)
			s.logger.Info("link: peer closed the link")

			return rxPeerClosed, nil, nil

		case evSet:
			// Our UA was lost and the Transmitter is still opening.
			if err := s.write(uaReply.encode()); err != nil {
				return 0, nil, err
			}
			s.logger.Debug("link: SET repeated by peer, UA resent")

			return rxReconnect, nil, nil
		}
	}
}

// handleInformation validates BCC2 of a complete I-frame, classifies it by
// sequence number and sends RR or REJ.
func (s *Session) handleInformation(seq uint8, body []byte) (rxResult, []byte, error) {
	payload, bcc2 := body[:len(body)-1], body[len(body)-1]

	if calc := BCC2(payload); calc != bcc2 {
		if err := s.reject(); err != nil {
			return 0, nil, err
		}
		s.logger.Debug("link: checksum mismatch, frame rejected",
			"seq", seq, "expected", s.rxExpected, "wire", bcc2, "computed", calc)

		return 0, nil, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksum, bcc2, calc)
	}

	if seq != s.rxExpected {
		if err := s.write(rrKey(s.rxExpected).encode()); err != nil {
			return 0, nil, err
		}
		s.metrics.Duplicates.Inc()
		s.logger.Debug("link: duplicate frame dropped", "seq", seq, "expected", s.rxExpected)

		return rxDuplicate, nil, nil
	}

	next := s.rxExpected ^ 1
	if err := s.write(rrKey(next).encode()); err != nil {
		return 0, nil, err
	}
	s.rxExpected = next
	s.metrics.FramesReceived.Inc()
	s.metrics.BytesReceived.Add(int64(len(payload)))

	return rxNew, util.CloneSlice(payload, 0), nil
}

// reject asks the Transmitter to resend the expected frame.
func (s *Session) reject() error {
	if err := s.write(rejKey(s.rxExpected).encode()); err != nil {
		return err
	}
	s.metrics.RejectsSent.Inc()

	return nil
}
