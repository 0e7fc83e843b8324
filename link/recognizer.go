package link

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errDeadline reports that a wait ran past its deadline. It never leaves the package.
var errDeadline = errors.New("link: deadline reached")

// frameKey identifies a supervisory frame by its address and control bytes.
type frameKey struct {
	address byte
	control byte
}

func (k frameKey) String() string {
	return fmt.Sprintf("%s[0x%02X]", ControlName(k.control), k.address)
}

// Supervisory frames exchanged by the handshakes and the send engine.
var (
	setCommand  = frameKey{AddrTx, CtrlSET}  // Transmitter opens
	uaReply     = frameKey{AddrTx, CtrlUA}   // Receiver accepts SET
	discCommand = frameKey{AddrTx, CtrlDISC} // Transmitter closes
	discReply   = frameKey{AddrRx, CtrlDISC} // Receiver closes
	uaFinal     = frameKey{AddrRx, CtrlUA}   // Transmitter accepts the Receiver's DISC
)

// Supervisory frames are replies from the Receiver, so RR and REJ carry AddrTx.
func rrKey(n uint8) frameKey  { return frameKey{AddrTx, ControlRR(n)} }
func rejKey(n uint8) frameKey { return frameKey{AddrTx, ControlREJ(n)} }

func (k frameKey) encode() []byte {
	return EncodeSupervisory(k.address, k.control)
}

type recState int

const (
	recStart recState = iota
	recFlag
	recAddr
	recCtrl
	recBCC
)

// recognizer is the supervisory frame state machine
// FLAG -> Address -> Control -> BCC1 -> FLAG.
//
// Any unexpected byte restarts the machine; a FLAG in the middle of a frame
// is taken as the opening flag of a new one.
type recognizer struct {
	accept []frameKey
	state  recState
	addr   byte
	ctrl   byte
}

func newRecognizer(accept ...frameKey) *recognizer {
	return &recognizer{accept: accept}
}

func (r *recognizer) reset() {
	r.state = recStart
}

func (r *recognizer) acceptsAddress(a byte) bool {
	for _, k := range r.accept {
		if k.address == a {
			return true
		}
	}

	return false
}

func (r *recognizer) accepts(a, c byte) bool {
	for _, k := range r.accept {
		if k.address == a && k.control == c {
			return true
		}
	}

	return false
}

// feed advances the machine by one byte. It returns true and the recognized
// frame when b is the closing flag of an accepted frame.
func (r *recognizer) feed(b byte) (frameKey, bool) {
	switch r.state {
	case recStart:
		if b == Flag {
			r.state = recFlag
		}

	case recFlag:
		switch {
		case b == Flag:
			// Repeated flags between frames.
		case r.acceptsAddress(b):
			r.addr = b
			r.state = recAddr
		default:
			r.state = recStart
		}

	case recAddr:
		switch {
		case b == Flag:
			r.state = recFlag
		case r.accepts(r.addr, b):
			r.ctrl = b
			r.state = recCtrl
		default:
			r.state = recStart
		}

	case recCtrl:
		switch {
		case b == BCC1(r.addr, r.ctrl):
			r.state = recBCC
		case b == Flag:
			r.state = recFlag
		default:
			r.state = recStart
		}

	case recBCC:
		if b == Flag {
			r.state = recStart
			return frameKey{r.addr, r.ctrl}, true
		}
		r.state = recStart
	}

	return frameKey{}, false
}

// readByte reads one byte from the transport.
//
// A zero deadline waits until ctx is done. Each transport read is bounded by
// the poll interval so the deadline and ctx are checked on every iteration.
func (s *Session) readByte(ctx context.Context, deadline time.Time) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		wait := s.cfg.pollInterval
		if !deadline.IsZero() {
			remaining := deadline.Sub(s.clock.Now())
			if remaining <= 0 {
				return 0, errDeadline
			}
			wait = min(wait, remaining)
		}

		b, err := s.transport.ReadTimeout(wait)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrWouldBlock) {
			return 0, fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
	}
}

// awaitSupervisory scans incoming bytes until one of the accepted frames is
// recognized, the deadline passes (errDeadline), or ctx is done.
func (s *Session) awaitSupervisory(ctx context.Context, deadline time.Time, accept ...frameKey) (frameKey, error) {
	rec := newRecognizer(accept...)

	for {
		b, err := s.readByte(ctx, deadline)
		if err != nil {
			return frameKey{}, err
		}

		if key, ok := rec.feed(b); ok {
			return key, nil
		}
	}
}
