package link

import (
	"fmt"
)

// Frame delimiters and the escape byte.
const (
	// Flag opens and closes every frame on the wire.
	Flag byte = 0x7E

	// Esc introduces a stuffed byte inside the information field.
	Esc byte = 0x7D

	// escFlag and escEsc are the second bytes of the stuffed forms of Flag and Esc.
	escFlag byte = 0x5E
	escEsc  byte = 0x5D
)

// Address field values.
const (
	// AddrTx marks commands sent by the Transmitter and replies sent by the Receiver.
	AddrTx byte = 0x03

	// AddrRx marks commands sent by the Receiver and replies sent by the Transmitter.
	AddrRx byte = 0x01
)

// Control field values.
const (
	CtrlSET  byte = 0x03
	CtrlUA   byte = 0x07
	CtrlDISC byte = 0x0B
	CtrlI0   byte = 0x00
	CtrlI1   byte = 0x40
	CtrlRR0  byte = 0x05
	CtrlRR1  byte = 0x85
	CtrlREJ0 byte = 0x01
	CtrlREJ1 byte = 0x81
)

// SupervisorySize is the fixed wire size of SET, UA, DISC, RR and REJ frames.
const SupervisorySize = 5

// infoOverhead is the number of unstuffed bytes an I-frame adds around its
// payload: two flags, address, control, BCC1 and BCC2.
const infoOverhead = 6

// ControlI returns the I-frame control byte for sequence number seq (0 or 1).
func ControlI(seq uint8) byte {
	return (seq & 1) << 6
}

// ControlRR returns the RR control byte acknowledging up to, and expecting, n.
func ControlRR(n uint8) byte {
	return (n&1)<<7 | 0x05
}

// ControlREJ returns the REJ control byte requesting a resend of frame n.
func ControlREJ(n uint8) byte {
	return (n&1)<<7 | 0x01
}

// IsInformation reports whether c is an I-frame control byte.
func IsInformation(c byte) bool {
	return c == CtrlI0 || c == CtrlI1
}

// IsRR reports whether c is a Receiver Ready control byte.
func IsRR(c byte) bool {
	return c == CtrlRR0 || c == CtrlRR1
}

// IsREJ reports whether c is a Reject control byte.
func IsREJ(c byte) bool {
	return c == CtrlREJ0 || c == CtrlREJ1
}

// SequenceOf extracts the sequence number carried by an I, RR or REJ control byte.
func SequenceOf(c byte) uint8 {
	if IsInformation(c) {
		return (c >> 6) & 1
	}

	return (c >> 7) & 1
}

// ControlName returns a short mnemonic for c, e.g. "RR(1)". Used in logs.
func ControlName(c byte) string {
	switch {
	case c == CtrlSET:
		return "SET"
	case c == CtrlUA:
		return "UA"
	case c == CtrlDISC:
		return "DISC"
	case IsInformation(c):
		return fmt.Sprintf("I(%d)", SequenceOf(c))
	case IsRR(c):
		return fmt.Sprintf("RR(%d)", SequenceOf(c))
	case IsREJ(c):
		return fmt.Sprintf("REJ(%d)", SequenceOf(c))
	default:
		return fmt.Sprintf("0x%02X", c)
	}
}

// BCC1 computes the header check byte over the unstuffed address and control.
func BCC1(address, control byte) byte {
	return address ^ control
}

// BCC2 computes the XOR of all bytes in data. BCC2 of an empty slice is 0.
func BCC2(data []byte) byte {
	var bcc byte
	for _, b := range data {
		bcc ^= b
	}

	return bcc
}

// EncodeSupervisory builds the 5-byte supervisory or unnumbered frame
// FLAG, address, control, address^control, FLAG.
func EncodeSupervisory(address, control byte) []byte {
	return []byte{Flag, address, control, BCC1(address, control), Flag}
}

// EncodeInformationFrame builds an I-frame carrying payload with sequence number seq.
//
// The header (address, control, BCC1) is never stuffed; the payload followed by
// BCC2 is stuffed as one region before the closing flag is appended.
func EncodeInformationFrame(address byte, seq uint8, payload []byte) []byte {
	control := ControlI(seq)

	frame := make([]byte, 0, stuffedCap(len(payload)))
	frame = append(frame, Flag, address, control, BCC1(address, control))
	frame = appendStuffed(frame, payload)
	frame = appendStuffed(frame, []byte{BCC2(payload)})

	return append(frame, Flag)
}

// stuffedCap estimates the capacity of an I-frame for an n-byte payload,
// leaving room for a few escapes before append has to grow the slice.
func stuffedCap(n int) int {
	return n + infoOverhead + n/16 + 2
}

// Stuff returns data with every Flag and Esc byte replaced by its two-byte escape.
func Stuff(data []byte) []byte {
	return appendStuffed(make([]byte, 0, len(data)+len(data)/16+1), data)
}

func appendStuffed(dst, data []byte) []byte {
	for _, b := range data {
		switch b {
		case Flag:
			dst = append(dst, Esc, escFlag)
		case Esc:
			dst = append(dst, Esc, escEsc)
		default:
			dst = append(dst, b)
		}
	}

	return dst
}

// Destuff reverses Stuff.
//
// It fails with ErrFraming when Esc is the last byte or is followed by
// anything other than the two defined escape codes, and when an unescaped
// Flag appears inside data.
func Destuff(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))

	for i := 0; i < len(data); i++ {
		b := data[i]
		switch b {
		case Flag:
			return nil, fmt.Errorf("%w: unescaped flag at offset %d", ErrFraming, i)
		case Esc:
			if i+1 >= len(data) {
				return nil, fmt.Errorf("%w: trailing escape byte", ErrFraming)
			}
			i++
			v, ok := unescape(data[i])
			if !ok {
				return nil, fmt.Errorf("%w: invalid escape sequence 0x7D 0x%02X at offset %d", ErrFraming, data[i], i-1)
			}
			out = append(out, v)
		default:
			out = append(out, b)
		}
	}

	return out, nil
}

func unescape(b byte) (byte, bool) {
	switch b {
	case escFlag:
		return Flag, true
	case escEsc:
		return Esc, true
	default:
		return 0, false
	}
}

// InfoFrame is a decoded information frame.
type InfoFrame struct {
	Address  byte
	Sequence uint8
	Payload  []byte
}

// DecodeInformationFrame parses one complete wire I-frame, flags included.
//
// It validates the delimiters, the control byte, BCC1 and BCC2. The returned
// payload does not alias frame.
func DecodeInformationFrame(frame []byte) (InfoFrame, error) {
	if len(frame) < infoOverhead {
		return InfoFrame{}, fmt.Errorf("%w: frame too short (%d bytes)", ErrFraming, len(frame))
	}
	if frame[0] != Flag || frame[len(frame)-1] != Flag {
		return InfoFrame{}, fmt.Errorf("%w: missing frame delimiter", ErrFraming)
	}

	address, control, bcc1 := frame[1], frame[2], frame[3]
	if !IsInformation(control) {
		return InfoFrame{}, fmt.Errorf("%w: control %s is not an I-frame", ErrFraming, ControlName(control))
	}
	if BCC1(address, control) != bcc1 {
		return InfoFrame{}, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrHeaderCheck, bcc1, BCC1(address, control))
	}

	body, err := Destuff(frame[4 : len(frame)-1])
	if err != nil {
		return InfoFrame{}, err
	}
	if len(body) == 0 {
		return InfoFrame{}, fmt.Errorf("%w: missing BCC2", ErrFraming)
	}

	payload, bcc2 := body[:len(body)-1], body[len(body)-1]
	if calc := BCC2(payload); calc != bcc2 {
		return InfoFrame{}, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksum, bcc2, calc)
	}

	return InfoFrame{
		Address:  address,
		Sequence: SequenceOf(control),
		Payload:  payload,
	}, nil
}
