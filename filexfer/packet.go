package filexfer

import (
	"encoding/binary"
	"fmt"
)

// Packet control field values.
const (
	CtrlData  byte = 0x01
	CtrlStart byte = 0x02
	CtrlEnd   byte = 0x03
)

// TLV types carried by start and end packets.
const (
	TypeSize byte = 0x00
	TypeName byte = 0x01
)

// MaxNameLength is the longest file name a control packet can carry.
const MaxNameLength = 255

// MaxChunkSize is the largest data field expressible by L2 L1.
const MaxChunkSize = 0xFFFF

// dataHeaderSize is C, N, L2, L1.
const dataHeaderSize = 4

// ControlPacket is a decoded start or end packet.
type ControlPacket struct {
	Control byte
	Size    uint64
	Name    string
}

// IsStart reports whether p opens a transfer.
func (p ControlPacket) IsStart() bool { return p.Control == CtrlStart }

// IsEnd reports whether p closes a transfer.
func (p ControlPacket) IsEnd() bool { return p.Control == CtrlEnd }

// EncodeControl builds a start or end packet:
//
//	C | T=0 L=8 size(big endian) | T=1 L=len(name) name
func EncodeControl(control byte, size uint64, name string) ([]byte, error) {
	if control != CtrlStart && control != CtrlEnd {
		return nil, fmt.Errorf("%w: control 0x%02X is not start or end", ErrBadPacket, control)
	}
	if len(name) == 0 || len(name) > MaxNameLength {
		return nil, fmt.Errorf("%w: file name length %d out of range [1, %d]", ErrBadPacket, len(name), MaxNameLength)
	}

	buf := make([]byte, 0, 1+2+8+2+len(name))
	buf = append(buf, control, TypeSize, 8)
	buf = binary.BigEndian.AppendUint64(buf, size)
	buf = append(buf, TypeName, byte(len(name)))
	buf = append(buf, name...)

	return buf, nil
}

// DecodeControl parses a start or end packet. Unknown TLV types are skipped;
// both the size and the name must be present.
func DecodeControl(p []byte) (ControlPacket, error) {
	if len(p) == 0 || (p[0] != CtrlStart && p[0] != CtrlEnd) {
		return ControlPacket{}, fmt.Errorf("%w: not a control packet", ErrBadPacket)
	}

	pkt := ControlPacket{Control: p[0]}
	var hasSize, hasName bool

	for rest := p[1:]; len(rest) > 0; {
		if len(rest) < 2 {
			return ControlPacket{}, fmt.Errorf("%w: truncated TLV header", ErrBadPacket)
		}
		t, l := rest[0], int(rest[1])
		if len(rest) < 2+l {
			return ControlPacket{}, fmt.Errorf("%w: TLV type %d wants %d bytes, %d left", ErrBadPacket, t, l, len(rest)-2)
		}
		v := rest[2 : 2+l]
		rest = rest[2+l:]

		switch t {
		case TypeSize:
			if l == 0 || l > 8 {
				return ControlPacket{}, fmt.Errorf("%w: file size field of %d bytes", ErrBadPacket, l)
			}
			var size uint64
			for _, b := range v {
				size = size<<8 | uint64(b)
			}
			pkt.Size = size
			hasSize = true
		case TypeName:
			if l == 0 {
				return ControlPacket{}, fmt.Errorf("%w: empty file name", ErrBadPacket)
			}
			pkt.Name = string(v)
			hasName = true
		}
	}

	if !hasSize || !hasName {
		return ControlPacket{}, fmt.Errorf("%w: control packet without size or name", ErrBadPacket)
	}

	return pkt, nil
}

// DataPacket is a decoded data packet.
type DataPacket struct {
	Seq  uint8
	Data []byte
}

// EncodeData builds a data packet: C=1 | N | L2 | L1 | data.
func EncodeData(seq uint8, data []byte) ([]byte, error) {
	if len(data) > MaxChunkSize {
		return nil, fmt.Errorf("%w: data field of %d bytes exceeds %d", ErrBadPacket, len(data), MaxChunkSize)
	}

	buf := make([]byte, dataHeaderSize, dataHeaderSize+len(data))
	buf[0] = CtrlData
	buf[1] = seq
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(data)))

	return append(buf, data...), nil
}

// DecodeData parses a data packet. The returned Data aliases p.
func DecodeData(p []byte) (DataPacket, error) {
	if len(p) < dataHeaderSize || p[0] != CtrlData {
		return DataPacket{}, fmt.Errorf("%w: not a data packet", ErrBadPacket)
	}

	k := int(binary.BigEndian.Uint16(p[2:4]))
	if len(p)-dataHeaderSize != k {
		return DataPacket{}, fmt.Errorf("%w: data length field %d, got %d bytes", ErrBadPacket, k, len(p)-dataHeaderSize)
	}

	return DataPacket{Seq: p[1], Data: p[dataHeaderSize:]}, nil
}
