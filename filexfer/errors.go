package filexfer

import "errors"

var (
	// ErrBadPacket indicates a packet that cannot be decoded.
	ErrBadPacket = errors.New("filexfer: malformed packet")

	// ErrUnexpectedPacket indicates a well-formed packet arriving out of order,
	// such as data before start or a skipped sequence number.
	ErrUnexpectedPacket = errors.New("filexfer: unexpected packet")

	// ErrSizeMismatch indicates the bytes transferred differ from the announced size.
	ErrSizeMismatch = errors.New("filexfer: file size mismatch")
)
