package link

import "errors"

// Session-level errors.
var (
	// ErrConnection indicates the open handshake never completed within the
	// retry budget. The session must not be reused.
	ErrConnection = errors.New("link: connection handshake failed")

	// ErrTimeoutExceeded indicates every transmission attempt timed out or was
	// rejected. Returned by Send, the session is closed as a side effect.
	ErrTimeoutExceeded = errors.New("link: retransmission limit exceeded")

	// ErrClose indicates the close handshake could not be completed. The
	// transport is released regardless.
	ErrClose = errors.New("link: close handshake failed")

	// ErrPeerClosed indicates the peer started the disconnect handshake.
	ErrPeerClosed = errors.New("link: peer closed the connection")

	// ErrSessionClosed indicates an operation on a session that is not established.
	ErrSessionClosed = errors.New("link: session is not established")

	// ErrWrongRole indicates an operation that the session's role cannot perform,
	// such as Receive on a Transmitter.
	ErrWrongRole = errors.New("link: operation not permitted for role")

	// ErrTransport wraps failures reported by the transport collaborator. It is
	// fatal: Send and Receive close the session and release the transport.
	ErrTransport = errors.New("link: transport failure")
)

// Frame-level errors.
var (
	// ErrChecksum indicates a BCC2 mismatch. The frame was rejected with REJ and
	// the peer will resend it; the caller may simply receive again.
	ErrChecksum = errors.New("link: payload checksum mismatch")

	// ErrProtocol indicates a malformed byte sequence inside an information
	// frame, or a frame larger than the configured maximum. Recoverable.
	ErrProtocol = errors.New("link: protocol violation")

	// ErrFraming indicates malformed stuffing or delimiters found by the codec.
	ErrFraming = errors.New("link: malformed frame")

	// ErrHeaderCheck indicates a BCC1 mismatch found by the codec.
	ErrHeaderCheck = errors.New("link: header checksum mismatch")
)

// ErrWouldBlock is returned by Transport.ReadTimeout when no byte arrived within
// the requested timeout. It is not a failure.
var ErrWouldBlock = errors.New("link: no data available")
