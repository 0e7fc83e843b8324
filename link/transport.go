package link

import "time"

// Transport is the byte stream a session runs on.
//
// Implementations live in the transport package (serial port, net.Conn,
// in-memory pipe). A session owns its transport from Open until Close and is
// the only reader and writer.
type Transport interface {
	// ReadTimeout returns the next byte, waiting at most timeout.
	// It returns ErrWouldBlock when nothing arrived in time; any other error is fatal.
	ReadTimeout(timeout time.Duration) (byte, error)

	// Write writes all of p.
	Write(p []byte) (int, error)

	// Close releases the transport.
	Close() error
}

// Clock supplies the monotonic time used for retransmission deadlines.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// WallClock returns the Clock backed by time.Now.
func WallClock() Clock { return wallClock{} }
