// Package transport provides link.Transport implementations: a serial port,
// a net.Conn adapter for TCP or serial-over-IP bridges, and an in-memory
// Pipe for tests and loopback runs.
//
// Every ReadTimeout returns link.ErrWouldBlock when no byte arrived in time, so
// the session can check its deadlines and context between reads.
package transport
