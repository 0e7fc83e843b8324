package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/arloliu/go-datalink/link"
)

// Conn adapts a net.Conn (TCP socket, serial-over-IP bridge, net.Pipe) to link.Transport.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
}

var _ link.Transport = (*Conn)(nil)

// NewConn wraps conn. The returned Conn owns conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Dial connects to a TCP address.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Conn, error) {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	return NewConn(conn), nil
}

// Accept listens on a TCP address and returns the first connection accepted.
// The listener is closed before Accept returns.
func Accept(ctx context.Context, addr string) (*Conn, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("transport: accept %s: %w", addr, err)
	}

	return NewConn(conn), nil
}

// ReadTimeout reads one byte, waiting at most timeout.
func (c *Conn) ReadTimeout(timeout time.Duration) (byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	b, err := c.reader.ReadByte()
	if err != nil && isTimeout(err) {
		return 0, link.ErrWouldBlock
	}

	return b, err
}

// Write writes p to the connection.
func (c *Conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var ne net.Error

	return errors.As(err, &ne) && ne.Timeout()
}
