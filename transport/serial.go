package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/arloliu/go-datalink/link"
)

// DefaultSerialReadTimeout is the per-read timeout programmed into the port.
const DefaultSerialReadTimeout = 100 * time.Millisecond

// SerialOption configures OpenSerial.
type SerialOption func(*serial.Config)

// WithReadTimeout sets the port-level read timeout. The driver rounds it to
// tenths of a second on POSIX systems; zero selects DefaultSerialReadTimeout.
func WithReadTimeout(d time.Duration) SerialOption {
	return func(c *serial.Config) {
		if d <= 0 {
			d = DefaultSerialReadTimeout
		}
		c.ReadTimeout = d
	}
}

// WithParity sets the parity mode, serial.ParityNone by default.
func WithParity(p serial.Parity) SerialOption {
	return func(c *serial.Config) { c.Parity = p }
}

// WithStopBits sets the number of stop bits, serial.Stop1 by default.
func WithStopBits(s serial.StopBits) SerialOption {
	return func(c *serial.Config) { c.StopBits = s }
}

// Serial is a link.Transport over a serial port in raw 8-bit mode.
type Serial struct {
	name string
	port io.ReadWriteCloser
	buf  [1]byte
}

var _ link.Transport = (*Serial)(nil)

// OpenSerial opens the named serial device (e.g. /dev/ttyS0, COM1) at baud
// and discards anything already queued on the line.
func OpenSerial(name string, baud int, opts ...SerialOption) (*Serial, error) {
	if baud <= 0 {
		return nil, fmt.Errorf("transport: invalid baud rate %d", baud)
	}

	cfg := newSerialConfig(name, baud, opts...)

	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", name, err)
	}

	if err := port.Flush(); err != nil {
		_ = port.Close()

		return nil, fmt.Errorf("transport: flush %s: %w", name, err)
	}

	return &Serial{name: name, port: port}, nil
}

func newSerialConfig(name string, baud int, opts ...SerialOption) *serial.Config {
	cfg := &serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: DefaultSerialReadTimeout,
		Size:        serial.DefaultSize,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Name returns the device name.
func (s *Serial) Name() string {
	return s.name
}

// ReadTimeout reads one byte. The wait is bounded by the port read timeout, not
// by timeout; the session polls again when the port reports no data.
func (s *Serial) ReadTimeout(_ time.Duration) (byte, error) {
	n, err := s.port.Read(s.buf[:])
	if n == 1 {
		return s.buf[0], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, link.ErrWouldBlock
	}

	return 0, err
}

// Write writes p to the port.
func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close closes the port.
func (s *Serial) Close() error {
	return s.port.Close()
}
