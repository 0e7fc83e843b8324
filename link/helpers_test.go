package link

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-datalink/logger"
)

// fakeClock only moves when the transport reports an idle read.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// scriptedTransport feeds queued bytes to the session and records every
// frame written. When the queue is empty a read consumes its whole timeout on
// the fake clock and returns ErrWouldBlock.
type scriptedTransport struct {
	clock *fakeClock

	rx      []byte
	writes  [][]byte
	closed  int
	respond func(frame []byte) []byte
	readErr error

	writeErr error
}

var _ Transport = (*scriptedTransport)(nil)

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{clock: newFakeClock()}
}

// queue appends bytes the session will read.
func (tr *scriptedTransport) queue(frames ...[]byte) {
	for _, f := range frames {
		tr.rx = append(tr.rx, f...)
	}
}

func (tr *scriptedTransport) ReadTimeout(timeout time.Duration) (byte, error) {
	if tr.readErr != nil {
		return 0, tr.readErr
	}
	if len(tr.rx) == 0 {
		tr.clock.Advance(timeout)
		return 0, ErrWouldBlock
	}

	b := tr.rx[0]
	tr.rx = tr.rx[1:]

	return b, nil
}

func (tr *scriptedTransport) Write(p []byte) (int, error) {
	if tr.writeErr != nil {
		return 0, tr.writeErr
	}
	frame := append([]byte(nil), p...)
	tr.writes = append(tr.writes, frame)

	if tr.respond != nil {
		tr.rx = append(tr.rx, tr.respond(frame)...)
	}

	return len(p), nil
}

func (tr *scriptedTransport) Close() error {
	tr.closed++
	return nil
}

func (tr *scriptedTransport) lastWrite() []byte {
	if len(tr.writes) == 0 {
		return nil
	}

	return tr.writes[len(tr.writes)-1]
}

func quietLogger() logger.Logger {
	return logger.NewSlogWriter(io.Discard, logger.ErrorLevel)
}

func testConfig(t *testing.T, tr *scriptedTransport, role Role, opts ...Option) *Config {
	t.Helper()

	base := []Option{
		WithRole(role),
		WithClock(tr.clock),
		WithLogger(quietLogger()),
		WithTimeout(3 * time.Second),
		WithPollInterval(100 * time.Millisecond),
	}

	cfg, err := NewConfig(tr, append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

// establishedSession returns a session that skipped the open handshake.
func establishedSession(t *testing.T, tr *scriptedTransport, role Role, opts ...Option) *Session {
	t.Helper()

	s := newSession(testConfig(t, tr, role, opts...))
	s.state.Set(EstablishedState)
	s.openedAt = tr.clock.Now()

	return s
}

func sup(address, control byte) []byte {
	return EncodeSupervisory(address, control)
}

func rr(n uint8) []byte  { return sup(AddrTx, ControlRR(n)) }
func rej(n uint8) []byte { return sup(AddrTx, ControlREJ(n)) }

func iframe(seq uint8, payload []byte) []byte {
	return EncodeInformationFrame(AddrTx, seq, payload)
}
