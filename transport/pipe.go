package transport

import (
	"io"
	"sync"
	"time"

	"github.com/arloliu/go-datalink/internal/pool"
	"github.com/arloliu/go-datalink/link"
)

// DefaultPipeBuffer is the number of bytes buffered in each direction of a Pipe.
const DefaultPipeBuffer = 64 * 1024

// WriteFilter rewrites the bytes of one Write call before they enter the pipe.
// Returning an empty slice drops them. It is used to simulate a lossy or
// noisy line.
type WriteFilter func(p []byte) []byte

// PipeEnd is one end of an in-memory, full-duplex byte pipe.
//
// Bytes written before the peer end is closed remain readable afterwards;
// once they are drained, reads fail with io.EOF.
type PipeEnd struct {
	in  chan byte
	out chan byte

	done     chan struct{}
	peerDone chan struct{}
	once     *sync.Once

	mu     sync.Mutex
	filter WriteFilter
}

var _ link.Transport = (*PipeEnd)(nil)

// Pipe creates two connected PipeEnds, each buffering up to bufSize bytes
// per direction. A bufSize <= 0 selects DefaultPipeBuffer.
func Pipe(bufSize int) (*PipeEnd, *PipeEnd) {
	if bufSize <= 0 {
		bufSize = DefaultPipeBuffer
	}

	ab := make(chan byte, bufSize)
	ba := make(chan byte, bufSize)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &PipeEnd{in: ba, out: ab, done: aDone, peerDone: bDone, once: &sync.Once{}}
	b := &PipeEnd{in: ab, out: ba, done: bDone, peerDone: aDone, once: &sync.Once{}}

	return a, b
}

// SetWriteFilter installs f for subsequent writes on this end. A nil f removes it.
func (p *PipeEnd) SetWriteFilter(f WriteFilter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filter = f
}

// ReadTimeout returns the next byte, or link.ErrWouldBlock if none arrived within timeout.
func (p *PipeEnd) ReadTimeout(timeout time.Duration) (byte, error) {
	select {
	case <-p.done:
		return 0, io.ErrClosedPipe
	default:
	}

	select {
	case b := <-p.in:
		return b, nil
	default:
	}

	select {
	case <-p.peerDone:
		return 0, io.EOF
	default:
	}

	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case b := <-p.in:
		return b, nil
	case <-p.peerDone:
		select {
		case b := <-p.in:
			return b, nil
		default:
			return 0, io.EOF
		}
	case <-p.done:
		return 0, io.ErrClosedPipe
	case <-timer.C:
		return 0, link.ErrWouldBlock
	}
}

// Write copies data into the pipe. It blocks while the buffer is full.
//
// The returned count is len(data) even when a write filter dropped or grew
// the bytes, so callers see the line as accepting the whole frame.
func (p *PipeEnd) Write(data []byte) (int, error) {
	p.mu.Lock()
	filter := p.filter
	p.mu.Unlock()

	wire := data
	if filter != nil {
		wire = filter(append([]byte(nil), data...))
	}

	for _, b := range wire {
		select {
		case <-p.done:
			return 0, io.ErrClosedPipe
		case <-p.peerDone:
			return 0, io.ErrClosedPipe
		case p.out <- b:
		}
	}

	return len(data), nil
}

// Close closes this end. The peer can still drain bytes already written.
func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })

	return nil
}
