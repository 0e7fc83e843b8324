package filexfer

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-datalink/logger"
)

// DefaultChunkSize is the number of file bytes carried by one data packet.
const DefaultChunkSize = 1024

// ProgressFunc is called after every data packet with the bytes transferred
// so far and the announced file size.
type ProgressFunc func(done, total int64)

type options struct {
	chunkSize int
	suffix    string
	logger    logger.Logger
	progress  ProgressFunc
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		chunkSize: DefaultChunkSize,
		logger:    logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// Option configures a Sender or a Receiver.
type Option func(*options) error

// WithChunkSize sets the data bytes per packet. Sender only.
func WithChunkSize(n int) Option {
	return func(o *options) error {
		if n <= 0 || n > MaxChunkSize {
			return fmt.Errorf("filexfer: chunk size %d out of range [1, %d]", n, MaxChunkSize)
		}
		o.chunkSize = n

		return nil
	}
}

// WithNameSuffix inserts suffix before the extension of every received file
// name, so "penguin.gif" is stored as "penguin-received.gif" with suffix
// "-received". Receiver only.
func WithNameSuffix(suffix string) Option {
	return func(o *options) error {
		o.suffix = suffix
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("filexfer: logger must not be nil")
		}
		o.logger = l

		return nil
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) error {
		o.progress = fn
		return nil
	}
}
