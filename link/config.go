package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-datalink/logger"
)

// Role selects which side of the link a session plays.
type Role int

const (
	// Transmitter opens the link, sends information frames and starts the close handshake.
	Transmitter Role = iota
	// Receiver waits for the link, receives information frames and answers the close handshake.
	Receiver
)

func (r Role) String() string {
	switch r {
	case Transmitter:
		return "transmitter"
	case Receiver:
		return "receiver"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts "tx"/"transmitter" and "rx"/"receiver".
func ParseRole(s string) (Role, error) {
	switch s {
	case "tx", "transmitter":
		return Transmitter, nil
	case "rx", "receiver":
		return Receiver, nil
	default:
		return 0, fmt.Errorf("link: unknown role %q", s)
	}
}

// Default configuration values.
const (
	DefaultMaxRetransmissions = 3
	DefaultTimeout            = 3 * time.Second
	DefaultPollInterval       = 100 * time.Millisecond
	DefaultMaxFrameSize       = 64 * 1024
)

// Configuration limits.
const (
	MaxRetransmissionsLimit = 255

	MinPollInterval = time.Millisecond
	MaxPollInterval = time.Second
)

// Config holds the parameters of one link session.
//
// A Config is immutable once NewConfig returns.
type Config struct {
	transport Transport
	role      Role

	// maxRetransmissions is the number of resends after the first transmission.
	maxRetransmissions int

	// timeout bounds the wait for each acknowledgement.
	timeout time.Duration

	// pollInterval bounds a single transport read so deadlines and context
	// cancellation are noticed promptly.
	pollInterval time.Duration

	// maxFrameSize is the largest accepted information field, after destuffing.
	maxFrameSize int

	clock  Clock
	logger logger.Logger
}

// NewConfig creates a session configuration for the given transport.
//
// The default role is Transmitter. opts are functional options applied in
// order; see With* functions.
func NewConfig(t Transport, opts ...Option) (*Config, error) {
	if t == nil {
		return nil, errors.New("link: transport must not be nil")
	}

	cfg := &Config{
		transport:          t,
		role:               Transmitter,
		maxRetransmissions: DefaultMaxRetransmissions,
		timeout:            DefaultTimeout,
		pollInterval:       DefaultPollInterval,
		maxFrameSize:       DefaultMaxFrameSize,
		clock:              WallClock(),
		logger:             logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Transport returns the configured transport.
func (cfg *Config) Transport() Transport { return cfg.transport }

// Role returns the configured role.
func (cfg *Config) Role() Role { return cfg.role }

// IsTransmitter returns true if the session sends information frames.
func (cfg *Config) IsTransmitter() bool { return cfg.role == Transmitter }

// IsReceiver returns true if the session receives information frames.
func (cfg *Config) IsReceiver() bool { return cfg.role == Receiver }

// MaxRetransmissions returns the number of resends allowed after the first transmission.
func (cfg *Config) MaxRetransmissions() int { return cfg.maxRetransmissions }

// Attempts returns the total number of transmissions per frame (first + resends).
func (cfg *Config) Attempts() int { return cfg.maxRetransmissions + 1 }

// Timeout returns the acknowledgement timeout.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// PollInterval returns the upper bound of one transport read.
func (cfg *Config) PollInterval() time.Duration { return cfg.pollInterval }

// MaxFrameSize returns the largest accepted information field.
func (cfg *Config) MaxFrameSize() int { return cfg.maxFrameSize }

// Clock returns the clock used for deadlines.
func (cfg *Config) Clock() Clock { return cfg.clock }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithRole sets the session role.
func WithRole(r Role) Option {
	return optFunc(func(cfg *Config) error {
		if r != Transmitter && r != Receiver {
			return fmt.Errorf("link: invalid role %d", int(r))
		}
		cfg.role = r

		return nil
	})
}

// WithTransmitter sets the Transmitter role. This is the default.
func WithTransmitter() Option {
	return WithRole(Transmitter)
}

// WithReceiver sets the Receiver role.
func WithReceiver() Option {
	return WithRole(Receiver)
}

// WithMaxRetransmissions sets how many times a frame is resent after its
// first transmission. Must be in [0, MaxRetransmissionsLimit].
func WithMaxRetransmissions(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxRetransmissionsLimit {
			return fmt.Errorf("link: max retransmissions %d out of range [0, %d]", n, MaxRetransmissionsLimit)
		}
		cfg.maxRetransmissions = n

		return nil
	})
}

// WithTimeout sets the acknowledgement timeout.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("link: timeout must be positive")
		}
		cfg.timeout = d

		return nil
	})
}

// WithPollInterval sets the upper bound of a single transport read.
func WithPollInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("link: poll interval %v out of range [%v, %v]", d, MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithMaxFrameSize sets the largest information field the receiver accepts.
func WithMaxFrameSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n <= 0 {
			return errors.New("link: max frame size must be positive")
		}
		cfg.maxFrameSize = n

		return nil
	})
}

// WithClock sets the clock used for deadlines.
func WithClock(c Clock) Option {
	return optFunc(func(cfg *Config) error {
		if c == nil {
			return errors.New("link: clock must not be nil")
		}
		cfg.clock = c

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
