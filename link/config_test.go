package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	require := require.New(t)

	tr := newScriptedTransport()
	cfg, err := NewConfig(tr)
	require.NoError(err)

	require.Same(tr, cfg.Transport())
	require.Equal(Transmitter, cfg.Role())
	require.True(cfg.IsTransmitter())
	require.False(cfg.IsReceiver())
	require.Equal(DefaultMaxRetransmissions, cfg.MaxRetransmissions())
	require.Equal(DefaultMaxRetransmissions+1, cfg.Attempts())
	require.Equal(DefaultTimeout, cfg.Timeout())
	require.Equal(DefaultPollInterval, cfg.PollInterval())
	require.Equal(DefaultMaxFrameSize, cfg.MaxFrameSize())
	require.NotNil(cfg.Clock())
	require.NotNil(cfg.GetLogger())
}

func TestNewConfig_Options(t *testing.T) {
	require := require.New(t)

	tr := newScriptedTransport()
	cfg, err := NewConfig(tr,
		WithReceiver(),
		WithMaxRetransmissions(0),
		WithTimeout(500*time.Millisecond),
		WithPollInterval(10*time.Millisecond),
		WithMaxFrameSize(256),
		WithClock(tr.clock),
	)
	require.NoError(err)

	require.True(cfg.IsReceiver())
	require.Equal(1, cfg.Attempts())
	require.Equal(500*time.Millisecond, cfg.Timeout())
	require.Equal(10*time.Millisecond, cfg.PollInterval())
	require.Equal(256, cfg.MaxFrameSize())
	require.Same(tr.clock, cfg.Clock())
}

func TestNewConfig_Invalid(t *testing.T) {
	tr := newScriptedTransport()

	_, err := NewConfig(nil)
	require.Error(t, err)

	invalid := map[string]Option{
		"role":             WithRole(Role(7)),
		"negative retries": WithMaxRetransmissions(-1),
		"too many retries": WithMaxRetransmissions(MaxRetransmissionsLimit + 1),
		"zero timeout":     WithTimeout(0),
		"poll too short":   WithPollInterval(time.Microsecond),
		"poll too long":    WithPollInterval(2 * time.Second),
		"zero frame size":  WithMaxFrameSize(0),
		"nil clock":        WithClock(nil),
		"nil logger":       WithLogger(nil),
	}

	for name, opt := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := NewConfig(tr, opt)
			require.Error(t, err)
		})
	}
}

func TestParseRole(t *testing.T) {
	require := require.New(t)

	for in, want := range map[string]Role{
		"tx": Transmitter, "transmitter": Transmitter,
		"rx": Receiver, "receiver": Receiver,
	} {
		role, err := ParseRole(in)
		require.NoError(err)
		require.Equal(want, role)
	}

	_, err := ParseRole("both")
	require.Error(err)

	require.Equal("transmitter", Transmitter.String())
	require.Equal("receiver", Receiver.String())
	require.Equal("Role(9)", Role(9).String())
}
