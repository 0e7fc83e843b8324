package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arloliu/go-datalink/filexfer"
	"github.com/arloliu/go-datalink/link"
	"github.com/arloliu/go-datalink/logger"
)

const defaultBaud = 38400

type cliConfig struct {
	Role      string
	Port      string
	Baud      int
	Retries   int
	Timeout   time.Duration
	File      string
	Out       string
	ChunkSize int
	Suffix    string
	LogLevel  string
	LogFormat string
	Loopback  bool
	Stats     bool
}

func defaultConfig() cliConfig {
	return cliConfig{
		Baud:      defaultBaud,
		Retries:   link.DefaultMaxRetransmissions,
		Timeout:   link.DefaultTimeout,
		Out:       ".",
		ChunkSize: filexfer.DefaultChunkSize,
		Suffix:    "-received",
		LogLevel:  "info",
		LogFormat: "json",
		Stats:     true,
	}
}

// fileConfig mirrors cliConfig in a TOML file. Keys match the flag names.
type fileConfig struct {
	Role      string `toml:"role"`
	Port      string `toml:"port"`
	Baud      int    `toml:"baud"`
	Retries   int    `toml:"retries"`
	Timeout   string `toml:"timeout"`
	File      string `toml:"file"`
	Out       string `toml:"out"`
	ChunkSize int    `toml:"chunk-size"`
	Suffix    string `toml:"suffix"`
	LogLevel  string `toml:"log-level"`
	LogFormat string `toml:"log-format"`
	Loopback  bool   `toml:"loopback"`
	Stats     bool   `toml:"stats"`
}

// parseArgs builds the configuration from defaults, then the TOML file given
// by -config, then flags set on the command line.
func parseArgs(args []string, output io.Writer) (cliConfig, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("llink", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, "usage: llink -role tx|rx -port /dev/ttyS0|tcp://host:port [-file path] [-out dir] [options]")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "TOML configuration file")
	fs.StringVar(&cfg.Role, "role", cfg.Role, "link role: tx or rx")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "serial device, or tcp://host:port (tx dials, rx listens)")
	fs.IntVar(&cfg.Baud, "baud", cfg.Baud, "serial baud rate")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "maximum retransmissions per frame")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "acknowledgement timeout")
	fs.StringVar(&cfg.File, "file", cfg.File, "file to send (tx)")
	fs.StringVar(&cfg.Out, "out", cfg.Out, "directory for the received file (rx)")
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize, "file bytes per data packet (tx)")
	fs.StringVar(&cfg.Suffix, "suffix", cfg.Suffix, "suffix inserted before the extension of the received file name (rx)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json, console or zerolog")
	fs.BoolVar(&cfg.Loopback, "loopback", cfg.Loopback, "run both roles over an in-memory pipe")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "log session statistics on close")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	if *configPath != "" {
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

		if err := loadFileConfig(*configPath, &cfg, explicit); err != nil {
			return cliConfig{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return cliConfig{}, err
	}

	return cfg, nil
}

// loadFileConfig applies keys defined in the TOML file at path, except those
// overridden by a command-line flag.
func loadFileConfig(path string, cfg *cliConfig, explicit map[string]bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	use := func(key string) bool {
		return meta.IsDefined(key) && !explicit[key]
	}

	if use("role") {
		cfg.Role = strings.TrimSpace(raw.Role)
	}
	if use("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if use("baud") {
		cfg.Baud = raw.Baud
	}
	if use("retries") {
		cfg.Retries = raw.Retries
	}
	if use("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if use("file") {
		cfg.File = raw.File
	}
	if use("out") {
		cfg.Out = raw.Out
	}
	if use("chunk-size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if use("suffix") {
		cfg.Suffix = raw.Suffix
	}
	if use("log-level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if use("log-format") {
		cfg.LogFormat = strings.TrimSpace(raw.LogFormat)
	}
	if use("loopback") {
		cfg.Loopback = raw.Loopback
	}
	if use("stats") {
		cfg.Stats = raw.Stats
	}

	return nil
}

func (c cliConfig) validate() error {
	if c.Loopback {
		if c.File == "" {
			return errors.New("-file is required in loopback mode")
		}

		return c.validateCommon()
	}

	role, err := link.ParseRole(c.Role)
	if err != nil {
		return err
	}
	if c.Port == "" {
		return errors.New("-port is required")
	}
	if role == link.Transmitter && c.File == "" {
		return errors.New("-file is required for the transmitter")
	}

	return c.validateCommon()
}

func (c cliConfig) validateCommon() error {
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.ChunkSize <= 0 || c.ChunkSize > filexfer.MaxChunkSize {
		return fmt.Errorf("chunk size %d out of range [1, %d]", c.ChunkSize, filexfer.MaxChunkSize)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "console", "zerolog":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}

// linkOptions returns the link options shared by both roles.
func (c cliConfig) linkOptions(l logger.Logger) []link.Option {
	return []link.Option{
		link.WithMaxRetransmissions(c.Retries),
		link.WithTimeout(c.Timeout),
		link.WithLogger(l),
	}
}
