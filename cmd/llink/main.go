// Command llink transfers one file between two hosts over the stop-and-wait
// data link.
//
//	llink -role tx -port /dev/ttyS0 -file penguin.gif
//	llink -role rx -port /dev/ttyS1 -out ./recv
//
// A port of the form tcp://host:port runs the link over TCP: the transmitter
// dials and the receiver listens. -loopback runs both roles in one process
// over an in-memory pipe. Settings may also come from a TOML file given with
// -config; flags take precedence over the file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arloliu/go-datalink/filexfer"
	"github.com/arloliu/go-datalink/link"
	"github.com/arloliu/go-datalink/logger"
	"github.com/arloliu/go-datalink/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseArgs(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "llink:", err)

		return 2
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Loopback {
		err = runLoopback(ctx, cfg, log)
	} else {
		err = runPeer(ctx, cfg, log)
	}

	if err != nil {
		log.Error("llink failed", "error", err)
		return 1
	}

	return 0
}

func newLogger(cfg cliConfig) logger.Logger {
	level, _ := logger.ParseLevel(cfg.LogLevel)

	var l logger.Logger
	switch cfg.LogFormat {
	case "zerolog":
		l = logger.NewZerolog(os.Stderr, level, false)
	case "console":
		l = logger.NewZerolog(os.Stderr, level, true)
	default:
		l = logger.NewSlog(level, false)
	}
	logger.SetLogger(l)

	return l
}

func runPeer(ctx context.Context, cfg cliConfig, log logger.Logger) error {
	role, err := link.ParseRole(cfg.Role)
	if err != nil {
		return err
	}

	t, err := openTransport(ctx, cfg, role)
	if err != nil {
		return err
	}

	if role == link.Transmitter {
		return transmit(ctx, cfg, t, log)
	}

	_, err = receive(ctx, cfg, t, log)

	return err
}

func openTransport(ctx context.Context, cfg cliConfig, role link.Role) (link.Transport, error) {
	addr, isTCP := strings.CutPrefix(cfg.Port, "tcp://")
	if !isTCP {
		port, err := transport.OpenSerial(cfg.Port, cfg.Baud)
		if err != nil {
			return nil, err
		}

		return port, nil
	}

	var (
		conn *transport.Conn
		err  error
	)
	if role == link.Transmitter {
		conn, err = transport.Dial(ctx, addr, cfg.Timeout)
	} else {
		conn, err = transport.Accept(ctx, addr)
	}
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// transmit opens the link on t, sends cfg.File and closes the link.
func transmit(ctx context.Context, cfg cliConfig, t link.Transport, log logger.Logger) error {
	linkCfg, err := link.NewConfig(t, append(cfg.linkOptions(log), link.WithTransmitter())...)
	if err != nil {
		_ = t.Close()
		return err
	}

	s, err := link.Open(ctx, linkCfg)
	if err != nil {
		return err
	}

	sender, err := filexfer.NewSender(s,
		filexfer.WithChunkSize(min(cfg.ChunkSize, linkCfg.MaxFrameSize()-4)),
		filexfer.WithLogger(log),
		filexfer.WithProgress(progressLogger(log, "sent")),
	)
	if err != nil {
		return errors.Join(err, s.Close(ctx, cfg.Stats))
	}

	sendErr := sender.SendPath(ctx, cfg.File)
	if errors.Is(sendErr, link.ErrTimeoutExceeded) || errors.Is(sendErr, link.ErrTransport) {
		// The session already released the line.
		return sendErr
	}

	return errors.Join(sendErr, s.Close(ctx, cfg.Stats))
}

// receive opens the link on t, stores one file in cfg.Out and waits for the
// peer to close the link.
func receive(ctx context.Context, cfg cliConfig, t link.Transport, log logger.Logger) (filexfer.FileInfo, error) {
	linkCfg, err := link.NewConfig(t, append(cfg.linkOptions(log), link.WithReceiver())...)
	if err != nil {
		_ = t.Close()
		return filexfer.FileInfo{}, err
	}

	s, err := link.Open(ctx, linkCfg)
	if err != nil {
		return filexfer.FileInfo{}, err
	}

	r, err := filexfer.NewReceiver(s,
		filexfer.WithNameSuffix(cfg.Suffix),
		filexfer.WithLogger(log),
		filexfer.WithProgress(progressLogger(log, "received")),
	)
	if err != nil {
		return filexfer.FileInfo{}, errors.Join(err, s.Close(ctx, cfg.Stats))
	}

	info, err := r.ReceiveFile(ctx, cfg.Out)
	if err != nil {
		if errors.Is(err, link.ErrPeerClosed) {
			return info, errors.Join(err, s.Close(ctx, cfg.Stats))
		}
		_ = s.Close(ctx, cfg.Stats)

		return info, err
	}

	// Keep acknowledging repeated frames until the transmitter disconnects.
	for {
		_, err := s.Receive(ctx)
		if err == nil {
			log.Warn("llink: unexpected packet after transfer")
			continue
		}
		if errors.Is(err, link.ErrPeerClosed) {
			break
		}
		if errors.Is(err, link.ErrChecksum) || errors.Is(err, link.ErrProtocol) {
			continue
		}
		_ = s.Close(ctx, cfg.Stats)

		return info, err
	}

	return info, s.Close(ctx, cfg.Stats)
}

// runLoopback transfers cfg.File between two sessions joined by an in-memory pipe.
func runLoopback(ctx context.Context, cfg cliConfig, log logger.Logger) error {
	if cfg.Out == "" {
		cfg.Out = "."
	}

	txEnd, rxEnd := transport.Pipe(0)

	type result struct {
		info filexfer.FileInfo
		err  error
	}
	done := make(chan result, 1)

	go func() {
		info, err := receive(ctx, cfg, rxEnd, log.With("peer", "rx"))
		done <- result{info: info, err: err}
	}()

	start := time.Now()
	txErr := transmit(ctx, cfg, txEnd, log.With("peer", "tx"))
	res := <-done

	if err := errors.Join(txErr, res.err); err != nil {
		return err
	}

	log.Info("llink: loopback transfer complete",
		"file", cfg.File, "stored", res.info.Path, "size", res.info.Size, "elapsed", time.Since(start))

	return nil
}

// progressLogger logs transfer progress at every tenth of the file.
func progressLogger(log logger.Logger, verb string) filexfer.ProgressFunc {
	lastDecile := int64(-1)

	return func(done, total int64) {
		if total == 0 {
			return
		}
		decile := done * 10 / total
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		log.Info("llink: progress", verb, done, "total", total, "percent", decile*10)
	}
}
