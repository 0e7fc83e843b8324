package filexfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PacketSender delivers one packet reliably. *link.Session satisfies it.
type PacketSender interface {
	Send(ctx context.Context, payload []byte) (int, error)
}

// Sender transfers files over a PacketSender.
type Sender struct {
	w    PacketSender
	opts *options
}

// NewSender creates a Sender writing packets to w.
func NewSender(w PacketSender, opts ...Option) (*Sender, error) {
	if w == nil {
		return nil, errors.New("filexfer: packet sender must not be nil")
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Sender{w: w, opts: o}, nil
}

// SendPath sends the file at path under its base name.
func (s *Sender) SendPath(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("filexfer: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("filexfer: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("filexfer: %s is not a regular file", path)
	}

	return s.SendFile(ctx, filepath.Base(path), f, info.Size())
}

// SendFile sends a start packet announcing name and size, the content of r in
// numbered data packets, and an end packet repeating the start TLVs.
//
// r must yield exactly size bytes; otherwise the transfer stops with
// ErrSizeMismatch before the end packet is sent.
func (s *Sender) SendFile(ctx context.Context, name string, r io.Reader, size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrSizeMismatch, size)
	}

	start, err := EncodeControl(CtrlStart, uint64(size), name)
	if err != nil {
		return err
	}
	if err := s.send(ctx, start); err != nil {
		return err
	}
	s.opts.logger.Info("filexfer: transfer started", "name", name, "size", size)

	var (
		sent    int64
		seq     uint8
		packets int
		buf     = make([]byte, s.opts.chunkSize)
	)

	for sent < size {
		want := min(int64(len(buf)), size-sent)

		n, err := io.ReadFull(r, buf[:want])
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: source ended after %d of %d bytes", ErrSizeMismatch, sent+int64(n), size)
		}
		if err != nil {
			return fmt.Errorf("filexfer: read: %w", err)
		}

		pkt, err := EncodeData(seq, buf[:n])
		if err != nil {
			return err
		}
		if err := s.send(ctx, pkt); err != nil {
			return err
		}

		sent += int64(n)
		packets++
		s.opts.logger.Debug("filexfer: data packet sent", "seq", seq, "bytes", n, "left", size-sent)
		if s.opts.progress != nil {
			s.opts.progress(sent, size)
		}
		seq++
	}

	end, err := EncodeControl(CtrlEnd, uint64(size), name)
	if err != nil {
		return err
	}
	if err := s.send(ctx, end); err != nil {
		return err
	}
	s.opts.logger.Info("filexfer: transfer complete", "name", name, "size", size, "dataPackets", packets)

	return nil
}

func (s *Sender) send(ctx context.Context, pkt []byte) error {
	if _, err := s.w.Send(ctx, pkt); err != nil {
		return fmt.Errorf("filexfer: send: %w", err)
	}

	return nil
}
