package filexfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arloliu/go-datalink/link"
)

// PacketReceiver returns the next packet delivered by the link. *link.Session satisfies it.
type PacketReceiver interface {
	Receive(ctx context.Context) ([]byte, error)
}

// FileInfo describes a completed transfer.
type FileInfo struct {
	// Name is the file name announced by the sender.
	Name string
	// Path is where the file was stored; empty for Receive.
	Path string
	Size int64
}

// Receiver reassembles files from packets read from a PacketReceiver.
type Receiver struct {
	r    PacketReceiver
	opts *options
}

// NewReceiver creates a Receiver reading packets from r.
func NewReceiver(r PacketReceiver, opts ...Option) (*Receiver, error) {
	if r == nil {
		return nil, errors.New("filexfer: packet receiver must not be nil")
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Receiver{r: r, opts: o}, nil
}

// ReceiveFile receives one file and stores it in dir under the announced name.
//
// Data is written to a temporary file in dir and renamed once the end packet
// has been validated, so a failed transfer leaves nothing behind.
func (r *Receiver) ReceiveFile(ctx context.Context, dir string) (FileInfo, error) {
	start, err := r.awaitStart(ctx)
	if err != nil {
		return FileInfo{}, err
	}

	name, err := r.localName(start.Name)
	if err != nil {
		return FileInfo{}, err
	}

	tmp, err := os.CreateTemp(dir, ".filexfer-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("filexfer: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := r.receiveData(ctx, start, tmp)
	if err != nil {
		return FileInfo{}, err
	}

	if err := tmp.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("filexfer: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return FileInfo{}, fmt.Errorf("filexfer: %w", err)
	}
	tmp = nil

	r.opts.logger.Info("filexfer: file stored", "name", start.Name, "path", path, "size", n)

	return FileInfo{Name: start.Name, Path: path, Size: n}, nil
}

// Receive receives one file and writes its content to w.
func (r *Receiver) Receive(ctx context.Context, w io.Writer) (FileInfo, error) {
	start, err := r.awaitStart(ctx)
	if err != nil {
		return FileInfo{}, err
	}

	n, err := r.receiveData(ctx, start, w)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{Name: start.Name, Size: n}, nil
}

func (r *Receiver) awaitStart(ctx context.Context) (ControlPacket, error) {
	p, err := r.next(ctx)
	if err != nil {
		return ControlPacket{}, err
	}

	if len(p) == 0 || p[0] != CtrlStart {
		return ControlPacket{}, fmt.Errorf("%w: expected start packet, got %s", ErrUnexpectedPacket, packetName(p))
	}

	start, err := DecodeControl(p)
	if err != nil {
		return ControlPacket{}, err
	}
	if start.Size > uint64(1<<62) {
		return ControlPacket{}, fmt.Errorf("%w: announced size %d", ErrBadPacket, start.Size)
	}

	r.opts.logger.Info("filexfer: transfer started", "name", start.Name, "size", start.Size)

	return start, nil
}

// receiveData copies data packets to w until the end packet arrives.
func (r *Receiver) receiveData(ctx context.Context, start ControlPacket, w io.Writer) (int64, error) {
	var (
		seq      uint8
		received int64
		total    = int64(start.Size)
	)

	for {
		p, err := r.next(ctx)
		if err != nil {
			return received, err
		}
		if len(p) == 0 {
			return received, fmt.Errorf("%w: empty packet", ErrBadPacket)
		}

		switch p[0] {
		case CtrlData:
			pkt, err := DecodeData(p)
			if err != nil {
				return received, err
			}
			if pkt.Seq != seq {
				return received, fmt.Errorf("%w: data packet %d, expected %d", ErrUnexpectedPacket, pkt.Seq, seq)
			}
			if received+int64(len(pkt.Data)) > total {
				return received, fmt.Errorf("%w: more than the announced %d bytes", ErrSizeMismatch, total)
			}
			if _, err := w.Write(pkt.Data); err != nil {
				return received, fmt.Errorf("filexfer: write: %w", err)
			}

			received += int64(len(pkt.Data))
			seq++
			r.opts.logger.Debug("filexfer: data packet received", "seq", pkt.Seq, "bytes", len(pkt.Data))
			if r.opts.progress != nil {
				r.opts.progress(received, total)
			}

		case CtrlEnd:
			end, err := DecodeControl(p)
			if err != nil {
				return received, err
			}
			if end.Size != start.Size || end.Name != start.Name {
				return received, fmt.Errorf("%w: end packet (%q, %d) does not match start (%q, %d)",
					ErrUnexpectedPacket, end.Name, end.Size, start.Name, start.Size)
			}
			if received != total {
				return received, fmt.Errorf("%w: received %d of %d bytes", ErrSizeMismatch, received, total)
			}

			return received, nil

		default:
			return received, fmt.Errorf("%w: %s during transfer", ErrUnexpectedPacket, packetName(p))
		}
	}
}

// next returns the next packet, skipping frames the link rejected; the peer
// resends those.
func (r *Receiver) next(ctx context.Context) ([]byte, error) {
	for {
		p, err := r.r.Receive(ctx)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, link.ErrChecksum) || errors.Is(err, link.ErrProtocol) {
			r.opts.logger.Debug("filexfer: damaged frame skipped", "error", err)
			continue
		}

		return nil, fmt.Errorf("filexfer: receive: %w", err)
	}
}

// localName maps an announced file name to a safe base name in the target directory.
func (r *Receiver) localName(announced string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(announced, "\\", "/")))
	if name == "/" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: unusable file name %q", ErrBadPacket, announced)
	}

	if r.opts.suffix == "" {
		return name, nil
	}

	ext := filepath.Ext(name)

	return strings.TrimSuffix(name, ext) + r.opts.suffix + ext, nil
}

func packetName(p []byte) string {
	if len(p) == 0 {
		return "empty packet"
	}

	switch p[0] {
	case CtrlData:
		return "data packet"
	case CtrlStart:
		return "start packet"
	case CtrlEnd:
		return "end packet"
	default:
		return fmt.Sprintf("packet 0x%02X", p[0])
	}
}
