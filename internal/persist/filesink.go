package persist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
)

const (
	rawExt  = ".rgba"
	zstdExt = ".rgba.zst"
)

// FileSinkConfig configures a FileSink.
type FileSinkConfig struct {
	Dir      string
	Compress bool
}

// FileSink writes each frame to its own file in Dir, one packed row after
// another. Files appear atomically: readers never see a partial frame.
type FileSink struct {
	dir      string
	compress bool
	logger   *slog.Logger

	mu      sync.Mutex
	encoder *zstd.Encoder
	written uint64
	closed  bool
}

var errSinkClosed = errors.New("file sink: closed")

// NewFileSink creates Dir if needed and returns a sink writing into it.
func NewFileSink(cfg FileSinkConfig) (*FileSink, error) {
	if cfg.Dir == "" {
		return nil, errors.New("file sink: output directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create %s: %w", cfg.Dir, err)
	}

	s := &FileSink{
		dir:      cfg.Dir,
		compress: cfg.Compress,
		logger:   logging.GetLogger("persist"),
	}
	if cfg.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("file sink: zstd encoder: %w", err)
		}
		s.encoder = enc
	}
	return s, nil
}

// Path returns the file a frame with the given index is written to.
func (s *FileSink) Path(index uint64) string {
	ext := rawExt
	if s.compress {
		ext = zstdExt
	}
	return filepath.Join(s.dir, fmt.Sprintf("frame_%d%s", index, ext))
}

// Visit writes v to Path(v.Index).
func (s *FileSink) Visit(v frames.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}

	tmp, err := os.CreateTemp(s.dir, ".frame-*")
	if err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := s.writeRows(tmp, v); err != nil {
		return fmt.Errorf("file sink: frame %d: %w", v.Index, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file sink: frame %d: %w", v.Index, err)
	}

	path := s.Path(v.Index)
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		tmp = nil
		return fmt.Errorf("file sink: frame %d: %w", v.Index, err)
	}
	tmp = nil

	s.written++
	s.logger.Debug("Frame written", "index", v.Index, "path", path)
	return nil
}

func (s *FileSink) writeRows(f *os.File, v frames.View) error {
	bw := bufio.NewWriterSize(f, int(v.Geometry.RowBytes())*4)

	var w io.Writer = bw
	if s.encoder != nil {
		s.encoder.Reset(bw)
		w = s.encoder
	}

	for y := range v.Rows() {
		if _, err := w.Write(v.Row(y)); err != nil {
			return err
		}
	}

	if s.encoder != nil {
		if err := s.encoder.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Written reports how many frames were stored.
func (s *FileSink) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close releases the encoder. Written files are left in place.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.encoder == nil {
		return nil
	}
	err := s.encoder.Close()
	s.encoder = nil
	return err
}
