//go:build linux

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
	"github.com/smazurov/framelink/pkg/linuxav/dmabuf"
)

// ErrSimulatedExport is carried by the frames a Synthetic source fails on
// purpose (see SyntheticConfig.FailEvery).
var ErrSimulatedExport = errors.New("simulated export failure")

// SyntheticConfig configures a Synthetic source.
type SyntheticConfig struct {
	Geometry frames.Geometry
	// FPS caps the frame rate; zero or negative means as fast as the
	// consumer of Frames keeps up.
	FPS float64
	// Buffers caps how many painted frames the source holds before the
	// producer releases them; defaults to 4.
	Buffers int
	// MaxFrames stops the source after that many frames; zero is unlimited.
	MaxFrames uint64
	// FailEvery makes every n-th frame an export failure; zero disables it.
	FailEvery uint64
}

// Synthetic paints a moving RGBA test pattern into a fresh memfd per frame.
type Synthetic struct {
	cfg     SyntheticConfig
	pool    *pool
	out     chan Frame
	limiter *rate.Limiter
	logger  logging.Logger

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSynthetic starts producing frames.
func NewSynthetic(ctx context.Context, cfg SyntheticConfig) (*Synthetic, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = 4
	}

	p, err := newPool("framelink-synthetic", cfg.Buffers, int(cfg.Geometry.Size()))
	if err != nil {
		return nil, fmt.Errorf("synthetic source: %w", err)
	}

	limit := rate.Inf
	if cfg.FPS > 0 {
		limit = rate.Limit(cfg.FPS)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Synthetic{
		cfg:     cfg,
		pool:    p,
		out:     make(chan Frame),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.GetLogger("source"),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx)

	s.logger.Info("Synthetic source started",
		"geometry", cfg.Geometry.String(),
		"fps", cfg.FPS,
		"buffers", cfg.Buffers)
	return s, nil
}

// Frames implements Source.
func (s *Synthetic) Frames() <-chan Frame {
	return s.out
}

// Close stops production. Frames already handed out stay valid until they
// are released.
func (s *Synthetic) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *Synthetic) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)

	for batch := uint64(0); s.cfg.MaxFrames == 0 || batch < s.cfg.MaxFrames; batch++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		if s.cfg.FailEvery > 0 && (batch+1)%s.cfg.FailEvery == 0 {
			if !s.emit(ctx, FailedFrame(batch, ErrSimulatedExport)) {
				return
			}
			continue
		}

		buf, err := s.pool.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !s.emit(ctx, FailedFrame(batch, err)) {
				return
			}
			continue
		}
		s.paint(buf, batch)

		frame := NewFrame(buf.FD, batch, s.cfg.Geometry, s.releaser(buf))
		if !s.emit(ctx, frame) {
			frame.Release()
			return
		}
	}
	s.logger.Info("Synthetic source finished", "frames", s.cfg.MaxFrames)
}

func (s *Synthetic) releaser(buf *dmabuf.Buffer) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := s.pool.release(buf); err != nil {
				s.logger.Warn("Failed to free frame buffer", "buffer", buf.Name, "error", err)
			}
		})
	}
}

func (s *Synthetic) emit(ctx context.Context, f Frame) bool {
	select {
	case s.out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// paint writes a diagonal gradient that shifts by one pixel per frame.
// Padding bytes past width*bpp are left zero.
func (s *Synthetic) paint(buf *dmabuf.Buffer, batch uint64) {
	if err := dmabuf.BeginCPUWrite(buf.FD); err != nil {
		s.logger.Debug("CPU write sync failed", "error", err)
	}
	defer func() {
		if err := dmabuf.EndCPUWrite(buf.FD); err != nil {
			s.logger.Debug("CPU write sync failed", "error", err)
		}
	}()

	g := s.cfg.Geometry
	bpp := int(g.BytesPerPixel)
	for y := 0; y < int(g.Height); y++ {
		row := buf.Data[y*int(g.Pitch):][:g.RowBytes()]
		for i := range row {
			row[i] = PatternByte(i/bpp, y, i%bpp, batch)
		}
	}
}

// PatternByte is the synthetic pattern's value at pixel (x, y), byte
// channel of the pixel, in frame batch.
func PatternByte(x, y, channel int, batch uint64) byte {
	shift := byte(batch)
	switch channel {
	case 0:
		return byte(x) + shift
	case 1:
		return byte(y) + shift
	case 3:
		return 0xFF
	default:
		return shift
	}
}
