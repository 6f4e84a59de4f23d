//go:build linux && gstreamer

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gst/go-glib/glib"
	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"

	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
	"github.com/smazurov/framelink/pkg/linuxav/dmabuf"
)

// DefaultPipeline renders a test pattern as tightly packed RGBA. The caps
// must match the configured geometry; %d are width and height.
const DefaultPipeline = "videotestsrc is-live=true ! videoconvert ! video/x-raw,format=RGBA,width=%d,height=%d ! appsink name=sink max-buffers=2 drop=true sync=false"

// AppSinkName is the element name the pipeline's appsink must carry.
const AppSinkName = "sink"

// GStreamerConfig configures a GStreamer source.
type GStreamerConfig struct {
	Geometry frames.Geometry
	// Pipeline is a gst-launch description ending in an appsink named
	// AppSinkName that emits packed RGBA at Geometry's size. Empty uses
	// DefaultPipeline.
	Pipeline string
	// Buffers caps how many copied samples the source holds before the
	// producer releases them; defaults to 4.
	Buffers int
}

// GStreamer copies each appsink sample into its own memfd so that every
// frame can be shared by descriptor. Samples that arrive while Buffers
// copies are still held are dropped.
type GStreamer struct {
	cfg      GStreamerConfig
	pool     *pool
	out      chan Frame
	pipeline *gst.Pipeline
	mainLoop *glib.MainLoop
	logger   logging.Logger

	batch   atomic.Uint64
	dropped atomic.Uint64

	closing   chan struct{}
	sendMu    sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

var gstInit sync.Once

// NewGStreamer builds the pipeline and sets it playing.
func NewGStreamer(ctx context.Context, cfg GStreamerConfig) (*GStreamer, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = 4
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = fmt.Sprintf(DefaultPipeline, cfg.Geometry.Width, cfg.Geometry.Height)
	}

	gstInit.Do(func() { gst.Init(nil) })

	pipeline, err := gst.NewPipelineFromString(cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName(AppSinkName)
	if err != nil {
		return nil, fmt.Errorf("pipeline has no appsink named %q: %w", AppSinkName, err)
	}
	sink := app.SinkFromElement(elem)
	if sink == nil {
		return nil, fmt.Errorf("element %q is not an appsink", AppSinkName)
	}

	p, err := newPool("framelink-gst", cfg.Buffers, int(cfg.Geometry.Size()))
	if err != nil {
		return nil, fmt.Errorf("gstreamer source: %w", err)
	}

	s := &GStreamer{
		cfg:      cfg,
		pool:     p,
		out:      make(chan Frame, cfg.Buffers),
		pipeline: pipeline,
		mainLoop: glib.NewMainLoop(glib.MainContextDefault(), false),
		logger:   logging.GetLogger("source"),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onSample,
		EOSFunc: func(*app.Sink) {
			s.logger.Info("GStreamer pipeline reached end of stream")
			s.mainLoop.Quit()
		},
	})
	pipeline.GetPipelineBus().AddWatch(s.onMessage)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	go func() {
		defer close(s.done)
		s.mainLoop.Run()
		s.finish()
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.mainLoop.Quit()
		case <-s.done:
		}
	}()

	s.logger.Info("GStreamer source started", "pipeline", cfg.Pipeline, "geometry", cfg.Geometry.String())
	return s, nil
}

// Frames implements Source.
func (s *GStreamer) Frames() <-chan Frame {
	return s.out
}

// Dropped reports samples dropped because Buffers copies were still held.
func (s *GStreamer) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops the pipeline and frees the frames nobody picked up.
func (s *GStreamer) Close() error {
	s.mainLoop.Quit()
	<-s.done
	for f := range s.out {
		f.Release()
	}
	return nil
}

func (s *GStreamer) finish() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.sendMu.Lock()
		close(s.out)
		s.sendMu.Unlock()
		if err := s.pipeline.BlockSetState(gst.StateNull); err != nil {
			s.logger.Warn("Failed to stop pipeline", "error", err)
		}
	})
}

func (s *GStreamer) onMessage(msg *gst.Message) bool {
	switch msg.Type() {
	case gst.MessageEOS:
		s.mainLoop.Quit()
	case gst.MessageError:
		gerr := msg.ParseError()
		s.logger.Error("GStreamer pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
		s.mainLoop.Quit()
	}
	return true
}

// onSample runs on a GStreamer streaming thread.
func (s *GStreamer) onSample(sink *app.Sink) gst.FlowReturn {
	batch := s.batch.Add(1) - 1

	sample := sink.PullSample()
	if sample == nil {
		s.send(FailedFrame(batch, errors.New("appsink returned no sample")))
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		s.send(FailedFrame(batch, errors.New("sample has no buffer")))
		return gst.FlowOK
	}

	buf, err := s.pool.tryAcquire()
	if err != nil {
		s.send(FailedFrame(batch, err))
		return gst.FlowOK
	}
	if buf == nil {
		s.dropped.Add(1)
		s.logger.Debug("Dropping sample, all buffers in use", "batch", batch)
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.AsUint8Slice()
	err = s.copyRows(buf.Data, data)
	buffer.Unmap()

	frame := NewFrame(buf.FD, batch, s.cfg.Geometry, s.releaser(buf))
	if err != nil {
		frame.Release()
		s.send(FailedFrame(batch, err))
		return gst.FlowOK
	}
	if !s.send(frame) {
		frame.Release()
	}
	return gst.FlowOK
}

func (s *GStreamer) releaser(buf *dmabuf.Buffer) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := s.pool.release(buf); err != nil {
				s.logger.Warn("Failed to free frame buffer", "buffer", buf.Name, "error", err)
			}
		})
	}
}

// copyRows expands packed width*bpp rows from src into pitch-strided dst.
func (s *GStreamer) copyRows(dst, src []byte) error {
	g := s.cfg.Geometry
	rowBytes := int(g.RowBytes())
	if want := rowBytes * int(g.Height); len(src) < want {
		return fmt.Errorf("sample is %d bytes, geometry %s needs %d", len(src), g, want)
	}
	for y := 0; y < int(g.Height); y++ {
		copy(dst[y*int(g.Pitch):], src[y*rowBytes:(y+1)*rowBytes])
	}
	return nil
}

func (s *GStreamer) send(f Frame) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	select {
	case <-s.closing:
		return false
	default:
	}
	select {
	case s.out <- f:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}
