//go:build linux && !gstreamer

package source

import (
	"context"
	"errors"

	"github.com/smazurov/framelink/internal/frames"
)

// ErrNoGStreamer is returned by NewGStreamer in builds without the
// gstreamer tag.
var ErrNoGStreamer = errors.New("built without gstreamer support (rebuild with -tags gstreamer)")

// GStreamerConfig configures a GStreamer source.
type GStreamerConfig struct {
	Geometry frames.Geometry
	Pipeline string
	Buffers  int
}

// GStreamer is unavailable in this build.
type GStreamer struct{}

// NewGStreamer always fails in this build.
func NewGStreamer(context.Context, GStreamerConfig) (*GStreamer, error) {
	return nil, ErrNoGStreamer
}

// Frames implements Source.
func (*GStreamer) Frames() <-chan Frame { return nil }

// Close implements Source.
func (*GStreamer) Close() error { return nil }
