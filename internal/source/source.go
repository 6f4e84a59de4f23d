// Package source provides the media-pipeline side of a producer: something
// that yields frames backed by shareable memory, one descriptor per frame.
package source

import (
	"github.com/smazurov/framelink/internal/frames"
)

// Frame is one produced frame. FD belongs to the source; consumers of a
// Frame must not close it and must call Release once they are done with it.
// A frame with a non-nil Err could not be exported and carries no descriptor.
type Frame struct {
	FD         int
	BatchIndex uint64
	Geometry   frames.Geometry
	Err        error

	release func()
}

// NewFrame returns a frame whose Release calls release.
func NewFrame(fd int, batchIndex uint64, g frames.Geometry, release func()) Frame {
	return Frame{FD: fd, BatchIndex: batchIndex, Geometry: g, release: release}
}

// FailedFrame reports a frame that was produced but could not be exported.
func FailedFrame(batchIndex uint64, err error) Frame {
	return Frame{FD: -1, BatchIndex: batchIndex, Err: err}
}

// Release hands the frame's memory back to the source.
func (f Frame) Release() {
	if f.release != nil {
		f.release()
	}
}

// Source yields frames until it is closed or runs dry, then closes the
// channel returned by Frames.
type Source interface {
	Frames() <-chan Frame
	Close() error
}

// Kind names a source implementation in configuration.
type Kind string

// Known source kinds.
const (
	KindSynthetic Kind = "synthetic"
	KindGStreamer Kind = "gstreamer"
)
