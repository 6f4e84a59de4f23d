//go:build linux

package frames

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/smazurov/framelink/internal/logging"
	"github.com/smazurov/framelink/pkg/linuxav/dmabuf"
	"github.com/smazurov/framelink/pkg/linuxav/fdpass"
)

// Channel is one producer/consumer connection plus its frame geometry.
type Channel struct {
	conn     *net.UnixConn
	geometry Geometry
	logger   logging.Logger

	// next is the index handed to the next received descriptor.
	next atomic.Uint64
}

// NewChannel wraps a connected socket. The geometry is validated here so
// that Consume never maps a nonsensical region.
func NewChannel(conn *net.UnixConn, g Geometry) (*Channel, error) {
	if conn == nil {
		return nil, errors.New("nil connection")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Channel{
		conn:     conn,
		geometry: g,
		logger:   logging.GetLogger("transport"),
	}, nil
}

// Geometry returns the agreed frame geometry.
func (c *Channel) Geometry() Geometry {
	return c.geometry
}

// Conn returns the underlying socket.
func (c *Channel) Conn() *net.UnixConn {
	return c.conn
}

// Close closes the socket. A blocked Consume returns Disconnected.
func (c *Channel) Close() error {
	return c.conn.Close()
}

// Publish duplicates rawFD, sends the duplicate and closes it again whatever
// the send outcome was. rawFD itself stays open and owned by the caller.
func (c *Channel) Publish(rawFD int) error {
	dup, err := dmabuf.Dup(rawFD)
	if err != nil {
		return NewError(CodeExportFailed, fmt.Sprintf("duplicate descriptor %d", rawFD), err)
	}

	sendErr := fdpass.Send(c.conn, dup)
	if closeErr := dmabuf.Close(dup); closeErr != nil {
		c.logger.Warn("Failed to close sent descriptor", "fd", dup, "error", closeErr)
	}
	if sendErr != nil {
		return NewError(CodeTransportFailure, "send frame", sendErr)
	}
	return nil
}

// Consume receives one descriptor, maps pitch*height bytes of it read-only
// and hands the view to visit. The mapping and the descriptor are released
// before Consume returns, whether or not visit succeeded.
//
// Disconnected means the producer went away. MapFailed covers a backing
// region smaller than the geometry as well as mmap failures. VisitorFailed
// wraps the visitor's error and leaves the channel usable.
func (c *Channel) Consume(visit Visitor) error {
	fd, err := fdpass.Receive(c.conn)
	if err != nil {
		if errors.Is(err, fdpass.ErrPeerClosed) {
			return NewError(CodeDisconnected, "producer closed the connection", err)
		}
		return NewError(CodeTransportFailure, "receive frame", err)
	}
	defer func() {
		if err := dmabuf.Close(fd); err != nil {
			c.logger.Warn("Failed to close received descriptor", "fd", fd, "error", err)
		}
	}()

	index := c.next.Add(1) - 1
	size := c.geometry.Size()

	if backing := dmabuf.Size(fd); backing != dmabuf.UnknownSize && uint64(backing) < size {
		return NewError(CodeMapFailed,
			fmt.Sprintf("frame %d: backing region is %d bytes, geometry %s needs %d", index, backing, c.geometry, size), nil)
	}

	data, err := dmabuf.Map(fd, int(size))
	if err != nil {
		return NewError(CodeMapFailed, fmt.Sprintf("frame %d: mmap %d bytes", index, size), err)
	}
	defer func() {
		if err := dmabuf.Unmap(data); err != nil {
			c.logger.Warn("Failed to unmap frame", "index", index, "error", err)
		}
	}()

	if err := dmabuf.BeginCPUAccess(fd); err != nil {
		c.logger.Debug("DMA-BUF sync start failed", "index", index, "error", err)
	}
	visitErr := visit(View{Index: index, Geometry: c.geometry, Data: data})
	if err := dmabuf.EndCPUAccess(fd); err != nil {
		c.logger.Debug("DMA-BUF sync end failed", "index", index, "error", err)
	}

	if visitErr != nil {
		return NewError(CodeVisitorFailed, fmt.Sprintf("frame %d", index), visitErr)
	}
	return nil
}

// Received reports how many descriptors this channel has received.
func (c *Channel) Received() uint64 {
	return c.next.Load()
}
