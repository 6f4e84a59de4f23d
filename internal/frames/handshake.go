//go:build linux

package frames

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// helloMagic opens every handshake; it keeps a plain fdpass peer from being
// mistaken for a framelink producer.
var helloMagic = [4]byte{'F', 'L', 'N', 'K'}

const (
	helloSize = 20

	ackAccept byte = 'A'
	ackReject byte = 'R'
)

// HandshakeTimeout bounds the whole hello/ack exchange.
var HandshakeTimeout = 5 * time.Second

func encodeHello(g Geometry) []byte {
	buf := make([]byte, helloSize)
	copy(buf, helloMagic[:])
	binary.LittleEndian.PutUint32(buf[4:], g.Width)
	binary.LittleEndian.PutUint32(buf[8:], g.Height)
	binary.LittleEndian.PutUint32(buf[12:], g.Pitch)
	binary.LittleEndian.PutUint32(buf[16:], g.BytesPerPixel)
	return buf
}

func decodeHello(buf []byte) (Geometry, error) {
	if len(buf) != helloSize {
		return Geometry{}, fmt.Errorf("hello is %d bytes, want %d", len(buf), helloSize)
	}
	if !bytes.Equal(buf[:4], helloMagic[:]) {
		return Geometry{}, fmt.Errorf("bad hello magic %q", buf[:4])
	}
	return Geometry{
		Width:         binary.LittleEndian.Uint32(buf[4:]),
		Height:        binary.LittleEndian.Uint32(buf[8:]),
		Pitch:         binary.LittleEndian.Uint32(buf[12:]),
		BytesPerPixel: binary.LittleEndian.Uint32(buf[16:]),
	}, nil
}

// Offer is the producer half of the geometry handshake. It announces the
// channel geometry and waits for the consumer to accept it. No descriptor is
// sent before the ack arrives.
func (c *Channel) Offer() error {
	if err := c.conn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return NewError(CodeHandshakeFailed, "set deadline", err)
	}
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	if _, err := c.conn.Write(encodeHello(c.geometry)); err != nil {
		return NewError(CodeHandshakeFailed, "send hello", err)
	}

	var ack [1]byte
	if _, err := io.ReadFull(c.conn, ack[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return NewError(CodeHandshakeFailed, "consumer hung up during handshake", err)
		}
		return NewError(CodeHandshakeFailed, "read ack", err)
	}
	switch ack[0] {
	case ackAccept:
		c.logger.Debug("Geometry accepted by consumer", "geometry", c.geometry.String())
		return nil
	case ackReject:
		return NewError(CodeHandshakeFailed, fmt.Sprintf("consumer rejected geometry %s", c.geometry), nil)
	default:
		return NewError(CodeHandshakeFailed, fmt.Sprintf("unexpected ack byte %#x", ack[0]), nil)
	}
}

// Accept is the consumer half of the geometry handshake. It reads exactly
// one hello, so the first frame message stays queued on the socket, and
// acks it only when it matches the locally configured geometry.
func (c *Channel) Accept() error {
	if err := c.conn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return SetupError("set deadline", err)
	}
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	buf := make([]byte, helloSize)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return SetupError("read hello", err)
	}
	offered, err := decodeHello(buf)
	if err != nil {
		_, _ = c.conn.Write([]byte{ackReject})
		return SetupError("decode hello", err)
	}
	if offered != c.geometry {
		_, _ = c.conn.Write([]byte{ackReject})
		return SetupError(fmt.Sprintf("producer geometry %s does not match %s", offered, c.geometry), nil)
	}
	if _, err := c.conn.Write([]byte{ackAccept}); err != nil {
		return SetupError("send ack", err)
	}
	c.logger.Debug("Geometry agreed with producer", "geometry", c.geometry.String())
	return nil
}
