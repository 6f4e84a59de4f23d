//go:build linux

package frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshake_AgreedGeometry(t *testing.T) {
	tx, rx := channelPair(t, tinyGeometry)

	offerErr := make(chan error, 1)
	go func() { offerErr <- tx.Offer() }()

	require.NoError(t, rx.Accept())
	require.NoError(t, <-offerErr)

	// The frame stream starts cleanly after the hello.
	buf := allocFrame(t, 32, 0x5A)
	require.NoError(t, tx.Publish(buf.FD))
	require.NoError(t, rx.Consume(func(v View) error {
		assert.Equal(t, byte(0x5A), v.Data[31])
		return nil
	}))
}

func TestHandshake_GeometryMismatch(t *testing.T) {
	a, b := socketPair(t)
	tx, err := NewChannel(a, tinyGeometry)
	require.NoError(t, err)
	rx, err := NewChannel(b, Geometry{Width: 4, Height: 4, Pitch: 16, BytesPerPixel: 4})
	require.NoError(t, err)

	offerErr := make(chan error, 1)
	go func() { offerErr <- tx.Offer() }()

	err = rx.Accept()
	assert.ErrorIs(t, err, ErrSetupFailed)
	assert.True(t, IsSetup(err))

	err = <-offerErr
	assert.ErrorIs(t, err, ErrHandshakeFailed)
	assert.Contains(t, err.Error(), "rejected")
}

func TestHandshake_ConsumerHangsUp(t *testing.T) {
	tx, rx := channelPair(t, tinyGeometry)
	require.NoError(t, rx.Close())

	assert.ErrorIs(t, tx.Offer(), ErrHandshakeFailed)
}

func TestDecodeHello(t *testing.T) {
	g := Geometry{Width: 1920, Height: 1080, Pitch: 7680, BytesPerPixel: 4}

	got, err := decodeHello(encodeHello(g))
	require.NoError(t, err)
	assert.Equal(t, g, got)

	bad := encodeHello(g)
	copy(bad, "NOPE")
	_, err = decodeHello(bad)
	assert.Error(t, err)

	_, err = decodeHello(bad[:12])
	assert.Error(t, err)
}
