//go:build linux

package source

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/smazurov/framelink/pkg/linuxav/dmabuf"
)

// pool allocates one memfd per frame and caps how many of them the source
// holds at once. Buffers are never repainted: Release closes the source's
// mapping and descriptor, while a descriptor still queued on the socket keeps
// the memory alive until the consumer closes its copy.
type pool struct {
	name  string
	size  int
	slots chan struct{}
	seq   atomic.Uint64
}

func newPool(name string, limit, size int) (*pool, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("pool %q: need at least one buffer, got %d", name, limit)
	}
	if size <= 0 {
		return nil, fmt.Errorf("pool %q: invalid buffer size %d", name, size)
	}
	p := &pool{name: name, size: size, slots: make(chan struct{}, limit)}
	for range limit {
		p.slots <- struct{}{}
	}
	return p, nil
}

// acquire waits until fewer than limit buffers are held, then allocates one.
func (p *pool) acquire(ctx context.Context) (*dmabuf.Buffer, error) {
	select {
	case <-p.slots:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.alloc()
}

// tryAcquire returns nil without error when limit buffers are held.
func (p *pool) tryAcquire() (*dmabuf.Buffer, error) {
	select {
	case <-p.slots:
	default:
		return nil, nil
	}
	return p.alloc()
}

func (p *pool) alloc() (*dmabuf.Buffer, error) {
	buf, err := dmabuf.Alloc(fmt.Sprintf("%s-%d", p.name, p.seq.Add(1)-1), p.size)
	if err != nil {
		p.slots <- struct{}{}
		return nil, err
	}
	return buf, nil
}

// release closes buf and frees its slot. Call it once per acquired buffer.
func (p *pool) release(buf *dmabuf.Buffer) error {
	err := buf.Close()
	p.slots <- struct{}{}
	return err
}

// held reports how many buffers are acquired and not yet released.
func (p *pool) held() int {
	return cap(p.slots) - len(p.slots)
}
