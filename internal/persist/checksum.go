package persist

import (
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/smazurov/framelink/internal/frames"
	"github.com/smazurov/framelink/internal/logging"
)

// Sum returns the xxhash64 of the packed rows of v. Pitch padding is not hashed,
// so equal pixels give equal sums regardless of stride.
func Sum(v frames.View) uint64 {
	d := xxhash.New()
	for y := range v.Rows() {
		_, _ = d.Write(v.Row(y))
	}
	return d.Sum64()
}

// Checksum records the hash of every visited frame.
type Checksum struct {
	mu     sync.Mutex
	index  uint64
	sum    uint64
	count  uint64
	logger *slog.Logger
}

// NewChecksum creates a checksum visitor.
func NewChecksum() *Checksum {
	return &Checksum{logger: logging.GetLogger("persist")}
}

// Visit hashes v and records the result. It never fails.
func (c *Checksum) Visit(v frames.View) error {
	sum := Sum(v)

	c.mu.Lock()
	c.index = v.Index
	c.sum = sum
	c.count++
	c.mu.Unlock()

	c.logger.Debug("Frame checksum", "index", v.Index, "xxhash64", sum)
	return nil
}

// Last returns the index and hash of the most recent frame. ok is false
// before the first frame.
func (c *Checksum) Last() (index, sum uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index, c.sum, c.count > 0
}

// Count reports how many frames were hashed.
func (c *Checksum) Count() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
