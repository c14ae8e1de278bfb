package types

import (
	"sync/atomic"
	"time"
)

// SystemClock derives block heights from wall time: one block per
// Interval since Genesis. Timestamps are unix seconds.
type SystemClock struct {
	Genesis  time.Time
	Interval time.Duration
}

func NewSystemClock(genesis time.Time, interval time.Duration) *SystemClock {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &SystemClock{Genesis: genesis, Interval: interval}
}

func (c *SystemClock) Height() uint64 {
	elapsed := time.Since(c.Genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.Interval)
}

func (c *SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock is a hand-advanced clock for tests and replay.
type ManualClock struct {
	height uint64
	now    uint64
}

func NewManualClock(height, now uint64) *ManualClock {
	return &ManualClock{height: height, now: now}
}

func (c *ManualClock) Height() uint64 { return atomic.LoadUint64(&c.height) }
func (c *ManualClock) Now() uint64    { return atomic.LoadUint64(&c.now) }

// AdvanceBlocks moves the height forward by n blocks.
func (c *ManualClock) AdvanceBlocks(n uint64) { atomic.AddUint64(&c.height, n) }

// AdvanceTime moves the timestamp forward by d time units.
func (c *ManualClock) AdvanceTime(d uint64) { atomic.AddUint64(&c.now, d) }

// SetHeight jumps straight to the given height.
func (c *ManualClock) SetHeight(h uint64) { atomic.StoreUint64(&c.height, h) }
