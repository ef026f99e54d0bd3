package buffer

import (
	"sync"

	"github.com/pinlatch/storage/common"
)

// ClockReplacer selects a victim frame among unpinned frames using the CLOCK
// second-chance algorithm (spec.md §4.3). Grounded in the pack's closest
// analog, novasql/internal/bufferpool/pool.go's pickVictimLocked, generalized
// from an inline scan into the standalone component C3 describes (the
// teacher's own BufMgr uses a conceptually identical clock-bit scan over its
// latch table, via PinLatch's victim loop and the ClockBit it clears).
type ClockReplacer struct {
	mu sync.Mutex

	inReplacer []bool
	ref        []bool
	hand       int
	numFrames  int
	size       int // count of frames with inReplacer == true
}

// NewClockReplacer creates a replacer over numFrames frame slots, all
// initially absent from the replacer (pinned).
func NewClockReplacer(numFrames int) *ClockReplacer {
	return &ClockReplacer{
		inReplacer: make([]bool, numFrames),
		ref:        make([]bool, numFrames),
		numFrames:  numFrames,
	}
}

// Unpin marks frame f as eligible for victim selection.
func (c *ClockReplacer) Unpin(f common.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inReplacer[f] {
		c.inReplacer[f] = true
		c.size++
	}
	c.ref[f] = true
}

// Pin removes frame f from victim consideration (a new pinner has it).
func (c *ClockReplacer) Pin(f common.FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inReplacer[f] {
		c.inReplacer[f] = false
		c.size--
	}
}

// Victim advances the clock hand and returns the first frame found with
// ref==false, giving every frame it passes with ref==true a second chance by
// clearing that bit. At most two full sweeps are needed: the first clears
// every remaining ref bit, the second evicts. Returns false if no frame is
// currently in the replacer.
func (c *ClockReplacer) Victim() (common.FrameID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size == 0 {
		return common.InvalidFrameID, false
	}

	for scanned := 0; scanned < 2*c.numFrames; scanned++ {
		idx := c.hand
		c.hand = (c.hand + 1) % c.numFrames

		if !c.inReplacer[idx] {
			continue
		}
		if c.ref[idx] {
			c.ref[idx] = false
			continue
		}

		c.inReplacer[idx] = false
		c.size--
		return common.FrameID(idx), true
	}

	return common.InvalidFrameID, false
}

// Size returns the number of frames currently eligible for eviction.
func (c *ClockReplacer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
