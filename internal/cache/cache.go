/*
 * RISC-V multicore simulator.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package cache implements the per-core set-associative MSI-coherent
// cache and the shared bus that arbitrates between them.
package cache

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/danidim13/risc-sim/internal/memory"
)

// Simulated-cycle costs of bus and memory traffic.
const (
	MemoryLoadPenalty = 32 // cycles charged per memory-serviced miss or write-back
	BusDowntime       = 2  // cycles charged after releasing the bus
)

const blockBytes = memory.WordsPerBlock * memory.BytesPerWord

// MSIFlag is the coherence state of a cache line.
type MSIFlag int

const (
	Invalid MSIFlag = iota
	Shared
	Modified
)

func (f MSIFlag) String() string {
	switch f {
	case Invalid:
		return "I"
	case Shared:
		return "S"
	case Modified:
		return "M"
	default:
		return "?"
	}
}

// Line is a single cache block: a tag (the memory block number it
// mirrors, -1 when invalid), an MSI flag, and P data words.
type Line struct {
	Tag  int32
	Flag MSIFlag
	Data [memory.WordsPerBlock]int32
}

type cacheSet struct {
	lines []Line
	fifo  int // next victim slot
}

// CoreRef is the identity and cycle-charging surface a Cache needs from
// its owning core, kept as a narrow interface rather than an import of
// the cpu package so the Core<->Cache back-reference stays a lookup,
// not an ownership edge; cpu.Core implements this.
type CoreRef interface {
	ID() int
	Tick(cycles int)
}

// Cache is a per-core N-way set-associative cache mapping a fixed
// address range, coherent with its peers through a Bus.
type Cache struct {
	Name      string
	Start     uint32
	End       uint32
	Assoc     int
	NumBlocks int
	NumSets   int

	mu   sync.Mutex
	sets []cacheSet

	bus   *Bus
	owner CoreRef

	reserved int32 // block number reserved by LR, -1 for none
	alienID  int   // identity of the foreign core currently holding this cache externally
}

// New builds a cache of the given associativity and block count mapping
// [start, end). numBlocks must be a multiple of assoc.
func New(name string, start, end uint32, assoc, numBlocks int, owner CoreRef) *Cache {
	if end <= start {
		panic(fmt.Sprintf("cache %s: end %d must be greater than start %d", name, end, start))
	}
	if numBlocks%assoc != 0 {
		panic(fmt.Sprintf("cache %s: numBlocks %d not a multiple of assoc %d", name, numBlocks, assoc))
	}

	numSets := numBlocks / assoc
	sets := make([]cacheSet, numSets)
	for i := range sets {
		lines := make([]Line, assoc)
		for j := range lines {
			lines[j] = Line{Tag: -1, Flag: Invalid}
		}
		sets[i] = cacheSet{lines: lines}
	}

	return &Cache{
		Name:      name,
		Start:     start,
		End:       end,
		Assoc:     assoc,
		NumBlocks: numBlocks,
		NumSets:   numSets,
		sets:      sets,
		owner:     owner,
		reserved:  -1,
		alienID:   -1,
	}
}

// attachBus wires the cache to its bus; called once by NewBus.
func (c *Cache) attachBus(b *Bus) { c.bus = b }

// Reserved reports the block currently held by a load-reserved, or -1.
func (c *Cache) Reserved() int32 {
	c.acquireLocal(c.owner)
	defer c.releaseLocal()
	return c.reserved
}

// ClearReservation drops any outstanding reservation. Called on context
// switch so an LR/SC pair can never span a switch.
func (c *Cache) ClearReservation() {
	c.acquireLocal(c.owner)
	c.reserved = -1
	c.releaseLocal()
}

func (c *Cache) decompose(addr uint32) (block int32, offset, index int, tag int32) {
	if addr < c.Start || addr >= c.End {
		panic(fmt.Sprintf("cache %s: address 0x%x out of range [0x%x,0x%x)", c.Name, addr, c.Start, c.End))
	}
	blk := int32(addr / blockBytes)
	off := int((addr % blockBytes) / memory.BytesPerWord)
	idx := int(blk) % c.NumSets
	return blk, off, idx, blk
}

// alignWord warns on an unaligned access and proceeds using the word
// whose base is addr &^ 3.
func alignWord(name, op string, addr uint32) uint32 {
	if addr%memory.BytesPerWord != 0 {
		slog.Warn(fmt.Sprintf("%s: unaligned %s access", name, op), "addr", addr)
		return addr &^ 3
	}
	return addr
}

func (c *Cache) find(index int, tag int32) *Line {
	set := &c.sets[index]
	for i := range set.lines {
		line := &set.lines[i]
		if line.Tag == tag && line.Flag != Invalid {
			return line
		}
	}
	return nil
}

// findVictim selects the FIFO victim for a set, writing back a Modified
// line first, and marks the victim line Invalid ready for a new fill.
// Must be called while holding the with-bus lock.
func (c *Cache) findVictim(index int) *Line {
	set := &c.sets[index]
	victim := &set.lines[set.fifo]

	if victim.Flag == Modified {
		addr := uint32(victim.Tag) * blockBytes
		if err := c.bus.WriteBack(addr, memory.Block{Address: addr, Data: victim.Data}, c); err != nil {
			panic(err)
		}
		c.owner.Tick(MemoryLoadPenalty)
	}

	set.fifo = (set.fifo + 1) % c.Assoc
	victim.Flag = Invalid
	return victim
}

func (c *Cache) acquireLocal(waiter CoreRef) {
	for !c.mu.TryLock() {
		waiter.Tick(1)
	}
}

func (c *Cache) releaseLocal() {
	c.mu.Unlock()
}

func (c *Cache) acquireWithBus(waiter CoreRef) {
	for {
		if c.bus.mu.TryLock() {
			if c.mu.TryLock() {
				return
			}
			c.bus.mu.Unlock()
		}
		waiter.Tick(1)
	}
}

func (c *Cache) releaseWithBus() {
	c.mu.Unlock()
	c.bus.mu.Unlock()
}

// Load reads the word at addr. hit reports whether the line was present
// under the first, local-only lock acquisition; a line that only became
// visible after escalating to the bus lock still counts as a miss from
// the requester's point of view.
func (c *Cache) Load(addr uint32) (word int32, hit bool) {
	addr = alignWord(c.Name, "LOAD", addr)
	block, offset, index, tag := c.decompose(addr)

	c.acquireLocal(c.owner)
	if line := c.find(index, tag); line != nil {
		word = line.Data[offset]
		c.releaseLocal()
		return word, true
	}
	c.releaseLocal()

	c.owner.Tick(1)
	c.acquireWithBus(c.owner)
	defer func() {
		c.releaseWithBus()
		c.owner.Tick(BusDowntime)
	}()

	if line := c.find(index, tag); line != nil {
		return line.Data[offset], false
	}

	victim := c.findVictim(index)
	blk := c.bus.SnoopShared(addr, c)
	c.owner.Tick(MemoryLoadPenalty)

	victim.Data = blk.Data
	victim.Flag = Shared
	victim.Tag = block

	return victim.Data[offset], false
}

// Store writes val to addr. A Modified hit completes locally; a Shared
// hit or a miss escalates to the bus to invalidate peers first. hit
// mirrors Load's convention. Any path that touches the bus also clears
// a reservation on this block, as does a local write to the reserved
// block.
func (c *Cache) Store(addr uint32, val int32) (hit bool) {
	addr = alignWord(c.Name, "STORE", addr)
	block, offset, index, tag := c.decompose(addr)

	c.acquireLocal(c.owner)
	if line := c.find(index, tag); line != nil && line.Flag == Modified {
		line.Data[offset] = val
		if c.reserved == block {
			c.reserved = -1
		}
		c.releaseLocal()
		return true
	}
	c.releaseLocal()

	c.owner.Tick(1)
	c.acquireWithBus(c.owner)
	defer func() {
		c.releaseWithBus()
		c.owner.Tick(BusDowntime)
	}()

	if line := c.find(index, tag); line != nil {
		if line.Flag == Shared {
			c.bus.SnoopExclusive(addr, c)
			c.owner.Tick(MemoryLoadPenalty)
		}
		line.Data[offset] = val
		line.Flag = Modified
		if c.reserved == block {
			c.reserved = -1
		}
		return false
	}

	victim := c.findVictim(index)
	blk := c.bus.SnoopExclusive(addr, c)
	c.owner.Tick(MemoryLoadPenalty)

	victim.Data = blk.Data
	victim.Flag = Modified
	victim.Tag = block
	victim.Data[offset] = val
	if c.reserved == block {
		c.reserved = -1
	}

	return false
}

// LoadReserved behaves like Load but additionally arms a reservation on
// the accessed block. The reservation is set inside the same lock
// region that reads the word: arming it after the read lock dropped
// would miss a remote snoop-exclusive landing in between, and a later
// StoreConditional would succeed against a block another core had
// already written.
func (c *Cache) LoadReserved(addr uint32) (word int32, hit bool) {
	addr = alignWord(c.Name, "LR", addr)
	block, offset, index, tag := c.decompose(addr)

	c.acquireLocal(c.owner)
	if line := c.find(index, tag); line != nil {
		word = line.Data[offset]
		c.reserved = block
		c.releaseLocal()
		return word, true
	}
	c.releaseLocal()

	c.owner.Tick(1)
	c.acquireWithBus(c.owner)
	defer func() {
		c.releaseWithBus()
		c.owner.Tick(BusDowntime)
	}()

	if line := c.find(index, tag); line != nil {
		c.reserved = block
		return line.Data[offset], false
	}

	victim := c.findVictim(index)
	blk := c.bus.SnoopShared(addr, c)
	c.owner.Tick(MemoryLoadPenalty)

	victim.Data = blk.Data
	victim.Flag = Shared
	victim.Tag = block
	c.reserved = block

	return victim.Data[offset], false
}

// StoreConditional writes val to addr only if the reservation armed by a
// preceding LoadReserved on this cache is still intact. The reservation
// is consumed (cleared) regardless of outcome.
func (c *Cache) StoreConditional(addr uint32, val int32) (hit, success bool) {
	addr = alignWord(c.Name, "SC", addr)
	block, offset, index, tag := c.decompose(addr)

	c.acquireLocal(c.owner)
	if c.reserved != block {
		c.reserved = -1
		c.releaseLocal()
		return false, false
	}
	if line := c.find(index, tag); line != nil && line.Flag == Modified {
		line.Data[offset] = val
		c.reserved = -1
		c.releaseLocal()
		return true, true
	}
	c.releaseLocal()

	c.owner.Tick(1)
	c.acquireWithBus(c.owner)
	defer func() {
		c.releaseWithBus()
		c.owner.Tick(BusDowntime)
	}()

	if c.reserved != block {
		c.reserved = -1
		return false, false
	}

	if line := c.find(index, tag); line != nil {
		if line.Flag == Shared {
			c.bus.SnoopExclusive(addr, c)
			c.owner.Tick(MemoryLoadPenalty)
		}
		line.Data[offset] = val
		line.Flag = Modified
	} else {
		victim := c.findVictim(index)
		blk := c.bus.SnoopExclusive(addr, c)
		c.owner.Tick(MemoryLoadPenalty)

		victim.Data = blk.Data
		victim.Flag = Modified
		victim.Tag = block
		victim.Data[offset] = val
	}

	c.reserved = -1
	return true, true
}

// AcquireExternal locks this cache on behalf of a foreign core so that
// miss-penalty cycle accounting charges the requester, not the owner.
func (c *Cache) AcquireExternal(requester CoreRef) {
	if requester.ID() == c.owner.ID() {
		panic(fmt.Sprintf("cache %s: acquire_external called by owning core", c.Name))
	}
	c.acquireLocal(requester)
	c.alienID = requester.ID()
}

// SnoopFind looks up addr under an externally held lock. If
// invalidateReservation is true and the reservation matches this block,
// it is cleared: this is how a remote write breaks a local LR.
func (c *Cache) SnoopFind(addr uint32, invalidateReservation bool) (*Line, bool) {
	block, _, index, tag := c.decompose(addr)
	if invalidateReservation && c.reserved == block {
		c.reserved = -1
	}
	line := c.find(index, tag)
	if line == nil {
		return nil, false
	}
	return line, true
}

// ReleaseExternal is the symmetric release for AcquireExternal.
func (c *Cache) ReleaseExternal(requester CoreRef) {
	if requester.ID() != c.alienID {
		panic(fmt.Sprintf("cache %s: release_external by non-holding core", c.Name))
	}
	c.alienID = -1
	c.releaseLocal()
}

// String renders the cache contents, one line per cache line.
func (c *Cache) String() string {
	out := fmt.Sprintf("%s (%d-way associative cache):\n", c.Name, c.Assoc)
	for i, set := range c.sets {
		out += fmt.Sprintf(" S%d:\n", i)
		for _, line := range set.lines {
			out += fmt.Sprintf("   tag=%d flag=%s data=%v\n", line.Tag, line.Flag, line.Data)
		}
	}
	return out
}
