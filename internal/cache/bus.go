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

package cache

import (
	"log/slog"
	"sync"

	"github.com/danidim13/risc-sim/internal/memory"
)

// Bus arbitrates snoop-shared, snoop-exclusive, and write-back
// transactions between a set of peer caches and the memory they back.
type Bus struct {
	Name string

	mu     sync.Mutex
	memory *memory.Memory
	peers  []*Cache
}

// NewBus wires caches to a shared bus fronting memory. Each cache's bus
// back-reference is set as a side effect.
func NewBus(name string, mem *memory.Memory, caches []*Cache) *Bus {
	b := &Bus{Name: name, memory: mem, peers: caches}
	for _, c := range caches {
		c.attachBus(b)
	}
	return b
}

func (b *Bus) blockAddr(line *Line) uint32 {
	return uint32(line.Tag) * blockBytes
}

// SnoopShared asks every peer but requester whether they hold addr. A
// Modified copy is written back and downgraded to Shared; its data is
// returned. A Shared copy's data is returned without touching memory.
// On an all-miss, memory is the authority.
func (b *Bus) SnoopShared(addr uint32, requester *Cache) memory.Block {
	for _, peer := range b.peers {
		if peer == requester {
			continue
		}

		peer.AcquireExternal(requester.owner)
		line, hit := peer.SnoopFind(addr, false)
		if !hit {
			peer.ReleaseExternal(requester.owner)
			continue
		}

		if line.Flag == Modified {
			blkAddr := b.blockAddr(line)
			if err := b.memory.Set(blkAddr, memory.Block{Address: blkAddr, Data: line.Data}); err != nil {
				panic(err)
			}
			line.Flag = Shared
			slog.Debug("snoop_shared: dirty hit, wrote back", "bus", b.Name, "addr", addr, "peer", peer.Name)
		}

		snapshot := memory.Block{Address: b.blockAddr(line), Data: line.Data}
		peer.ReleaseExternal(requester.owner)
		return snapshot
	}

	blk, err := b.memory.Get(addr)
	if err != nil {
		panic(err)
	}
	return blk
}

// SnoopExclusive invalidates every peer's copy of addr's block, writing
// back any Modified copy first. It cannot stop early on a Shared hit —
// there may be other sharers — only a Modified hit ends the scan, since
// MSI guarantees no other sharer can coexist with a Modified copy.
func (b *Bus) SnoopExclusive(addr uint32, requester *Cache) memory.Block {
	var result *memory.Block

	for _, peer := range b.peers {
		if peer == requester {
			continue
		}

		peer.AcquireExternal(requester.owner)
		line, hit := peer.SnoopFind(addr, true)
		if !hit {
			peer.ReleaseExternal(requester.owner)
			continue
		}

		if line.Flag == Modified {
			blkAddr := b.blockAddr(line)
			if err := b.memory.Set(blkAddr, memory.Block{Address: blkAddr, Data: line.Data}); err != nil {
				panic(err)
			}
			snapshot := memory.Block{Address: blkAddr, Data: line.Data}
			line.Flag = Invalid
			line.Tag = -1
			peer.ReleaseExternal(requester.owner)
			result = &snapshot
			break
		}

		line.Flag = Invalid
		line.Tag = -1
		peer.ReleaseExternal(requester.owner)
	}

	if result != nil {
		return *result
	}

	blk, err := b.memory.Get(addr)
	if err != nil {
		panic(err)
	}
	return blk
}

// WriteBack commits an evicted cache line back to memory. Called by a
// cache holding the bus lock during victim eviction.
func (b *Bus) WriteBack(addr uint32, block memory.Block, _ *Cache) error {
	return b.memory.Set(addr, block)
}
