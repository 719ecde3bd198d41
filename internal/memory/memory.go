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

// Package memory implements the simulator's block-addressed backing
// store.
package memory

import "fmt"

// WordsPerBlock (P) and BytesPerWord (bpp), the simulator's block
// geometry.
const (
	WordsPerBlock = 4
	BytesPerWord  = 4
	blockBytes    = WordsPerBlock * BytesPerWord
)

// Block is a copy of one aligned P-word line, either a memory block or
// a cache line snapshot handed across the bus.
type Block struct {
	Address uint32 // block-aligned byte address this snapshot was read from
	Data    [WordsPerBlock]int32
}

// Memory is a contiguous half-open byte range [Start, End) of
// block-aligned storage. It has no internal locking: the bus
// serializes all access.
type Memory struct {
	Name   string
	Start  uint32
	End    uint32
	blocks []Block
}

// New builds a memory covering [start, end) with numBlocks blocks of
// WordsPerBlock words each. Panics unless start + numBlocks*blockBytes
// lands exactly on end.
func New(name string, start, end uint32, numBlocks int) *Memory {
	if end <= start {
		panic(fmt.Sprintf("memory %s: end %d must be greater than start %d", name, end, start))
	}
	if start+uint32(numBlocks*blockBytes) != end {
		panic(fmt.Sprintf("memory %s: start %d + numBlocks %d * blockBytes %d != end %d",
			name, start, numBlocks, blockBytes, end))
	}

	m := &Memory{Name: name, Start: start, End: end, blocks: make([]Block, numBlocks)}
	for i := range m.blocks {
		m.blocks[i].Address = start + uint32(i*blockBytes)
	}
	return m
}

func (m *Memory) blockIndex(addr uint32) (int, error) {
	if addr < m.Start || addr >= m.End {
		return 0, fmt.Errorf("memory %s: address 0x%x out of range [0x%x,0x%x)", m.Name, addr, m.Start, m.End)
	}
	return int((addr - m.Start) / blockBytes), nil
}

// Get returns a copy of the block containing addr.
func (m *Memory) Get(addr uint32) (Block, error) {
	idx, err := m.blockIndex(addr)
	if err != nil {
		return Block{}, err
	}
	return m.blocks[idx], nil
}

// Set overwrites the backing block at addr with b's data.
func (m *Memory) Set(addr uint32, b Block) error {
	idx, err := m.blockIndex(addr)
	if err != nil {
		return err
	}
	m.blocks[idx].Data = b.Data
	return nil
}

// BulkLoad writes a contiguous run of words starting at addr, spilling
// into successive blocks. Used by the program loader.
func (m *Memory) BulkLoad(addr uint32, words []int32) error {
	idx, err := m.blockIndex(addr)
	if err != nil {
		return err
	}
	offset := int((addr - m.Start) % blockBytes / BytesPerWord)

	for _, w := range words {
		if idx >= len(m.blocks) {
			return fmt.Errorf("memory %s: bulk load overruns memory at address 0x%x", m.Name, addr)
		}
		m.blocks[idx].Data[offset] = w
		offset++
		if offset >= WordsPerBlock {
			offset = 0
			idx++
		}
	}
	return nil
}

// NumBlocks reports the number of blocks backing this memory.
func (m *Memory) NumBlocks() int {
	return len(m.blocks)
}

// String renders the full memory contents, one line per block.
func (m *Memory) String() string {
	out := m.Name + ":\n"
	for _, b := range m.blocks {
		out += fmt.Sprintf("  0x%04x: %v\n", b.Address, b.Data)
	}
	return out
}
