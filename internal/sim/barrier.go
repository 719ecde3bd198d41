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

// Package sim implements the cycle-synchronous barrier and the
// simulation driver that runs every core to completion.
package sim

import "sync"

// Barrier is a reusable cyclic barrier: n parties call Wait once per
// simulated cycle, and none proceeds to the next cycle until all n
// have arrived.
type Barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	n     int
	count int
	gen   int
}

// NewBarrier builds a barrier for n parties.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all n parties have called Wait for the current
// cycle, then releases them all together and advances the generation.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen++
		b.cond.Broadcast()
		return
	}
	if b.count == b.n-1 {
		// Wake a party parked in AwaitOthers.
		b.cond.Broadcast()
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}

// AwaitOthers blocks until the other n-1 parties are parked at the
// barrier for the current cycle. The caller may then inspect their
// state at rest before releasing everyone with its own Wait. The
// driver uses this to decide termination while every core is provably
// not mid-operation.
func (b *Barrier) AwaitOthers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.count != b.n-1 {
		b.cond.Wait()
	}
}
