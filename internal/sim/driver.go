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

package sim

import (
	"context"
	"log/slog"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/danidim13/risc-sim/internal/sched"
)

// Core is the subset of cpu.Core the driver needs to supervise a run.
type Core interface {
	Run(done *atomic.Bool)
	Idle() bool
}

// Driver owns the shared barrier and done flag and runs a fixed set of
// cores to completion: every core plus the driver itself joins the
// barrier exactly once per simulated cycle.
type Driver struct {
	Barrier   *Barrier
	scheduler *sched.Scheduler
	cores     []Core
	done      atomic.Bool
}

// NewDriver builds a driver for the given cores, joining barrier as its
// extra party and sharing scheduler to decide when the run has
// quiesced (every core idle and the ready queue empty). barrier must
// have been built for len(cores)+1 parties.
func NewDriver(barrier *Barrier, scheduler *sched.Scheduler, cores ...Core) *Driver {
	return &Driver{
		Barrier:   barrier,
		scheduler: scheduler,
		cores:     cores,
	}
}

// Run launches one goroutine per core via errgroup, plus this
// goroutine acting as the monitor. Each cycle the monitor waits for
// every core to park at the barrier, checks quiescence while they are
// at rest, and only then joins the barrier itself. done is therefore
// always stored while the cores are parked, so the barrier release
// orders the store before every core's next done check: either all
// cores exit this cycle, or none do.
func (d *Driver) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, c := range d.cores {
		c := c
		g.Go(func() error {
			c.Run(&d.done)
			return ctx.Err()
		})
	}

	for {
		d.Barrier.AwaitOthers()

		if d.quiescent() {
			d.done.Store(true)
			slog.Debug("simulation quiesced, signaling shutdown")
		}
		stop := d.done.Load()

		d.Barrier.Wait()

		if stop {
			break
		}
	}

	return g.Wait()
}

// Done reports whether the driver has signaled shutdown, for callers
// that need to poll outside of Run (e.g. an interactive inspector).
func (d *Driver) Done() bool { return d.done.Load() }

func (d *Driver) quiescent() bool {
	if d.scheduler.ReadyLen() != 0 {
		return false
	}
	for _, c := range d.cores {
		if !c.Idle() {
			return false
		}
	}
	return true
}
