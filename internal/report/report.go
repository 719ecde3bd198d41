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

// Package report formats the end-of-run state dump: per-core
// registers, cache contents, backing memory, and per-thread
// statistics. Reporting sits outside the simulated machine; nothing
// here feeds back into a run.
package report

import (
	"fmt"
	"io"

	"github.com/danidim13/risc-sim/internal/cache"
	"github.com/danidim13/risc-sim/internal/cpu"
	"github.com/danidim13/risc-sim/internal/memory"
	"github.com/danidim13/risc-sim/internal/sched"
)

// Run collects everything a final report needs a reference to.
type Run struct {
	Cores      []*cpu.Core
	DataCaches []*cache.Cache
	InstCaches []*cache.Cache
	DataMemory *memory.Memory
	InstMemory *memory.Memory
	Scheduler  *sched.Scheduler
}

// WriteFinalState renders the complete post-run dump to w.
func WriteFinalState(w io.Writer, r Run) {
	fmt.Fprintln(w, "=== final core state ===")
	for _, c := range r.Cores {
		fmt.Fprint(w, c.String())
		fmt.Fprintln(w, "schedule counts:", c.ScheduleCount())
	}

	fmt.Fprintln(w, "\n=== finished threads ===")
	for _, pcb := range r.Scheduler.Finished() {
		fmt.Fprintln(w, pcb.String())
	}

	fmt.Fprintln(w, "\n=== data caches ===")
	for _, c := range r.DataCaches {
		fmt.Fprint(w, c.String())
	}

	fmt.Fprintln(w, "\n=== instruction caches ===")
	for _, c := range r.InstCaches {
		fmt.Fprint(w, c.String())
	}

	fmt.Fprintln(w, "\n=== data memory ===")
	fmt.Fprint(w, r.DataMemory.String())

	fmt.Fprintln(w, "\n=== instruction memory ===")
	fmt.Fprint(w, r.InstMemory.String())
}
