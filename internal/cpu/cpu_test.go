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

package cpu

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danidim13/risc-sim/internal/cache"
	"github.com/danidim13/risc-sim/internal/isa"
	"github.com/danidim13/risc-sim/internal/memory"
	"github.com/danidim13/risc-sim/internal/sched"
)

// noBarrier satisfies Barrier for a single core run in isolation: there
// is nothing else to synchronize with.
type noBarrier struct{}

func (noBarrier) Wait() {}

// newSoloCore builds one core with its own data/instruction caches and
// buses, each mapping a single peer (itself), so a bus transaction
// always falls through to memory. Test-only: built from unexported
// Core fields directly since this file lives in package cpu.
func newSoloCore(t *testing.T, quantum int) (*Core, *memory.Memory, *memory.Memory, *sched.Scheduler) {
	t.Helper()

	instMem := memory.New("Inst memory", 384, 1024, 40)
	dataMem := memory.New("Data memory", 0, 384, 24)

	c := &Core{
		id:            0,
		Name:          "Core0",
		barrier:       noBarrier{},
		scheduleCount: make(map[int]int),
	}
	c.idle.Store(true)

	instCache := cache.New("Inst$0", 384, 1024, 1, 8, c)
	dataCache := cache.New("Data$0", 0, 384, 1, 8, c)
	cache.NewBus("inst bus", instMem, []*cache.Cache{instCache})
	cache.NewBus("data bus", dataMem, []*cache.Cache{dataCache})

	c.instCache = instCache
	c.dataCache = dataCache

	scheduler := sched.New(quantum)
	c.scheduler = scheduler

	return c, instMem, dataMem, scheduler
}

type asmIns struct{ op, a1, a2, a3 int32 }

func assemble(t *testing.T, mem *memory.Memory, base uint32, ins []asmIns) {
	t.Helper()
	words := make([]int32, len(ins))
	for i, in := range ins {
		w, err := isa.Encode(in.op, in.a1, in.a2, in.a3)
		if err != nil {
			t.Fatalf("Encode instr %d: %v", i, err)
		}
		words[i] = int32(w)
	}
	if err := mem.BulkLoad(base, words); err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}
}

// runToCompletion feeds pcb onto the core and steps until it finishes
// (FIN reached, core goes idle with nothing left to run).
func runToCompletion(t *testing.T, c *Core, pcb *sched.PCB) {
	t.Helper()
	c.scheduler.PutReady(pcb)
	c.tryAcquirePCB()
	stepUntilIdle(t, c)
}

// stepUntilIdle steps whatever PCB is already assigned to c until the
// core has nothing left to run.
func stepUntilIdle(t *testing.T, c *Core) {
	t.Helper()
	const maxSteps = 10000
	steps := 0
	for c.pcb != nil {
		c.Step()
		steps++
		if steps > maxSteps {
			t.Fatalf("program did not finish within %d steps", maxSteps)
		}
	}
}

// TestArithmeticAndMemoryScenario exercises ADDI, SW, LW, and MUL
// through the full five-stage pipeline on one core.
func TestArithmeticAndMemoryScenario(t *testing.T) {
	c, instMem, _, _ := newSoloCore(t, 25)

	const base = 384
	assemble(t, instMem, base, []asmIns{
		{isa.OpADDI, 1, 0, 5},   // r1 = 5
		{isa.OpADDI, 2, 0, 0},   // r2 = 0 (base address)
		{isa.OpSW, 1, 2, 0},     // mem[r2+0] = r1
		{isa.OpLW, 3, 2, 0},     // r3 = mem[r2+0]        -> 5
		{isa.OpADDI, 4, 0, 200}, // r4 = 200
		{isa.OpADDI, 5, 0, 4},   // r5 = 4
		{isa.OpADDI, 6, 0, 2},   // r6 = 2
		{isa.OpMUL, 8, 5, 6},    // r8 = r5 * r6          -> 8
		{isa.OpADDI, 20, 0, 2},  // r20 = 2
		{isa.OpFIN, 0, 0, 0},
	})

	pcb := &sched.PCB{PID: 0, Name: "arith", PC: base, Status: sched.Ready}
	runToCompletion(t, c, pcb)

	var want [32]int32
	want[1] = 5
	want[2] = 0
	want[3] = 5
	want[4] = 200
	want[5] = 4
	want[6] = 2
	want[8] = 8
	want[20] = 2
	if diff := cmp.Diff(want, c.Registers()); diff != "" {
		t.Errorf("final register file mismatch (-want +got):\n%s", diff)
	}
}

// TestLoopAndBranchScenario exercises a decrementing BNE loop plus
// further arithmetic.
func TestLoopAndBranchScenario(t *testing.T) {
	c, instMem, _, _ := newSoloCore(t, 25)

	const base = 384
	assemble(t, instMem, base, []asmIns{
		{isa.OpADDI, 6, 0, 2},   // idx0: r6 = 2 (loop-exit value)
		{isa.OpADDI, 2, 0, 5},   // idx1: r2 = 5 (loop counter)
		{isa.OpADDI, 2, 2, -1},  // idx2: r2 -= 1              <- loop target
		{isa.OpBNE, 2, 6, -2},   // idx3: branch to idx2 while r2 != r6
		{isa.OpADDI, 4, 0, 99},  // idx4: r4 = 99
		{isa.OpADDI, 5, 0, 99},  // idx5: r5 = 99
		{isa.OpADDI, 10, 0, 99}, // idx6: r10 = 99
		{isa.OpADDI, 21, 0, 10}, // idx7: r21 = 10
		{isa.OpADDI, 22, 0, 12}, // idx8: r22 = 12
		{isa.OpADDI, 23, 0, 6},  // idx9: r23 = 6
		{isa.OpADDI, 11, 0, 11}, // idx10: r11 = 11
		{isa.OpMUL, 8, 22, 11},  // idx11: r8 = r22 * r11      -> 132
		{isa.OpFIN, 0, 0, 0},
	})

	pcb := &sched.PCB{PID: 0, Name: "loops", PC: base, Status: sched.Ready}
	runToCompletion(t, c, pcb)

	var want [32]int32
	want[2] = 2
	want[4] = 99
	want[5] = 99
	want[6] = 2
	want[8] = 132
	want[10] = 99
	want[11] = 11
	want[21] = 10
	want[22] = 12
	want[23] = 6
	if diff := cmp.Diff(want, c.Registers()); diff != "" {
		t.Errorf("final register file mismatch (-want +got):\n%s", diff)
	}
}

// TestJumpsAndFloorDivision covers the remaining ALU and control-flow
// opcodes: DIV rounds toward negative infinity, JAL/JALR link the
// post-fetch PC, and a taken BEQ skips its fall-through.
func TestJumpsAndFloorDivision(t *testing.T) {
	c, instMem, _, _ := newSoloCore(t, 25)

	const base = 384
	assemble(t, instMem, base, []asmIns{
		{isa.OpADDI, 1, 0, -7},   // idx0: r1 = -7
		{isa.OpADDI, 2, 0, 2},    // idx1: r2 = 2
		{isa.OpDIV, 3, 1, 2},     // idx2: r3 = -7 div 2 -> -4
		{isa.OpADD, 4, 1, 2},     // idx3: r4 = -5
		{isa.OpSUB, 5, 2, 1},     // idx4: r5 = 9
		{isa.OpJAL, 6, 0, 4},     // idx5: jump to idx7, r6 = 408
		{isa.OpADDI, 7, 0, 111},  // idx6: skipped
		{isa.OpADDI, 8, 0, 1},    // idx7: r8 = 1
		{isa.OpBEQ, 8, 8, 1},     // idx8: taken, skips idx9
		{isa.OpADDI, 9, 0, 222},  // idx9: skipped
		{isa.OpADDI, 10, 0, 436}, // idx10: r10 = address of idx13
		{isa.OpJALR, 11, 10, 0},  // idx11: jump to idx13, r11 = 432
		{isa.OpADDI, 12, 0, 333}, // idx12: skipped
		{isa.OpFIN, 0, 0, 0},     // idx13
	})

	pcb := &sched.PCB{PID: 0, Name: "jumps", PC: base, Status: sched.Ready}
	runToCompletion(t, c, pcb)

	var want [32]int32
	want[1] = -7
	want[2] = 2
	want[3] = -4
	want[4] = -5
	want[5] = 9
	want[6] = 408
	want[8] = 1
	want[10] = 436
	want[11] = 432
	if diff := cmp.Diff(want, c.Registers()); diff != "" {
		t.Errorf("final register file mismatch (-want +got):\n%s", diff)
	}
}

// TestQuantumExpiryReturnsPCBToReady checks that a program longer than
// the configured quantum is preempted mid-execution and its saved PC
// resumes correctly once rescheduled.
func TestQuantumExpiryReturnsPCBToReady(t *testing.T) {
	c, instMem, _, scheduler := newSoloCore(t, 3)

	const base = 384
	assemble(t, instMem, base, []asmIns{
		{isa.OpADDI, 1, 0, 1},
		{isa.OpADDI, 1, 1, 1},
		{isa.OpADDI, 1, 1, 1},
		{isa.OpADDI, 1, 1, 1},
		{isa.OpADDI, 1, 1, 1},
		{isa.OpFIN, 0, 0, 0},
	})

	pcb := &sched.PCB{PID: 0, Name: "q", PC: base, Status: sched.Ready}
	scheduler.PutReady(pcb)
	c.tryAcquirePCB()
	if c.pcb.Quantum != 3 {
		t.Fatalf("quantum = %d, want 3", c.pcb.Quantum)
	}

	c.Step()
	c.Step()
	c.Step()
	// Quantum exhausted: a context switch should have run, and since
	// the ready queue had nothing else, the core re-acquires the same
	// PCB (now with a fresh quantum) rather than going idle.
	if c.pcb == nil {
		t.Fatalf("expected PCB to be immediately rescheduled, got idle core")
	}
	if c.pcb.PID != 0 {
		t.Fatalf("expected same PCB rescheduled, got PID %d", c.pcb.PID)
	}
	if regs := c.Registers(); regs[1] != 3 {
		t.Fatalf("r1 = %d after 3 ADDI steps, want 3", regs[1])
	}

	stepUntilIdle(t, c)
	if got := c.Registers()[1]; got != 5 {
		t.Fatalf("r1 = %d after resuming, want 5", got)
	}
}
