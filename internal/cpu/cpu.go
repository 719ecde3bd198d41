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

// Package cpu implements the per-core fetch-decode-execute-memory-
// writeback pipeline, quantum-based context switching, and the
// round-robin scheduling of PCBs onto a core.
package cpu

import (
	"fmt"
	"log/slog"

	"go.uber.org/atomic"

	"github.com/danidim13/risc-sim/internal/cache"
	"github.com/danidim13/risc-sim/internal/isa"
	"github.com/danidim13/risc-sim/internal/sched"
)

// Barrier is the cross-thread cycle synchronization primitive a Core
// joins once per simulated cycle, whether running or idle. It is a
// narrow interface, not a direct dependency on the sim package, to
// keep the Core<->driver wiring free of an import cycle.
type Barrier interface {
	Wait()
}

// Core is one simulated processor: a 32-register working set, a
// program counter, private instruction and data caches, and the
// bookkeeping needed to timeshare PCBs across a quantum.
type Core struct {
	id   int
	Name string

	registers [32]int32
	pc        uint32
	clock     int64

	instCache *cache.Cache
	dataCache *cache.Cache
	scheduler *sched.Scheduler
	barrier   Barrier

	pcb        *sched.PCB
	startClock int64

	idle          atomic.Bool
	scheduleCount map[int]int
}

// New builds a core. instCache and dataCache must already be wired to
// their bus (see cache.NewBus); scheduler is the shared ready/finished
// queue pair; barrier is the cross-core cycle synchronizer.
func New(id int, name string, instCache, dataCache *cache.Cache, scheduler *sched.Scheduler, barrier Barrier) *Core {
	c := &Core{
		id:            id,
		Name:          name,
		instCache:     instCache,
		dataCache:     dataCache,
		scheduler:     scheduler,
		barrier:       barrier,
		scheduleCount: make(map[int]int),
	}
	c.idle.Store(true)
	return c
}

// ID identifies this core for cache.CoreRef (acquire_external's
// requester-is-not-owner check, and miss-penalty cycle charging).
func (c *Core) ID() int { return c.id }

// Tick advances the core's clock by cycles simulated cycles, joining
// the barrier once per cycle. This is the only place a Core (or a cache
// acting on its behalf) observes the barrier.
func (c *Core) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		c.barrier.Wait()
		c.clock++
	}
}

// Idle reports whether this core currently has no PCB to run.
func (c *Core) Idle() bool { return c.idle.Load() }

// Clock returns the core's simulated cycle count.
func (c *Core) Clock() int64 { return c.clock }

// Registers returns a copy of the working register file.
func (c *Core) Registers() [32]int32 { return c.registers }

// PC returns the current program counter.
func (c *Core) PC() uint32 { return c.pc }

// ScheduleCount returns a copy of the per-PID schedule count, for
// post-run inspection.
func (c *Core) ScheduleCount() map[int]int {
	out := make(map[int]int, len(c.scheduleCount))
	for k, v := range c.scheduleCount {
		out[k] = v
	}
	return out
}

func (c *Core) getReg(i int32) int32 {
	if i == 0 {
		return 0
	}
	return c.registers[i]
}

func (c *Core) setReg(i int32, val int32) {
	if i == 0 {
		return
	}
	c.registers[i] = val
}

// tryAcquirePCB pulls the next ready PCB onto this core. An empty
// ready queue is not an error: the core transitions to idle and
// returns false.
func (c *Core) tryAcquirePCB() bool {
	next, ok := c.scheduler.NextReady()
	if !ok {
		c.idle.Store(true)
		return false
	}

	c.pc = next.PC
	c.registers = next.Registers
	c.startClock = c.clock
	next.Status = sched.Running
	c.pcb = next
	c.scheduleCount[next.PID]++
	c.idle.Store(false)
	return true
}

// Run drives the core until done reports true, stepping the current PCB
// when one is assigned and otherwise idling. The barrier is joined
// once per cycle either way.
func (c *Core) Run(done *atomic.Bool) {
	for !done.Load() {
		if c.pcb == nil {
			if !c.tryAcquirePCB() {
				c.Tick(1)
				continue
			}
		}
		c.Step()
	}
}

// Step executes one instruction through all five pipeline stages and
// performs a context switch if the quantum has expired or the program
// has finished.
func (c *Core) Step() {
	pcAfterFetch, ins := c.fetch()
	op, rd, rf1, rf2, imm := c.decode(ins)
	xd, memd, jmp, jmpTarget := c.execute(op, rf1, rf2, imm, pcAfterFetch)
	xd = c.memoryStage(op, memd, rf2, xd)
	c.writeBack(op, rd, xd, jmp, jmpTarget)

	finished := op == isa.OpFIN

	c.pcb.Quantum--
	if finished {
		c.pcb.Quantum = 0
	}

	c.Tick(1)

	if finished || c.pcb.Quantum == 0 {
		c.contextSwitch(finished)
	}
}

func (c *Core) fetch() (pcAfterFetch uint32, ins uint32) {
	word, hit := c.instCache.Load(c.pc)
	if !hit {
		slog.Debug(fmt.Sprintf("%s: instruction miss", c.Name), "pc", c.pc)
	}
	c.pc += 4
	return c.pc, uint32(word)
}

func (c *Core) decode(word uint32) (op, rd, rf1, rf2, imm int32) {
	opRaw, a1, a2, a3 := isa.Decode(word)
	op = opRaw

	switch op {
	case isa.OpADD, isa.OpSUB, isa.OpMUL, isa.OpDIV:
		rd, rf1, rf2 = a1, a2, a3
	case isa.OpADDI:
		rd, rf1, imm = a1, a2, a3
	case isa.OpLW:
		rd, rf1, imm = a1, a2, a3
	case isa.OpSW:
		rf2, rf1, imm = a1, a2, a3
	case isa.OpLR:
		rd, rf1 = a1, a2
	case isa.OpSC:
		rf1, rf2 = a1, a2
		rd = a2
	case isa.OpBEQ, isa.OpBNE:
		rf1, rf2, imm = a1, a2, a3
	case isa.OpJAL:
		rd, imm = a1, a3
	case isa.OpJALR:
		rd, rf1, imm = a1, a2, a3
	case isa.OpFIN, isa.OpNoop:
	default:
		slog.Warn(fmt.Sprintf("%s: unknown opcode, treating as NOOP", c.Name), "opcode", op)
		op = isa.OpNoop
	}
	return op, rd, rf1, rf2, imm
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func (c *Core) execute(op, rf1, rf2, imm int32, pcAfterFetch uint32) (xd int32, memd uint32, jmp bool, jmpTarget uint32) {
	switch op {
	case isa.OpADD:
		xd = c.getReg(rf1) + c.getReg(rf2)
	case isa.OpSUB:
		xd = c.getReg(rf1) - c.getReg(rf2)
	case isa.OpMUL:
		xd = c.getReg(rf1) * c.getReg(rf2)
	case isa.OpDIV:
		xd = floorDiv(c.getReg(rf1), c.getReg(rf2))
	case isa.OpADDI:
		xd = c.getReg(rf1) + imm
	case isa.OpLW, isa.OpSW:
		memd = uint32(int64(c.getReg(rf1)) + int64(imm))
	case isa.OpLR, isa.OpSC:
		memd = uint32(c.getReg(rf1))
	case isa.OpBEQ:
		jmp = c.getReg(rf1) == c.getReg(rf2)
		jmpTarget = uint32(int64(pcAfterFetch) + int64(imm)*4)
	case isa.OpBNE:
		jmp = c.getReg(rf1) != c.getReg(rf2)
		jmpTarget = uint32(int64(pcAfterFetch) + int64(imm)*4)
	case isa.OpJAL:
		jmp = true
		jmpTarget = uint32(int64(pcAfterFetch) + int64(imm))
		xd = int32(pcAfterFetch)
	case isa.OpJALR:
		jmp = true
		jmpTarget = uint32(int64(c.getReg(rf1)) + int64(imm))
		xd = int32(pcAfterFetch)
	}
	return xd, memd, jmp, jmpTarget
}

func (c *Core) memoryStage(op int32, memd uint32, rf2 int32, xd int32) int32 {
	switch op {
	case isa.OpLW:
		word, hit := c.dataCache.Load(memd)
		c.recordAccess(hit)
		return word

	case isa.OpSW:
		hit := c.dataCache.Store(memd, c.getReg(rf2))
		c.recordAccess(hit)
		return xd

	case isa.OpLR:
		word, hit := c.dataCache.LoadReserved(memd)
		c.recordAccess(hit)
		return word

	case isa.OpSC:
		val := c.getReg(rf2)
		hit, success := c.dataCache.StoreConditional(memd, val)
		c.recordAccess(hit)
		if success {
			return val
		}
		return 0

	default:
		return xd
	}
}

func (c *Core) recordAccess(hit bool) {
	if hit {
		c.pcb.Hits++
	} else {
		c.pcb.Misses++
	}
}

func (c *Core) writeBack(op, rd int32, xd int32, jmp bool, jmpTarget uint32) {
	if jmp {
		c.pc = jmpTarget
	}
	switch op {
	case isa.OpADD, isa.OpSUB, isa.OpMUL, isa.OpDIV, isa.OpADDI,
		isa.OpLW, isa.OpLR, isa.OpJAL, isa.OpJALR, isa.OpSC:
		c.setReg(rd, xd)
	}
}

// contextSwitch saves the running PCB, returns it to the scheduler, and
// pulls the next one (or goes idle). The switch itself costs one
// simulated cycle, and the reservation never survives it.
func (c *Core) contextSwitch(finished bool) {
	c.dataCache.ClearReservation()

	pcb := c.pcb
	pcb.PC = c.pc
	pcb.Registers = c.registers
	pcb.Ticks += int(c.clock - c.startClock)

	if finished {
		c.scheduler.PutFinished(pcb)
	} else {
		c.scheduler.PutReady(pcb)
	}

	c.Tick(1)

	c.pcb = nil
	c.tryAcquirePCB()
}

// String renders the core's register file for the final state dump.
func (c *Core) String() string {
	out := fmt.Sprintf("%s:\nPC: %d, ticks: %d\nRegs:\n[", c.Name, c.pc, c.clock)
	for i, r := range c.registers {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("r%02d: %d", i, r)
	}
	return out + "]\n"
}
