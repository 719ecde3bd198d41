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

// Package sched implements the global ready/finished process queues and
// the process control block (PCB, a "hilillo") that a core runs.
package sched

import (
	"fmt"
	"sync"
)

// Status is the lifecycle state of a PCB.
type Status int

const (
	Ready Status = iota
	Running
	Finished
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// PCB is one software thread (hilillo): its saved register file, PC,
// scheduling state, and running statistics.
type PCB struct {
	PID       int
	Name      string
	Registers [32]int32
	PC        uint32
	Quantum   int
	Ticks     int
	Hits      int
	Misses    int
	Status    Status
}

// String renders a PCB's identity and running statistics as one
// report line.
func (p *PCB) String() string {
	return fmt.Sprintf("hilo %d (%s): status=%s pc=%d ticks=%d hits=%d misses=%d",
		p.PID, p.Name, p.Status, p.PC, p.Ticks, p.Hits, p.Misses)
}

// Scheduler holds the global ready and finished FIFOs of PCBs, shared by
// every simulated core.
type Scheduler struct {
	mu       sync.Mutex
	ready    []*PCB
	finished []*PCB
	quantum  int
}

// New builds a scheduler that resets quantum to q on every enqueue to
// ready.
func New(q int) *Scheduler {
	return &Scheduler{quantum: q}
}

// NextReady dequeues the oldest ready PCB in FIFO order. ok is false
// when the queue is empty; callers (a core between PCBs) interpret
// that as "go idle", not an error.
func (s *Scheduler) NextReady() (pcb *PCB, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return nil, false
	}
	pcb, s.ready = s.ready[0], s.ready[1:]
	return pcb, true
}

// PutReady requires pcb.Quantum == 0, resets it to the configured
// quantum, and enqueues pcb at the back of ready.
func (s *Scheduler) PutReady(pcb *PCB) {
	if pcb.Quantum != 0 {
		panic("sched: PutReady called with nonzero quantum")
	}
	pcb.Quantum = s.quantum
	pcb.Status = Ready

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, pcb)
}

// PutFinished requires pcb.Quantum == 0 and enqueues pcb onto finished.
func (s *Scheduler) PutFinished(pcb *PCB) {
	if pcb.Quantum != 0 {
		panic("sched: PutFinished called with nonzero quantum")
	}
	pcb.Status = Finished

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, pcb)
}

// Finished returns a snapshot of the finished queue, for end-of-run
// reporting.
func (s *Scheduler) Finished() []*PCB {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PCB, len(s.finished))
	copy(out, s.finished)
	return out
}

// ReadyLen and FinishedLen expose queue depths for the driver's
// quiescence check and for the PCB-conservation check in tests.
func (s *Scheduler) ReadyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready)
}

func (s *Scheduler) FinishedLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finished)
}
