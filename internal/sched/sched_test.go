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

package sched

import "testing"

func TestFIFOOrder(t *testing.T) {
	s := New(25)
	a := &PCB{PID: 1}
	b := &PCB{PID: 2}
	s.PutReady(a)
	s.PutReady(b)

	got, ok := s.NextReady()
	if !ok || got.PID != 1 {
		t.Fatalf("expected PID 1 first, got %+v ok=%v", got, ok)
	}
	got, ok = s.NextReady()
	if !ok || got.PID != 2 {
		t.Fatalf("expected PID 2 second, got %+v ok=%v", got, ok)
	}
	if _, ok := s.NextReady(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestPutReadyResetsQuantum(t *testing.T) {
	s := New(25)
	pcb := &PCB{PID: 1, Quantum: 0}
	s.PutReady(pcb)
	if pcb.Quantum != 25 {
		t.Fatalf("quantum = %d, want 25", pcb.Quantum)
	}
	if pcb.Status != Ready {
		t.Fatalf("status = %v, want Ready", pcb.Status)
	}
}

func TestPutReadyPanicsOnNonzeroQuantum(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	New(25).PutReady(&PCB{Quantum: 3})
}

func TestPutFinished(t *testing.T) {
	s := New(25)
	pcb := &PCB{PID: 9}
	s.PutFinished(pcb)
	if pcb.Status != Finished {
		t.Fatalf("status = %v, want Finished", pcb.Status)
	}
	if got := s.FinishedLen(); got != 1 {
		t.Fatalf("FinishedLen = %d, want 1", got)
	}
}
