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

// Package loader reads program files and directories of program files
// into instruction memory and produces the PCBs that seed the ready
// queue. Loading happens entirely before the simulation starts.
package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/danidim13/risc-sim/internal/isa"
	"github.com/danidim13/risc-sim/internal/memory"
	"github.com/danidim13/risc-sim/internal/sched"
)

// Loader assembles program files into an instruction memory and hands
// back the PCB for each, assigning sequential PIDs and packing each
// program back-to-back starting at base.
type Loader struct {
	mem     *memory.Memory
	base    uint32
	next    uint32
	nextPID int
}

// New builds a loader that packs programs into mem starting at base.
// Every returned PCB starts with Quantum 0; the scheduler assigns the
// configured quantum when the PCB first enters the ready queue.
func New(mem *memory.Memory, base uint32) *Loader {
	return &Loader{mem: mem, base: base, next: base}
}

// LoadFile reads one program file (one instruction per line, four
// whitespace-separated decimal integers), encodes each line into
// instruction memory, and returns the PCB ready to enter the ready
// queue.
func (l *Loader) LoadFile(path string) (*sched.PCB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	defer f.Close()

	var words []int32
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("loader: %s:%d: expected 4 fields, got %d", path, lineNo, len(fields))
		}

		vals := make([]int32, 4)
		for i, field := range fields {
			n, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("loader: %s:%d: field %d: %w", path, lineNo, i, err)
			}
			vals[i] = int32(n)
		}

		word, err := isa.Encode(vals[0], vals[1], vals[2], vals[3])
		if err != nil {
			return nil, fmt.Errorf("loader: %s:%d: %w", path, lineNo, err)
		}
		words = append(words, int32(word))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}

	start := l.next
	if err := l.mem.BulkLoad(start, words); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	l.next += uint32(len(words)) * memory.BytesPerWord

	// Quantum stays 0 here: PutReady requires that and assigns the
	// configured quantum itself.
	pcb := &sched.PCB{
		PID:    l.nextPID,
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		PC:     start,
		Status: sched.Ready,
	}
	l.nextPID++
	return pcb, nil
}

// LoadDir loads every regular file in dir, in lexical filename order,
// as a separate program.
func (l *Loader) LoadDir(dir string) ([]*sched.PCB, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pcbs := make([]*sched.PCB, 0, len(names))
	for _, name := range names {
		pcb, err := l.LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		pcbs = append(pcbs, pcb)
	}
	return pcbs, nil
}

// LoadFiles loads each named file, in the given order, as a separate
// program.
func (l *Loader) LoadFiles(paths []string) ([]*sched.PCB, error) {
	pcbs := make([]*sched.PCB, 0, len(paths))
	for _, p := range paths {
		pcb, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		pcbs = append(pcbs, pcb)
	}
	return pcbs, nil
}
