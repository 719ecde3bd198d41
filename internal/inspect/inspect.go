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

// Package inspect provides an interactive post-mortem REPL over the
// finished simulation state: a liner-based prompt loop with history
// and tab completion of command names, whose commands query the run's
// cores, caches, and memory.
package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/danidim13/risc-sim/internal/cache"
	"github.com/danidim13/risc-sim/internal/cpu"
	"github.com/danidim13/risc-sim/internal/memory"
	"github.com/danidim13/risc-sim/internal/sched"
)

var commands = []string{"regs", "pcb", "cache", "mem", "help", "quit"}

// Session holds references to the finished run's state for the REPL
// commands to query.
type Session struct {
	Cores      []*cpu.Core
	Scheduler  *sched.Scheduler
	DataCaches []*cache.Cache
	DataMemory *memory.Memory
}

// Run starts the interactive prompt and blocks until the user quits or
// aborts (Ctrl-D / Ctrl-C).
func Run(s *Session) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, partial) {
				out = append(out, c)
			}
		}
		return out
	})

	fmt.Println("entering post-mortem inspector, type 'help' for commands")
	for {
		command, err := line.Prompt("risc-sim> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			fmt.Println("error reading line: " + err.Error())
			return
		}

		line.AppendHistory(command)
		if quit := s.dispatch(strings.Fields(command)); quit {
			return
		}
	}
}

func (s *Session) dispatch(fields []string) (quit bool) {
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "help":
		fmt.Println("commands: regs <core>, pcb <pid>, cache <core>, mem <addr>, quit")

	case "regs":
		id, err := parseIndex(fields, 1, len(s.Cores))
		if err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Print(s.Cores[id].String())

	case "pcb":
		if len(fields) < 2 {
			fmt.Println("usage: pcb <pid>")
			return false
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Println("bad pid:", fields[1])
			return false
		}
		s.printPCB(pid)

	case "cache":
		id, err := parseIndex(fields, 1, len(s.DataCaches))
		if err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Print(s.DataCaches[id].String())

	case "mem":
		if len(fields) < 2 {
			fmt.Println("usage: mem <addr>")
			return false
		}
		addr, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			fmt.Println("bad address:", fields[1])
			return false
		}
		blk, err := s.DataMemory.Get(uint32(addr))
		if err != nil {
			fmt.Println(err)
			return false
		}
		fmt.Printf("0x%04x: %v\n", blk.Address, blk.Data)

	default:
		fmt.Println("unknown command:", fields[0])
	}
	return false
}

func (s *Session) printPCB(pid int) {
	for _, pcb := range s.Scheduler.Finished() {
		if pcb.PID == pid {
			fmt.Println(pcb.String())
			return
		}
	}
	fmt.Println("no finished pcb with pid", pid)
}

func parseIndex(fields []string, pos, n int) (int, error) {
	if len(fields) <= pos {
		return 0, fmt.Errorf("usage: %s <index 0..%d>", fields[0], n-1)
	}
	idx, err := strconv.Atoi(fields[pos])
	if err != nil || idx < 0 || idx >= n {
		return 0, fmt.Errorf("index out of range [0,%d)", n)
	}
	return idx, nil
}
