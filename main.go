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

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/danidim13/risc-sim/internal/cache"
	"github.com/danidim13/risc-sim/internal/cpu"
	"github.com/danidim13/risc-sim/internal/inspect"
	"github.com/danidim13/risc-sim/internal/loader"
	"github.com/danidim13/risc-sim/internal/logger"
	"github.com/danidim13/risc-sim/internal/memory"
	"github.com/danidim13/risc-sim/internal/report"
	"github.com/danidim13/risc-sim/internal/sched"
	"github.com/danidim13/risc-sim/internal/sim"
)

// Default machine geometry: data memory below the instruction range,
// two cores with private 8-block caches each.
const (
	dataStart  = 0
	dataEnd    = 384
	dataBlocks = 24

	instStart  = 384
	instEnd    = 1024
	instBlocks = 40

	coreCacheBlocks = 8
	instCacheAssoc  = 1

	defaultQuantum = 25
	numCores       = 2
)

var Logger *slog.Logger

// coreHandle is the cache.CoreRef a cache is built with before its
// owning cpu.Core exists: caches are constructed first (so cores can
// be built from them), so Tick forwards through a slice filled in
// once cores are ready.
type coreHandle struct {
	id    int
	cores *[]*cpu.Core
}

func (h *coreHandle) ID() int         { return h.id }
func (h *coreHandle) Tick(cycles int) { (*h.cores)[h.id].Tick(cycles) }

func main() {
	optFiles := getopt.ListLong("files", 'f', "Program file (repeatable)")
	optDir := getopt.StringLong("dir", 'd', "", "Directory of program files")
	optQuantum := getopt.IntLong("quantum", 'q', defaultQuantum, "Scheduler quantum, in cycles")
	optAssoc := getopt.IntLong("assoc", 'a', 1, "Data cache associativity (1 or 4)")
	optVerbose := getopt.CounterLong("verbose", 'v', "Increase log verbosity")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optInspect := getopt.BoolLong("inspect", 'i', "Enter interactive inspector after the run")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	// logFile stays a true nil io.Writer (not a typed-nil *os.File) when
	// no -log path is given, so logger.Handler's nil check is reliable.
	var logFile io.Writer
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("can't create log file", "path", *optLogFile, "err", err)
			os.Exit(1)
		}
		logFile = f
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(logger.LevelForVerbosity(*optVerbose))
	Logger = slog.New(logger.NewHandler(logFile, &slog.HandlerOptions{Level: programLevel}, *optVerbose > 0))
	slog.SetDefault(Logger)

	if (*optDir == "") == (len(*optFiles) == 0) {
		Logger.Error("specify exactly one of --files or --dir")
		os.Exit(1)
	}
	if *optAssoc != 1 && *optAssoc != 4 {
		Logger.Error("assoc must be 1 or 4", "assoc", *optAssoc)
		os.Exit(1)
	}

	dataMem := memory.New("Data memory", dataStart, dataEnd, dataBlocks)
	instMem := memory.New("Inst memory", instStart, instEnd, instBlocks)

	ld := loader.New(instMem, instStart)
	var pcbs []*sched.PCB
	var err error
	if *optDir != "" {
		pcbs, err = ld.LoadDir(*optDir)
	} else {
		pcbs, err = ld.LoadFiles(*optFiles)
	}
	if err != nil {
		Logger.Error("failed to load programs", "err", err)
		os.Exit(1)
	}

	scheduler := sched.New(*optQuantum)
	for _, pcb := range pcbs {
		scheduler.PutReady(pcb)
	}

	cores := make([]*cpu.Core, numCores)
	dataCaches := make([]*cache.Cache, numCores)
	instCaches := make([]*cache.Cache, numCores)

	names := [numCores]string{"Core0", "Core1"}
	for i := 0; i < numCores; i++ {
		dataCaches[i] = cache.New(names[i]+" Data$", dataStart, dataEnd, *optAssoc, coreCacheBlocks, &coreHandle{i, &cores})
		instCaches[i] = cache.New(names[i]+" Inst$", instStart, instEnd, instCacheAssoc, coreCacheBlocks, &coreHandle{i, &cores})
	}
	cache.NewBus("Data bus", dataMem, dataCaches)
	cache.NewBus("Inst bus", instMem, instCaches)

	barrier := sim.NewBarrier(numCores + 1)
	for i := 0; i < numCores; i++ {
		cores[i] = cpu.New(i, names[i], instCaches[i], dataCaches[i], scheduler, barrier)
	}

	driver := sim.NewDriver(barrier, scheduler, toSimCores(cores)...)

	Logger.Info("simulation starting", "threads", len(pcbs), "quantum", *optQuantum, "assoc", *optAssoc)
	if err := driver.Run(context.Background()); err != nil {
		Logger.Error("simulation error", "err", err)
		os.Exit(1)
	}
	Logger.Info("simulation finished")

	report.WriteFinalState(os.Stdout, report.Run{
		Cores:      cores,
		DataCaches: dataCaches,
		InstCaches: instCaches,
		DataMemory: dataMem,
		InstMemory: instMem,
		Scheduler:  scheduler,
	})

	if *optInspect {
		inspect.Run(&inspect.Session{
			Cores:      cores,
			Scheduler:  scheduler,
			DataCaches: dataCaches,
			DataMemory: dataMem,
		})
	}
}

func toSimCores(cores []*cpu.Core) []sim.Core {
	out := make([]sim.Core, len(cores))
	for i, c := range cores {
		out[i] = c
	}
	return out
}
