package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/teem-cpu/teem/engine"
	"github.com/teem-cpu/teem/insts"
)

// shell is the interactive debugger driving the engine cycle by cycle.
type shell struct {
	engine      *engine.Engine
	breakpoints map[uint32]bool
}

// runShell runs the interactive shell until the guest exits or the user
// quits. It returns the guest exit code.
func runShell(e *engine.Engine) int32 {
	s := &shell{engine: e, breakpoints: map[uint32]bool{}}
	fmt.Println("TEEM interactive shell. Commands: step [N], continue, break <addr|label>, print <reg|mem addr [n]>, show <cache|rob|lsq|predictor>, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("(teem pc=%#x cycle=%d) ", e.PC(), e.Cycles())
		if !scanner.Scan() {
			return e.ExitCode()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "step", "s":
			n := 1
			if len(fields) > 1 {
				if v, err := strconv.Atoi(fields[1]); err == nil && v > 0 {
					n = v
				}
			}
			s.step(n)
		case "continue", "c":
			s.cont()
		case "break", "b":
			s.setBreak(fields[1:])
		case "print", "p":
			s.print(fields[1:])
		case "show":
			s.show(fields[1:])
		case "quit", "q":
			return e.ExitCode()
		default:
			fmt.Println("Your input did not match any known command")
		}

		if e.Status() == engine.StatusExited {
			fmt.Printf("Program exited with status %d\n", e.ExitCode())
			return e.ExitCode()
		}
	}
}

func (s *shell) step(n int) {
	for i := 0; i < n; i++ {
		if !s.stepCycle() {
			return
		}
	}
}

func (s *shell) cont() {
	for s.stepCycle() {
	}
}

// stepCycle advances one cycle and reports whether execution may continue.
func (s *shell) stepCycle() bool {
	e := s.engine
	switch e.Status() {
	case engine.StatusPaused:
		e.Resume()
	case engine.StatusFaulted:
		// Continuing past a fault skips the faulting instruction.
		e.SkipFault()
	case engine.StatusDone, engine.StatusExited:
		return false
	}

	status := e.StepCycle()

	switch e.Status() {
	case engine.StatusPaused:
		fmt.Printf("ebreak at cycle %d\n", e.Cycles())
		return false
	case engine.StatusFaulted:
		fmt.Printf("fault: %s\n", e.Fault().Reason)
		return false
	case engine.StatusExited:
		return false
	case engine.StatusDone:
		fmt.Println("Program ran past its last instruction")
		return false
	}

	for _, pc := range status.Retired {
		if s.breakpoints[pc] {
			fmt.Printf("breakpoint at %#x (cycle %d)\n", pc, e.Cycles())
			return false
		}
	}
	return true
}

func (s *shell) resolveAddr(arg string) (uint32, bool) {
	if addr, ok := s.engine.Program().Lookup(arg); ok {
		return addr, true
	}
	if v, err := strconv.ParseUint(arg, 0, 32); err == nil {
		return uint32(v), true
	}
	return 0, false
}

func (s *shell) setBreak(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: break <addr|label>")
		return
	}
	addr, ok := s.resolveAddr(args[0])
	if !ok {
		fmt.Printf("Unknown address or label: %s\n", args[0])
		return
	}
	s.breakpoints[addr] = true
	fmt.Printf("Breakpoint set at %#x\n", addr)
}

func (s *shell) print(args []string) {
	if len(args) == 0 {
		for r := uint8(0); r < insts.NumRegs; r++ {
			fmt.Printf("%-4s = %#010x", insts.RegName(r), s.engine.Reg(r))
			if r%4 == 3 {
				fmt.Println()
			} else {
				fmt.Print("  ")
			}
		}
		return
	}

	if args[0] == "mem" {
		if len(args) < 2 {
			fmt.Println("Usage: print mem <addr> [words]")
			return
		}
		addr, ok := s.resolveAddr(args[1])
		if !ok {
			fmt.Printf("Unknown address or label: %s\n", args[1])
			return
		}
		words := 1
		if len(args) > 2 {
			if v, err := strconv.Atoi(args[2]); err == nil && v > 0 {
				words = v
			}
		}
		for i := 0; i < words; i++ {
			a := addr + uint32(i)*4
			fmt.Printf("%#010x: %#010x\n", a, s.engine.Mem().PeekWord(a))
		}
		return
	}

	if reg, ok := insts.ParseReg(strings.ToLower(args[0])); ok {
		fmt.Printf("%s = %#010x (%d)\n", insts.RegName(reg), s.engine.Reg(reg),
			int32(s.engine.Reg(reg)))
		return
	}
	fmt.Printf("Unknown register: %s\n", args[0])
}

func (s *shell) show(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: show <cache|rob|lsq|predictor>")
		return
	}

	e := s.engine
	switch args[0] {
	case "cache":
		stats := e.Mem().Cache().Stats()
		fmt.Printf("reads=%d hits=%d misses=%d evictions=%d\n",
			stats.Reads, stats.Hits, stats.Misses, stats.Evictions)
		for _, line := range e.CacheView() {
			if line.Valid {
				fmt.Printf("set %2d way %2d: %#010x\n", line.Set, line.Way, line.Addr)
			}
		}

	case "rob":
		views := e.ROBView()
		if len(views) == 0 {
			fmt.Println("reorder buffer empty")
			return
		}
		for _, v := range views {
			state := "waiting"
			if v.Executed {
				state = "executed"
			} else if !v.Waiting {
				state = "ready"
			}
			suffix := ""
			if v.Faulting {
				suffix = " FAULT"
			}
			fmt.Printf("%4d  %#06x  %-28s %s%s\n", v.Seq, v.PC, v.Text, state, suffix)
		}

	case "lsq":
		views := e.LSQView()
		if len(views) == 0 {
			fmt.Println("load-store queue empty")
			return
		}
		for _, v := range views {
			addr := "?"
			if v.AddrReady {
				addr = fmt.Sprintf("%#x", v.Addr)
			}
			flags := ""
			if v.Forwarded {
				flags += " fwd"
			}
			if v.Speculative {
				flags += " spec"
			}
			fmt.Printf("%-5s pc=%#06x addr=%-10s done=%v%s\n", v.Kind, v.PC, addr, v.Accessed, flags)
		}

	case "predictor":
		view := e.PredictorState()
		fmt.Printf("direction: predictions=%d mispredictions=%d\n",
			view.Stats.Predictions, view.Stats.Mispredictions)
		fmt.Printf("btb: hits=%d misses=%d entries=%d\n",
			view.BTBStats.BTBHits, view.BTBStats.BTBMisses, len(view.BTB))
		fmt.Printf("ras:")
		for _, addr := range view.RAS {
			fmt.Printf(" %#x", addr)
		}
		fmt.Println()
		if flush := e.LastFlush(); flush != nil {
			fmt.Printf("last flush: %s at %#x -> %#x (%d dropped)\n",
				flush.Reason, flush.PC, flush.Target, flush.Dropped)
		}
		if sc := e.LastSyscall(); sc != "" {
			fmt.Printf("last syscall: %s\n", sc)
		}

	default:
		fmt.Println("Usage: show <cache|rob|lsq|predictor>")
	}
}
