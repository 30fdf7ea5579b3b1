package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/teem-cpu/teem/asm"
	"github.com/teem-cpu/teem/config"
	"github.com/teem-cpu/teem/insts"
	"github.com/teem-cpu/teem/mem"
)

// InOrder is a straight in-order interpreter over the same memory subsystem
// and ALU semantics as the speculative engine. It serves as the reference
// for the architectural equivalence properties: for any program, the
// speculative engine's retired state must match an InOrder run, while only
// the transient cache traces may differ.
type InOrder struct {
	cfg  *config.Config
	prog *asm.Program
	mem  *mem.System

	regs   [insts.NumRegs]uint32
	pc     uint32
	cycles uint64
	count  uint64

	status   Status
	exitCode int32
	fault    *FaultInfo

	console *Console
	stdin   io.Reader
	stdout  io.Writer
}

// InOrderOption configures an InOrder interpreter.
type InOrderOption func(*InOrder)

// InOrderStdout sets the writer guest output goes to.
func InOrderStdout(w io.Writer) InOrderOption {
	return func(i *InOrder) { i.stdout = w }
}

// InOrderStdin sets the reader the read syscall blocks on.
func InOrderStdin(r io.Reader) InOrderOption {
	return func(i *InOrder) { i.stdin = r }
}

// InOrderMemSystem substitutes a pre-built memory subsystem.
func InOrderMemSystem(s *mem.System) InOrderOption {
	return func(i *InOrder) { i.mem = s }
}

// NewInOrder creates an in-order interpreter for the given program.
func NewInOrder(prog *asm.Program, cfg *config.Config, opts ...InOrderOption) *InOrder {
	i := &InOrder{
		cfg:     cfg,
		prog:    prog,
		console: NewConsole(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		pc:      prog.Entry,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.mem == nil {
		i.mem = mem.NewSystem(mem.NewMemory(), mem.NewCache(cfg.Cache), cfg.Memory)
	}
	i.mem.Memory().WriteBlob(prog.TextAddr, textImage(prog))
	i.mem.Memory().WriteBlob(prog.DataAddr, prog.Data)
	i.regs[2] = cfg.Engine.StackPointer
	return i
}

// Status returns the interpreter's execution state.
func (i *InOrder) Status() Status { return i.status }

// ExitCode returns the guest exit status.
func (i *InOrder) ExitCode() int32 { return i.exitCode }

// Fault returns the raised fault, if any.
func (i *InOrder) Fault() *FaultInfo { return i.fault }

// PC returns the address of the next instruction.
func (i *InOrder) PC() uint32 { return i.pc }

// Reg returns an architectural register value.
func (i *InOrder) Reg(r uint8) uint32 {
	if r >= insts.NumRegs {
		return 0
	}
	return i.regs[r]
}

// Mem returns the memory subsystem.
func (i *InOrder) Mem() *mem.System { return i.mem }

// Console returns the guest input buffer.
func (i *InOrder) Console() *Console { return i.console }

// Cycles returns the simulated cycle count.
func (i *InOrder) Cycles() uint64 { return i.cycles }

// InstructionCount returns the number of instructions executed.
func (i *InOrder) InstructionCount() uint64 { return i.count }

func (i *InOrder) write(r uint8, value uint32) {
	if r != 0 {
		i.regs[r] = value
	}
}

// Step executes one instruction to completion.
func (i *InOrder) Step() {
	if i.status != StatusRunning {
		return
	}

	inst, err := i.prog.InstAt(i.pc)
	if err != nil {
		i.status = StatusDone
		return
	}
	i.count++
	i.cycles += uint64(inst.Latency())

	next := i.pc + 4
	switch inst.Format {
	case insts.FormatReg:
		i.write(inst.Rd, EvalALU(inst.Op, i.regs[inst.Rs1], i.regs[inst.Rs2]))
	case insts.FormatImm:
		i.write(inst.Rd, EvalALU(inst.Op, i.regs[inst.Rs1], uint32(inst.Imm)))
	case insts.FormatUpper:
		if inst.Op == insts.OpLui {
			i.write(inst.Rd, uint32(inst.Imm)<<12)
		} else {
			i.write(inst.Rd, inst.Addr+uint32(inst.Imm)<<12)
		}

	case insts.FormatLoad:
		addr := i.regs[inst.Rs1] + uint32(inst.Imm)
		result := i.mem.Read(addr, int(inst.Width), inst.Signed)
		i.cycles += uint64(result.CyclesValue)
		if result.Fault {
			i.raise(inst, addr)
			return
		}
		i.write(inst.Rd, result.Value)

	case insts.FormatStore:
		addr := i.regs[inst.Rs1] + uint32(inst.Imm)
		result := i.mem.Write(addr, i.regs[inst.Rs2], int(inst.Width))
		i.cycles += uint64(result.CyclesValue)
		if result.Fault {
			i.raise(inst, addr)
			return
		}

	case insts.FormatFlush:
		addr := i.regs[inst.Rs1] + uint32(inst.Imm)
		result := i.mem.FlushLine(addr)
		i.cycles += uint64(result.CyclesValue)
	case insts.FormatFlushAll:
		i.mem.FlushAll()

	case insts.FormatBranch:
		if EvalBranch(inst.Op, i.regs[inst.Rs1], i.regs[inst.Rs2]) {
			next = uint32(inst.Imm)
		}
	case insts.FormatJump:
		i.write(inst.Rd, i.pc+4)
		next = uint32(inst.Imm)
	case insts.FormatJumpReg:
		target := i.regs[inst.Rs1] + uint32(inst.Imm)
		i.write(inst.Rd, i.pc+4)
		next = target
		if _, err := i.prog.InstAt(target); err != nil {
			i.raise(inst, target)
			return
		}

	case insts.FormatCycle:
		i.write(inst.Rd, uint32(i.cycles))

	case insts.FormatSerial:
		switch inst.Effect {
		case insts.EffectEcall:
			i.syscall()
			if i.status != StatusRunning {
				i.pc = next
				return
			}
		case insts.EffectEbreak:
			i.status = StatusPaused
		}
	}

	i.pc = next
}

func (i *InOrder) raise(inst *insts.Instruction, addr uint32) {
	i.fault = &FaultInfo{
		PC:      inst.Addr,
		Inst:    inst,
		Addr:    addr,
		HasAddr: true,
		Reason:  fmt.Sprintf("illegal access at %#x", addr),
	}
	i.status = StatusFaulted
}

func (i *InOrder) syscall() {
	num := int32(i.regs[17])
	a0, a1 := i.regs[10], i.regs[11]

	switch num {
	case -1:
		i.exitCode = int32(a0)
		i.status = StatusExited

	case -2:
		size := int(a1)
		if size > maxReadWrite {
			size = maxReadWrite
		}
		buf := make([]byte, 0, size)
		for n := 0; n < size; n++ {
			result := i.mem.Read(a0+uint32(n), 1, false)
			if result.Fault {
				i.regs[10] = uint32(int32(errnoFault))
				return
			}
			buf = append(buf, byte(result.Value))
		}
		if i.stdout != nil {
			_, _ = i.stdout.Write(buf)
		}
		i.regs[10] = uint32(len(buf))

	case -3:
		size := int(a1)
		if size > maxReadWrite {
			size = maxReadWrite
		}
		if !i.console.fill(i.stdin) {
			i.regs[10] = 0
			return
		}
		data := i.console.ReadInput(size)
		for n, b := range data {
			result := i.mem.Write(a0+uint32(n), uint32(b), 1)
			if result.Fault {
				i.regs[10] = uint32(int32(errnoFault))
				return
			}
		}
		i.regs[10] = uint32(len(data))

	default:
		i.regs[10] = uint32(int32(errnoNosys))
	}
}

// Resume continues execution after an ebreak pause.
func (i *InOrder) Resume() {
	if i.status == StatusPaused {
		i.status = StatusRunning
	}
}

// Run steps instructions until the program stops.
func (i *InOrder) Run() int32 {
	for i.status == StatusRunning {
		i.Step()
	}
	return i.exitCode
}
