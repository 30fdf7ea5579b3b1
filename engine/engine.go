// Package engine implements the TEEM speculative out-of-order core.
//
// The engine executes instructions ahead of retirement, rolls architectural
// state back on misspeculation, and leaves cache-timing artefacts behind on
// purpose: transient loads install cache lines that survive every flush.
//
// A single Engine owns all mutable state. The driver (REPL or batch runner)
// calls StepCycle repeatedly; each cycle performs, in fixed order:
// retire, writeback/forward, issue/execute, dispatch, fetch.
package engine

import (
	"io"
	"os"

	"github.com/teem-cpu/teem/asm"
	"github.com/teem-cpu/teem/bpu"
	"github.com/teem-cpu/teem/config"
	"github.com/teem-cpu/teem/insts"
	"github.com/teem-cpu/teem/mem"
)

// Tag identifies a physical register. NoTag marks operands whose value is
// already captured and destinations that discard their result.
type Tag int

// NoTag is the absent tag.
const NoTag Tag = -1

type physReg struct {
	value uint32
	ready bool
}

// Status describes the engine's execution state.
type Status int

const (
	// StatusRunning means the engine can step.
	StatusRunning Status = iota
	// StatusDone means the program ran past its last instruction.
	StatusDone
	// StatusExited means the guest called exit.
	StatusExited
	// StatusPaused means an ebreak retired; Resume continues.
	StatusPaused
	// StatusFaulted means a fault was raised at retire.
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusExited:
		return "exited"
	case StatusPaused:
		return "paused"
	case StatusFaulted:
		return "faulted"
	}
	return "unknown"
}

// FaultInfo describes a fault raised at retire.
type FaultInfo struct {
	PC      uint32
	Inst    *insts.Instruction
	Addr    uint32
	HasAddr bool
	Reason  string
}

// FlushInfo records the most recent pipeline flush for the trace views.
type FlushInfo struct {
	Reason string
	// PC is the instruction that triggered the flush.
	PC uint32
	// Target is where fetch was redirected.
	Target uint32
	// Dropped is the number of in-flight entries discarded.
	Dropped int
}

// prediction is the checkpoint recorded when fetch consults a predictor.
type prediction struct {
	taken  bool
	target uint32
	// rasSnap is the return-address stack as of just after this
	// instruction's own push/pop, so that restoring it undoes only the
	// speculative updates of younger instructions.
	rasSnap []uint32
}

// fetchedInst is an entry of the frontend instruction queue.
type fetchedInst struct {
	inst *insts.Instruction
	pred *prediction
}

// CycleStatus reports what one cycle did, for drivers and breakpoints.
type CycleStatus struct {
	// Retired lists the addresses of instructions retired this cycle.
	Retired []uint32
	// Dispatched lists the addresses of instructions dispatched this cycle.
	Dispatched []uint32
}

// Engine is the speculative out-of-order core.
type Engine struct {
	cfg  *config.Config
	prog *asm.Program
	mem  *mem.System

	dir *bpu.DirectionPredictor
	btb *bpu.BTB
	ras *bpu.ReturnStack

	// Architectural state: reflects retired instructions only.
	arch [insts.NumRegs]uint32

	// Rename state: per architectural register, the tag of the most recent
	// in-flight producer, or NoTag when the committed value is current.
	rename   [insts.NumRegs]Tag
	phys     []physReg
	freeTags []Tag

	rob     []*robEntry
	lsq     []*lsqEntry
	nextSeq uint64

	fetchQueue []*fetchedInst
	pc         uint32
	stalled    bool

	cycles uint64

	status   Status
	exitCode int32
	fault    *FaultInfo

	console *Console
	stdin   io.Reader
	stdout  io.Writer

	lastFlush   *FlushInfo
	lastSyscall string
}

// Option configures an Engine.
type Option func(*Engine)

// WithStdout sets the writer guest output goes to.
func WithStdout(w io.Writer) Option {
	return func(e *Engine) { e.stdout = w }
}

// WithStdin sets the reader the read syscall blocks on.
func WithStdin(r io.Reader) Option {
	return func(e *Engine) { e.stdin = r }
}

// WithMemSystem substitutes a pre-built memory subsystem, e.g. one whose
// memory has been poked by a test harness.
func WithMemSystem(s *mem.System) Option {
	return func(e *Engine) { e.mem = s }
}

// New creates an engine for the given program.
func New(prog *asm.Program, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		prog:    prog,
		dir:     bpu.NewDirectionPredictor(cfg.Predictor),
		btb:     bpu.NewBTB(cfg.Predictor),
		ras:     bpu.NewReturnStack(cfg.Predictor),
		phys:    make([]physReg, cfg.Engine.TagPoolSize),
		console: NewConsole(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		pc:      prog.Entry,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.mem == nil {
		e.mem = mem.NewSystem(mem.NewMemory(), mem.NewCache(cfg.Cache), cfg.Memory)
	}
	e.mem.Memory().WriteBlob(prog.TextAddr, textImage(prog))
	e.mem.Memory().WriteBlob(prog.DataAddr, prog.Data)

	for i := range e.rename {
		e.rename[i] = NoTag
	}
	for tag := cfg.Engine.TagPoolSize - 1; tag >= 0; tag-- {
		e.freeTags = append(e.freeTags, Tag(tag))
	}

	e.arch[2] = cfg.Engine.StackPointer
	return e
}

// textImage encodes the code section as placeholder words so that data reads
// of .text see something instruction-shaped. The trailing bits 0101011 are
// in the "reserved-1" area of the base opcode map; the address is shifted by
// eight bits to ease reading hexdumps.
func textImage(prog *asm.Program) []byte {
	image := make([]byte, len(prog.Code)*4)
	for i := range prog.Code {
		word := (prog.Code[i].Addr << 8) | 0x2b
		image[i*4] = byte(word)
		image[i*4+1] = byte(word >> 8)
		image[i*4+2] = byte(word >> 16)
		image[i*4+3] = byte(word >> 24)
	}
	return image
}

// Status returns the engine's execution state.
func (e *Engine) Status() Status { return e.status }

// ExitCode returns the guest's exit status once it has exited.
func (e *Engine) ExitCode() int32 { return e.exitCode }

// Fault returns the raised fault, if any.
func (e *Engine) Fault() *FaultInfo { return e.fault }

// Cycles returns the number of simulated cycles so far.
func (e *Engine) Cycles() uint64 { return e.cycles }

// PC returns the current fetch program counter.
func (e *Engine) PC() uint32 { return e.pc }

// Reg returns the architectural value of a register.
func (e *Engine) Reg(r uint8) uint32 {
	if r >= insts.NumRegs {
		return 0
	}
	return e.arch[r]
}

// Mem returns the memory subsystem.
func (e *Engine) Mem() *mem.System { return e.mem }

// Program returns the loaded program.
func (e *Engine) Program() *asm.Program { return e.prog }

// Console returns the guest input buffer.
func (e *Engine) Console() *Console { return e.console }

// Resume continues execution after an ebreak pause.
func (e *Engine) Resume() {
	if e.status == StatusPaused {
		e.status = StatusRunning
	}
}

// SkipFault resumes execution after a raised fault by skipping the faulting
// instruction, in the spirit of a no-op exception handler.
func (e *Engine) SkipFault() {
	if e.status != StatusFaulted || e.fault == nil {
		return
	}
	e.pc = e.fault.PC + 4
	e.fault = nil
	e.status = StatusRunning
}

// StepCycle advances the simulation by one cycle. The phases run in fixed
// order so that execution is reproducible: retire first (observing last
// cycle's results), then writeback/forward and issue, then dispatch, then
// fetch.
func (e *Engine) StepCycle() CycleStatus {
	if e.status != StatusRunning {
		return CycleStatus{}
	}

	e.cycles++

	status := CycleStatus{}
	e.retirePhase(&status)
	if e.status != StatusRunning {
		return status
	}

	e.executePhase()
	e.dispatchPhase(&status)
	e.fetchPhase()

	if len(e.rob) == 0 && len(e.fetchQueue) == 0 && !e.fetchable() {
		e.status = StatusDone
	}
	return status
}

// fetchable reports whether the fetch PC points at an instruction.
func (e *Engine) fetchable() bool {
	_, err := e.prog.InstAt(e.pc)
	return err == nil
}

// Run steps cycles until the program exits, drains, faults, or pauses.
// It returns the guest exit code.
func (e *Engine) Run() int32 {
	for e.status == StatusRunning {
		e.StepCycle()
	}
	return e.exitCode
}
