package engine

import (
	"github.com/teem-cpu/teem/bpu"
	"github.com/teem-cpu/teem/insts"
	"github.com/teem-cpu/teem/mem"
)

// ROBEntryView is a read-only snapshot of one reorder buffer entry.
type ROBEntryView struct {
	Seq      uint64
	PC       uint32
	Text     string
	Executed bool
	Faulting bool
	// Waiting reports whether any source operand is still waiting on a
	// producer.
	Waiting bool
	// Dest is the destination register name, or empty.
	Dest string
}

// LSQEntryView is a read-only snapshot of one load-store queue entry.
type LSQEntryView struct {
	Kind      string
	PC        uint32
	Addr      uint32
	AddrReady bool
	Value     uint32
	ValReady  bool
	Accessed  bool
	Forwarded bool
	// Speculative marks loads that went to memory past an older store
	// whose address was still unknown.
	Speculative bool
}

// PredictorView is a read-only snapshot of all predictor state.
type PredictorView struct {
	Counters []uint8
	BTB      map[uint32]uint32
	RAS      []uint32
	Stats    bpu.Stats
	BTBStats bpu.Stats
}

// ROBView snapshots the reorder buffer, oldest first.
func (e *Engine) ROBView() []ROBEntryView {
	var views []ROBEntryView
	for _, entry := range e.rob {
		view := ROBEntryView{
			Seq:      entry.seq,
			PC:       entry.pc,
			Text:     entry.inst.String(),
			Executed: entry.executed,
			Faulting: entry.fault != nil,
			Waiting:  !entry.rdy1 || !entry.rdy2,
		}
		if entry.destTag != NoTag {
			view.Dest = insts.RegName(entry.destReg)
		}
		views = append(views, view)
	}
	return views
}

// LSQView snapshots the load-store queue, oldest first.
func (e *Engine) LSQView() []LSQEntryView {
	kinds := map[lsqKind]string{lsqLoad: "load", lsqStore: "store", lsqFlush: "flush"}
	var views []LSQEntryView
	for _, le := range e.lsq {
		views = append(views, LSQEntryView{
			Kind:        kinds[le.kind],
			PC:          le.rob.pc,
			Addr:        le.addr,
			AddrReady:   le.addrReady,
			Value:       le.value,
			ValReady:    le.valReady,
			Accessed:    le.accessed,
			Forwarded:   le.forwarded,
			Speculative: len(le.pending) > 0,
		})
	}
	return views
}

// CacheView snapshots the data cache lines.
func (e *Engine) CacheView() []mem.LineInfo {
	return e.mem.Cache().Lines()
}

// PredictorState snapshots the direction predictor, BTB and RAS.
func (e *Engine) PredictorState() PredictorView {
	return PredictorView{
		Counters: e.dir.Counters(),
		BTB:      e.btb.Entries(),
		RAS:      e.ras.Entries(),
		Stats:    e.dir.Stats(),
		BTBStats: e.btb.Stats(),
	}
}

// LastFlush returns the most recent flush, or nil.
func (e *Engine) LastFlush() *FlushInfo { return e.lastFlush }

// LastSyscall returns a description of the most recent syscall, or empty.
func (e *Engine) LastSyscall() string { return e.lastSyscall }
