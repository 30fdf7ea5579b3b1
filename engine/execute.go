package engine

import (
	"fmt"

	"github.com/teem-cpu/teem/insts"
)

// executePhase scans the reorder buffer oldest-to-youngest and advances
// every entry whose operands are ready. Multiple entries may complete in
// one cycle; completed results broadcast immediately, so a younger dependent
// later in the same scan can already issue in this cycle. Memory operations
// are delegated to the load-store
// queue, which may trigger a memory-ordering flush; in that case the scan
// stops, since everything younger is gone.
func (e *Engine) executePhase() {
	for i := 0; i < len(e.rob); i++ {
		entry := e.rob[i]

		if entry.executed {
			if entry.retireWait > 0 {
				entry.retireWait--
			}
			continue
		}

		if entry.inst.IsMem() {
			if flushed := e.lsqTick(entry); flushed {
				return
			}
			continue
		}

		if !entry.rdy1 || !entry.rdy2 {
			continue
		}
		entry.latency--
		if entry.latency > 0 {
			continue
		}

		e.executeEntry(entry)
	}
}

// executeEntry computes the result of a non-memory entry and broadcasts it.
func (e *Engine) executeEntry(entry *robEntry) {
	inst := entry.inst

	switch inst.Format {
	case insts.FormatReg, insts.FormatImm:
		entry.result = EvalALU(inst.Op, entry.val1, entry.val2)

	case insts.FormatUpper:
		if inst.Op == insts.OpLui {
			entry.result = uint32(inst.Imm) << 12
		} else {
			entry.result = inst.Addr + uint32(inst.Imm)<<12
		}

	case insts.FormatBranch:
		entry.taken = EvalBranch(inst.Op, entry.val1, entry.val2)
		entry.target = uint32(inst.Imm)
		entry.resolved = true

	case insts.FormatJump:
		entry.result = entry.pc + 4
		entry.taken = true
		entry.target = uint32(inst.Imm)
		entry.resolved = true

	case insts.FormatJumpReg:
		entry.result = entry.pc + 4
		entry.taken = true
		entry.target = entry.val1 + uint32(inst.Imm)
		entry.resolved = true
		if _, err := e.prog.InstAt(entry.target); err != nil {
			entry.fault = &FaultInfo{
				PC:      entry.pc,
				Inst:    inst,
				Addr:    entry.target,
				HasAddr: true,
				Reason:  fmt.Sprintf("jump to illegal address %#x", entry.target),
			}
		}

	case insts.FormatCycle:
		entry.result = uint32(e.cycles)

	case insts.FormatFlushAll:
		// The cache flush happens at execute, so a transient x.flushall
		// leaves its trace even when rolled back.
		e.mem.FlushAll()

	case insts.FormatSerial:
		// Effects are applied at retire.
	}

	entry.executed = true
	e.broadcast(entry.destTag, entry.result)
}
