package engine

import (
	"fmt"

	"github.com/teem-cpu/teem/insts"
)

// retirePhase inspects the reorder buffer head and retires up to the
// configured number of entries in program order. Retiring an entry commits
// its result to the architectural register file, commits stores to memory
// and cache, resolves predictions, applies serializing effects, and raises
// any fault the entry carried.
func (e *Engine) retirePhase(status *CycleStatus) {
	for retired := 0; retired < e.cfg.Engine.RetireWidth && len(e.rob) > 0; retired++ {
		head := e.rob[0]
		if !head.executed || head.retireWait > 0 {
			return
		}

		if head.fault != nil {
			e.raiseFault(head)
			return
		}

		// Commit the destination, clearing the rename mapping if it still
		// points at this producer.
		if head.destTag != NoTag {
			e.arch[head.destReg] = e.phys[head.destTag].value
			if e.rename[head.destReg] == head.destTag {
				e.rename[head.destReg] = NoTag
			}
			e.freeTags = append(e.freeTags, head.destTag)
		}

		// Stores reach memory and cache only here.
		if head.inst.Format == insts.FormatStore {
			le := e.lsq[head.lsqIdx]
			e.mem.Write(le.addr, le.value, int(le.width()))
		}

		if head.lsqIdx >= 0 {
			e.lsqRemove(head.lsqIdx)
		}
		e.rob = e.rob[1:]
		status.Retired = append(status.Retired, head.pc)

		if head.pred != nil && e.resolvePrediction(head) {
			return
		}

		switch head.inst.Effect {
		case insts.EffectFence:
			// The pipeline has drained by construction: retirement is in
			// order and fetch stalled behind the fence.
			e.unstall()
		case insts.EffectEcall:
			e.flushFrom(head.seq+1, head.pc+4, nil, &FlushInfo{
				Reason: "ecall",
				PC:     head.pc,
				Target: head.pc + 4,
			})
			e.doSyscall()
			return
		case insts.EffectEbreak:
			e.flushFrom(head.seq+1, head.pc+4, nil, &FlushInfo{
				Reason: "ebreak",
				PC:     head.pc,
				Target: head.pc + 4,
			})
			e.status = StatusPaused
			return
		}
	}
}

// resolvePrediction compares a retiring branch or jump against its
// checkpointed prediction, trains the predictors, and flushes on a
// mismatch. It returns true when the pipeline was flushed.
func (e *Engine) resolvePrediction(head *robEntry) bool {
	pred := head.pred
	mispredict := head.taken != pred.taken ||
		(head.taken && head.target != pred.target)

	switch head.inst.Format {
	case insts.FormatBranch:
		e.dir.Update(head.pc, head.taken)
	case insts.FormatJumpReg:
		e.btb.Update(head.pc, head.target)
	}

	if !mispredict {
		return false
	}
	if head.inst.Format == insts.FormatBranch {
		e.dir.RecordMiss()
	}

	actual := head.pc + 4
	if head.taken {
		actual = head.target
	}
	reason := "branch-mispredict"
	if head.inst.Format == insts.FormatJumpReg {
		reason = "jump-mispredict"
	}
	e.flushFrom(head.seq+1, actual, pred.rasSnap, &FlushInfo{
		Reason: reason,
		PC:     head.pc,
		Target: actual,
	})
	return true
}

// raiseFault raises a fault carried by the reorder buffer head: the entry
// does not commit, the entire pipeline is flushed, and the emulator halts
// with the fault surfaced to the driver.
func (e *Engine) raiseFault(head *robEntry) {
	e.flushFrom(0, head.pc, nil, &FlushInfo{
		Reason: "fault",
		PC:     head.pc,
		Target: head.pc,
	})
	e.fault = head.fault
	e.status = StatusFaulted
}

// flushFrom discards every in-flight entry with seq >= firstSeq, frees
// their tags, rebuilds the rename table from the survivors, truncates the
// load-store queue, optionally restores the return-address stack from a
// checkpoint, and redirects fetch.
//
// Memory and cache are deliberately left alone: stores never made it that
// far, and cache fills are the side channel this emulator exists to show.
func (e *Engine) flushFrom(firstSeq uint64, redirect uint32, rasSnap []uint32, info *FlushInfo) {
	var rob []*robEntry
	for _, entry := range e.rob {
		if entry.seq < firstSeq {
			rob = append(rob, entry)
			continue
		}
		info.Dropped++
		if entry.destTag != NoTag {
			e.freeTags = append(e.freeTags, entry.destTag)
		}
	}
	e.rob = rob

	var lsq []*lsqEntry
	for _, le := range e.lsq {
		if le.rob.seq < firstSeq {
			lsq = append(lsq, le)
		}
	}
	e.lsq = lsq
	for i, le := range e.lsq {
		le.rob.lsqIdx = i
	}

	// Every architectural register maps to its youngest surviving producer
	// or, absent one, to the committed value.
	for r := range e.rename {
		e.rename[r] = NoTag
	}
	for _, entry := range e.rob {
		if entry.destTag != NoTag {
			e.rename[entry.destReg] = entry.destTag
		}
	}

	info.Dropped += len(e.fetchQueue)
	e.fetchQueue = nil
	e.stalled = false
	if rasSnap != nil {
		e.ras.Restore(rasSnap)
	}
	e.pc = redirect
	e.lastFlush = info
}

// maxReadWrite caps the byte count of one read or write syscall.
const maxReadWrite = 4096

// Syscall error numbers returned in a0.
var (
	errnoFault = int32(-14) // EFAULT
	errnoNosys = int32(-38) // ENOSYS
)

// doSyscall performs the system call selected by a7 at the retire boundary.
// The pipeline is empty at this point, so the architectural register file
// can be read and written directly.
func (e *Engine) doSyscall() {
	num := int32(e.arch[17])
	a0, a1 := e.arch[10], e.arch[11]

	switch num {
	case -1: // exit(status)
		e.exitCode = int32(a0)
		e.status = StatusExited
		e.lastSyscall = fmt.Sprintf("exit(%d)", e.exitCode)

	case -2: // write(buf, size)
		e.lastSyscall = fmt.Sprintf("write(%#x, %d)", a0, a1)
		size := int(a1)
		if size > maxReadWrite {
			size = maxReadWrite
		}
		buf := make([]byte, 0, size)
		for i := 0; i < size; i++ {
			result := e.mem.Read(a0+uint32(i), 1, false)
			if result.Fault {
				e.arch[10] = uint32(int32(errnoFault))
				return
			}
			buf = append(buf, byte(result.Value))
		}
		if e.stdout != nil {
			_, _ = e.stdout.Write(buf)
		}
		e.arch[10] = uint32(len(buf))

	case -3: // read(buf, size)
		e.lastSyscall = fmt.Sprintf("read(%#x, %d)", a0, a1)
		size := int(a1)
		if size > maxReadWrite {
			size = maxReadWrite
		}
		if !e.console.fill(e.stdin) {
			e.arch[10] = 0
			return
		}
		data := e.console.ReadInput(size)
		for i, b := range data {
			result := e.mem.Write(a0+uint32(i), uint32(b), 1)
			if result.Fault {
				// An EFAULT read is not guaranteed not to lose data.
				e.arch[10] = uint32(int32(errnoFault))
				return
			}
		}
		e.arch[10] = uint32(len(data))

	default:
		e.lastSyscall = fmt.Sprintf("unknown(%d)", num)
		e.arch[10] = uint32(int32(errnoNosys))
	}
}
