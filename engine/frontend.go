package engine

import "github.com/teem-cpu/teem/insts"

// fetchPhase fills the frontend instruction queue, consulting the predictors
// to choose each next PC. A checkpoint is recorded whenever a prediction is
// made. Fetching a serializing instruction stalls the frontend until that
// instruction retires, both to keep the return-address stack coherent and to
// make rdcycle-based timing measurements meaningful.
func (e *Engine) fetchPhase() {
	for !e.stalled && len(e.fetchQueue) < e.cfg.Engine.FetchQueueSize {
		inst, err := e.prog.InstAt(e.pc)
		if err != nil {
			return
		}

		fi := &fetchedInst{inst: inst}
		switch inst.Format {
		case insts.FormatBranch:
			taken := e.dir.Predict(e.pc)
			target := e.pc + 4
			if taken {
				target = uint32(inst.Imm)
			}
			fi.pred = &prediction{taken: taken, target: target, rasSnap: e.ras.Snapshot()}
			e.pc = target

		case insts.FormatJump:
			// Direct jumps are always taken and perfectly predicted from
			// the instruction itself; the RAS is still informed for later
			// related returns.
			e.ras.HandleCall(e.pc, inst.Rd)
			fi.pred = &prediction{taken: true, target: uint32(inst.Imm), rasSnap: e.ras.Snapshot()}
			e.pc = uint32(inst.Imm)

		case insts.FormatJumpReg:
			target, ok := e.ras.HandleIndirect(e.pc, inst.Rd, inst.Rs1)
			if !ok {
				target = e.btb.Predict(e.pc)
			}
			fi.pred = &prediction{taken: true, target: target, rasSnap: e.ras.Snapshot()}
			e.pc = target

		case insts.FormatSerial:
			e.stalled = true
			e.pc += 4

		default:
			e.pc += 4
		}

		e.fetchQueue = append(e.fetchQueue, fi)
	}
}

// unstall resumes fetching after a serializing instruction finished.
func (e *Engine) unstall() {
	e.stalled = false
}
