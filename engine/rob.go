package engine

import "github.com/teem-cpu/teem/insts"

// robEntry is one in-flight instruction in the reorder buffer. Entries are
// allocated at dispatch, mutated by execute and forwarding, and destroyed at
// retire or flush. The reorder buffer itself is kept in program order; the
// head is the oldest in-flight instruction.
type robEntry struct {
	seq  uint64
	pc   uint32
	inst *insts.Instruction

	// Source operands: a captured value, or a tag still waiting on its
	// producer. val2 doubles as the immediate for register-immediate forms.
	src1, src2 Tag
	val1, val2 uint32
	rdy1, rdy2 bool

	// Destination. destTag is NoTag for instructions without a destination
	// and for writes to x0, which are silently discarded.
	destReg uint8
	destTag Tag

	result   uint32
	executed bool
	// latency is the remaining execute cycles once operands are ready.
	latency int
	// retireWait is the fault window: cycles the entry spends after
	// executing before it may retire. Nonzero for memory operations.
	retireWait int

	// lsqIdx is maintained as the entry's current index into the LSQ, or
	// -1 for non-memory instructions.
	lsqIdx int

	// Branch/jump resolution, compared against the prediction at retire.
	pred     *prediction
	taken    bool
	target   uint32
	resolved bool

	// fault travels with the entry and is raised only at retire.
	// Transient faults are discarded when the entry is flushed.
	fault *FaultInfo
}

// renameSource resolves one source register to either a committed value or
// an in-flight producer tag, capturing the value when already available.
func (e *Engine) renameSource(r uint8) (Tag, uint32, bool) {
	tag := e.rename[r]
	if tag == NoTag {
		return NoTag, e.arch[r], true
	}
	if e.phys[tag].ready {
		return NoTag, e.phys[tag].value, true
	}
	return tag, 0, false
}

// dispatch renames a fetched instruction and appends it to the reorder
// buffer tail. The caller has verified that a ROB slot, an LSQ slot (for
// memory operations), and a destination tag are available.
func (e *Engine) dispatch(fi *fetchedInst) *robEntry {
	inst := fi.inst
	entry := &robEntry{
		seq:     e.nextSeq,
		pc:      inst.Addr,
		inst:    inst,
		src1:    NoTag,
		src2:    NoTag,
		destTag: NoTag,
		lsqIdx:  -1,
		latency: inst.Latency(),
		pred:    fi.pred,
	}
	e.nextSeq++

	switch inst.Format {
	case insts.FormatReg:
		entry.src1, entry.val1, entry.rdy1 = e.renameSource(inst.Rs1)
		entry.src2, entry.val2, entry.rdy2 = e.renameSource(inst.Rs2)
	case insts.FormatImm:
		entry.src1, entry.val1, entry.rdy1 = e.renameSource(inst.Rs1)
		entry.val2, entry.rdy2 = uint32(inst.Imm), true
	case insts.FormatLoad, insts.FormatFlush:
		entry.src1, entry.val1, entry.rdy1 = e.renameSource(inst.Rs1)
		entry.rdy2 = true
	case insts.FormatStore:
		entry.src1, entry.val1, entry.rdy1 = e.renameSource(inst.Rs1)
		entry.src2, entry.val2, entry.rdy2 = e.renameSource(inst.Rs2)
	case insts.FormatBranch:
		entry.src1, entry.val1, entry.rdy1 = e.renameSource(inst.Rs1)
		entry.src2, entry.val2, entry.rdy2 = e.renameSource(inst.Rs2)
	case insts.FormatJumpReg:
		entry.src1, entry.val1, entry.rdy1 = e.renameSource(inst.Rs1)
		entry.rdy2 = true
	default:
		entry.rdy1, entry.rdy2 = true, true
	}

	if inst.HasDest() {
		entry.destReg = inst.Rd
		entry.destTag = e.freeTags[len(e.freeTags)-1]
		e.freeTags = e.freeTags[:len(e.freeTags)-1]
		e.phys[entry.destTag] = physReg{}
		e.rename[inst.Rd] = entry.destTag
	}

	e.rob = append(e.rob, entry)
	if inst.IsMem() {
		e.lsqPush(entry)
	}
	return entry
}

// dispatchPhase moves fetched instructions into the reorder buffer until a
// resource runs out. Back-pressure from a full ROB, LSQ or tag pool stalls
// here and, transitively, stalls fetch.
func (e *Engine) dispatchPhase(status *CycleStatus) {
	for len(e.fetchQueue) > 0 {
		fi := e.fetchQueue[0]
		if len(e.rob) >= e.cfg.Engine.ROBSize {
			return
		}
		if fi.inst.IsMem() && len(e.lsq) >= e.cfg.Engine.LSQSize {
			return
		}
		if fi.inst.HasDest() && len(e.freeTags) == 0 {
			return
		}

		e.fetchQueue = e.fetchQueue[1:]
		e.dispatch(fi)
		status.Dispatched = append(status.Dispatched, fi.inst.Addr)
	}
}

// broadcast publishes a produced value to the physical register and to every
// waiting consumer in the reorder buffer.
func (e *Engine) broadcast(tag Tag, value uint32) {
	if tag == NoTag {
		return
	}
	e.phys[tag] = physReg{value: value, ready: true}

	for _, entry := range e.rob {
		if entry.src1 == tag {
			entry.src1, entry.val1, entry.rdy1 = NoTag, value, true
		}
		if entry.src2 == tag {
			entry.src2, entry.val2, entry.rdy2 = NoTag, value, true
		}
	}
}
