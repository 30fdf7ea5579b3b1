package bpu

// returnRegs are the link registers the ISA designates for call/return
// hinting: ra (x1) and the alternate link register t0 (x5).
var returnRegs = map[uint8]bool{1: true, 5: true}

// ReturnStack is a fixed-depth return-address stack. On overflow the oldest
// entry is silently dropped; on underflow Pop reports failure so that
// prediction can fall back to the BTB.
type ReturnStack struct {
	entries  []uint32
	maxDepth int
}

// NewReturnStack creates a return-address stack.
func NewReturnStack(config Config) *ReturnStack {
	return &ReturnStack{maxDepth: config.RASDepth}
}

// Push records a return address, dropping the oldest entry when full.
func (r *ReturnStack) Push(addr uint32) {
	r.entries = append(r.entries, addr)
	if len(r.entries) > r.maxDepth {
		r.entries = r.entries[1:]
	}
}

// Pop removes and returns the most recent return address.
func (r *ReturnStack) Pop() (uint32, bool) {
	if len(r.entries) == 0 {
		return 0, false
	}
	addr := r.entries[len(r.entries)-1]
	r.entries = r.entries[:len(r.entries)-1]
	return addr, true
}

// Depth returns the current number of entries.
func (r *ReturnStack) Depth() int {
	return len(r.entries)
}

// Entries returns a snapshot of the stack, oldest first, for the UI.
func (r *ReturnStack) Entries() []uint32 {
	out := make([]uint32, len(r.entries))
	copy(out, r.entries)
	return out
}

// Snapshot captures the stack contents for a branch checkpoint.
func (r *ReturnStack) Snapshot() []uint32 {
	return r.Entries()
}

// Restore rewinds the stack to a previously captured snapshot.
func (r *ReturnStack) Restore(snapshot []uint32) {
	r.entries = make([]uint32, len(snapshot))
	copy(r.entries, snapshot)
}

// HandleCall applies the ISA's RAS hinting rules for a direct jump-and-link
// (JAL): the stack is pushed when the link register is a return register.
func (r *ReturnStack) HandleCall(pc uint32, linkReg uint8) {
	if returnRegs[linkReg] {
		r.Push(pc + 4)
	}
}

// HandleIndirect applies the ISA's RAS hinting rules for an indirect jump
// (JALR) with the given link (rd) and destination (rs1) registers. It
// returns the predicted target when the stack supplies one.
func (r *ReturnStack) HandleIndirect(pc uint32, linkReg, destReg uint8) (uint32, bool) {
	returnPC := pc + 4
	linkIsRet := returnRegs[linkReg]
	destIsRet := returnRegs[destReg]

	switch {
	case !linkIsRet && !destIsRet:
		// Plain indirect jump, no hint.
	case !linkIsRet:
		return r.Pop()
	case !destIsRet:
		r.Push(returnPC)
	case linkReg != destReg:
		target, ok := r.Pop()
		r.Push(returnPC)
		return target, ok
	default:
		r.Push(returnPC)
	}
	return 0, false
}
