package engine

import (
	"fmt"

	"github.com/teem-cpu/teem/insts"
)

// lsqKind distinguishes the three memory operation kinds in the queue.
type lsqKind uint8

const (
	lsqLoad lsqKind = iota
	lsqStore
	lsqFlush
)

// lsqEntry is one memory operation in the load-store queue. The queue is
// kept in program order; entries leave it when their owning ROB entry
// retires or is flushed.
type lsqEntry struct {
	kind lsqKind
	rob  *robEntry

	addr      uint32
	addrReady bool

	// Store data.
	value    uint32
	valReady bool

	// accessed is set once a load has read memory or been forwarded, or a
	// flush has invalidated its line.
	accessed  bool
	forwarded bool
	loaded    uint32
	countdown int

	// pending holds the sequence numbers of older stores and flushes whose
	// addresses were unknown when this load went to memory. When such an
	// entry's address later resolves and overlaps, the load was ordered
	// wrongly and everything from it on is flushed.
	pending []uint64
}

func (le *lsqEntry) width() uint32 {
	return uint32(le.rob.inst.Width)
}

// entryRange returns the base address and length of an entry's byte range.
// Flush entries cover their whole cache line.
func (e *Engine) entryRange(le *lsqEntry) (uint32, uint32) {
	if le.kind == lsqFlush {
		lineSize := uint32(e.cfg.Cache.LineSize)
		base := le.addr &^ (lineSize - 1)
		return base, lineSize
	}
	return le.addr, le.width()
}

// overlaps reports whether the byte ranges of two entries intersect.
func (e *Engine) overlaps(a, b *lsqEntry) bool {
	aBase, aLen := e.entryRange(a)
	bBase, bLen := e.entryRange(b)
	return aBase < bBase+bLen && bBase < aBase+aLen
}

// lsqPush appends a memory operation at the queue tail at dispatch.
func (e *Engine) lsqPush(entry *robEntry) {
	kind := lsqLoad
	switch entry.inst.Format {
	case insts.FormatStore:
		kind = lsqStore
	case insts.FormatFlush:
		kind = lsqFlush
	}
	entry.lsqIdx = len(e.lsq)
	e.lsq = append(e.lsq, &lsqEntry{kind: kind, rob: entry})
}

// lsqRemove drops the queue entry of a retiring or flushed ROB entry and
// reindexes the tail.
func (e *Engine) lsqRemove(idx int) {
	e.lsq = append(e.lsq[:idx], e.lsq[idx+1:]...)
	for i := idx; i < len(e.lsq); i++ {
		e.lsq[i].rob.lsqIdx = i
	}
}

// lsqTick advances one memory operation. It returns true when resolving a
// store address uncovered a memory-ordering misspeculation and the pipeline
// was flushed.
func (e *Engine) lsqTick(entry *robEntry) bool {
	le := e.lsq[entry.lsqIdx]

	if !le.addrReady && entry.rdy1 {
		le.addr = entry.val1 + uint32(entry.inst.Imm)
		le.addrReady = true
		if le.kind != lsqLoad {
			if e.checkAlias(le) {
				return true
			}
		}
	}
	if !le.addrReady {
		return false
	}

	switch le.kind {
	case lsqStore:
		e.tickStore(entry, le)
	case lsqFlush:
		e.tickFlush(entry, le)
	case lsqLoad:
		e.tickLoad(entry, le)
	}
	return false
}

// tickStore completes a store once its address and value are known. The
// data does not reach memory until retire; a store only needs its operands
// to leave the execute stage.
func (e *Engine) tickStore(entry *robEntry, le *lsqEntry) {
	if !le.valReady {
		if !entry.rdy2 {
			return
		}
		le.value = entry.val2
		le.valReady = true
	}

	entry.latency--
	if entry.latency > 0 {
		return
	}

	for i := uint32(0); i < le.width(); i++ {
		if e.mem.Memory().Illegal(le.addr + i) {
			entry.fault = e.memFault(entry, le.addr)
			break
		}
	}
	entry.executed = true
	entry.retireWait = e.cfg.Memory.FaultCycles + e.cfg.Memory.WriteCycles
}

// tickFlush performs a cache line invalidation. The flush waits for older
// overlapping or unresolved memory operations to drain, then invalidates at
// execute time; like cache fills, the invalidation survives rollback.
func (e *Engine) tickFlush(entry *robEntry, le *lsqEntry) {
	if !le.accessed {
		for i := 0; i < entry.lsqIdx; i++ {
			older := e.lsq[i]
			if !older.addrReady || e.overlaps(older, le) {
				return
			}
		}
		result := e.mem.FlushLine(le.addr)
		le.accessed = true
		le.countdown = result.CyclesValue
	}

	le.countdown--
	if le.countdown > 0 {
		return
	}
	entry.executed = true
	entry.retireWait = e.cfg.Memory.FaultCycles
}

// tickLoad advances a load: search older queue entries in program order for
// a forwardable store, a blocking store, or unresolved addresses, then
// either forward, stall, or go to memory (speculatively when an older
// address is still unknown).
func (e *Engine) tickLoad(entry *robEntry, le *lsqEntry) {
	if !le.accessed {
		if stall := e.startLoad(entry, le); stall {
			return
		}
	}

	le.countdown--
	if le.countdown > 0 {
		return
	}
	entry.result = le.loaded
	entry.executed = true
	entry.retireWait = e.cfg.Memory.FaultCycles
	e.broadcast(entry.destTag, entry.result)
}

// startLoad decides how the load obtains its value. It returns true when
// the load must keep waiting.
func (e *Engine) startLoad(entry *robEntry, le *lsqEntry) bool {
	var pending []uint64

	// Walk older entries nearest-first: the closest overlapping store
	// decides, and any nearer unknown address poisons forwarding.
	for i := entry.lsqIdx - 1; i >= 0; i-- {
		older := e.lsq[i]
		if older.kind == lsqLoad {
			continue
		}

		if !older.addrReady {
			pending = append(pending, older.rob.seq)
			continue
		}
		if !e.overlaps(older, le) {
			continue
		}

		// Overlapping flushes and partially overlapping stores block the
		// load until they leave the queue; a covering store blocks it until
		// its value is known and no nearer older address is unknown.
		if older.kind == lsqFlush || len(pending) > 0 {
			return true
		}
		if !older.valReady || !e.covers(older, le) {
			return true
		}

		// Store-to-load forwarding: the load completes from the store
		// buffer without touching memory or cache.
		le.loaded = e.forwardValue(older, le)
		le.accessed = true
		le.forwarded = true
		le.countdown = e.cfg.Cache.HitCycles
		return false
	}

	// No overlapping store: read from the data cache, installing the line
	// on a miss. With unresolved older addresses this access is
	// speculative; the cache fill stays either way.
	result := e.mem.Read(le.addr, int(le.width()), entry.inst.Signed)
	le.loaded = result.Value
	le.accessed = true
	le.countdown = result.CyclesValue
	le.pending = pending
	if result.Fault {
		entry.fault = e.memFault(entry, le.addr)
	}
	return false
}

// covers reports whether the store's bytes fully contain the load's bytes.
func (e *Engine) covers(store, load *lsqEntry) bool {
	return store.addr <= load.addr &&
		load.addr+load.width() <= store.addr+store.width()
}

// forwardValue extracts the load's bytes from a covering store's value.
func (e *Engine) forwardValue(store, load *lsqEntry) uint32 {
	value := store.value >> (8 * (load.addr - store.addr))
	width := load.width()
	if width < 4 {
		value &= (1 << (8 * width)) - 1
		if load.rob.inst.Signed {
			shift := 32 - 8*width
			value = uint32(int32(value<<shift) >> shift)
		}
	}
	return value
}

// checkAlias runs when a store or flush address resolves: any younger load
// that already went to memory while this entry's address was unknown, and
// that overlaps it, observed stale data. The load and everything younger
// are flushed and fetch restarts at the load (memory-ordering
// misspeculation). Non-overlapping loads merely drop their dependency.
func (e *Engine) checkAlias(resolved *lsqEntry) bool {
	for i := resolved.rob.lsqIdx + 1; i < len(e.lsq); i++ {
		younger := e.lsq[i]
		if younger.kind != lsqLoad || !younger.accessed || younger.forwarded {
			continue
		}

		depends := false
		remaining := younger.pending[:0]
		for _, seq := range younger.pending {
			if seq == resolved.rob.seq {
				depends = true
			} else {
				remaining = append(remaining, seq)
			}
		}
		younger.pending = remaining
		if !depends {
			continue
		}

		if e.overlaps(resolved, younger) {
			load := younger.rob
			e.flushFrom(load.seq, load.pc, nil, &FlushInfo{
				Reason: "memory-order",
				PC:     resolved.rob.pc,
				Target: load.pc,
			})
			return true
		}
	}
	return false
}

func (e *Engine) memFault(entry *robEntry, addr uint32) *FaultInfo {
	return &FaultInfo{
		PC:      entry.pc,
		Inst:    entry.inst,
		Addr:    addr,
		HasAddr: true,
		Reason:  fmt.Sprintf("illegal memory access at %#x", addr),
	}
}
