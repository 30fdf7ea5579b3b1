// Package bpu provides the branch prediction units: a bimodal direction
// predictor, a branch target buffer, and a return-address stack.
//
// All predictors are deterministic and pre-sized from configuration; the
// direction predictor and BTB are updated at retire, while the RAS is
// speculatively updated at fetch and restored from checkpoints on flush.
package bpu

// Config holds the predictor geometry.
type Config struct {
	// IndexBits sets the direction predictor table to 2^IndexBits entries.
	IndexBits int `yaml:"index_bits"`
	// InitCounter is the initial state of the 2-bit counters.
	// 0=strongly not taken .. 3=strongly taken.
	InitCounter uint8 `yaml:"init_counter"`
	// BTBIndexBits sets the branch target buffer to 2^BTBIndexBits entries.
	BTBIndexBits int `yaml:"btb_index_bits"`
	// RASDepth is the depth of the return-address stack.
	RASDepth int `yaml:"ras_depth"`
}

// DefaultConfig returns the default predictor geometry. The original leaves
// these unspecified; the values below are small enough to train quickly in
// classroom-sized programs.
func DefaultConfig() Config {
	return Config{
		IndexBits:    6,
		InitCounter:  2,
		BTBIndexBits: 6,
		RASDepth:     8,
	}
}

// Stats holds prediction statistics.
type Stats struct {
	Predictions    uint64
	Mispredictions uint64
	BTBHits        uint64
	BTBMisses      uint64
}

// DirectionPredictor is a table of 2-bit saturating counters indexed by a
// hash of the program counter.
type DirectionPredictor struct {
	counters []uint8
	mask     uint32
	stats    Stats
}

// NewDirectionPredictor creates a direction predictor.
func NewDirectionPredictor(config Config) *DirectionPredictor {
	size := 1 << config.IndexBits
	dp := &DirectionPredictor{
		counters: make([]uint8, size),
		mask:     uint32(size - 1),
	}
	for i := range dp.counters {
		dp.counters[i] = config.InitCounter
	}
	return dp
}

func (dp *DirectionPredictor) index(pc uint32) uint32 {
	return (pc >> 2) & dp.mask
}

// Predict returns the predicted direction for the branch at pc.
func (dp *DirectionPredictor) Predict(pc uint32) bool {
	dp.stats.Predictions++
	return dp.counters[dp.index(pc)] >= 2
}

// Update trains the counter with the resolved direction. Called at retire.
func (dp *DirectionPredictor) Update(pc uint32, taken bool) {
	idx := dp.index(pc)
	counter := dp.counters[idx]
	if taken {
		if counter < 3 {
			dp.counters[idx] = counter + 1
		}
	} else {
		if counter > 0 {
			dp.counters[idx] = counter - 1
		}
	}
}

// RecordMiss counts a resolved misprediction.
func (dp *DirectionPredictor) RecordMiss() {
	dp.stats.Mispredictions++
}

// Stats returns the prediction statistics.
func (dp *DirectionPredictor) Stats() Stats {
	return dp.stats
}

// Counters returns a snapshot of the counter table for the UI.
func (dp *DirectionPredictor) Counters() []uint8 {
	out := make([]uint8, len(dp.counters))
	copy(out, dp.counters)
	return out
}

// BTB is a direct-mapped branch target buffer for indirect jumps.
type BTB struct {
	entries []btbEntry
	mask    uint32
	stats   Stats
}

type btbEntry struct {
	pc     uint32
	target uint32
	valid  bool
}

// NewBTB creates a branch target buffer.
func NewBTB(config Config) *BTB {
	size := 1 << config.BTBIndexBits
	return &BTB{
		entries: make([]btbEntry, size),
		mask:    uint32(size - 1),
	}
}

func (b *BTB) index(pc uint32) uint32 {
	return (pc >> 2) & b.mask
}

// Predict returns the predicted target for the jump at pc. Without a valid
// entry it predicts the fallthrough, pretending not to know this is a jump.
func (b *BTB) Predict(pc uint32) uint32 {
	e := b.entries[b.index(pc)]
	if e.valid && e.pc == pc {
		b.stats.BTBHits++
		return e.target
	}
	b.stats.BTBMisses++
	return pc + 4
}

// Update records the resolved target of the jump at pc.
func (b *BTB) Update(pc uint32, target uint32) {
	b.entries[b.index(pc)] = btbEntry{pc: pc, target: target, valid: true}
}

// Stats returns the BTB statistics.
func (b *BTB) Stats() Stats {
	return b.stats
}

// Entries returns a snapshot of the valid entries for the UI.
func (b *BTB) Entries() map[uint32]uint32 {
	out := map[uint32]uint32{}
	for _, e := range b.entries {
		if e.valid {
			out[e.pc] = e.target
		}
	}
	return out
}
