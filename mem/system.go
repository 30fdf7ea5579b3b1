package mem

// MemConfig holds main-memory timing and the speculative fault policy.
type MemConfig struct {
	// WriteCycles is the number of cycles a committed store occupies the
	// memory subsystem.
	WriteCycles int `yaml:"write_cycles"`
	// FaultCycles is the number of cycles a memory operation waits after it
	// executes before it may signal a fault and retire.
	// This window is what keeps younger transient work alive.
	FaultCycles int `yaml:"fault_cycles"`
	// FaultReturnsZero selects the Meltdown mitigation: a faulting load
	// returns the sentinel value to its dependents instead of the data it
	// actually read. The line is cached either way.
	FaultReturnsZero bool `yaml:"fault_returns_zero"`
	// FaultSentinel is the value substituted when FaultReturnsZero is set.
	FaultSentinel uint32 `yaml:"fault_sentinel"`
}

// DefaultMemConfig returns the default memory timing.
func DefaultMemConfig() MemConfig {
	return MemConfig{
		WriteCycles:      5,
		FaultCycles:      10,
		FaultReturnsZero: false,
		FaultSentinel:    0,
	}
}

// Result describes the outcome of a memory operation.
type Result struct {
	// Value is the loaded value, zero- or sign-extended to a word.
	Value uint32
	// Fault is set when the access touched the protected range. The fault
	// is recorded here and raised only when the operation retires.
	Fault bool
	// Hit is set when every byte of the access was already cached.
	Hit bool
	// CyclesValue is how long the operation takes to produce its value.
	CyclesValue int
	// CyclesFault is how long the operation waits before it may signal
	// whether it faults.
	CyclesFault int
}

// System combines main memory and the data cache and applies the protected
// range and timing rules. All addresses are byte-granular and unaligned
// accesses are permitted at no extra cost.
type System struct {
	memory *Memory
	cache  *Cache
	config MemConfig
}

// NewSystem creates a memory subsystem.
func NewSystem(memory *Memory, cache *Cache, config MemConfig) *System {
	return &System{memory: memory, cache: cache, config: config}
}

// Memory returns the backing main memory.
func (s *System) Memory() *Memory {
	return s.memory
}

// Cache returns the data cache.
func (s *System) Cache() *Cache {
	return s.cache
}

// Config returns the memory configuration.
func (s *System) Config() MemConfig {
	return s.config
}

// Read performs a load of the given width, byte by byte. Each byte is looked
// up in the cache, installing its line on a miss; the slowest byte determines
// the latency. A fault is recorded, not raised, and the loaded value still
// flows to dependents unless the zeroing mitigation is enabled.
func (s *System) Read(addr uint32, width int, signExtend bool) Result {
	result := Result{Hit: true, CyclesFault: s.config.FaultCycles}

	var value uint32
	for i := 0; i < width; i++ {
		byteAddr := addr + uint32(i)
		hit := s.cache.Access(byteAddr)
		cycles := s.cache.config.HitCycles
		if !hit {
			cycles = s.cache.config.MissCycles
			result.Hit = false
		}
		if cycles > result.CyclesValue {
			result.CyclesValue = cycles
		}
		if s.memory.Illegal(byteAddr) {
			result.Fault = true
		}
		value |= uint32(s.memory.Byte(byteAddr)) << (8 * i)
	}

	if signExtend && width < 4 {
		shift := uint(32 - 8*width)
		value = uint32(int32(value<<shift) >> shift)
	}
	if result.Fault && s.config.FaultReturnsZero {
		value = s.config.FaultSentinel
	}

	result.Value = value
	return result
}

// Write commits a store of the given width. Stores reach this point only at
// retire; they write through to memory and install the line (write-allocate).
// Faulting stores write nothing.
func (s *System) Write(addr uint32, value uint32, width int) Result {
	result := Result{
		CyclesValue: s.config.WriteCycles,
		CyclesFault: s.config.FaultCycles,
	}

	for i := 0; i < width; i++ {
		byteAddr := addr + uint32(i)
		if s.memory.Illegal(byteAddr) {
			result.Fault = true
		}
	}
	if result.Fault {
		return result
	}

	for i := 0; i < width; i++ {
		byteAddr := addr + uint32(i)
		s.memory.SetByte(byteAddr, byte(value>>(8*i)))
		s.cache.Access(byteAddr)
	}
	return result
}

// FlushLine invalidates the cache line containing addr. The original
// hardware extension forbids flushing at a nonzero offset into a line; the
// emulator deliberately accepts any address within the line.
func (s *System) FlushLine(addr uint32) Result {
	s.cache.Invalidate(addr)
	return Result{
		CyclesValue: s.config.WriteCycles,
		CyclesFault: s.config.FaultCycles,
	}
}

// FlushAll invalidates the entire cache.
func (s *System) FlushAll() {
	s.cache.InvalidateAll()
}

// IsCached reports whether the line containing addr is cached, without
// disturbing replacement state.
func (s *System) IsCached(addr uint32) bool {
	return s.cache.Contains(addr)
}

// PeekWord reads a word without cache side effects or fault checks, for the
// observability views and tests.
func (s *System) PeekWord(addr uint32) uint32 {
	var value uint32
	for i := 0; i < 4; i++ {
		value |= uint32(s.memory.Byte(addr+uint32(i))) << (8 * i)
	}
	return value
}

// PeekByte reads a byte without side effects.
func (s *System) PeekByte(addr uint32) byte {
	return s.memory.Byte(addr)
}
