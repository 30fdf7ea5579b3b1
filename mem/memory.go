// Package mem provides the TEEM memory subsystem: a sparse byte-addressable
// main memory, a set-associative LRU data cache, and the combined subsystem
// that models access latencies and the protected address range.
package mem

// ProtectedBase is the start of the architecturally inaccessible half of the
// address space. Accesses at or above this address fault at retire; the
// emulator still performs them speculatively, which is what enables the
// Meltdown demonstration.
const ProtectedBase uint32 = 1 << 31

// magicByte fills unwritten bytes of the inaccessible half.
const magicByte byte = 0x42

// Memory is a sparse byte-addressable main memory covering the full 32-bit
// address space.
type Memory struct {
	bytes map[uint32]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{bytes: map[uint32]byte{}}
}

// Byte returns the memory content at the given address. Unwritten accessible
// bytes read as zero; unwritten inaccessible bytes read as the magic value.
func (m *Memory) Byte(addr uint32) byte {
	if b, ok := m.bytes[addr]; ok {
		return b
	}
	if addr >= ProtectedBase {
		return magicByte
	}
	return 0
}

// SetByte stores a byte, bypassing any protection checks.
func (m *Memory) SetByte(addr uint32, b byte) {
	m.bytes[addr] = b
}

// WriteBlob stores the given bytes at consecutive addresses, bypassing
// protection and cache. Used for loading program sections and test fixtures.
func (m *Memory) WriteBlob(addr uint32, data []byte) {
	for i, b := range data {
		m.bytes[addr+uint32(i)] = b
	}
}

// Illegal reports whether an access to the given address faults.
func (m *Memory) Illegal(addr uint32) bool {
	return addr >= ProtectedBase
}
