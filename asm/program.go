// Package asm provides the TEEM assembly parser and program image builder.
//
// The dialect is a minimalistic RISC-V assembly: optional `label:` prefixes,
// `#` and `//` comments, comma-separated operands, the usual data and section
// directives, and `%lo(...)`/`%hi(...)` label transforms. The parser resolves
// labels eagerly and produces a Program ready to be loaded by the engine.
package asm

import (
	"fmt"

	"github.com/teem-cpu/teem/insts"
)

// Program is a fully assembled and laid-out guest program.
type Program struct {
	// Entry is the address execution starts at: the `_start` label if the
	// program defines one, the base of .text otherwise.
	Entry uint32

	// TextAddr is the base address of the code section. Code holds the
	// decoded instructions in address order, 4 bytes apart.
	TextAddr uint32
	Code     []Instruction

	// DataAddr is the base address of the data section.
	DataAddr uint32
	Data     []byte

	// Symbols maps label names to resolved addresses.
	Symbols map[string]uint32
}

// Instruction re-exports the instruction type for Program consumers.
type Instruction = insts.Instruction

// TextEnd returns the first address past the code section.
func (p *Program) TextEnd() uint32 {
	return p.TextAddr + uint32(len(p.Code))*4
}

// InstAt returns the instruction at the given address.
func (p *Program) InstAt(addr uint32) (*Instruction, error) {
	if addr%4 != 0 {
		return nil, fmt.Errorf("instruction address %#x misaligned", addr)
	}
	if addr < p.TextAddr || addr >= p.TextEnd() {
		return nil, fmt.Errorf("instruction address %#x out of bounds", addr)
	}
	return &p.Code[(addr-p.TextAddr)/4], nil
}

// Lookup resolves a symbol name to its address.
func (p *Program) Lookup(name string) (uint32, bool) {
	addr, ok := p.Symbols[name]
	return addr, ok
}
