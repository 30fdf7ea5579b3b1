package insts

import (
	"fmt"
	"strings"
)

var aluNames = map[Op]string{
	OpAdd: "add", OpSub: "sub", OpSll: "sll", OpSrl: "srl", OpSra: "sra",
	OpXor: "xor", OpOr: "or", OpAnd: "and", OpSlt: "slt", OpSltu: "sltu",
	OpMul: "mul", OpMulh: "mulh", OpMulhu: "mulhu", OpMulhsu: "mulhsu",
	OpDiv: "div", OpDivu: "divu", OpRem: "rem", OpRemu: "remu",
}

var branchNames = map[Op]string{
	OpBeq: "beq", OpBne: "bne", OpBlt: "blt", OpBle: "ble",
	OpBgt: "bgt", OpBge: "bge", OpBltu: "bltu", OpBleu: "bleu",
	OpBgtu: "bgtu", OpBgeu: "bgeu",
}

var loadNames = map[struct {
	Width  uint8
	Signed bool
}]string{
	{4, true}: "lw", {2, true}: "lh", {1, true}: "lb",
	{2, false}: "lhu", {1, false}: "lbu",
}

var storeNames = map[uint8]string{4: "sw", 2: "sh", 1: "sb"}

// Mnemonic returns the canonical base mnemonic of the instruction.
func (i *Instruction) Mnemonic() string {
	switch i.Format {
	case FormatReg:
		return aluNames[i.Op]
	case FormatImm:
		// The immediate spelling of slt/sltu is slti/sltiu; every other ALU
		// instruction simply appends "i".
		if i.Op == OpSltu {
			return "sltiu"
		}
		return aluNames[i.Op] + "i"
	case FormatUpper:
		if i.Op == OpLui {
			return "lui"
		}
		return "auipc"
	case FormatLoad:
		return loadNames[struct {
			Width  uint8
			Signed bool
		}{i.Width, i.Signed}]
	case FormatStore:
		return storeNames[i.Width]
	case FormatFlush:
		return "cbo.flush"
	case FormatFlushAll:
		return "x.flushall"
	case FormatBranch:
		return branchNames[i.Op]
	case FormatJump:
		return "jal"
	case FormatJumpReg:
		return "jalr"
	case FormatCycle:
		return "rdcycle"
	case FormatSerial:
		switch i.Effect {
		case EffectFence:
			return "fence.i"
		case EffectEcall:
			return "ecall"
		case EffectEbreak:
			return "ebreak"
		}
	}
	return "???"
}

// String disassembles the instruction into its canonical spelling. Aliases
// are normalized to their base instruction; label operands appear as
// resolved addresses.
func (i *Instruction) String() string {
	var ops []string
	switch i.Format {
	case FormatReg:
		ops = []string{RegName(i.Rd), RegName(i.Rs1), RegName(i.Rs2)}
	case FormatImm:
		ops = []string{RegName(i.Rd), RegName(i.Rs1), fmt.Sprint(i.Imm)}
	case FormatUpper:
		ops = []string{RegName(i.Rd), fmt.Sprint(i.Imm)}
	case FormatLoad:
		ops = []string{RegName(i.Rd), fmt.Sprintf("%d(%s)", i.Imm, RegName(i.Rs1))}
	case FormatStore:
		ops = []string{RegName(i.Rs2), fmt.Sprintf("%d(%s)", i.Imm, RegName(i.Rs1))}
	case FormatFlush:
		ops = []string{fmt.Sprintf("%d(%s)", i.Imm, RegName(i.Rs1))}
	case FormatBranch:
		ops = []string{RegName(i.Rs1), RegName(i.Rs2), fmt.Sprintf("%#x", uint32(i.Imm))}
	case FormatJump:
		ops = []string{RegName(i.Rd), fmt.Sprintf("%#x", uint32(i.Imm))}
	case FormatJumpReg:
		ops = []string{RegName(i.Rd), RegName(i.Rs1), fmt.Sprint(i.Imm)}
	case FormatCycle:
		ops = []string{RegName(i.Rd)}
	}

	if len(ops) == 0 {
		return i.Mnemonic()
	}
	return i.Mnemonic() + " " + strings.Join(ops, ", ")
}
