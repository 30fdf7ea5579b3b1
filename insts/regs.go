package insts

import "strconv"

// NumRegs is the number of architectural registers.
const NumRegs = 32

// abiNames maps register IDs to their ABI names. x8 has two spellings
// (s0 and fp); s0 is the canonical one.
var abiNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var regsByName map[string]uint8

func init() {
	regsByName = map[string]uint8{"fp": 8}
	for i, name := range abiNames {
		regsByName[name] = uint8(i)
	}
}

// RegName returns the ABI name of the given register.
func RegName(reg uint8) string {
	if reg < NumRegs {
		return abiNames[reg]
	}
	return "x" + strconv.Itoa(int(reg))
}

// ParseReg resolves a register name (ABI, or systematic x0..x31/r0..r31)
// to its ID. The second return value is false for unknown names.
func ParseReg(name string) (uint8, bool) {
	if id, ok := regsByName[name]; ok {
		return id, true
	}
	if len(name) < 2 || (name[0] != 'x' && name[0] != 'r') {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 0 || n >= NumRegs {
		return 0, false
	}
	return uint8(n), true
}
