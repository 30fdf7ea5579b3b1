package engine

import "github.com/teem-cpu/teem/insts"

// EvalALU computes the result of a register-register or register-immediate
// ALU operation on 32-bit two's-complement values. Shift amounts use only
// the low 5 bits; division follows the RISC-V tables: dividing by zero
// yields an all-ones quotient (-1 signed) and the dividend as remainder,
// and the signed overflow case INT_MIN/-1 yields the dividend and a zero
// remainder.
func EvalALU(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpAdd:
		return a + b
	case insts.OpSub:
		return a - b
	case insts.OpSll:
		return a << (b & 31)
	case insts.OpSrl:
		return a >> (b & 31)
	case insts.OpSra:
		return uint32(int32(a) >> (b & 31))
	case insts.OpXor:
		return a ^ b
	case insts.OpOr:
		return a | b
	case insts.OpAnd:
		return a & b
	case insts.OpSlt:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case insts.OpSltu:
		if a < b {
			return 1
		}
		return 0
	case insts.OpMul:
		return a * b
	case insts.OpMulh:
		return uint32((int64(int32(a)) * int64(int32(b))) >> 32)
	case insts.OpMulhu:
		return uint32((uint64(a) * uint64(b)) >> 32)
	case insts.OpMulhsu:
		return uint32((int64(int32(a)) * int64(b)) >> 32)
	case insts.OpDiv:
		switch {
		case b == 0:
			return 0xFFFFFFFF
		case int32(a) == -1<<31 && int32(b) == -1:
			return a
		default:
			return uint32(int32(a) / int32(b))
		}
	case insts.OpDivu:
		if b == 0 {
			return 0xFFFFFFFF
		}
		return a / b
	case insts.OpRem:
		switch {
		case b == 0:
			return a
		case int32(a) == -1<<31 && int32(b) == -1:
			return 0
		default:
			return uint32(int32(a) % int32(b))
		}
	case insts.OpRemu:
		if b == 0 {
			return a
		}
		return a % b
	}
	return 0
}

// EvalBranch computes the condition of a conditional branch.
func EvalBranch(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBeq:
		return a == b
	case insts.OpBne:
		return a != b
	case insts.OpBlt:
		return int32(a) < int32(b)
	case insts.OpBle:
		return int32(a) <= int32(b)
	case insts.OpBgt:
		return int32(a) > int32(b)
	case insts.OpBge:
		return int32(a) >= int32(b)
	case insts.OpBltu:
		return a < b
	case insts.OpBleu:
		return a <= b
	case insts.OpBgtu:
		return a > b
	case insts.OpBgeu:
		return a >= b
	}
	return false
}
