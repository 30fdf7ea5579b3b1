package engine

import (
	"testing"

	"github.com/teem-cpu/teem/insts"
)

func TestEvalALUDivision(t *testing.T) {
	const intMin = uint32(1) << 31

	tests := []struct {
		name string
		op   insts.Op
		a, b uint32
		want uint32
	}{
		{"div by zero", insts.OpDiv, 42, 0, 0xFFFFFFFF},
		{"divu by zero", insts.OpDivu, 42, 0, 0xFFFFFFFF},
		{"rem by zero", insts.OpRem, 42, 0, 42},
		{"remu by zero", insts.OpRemu, 42, 0, 42},
		{"div overflow", insts.OpDiv, intMin, 0xFFFFFFFF, intMin},
		{"rem overflow", insts.OpRem, intMin, 0xFFFFFFFF, 0},
		{"div truncates", insts.OpDiv, 0xFFFFFFF9, 2, 0xFFFFFFFD}, // -7/2 = -3
		{"rem sign", insts.OpRem, 0xFFFFFFF9, 2, 0xFFFFFFFF},      // -7%2 = -1
		{"divu large", insts.OpDivu, 0xFFFFFFFE, 2, 0x7FFFFFFF},
	}

	for _, tc := range tests {
		if got := EvalALU(tc.op, tc.a, tc.b); got != tc.want {
			t.Errorf("%s: EvalALU = %#x, want %#x", tc.name, got, tc.want)
		}
	}
}

func TestEvalALUShiftsUseLowFiveBits(t *testing.T) {
	tests := []struct {
		op   insts.Op
		a, b uint32
		want uint32
	}{
		{insts.OpSll, 1, 33, 2},
		{insts.OpSll, 1, 32, 1},
		{insts.OpSrl, 0x80000000, 63, 1},
		{insts.OpSra, 0x80000000, 63, 0xFFFFFFFF},
		{insts.OpSra, 0x80000000, 31, 0xFFFFFFFF},
		{insts.OpSrl, 0x80000000, 31, 1},
	}
	for _, tc := range tests {
		if got := EvalALU(tc.op, tc.a, tc.b); got != tc.want {
			t.Errorf("EvalALU(%v, %#x, %d) = %#x, want %#x", tc.op, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEvalALUMultiplyHigh(t *testing.T) {
	tests := []struct {
		op   insts.Op
		a, b uint32
		want uint32
	}{
		{insts.OpMul, 0x10000, 0x10000, 0},
		{insts.OpMulhu, 0x10000, 0x10000, 1},
		{insts.OpMulh, 0xFFFFFFFF, 0xFFFFFFFF, 0},          // (-1)*(-1) = 1
		{insts.OpMulhu, 0xFFFFFFFF, 0xFFFFFFFF, 0xFFFFFFFE},
		{insts.OpMulhsu, 0xFFFFFFFF, 2, 0xFFFFFFFF},        // -1 * 2 = -2
	}
	for _, tc := range tests {
		if got := EvalALU(tc.op, tc.a, tc.b); got != tc.want {
			t.Errorf("EvalALU(%v, %#x, %#x) = %#x, want %#x", tc.op, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEvalBranch(t *testing.T) {
	tests := []struct {
		op   insts.Op
		a, b uint32
		want bool
	}{
		{insts.OpBeq, 1, 1, true},
		{insts.OpBne, 1, 1, false},
		{insts.OpBlt, 0xFFFFFFFF, 0, true}, // -1 < 0 signed
		{insts.OpBltu, 0xFFFFFFFF, 0, false},
		{insts.OpBge, 0, 0xFFFFFFFF, true},
		{insts.OpBgeu, 0, 0xFFFFFFFF, false},
		{insts.OpBle, 5, 5, true},
		{insts.OpBgt, 5, 5, false},
		{insts.OpBleu, 4, 5, true},
		{insts.OpBgtu, 6, 5, true},
	}
	for _, tc := range tests {
		if got := EvalBranch(tc.op, tc.a, tc.b); got != tc.want {
			t.Errorf("EvalBranch(%v, %#x, %#x) = %v, want %v", tc.op, tc.a, tc.b, got, tc.want)
		}
	}
}
