package insts_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/teem-cpu/teem/insts"
)

func TestInsts(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Insts Suite")
}

var _ = Describe("Instruction table", func() {
	It("should know every base ALU instruction in both forms", func() {
		for _, name := range []string{"add", "sub", "sll", "srl", "sra", "xor", "or", "and"} {
			_, ok := insts.Lookup(name, 3)
			Expect(ok).To(BeTrue(), name)
			_, ok = insts.Lookup(name+"i", 3)
			Expect(ok).To(BeTrue(), name+"i")
		}
	})

	It("should use the slti/sltiu spellings for immediate compares", func() {
		_, ok := insts.Lookup("slti", 3)
		Expect(ok).To(BeTrue())
		_, ok = insts.Lookup("sltiu", 3)
		Expect(ok).To(BeTrue())
		_, ok = insts.Lookup("slti", 2)
		Expect(ok).To(BeFalse())
	})

	It("should expand the ret alias to jalr zero, ra, 0", func() {
		alias, ok := insts.LookupAlias("ret", 0)
		Expect(ok).To(BeTrue())
		Expect(alias.Base).To(Equal("jalr"))
		Expect(alias.BaseOps).To(HaveLen(3))
	})

	It("should accept the compiler spelling of the full cache flush", func() {
		alias, ok := insts.LookupAlias("th.dcache.ciall", 0)
		Expect(ok).To(BeTrue())
		Expect(alias.Base).To(Equal("x.flushall"))
	})

	It("should build a store with the value register in rs2", func() {
		spec, ok := insts.Lookup("sw", 3)
		Expect(ok).To(BeTrue())
		inst := spec.Build(0x80, []int32{5, 2, -4})
		Expect(inst.Format).To(Equal(insts.FormatStore))
		Expect(inst.Rs2).To(Equal(uint8(5)))
		Expect(inst.Rs1).To(Equal(uint8(2)))
		Expect(inst.Imm).To(Equal(int32(-4)))
		Expect(inst.Width).To(Equal(uint8(4)))
	})

	It("should mark multiply and divide latencies", func() {
		mul, _ := insts.Lookup("mul", 3)
		div, _ := insts.Lookup("div", 3)
		add, _ := insts.Lookup("add", 3)
		Expect(mul.Build(0, []int32{1, 2, 3}).Latency()).To(Equal(4))
		Expect(div.Build(0, []int32{1, 2, 3}).Latency()).To(Equal(8))
		Expect(add.Build(0, []int32{1, 2, 3}).Latency()).To(Equal(1))
	})

	It("should treat writes to x0 as having no destination", func() {
		spec, _ := insts.Lookup("addi", 3)
		Expect(spec.Build(0, []int32{0, 0, 1}).HasDest()).To(BeFalse())
		Expect(spec.Build(0, []int32{10, 0, 1}).HasDest()).To(BeTrue())
	})
})

var _ = Describe("Registers", func() {
	It("should resolve ABI and systematic names", func() {
		for _, tc := range []struct {
			name string
			id   uint8
		}{
			{"zero", 0}, {"ra", 1}, {"sp", 2}, {"t0", 5}, {"s0", 8},
			{"fp", 8}, {"a0", 10}, {"a7", 17}, {"t6", 31},
			{"x0", 0}, {"x31", 31}, {"r15", 15},
		} {
			id, ok := insts.ParseReg(tc.name)
			Expect(ok).To(BeTrue(), tc.name)
			Expect(id).To(Equal(tc.id), tc.name)
		}
	})

	It("should reject out-of-range and unknown names", func() {
		for _, name := range []string{"x32", "q1", "", "x-1", "banana"} {
			_, ok := insts.ParseReg(name)
			Expect(ok).To(BeFalse(), name)
		}
	})

	It("should print canonical ABI names", func() {
		Expect(insts.RegName(0)).To(Equal("zero"))
		Expect(insts.RegName(8)).To(Equal("s0"))
		Expect(insts.RegName(17)).To(Equal("a7"))
	})
})

var _ = Describe("Disassembly", func() {
	build := func(name string, arity int, ops ...int32) *insts.Instruction {
		spec, ok := insts.Lookup(name, arity)
		Expect(ok).To(BeTrue(), name)
		return spec.Build(0x100, ops)
	}

	It("should render canonical spellings", func() {
		Expect(build("add", 3, 10, 11, 12).String()).To(Equal("add a0, a1, a2"))
		Expect(build("addi", 3, 10, 0, 5).String()).To(Equal("addi a0, zero, 5"))
		Expect(build("lw", 3, 6, 2, -4).String()).To(Equal("lw t1, -4(sp)"))
		Expect(build("sw", 3, 6, 2, 8).String()).To(Equal("sw t1, 8(sp)"))
		Expect(build("beq", 3, 5, 0, 0x200).String()).To(Equal("beq t0, zero, 0x200"))
		Expect(build("jalr", 3, 0, 1, 0).String()).To(Equal("jalr zero, ra, 0"))
		Expect(build("rdcycle", 1, 5).String()).To(Equal("rdcycle t0"))
		Expect(build("x.flushall", 0).String()).To(Equal("x.flushall"))
		Expect(build("fence.i", 0).String()).To(Equal("fence.i"))
	})
})
