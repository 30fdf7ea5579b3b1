package asm_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/teem-cpu/teem/asm"
	"github.com/teem-cpu/teem/insts"
)

func TestAsm(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Asm Suite")
}

var _ = Describe("Parser", func() {
	It("should assemble a straight-line program", func() {
		prog, err := asm.Parse(`
			addi a0, zero, 5   # comment
			add a1, a0, a0     // another comment
		`)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Code).To(HaveLen(2))
		Expect(prog.Code[0].Op).To(Equal(insts.OpAdd))
		Expect(prog.Code[0].Format).To(Equal(insts.FormatImm))
		Expect(prog.Code[0].Imm).To(Equal(int32(5)))
		Expect(prog.Code[1].Format).To(Equal(insts.FormatReg))
	})

	It("should lay data at zero and code past a 128-byte boundary", func() {
		prog, err := asm.Parse(`
.data
value:	.word 42
.text
		lw a0, value(zero)
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.DataAddr).To(Equal(uint32(0)))
		Expect(prog.TextAddr).To(Equal(uint32(0x80)))
		// Four reserved bytes precede declared data.
		Expect(prog.Symbols["value"]).To(Equal(uint32(4)))
		Expect(prog.Data[4]).To(Equal(byte(42)))
		Expect(prog.Code[0].Imm).To(Equal(int32(4)))
	})

	It("should use _start as the entry point when defined", func() {
		prog, err := asm.Parse(`
first:	addi a0, zero, 1
_start:	addi a0, zero, 2
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Entry).To(Equal(prog.TextAddr + 4))
	})

	It("should expand memory reference aliases", func() {
		prog, err := asm.Parse(`
		lw a0, -4(sp)
		sw a1, 8(s0)
		lb a2, 3(t0)
		cbo.flush 0(a0)
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Code[0].Format).To(Equal(insts.FormatLoad))
		Expect(prog.Code[0].Rs1).To(Equal(uint8(2)))
		Expect(prog.Code[0].Imm).To(Equal(int32(-4)))
		Expect(prog.Code[1].Rs2).To(Equal(uint8(11)))
		Expect(prog.Code[2].Width).To(Equal(uint8(1)))
		Expect(prog.Code[2].Signed).To(BeTrue())
		Expect(prog.Code[3].Format).To(Equal(insts.FormatFlush))
	})

	It("should expand pseudo instructions", func() {
		prog, err := asm.Parse(`
		li a0, 7
		mv a1, a0
		not a2, a0
		neg a3, a0
		seqz a4, a0
		ret
		j _start
_start:	flushall
		rdtsc t0
		fence
`)
		Expect(err).NotTo(HaveOccurred())
		code := prog.Code
		Expect(code[0].String()).To(Equal("addi a0, zero, 7"))
		Expect(code[1].String()).To(Equal("addi a1, a0, 0"))
		Expect(code[2].String()).To(Equal("xori a2, a0, -1"))
		Expect(code[3].String()).To(Equal("sub a3, zero, a0"))
		Expect(code[4].String()).To(Equal("sltiu a4, a0, 1"))
		Expect(code[5].String()).To(Equal("jalr zero, ra, 0"))
		Expect(code[6].Format).To(Equal(insts.FormatJump))
		Expect(code[6].Rd).To(Equal(uint8(0)))
		Expect(code[7].Format).To(Equal(insts.FormatFlushAll))
		Expect(code[8].Format).To(Equal(insts.FormatCycle))
		Expect(code[9].Effect).To(Equal(insts.EffectFence))
	})

	It("should resolve branch targets to addresses", func() {
		prog, err := asm.Parse(`
loop:	addi a0, a0, 1
		bne a0, a1, loop
		beqz a0, loop
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(uint32(prog.Code[1].Imm)).To(Equal(prog.TextAddr))
		Expect(uint32(prog.Code[2].Imm)).To(Equal(prog.TextAddr))
		Expect(prog.Code[2].Rs2).To(Equal(uint8(0)))
	})

	It("should apply %lo and %hi transforms", func() {
		prog, err := asm.Parse(`
.data
.zero 0x1ffc
target:	.byte 1
.text
		lui a0, %hi(target)
		addi a0, a0, %lo(target)
`)
		Expect(err).NotTo(HaveOccurred())
		addr := prog.Symbols["target"]
		Expect(uint32(prog.Code[0].Imm)).To(Equal(addr >> 12))
		Expect(uint32(prog.Code[1].Imm)).To(Equal(addr & 0xfff))
	})

	It("should emit string data with and without terminators", func() {
		prog, err := asm.Parse(`
.data
a:	.asciz "Hi\n"
b:	.ascii "Yo"
`)
		Expect(err).NotTo(HaveOccurred())
		start := prog.Symbols["a"]
		Expect(prog.Data[start : start+4]).To(Equal([]byte("Hi\n\x00")))
		Expect(prog.Data[prog.Symbols["b"] : prog.Symbols["b"]+2]).To(Equal([]byte("Yo")))
	})

	It("should emit sized integers little-endian", func() {
		prog, err := asm.Parse(`
.data
v:	.byte 0x11
	.half 0x2233
	.word 0x44556677
	.quad 0x8899aabbccddeeff
`)
		Expect(err).NotTo(HaveOccurred())
		start := prog.Symbols["v"]
		Expect(prog.Data[start]).To(Equal(byte(0x11)))
		Expect(prog.Data[start+1 : start+3]).To(Equal([]byte{0x33, 0x22}))
		Expect(prog.Data[start+3 : start+7]).To(Equal([]byte{0x77, 0x66, 0x55, 0x44}))
		Expect(prog.Data[start+7]).To(Equal(byte(0xff)))
	})

	It("should resolve .word label references", func() {
		prog, err := asm.Parse(`
.data
ptr:	.word here
here:	.byte 9
`)
		Expect(err).NotTo(HaveOccurred())
		start := prog.Symbols["ptr"]
		here := prog.Symbols["here"]
		Expect(uint32(prog.Data[start]) | uint32(prog.Data[start+1])<<8).
			To(Equal(here))
	})

	It("should align with .p2align and .balign", func() {
		prog, err := asm.Parse(`
.data
	.byte 1
	.p2align 3
eight:	.byte 2
	.balign 16
sixteen: .byte 3
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Symbols["eight"] % 8).To(BeZero())
		Expect(prog.Symbols["sixteen"] % 16).To(BeZero())
	})

	It("should reserve aligned zeroed blocks with .comm", func() {
		prog, err := asm.Parse(`
.comm buffer, 32
.text
	addi a0, zero, 0
`)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Symbols["buffer"] % 16).To(BeZero())
	})

	It("should ignore compatibility directives and .note sections", func() {
		_, err := asm.Parse(`
.file "x.c"
.globl main
.type main, @function
.addrsig
.section .note.GNU-stack
.text
	addi a0, zero, 0
`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject unknown directives", func() {
		_, err := asm.Parse(".bogus 1")
		Expect(err).To(MatchError(ContainSubstring("unrecognized directive")))
	})

	It("should reject duplicate labels", func() {
		_, err := asm.Parse("a:\na:\n")
		Expect(err).To(MatchError(ContainSubstring("duplicate label")))
	})

	It("should reject undefined labels", func() {
		_, err := asm.Parse("j nowhere")
		Expect(err).To(MatchError(ContainSubstring("undefined label")))
	})

	It("should reject instructions in data sections", func() {
		_, err := asm.Parse(".data\naddi a0, zero, 1")
		Expect(err).To(MatchError(ContainSubstring("non-code sections")))
	})

	It("should reject unknown instructions", func() {
		_, err := asm.Parse("frobnicate a0")
		Expect(err).To(MatchError(ContainSubstring("unknown instruction")))
	})

	It("should look up instructions by address", func() {
		prog, err := asm.Parse("addi a0, zero, 1\naddi a1, zero, 2")
		Expect(err).NotTo(HaveOccurred())

		inst, err := prog.InstAt(prog.TextAddr + 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Rd).To(Equal(uint8(11)))

		_, err = prog.InstAt(prog.TextAddr + 2)
		Expect(err).To(MatchError(ContainSubstring("misaligned")))
		_, err = prog.InstAt(prog.TextAddr + 8)
		Expect(err).To(MatchError(ContainSubstring("out of bounds")))
	})

	It("should round-trip canonical spellings through the disassembler", func() {
		sources := []string{
			"add a0, a1, a2",
			"addi a0, zero, 5",
			"lw t1, -4(sp)",
			"sw t1, 8(sp)",
			"jalr zero, ra, 0",
			"rdcycle t0",
			"x.flushall",
			"fence.i",
		}
		for _, src := range sources {
			prog, err := asm.Parse(src)
			Expect(err).NotTo(HaveOccurred(), src)
			Expect(prog.Code[0].String()).To(Equal(src))
		}
	})
})
