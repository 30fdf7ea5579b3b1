package engine_test

import (
	"bytes"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/teem-cpu/teem/config"
	"github.com/teem-cpu/teem/engine"
)

var _ = Describe("Speculation", func() {
	newEngine := func(src string, opts ...engine.Option) *engine.Engine {
		opts = append([]engine.Option{engine.WithStdout(&bytes.Buffer{})}, opts...)
		return engine.New(mustParse(src), config.Default(), opts...)
	}

	// The branch below is predicted taken (counters start weakly taken) but
	// resolves not taken, so the "transient" block runs speculatively and is
	// rolled back.
	rollbackSrc := `
_start:
	li t0, 7
	addi zero, zero, 0
	addi zero, zero, 0
	bne zero, zero, transient
	j done
transient:
	li t0, 42
	lw t2, 0x5000
done:
	li a0, 0
	li a7, -1
	ecall
`

	It("should roll back transient register writes but keep cache fills", func() {
		e := newEngine(rollbackSrc)
		reasons := runEngine(e)

		Expect(e.Status()).To(Equal(engine.StatusExited))
		// The transient write to t0 is architecturally invisible.
		Expect(e.Reg(5)).To(Equal(uint32(7)))
		// The transient load's cache fill survived the rollback.
		Expect(e.Mem().IsCached(0x5000)).To(BeTrue())
		Expect(reasons).To(ContainElement("branch-mispredict"))
	})

	It("should differ from the in-order interpreter only in transient cache state", func() {
		prog := mustParse(rollbackSrc)
		cfg := config.Default()

		ooo := engine.New(prog, cfg, engine.WithStdout(&bytes.Buffer{}))
		runEngine(ooo)
		ref := engine.NewInOrder(prog, cfg, engine.InOrderStdout(&bytes.Buffer{}))
		ref.Run()

		Expect(ooo.Reg(5)).To(Equal(ref.Reg(5)))
		Expect(ooo.ExitCode()).To(Equal(ref.ExitCode()))
		// Required observable difference: the in-order walk never touched
		// the transient line.
		Expect(ooo.Mem().IsCached(0x5000)).To(BeTrue())
		Expect(ref.Mem().IsCached(0x5000)).To(BeFalse())
	})

	It("should suppress faults of transient loads", func() {
		e := newEngine(`
_start:
	addi zero, zero, 0
	addi zero, zero, 0
	bne zero, zero, transient
	j done
transient:
	li t0, 0x80000000
	lw t1, 0(t0)
done:
	li a0, 0
	li a7, -1
	ecall
`)
		runEngine(e)
		// The faulting load was flushed before retiring: no fault raised.
		Expect(e.Status()).To(Equal(engine.StatusExited))
		Expect(e.Fault()).To(BeNil())
		// Its cache fill is still visible.
		Expect(e.Mem().IsCached(0x80000000)).To(BeTrue())
	})

	It("should flush and replay loads that bypassed an aliasing store", func() {
		// The store address depends on a slow division, so the younger load
		// goes to memory speculatively and must be replayed once the store
		// address resolves to the same location.
		e := newEngine(`
_start:
	li t1, 7
	li t2, 640
	div t4, t2, t2
	addi t4, t4, 639
	sw t1, 0(t4)
	lw t5, 640
	mv a0, t5
	li a7, -1
	ecall
`)
		reasons := runEngine(e)
		Expect(e.Status()).To(Equal(engine.StatusExited))
		Expect(e.ExitCode()).To(Equal(int32(7)))
		Expect(reasons).To(ContainElement("memory-order"))
	})

	It("should recover return-address-stack state on rollback", func() {
		// The mispredicted branch transiently executes a call; the RAS must
		// be restored so the architectural call/return pair still predicts.
		e := newEngine(`
_start:
	addi zero, zero, 0
	addi zero, zero, 0
	bne zero, zero, transient
	call work
	li a0, 0
	li a7, -1
	ecall
transient:
	call work
	j transient
work:
	ret
`)
		runEngine(e)
		Expect(e.Status()).To(Equal(engine.StatusExited))
		Expect(e.ExitCode()).To(BeZero())
	})
})

var _ = Describe("Demo programs", func() {
	It("should run the hello-world demo", func() {
		source, err := os.ReadFile("../demo/hello-world.s")
		Expect(err).NotTo(HaveOccurred())

		stdout := &bytes.Buffer{}
		e := engine.New(mustParse(string(source)), config.Default(),
			engine.WithStdout(stdout))
		runEngine(e)

		Expect(e.Status()).To(Equal(engine.StatusExited))
		Expect(e.ExitCode()).To(BeZero())
		Expect(stdout.String()).To(Equal("Hello World!\n"))
	})

	It("should leak the protected byte through the Spectre-BTB demo", func() {
		source, err := os.ReadFile("../demo/spectre-btb.s")
		Expect(err).NotTo(HaveOccurred())

		e := engine.New(mustParse(string(source)), config.Default(),
			engine.WithStdout(&bytes.Buffer{}))
		// The victim byte the demo leaks bit by bit.
		e.Mem().Memory().SetByte(0xdeadbeef, 0xa5)

		runEngine(e)
		Expect(e.Status()).To(Equal(engine.StatusExited))
		Expect(e.ExitCode()).To(Equal(int32(0xa5)))
	})

	It("should leak nothing under the zeroing mitigation", func() {
		source, err := os.ReadFile("../demo/spectre-btb.s")
		Expect(err).NotTo(HaveOccurred())

		cfg := config.Default()
		cfg.Memory.FaultReturnsZero = true
		e := engine.New(mustParse(string(source)), cfg,
			engine.WithStdout(&bytes.Buffer{}))
		e.Mem().Memory().SetByte(0xdeadbeef, 0xa5)

		runEngine(e)
		Expect(e.Status()).To(Equal(engine.StatusExited))
		Expect(e.ExitCode()).To(BeZero())
	})
})
