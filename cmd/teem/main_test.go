package main

import (
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/teem-cpu/teem/asm"
	"github.com/teem-cpu/teem/config"
	"github.com/teem-cpu/teem/engine"
)

func TestCLI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CLI Suite")
}

var _ = Describe("Batch mode", func() {
	It("should run the hello-world demo to completion", func() {
		source, err := os.ReadFile("../../demo/hello-world.s")
		Expect(err).NotTo(HaveOccurred())
		prog, err := asm.Parse(string(source))
		Expect(err).NotTo(HaveOccurred())

		e := engine.New(prog, config.Default())
		Expect(runBatch(e)).To(Equal(int32(0)))
	})

	It("should run the hello-world demo to completion in order", func() {
		source, err := os.ReadFile("../../demo/hello-world.s")
		Expect(err).NotTo(HaveOccurred())
		prog, err := asm.Parse(string(source))
		Expect(err).NotTo(HaveOccurred())

		Expect(runInOrder(prog, config.Default())).To(Equal(int32(0)))
	})
})
