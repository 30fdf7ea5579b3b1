package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/teem-cpu/teem/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Config", func() {
	It("should provide valid defaults", func() {
		cfg := config.Default()
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.Engine.ROBSize).To(Equal(32))
		Expect(cfg.Engine.TagPoolSize).To(BeNumerically(">=", cfg.Engine.ROBSize))
		Expect(cfg.Cache.Sets).To(Equal(4))
		Expect(cfg.Memory.FaultReturnsZero).To(BeFalse())
	})

	It("should overlay partial files onto the defaults", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yml")
		content := "engine:\n  rob_size: 8\n  tag_pool_size: 12\ncache:\n  sets: 2\n"
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.ROBSize).To(Equal(8))
		Expect(cfg.Engine.TagPoolSize).To(Equal(12))
		Expect(cfg.Cache.Sets).To(Equal(2))
		// Untouched keys keep their defaults.
		Expect(cfg.Engine.LSQSize).To(Equal(16))
		Expect(cfg.Cache.LineSize).To(Equal(16))
	})

	It("should reject a tag pool smaller than the ROB", func() {
		cfg := config.Default()
		cfg.Engine.TagPoolSize = cfg.Engine.ROBSize - 1
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("tag pool")))
	})

	It("should reject non-power-of-two cache geometry", func() {
		cfg := config.Default()
		cfg.Cache.Sets = 3
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("powers of two")))
	})

	It("should reject missing files", func() {
		_, err := config.Load("/no/such/config.yml")
		Expect(err).To(HaveOccurred())
	})

	It("should parse the repository's config.yml", func() {
		cfg, err := config.Load("../config.yml")
		Expect(err).NotTo(HaveOccurred())
		Expect(*cfg).To(Equal(*config.Default()))
	})
})
