package mem_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/teem-cpu/teem/mem"
)

func TestMem(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mem Suite")
}

var _ = Describe("Memory", func() {
	var m *mem.Memory

	BeforeEach(func() {
		m = mem.NewMemory()
	})

	It("should read unwritten accessible bytes as zero", func() {
		Expect(m.Byte(0x1234)).To(Equal(byte(0)))
	})

	It("should fill the inaccessible half with the magic value", func() {
		Expect(m.Byte(0x80000000)).To(Equal(byte(0x42)))
		Expect(m.Byte(0xdeadbeef)).To(Equal(byte(0x42)))
	})

	It("should let pokes override the magic value", func() {
		m.SetByte(0xdeadbeef, 0xa5)
		Expect(m.Byte(0xdeadbeef)).To(Equal(byte(0xa5)))
	})

	It("should mark only the upper half as illegal", func() {
		Expect(m.Illegal(0x7fffffff)).To(BeFalse())
		Expect(m.Illegal(0x80000000)).To(BeTrue())
	})

	It("should write blobs at consecutive addresses", func() {
		m.WriteBlob(0x100, []byte{1, 2, 3})
		Expect(m.Byte(0x100)).To(Equal(byte(1)))
		Expect(m.Byte(0x102)).To(Equal(byte(3)))
	})
})

var _ = Describe("Cache", func() {
	var c *mem.Cache

	config := mem.CacheConfig{
		Sets: 2, Ways: 2, LineSize: 16, HitCycles: 2, MissCycles: 5,
	}

	BeforeEach(func() {
		c = mem.NewCache(config)
	})

	It("should miss cold and hit warm", func() {
		Expect(c.Access(0x100)).To(BeFalse())
		Expect(c.Access(0x100)).To(BeTrue())
		Expect(c.Access(0x104)).To(BeTrue(), "same line")
	})

	It("should report containment without disturbing LRU state", func() {
		Expect(c.Contains(0x100)).To(BeFalse())
		c.Access(0x100)
		Expect(c.Contains(0x100)).To(BeTrue())
	})

	It("should evict the least recently used way", func() {
		// Set 0 lines (16B lines, 2 sets): addresses 32 bytes apart.
		c.Access(0x000)
		c.Access(0x020)
		c.Access(0x000) // touch to make 0x020 the LRU victim
		c.Access(0x040) // evicts 0x020
		Expect(c.Contains(0x000)).To(BeTrue())
		Expect(c.Contains(0x020)).To(BeFalse())
		Expect(c.Contains(0x040)).To(BeTrue())
	})

	It("should invalidate single lines", func() {
		c.Access(0x100)
		c.Access(0x110)
		c.Invalidate(0x104)
		Expect(c.Contains(0x100)).To(BeFalse())
		Expect(c.Contains(0x110)).To(BeTrue())
	})

	It("should invalidate everything", func() {
		c.Access(0x100)
		c.Access(0x200)
		c.InvalidateAll()
		for _, line := range c.Lines() {
			Expect(line.Valid).To(BeFalse())
		}
	})

	It("should count hits and misses", func() {
		c.Access(0x100)
		c.Access(0x100)
		c.Access(0x200)
		stats := c.Stats()
		Expect(stats.Reads).To(Equal(uint64(3)))
		Expect(stats.Hits).To(Equal(uint64(1)))
		Expect(stats.Misses).To(Equal(uint64(2)))
	})
})

var _ = Describe("System", func() {
	var s *mem.System

	newSystem := func(cfg mem.MemConfig) *mem.System {
		return mem.NewSystem(mem.NewMemory(), mem.NewCache(mem.DefaultCacheConfig()), cfg)
	}

	BeforeEach(func() {
		s = newSystem(mem.DefaultMemConfig())
	})

	It("should round-trip word writes and reads", func() {
		s.Write(0x100, 0xdeadbeef, 4)
		result := s.Read(0x100, 4, false)
		Expect(result.Value).To(Equal(uint32(0xdeadbeef)))
		Expect(result.Fault).To(BeFalse())
	})

	It("should support unaligned word access", func() {
		s.Write(0x1001, 0xdeadbeef, 4)
		Expect(s.Read(0x1001, 4, false).Value).To(Equal(uint32(0xdeadbeef)))
		Expect(s.Read(0x1003, 1, false).Value).To(Equal(uint32(0xad)))
	})

	It("should zero- and sign-extend subword loads", func() {
		s.Write(0x100, 0x80, 1)
		Expect(s.Read(0x100, 1, false).Value).To(Equal(uint32(0x80)))
		Expect(s.Read(0x100, 1, true).Value).To(Equal(uint32(0xffffff80)))

		s.Write(0x200, 0x8000, 2)
		Expect(s.Read(0x200, 2, true).Value).To(Equal(uint32(0xffff8000)))
	})

	It("should report hit latency only once a line is cached", func() {
		miss := s.Read(0x300, 4, false)
		Expect(miss.Hit).To(BeFalse())
		Expect(miss.CyclesValue).To(Equal(mem.DefaultCacheConfig().MissCycles))

		hit := s.Read(0x300, 4, false)
		Expect(hit.Hit).To(BeTrue())
		Expect(hit.CyclesValue).To(Equal(mem.DefaultCacheConfig().HitCycles))
	})

	It("should record faults on protected reads but still return the data", func() {
		s.Memory().SetByte(0x80000100, 0x77)
		result := s.Read(0x80000100, 1, false)
		Expect(result.Fault).To(BeTrue())
		Expect(result.Value).To(Equal(uint32(0x77)))
		// The line is cached despite the fault: the Meltdown substrate.
		Expect(s.IsCached(0x80000100)).To(BeTrue())
	})

	It("should substitute the sentinel under the zeroing mitigation", func() {
		cfg := mem.DefaultMemConfig()
		cfg.FaultReturnsZero = true
		cfg.FaultSentinel = 0x5a
		s = newSystem(cfg)
		s.Memory().SetByte(0x80000100, 0x77)

		result := s.Read(0x80000100, 1, false)
		Expect(result.Fault).To(BeTrue())
		Expect(result.Value).To(Equal(uint32(0x5a)))
	})

	It("should refuse protected writes", func() {
		result := s.Write(0x80000000, 1, 1)
		Expect(result.Fault).To(BeTrue())
		Expect(s.Memory().Byte(0x80000000)).To(Equal(byte(0x42)))
	})

	It("should flush single lines and the whole cache", func() {
		s.Read(0x100, 4, false)
		s.Read(0x200, 4, false)
		s.FlushLine(0x102)
		Expect(s.IsCached(0x100)).To(BeFalse())
		Expect(s.IsCached(0x200)).To(BeTrue())
		s.FlushAll()
		Expect(s.IsCached(0x200)).To(BeFalse())
	})

	It("should peek without cache side effects", func() {
		s.Memory().WriteBlob(0x400, []byte{1, 0, 0, 0})
		Expect(s.PeekWord(0x400)).To(Equal(uint32(1)))
		Expect(s.IsCached(0x400)).To(BeFalse())
	})
})
