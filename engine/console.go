package engine

import "io"

// Console buffers guest input. The read syscall consumes from the buffer
// first and only falls back to the engine's input reader when the buffer is
// empty, so excess bytes from one read remain available to the next.
type Console struct {
	in []byte
}

// NewConsole creates an empty console buffer.
func NewConsole() *Console {
	return &Console{}
}

// AddInput queues bytes for the guest to read.
func (c *Console) AddInput(data []byte) {
	c.in = append(c.in, data...)
}

// HasInput reports whether queued input is available.
func (c *Console) HasInput() bool {
	return len(c.in) > 0
}

// ReadInput extracts up to max bytes from the input queue.
func (c *Console) ReadInput(max int) []byte {
	if max > len(c.in) {
		max = len(c.in)
	}
	result := c.in[:max]
	c.in = c.in[max:]
	return result
}

// fill blocks on the given reader until some input arrives or the reader is
// exhausted. Returns false when no more input can ever arrive.
func (c *Console) fill(r io.Reader) bool {
	if c.HasInput() {
		return true
	}
	if r == nil {
		return false
	}
	buf := make([]byte, 4096)
	n, err := r.Read(buf)
	if n > 0 {
		c.AddInput(buf[:n])
		return true
	}
	return err == nil
}
