package audio

// chunker packs arbitrary-length sample slices into fixed-size device
// chunks. The partial tail of one push is held for the next instead of being
// zero-padded, so back-to-back writes of consecutive playback units form a
// continuous signal; flush pads and emits whatever is left when the stream
// ends.
type chunker struct {
	buf  []float32
	fill int
}

// newChunker wraps buf, which emit is expected to consume in full each time
// it fires.
func newChunker(buf []float32) *chunker {
	return &chunker{buf: buf}
}

// push appends samples, calling emit once per completed chunk.
func (c *chunker) push(samples []float32, emit func([]float32) error) error {
	for len(samples) > 0 {
		n := copy(c.buf[c.fill:], samples)
		c.fill += n
		samples = samples[n:]
		if c.fill < len(c.buf) {
			return nil
		}
		c.fill = 0
		if err := emit(c.buf); err != nil {
			return err
		}
	}
	return nil
}

// flush zero-pads and emits the pending partial chunk, if any.
func (c *chunker) flush(emit func([]float32) error) error {
	if c.fill == 0 {
		return nil
	}
	for i := c.fill; i < len(c.buf); i++ {
		c.buf[i] = 0
	}
	c.fill = 0
	return emit(c.buf)
}
