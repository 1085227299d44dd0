package pulseuart

// DefaultRxBufferSize is the RX ring capacity used when Config leaves it zero.
const DefaultRxBufferSize = 512

// ring holds decoded bytes that a reader has not collected yet.
// When full the oldest byte is dropped.
type ring struct {
	buf        []byte
	head, tail int
}

func newRing(size int) ring {
	if size <= 0 {
		size = DefaultRxBufferSize
	}
	// One slot stays empty to tell full from empty.
	return ring{buf: make([]byte, size+1)}
}

func (r *ring) len() int {
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.buf) - r.tail + r.head
}

// put stores b and reports whether an old byte had to be dropped.
func (r *ring) put(b byte) (dropped bool) {
	next := (r.head + 1) % len(r.buf)
	if next == r.tail {
		// drop oldest
		r.tail = (r.tail + 1) % len(r.buf)
		dropped = true
	}
	r.buf[r.head] = b
	r.head = next
	return dropped
}

func (r *ring) get() byte {
	if r.len() == 0 {
		return 0
	}
	b := r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	return b
}

func (r *ring) readInto(p []byte) int {
	n := 0
	for n < len(p) && r.len() > 0 {
		p[n] = r.get()
		n++
	}
	return n
}

func (r *ring) clear() {
	r.head, r.tail = 0, 0
}
