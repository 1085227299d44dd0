package pulseuart

import "sync/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	// Codec
	Frames          uint32 // frames decoded into bytes
	SkippedNonStart uint32 // idle pulses where a start bit was expected
	MissingStopBit  uint32 // frames dropped for a low stop bit
	Overflows       uint32 // writes rejected by the pulse capacity

	// Byte stream
	BytesOut  uint32 // bytes handed to the pulse sender
	BytesIn   uint32 // bytes delivered to readers
	RingDrops uint32 // decoded bytes dropped because the RX ring was full

	// Pulse channel
	PulsesOut uint32 // pulses handed to the sender
	PulsesIn  uint32 // pulses received from the capture side
	Batches   uint32 // capture batches received
	Timeouts  uint32 // reads that expired with no batch
}

type counters struct {
	s Stats
}

func (c *counters) add(p *uint32, n int) {
	atomic.AddUint32(p, uint32(n))
}

func (c *counters) inc(p *uint32) {
	atomic.AddUint32(p, 1)
}

func (c *counters) reset() {
	for _, p := range c.fields() {
		atomic.StoreUint32(p, 0)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Frames:          atomic.LoadUint32(&c.s.Frames),
		SkippedNonStart: atomic.LoadUint32(&c.s.SkippedNonStart),
		MissingStopBit:  atomic.LoadUint32(&c.s.MissingStopBit),
		Overflows:       atomic.LoadUint32(&c.s.Overflows),

		BytesOut:  atomic.LoadUint32(&c.s.BytesOut),
		BytesIn:   atomic.LoadUint32(&c.s.BytesIn),
		RingDrops: atomic.LoadUint32(&c.s.RingDrops),

		PulsesOut: atomic.LoadUint32(&c.s.PulsesOut),
		PulsesIn:  atomic.LoadUint32(&c.s.PulsesIn),
		Batches:   atomic.LoadUint32(&c.s.Batches),
		Timeouts:  atomic.LoadUint32(&c.s.Timeouts),
	}
}

func (c *counters) fields() []*uint32 {
	return []*uint32{
		&c.s.Frames, &c.s.SkippedNonStart, &c.s.MissingStopBit, &c.s.Overflows,
		&c.s.BytesOut, &c.s.BytesIn, &c.s.RingDrops,
		&c.s.PulsesOut, &c.s.PulsesIn, &c.s.Batches, &c.s.Timeouts,
	}
}
