package pulseuart

// Hooks are lightweight callbacks for codec diagnostics.
// Implementations MUST be cheap and non-blocking; the decoder calls them
// inline while walking a capture batch.
type Hooks interface {
	// An idle (high) pulse arrived where a start bit was expected.
	// pos is the frame position, always 0.
	SkippedNonStart(pos int)

	// The stop-bit slot was low. decoded is the number of bytes the current
	// Decode call produced before the violation.
	MissingStopBit(pos int, decoded int)

	// A write needed more pulses than the capacity allows.
	Overflow(requested, capacity int)

	// Decoded bytes were dropped because the RX ring was full.
	RxDropped(n int)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) SkippedNonStart(int)     {}
func (NopHooks) MissingStopBit(int, int) {}
func (NopHooks) Overflow(int, int)       {}
func (NopHooks) RxDropped(int)           {}
