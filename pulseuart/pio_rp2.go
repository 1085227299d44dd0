//go:build rp2040 || rp2350

package pulseuart

import (
	"context"
	"machine"
	"runtime"
	"sync/atomic"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"
)

// pulse_tx: one TX FIFO word per pulse, word = drive | (ticks-4)<<1.
//
//	0: pull block
//	1: out pins, 1
//	2: out x, 31
//	3: jmp x-- 3
//
// One PIO cycle is one tick; a pulse costs x+4 cycles.
const pioTxOverhead = 4

var pulseTxProgram = []uint16{
	pio.EncodePull(false, true),
	pio.EncodeOut(pio.SrcDestPins, 1),
	pio.EncodeOut(pio.SrcDestX, 31),
	pio.EncodeJmp(3, pio.JmpXNZeroDec),
}

// pulse_rx: run-length capture on the JMP pin at two cycles per tick.
// The idle limit in ticks is loaded once from the TX FIFO.
//
//	 0: pull block        ; osr = idle limit
//	 1: jmp pin 1         ; idle, wait for a start edge
//	 2: mov x, ~null      ; low run
//	 3: jmp pin 5
//	 4: jmp x-- 3
//	 5: in x, 32          ; push ~low ticks
//	 6: push block
//	 7: mov x, osr        ; high run
//	 8: jmp pin 10
//	 9: jmp 14
//	10: jmp x-- 8
//	11: in x, 32          ; idle timeout, x = 0xffffffff
//	12: push block
//	13: jmp 1
//	14: in x, 32          ; push limit-high ticks
//	15: push block
//	16: jmp 2
var pulseRxProgram = []uint16{
	pio.EncodePull(false, true),
	pio.EncodeJmp(1, pio.JmpPinInput),
	pio.EncodeMovNot(pio.SrcDestX, pio.SrcDestNull),
	pio.EncodeJmp(5, pio.JmpPinInput),
	pio.EncodeJmp(3, pio.JmpXNZeroDec),
	pio.EncodeIn(pio.SrcDestX, 32),
	pio.EncodePush(false, true),
	pio.EncodeMov(pio.SrcDestX, pio.SrcDestOSR),
	pio.EncodeJmp(10, pio.JmpPinInput),
	pio.EncodeJmp(14, pio.JmpAlways),
	pio.EncodeJmp(8, pio.JmpXNZeroDec),
	pio.EncodeIn(pio.SrcDestX, 32),
	pio.EncodePush(false, true),
	pio.EncodeJmp(1, pio.JmpAlways),
	pio.EncodeIn(pio.SrcDestX, 32),
	pio.EncodePush(false, true),
	pio.EncodeJmp(2, pio.JmpAlways),
}

// Cycles spent outside the counting loops, rounded to ticks.
const (
	pioRxLowOverhead  = 3
	pioRxHighOverhead = 2
)

// PIOSender drives pulses on a pin from a PIO state machine.
type PIOSender struct {
	sm     pio.StateMachine
	offset uint8
	tickHz uint32
}

// NewPIOSender loads the transmit program on sm and drives pin, idling high.
// tickHz is the pulse tick rate, usually Timing.TickHz.
func NewPIOSender(sm pio.StateMachine, pin machine.Pin, tickHz uint32) (*PIOSender, error) {
	sm.TryClaim() // SM should be claimed beforehand, we just guarantee it's claimed.
	Pio := sm.PIO()
	whole, frac, err := pio.ClkDivFromFrequency(tickHz, machine.CPUFrequency())
	if err != nil {
		return nil, err
	}
	offset, err := Pio.AddProgram(pulseTxProgram, -1)
	if err != nil {
		return nil, err
	}
	pin.Configure(machine.PinConfig{Mode: Pio.PinMode()})
	cfg := pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset, offset+uint8(len(pulseTxProgram))-1)
	cfg.SetOutPins(pin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetFIFOJoin(pio.FifoJoinTx)
	cfg.SetClkDivIntFrac(whole, frac)
	sm.Init(offset, cfg)
	sm.SetPinsConsecutive(pin, 1, true)
	sm.SetPindirsConsecutive(pin, 1, true)
	sm.SetEnabled(true)
	return &PIOSender{sm: sm, offset: offset, tickHz: tickHz}, nil
}

// SendPulses queues one FIFO word per pulse, driving the inverse of each
// level. With wait it returns after the last pulse has ended.
func (s *PIOSender) SendPulses(pulses []Pulse, wait bool) error {
	var last uint32
	for _, p := range pulses {
		d := p.Duration
		if d < pioTxOverhead {
			d = pioTxOverhead
		}
		w := (d - pioTxOverhead) << 1
		if !p.Level {
			w |= 1
		}
		for s.sm.IsTxFIFOFull() {
			runtime.Gosched()
		}
		s.sm.TxPut(w)
		last = d
	}
	if !wait {
		return nil
	}
	for !s.sm.IsTxFIFOEmpty() {
		runtime.Gosched()
	}
	// The state machine holds the last word; wait out its pulse.
	time.Sleep(time.Duration(uint64(last) * uint64(time.Second) / uint64(s.tickHz)))
	return nil
}

// PIOReceiver captures line levels on a pin into pulse batches.
type PIOReceiver struct {
	sm       pio.StateMachine
	offset   uint8
	idle     uint32
	maxBatch int

	batches chan []Pulse
	closed  chan struct{}
	dropped uint32
}

// NewPIOReceiver loads the capture program on sm for pin. A high level
// longer than idleTicks ends a batch; batches are also cut at maxBatch
// pulses. depth bounds the batches waiting for a reader.
func NewPIOReceiver(sm pio.StateMachine, pin machine.Pin, tickHz, idleTicks uint32, maxBatch, depth int) (*PIOReceiver, error) {
	sm.TryClaim()
	Pio := sm.PIO()
	whole, frac, err := pio.ClkDivFromFrequency(2*tickHz, machine.CPUFrequency())
	if err != nil {
		return nil, err
	}
	offset, err := Pio.AddProgram(pulseRxProgram, -1)
	if err != nil {
		return nil, err
	}
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	cfg := pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset, offset+uint8(len(pulseRxProgram))-1)
	cfg.SetJmpPin(pin)
	cfg.SetInShift(false, false, 32)
	cfg.SetClkDivIntFrac(whole, frac)
	sm.SetPindirsConsecutive(pin, 1, false)
	sm.Init(offset, cfg)
	sm.TxPut(idleTicks)
	sm.SetEnabled(true)

	if maxBatch <= 0 {
		maxBatch = 64
	}
	if depth <= 0 {
		depth = 4
	}
	r := &PIOReceiver{
		sm:       sm,
		offset:   offset,
		idle:     idleTicks,
		maxBatch: maxBatch,
		batches:  make(chan []Pulse, depth),
		closed:   make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// ReceivePulses returns the next captured batch.
func (r *PIOReceiver) ReceivePulses(ctx context.Context) ([]Pulse, error) {
	select {
	case b := <-r.batches:
		return b, nil
	case <-r.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dropped returns the number of batches lost because no reader kept up.
func (r *PIOReceiver) Dropped() uint32 { return atomic.LoadUint32(&r.dropped) }

// Close stops capture.
func (r *PIOReceiver) Close() error {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
	r.sm.SetEnabled(false)
	return nil
}

func (r *PIOReceiver) run() {
	var batch []Pulse
	low := true
	for {
		select {
		case <-r.closed:
			return
		default:
		}
		if r.sm.IsRxFIFOEmpty() {
			runtime.Gosched()
			continue
		}
		w := r.sm.RxGet()
		if low {
			batch = append(batch, Pulse{Duration: ^w + pioRxLowOverhead, Level: false})
			low = false
			continue
		}
		low = true
		if w > r.idle {
			// Same shape as an RMT idle end marker.
			batch = append(batch, Pulse{Duration: 0, Level: true})
			r.deliver(batch)
			batch = nil
			continue
		}
		batch = append(batch, Pulse{Duration: r.idle - w + pioRxHighOverhead, Level: true})
		if len(batch) >= r.maxBatch {
			r.deliver(batch)
			batch = nil
		}
	}
}

func (r *PIOReceiver) deliver(batch []Pulse) {
	select {
	case r.batches <- batch:
	default:
		atomic.AddUint32(&r.dropped, 1)
	}
}
