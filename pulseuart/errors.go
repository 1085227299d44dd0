package pulseuart

import "errors"

var (
	// ErrOverflow indicates a write needs more pulses than the configured
	// capacity. Nothing is transmitted.
	ErrOverflow = errors.New("pulseuart: data too long for pulse buffer")
	// ErrBadTiming indicates the baud rate cannot be derived from the clock.
	ErrBadTiming = errors.New("pulseuart: invalid timing")
	// ErrBadConfig indicates an invalid Config.
	ErrBadConfig = errors.New("pulseuart: invalid config")

	ErrTxOnly     = errors.New("pulseuart: port is TX only")
	ErrRxOnly     = errors.New("pulseuart: port is RX only")
	ErrNoSender   = errors.New("pulseuart: no pulse sender")
	ErrNoReceiver = errors.New("pulseuart: no pulse receiver")
	ErrClosed     = errors.New("pulseuart: closed")

	ErrPortInUse   = errors.New("pulseuart: port already open")
	ErrPortNotOpen = errors.New("pulseuart: port not open")
	ErrPortRange   = errors.New("pulseuart: port number out of range")
)
