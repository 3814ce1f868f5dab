// Package probe defines the debug probe contract consumed by the
// trace configurator and the capture loop. A probe exposes 32-bit
// memory-mapped access to the target, core run control, and the SWO
// trace byte channel.
package probe

import "errors"

// TraceBaseFrequency is the SWO capture clock of the probe in Hz. The
// TPIU prescaler on the target is programmed relative to this rate.
const TraceBaseFrequency = 2000000

// Errors reported by probe discovery and capability checks.
var (
	ErrNotFound          = errors.New("probe: no debug probe found")
	ErrNoDevice          = errors.New("probe: probe is not connected to a device")
	ErrTraceUnsupported  = errors.New("probe: probe does not support trace capture")
	ErrDeviceUnsupported = errors.New("probe: device does not support SWO tracing")
)

// Probe is a debug probe attached to a CoreSight-compliant target.
//
// ReadMem32/WriteMem32 access target memory-mapped registers over the
// debug link. ReadTrace drains buffered SWO bytes from the probe and
// returns the number of bytes copied into buf; zero means no trace
// data is currently pending.
type Probe interface {
	ReadMem32(addr uint32) (uint32, error)
	WriteMem32(addr uint32, value uint32) error

	EnableTrace(hz uint32) error
	DisableTrace() error
	ReadTrace(buf []byte) (int, error)

	Halt() error
	Run() error
	Reset() error

	// HasTrace reports whether the probe firmware supports SWO capture.
	HasTrace() bool
	// ChipID returns the target device identification code, or zero if
	// no device responded on the debug link.
	ChipID() uint32
	// Serial returns the probe serial number.
	Serial() string

	Close() error
}
