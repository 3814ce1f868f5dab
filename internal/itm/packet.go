// Package itm decodes the byte stream an ITM emits over the SWO pin
// into application text output, timestamp markers and overflow
// indications, and tracks rolling health statistics that expose a
// misconfigured trace clock.
//
// Packet formats follow the ARMv7-M architecture manual, section D4.2.
package itm

// Kind classifies an SWO protocol header byte.
type Kind int

const (
	KindOverflow   Kind = iota // ITM buffer overflow marker
	KindLocalTime              // local timestamp packet
	KindGlobalTime             // global timestamp packet
	KindExtension              // stimulus page / extension packet
	KindSource                 // software or hardware instrumentation source
	KindUnknown                // no recognized header pattern
)

func (k Kind) String() string {
	switch k {
	case KindOverflow:
		return "overflow"
	case KindLocalTime:
		return "local-time"
	case KindGlobalTime:
		return "global-time"
	case KindExtension:
		return "extension"
	case KindSource:
		return "source"
	default:
		return "unknown"
	}
}

// Header is the decoded view of a packet header byte.
type Header struct {
	Kind Kind

	// Continuation is the high bit: another payload byte follows.
	Continuation bool

	// Source packet fields.
	Software    bool  // software stimulus rather than hardware event
	Port        uint8 // stimulus port address (0-31)
	PayloadSize int   // payload length in bytes: 1, 2 or 4
}

// ClassifyHeader matches b against the recognized header patterns.
// The guards are tried in precedence order: the patterns are not
// mutually exclusive under naive masking, so the exact-match checks
// (overflow, global timestamp) must run before the broader mask-based
// ones. 0x70 in particular also satisfies the local timestamp mask.
func ClassifyHeader(b byte) Header {
	h := Header{Continuation: b&0x80 != 0}

	switch {
	case b == 0x70:
		h.Kind = KindOverflow

	case b&0x0f == 0x00 && b&0x70 != 0x00:
		h.Kind = KindLocalTime

	case b&0xdf == 0x94:
		h.Kind = KindGlobalTime

	case b&0x0b == 0x08:
		h.Kind = KindExtension

	case b&0x03 != 0x00:
		h.Kind = KindSource
		h.Software = b&0x04 == 0
		h.Port = b >> 3
		h.PayloadSize = sourcePayloadSize(b)

	default:
		h.Kind = KindUnknown
	}
	return h
}

// sourcePayloadSize maps the low two header bits to byte counts.
// The encoding reserves 0 (not a source packet) and maps 3 to a
// four-byte payload.
func sourcePayloadSize(b byte) int {
	switch b & 0x03 {
	case 1:
		return 1
	case 2:
		return 2
	default:
		return 4
	}
}
