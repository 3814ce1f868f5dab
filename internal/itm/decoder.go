package itm

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the decoder position within the packet stream. Transitions
// are pure functions of the current state and the next input byte; no
// byte is ever re-examined.
type State int

const (
	StateIdle         State = iota // expecting a packet header
	StateTargetSource              // next byte is application text from port 0
	StateSkipFrame                 // discarding bytes while their continuation bit is set
	StateSkip4                     // discarding a fixed 4-byte payload
	StateSkip3
	StateSkip2
	StateSkip1
)

// Counters are the rolling statistics maintained per capture. All are
// monotonically increasing.
type Counters struct {
	RawBytes    uint32 // every byte fed to the decoder
	TargetData  uint32 // application text bytes emitted from port 0
	TimePackets uint32 // local and global timestamp packets
	Overflow    uint32 // ITM overflow markers
	Errors      uint32 // unrecognized or error-class headers
}

// Flusher is implemented by output sinks that buffer writes. The
// decoder flushes on every newline to keep interactive output
// responsive.
type Flusher interface {
	Flush() error
}

// Session owns the decoder state and statistics for one capture run.
// It is owned and mutated by a single goroutine; the decoder and the
// health check operate on it by reference.
type Session struct {
	startTime            time.Time
	configurationChecked bool

	state    State
	counters Counters

	// Protocol anomalies, each logged once per distinct value.
	unknownOpcodes *IntSet // header bytes that matched no pattern (0-255)
	unknownSources *IntSet // software source ports with no decoder (0-31)

	out    io.Writer
	log    logrus.FieldLogger
	outBuf [1]byte
}

// NewSession creates a capture session writing application text to
// out. The start time anchors the configuration health check grace
// period.
func NewSession(out io.Writer, log logrus.FieldLogger, start time.Time) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		startTime:      start,
		state:          StateIdle,
		unknownOpcodes: NewIntSet(256),
		unknownSources: NewIntSet(32),
		out:            out,
		log:            log,
	}
}

// State returns the current decoder state.
func (s *Session) State() State {
	return s.state
}

// Counters returns a snapshot of the session statistics.
func (s *Session) Counters() Counters {
	return s.counters
}

// UnknownOpcodes returns the distinct unrecognized header byte values
// seen so far.
func (s *Session) UnknownOpcodes() []int {
	return s.unknownOpcodes.Values()
}

// UnknownSources returns the distinct unsupported software source
// ports seen so far.
func (s *Session) UnknownSources() []int {
	return s.unknownSources.Values()
}

// ProcessByte advances the decoder by one stream byte.
func (s *Session) ProcessByte(b byte) {
	s.counters.RawBytes++

	switch s.state {
	case StateIdle:
		s.state = s.classifyIdle(b)

	case StateTargetSource:
		// Single-byte port 0 payload convention: exactly one text byte
		// per stimulus packet.
		s.emit(b)
		s.counters.TargetData++
		s.state = StateIdle

	case StateSkipFrame:
		if b&0x80 == 0 {
			s.state = StateIdle
		}

	case StateSkip4:
		s.state = StateSkip3
	case StateSkip3:
		s.state = StateSkip2
	case StateSkip2:
		s.state = StateSkip1
	case StateSkip1:
		s.state = StateIdle

	default:
		s.log.Errorf("invalid decoder state %d", s.state)
		s.state = StateIdle
	}
}

// classifyIdle consumes a header byte and picks the next state.
func (s *Session) classifyIdle(b byte) State {
	h := ClassifyHeader(b)

	switch h.Kind {
	case KindSource:
		if h.Software && h.Port == 0 && h.PayloadSize == 1 {
			return StateTargetSource
		}
		if h.Software {
			if s.unknownSources.Add(int(h.Port)) {
				s.log.Warnf("Unsupported source 0x%x size %d", h.Port, h.PayloadSize)
			}
		}
		switch h.PayloadSize {
		case 1:
			return StateSkip1
		case 2:
			return StateSkip2
		default:
			return StateSkip4
		}

	case KindLocalTime, KindGlobalTime:
		s.counters.TimePackets++
		return continuationState(h)

	case KindExtension:
		return continuationState(h)

	case KindOverflow:
		s.counters.Overflow++
		// Overflow is a single-byte error-class packet; it falls
		// through to the unknown-header accounting below.
	}

	if s.unknownOpcodes.Add(int(b)) {
		s.log.Warnf("Unknown opcode 0x%02x", b)
	}
	s.counters.Errors++
	return continuationState(h)
}

// continuationState skips trailing payload bytes of a packet whose
// length is only known via the continuation bit.
func continuationState(h Header) State {
	if h.Continuation {
		return StateSkipFrame
	}
	return StateIdle
}

// emit writes one application text byte to the output sink, flushing
// on newline.
func (s *Session) emit(b byte) {
	s.outBuf[0] = b
	if _, err := s.out.Write(s.outBuf[:]); err != nil {
		s.log.Errorf("unable to write target output: %v", err)
		return
	}
	if b != '\n' {
		return
	}
	if f, ok := s.out.(Flusher); ok {
		if err := f.Flush(); err != nil {
			s.log.Errorf("unable to flush target output: %v", err)
		}
	}
}
