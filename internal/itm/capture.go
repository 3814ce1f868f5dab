package itm

import (
	"context"
	"fmt"
	"time"
)

const (
	// readBufferSize bounds one trace drain from the probe.
	readBufferSize = 4096

	// idlePollInterval is the sleep after an empty read. The probe's
	// trace buffer takes around 2 ms to fill, so polling at half that
	// bounds latency without busy-spinning.
	idlePollInterval = time.Millisecond
)

// Transport is the byte source for a capture, typically the trace
// endpoint of a debug probe.
type Transport interface {
	ReadTrace(buf []byte) (int, error)
}

// Capture pulls raw SWO bytes from the transport and feeds them
// byte-by-byte through the session decoder until ctx is cancelled or
// the transport fails. Cancellation is checked between chunk reads
// only, so a pending chunk is always fully drained before Capture
// returns; cancellation therefore never leaves the decoder mid-chunk.
func Capture(ctx context.Context, tr Transport, s *Session) error {
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := tr.ReadTrace(buf)
		if err != nil {
			s.log.Errorf("error reading trace: %v", err)
			return fmt.Errorf("read trace: %w", err)
		}

		if n == 0 {
			time.Sleep(idlePollInterval)
		}
		for _, b := range buf[:n] {
			s.ProcessByte(b)
		}

		s.CheckConfiguration(time.Now())
	}
}
