package itm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

// chunkTransport serves queued chunks, then reports empty reads.
type chunkTransport struct {
	chunks [][]byte
	reads  int

	// cancel is called once all chunks have been served.
	cancel context.CancelFunc
}

func (tr *chunkTransport) ReadTrace(buf []byte) (int, error) {
	tr.reads++
	if len(tr.chunks) == 0 {
		if tr.cancel != nil {
			tr.cancel()
			tr.cancel = nil
		}
		return 0, nil
	}
	n := copy(buf, tr.chunks[0])
	tr.chunks = tr.chunks[1:]
	return n, nil
}

func TestCaptureDrainsChunks(t *testing.T) {
	log, _ := test.NewNullLogger()
	out := &flushWriter{}
	s := NewSession(out, log, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	tr := &chunkTransport{
		chunks: [][]byte{
			{0x01, 'h', 0x01, 'i'},
			{0x01, '\n'},
		},
		cancel: cancel,
	}

	if err := Capture(ctx, tr, s); err != nil {
		t.Fatalf("Capture returned %v, want nil on cancellation", err)
	}

	if got := out.String(); got != "hi\n" {
		t.Errorf("output = %q, want %q", got, "hi\n")
	}
	if got := s.Counters().RawBytes; got != 6 {
		t.Errorf("RawBytes = %d, want 6", got)
	}
}

// Cancellation is observed between chunk reads only.
func TestCaptureCancelledBeforeRead(t *testing.T) {
	log, _ := test.NewNullLogger()
	out := &flushWriter{}
	s := NewSession(out, log, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	tr := &chunkTransport{chunks: [][]byte{{0x01, 'x'}}}
	cancel() // cancelled before the first read

	if err := Capture(ctx, tr, s); err != nil {
		t.Fatalf("Capture returned %v, want nil", err)
	}
	if tr.reads != 0 {
		t.Errorf("transport read %d times after cancellation, want 0", tr.reads)
	}
}

type failingTransport struct{}

func (failingTransport) ReadTrace(buf []byte) (int, error) {
	return 0, errors.New("endpoint stalled")
}

func TestCaptureTransportError(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := NewSession(&flushWriter{}, log, time.Now())

	err := Capture(context.Background(), failingTransport{}, s)
	if err == nil {
		t.Fatal("Capture returned nil, want transport error")
	}
}
