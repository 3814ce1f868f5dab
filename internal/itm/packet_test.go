package itm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassifyHeader(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		want Header
	}{
		{"Overflow", 0x70, Header{Kind: KindOverflow}},
		{"LocalTimeNoCont", 0x10, Header{Kind: KindLocalTime}},
		{"LocalTimeCont", 0xC0, Header{Kind: KindLocalTime, Continuation: true}},
		{"GlobalTime1", 0x94, Header{Kind: KindGlobalTime, Continuation: true}},
		{"GlobalTime2", 0xB4, Header{Kind: KindGlobalTime, Continuation: true}},
		{"Extension", 0x08, Header{Kind: KindExtension}},
		{"ExtensionCont", 0x88, Header{Kind: KindExtension, Continuation: true}},
		{"TargetSource", 0x01, Header{Kind: KindSource, Software: true, Port: 0, PayloadSize: 1}},
		{"SWSourcePort1Size2", 0x0A, Header{Kind: KindSource, Software: true, Port: 1, PayloadSize: 2, Continuation: false}},
		{"SWSourceSize4", 0x03, Header{Kind: KindSource, Software: true, Port: 0, PayloadSize: 4}},
		{"HWSource", 0xFF, Header{Kind: KindSource, Software: false, Port: 31, PayloadSize: 4, Continuation: true}},
		{"UnknownZero", 0x00, Header{Kind: KindUnknown}},
		{"UnknownCont", 0x80, Header{Kind: KindUnknown, Continuation: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyHeader(tt.b)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ClassifyHeader(0x%02x) mismatch (-want +got):\n%s", tt.b, diff)
			}
		})
	}
}

// The overflow value 0x70 also satisfies the local timestamp mask, so
// the exact match must win.
func TestClassifyHeaderPrecedence(t *testing.T) {
	if got := ClassifyHeader(0x70).Kind; got != KindOverflow {
		t.Errorf("0x70 classified as %v, want overflow", got)
	}

	// All other local-time patterned bytes stay local time.
	for b := 0; b < 256; b++ {
		c := byte(b)
		if c == 0x70 || c&0x0f != 0 || c&0x70 == 0 {
			continue
		}
		if got := ClassifyHeader(c).Kind; got != KindLocalTime {
			t.Errorf("ClassifyHeader(0x%02x).Kind = %v, want local-time", c, got)
		}
	}
}

func TestClassifyHeaderSourceSizes(t *testing.T) {
	for b := 0; b < 256; b++ {
		c := byte(b)
		if c&0x03 == 0 {
			continue
		}
		h := ClassifyHeader(c)
		if h.Kind != KindSource {
			t.Fatalf("ClassifyHeader(0x%02x).Kind = %v, want source", c, h.Kind)
		}

		wantSize := map[byte]int{1: 1, 2: 2, 3: 4}[c&0x03]
		if h.PayloadSize != wantSize {
			t.Errorf("ClassifyHeader(0x%02x).PayloadSize = %d, want %d", c, h.PayloadSize, wantSize)
		}
		if h.Software != (c&0x04 == 0) {
			t.Errorf("ClassifyHeader(0x%02x).Software = %v", c, h.Software)
		}
		if h.Port != c>>3 {
			t.Errorf("ClassifyHeader(0x%02x).Port = %d, want %d", c, h.Port, c>>3)
		}
	}
}
