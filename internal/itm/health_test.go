package itm

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestCheckConfigurationGracePeriod(t *testing.T) {
	log, hook := test.NewNullLogger()
	start := time.Now()
	s := NewSession(&flushWriter{}, log, start)

	// Counter values are as unhealthy as they get, but the grace
	// period has not elapsed.
	s.CheckConfiguration(start.Add(9 * time.Second))

	if s.ConfigurationChecked() {
		t.Error("configuration checked before grace period elapsed")
	}
	if len(hook.AllEntries()) != 0 {
		t.Errorf("diagnostics emitted before grace period: %d entries", len(hook.AllEntries()))
	}
}

func TestCheckConfigurationRunsOnce(t *testing.T) {
	log, hook := test.NewNullLogger()
	start := time.Now()
	s := NewSession(&flushWriter{}, log, start)

	s.CheckConfiguration(start.Add(11 * time.Second))
	if !s.ConfigurationChecked() {
		t.Fatal("configuration not checked after grace period")
	}
	first := len(hook.AllEntries())
	if first == 0 {
		t.Fatal("no diagnostics for an empty capture")
	}

	s.CheckConfiguration(start.Add(30 * time.Second))
	if got := len(hook.AllEntries()); got != first {
		t.Errorf("second check emitted more diagnostics: %d -> %d entries", first, got)
	}
}

func TestCheckConfigurationHealthy(t *testing.T) {
	log, hook := test.NewNullLogger()
	start := time.Now()
	s := NewSession(&flushWriter{}, log, start)

	// 20 local timestamp packets and enough raw padding bytes.
	for i := 0; i < 20; i++ {
		s.ProcessByte(0x10)
	}
	for i := 0; i < 100; i++ {
		feed(s, 0x01, 'x')
	}

	s.CheckConfiguration(start.Add(11 * time.Second))

	if !s.ConfigurationChecked() {
		t.Fatal("configuration not checked")
	}
	if got := len(hook.AllEntries()); got != 0 {
		t.Errorf("healthy capture produced %d diagnostic entries", got)
	}
}

// A stream of one unrecognized header byte with its continuation bit
// set leaves the decoder draining a frame of unknown length: few raw
// bytes, no time packets, one distinct unknown opcode.
func TestCheckConfigurationMissingTimePackets(t *testing.T) {
	log, hook := test.NewNullLogger()
	start := time.Now()
	s := NewSession(&flushWriter{}, log, start)

	for i := 0; i < 50; i++ {
		s.ProcessByte(0x80)
	}

	s.CheckConfiguration(start.Add(11 * time.Second))

	if got := s.UnknownOpcodes(); len(got) != 1 || got[0] != 0x80 {
		t.Errorf("UnknownOpcodes = %v, want [0x80]", got)
	}

	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	report := strings.Join(msgs, "\n")

	for _, want := range []string{
		"Raw Bytes: 50",
		"Time Packets: 0",
		"Errors: 1",
		"Unknown Opcode 0x80",
		"--clock=XX",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("diagnostic report missing %q:\n%s", want, report)
		}
	}
}
