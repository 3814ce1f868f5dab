package itm

import "time"

// configCheckGracePeriod is how long the capture runs before the
// misconfiguration heuristic is evaluated.
const configCheckGracePeriod = 10 * time.Second

// CheckConfiguration runs the one-shot misconfiguration heuristic.
// It is a no-op until the grace period elapses and never runs more
// than once per session. A healthy capture keeps a steady flow of raw
// bytes, almost no decode errors, and a regular supply of timestamp
// packets; anything else strongly suggests a wrong trace clock.
func (s *Session) CheckConfiguration(now time.Time) {
	if s.configurationChecked || now.Sub(s.startTime) < configCheckGracePeriod {
		return
	}
	s.configurationChecked = true

	c := s.counters
	if c.RawBytes >= 100 && c.Errors <= 1 && c.TimePackets >= 10 {
		return
	}

	s.log.Warn("****")
	s.log.Warn("We do not appear to be retrieving data from the probe correctly.")
	s.log.Warnf("Raw Bytes: %d", c.RawBytes)
	s.log.Warnf("Target Data: %d", c.TargetData)
	s.log.Warnf("Time Packets: %d", c.TimePackets)
	s.log.Warnf("Overflow Count: %d", c.Overflow)
	s.log.Warnf("Errors: %d", c.Errors)
	for _, op := range s.unknownOpcodes.Values() {
		s.log.Warnf("Unknown Opcode 0x%02x", op)
	}
	for _, src := range s.unknownSources.Values() {
		s.log.Warnf("Unknown Source %d", src)
	}
	s.log.Warn("Check that the clock frequency is set correctly. Either with the --clock=XX")
	s.log.Warn("command line option, or by adding the following to your device's clock initialization:")
	s.log.Warn("  TPI->ACPR = HAL_RCC_GetHCLKFreq() / 2000000 - 1;")
	s.log.Warn("****")
}

// ConfigurationChecked reports whether the one-shot heuristic has
// already run.
func (s *Session) ConfigurationChecked() bool {
	return s.configurationChecked
}
