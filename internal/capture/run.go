// Package capture wires the probe transport, the trace configurator
// and the ITM decoder into the swotrace command's capture run.
package capture

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"swotrace/internal/coresight"
	"swotrace/internal/itm"
	"swotrace/internal/probe"
	"swotrace/internal/stlink"
)

// Exit status categories reported by the swotrace command.
const (
	ExitSuccess           = 0
	ExitInvalidParams     = 1
	ExitProbeNotFound     = 2
	ExitMissingDevice     = 3
	ExitUnsupportedDevice = 4
	ExitUnsupportedLink   = 5
	ExitStateError        = 6
)

// noSWOTrace lists device identification codes of Cortex-M0 based
// parts, which have no SWO pin at all.
var noSWOTrace = map[uint32]string{
	0x440: "STM32F05x",
	0x442: "STM32F09x",
	0x444: "STM32F03x",
	0x445: "STM32F04x",
	0x448: "STM32F07x",
	0x417: "STM32L0xx Cat3",
	0x425: "STM32L0xx Cat2",
	0x447: "STM32L0xx Cat5",
	0x457: "STM32L0xx Cat1",
}

// Config carries the command line settings into a capture run.
type Config struct {
	CoreFrequencyMHz int
	ResetBoard       bool
	Force            bool
	Serial           string

	Output io.Writer
	Log    logrus.FieldLogger

	// OpenProbe overrides probe discovery; nil means ST-LINK over USB.
	OpenProbe func(serial string, log logrus.FieldLogger) (probe.Probe, error)
}

// Run connects to a probe, programs the target's trace peripherals
// and captures SWO output until ctx is cancelled. The return value is
// the process exit status.
func Run(ctx context.Context, cfg Config) int {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	open := cfg.OpenProbe
	if open == nil {
		open = func(serial string, log logrus.FieldLogger) (probe.Probe, error) {
			return stlink.Open(serial, log)
		}
	}

	p, err := open(cfg.Serial, log)
	if err != nil {
		log.Errorf("unable to locate a debug probe: %v", err)
		return ExitProbeNotFound
	}
	defer p.Close()

	if p.ChipID() == 0 {
		log.Error(probe.ErrNoDevice)
		if !cfg.Force {
			return ExitMissingDevice
		}
	}

	if !p.HasTrace() {
		log.Error(probe.ErrTraceUnsupported)
		if !cfg.Force {
			return ExitUnsupportedLink
		}
	}

	if desc, ok := noSWOTrace[p.ChipID()]; ok {
		log.Errorf("%v: '%s'", probe.ErrDeviceUnsupported, desc)
		if !cfg.Force {
			return ExitUnsupportedDevice
		}
	}

	configurator := coresight.NewConfigurator(p, log)
	err = configurator.Configure(coresight.Options{
		CoreFrequencyMHz: cfg.CoreFrequencyMHz,
		ResetBoard:       cfg.ResetBoard,
		Force:            cfg.Force,
	})
	if err != nil {
		log.Errorf("unable to enable trace mode: %v", err)
		if !cfg.Force {
			return ExitStateError
		}
	}

	log.Info("Reading Trace")
	sink := bufio.NewWriter(cfg.Output)
	session := itm.NewSession(sink, log, time.Now())

	// A transport failure ends the capture but is not a process
	// failure; everything decoded so far has already been emitted.
	_ = itm.Capture(ctx, p, session)
	sink.Flush()

	if err := p.DisableTrace(); err != nil {
		log.Debugf("disable trace: %v", err)
	}

	return ExitSuccess
}
