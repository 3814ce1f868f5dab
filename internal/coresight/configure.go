package coresight

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"swotrace/internal/probe"
)

// Options control how the target is programmed for tracing.
type Options struct {
	// CoreFrequencyMHz is the system clock the target runs at. Zero
	// means unknown; the TPIU prescaler is then left as previously
	// programmed by the target firmware.
	CoreFrequencyMHz int
	// ResetBoard resets the target before programming.
	ResetBoard bool
	// Force continues past individual step failures, leaving the
	// target possibly partially configured.
	Force bool
}

// Configurator issues the ordered register write sequence that
// enables ITM/DWT/TPIU tracing on the target.
type Configurator struct {
	probe probe.Probe
	log   logrus.FieldLogger
}

// NewConfigurator creates a configurator driving the given probe.
func NewConfigurator(p probe.Probe, log logrus.FieldLogger) *Configurator {
	return &Configurator{probe: p, log: log}
}

// setupSequence prepares the debug and trace infrastructure before
// the probe's capture channel is opened: halt state, trace collection
// enable, comparator/watchpoint cleardown, and asynchronous trace
// mode selection.
func setupSequence() []RegisterWrite {
	return []RegisterWrite{
		{DebugHaltCtrlStat, DebugKey | DebugEnable | DebugHalt, "core debug halt"},
		{DebugExcMonCtrl, TraceCollectE, "trace collection enable"},
		{FlashPatchControl, FlashPatchControlKey, "flash patch disable"},
		{DWTFunction0, 0, "clear DWT comparator 0"},
		{DWTFunction1, 0, "clear DWT comparator 1"},
		{DWTFunction2, 0, "clear DWT comparator 2"},
		{DWTFunction3, 0, "clear DWT comparator 3"},
		{DWTControl, 0, "clear DWT control"},
		{DebugMCUConfig, DebugMCUConfigSleep | DebugMCUConfigStop |
			DebugMCUConfigStandby | DebugMCUConfigTraceIOEn |
			DebugMCUConfigModeAsync, "async trace during sleep/stop/standby"},
	}
}

// enableSequence turns the trace sources on. Must run after the
// probe's capture channel is enabled and the TPIU prescaler is set.
func enableSequence() []RegisterWrite {
	return []RegisterWrite{
		{TPIUFormatterFlush, TPIUFormatterFlushTrigIn, "formatter trigger on input"},
		{TPIUPinProtocol, TPIUPinProtocolSWONRZ, "NRZ pin protocol"},
		{ITMLockAccess, ITMLockAccessKey, "ITM unlock"},
		{ITMCycleCount, ITMSyncCount, "ITM sync counter"},
		{ITMTraceControl, ITMTraceControlBusID1 | ITMTraceControlTSEna |
			ITMTraceControlITMEna, "ITM enable with timestamps"},
		{ITMTraceEnable, ITMTraceEnablePortsAll, "enable all stimulus ports"},
		{ITMTracePrivilege, ITMTracePrivilegePortsAll, "unprivileged port access"},
		{DWTControl, 4*DWTControlNumComp | DWTControlCycTap |
			0xF*DWTControlPostInit | 0xF*DWTControlPostPreset |
			DWTControlCycCntEna, "DWT cycle counter enable"},
		{DebugExcMonCtrl, TraceCollectE, "re-assert trace collection enable"},
	}
}

func (c *Configurator) write(w RegisterWrite) error {
	if err := c.probe.WriteMem32(w.Addr, w.Value); err != nil {
		c.log.Errorf("unable to set 0x%08x (%s) to 0x%08x: %v", w.Addr, w.Purpose, w.Value, err)
		return fmt.Errorf("write 0x%08x (%s): %w", w.Addr, w.Purpose, err)
	}
	return nil
}

func (c *Configurator) applySequence(seq []RegisterWrite, force bool) error {
	for _, w := range seq {
		if err := c.write(w); err != nil && !force {
			return err
		}
	}
	return nil
}

// Configure programs the target for SWO tracing and resumes
// execution. Any step's failure aborts unless Force is set, in which
// case the failure is logged and programming continues.
func (c *Configurator) Configure(opts Options) error {
	if err := c.probe.Halt(); err != nil {
		c.log.Errorf("unable to halt target for debugging: %v", err)
		if !opts.Force {
			return err
		}
	}

	if opts.ResetBoard {
		if err := c.probe.Reset(); err != nil {
			c.log.Errorf("unable to reset target: %v", err)
			if !opts.Force {
				return err
			}
		}
	}

	if err := c.applySequence(setupSequence(), opts.Force); err != nil {
		return err
	}

	if err := c.probe.EnableTrace(probe.TraceBaseFrequency); err != nil {
		c.log.Errorf("unable to turn on trace capture in the probe: %v", err)
		if !opts.Force {
			return err
		}
	}

	if err := c.write(RegisterWrite{TPIUCurrentPortSize, TPIUPortSize1, "single-wire port size"}); err != nil && !opts.Force {
		return err
	}

	if opts.CoreFrequencyMHz != 0 {
		prescaler := uint32(opts.CoreFrequencyMHz)*1000000/probe.TraceBaseFrequency - 1
		if err := c.write(RegisterWrite{TPIUAsyncPrescaler, prescaler, "async clock prescaler"}); err != nil && !opts.Force {
			return err
		}
	}

	c.reportPrescaler(opts.Force)

	if err := c.applySequence(enableSequence(), opts.Force); err != nil {
		return err
	}

	if err := c.probe.Run(); err != nil {
		c.log.Errorf("unable to resume target execution: %v", err)
		if !opts.Force {
			return err
		}
	}

	return nil
}

// reportPrescaler reads back the TPIU prescaler and reports the
// system clock the target expects, or warns that no clock was ever
// programmed.
func (c *Configurator) reportPrescaler(force bool) {
	prescaler, err := c.probe.ReadMem32(TPIUAsyncPrescaler)
	if err != nil {
		c.log.Errorf("unable to read from address 0x%08x: %v", TPIUAsyncPrescaler, err)
		return
	}
	if prescaler != 0 {
		clock := (prescaler + 1) * probe.TraceBaseFrequency
		mhz := (clock + 500000) / 1000000
		c.log.Infof("Trace Port Interface configured to expect a %d MHz system clock.", mhz)
	} else {
		c.log.Warn("Trace Port Interface not configured. Specify the system clock with a --clock=XX")
		c.log.Warn("command line option or set it in your device's clock initialization routine, such as with:")
		c.log.Warn("  TPI->ACPR = HAL_RCC_GetHCLKFreq() / 2000000 - 1;")
	}
}
