// Package stlink drives ST-LINK debug probes over USB, exposing the
// 32-bit memory access, run control and SWO trace channel the capture
// core consumes.
//
// The command protocol follows the openocd st-link driver.
package stlink

import (
	"encoding/hex"
	"fmt"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"swotrace/internal/probe"
)

const (
	vendorST = 0x0483

	pidV1          = 0x3744
	pidV2          = 0x3748
	pidV21         = 0x374B
	pidV21NoMsd    = 0x3752
	pidV3UsbLoader = 0x374D
	pidV3E         = 0x374E
	pidV3S         = 0x374F
	pidV32Vcp      = 0x3753
)

var supportedPids = []gousb.ID{
	pidV1, pidV2, pidV21, pidV21NoMsd,
	pidV3UsbLoader, pidV3E, pidV3S, pidV32Vcp,
}

// Top level commands.
const (
	cmdGetVersion     = 0xF1
	cmdDebug          = 0xF2
	cmdDfu            = 0xF3
	cmdGetCurrentMode = 0xF5
)

// Debug sub-commands (api-v2 unless noted).
const (
	debugForceDebug      = 0x02
	debugReadMem32       = 0x07
	debugWriteMem32      = 0x08
	debugRunCore         = 0x09
	debugEnterMode       = 0x30 // api-v2 enter
	debugEnterSwdNoReset = 0xA3
	debugResetSys        = 0x32
	debugGetLastRWStatus = 0x3B
	debugStartTraceRx    = 0x40
	debugStopTraceRx     = 0x41
	debugGetTraceCount   = 0x42
	debugGetVersionEx    = 0xFB // api-v3
)

const (
	dfuExit = 0x07

	modeDfu = 0x00

	statusDebugOK = 0x80

	cmdSize = 16

	// traceBufferSize is the capture buffer the probe firmware
	// allocates for SWO bytes.
	traceBufferSize = 4096
)

// DBGMCU_IDCODE holds the device identification code on ST targets.
const regDbgMcuIDCode = 0xE0042000

type version struct {
	major int
	jtag  int
	swim  int
}

// hasTrace reports whether the probe firmware implements the SWO
// capture commands: V2 from J13, all V3.
func (v version) hasTrace() bool {
	switch v.major {
	case 2:
		return v.jtag >= 13
	case 3:
		return true
	default:
		return false
	}
}

func (v version) String() string {
	s := fmt.Sprintf("V%d", v.major)
	if v.jtag > 0 {
		s += fmt.Sprintf("J%d", v.jtag)
	}
	if v.swim > 0 {
		s += fmt.Sprintf("S%d", v.swim)
	}
	return s
}

// Device is an open ST-LINK probe.
type Device struct {
	usbCtx *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface

	rxEp    *gousb.InEndpoint
	txEp    *gousb.OutEndpoint
	traceEp *gousb.InEndpoint

	version version
	serial  string
	chipID  uint32

	traceEnabled bool

	log logrus.FieldLogger
}

var _ probe.Probe = (*Device)(nil)

// Open finds an ST-LINK probe, optionally by serial number, claims
// its debug interface and enters SWD debug mode. The serial may be
// given either as the descriptor text or as the hex form some older
// probes report.
func Open(serial string, log logrus.FieldLogger) (*Device, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	usbCtx := gousb.NewContext()

	devs, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != vendorST {
			return false
		}
		for _, pid := range supportedPids {
			if desc.Product == pid {
				return true
			}
		}
		return false
	})
	if err != nil && len(devs) == 0 {
		usbCtx.Close()
		return nil, fmt.Errorf("stlink: usb enumeration: %w", err)
	}

	dev, err := selectDevice(devs, serial)
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		usbCtx.Close()
		return nil, err
	}
	for _, d := range devs {
		if d != dev {
			d.Close()
		}
	}

	h := &Device{usbCtx: usbCtx, dev: dev, log: log}
	h.serial, _ = dev.SerialNumber()

	if err := h.claim(); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.readVersion(); err != nil {
		h.Close()
		return nil, err
	}
	log.Debugf("Got ST-Link: %s [%s]", h.version, h.serial)

	if err := h.enterDebugMode(); err != nil {
		h.Close()
		return nil, err
	}

	// Device identification; zero means nothing answered on the
	// debug link.
	if id, err := h.ReadMem32(regDbgMcuIDCode); err == nil {
		h.chipID = id & 0x0FFF
	}

	return h, nil
}

// selectDevice picks the probe matching the requested serial, or the
// only probe present when no serial was given.
func selectDevice(devs []*gousb.Device, serial string) (*gousb.Device, error) {
	if len(devs) == 0 {
		return nil, probe.ErrNotFound
	}
	if serial == "" {
		if len(devs) > 1 {
			return nil, fmt.Errorf("stlink: %d probes found, select one with a serial number", len(devs))
		}
		return devs[0], nil
	}

	// Older firmware reports the raw binary serial in the descriptor;
	// accept both the text form and its hex-decoded equivalent.
	binary, _ := hex.DecodeString(serial)
	for _, d := range devs {
		sn, err := d.SerialNumber()
		if err != nil {
			continue
		}
		if sn == serial || sn == string(binary) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w with serial %q", probe.ErrNotFound, serial)
}

// claim opens the debug interface and resolves the endpoint layout,
// which differs between ST-LINK hardware generations.
func (h *Device) claim() error {
	var err error
	if h.cfg, err = h.dev.Config(1); err != nil {
		return fmt.Errorf("stlink: claim configuration 1: %w", err)
	}
	if h.intf, err = h.cfg.Interface(0, 0); err != nil {
		return fmt.Errorf("stlink: claim interface 0: %w", err)
	}

	txNum, traceNum := 2, 3 // ST-LINK/V2
	switch h.dev.Desc.Product {
	case pidV21, pidV21NoMsd, pidV3UsbLoader, pidV3E, pidV3S, pidV32Vcp:
		txNum, traceNum = 1, 2
	}

	if h.rxEp, err = h.intf.InEndpoint(1); err != nil {
		return fmt.Errorf("stlink: rx endpoint: %w", err)
	}
	if h.txEp, err = h.intf.OutEndpoint(txNum); err != nil {
		return fmt.Errorf("stlink: tx endpoint: %w", err)
	}
	if h.traceEp, err = h.intf.InEndpoint(traceNum); err != nil {
		return fmt.Errorf("stlink: trace endpoint: %w", err)
	}
	return nil
}

func (h *Device) readVersion() error {
	data, err := h.command(6, cmdGetVersion)
	if err != nil {
		return fmt.Errorf("stlink: get version: %w", err)
	}

	v := uint16(data[0])<<8 | uint16(data[1])
	h.version.major = int(v >> 12 & 0x0F)
	h.version.jtag = int(v >> 6 & 0x3F)
	h.version.swim = int(v & 0x3F)

	// STLINK-V3 reports zero sub-versions here and requires the
	// extended query.
	if h.version.major == 3 && h.version.jtag == 0 && h.version.swim == 0 {
		ext, err := h.command(12, cmdDebug, debugGetVersionEx)
		if err != nil {
			return fmt.Errorf("stlink: get version ex: %w", err)
		}
		h.version.major = int(ext[0])
		h.version.swim = int(ext[1])
		h.version.jtag = int(ext[2])
	}
	return nil
}

// enterDebugMode leaves DFU if needed and enters SWD debug (api-v2).
func (h *Device) enterDebugMode() error {
	mode, err := h.command(2, cmdGetCurrentMode)
	if err != nil {
		return fmt.Errorf("stlink: get current mode: %w", err)
	}
	if mode[0] == modeDfu {
		if _, err := h.command(0, cmdDfu, dfuExit); err != nil {
			return fmt.Errorf("stlink: exit dfu: %w", err)
		}
	}
	if err := h.commandStatus(cmdDebug, debugEnterMode, debugEnterSwdNoReset); err != nil {
		return fmt.Errorf("stlink: enter swd mode: %w", err)
	}
	return nil
}

// HasTrace reports whether the probe firmware supports SWO capture.
func (h *Device) HasTrace() bool {
	return h.version.hasTrace()
}

// ChipID returns the target device identification code, or zero when
// no device is attached.
func (h *Device) ChipID() uint32 {
	return h.chipID
}

// Serial returns the probe serial number.
func (h *Device) Serial() string {
	return h.serial
}

// Close releases the USB interface and the probe. Trace capture is
// stopped first if it is still running.
func (h *Device) Close() error {
	if h.traceEnabled {
		if err := h.DisableTrace(); err != nil {
			h.log.Debugf("disable trace on close: %v", err)
		}
	}
	if h.intf != nil {
		h.intf.Close()
	}
	if h.cfg != nil {
		h.cfg.Close()
	}
	if h.dev != nil {
		h.dev.Close()
	}
	if h.usbCtx != nil {
		return h.usbCtx.Close()
	}
	return nil
}
