package stlink

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EnableTrace starts SWO capture in the probe at the given baud rate.
func (h *Device) EnableTrace(hz uint32) error {
	if !h.HasTrace() {
		return fmt.Errorf("enable trace: firmware %s does not support trace", h.version)
	}

	cmd := make([]byte, 8)
	cmd[0] = cmdDebug
	cmd[1] = debugStartTraceRx
	binary.LittleEndian.PutUint16(cmd[2:], traceBufferSize)
	binary.LittleEndian.PutUint32(cmd[4:], hz)

	if err := h.commandStatus(cmd...); err != nil {
		return fmt.Errorf("enable trace: %w", err)
	}
	h.traceEnabled = true
	h.log.Debugf("enabled trace capture at %d Hz", hz)
	return nil
}

// DisableTrace stops SWO capture in the probe.
func (h *Device) DisableTrace() error {
	if err := h.commandStatus(cmdDebug, debugStopTraceRx); err != nil {
		return fmt.Errorf("disable trace: %w", err)
	}
	h.traceEnabled = false
	return nil
}

// ReadTrace drains pending SWO bytes into buf, returning how many
// were copied. Zero means the probe's capture buffer is empty.
func (h *Device) ReadTrace(buf []byte) (int, error) {
	data, err := h.command(2, cmdDebug, debugGetTraceCount)
	if err != nil {
		return 0, fmt.Errorf("read trace count: %w", err)
	}

	pending := int(binary.LittleEndian.Uint16(data))
	if pending == 0 {
		return 0, nil
	}
	if pending > len(buf) {
		pending = len(buf)
	}

	if _, err := io.ReadFull(h.traceEp, buf[:pending]); err != nil {
		return 0, fmt.Errorf("read trace data: %w", err)
	}
	return pending, nil
}
