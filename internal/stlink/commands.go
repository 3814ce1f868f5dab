package stlink

import (
	"encoding/binary"
	"fmt"
	"io"
)

// command sends one fixed-size command buffer and reads rxLen reply
// bytes from the command endpoint.
func (h *Device) command(rxLen int, cmd ...byte) ([]byte, error) {
	buf := make([]byte, cmdSize)
	copy(buf, cmd)

	if _, err := h.txEp.Write(buf); err != nil {
		return nil, fmt.Errorf("command 0x%02x: %w", cmd[0], err)
	}
	if rxLen == 0 {
		return nil, nil
	}

	data := make([]byte, rxLen)
	if _, err := io.ReadFull(h.rxEp, data); err != nil {
		return nil, fmt.Errorf("command 0x%02x reply: %w", cmd[0], err)
	}
	return data, nil
}

// commandStatus sends a debug command whose two-byte reply carries a
// status code.
func (h *Device) commandStatus(cmd ...byte) error {
	data, err := h.command(2, cmd...)
	if err != nil {
		return err
	}
	if data[0] != statusDebugOK {
		return fmt.Errorf("command 0x%02x: probe status 0x%02x", cmd[1], data[0])
	}
	return nil
}

// ReadMem32 reads one aligned 32-bit word from target memory.
func (h *Device) ReadMem32(addr uint32) (uint32, error) {
	cmd := make([]byte, 8)
	cmd[0] = cmdDebug
	cmd[1] = debugReadMem32
	binary.LittleEndian.PutUint32(cmd[2:], addr)
	binary.LittleEndian.PutUint16(cmd[6:], 4)

	data, err := h.command(4, cmd...)
	if err != nil {
		return 0, fmt.Errorf("read mem32 0x%08x: %w", addr, err)
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteMem32 writes one aligned 32-bit word to target memory.
func (h *Device) WriteMem32(addr uint32, value uint32) error {
	cmd := make([]byte, 8)
	cmd[0] = cmdDebug
	cmd[1] = debugWriteMem32
	binary.LittleEndian.PutUint32(cmd[2:], addr)
	binary.LittleEndian.PutUint16(cmd[6:], 4)

	if _, err := h.command(0, cmd...); err != nil {
		return fmt.Errorf("write mem32 0x%08x: %w", addr, err)
	}

	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], value)
	if _, err := h.txEp.Write(word[:]); err != nil {
		return fmt.Errorf("write mem32 0x%08x data: %w", addr, err)
	}

	if err := h.commandStatus(cmdDebug, debugGetLastRWStatus); err != nil {
		return fmt.Errorf("write mem32 0x%08x: %w", addr, err)
	}
	return nil
}

// Halt stops the core and enters debug state.
func (h *Device) Halt() error {
	if err := h.commandStatus(cmdDebug, debugForceDebug); err != nil {
		return fmt.Errorf("halt: %w", err)
	}
	return nil
}

// Run resumes core execution.
func (h *Device) Run() error {
	if err := h.commandStatus(cmdDebug, debugRunCore); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// Reset performs a system reset of the target.
func (h *Device) Reset() error {
	if err := h.commandStatus(cmdDebug, debugResetSys); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
