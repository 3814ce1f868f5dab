// Package coresight programs the target's ITM, DWT and TPIU trace
// peripherals over a debug probe so the target emits an SWO stream.
package coresight

// Instrumentation Trace Macrocell (ITM) registers.
const (
	ITMTraceEnable    uint32 = 0xE0000E00 // ITM_TER
	ITMTracePrivilege uint32 = 0xE0000E40 // ITM_TPR
	ITMTraceControl   uint32 = 0xE0000E80 // ITM_TCR
	ITMCycleCount     uint32 = 0xE0000E90 // ITM_TCC
	ITMLockAccess     uint32 = 0xE0000FB0 // ITM_LAR
)

// ITM field values.
const (
	ITMTraceEnablePortsAll    uint32 = 0xFFFFFFFF
	ITMTracePrivilegePortsAll uint32 = 0x0F
	ITMTraceControlBusID1     uint32 = 0x01 << 16
	ITMTraceControlSWOEna     uint32 = 1 << 4
	ITMTraceControlDWTEna     uint32 = 1 << 3
	ITMTraceControlSyncEna    uint32 = 1 << 2
	ITMTraceControlTSEna      uint32 = 1 << 1
	ITMTraceControlITMEna     uint32 = 1 << 0
	ITMLockAccessKey          uint32 = 0xC5ACCE55
	ITMSyncCount              uint32 = 0x00000400
)

// Data Watchpoint and Trace (DWT) registers.
const (
	DWTControl   uint32 = 0xE0001000 // DWT_CTRL
	DWTFunction0 uint32 = 0xE0001028 // DWT_FUNCTION0
	DWTFunction1 uint32 = 0xE0001038 // DWT_FUNCTION1
	DWTFunction2 uint32 = 0xE0001048 // DWT_FUNCTION2
	DWTFunction3 uint32 = 0xE0001058 // DWT_FUNCTION3
)

// DWT control fields. NumComp and the post-scaler fields are
// multi-bit; the constants give the weight of the field's LSB.
const (
	DWTControlNumComp    uint32 = 1 << 28
	DWTControlCycTap     uint32 = 1 << 9
	DWTControlPostInit   uint32 = 1 << 5
	DWTControlPostPreset uint32 = 1 << 1
	DWTControlCycCntEna  uint32 = 1 << 0
)

// Trace Port Interface Unit (TPIU) registers.
const (
	TPIUCurrentPortSize uint32 = 0xE0040004 // TPIU_CSPSR
	TPIUAsyncPrescaler  uint32 = 0xE0040010 // TPIU_ACPR
	TPIUPinProtocol     uint32 = 0xE00400F0 // TPIU_SPPR
	TPIUFormatterFlush  uint32 = 0xE0040304 // TPIU_FFCR
)

// TPIU field values.
const (
	TPIUPortSize1            uint32 = 0x01
	TPIUPinProtocolSWOManch  uint32 = 0x01
	TPIUPinProtocolSWONRZ    uint32 = 0x02
	TPIUFormatterFlushTrigIn uint32 = 0x01 << 8
)

// Core debug registers (DCB).
const (
	DebugHaltCtrlStat uint32 = 0xE000EDF0 // DHCSR
	DebugExcMonCtrl   uint32 = 0xE000EDFC // DEMCR
)

// DCB field values.
const (
	DebugKey      uint32 = 0xA05F0000
	DebugEnable   uint32 = 1 << 0
	DebugHalt     uint32 = 1 << 1
	TraceCollectE uint32 = 1 << 24 // DEMCR.TRCENA
)

// Flash Patch and vendor debug-mode registers.
const (
	FlashPatchControl uint32 = 0xE0002000 // FP_CTRL
	DebugMCUConfig    uint32 = 0xE0042004 // DBGMCU_CR
)

const (
	FlashPatchControlKey    uint32 = 1 << 1
	DebugMCUConfigSleep     uint32 = 1 << 0
	DebugMCUConfigStop      uint32 = 1 << 1
	DebugMCUConfigStandby   uint32 = 1 << 2
	DebugMCUConfigTraceIOEn uint32 = 1 << 5
	DebugMCUConfigModeAsync uint32 = 0x00 << 6
)

// RegisterWrite is one entry in the ordered programming sequence. The
// sequence order is a correctness requirement: later writes (enabling
// the ITM) only take effect after earlier ones (unlocking, clearing
// comparators), and a reordered sequence silently produces no trace
// output on hardware.
type RegisterWrite struct {
	Addr    uint32
	Value   uint32
	Purpose string
}
