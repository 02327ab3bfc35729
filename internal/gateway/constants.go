package gateway

// Reserved node IDs (<=4) for special devices like gateways.
const (
	ReservedMaster  uint8 = 4
	ReservedUIM2523 uint8 = 2
	ReservedUIM2513 uint8 = 3
)

// ReservedGlobalGroup is the group ID that every device accepts in addition
// to its own node/group ID.
const ReservedGlobalGroup uint8 = 0

// Protocol parameter indices (function code PROTOCOL_PARAMETER, §6).
const (
	ParamRS232Baud  uint8 = 1
	ParamCANBitrate uint8 = 5
	ParamNodeID     uint8 = 7
)

// System operation subcommands (function code SYSTEM_OPERATION).
const (
	SysOpReboot                 uint8 = 1
	SysOpRestoreFactoryDefaults uint8 = 2
	SysOpSyncTime               uint8 = 4
)

// debugModeDeviceID is the undocumented SYSTEM_OPERATION destination
// observed in the field ("Debug Mode"): device_id=0xFF, data_length=0.
// The responder must not crash when it sees this.
const debugModeDeviceID uint8 = 0xFF

// CAN bitrate enumeration (byte value -> bitrate).
var canBitrateKbps = map[uint8]int{
	0: 1000, 1: 800, 2: 500, 3: 250, 4: 125,
}

// RS-232 baud enumeration (byte value -> baud).
var rs232Baud = map[uint8]int{
	0: 4800, 1: 9600, 2: 19200, 3: 38400, 4: 57600, 5: 115200,
}

// Model byte pairs (model_hi, model_lo) keyed by gateway model name.
var gatewayModelBytes = map[string][2]byte{
	"UIM2513": {0x19, 0x0D},
	"UIM2522": {0x19, 0x16},
	"UIM2523": {0x19, 0x17},
}

// defaultFirmwareBytes are implementation-chosen, matching the sample
// firmware bytes observed in the original source.
var defaultFirmwareBytes = [2]byte{0x69, 0x7A}

const defaultCANBitrate uint8 = 2 // 500 kbps
const defaultRS232Baud uint8 = 5  // 115200 baud

const (
	defaultSerialNumber   uint32 = 1234512345
	defaultManufacturerID uint16 = 0x4141
	defaultVendorID       uint16 = 0x4242
)
