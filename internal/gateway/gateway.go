// Package gateway simulates the responder state machine of a UIROBOT
// gateway device (UIM2523/2513/2522): it answers MODEL, SERIAL_NUMBER and
// PROTOCOL_PARAMETER queries the way real hardware would, so host tooling
// can be exercised without a gateway attached.
package gateway

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/uirobot/uimbridge/internal/logging"
	"github.com/uirobot/uimbridge/internal/uimsg"
)

// ErrUnsupportedOperation is returned only at the explicit-request API
// boundary (Respond) for a function code the simulator does not implement.
// The transport-level dispatcher (HandleMessage) never returns an error:
// every data-path fault is recovered locally per the gateway's own policy.
var ErrUnsupportedOperation = errors.New("gateway: unsupported operation")

// ReplySink is the single capability the responder needs from its caller:
// write a fully-framed response. Narrower than the duck-typed
// send-or-write-and-flush transport of the original implementation.
type ReplySink interface {
	Write(frame []byte) error
}

// State holds the mutable configuration of a simulated gateway device.
// CANBitrate and RS232Baud may be updated by PROTOCOL_PARAMETER write
// commands and SerialNumber by SERIAL_NUMBER writes; the other fields are
// fixed for the device's lifetime.
type State struct {
	NodeID         uint8
	GroupID        uint8
	CANBitrate     uint8
	RS232Baud      uint8
	SerialNumber   uint32
	ManufacturerID uint16
	VendorID       uint16
}

// Gateway is a simulated UIM2523-class device. All exported methods are
// safe for concurrent use.
type Gateway struct {
	model string

	mu    sync.Mutex
	state State
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithGroupID overrides the default group ID (which otherwise equals the
// node ID).
func WithGroupID(groupID uint8) Option {
	return func(g *Gateway) { g.state.GroupID = groupID }
}

// WithModel selects the model byte pair reported by GET MODEL. Defaults to
// UIM2523.
func WithModel(model string) Option {
	return func(g *Gateway) { g.model = model }
}

// WithSerialNumber overrides the default serial/manufacturer/vendor triple.
func WithSerialNumber(serial uint32, manufacturerID, vendorID uint16) Option {
	return func(g *Gateway) {
		g.state.SerialNumber = serial
		g.state.ManufacturerID = manufacturerID
		g.state.VendorID = vendorID
	}
}

// New creates a simulated gateway addressed as nodeID, defaulting its group
// ID to nodeID as well.
func New(nodeID uint8, opts ...Option) *Gateway {
	g := &Gateway{
		model: "UIM2523",
		state: State{
			NodeID:         nodeID,
			GroupID:        nodeID,
			CANBitrate:     defaultCANBitrate,
			RS232Baud:      defaultRS232Baud,
			SerialNumber:   defaultSerialNumber,
			ManufacturerID: defaultManufacturerID,
			VendorID:       defaultVendorID,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns a snapshot of the gateway's current configuration.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// addressedToUs reports whether deviceID is one this gateway answers to:
// the global group, its own node ID, or its own group ID.
func (g *Gateway) addressedToUs(deviceID uint8) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return deviceID == ReservedGlobalGroup || deviceID == g.state.NodeID || deviceID == g.state.GroupID
}

// HandleMessage dispatches msg per the responder's command table. It never
// returns an error to the caller: every fault (unknown function code,
// malformed parameter write, unaddressed frame) is recovered locally by
// simply not writing a reply. sink is used only when a reply is due, and
// only for the connection msg arrived on.
func (g *Gateway) HandleMessage(sink ReplySink, msg uimsg.Message) {
	if !g.addressedToUs(msg.DeviceID) {
		return
	}

	switch msg.FunctionCode {
	case uimsg.FuncModel:
		g.handleModel(sink, msg)
	case uimsg.FuncSerialNumber:
		g.handleSerialNumber(sink, msg)
	case uimsg.FuncProtocolParameter:
		g.handleProtocolParameter(sink, msg)
	case uimsg.FuncSystemOperation:
		g.handleSystemOperation(msg)
	case uimsg.FuncWakeNode, uimsg.FuncErrorReport:
		// Accepted, no reply.
	default:
		// Unimplemented function code: ignore.
	}
}

func (g *Gateway) reply(sink ReplySink, functionCode uint8, data []byte) {
	g.mu.Lock()
	nodeID := g.state.NodeID
	g.mu.Unlock()

	msg := uimsg.Message{
		DeviceID:     nodeID,
		FunctionCode: functionCode,
		NeedAck:      false,
		NeedChecksum: true,
		Data:         data,
	}
	frame := msg.Encode()
	if err := sink.Write(frame[:]); err != nil {
		logging.L().Warn("gateway_reply_write_failed", "error", err, "function_code", functionCode)
	}
}

func (g *Gateway) handleModel(sink ReplySink, msg uimsg.Message) {
	if !msg.NeedAck {
		return
	}
	pair := gatewayModelBytes[g.model]
	data := []byte{
		pair[0], pair[1],
		0x00, 0x00,
		defaultFirmwareBytes[0], defaultFirmwareBytes[1],
		0x00, 0x00,
	}
	g.reply(sink, uimsg.FuncModel, data)
}

func (g *Gateway) handleSerialNumber(sink ReplySink, msg uimsg.Message) {
	if !msg.NeedAck && len(msg.Data) != 4 {
		// Not a read, and not a well-formed write: ignore.
		return
	}
	if !msg.NeedAck {
		g.mu.Lock()
		g.state.SerialNumber = binary.LittleEndian.Uint32(msg.Data)
		g.mu.Unlock()
	}

	g.mu.Lock()
	serial, manufacturer, vendor := g.state.SerialNumber, g.state.ManufacturerID, g.state.VendorID
	g.mu.Unlock()

	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], serial)
	binary.LittleEndian.PutUint16(data[4:6], manufacturer)
	binary.LittleEndian.PutUint16(data[6:8], vendor)
	g.reply(sink, uimsg.FuncSerialNumber, data)
}

func (g *Gateway) handleProtocolParameter(sink ReplySink, msg uimsg.Message) {
	if len(msg.Data) < 1 {
		return
	}
	param := msg.Data[0]
	value := msg.Data[1:]

	switch param {
	case ParamCANBitrate:
		switch len(value) {
		case 0: // read
		case 1: // write
			g.mu.Lock()
			g.state.CANBitrate = value[0]
			g.mu.Unlock()
		default:
			return
		}
		g.mu.Lock()
		current := g.state.CANBitrate
		g.mu.Unlock()
		g.reply(sink, uimsg.FuncProtocolParameter, []byte{ParamCANBitrate, current})

	case ParamRS232Baud:
		switch len(value) {
		case 0: // read
		case 1: // write; accepted per §6 enumeration, implementation-defined
			g.mu.Lock()
			g.state.RS232Baud = value[0]
			g.mu.Unlock()
		default:
			return
		}
		g.mu.Lock()
		current := g.state.RS232Baud
		g.mu.Unlock()
		g.reply(sink, uimsg.FuncProtocolParameter, []byte{ParamRS232Baud, current})

	case ParamNodeID:
		// Writes are deliberately not honored: changing the node ID would
		// change the gateway's own addressing mid-conversation. Reads are
		// still answered per the "at minimum" requirement.
		if len(value) != 0 {
			return
		}
		g.mu.Lock()
		current := g.state.NodeID
		g.mu.Unlock()
		g.reply(sink, uimsg.FuncProtocolParameter, []byte{ParamNodeID, current})

	default:
		// Unknown parameter index: ignore.
	}
}

func (g *Gateway) handleSystemOperation(msg uimsg.Message) {
	if msg.DeviceID == debugModeDeviceID && len(msg.Data) == 0 {
		logging.L().Debug("system_operation_debug_mode")
		return
	}
	var sub uint8
	if len(msg.Data) > 0 {
		sub = msg.Data[0]
	}
	logging.L().Info("system_operation", "subcommand", sub, "node_id", g.State().NodeID)
}

// Respond builds a reply frame for the subset of function codes the
// simulator supports "on demand" outside of the normal addressed-message
// dispatch, for callers (e.g. test harnesses) that want a direct answer
// without going through HandleMessage's addressing/need_ack gating. It
// fails with ErrUnsupportedOperation for anything else; this is the only
// place that error surfaces, per §4.4.
func (g *Gateway) Respond(functionCode uint8) (uimsg.Message, error) {
	g.mu.Lock()
	state := g.state
	g.mu.Unlock()

	switch functionCode {
	case uimsg.FuncModel:
		pair := gatewayModelBytes[g.model]
		return uimsg.Message{
			DeviceID: state.NodeID, FunctionCode: uimsg.FuncModel,
			NeedChecksum: true,
			Data: []byte{
				pair[0], pair[1], 0x00, 0x00,
				defaultFirmwareBytes[0], defaultFirmwareBytes[1], 0x00, 0x00,
			},
		}, nil
	case uimsg.FuncSerialNumber:
		data := make([]byte, 8)
		binary.LittleEndian.PutUint32(data[0:4], state.SerialNumber)
		binary.LittleEndian.PutUint16(data[4:6], state.ManufacturerID)
		binary.LittleEndian.PutUint16(data[6:8], state.VendorID)
		return uimsg.Message{
			DeviceID: state.NodeID, FunctionCode: uimsg.FuncSerialNumber,
			NeedChecksum: true, Data: data,
		}, nil
	default:
		return uimsg.Message{}, ErrUnsupportedOperation
	}
}
