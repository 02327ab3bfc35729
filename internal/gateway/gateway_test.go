package gateway

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/uirobot/uimbridge/internal/uimsg"
)

// recordingSink captures every frame written to it, in order.
type recordingSink struct {
	frames [][]byte
}

func (s *recordingSink) Write(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.frames = append(s.frames, cp)
	return nil
}

// TestGetModelScenario reproduces S1: GET MODEL addressed to node 2 on a
// UIM2523 gateway.
func TestGetModelScenario(t *testing.T) {
	g := New(2)
	sink := &recordingSink{}

	req := uimsg.Message{DeviceID: 2, FunctionCode: uimsg.FuncModel, NeedAck: true, NeedChecksum: true}
	g.HandleMessage(sink, req)

	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sink.frames))
	}
	want := []byte{
		0xAA, 0x02, 0x0B, 0x08,
		0x19, 0x17, 0x00, 0x00, 0x69, 0x7A, 0x00, 0x00,
		0x00,
		0x9B, 0x60,
		0xCC,
	}
	if !bytes.Equal(sink.frames[0], want) {
		t.Fatalf("reply = % X, want % X", sink.frames[0], want)
	}
}

func TestGetModelIgnoredWithoutNeedAck(t *testing.T) {
	g := New(2)
	sink := &recordingSink{}
	g.HandleMessage(sink, uimsg.Message{DeviceID: 2, FunctionCode: uimsg.FuncModel, NeedAck: false})
	if len(sink.frames) != 0 {
		t.Fatalf("expected no reply when need_ack is unset, got %d", len(sink.frames))
	}
}

func TestSerialNumberReadReturnsDefaults(t *testing.T) {
	g := New(3)
	sink := &recordingSink{}
	g.HandleMessage(sink, uimsg.Message{DeviceID: 3, FunctionCode: uimsg.FuncSerialNumber, NeedAck: true})

	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sink.frames))
	}
	resp, err := uimsg.Decode(sink.frames[0])
	if err != nil {
		t.Fatalf("Decode reply: %v", err)
	}
	if got := binary.LittleEndian.Uint32(resp.Data[0:4]); got != defaultSerialNumber {
		t.Fatalf("serial number = %d, want %d", got, defaultSerialNumber)
	}
}

// TestSerialNumberWriteEchoesStoredValue implements the Open Question
// resolution: SET SERIAL_NUMBER echoes the stored value after the write,
// not a blind echo of the request payload.
func TestSerialNumberWriteEchoesStoredValue(t *testing.T) {
	g := New(3)
	sink := &recordingSink{}

	newSerial := make([]byte, 4)
	binary.LittleEndian.PutUint32(newSerial, 999)
	g.HandleMessage(sink, uimsg.Message{DeviceID: 3, FunctionCode: uimsg.FuncSerialNumber, NeedAck: false, Data: newSerial})

	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sink.frames))
	}
	resp, err := uimsg.Decode(sink.frames[0])
	if err != nil {
		t.Fatalf("Decode reply: %v", err)
	}
	if got := binary.LittleEndian.Uint32(resp.Data[0:4]); got != 999 {
		t.Fatalf("serial number after write = %d, want 999", got)
	}
	if got := g.State().SerialNumber; got != 999 {
		t.Fatalf("stored serial number = %d, want 999", got)
	}
}

// TestCANBitrateSetScenario reproduces S4: PROTOCOL_PARAMETER write of
// CAN_BITRATE and a read-back that reflects the new value.
func TestCANBitrateSetScenario(t *testing.T) {
	g := New(2)
	sink := &recordingSink{}

	g.HandleMessage(sink, uimsg.Message{
		DeviceID: 2, FunctionCode: uimsg.FuncProtocolParameter,
		Data: []byte{ParamCANBitrate, 3},
	})
	g.HandleMessage(sink, uimsg.Message{
		DeviceID: 2, FunctionCode: uimsg.FuncProtocolParameter,
		Data: []byte{ParamCANBitrate},
	})

	if len(sink.frames) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(sink.frames))
	}
	for _, frame := range sink.frames {
		resp, err := uimsg.Decode(frame)
		if err != nil {
			t.Fatalf("Decode reply: %v", err)
		}
		if resp.Data[0] != ParamCANBitrate || resp.Data[1] != 3 {
			t.Fatalf("unexpected reply payload %x", resp.Data)
		}
	}
	if got := g.State().CANBitrate; got != 3 {
		t.Fatalf("stored CAN bitrate = %d, want 3", got)
	}
}

func TestNodeIDWriteIsIgnored(t *testing.T) {
	g := New(2)
	sink := &recordingSink{}
	g.HandleMessage(sink, uimsg.Message{
		DeviceID: 2, FunctionCode: uimsg.FuncProtocolParameter,
		Data: []byte{ParamNodeID, 9},
	})
	if len(sink.frames) != 0 {
		t.Fatalf("expected write of node id to be silently dropped, got %d replies", len(sink.frames))
	}
	if got := g.State().NodeID; got != 2 {
		t.Fatalf("node id changed to %d, want unchanged 2", got)
	}
}

// TestUnaddressedMessageIsIgnored reproduces S3: a frame addressed to
// neither the global group nor this gateway's node/group ID draws no reply.
func TestUnaddressedMessageIsIgnored(t *testing.T) {
	g := New(2, WithGroupID(2))
	sink := &recordingSink{}
	g.HandleMessage(sink, uimsg.Message{DeviceID: 5, FunctionCode: uimsg.FuncModel, NeedAck: true})
	if len(sink.frames) != 0 {
		t.Fatalf("expected no reply for unaddressed message, got %d", len(sink.frames))
	}
}

func TestGlobalGroupIsAlwaysAddressed(t *testing.T) {
	g := New(2)
	sink := &recordingSink{}
	g.HandleMessage(sink, uimsg.Message{DeviceID: ReservedGlobalGroup, FunctionCode: uimsg.FuncModel, NeedAck: true})
	if len(sink.frames) != 1 {
		t.Fatalf("expected reply to global group address, got %d", len(sink.frames))
	}
}

// TestDebugModeSystemOperationDoesNotCrash covers the undocumented
// device_id=0xFF, data_length=0 SYSTEM_OPERATION frame observed in the
// field: the gateway must tolerate it silently.
func TestDebugModeSystemOperationDoesNotCrash(t *testing.T) {
	g := New(2)
	sink := &recordingSink{}
	g.HandleMessage(sink, uimsg.Message{DeviceID: debugModeDeviceID, FunctionCode: uimsg.FuncSystemOperation})
	if len(sink.frames) != 0 {
		t.Fatalf("expected no reply for debug mode frame, got %d", len(sink.frames))
	}
}

func TestUnknownFunctionCodeIsIgnored(t *testing.T) {
	g := New(2)
	sink := &recordingSink{}
	g.HandleMessage(sink, uimsg.Message{DeviceID: 2, FunctionCode: 0x42, NeedAck: true})
	if len(sink.frames) != 0 {
		t.Fatalf("expected no reply for unknown function code, got %d", len(sink.frames))
	}
}

func TestRespondReturnsErrUnsupportedOperationForUnknownFunction(t *testing.T) {
	g := New(2)
	if _, err := g.Respond(0x42); err != ErrUnsupportedOperation {
		t.Fatalf("Respond: got %v, want ErrUnsupportedOperation", err)
	}
}

func TestRespondModelMatchesHandleMessage(t *testing.T) {
	g := New(2)
	msg, err := g.Respond(uimsg.FuncModel)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if msg.DeviceID != 2 || !bytes.Equal(msg.Data, []byte{0x19, 0x17, 0x00, 0x00, 0x69, 0x7A, 0x00, 0x00}) {
		t.Fatalf("unexpected Respond result: %+v", msg)
	}
}
