package uimsg

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		{DeviceID: 2, FunctionCode: FuncModel, NeedAck: true, NeedChecksum: true, Data: nil},
		{DeviceID: 0, FunctionCode: FuncWakeNode, NeedAck: false, NeedChecksum: true, Data: []byte{0x0A, 0x00}},
		{DeviceID: 4, FunctionCode: FuncProtocolParameter, NeedAck: false, NeedChecksum: true, Data: []byte{5, 3}},
		{DeviceID: 9, FunctionCode: 0x7E, NeedAck: true, NeedChecksum: false, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, want := range cases {
		frame := want.Encode()
		got, err := Decode(frame[:])
		if err != nil {
			t.Fatalf("Decode(Encode(%+v)) error: %v", want, err)
		}
		if got.DeviceID != want.DeviceID || got.FunctionCode != want.FunctionCode ||
			got.NeedAck != want.NeedAck || got.NeedChecksum != want.NeedChecksum {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
		if !bytes.Equal(got.Data, want.Data) && !(len(got.Data) == 0 && len(want.Data) == 0) {
			t.Fatalf("round trip data mismatch: got %x, want %x", got.Data, want.Data)
		}
	}
}

func TestDecodeShortFrame(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestDecodeBadSOM(t *testing.T) {
	frame := make([]byte, FrameLength)
	frame[0] = 0x00
	frame[15] = eom
	_, err := Decode(frame)
	if !errors.Is(err, ErrBadSOM) {
		t.Fatalf("expected ErrBadSOM, got %v", err)
	}
}

func TestDecodeBadEOM(t *testing.T) {
	msg := Message{DeviceID: 1, FunctionCode: FuncModel, NeedChecksum: true}
	frame := msg.Encode()
	frame[15] = 0x00
	_, err := Decode(frame[:])
	if !errors.Is(err, ErrBadEOM) {
		t.Fatalf("expected ErrBadEOM, got %v", err)
	}
}

func TestDecodeBadLength(t *testing.T) {
	frame := make([]byte, FrameLength)
	frame[0] = somUnchecksummed
	frame[3] = 9
	frame[15] = eom
	_, err := Decode(frame)
	if !errors.Is(err, ErrBadLength) {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
}

// TestGetModelScenario reproduces S1 from the testable-properties scenarios:
// GET MODEL addressed to a UIM2523 acting as node 2.
func TestGetModelScenario(t *testing.T) {
	frame := []byte{
		0xAA, 0x02, 0x8B, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00,
		0x11, 0x23,
		0xCC,
	}
	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.DeviceID != 2 || msg.FunctionCode != FuncModel || !msg.NeedAck {
		t.Fatalf("unexpected decode: %+v", msg)
	}

	resp := Message{
		DeviceID:     2,
		FunctionCode: FuncModel,
		NeedAck:      false,
		NeedChecksum: true,
		Data:         []byte{0x19, 0x17, 0x00, 0x00, 0x69, 0x7A, 0x00, 0x00},
	}
	want := []byte{
		0xAA, 0x02, 0x0B, 0x08,
		0x19, 0x17, 0x00, 0x00, 0x69, 0x7A, 0x00, 0x00,
		0x00,
		0x9B, 0x60,
		0xCC,
	}
	got := resp.Encode()
	if !bytes.Equal(got[:], want) {
		t.Fatalf("Encode() = % X, want % X", got, want)
	}
}

// TestBadChecksumScenario reproduces S5: flipping one payload byte without
// fixing the CRC must yield ErrBadChecksum.
func TestBadChecksumScenario(t *testing.T) {
	msg := Message{DeviceID: 2, FunctionCode: FuncModel, NeedAck: true, NeedChecksum: true}
	frame := msg.Encode()
	frame[4] ^= 0xFF // flip a data byte, leaving CRC stale
	_, err := Decode(frame[:])
	if !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("expected ErrBadChecksum, got %v", err)
	}
}

func TestAmbiguousSOMDecodesAsChecksummedAndRoundTrips(t *testing.T) {
	msg := Message{DeviceID: 1, FunctionCode: FuncModel, NeedChecksum: true}
	frame := msg.Encode()
	frame[0] = somUnknown
	got, err := Decode(frame[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.NeedChecksum {
		t.Fatalf("expected NeedChecksum=true for ambiguous SOM")
	}
	reencoded := got.Encode()
	if reencoded[0] != somUnknown {
		t.Fatalf("expected re-encode to preserve original SOM 0x%X, got 0x%X", somUnknown, reencoded[0])
	}
}
