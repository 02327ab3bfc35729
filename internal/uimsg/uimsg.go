// Package uimsg implements the 16-byte UIMessage frame protocol used by
// UIROBOT UIM342 gateways over stream transports (TCP, RS-232, USB).
package uimsg

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/uirobot/uimbridge/internal/crc"
)

// FrameLength is the fixed wire length of a UIMessage frame.
const FrameLength = 16

const (
	somChecksummed   = 0xAA
	somUnknown       = 0xAC
	somUnchecksummed = 0xAD
	eom              = 0xCC

	needAckBit = 0x80
	funcMask   = 0x7F
)

// Known function codes. function_code on the wire is a raw 7-bit integer;
// the decoder does not reject unknown codes, so this is only a convenience
// classifier — see KnownFunction.
const (
	FuncProtocolParameter = 0x01
	FuncWakeNode          = 0x06
	FuncModel             = 0x0B
	FuncSerialNumber      = 0x0C
	FuncErrorReport       = 0x0F
	FuncSystemOperation   = 0x7E
)

// KnownFunction reports whether code is one of the function codes this
// gateway attaches meaning to. Unknown codes are not errors; they travel
// through the system as opaque integers (see design notes on FunctionCode).
func KnownFunction(code uint8) bool {
	switch code {
	case FuncProtocolParameter, FuncWakeNode, FuncModel, FuncSerialNumber,
		FuncErrorReport, FuncSystemOperation:
		return true
	default:
		return false
	}
}

// Decode error classes.
var (
	ErrShortFrame  = errors.New("uimsg: frame shorter than 16 bytes")
	ErrBadSOM      = errors.New("uimsg: invalid start-of-message byte")
	ErrBadEOM      = errors.New("uimsg: invalid end-of-message byte")
	ErrBadLength   = errors.New("uimsg: data length exceeds 8 bytes")
	ErrBadChecksum = errors.New("uimsg: checksum mismatch")
)

// Message is one UIMessage frame. DeviceID 0 addresses the global group;
// IDs <= 4 are reserved for gateway/master devices.
type Message struct {
	DeviceID     uint8
	FunctionCode uint8 // raw 7-bit selector, not validated against KnownFunction
	NeedAck      bool
	NeedChecksum bool
	Data         []byte // 0-8 bytes
	AuxByte      uint8
	Checksum     uint16 // meaningful only when NeedChecksum is set

	// som preserves the exact start-of-message byte a frame was decoded
	// with, so a frame accepted with the ambiguous 0xAC byte round-trips
	// instead of silently turning into 0xAA or 0xAD on re-encode.
	som uint8
}

// Encode serializes msg into a 16-byte frame. It never fails for a Message
// with len(Data) <= 8.
func (m Message) Encode() [FrameLength]byte {
	var out [FrameLength]byte

	som := m.som
	if som == 0 {
		som = somUnchecksummed
		if m.NeedChecksum {
			som = somChecksummed
		}
	}

	n := len(m.Data)
	if n > 8 {
		n = 8
	}

	out[0] = som
	out[1] = m.DeviceID
	out[2] = controlWord(m.NeedAck, m.FunctionCode)
	out[3] = uint8(n)
	copy(out[4:12], m.Data[:n])
	out[12] = m.AuxByte
	out[15] = eom

	checksum := m.Checksum
	if m.NeedChecksum {
		checksum = crc.CRC16(out[1:13])
	}
	binary.LittleEndian.PutUint16(out[13:15], checksum)

	return out
}

// Decode parses a 16-byte UIMessage frame.
func Decode(frame []byte) (Message, error) {
	var m Message
	if len(frame) < FrameLength {
		return m, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(frame))
	}

	som := frame[0]
	if som != somChecksummed && som != somUnknown && som != somUnchecksummed {
		return m, fmt.Errorf("%w: %#02x", ErrBadSOM, som)
	}
	if frame[15] != eom {
		return m, fmt.Errorf("%w: %#02x", ErrBadEOM, frame[15])
	}

	dataLength := frame[3]
	if dataLength > 8 {
		return m, fmt.Errorf("%w: %d", ErrBadLength, dataLength)
	}

	controlWord := frame[2]
	checksum := binary.LittleEndian.Uint16(frame[13:15])

	m = Message{
		DeviceID:     frame[1],
		FunctionCode: controlWord & funcMask,
		NeedAck:      controlWord&needAckBit != 0,
		NeedChecksum: som == somChecksummed || som == somUnknown,
		Data:         append([]byte(nil), frame[4:4+dataLength]...),
		AuxByte:      frame[12],
		Checksum:     checksum,
		som:          som,
	}

	if m.NeedChecksum {
		if crc.CRC16(frame[1:13]) != checksum {
			return m, ErrBadChecksum
		}
	}

	return m, nil
}

func controlWord(needAck bool, functionCode uint8) uint8 {
	cw := functionCode & funcMask
	if needAck {
		cw |= needAckBit
	}
	return cw
}
