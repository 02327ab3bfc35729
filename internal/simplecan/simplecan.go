// Package simplecan implements the SimpleCAN 3.0 bit-packing scheme: the
// same producer/consumer/control-word fields the stream-side UIMessage
// protocol carries explicitly are packed into a CAN extended arbitration ID.
package simplecan

// ValidBits masks the 29-bit arbitration ID down to the bits this scheme
// actually defines (the reserved bit 18 and bits 13..8 are always zero).
const ValidBits uint32 = 0x1FFBC0FF

// Identifier is the decomposition of a 29-bit CAN extended arbitration ID
// into its three logical fields. ProducerID and ConsumerID are masked to 7
// bits; ControlWord to 8 bits.
//
//	bits 28..24 : producer_id[4:0]
//	bits 23..19 : consumer_id[4:0]
//	bit  18     : 0 (reserved)
//	bits 17..16 : producer_id[6:5]
//	bits 15..14 : consumer_id[6:5]
//	bits 13..8  : 0 (reserved)
//	bits  7..0  : control_word
type Identifier struct {
	ProducerID  uint8
	ConsumerID  uint8
	ControlWord uint8
}

// Pack produces the 29-bit arbitration ID. Bits beyond what each field can
// hold are masked away silently.
func (id Identifier) Pack() uint32 {
	producer := uint32(id.ProducerID) & 0x7F
	consumer := uint32(id.ConsumerID) & 0x7F
	control := uint32(id.ControlWord) & 0xFF

	producerLo := producer & 0x1F
	producerHi := (producer >> 5) & 0x03
	consumerLo := consumer & 0x1F
	consumerHi := (consumer >> 5) & 0x03

	return (producerLo << 24) | (consumerLo << 19) |
		(producerHi << 16) | (consumerHi << 14) |
		control
}

// Unpack decomposes a 29-bit arbitration ID into its three fields. It is the
// pure inverse of Pack: Pack(Unpack(x)) == x & ValidBits.
func Unpack(arbitrationID uint32) Identifier {
	producerLo := (arbitrationID >> 24) & 0x1F
	producerHi := (arbitrationID >> 16) & 0x03
	consumerLo := (arbitrationID >> 19) & 0x1F
	consumerHi := (arbitrationID >> 14) & 0x03

	return Identifier{
		ProducerID:  uint8((producerHi << 5) | producerLo),
		ConsumerID:  uint8((consumerHi << 5) | consumerLo),
		ControlWord: uint8(arbitrationID & 0xFF),
	}
}
