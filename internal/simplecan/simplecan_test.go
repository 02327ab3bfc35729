package simplecan

import "testing"

func TestPackKnownVector(t *testing.T) {
	// S6: producer_id=7, consumer_id=0, control_word=0x0F.
	id := Identifier{ProducerID: 7, ConsumerID: 0, ControlWord: 0x0F}
	if got, want := id.Pack(), uint32(0x0700000F); got != want {
		t.Fatalf("Pack() = %#08x, want %#08x", got, want)
	}
}

func TestUnpackInverseOfPack(t *testing.T) {
	for p := 0; p < 128; p += 7 {
		for c := 0; c < 128; c += 11 {
			for w := 0; w < 256; w += 17 {
				id := Identifier{ProducerID: uint8(p), ConsumerID: uint8(c), ControlWord: uint8(w)}
				got := Unpack(id.Pack())
				if got != id {
					t.Fatalf("Unpack(Pack(%+v)) = %+v", id, got)
				}
			}
		}
	}
}

func TestPackMasksOutOfRangeBits(t *testing.T) {
	id := Identifier{ProducerID: 0xFF, ConsumerID: 0xFF, ControlWord: 0xFF}
	got := Unpack(id.Pack())
	if got.ProducerID != 0x7F || got.ConsumerID != 0x7F || got.ControlWord != 0xFF {
		t.Fatalf("expected masking to 7/7/8 bits, got %+v", got)
	}
}

func TestPackUnpackRoundTripOnArbitrationID(t *testing.T) {
	id := Identifier{ProducerID: 42, ConsumerID: 99, ControlWord: 0x81}
	aid := id.Pack()
	if got := Unpack(aid).Pack(); got != aid&ValidBits {
		t.Fatalf("Pack(Unpack(x)) = %#08x, want %#08x", got, aid&ValidBits)
	}
}
