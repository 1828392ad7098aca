package packet

import "testing"

func feed(d *Decoder, bytes []byte) []Status {
	statuses := make([]Status, 0, len(bytes))
	for _, b := range bytes {
		statuses = append(statuses, d.Step(b))
	}
	return statuses
}

func lastStatus(statuses []Status) Status {
	return statuses[len(statuses)-1]
}

func TestDecodeRoundTrip(t *testing.T) {
	p := &Packet{CommandID: 0xB1, Length: 4}
	copy(p.Payload[:], []byte{0x01, 0x02, 0x03, 0x04})
	wire := Encode(p)

	d := NewDecoder(false)
	statuses := feed(d, wire)
	if got := lastStatus(statuses); got != StatusDispatch {
		t.Fatalf("final status = %v, want StatusDispatch", got)
	}
	got := d.Packet()
	if got.CommandID != p.CommandID || got.Length != p.Length {
		t.Errorf("decoded packet = %+v, want CommandID=%x Length=%d", got, p.CommandID, p.Length)
	}
	for i := 0; i < 4; i++ {
		if got.Payload[i] != p.Payload[i] {
			t.Errorf("Payload[%d] = %x, want %x", i, got.Payload[i], p.Payload[i])
		}
	}
	for i := 4; i < MaxPayload; i++ {
		if got.Payload[i] != 0xFF {
			t.Errorf("Payload[%d] = %x, want 0xFF padding", i, got.Payload[i])
		}
	}
}

func TestDecodeZeroLengthPacket(t *testing.T) {
	p := &Packet{CommandID: 0xB4, Length: 0}
	wire := Encode(p)

	d := NewDecoder(false)
	if got := lastStatus(feed(d, wire)); got != StatusDispatch {
		t.Fatalf("final status = %v, want StatusDispatch", got)
	}
}

func TestDecodeFullLengthPacket(t *testing.T) {
	p := &Packet{CommandID: 0xB7, Length: MaxPayload}
	for i := range p.Payload {
		p.Payload[i] = byte(i)
	}
	wire := Encode(p)

	d := NewDecoder(false)
	if got := lastStatus(feed(d, wire)); got != StatusDispatch {
		t.Fatalf("final status = %v, want StatusDispatch", got)
	}
	for i, b := range d.Packet().Payload {
		if b != byte(i) {
			t.Errorf("Payload[%d] = %x, want %x", i, b, byte(i))
		}
	}
}

func TestDecodeCorruptedCRC(t *testing.T) {
	p := &Packet{CommandID: 0xB1, Length: 2}
	copy(p.Payload[:], []byte{0xAA, 0xBB})
	wire := Encode(p)
	wire[len(wire)-1] ^= 0xFF // flip a CRC byte

	d := NewDecoder(false)
	if got := lastStatus(feed(d, wire)); got != StatusCRCError {
		t.Fatalf("final status = %v, want StatusCRCError", got)
	}
}

func TestDecoderRecoversAfterGarbageBeforePreamble(t *testing.T) {
	p := &Packet{CommandID: 0xB0, Length: 0}
	wire := Encode(p)
	garbage := append([]byte{0x00, 0xFF, 0x10, Preamble[0]}, wire...)

	d := NewDecoder(false)
	if got := lastStatus(feed(d, garbage)); got != StatusDispatch {
		t.Fatalf("final status = %v, want StatusDispatch", got)
	}
}

func TestDecoderRecoversAfterPreamblePrefixCollision(t *testing.T) {
	// A partial preamble match followed by bytes that don't continue it
	// must not get the decoder stuck; it should still find the real
	// frame that follows.
	p := &Packet{CommandID: 0xB2, Length: 1}
	p.Payload[0] = 0x99
	wire := Encode(p)
	trap := append([]byte{Preamble[0], Preamble[1], 0x00}, wire...)

	d := NewDecoder(false)
	if got := lastStatus(feed(d, trap)); got != StatusDispatch {
		t.Fatalf("final status = %v, want StatusDispatch", got)
	}
}

func TestDecoderStrictLengthRejectsOversizedLength(t *testing.T) {
	raw := append([]byte{}, Preamble[:]...)
	raw = append(raw, 0xB5, MaxPayload+1)

	d := NewDecoder(true)
	statuses := feed(d, raw)
	if got := lastStatus(statuses); got != StatusLengthError {
		t.Fatalf("final status = %v, want StatusLengthError", got)
	}
}

func TestDecoderLenientLengthRelicsOnCRC(t *testing.T) {
	// With strictLength off, an oversized length isn't rejected up
	// front; since no conformant sender would produce CRC bytes
	// matching a bogus length, the frame will fail CRC instead of
	// dispatching successfully.
	raw := append([]byte{}, Preamble[:]...)
	raw = append(raw, 0xB5, MaxPayload+1)
	for i := 0; i < MaxPayload+1; i++ {
		raw = append(raw, byte(i))
	}
	raw = append(raw, 0, 0, 0, 0) // wrong CRC

	d := NewDecoder(false)
	got := lastStatus(feed(d, raw))
	if got != StatusCRCError {
		t.Fatalf("final status = %v, want StatusCRCError", got)
	}
}

func TestEncodeResponseOmitsPreambleByDefault(t *testing.T) {
	p := &Packet{CommandID: 0xE0, Length: 0}
	resp := EncodeResponse(p, false)
	if len(resp) != 1+1+4 {
		t.Fatalf("len(resp) = %d, want %d", len(resp), 1+1+4)
	}
	if resp[0] != 0xE0 {
		t.Errorf("resp[0] = %x, want command id 0xE0", resp[0])
	}
}

func TestEncodeResponseWithSymmetricPreamble(t *testing.T) {
	p := &Packet{CommandID: 0xE1, Length: 0}
	resp := EncodeResponse(p, true)
	if len(resp) != 4+1+1+4 {
		t.Fatalf("len(resp) = %d, want %d", len(resp), 4+1+1+4)
	}
	for i, want := range Preamble {
		if resp[i] != want {
			t.Errorf("resp[%d] = %x, want preamble byte %x", i, resp[i], want)
		}
	}
}
