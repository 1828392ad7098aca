// Package packet implements the wire framing for the update link: a
// fixed 4-byte preamble, a command id, a declared payload length, up to
// 16 bytes of payload, and a trailing little-endian CRC-32/MPEG-2 over
// the command id, length, and declared payload bytes only (padding is
// never transmitted and never covered by the CRC).
package packet

import (
	"encoding/binary"

	"fotabootloader/internal/crc32mpeg"
)

// MaxPayload is the largest payload a single packet can carry.
const MaxPayload = 16

// Preamble is the fixed 4-byte sequence that opens every inbound frame.
var Preamble = [4]byte{0xA5, 0xAA, 0xBB, 0xA5}

// Packet is a decoded frame. Payload always has capacity MaxPayload;
// only Payload[:Length] is meaningful, the remainder reads as 0xFF.
type Packet struct {
	CommandID byte
	Length    byte
	Payload   [MaxPayload]byte
	CRC       uint32
}

// Encode serializes a packet with a leading preamble, matching the
// inbound wire format. Used by host-side tooling and by tests that
// round-trip packets through the Decoder.
func Encode(p *Packet) []byte {
	buf := make([]byte, 0, 4+1+1+int(p.Length)+4)
	buf = append(buf, Preamble[:]...)
	buf = append(buf, p.CommandID, p.Length)
	buf = append(buf, p.Payload[:p.Length]...)
	crc := computeCRC(p.CommandID, p.Length, p.Payload[:p.Length])
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	buf = append(buf, crcBuf[:]...)
	return buf
}

// EncodeResponse serializes a response packet. With symmetricPreamble
// false it omits the preamble, matching the reference device's
// asymmetric response format; with it true the preamble is prepended as
// on inbound frames (see config.WireSymmetricPreamble).
func EncodeResponse(p *Packet, symmetricPreamble bool) []byte {
	buf := make([]byte, 0, 4+1+1+int(p.Length)+4)
	if symmetricPreamble {
		buf = append(buf, Preamble[:]...)
	}
	buf = append(buf, p.CommandID, p.Length)
	buf = append(buf, p.Payload[:p.Length]...)
	crc := computeCRC(p.CommandID, p.Length, p.Payload[:p.Length])
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	buf = append(buf, crcBuf[:]...)
	return buf
}

func computeCRC(commandID, length byte, payload []byte) uint32 {
	d := crc32mpeg.NewDigest()
	d.WriteByte(commandID)
	d.WriteByte(length)
	for _, b := range payload {
		d.WriteByte(b)
	}
	return d.Sum32()
}

// state names the position within a frame the Decoder is waiting on.
type state int

const (
	stateFrame state = iota
	stateID
	stateLength
	statePayload
	stateCRC
)

// Status reports what happened after feeding one byte to the Decoder.
type Status int

const (
	// StatusPending means the frame is not yet complete.
	StatusPending Status = iota
	// StatusDispatch means a full, CRC-valid packet is ready in
	// Decoder.Packet().
	StatusDispatch
	// StatusCRCError means a full frame was received but its CRC did
	// not match; the decoder has already restarted, looking for the
	// next preamble.
	StatusCRCError
	// StatusLengthError means the declared length exceeded MaxPayload
	// and config.StrictLength is enabled; the decoder has restarted.
	StatusLengthError
)

// Decoder drives the FRAME -> ID -> LENGTH -> PAYLOAD -> CRC receive
// state machine one byte at a time. The zero value is ready to use.
type Decoder struct {
	strictLength bool

	st         state
	frameIdx   int
	pkt        Packet
	payloadIdx int
	crcIdx     int
	crcBuf     [4]byte
	digest     crc32mpeg.Digest
}

// NewDecoder creates a Decoder. strictLength controls whether a declared
// length greater than MaxPayload is rejected immediately (StatusLengthError)
// or left for the CRC check to catch; default reference behavior is
// strictLength=false.
func NewDecoder(strictLength bool) *Decoder {
	return &Decoder{strictLength: strictLength}
}

// Step feeds one received byte into the state machine.
func (d *Decoder) Step(b byte) Status {
	switch d.st {
	case stateFrame:
		if b == Preamble[d.frameIdx] {
			d.frameIdx++
			if d.frameIdx == len(Preamble) {
				d.st = stateID
				d.frameIdx = 0
			}
			return StatusPending
		}
		// Mismatch restarts the search; a byte that happens to equal
		// Preamble[0] may itself be the start of a new attempt.
		if b == Preamble[0] {
			d.frameIdx = 1
		} else {
			d.frameIdx = 0
		}
		return StatusPending

	case stateID:
		d.pkt.CommandID = b
		d.digest.Reset()
		d.digest.WriteByte(b)
		d.st = stateLength
		return StatusPending

	case stateLength:
		if b > MaxPayload {
			if d.strictLength {
				d.reset()
				return StatusLengthError
			}
		}
		d.pkt.Length = b
		d.digest.WriteByte(b)
		d.payloadIdx = 0
		for i := range d.pkt.Payload {
			d.pkt.Payload[i] = 0xFF
		}
		if b == 0 {
			d.st = stateCRC
			d.crcIdx = 0
			return StatusPending
		}
		d.st = statePayload
		return StatusPending

	case statePayload:
		if d.payloadIdx < MaxPayload {
			d.pkt.Payload[d.payloadIdx] = b
		}
		d.digest.WriteByte(b)
		d.payloadIdx++
		if d.payloadIdx >= int(d.pkt.Length) {
			d.st = stateCRC
			d.crcIdx = 0
		}
		return StatusPending

	case stateCRC:
		d.crcBuf[d.crcIdx] = b
		d.crcIdx++
		if d.crcIdx < 4 {
			return StatusPending
		}
		d.pkt.CRC = binary.LittleEndian.Uint32(d.crcBuf[:])
		ok := d.pkt.CRC == d.digest.Sum32()
		d.reset()
		if !ok {
			return StatusCRCError
		}
		return StatusDispatch

	default:
		d.reset()
		return StatusPending
	}
}

func (d *Decoder) reset() {
	d.st = stateFrame
	d.frameIdx = 0
}

// Packet returns the most recently completed, CRC-valid packet. Valid
// only immediately after Step returns StatusDispatch.
func (d *Decoder) Packet() *Packet {
	return &d.pkt
}
