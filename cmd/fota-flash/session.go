package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"fotabootloader/internal/bootcmd"
	"fotabootloader/internal/packet"
)

var errRetransmit = errors.New("fota-flash: target requested retransmit")

// session drives one exchange of request/response packets against a
// transport, with timeout-and-retry around every request, mirroring
// the retry behavior the host-side transport assumes.
type session struct {
	t       transport
	timeout time.Duration
	retries int
}

func newSession(t transport, timeout time.Duration, retries int) *session {
	return &session{t: t, timeout: timeout, retries: retries}
}

// exchange sends req and returns the decoded response, retransmitting
// on timeout or on an explicit RETRANSMIT response up to s.retries
// times.
func (s *session) exchange(req *packet.Packet) (*packet.Packet, error) {
	wire := packet.Encode(req)

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if _, err := s.t.Write(wire); err != nil {
			return nil, fmt.Errorf("write: %w", err)
		}
		resp, err := s.readResponse()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.CommandID == bootcmd.RespRetransmit {
			lastErr = errRetransmit
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("exchange: giving up after %d attempts: %w", s.retries+1, lastErr)
}

// readResponse reads a bare (no-preamble) command_id/length/payload/crc
// response frame, tolerating a leading preamble in case the target is
// built with config.WireSymmetricPreamble enabled.
func (s *session) readResponse() (*packet.Packet, error) {
	buf := make([]byte, 1)
	deadline := time.Now().Add(s.timeout)

	readByte := func() (byte, error) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, errors.New("timeout")
		}
		n, err := s.t.ReadTimeout(buf, remaining)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, errors.New("timeout")
		}
		return buf[0], nil
	}

	b, err := readByte()
	if err != nil {
		return nil, err
	}
	if b == packet.Preamble[0] {
		for i := 1; i < len(packet.Preamble); i++ {
			if b, err = readByte(); err != nil {
				return nil, err
			}
			if b != packet.Preamble[i] {
				return nil, fmt.Errorf("unexpected byte in preamble: %#x", b)
			}
		}
		if b, err = readByte(); err != nil {
			return nil, err
		}
	}

	resp := &packet.Packet{CommandID: b}
	length, err := readByte()
	if err != nil {
		return nil, err
	}
	resp.Length = length
	for i := 0; i < int(length) && i < packet.MaxPayload; i++ {
		if resp.Payload[i], err = readByte(); err != nil {
			return nil, err
		}
	}
	var crcBuf [4]byte
	for i := range crcBuf {
		if crcBuf[i], err = readByte(); err != nil {
			return nil, err
		}
	}
	resp.CRC = binary.LittleEndian.Uint32(crcBuf[:])
	return resp, nil
}
