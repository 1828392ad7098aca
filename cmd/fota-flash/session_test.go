package main

import (
	"testing"
	"time"

	"fotabootloader/internal/bootcmd"
	"fotabootloader/internal/packet"
)

func TestSessionExchangeAgainstLoopback(t *testing.T) {
	lb := newLoopbackTarget()
	s := newSession(lb, 2*time.Second, 2)

	resp, err := s.exchange(&packet.Packet{CommandID: bootcmd.CmdGetChipID})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp.CommandID != bootcmd.RespACK {
		t.Fatalf("resp.CommandID = %#x, want ACK", resp.CommandID)
	}
}

func TestSessionUnknownCommandNACKs(t *testing.T) {
	lb := newLoopbackTarget()
	s := newSession(lb, 2*time.Second, 1)

	resp, err := s.exchange(&packet.Packet{CommandID: 0x55})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if resp.CommandID != bootcmd.RespNACK {
		t.Fatalf("resp.CommandID = %#x, want NACK", resp.CommandID)
	}
}

func TestFWSyncAgainstLoopbackTarget(t *testing.T) {
	lb := newLoopbackTarget()
	s := newSession(lb, 2*time.Second, 2)

	if _, err := s.exchange(&packet.Packet{CommandID: bootcmd.CmdFWSync}); err != nil {
		t.Fatalf("FW_SYNC: %v", err)
	}
}
