package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"fotabootloader/internal/bootcmd"
	"fotabootloader/internal/packet"
)

func openTransport(port string, baud int, dryRun bool) (transport, func(), error) {
	if dryRun {
		lb := newLoopbackTarget()
		return lb, func() {}, nil
	}
	if port == "" {
		return nil, nil, fmt.Errorf("--port is required (or pass --dry-run)")
	}
	p, err := openSerial(port, baud)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { p.Close() }, nil
}

// lockFirmwareFile takes a shared advisory lock on the image file for
// the duration of the flash operation, so a second fota-flash run
// against the same file (e.g. a CI job re-triggered mid-flash) doesn't
// read a half-rewritten image out from under this one.
func lockFirmwareFile(f *os.File) (unlock func(), err error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, fmt.Errorf("lock firmware file: %w", err)
	}
	return func() { unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
}

func runFlash(port, path string, baud int, timeout time.Duration, retries int, deviceID uint16, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open firmware: %w", err)
	}
	defer f.Close()
	unlock, err := lockFirmwareFile(f)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read firmware: %w", err)
	}

	t, closeFn, err := openTransport(port, baud, dryRun)
	if err != nil {
		return err
	}
	defer closeFn()
	s := newSession(t, timeout, retries)

	fmt.Printf("syncing...\n")
	if _, err := s.exchange(&packet.Packet{CommandID: bootcmd.CmdFWSync}); err != nil {
		return fmt.Errorf("FW_SYNC: %w", err)
	}

	fmt.Printf("verifying device id 0x%04X...\n", deviceID)
	verify := &packet.Packet{CommandID: bootcmd.CmdFWVerifyDeviceID, Length: 2}
	binary.LittleEndian.PutUint16(verify.Payload[0:2], deviceID)
	resp, err := s.exchange(verify)
	if err != nil {
		return fmt.Errorf("FW_VERIFY_DEVICE_ID: %w", err)
	}
	if resp.CommandID != bootcmd.RespACK {
		return fmt.Errorf("FW_VERIFY_DEVICE_ID: target NACKed (code %#x)", payloadErrorCode(resp))
	}

	fmt.Printf("sending image size (%d bytes)...\n", len(data))
	sizePkt := &packet.Packet{CommandID: bootcmd.CmdFWSendBinSize, Length: 4}
	binary.LittleEndian.PutUint32(sizePkt.Payload[0:4], uint32(len(data)))
	resp, err = s.exchange(sizePkt)
	if err != nil {
		return fmt.Errorf("FW_SEND_BIN_SIZE: %w", err)
	}
	if resp.CommandID != bootcmd.RespACK {
		return fmt.Errorf("FW_SEND_BIN_SIZE: target NACKed (code %#x)", payloadErrorCode(resp))
	}

	total := (len(data) + packet.MaxPayload - 1) / packet.MaxPayload
	for i := 0; i < total; i++ {
		start := i * packet.MaxPayload
		end := start + packet.MaxPayload
		if end > len(data) {
			end = len(data)
		}
		p := &packet.Packet{CommandID: bootcmd.CmdFWSendBinInPackets, Length: byte(end - start)}
		copy(p.Payload[:], data[start:end])

		resp, err := s.exchange(p)
		if err != nil {
			return fmt.Errorf("FW_SEND_BIN_IN_PACKETS packet %d/%d: %w", i+1, total, err)
		}
		if resp.CommandID != bootcmd.RespACK {
			return fmt.Errorf("FW_SEND_BIN_IN_PACKETS packet %d/%d: target NACKed (code %#x)", i+1, total, payloadErrorCode(resp))
		}
		fmt.Printf("\rpacket %d/%d", i+1, total)
	}
	fmt.Println()
	fmt.Println("flash complete")
	return nil
}

func runInfo(port string, baud int, timeout time.Duration, dryRun bool) error {
	t, closeFn, err := openTransport(port, baud, dryRun)
	if err != nil {
		return err
	}
	defer closeFn()
	s := newSession(t, timeout, defaultRetries)

	verResp, err := s.exchange(&packet.Packet{CommandID: bootcmd.CmdGetBootloaderVer})
	if err != nil {
		return fmt.Errorf("GET_BOOTLOADER_VERSION: %w", err)
	}
	fmt.Printf("bootloader version: %d.%d.%d\n", verResp.Payload[0], verResp.Payload[1], verResp.Payload[2])

	appResp, err := s.exchange(&packet.Packet{CommandID: bootcmd.CmdGetAppVersion})
	if err != nil {
		return fmt.Errorf("GET_APP_VERSION: %w", err)
	}
	fmt.Printf("application version: %d.%d.%d\n", appResp.Payload[0], appResp.Payload[1], appResp.Payload[2])

	chipResp, err := s.exchange(&packet.Packet{CommandID: bootcmd.CmdGetChipID})
	if err != nil {
		return fmt.Errorf("GET_CHIP_ID: %w", err)
	}
	chipID := binary.LittleEndian.Uint16(chipResp.Payload[0:2])
	fmt.Printf("chip id: 0x%04X\n", chipID)
	return nil
}

func payloadErrorCode(p *packet.Packet) byte {
	if p.Length < 1 {
		return 0
	}
	return p.Payload[0]
}
