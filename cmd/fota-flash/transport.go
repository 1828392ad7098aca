package main

import (
	"fmt"
	"time"

	serial "github.com/daedaluz/goserial"
)

// transport is the minimal byte-stream surface the session needs,
// satisfied by a real serial.Port or by a loopback test double.
type transport interface {
	Write([]byte) (int, error)
	ReadTimeout([]byte, time.Duration) (int, error)
	Close() error
}

// openSerial opens name at the given baud rate in raw 8N1 mode via
// Termios2, the path goserial exposes for custom/high baud rates on
// Linux (CBAUD's B-constants only cover a fixed set of rates; Termios2's
// ISpeed/OSpeed accept the rate directly).
func openSerial(name string, baud int) (*serial.Port, error) {
	port, err := serial.Open(name, serial.NewOptions())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("get attrs: %w", err)
	}
	attrs.MakeRaw()
	attrs.Cflag &^= serial.CSIZE
	attrs.Cflag |= serial.CS8 | serial.CREAD | serial.CLOCAL
	attrs.SetCustomIOSpeed(uint32(baud), uint32(baud))

	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("set attrs: %w", err)
	}
	return port, nil
}
