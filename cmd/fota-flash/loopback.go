package main

import (
	"sync"
	"time"

	"fotabootloader/bootloader"
	"fotabootloader/internal/flashctl"
	"fotabootloader/internal/metadata"
)

// loopbackTarget runs a real bootloader.Bootloader in-process and
// exposes it as a transport, so --dry-run can exercise the exact same
// protocol engine cmd/bootloader runs on hardware, without a serial
// port or a physical device.
type loopbackTarget struct {
	bl *bootloader.Bootloader

	mu  sync.Mutex
	out []byte
}

func newLoopbackTarget() *loopbackTarget {
	lb := &loopbackTarget{}
	const sharedBase = 0x08006000
	const appBase = 0x08008000
	const appSize = 128 * 1024
	prog := flashctl.NewMemProgrammer(sharedBase, (appBase-sharedBase)+appSize)
	lb.bl = bootloader.New(bootloader.Config{
		ChipID:           0xBEEF,
		ExpectedDeviceID: 0x4201,
		Flash:            prog,
		FlashBase:        appBase,
		EraseBase:        sharedBase,
		EraseSize:        (appBase - sharedBase) + appSize,
		Meta:             metadata.NewMemStore(),
		RxBufferSize:     512,
		Transmit: func(data []byte) {
			lb.mu.Lock()
			lb.out = append(lb.out, data...)
			lb.mu.Unlock()
		},
	})
	return lb
}

func (lb *loopbackTarget) Write(data []byte) (int, error) {
	push := lb.bl.Producer()
	for _, b := range data {
		push(b)
	}
	lb.bl.Run()
	return len(data), nil
}

func (lb *loopbackTarget) ReadTimeout(buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		lb.mu.Lock()
		if len(lb.out) > 0 {
			n := copy(buf, lb.out)
			lb.out = lb.out[n:]
			lb.mu.Unlock()
			return n, nil
		}
		lb.mu.Unlock()
		if time.Now().After(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (lb *loopbackTarget) Close() error {
	return nil
}
