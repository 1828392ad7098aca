//go:build tinygo

// Command bootloader is the on-target firmware: it decides at reset
// whether to jump into the resident application or stay resident and
// service a firmware update over UART, following the same
// watchdog-fed, never-deadlock main-loop shape as the reference
// firmware's main().
package main

import (
	"device/arm"
	"log/slog"
	"machine"
	"time"
	"unsafe"

	"fotabootloader/bootloader"
	"fotabootloader/cmd/bootloader/flashdrv"
	"fotabootloader/config"
	"fotabootloader/internal/bootcmd"
	"fotabootloader/internal/diag"
	"fotabootloader/internal/flashctl"
	"fotabootloader/internal/metadata"
	"fotabootloader/internal/startup"
	"fotabootloader/version"
)

const (
	appFlashBase    = 0x08008000
	appFlashSize    = 128 * appSectorSize // 128 pages, the application region's size
	appSectorSize   = 2048
	sharedFlashBase = 0x08006000
	uartBaud        = 115200
	expectedDevID   = 0x4201 // board-specific; matches the host tool's default
)

var pinBootSelect = machine.GP6
var pinHeartbeat = machine.GP25

func main() {
	bootcmd.SetBootloaderVersion(version.Major, version.Minor, version.Patch)

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 8000})
	machine.Watchdog.Start()

	pinBootSelect.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	pinHeartbeat.Configure(machine.PinConfig{Mode: machine.PinOutput})

	machine.UART0.Configure(machine.UARTConfig{BaudRate: uartBaud})
	logger := slog.New(diag.NewHandler(machine.UART0, slog.LevelInfo))

	polarity := startup.ParsePolarity(config.BootSelectPolarity())
	grace := config.GraceTicks()
	for i := 0; i < grace; i++ {
		machine.Watchdog.Update()
		pinHeartbeat.Set(!pinHeartbeat.Get())
		time.Sleep(100 * time.Millisecond)
	}

	appMSP := *(*uint32)(unsafe.Pointer(uintptr(appFlashBase)))
	sram := []startup.AddrRange{{Start: 0x20000000, End: 0x20042000}}
	action := startup.Decide(polarity, pinBootSelect.Get(), appMSP, sram)

	if action == startup.JumpToApp {
		logger.Info("startup:jump_to_app", slog.Uint64("msp", uint64(appMSP)))
		jumpToApplication(appFlashBase)
		// jumpToApplication never returns.
	}

	logger.Info("startup:enter_update_loop")
	runUpdateLoop(logger, polarity)
}

func runUpdateLoop(logger *slog.Logger, _ startup.Polarity) {
	// One Driver spans the shared metadata page plus the whole
	// application region, so FW_SEND_BIN_SIZE's erase can address both
	// through one FlashProgrammer instead of issuing two erases.
	eraseSize := (appFlashBase - sharedFlashBase) + appFlashSize
	flash := flashdrv.New(sharedFlashBase, eraseSize, appSectorSize)
	var fp flashctl.FlashProgrammer = flash
	metaFlash := flashdrv.New(sharedFlashBase, appSectorSize, appSectorSize)
	meta := metadata.NewFlashStore(metaFlash, metaFlash, sharedFlashBase)

	bl := bootloader.New(bootloader.Config{
		ChipID:            uint16(machine.DeviceID()),
		ExpectedDeviceID:  expectedDevID,
		Flash:             fp,
		FlashBase:         appFlashBase,
		EraseBase:         sharedFlashBase,
		EraseSize:         eraseSize,
		Meta:              meta,
		RxBufferSize:      512,
		StrictLength:      config.StrictLength(),
		SymmetricPreamble: config.WireSymmetricPreamble(),
		Logger:            logger,
		Transmit: func(data []byte) {
			machine.UART0.Write(data)
		},
	})

	go func() {
		push := bl.Producer()
		for {
			if machine.UART0.Buffered() > 0 {
				b, err := machine.UART0.ReadByte()
				if err == nil {
					push(b)
				}
			}
		}
	}()

	for {
		machine.Watchdog.Update()
		pinHeartbeat.Set(!pinHeartbeat.Get())
		if bl.Run() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// jumpToApplication transfers control to the resident application's
// vector table. This is inherently unsafe: it must only be called after
// startup.ValidMSP has accepted the target's stack pointer, per
// cmd/bootloader's call site above. It never returns.
//
//go:noinline
func jumpToApplication(base uint32) {
	resetHandler := *(*uint32)(unsafe.Pointer(uintptr(base + 4)))
	msp := *(*uint32)(unsafe.Pointer(uintptr(base)))

	arm.DisableInterrupts()
	arm.AsmFull(
		"msr msp, {msp}\nbx {reset}",
		map[string]interface{}{
			"msp":   msp,
			"reset": resetHandler,
		},
	)
}
