//go:build tinygo

// Package flashdrv implements flashctl.FlashProgrammer against real
// on-chip flash. It is adapted from the reference OTA driver's
// erase/write primitives (disable interrupts around the call, erase by
// sector, program; written data is not read back) but retargeted from that driver's
// dual-partition ROM calls to a single application region: this
// bootloader has one resident application slot, not an A/B
// try-before-you-buy pair, so there is no partition table to consult
// and no confirm/rollback step.
package flashdrv

import (
	"device/arm"
	"machine"
	"unsafe"
)

// Driver programs the on-chip flash starting at Base, spanning Size
// bytes, in SectorSize-aligned erase granules and 8-byte program
// granules (the double-word alignment spec requires).
type Driver struct {
	Base       uint32
	Size       uint32
	SectorSize uint32
}

// New returns a Driver for the application flash region.
func New(base, size, sectorSize uint32) *Driver {
	return &Driver{Base: base, Size: size, SectorSize: sectorSize}
}

// EraseRegion erases every sector overlapping [base, base+size).
func (d *Driver) EraseRegion(base, size uint32) error {
	start := base - (base % d.SectorSize)
	end := base + size
	mask := arm.DisableInterrupts()
	defer arm.EnableInterrupts(mask)
	for addr := start; addr < end; addr += d.SectorSize {
		if err := machine.Flash.EraseBlock(int64(addr - d.Base)); err != nil {
			return err
		}
	}
	return nil
}

// ReadRegion reads size bytes starting at addr directly out of the
// memory-mapped flash window (XIP): on-chip flash reads like ordinary
// memory, no erase/program sequencing applies.
func (d *Driver) ReadRegion(addr, size uint32) ([]byte, error) {
	out := make([]byte, size)
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
	copy(out, src)
	return out, nil
}

// ProgramDword writes 8 bytes at addr. addr must be 8-byte aligned, the
// invariant the packet controller maintains by construction.
func (d *Driver) ProgramDword(addr uint32, data uint64) error {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(data >> (8 * i))
	}
	mask := arm.DisableInterrupts()
	defer arm.EnableInterrupts(mask)
	_, err := machine.Flash.WriteAt(buf[:], int64(addr-d.Base))
	return err
}
