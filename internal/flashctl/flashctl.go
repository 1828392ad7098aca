// Package flashctl drives the actual flash programming of an incoming
// firmware image: it tracks how many packets have arrived, where the
// next double-word lands, and turns each 16-byte packet payload into
// two double-word (8-byte) programming operations, through a
// FlashProgrammer capability rather than direct memory-mapped writes.
package flashctl

import (
	"encoding/binary"
	"errors"
)

// FlashProgrammer is the capability the packet controller needs from
// flash: erase a region before writing it, and program one aligned
// double-word at a time. A concrete implementation lives in
// cmd/bootloader/flashdrv (tinygo-tagged, real flash); MemProgrammer is
// the in-memory implementation used by every test and by
// cmd/fota-flash's dry-run mode.
type FlashProgrammer interface {
	EraseRegion(base, size uint32) error
	ProgramDword(addr uint32, data uint64) error
}

// FlashReader is the capability a Store needs to read back a region
// without going through the erase/program path: the shared metadata
// record is read this way, never reprogrammed in place.
type FlashReader interface {
	ReadRegion(addr, size uint32) ([]byte, error)
}

// ErrNotInitialized is returned by WritePacket before Init has run.
var ErrNotInitialized = errors.New("flashctl: controller not initialized")

// ErrAlreadyComplete is returned by WritePacket once total_packets have
// already been written; a conformant host stops sending before this,
// but a misbehaving one must not be allowed to keep programming flash.
var ErrAlreadyComplete = errors.New("flashctl: firmware image already complete")

// Controller tracks an in-progress firmware write: the target region,
// how many packets have landed, and whether an error has occurred
// that should abort the session.
type Controller struct {
	flash FlashProgrammer
	base  uint32

	eraseBase uint32
	eraseSize uint32

	fwSize           uint32
	totalPackets     uint32
	currentPacketNum uint32
	currentFlashAddr uint32
	errorOccurred    bool
}

// New creates a Controller that programs into the region starting at
// base. eraseBase/eraseSize identify the fixed shared-metadata-plus-
// application region Init erases in full on every firmware write,
// independent of the size of the image being written: a smaller image
// than the one it replaces must not leave the tail of the old
// application, or the shared metadata page, un-erased.
func New(flash FlashProgrammer, base, eraseBase, eraseSize uint32) *Controller {
	return &Controller{flash: flash, base: base, eraseBase: eraseBase, eraseSize: eraseSize}
}

// Init begins a new firmware write of fwSize bytes: it computes
// total_packets = ceil(fwSize/16), erases the fixed shared+application
// region in a single call, and resets the packet/address cursors to the
// start of the programming region.
func (c *Controller) Init(fwSize uint32) error {
	const payloadSize = 16
	c.fwSize = fwSize
	c.totalPackets = (fwSize + payloadSize - 1) / payloadSize
	c.currentPacketNum = 0
	c.currentFlashAddr = c.base
	c.errorOccurred = false

	if err := c.flash.EraseRegion(c.eraseBase, c.eraseSize); err != nil {
		c.errorOccurred = true
		return err
	}
	return nil
}

// TotalPackets returns the number of FW_SEND_BIN_IN_PACKETS calls
// expected for the image size passed to Init.
func (c *Controller) TotalPackets() uint32 {
	return c.totalPackets
}

// FWSize returns the image size passed to the most recent Init.
func (c *Controller) FWSize() uint32 {
	return c.fwSize
}

// CurrentPacketNumber returns how many packets have been written so far.
func (c *Controller) CurrentPacketNumber() uint32 {
	return c.currentPacketNum
}

// ErrorOccurred reports whether a previous WritePacket call failed.
func (c *Controller) ErrorOccurred() bool {
	return c.errorOccurred
}

// WritePacket programs one 16-byte payload as two double-words and
// advances the cursors. It reports done=true once total_packets have
// been written.
func (c *Controller) WritePacket(payload [16]byte) (done bool, err error) {
	if c.flash == nil || c.totalPackets == 0 {
		return false, ErrNotInitialized
	}
	if c.currentPacketNum >= c.totalPackets {
		return false, ErrAlreadyComplete
	}

	low := binary.LittleEndian.Uint64(payload[0:8])
	high := binary.LittleEndian.Uint64(payload[8:16])

	if err := c.flash.ProgramDword(c.currentFlashAddr, low); err != nil {
		c.errorOccurred = true
		return false, err
	}
	c.currentFlashAddr += 8
	if err := c.flash.ProgramDword(c.currentFlashAddr, high); err != nil {
		c.errorOccurred = true
		return false, err
	}
	c.currentFlashAddr += 8

	c.currentPacketNum++
	return c.currentPacketNum >= c.totalPackets, nil
}

// Reset clears the controller back to its pre-Init state, as FW_SYNC
// does to the enclosing update sequence.
func (c *Controller) Reset() {
	c.fwSize = 0
	c.totalPackets = 0
	c.currentPacketNum = 0
	c.currentFlashAddr = c.base
	c.errorOccurred = false
}

// MemProgrammer is an in-memory FlashProgrammer over a plain byte slice,
// used by package tests, internal/metadata's test Store wiring, and
// cmd/fota-flash's --dry-run mode.
type MemProgrammer struct {
	Base uint32
	Mem  []byte
}

// NewMemProgrammer allocates a MemProgrammer covering [base, base+size).
func NewMemProgrammer(base, size uint32) *MemProgrammer {
	return &MemProgrammer{Base: base, Mem: make([]byte, size)}
}

func (p *MemProgrammer) offset(addr uint32) (int, error) {
	if addr < p.Base || addr >= p.Base+uint32(len(p.Mem)) {
		return 0, errors.New("flashctl: address out of range")
	}
	return int(addr - p.Base), nil
}

// EraseRegion sets every byte in [base, base+size) to 0xFF, matching an
// erased NOR/embedded-flash cell.
func (p *MemProgrammer) EraseRegion(base, size uint32) error {
	start, err := p.offset(base)
	if err != nil {
		return err
	}
	end := start + int(size)
	if end > len(p.Mem) {
		return errors.New("flashctl: erase region exceeds backing store")
	}
	for i := start; i < end; i++ {
		p.Mem[i] = 0xFF
	}
	return nil
}

// ReadRegion returns a copy of [addr, addr+size).
func (p *MemProgrammer) ReadRegion(addr, size uint32) ([]byte, error) {
	start, err := p.offset(addr)
	if err != nil {
		return nil, err
	}
	end := start + int(size)
	if end > len(p.Mem) {
		return nil, errors.New("flashctl: read region exceeds backing store")
	}
	out := make([]byte, size)
	copy(out, p.Mem[start:end])
	return out, nil
}

// ProgramDword writes 8 bytes at addr, little-endian. Real flash can
// only clear bits on a program (never set an already-cleared bit back to
// 1); MemProgrammer enforces the same rule so tests catch a controller
// that tries to reprogram without erasing first.
func (p *MemProgrammer) ProgramDword(addr uint32, data uint64) error {
	off, err := p.offset(addr)
	if err != nil {
		return err
	}
	if off+8 > len(p.Mem) {
		return errors.New("flashctl: program exceeds backing store")
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], data)
	for i := 0; i < 8; i++ {
		if p.Mem[off+i]&buf[i] != buf[i] {
			return errors.New("flashctl: program would set a bit that erase did not clear")
		}
		p.Mem[off+i] = buf[i]
	}
	return nil
}
