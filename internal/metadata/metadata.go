// Package metadata reads and writes the shared metadata region: a small
// fixed-layout record sitting between the bootloader and the
// application in flash, holding the app's version, size, an (currently
// unverified) signature, an (currently unverified) CRC, and a sentinel
// value used to recognize a freshly erased or corrupted region.
package metadata

import (
	"encoding/binary"

	"fotabootloader/internal/flashctl"
)

// Sentinel marks a region that holds a structurally valid record.
const Sentinel = 0xDEADBEEF

// Size is the record's packed, 16-byte-aligned size in flash.
const Size = 32

// Version is the application version triple stored alongside its image.
type Version struct {
	Major, Minor, Patch uint8
}

// Info is the decoded contents of the shared metadata region.
type Info struct {
	Version           Version
	AppSize           uint32
	FirmwareSignature [16]byte
	CRC               uint32
	Sentinel          uint32
}

// Valid reports whether the record's sentinel marks it as present. It
// does not check FirmwareSignature or CRC: those fields are stored but
// not yet verified by the bootloader.
func (i Info) Valid() bool {
	return i.Sentinel == Sentinel
}

// Encode serializes Info into a Size-byte little-endian record.
func Encode(i Info) [Size]byte {
	var buf [Size]byte
	buf[0] = i.Version.Major
	buf[1] = i.Version.Minor
	buf[2] = i.Version.Patch
	// buf[3] reserved for alignment
	binary.LittleEndian.PutUint32(buf[4:8], i.AppSize)
	copy(buf[8:24], i.FirmwareSignature[:])
	binary.LittleEndian.PutUint32(buf[24:28], i.CRC)
	binary.LittleEndian.PutUint32(buf[28:32], i.Sentinel)
	return buf
}

// Decode parses a Size-byte little-endian record produced by Encode.
func Decode(buf [Size]byte) Info {
	var i Info
	i.Version = Version{Major: buf[0], Minor: buf[1], Patch: buf[2]}
	i.AppSize = binary.LittleEndian.Uint32(buf[4:8])
	copy(i.FirmwareSignature[:], buf[8:24])
	i.CRC = binary.LittleEndian.Uint32(buf[24:28])
	i.Sentinel = binary.LittleEndian.Uint32(buf[28:32])
	return i
}

// Store is the capability the shared metadata region needs from flash:
// read the current record, and durably write a new one. A concrete
// implementation lives behind the same FlashProgrammer the packet
// controller uses (see internal/flashctl); tests use an in-memory Store.
type Store interface {
	ReadMetadata() (Info, error)
	WriteMetadata(Info) error
}

// MemStore is an in-memory Store, used by tests and by host-side
// tooling that wants to preview a metadata update without touching
// flash.
type MemStore struct {
	current Info
}

// NewMemStore returns a MemStore with no record present.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) ReadMetadata() (Info, error) {
	return m.current, nil
}

func (m *MemStore) WriteMetadata(i Info) error {
	m.current = i
	return nil
}

// FlashStore is a Store backed by the shared metadata region in real
// flash, sitting at a fixed address between the bootloader and the
// application image. Reads go straight through FlashReader (flash is
// memory-mapped, no erase/program sequencing needed to read it); writes
// go through the same erase-then-program FlashProgrammer the packet
// controller uses, since a record can only be rewritten after its
// sector is erased.
type FlashStore struct {
	prog flashctl.FlashProgrammer
	read flashctl.FlashReader
	base uint32
}

// NewFlashStore returns a FlashStore for the region at base.
func NewFlashStore(prog flashctl.FlashProgrammer, read flashctl.FlashReader, base uint32) *FlashStore {
	return &FlashStore{prog: prog, read: read, base: base}
}

func (s *FlashStore) ReadMetadata() (Info, error) {
	raw, err := s.read.ReadRegion(s.base, Size)
	if err != nil {
		return Info{}, err
	}
	var buf [Size]byte
	copy(buf[:], raw)
	return Decode(buf), nil
}

// WriteMetadata erases the record's sector and reprograms it. The
// region is small enough (Size bytes) that the whole erase granule is
// sacrificed for one record, matching the reference layout's dedicated
// metadata sector.
func (s *FlashStore) WriteMetadata(i Info) error {
	if err := s.prog.EraseRegion(s.base, Size); err != nil {
		return err
	}
	buf := Encode(i)
	for off := uint32(0); off < Size; off += 8 {
		dword := binary.LittleEndian.Uint64(buf[off : off+8])
		if err := s.prog.ProgramDword(s.base+off, dword); err != nil {
			return err
		}
	}
	return nil
}

// GetAppVersion returns the application version recorded in the shared
// metadata region, or a zero Version if the region has no valid record.
func GetAppVersion(s Store) (Version, error) {
	info, err := s.ReadMetadata()
	if err != nil {
		return Version{}, err
	}
	if !info.Valid() {
		return Version{}, nil
	}
	return info.Version, nil
}

// GetAppInfo returns the full metadata record, or ok=false if the
// region holds no valid record.
func GetAppInfo(s Store) (Info, bool, error) {
	info, err := s.ReadMetadata()
	if err != nil {
		return Info{}, false, err
	}
	return info, info.Valid(), nil
}

// SetAppInfo writes a new metadata record, stamping Sentinel. Callers
// (internal/bootcmd's FW_SEND_BIN_IN_PACKETS handler, once the packet
// controller reports the image complete) must supply
// every other field; SetAppInfo does not merge with any existing
// record.
func SetAppInfo(s Store, i Info) error {
	i.Sentinel = Sentinel
	return s.WriteMetadata(i)
}
