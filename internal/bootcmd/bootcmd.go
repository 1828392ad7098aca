// Package bootcmd implements the closed set of commands the update
// protocol accepts and the response codes it can return. Each command
// is a Command value in a table rather than a switch branch, so an
// unrecognized id falls through to a single, total default instead of
// a scattered set of "else" cases.
package bootcmd

import (
	"encoding/binary"

	"fotabootloader/internal/flashctl"
	"fotabootloader/internal/fwupdate"
	"fotabootloader/internal/metadata"
	"fotabootloader/internal/packet"
)

// Command ids, the closed 0xB0-0xB7 range the protocol recognizes.
const (
	CmdRetransmitLast     = 0xB0
	CmdGetBootloaderVer   = 0xB1
	CmdGetAppVersion      = 0xB2
	CmdGetChipID          = 0xB3
	CmdFWSync             = fwupdate.CmdFWSync
	CmdFWVerifyDeviceID   = fwupdate.CmdFWVerifyDeviceID
	CmdFWSendBinSize      = fwupdate.CmdFWSendBinSize
	CmdFWSendBinInPackets = fwupdate.CmdFWSendBinInPackets
)

// Response codes.
const (
	RespACK        = 0xE0
	RespNACK       = 0xE1
	RespRetransmit = 0xE2
)

// Error codes carried in a NACK response's payload.
const (
	ErrInvalidCommand = 0x11
	ErrBadDeviceID    = 0x13
	ErrBadImageSize   = 0x14
	ErrFlashFailure   = 0x15
)

// Context is everything a handler needs beyond the request/response
// packets: the device's identity, the in-progress update sequencer, the
// flash programmer, and the shared metadata store. A Bootloader value
// owns one Context and reuses it across dispatches.
type Context struct {
	ChipID      uint16
	ExpectedDev uint16
	Update      *fwupdate.State
	Flash       *flashctl.Controller
	Meta        metadata.Store
}

// Command is one entry of the command table: its id, whether a response
// should be transmitted at all (the reference device suppresses a
// response for a small number of fire-and-forget commands, though none
// of the eight recognized commands do), and the handler itself.
type Command struct {
	ID           byte
	SendResponse bool
	Handle       func(ctx *Context, req *packet.Packet, resp *packet.Packet)
}

// Table is the closed set of commands the dispatcher recognizes, in
// command-id order.
var Table = []Command{
	{ID: CmdRetransmitLast, SendResponse: true, Handle: handleRetransmitLast},
	{ID: CmdGetBootloaderVer, SendResponse: true, Handle: handleGetBootloaderVersion},
	{ID: CmdGetAppVersion, SendResponse: true, Handle: handleGetAppVersion},
	{ID: CmdGetChipID, SendResponse: true, Handle: handleGetChipID},
	{ID: CmdFWSync, SendResponse: true, Handle: handleFWSync},
	{ID: CmdFWVerifyDeviceID, SendResponse: true, Handle: handleFWVerifyDeviceID},
	{ID: CmdFWSendBinSize, SendResponse: true, Handle: handleFWSendBinSize},
	{ID: CmdFWSendBinInPackets, SendResponse: true, Handle: handleFWSendBinInPackets},
}

var byID map[byte]*Command

func init() {
	byID = make(map[byte]*Command, len(Table))
	for i := range Table {
		byID[Table[i].ID] = &Table[i]
	}
}

// Lookup returns the Command for id, or nil if id isn't in Table.
func Lookup(id byte) *Command {
	return byID[id]
}

func nack(resp *packet.Packet, code byte) {
	resp.CommandID = RespNACK
	resp.Length = 1
	resp.Payload[0] = code
}

func ack(resp *packet.Packet) {
	resp.CommandID = RespACK
	resp.Length = 0
}

func handleRetransmitLast(ctx *Context, req, resp *packet.Packet) {
	// Bootloader.dispatch answers RETRANSMIT_LAST_TO_CLIENT itself with
	// the cached last-sent response before any table lookup, so this
	// handler is never called from there; it leaves resp untouched.
}

func handleGetBootloaderVersion(ctx *Context, req, resp *packet.Packet) {
	ack(resp)
	resp.Length = 3
	resp.Payload[0] = bootloaderVersionMajor
	resp.Payload[1] = bootloaderVersionMinor
	resp.Payload[2] = bootloaderVersionPatch
}

// Set by cmd/bootloader (or left at zero in tests) rather than imported
// directly from the version package, to keep this package free of a
// dependency edge back toward the top-level module.
var (
	bootloaderVersionMajor byte
	bootloaderVersionMinor byte
	bootloaderVersionPatch byte
)

// SetBootloaderVersion records the triple GET_BOOTLOADER_VERSION reports.
func SetBootloaderVersion(major, minor, patch byte) {
	bootloaderVersionMajor, bootloaderVersionMinor, bootloaderVersionPatch = major, minor, patch
}

func handleGetAppVersion(ctx *Context, req, resp *packet.Packet) {
	v, err := metadata.GetAppVersion(ctx.Meta)
	if err != nil {
		nack(resp, ErrFlashFailure)
		return
	}
	ack(resp)
	resp.Length = 3
	resp.Payload[0] = v.Major
	resp.Payload[1] = v.Minor
	resp.Payload[2] = v.Patch
}

func handleGetChipID(ctx *Context, req, resp *packet.Packet) {
	ack(resp)
	resp.Length = 2
	binary.LittleEndian.PutUint16(resp.Payload[0:2], ctx.ChipID)
}

func handleFWSync(ctx *Context, req, resp *packet.Packet) {
	ctx.Flash.Reset()
	ctx.Update.Advance(CmdFWSync)
	ack(resp)
}

func handleFWVerifyDeviceID(ctx *Context, req, resp *packet.Packet) {
	if req.Length < 2 {
		ctx.Update.Break()
		nack(resp, ErrBadDeviceID)
		return
	}
	got := binary.LittleEndian.Uint16(req.Payload[0:2])
	if got != ctx.ExpectedDev {
		ctx.Update.Break()
		nack(resp, ErrBadDeviceID)
		return
	}
	ctx.Update.Advance(CmdFWVerifyDeviceID)
	ack(resp)
}

func handleFWSendBinSize(ctx *Context, req, resp *packet.Packet) {
	if req.Length < 4 {
		ctx.Update.Break()
		nack(resp, ErrBadImageSize)
		return
	}
	size := binary.LittleEndian.Uint32(req.Payload[0:4])
	if size == 0 {
		ctx.Update.Break()
		nack(resp, ErrBadImageSize)
		return
	}
	if err := ctx.Flash.Init(size); err != nil {
		ctx.Update.Break()
		nack(resp, ErrFlashFailure)
		return
	}
	ctx.Update.Advance(CmdFWSendBinSize)
	ack(resp)
}

func handleFWSendBinInPackets(ctx *Context, req, resp *packet.Packet) {
	var payload [16]byte
	copy(payload[:], req.Payload[:])

	done, err := ctx.Flash.WritePacket(payload)
	if err != nil {
		ctx.Update.Break()
		nack(resp, ErrFlashFailure)
		return
	}
	ctx.Update.Advance(CmdFWSendBinInPackets)
	ack(resp)
	if done {
		// Record the new image's size in the shared metadata region
		// before resetting; the region is still erased/unlocked from
		// this programming sequence. The wire protocol carries no
		// version or signature for the incoming image, so those fields
		// stay at their zero value.
		if err := metadata.SetAppInfo(ctx.Meta, metadata.Info{AppSize: ctx.Flash.FWSize()}); err != nil {
			ctx.Update.Break()
			nack(resp, ErrFlashFailure)
			return
		}
		ctx.Update.Reset()
	}
}
