// Package bootloader wires together the ring buffer, packet decoder,
// command table, and firmware-update sequencer into the single
// Bootloader value that drives an update session. It replaces the
// reference implementation's file-scope globals (the ring buffer, the
// packet controller, the last-sent-response cache) with fields on one
// struct created at startup and threaded through explicitly, per the
// hierarchical-state-machine redesign guidance.
package bootloader

import (
	"log/slog"

	"fotabootloader/internal/bootcmd"
	"fotabootloader/internal/flashctl"
	"fotabootloader/internal/fwupdate"
	"fotabootloader/internal/metadata"
	"fotabootloader/internal/packet"
	"fotabootloader/internal/ringbuf"
)

// Transmit is how the bootloader sends bytes back to the host. The
// platform supplies a concrete implementation (a UART write in
// cmd/bootloader, an in-memory sink in tests).
type Transmit func(data []byte)

// Bootloader owns every piece of state a running update session needs.
// Create one with New and feed it received bytes via Producer(); call
// Run in a loop to drain the ring buffer and dispatch complete packets.
type Bootloader struct {
	rx  *ringbuf.Ring
	dec *packet.Decoder

	ctx bootcmd.Context

	lastSent  []byte
	haveLast  bool
	symmetric bool
	transmit  Transmit
	log       *slog.Logger
}

// Config collects the build-time and platform parameters New needs.
type Config struct {
	ChipID            uint16
	ExpectedDeviceID  uint16
	Flash             flashctl.FlashProgrammer
	FlashBase         uint32
	EraseBase         uint32
	EraseSize         uint32
	Meta              metadata.Store
	Transmit          Transmit
	RxBufferSize      int
	StrictLength      bool
	SymmetricPreamble bool
	Logger            *slog.Logger
}

// New constructs a Bootloader ready to accept bytes.
func New(cfg Config) *Bootloader {
	rxSize := cfg.RxBufferSize
	if rxSize <= 0 {
		rxSize = 256
	}
	b := &Bootloader{
		rx:        ringbuf.New(rxSize),
		dec:       packet.NewDecoder(cfg.StrictLength),
		symmetric: cfg.SymmetricPreamble,
		transmit:  cfg.Transmit,
		log:       cfg.Logger,
		ctx: bootcmd.Context{
			ChipID:      cfg.ChipID,
			ExpectedDev: cfg.ExpectedDeviceID,
			Update:      fwupdate.NewState(),
			Flash:       flashctl.New(cfg.Flash, cfg.FlashBase, cfg.EraseBase, cfg.EraseSize),
			Meta:        cfg.Meta,
		},
	}
	return b
}

// Producer returns the function an ISR (or a test harness) calls to
// feed one received byte into the bootloader's ring buffer.
func (b *Bootloader) Producer() func(byte) bool {
	return b.rx.Producer()
}

// Run drains every byte currently queued in the ring buffer, feeding
// each one to the packet decoder and dispatching any packet that
// completes. A frame that fails its CRC (or, with strict length, its
// length check) is answered with a zero-length RETRANSMIT response. It
// returns the number of packets dispatched, so a caller driving a
// cooperative loop can decide whether to sleep.
func (b *Bootloader) Run() int {
	dispatched := 0
	for {
		by, ok := b.rx.Pop()
		if !ok {
			return dispatched
		}
		switch b.dec.Step(by) {
		case packet.StatusDispatch:
			b.dispatch(b.dec.Packet())
			dispatched++
		case packet.StatusCRCError:
			b.logDebug("packet:crc_error")
			b.send(b.encodeAndCache(&packet.Packet{CommandID: bootcmd.RespRetransmit}))
		case packet.StatusLengthError:
			b.logDebug("packet:length_error")
			b.send(b.encodeAndCache(&packet.Packet{CommandID: bootcmd.RespRetransmit}))
		}
	}
}

func (b *Bootloader) logDebug(msg string) {
	if b.log != nil {
		b.log.Debug(msg)
	}
}

func (b *Bootloader) dispatch(req *packet.Packet) {
	var resp packet.Packet

	if req.CommandID == bootcmd.CmdRetransmitLast {
		b.send(b.retransmitFrame())
		return
	}

	cmd := bootcmd.Lookup(req.CommandID)
	if cmd == nil {
		resp.CommandID = bootcmd.RespNACK
		resp.Length = 1
		resp.Payload[0] = bootcmd.ErrInvalidCommand
		b.send(b.encodeAndCache(&resp))
		return
	}

	// An out-of-order update command is silently dropped: the sequence
	// is flagged broken (Admit already did that) and nothing goes back
	// to the host. The session stays broken until the next FW_SYNC
	// re-arms it.
	if isUpdateCommand(req.CommandID) && !b.ctx.Update.Admit(req.CommandID) {
		return
	}

	cmd.Handle(&b.ctx, req, &resp)
	if cmd.SendResponse {
		b.send(b.encodeAndCache(&resp))
	}
}

func isUpdateCommand(id byte) bool {
	switch id {
	case bootcmd.CmdFWSync, bootcmd.CmdFWVerifyDeviceID, bootcmd.CmdFWSendBinSize, bootcmd.CmdFWSendBinInPackets:
		return true
	default:
		return false
	}
}

func (b *Bootloader) encodeAndCache(resp *packet.Packet) []byte {
	frame := packet.EncodeResponse(resp, b.symmetric)
	b.lastSent = frame
	b.haveLast = true
	return frame
}

// retransmitFrame returns the last response frame sent, or a NACK if no
// response has ever been sent (the host asked to retransmit before
// anything was transmitted).
func (b *Bootloader) retransmitFrame() []byte {
	if b.haveLast {
		return b.lastSent
	}
	resp := packet.Packet{CommandID: bootcmd.RespNACK, Length: 1}
	resp.Payload[0] = bootcmd.ErrInvalidCommand
	return b.encodeAndCache(&resp)
}

func (b *Bootloader) send(frame []byte) {
	if b.transmit != nil {
		b.transmit(frame)
	}
}
