// Package fwupdate enforces the strict command ordering required to
// drive a firmware update: FW_SYNC, then FW_VERIFY_DEVICE_ID, then
// FW_SEND_BIN_SIZE, then one or more FW_SEND_BIN_IN_PACKETS. Any command
// received out of that order is rejected until the next FW_SYNC.
package fwupdate

// Command ids participating in the update sequence. Mirrors
// bootcmd's constants; duplicated here (rather than imported) to keep
// this package free of a dependency on the command table, since the
// admission rule only cares about these four ids.
const (
	CmdFWSync             = 0xB4
	CmdFWVerifyDeviceID   = 0xB5
	CmdFWSendBinSize      = 0xB6
	CmdFWSendBinInPackets = 0xB7
)

// State tracks where in the update sequence the session currently is.
// The zero value is a valid starting state: nothing has happened yet,
// and only FW_SYNC is admitted.
type State struct {
	started      bool
	cmdSeqBroken bool
	nextExpected byte
}

// NewState returns a State ready to begin a session.
func NewState() *State {
	s := &State{}
	s.reset()
	return s
}

func (s *State) reset() {
	s.started = false
	s.cmdSeqBroken = false
	s.nextExpected = CmdFWSync
}

// Admit reports whether id is allowed to run next, given the session's
// history, and mutates the state accordingly (the admission function
// itself performs the started/cmd_seq_broken transitions, not just a
// read-only check):
//   - if not started and id == FW_SYNC: arm the session, clear
//     cmd_seq_broken, admit.
//   - if started and id == NextExpected: admit, no state change here
//     (Advance computes the next expectation once the handler succeeds).
//   - otherwise: mark the sequence broken, clear started, reject.
//
// A stray FW_SYNC received mid-sequence (started, but NextExpected isn't
// FW_SYNC) falls into the last case: it is rejected, not a free resync.
// The host must send a second FW_SYNC once that rejection has cleared
// started, which then re-arms the session via the first case.
func (s *State) Admit(id byte) bool {
	if !s.started {
		if id == CmdFWSync {
			s.started = true
			s.cmdSeqBroken = false
			return true
		}
		s.cmdSeqBroken = true
		s.started = false
		return false
	}
	if id == s.nextExpected {
		return true
	}
	s.cmdSeqBroken = true
	s.started = false
	return false
}

// Advance records that id ran successfully and computes the next
// expected command id. Call only after Admit(id) returned true and the
// handler succeeded.
func (s *State) Advance(id byte) {
	switch id {
	case CmdFWSync:
		s.nextExpected = CmdFWVerifyDeviceID
	case CmdFWVerifyDeviceID:
		s.nextExpected = CmdFWSendBinSize
	case CmdFWSendBinSize:
		s.nextExpected = CmdFWSendBinInPackets
	case CmdFWSendBinInPackets:
		s.nextExpected = CmdFWSendBinInPackets
	}
}

// Break marks the sequence as broken and clears started, forcing every
// subsequent command other than a fresh FW_SYNC to be rejected. Call
// when a command handler fails after Admit already let it run (bad
// device id, a zero image size, a flash programming failure).
func (s *State) Break() {
	s.cmdSeqBroken = true
	s.started = false
}

// Reset returns the sequence to its pre-session state, as happens once
// the last packet of an image has been written.
func (s *State) Reset() {
	s.reset()
}

// NextExpected returns the command id the sequence admits while started.
// While not started, only FW_SYNC is admitted regardless of this value.
func (s *State) NextExpected() byte {
	return s.nextExpected
}

// Started reports whether a session is armed: FW_SYNC was admitted and
// no rejection, Break or Reset has happened since.
func (s *State) Started() bool {
	return s.started
}

// Broken reports whether the sequence is currently rejecting everything
// but FW_SYNC.
func (s *State) Broken() bool {
	return s.cmdSeqBroken
}
