// Package config surfaces the bootloader's build-time decisions as
// embedded text files, so a board variant can override them without
// touching Go source.
package config

import (
	_ "embed"
	"strconv"
	"strings"
)

// Defaults, used unless the corresponding .text file holds a non-empty
// override.
const (
	DefaultBootSelectPolarity    = "pressed"
	DefaultGraceTicks            = 3
	DefaultWireSymmetricPreamble = false
	DefaultStrictLength          = false
)

// Overrides (empty file = use default).
var (
	//go:embed boot_select_polarity.text
	bootSelectPolarityOverride string

	//go:embed grace_ticks.text
	graceTicksOverride string

	//go:embed wire_symmetric_preamble.text
	wireSymmetricPreambleOverride string

	//go:embed strict_length.text
	strictLengthOverride string
)

// BootSelectPolarity reports which electrical level of the boot-select
// input enters update mode: "pressed" (active, pulled to ground) or
// "released" (idle, pulled up). Set via boot_select_polarity.text.
func BootSelectPolarity() string {
	if v := strings.TrimSpace(bootSelectPolarityOverride); v == "pressed" || v == "released" {
		return v
	}
	return DefaultBootSelectPolarity
}

// GraceTicks returns the number of timer ticks the startup sequence waits
// before sampling the boot-select input, set via grace_ticks.text.
func GraceTicks() int {
	if v := strings.TrimSpace(graceTicksOverride); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return DefaultGraceTicks
}

// WireSymmetricPreamble reports whether outbound response packets carry
// the same 4-byte preamble as inbound request packets. Set via
// wire_symmetric_preamble.text ("true"/"false").
func WireSymmetricPreamble() bool {
	return parseBoolOverride(wireSymmetricPreambleOverride, DefaultWireSymmetricPreamble)
}

// StrictLength reports whether the packet decoder rejects a declared
// length greater than the payload capacity immediately, instead of
// relying on the CRC check to catch it. Set via strict_length.text
// ("true"/"false").
func StrictLength() bool {
	return parseBoolOverride(strictLengthOverride, DefaultStrictLength)
}

func parseBoolOverride(raw string, def bool) bool {
	v := strings.TrimSpace(raw)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
