package config

import "testing"

func TestDefaults(t *testing.T) {
	if got := BootSelectPolarity(); got != DefaultBootSelectPolarity {
		t.Errorf("BootSelectPolarity() = %q, want %q", got, DefaultBootSelectPolarity)
	}
	if got := GraceTicks(); got != DefaultGraceTicks {
		t.Errorf("GraceTicks() = %d, want %d", got, DefaultGraceTicks)
	}
	if got := WireSymmetricPreamble(); got != DefaultWireSymmetricPreamble {
		t.Errorf("WireSymmetricPreamble() = %v, want %v", got, DefaultWireSymmetricPreamble)
	}
	if got := StrictLength(); got != DefaultStrictLength {
		t.Errorf("StrictLength() = %v, want %v", got, DefaultStrictLength)
	}
}

func TestParseBoolOverride(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		def  bool
		want bool
	}{
		{"empty uses default true", "", true, true},
		{"empty uses default false", "", false, false},
		{"true override", "true\n", false, true},
		{"false override", " false ", true, false},
		{"garbage falls back to default", "nope", true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseBoolOverride(tc.raw, tc.def); got != tc.want {
				t.Errorf("parseBoolOverride(%q, %v) = %v, want %v", tc.raw, tc.def, got, tc.want)
			}
		})
	}
}
