package version

// Build information (injected via ldflags - must NOT have default values)
var (
	GitSHA    string
	BuildDate string
)

// Bootloader version triple, reported by the GET_BOOTLOADER_VERSION command.
const (
	Major = 1
	Minor = 0
	Patch = 0
)

// BuildMarker changes whenever the flash layout or wire format changes in a
// way that makes an old host tool incompatible with a new bootloader image.
const BuildMarker = "fota-bl-001"
