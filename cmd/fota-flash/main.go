// Command fota-flash is the host-side counterpart to cmd/bootloader: it
// opens a real serial port, drives the update protocol's strict command
// sequence, and streams a firmware image in 16-byte packets. Its flag
// layout follows the reference console tool's subcommand style
// (flags first, then a positional subcommand and its arguments).
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

const (
	defaultBaud    = 115200
	defaultTimeout = 5 * time.Second
	defaultRetries = 3
)

func main() {
	port := flag.String("port", "", "Serial device path, e.g. /dev/ttyACM0 (required)")
	baud := flag.Int("baud", defaultBaud, "Baud rate")
	timeout := flag.Duration("timeout", defaultTimeout, "Per-packet response timeout")
	retries := flag.Int("retries", defaultRetries, "Max retransmits per packet before giving up")
	deviceID := flag.Uint("device-id", 0x4201, "16-bit device id sent for the target to verify against its own")
	dryRun := flag.Bool("dry-run", false, "Exercise the protocol against an in-memory target instead of a real port")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}
	cmd := flag.Arg(0)

	switch cmd {
	case "flash":
		if flag.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "usage: fota-flash --port <dev> flash <firmware.bin>")
			os.Exit(1)
		}
		if err := runFlash(*port, flag.Arg(1), *baud, *timeout, *retries, uint16(*deviceID), *dryRun); err != nil {
			fmt.Fprintf(os.Stderr, "flash failed: %v\n", err)
			os.Exit(1)
		}
	case "info":
		if err := runInfo(*port, *baud, *timeout, *dryRun); err != nil {
			fmt.Fprintf(os.Stderr, "info failed: %v\n", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: fota-flash --port <dev> [flags] <flash|info>")
	flag.PrintDefaults()
}
