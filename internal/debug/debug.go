// Package debug provides gated diagnostic output for the tb CLI.
// Diagnostics go to stderr when verbose mode or the TB_DEBUG environment
// variable is set; progress messages go to stdout unless quiet mode is set.
package debug

import (
	"fmt"
	"io"
	"os"
)

var (
	envEnabled  = os.Getenv("TB_DEBUG") != ""
	verboseMode bool
	quietMode   bool

	// Swapped by tests to capture output.
	logOut  io.Writer = os.Stderr
	infoOut io.Writer = os.Stdout
)

// SetVerbose turns diagnostic logging on regardless of TB_DEBUG.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet suppresses progress output from PrintNormal.
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// Logf writes a diagnostic line when verbose mode or TB_DEBUG is set.
func Logf(format string, args ...interface{}) {
	if envEnabled || verboseMode {
		fmt.Fprintf(logOut, format, args...)
	}
}

// PrintNormal writes progress output unless quiet mode is set.
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Fprintf(infoOut, format, args...)
	}
}
