// Package debug provides global debug logging flags
package debug

import "fmt"

// Enabled controls whether debug logging is active
var Enabled bool

// Cycles controls whether per-cycle control loop traces are shown.
// These are very verbose (15 lines per second); use --debug-cycles.
var Cycles bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// Logln prints a message with newline only if debug mode is enabled
func Logln(msg string) {
	if Enabled {
		fmt.Println(msg)
	}
}

// CycleLog prints a message only if cycle tracing is enabled
func CycleLog(format string, args ...interface{}) {
	if Cycles {
		fmt.Printf(format, args...)
	}
}
