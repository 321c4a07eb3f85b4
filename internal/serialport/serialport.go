// Package serialport opens the UART devices used by pathfinder peripherals:
// the range finder, the GPS receiver and the haptic microcontroller.
package serialport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of serial.Port used by peripherals. Tests substitute
// in-memory implementations.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
}

// Options describes the serial connection parameters.
type Options struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Normalize validates the options and applies defaults (9600 8N1) for any
// unset values.
func (o Options) Normalize() (Options, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	return opts, nil
}

// Mode converts the options into the serial.Mode required by go.bug.st/serial.
func (o Options) Mode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}

	return mode, nil
}

// Open opens the device at path.
func Open(path string, opts Options) (Port, error) {
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return port, nil
}
