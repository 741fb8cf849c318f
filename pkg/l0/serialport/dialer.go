// Package serialport opens the serial connection to a motor controller.
package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate of the controller UART.
const DefaultBaudRate = 115200

var (
	// ErrNoPortName indicates Dialer.PortName is empty.
	ErrNoPortName = errors.New("serialport: port name is required")
	// ErrNilContext indicates Dial is called with a nil context.
	ErrNilContext = errors.New("serialport: context is nil")
)

// DefaultMode returns 115200 8N1.
func DefaultMode() *serial.Mode {
	return &serial.Mode{
		BaudRate: DefaultBaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
}

// Dialer opens a serial port.
type Dialer struct {
	PortName string
	// Mode defaults to DefaultMode when nil.
	Mode *serial.Mode
}

// Dial opens the port.
func (d *Dialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if d.PortName == "" {
		return nil, ErrNoPortName
	}
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mode := d.Mode
	if mode == nil {
		mode = DefaultMode()
	}
	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", d.PortName, err)
	}
	return port, nil
}

// ListPorts lists the serial ports of the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
