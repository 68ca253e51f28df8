// Package i2c talks to devices on a Linux /dev/i2c-N bus.
package i2c

import "fmt"

// MaxTransfer is the largest single message the kernel accepts in one
// I2C_RDWR segment.
const MaxTransfer = 8192

// Error wraps a failed transfer with the device it was addressed to.
type Error struct {
	Op   string
	Path string
	Addr uint16
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("i2c: %s %s@0x%02X: %v", e.Op, e.Path, e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
