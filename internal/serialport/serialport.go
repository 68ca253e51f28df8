// Package serialport opens the receiver's UART.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// UbloxVID is the USB vendor ID of u-blox receivers and evaluation boards.
const UbloxVID = "1546"

type Config struct {
	// Device is the tty path. Empty or "auto" picks one with AutoDetect.
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

var (
	openFn      = serial.Open
	listPortsFn = enumerator.GetDetailedPortsList
)

// Open opens the port 8N1. Reads return (0, nil) after ReadTimeout without
// data so callers can check for cancellation.
func Open(cfg Config) (serial.Port, string, error) {
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	dev := cfg.Device
	if dev == "" || dev == "auto" {
		var err error
		dev, err = AutoDetect()
		if err != nil {
			return nil, "", err
		}
	}

	port, err := openFn(dev, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, "", fmt.Errorf("serialport: open %s: %w", dev, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, "", fmt.Errorf("serialport: set read timeout on %s: %w", dev, err)
	}
	return port, dev, nil
}

// AutoDetect returns a u-blox USB port when one is attached, otherwise the
// first on-board UART.
func AutoDetect() (string, error) {
	ports, err := listPortsFn()
	if err != nil {
		return "", fmt.Errorf("serialport: enumerate ports: %w", err)
	}
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, UbloxVID) {
			return p.Name, nil
		}
	}

	var uarts []string
	for _, p := range ports {
		if p.IsUSB {
			continue
		}
		if isBoardUART(p.Name) {
			uarts = append(uarts, p.Name)
		}
	}
	if len(uarts) == 0 {
		return "", errors.New("serialport: no receiver port found")
	}
	sort.Strings(uarts)
	return uarts[0], nil
}

func isBoardUART(name string) bool {
	for _, prefix := range []string{"/dev/serial", "/dev/ttyAMA", "/dev/ttyS"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// IsDisconnect reports whether err means the device went away rather than
// a transient read failure.
func IsDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		}
		return false
	}
	return false
}
