//go:build linux

package i2c

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Transfers go through I2C_RDWR so a register write and the following read
// share one transaction (repeated start). The u-blox DDC port needs that for
// the length and data stream registers.

const (
	flagRead  = 0x0001
	ioctlRdwr = 0x0707
)

type segment struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type rdwrData struct {
	segs  uintptr
	nsegs uint32
}

// Bus is an opened I2C adapter (e.g. /dev/i2c-1). Transfers are serialised.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func Open(path string) (*Bus, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	return &Bus{f: f, path: path}, nil
}

func (b *Bus) Path() string { return b.path }

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}

func (b *Bus) Dev(addr uint16) *Dev {
	if b == nil {
		return nil
	}
	return &Dev{bus: b, addr: addr}
}

// Dev is a device at a 7-bit address.
type Dev struct {
	bus  *Bus
	addr uint16
}

func (d *Dev) Addr() uint16 { return d.addr }

func (d *Dev) Write(p []byte) error { return d.tx("write", p, nil) }

func (d *Dev) Read(p []byte) error { return d.tx("read", nil, p) }

func (d *Dev) WriteRead(w, r []byte) error { return d.tx("write-read", w, r) }

func (d *Dev) ReadReg(reg byte, dst []byte) error {
	return d.WriteRead([]byte{reg}, dst)
}

// ReadRegU16 reads a big-endian 16-bit register pair starting at reg.
func (d *Dev) ReadRegU16(reg byte) (uint16, error) {
	var b [2]byte
	if err := d.ReadReg(reg, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *Dev) tx(op string, w, r []byte) error {
	if d == nil || d.bus == nil {
		return errors.New("i2c: device is nil")
	}
	if d.addr == 0 || d.addr > 0x7F {
		return fmt.Errorf("i2c: invalid addr 0x%X", d.addr)
	}
	if len(w) > MaxTransfer || len(r) > MaxTransfer {
		return &Error{Op: op, Path: d.bus.path, Addr: d.addr, Err: fmt.Errorf("transfer exceeds %d bytes", MaxTransfer)}
	}

	segs := make([]segment, 0, 2)
	if len(w) > 0 {
		segs = append(segs, segment{addr: d.addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		segs = append(segs, segment{addr: d.addr, flags: flagRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	if len(segs) == 0 {
		return nil
	}

	d.bus.mu.Lock()
	defer d.bus.mu.Unlock()
	if d.bus.f == nil {
		return &Error{Op: op, Path: d.bus.path, Addr: d.addr, Err: os.ErrClosed}
	}
	data := rdwrData{segs: uintptr(unsafe.Pointer(&segs[0])), nsegs: uint32(len(segs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.bus.f.Fd(), uintptr(ioctlRdwr), uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return &Error{Op: op, Path: d.bus.path, Addr: d.addr, Err: errno}
	}
	return nil
}
