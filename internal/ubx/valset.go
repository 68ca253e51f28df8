package ubx

import "encoding/binary"

// Configuration keys (u-blox M10 interface description).
const (
	KeyTxReadyEnabled   uint32 = 0x10A20001
	KeyTxReadyPolarity  uint32 = 0x10A20002
	KeyTxReadyPin       uint32 = 0x20A20003
	KeyTxReadyThreshold uint32 = 0x30A20004
	KeyTxReadyInterface uint32 = 0x20A20005

	KeyI2CInProtUBX     uint32 = 0x10710001
	KeyI2CInProtNMEA    uint32 = 0x10710002
	KeyI2COutProtUBX    uint32 = 0x10720001
	KeyI2COutProtNMEA   uint32 = 0x10720002
	KeyUART1InProtUBX   uint32 = 0x10730001
	KeyUART1InProtNMEA  uint32 = 0x10730002
	KeyUART1OutProtUBX  uint32 = 0x10740001
	KeyUART1OutProtNMEA uint32 = 0x10740002

	KeyUART1Baudrate uint32 = 0x40520001

	KeyMsgOutNavStatusI2C uint32 = 0x2091001A
	KeyMsgOutNavVelNEDI2C uint32 = 0x20910042
)

// Layer bits for CFG-VALSET.
const (
	LayerRAM   byte = 0x01
	LayerBBR   byte = 0x02
	LayerFlash byte = 0x04
)

// ValsetBuilder accumulates key/value items for a UBX-CFG-VALSET message.
//
// The value width is taken from the key's storage size bits, so callers pass
// every value as uint64.
type ValsetBuilder struct {
	layers byte
	items  []byte
}

func NewValset(layers byte) *ValsetBuilder {
	return &ValsetBuilder{layers: layers}
}

// valueSize decodes bits 28..30 of a key: 1 bit, 1, 2, 4 or 8 bytes.
func valueSize(key uint32) int {
	switch (key >> 28) & 0x07 {
	case 0x01, 0x02:
		return 1
	case 0x03:
		return 2
	case 0x04:
		return 4
	case 0x05:
		return 8
	default:
		return 0
	}
}

// Set appends one item. Keys with an unknown size are ignored.
func (b *ValsetBuilder) Set(key uint32, value uint64) *ValsetBuilder {
	n := valueSize(key)
	if n == 0 {
		return b
	}
	b.items = binary.LittleEndian.AppendUint32(b.items, key)
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], value)
	b.items = append(b.items, v[:n]...)
	return b
}

// SetBool is Set with 0/1.
func (b *ValsetBuilder) SetBool(key uint32, on bool) *ValsetBuilder {
	if on {
		return b.Set(key, 1)
	}
	return b.Set(key, 0)
}

// Frame returns the encoded CFG-VALSET frame.
func (b *ValsetBuilder) Frame() []byte {
	payload := make([]byte, 0, 4+len(b.items))
	payload = append(payload, 0x00, b.layers, 0x00, 0x00) // version, layers, reserved
	payload = append(payload, b.items...)
	return Encode(ClassCFG, IDCfgValset, payload)
}
