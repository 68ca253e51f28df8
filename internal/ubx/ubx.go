package ubx

import (
	"encoding/binary"
	"fmt"
)

// Message classes and IDs used by the clock.
const (
	ClassNAV = 0x01
	ClassACK = 0x05
	ClassCFG = 0x06

	IDNavStatus = 0x03
	IDNavVelNED = 0x12
	IDAckNak    = 0x00
	IDAckAck    = 0x01
	IDCfgValset = 0x8A
)

// Checksum computes the 8-bit Fletcher checksum over class, id, length and
// payload.
func Checksum(b []byte) (ckA, ckB byte) {
	for _, c := range b {
		ckA += c
		ckB += ckA
	}
	return ckA, ckB
}

// FillChecksum writes the checksum of frame[2:len-2] into the last two bytes.
// Frames shorter than 4 bytes are left untouched.
func FillChecksum(frame []byte) {
	if len(frame) < 4 {
		return
	}
	frame[len(frame)-2], frame[len(frame)-1] = Checksum(frame[classOffset : len(frame)-2])
}

// Encode builds a complete frame: preamble, class, id, length, payload, checksum.
func Encode(class, id byte, payload []byte) []byte {
	out := make([]byte, 0, MetadataSize+len(payload))
	out = append(out, Preamble1, Preamble2, class, id)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(payload)))
	out = append(out, payload...)
	out = append(out, 0, 0)
	FillChecksum(out)
	return out
}

// AckAck returns the ACK-ACK frame the receiver sends for an accepted
// (class, id) message.
func AckAck(class, id byte) []byte {
	return Encode(ClassACK, IDAckAck, []byte{class, id})
}

// NavVelNED is the subset of UBX-NAV-VELNED the clock uses.
type NavVelNED struct {
	ITOW           uint32 // ms
	GroundSpeedCMS uint32
}

// GroundSpeedMH converts ground speed to metres per hour.
func (v NavVelNED) GroundSpeedMH() uint32 {
	return v.GroundSpeedCMS * 60 * 60 / 100
}

const navVelNEDSize = 36

func DecodeNavVelNED(payload []byte) (NavVelNED, error) {
	if len(payload) != navVelNEDSize {
		return NavVelNED{}, fmt.Errorf("ubx: NAV-VELNED payload size %d, want %d", len(payload), navVelNEDSize)
	}
	return NavVelNED{
		ITOW:           binary.LittleEndian.Uint32(payload[0:4]),
		GroundSpeedCMS: binary.LittleEndian.Uint32(payload[20:24]),
	}, nil
}

// NavStatus is the subset of UBX-NAV-STATUS the clock uses.
type NavStatus struct {
	ITOW   uint32
	GPSFix byte
	Flags  byte
}

// FixOK reports the receiver's gpsFixOk flag.
func (s NavStatus) FixOK() bool { return s.Flags&0x01 != 0 }

const navStatusSize = 16

func DecodeNavStatus(payload []byte) (NavStatus, error) {
	if len(payload) != navStatusSize {
		return NavStatus{}, fmt.Errorf("ubx: NAV-STATUS payload size %d, want %d", len(payload), navStatusSize)
	}
	return NavStatus{
		ITOW:   binary.LittleEndian.Uint32(payload[0:4]),
		GPSFix: payload[4],
		Flags:  payload[5],
	}, nil
}
