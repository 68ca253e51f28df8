package ubx

import "encoding/binary"

// UBX frame layout:
//
//	0      1      2      3      4      5      6          6+N    7+N
//	+------+------+------+------+------+------+----------+------+------+
//	| preamble    | class| id   | length (N) | payload  | ck_a | ck_b |
//	+------+------+------+------+------+------+----------+------+------+
const (
	Preamble1 = 0xB5
	Preamble2 = 0x62

	classOffset   = 2
	idOffset      = 3
	lengthOffset  = 4
	payloadOffset = 6

	// MetadataSize is the number of non-payload bytes in a frame.
	MetadataSize = 8
)

// Frame is a checksum-validated UBX frame.
//
// Payload aliases the Stream's buffer. It is only valid until the next call to
// Commit, Consume, Pop or any write into Unused.
type Frame struct {
	Class   byte
	ID      byte
	Payload []byte
}

// Stream is a fixed-capacity byte window that extracts UBX frames lazily.
//
// Bytes are written into Unused() and then recorded with Commit. Pop returns at
// most one frame per call without copying it out of the window.
type Stream struct {
	buf   []byte
	begin int
	end   int
}

// NewStream returns a Stream holding at most size bytes.
//
// A window smaller than one frame header can never yield a frame; that is a
// programming error and panics.
func NewStream(size int) *Stream {
	if size < MetadataSize {
		panic("ubx: stream size must be >= 8")
	}
	return &Stream{buf: make([]byte, size)}
}

// Cap returns the window capacity.
func (s *Stream) Cap() int { return len(s.buf) }

// Commit records that n bytes were written at the start of Unused().
// Saturates at capacity.
func (s *Stream) Commit(n int) {
	s.end = min(len(s.buf), s.end+n)
}

// Consume discards n bytes from the head of the filled region.
// Saturates at the filled length.
func (s *Stream) Consume(n int) {
	s.begin = min(s.end, s.begin+n)
}

// Filled returns the received but unconsumed bytes.
func (s *Stream) Filled() []byte { return s.buf[s.begin:s.end] }

// Unused returns the free tail of the window.
func (s *Stream) Unused() []byte { return s.buf[s.end:] }

func (s *Stream) compact() {
	n := copy(s.buf, s.buf[s.begin:s.end])
	s.begin = 0
	s.end = n
}

// Pop extracts the next valid frame, if one is complete.
//
// Bytes that cannot start a frame are discarded one at a time. A complete frame
// is always consumed, so a frame with a bad checksum is dropped and scanning
// continues after it. The length field is trusted before the checksum is
// known: a corrupted length makes Pop skip that many bytes.
func (s *Stream) Pop() (Frame, bool) {
	if s.end == len(s.buf) {
		s.compact()
	}

	for s.begin < s.end {
		rest := s.buf[s.begin:s.end]
		if rest[0] != Preamble1 {
			s.begin++
			continue
		}
		if len(rest) == 1 {
			// Might be the first half of a preamble.
			return Frame{}, false
		}
		if rest[1] != Preamble2 {
			s.begin++
			continue
		}
		if len(rest) < MetadataSize {
			return Frame{}, false
		}

		size := int(binary.LittleEndian.Uint16(rest[lengthOffset:]))
		if len(rest) < MetadataSize+size {
			return Frame{}, false
		}

		frame := rest[:MetadataSize+size]
		s.begin += len(frame)

		ckA, ckB := Checksum(frame[classOffset : payloadOffset+size])
		if frame[len(frame)-2] != ckA || frame[len(frame)-1] != ckB {
			continue
		}

		return Frame{
			Class:   frame[classOffset],
			ID:      frame[idOffset],
			Payload: frame[payloadOffset : payloadOffset+size],
		}, true
	}
	return Frame{}, false
}
