package ubx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// ACK-ACK for CFG-VALSET.
	frame1 = []byte{0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, 0x06, 0x8A, 0x98, 0xC1}
	frame2 = []byte{0xB5, 0x62, 0xAB, 0xCD, 0x04, 0x00, 0xDE, 0xAD, 0xBE, 0xEF, 0xB4, 0xF5}
)

func feed(s *Stream, b []byte) {
	n := copy(s.Unused(), b)
	s.Commit(n)
}

func requireFrame1(t *testing.T, f Frame, ok bool) {
	t.Helper()
	require.True(t, ok)
	require.Equal(t, byte(0x05), f.Class)
	require.Equal(t, byte(0x01), f.ID)
	require.Equal(t, []byte{0x06, 0x8A}, f.Payload)
}

func TestStream_Empty(t *testing.T) {
	s := NewStream(16)
	require.Empty(t, s.Filled())
	require.Len(t, s.Unused(), 16)
	_, ok := s.Pop()
	require.False(t, ok)
}

func TestNewStream_PanicsWhenTooSmall(t *testing.T) {
	require.Panics(t, func() { NewStream(MetadataSize - 1) })
}

func TestStream_CommitAndPop(t *testing.T) {
	s := NewStream(32)
	feed(s, frame1)
	require.Equal(t, frame1, s.Filled())
	require.Len(t, s.Unused(), 22)

	f, ok := s.Pop()
	requireFrame1(t, f, ok)
	require.Empty(t, s.Filled())
	require.Len(t, s.Unused(), 22)

	_, ok = s.Pop()
	require.False(t, ok)

	feed(s, frame2)
	feed(s, frame1)
	require.Len(t, s.Unused(), 0)

	f, ok = s.Pop()
	require.True(t, ok)
	require.Equal(t, byte(0xAB), f.Class)
	require.Equal(t, byte(0xCD), f.ID)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, f.Payload)
	require.Equal(t, frame1, s.Filled())
	require.Len(t, s.Unused(), 10)

	f, ok = s.Pop()
	requireFrame1(t, f, ok)
	require.Empty(t, s.Filled())
}

func TestStream_PopWithoutFrameDoesNotMutate(t *testing.T) {
	s := NewStream(32)
	feed(s, frame1[:5])
	for i := 0; i < 3; i++ {
		_, ok := s.Pop()
		require.False(t, ok)
		require.Equal(t, frame1[:5], s.Filled())
		require.Len(t, s.Unused(), 27)
	}
}

func TestStream_SplitDelivery(t *testing.T) {
	for split := 1; split < len(frame1); split++ {
		s := NewStream(32)
		feed(s, frame1[:split])
		_, ok := s.Pop()
		require.False(t, ok, "split=%d", split)

		feed(s, frame1[split:])
		f, ok := s.Pop()
		requireFrame1(t, f, ok)

		_, ok = s.Pop()
		require.False(t, ok, "frame returned twice, split=%d", split)
	}
}

func TestStream_SplitAcrossManyCommits(t *testing.T) {
	s := NewStream(32)
	for _, b := range frame2 {
		_, ok := s.Pop()
		require.False(t, ok)
		feed(s, []byte{b})
	}
	f, ok := s.Pop()
	require.True(t, ok)
	require.Equal(t, byte(0xAB), f.Class)
}

func TestStream_ResyncSkipsGarbage(t *testing.T) {
	s := NewStream(32)
	feed(s, []byte("abcd"))
	_, ok := s.Pop()
	require.False(t, ok)
	require.Empty(t, s.Filled())
	require.Len(t, s.Unused(), 28)

	// Garbage that contains a lone first preamble byte.
	feed(s, []byte{'a', 0xB5, 'c', 0x62})
	feed(s, frame1)
	f, ok := s.Pop()
	requireFrame1(t, f, ok)
	require.Empty(t, s.Filled())
	require.Len(t, s.Unused(), 14)
}

func TestStream_TrailingPreambleByteIsKept(t *testing.T) {
	s := NewStream(32)
	feed(s, []byte{'x', 'y', 0xB5})
	_, ok := s.Pop()
	require.False(t, ok)
	require.Equal(t, []byte{0xB5}, s.Filled())

	feed(s, frame1[1:])
	f, ok := s.Pop()
	requireFrame1(t, f, ok)
}

func TestStream_ChecksumMismatchConsumesFrame(t *testing.T) {
	bad := append([]byte(nil), frame1...)
	bad[len(bad)-1] ^= 0xFF

	s := NewStream(32)
	feed(s, bad)
	_, ok := s.Pop()
	require.False(t, ok)
	require.Empty(t, s.Filled())

	// The next good frame behind a bad one is still found by the same Pop.
	feed(s, bad)
	feed(s, frame1)
	f, ok := s.Pop()
	requireFrame1(t, f, ok)
	require.Empty(t, s.Filled())
}

// A corrupted length field is trusted: the stream skips the bogus frame length
// even if a valid frame sits inside it.
func TestStream_CorruptedLengthSkipsFollowingData(t *testing.T) {
	bad := append([]byte(nil), frame2...)
	bad[lengthOffset] = 0x06 // claims 6 payload bytes, really 4

	s := NewStream(32)
	feed(s, bad)
	feed(s, frame1)
	// The bogus frame swallows frame1's preamble; the rest is garbage.
	_, ok := s.Pop()
	require.False(t, ok)
	require.Empty(t, s.Filled())
}

func TestStream_Consume(t *testing.T) {
	s := NewStream(16)
	feed(s, []byte("abcdef\r\n"))
	s.Consume(3)
	require.Equal(t, []byte("def\r\n"), s.Filled())
	require.Len(t, s.Unused(), 8)

	s.Consume(1234)
	require.Empty(t, s.Filled())
	require.Len(t, s.Unused(), 8)
}

func TestStream_CommitSaturates(t *testing.T) {
	s := NewStream(16)
	s.Commit(100)
	require.Len(t, s.Filled(), 16)
	require.Empty(t, s.Unused())
}

func TestStream_AvoidNoRoom(t *testing.T) {
	s := NewStream(16)
	feed(s, frame2)
	require.Len(t, s.Unused(), 4)

	feed(s, frame1[:4])
	require.Empty(t, s.Unused())

	f, ok := s.Pop()
	require.True(t, ok)
	require.Equal(t, byte(0xAB), f.Class)
	require.Equal(t, frame1[:4], s.Filled())
	require.Empty(t, s.Unused())

	_, ok = s.Pop()
	require.False(t, ok)
	require.Equal(t, frame1[:4], s.Filled())
	require.NotEmpty(t, s.Unused())
}

func TestStream_CompactionKeepsPartialFrame(t *testing.T) {
	full := Encode(0x01, 0x02, []byte{1, 2, 3, 4, 5, 6}) // 14 bytes
	s := NewStream(16)
	feed(s, []byte("garbag"))
	feed(s, full[:10])
	require.Empty(t, s.Unused())

	_, ok := s.Pop()
	require.False(t, ok)
	require.Equal(t, full[:10], s.Filled())

	// The next Pop compacts; the partial frame must survive.
	_, ok = s.Pop()
	require.False(t, ok)
	require.Equal(t, full[:10], s.Filled())
	require.Len(t, s.Unused(), 6)

	feed(s, full[10:])
	f, ok := s.Pop()
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, f.Payload)
}
