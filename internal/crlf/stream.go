// Package crlf extracts "\r\n"-terminated lines from a fixed-capacity byte
// window without copying them.
package crlf

// Stream is a fixed-capacity byte window.
//
// Bytes are written into Unused() and recorded with Commit. Lines returned by
// Pop alias the window and stay valid only until the next Commit, Consume, Pop
// or write into Unused.
type Stream struct {
	buf   []byte
	begin int
	end   int
}

// NewStream returns a Stream holding at most size bytes. A window that cannot
// hold a bare "\r\n" is a programming error and panics.
func NewStream(size int) *Stream {
	if size < 2 {
		panic("crlf: stream size must be >= 2")
	}
	return &Stream{buf: make([]byte, size)}
}

func (s *Stream) Cap() int { return len(s.buf) }

// Commit records n bytes written at the start of Unused(). Saturates at
// capacity.
func (s *Stream) Commit(n int) {
	s.end = min(len(s.buf), s.end+n)
}

// Consume drops n bytes from the head. Saturates at the filled length.
func (s *Stream) Consume(n int) {
	s.begin = min(s.end, s.begin+n)
}

func (s *Stream) Filled() []byte { return s.buf[s.begin:s.end] }

func (s *Stream) Unused() []byte { return s.buf[s.end:] }

// Full reports whether the window holds capacity bytes.
func (s *Stream) Full() bool { return s.end-s.begin == len(s.buf) }

// Pop returns the next line including its "\r\n" terminator.
//
// When no terminator is present and the window has no free tail, the filled
// bytes are moved to the front so the caller can keep reading.
func (s *Stream) Pop() ([]byte, bool) {
	for i := s.begin + 1; i < s.end; i++ {
		if s.buf[i-1] == '\r' && s.buf[i] == '\n' {
			line := s.buf[s.begin : i+1]
			s.begin = i + 1
			return line, true
		}
	}
	if s.end == len(s.buf) {
		n := copy(s.buf, s.buf[s.begin:s.end])
		s.begin = 0
		s.end = n
	}
	return nil, false
}
