package receiver

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"gnss-clock/internal/gpio"
)

// fakeClock advances by d on every after(d) and fires immediately, so
// deadlines play out without real waiting.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) after(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.t = c.t.Add(d)
	t := c.t
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- t
	return ch
}

type fakeBus struct {
	writeErr error
	writes   [][]byte
	// pending is what the receiver has queued for the host.
	pending []byte
	readErr error
}

func (b *fakeBus) Write(p []byte) error {
	b.writes = append(b.writes, append([]byte(nil), p...))
	return b.writeErr
}

func (b *fakeBus) ReadRegU16(reg byte) (uint16, error) {
	if reg != regAvailable {
		return 0, errors.New("unexpected register access")
	}
	return uint16(len(b.pending)), nil
}

func (b *fakeBus) Read(p []byte) error {
	if b.readErr != nil {
		return b.readErr
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return nil
}

type fakeOutput struct {
	values []int
	onSet  func(values []int)
}

func (o *fakeOutput) SetValue(v int) error {
	o.values = append(o.values, v)
	if o.onSet != nil {
		o.onSet(o.values)
	}
	return nil
}

type fakeInput struct {
	value int
	edges chan gpio.Edge
}

func (in *fakeInput) Value() (int, error)     { return in.value, nil }
func (in *fakeInput) Edges() <-chan gpio.Edge { return in.edges }

type serialRead struct {
	data string
	err  error
}

type fakeSerial struct {
	reads   []serialRead
	calls   int
	onEmpty func()
}

func (s *fakeSerial) Read(p []byte) (int, error) {
	s.calls++
	if len(s.reads) == 0 {
		if s.onEmpty != nil {
			s.onEmpty()
		}
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	r := s.reads[0]
	n := copy(p, r.data)
	if n < len(r.data) {
		s.reads[0].data = r.data[n:]
	} else {
		s.reads = s.reads[1:]
	}
	return n, r.err
}

// cancelOnSecondReset ends Run when the receiver starts another power cycle.
func cancelOnSecondReset(cancel func()) func([]int) {
	return func(values []int) {
		lows := 0
		for _, v := range values {
			if v == 0 {
				lows++
			}
		}
		if lows == 2 {
			cancel()
		}
	}
}

type logEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) logger() zerolog.Logger { return zerolog.New(b) }

func (b *logBuffer) transitions(t *testing.T) []string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e logEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		if e.Message == "state change" {
			out = append(out, e.From+"->"+e.To)
		}
	}
	return out
}
