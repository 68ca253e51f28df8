package tui

import (
	"sync"
	"time"

	"gnss-clock/internal/gpio"
)

// DefaultHold is how long a virtual press keeps the line low. It must
// outlast the aggregator's debounce.
const DefaultHold = 100 * time.Millisecond

// VirtualButton is an active-low button driven from the keyboard.
type VirtualButton struct {
	edges chan gpio.Edge
	hold  time.Duration

	mu    sync.Mutex
	low   bool
	timer *time.Timer
	gen   uint64
}

func NewVirtualButton(hold time.Duration) *VirtualButton {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &VirtualButton{edges: make(chan gpio.Edge, 4), hold: hold}
}

func (b *VirtualButton) Edges() <-chan gpio.Edge { return b.edges }

func (b *VirtualButton) Value() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.low {
		return 0, nil
	}
	return 1, nil
}

// Press pulls the line low for the hold time. A press while already held
// extends the hold without a second edge. Once the hold timer has fired
// the press starts over with a fresh edge, even if that release is still
// waiting for the lock.
func (b *VirtualButton) Press() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil && b.timer.Stop() {
		b.timer.Reset(b.hold)
		return
	}
	b.gen++
	gen := b.gen
	b.low = true
	b.timer = time.AfterFunc(b.hold, func() { b.release(gen) })
	select {
	case b.edges <- gpio.Edge{Kind: gpio.Falling}:
	default:
	}
}

// release ends the hold started by press gen. Later presses own the line.
func (b *VirtualButton) release(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return
	}
	b.low = false
	b.timer = nil
}
