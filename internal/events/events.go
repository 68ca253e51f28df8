// Package events merges receiver events, front-panel buttons and the PPS
// line into a single stream for the display loop.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gnss-clock/internal/gpio"
	"gnss-clock/internal/receiver"
)

var ErrQueueClosed = errors.New("events: receiver queue closed")

const DefaultDebounce = 20 * time.Millisecond

type Kind int

const (
	DateTimeUpdated Kind = iota + 1
	DateTimeNextPulse
	Button3Pressed
	Button4Pressed
	Button5Pressed
	TimePulse
)

func (k Kind) String() string {
	switch k {
	case DateTimeUpdated:
		return "date_time_updated"
	case DateTimeNextPulse:
		return "date_time_next_pulse"
	case Button3Pressed:
		return "button3_pressed"
	case Button4Pressed:
		return "button4_pressed"
	case Button5Pressed:
		return "button5_pressed"
	case TimePulse:
		return "time_pulse"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     Kind
	DateTime time.Time
	// HasVelocity marks GroundSpeedMH as measured.
	HasVelocity   bool
	GroundSpeedMH uint32
}

// Input is an active-low button or the PPS line. gpio.Input and virtual
// buttons both satisfy it.
type Input interface {
	Edges() <-chan gpio.Edge
	Value() (int, error)
}

type Option func(*Aggregator)

func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.log = l.With().Str("component", "events").Logger() }
}

func WithDebounce(d time.Duration) Option {
	return func(a *Aggregator) { a.debounce = d }
}

// WithAfter replaces the timer used for debouncing.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(a *Aggregator) { a.after = after }
}

type Aggregator struct {
	queue   <-chan receiver.Event
	buttons [3]Input
	pps     Input

	debounce time.Duration
	after    func(time.Duration) <-chan time.Time
	log      zerolog.Logger

	pressed [3]chan struct{}
	pulses  chan struct{}

	mu        sync.RWMutex
	dateTime  time.Time
	haveDT    bool
	nextPulse time.Time
	haveNext  bool
}

// NewAggregator wires the five sources. Any input may be nil when the
// hardware lacks it.
func NewAggregator(queue <-chan receiver.Event, sw3, sw4, sw5, pps Input, opts ...Option) *Aggregator {
	a := &Aggregator{
		queue:    queue,
		buttons:  [3]Input{sw3, sw4, sw5},
		pps:      pps,
		debounce: DefaultDebounce,
		after:    time.After,
		log:      zerolog.Nop(),
		pulses:   make(chan struct{}),
	}
	for i := range a.pressed {
		a.pressed[i] = make(chan struct{})
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start launches the edge watchers. They stop when ctx is done.
func (a *Aggregator) Start(ctx context.Context) {
	for i, in := range a.buttons {
		if in == nil {
			continue
		}
		go a.watchButton(ctx, i, in)
	}
	if a.pps != nil {
		go a.watchPulse(ctx, a.pps)
	}
}

// Wait returns the first event from any source.
func (a *Aggregator) Wait(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-a.queue:
		if !ok {
			return Event{}, ErrQueueClosed
		}
		return a.fromReceiver(ev), nil
	case <-a.pressed[0]:
		return Event{Kind: Button3Pressed}, nil
	case <-a.pressed[1]:
		return Event{Kind: Button4Pressed}, nil
	case <-a.pressed[2]:
		return Event{Kind: Button5Pressed}, nil
	case <-a.pulses:
		a.mu.Lock()
		a.haveNext = false
		a.mu.Unlock()
		return Event{Kind: TimePulse}, nil
	}
}

func (a *Aggregator) fromReceiver(ev receiver.Event) Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Kind {
	case receiver.DateTimeNextPulse:
		a.nextPulse, a.haveNext = ev.DateTime, true
		return Event{Kind: DateTimeNextPulse, DateTime: ev.DateTime}
	case receiver.DateTimeAndVelocity:
		a.dateTime, a.haveDT = ev.DateTime, true
		return Event{Kind: DateTimeUpdated, DateTime: ev.DateTime, HasVelocity: true, GroundSpeedMH: ev.GroundSpeedMH}
	default:
		a.dateTime, a.haveDT = ev.DateTime, true
		return Event{Kind: DateTimeUpdated, DateTime: ev.DateTime}
	}
}

// DateTime is the last received receiver time.
func (a *Aggregator) DateTime() (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dateTime, a.haveDT
}

// NextPulse is the instant the next PPS edge marks, until that edge arrives.
func (a *Aggregator) NextPulse() (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nextPulse, a.haveNext
}

// watchButton reports a falling edge only when the line still reads low
// after the debounce interval.
func (a *Aggregator) watchButton(ctx context.Context, idx int, in Input) {
	log := a.log.With().Int("button", idx+3).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-in.Edges():
			if e.Kind != gpio.Falling {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-a.after(a.debounce):
		}
		v, err := in.Value()
		// Edges from while the contacts settled belong to this press.
		if n := gpio.Drain(in.Edges()); n > 0 {
			log.Debug().Int("edges", n).Msg("settle edges dropped")
		}
		if err != nil {
			log.Warn().Err(err).Msg("read button")
			continue
		}
		if v != 0 {
			log.Debug().Msg("bounce ignored")
			continue
		}

		select {
		case <-ctx.Done():
			return
		case a.pressed[idx] <- struct{}{}:
		}
	}
}

func (a *Aggregator) watchPulse(ctx context.Context, in Input) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-in.Edges():
			if e.Kind != gpio.Rising {
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case a.pulses <- struct{}{}:
		}
	}
}
