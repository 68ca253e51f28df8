// Package clock is the display loop: it turns aggregated events into the
// text shown on the six-digit display.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gnss-clock/internal/events"
)

// NoTime is shown until the receiver has reported a time.
const NoTime = "--.--.--"

type Mode int

const (
	ModeTime Mode = iota
	ModeDate
	ModeTimeZone
)

func (m Mode) String() string {
	switch m {
	case ModeTime:
		return "time"
	case ModeDate:
		return "date"
	case ModeTimeZone:
		return "time_zone"
	default:
		return "unknown"
	}
}

func (m Mode) next() Mode {
	switch m {
	case ModeTime:
		return ModeDate
	case ModeDate:
		return ModeTimeZone
	default:
		return ModeTime
	}
}

type Renderer interface {
	Render(text string)
}

type RendererFunc func(text string)

func (f RendererFunc) Render(text string) { f(text) }

// Source is satisfied by *events.Aggregator.
type Source interface {
	Wait(ctx context.Context) (events.Event, error)
	DateTime() (time.Time, bool)
}

type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l.With().Str("component", "clock").Logger() }
}

// WithObserver sees every event before the controller handles it.
func WithObserver(fn func(events.Event)) Option {
	return func(c *Controller) { c.observe = fn }
}

type Controller struct {
	src   Source
	store SettingsStore
	out   Renderer
	log   zerolog.Logger

	observe func(events.Event)

	mu       sync.Mutex
	settings Settings
	mode     Mode
	shown    string
	// pending is the next second's text, shown on the next time pulse.
	pending string
}

// NewController loads the settings from store. A load error is returned
// together with a controller running on the defaults.
func NewController(src Source, store SettingsStore, out Renderer, opts ...Option) (*Controller, error) {
	c := &Controller{src: src, store: store, out: out, log: zerolog.Nop()}
	for _, o := range opts {
		o(c)
	}
	s, err := store.Load()
	if err != nil {
		s = Settings{}
	}
	c.settings = s
	return c, err
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Run cycles through the display modes on button 3 until ctx is done or
// the source fails.
func (c *Controller) Run(ctx context.Context) error {
	for {
		mode := c.Mode()
		c.log.Info().Stringer("mode", mode).Msg("display mode")

		var err error
		switch mode {
		case ModeTimeZone:
			err = c.runTimeZone(ctx)
		default:
			err = c.runClock(ctx, mode)
		}
		if err != nil {
			return err
		}

		c.mu.Lock()
		c.mode = c.mode.next()
		c.mu.Unlock()
	}
}

func (c *Controller) wait(ctx context.Context) (events.Event, error) {
	ev, err := c.src.Wait(ctx)
	if err != nil {
		return ev, err
	}
	if c.observe != nil {
		c.observe(ev)
	}
	return ev, nil
}

func (c *Controller) runClock(ctx context.Context, mode Mode) error {
	if t, ok := c.src.DateTime(); ok {
		c.show(mode, t)
	} else {
		c.pending = ""
		c.render(NoTime)
	}

	for {
		ev, err := c.wait(ctx)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case events.DateTimeUpdated:
			c.show(mode, ev.DateTime)
		case events.TimePulse:
			if c.pending != "" {
				c.render(c.pending)
			}
		case events.Button3Pressed:
			return nil
		}
	}
}

// show renders t in the configured zone and prepares the following second.
func (c *Controller) show(mode Mode, t time.Time) {
	local := t.In(c.Settings().Location())
	c.render(format(mode, local))
	c.pending = format(mode, local.Add(time.Second))
}

func (c *Controller) runTimeZone(ctx context.Context) error {
	saved := c.Settings()
	tz := saved.TimeZoneSecs
	c.render(FormatTimeZone(tz))

	for {
		ev, err := c.wait(ctx)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case events.Button3Pressed:
			if tz != saved.TimeZoneSecs {
				c.apply(Settings{TimeZoneSecs: tz})
			}
			return nil
		case events.Button4Pressed:
			tz = min(tz+TimeZoneStep, MaxTimeZoneSecs)
		case events.Button5Pressed:
			tz = max(tz-TimeZoneStep, -MaxTimeZoneSecs)
		default:
			continue
		}
		c.render(FormatTimeZone(tz))
	}
}

func (c *Controller) apply(s Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	if err := c.store.Save(s); err != nil {
		c.log.Warn().Err(err).Msg("save settings")
		return
	}
	c.log.Info().Int32("time_zone_secs", s.TimeZoneSecs).Msg("settings saved")
}

func (c *Controller) render(text string) {
	c.mu.Lock()
	if text == c.shown {
		c.mu.Unlock()
		return
	}
	c.shown = text
	c.mu.Unlock()
	c.out.Render(text)
}

// Shown is the text last sent to the renderer.
func (c *Controller) Shown() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shown
}

func format(mode Mode, t time.Time) string {
	if mode == ModeDate {
		return t.Format("02.01.06")
	}
	return t.Format("15.04.05")
}

// FormatTimeZone renders an offset as " SHH.MM" where S is '-' for zones
// west of UTC.
func FormatTimeZone(secs int32) string {
	sign := ' '
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf(" %c%02d.%02d", sign, secs/3600, secs/60%60)
}
