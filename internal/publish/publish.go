// Package publish forwards clock events to the network.
package publish

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"gnss-clock/internal/events"
)

// Sink receives every event the display loop sees.
type Sink interface {
	Publish(events.Event) error
	Close() error
}

// Message is the JSON form of an event on the wire.
type Message struct {
	Kind          string `json:"kind"`
	DateTime      string `json:"date_time,omitempty"`
	GroundSpeedMH uint32 `json:"ground_speed_mh,omitempty"`
	HasVelocity   bool   `json:"has_velocity,omitempty"`
}

func Encode(ev events.Event) ([]byte, error) {
	m := Message{
		Kind:          ev.Kind.String(),
		GroundSpeedMH: ev.GroundSpeedMH,
		HasVelocity:   ev.HasVelocity,
	}
	if !ev.DateTime.IsZero() {
		m.DateTime = ev.DateTime.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(m)
}

// Fanout publishes to every sink. A failing sink is logged and skipped.
type Fanout struct {
	sinks []Sink
	log   zerolog.Logger
}

func NewFanout(log zerolog.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, log: log.With().Str("component", "publish").Logger()}
}

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Publish(ev events.Event) error {
	for _, s := range f.sinks {
		if err := s.Publish(ev); err != nil {
			f.log.Warn().Err(err).Stringer("kind", ev.Kind).Msg("publish failed")
		}
	}
	return nil
}

func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
