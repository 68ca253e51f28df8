package web

import (
	"time"

	"gnss-clock/internal/clock"
	"gnss-clock/internal/receiver"
)

// Display is satisfied by *clock.Controller.
type Display interface {
	Mode() clock.Mode
	Settings() clock.Settings
	Shown() string
}

type Status struct {
	started  time.Time
	receiver func() receiver.Snapshot
	display  Display
}

// NewStatus takes either source as nil when it is not running.
func NewStatus(started time.Time, rx func() receiver.Snapshot, display Display) *Status {
	return &Status{started: started.UTC(), receiver: rx, display: display}
}

type StatusSnapshot struct {
	Service   string    `json:"service"`
	NowUTC    time.Time `json:"now_utc"`
	StartedAt time.Time `json:"started_at"`
	UptimeSec int64     `json:"uptime_sec"`

	Display      string `json:"display,omitempty"`
	Mode         string `json:"mode,omitempty"`
	TimeZoneSecs int32  `json:"time_zone_secs"`

	Receiver *receiver.Snapshot `json:"receiver,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	out := StatusSnapshot{
		Service:   "gnss-clock",
		NowUTC:    nowUTC,
		StartedAt: s.started,
		UptimeSec: int64(nowUTC.Sub(s.started) / time.Second),
	}
	if s.display != nil {
		out.Display = s.display.Shown()
		out.Mode = s.display.Mode().String()
		out.TimeZoneSecs = s.display.Settings().TimeZoneSecs
	}
	if s.receiver != nil {
		rx := s.receiver()
		out.Receiver = &rx
	}
	return out
}
