package nmea

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a UTC time of day as sent by the receiver.
type TimeOfDay struct {
	Hour, Minute, Second int
	Nanosecond           int
}

// Date is a calendar date. Two-digit years are taken to be in 2000..2099.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// RMC is the recommended minimum sentence. Time and Date are nil when the
// receiver left the field empty (no fix yet).
type RMC struct {
	Time *TimeOfDay
	Date *Date
}

func (*RMC) SentenceType() string { return "RMC" }

// DateTime combines Date and Time into a UTC instant.
func (r *RMC) DateTime() (time.Time, bool) {
	if r == nil || r.Time == nil || r.Date == nil {
		return time.Time{}, false
	}
	return time.Date(r.Date.Year, r.Date.Month, r.Date.Day,
		r.Time.Hour, r.Time.Minute, r.Time.Second, r.Time.Nanosecond, time.UTC), true
}

// RMC field layout after the type: time, status, lat, N/S, lon, E/W, speed,
// course, date, then at least one more field.
const (
	rmcTime = 0
	rmcDate = 8
	// the date must be followed by a ','
	rmcMinFields = 10
)

func parseRMC(rest string) (*RMC, error) {
	f := strings.Split(rest, ",")
	if len(f) < rmcMinFields {
		return nil, &ParseError{Type: "RMC", Field: "fields", Err: errors.New("too few fields")}
	}

	out := &RMC{}
	if f[rmcTime] != "" {
		t, err := parseTimeHMS(f[rmcTime])
		if err != nil {
			return nil, &ParseError{Type: "RMC", Field: "time", Err: err}
		}
		out.Time = &t
	}
	if f[rmcDate] != "" {
		d, err := parseDateDMY(f[rmcDate])
		if err != nil {
			return nil, &ParseError{Type: "RMC", Field: "date", Err: err}
		}
		out.Date = &d
	}
	return out, nil
}

// parseTimeHMS parses HHMMSS with an optional fraction of any length. The
// fraction is reduced to nanosecond resolution.
func parseTimeHMS(s string) (TimeOfDay, error) {
	if len(s) < 6 || !allDigits(s[:6]) {
		return TimeOfDay{}, errors.New("expected HHMMSS")
	}
	h, _ := strconv.Atoi(s[0:2])
	m, _ := strconv.Atoi(s[2:4])
	sec, _ := strconv.Atoi(s[4:6])
	if h > 23 || m > 59 || sec > 59 {
		return TimeOfDay{}, errors.New("invalid time")
	}

	var ns int
	if frac := s[6:]; frac != "" {
		if frac[0] != '.' || len(frac) < 2 || !allDigits(frac[1:]) {
			return TimeOfDay{}, errors.New("invalid fraction")
		}
		digits := frac[1:]
		if len(digits) > 9 {
			digits = digits[:9]
		}
		ns, _ = strconv.Atoi(digits)
		for i := len(digits); i < 9; i++ {
			ns *= 10
		}
	}
	return TimeOfDay{Hour: h, Minute: m, Second: sec, Nanosecond: ns}, nil
}

func parseDateDMY(s string) (Date, error) {
	if len(s) != 6 || !allDigits(s) {
		return Date{}, errors.New("expected DDMMYY")
	}
	d, _ := strconv.Atoi(s[0:2])
	m, _ := strconv.Atoi(s[2:4])
	y, _ := strconv.Atoi(s[4:6])
	y += 2000

	if m < 1 || m > 12 || d < 1 {
		return Date{}, errors.New("invalid date")
	}
	// time.Date normalises out-of-range days; a mismatch means the day
	// does not exist in that month.
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return Date{}, errors.New("invalid date")
	}
	return Date{Year: y, Month: time.Month(m), Day: d}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
