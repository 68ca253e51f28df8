package nmea

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrame means the line is not "$...\r\n".
	ErrInvalidFrame = errors.New("nmea: not an NMEA message")
	ErrInvalidUTF8  = errors.New("nmea: invalid utf-8")
)

type ChecksumMismatchError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("nmea: checksum mismatch, expected: %02X, actual: %02X", e.Expected, e.Actual)
}

// ParseError reports a field of a recognised sentence that could not be
// decoded.
type ParseError struct {
	Type  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("nmea: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("nmea: %s %s: %v", e.Type, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
