// Package nmea decodes the few NMEA 0183 sentences the clock needs.
//
// Only RMC (time and date) and TXT (receiver text) are decoded. Every other
// well-formed sentence is reported as Unsupported with its type code.
package nmea

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Message is one decoded sentence.
type Message struct {
	Talker [2]byte
	// Data is *RMC, *TXT or Unsupported.
	Data Data
}

func (m Message) TalkerID() string { return string(m.Talker[:]) }

// Data is the decoded body of a sentence.
type Data interface {
	SentenceType() string
}

// Unsupported is a sentence whose type is recognised as such but not decoded.
type Unsupported struct {
	Type [3]byte
}

func (u Unsupported) SentenceType() string { return string(u.Type[:]) }

// Checksum is the XOR of every byte in payload (the bytes between '$' and '*').
func Checksum(payload []byte) byte {
	var ck byte
	for _, b := range payload {
		ck ^= b
	}
	return ck
}

// Parse decodes a single line including its "\r\n" terminator.
//
// The checksum is verified only when the line carries one ("*HH" right before
// the terminator).
func Parse(line []byte) (Message, error) {
	body, err := unwrap(line)
	if err != nil {
		return Message{}, err
	}
	if !utf8.Valid(body) {
		return Message{}, fmt.Errorf("%w at offset %d", ErrInvalidUTF8, invalidOffset(body))
	}
	return message(string(body))
}

func unwrap(line []byte) ([]byte, error) {
	if len(line) < 3 || line[0] != '$' || !bytes.HasSuffix(line, []byte("\r\n")) {
		return nil, ErrInvalidFrame
	}
	inner := line[1 : len(line)-2]

	n := len(inner)
	if n >= 3 && inner[n-3] == '*' && isHex(inner[n-2]) && isHex(inner[n-1]) {
		expected := unhex(inner[n-2])<<4 | unhex(inner[n-1])
		payload := inner[:n-3]
		if actual := Checksum(payload); actual != expected {
			return nil, &ChecksumMismatchError{Expected: expected, Actual: actual}
		}
		return payload, nil
	}
	return inner, nil
}

func message(s string) (Message, error) {
	if len(s) < 6 || s[5] != ',' {
		return Message{}, &ParseError{Field: "type", Err: errors.New("expected talker, type and ','")}
	}
	msg := Message{Talker: [2]byte{s[0], s[1]}}
	typ := [3]byte{s[2], s[3], s[4]}
	rest := s[6:]

	switch string(typ[:]) {
	case "RMC":
		rmc, err := parseRMC(rest)
		if err != nil {
			return Message{}, err
		}
		msg.Data = rmc
	case "TXT":
		txt, err := parseTXT(rest)
		if err != nil {
			return Message{}, err
		}
		msg.Data = txt
	default:
		msg.Data = Unsupported{Type: typ}
	}
	return msg, nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(b)
}
