package nmea

import (
	"strconv"
	"strings"
)

// TXT is a text transmission, typically receiver boot banners and warnings.
type TXT struct {
	// NumMsg is the total number of sentences in this transmission.
	NumMsg uint8
	Num    uint8
	ID     uint8
	// Text is everything after the third field, commas included.
	Text string
}

func (*TXT) SentenceType() string { return "TXT" }

func parseTXT(rest string) (*TXT, error) {
	f := strings.SplitN(rest, ",", 4)
	if len(f) < 4 {
		return nil, &ParseError{Type: "TXT", Field: "fields", Err: strconv.ErrSyntax}
	}
	var nums [3]uint8
	for i, name := range []string{"num_msg", "num", "id"} {
		if !allDigits(f[i]) {
			return nil, &ParseError{Type: "TXT", Field: name, Err: strconv.ErrSyntax}
		}
		v, err := strconv.ParseUint(f[i], 10, 8)
		if err != nil {
			return nil, &ParseError{Type: "TXT", Field: name, Err: err}
		}
		nums[i] = uint8(v)
	}
	return &TXT{NumMsg: nums[0], Num: nums[1], ID: nums[2], Text: f[3]}, nil
}
