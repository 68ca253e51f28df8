// Package gpio requests receiver and front-panel lines from the Linux GPIO
// character device.
package gpio

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type EdgeKind int

const (
	Rising EdgeKind = iota + 1
	Falling
)

func (k EdgeKind) String() string {
	switch k {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "unknown"
	}
}

// Edge is one detected level change. Timestamp is the kernel's monotonic
// event time when the line supplies it.
type Edge struct {
	Kind      EdgeKind
	Timestamp time.Duration
}

// Drain discards edges already queued on edges and returns how many there
// were. It never blocks.
func Drain(edges <-chan Edge) int {
	n := 0
	for {
		select {
		case <-edges:
			n++
		default:
			return n
		}
	}
}

type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// InputConfig selects bias and edge detection for an input line.
type InputConfig struct {
	Pull    Pull
	Rising  bool
	Falling bool
	// EdgeBuffer is the capacity of the Edges channel. Edges arriving while
	// it is full are dropped.
	EdgeBuffer int
}

const defaultEdgeBuffer = 4

const consumerName = "gnss-clock"

var devDir = "/dev"

// chipCandidates lists chips to probe when none is configured. Raspberry Pi
// header lines live on gpiochip0 on most kernels and gpiochip4 on early Pi 5
// images.
func chipCandidates(chip string) []string {
	if chip != "" {
		if !strings.ContainsRune(chip, '/') {
			chip = filepath.Join(devDir, chip)
		}
		return []string{chip}
	}
	out := []string{filepath.Join(devDir, "gpiochip0"), filepath.Join(devDir, "gpiochip4")}
	seen := map[string]bool{out[0]: true, out[1]: true}
	entries, _ := os.ReadDir(devDir)
	for _, e := range entries {
		p := filepath.Join(devDir, e.Name())
		if strings.HasPrefix(e.Name(), "gpiochip") && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// lineRef interprets a configured line as an offset ("17") or a name
// ("GPIO17").
func lineRef(line string) (offset int, name string) {
	if n, err := strconv.Atoi(line); err == nil && n >= 0 {
		return n, ""
	}
	return -1, line
}
