//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Output is a requested output line.
type Output struct {
	name string
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenOutput requests line on chip (or the first chip that has it when chip
// is empty) as an output driven to initial.
func OpenOutput(chip, line string, initial int) (*Output, error) {
	c, l, err := request(chip, line, gpiocdev.AsOutput(initial))
	if err != nil {
		return nil, err
	}
	return &Output{name: line, chip: c, line: l}, nil
}

func (o *Output) SetValue(v int) error {
	if o == nil || o.line == nil {
		return fmt.Errorf("gpio: output %q not open", o.lineName())
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("gpio: set %q: %w", o.name, err)
	}
	return nil
}

func (o *Output) Close() error {
	if o == nil || o.line == nil {
		return nil
	}
	err := o.line.Close()
	o.line = nil
	if o.chip != nil {
		_ = o.chip.Close()
		o.chip = nil
	}
	return err
}

func (o *Output) lineName() string {
	if o == nil {
		return ""
	}
	return o.name
}

// Input is a requested input line with optional edge delivery.
type Input struct {
	name  string
	chip  *gpiocdev.Chip
	line  *gpiocdev.Line
	edges chan Edge

	closeOnce sync.Once
}

func OpenInput(chip, line string, cfg InputConfig) (*Input, error) {
	if cfg.EdgeBuffer <= 0 {
		cfg.EdgeBuffer = defaultEdgeBuffer
	}
	in := &Input{name: line, edges: make(chan Edge, cfg.EdgeBuffer)}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
	switch cfg.Pull {
	case PullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case PullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	switch {
	case cfg.Rising && cfg.Falling:
		opts = append(opts, gpiocdev.WithBothEdges)
	case cfg.Rising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case cfg.Falling:
		opts = append(opts, gpiocdev.WithFallingEdge)
	}
	if cfg.Rising || cfg.Falling {
		opts = append(opts, gpiocdev.WithEventHandler(in.handle))
	}

	c, l, err := request(chip, line, opts...)
	if err != nil {
		return nil, err
	}
	in.chip, in.line = c, l
	return in, nil
}

func (in *Input) handle(evt gpiocdev.LineEvent) {
	e := Edge{Timestamp: evt.Timestamp}
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		e.Kind = Rising
	case gpiocdev.LineEventFallingEdge:
		e.Kind = Falling
	default:
		return
	}
	select {
	case in.edges <- e:
	default:
	}
}

// Edges delivers detected edges. The channel is never closed.
func (in *Input) Edges() <-chan Edge { return in.edges }

func (in *Input) Value() (int, error) {
	if in.line == nil {
		return 0, fmt.Errorf("gpio: input %q not open", in.name)
	}
	v, err := in.line.Value()
	if err != nil {
		return 0, fmt.Errorf("gpio: read %q: %w", in.name, err)
	}
	return v, nil
}

func (in *Input) Close() error {
	var err error
	in.closeOnce.Do(func() {
		if in.line != nil {
			err = in.line.Close()
		}
		if in.chip != nil {
			_ = in.chip.Close()
		}
	})
	return err
}

func request(chip, line string, opts ...gpiocdev.LineReqOption) (*gpiocdev.Chip, *gpiocdev.Line, error) {
	if line == "" {
		return nil, nil, errors.New("gpio: empty line")
	}
	offset, name := lineRef(line)
	opts = append(opts, gpiocdev.WithConsumer(consumerName))

	var lastErr error
	for _, path := range chipCandidates(chip) {
		c, err := gpiocdev.NewChip(path)
		if err != nil {
			lastErr = err
			continue
		}
		off := offset
		if name != "" {
			off, err = c.FindLine(name)
			if err != nil {
				_ = c.Close()
				lastErr = err
				continue
			}
		}
		l, err := c.RequestLine(off, opts...)
		if err != nil {
			_ = c.Close()
			lastErr = err
			continue
		}
		return c, l, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no gpio chip found")
	}
	return nil, nil, fmt.Errorf("gpio: line %q not found (or busy): %w", line, lastErr)
}
