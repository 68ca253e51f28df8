//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: unsupported OS (need linux)")

type Output struct{}

func OpenOutput(chip, line string, initial int) (*Output, error) { return nil, errUnsupported }

func (o *Output) SetValue(v int) error { return errUnsupported }
func (o *Output) Close() error         { return nil }

type Input struct{}

func OpenInput(chip, line string, cfg InputConfig) (*Input, error) { return nil, errUnsupported }

func (in *Input) Edges() <-chan Edge  { return nil }
func (in *Input) Value() (int, error) { return 0, errUnsupported }
func (in *Input) Close() error        { return nil }
