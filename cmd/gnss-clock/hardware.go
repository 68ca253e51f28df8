package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"gnss-clock/internal/config"
	"gnss-clock/internal/events"
	"gnss-clock/internal/gpio"
	"gnss-clock/internal/i2c"
	"gnss-clock/internal/serialport"
)

type hardware struct {
	serial serial.Port
	bus    *i2c.Bus
	dev    *i2c.Dev
	reset  *gpio.Output
	ready  *gpio.Input
	pps    *gpio.Input
	sw     [3]*gpio.Input

	closers []func() error
}

func openHardware(cfg config.Config, log zerolog.Logger) (hw *hardware, err error) {
	hw = &hardware{}
	defer func() {
		if err != nil {
			_ = hw.Close()
			hw = nil
		}
	}()

	port, dev, err := serialport.Open(serialport.Config{
		Device:      cfg.Receiver.SerialDevice,
		Baud:        cfg.Receiver.Baud,
		ReadTimeout: cfg.Receiver.ReadTimeout,
	})
	if err != nil {
		return hw, err
	}
	hw.serial = port
	hw.closers = append(hw.closers, port.Close)
	log.Info().Str("device", dev).Int("baud", cfg.Receiver.Baud).Msg("serial open")

	bus, err := i2c.Open(cfg.Receiver.I2CBus)
	if err != nil {
		return hw, err
	}
	hw.bus = bus
	hw.dev = bus.Dev(cfg.Receiver.Address)
	hw.closers = append(hw.closers, bus.Close)

	g := cfg.GPIO
	// Reset is active low; hold it until the receiver powers the chip up.
	hw.reset, err = gpio.OpenOutput(g.Chip, g.Reset, 0)
	if err != nil {
		return hw, fmt.Errorf("gpio.reset: %w", err)
	}
	hw.closers = append(hw.closers, hw.reset.Close)

	hw.ready, err = gpio.OpenInput(g.Chip, g.Ready, gpio.InputConfig{Pull: gpio.PullUp, Falling: true})
	if err != nil {
		return hw, fmt.Errorf("gpio.ready: %w", err)
	}
	hw.closers = append(hw.closers, hw.ready.Close)

	if g.PPS != "" {
		hw.pps, err = gpio.OpenInput(g.Chip, g.PPS, gpio.InputConfig{Pull: gpio.PullDown, Rising: true})
		if err != nil {
			return hw, fmt.Errorf("gpio.pps: %w", err)
		}
		hw.closers = append(hw.closers, hw.pps.Close)
	}

	for i, line := range []string{g.SW3, g.SW4, g.SW5} {
		if line == "" {
			continue
		}
		in, err := gpio.OpenInput(g.Chip, line, gpio.InputConfig{Pull: gpio.PullUp, Falling: true})
		if err != nil {
			return hw, fmt.Errorf("gpio.sw%d: %w", i+3, err)
		}
		hw.sw[i] = in
		hw.closers = append(hw.closers, in.Close)
	}
	return hw, nil
}

// buttons returns nil interfaces for unwired buttons.
func (hw *hardware) buttons() [3]events.Input {
	var out [3]events.Input
	for i, in := range hw.sw {
		if in != nil {
			out[i] = in
		}
	}
	return out
}

func (hw *hardware) ppsInput() events.Input {
	if hw.pps == nil {
		return nil
	}
	return hw.pps
}

func (hw *hardware) Close() error {
	var errs []error
	for i := len(hw.closers) - 1; i >= 0; i-- {
		if err := hw.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	hw.closers = nil
	return errors.Join(errs...)
}
