package receiver

import (
	"bytes"
	"context"
	"fmt"

	"gnss-clock/internal/gpio"
)

// DDC register holding the number of bytes pending in the receiver's output
// buffer (big-endian, 0xFD..0xFE). Reads continue into the data stream at
// 0xFF.
const regAvailable = 0xFD

func (r *Receiver) powerCycle(ctx context.Context) (State, error) {
	if err := r.reset.SetValue(0); err != nil {
		r.log.Warn().Err(err).Msg("assert reset")
		r.setErr(err)
	}
	if err := r.sleep(ctx, r.cfg.ResetHold); err != nil {
		return StatePowerCycle, err
	}
	if err := r.reset.SetValue(1); err != nil {
		r.log.Warn().Err(err).Msg("release reset")
		r.setErr(err)
	}
	return StateSetup, nil
}

func (r *Receiver) setup(ctx context.Context) (State, error) {
	start := r.now()
	for {
		err := r.bus.Write(r.setupFrame)
		if err == nil {
			break
		}
		r.log.Debug().Err(err).Msg("configuration write")
		if r.now().Sub(start) > r.cfg.WriteDeadline {
			r.log.Warn().Err(err).Msg("I2C bus or device not ready")
			r.setErr(fmt.Errorf("%w: configuration write: %v", ErrDeadline, err))
			return StatePowerCycle, nil
		}
		if err := r.sleep(ctx, r.cfg.WriteRetry); err != nil {
			return StateSetup, err
		}
	}

	ok, err := r.waitReady(ctx)
	if err != nil {
		return StateSetup, err
	}
	if !ok {
		r.log.Warn().Msg("TX-ready is not being asserted")
		r.setErr(ErrNotReady)
		return StatePowerCycle, nil
	}

	n, err := r.awaitAvailable(ctx, len(r.ackFrame))
	if err != nil {
		if ctx.Err() != nil {
			return StateSetup, ctx.Err()
		}
		r.log.Warn().Err(err).Msg("waiting for acknowledgement")
		r.setErr(err)
		return StatePowerCycle, nil
	}
	r.log.Debug().Int("available", n).Msg("acknowledgement pending")

	buf := make([]byte, len(r.ackFrame))
	if err := r.bus.Read(buf); err != nil {
		r.log.Warn().Err(err).Msg("I2C operation failed")
		r.setErr(err)
		return StatePowerCycle, nil
	}
	if !bytes.Equal(buf, r.ackFrame) {
		r.log.Warn().Hex("got", buf).Hex("want", r.ackFrame).Msg("unexpected data")
		r.setErr(ErrAckMismatch)
		return StatePowerCycle, nil
	}
	return StateReady, nil
}

// waitReady waits for TX-ready to go low, either seen on a poll or
// delivered as a falling edge.
func (r *Receiver) waitReady(ctx context.Context) (bool, error) {
	// Edges queued before the reset pulse belong to the previous session.
	gpio.Drain(r.ready.Edges())

	start := r.now()
	for {
		v, err := r.ready.Value()
		if err != nil {
			r.log.Debug().Err(err).Msg("read tx-ready")
		} else if v == 0 {
			return true, nil
		}
		if r.now().Sub(start) >= r.cfg.ReadyTimeout {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case e := <-r.ready.Edges():
			if e.Kind == gpio.Falling {
				return true, nil
			}
		case <-r.after(r.cfg.PollInterval):
		}
	}
}

// awaitAvailable polls the length register until at least want bytes are
// pending or AckTimeout passes.
func (r *Receiver) awaitAvailable(ctx context.Context, want int) (int, error) {
	start := r.now()
	for {
		n, err := r.available()
		if err != nil {
			return 0, err
		}
		if n >= want {
			return n, nil
		}
		if r.now().Sub(start) >= r.cfg.AckTimeout {
			return n, fmt.Errorf("%w: %d of %d bytes pending", ErrDeadline, n, want)
		}
		if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
			return 0, err
		}
	}
}

func (r *Receiver) available() (int, error) {
	n, err := r.bus.ReadRegU16(regAvailable)
	return int(n), err
}
