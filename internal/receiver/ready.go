package receiver

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"gnss-clock/internal/crlf"
	"gnss-clock/internal/nmea"
	"gnss-clock/internal/ubx"
)

// receive is the Ready state: lines from the UART become events on out. It
// only returns to request a power cycle or when ctx is done.
func (r *Receiver) receive(ctx context.Context, out chan<- Event) (State, error) {
	lines := crlf.NewStream(r.cfg.LineBuffer)
	var frames *ubx.Stream
	if r.cfg.Velocity {
		frames = ubx.NewStream(r.cfg.FrameBuffer)
	}
	r.haveSpeed = false

	// Successful reads do not reset the count.
	readErrors := 0
	for {
		if err := ctx.Err(); err != nil {
			return StateReady, err
		}
		if readErrors > r.cfg.MaxReadErrors {
			r.log.Warn().Int("errors", readErrors).Msg("too many UART errors")
			r.setErr(ErrTooManyReadErrors)
			return StatePowerCycle, nil
		}

		if frames != nil {
			r.drainBus(frames)
		}

		n, err := r.serial.Read(lines.Unused())
		if err != nil && r.disconnected(err) {
			r.log.Warn().Err(err).Msg("UART disconnected")
			r.setErr(fmt.Errorf("%w: %v", ErrSerialGone, err))
			return StatePowerCycle, nil
		}
		if err != nil {
			readErrors++
			r.log.Warn().Err(err).Msg("error while reading UART")
			r.setState(func(s *Snapshot) {
				s.ReadErrors = readErrors
				s.LastError = err.Error()
			})
			continue
		}
		lines.Commit(n)

		for {
			line, ok := lines.Pop()
			if !ok {
				break
			}
			if err := r.handleLine(ctx, line, out); err != nil {
				return StateReady, err
			}
		}

		if lines.Full() {
			r.log.Warn().Int("size", lines.Cap()).Msg("line buffer full without a line, discarding")
			lines.Consume(lines.Cap())
		}
	}
}

func (r *Receiver) handleLine(ctx context.Context, line []byte, out chan<- Event) error {
	r.log.Debug().Bytes("line", bytes.TrimRight(line, "\r\n")).Msg("nmea")
	msg, err := nmea.Parse(line)
	if err != nil {
		r.log.Warn().Err(err).Bytes("line", bytes.TrimRight(line, "\r\n")).Msg("discarding sentence")
		return nil
	}
	rmc, ok := msg.Data.(*nmea.RMC)
	if !ok {
		return nil
	}
	t, ok := rmc.DateTime()
	if !ok {
		return nil
	}

	ev := Event{Kind: DateTime, DateTime: t}
	if r.cfg.Velocity && r.haveSpeed {
		ev.Kind = DateTimeAndVelocity
		ev.GroundSpeedMH = r.speedMH
	}
	if err := r.publish(ctx, out, ev); err != nil {
		return err
	}
	if r.cfg.AnnounceNextPulse {
		next := Event{Kind: DateTimeNextPulse, DateTime: t.Truncate(time.Second).Add(time.Second)}
		if err := r.publish(ctx, out, next); err != nil {
			return err
		}
	}
	return nil
}

// publish blocks until the consumer takes ev. Events are never dropped.
func (r *Receiver) publish(ctx context.Context, out chan<- Event, ev Event) error {
	select {
	case out <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.setState(func(s *Snapshot) {
		s.Events++
		s.LastDateTime = ev.DateTime
	})
	return nil
}

// drainBus moves whatever the receiver has queued on the I2C port into
// frames while TX-ready is asserted, then decodes complete NAV frames.
func (r *Receiver) drainBus(frames *ubx.Stream) {
	if v, err := r.ready.Value(); err != nil || v != 0 {
		return
	}
	n, err := r.available()
	if err != nil {
		r.log.Debug().Err(err).Msg("read pending length")
		return
	}
	if n == 0 {
		return
	}

	room := frames.Unused()
	if len(room) == 0 {
		r.log.Warn().Int("size", frames.Cap()).Msg("frame buffer full without a frame, discarding")
		frames.Consume(frames.Cap())
		// Pop on the emptied window rewinds it to the start.
		frames.Pop()
		room = frames.Unused()
	}
	if n > len(room) {
		n = len(room)
	}
	if err := r.bus.Read(room[:n]); err != nil {
		r.log.Debug().Err(err).Msg("read data stream")
		return
	}
	frames.Commit(n)

	for {
		f, ok := frames.Pop()
		if !ok {
			return
		}
		r.handleFrame(f)
	}
}

func (r *Receiver) handleFrame(f ubx.Frame) {
	switch {
	case f.Class == ubx.ClassNAV && f.ID == ubx.IDNavVelNED:
		v, err := ubx.DecodeNavVelNED(f.Payload)
		if err != nil {
			r.log.Warn().Err(err).Msg("NAV-VELNED")
			return
		}
		r.speedMH = v.GroundSpeedMH()
		r.haveSpeed = true
		r.setState(func(s *Snapshot) {
			s.HaveSpeed = true
			s.GroundSpeedMH = r.speedMH
		})
	case f.Class == ubx.ClassNAV && f.ID == ubx.IDNavStatus:
		st, err := ubx.DecodeNavStatus(f.Payload)
		if err != nil {
			r.log.Warn().Err(err).Msg("NAV-STATUS")
			return
		}
		r.setState(func(s *Snapshot) {
			s.HaveStatus = true
			s.GPSFix = st.GPSFix
			s.FixOK = st.FixOK()
		})
	default:
		r.log.Debug().Str("frame", fmt.Sprintf("%02X-%02X", f.Class, f.ID)).Int("len", len(f.Payload)).Msg("ignoring ubx frame")
	}
}
