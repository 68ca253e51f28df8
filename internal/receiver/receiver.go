// Package receiver drives a u-blox MAX-M10S: power cycle, configure over
// I2C, then stream NMEA time from the UART as events.
package receiver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gnss-clock/internal/gpio"
	"gnss-clock/internal/serialport"
	"gnss-clock/internal/ubx"
)

// DefaultAddr is the receiver's 7-bit I2C (DDC) address.
const DefaultAddr = 0x42

var (
	ErrDeadline          = errors.New("receiver: deadline exceeded")
	ErrNotReady          = errors.New("receiver: tx-ready not asserted")
	ErrAckMismatch       = errors.New("receiver: unexpected acknowledgement")
	ErrTooManyReadErrors = errors.New("receiver: too many serial read errors")
	ErrSerialGone        = errors.New("receiver: serial port disconnected")
)

type State int

const (
	StatePowerCycle State = iota
	StateSetup
	StateReady
)

func (s State) String() string {
	switch s {
	case StatePowerCycle:
		return "PowerCycle"
	case StateSetup:
		return "Setup"
	case StateReady:
		return "Ready"
	default:
		return "Unknown"
	}
}

type EventKind int

const (
	DateTime EventKind = iota + 1
	DateTimeAndVelocity
	DateTimeNextPulse
)

func (k EventKind) String() string {
	switch k {
	case DateTime:
		return "date_time"
	case DateTimeAndVelocity:
		return "date_time_and_velocity"
	case DateTimeNextPulse:
		return "date_time_next_pulse"
	default:
		return "unknown"
	}
}

// Event is published once per RMC sentence carrying both date and time.
type Event struct {
	Kind     EventKind
	DateTime time.Time
	// GroundSpeedMH is set for DateTimeAndVelocity only.
	GroundSpeedMH uint32
}

type SerialPort interface {
	Read(p []byte) (int, error)
}

// Bus is the receiver's I2C device.
type Bus interface {
	Write(p []byte) error
	ReadRegU16(reg byte) (uint16, error)
	Read(p []byte) error
}

type OutputLine interface {
	SetValue(v int) error
}

type InputLine interface {
	Value() (int, error)
	Edges() <-chan gpio.Edge
}

type Config struct {
	// Baud is programmed into the receiver's UART1.
	Baud int

	ResetHold     time.Duration
	WriteRetry    time.Duration
	WriteDeadline time.Duration
	ReadyTimeout  time.Duration
	AckTimeout    time.Duration
	PollInterval  time.Duration

	LineBuffer  int
	FrameBuffer int
	// MaxReadErrors serial read failures are tolerated in Ready; one more
	// power cycles the receiver.
	MaxReadErrors int

	// Velocity enables NAV-VELNED / NAV-STATUS on the I2C port and attaches
	// ground speed to time events.
	Velocity bool
	// AnnounceNextPulse follows each time event with the instant the next
	// PPS edge marks.
	AnnounceNextPulse bool
}

func (c *Config) applyDefaults() {
	if c.Baud <= 0 {
		c.Baud = 115200
	}
	if c.ResetHold <= 0 {
		c.ResetHold = 500 * time.Millisecond
	}
	if c.WriteRetry <= 0 {
		c.WriteRetry = 100 * time.Millisecond
	}
	if c.WriteDeadline <= 0 {
		c.WriteDeadline = 5 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = time.Second
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	if c.LineBuffer <= 0 {
		c.LineBuffer = 512
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = 1024
	}
	if c.MaxReadErrors <= 0 {
		c.MaxReadErrors = 10
	}
}

type Snapshot struct {
	State       string    `json:"state"`
	Transitions uint64    `json:"transitions"`
	ChangedAt   time.Time `json:"changed_at,omitempty"`

	Events       uint64    `json:"events"`
	LastDateTime time.Time `json:"last_date_time,omitempty"`
	ReadErrors   int       `json:"read_errors"`

	HaveStatus bool  `json:"have_status"`
	GPSFix     uint8 `json:"gps_fix"`
	FixOK      bool  `json:"fix_ok"`

	HaveSpeed     bool   `json:"have_speed"`
	GroundSpeedMH uint32 `json:"ground_speed_mh"`

	LastError string `json:"last_error,omitempty"`
}

type Option func(*Receiver)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Receiver) { r.log = l.With().Str("component", "receiver").Logger() }
}

// WithClock replaces the wall clock and timer used for every delay and
// deadline.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(r *Receiver) {
		r.now = now
		r.after = after
	}
}

type Receiver struct {
	cfg    Config
	serial SerialPort
	bus    Bus
	reset  OutputLine
	ready  InputLine

	log   zerolog.Logger
	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	// disconnected classifies serial read errors that no retry can fix.
	disconnected func(error) bool

	setupFrame []byte
	ackFrame   []byte

	// Ready-state NAV data, only touched by the Run goroutine.
	speedMH   uint32
	haveSpeed bool

	mu   sync.RWMutex
	snap Snapshot
}

func New(cfg Config, serial SerialPort, bus Bus, reset OutputLine, ready InputLine, opts ...Option) *Receiver {
	cfg.applyDefaults()
	r := &Receiver{
		cfg:    cfg,
		serial: serial,
		bus:    bus,
		reset:  reset,
		ready:  ready,
		log:    zerolog.Nop(),
		now:    time.Now,
		after:  time.After,

		disconnected: serialport.IsDisconnect,
	}
	for _, o := range opts {
		o(r)
	}
	r.setupFrame = SetupFrame(cfg)
	r.ackFrame = ubx.AckAck(ubx.ClassCFG, ubx.IDCfgValset)
	r.snap.State = StatePowerCycle.String()
	return r
}

// SetupFrame is the CFG-VALSET written in Setup: TX-ready on EXTINT (active
// low) for the I2C port, UBX-only on I2C, NMEA-only on UART1, and the UART1
// baud rate.
func SetupFrame(cfg Config) []byte {
	cfg.applyDefaults()
	b := ubx.NewValset(ubx.LayerRAM).
		SetBool(ubx.KeyTxReadyEnabled, true).
		SetBool(ubx.KeyTxReadyPolarity, true).
		Set(ubx.KeyTxReadyPin, 5).
		Set(ubx.KeyTxReadyThreshold, 1).
		Set(ubx.KeyTxReadyInterface, 0).
		SetBool(ubx.KeyI2CInProtUBX, true).
		SetBool(ubx.KeyI2CInProtNMEA, false).
		SetBool(ubx.KeyI2COutProtUBX, true).
		SetBool(ubx.KeyI2COutProtNMEA, false).
		SetBool(ubx.KeyUART1InProtUBX, false).
		SetBool(ubx.KeyUART1InProtNMEA, true).
		SetBool(ubx.KeyUART1OutProtUBX, false).
		SetBool(ubx.KeyUART1OutProtNMEA, true).
		Set(ubx.KeyUART1Baudrate, uint64(cfg.Baud))
	if cfg.Velocity {
		b.Set(ubx.KeyMsgOutNavVelNEDI2C, 1).
			Set(ubx.KeyMsgOutNavStatusI2C, 1)
	}
	return b.Frame()
}

func (r *Receiver) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *Receiver) setState(update func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.snap)
}

func (r *Receiver) setErr(err error) {
	r.setState(func(s *Snapshot) { s.LastError = err.Error() })
}

// Run drives the state machine until ctx is done. Peripheral failures never
// end it; they send the receiver back to PowerCycle.
func (r *Receiver) Run(ctx context.Context, out chan<- Event) error {
	state := StatePowerCycle
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var next State
		var err error
		switch state {
		case StatePowerCycle:
			next, err = r.powerCycle(ctx)
		case StateSetup:
			next, err = r.setup(ctx)
		default:
			next, err = r.receive(ctx, out)
		}
		if err != nil {
			return err
		}

		if next != state {
			r.log.Info().Stringer("from", state).Stringer("to", next).Msg("state change")
			r.setState(func(s *Snapshot) {
				s.State = next.String()
				s.Transitions++
				s.ChangedAt = r.now()
			})
			state = next
		}
	}
}

func (r *Receiver) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.after(d):
		return nil
	}
}
