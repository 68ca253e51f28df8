package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"gnss-clock/internal/clock"
	"gnss-clock/internal/config"
	"gnss-clock/internal/events"
	"gnss-clock/internal/publish"
	"gnss-clock/internal/receiver"
	"gnss-clock/internal/tui"
	"gnss-clock/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./gnss-clock.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The terminal belongs to the display when the TUI is on.
	var out io.Writer = os.Stderr
	if cfg.TUI.Enable {
		f, err := os.OpenFile("gnss-clock.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	log := newLogger(cfg.Log.Level, out)

	log.Info().Str("config", configPath).Msg("gnss-clock starting")
	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("gnss-clock stopped")
		os.Exit(1)
	}
	log.Info().Msg("gnss-clock stopping")
}

func newLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func receiverConfig(c config.ReceiverConfig) receiver.Config {
	return receiver.Config{
		Baud:              c.Baud,
		ResetHold:         c.ResetHold,
		WriteRetry:        c.WriteRetry,
		WriteDeadline:     c.WriteDeadline,
		ReadyTimeout:      c.ReadyTimeout,
		AckTimeout:        c.AckTimeout,
		LineBuffer:        c.LineBuffer,
		FrameBuffer:       c.FrameBuffer,
		MaxReadErrors:     c.MaxReadErrors,
		Velocity:          c.Velocity,
		AnnounceNextPulse: c.AnnounceNextPulse,
	}
}

func settingsStore(cfg config.ClockConfig, log zerolog.Logger) clock.SettingsStore {
	if cfg.SettingsPath == "" {
		return &clock.MemoryStore{}
	}
	return clock.NewFileStore(cfg.SettingsPath, log)
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	hw, err := openHardware(cfg, log)
	if err != nil {
		return err
	}
	defer hw.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sinks, err := openSinks(cfg.Publish, log)
	if err != nil {
		return err
	}
	defer sinks.Close()

	rx := receiver.New(receiverConfig(cfg.Receiver), hw.serial, hw.dev, hw.reset, hw.ready, receiver.WithLogger(log))
	queue := make(chan receiver.Event, 16)

	var (
		program  *tea.Program
		renderer clock.Renderer
	)
	buttons := hw.buttons()
	if cfg.TUI.Enable {
		// Keys stand in for any button without a wired line.
		var virtual [3]*tui.VirtualButton
		for i, b := range buttons {
			if b == nil {
				virtual[i] = tui.NewVirtualButton(0)
				buttons[i] = virtual[i]
			}
		}
		program = tui.NewProgram(ctx, tui.NewModel(virtual[0], virtual[1], virtual[2], rx.Snapshot))
		renderer = tui.NewRenderer(program)
	} else {
		display := log.With().Str("component", "display").Logger()
		renderer = clock.RendererFunc(func(text string) {
			display.Info().Str("text", text).Msg("display")
		})
	}

	agg := events.NewAggregator(queue, buttons[0], buttons[1], buttons[2], hw.ppsInput(),
		events.WithLogger(log), events.WithDebounce(cfg.GPIO.Debounce))

	pub := newPublisher(sinks, log)
	ctrl, err := clock.NewController(agg, settingsStore(cfg.Clock, log), renderer,
		clock.WithLogger(log), clock.WithObserver(pub.offer))
	if err != nil {
		log.Warn().Err(err).Msg("settings load failed, using defaults")
	}

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	fail := func(err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		errOnce.Do(func() { runErr = err })
		cancel()
	}

	if cfg.Web.Listen != "" {
		status := web.NewStatus(time.Now(), rx.Snapshot, ctrl)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail(web.Serve(ctx, cfg.Web.Listen, status))
		}()
		log.Info().Str("listen", cfg.Web.Listen).Msg("status api enabled")
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		fail(rx.Run(ctx, queue))
	}()
	go func() {
		defer wg.Done()
		pub.run(ctx)
	}()
	go func() {
		defer wg.Done()
		fail(ctrl.Run(ctx))
	}()
	agg.Start(ctx)

	if program != nil {
		fail(tui.Run(ctx, program))
		// Quitting the display ends the program.
		cancel()
	}

	<-ctx.Done()
	wg.Wait()
	return runErr
}

// publisher decouples network sinks from the display loop.
type publisher struct {
	sink publish.Sink
	ch   chan events.Event
	log  zerolog.Logger
}

func newPublisher(sink *publish.Fanout, log zerolog.Logger) *publisher {
	p := &publisher{log: log.With().Str("component", "publish").Logger()}
	if sink != nil && sink.Len() > 0 {
		p.sink = sink
		p.ch = make(chan events.Event, 32)
	}
	return p
}

func (p *publisher) offer(ev events.Event) {
	if p.ch == nil {
		return
	}
	select {
	case p.ch <- ev:
	default:
		p.log.Debug().Stringer("kind", ev.Kind).Msg("publish queue full, dropping")
	}
}

func (p *publisher) run(ctx context.Context) {
	if p.ch == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.ch:
			_ = p.sink.Publish(ev)
		}
	}
}

func openSinks(cfg config.PublishConfig, log zerolog.Logger) (*publish.Fanout, error) {
	var sinks []publish.Sink
	if cfg.UDPDest != "" {
		s, err := publish.NewUDPSink(cfg.UDPDest)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
		log.Info().Str("dest", cfg.UDPDest).Msg("udp publishing enabled")
	}
	if cfg.MQTTURL != "" {
		s, err := publish.NewMQTTSink(cfg.MQTTURL, cfg.TopicPrefix)
		if err != nil {
			for _, open := range sinks {
				_ = open.Close()
			}
			return nil, err
		}
		sinks = append(sinks, s)
		log.Info().Str("prefix", cfg.TopicPrefix).Msg("mqtt publishing enabled")
	}
	return publish.NewFanout(log, sinks...), nil
}
