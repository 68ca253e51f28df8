package main

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"gnss-clock/internal/clock"
	"gnss-clock/internal/config"
	"gnss-clock/internal/events"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("warn", &buf)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	require.Equal(t, zerolog.InfoLevel, newLogger("bogus", &buf).GetLevel())
	require.Equal(t, zerolog.DebugLevel, newLogger("debug", &buf).GetLevel())
}

func TestReceiverConfig(t *testing.T) {
	rc := receiverConfig(config.ReceiverConfig{
		Baud:              38400,
		WriteDeadline:     3 * time.Second,
		LineBuffer:        256,
		MaxReadErrors:     4,
		Velocity:          true,
		AnnounceNextPulse: true,
	})
	require.Equal(t, 38400, rc.Baud)
	require.Equal(t, 3*time.Second, rc.WriteDeadline)
	require.Equal(t, 256, rc.LineBuffer)
	require.Equal(t, 4, rc.MaxReadErrors)
	require.True(t, rc.Velocity)
	require.True(t, rc.AnnounceNextPulse)
}

func TestSettingsStore(t *testing.T) {
	require.IsType(t, &clock.MemoryStore{}, settingsStore(config.ClockConfig{}, zerolog.Nop()))

	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := settingsStore(config.ClockConfig{SettingsPath: path}, zerolog.Nop())
	fs, ok := s.(*clock.FileStore)
	require.True(t, ok)
	require.Equal(t, path, fs.Path)
}

func TestOpenSinks_None(t *testing.T) {
	f, err := openSinks(config.PublishConfig{}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 0, f.Len())

	p := newPublisher(f, zerolog.Nop())
	p.offer(events.Event{Kind: events.TimePulse})
	p.run(context.Background())
}

func TestPublisher_ForwardsToUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	f, err := openSinks(config.PublishConfig{UDPDest: pc.LocalAddr().String()}, zerolog.Nop())
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 1, f.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newPublisher(f, zerolog.Nop())
	go p.run(ctx)
	p.offer(events.Event{Kind: events.Button3Pressed})

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"button3_pressed"}`, string(buf[:n]))
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	f, err := openSinks(config.PublishConfig{UDPDest: "127.0.0.1:9"}, zerolog.Nop())
	require.NoError(t, err)
	defer f.Close()

	p := newPublisher(f, zerolog.Nop())
	for i := 0; i < cap(p.ch)+5; i++ {
		p.offer(events.Event{Kind: events.TimePulse})
	}
	require.Len(t, p.ch, cap(p.ch))
}

func TestHardwareButtons_NilWhenUnwired(t *testing.T) {
	hw := &hardware{}
	for _, b := range hw.buttons() {
		require.Nil(t, b)
	}
	require.Nil(t, hw.ppsInput())
	require.NoError(t, hw.Close())
}
