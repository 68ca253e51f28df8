package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Receiver ReceiverConfig `yaml:"receiver"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Clock    ClockConfig    `yaml:"clock"`
	Publish  PublishConfig  `yaml:"publish"`
	TUI      TUIConfig      `yaml:"tui"`
	Web      WebConfig      `yaml:"web"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ReceiverConfig struct {
	// SerialDevice is a tty path or "auto".
	SerialDevice string `yaml:"serial_device"`
	Baud         int    `yaml:"baud"`
	I2CBus       string `yaml:"i2c_bus"`
	Address      uint16 `yaml:"address"`

	ResetHold     time.Duration `yaml:"reset_hold"`
	WriteRetry    time.Duration `yaml:"write_retry"`
	WriteDeadline time.Duration `yaml:"write_deadline"`
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`
	AckTimeout    time.Duration `yaml:"ack_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`

	LineBuffer    int `yaml:"line_buffer"`
	FrameBuffer   int `yaml:"frame_buffer"`
	MaxReadErrors int `yaml:"max_read_errors"`

	Velocity          bool `yaml:"velocity"`
	AnnounceNextPulse bool `yaml:"announce_next_pulse"`
}

// GPIOConfig names lines by offset ("17") or label ("GPIO17"). Empty
// button lines disable that button.
type GPIOConfig struct {
	Chip     string        `yaml:"chip"`
	Reset    string        `yaml:"reset"`
	Ready    string        `yaml:"ready"`
	PPS      string        `yaml:"pps"`
	SW3      string        `yaml:"sw3"`
	SW4      string        `yaml:"sw4"`
	SW5      string        `yaml:"sw5"`
	Debounce time.Duration `yaml:"debounce"`
}

type ClockConfig struct {
	// SettingsPath is where the time zone survives restarts. Empty keeps
	// it in memory.
	SettingsPath string `yaml:"settings_path"`
}

type PublishConfig struct {
	UDPDest     string `yaml:"udp_dest"`
	MQTTURL     string `yaml:"mqtt_url"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type TUIConfig struct {
	Enable bool `yaml:"enable"`
}

type WebConfig struct {
	// Listen is host:port for the status API. Empty disables it.
	Listen string `yaml:"listen"`
}

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.apply(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) apply() error {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf("log.level must be one of %s", strings.Join(logLevels, ", "))
	}

	r := &cfg.Receiver
	if r.I2CBus == "" {
		return fmt.Errorf("receiver.i2c_bus is required")
	}
	if r.SerialDevice == "" {
		r.SerialDevice = "auto"
	}
	if r.Baud == 0 {
		r.Baud = 115200
	}
	if r.Baud < 0 {
		return fmt.Errorf("receiver.baud must be > 0")
	}
	if r.Address == 0 {
		r.Address = 0x42
	}
	if r.Address > 0x7f {
		return fmt.Errorf("receiver.address must be a 7-bit address")
	}
	if r.ReadTimeout <= 0 {
		r.ReadTimeout = 100 * time.Millisecond
	}
	if r.LineBuffer != 0 && r.LineBuffer < 2 {
		return fmt.Errorf("receiver.line_buffer must be >= 2")
	}
	if r.FrameBuffer != 0 && r.FrameBuffer < 8 {
		return fmt.Errorf("receiver.frame_buffer must be >= 8")
	}
	// Timings left at zero take the receiver's own defaults.

	g := &cfg.GPIO
	if g.Chip == "" {
		g.Chip = "gpiochip0"
	}
	if g.Reset == "" {
		return fmt.Errorf("gpio.reset is required")
	}
	if g.Ready == "" {
		return fmt.Errorf("gpio.ready is required")
	}
	if g.Debounce <= 0 {
		g.Debounce = 20 * time.Millisecond
	}
	seen := map[string]string{}
	for _, l := range []struct{ name, line string }{
		{"reset", g.Reset}, {"ready", g.Ready}, {"pps", g.PPS},
		{"sw3", g.SW3}, {"sw4", g.SW4}, {"sw5", g.SW5},
	} {
		if l.line == "" {
			continue
		}
		if prev, ok := seen[l.line]; ok {
			return fmt.Errorf("gpio.%s uses the same line as gpio.%s", l.name, prev)
		}
		seen[l.line] = l.name
	}

	p := &cfg.Publish
	if p.MQTTURL != "" && p.TopicPrefix == "" {
		p.TopicPrefix = "gnss-clock"
	}
	if strings.ContainsAny(p.TopicPrefix, "+#") {
		return fmt.Errorf("publish.topic_prefix must not contain MQTT wildcards")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
