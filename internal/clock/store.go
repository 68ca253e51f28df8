package clock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// MaxTimeZoneSecs bounds the offset either side of UTC.
	MaxTimeZoneSecs = 24 * 60 * 60
	TimeZoneStep    = 30 * 60
)

// Settings survive restarts.
type Settings struct {
	TimeZoneSecs int32 `yaml:"time_zone_secs"`
}

func (s Settings) Location() *time.Location {
	return time.FixedZone("", int(s.TimeZoneSecs))
}

func (s Settings) validate() error {
	if s.TimeZoneSecs > MaxTimeZoneSecs || s.TimeZoneSecs < -MaxTimeZoneSecs {
		return fmt.Errorf("time_zone_secs %d out of range", s.TimeZoneSecs)
	}
	return nil
}

type SettingsStore interface {
	Load() (Settings, error)
	Save(Settings) error
}

// FileStore keeps Settings in a YAML file.
type FileStore struct {
	Path string
	Log  zerolog.Logger
}

func NewFileStore(path string, log zerolog.Logger) *FileStore {
	return &FileStore{Path: path, Log: log.With().Str("component", "settings").Logger()}
}

// Load returns the stored settings. A missing, unreadable or invalid file
// yields the defaults, which are written back so the next start finds a
// valid file.
func (s *FileStore) Load() (Settings, error) {
	b, err := os.ReadFile(s.Path)
	if err == nil {
		var out Settings
		if err = yaml.Unmarshal(b, &out); err == nil {
			if err = out.validate(); err == nil {
				return out, nil
			}
		}
	}
	if !errors.Is(err, fs.ErrNotExist) {
		s.Log.Warn().Err(err).Str("path", s.Path).Msg("settings unreadable, using defaults")
	}

	def := Settings{}
	if err := s.Save(def); err != nil {
		return def, err
	}
	return def, nil
}

// Save writes atomically: a temp file in the same directory, then rename.
func (s *FileStore) Save(st Settings) error {
	if err := st.validate(); err != nil {
		return fmt.Errorf("clock: save settings: %w", err)
	}
	b, err := yaml.Marshal(&st)
	if err != nil {
		return fmt.Errorf("clock: save settings: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("clock: save settings: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("clock: save settings: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.Path)
}

// MemoryStore keeps settings in memory; used when no settings path is
// configured.
type MemoryStore struct {
	Settings Settings
	Saves    int
}

func (m *MemoryStore) Load() (Settings, error) { return m.Settings, nil }

func (m *MemoryStore) Save(s Settings) error {
	m.Settings = s
	m.Saves++
	return nil
}
