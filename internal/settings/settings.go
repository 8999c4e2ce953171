// Package settings holds the user-editable preferences used when arming
// reminders, stored as a small YAML file.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Kerhoff/daycal/internal/models"
)

// DefaultSoundProfile is used when no profile is configured.
const DefaultSoundProfile = "default"

// Settings is the persisted preference set.
type Settings struct {
	// DefaultLeadMinutes applies to events created without an explicit lead.
	DefaultLeadMinutes int `yaml:"default_lead_minutes" json:"default_lead_minutes"`

	// SoundProfile is the key into Sounds used for new reminders.
	SoundProfile string `yaml:"sound_profile" json:"sound_profile"`

	// Sounds maps profile keys to playable sound URLs. "none" maps to an
	// empty URL and means a silent alert.
	Sounds map[string]string `yaml:"sounds" json:"sounds"`
}

func defaultSounds() map[string]string {
	return map[string]string{
		"default": "/sounds/default.mp3",
		"bell":    "/sounds/bell.mp3",
		"chime":   "/sounds/chime.mp3",
		"digital": "/sounds/digital.mp3",
		"none":    "",
	}
}

// Default returns the settings written on first run.
func Default() *Settings {
	return &Settings{
		DefaultLeadMinutes: 0,
		SoundProfile:       DefaultSoundProfile,
		Sounds:             defaultSounds(),
	}
}

// Normalize fills missing values so older or hand-edited files still work.
func (s *Settings) Normalize() {
	if s.DefaultLeadMinutes < 0 {
		s.DefaultLeadMinutes = 0
	}
	if len(s.Sounds) == 0 {
		s.Sounds = defaultSounds()
	}
	if s.SoundProfile == "" {
		s.SoundProfile = DefaultSoundProfile
	}
	if _, ok := s.Sounds[s.SoundProfile]; !ok {
		s.SoundProfile = DefaultSoundProfile
	}
	if _, ok := s.Sounds[DefaultSoundProfile]; !ok {
		s.Sounds[DefaultSoundProfile] = defaultSounds()[DefaultSoundProfile]
	}
}

// Load reads settings from path, creating the file with defaults on first
// run.
func Load(path string) (*Settings, error) {
	if path == "" {
		return nil, errors.New("settings path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s := Default()
			if err := Save(path, s); err != nil {
				return s, err
			}
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.Normalize()

	return &s, nil
}

// Save writes s to path atomically with 0600 permissions.
func Save(path string, s *Settings) error {
	if path == "" {
		return errors.New("settings path is empty")
	}
	if s == nil {
		return errors.New("settings are nil")
	}

	s.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".daycal-settings-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings: %w", err)
	}

	return os.Rename(tmpName, path)
}

// Store is the live, concurrency-safe copy of the settings file.
type Store struct {
	path string

	mu      sync.RWMutex
	current Settings
}

// Open loads the settings at path into a Store.
func Open(path string) (*Store, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, current: *s}, nil
}

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := st.current
	out.Sounds = make(map[string]string, len(st.current.Sounds))
	for k, v := range st.current.Sounds {
		out.Sounds[k] = v
	}
	return out
}

// Update persists s and makes it current.
func (st *Store) Update(s Settings) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := Save(st.path, &s); err != nil {
		return st.current, err
	}
	st.current = s
	return s, nil
}

// Sound resolves a profile key. Unknown keys fall back to the default
// profile.
func (st *Store) Sound(profile string) models.Sound {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if url, ok := st.current.Sounds[profile]; ok {
		return models.Sound{Key: profile, URL: url}
	}
	return models.Sound{Key: DefaultSoundProfile, URL: st.current.Sounds[DefaultSoundProfile]}
}
