// Package prefs is a small file-backed key-value store for user settings
// and the stable device user identifier.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pemalang/roadsense/internal/models"
)

// Defaults applied when a key has never been set.
const (
	DefaultSamplingRateHz = 50
	DefaultGPSIntervalSec = 1
	DefaultSensitivityG   = 2.0
)

type prefsFile struct {
	UserID         string  `yaml:"user_id,omitempty"`
	SamplingRateHz int     `yaml:"sampling_hz,omitempty"`
	GPSIntervalSec int     `yaml:"gps_interval_sec,omitempty"`
	SensitivityG   float64 `yaml:"sensitivity_threshold,omitempty"`
	AutoUpload     bool    `yaml:"auto_upload,omitempty"`
	UserName       string  `yaml:"user_name,omitempty"`
	UserEmail      string  `yaml:"user_email,omitempty"`
	VehicleType    string  `yaml:"vehicle_type,omitempty"`
}

// Store loads and persists preferences as a single YAML file. Every setter
// rewrites the whole file; the volume is a handful of keys.
type Store struct {
	mu   sync.Mutex
	path string
	data prefsFile
}

// Open loads the preference file at path, creating parent directories. A
// missing file is an empty store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}
	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return s, nil
}

func (s *Store) save() error {
	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// GetOrCreateUserID returns the stable user identifier, minting and
// persisting one on first use.
func (s *Store) GetOrCreateUserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.UserID != "" {
		return s.data.UserID, nil
	}
	s.data.UserID = uuid.New().String()
	if err := s.save(); err != nil {
		return "", err
	}
	return s.data.UserID, nil
}

// SamplingRateHz returns the accelerometer sampling rate.
func (s *Store) SamplingRateHz() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.SamplingRateHz <= 0 {
		return DefaultSamplingRateHz
	}
	return s.data.SamplingRateHz
}

// SetSamplingRateHz persists a new sampling rate.
func (s *Store) SetSamplingRateHz(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("sampling rate must be positive, got %d", hz)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.SamplingRateHz = hz
	return s.save()
}

// GPSIntervalSec returns the location fix interval.
func (s *Store) GPSIntervalSec() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.GPSIntervalSec <= 0 {
		return DefaultGPSIntervalSec
	}
	return s.data.GPSIntervalSec
}

// SetGPSIntervalSec persists a new fix interval.
func (s *Store) SetGPSIntervalSec(sec int) error {
	if sec <= 0 {
		return fmt.Errorf("gps interval must be positive, got %d", sec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.GPSIntervalSec = sec
	return s.save()
}

// SensitivityG returns the shock detection threshold in g.
func (s *Store) SensitivityG() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.SensitivityG <= 0 {
		return DefaultSensitivityG
	}
	return s.data.SensitivityG
}

// SetSensitivityG persists a new shock threshold.
func (s *Store) SetSensitivityG(g float64) error {
	if g <= 0 {
		return fmt.Errorf("sensitivity threshold must be positive, got %v", g)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.SensitivityG = g
	return s.save()
}

// AutoUpload reports whether finished trips upload automatically.
func (s *Store) AutoUpload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AutoUpload
}

// SetAutoUpload persists the auto-upload flag.
func (s *Store) SetAutoUpload(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AutoUpload = enabled
	return s.save()
}

// UserName returns the optional display name, empty when unset.
func (s *Store) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UserName
}

// SetUserName persists the display name; empty clears it.
func (s *Store) SetUserName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.UserName = name
	return s.save()
}

// UserEmail returns the optional contact email, empty when unset.
func (s *Store) UserEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UserEmail
}

// SetUserEmail persists the contact email; empty clears it.
func (s *Store) SetUserEmail(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.UserEmail = email
	return s.save()
}

// VehicleType returns the optional vehicle type, empty when unset.
func (s *Store) VehicleType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.VehicleType
}

// SetVehicleType persists the vehicle type; empty clears it.
func (s *Store) SetVehicleType(vehicle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.VehicleType = vehicle
	return s.save()
}

// SessionConfig snapshots the sensing settings for a new session. Read
// once at session start; later changes do not apply retroactively.
func (s *Store) SessionConfig() models.SessionConfig {
	return models.SessionConfig{
		SamplingRateHz: s.SamplingRateHz(),
		GPSIntervalSec: s.GPSIntervalSec(),
		SensitivityG:   s.SensitivityG(),
	}
}
