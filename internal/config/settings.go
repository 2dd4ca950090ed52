package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"gopkg.in/yaml.v3"
)

// MinDelayFloor is the smallest accepted minimum delay between captures, in seconds
const MinDelayFloor = 0.05

// Output formats
const (
	FormatHTML = "html"
	FormatZIP  = "zip"
	FormatBoth = "both"
)

// Settings represents the persisted recorder settings
type Settings struct {
	Output         string  `json:"output" yaml:"output"`
	Delay          float64 `json:"delay" yaml:"delay"`
	RecordKeyboard bool    `json:"record_keyboard" yaml:"record_keyboard"`
	Fullscreen     bool    `json:"fullscreen" yaml:"fullscreen"`
	Format         string  `json:"format" yaml:"format"`
	StopHotkey     string  `json:"stop_hotkey" yaml:"stop_hotkey"`
	LogLevel       string  `json:"log_level" yaml:"log_level"`
	Listen         string  `json:"listen" yaml:"listen"`
	OwnWindow      uint32  `json:"own_window" yaml:"own_window"`
}

// Defaults returns the default settings
func Defaults() Settings {
	return Settings{
		Output:         "steps_report",
		Delay:          0.3,
		RecordKeyboard: true,
		Fullscreen:     false,
		Format:         FormatHTML,
		StopHotkey:     "ctrl+shift+f9",
		LogLevel:       "info",
	}
}

// Normalize clamps and canonicalizes values in place
func (s *Settings) Normalize() {
	if s.Delay < MinDelayFloor {
		s.Delay = MinDelayFloor
	}
	s.Format = strings.ToLower(strings.TrimSpace(s.Format))
	switch s.Format {
	case FormatHTML, FormatZIP, FormatBoth:
	default:
		s.Format = FormatHTML
	}
	s.StopHotkey = strings.ToLower(strings.TrimSpace(s.StopHotkey))
	if s.StopHotkey == "" {
		s.StopHotkey = Defaults().StopHotkey
	}
	if strings.TrimSpace(s.Output) == "" {
		s.Output = Defaults().Output
	}
}

// WantsHTML reports whether a self-contained document should be written
func (s Settings) WantsHTML() bool {
	return s.Format == FormatHTML || s.Format == FormatBoth
}

// WantsZIP reports whether an archive should be written
func (s Settings) WantsZIP() bool {
	return s.Format == FormatZIP || s.Format == FormatBoth
}

// Manager handles settings persistence
type Manager struct {
	path     string
	settings *Settings
	mu       sync.RWMutex
}

// DefaultPath returns $HOME/.config/steprecorder/settings.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "steprecorder", "settings.yaml"), nil
}

// NewManager creates a settings manager, creating the file with defaults when missing
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	m := &Manager{path: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.path).
			Msg("Settings file not found, creating defaults")
		defaults := Defaults()
		m.settings = &defaults
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.path).
		Msg("Settings loaded")

	return m, nil
}

// load reads the settings from disk, filling absent keys with defaults
func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}

	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	s.Normalize()

	m.mu.Lock()
	m.settings = &s
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current settings
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return Defaults()
	}
	return *m.settings
}

// Update replaces the settings and persists them
func (m *Manager) Update(s Settings) error {
	s.Normalize()
	m.mu.Lock()
	m.settings = &s
	m.mu.Unlock()
	return m.Save()
}

// Save writes the current settings to disk
func (m *Manager) Save() error {
	s := m.Get()
	log := logger.WithComponent("config")

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		log.Error().Err(err).Str("path", m.path).Msg("Failed to create settings directory")
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.path).Msg("Failed to write settings")
		return fmt.Errorf("failed to write settings: %w", err)
	}

	log.Debug().Str("path", m.path).Msg("Settings saved")
	return nil
}

// Path returns the settings file path
func (m *Manager) Path() string {
	return m.path
}

// Keys lists the settable keys in file order
func Keys() []string {
	return []string{"output", "delay", "record_keyboard", "fullscreen", "format", "stop_hotkey", "log_level", "listen", "own_window"}
}

// Lookup returns the textual value of a settings key
func (m *Manager) Lookup(key string) (string, bool) {
	s := m.Get()
	switch key {
	case "output":
		return s.Output, true
	case "delay":
		return strconv.FormatFloat(s.Delay, 'f', -1, 64), true
	case "record_keyboard":
		return strconv.FormatBool(s.RecordKeyboard), true
	case "fullscreen":
		return strconv.FormatBool(s.Fullscreen), true
	case "format":
		return s.Format, true
	case "stop_hotkey":
		return s.StopHotkey, true
	case "log_level":
		return s.LogLevel, true
	case "listen":
		return s.Listen, true
	case "own_window":
		return strconv.FormatUint(uint64(s.OwnWindow), 10), true
	}
	return "", false
}

// Set parses value for key and persists the result
func (m *Manager) Set(key, value string) error {
	s := m.Get()
	switch key {
	case "output":
		s.Output = value
	case "delay":
		d, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid delay: %s", value)
		}
		s.Delay = d
	case "record_keyboard", "fullscreen":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
		if key == "fullscreen" {
			s.Fullscreen = b
		} else {
			s.RecordKeyboard = b
		}
	case "format":
		switch value {
		case FormatHTML, FormatZIP, FormatBoth:
		default:
			return fmt.Errorf("invalid format: %s (use: html, zip, both)", value)
		}
		s.Format = value
	case "stop_hotkey":
		s.StopHotkey = value
	case "log_level":
		valid := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !valid[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		s.LogLevel = value
	case "listen":
		s.Listen = value
	case "own_window":
		id, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid window id: %s", value)
		}
		s.OwnWindow = uint32(id)
	default:
		return fmt.Errorf("unknown settings key: %s", key)
	}
	return m.Update(s)
}
