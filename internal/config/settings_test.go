package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)

	assert.Equal(t, Defaults(), m.Get())
	_, err = os.Stat(path)
	require.NoError(t, err, "defaults should be written to disk")
}

func TestManagerLoadFillsMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: bug_1234\ndelay: 0.01\nformat: ZIP\n"), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	s := m.Get()
	assert.Equal(t, "bug_1234", s.Output)
	assert.Equal(t, MinDelayFloor, s.Delay, "delay below the floor is clamped")
	assert.Equal(t, FormatZIP, s.Format)
	assert.True(t, s.RecordKeyboard)
	assert.Equal(t, "ctrl+shift+f9", s.StopHotkey)
}

func TestManagerLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delay: [unterminated"), 0644))

	_, err := NewManager(path)
	require.Error(t, err)
}

func TestManagerSetAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.Set("delay", "0.75"))
	require.NoError(t, m.Set("record_keyboard", "false"))
	require.NoError(t, m.Set("format", "both"))
	require.NoError(t, m.Set("own_window", "0x3a00007"))

	v, ok := m.Lookup("delay")
	require.True(t, ok)
	assert.Equal(t, "0.75", v)

	v, ok = m.Lookup("own_window")
	require.True(t, ok)
	assert.Equal(t, "60817415", v)

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	s := reloaded.Get()
	assert.False(t, s.RecordKeyboard)
	assert.True(t, s.WantsHTML())
	assert.True(t, s.WantsZIP())

	assert.Error(t, m.Set("format", "pdf"))
	assert.Error(t, m.Set("log_level", "verbose"))
	assert.Error(t, m.Set("nope", "1"))
	_, ok = m.Lookup("nope")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	s := Settings{Format: "weird", StopHotkey: "  Ctrl+Alt+P ", Delay: 2}
	s.Normalize()

	assert.Equal(t, FormatHTML, s.Format)
	assert.Equal(t, "ctrl+alt+p", s.StopHotkey)
	assert.Equal(t, "steps_report", s.Output)
	assert.Equal(t, 2.0, s.Delay)
}
