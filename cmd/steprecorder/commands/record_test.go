package commands

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/StepRecorder/internal/config"
	"github.com/bryanchriswhite/StepRecorder/internal/recorder"
	"github.com/bryanchriswhite/StepRecorder/internal/report"
)

func TestApplyRecordFlagsKeepsSavedWhenUnset(t *testing.T) {
	saved := config.Defaults()
	saved.Delay = 0.7
	saved.Format = config.FormatBoth

	got := applyRecordFlags(saved, viper.New())
	assert.Equal(t, saved, got)
}

func TestApplyRecordFlagsOverrides(t *testing.T) {
	v := viper.New()
	v.Set("record.output", "bug-1234")
	v.Set("record.delay", 0.01)
	v.Set("record.no_keyboard", true)
	v.Set("record.fullscreen", true)
	v.Set("record.stop_hotkey", " Ctrl+Alt+F12 ")
	v.Set("record.listen", "localhost:8090")
	v.Set("record.own_window", uint32(0x3a00007))

	got := applyRecordFlags(config.Defaults(), v)
	assert.Equal(t, "bug-1234", got.Output)
	assert.Equal(t, config.MinDelayFloor, got.Delay)
	assert.False(t, got.RecordKeyboard)
	assert.True(t, got.Fullscreen)
	assert.Equal(t, "ctrl+alt+f12", got.StopHotkey)
	assert.Equal(t, "localhost:8090", got.Listen)
	assert.Equal(t, uint32(0x3a00007), got.OwnWindow)
	assert.Equal(t, config.FormatHTML, got.Format)
}

func TestApplyRecordFlagsZipShorthand(t *testing.T) {
	v := viper.New()
	v.Set("record.format", "html")
	v.Set("record.zip", true)
	assert.Equal(t, config.FormatBoth, applyRecordFlags(config.Defaults(), v).Format)

	v = viper.New()
	v.Set("record.format", "BOTH")
	assert.Equal(t, config.FormatBoth, applyRecordFlags(config.Defaults(), v).Format)
}

func TestReportPaths(t *testing.T) {
	s := config.Defaults()

	h, z := reportPaths(s)
	assert.Equal(t, "steps_report.html", h)
	assert.Empty(t, z)

	s.Output = "out/session.zip"
	s.Format = config.FormatBoth
	h, z = reportPaths(s)
	assert.Equal(t, "out/session.html", h)
	assert.Equal(t, "out/session.zip", z)

	s.Output = "v1.2"
	s.Format = config.FormatZIP
	h, z = reportPaths(s)
	assert.Empty(t, h)
	assert.Equal(t, "v1.2.zip", z)
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	s := config.Defaults()
	s.Output = filepath.Join(dir, "steps")
	s.Format = config.FormatBoth

	pos := image.Pt(10, 20)
	steps := []recorder.Step{{
		Sequence:    1,
		Timestamp:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Action:      recorder.LeftClick,
		WindowTitle: "Files",
		Position:    &pos,
		Screenshot:  []byte{0x89, 'P', 'N', 'G'},
		Details:     "Left Click at (10, 20)",
	}}

	written, err := writeReports(s, report.Meta{SessionID: "s", GeneratedAt: steps[0].Timestamp}, steps)
	require.NoError(t, err)
	assert.Equal(t, []string{s.Output + ".html", s.Output + ".zip"}, written)
	for _, path := range written {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}
