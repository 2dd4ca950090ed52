package hotkey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse("ctrl+shift+f9")
	require.NoError(t, err)
	assert.Equal(t, "f9", c.Key)
	assert.True(t, c.Modifiers[Ctrl])
	assert.True(t, c.Modifiers[Shift])
	assert.False(t, c.Modifiers[Alt])
	assert.Equal(t, "Ctrl+Shift+F9", c.String())

	c, err = Parse(" Control + ALT + p ")
	require.NoError(t, err)
	assert.Equal(t, "p", c.Key)
	assert.Equal(t, "Ctrl+Alt+P", c.String())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("ctrl+shift")
	assert.True(t, errors.Is(err, ErrNoKey))

	_, err = Parse("")
	assert.True(t, errors.Is(err, ErrNoKey))

	_, err = Parse("ctrl+a+b")
	assert.Error(t, err)
}

func TestChordContains(t *testing.T) {
	c := MustParse("ctrl+shift+f9")

	for _, name := range []string{"f9", "F9", "ctrl_l", "rctrl", "shift_r", "lshift"} {
		assert.True(t, c.Contains(name), name)
	}
	for _, name := range []string{"a", "alt", "f10", ""} {
		assert.False(t, c.Contains(name), name)
	}
}

func TestWatchFiresOnceWithModifiersHeld(t *testing.T) {
	calls := 0
	w := NewWatch(MustParse("ctrl+shift+f9"), func() { calls++ })

	assert.False(t, w.Press("f9"), "no modifiers held")
	assert.False(t, w.Press("ctrl_l"))
	assert.False(t, w.Press("f9"), "shift not held")
	assert.False(t, w.Press("shift_r"))
	assert.True(t, w.Press("f9"))

	// Auto-repeat of held keys must not fire again
	assert.False(t, w.Press("f9"))
	assert.False(t, w.Press("ctrl_l"))
	assert.False(t, w.Press("f9"))

	assert.Equal(t, 1, calls)
	assert.True(t, w.Fired())
}

func TestWatchReleaseClearsModifier(t *testing.T) {
	calls := 0
	w := NewWatch(MustParse("ctrl+f9"), func() { calls++ })

	w.Press("rctrl")
	w.Release("rctrl")
	assert.False(t, w.Press("f9"))

	w.Press("lctrl")
	assert.True(t, w.Press("F9"))
	assert.Equal(t, 1, calls)
}
