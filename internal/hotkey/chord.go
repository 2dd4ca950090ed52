// Package hotkey parses stop-hotkey chords and watches key events for them.
package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Modifier names
const (
	Ctrl  = "ctrl"
	Shift = "shift"
	Alt   = "alt"
)

// ErrNoKey is returned when a chord names only modifiers
var ErrNoKey = errors.New("hotkey has no trigger key")

var modifierAliases = map[string]string{
	"ctrl":    Ctrl,
	"control": Ctrl,
	"ctrl_l":  Ctrl,
	"ctrl_r":  Ctrl,
	"lctrl":   Ctrl,
	"rctrl":   Ctrl,
	"shift":   Shift,
	"shift_l": Shift,
	"shift_r": Shift,
	"lshift":  Shift,
	"rshift":  Shift,
	"alt":     Alt,
	"alt_l":   Alt,
	"alt_r":   Alt,
	"alt_gr":  Alt,
	"lalt":    Alt,
	"ralt":    Alt,
	"altgr":   Alt,
	"option":  Alt,
	"roption": Alt,
	"loption": Alt,
}

// Normalize lower-cases a key name and folds modifier variants onto ctrl, shift or alt
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if m, ok := modifierAliases[n]; ok {
		return m
	}
	return n
}

// Modifier reports the modifier a key name belongs to, if any
func Modifier(name string) (string, bool) {
	m, ok := modifierAliases[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// Chord is a set of modifiers plus one trigger key
type Chord struct {
	Modifiers map[string]bool
	Key       string
}

// Parse reads a "+"-joined chord such as "ctrl+shift+f9"
func Parse(s string) (Chord, error) {
	c := Chord{Modifiers: make(map[string]bool)}
	for _, part := range strings.Split(s, "+") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		if m, ok := Modifier(p); ok {
			c.Modifiers[m] = true
			continue
		}
		if c.Key != "" {
			return Chord{}, fmt.Errorf("hotkey %q names more than one key (%s, %s)", s, c.Key, p)
		}
		c.Key = p
	}
	if c.Key == "" {
		return Chord{}, fmt.Errorf("hotkey %q: %w", s, ErrNoKey)
	}
	return c, nil
}

// MustParse is Parse for constants known to be valid
func MustParse(s string) Chord {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Contains reports whether a key name is one of the chord's keys
func (c Chord) Contains(name string) bool {
	n := Normalize(name)
	if n == "" {
		return false
	}
	return n == c.Key || c.Modifiers[n]
}

// IsZero reports whether the chord is unset
func (c Chord) IsZero() bool {
	return c.Key == ""
}

// String renders the chord for display, e.g. Ctrl+Shift+F9
func (c Chord) String() string {
	if c.IsZero() {
		return ""
	}
	order := map[string]int{Ctrl: 0, Alt: 1, Shift: 2}
	mods := make([]string, 0, len(c.Modifiers))
	for m := range c.Modifiers {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return order[mods[i]] < order[mods[j]] })

	parts := make([]string, 0, len(mods)+1)
	for _, m := range append(mods, c.Key) {
		parts = append(parts, strings.ToUpper(m[:1])+m[1:])
	}
	return strings.Join(parts, "+")
}
