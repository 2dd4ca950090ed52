// Package recorder turns raw input events into an ordered list of recorded steps.
package recorder

import (
	"fmt"
	"image"
	"time"
)

// ActionKind classifies a recorded step
type ActionKind int

const (
	LeftClick ActionKind = iota + 1
	RightClick
	MiddleClick
	KeyboardInput
)

func (k ActionKind) String() string {
	switch k {
	case LeftClick:
		return "Left Click"
	case RightClick:
		return "Right Click"
	case MiddleClick:
		return "Middle Click"
	case KeyboardInput:
		return "Keyboard Input"
	default:
		return "Unknown"
	}
}

// MarshalText renders the kind by its display name
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a display name written by MarshalText
func (k *ActionKind) UnmarshalText(text []byte) error {
	for c := LeftClick; c <= KeyboardInput; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown action kind %q", text)
}

// Step is one immutable recorded user action
type Step struct {
	Sequence    int          `json:"sequence"`
	Timestamp   time.Time    `json:"timestamp"`
	Action      ActionKind   `json:"action"`
	WindowTitle string       `json:"window_title"`
	Position    *image.Point `json:"position,omitempty"`
	Element     string       `json:"element,omitempty"`
	Screenshot  []byte       `json:"-"`
	Details     string       `json:"details"`
}

// HasScreenshot reports whether the step carries an image
func (s Step) HasScreenshot() bool {
	return len(s.Screenshot) > 0
}

// ActionLabel is the action name with an "at (x, y)" suffix for clicks
func (s Step) ActionLabel() string {
	if s.Position == nil {
		return s.Action.String()
	}
	return fmt.Sprintf("%s at (%d, %d)", s.Action, s.Position.X, s.Position.Y)
}

// State is the recording lifecycle state
type State int32

const (
	Idle State = iota
	Recording
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText
func (s *State) UnmarshalText(text []byte) error {
	for c := Idle; c <= Stopped; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

func clickDetails(kind ActionKind, x, y int, element string) string {
	details := fmt.Sprintf("%s at (%d, %d)", kind, x, y)
	if element != "" {
		details += " on " + element
	}
	return details
}

func keyboardDetails(n int) string {
	return fmt.Sprintf("Typed %d character(s)", n)
}
