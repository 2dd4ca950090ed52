// Package input delivers system-wide pointer and keyboard events to subscribers.
package input

import (
	"errors"
	"time"
)

// ErrClosed is returned when subscribing to a closed source
var ErrClosed = errors.New("input source closed")

// Kind identifies the type of an input event
type Kind uint8

const (
	ButtonPress Kind = iota + 1
	ButtonRelease
	KeyPress
	KeyRelease
)

func (k Kind) String() string {
	switch k {
	case ButtonPress:
		return "button_press"
	case ButtonRelease:
		return "button_release"
	case KeyPress:
		return "key_press"
	case KeyRelease:
		return "key_release"
	default:
		return "unknown"
	}
}

// IsPointer reports whether the event comes from a pointer device
func (k Kind) IsPointer() bool {
	return k == ButtonPress || k == ButtonRelease
}

// Button identifies a pointer button
type Button uint8

const (
	ButtonOther Button = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
)

// Event is one pointer or keyboard notification
type Event struct {
	Kind   Kind
	Button Button
	X, Y   int
	// Key is the logical key name for keyboard events: the typed character
	// for printable keys, otherwise a name such as "enter" or "ctrl_l".
	Key  string
	Time time.Time
}

// Handler receives events from a Source
type Handler func(Event)

// Subscription identifies a registered handler
type Subscription uint64

// Source delivers events asynchronously to subscribed handlers
type Source interface {
	Subscribe(h Handler) (Subscription, error)
	Unsubscribe(s Subscription)
}
