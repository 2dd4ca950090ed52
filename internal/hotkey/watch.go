package hotkey

import "sync"

// Watch tracks held modifiers and fires once when its chord is completed
type Watch struct {
	chord     Chord
	onTrigger func()

	mu    sync.Mutex
	held  map[string]bool
	fired bool
}

// NewWatch creates a watch that calls onTrigger the first time chord is pressed
func NewWatch(chord Chord, onTrigger func()) *Watch {
	return &Watch{
		chord:     chord,
		onTrigger: onTrigger,
		held:      make(map[string]bool),
	}
}

// Press records a key press and reports whether it triggered the chord
func (w *Watch) Press(name string) bool {
	n := Normalize(name)

	w.mu.Lock()
	if m, ok := Modifier(name); ok {
		w.held[m] = true
	}
	trigger := !w.fired && n == w.chord.Key && w.modifiersHeldLocked()
	if trigger {
		w.fired = true
	}
	w.mu.Unlock()

	if trigger && w.onTrigger != nil {
		w.onTrigger()
	}
	return trigger
}

// Release records a key release
func (w *Watch) Release(name string) {
	m, ok := Modifier(name)
	if !ok {
		return
	}
	w.mu.Lock()
	delete(w.held, m)
	w.mu.Unlock()
}

// Fired reports whether the chord has already triggered
func (w *Watch) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

func (w *Watch) modifiersHeldLocked() bool {
	for m := range w.chord.Modifiers {
		if !w.held[m] {
			return false
		}
	}
	return true
}
