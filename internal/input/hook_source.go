package input

import (
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	hook "github.com/robotn/gohook"
)

const (
	// hookStartTimeout bounds how long Start waits for the native hook to report itself enabled
	hookStartTimeout = 2 * time.Second

	charUndefined rune = 0xFFFF
)

// HookSource delivers system-wide events from the native input hook.
// The underlying hook is process-global, so only one HookSource should be started.
type HookSource struct {
	*Broadcaster

	mu       sync.Mutex
	events   chan hook.Event
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

// NewHookSource creates an unstarted hook source
func NewHookSource() *HookSource {
	return &HookSource{Broadcaster: NewBroadcaster()}
}

// Start installs the native hook and begins dispatching events
func (s *HookSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	log := logger.WithComponent("input")
	events := hook.Start()

	timeout := time.NewTimer(hookStartTimeout)
	defer timeout.Stop()
	for enabled := false; !enabled; {
		select {
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("input hook closed during startup")
			}
			enabled = ev.Kind == hook.HookEnabled
		case <-timeout.C:
			hook.End()
			return fmt.Errorf("input hook not enabled after %s", hookStartTimeout)
		}
	}

	s.events = events
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.dispatch()

	log.Info().Msg("System-wide input hook installed")
	return nil
}

// Close removes the native hook and drops all subscribers
func (s *HookSource) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.Broadcaster.Close()
		return nil
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	hook.End()
	<-done
	s.Broadcaster.Close()
	logger.WithComponent("input").Info().Msg("System-wide input hook removed")
	return nil
}

func (s *HookSource) dispatch() {
	defer close(s.done)
	for {
		select {
		case <-s.stopChan:
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			if translated, ok := translate(ev); ok {
				s.Emit(translated)
			}
		}
	}
}

// translate maps a native hook event onto an Event.
// gohook reports a pointer press as MouseHold and a release as MouseDown.
func translate(ev hook.Event) (Event, bool) {
	out := Event{Time: ev.When}
	if out.Time.IsZero() {
		out.Time = time.Now()
	}

	switch ev.Kind {
	case hook.MouseHold:
		out.Kind = ButtonPress
	case hook.MouseDown:
		out.Kind = ButtonRelease
	case hook.KeyHold:
		out.Kind = KeyPress
	case hook.KeyUp:
		out.Kind = KeyRelease
	default:
		return Event{}, false
	}

	if out.Kind.IsPointer() {
		out.X, out.Y = int(ev.X), int(ev.Y)
		out.Button = buttonFromHook(ev.Button)
		return out, true
	}

	out.Key = keyName(ev)
	return out, true
}

func buttonFromHook(b uint16) Button {
	switch b {
	case hook.MouseMap["left"]:
		return ButtonLeft
	case hook.MouseMap["right"]:
		return ButtonRight
	case hook.MouseMap["center"]:
		return ButtonMiddle
	default:
		return ButtonOther
	}
}

func keyName(ev hook.Event) string {
	if name := hook.RawcodetoKeychar(ev.Rawcode); name != "" {
		return name
	}
	if ev.Keychar != charUndefined && unicode.IsPrint(ev.Keychar) {
		return string(ev.Keychar)
	}
	return fmt.Sprintf("key_%d", ev.Rawcode)
}
