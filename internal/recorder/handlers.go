package recorder

import (
	"image"
	"time"

	"github.com/bryanchriswhite/StepRecorder/internal/capture"
	"github.com/bryanchriswhite/StepRecorder/internal/input"
	"github.com/bryanchriswhite/StepRecorder/internal/window"
)

func actionForButton(b input.Button) (ActionKind, bool) {
	switch b {
	case input.ButtonLeft:
		return LeftClick, true
	case input.ButtonRight:
		return RightClick, true
	case input.ButtonMiddle:
		return MiddleClick, true
	default:
		return 0, false
	}
}

func (e *Engine) recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Recording && !e.stopping
}

// handlePointer turns an accepted button press into a click step
func (e *Engine) handlePointer(ev input.Event) {
	if ev.Kind != input.ButtonPress {
		return
	}
	kind, ok := actionForButton(ev.Button)
	if !ok || !e.recording() {
		return
	}

	// Own-window clicks are dropped before debounce so they never move its clock
	if e.own.Contains(ev.X, ev.Y) {
		e.log.Debug().Int("x", ev.X).Int("y", ev.Y).Msg("Ignoring click on own window")
		return
	}

	now := e.opts.Clock()
	e.mu.Lock()
	if e.state != Recording || e.stopping {
		e.mu.Unlock()
		return
	}
	if !e.lastClick.IsZero() && now.Sub(e.lastClick) < e.opts.MinDelay {
		e.mu.Unlock()
		e.log.Debug().Dur("since_last", now.Sub(e.lastClick)).Msg("Click debounced")
		return
	}
	e.lastClick = now
	e.mu.Unlock()

	e.notifyAll(e.recordClick(kind, ev.X, ev.Y)...)
}

// recordClick produces the steps for an accepted click: any pending keys
// first, then the click itself. It holds actionMu throughout.
func (e *Engine) recordClick(kind ActionKind, x, y int) []Step {
	e.actionMu.Lock()
	defer e.actionMu.Unlock()

	var produced []Step

	// Keys typed before the click become their own, earlier step
	e.flusher.Cancel()
	if s, ok := e.flushKeysLocked(); ok {
		produced = append(produced, s)
	}

	e.opts.Sleep(e.opts.SettleDelay)

	title := e.clickTitle(x, y)
	el := e.locator.ElementAt(x, y)
	pos := image.Pt(x, y)

	shot, err := e.opts.Capturer.Capture(capture.Request{
		Highlight:  &pos,
		Element:    el.Bounds,
		Fullscreen: e.opts.Fullscreen,
		Label:      el.Label,
	})
	if err != nil {
		e.log.Warn().Err(err).Str("action", kind.String()).Msg("Capture failed, step dropped")
		return produced
	}

	if s, ok := e.appendStep(Step{
		Timestamp:   e.timestamp(),
		Action:      kind,
		WindowTitle: title,
		Position:    &pos,
		Element:     el.Label,
		Screenshot:  shot,
		Details:     clickDetails(kind, x, y, el.Label),
	}); ok {
		produced = append(produced, s)
	}
	return produced
}

// clickTitle names the window that received the click. When the recorder's
// own window is foreground the window beneath the point is used instead.
func (e *Engine) clickTitle(x, y int) string {
	if e.own.IsForeground() {
		if title := e.locator.TitleAt(x, y); title != "" {
			return title
		}
		return window.UnknownTitle
	}
	if title := e.locator.ActiveWindowTitle(); title != "" {
		return title
	}
	return window.UnknownTitle
}

// handleKey buffers a key press and restarts the flush countdown
func (e *Engine) handleKey(ev input.Event) {
	if ev.Kind != input.KeyPress || ev.Key == "" {
		return
	}
	if e.opts.StopHotkey.Contains(ev.Key) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Recording || e.stopping {
		return
	}
	e.pending = append(e.pending, ev.Key)
	// under mu so that no countdown can start after Stop has cancelled it
	e.flusher.Schedule()
}

// flushOnTimer runs when typing has paused for the flush delay
func (e *Engine) flushOnTimer() {
	if s, ok := e.flushKeys(); ok {
		e.notifyAll(s)
	}
}

// flushKeys converts the pending keyboard buffer into a step
func (e *Engine) flushKeys() (Step, bool) {
	e.actionMu.Lock()
	defer e.actionMu.Unlock()
	return e.flushKeysLocked()
}

// flushKeysLocked requires actionMu
func (e *Engine) flushKeysLocked() (Step, bool) {
	e.mu.Lock()
	keys := e.pending
	e.pending = nil
	e.mu.Unlock()

	if len(keys) == 0 {
		return Step{}, false
	}

	title := e.locator.ActiveWindowTitle()
	if title == "" {
		title = window.UnknownTitle
	}

	shot, err := e.opts.Capturer.Capture(capture.Request{Fullscreen: e.opts.Fullscreen})
	if err != nil {
		e.log.Warn().Err(err).Int("keys", len(keys)).Msg("Capture failed, keyboard step dropped")
		return Step{}, false
	}

	return e.appendStep(Step{
		Timestamp:   e.timestamp(),
		Action:      KeyboardInput,
		WindowTitle: title,
		Screenshot:  shot,
		Details:     keyboardDetails(len(keys)),
	})
}

func (e *Engine) timestamp() time.Time {
	return e.opts.Clock().Truncate(time.Second)
}
