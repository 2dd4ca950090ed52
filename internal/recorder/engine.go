package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/StepRecorder/internal/capture"
	"github.com/bryanchriswhite/StepRecorder/internal/hotkey"
	"github.com/bryanchriswhite/StepRecorder/internal/input"
	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"github.com/bryanchriswhite/StepRecorder/internal/window"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultFlushDelay is the keyboard inactivity period before buffered keys become a step
	DefaultFlushDelay = time.Second

	// DefaultSettleDelay lets the window manager update focus after a click
	DefaultSettleDelay = 150 * time.Millisecond
)

var (
	ErrAlreadyStarted = errors.New("recording already started")
	ErrStopped        = errors.New("recording stopped")
	ErrNotStopped     = errors.New("recording not stopped")
	ErrNoSteps        = errors.New("no steps recorded")
	ErrInvalidState   = errors.New("invalid state transition")
)

// Locator answers window and element questions about a screen point
type Locator interface {
	ActiveWindowTitle() string
	TitleAt(x, y int) string
	ElementAt(x, y int) window.Element
}

// OwnWindow recognises the recorder's own interface
type OwnWindow interface {
	Contains(x, y int) bool
	IsForeground() bool
}

// Capturer produces annotated screenshots
type Capturer interface {
	Start() error
	Stop() error
	Capture(req capture.Request) ([]byte, error)
}

// Observer is notified of every appended step. Errors and panics are logged
// and ignored. Observers run after the step is stored and outside every engine
// lock, so an observer may call Stop.
type Observer func(Step) error

// Options configures an Engine
type Options struct {
	// ID identifies the session; a random UUID is used when empty
	ID string

	MinDelay       time.Duration
	RecordKeyboard bool
	Fullscreen     bool
	StopHotkey     hotkey.Chord

	FlushDelay  time.Duration
	SettleDelay time.Duration

	Source    input.Source
	Locator   Locator
	OwnWindow OwnWindow
	Capturer  Capturer
	Observer  Observer

	Clock func() time.Time
	Sleep func(time.Duration)
}

// Engine owns one recording session. It is single-use: once stopped, a new
// engine is needed to record again.
type Engine struct {
	opts    Options
	id      string
	log     *zerolog.Logger
	locator Locator
	own     OwnWindow

	// mu guards the session: state, steps, counter and pending keys
	mu        sync.Mutex
	state     State
	started   bool
	stopping  bool
	steps     []Step
	seq       int
	pending   []string
	lastClick time.Time
	subs      []input.Subscription
	observers []Observer

	// actionMu serializes step production so that clicks and keyboard
	// flushes append in the order they were triggered
	actionMu sync.Mutex

	flusher  *Deferred
	watch    *hotkey.Watch
	stopOnce sync.Once
	done     chan struct{}
}

// NewEngine validates options and creates an idle engine
func NewEngine(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("input source is required")
	}
	if opts.Capturer == nil {
		return nil, fmt.Errorf("capturer is required")
	}
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = DefaultFlushDelay
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	e := &Engine{
		opts:    opts,
		id:      opts.ID,
		log:     logger.WithSession("recorder", opts.ID),
		locator: opts.Locator,
		own:     opts.OwnWindow,
		done:    make(chan struct{}),
	}
	if e.locator == nil {
		e.locator = noLocator{}
	}
	if e.own == nil {
		e.own = noOwnWindow{}
	}
	if opts.Observer != nil {
		e.observers = append(e.observers, opts.Observer)
	}
	e.flusher = NewDeferred(opts.FlushDelay, e.flushOnTimer)
	if !opts.StopHotkey.IsZero() {
		e.watch = hotkey.NewWatch(opts.StopHotkey, e.onHotkey)
	}
	return e, nil
}

// ID returns the session id
func (e *Engine) ID() string {
	return e.id
}

// AddObserver registers an additional step observer. It must be called before Start.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	e.observers = append(e.observers, o)
	e.mu.Unlock()
}

// Start acquires the capture resource and subscribes to input. On failure the
// engine stays Idle and every partial subscription is removed.
func (e *Engine) Start() error {
	e.mu.Lock()
	switch {
	case e.state == Stopped || e.stopping:
		e.mu.Unlock()
		return ErrStopped
	case e.started:
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	subs, err := e.acquire()
	if err != nil {
		e.mu.Lock()
		e.started = false
		e.mu.Unlock()
		e.log.Error().Err(err).Msg("Failed to start recording")
		return err
	}

	e.mu.Lock()
	if e.stopping {
		e.mu.Unlock()
		e.release(subs)
		return ErrStopped
	}
	e.subs = subs
	e.state = Recording
	e.mu.Unlock()

	e.log.Info().
		Dur("min_delay", e.opts.MinDelay).
		Bool("keyboard", e.opts.RecordKeyboard).
		Bool("fullscreen", e.opts.Fullscreen).
		Str("stop_hotkey", e.opts.StopHotkey.String()).
		Msg("Recording started")
	return nil
}

func (e *Engine) acquire() ([]input.Subscription, error) {
	if err := e.opts.Capturer.Start(); err != nil {
		return nil, fmt.Errorf("capture unavailable: %w", err)
	}

	var subs []input.Subscription
	fail := func(err error) ([]input.Subscription, error) {
		e.release(subs)
		return nil, err
	}

	sub, err := e.opts.Source.Subscribe(e.handlePointer)
	if err != nil {
		return fail(fmt.Errorf("subscribe pointer events: %w", err))
	}
	subs = append(subs, sub)

	if e.opts.RecordKeyboard {
		sub, err = e.opts.Source.Subscribe(e.handleKey)
		if err != nil {
			return fail(fmt.Errorf("subscribe keyboard events: %w", err))
		}
		subs = append(subs, sub)
	}

	if e.watch != nil {
		sub, err = e.opts.Source.Subscribe(e.handleHotkey)
		if err != nil {
			return fail(fmt.Errorf("subscribe stop hotkey: %w", err))
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (e *Engine) release(subs []input.Subscription) {
	for _, s := range subs {
		e.opts.Source.Unsubscribe(s)
	}
	if err := e.opts.Capturer.Stop(); err != nil {
		e.log.Warn().Err(err).Msg("Failed to release capturer")
	}
}

// Run starts recording and blocks until the session is stopped or ctx is done
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		e.Stop()
	}
	return nil
}

// Pause ignores input until Resume; subscriptions stay installed
func (e *Engine) Pause() error {
	return e.transition(Recording, Paused)
}

// Resume continues a paused recording
func (e *Engine) Resume() error {
	return e.transition(Paused, Recording)
}

func (e *Engine) transition(from, to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == to {
		return nil
	}
	if e.state != from || e.stopping {
		return fmt.Errorf("%w: %s to %s", ErrInvalidState, e.state, to)
	}
	e.state = to
	e.log.Info().Str("state", to.String()).Msg("Recording state changed")
	return nil
}

// Stop ends the session: pending keys are flushed as a final step, input
// subscriptions are removed and the step list is frozen. It is safe to call
// from any goroutine and more than once; every call returns after the
// session is stopped.
func (e *Engine) Stop() {
	var final Step
	var flushed bool
	e.stopOnce.Do(func() { final, flushed = e.stop() })
	<-e.done

	// Only the caller that ran the shutdown reports its final step, after done
	// is closed, so an observer calling Stop again returns at once.
	if flushed {
		e.notifyAll(final)
	}
}

func (e *Engine) stop() (Step, bool) {
	e.mu.Lock()
	e.stopping = true
	active := e.state == Recording || e.state == Paused
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	e.flusher.Cancel()
	for _, s := range subs {
		e.opts.Source.Unsubscribe(s)
	}

	var final Step
	var flushed bool
	if active {
		final, flushed = e.flushKeys()
		if err := e.opts.Capturer.Stop(); err != nil {
			e.log.Warn().Err(err).Msg("Failed to release capturer")
		}
	}

	e.mu.Lock()
	e.state = Stopped
	count := len(e.steps)
	e.mu.Unlock()
	close(e.done)

	e.log.Info().Int("steps", count).Msg("Recording stopped")
	return final, flushed
}

// Done is closed once the session is stopped
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StepCount returns the number of recorded steps
func (e *Engine) StepCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.steps)
}

// Steps returns a snapshot of the steps recorded so far
func (e *Engine) Steps() []Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Step(nil), e.steps...)
}

// Step returns the step with the given sequence number
func (e *Engine) Step(seq int) (Step, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seq < 1 || seq > len(e.steps) {
		return Step{}, false
	}
	return e.steps[seq-1], true
}

// Result returns the frozen step list of a stopped session
func (e *Engine) Result() ([]Step, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Stopped {
		return nil, ErrNotStopped
	}
	if len(e.steps) == 0 {
		return nil, ErrNoSteps
	}
	return append([]Step(nil), e.steps...), nil
}

// appendStep assigns the next sequence number and stores the step. It refuses
// once the session is stopped. Callers notify observers with the returned step
// once they hold no lock.
func (e *Engine) appendStep(step Step) (Step, bool) {
	e.mu.Lock()
	if e.state == Stopped {
		e.mu.Unlock()
		return Step{}, false
	}
	e.seq++
	step.Sequence = e.seq
	e.steps = append(e.steps, step)
	e.mu.Unlock()

	ev := e.log.Info().Int("step", step.Sequence).Str("title", step.WindowTitle)
	if step.Position != nil {
		ev = ev.Int("x", step.Position.X).Int("y", step.Position.Y)
	}
	ev.Msgf("Step %d: %s in %q", step.Sequence, step.Action, step.WindowTitle)
	return step, true
}

// notifyAll must be called without mu or actionMu held
func (e *Engine) notifyAll(steps ...Step) {
	e.mu.Lock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()

	for _, step := range steps {
		for _, o := range observers {
			e.notify(o, step)
		}
	}
}

func (e *Engine) notify(o Observer, step Step) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Interface("panic", r).Int("step", step.Sequence).Msg("Step observer panicked")
		}
	}()
	if err := o(step); err != nil {
		e.log.Warn().Err(err).Int("step", step.Sequence).Msg("Step observer failed")
	}
}

func (e *Engine) onHotkey() {
	e.log.Info().Str("hotkey", e.opts.StopHotkey.String()).Msg("Stop hotkey pressed")
	e.Stop()
}

func (e *Engine) handleHotkey(ev input.Event) {
	switch ev.Kind {
	case input.KeyPress:
		e.watch.Press(ev.Key)
	case input.KeyRelease:
		e.watch.Release(ev.Key)
	}
}

type noLocator struct{}

func (noLocator) ActiveWindowTitle() string { return window.UnknownTitle }
func (noLocator) TitleAt(int, int) string { return "" }
func (noLocator) ElementAt(int, int) window.Element { return window.Element{} }

type noOwnWindow struct{}

func (noOwnWindow) Contains(int, int) bool { return false }
func (noOwnWindow) IsForeground() bool { return false }
