package window

import (
	"image"
	"strings"
	"sync"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
)

// Element rectangles at least this large are assumed to be a container, not a control
const (
	MaxElementWidth  = 800
	MaxElementHeight = 600
)

// SaneBounds returns r when it looks like a single control, otherwise the zero rectangle
func SaneBounds(r image.Rectangle) image.Rectangle {
	if r.Dx() <= 0 || r.Dy() <= 0 || r.Dx() >= MaxElementWidth || r.Dy() >= MaxElementHeight {
		return image.Rectangle{}
	}
	return r
}

// Locator answers "what is the user looking at" questions for the recorder.
// It never fails: missing information is reported as an empty value.
type Locator struct {
	backend    Backend
	strategies []Strategy

	mu      sync.RWMutex
	exclude uint32
}

// NewLocator creates a locator. backend may be nil, in which case only the
// strategies are consulted and titles are unknown.
func NewLocator(backend Backend, strategies ...Strategy) *Locator {
	return &Locator{
		backend:    backend,
		strategies: strategies,
	}
}

// SetExcluded sets a window (normally the recorder's own) that ForegroundBounds ignores
func (l *Locator) SetExcluded(id uint32) {
	l.mu.Lock()
	l.exclude = id
	l.mu.Unlock()
}

// Strategies returns the names of the element lookup tiers in order
func (l *Locator) Strategies() []string {
	names := make([]string, 0, len(l.strategies))
	for _, s := range l.strategies {
		names = append(names, s.Name())
	}
	return names
}

// ActiveWindowTitle returns the foreground window title or UnknownTitle
func (l *Locator) ActiveWindowTitle() string {
	if l.backend == nil {
		return UnknownTitle
	}
	id, err := l.backend.ActiveWindow()
	if err != nil {
		logger.WithComponent("locator").Debug().Err(err).Msg("No active window")
		return UnknownTitle
	}
	if title := l.titleOf(id); title != "" {
		return title
	}
	return UnknownTitle
}

// TitleAt returns the title of the top-level window under a point, or ""
func (l *Locator) TitleAt(x, y int) string {
	if l.backend == nil {
		return ""
	}
	id, err := l.backend.WindowAt(x, y)
	if err != nil {
		return ""
	}
	return l.titleOf(id)
}

func (l *Locator) titleOf(id uint32) string {
	if title := l.backend.Title(id); title != "" {
		return title
	}
	top, err := l.backend.TopLevel(id)
	if err != nil {
		return ""
	}
	return l.backend.Title(l.backend.ClientWindow(top))
}

// ElementAt asks each strategy in turn for the element under the point. The
// first strategy with an answer supplies the label; when its rectangle is
// missing or implausible, later strategies may still supply one.
func (l *Locator) ElementAt(x, y int) Element {
	log := logger.WithComponent("locator")

	var found Element
	for _, s := range l.strategies {
		el, ok := s.ElementAt(x, y)
		if !ok {
			continue
		}
		el.Bounds = SaneBounds(el.Bounds)
		if !el.Found() {
			continue
		}

		if !found.Found() {
			found = el
			if el.Source == "" {
				found.Source = s.Name()
			}
		} else if found.Bounds.Empty() {
			found.Bounds = el.Bounds
		}

		if !found.Bounds.Empty() {
			break
		}
	}

	if found.Found() {
		log.Debug().
			Str("label", found.Label).
			Str("source", found.Source).
			Str("bounds", found.Bounds.String()).
			Msg("Element resolved")
	}
	return found
}

// ForegroundBounds returns the frame rectangle of the foreground window. It
// reports false when there is no usable foreground window or it is the
// excluded one.
func (l *Locator) ForegroundBounds() (image.Rectangle, bool) {
	if l.backend == nil {
		return image.Rectangle{}, false
	}
	id, err := l.backend.ActiveWindow()
	if err != nil {
		return image.Rectangle{}, false
	}

	l.mu.RLock()
	exclude := l.exclude
	l.mu.RUnlock()
	if exclude != 0 && sameTopLevel(l.backend, id, exclude) {
		return image.Rectangle{}, false
	}

	r, err := l.backend.FrameBounds(id)
	if err != nil || r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// HandleStrategy describes the native window under the point. It is the
// fallback tier when no accessibility service is available.
type HandleStrategy struct {
	backend Backend
}

// NewHandleStrategy creates a window-handle strategy over backend
func NewHandleStrategy(backend Backend) *HandleStrategy {
	return &HandleStrategy{backend: backend}
}

// Name returns the strategy name
func (s *HandleStrategy) Name() string {
	return "window"
}

// ElementAt describes the deepest window containing the point
func (s *HandleStrategy) ElementAt(x, y int) (Element, bool) {
	id, err := s.backend.WindowAt(x, y)
	if err != nil {
		return Element{}, false
	}

	el := Element{Label: composeLabel("", s.backend.Title(id), s.backend.Class(id)), Source: s.Name()}
	if r, err := s.backend.Bounds(id); err == nil {
		el.Bounds = r
	}
	return el, el.Label != "" || !el.Bounds.Empty()
}

// composeLabel joins the available parts as: role "name" [class]
func composeLabel(role, name, class string) string {
	parts := make([]string, 0, 3)
	if role = strings.TrimSpace(role); role != "" {
		parts = append(parts, role)
	}
	if name = strings.TrimSpace(name); name != "" {
		parts = append(parts, `"`+name+`"`)
	}
	if class = strings.TrimSpace(class); class != "" {
		parts = append(parts, "["+class+"]")
	}
	return strings.Join(parts, " ")
}

func sameTopLevel(backend Backend, a, b uint32) bool {
	if a == b {
		return true
	}
	topA, err := backend.TopLevel(a)
	if err != nil {
		return false
	}
	topB, err := backend.TopLevel(b)
	if err != nil {
		return false
	}
	return topA == topB
}
