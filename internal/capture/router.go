package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
)

// ErrNoBackend is returned by Router.Start when no grabber can be initialized
var ErrNoBackend = errors.New("no capture backends available")

// ErrNotStarted is returned when grabbing before Start
var ErrNotStarted = errors.New("capture router not started")

// GrabberFactory constructs one candidate grabber
type GrabberFactory func() (Grabber, error)

// Router picks the first grabber that starts successfully and routes every
// request to it
type Router struct {
	factories []GrabberFactory
	active    Grabber
	mu        sync.RWMutex
}

// NewRouter creates a router trying X11 first, then the portable screenshot grabber
func NewRouter() *Router {
	return NewRouterWith(
		func() (Grabber, error) { return NewX11Grabber() },
		func() (Grabber, error) { return NewScreenshotGrabber() },
	)
}

// NewRouterWith creates a router over the given candidates, in priority order
func NewRouterWith(factories ...GrabberFactory) *Router {
	return &Router{factories: factories}
}

// Name returns the active grabber name
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return "router"
	}
	return r.active.Name()
}

// Start initializes the first usable grabber
func (r *Router) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil
	}

	log := logger.WithComponent("capture-router")

	var errs []error
	for _, factory := range r.factories {
		g, err := factory()
		if err != nil {
			log.Warn().Err(err).Msg("Grabber not available")
			errs = append(errs, err)
			continue
		}
		if err := g.Start(); err != nil {
			log.Warn().Err(err).Str("grabber", g.Name()).Msg("Failed to start grabber")
			errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
			_ = g.Stop()
			continue
		}
		r.active = g
		log.Info().Str("grabber", g.Name()).Msg("Grabber initialized")
		return nil
	}

	if len(errs) == 0 {
		return ErrNoBackend
	}
	return fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}

// Stop stops the active grabber
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return nil
	}
	err := r.active.Stop()
	r.active = nil
	return err
}

func (r *Router) grabber() (Grabber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil, ErrNotStarted
	}
	return r.active, nil
}

// ScreenBounds returns the active grabber's display rectangle
func (r *Router) ScreenBounds() (image.Rectangle, error) {
	g, err := r.grabber()
	if err != nil {
		return image.Rectangle{}, err
	}
	return g.ScreenBounds()
}

// Grab routes a grab to the active grabber
func (r *Router) Grab(rect image.Rectangle) (*image.RGBA, error) {
	g, err := r.grabber()
	if err != nil {
		return nil, err
	}
	return g.Grab(rect)
}
