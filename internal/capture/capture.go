package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
)

// Grabber defines the interface for screen pixel grab backends
type Grabber interface {
	// Name returns a human-readable name for this grabber
	Name() string

	// Start initializes the grabber and any required resources
	Start() error

	// Stop releases resources
	Stop() error

	// ScreenBounds returns the primary display rectangle
	ScreenBounds() (image.Rectangle, error)

	// Grab returns the pixels of a screen rectangle. The returned image
	// is positioned at the origin.
	Grab(rect image.Rectangle) (*image.RGBA, error)
}

// ForegroundLocator reports the frame rectangle of the foreground window
type ForegroundLocator interface {
	ForegroundBounds() (image.Rectangle, bool)
}

// Request describes one annotated capture
type Request struct {
	// Highlight is the click point, marked when no element rectangle is known
	Highlight *image.Point
	// Element is the control rectangle in screen coordinates; empty when unknown
	Element image.Rectangle
	// Fullscreen captures the whole display instead of the foreground window
	Fullscreen bool
	// Label is drawn next to the annotation when non-empty
	Label string
}

// Capturer produces annotated PNG snapshots of the screen
type Capturer struct {
	grabber Grabber
	locator ForegroundLocator
}

// NewCapturer creates a capturer. locator may be nil, in which case every
// capture covers the full display.
func NewCapturer(grabber Grabber, locator ForegroundLocator) *Capturer {
	return &Capturer{grabber: grabber, locator: locator}
}

// Start acquires the pixel grab resource
func (c *Capturer) Start() error {
	return c.grabber.Start()
}

// Stop releases the pixel grab resource
func (c *Capturer) Stop() error {
	return c.grabber.Stop()
}

// Rect returns the screen rectangle a request would capture
func (c *Capturer) Rect(req Request) (image.Rectangle, error) {
	screen, err := c.grabber.ScreenBounds()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to get screen bounds: %w", err)
	}
	if screen.Empty() {
		return image.Rectangle{}, fmt.Errorf("screen has no area")
	}

	rect := screen
	if !req.Fullscreen && c.locator != nil {
		if fg, ok := c.locator.ForegroundBounds(); ok {
			rect = fg
		}
	}

	// Clamp to the display; a window entirely off-screen falls back to the display
	rect = rect.Intersect(screen)
	if rect.Empty() {
		rect = screen
	}
	return rect, nil
}

// Capture grabs, annotates and PNG-encodes the screen
func (c *Capturer) Capture(req Request) ([]byte, error) {
	log := logger.WithComponent("capture")

	rect, err := c.Rect(req)
	if err != nil {
		return nil, err
	}

	img, err := c.grabber.Grab(rect)
	if err != nil {
		return nil, fmt.Errorf("%s grab of %v failed: %w", c.grabber.Name(), rect, err)
	}

	if !Annotate(img, rect.Min, req) {
		log.Debug().Str("rect", rect.String()).Msg("Capture has no annotation")
	}

	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("grabber", c.grabber.Name()).
		Int("width", rect.Dx()).
		Int("height", rect.Dy()).
		Int("bytes", len(data)).
		Msg("Captured frame")
	return data, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
