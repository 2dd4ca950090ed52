package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenshotGrabber captures the primary display through kbinani/screenshot.
// It is the fallback when the root window cannot be read directly.
type ScreenshotGrabber struct{}

// NewScreenshotGrabber creates a screenshot grabber
func NewScreenshotGrabber() (*ScreenshotGrabber, error) {
	return &ScreenshotGrabber{}, nil
}

// Name returns the grabber name
func (g *ScreenshotGrabber) Name() string {
	return "screenshot"
}

// Start checks that at least one display is active
func (g *ScreenshotGrabber) Start() error {
	if screenshot.NumActiveDisplays() < 1 {
		return fmt.Errorf("no active displays")
	}
	return nil
}

// Stop is a no-op
func (g *ScreenshotGrabber) Stop() error {
	return nil
}

// ScreenBounds returns the bounds of display 0
func (g *ScreenshotGrabber) ScreenBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() < 1 {
		return image.Rectangle{}, fmt.Errorf("no active displays")
	}
	return screenshot.GetDisplayBounds(0), nil
}

// Grab captures rect and rebases the image to the origin
func (g *ScreenshotGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("failed to capture %v: %w", rect, err)
	}
	if img.Rect.Min != (image.Point{}) {
		img.Rect = img.Rect.Sub(img.Rect.Min)
	}
	return img, nil
}
