package window

import (
	"image"
)

// UnknownTitle is reported when no window title can be determined
const UnknownTitle = "(unknown)"

// Backend defines the window-handle queries used by the locator (X11, etc.)
type Backend interface {
	// Name returns the backend name (e.g., "x11")
	Name() string

	// Close closes the connection to the display server
	Close() error

	// ActiveWindow returns the foreground window
	ActiveWindow() (uint32, error)

	// WindowAt returns the deepest visible window containing the screen point
	WindowAt(x, y int) (uint32, error)

	// TopLevel returns the top-level ancestor of a window
	TopLevel(id uint32) (uint32, error)

	// ClientWindow returns the application window inside a window manager frame
	ClientWindow(id uint32) uint32

	// Title returns the window title or "" when it has none
	Title(id uint32) string

	// Class returns the window class or "" when it has none
	Class(id uint32) string

	// Bounds returns the window rectangle in screen coordinates
	Bounds(id uint32) (image.Rectangle, error)

	// FrameBounds returns the window rectangle including decorations
	FrameBounds(id uint32) (image.Rectangle, error)

	// ScreenBounds returns the primary display rectangle
	ScreenBounds() image.Rectangle
}

// WindowInfo represents information about a window
type WindowInfo struct {
	ID       uint32   `json:"id"`
	Title    string   `json:"title"`
	Class    string   `json:"class"`
	PID      int      `json:"pid"`
	Geometry Geometry `json:"geometry"`
}

// Geometry represents window geometry
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the geometry to an image rectangle
func (g Geometry) Rect() image.Rectangle {
	return image.Rect(g.X, g.Y, g.X+g.Width, g.Y+g.Height)
}

// Element is a best-effort description of the control under a screen point
type Element struct {
	Label  string          `json:"label,omitempty"`
	Bounds image.Rectangle `json:"bounds"`
	Source string          `json:"source,omitempty"`
}

// Found reports whether the element carries any information
func (e Element) Found() bool {
	return e.Label != "" || !e.Bounds.Empty()
}

// Strategy is one tier of UI element lookup
type Strategy interface {
	Name() string
	ElementAt(x, y int) (Element, bool)
}
