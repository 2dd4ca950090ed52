package window

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	atomCacheSize = 64

	// clientSearchDepth bounds the descent from a frame window to its client
	clientSearchDepth = 4
)

// ErrNoWindow is returned when no window matches a query
var ErrNoWindow = errors.New("no window")

// X11Backend implements the Backend interface using X11
type X11Backend struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
	atoms  *lru.Cache[string, xproto.Atom]
}

// NewX11Backend creates a new X11 backend
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	atoms, err := lru.New[string, xproto.Atom](atomCacheSize)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create atom cache: %w", err)
	}

	logger.WithComponent("x11-backend").Debug().
		Uint32("root", uint32(screen.Root)).
		Uint16("width", screen.WidthInPixels).
		Uint16("height", screen.HeightInPixels).
		Msg("Connected to X server")

	return &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		atoms:  atoms,
	}, nil
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// ScreenBounds returns the default screen rectangle
func (b *X11Backend) ScreenBounds() image.Rectangle {
	return image.Rect(0, 0, int(b.screen.WidthInPixels), int(b.screen.HeightInPixels))
}

// ActiveWindow returns the EWMH active window, falling back to the input focus
func (b *X11Backend) ActiveWindow() (uint32, error) {
	if ids := b.cardinals(b.root, "_NET_ACTIVE_WINDOW"); len(ids) > 0 && ids[0] != 0 {
		return ids[0], nil
	}

	focus, err := xproto.GetInputFocus(b.conn).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query input focus: %w", err)
	}
	// None and PointerRoot are not real windows
	if focus.Focus == xproto.InputFocusNone || focus.Focus == xproto.InputFocusPointerRoot || focus.Focus == b.root {
		return 0, ErrNoWindow
	}
	return uint32(focus.Focus), nil
}

// WindowAt descends from the root to the deepest viewable window containing the point
func (b *X11Backend) WindowAt(x, y int) (uint32, error) {
	current := b.root
	for {
		reply, err := xproto.TranslateCoordinates(b.conn, b.root, current, int16(x), int16(y)).Reply()
		if err != nil {
			return 0, fmt.Errorf("failed to translate coordinates: %w", err)
		}
		if reply.Child == xproto.WindowNone {
			break
		}

		attrs, err := xproto.GetWindowAttributes(b.conn, reply.Child).Reply()
		if err != nil || attrs.MapState != xproto.MapStateViewable || attrs.Class == xproto.WindowClassInputOnly {
			break
		}
		current = reply.Child
	}

	if current == b.root {
		return 0, ErrNoWindow
	}
	return uint32(current), nil
}

// TopLevel walks up the tree until the parent is the root window
func (b *X11Backend) TopLevel(id uint32) (uint32, error) {
	win := xproto.Window(id)
	if win == b.root || win == xproto.WindowNone {
		return 0, ErrNoWindow
	}

	for {
		tree, err := xproto.QueryTree(b.conn, win).Reply()
		if err != nil {
			return 0, fmt.Errorf("failed to query tree for window %d: %w", win, err)
		}
		if tree.Parent == tree.Root || tree.Parent == xproto.WindowNone {
			return uint32(win), nil
		}
		win = tree.Parent
	}
}

// ClientWindow returns the first descendant carrying WM_STATE, or id itself.
// Reparenting window managers put the application window below a frame.
func (b *X11Backend) ClientWindow(id uint32) uint32 {
	wmState, err := b.getAtom("WM_STATE")
	if err != nil {
		return id
	}

	level := []xproto.Window{xproto.Window(id)}
	for depth := 0; depth < clientSearchDepth && len(level) > 0; depth++ {
		var next []xproto.Window
		for _, win := range level {
			if b.hasProperty(win, wmState) {
				return uint32(win)
			}
			tree, err := xproto.QueryTree(b.conn, win).Reply()
			if err != nil {
				continue
			}
			next = append(next, tree.Children...)
		}
		level = next
	}
	return id
}

// Title returns _NET_WM_NAME, falling back to WM_NAME
func (b *X11Backend) Title(id uint32) string {
	win := xproto.Window(id)
	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		atom, err := b.getAtom(name)
		if err != nil {
			continue
		}
		if title, err := b.getProperty(win, atom); err == nil && title != "" {
			return title
		}
	}
	return ""
}

// Class returns the class part of WM_CLASS
func (b *X11Backend) Class(id uint32) string {
	// WM_CLASS format is: instance\0class\0 (two null-terminated strings)
	classAtom, err := b.getAtom("WM_CLASS")
	if err != nil {
		return ""
	}
	classRaw, err := b.getProperty(xproto.Window(id), classAtom)
	if err != nil {
		return ""
	}
	parts := strings.Split(classRaw, "\x00")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return parts[0]
}

// Bounds returns the window rectangle translated to root coordinates
func (b *X11Backend) Bounds(id uint32) (image.Rectangle, error) {
	win := xproto.Window(id)
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to get geometry for window %d: %w", id, err)
	}
	origin, err := xproto.TranslateCoordinates(b.conn, win, b.root, 0, 0).Reply()
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("failed to translate window %d: %w", id, err)
	}

	x, y := int(origin.DstX), int(origin.DstY)
	return image.Rect(x, y, x+int(geom.Width), y+int(geom.Height)), nil
}

// FrameBounds grows Bounds by _NET_FRAME_EXTENTS when the window manager publishes it
func (b *X11Backend) FrameBounds(id uint32) (image.Rectangle, error) {
	r, err := b.Bounds(id)
	if err != nil {
		return r, err
	}
	// left, right, top, bottom
	if ext := b.cardinals(xproto.Window(id), "_NET_FRAME_EXTENTS"); len(ext) == 4 {
		r.Min.X -= int(ext[0])
		r.Max.X += int(ext[1])
		r.Min.Y -= int(ext[2])
		r.Max.Y += int(ext[3])
	}
	return r, nil
}

// GetWindowInfo gathers title, class, PID and geometry for a window
func (b *X11Backend) GetWindowInfo(id uint32) (*WindowInfo, error) {
	r, err := b.Bounds(id)
	if err != nil {
		return nil, err
	}

	info := &WindowInfo{
		ID:    id,
		Title: b.Title(id),
		Class: b.Class(id),
		Geometry: Geometry{
			X:      r.Min.X,
			Y:      r.Min.Y,
			Width:  r.Dx(),
			Height: r.Dy(),
		},
	}
	if pid := b.cardinals(xproto.Window(id), "_NET_WM_PID"); len(pid) > 0 {
		info.PID = int(pid[0])
	}
	return info, nil
}

// getAtom gets an atom ID by name, consulting the cache first
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	if atom, ok := b.atoms.Get(name); ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	b.atoms.Add(name, reply.Atom)
	return reply.Atom, nil
}

// getProperty gets a property value as a string
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}

	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}

	return string(reply.Value), nil
}

func (b *X11Backend) hasProperty(win xproto.Window, atom xproto.Atom) bool {
	reply, err := xproto.GetProperty(b.conn, false, win, atom, xproto.GetPropertyTypeAny, 0, 0).Reply()
	return err == nil && reply.Type != xproto.AtomNone
}

// cardinals reads a 32-bit list property (CARDINAL or WINDOW)
func (b *X11Backend) cardinals(win xproto.Window, name string) []uint32 {
	atom, err := b.getAtom(name)
	if err != nil {
		return nil
	}
	reply, err := xproto.GetProperty(b.conn, false, win, atom, xproto.GetPropertyTypeAny, 0, 64).Reply()
	if err != nil || reply.Format != 32 {
		return nil
	}

	values := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		values = append(values, xgb.Get32(reply.Value[i:]))
	}
	return values
}
