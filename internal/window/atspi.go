package window

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/bryanchriswhite/StepRecorder/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	a11yBusService   = "org.a11y.Bus"
	a11yBusPath      = "/org/a11y/bus"
	registryService  = "org.a11y.atspi.Registry"
	rootPath         = "/org/a11y/atspi/accessible/root"
	nullPath         = "/org/a11y/atspi/null"
	accessibleIface  = "org.a11y.atspi.Accessible"
	componentIface   = "org.a11y.atspi.Component"
	applicationIface = "org.a11y.atspi.Application"

	// coordTypeScreen asks for screen-relative coordinates
	coordTypeScreen uint32 = 0

	// stateActive is the bit index of ATSPI_STATE_ACTIVE in GetState's bitset
	stateActive = 1

	// maxAccessibleDepth bounds the descent through nested containers
	maxAccessibleDepth = 32

	defaultCallTimeout = 250 * time.Millisecond
)

// accessibleRef addresses one accessible object: the owning bus name and its path
type accessibleRef struct {
	Name string
	Path dbus.ObjectPath
}

func (r accessibleRef) null() bool {
	return r.Name == "" || r.Path == "" || r.Path == nullPath
}

// a11yClient is the subset of the AT-SPI protocol the strategy relies on
type a11yClient interface {
	Children(ref accessibleRef) ([]accessibleRef, error)
	Contains(ref accessibleRef, x, y int) bool
	Active(ref accessibleRef) bool
	ChildAtPoint(ref accessibleRef, x, y int) (accessibleRef, bool)
	Describe(ref accessibleRef) (role, name string, extents image.Rectangle)
	Toolkit(app accessibleRef) string
	Close() error
}

// AccessibilityStrategy resolves elements through the AT-SPI2 accessibility tree
type AccessibilityStrategy struct {
	client a11yClient
}

// NewAccessibilityStrategy connects to the accessibility bus advertised on the session bus
func NewAccessibilityStrategy() (*AccessibilityStrategy, error) {
	client, err := dialA11yBus(defaultCallTimeout)
	if err != nil {
		return nil, err
	}
	return &AccessibilityStrategy{client: client}, nil
}

// Name returns the strategy name
func (s *AccessibilityStrategy) Name() string {
	return "atspi"
}

// Close releases the accessibility bus connection
func (s *AccessibilityStrategy) Close() error {
	return s.client.Close()
}

// ElementAt finds the frame under the point (active frames first) and
// descends to the deepest accessible containing it.
func (s *AccessibilityStrategy) ElementAt(x, y int) (Element, bool) {
	log := logger.WithComponent("atspi")

	apps, err := s.client.Children(accessibleRef{Name: registryService, Path: rootPath})
	if err != nil {
		log.Debug().Err(err).Msg("Failed to list accessible applications")
		return Element{}, false
	}

	var frame, app accessibleRef
	found := false
search:
	for _, a := range apps {
		frames, err := s.client.Children(a)
		if err != nil {
			continue
		}
		for _, f := range frames {
			if !s.client.Contains(f, x, y) {
				continue
			}
			if s.client.Active(f) {
				frame, app, found = f, a, true
				break search
			}
			if !found {
				frame, app, found = f, a, true
			}
		}
	}
	if !found {
		return Element{}, false
	}

	leaf := frame
	for depth := 0; depth < maxAccessibleDepth; depth++ {
		next, ok := s.client.ChildAtPoint(leaf, x, y)
		if !ok || next.null() || next == leaf {
			break
		}
		leaf = next
	}

	role, name, extents := s.client.Describe(leaf)
	el := Element{
		Label:  composeLabel(role, name, s.client.Toolkit(app)),
		Bounds: extents,
		Source: s.Name(),
	}
	return el, el.Found()
}

// dbusA11yClient talks AT-SPI2 over a private connection to the accessibility bus
type dbusA11yClient struct {
	conn    *dbus.Conn
	timeout time.Duration
}

func dialA11yBus(timeout time.Duration) (*dbusA11yClient, error) {
	session, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer session.Close()

	var address string
	if err := session.Object(a11yBusService, a11yBusPath).Call(a11yBusService+".GetAddress", 0).Store(&address); err != nil {
		return nil, fmt.Errorf("failed to get accessibility bus address: %w", err)
	}

	conn, err := dbus.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to accessibility bus: %w", err)
	}

	logger.WithComponent("atspi").Debug().Str("address", address).Msg("Connected to accessibility bus")
	return &dbusA11yClient{conn: conn, timeout: timeout}, nil
}

func (c *dbusA11yClient) call(ref accessibleRef, method string, args ...interface{}) *dbus.Call {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.conn.Object(ref.Name, ref.Path).CallWithContext(ctx, method, 0, args...)
}

// property reads an "iface.Member" property
func (c *dbusA11yClient) property(ref accessibleRef, name string) (dbus.Variant, error) {
	dot := strings.LastIndex(name, ".")
	var v dbus.Variant
	err := c.call(ref, "org.freedesktop.DBus.Properties.Get", name[:dot], name[dot+1:]).Store(&v)
	return v, err
}

func (c *dbusA11yClient) Children(ref accessibleRef) ([]accessibleRef, error) {
	var children []accessibleRef
	if err := c.call(ref, accessibleIface+".GetChildren").Store(&children); err != nil {
		return nil, err
	}
	return children, nil
}

func (c *dbusA11yClient) Contains(ref accessibleRef, x, y int) bool {
	var inside bool
	err := c.call(ref, componentIface+".Contains", int32(x), int32(y), coordTypeScreen).Store(&inside)
	return err == nil && inside
}

func (c *dbusA11yClient) Active(ref accessibleRef) bool {
	var states []uint32
	if err := c.call(ref, accessibleIface+".GetState").Store(&states); err != nil || len(states) == 0 {
		return false
	}
	return states[0]&(1<<stateActive) != 0
}

func (c *dbusA11yClient) ChildAtPoint(ref accessibleRef, x, y int) (accessibleRef, bool) {
	var child accessibleRef
	err := c.call(ref, componentIface+".GetAccessibleAtPoint", int32(x), int32(y), coordTypeScreen).Store(&child)
	return child, err == nil
}

func (c *dbusA11yClient) Describe(ref accessibleRef) (string, string, image.Rectangle) {
	var role string
	_ = c.call(ref, accessibleIface+".GetRoleName").Store(&role)

	var name string
	if v, err := c.property(ref, accessibleIface+".Name"); err == nil {
		name, _ = v.Value().(string)
	}

	var ext struct {
		X, Y, W, H int32
	}
	var r image.Rectangle
	if err := c.call(ref, componentIface+".GetExtents", coordTypeScreen).Store(&ext); err == nil {
		r = image.Rect(int(ext.X), int(ext.Y), int(ext.X+ext.W), int(ext.Y+ext.H))
	}
	return role, name, r
}

func (c *dbusA11yClient) Toolkit(app accessibleRef) string {
	v, err := c.property(app, applicationIface+".ToolkitName")
	if err != nil {
		return ""
	}
	toolkit, _ := v.Value().(string)
	return toolkit
}

func (c *dbusA11yClient) Close() error {
	return c.conn.Close()
}
