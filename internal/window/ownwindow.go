package window

// OwnWindow recognises the recorder's own top-level window so that clicks on
// it are not recorded. A zero id disables every check.
type OwnWindow struct {
	backend Backend
	id      uint32
}

// NewOwnWindow creates an own-window filter for id
func NewOwnWindow(backend Backend, id uint32) *OwnWindow {
	return &OwnWindow{backend: backend, id: id}
}

// ID returns the window id being filtered
func (o *OwnWindow) ID() uint32 {
	if o == nil {
		return 0
	}
	return o.id
}

func (o *OwnWindow) enabled() bool {
	return o != nil && o.id != 0 && o.backend != nil
}

// Contains reports whether a screen point belongs to the own window. The
// frame rectangle is checked first; the ancestry of the window under the
// point is only consulted when the point is outside it.
func (o *OwnWindow) Contains(x, y int) bool {
	if !o.enabled() {
		return false
	}

	if r, err := o.backend.FrameBounds(o.id); err == nil && !r.Empty() {
		// Edges count as inside
		if x >= r.Min.X && x <= r.Max.X && y >= r.Min.Y && y <= r.Max.Y {
			return true
		}
	}

	hit, err := o.backend.WindowAt(x, y)
	if err != nil {
		return false
	}
	return sameTopLevel(o.backend, hit, o.id)
}

// IsForeground reports whether the own window is the active window
func (o *OwnWindow) IsForeground() bool {
	if !o.enabled() {
		return false
	}
	active, err := o.backend.ActiveWindow()
	if err != nil {
		return false
	}
	return sameTopLevel(o.backend, active, o.id)
}
