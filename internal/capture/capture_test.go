package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

type fakeGrabber struct {
	name     string
	screen   image.Rectangle
	startErr error
	grabErr  error
	grabbed  []image.Rectangle
	stopped  bool
}

func (g *fakeGrabber) Name() string { return g.name }
func (g *fakeGrabber) Start() error { return g.startErr }

func (g *fakeGrabber) Stop() error {
	g.stopped = true
	return nil
}

func (g *fakeGrabber) ScreenBounds() (image.Rectangle, error) { return g.screen, nil }

func (g *fakeGrabber) Grab(rect image.Rectangle) (*image.RGBA, error) {
	if g.grabErr != nil {
		return nil, g.grabErr
	}
	g.grabbed = append(g.grabbed, rect)
	img := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img, nil
}

type fixedForeground struct {
	rect image.Rectangle
	ok   bool
}

func (f fixedForeground) ForegroundBounds() (image.Rectangle, bool) { return f.rect, f.ok }

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestCapturerUsesForegroundWindow(t *testing.T) {
	g := &fakeGrabber{name: "fake", screen: image.Rect(0, 0, 1920, 1080)}
	c := NewCapturer(g, fixedForeground{rect: image.Rect(100, 50, 500, 350), ok: true})

	p := image.Pt(200, 100)
	data, err := c.Capture(Request{Highlight: &p})
	require.NoError(t, err)

	require.Len(t, g.grabbed, 1)
	assert.Equal(t, image.Rect(100, 50, 500, 350), g.grabbed[0])
	assert.Equal(t, image.Rect(0, 0, 400, 300), decode(t, data).Bounds())
}

func TestCapturerFullscreenAndUnresolvedForeground(t *testing.T) {
	screen := image.Rect(0, 0, 640, 480)
	g := &fakeGrabber{name: "fake", screen: screen}

	_, err := NewCapturer(g, fixedForeground{rect: image.Rect(10, 10, 100, 100), ok: true}).Capture(Request{Fullscreen: true})
	require.NoError(t, err)
	_, err = NewCapturer(g, fixedForeground{}).Capture(Request{})
	require.NoError(t, err)
	_, err = NewCapturer(g, nil).Capture(Request{})
	require.NoError(t, err)

	assert.Equal(t, []image.Rectangle{screen, screen, screen}, g.grabbed)
}

func TestCapturerClampsToDisplay(t *testing.T) {
	g := &fakeGrabber{name: "fake", screen: image.Rect(0, 0, 640, 480)}

	c := NewCapturer(g, fixedForeground{rect: image.Rect(-20, -30, 300, 200), ok: true})
	r, err := c.Rect(Request{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 200), r)

	c = NewCapturer(g, fixedForeground{rect: image.Rect(2000, 2000, 2100, 2100), ok: true})
	r, err = c.Rect(Request{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), r)
}

func TestCapturerGrabFailure(t *testing.T) {
	boom := errors.New("display gone")
	g := &fakeGrabber{name: "fake", screen: image.Rect(0, 0, 640, 480), grabErr: boom}

	_, err := NewCapturer(g, nil).Capture(Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestCapturerDrawsElementOutlineInCaptureCoordinates(t *testing.T) {
	g := &fakeGrabber{name: "fake", screen: image.Rect(0, 0, 1920, 1080)}
	c := NewCapturer(g, fixedForeground{rect: image.Rect(100, 100, 500, 400), ok: true})

	data, err := c.Capture(Request{Element: image.Rect(150, 150, 250, 200)})
	require.NoError(t, err)

	img := decode(t, data)
	r, gg, b, _ := img.At(50, 50).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, gg, b}, "outline corner is red")
	r, gg, b, _ = img.At(100, 75).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, gg, b}, "box interior untouched")
}

func TestAnnotateOutline(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	ok := Annotate(img, image.Pt(0, 0), Request{Element: image.Rect(10, 10, 40, 30)})
	require.True(t, ok)

	assert.Equal(t, HighlightColor, img.RGBAAt(10, 10))
	assert.Equal(t, HighlightColor, img.RGBAAt(12, 20))
	assert.Equal(t, HighlightColor, img.RGBAAt(39, 29))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(20, 20))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(9, 9))
}

func TestAnnotateClampsOutlineToImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	ok := Annotate(img, image.Pt(500, 500), Request{Element: image.Rect(480, 480, 520, 520)})
	require.True(t, ok)
	assert.Equal(t, HighlightColor, img.RGBAAt(0, 0))
	assert.Equal(t, HighlightColor, img.RGBAAt(19, 19))
}

func TestAnnotateSkipsDegenerateBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	p := image.Pt(50, 50)

	// the element lies entirely left of the capture
	ok := Annotate(img, image.Pt(1000, 0), Request{Element: image.Rect(10, 10, 40, 40), Highlight: &p})
	assert.False(t, ok)
	for _, v := range img.Pix {
		require.Zero(t, v)
	}
}

func TestAnnotateMarker(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	p := image.Pt(150, 150)

	ok := Annotate(img, image.Pt(100, 100), Request{Highlight: &p})
	require.True(t, ok)

	assert.Equal(t, HighlightColor, img.RGBAAt(50, 50), "centre dot")
	assert.Equal(t, HighlightColor, img.RGBAAt(50+MarkerRadius, 50), "ring")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(50+MarkerRadius/2, 50), "between dot and ring")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(50+MarkerRadius+1, 50))
}

func TestAnnotateMarkerOutsideImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	p := image.Pt(5, 5)
	assert.False(t, Annotate(img, image.Pt(100, 100), Request{Highlight: &p}))
	assert.False(t, Annotate(img, image.Point{}, Request{}))
}

func TestAnnotateLabelStaysInsideImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	ok := Annotate(img, image.Point{}, Request{
		Element: image.Rect(50, 0, 60, 10),
		Label:   `push button "A very long label that does not fit"`,
	})
	require.True(t, ok)

	// the strip is shifted left to fit and blended over the top-right area
	assert.Equal(t, uint8(255), img.RGBAAt(59, 15).A)
	assert.Equal(t, uint8(0), img.RGBAAt(2, 30).A)
}

func TestConvertBGRA(t *testing.T) {
	img, err := convertBGRA([]byte{1, 2, 3, 0, 4, 5, 6, 0}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 3, G: 2, B: 1, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 6, G: 5, B: 4, A: 255}, img.RGBAAt(1, 0))

	_, err = convertBGRA([]byte{1, 2, 3}, 1, 1)
	assert.Error(t, err)
}

func TestRouterPicksFirstWorkingGrabber(t *testing.T) {
	broken := &fakeGrabber{name: "x11", startErr: errors.New("bad depth")}
	fallback := &fakeGrabber{name: "screenshot", screen: image.Rect(0, 0, 10, 10)}

	r := NewRouterWith(
		func() (Grabber, error) { return nil, errors.New("no display") },
		func() (Grabber, error) { return broken, nil },
		func() (Grabber, error) { return fallback, nil },
	)

	_, err := r.Grab(image.Rect(0, 0, 1, 1))
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, r.Start())
	assert.Equal(t, "screenshot", r.Name())
	assert.True(t, broken.stopped)

	bounds, err := r.ScreenBounds()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), bounds)

	require.NoError(t, r.Stop())
	assert.True(t, fallback.stopped)
}

func TestRouterNoBackend(t *testing.T) {
	r := NewRouterWith(func() (Grabber, error) { return nil, errors.New("no display") })
	err := r.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoBackend)

	assert.ErrorIs(t, NewRouterWith().Start(), ErrNoBackend)
}

func TestFitLabelTrimsWholeRunes(t *testing.T) {
	d := &font.Drawer{Face: basicfont.Face7x13}

	assert.Equal(t, "Übers", fitLabel(d, "Überschrift ééé", 5*7))
	assert.Equal(t, "ééé", fitLabel(d, "ééééé", 3*7+3))
	assert.Equal(t, "short", fitLabel(d, "short", 100))
	assert.Empty(t, fitLabel(d, "ü", 3))

	for width := 0; width <= 15*7; width++ {
		got := fitLabel(d, "Überschrift ééé", width)
		assert.True(t, utf8.ValidString(got), "width %d gave %q", width, got)
	}
}
