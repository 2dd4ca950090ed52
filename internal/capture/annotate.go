package capture

import (
	"image"
	"image/color"
	"image/draw"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// OutlineWidth is the thickness of the element rectangle in pixels
	OutlineWidth = 3

	// MarkerRadius is the radius of the click marker in pixels
	MarkerRadius = 12

	labelPadding = 3
	labelOpacity = 0.85
)

var (
	// HighlightColor is used for outlines and markers
	HighlightColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}

	labelText       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBackground = color.RGBA{R: 200, G: 0, B: 0, A: 255}
)

// Annotate draws the request's highlight onto img, whose pixel origin
// corresponds to the screen point origin. It returns false when nothing was
// drawn: no highlight was requested, or the highlight falls outside the image.
func Annotate(img *image.RGBA, origin image.Point, req Request) bool {
	bounds := img.Bounds()
	offset := bounds.Min.Sub(origin)

	if !req.Element.Empty() {
		box := req.Element.Add(offset).Intersect(bounds)
		if box.Dx() <= 0 || box.Dy() <= 0 {
			return false
		}
		drawOutline(img, box, OutlineWidth, HighlightColor)
		drawLabel(img, req.Label, box.Min)
		return true
	}

	if req.Highlight != nil {
		p := req.Highlight.Add(offset)
		if !p.In(bounds) {
			return false
		}
		drawMarker(img, p, MarkerRadius, HighlightColor)
		drawLabel(img, req.Label, image.Pt(p.X-MarkerRadius, p.Y-MarkerRadius))
		return true
	}

	return false
}

// drawOutline strokes the inside edge of box
func drawOutline(img *image.RGBA, box image.Rectangle, width int, c color.RGBA) {
	src := image.NewUniform(c)
	w := min(width, box.Dx(), box.Dy())
	edges := []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+w),
		image.Rect(box.Min.X, box.Max.Y-w, box.Max.X, box.Max.Y),
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+w, box.Max.Y),
		image.Rect(box.Max.X-w, box.Min.Y, box.Max.X, box.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, src, image.Point{}, draw.Src)
	}
}

// drawMarker draws a ring of the given radius with a dot at its centre
func drawMarker(img *image.RGBA, center image.Point, radius int, c color.RGBA) {
	outer := radius * radius
	inner := (radius - OutlineWidth) * (radius - OutlineWidth)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := dx*dx + dy*dy
			if (d <= outer && d >= inner) || d <= 4 {
				// SetRGBA ignores points outside the image
				img.SetRGBA(center.X+dx, center.Y+dy, c)
			}
		}
	}
}

// fitLabel drops trailing runes until text fits within maxWidth pixels
func fitLabel(d *font.Drawer, text string, maxWidth int) string {
	for text != "" && d.MeasureString(text).Ceil() > maxWidth {
		_, size := utf8.DecodeLastRuneInString(text)
		text = text[:len(text)-size]
	}
	return text
}

// drawLabel renders text on a tinted strip just above anchor, kept inside the image
func drawLabel(img *image.RGBA, text string, anchor image.Point) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	bounds := img.Bounds()

	d := &font.Drawer{Face: face}
	text = fitLabel(d, text, bounds.Dx()-2*labelPadding)
	if text == "" {
		return
	}

	w := d.MeasureString(text).Ceil() + 2*labelPadding
	h := face.Height + 2*labelPadding

	x := anchor.X
	y := anchor.Y - h
	if y < bounds.Min.Y {
		y = anchor.Y
	}
	x = max(bounds.Min.X, min(x, bounds.Max.X-w))
	y = max(bounds.Min.Y, min(y, bounds.Max.Y-h))

	strip := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(strip, strip.Bounds(), image.NewUniform(labelBackground), image.Point{}, draw.Src)
	blend(img, strip, x, y, labelOpacity)

	textDrawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelText),
		Face: face,
		Dot:  fixed.P(x+labelPadding, y+labelPadding+face.Ascent),
	}
	textDrawer.DrawString(text)
}

// blend composites src onto dst at (x, y) with the given opacity, clipping to dst
func blend(dst *image.RGBA, src *image.RGBA, x, y int, opacity float64) {
	srcBounds := src.Bounds()
	dstBounds := dst.Bounds()

	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := y + (sy - srcBounds.Min.Y)
		if dy < dstBounds.Min.Y || dy >= dstBounds.Max.Y {
			continue
		}
		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := x + (sx - srcBounds.Min.X)
			if dx < dstBounds.Min.X || dx >= dstBounds.Max.X {
				continue
			}

			s := src.RGBAAt(sx, sy)
			alpha := float64(s.A) / 255 * opacity
			if alpha <= 0 {
				continue
			}
			d := dst.RGBAAt(dx, dy)
			dst.SetRGBA(dx, dy, color.RGBA{
				R: mix(s.R, d.R, alpha),
				G: mix(s.G, d.G, alpha),
				B: mix(s.B, d.B, alpha),
				A: 255,
			})
		}
	}
}

func mix(s, d uint8, alpha float64) uint8 {
	return uint8(float64(s)*alpha + float64(d)*(1-alpha) + 0.5)
}
