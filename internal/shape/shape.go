// Anvil shape geometry and rasterization.
//
// The anvil is a four-point polygon inside a 2:1 bounding box: top-left,
// top-right, bottom-mid and bottom-left corners. The path is kept as a single
// vertex list so a brand-exact vector path can replace it in one place.
package shape

import (
	"image"
	"image/draw"
	"math"

	"github.com/slurpey/anvilizer/internal/entity"
	"golang.org/x/image/vector"
)

// StrokeWidthFraction is the outline thickness relative to the shape's
// shorter side.
const StrokeWidthFraction = 0.02

type Point struct {
	X, Y float64
}

// Polygon holds the anvil vertices in drawing order.
type Polygon [4]Point

// Compute places the anvil on a canvas according to the placement spec.
// Deterministic, and the returned polygon never exits the canvas.
func Compute(canvasW, canvasH int, spec entity.AnvilSpec) Polygon {
	spec = spec.Clamped()
	w := float64(canvasW)
	h := float64(canvasH)

	// 2:1 box scaled against the canvas width, clamped to fit vertically.
	aw := w * spec.Scale
	ah := aw / 2
	if ah > h {
		ah = h
		aw = ah * 2
	}
	if aw > w {
		aw = w
		ah = aw / 2
	}

	// Offsets interpolate over the remaining slack on each axis.
	maxDX := (w - aw) / 2
	maxDY := (h - ah) / 2
	left := (w-aw)/2 + spec.OffsetX*maxDX
	top := (h-ah)/2 + spec.OffsetY*maxDY

	return Polygon{
		{left, top},
		{left + aw, top},
		{left + aw/2, top + ah},
		{left, top + ah},
	}
}

func (p Polygon) Width() float64  { return p[1].X - p[0].X }
func (p Polygon) Height() float64 { return p[3].Y - p[0].Y }

// Bounds returns the polygon's bounding box.
func (p Polygon) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = p[0].X, p[0].Y
	maxX, maxY = p[0].X, p[0].Y
	for _, pt := range p[1:] {
		minX = math.Min(minX, pt.X)
		minY = math.Min(minY, pt.Y)
		maxX = math.Max(maxX, pt.X)
		maxY = math.Max(maxY, pt.Y)
	}
	return minX, minY, maxX, maxY
}

// Nested returns a copy scaled by f and anchored to the bottom-center of the
// receiver, the layout used by the step gradient.
func (p Polygon) Nested(f float64) Polygon {
	baseW := p.Width()
	baseH := p.Height()
	w := baseW * f
	h := baseH * f
	left := p[0].X + (baseW-w)/2
	top := p[0].Y + (baseH - h)
	return Polygon{
		{left, top},
		{left + w, top},
		{left + w/2, top + h},
		{left, top + h},
	}
}

// Mask rasterizes the polygon into a single-channel coverage raster: fully
// opaque inside, transparent outside, anti-aliased along the boundary.
func (p Polygon) Mask(canvasW, canvasH int) *image.Alpha {
	r := vector.NewRasterizer(canvasW, canvasH)
	r.DrawOp = draw.Src
	p.addTo(r)
	dst := image.NewAlpha(image.Rect(0, 0, canvasW, canvasH))
	r.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}

// Outline rasterizes a stroke of the polygon boundary. Width is
// StrokeWidthFraction of the shorter side, at least one pixel.
func (p Polygon) Outline(canvasW, canvasH int) *image.Alpha {
	t := math.Max(1, StrokeWidthFraction*math.Min(p.Width(), p.Height()))
	half := t / 2

	r := vector.NewRasterizer(canvasW, canvasH)
	r.DrawOp = draw.Src
	for i := range p {
		a := p[i]
		b := p[(i+1)%len(p)]
		addEdgeQuad(r, a, b, half)
	}
	dst := image.NewAlpha(image.Rect(0, 0, canvasW, canvasH))
	r.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}

func (p Polygon) addTo(r *vector.Rasterizer) {
	r.MoveTo(float32(p[0].X), float32(p[0].Y))
	for _, pt := range p[1:] {
		r.LineTo(float32(pt.X), float32(pt.Y))
	}
	r.ClosePath()
}

// addEdgeQuad adds a thick segment from a to b, extended by half the stroke
// width on both ends so adjacent edges cover the corners.
func addEdgeQuad(r *vector.Rasterizer, a, b Point, half float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux := dx / length
	uy := dy / length
	nx := -uy
	ny := ux

	ax := a.X - ux*half
	ay := a.Y - uy*half
	bx := b.X + ux*half
	by := b.Y + uy*half

	r.MoveTo(float32(ax+nx*half), float32(ay+ny*half))
	r.LineTo(float32(bx+nx*half), float32(by+ny*half))
	r.LineTo(float32(bx-nx*half), float32(by-ny*half))
	r.LineTo(float32(ax-nx*half), float32(ay-ny*half))
	r.ClosePath()
}
