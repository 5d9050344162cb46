// Style compositing: the six anvil composition algorithms. Each variant is a
// pure function of the base image, the shape geometry, the subject mask and
// the placement spec. All buffers use straight (non-premultiplied) alpha.
package compositor

import (
	"fmt"
	"image"

	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/shape"
)

type Compositor struct {
	Gradient GradientSpec
}

func New() *Compositor {
	return &Compositor{Gradient: DefaultGradient()}
}

// Composite renders one style. base must be an opaque canvas-sized image
// anchored at (0,0); subject may be nil for styles that do not consume it.
// Output dimensions always equal the base dimensions.
func (c *Compositor) Composite(style entity.Style, base *image.NRGBA, poly shape.Polygon, mask *image.Alpha, subject *image.Alpha, spec entity.AnvilSpec) (*image.NRGBA, error) {
	w := base.Rect.Dx()
	h := base.Rect.Dy()
	spec = spec.Clamped()

	switch style {
	case entity.StyleFlat:
		out := cloneNRGBA(base)
		overOnto(out, colorWithMask(w, h, spec.Color, mask, spec.Opacity))
		return out, nil

	case entity.StyleStroke:
		out := cloneNRGBA(base)
		outline := poly.Outline(w, h)
		overOnto(out, colorWithMask(w, h, spec.Color, outline, 1.0))
		return out, nil

	case entity.StyleGradient:
		out := cloneNRGBA(base)
		overOnto(out, c.gradientOverlay(w, h, poly, mask, spec.Color))
		return out, nil

	case entity.StyleWindow:
		// Transparent outside the shape, untouched photo inside.
		return withMaskAlpha(base, mask), nil

	case entity.StyleSilhouette:
		out := fillColor(w, h, spec.Color, 255)
		overOnto(out, subjectCutout(base, subject))
		return out, nil

	case entity.StyleGradientSilhouette:
		stops := c.Gradient.Stops(spec.Color)
		out := fillColor(w, h, stops[0], 255)
		overOnto(out, c.gradientOverlay(w, h, poly, mask, spec.Color))
		overOnto(out, subjectCutout(base, subject))
		return out, nil
	}
	return nil, fmt.Errorf("composite: unknown style %q", style)
}

// Overlay renders only the anvil layer for a style, transparent outside the
// shape. Used by the layer exporter.
func (c *Compositor) Overlay(style entity.Style, w, h int, poly shape.Polygon, mask *image.Alpha, spec entity.AnvilSpec) *image.NRGBA {
	spec = spec.Clamped()
	switch style {
	case entity.StyleStroke:
		return colorWithMask(w, h, spec.Color, poly.Outline(w, h), 1.0)
	case entity.StyleGradient, entity.StyleGradientSilhouette:
		return c.gradientOverlay(w, h, poly, mask, spec.Color)
	case entity.StyleWindow:
		// The window "overlay" is the shape footprint made visible.
		return colorWithMask(w, h, spec.Color, mask, 0.5)
	default:
		return colorWithMask(w, h, spec.Color, mask, spec.Opacity)
	}
}

// gradientOverlay draws the nested step gradient, clipped to the base shape.
func (c *Compositor) gradientOverlay(w, h int, poly shape.Polygon, mask *image.Alpha, base entity.RGB) *image.NRGBA {
	stops := c.Gradient.Stops(base)
	overlay := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, f := range c.Gradient.NestScales {
		nested := poly.Nested(f)
		col := stops[min(i, len(stops)-1)]
		overOnto(overlay, colorWithMask(w, h, col, nested.Mask(w, h), 1.0))
	}
	mulMaskAlpha(overlay, mask)
	return overlay
}

// Cutout lifts the subject pixels out of the base image using the mask as
// per-pixel alpha. Shared with the layer exporter so the exported cutout
// layer matches what the silhouette styles composited.
func Cutout(base *image.NRGBA, subject *image.Alpha) *image.NRGBA {
	return subjectCutout(base, subject)
}

// subjectCutout lifts the subject pixels out of the base image using the
// mask as per-pixel alpha. A nil mask degrades to the whole image.
func subjectCutout(base *image.NRGBA, subject *image.Alpha) *image.NRGBA {
	if subject == nil {
		return cloneNRGBA(base)
	}
	return withMaskAlpha(base, subject)
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, src.Rect.Dx(), src.Rect.Dy()))
	copy(out.Pix, src.Pix)
	return out
}

func fillColor(w, h int, c entity.RGB, alpha uint8) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i] = c.R
		out.Pix[i+1] = c.G
		out.Pix[i+2] = c.B
		out.Pix[i+3] = alpha
	}
	return out
}

// colorWithMask builds a solid-color layer whose alpha is the mask coverage
// scaled by opacity.
func colorWithMask(w, h int, c entity.RGB, mask *image.Alpha, opacity float64) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	a := uint32(opacity*255 + 0.5)
	for y := 0; y < h; y++ {
		mi := y * mask.Stride
		oi := y * out.Stride
		for x := 0; x < w; x++ {
			m := uint32(mask.Pix[mi+x])
			if m == 0 {
				oi += 4
				continue
			}
			out.Pix[oi] = c.R
			out.Pix[oi+1] = c.G
			out.Pix[oi+2] = c.B
			out.Pix[oi+3] = uint8(a * m / 255)
			oi += 4
		}
	}
	return out
}

// withMaskAlpha copies src with its alpha multiplied by the mask.
func withMaskAlpha(src *image.NRGBA, mask *image.Alpha) *image.NRGBA {
	out := cloneNRGBA(src)
	mulMaskAlpha(out, mask)
	return out
}

func mulMaskAlpha(img *image.NRGBA, mask *image.Alpha) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	for y := 0; y < h; y++ {
		mi := y * mask.Stride
		ii := y * img.Stride
		for x := 0; x < w; x++ {
			a := uint32(img.Pix[ii+3]) * uint32(mask.Pix[mi+x]) / 255
			img.Pix[ii+3] = uint8(a)
			ii += 4
		}
	}
}

// overOnto composites src over dst in place using straight-alpha source-over.
// Both images must share dimensions and be anchored at (0,0).
func overOnto(dst, src *image.NRGBA) {
	n := len(dst.Pix)
	for i := 0; i < n; i += 4 {
		sa := uint32(src.Pix[i+3])
		if sa == 0 {
			continue
		}
		if sa == 255 {
			dst.Pix[i] = src.Pix[i]
			dst.Pix[i+1] = src.Pix[i+1]
			dst.Pix[i+2] = src.Pix[i+2]
			dst.Pix[i+3] = 255
			continue
		}
		da := uint32(dst.Pix[i+3]) * (255 - sa) / 255
		outA := sa + da
		if outA == 0 {
			dst.Pix[i+3] = 0
			continue
		}
		for c := 0; c < 3; c++ {
			s := uint32(src.Pix[i+c])
			d := uint32(dst.Pix[i+c])
			dst.Pix[i+c] = uint8((s*sa + d*da) / outA)
		}
		dst.Pix[i+3] = uint8(outA)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
