package compositor

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/shape"
)

func testSpec() entity.AnvilSpec {
	return entity.AnvilSpec{
		Scale:   0.7,
		Color:   entity.RGB{R: 0x00, G: 0x70, B: 0xF2},
		Opacity: 0.5,
		Ratio:   entity.Ratio16x9,
	}
}

func grayBase(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 100
		img.Pix[i+1] = 100
		img.Pix[i+2] = 100
		img.Pix[i+3] = 255
	}
	return img
}

func opaqueMask(w, h int) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	for i := range m.Pix {
		m.Pix[i] = 255
	}
	return m
}

func pixelAt(img *image.NRGBA, x, y int) [4]uint8 {
	i := y*img.Stride + x*4
	return [4]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
}

func TestCompositeFlat(t *testing.T) {
	const w, h = 192, 108
	spec := testSpec()
	base := grayBase(w, h)
	poly := shape.Compute(w, h, spec)
	mask := poly.Mask(w, h)

	out, err := New().Composite(entity.StyleFlat, base, poly, mask, nil, spec)
	require.NoError(t, err)

	// Outside the shape the photo is untouched.
	assert.Equal(t, pixelAt(base, 2, 2), pixelAt(out, 2, 2))

	// Inside, the brand color is blended at the configured opacity.
	in := pixelAt(out, w/2, h/2)
	assert.EqualValues(t, 255, in[3])
	assert.InDelta(t, (0*128+100*127)/255.0, float64(in[0]), 1.0)
	assert.InDelta(t, (112*128+100*127)/255.0, float64(in[1]), 1.0)
	assert.InDelta(t, (242*128+100*127)/255.0, float64(in[2]), 1.0)

	// The base image is not mutated.
	assert.Equal(t, [4]uint8{100, 100, 100, 255}, pixelAt(base, w/2, h/2))
}

func TestCompositeWindow(t *testing.T) {
	const w, h = 192, 108
	spec := testSpec()
	base := grayBase(w, h)
	poly := shape.Compute(w, h, spec)
	mask := poly.Mask(w, h)

	out, err := New().Composite(entity.StyleWindow, base, poly, mask, nil, spec)
	require.NoError(t, err)

	// Fully transparent wherever the mask is zero, untouched photo inside.
	for y := 0; y < h; y += 9 {
		for x := 0; x < w; x += 16 {
			m := mask.Pix[y*mask.Stride+x]
			p := pixelAt(out, x, y)
			if m == 0 {
				assert.EqualValues(t, 0, p[3], "expected transparency at %d,%d", x, y)
			} else if m == 255 {
				assert.Equal(t, [4]uint8{100, 100, 100, 255}, p)
			}
		}
	}
}

func TestCompositeStrokeIgnoresSubject(t *testing.T) {
	const w, h = 192, 108
	spec := testSpec()
	base := grayBase(w, h)
	poly := shape.Compute(w, h, spec)
	mask := poly.Mask(w, h)

	// An all-zero subject mask must not change the stroke output.
	empty := image.NewAlpha(image.Rect(0, 0, w, h))
	a, err := New().Composite(entity.StyleStroke, base, poly, mask, nil, spec)
	require.NoError(t, err)
	b, err := New().Composite(entity.StyleStroke, base, poly, mask, empty, spec)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(a.Pix, b.Pix))

	// Interior of the shape stays the original photo.
	assert.Equal(t, [4]uint8{100, 100, 100, 255}, pixelAt(a, w/2, h/2))
}

func TestCompositeSilhouette(t *testing.T) {
	const w, h = 192, 108
	spec := testSpec()
	base := grayBase(w, h)
	poly := shape.Compute(w, h, spec)
	mask := poly.Mask(w, h)

	t.Run("degraded opaque mask keeps the photo", func(t *testing.T) {
		out, err := New().Composite(entity.StyleSilhouette, base, poly, mask, opaqueMask(w, h), spec)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(base.Pix, out.Pix))
	})

	t.Run("empty mask leaves a pure color fill", func(t *testing.T) {
		empty := image.NewAlpha(image.Rect(0, 0, w, h))
		out, err := New().Composite(entity.StyleSilhouette, base, poly, mask, empty, spec)
		require.NoError(t, err)
		assert.Equal(t, [4]uint8{0x00, 0x70, 0xF2, 255}, pixelAt(out, 2, 2))
		assert.Equal(t, [4]uint8{0x00, 0x70, 0xF2, 255}, pixelAt(out, w/2, h/2))
	})

	t.Run("partial mask keeps subject over the fill", func(t *testing.T) {
		subject := image.NewAlpha(image.Rect(0, 0, w, h))
		subject.Pix[10*subject.Stride+10] = 255
		out, err := New().Composite(entity.StyleSilhouette, base, poly, mask, subject, spec)
		require.NoError(t, err)
		assert.Equal(t, [4]uint8{100, 100, 100, 255}, pixelAt(out, 10, 10))
		assert.Equal(t, [4]uint8{0x00, 0x70, 0xF2, 255}, pixelAt(out, 11, 10))
	})
}

func TestCompositeDeterministic(t *testing.T) {
	const w, h = 160, 90
	spec := testSpec()
	base := grayBase(w, h)
	poly := shape.Compute(w, h, spec)
	mask := poly.Mask(w, h)
	subject := opaqueMask(w, h)
	c := New()

	for _, style := range entity.AllStyles() {
		t.Run(string(style), func(t *testing.T) {
			a, err := c.Composite(style, base, poly, mask, subject, spec)
			require.NoError(t, err)
			b, err := c.Composite(style, base, poly, mask, subject, spec)
			require.NoError(t, err)

			assert.Equal(t, w, a.Rect.Dx())
			assert.Equal(t, h, a.Rect.Dy())
			assert.True(t, bytes.Equal(a.Pix, b.Pix))
		})
	}
}

func TestCompositeUnknownStyle(t *testing.T) {
	spec := testSpec()
	base := grayBase(32, 16)
	poly := shape.Compute(32, 16, spec)

	_, err := New().Composite(entity.Style("Neon"), base, poly, poly.Mask(32, 16), nil, spec)
	assert.Error(t, err)
}

func TestGradientStops(t *testing.T) {
	base := entity.RGB{R: 0x00, G: 0x70, B: 0xF2}
	stops := DefaultGradient().Stops(base)

	require.Len(t, stops, 4)

	// Lightest first, the final stop is the base color itself.
	assert.Equal(t, base, stops[3])
	for i := 1; i < len(stops); i++ {
		assert.GreaterOrEqual(t, stops[i-1].R, stops[i].R)
		assert.GreaterOrEqual(t, stops[i-1].G, stops[i].G)
		assert.GreaterOrEqual(t, stops[i-1].B, stops[i].B)
	}
}

func TestGradientOverlayClippedToShape(t *testing.T) {
	const w, h = 192, 108
	spec := testSpec()
	poly := shape.Compute(w, h, spec)
	mask := poly.Mask(w, h)

	overlay := New().Overlay(entity.StyleGradient, w, h, poly, mask, spec)

	// Nothing leaks outside the base shape.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.Pix[y*mask.Stride+x] == 0 {
				assert.EqualValues(t, 0, overlay.Pix[y*overlay.Stride+x*4+3])
			}
		}
	}

	// The innermost nested shape carries the base color.
	bottom := poly[2]
	bx := int(bottom.X)
	by := int(bottom.Y) - 3
	assert.Equal(t, [4]uint8{0x00, 0x70, 0xF2, 255}, pixelAt(overlay, bx, by))
}
