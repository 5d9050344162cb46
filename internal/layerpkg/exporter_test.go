package layerpkg

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slurpey/anvilizer/internal/compositor"
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

func testBackground(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*img.Stride + x*4
			img.Pix[i] = uint8(50 + x%100)
			img.Pix[i+1] = uint8(80 + y%100)
			img.Pix[i+2] = 120
			img.Pix[i+3] = 255
		}
	}
	return img
}

func buildTestPackage(t *testing.T, style entity.Style, subject *image.Alpha, hasSubject bool) (*entity.LayerPackage, *image.NRGBA, *image.NRGBA, *image.NRGBA) {
	t.Helper()
	const w, h = 160, 90
	spec := testSpec()
	bg := testBackground(w, h)
	poly := shape.Compute(w, h, spec)
	mask := poly.Mask(w, h)

	comp := compositor.New()
	composite, err := comp.Composite(style, bg, poly, mask, subject, spec)
	require.NoError(t, err)
	overlay := comp.Overlay(style, w, h, poly, mask, spec)

	pkg, err := BuildPackage(bg, subject, overlay, composite, entity.LayerMetadata{
		Style:      style,
		ColorHex:   spec.Color.Hex(),
		ColorName:  "Blue 2",
		BaseName:   "photo",
		Resolution: "160x90",
		Spec:       spec,
		HasSubject: hasSubject,
	})
	require.NoError(t, err)
	return pkg, bg, overlay, composite
}

func layerByName(pkg *entity.LayerPackage, name string) *entity.LayerFile {
	for i := range pkg.Layers {
		if pkg.Layers[i].Name == name {
			return &pkg.Layers[i]
		}
	}
	return nil
}

func decodeLayer(t *testing.T, pkg *entity.LayerPackage, name string) *image.NRGBA {
	t.Helper()
	layer := layerByName(pkg, name)
	require.NotNil(t, layer, name)
	img, err := png.Decode(bytes.NewReader(layer.Data))
	require.NoError(t, err)
	out := image.NewNRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

// blendOver replicates straight-alpha source-over in float math, for checking
// that the exported layers stack back into the composite.
func blendOver(dst, src *image.NRGBA) {
	for i := 0; i < len(dst.Pix); i += 4 {
		sa := float64(src.Pix[i+3]) / 255
		da := float64(dst.Pix[i+3]) / 255 * (1 - sa)
		outA := sa + da
		if outA == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			s := float64(src.Pix[i+c])
			d := float64(dst.Pix[i+c])
			dst.Pix[i+c] = uint8((s*sa+d*da)/outA + 0.5)
		}
		dst.Pix[i+3] = uint8(outA*255 + 0.5)
	}
}

func TestBuildPackageLayout(t *testing.T) {
	pkg, _, _, _ := buildTestPackage(t, entity.StyleFlat, nil, false)

	var names []string
	for _, l := range pkg.Layers {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{LayerBackground, LayerOverlay, LayerComposite, LayerInfo, LayerReadme}, names)

	// Raster layers all share the package dimensions.
	for _, name := range []string{LayerBackground, LayerOverlay, LayerComposite} {
		img := decodeLayer(t, pkg, name)
		assert.Equal(t, 160, img.Bounds().Dx(), name)
		assert.Equal(t, 90, img.Bounds().Dy(), name)
	}

	info := layerByName(pkg, LayerInfo)
	require.NotNil(t, info)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(info.Data, &decoded))
	export, ok := decoded["anvilizer_export"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Flat", export["style"])
	assert.Equal(t, "160x90", export["resolution"])
}

func TestBuildPackageWithSubject(t *testing.T) {
	subject := image.NewAlpha(image.Rect(0, 0, 160, 90))
	for y := 30; y < 60; y++ {
		for x := 60; x < 100; x++ {
			subject.Pix[y*subject.Stride+x] = 255
		}
	}

	pkg, bg, _, _ := buildTestPackage(t, entity.StyleSilhouette, subject, true)

	cutout := decodeLayer(t, pkg, LayerSubject)
	// Subject pixels keep the photo, the rest is transparent.
	i := 40*cutout.Stride + 70*4
	j := 40*bg.Stride + 70*4
	assert.Equal(t, bg.Pix[j:j+4], cutout.Pix[i:i+4])
	assert.EqualValues(t, 0, cutout.Pix[5*cutout.Stride+5*4+3])

	readme := layerByName(pkg, LayerReadme)
	require.NotNil(t, readme)
	assert.Contains(t, string(readme.Data), LayerSubject)
}

func TestBuildPackageRejectsMismatchedDimensions(t *testing.T) {
	bg := testBackground(160, 90)
	small := image.NewNRGBA(image.Rect(0, 0, 80, 45))

	_, err := BuildPackage(bg, nil, small, bg, entity.LayerMetadata{})
	assert.Error(t, err)
}

func TestBuildPackageRejectsMismatchedSubject(t *testing.T) {
	bg := testBackground(160, 90)
	smallMask := image.NewAlpha(image.Rect(0, 0, 80, 45))

	_, err := BuildPackage(bg, smallMask, bg, bg, entity.LayerMetadata{HasSubject: true})
	assert.Error(t, err)
}

// TestLayerStackingRoundTrip: for overlay styles, compositing the exported
// background and overlay layers reproduces the final composite within one
// count per channel.
func TestLayerStackingRoundTrip(t *testing.T) {
	for _, style := range []entity.Style{entity.StyleFlat, entity.StyleStroke, entity.StyleGradient} {
		t.Run(string(style), func(t *testing.T) {
			pkg, _, _, _ := buildTestPackage(t, style, nil, false)

			stacked := decodeLayer(t, pkg, LayerBackground)
			overlay := decodeLayer(t, pkg, LayerOverlay)
			composite := decodeLayer(t, pkg, LayerComposite)
			blendOver(stacked, overlay)

			for i := 0; i < len(stacked.Pix); i++ {
				diff := int(stacked.Pix[i]) - int(composite.Pix[i])
				if diff < 0 {
					diff = -diff
				}
				require.LessOrEqual(t, diff, 1, "pixel byte %d", i)
			}
		})
	}
}

func TestZipBytes(t *testing.T) {
	pkg, _, _, _ := buildTestPackage(t, entity.StyleFlat, nil, false)

	data, err := ZipBytes(pkg)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, len(pkg.Layers))

	for i, f := range zr.File {
		assert.Equal(t, pkg.Layers[i].Name, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.True(t, bytes.Equal(pkg.Layers[i].Data, buf.Bytes()))
	}
}
