package extractor

import (
	"context"
	"fmt"
	"image"

	"github.com/cenkalti/dominantcolor"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// heuristicSegmenter is the zero-dependency last resort before degrading:
// it assumes the border of the photo is background, finds the dominant
// border color and keys the subject by Lab color distance from it. Crude
// next to a real model, but it keeps silhouette styles usable offline.
type heuristicSegmenter struct {
	borderFrac float64
	// Lab distances mapping to fully background / fully subject.
	distLo, distHi float64
}

func newHeuristicSegmenter() *heuristicSegmenter {
	return &heuristicSegmenter{borderFrac: 0.04, distLo: 0.12, distHi: 0.35}
}

func (s *heuristicSegmenter) Name() string { return "border-colorkey" }

func (s *heuristicSegmenter) Segment(ctx context.Context, img image.Image) (*image.Alpha, error) {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()
	if w < 8 || h < 8 {
		return nil, fmt.Errorf("image %dx%d too small for border sampling", w, h)
	}

	bg := dominantcolor.Find(borderRing(img, s.borderFrac))
	bgLab, ok := colorful.MakeColor(bg)
	if !ok {
		return nil, fmt.Errorf("border color has zero alpha")
	}

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	span := s.distHi - s.distLo
	for y := 0; y < h; y++ {
		if y%64 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		row := y * mask.Stride
		for x := 0; x < w; x++ {
			px, ok := colorful.MakeColor(img.At(b.Min.X+x, b.Min.Y+y))
			if !ok {
				continue
			}
			d := bgLab.DistanceLab(px)
			switch {
			case d <= s.distLo:
				// background
			case d >= s.distHi:
				mask.Pix[row+x] = 0xFF
			default:
				mask.Pix[row+x] = uint8((d - s.distLo) / span * 255)
			}
		}
	}
	return mask, nil
}

// borderRing collects the outer frame of the image into a small strip so
// dominantcolor only sees presumed-background pixels.
func borderRing(img image.Image, frac float64) image.Image {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()
	t := int(float64(minInt(w, h)) * frac)
	if t < 1 {
		t = 1
	}

	count := 2*t*w + 2*t*(h-2*t)
	strip := image.NewNRGBA(image.Rect(0, 0, count, 1))
	i := 0
	put := func(x, y int) {
		r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
		strip.Pix[i] = uint8(r >> 8)
		strip.Pix[i+1] = uint8(g >> 8)
		strip.Pix[i+2] = uint8(bl >> 8)
		strip.Pix[i+3] = uint8(a >> 8)
		i += 4
	}
	for x := 0; x < w; x++ {
		for dy := 0; dy < t; dy++ {
			put(x, dy)
			put(x, h-1-dy)
		}
	}
	for y := t; y < h-t; y++ {
		for dx := 0; dx < t; dx++ {
			put(dx, y)
			put(w-1-dx, y)
		}
	}
	return strip
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
