package compositor

import (
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/slurpey/anvilizer/internal/entity"
)

// GradientSpec carries the tone-stop formula and the nested-shape layout of
// the step gradient. Both are brand assets, kept as data so they can be
// swapped without touching the compositing code.
type GradientSpec struct {
	// MixFactors are white-mix amounts for each stop, lightest first.
	// 0 keeps the base color, 1 yields white.
	MixFactors []float64
	// NestScales are the relative sizes of the nested shapes, outermost
	// first. Each nested shape is drawn with the matching stop color.
	NestScales []float64
}

// DefaultGradient reproduces the four-stop brand gradient: nested shapes at
// 100/75/50/25 % of the base size, tinted toward white by 75/50/25/0 %.
func DefaultGradient() GradientSpec {
	return GradientSpec{
		MixFactors: []float64{0.75, 0.5, 0.25, 0.0},
		NestScales: []float64{1.0, 0.75, 0.5, 0.25},
	}
}

// Stops derives the gradient colors from the base color, lightest first.
func (g GradientSpec) Stops(base entity.RGB) []entity.RGB {
	c := colorful.Color{
		R: float64(base.R) / 255,
		G: float64(base.G) / 255,
		B: float64(base.B) / 255,
	}
	white := colorful.Color{R: 1, G: 1, B: 1}
	stops := make([]entity.RGB, 0, len(g.MixFactors))
	for _, f := range g.MixFactors {
		mixed := c.BlendRgb(white, f)
		stops = append(stops, entity.RGB{
			R: uint8(mixed.R*255 + 0.5),
			G: uint8(mixed.G*255 + 0.5),
			B: uint8(mixed.B*255 + 0.5),
		})
	}
	return stops
}
