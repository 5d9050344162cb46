package entity

import (
	"fmt"
	"strings"
)

// Style is one of the six anvil composition styles.
type Style string

const (
	StyleFlat               Style = "Flat"
	StyleStroke             Style = "Stroke"
	StyleGradient           Style = "Gradient"
	StyleWindow             Style = "Window"
	StyleSilhouette         Style = "Silhouette"
	StyleGradientSilhouette Style = "Gradient Silhouette"
)

// AllStyles returns the six styles in generation order.
func AllStyles() []Style {
	return []Style{
		StyleFlat,
		StyleStroke,
		StyleGradient,
		StyleWindow,
		StyleSilhouette,
		StyleGradientSilhouette,
	}
}

func ParseStyle(s string) (Style, error) {
	for _, style := range AllStyles() {
		if strings.EqualFold(string(style), s) {
			return style, nil
		}
	}
	return "", fmt.Errorf("%w: unknown style %q", ErrInvalidSpec, s)
}

// NeedsSubject reports whether the style consumes the extracted subject mask.
func (s Style) NeedsSubject() bool {
	return s == StyleSilhouette || s == StyleGradientSilhouette
}

// AspectRatio of the output canvas.
type AspectRatio string

const (
	Ratio16x9 AspectRatio = "16:9"
	Ratio1x1  AspectRatio = "1:1"
	Ratio9x16 AspectRatio = "9:16"
)

func ParseRatio(s string) (AspectRatio, error) {
	switch AspectRatio(s) {
	case Ratio16x9, Ratio1x1, Ratio9x16:
		return AspectRatio(s), nil
	}
	return "", fmt.Errorf("%w: unknown aspect ratio %q", ErrInvalidSpec, s)
}

// TargetSize returns the preview canvas size for the ratio.
func (r AspectRatio) TargetSize() (int, int) {
	switch r {
	case Ratio1x1:
		return 1080, 1080
	case Ratio9x16:
		return 1080, 1920
	default:
		return 1920, 1080
	}
}

// Fraction returns width/height of the ratio.
func (r AspectRatio) Fraction() float64 {
	w, h := r.TargetSize()
	return float64(w) / float64(h)
}

// RGB is an 8-bit color triple.
type RGB struct {
	R, G, B uint8
}

func ParseHexColor(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("%w: color must be #RRGGBB, got %q", ErrInvalidSpec, s)
	}
	var c RGB
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return RGB{}, fmt.Errorf("%w: color must be #RRGGBB, got %q", ErrInvalidSpec, s)
	}
	return c, nil
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// AnvilSpec describes the shape placement and coloring for one job.
// Immutable once the job is submitted.
type AnvilSpec struct {
	Scale   float64     `json:"scale"`    // fraction of canvas width, 0.5..1.0
	OffsetX float64     `json:"offset_x"` // -1..1, fraction of remaining slack
	OffsetY float64     `json:"offset_y"` // -1..1
	Color   RGB         `json:"color"`
	Opacity float64     `json:"opacity"` // 0..1
	Ratio   AspectRatio `json:"ratio"`
}

// Validate rejects a malformed spec before it enters the queue.
func (s AnvilSpec) Validate() error {
	if s.Scale < 0.5 || s.Scale > 1.0 {
		return fmt.Errorf("%w: scale %.2f outside [0.5, 1.0]", ErrInvalidSpec, s.Scale)
	}
	if s.OffsetX < -1 || s.OffsetX > 1 {
		return fmt.Errorf("%w: offset_x %.2f outside [-1, 1]", ErrInvalidSpec, s.OffsetX)
	}
	if s.OffsetY < -1 || s.OffsetY > 1 {
		return fmt.Errorf("%w: offset_y %.2f outside [-1, 1]", ErrInvalidSpec, s.OffsetY)
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		return fmt.Errorf("%w: opacity %.2f outside [0, 1]", ErrInvalidSpec, s.Opacity)
	}
	if _, err := ParseRatio(string(s.Ratio)); err != nil {
		return err
	}
	return nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamped returns a copy with all parameters forced into range. The shape
// engine works on clamped values so out-of-range input can never push the
// shape off the canvas.
func (s AnvilSpec) Clamped() AnvilSpec {
	out := s
	out.Scale = clampFloat(s.Scale, 0.0, 1.0)
	out.OffsetX = clampFloat(s.OffsetX, -1.0, 1.0)
	out.OffsetY = clampFloat(s.OffsetY, -1.0, 1.0)
	out.Opacity = clampFloat(s.Opacity, 0.0, 1.0)
	return out
}
