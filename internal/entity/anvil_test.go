package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStyle(t *testing.T) {
	tests := []struct {
		in      string
		want    Style
		wantErr bool
	}{
		{in: "Flat", want: StyleFlat},
		{in: "flat", want: StyleFlat},
		{in: "WINDOW", want: StyleWindow},
		{in: "gradient silhouette", want: StyleGradientSilhouette},
		{in: "Neon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStyle(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllStylesOrder(t *testing.T) {
	styles := AllStyles()
	require.Len(t, styles, 6)
	assert.Equal(t, StyleFlat, styles[0])
	assert.Equal(t, StyleGradientSilhouette, styles[5])
}

func TestNeedsSubject(t *testing.T) {
	assert.False(t, StyleFlat.NeedsSubject())
	assert.False(t, StyleStroke.NeedsSubject())
	assert.False(t, StyleWindow.NeedsSubject())
	assert.True(t, StyleSilhouette.NeedsSubject())
	assert.True(t, StyleGradientSilhouette.NeedsSubject())
}

func TestRatioTargetSize(t *testing.T) {
	tests := []struct {
		ratio AspectRatio
		w, h  int
	}{
		{ratio: Ratio16x9, w: 1920, h: 1080},
		{ratio: Ratio1x1, w: 1080, h: 1080},
		{ratio: Ratio9x16, w: 1080, h: 1920},
	}
	for _, tt := range tests {
		w, h := tt.ratio.TargetSize()
		assert.Equal(t, tt.w, w)
		assert.Equal(t, tt.h, h)
	}

	_, err := ParseRatio("4:3")
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{in: "#0070F2", want: RGB{R: 0x00, G: 0x70, B: 0xF2}},
		{in: "0070f2", want: RGB{R: 0x00, G: 0x70, B: 0xF2}},
		{in: " #FFFFFF ", want: RGB{R: 0xFF, G: 0xFF, B: 0xFF}},
		{in: "#FFF", wantErr: true},
		{in: "#GGGGGG", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	c := RGB{R: 0xAA, G: 0x08, B: 0x43}
	assert.Equal(t, "#AA0843", c.Hex())

	parsed, err := ParseHexColor(c.Hex())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
}

func TestSpecValidate(t *testing.T) {
	valid := AnvilSpec{Scale: 0.7, Opacity: 0.5, Ratio: Ratio16x9}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*AnvilSpec)
	}{
		{name: "scale too small", mutate: func(s *AnvilSpec) { s.Scale = 0.4 }},
		{name: "scale too large", mutate: func(s *AnvilSpec) { s.Scale = 1.1 }},
		{name: "offset x out of range", mutate: func(s *AnvilSpec) { s.OffsetX = 1.5 }},
		{name: "offset y out of range", mutate: func(s *AnvilSpec) { s.OffsetY = -2 }},
		{name: "opacity out of range", mutate: func(s *AnvilSpec) { s.Opacity = 1.2 }},
		{name: "bad ratio", mutate: func(s *AnvilSpec) { s.Ratio = "21:9" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			assert.ErrorIs(t, spec.Validate(), ErrInvalidSpec)
		})
	}
}

func TestSpecClamped(t *testing.T) {
	spec := AnvilSpec{Scale: 3.0, OffsetX: 5, OffsetY: -5, Opacity: 2, Ratio: Ratio16x9}
	clamped := spec.Clamped()

	assert.InDelta(t, 1.0, clamped.Scale, 1e-9)
	assert.InDelta(t, 1.0, clamped.OffsetX, 1e-9)
	assert.InDelta(t, -1.0, clamped.OffsetY, 1e-9)
	assert.InDelta(t, 1.0, clamped.Opacity, 1e-9)
	// The original is untouched.
	assert.InDelta(t, 3.0, spec.Scale, 1e-9)
}
