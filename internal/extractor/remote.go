package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"time"
)

// remoteSegmenter calls an HTTP segmentation endpoint (rembg-server API:
// POST the image, get back a PNG whose alpha channel is the subject mask).
type remoteSegmenter struct {
	baseURL string
	model   string
	client  *http.Client
}

func newRemoteSegmenter(baseURL, model string, timeout time.Duration) *remoteSegmenter {
	return &remoteSegmenter{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *remoteSegmenter) Name() string {
	if s.model == "" {
		return s.baseURL
	}
	return s.model
}

func (s *remoteSegmenter) Segment(ctx context.Context, img image.Image) (*image.Alpha, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	endpoint := s.baseURL + "/api/remove"
	if s.model != "" {
		endpoint += "?model=" + url.QueryEscape(s.model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("segmentation endpoint returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	cutout, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cutout: %w", err)
	}
	if cutout.Bounds().Dx() != img.Bounds().Dx() || cutout.Bounds().Dy() != img.Bounds().Dy() {
		return nil, fmt.Errorf("cutout size %v does not match input %v", cutout.Bounds().Size(), img.Bounds().Size())
	}
	return alphaChannel(cutout), nil
}

func alphaChannel(img image.Image) *image.Alpha {
	b := img.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * mask.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			mask.Pix[row+x-b.Min.X] = uint8(a >> 8)
		}
	}
	return mask
}
