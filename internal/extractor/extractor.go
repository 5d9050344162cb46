// Subject extraction with a model-fallback chain. The extractor never fails:
// when every model in the chain errors out it returns a fully opaque mask
// tagged degraded, and silhouette styles show the whole image.
package extractor

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type ModelTag string

const (
	ModelPrimary  ModelTag = "primary"
	ModelFallback ModelTag = "fallback"
	ModelDegraded ModelTag = "degraded"
)

// SubjectMask is the per-pixel alpha isolating the photographic subject.
type SubjectMask struct {
	Alpha     *image.Alpha
	ModelUsed ModelTag
}

// Segmenter produces a subject alpha mask for an image.
type Segmenter interface {
	Name() string
	Segment(ctx context.Context, img image.Image) (*image.Alpha, error)
}

type Config struct {
	PrimaryURL    string
	PrimaryModel  string
	FallbackURL   string
	FallbackModel string
	Timeout       time.Duration
}

// Extractor runs the segmentation chain. Models are built once on first use
// and shared read-only across jobs; the once guard keeps concurrent first-use
// from loading them twice.
type Extractor struct {
	cfg     Config
	once    sync.Once
	models  []Segmenter
	timeout time.Duration
}

func New(cfg Config) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Extractor{cfg: cfg, timeout: cfg.Timeout}
}

// NewWithModels builds an extractor over an explicit model chain.
func NewWithModels(timeout time.Duration, models ...Segmenter) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	e := &Extractor{timeout: timeout}
	e.once.Do(func() { e.models = models })
	return e
}

func (e *Extractor) load() {
	if e.cfg.PrimaryURL != "" {
		e.models = append(e.models, newRemoteSegmenter(e.cfg.PrimaryURL, e.cfg.PrimaryModel, e.timeout))
	}
	if e.cfg.FallbackURL != "" {
		e.models = append(e.models, newRemoteSegmenter(e.cfg.FallbackURL, e.cfg.FallbackModel, e.timeout))
	}
	// Local heuristic is always the last model before degrading.
	e.models = append(e.models, newHeuristicSegmenter())
	for _, m := range e.models {
		logrus.Infof("Segmentation model registered: %s", m.Name())
	}
}

// Extract runs the chain and returns a mask matching the input dimensions.
// Never returns an error: extraction failure degrades, it does not fail the
// job.
func (e *Extractor) Extract(ctx context.Context, img image.Image) *SubjectMask {
	e.once.Do(e.load)

	for i, model := range e.models {
		stepCtx, cancel := context.WithTimeout(ctx, e.timeout)
		alpha, err := model.Segment(stepCtx, img)
		cancel()
		if err != nil {
			logrus.Warnf("Segmentation model %s failed: %v", model.Name(), err)
			continue
		}
		tag := ModelPrimary
		if i > 0 {
			tag = ModelFallback
		}
		logrus.Infof("Subject extraction succeeded using model: %s", model.Name())
		return &SubjectMask{Alpha: alpha, ModelUsed: tag}
	}

	logrus.Warn("All segmentation models failed, using degraded full-opaque mask")
	return &SubjectMask{Alpha: opaqueMask(img.Bounds()), ModelUsed: ModelDegraded}
}

func opaqueMask(bounds image.Rectangle) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for i := range mask.Pix {
		mask.Pix[i] = 0xFF
	}
	return mask
}
