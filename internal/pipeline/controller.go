// Resolution pipeline: turns a submitted job into style results.
//
// Preview jobs run on a bounded low-resolution canvas with all six styles;
// advanced jobs run a single style at native resolution. Styles are always
// generated one at a time with intermediates released between them. That
// sequential discipline is the memory-safety mechanism: it trades wall-clock
// time for a hard cap on peak resident raster buffers, so do not parallelize
// the style loop.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/slurpey/anvilizer/internal/compositor"
	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/extractor"
	"github.com/slurpey/anvilizer/internal/layerpkg"
	"github.com/slurpey/anvilizer/internal/shape"
)

type Config struct {
	PreviewLongEdge int           // long-edge cap for preview canvases
	MaxDimension    int           // auto-downscale bound for advanced jobs
	StepTimeout     time.Duration // soft timeout per extraction/composite step
}

func (c Config) withDefaults() Config {
	if c.PreviewLongEdge <= 0 {
		c.PreviewLongEdge = 1920
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = 8192
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 60 * time.Second
	}
	return c
}

type Controller struct {
	extractor *extractor.Extractor
	comp      *compositor.Compositor
	cfg       Config
}

func NewController(ext *extractor.Extractor, comp *compositor.Compositor, cfg Config) *Controller {
	return &Controller{extractor: ext, comp: comp, cfg: cfg.withDefaults()}
}

// Run executes one job to completion. Returns an error only for failures
// that are fatal to this job; extraction failures degrade instead.
func (p *Controller) Run(ctx context.Context, job *entity.Job) (*entity.JobResult, error) {
	canvas, downscaled := p.prepareCanvas(job)
	w := canvas.Rect.Dx()
	h := canvas.Rect.Dy()
	logrus.Infof("Job %s: %s pass on %dx%d canvas, %d style(s)", job.ID, job.Kind, w, h, len(job.Styles))

	poly := shape.Compute(w, h, job.Spec)
	mask := poly.Mask(w, h)

	result := &entity.JobResult{Downscaled: downscaled, Width: w, Height: h}

	// Extraction is the expensive step: run it at most once per job, and
	// only when a requested style consumes the mask.
	var subject *extractor.SubjectMask
	if needsSubject(job.Styles) {
		err := runStep(ctx, "subject extraction", p.cfg.StepTimeout, func() error {
			subject = p.extractor.Extract(ctx, canvas)
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.ModelUsed = string(subject.ModelUsed)
	}

	var lastComposite *image.NRGBA
	for _, style := range job.Styles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var out *image.NRGBA
		err := runStep(ctx, fmt.Sprintf("composite %s", style), p.cfg.StepTimeout, func() error {
			var subjectAlpha *image.Alpha
			if subject != nil {
				subjectAlpha = subject.Alpha
			}
			var cErr error
			out, cErr = p.comp.Composite(style, canvas, poly, mask, subjectAlpha, job.Spec)
			return cErr
		})
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
			return nil, fmt.Errorf("encode %s: %w", style, err)
		}
		result.Styles = append(result.Styles, entity.StyleResult{
			Style:  style,
			Data:   buf.Bytes(),
			Width:  w,
			Height: h,
		})

		// out goes out of scope here; the next style starts with only
		// the canvas, mask and subject resident.
		if job.Kind == entity.KindAdvanced && job.Layered {
			lastComposite = out
		}
	}

	if job.Kind == entity.KindAdvanced && job.Layered && lastComposite != nil {
		style := job.Styles[0]
		var subjectAlpha *image.Alpha
		if subject != nil {
			subjectAlpha = subject.Alpha
		}
		overlay := p.comp.Overlay(style, w, h, poly, mask, job.Spec)
		pkg, err := layerpkg.BuildPackage(canvas, subjectAlpha, overlay, lastComposite, entity.LayerMetadata{
			Style:      style,
			ColorHex:   job.Spec.Color.Hex(),
			BaseName:   job.Filename,
			Resolution: fmt.Sprintf("%dx%d", w, h),
			Spec:       job.Spec,
			HasSubject: subjectAlpha != nil && style.NeedsSubject(),
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("layer package: %w", err)
		}
		result.Package = pkg
	}

	return result, nil
}

// prepareCanvas crops the input to the requested aspect ratio and bounds its
// resolution: previews are capped (and conservatively upscaled when far
// below target), advanced passes keep native resolution up to the
// auto-downscale bound.
func (p *Controller) prepareCanvas(job *entity.Job) (*image.NRGBA, bool) {
	b := job.Input.Bounds()
	frac := job.Spec.Ratio.Fraction()

	// Largest centered crop matching the ratio.
	cw := b.Dx()
	ch := int(float64(cw)/frac + 0.5)
	if ch > b.Dy() {
		ch = b.Dy()
		cw = int(float64(ch)*frac + 0.5)
	}
	img := imaging.CropAnchor(job.Input, cw, ch, imaging.Center)

	if job.Kind == entity.KindAdvanced {
		if longEdge(cw, ch) > p.cfg.MaxDimension {
			img = imaging.Fit(img, p.cfg.MaxDimension, p.cfg.MaxDimension, imaging.Lanczos)
			logrus.Infof("Job %s: auto-downscaled from %dx%d to %dx%d", job.ID, cw, ch, img.Rect.Dx(), img.Rect.Dy())
			return img, true
		}
		return img, false
	}

	tw, th := job.Spec.Ratio.TargetSize()
	if longEdge(cw, ch) > p.cfg.PreviewLongEdge {
		return imaging.Fit(img, capDim(tw, p.cfg.PreviewLongEdge), capDim(th, p.cfg.PreviewLongEdge), imaging.Lanczos), false
	}

	// Upscale only when well below target, capped at 2x.
	if float64(cw) < 0.75*float64(tw) || float64(ch) < 0.75*float64(th) {
		scale := minFloat(float64(tw)/float64(cw), float64(th)/float64(ch))
		if scale > 2.0 {
			scale = 2.0
		}
		if scale > 1.0 {
			filter := imaging.Lanczos
			if cw*ch > 1_000_000 {
				filter = imaging.Linear
			}
			img = imaging.Resize(img, int(float64(cw)*scale+0.5), 0, filter)
		}
	}
	return img, false
}

func needsSubject(styles []entity.Style) bool {
	for _, s := range styles {
		if s.NeedsSubject() {
			return true
		}
	}
	return false
}

// runStep executes fn with a soft timeout. On timeout the job fails instead
// of hanging the worker; the step goroutine is left to finish and its result
// is discarded.
func runStep(ctx context.Context, name string, timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s after %s: %w", name, timeout, entity.ErrStepTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func longEdge(w, h int) int {
	if w > h {
		return w
	}
	return h
}

func capDim(d, limit int) int {
	if d > limit {
		return limit
	}
	return d
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
