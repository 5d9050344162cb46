package service

import (
	"image"

	"github.com/slurpey/anvilizer/internal/database"
	"github.com/slurpey/anvilizer/internal/entity"
	"github.com/slurpey/anvilizer/internal/pkg/events"
	"github.com/slurpey/anvilizer/internal/scheduler"
)

// AnvilService is the core surface handed to transport: job submission,
// polling, cancellation and artifact downloads.
type AnvilService interface {
	SubmitPreview(img image.Image, spec entity.AnvilSpec, filename string) (string, error)
	SubmitAdvanced(img image.Image, spec entity.AnvilSpec, style entity.Style, layered bool, filename string) (string, error)
	JobStatus(id string) (*entity.JobView, error)
	CancelJob(id string) error
	StyleDownload(uid, styleName string) (data []byte, filename string, err error)
	PackageDownload(uid string) (data []byte, filename string, err error)
	DownloadAll(uid string) (data []byte, filename string, err error)
	Stats() map[string]any
	CleanupOldSessions(maxSessions int)
}

// Limits are the admission bounds checked before a job enters the queue.
type Limits struct {
	MaxPixels    int // reject above this even though auto-downscale exists
	MaxDimension int // hard cap on either edge
}

func (l Limits) withDefaults() Limits {
	if l.MaxPixels <= 0 {
		l.MaxPixels = 80_000_000
	}
	if l.MaxDimension <= 0 {
		l.MaxDimension = 16384
	}
	return l
}

type anvilService struct {
	sched    *scheduler.Scheduler
	repo     database.SessionRepository
	producer events.Producer
	limits   Limits
}

func NewAnvilService(sched *scheduler.Scheduler, repo database.SessionRepository, producer events.Producer, limits Limits) AnvilService {
	s := &anvilService{
		sched:    sched,
		repo:     repo,
		producer: producer,
		limits:   limits.withDefaults(),
	}
	sched.OnFinished = s.onFinished
	return s
}
