package entity

import (
	"image"
	"time"
)

type JobKind string

const (
	KindPreview  JobKind = "preview"
	KindAdvanced JobKind = "advanced"
)

type JobStatus string

const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

// Job is one unit of processing work. Created on submission, mutated only by
// the scheduler and the worker executing it.
type Job struct {
	ID       string
	Kind     JobKind
	Input    image.Image
	Spec     AnvilSpec
	Styles   []Style
	Layered  bool
	Filename string

	Status      JobStatus
	Result      *JobResult
	ErrorDetail string
	Cancelled   bool

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// StyleResult is one encoded output image, immutable once produced.
type StyleResult struct {
	Style  Style  `json:"style"`
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// JobResult is the complete output of a finished job. All-or-nothing: a job
// never carries a partial style set.
type JobResult struct {
	Styles     []StyleResult
	Package    *LayerPackage
	ModelUsed  string
	Downscaled bool
	Width      int
	Height     int
}

// JobView is the snapshot returned to polling callers.
type JobView struct {
	JobID       string     `json:"job_id"`
	Kind        JobKind    `json:"kind"`
	Status      JobStatus  `json:"status"`
	Position    int        `json:"position,omitempty"`
	ErrorDetail string     `json:"error,omitempty"`
	Result      *JobResult `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
}

// LayerFile is one named artifact inside a layer package.
type LayerFile struct {
	Name string
	Data []byte
}

// LayerMetadata records how a layer package was produced.
type LayerMetadata struct {
	Style      Style     `json:"style"`
	ColorHex   string    `json:"color_hex"`
	ColorName  string    `json:"color_name"`
	BaseName   string    `json:"base_name"`
	Resolution string    `json:"resolution"`
	Spec       AnvilSpec `json:"spec"`
	HasSubject bool      `json:"has_subject_cutout"`
	CreatedAt  time.Time `json:"created_at"`
}

// LayerPackage is the multi-file editable export for an advanced job.
type LayerPackage struct {
	Layers   []LayerFile
	Metadata LayerMetadata
}

// SessionMeta names the persisted artifacts of one job session.
type SessionMeta struct {
	BaseName   string `json:"base_name"`
	ColourSlug string `json:"colour_slug"`
}
