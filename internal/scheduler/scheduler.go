// Bounded-concurrency job scheduler. A FIFO queue feeds a fixed worker pool,
// default size one: the dominant cost of a job is raster memory, so
// concurrency stays capped at the number of memory budgets the process can
// afford, not the number of CPUs. Submission never blocks the caller; jobs
// past the queue depth are rejected immediately.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slurpey/anvilizer/internal/entity"
)

// maxWorkers bounds the pool regardless of configuration: each active job
// can hold gigabytes of raster buffers.
const maxWorkers = 4

// WorkerFunc executes one job and returns its result.
type WorkerFunc func(ctx context.Context, job *entity.Job) (*entity.JobResult, error)

type Config struct {
	Workers         int
	MaxQueueDepth   int
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Workers > maxWorkers {
		c.Workers = maxWorkers
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = 10
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	return c
}

type Scheduler struct {
	cfg Config
	run WorkerFunc

	mu      sync.RWMutex
	jobs    map[string]*entity.Job
	pending []string
	queued  int
	closed  bool

	wake chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnFinished, when set before Start, is called with a snapshot of a job
	// that reached a terminal state, before that state becomes visible to
	// Status. Used for result persistence and event publishing: a poller
	// that observes a terminal status can rely on the artifacts existing.
	OnFinished func(job *entity.Job)
}

func New(cfg Config, run WorkerFunc) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:  cfg,
		run:  run,
		jobs: make(map[string]*entity.Job),
		wake: make(chan struct{}, 1),
	}
}

// Start launches the worker pool and the result-cleanup ticker.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx, i)
	}
	s.wg.Add(1)
	go s.cleanupLoop(ctx)
	logrus.Infof("Scheduler started: %d worker(s), queue depth %d", s.cfg.Workers, s.cfg.MaxQueueDepth)
}

// Stop shuts the pool down and waits for the active job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	logrus.Info("Scheduler stopped")
}

// Submit admits a job to the queue and returns its ticket immediately.
// Returns ErrQueueOverflow when the queue is at depth.
func (s *Scheduler) Submit(job *entity.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = entity.StatusQueued
	job.CreatedAt = time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", entity.ErrSchedulerClosed
	}
	if s.queued >= s.cfg.MaxQueueDepth {
		s.mu.Unlock()
		return "", entity.ErrQueueOverflow
	}
	s.pending = append(s.pending, job.ID)
	s.jobs[job.ID] = job
	s.queued++
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	logrus.Infof("Submitted job %s (%s)", job.ID, job.Kind)
	return job.ID, nil
}

// dequeue pops the oldest pending job that is still queued and claims it as
// running in the same critical section, so a concurrent Cancel can never see
// it queued after its depth slot is released. Entries whose jobs were
// cancelled while waiting are skipped; their slot was freed at cancel time.
func (s *Scheduler) dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) > 0 {
		id := s.pending[0]
		s.pending = s.pending[1:]
		job, ok := s.jobs[id]
		if !ok || job.Status != entity.StatusQueued {
			continue
		}
		s.queued--
		job.Status = entity.StatusRunning
		job.StartedAt = time.Now()
		return id, true
	}
	return "", false
}

// Status returns a snapshot of the job. Position is 1-based and defined only
// while the job is queued; it strictly decreases as jobs ahead complete.
func (s *Scheduler) Status(jobID string) (*entity.JobView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	view := &entity.JobView{
		JobID:       job.ID,
		Kind:        job.Kind,
		Status:      job.Status,
		ErrorDetail: job.ErrorDetail,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Status == entity.StatusQueued {
		view.Position = s.positionLocked(job)
	}
	return view, nil
}

// positionLocked counts queued jobs admitted before this one, plus one.
func (s *Scheduler) positionLocked(job *entity.Job) int {
	pos := 1
	for _, other := range s.jobs {
		if other.ID != job.ID && other.Status == entity.StatusQueued && other.CreatedAt.Before(job.CreatedAt) {
			pos++
		}
	}
	return pos
}

// Cancel removes a queued job, or marks a running one for discard. A running
// composite is not preemptible; cancellation there is best-effort.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return entity.ErrJobNotFound
	}
	switch job.Status {
	case entity.StatusQueued:
		job.Cancelled = true
		job.Status = entity.StatusError
		job.ErrorDetail = "cancelled before execution"
		job.CompletedAt = time.Now()
		job.Input = nil
		// The depth slot is freed immediately; the stale pending entry is
		// skipped on dequeue.
		s.queued--
	case entity.StatusRunning:
		job.Cancelled = true
	default:
		return fmt.Errorf("%w: job already %s", entity.ErrJobNotQueued, job.Status)
	}
	logrus.Infof("Cancelled job %s", jobID)
	return nil
}

// Stats reports queue counters for the admin surface.
func (s *Scheduler) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[entity.JobStatus]int{}
	var pending []*entity.Job
	for _, job := range s.jobs {
		counts[job.Status]++
		if job.Status == entity.StatusQueued {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	pendingIDs := make([]string, 0, len(pending))
	for _, job := range pending {
		pendingIDs = append(pendingIDs, job.ID)
	}

	return map[string]any{
		"workers":     s.cfg.Workers,
		"queue_size":  s.queued,
		"total_jobs":  len(s.jobs),
		"queued":      counts[entity.StatusQueued],
		"running":     counts[entity.StatusRunning],
		"done":        counts[entity.StatusDone],
		"error":       counts[entity.StatusError],
		"pending_ids": pendingIDs,
	}
}

func (s *Scheduler) workerLoop(ctx context.Context, id int) {
	defer s.wg.Done()
	logrus.Infof("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopped", id)
			return
		default:
		}

		jobID, ok := s.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				logrus.Infof("Worker %d stopped", id)
				return
			case <-s.wake:
			}
			continue
		}
		s.process(ctx, jobID)
	}
}

func (s *Scheduler) process(ctx context.Context, jobID string) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	result, err := s.execute(ctx, job)

	s.mu.Lock()
	final := *job
	s.mu.Unlock()

	final.CompletedAt = time.Now()
	final.Input = nil // buffers belong to the job; released on completion
	switch {
	case final.Cancelled:
		final.Status = entity.StatusError
		final.ErrorDetail = "cancelled during execution, result discarded"
	case err != nil:
		final.Status = entity.StatusError
		final.ErrorDetail = err.Error()
	default:
		final.Status = entity.StatusDone
		final.Result = result
	}

	// Persistence and event publishing happen before the terminal status is
	// readable by pollers: a status response carrying download links must
	// never precede the artifacts behind them.
	if s.OnFinished != nil {
		s.OnFinished(&final)
	}

	s.mu.Lock()
	job.Status = final.Status
	job.Result = final.Result
	job.ErrorDetail = final.ErrorDetail
	job.CompletedAt = final.CompletedAt
	job.Input = nil
	s.mu.Unlock()

	if err != nil {
		logrus.Errorf("Job %s failed: %v", jobID, err)
	} else {
		logrus.Infof("Job %s completed in %s", jobID, final.CompletedAt.Sub(final.StartedAt))
	}
}

// execute runs the worker func with panic isolation: an unexpected panic
// fails this job only, the pool keeps serving the queue.
func (s *Scheduler) execute(ctx context.Context, job *entity.Job) (result *entity.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return s.run(ctx, job)
}

// cleanupLoop evicts finished jobs after their result TTL elapses.
func (s *Scheduler) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Scheduler) evictExpired() {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, job := range s.jobs {
		if job.Status != entity.StatusDone && job.Status != entity.StatusError {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			logrus.Infof("Evicted expired job %s", id)
		}
	}
}
