// Package sched runs the process-wide recurring jobs. Jobs are independent:
// a failing or panicking job is logged and retried at its next tick without
// affecting other jobs.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agrolink.org/internal/obs"
)

// Job is one recurring task. Exactly one of Every or AtHour applies: a
// positive Every means a fixed interval; otherwise the job fires daily at
// AtHour (UTC). Disabled jobs are registered but never run.
type Job struct {
	Name    string
	Every   time.Duration
	AtHour  int
	Enabled bool
	Run     func(ctx context.Context) error
}

// Scheduler owns a fixed set of jobs registered before Run.
type Scheduler struct {
	mu   sync.Mutex
	jobs []Job
	now  func() time.Time
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Register adds a job. Must be called before Run.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("sched: job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("sched: job %s has no action", job.Name)
	}
	if job.Every <= 0 && (job.AtHour < 0 || job.AtHour > 23) {
		return fmt.Errorf("sched: job %s needs an interval or a valid hour", job.Name)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

// Run starts one goroutine per enabled job and blocks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range jobs {
		if !job.Enabled {
			obs.Info("scheduler job disabled", map[string]any{"job": job.Name})
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	for {
		wait := s.nextDelay(job)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.invoke(ctx, job)
	}
}

// nextDelay computes the wait until the job's next cadence boundary.
func (s *Scheduler) nextDelay(job Job) time.Duration {
	if job.Every > 0 {
		return job.Every
	}
	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), job.AtHour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// invoke runs one tick inside an error boundary. A panic or error is logged
// and never propagates; the next tick is unaffected.
func (s *Scheduler) invoke(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			obs.SchedulerRuns.WithLabelValues(job.Name, "panic").Inc()
			obs.Error("scheduler job panicked", map[string]any{
				"job":   job.Name,
				"panic": fmt.Sprint(r),
			})
		}
	}()
	if err := job.Run(ctx); err != nil {
		obs.SchedulerRuns.WithLabelValues(job.Name, "error").Inc()
		obs.Error("scheduler job failed", map[string]any{
			"job":   job.Name,
			"error": err.Error(),
		})
		return
	}
	obs.SchedulerRuns.WithLabelValues(job.Name, "ok").Inc()
}
