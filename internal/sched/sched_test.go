package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestJobRunsOnInterval(t *testing.T) {
	s := New()
	var runs atomic.Int64
	err := s.Register(Job{
		Name:    "tick",
		Every:   5 * time.Millisecond,
		Enabled: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if runs.Load() < 2 {
		t.Fatalf("expected repeated runs, got %d", runs.Load())
	}
}

func TestDisabledJobNeverRuns(t *testing.T) {
	s := New()
	var runs atomic.Int64
	_ = s.Register(Job{
		Name:    "off",
		Every:   time.Millisecond,
		Enabled: false,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if runs.Load() != 0 {
		t.Fatalf("disabled job ran %d times", runs.Load())
	}
}

func TestFailingJobDoesNotAffectOthers(t *testing.T) {
	s := New()
	var good, bad atomic.Int64
	_ = s.Register(Job{
		Name:    "panics",
		Every:   5 * time.Millisecond,
		Enabled: true,
		Run: func(ctx context.Context) error {
			bad.Add(1)
			panic("boom")
		},
	})
	_ = s.Register(Job{
		Name:    "errors",
		Every:   5 * time.Millisecond,
		Enabled: true,
		Run: func(ctx context.Context) error {
			return errors.New("transient")
		},
	})
	_ = s.Register(Job{
		Name:    "healthy",
		Every:   5 * time.Millisecond,
		Enabled: true,
		Run: func(ctx context.Context) error {
			good.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if good.Load() < 2 {
		t.Fatalf("healthy job starved: %d runs", good.Load())
	}
	if bad.Load() < 2 {
		t.Fatalf("panicking job was not retried: %d runs", bad.Load())
	}
}

func TestRegisterValidation(t *testing.T) {
	s := New()
	if err := s.Register(Job{Name: "", Every: time.Second, Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := s.Register(Job{Name: "no-action", Every: time.Second}); err == nil {
		t.Fatal("expected error for nil action")
	}
	if err := s.Register(Job{Name: "no-cadence", AtHour: 99, Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for invalid cadence")
	}
}

func TestDailyJobDelayComputation(t *testing.T) {
	s := New()
	base := time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	job := Job{Name: "daily", AtHour: 18}
	if got, want := s.nextDelay(job), 7*time.Hour+30*time.Minute; got != want {
		t.Fatalf("delay to 18:00 = %v, want %v", got, want)
	}

	// Boundary already passed today: schedule for tomorrow.
	job.AtHour = 6
	if got, want := s.nextDelay(job), 19*time.Hour+30*time.Minute; got != want {
		t.Fatalf("delay to 06:00 = %v, want %v", got, want)
	}
}
