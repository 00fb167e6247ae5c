package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one recurring task: a name for logging, a fixed interval, and the
// function to run on every tick.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler owns a set of independent periodic jobs.
type Scheduler struct {
	jobs []Job
}

// New creates a Scheduler for the given jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Run starts every job and blocks until ctx is cancelled and all in-flight
// ticks have finished. Each job runs once immediately on startup, then on
// its interval.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			runJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

// runJob drives one job's ticker loop. The busy token is taken without
// blocking: if the previous tick is still running when the next fires, the
// new tick is dropped and logged.
func runJob(ctx context.Context, job Job) {
	busy := make(chan struct{}, 1)

	var inflight sync.WaitGroup
	launch := func() {
		select {
		case busy <- struct{}{}:
		default:
			slog.Warn("sched: previous tick still running — skipping", "job", job.Name)
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() { <-busy }()
			job.Run(ctx)
		}()
	}

	launch()

	t := time.NewTicker(job.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			inflight.Wait()
			return
		case <-t.C:
			launch()
		}
	}
}
