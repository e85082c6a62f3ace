package cron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Job is one unit of background work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduled struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs with their cadence. A job with a zero cadence is due on
// every cycle; otherwise it is due once every has elapsed since its last
// successful run. Cadence state is per process.
type Registry struct {
	mu   sync.Mutex
	jobs []*scheduled
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers job. Names must be unique since they key metrics and logs.
func (r *Registry) Add(job Job, every time.Duration) error {
	if job == nil {
		return fmt.Errorf("job required")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if every < 0 {
		return fmt.Errorf("job %s: negative cadence", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.jobs {
		if s.job.Name() == name {
			return fmt.Errorf("job %s already registered", name)
		}
	}
	r.jobs = append(r.jobs, &scheduled{job: job, every: every})
	return nil
}

// Due returns the jobs to run at now, in registration order.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, s := range r.jobs {
		if s.every == 0 || s.lastRun.IsZero() || !now.Before(s.lastRun.Add(s.every)) {
			due = append(due, s.job)
		}
	}
	return due
}

// MarkRan records a successful run. Failed jobs stay due.
func (r *Registry) MarkRan(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.jobs {
		if s.job.Name() == name {
			s.lastRun = at
			return
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
