// Package jobs runs periodic background work on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/ordzaar/internal/app/system"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// Func is a unit of scheduled work. ctx is cancelled when the scheduler
// stops.
type Func func(ctx context.Context) error

type job struct {
	name    string
	spec    string
	fn      Func
	timeout time.Duration
}

var _ system.Service = (*Scheduler)(nil)

// Scheduler runs registered jobs on their cron specs. Overlapping runs of the
// same job are skipped.
type Scheduler struct {
	log  *logger.Logger
	jobs []job

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("jobs")
	}
	return &Scheduler{log: log}
}

// Add registers fn under name. spec accepts the standard five-field syntax
// and descriptors such as "@every 1m". timeout bounds a single run; zero
// means no bound. Jobs must be added before Start.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, fn Func) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("job %s: scheduler already started", name)
	}
	s.jobs = append(s.jobs, job{name: name, spec: spec, fn: fn, timeout: timeout})
	return nil
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.name
	}
	return names
}

func (s *Scheduler) Name() string { return "job-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cronLog := cron.PrintfLogger(s.log)
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))
	runCtx, cancel := context.WithCancel(ctx)

	for _, j := range s.jobs {
		j := j
		if _, err := c.AddFunc(j.spec, func() { s.run(runCtx, j) }); err != nil {
			cancel()
			return fmt.Errorf("schedule job %s: %w", j.name, err)
		}
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.WithField("jobs", len(s.jobs)).Info("job scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	cancel := s.cancel
	s.running = false
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	done := c.Stop()

	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("job scheduler stopped")
	return nil
}

// RunNow executes the named job once, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var target *job
	for i := range s.jobs {
		if s.jobs[i].name == name {
			target = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()
	if target == nil {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.run(ctx, *target)
}

func (s *Scheduler) run(ctx context.Context, j job) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	start := time.Now()
	err := j.fn(ctx)
	entry := s.log.WithField("job", j.name).WithField("duration", time.Since(start).String())
	if err != nil {
		entry.WithError(err).Warn("scheduled job failed")
		return err
	}
	entry.Debug("scheduled job completed")
	return nil
}
