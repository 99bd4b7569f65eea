// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	applogger "ChartSignal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Job names.
const (
	JobDailyReset    = "daily_reset"
	JobUploadCleanup = "upload_cleanup"
	JobLimiterSweep  = "limiter_sweep"
)

// JobFunc is one unit of scheduled work.
type JobFunc func(ctx context.Context) error

// DailyResetter zeroes the daily request counter.
type DailyResetter interface {
	ResetDaily(ctx context.Context) error
}

// UploadPruner deletes stored uploads older than a retention window.
type UploadPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

// Sweeper drops idle state; the rate limiter implements it.
type Sweeper interface {
	Sweep() int
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron       *cron.Cron
	l          *applogger.Logger
	jobTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]JobFunc
}

type Option func(*Scheduler)

// WithJobTimeout bounds each job run. Default 5m.
func WithJobTimeout(d time.Duration) Option { return func(s *Scheduler) { s.jobTimeout = d } }

func New(l *applogger.Logger, opts ...Option) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		l:          l,
		jobTimeout: 5 * time.Minute,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]JobFunc),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddJob registers fn under name on a six-field cron spec (seconds first).
func (s *Scheduler) AddJob(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	if _, dup := s.jobs[name]; dup {
		s.mu.Unlock()
		return fmt.Errorf("job %s already registered", name)
	}
	s.jobs[name] = fn
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(name, fn) }); err != nil {
		s.mu.Lock()
		delete(s.jobs, name)
		s.mu.Unlock()
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

// Specs holds the cron expressions of the maintenance jobs.
type Specs struct {
	DailyReset      string
	UploadCleanup   string
	LimiterSweep    string
	UploadRetention time.Duration
}

// RegisterAll wires the maintenance jobs. Nil dependencies skip their job.
func (s *Scheduler) RegisterAll(specs Specs, counters DailyResetter, uploads UploadPruner, limiter Sweeper) error {
	if counters != nil {
		if err := s.AddJob(JobDailyReset, specs.DailyReset, counters.ResetDaily); err != nil {
			return err
		}
	}
	if uploads != nil && specs.UploadCleanup != "" {
		retention := specs.UploadRetention
		err := s.AddJob(JobUploadCleanup, specs.UploadCleanup, func(ctx context.Context) error {
			n, err := uploads.Prune(ctx, retention)
			if n > 0 {
				s.l.Info("scheduler: pruned uploads", applogger.Int("removed", n))
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	if limiter != nil && specs.LimiterSweep != "" {
		err := s.AddJob(JobLimiterSweep, specs.LimiterSweep, func(context.Context) error {
			if n := limiter.Sweep(); n > 0 {
				s.l.Debug("scheduler: evicted idle limiter keys", applogger.Int("evicted", n))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.run(name, fn)
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(name string, fn JobFunc) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		s.l.Error("scheduler: job failed", applogger.String("job", name), applogger.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	s.l.Debug("scheduler: job done", applogger.String("job", name), applogger.Duration("took", time.Since(start)))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Strings("jobs", s.Jobs()))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.l.Info("scheduler stopped")
}
