// Package scheduler runs named periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Task is a unit of periodic work.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler with job bookkeeping and logging.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

// New constructs a stopped scheduler.
func New(logger *zap.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]gocron.Job),
	}, nil
}

// Every registers task to run each interval. Runs never overlap; a run that
// is still busy when the next tick fires causes that tick to be skipped.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	job, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.wrap(name, task)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.jobs[name] = job
	s.logger.Info("scheduled job registered", zap.String("job", name), zap.Duration("interval", interval))
	return nil
}

func (s *Scheduler) wrap(name string, task Task) func() {
	return func() {
		started := time.Now()
		if err := task(s.ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled job completed", zap.String("job", name), zap.Duration("duration", time.Since(started)))
	}
}

// RunNow triggers an immediate run of a registered job.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	return job.RunNow()
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins executing jobs.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.Int("jobs", len(s.Jobs())))
	s.cron.Start()
}

// Stop cancels running tasks and waits for the scheduler to shut down.
func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
