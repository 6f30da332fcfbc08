// Package scheduler runs the periodic maintenance jobs: the lazy-completion
// sweep, low-balance warnings, and the purge of read notifications.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/heartmarshall/satstream-ledger/internal/config"
	"github.com/heartmarshall/satstream-ledger/pkg/ctxutil"
)

// Job names.
const (
	JobTouch      = "touch_active"
	JobLowBalance = "low_balance"
	JobPurge      = "purge_read"
)

const jobTimeout = 5 * time.Minute

type toucher interface {
	TouchActive(ctx context.Context) (int, error)
}

type notifier interface {
	CheckLowBalance(ctx context.Context) (int, error)
	PurgeRead(ctx context.Context, olderThan time.Duration) (int, error)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

// Scheduler owns a cron runner.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	jobs map[string]cron.EntryID

	mu   sync.Mutex
	base context.Context
	stop context.CancelFunc
}

// New registers every enabled job of cfg.
func New(log *slog.Logger, cfg config.SchedulerConfig, engine toucher, notifications notifier) (*Scheduler, error) {
	log = log.With("component", "scheduler")
	cl := cronLogger{log: log}

	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:  log,
		jobs: make(map[string]cron.EntryID),
		base: context.Background(),
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) (int, error)
	}{
		{JobTouch, cfg.TouchSpec, engine.TouchActive},
		{JobLowBalance, cfg.LowBalanceSpec, notifications.CheckLowBalance},
		{JobPurge, cfg.PurgeSpec, func(ctx context.Context) (int, error) { return notifications.PurgeRead(ctx, 0) }},
	}
	for _, j := range jobs {
		if !cfg.JobEnabled(j.spec) {
			log.Info("job disabled", "job", j.name)
			continue
		}
		id, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.run))
		if err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
		s.jobs[j.name] = id
	}

	return s, nil
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) (int, error)) func() {
	return func() {
		s.mu.Lock()
		base := s.base
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(base, jobTimeout)
		defer cancel()
		ctx = ctxutil.WithJob(ctxutil.WithRequestID(ctx, uuid.NewString()), name)

		start := time.Now()
		n, err := run(ctx)
		if err != nil {
			s.log.ErrorContext(ctx, "job failed", "error", err)
			return
		}
		s.log.DebugContext(ctx, "job done", "affected", n, "duration", time.Since(start))
	}
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	out := make([]string, 0, len(s.jobs))
	for _, name := range []string{JobTouch, JobLowBalance, JobPurge} {
		if _, ok := s.jobs[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// RunNow runs a registered job synchronously, through the same recover
// and skip-if-running chain the schedule uses.
func (s *Scheduler) RunNow(name string) error {
	id, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q is not scheduled", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Start begins scheduling. Jobs get contexts derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base, s.stop = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.log.InfoContext(ctx, "scheduler started", "jobs", s.Jobs())
}

// Stop halts scheduling, cancels running jobs, and waits for them.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()

	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.mu.Unlock()

	<-done.Done()
	s.log.Info("scheduler stopped")
}
