package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pulsesync/internal/config"
	appLog "pulsesync/internal/log"
	"pulsesync/internal/pipeline"
	"pulsesync/internal/publish"
)

// Runner executes one sync job. *pipeline.SyncRunner satisfies it.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (*publish.Result, error)
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

// entry pairs a configured job with its cron spec.
type entry struct {
	job  pipeline.Job
	spec string
}

// Scheduler runs configured sync jobs on their cron specs. A job never
// overlaps with itself; a run still in progress causes the next tick to be
// skipped.
type Scheduler struct {
	runner  Runner
	cron    *cron.Cron
	entries []entry

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Scheduler from config. An invalid cron expression or job
// timezone is an error.
func New(cfg *config.Config, runner Runner) (*Scheduler, error) {
	defaultLoc := cfg.Location()
	logger := cronLogger{}

	s := &Scheduler{
		runner: runner,
		cron: cron.New(
			cron.WithLocation(defaultLoc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}

	for _, jc := range cfg.Sync {
		loc := defaultLoc
		if jc.Timezone != "" {
			l, err := time.LoadLocation(jc.Timezone)
			if err != nil {
				return nil, fmt.Errorf("sync job %q: %w", jc.ID, err)
			}
			loc = l
		}
		e := entry{
			job: pipeline.Job{
				ID:        jc.ID,
				URL:       jc.URL,
				ContextID: jc.ContextID,
				Location:  loc,
			},
			spec: jc.Cron,
		}
		spec := e.spec
		if jc.Timezone != "" {
			spec = "CRON_TZ=" + jc.Timezone + " " + spec
		}
		if _, err := s.cron.AddFunc(spec, s.runFunc(e.job)); err != nil {
			return nil, fmt.Errorf("sync job %q: invalid cron %q: %w", jc.ID, jc.Cron, err)
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

func (s *Scheduler) runFunc(job pipeline.Job) func() {
	return func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		if _, err := s.runner.Run(ctx, job); err != nil {
			appLog.Error("scheduled sync failed", err, "job", job.ID)
		}
	}
}

// Start begins running jobs in the background. Runs receive a context that
// is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, e := range s.entries {
		appLog.Info("sync job scheduled", "job", e.job.ID, "cron", e.spec, "timezone", e.job.Location.String())
	}
	s.cron.Start()
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// RunOnce runs every job sequentially, in config order, and returns the
// number of jobs that failed.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	failed := 0
	for _, e := range s.entries {
		if ctx.Err() != nil {
			return failed + 1
		}
		if _, err := s.runner.Run(ctx, e.job); err != nil {
			appLog.Error("sync failed", err, "job", e.job.ID)
			failed++
		}
	}
	return failed
}
