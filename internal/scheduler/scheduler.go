// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"job-notifier/internal/common/logger"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

// JobFunc adapts fn to a Job.
func JobFunc(name string, fn func(ctx context.Context) error) Job {
	return funcJob{name: name, fn: fn}
}

// Scheduler wraps a cron instance. A trigger that fires while the previous
// run of the same entry is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	entries map[string]cron.EntryID
}

// New creates a scheduler. timeout bounds each run; zero means unbounded.
func New(log logger.Logger, timeout time.Duration) *Scheduler {
	cl := cronLogger{l: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under spec, e.g. "@hourly" or "*/15 * * * *".
func (s *Scheduler) Add(spec string, job Job) error {
	if _, exists := s.entries[job.Name()]; exists {
		return fmt.Errorf("job %q already scheduled", job.Name())
	}
	id, err := s.cron.AddJob(spec, s.build(job))
	if err != nil {
		return fmt.Errorf("schedule %q with %q: %w", job.Name(), spec, err)
	}
	s.entries[job.Name()] = id
	return nil
}

// Next returns the next activation of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// RunNow executes the named job synchronously outside the schedule.
func (s *Scheduler) RunNow(name string) error {
	id, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("job %q not scheduled", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs. If ctx expires first,
// the context handed to running jobs is cancelled before waiting on.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
		return ctx.Err()
	}
}

func (s *Scheduler) build(job Job) cron.Job {
	name := job.Name()
	return cron.FuncJob(func() {
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		start := time.Now()
		s.logger.Debug("job started", map[string]interface{}{"job": name})
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", map[string]interface{}{
				"job":   name,
				"error": err,
			})
		}
		s.logger.Info("job finished", map[string]interface{}{
			"job":  name,
			"cost": time.Since(start).String(),
		})
	})
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err
	c.l.Error("cron: "+msg, fields)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
