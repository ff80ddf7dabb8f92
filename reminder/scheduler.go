/*
scheduler.go - Cron trigger for the reminder sweep

PURPOSE:
  Runs Job once per cron tick with "today" taken from the injected clock in
  the reference location. Sweeps never overlap: a manual RunNow waits for a
  scheduled sweep in progress and vice versa.

CONFIGURATION:
  - Spec:    robfig/cron expression with seconds (default "0 0 0 * * *",
             i.e. every day at midnight in Location)
  - Enabled: whether Start schedules anything

USAGE:
  scheduler := reminder.NewScheduler(job, calendar.SystemClock{}, loc, "")
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - api/reports.go: RunReminders endpoint (manual sweep)
*/
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"
	"github.com/warp/crm-engine/calendar"
)

// DefaultSpec fires every day at 00:00.
const DefaultSpec = "0 0 0 * * *"

// Run is the record of one completed sweep.
type Run struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Result     Result        `json:"result"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Scheduler triggers the reminder sweep.
type Scheduler struct {
	Job      *Job
	Clock    calendar.Clock
	Location *time.Location
	Spec     string
	Enabled  bool
	Logger   zerolog.Logger

	cron    *cron.Cron
	ticks   sync.WaitGroup
	sweepMu sync.Mutex // serialises sweeps
	mu      sync.Mutex // guards cron and last
	last    *Run
}

// NewScheduler creates an enabled scheduler. An empty spec means DefaultSpec.
func NewScheduler(job *Job, clock calendar.Clock, loc *time.Location, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		Job:      job,
		Clock:    clock,
		Location: loc,
		Spec:     spec,
		Enabled:  true,
		Logger:   job.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info().Msg("reminder scheduler disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.NewWithLocation(s.Location)
	if err := c.AddFunc(s.Spec, s.tick); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.Spec, err)
	}
	c.Start()
	s.cron = c

	s.Logger.Info().Str("spec", s.Spec).Str("location", s.Location.String()).Msg("reminder scheduler started")
	return nil
}

// Stop stops the scheduler. A sweep in progress finishes first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	c.Stop()
	s.ticks.Wait()
	s.Logger.Info().Msg("reminder scheduler stopped")
}

// tick is a no-op once Stop has begun; Stop only waits for ticks that
// registered before it cleared the cron.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.cron == nil {
		s.mu.Unlock()
		return
	}
	s.ticks.Add(1)
	s.mu.Unlock()
	defer s.ticks.Done()

	if _, err := s.RunNow(context.Background()); err != nil {
		s.Logger.Error().Err(err).Msg("scheduled reminder sweep failed")
	}
}

// RunNow runs a sweep immediately (for admin/testing).
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	started := time.Now()
	today := calendar.Today(s.Clock, s.Location)
	res, err := s.Job.Run(ctx, today)

	run := &Run{StartedAt: started, FinishedAt: time.Now(), Result: res}
	run.Duration = run.FinishedAt.Sub(started)
	if err != nil {
		run.Error = err.Error()
	}

	s.mu.Lock()
	s.last = run
	s.mu.Unlock()

	s.Logger.Debug().Dur("took", run.Duration).Bool("sent", res.Sent).Msg("reminder sweep finished")
	return res, err
}

// LastRun returns the most recent sweep, if any.
func (s *Scheduler) LastRun() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Run{}, false
	}
	return *s.last, true
}

// NextRun returns when the next scheduled sweep will occur.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}, false
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}
