// Package cronrunner owns the process's named daily jobs on top of
// robfig/cron. Jobs are replaced atomically by name, can be disabled without
// stopping the loop, and can be triggered out of band.
package cronrunner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ahricool/raise/internal/errors"
)

// Result is what a job run reports back for status.
type Result struct {
	Count   int
	Skipped int
	Summary string
}

type Handler func(ctx context.Context) (Result, error)

type JobStatus struct {
	Name             string     `json:"name"`
	Enabled          bool       `json:"enabled"`
	Schedule         string     `json:"schedule"`
	ScheduleTime     string     `json:"schedule_time"`
	NextRunAt        *time.Time `json:"next_run_at"`
	LastRunAt        *time.Time `json:"last_run_at"`
	LastCount        int        `json:"last_count"`
	LastSkipped      int        `json:"last_skipped"`
	LastSummary      string     `json:"last_summary,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	SchedulerRunning bool       `json:"scheduler_running"`
}

type job struct {
	name    string
	trigger Trigger
	sched   cron.Schedule
	entryID cron.EntryID
	enabled bool
	handler Handler

	lastRun    time.Time
	lastResult Result
	lastErr    string
}

type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	chain   cron.Chain
	loc     *time.Location
	logger  *zap.Logger
	baseCtx context.Context
	pool    *Pool
	now     func() time.Time
	jobs    map[string]*job
	running bool
}

type Option func(*Scheduler)

// WithClock replaces time.Now for next-fire and last-run bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPool(pool *Pool) Option {
	return func(s *Scheduler) { s.pool = pool }
}

// WithBaseContext sets the parent context for scheduled runs. Its values are
// inherited but its cancellation is not: a run is never cancelled once started.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

func New(loc *time.Location, logger *zap.Logger, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := CronLogger(logger)
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc), cron.WithLogger(cl)),
		chain:   cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		loc:     loc,
		logger:  logger,
		baseCtx: context.Background(),
		now:     time.Now,
		jobs:    map[string]*job{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = NewPool(4)
	}
	return s
}

func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// RegisterDaily adds or replaces the job called name. Last-run bookkeeping of a
// replaced job is carried over.
func (s *Scheduler) RegisterDaily(name string, trigger Trigger, handler Handler) error {
	if name == "" || handler == nil {
		return errors.New("job name and handler are required")
	}
	trigger, err := NewTrigger(trigger.Hour, trigger.Minute, trigger.Weekdays)
	if err != nil {
		return err
	}
	sched, err := trigger.schedule(s.loc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := &job{name: name, trigger: trigger, sched: sched, enabled: true, handler: handler}
	if old, ok := s.jobs[name]; ok {
		if old.enabled {
			s.cron.Remove(old.entryID)
		}
		next.lastRun, next.lastResult, next.lastErr = old.lastRun, old.lastResult, old.lastErr
	}
	next.entryID = s.cron.Schedule(sched, s.chain.Then(cron.FuncJob(func() { s.fire(name) })))
	s.jobs[name] = next
	s.logger.Info("job scheduled",
		zap.String("job", name),
		zap.String("schedule", trigger.String()),
		zap.Time("next_run_at", sched.Next(s.now())),
	)
	return nil
}

// Reschedule moves an existing job to a new "H:MM" time, keeping its weekday
// restriction and handler. On error the current schedule is left as is.
func (s *Scheduler) Reschedule(name, clock string) error {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return err
	}
	s.mu.Lock()
	current, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return errors.Wrapf(errors.ErrJobNotFound, "job %q", name)
	}
	return s.RegisterDaily(name, Trigger{Hour: hour, Minute: minute, Weekdays: current.trigger.Weekdays}, current.handler)
}

// Disable unschedules a job but keeps it listed with enabled=false. Unknown
// names are ignored.
func (s *Scheduler) Disable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok || !j.enabled {
		return
	}
	s.cron.Remove(j.entryID)
	j.enabled = false
	j.entryID = 0
	s.logger.Info("job disabled", zap.String("job", name))
}

// TriggerNow runs the job's handler on the caller's goroutine and returns its
// result. The regular schedule is not touched.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) (Result, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	var handler Handler
	if ok {
		handler = j.handler
	}
	s.mu.Unlock()
	if !ok {
		return Result{}, errors.Wrapf(errors.ErrJobNotFound, "job %q", name)
	}
	return s.run(ctx, name, handler)
}

func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	var handler Handler
	if ok && j.enabled {
		handler = j.handler
	}
	s.mu.Unlock()
	if handler == nil {
		return
	}
	if _, err := s.run(context.WithoutCancel(s.baseCtx), name, handler); err != nil {
		s.logger.Warn("scheduled job failed", zap.String("job", name), zap.Error(err))
	}
}

func (s *Scheduler) run(ctx context.Context, name string, handler Handler) (Result, error) {
	startedAt := s.now()
	var res Result
	err := s.pool.Run(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Newf("job %s panicked: %v", name, r)
			}
		}()
		res, err = handler(ctx)
		return err
	})

	s.mu.Lock()
	if j, ok := s.jobs[name]; ok {
		j.lastRun = startedAt
		j.lastResult = res
		j.lastErr = ""
		if err != nil {
			j.lastErr = err.Error()
		}
	}
	s.mu.Unlock()

	s.logger.Info("job finished",
		zap.String("job", name),
		zap.Int("count", res.Count),
		zap.Duration("elapsed", s.now().Sub(startedAt)),
		zap.Error(err),
	)
	return res, err
}

func (s *Scheduler) Status(name string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return JobStatus{Name: name, SchedulerRunning: s.running}, errors.Wrapf(errors.ErrJobNotFound, "job %q", name)
	}
	return s.statusLocked(j), nil
}

func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, s.statusLocked(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (s *Scheduler) statusLocked(j *job) JobStatus {
	st := JobStatus{
		Name:             j.name,
		Enabled:          j.enabled,
		Schedule:         j.trigger.String(),
		ScheduleTime:     j.trigger.Clock(),
		LastCount:        j.lastResult.Count,
		LastSkipped:      j.lastResult.Skipped,
		LastSummary:      j.lastResult.Summary,
		LastError:        j.lastErr,
		SchedulerRunning: s.running,
	}
	if j.enabled {
		next := j.sched.Next(s.now())
		st.NextRunAt = &next
	}
	if !j.lastRun.IsZero() {
		last := j.lastRun
		st.LastRunAt = &last
	}
	return st
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("cron started", zap.String("timezone", s.loc.String()))
}

// Stop halts the loop and waits for in-progress scheduled runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("cron stopped")
}
