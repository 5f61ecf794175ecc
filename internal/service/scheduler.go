package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	cronrunner "github.com/ahricool/raise/internal/cron"
	"github.com/ahricool/raise/internal/digest"
	"github.com/ahricool/raise/internal/dispatch"
	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/logger"
	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
)

const (
	JobWatchlistAnalysis = "daily_watchlist_analysis"
	JobMorningReview     = "daily_position_morning_review"
	JobNoonPlayback      = "daily_position_noon_playback"
	JobEveningSummary    = "daily_position_evening_summary"
)

var digestJobs = map[digest.Mode]string{
	digest.Morning: JobMorningReview,
	digest.Noon:    JobNoonPlayback,
	digest.Evening: JobEveningSummary,
}

type Submitter interface {
	Submit(req dispatch.Request) dispatch.Submission
}

type DigestRunner interface {
	Run(ctx context.Context, mode digest.Mode) digest.Report
}

// SchedulerStatus is the daily watchlist job as seen by the status endpoint.
type SchedulerStatus struct {
	Enabled          bool       `json:"enabled"`
	ScheduleTime     *string    `json:"schedule_time"`
	NextRunAt        *time.Time `json:"next_run_at"`
	LastRunAt        *time.Time `json:"last_run_at"`
	LastRunStocks    int        `json:"last_run_stocks"`
	SchedulerRunning bool       `json:"scheduler_running"`
}

type TriggerResult struct {
	Submitted   int       `json:"submitted"`
	Skipped     int       `json:"skipped"`
	TriggeredAt time.Time `json:"triggered_at"`
}

type PushResult struct {
	Mode        digest.Mode `json:"mode"`
	Pushed      int         `json:"pushed"`
	TriggeredAt time.Time   `json:"triggered_at"`
}

// SchedulerService owns the four daily jobs: the watchlist scan, which feeds
// the dispatcher, and the three digest pushes.
type SchedulerService struct {
	Cron           *cronrunner.Scheduler
	Dispatcher     Submitter
	Watchlist      repository.WatchlistRepository
	Digest         DigestRunner
	Settings       *SystemSettingsService
	DigestTriggers map[digest.Mode]cronrunner.Trigger
	ReportType     string
	Logger         *zap.Logger
	Now            func() time.Time

	mu            sync.Mutex
	lastRunAt     time.Time
	lastRunStocks int
}

// Start runs the cron loop and, when enabled, registers every job at clock.
func (s *SchedulerService) Start(enabled bool, clock string) error {
	s.Cron.Start()
	if !enabled {
		s.logger().Info("daily schedule disabled")
		return nil
	}
	trigger, err := cronrunner.ParseTrigger(clock, "")
	if err != nil {
		return err
	}
	return s.register(trigger)
}

func (s *SchedulerService) Stop() {
	s.Cron.Stop()
}

// Reschedule moves the watchlist scan to clock and (re)registers the digest
// jobs. Invalid input leaves every job as it was.
func (s *SchedulerService) Reschedule(ctx context.Context, clock string) error {
	trigger, err := cronrunner.ParseTrigger(clock, "")
	if err != nil {
		return err
	}
	if err := s.register(trigger); err != nil {
		return err
	}
	if err := s.Settings.SaveSchedule(ctx, true, trigger.Clock()); err != nil {
		s.logger().Warn("persist schedule failed", zap.Error(err))
	}
	return nil
}

func (s *SchedulerService) Enable(ctx context.Context, clock string) error {
	return s.Reschedule(ctx, clock)
}

// Disable removes all four jobs from the loop; the loop keeps running.
func (s *SchedulerService) Disable(ctx context.Context) {
	s.Cron.Disable(JobWatchlistAnalysis)
	for _, mode := range digest.Modes() {
		s.Cron.Disable(digestJobs[mode])
	}
	if err := s.Settings.SaveSchedule(ctx, false, ""); err != nil {
		s.logger().Warn("persist schedule failed", zap.Error(err))
	}
}

func (s *SchedulerService) register(trigger cronrunner.Trigger) error {
	for _, mode := range digest.Modes() {
		t := s.digestTrigger(mode)
		if _, err := cronrunner.NewTrigger(t.Hour, t.Minute, t.Weekdays); err != nil {
			return errors.Wrapf(err, "%s digest trigger", mode)
		}
	}
	if err := s.Cron.RegisterDaily(JobWatchlistAnalysis, trigger, s.watchlistJob); err != nil {
		return err
	}
	for _, mode := range digest.Modes() {
		if err := s.Cron.RegisterDaily(digestJobs[mode], s.digestTrigger(mode), s.digestJob(mode)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SchedulerService) digestTrigger(mode digest.Mode) cronrunner.Trigger {
	if t, ok := s.DigestTriggers[mode]; ok {
		return t
	}
	switch mode {
	case digest.Morning:
		return cronrunner.Trigger{Hour: 9, Weekdays: "mon-fri"}
	case digest.Noon:
		return cronrunner.Trigger{Hour: 12, Weekdays: "mon-fri"}
	default:
		return cronrunner.Trigger{Hour: 15, Minute: 30, Weekdays: "mon-fri"}
	}
}

// TriggerNow runs the watchlist scan once, outside its schedule.
func (s *SchedulerService) TriggerNow(ctx context.Context) TriggerResult {
	res, err := s.Cron.TriggerNow(ctx, JobWatchlistAnalysis)
	if errors.Is(err, errors.ErrJobNotFound) {
		res, err = s.watchlistJob(ctx)
	}
	if err != nil {
		s.logger().Warn("manual watchlist scan failed", zap.Error(err))
	}
	return TriggerResult{Submitted: res.Count, Skipped: res.Skipped, TriggeredAt: s.now()}
}

// TriggerPush runs one digest synchronously.
func (s *SchedulerService) TriggerPush(ctx context.Context, mode string) (PushResult, error) {
	m, err := digest.ParseMode(mode)
	if err != nil {
		return PushResult{}, err
	}
	res, err := s.Cron.TriggerNow(ctx, digestJobs[m])
	if errors.Is(err, errors.ErrJobNotFound) {
		res, err = s.digestJob(m)(ctx)
	}
	if err != nil {
		s.logger().Warn("manual digest push failed", zap.String("mode", string(m)), zap.Error(err))
	}
	return PushResult{Mode: m, Pushed: res.Count, TriggeredAt: s.now()}, nil
}

func (s *SchedulerService) Status() SchedulerStatus {
	s.mu.Lock()
	out := SchedulerStatus{LastRunStocks: s.lastRunStocks, SchedulerRunning: s.Cron.Running()}
	if !s.lastRunAt.IsZero() {
		last := s.lastRunAt
		out.LastRunAt = &last
	}
	s.mu.Unlock()

	st, err := s.Cron.Status(JobWatchlistAnalysis)
	if err != nil || !st.Enabled {
		return out
	}
	out.Enabled = true
	clock := st.ScheduleTime
	out.ScheduleTime = &clock
	out.NextRunAt = st.NextRunAt
	return out
}

func (s *SchedulerService) Jobs() []cronrunner.JobStatus {
	return s.Cron.Jobs()
}

func (s *SchedulerService) watchlistJob(ctx context.Context) (cronrunner.Result, error) {
	log := s.logger()
	stocks, err := s.Watchlist.ListWatchlist(ctx, models.DefaultUserID)
	if err != nil {
		log.Error("read watchlist failed", zap.Error(err))
		return cronrunner.Result{}, errors.Mark(errors.Wrap(err, "read watchlist"), errors.ErrPersistence)
	}
	if len(stocks) == 0 {
		log.Info("watchlist empty, nothing to analyze")
		s.mu.Lock()
		s.lastRunAt, s.lastRunStocks = s.now(), 0
		s.mu.Unlock()
		return cronrunner.Result{Summary: "watchlist empty"}, nil
	}

	reportType := s.ReportType
	if reportType == "" {
		reportType = "simple"
	}
	submitted, skipped := 0, 0
	for _, stock := range stocks {
		if stock.StockCode == "" {
			continue
		}
		sub := s.Dispatcher.Submit(dispatch.Request{Code: stock.StockCode, Name: stock.StockName, ReportType: reportType})
		switch sub.Outcome {
		case dispatch.Accepted:
			submitted++
			log.Info("analysis task submitted", zap.String("code", sub.Code), zap.String("task_id", sub.Task.TaskID))
		case dispatch.Duplicate:
			skipped++
			log.Debug("analysis already in flight", zap.String("code", sub.Code))
		default:
			log.Warn("watchlist code rejected", zap.String("code", stock.StockCode), zap.Error(sub.Err()))
		}
	}

	s.mu.Lock()
	s.lastRunAt = s.now()
	s.lastRunStocks = submitted
	s.mu.Unlock()
	log.Info("watchlist scan finished", zap.Int("submitted", submitted), zap.Int("skipped", skipped))
	return cronrunner.Result{Count: submitted, Skipped: skipped, Summary: fmt.Sprintf("submitted=%d skipped=%d", submitted, skipped)}, nil
}

func (s *SchedulerService) digestJob(mode digest.Mode) cronrunner.Handler {
	return func(ctx context.Context) (cronrunner.Result, error) {
		rep := s.Digest.Run(ctx, mode)
		return cronrunner.Result{Count: rep.Pushed, Summary: rep.Skipped}, nil
	}
}

func (s *SchedulerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SchedulerService) logger() *zap.Logger {
	return logger.OrNop(s.Logger)
}
