package service

import (
	"context"
	"sync"
	"testing"
	"time"

	cronrunner "github.com/ahricool/raise/internal/cron"
	"github.com/ahricool/raise/internal/digest"
	"github.com/ahricool/raise/internal/dispatch"
	"github.com/ahricool/raise/internal/errors"
	"github.com/ahricool/raise/internal/models"
	"github.com/ahricool/raise/internal/repository"
	"github.com/ahricool/raise/internal/repository/memory"
)

type stubSubmitter struct {
	mu       sync.Mutex
	inflight map[string]bool
	codes    []string
}

func (s *stubSubmitter) Submit(req dispatch.Request) dispatch.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Code == "" {
		return dispatch.Submission{Outcome: dispatch.Invalid}
	}
	if s.inflight[req.Code] {
		return dispatch.Submission{Outcome: dispatch.Duplicate, Code: req.Code, Task: &dispatch.TaskInfo{TaskID: "busy"}}
	}
	s.codes = append(s.codes, req.Code)
	return dispatch.Submission{Outcome: dispatch.Accepted, Code: req.Code, Task: &dispatch.TaskInfo{TaskID: "t-" + req.Code}}
}

type stubDigest struct {
	modes []digest.Mode
}

func (d *stubDigest) Run(_ context.Context, mode digest.Mode) digest.Report {
	d.modes = append(d.modes, mode)
	return digest.Report{Mode: mode, Pushed: 1}
}

var schedNow = time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC) // Wednesday

func newSchedulerService(t *testing.T, codes ...string) (*SchedulerService, *stubSubmitter, *stubDigest, *memory.Store) {
	t.Helper()
	store := memory.New()
	for _, c := range codes {
		if err := store.InsertWatchlist(context.Background(), &models.WatchlistStock{UserID: models.DefaultUserID, StockCode: c}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	now := func() time.Time { return schedNow }
	sub := &stubSubmitter{inflight: map[string]bool{}}
	dg := &stubDigest{}
	svc := &SchedulerService{
		Cron:       cronrunner.New(time.UTC, nil, cronrunner.WithClock(now)),
		Dispatcher: sub,
		Watchlist:  store,
		Digest:     dg,
		Settings:   &SystemSettingsService{Repo: store},
		Now:        now,
	}
	t.Cleanup(svc.Stop)
	return svc, sub, dg, store
}

func TestStartDisabledRegistersNothing(t *testing.T) {
	svc, _, _, _ := newSchedulerService(t)
	if err := svc.Start(false, "18:00"); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := svc.Status()
	if st.Enabled || st.ScheduleTime != nil || st.NextRunAt != nil {
		t.Fatalf("status=%+v", st)
	}
	if !st.SchedulerRunning {
		t.Fatalf("loop should run while disabled")
	}
	if len(svc.Jobs()) != 0 {
		t.Fatalf("jobs=%+v", svc.Jobs())
	}
}

func TestStartEnabledRegistersAllJobs(t *testing.T) {
	svc, _, _, _ := newSchedulerService(t)
	if err := svc.Start(true, "18:00"); err != nil {
		t.Fatalf("start: %v", err)
	}
	jobs := svc.Jobs()
	if len(jobs) != 4 {
		t.Fatalf("jobs=%d want 4", len(jobs))
	}
	st := svc.Status()
	if !st.Enabled || st.ScheduleTime == nil || *st.ScheduleTime != "18:00" {
		t.Fatalf("status=%+v", st)
	}
	if want := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC); !st.NextRunAt.Equal(want) {
		t.Fatalf("next=%v want %v", st.NextRunAt, want)
	}
	morning, err := svc.Cron.Status(JobMorningReview)
	if err != nil || morning.Schedule != "09:00 mon-fri" {
		t.Fatalf("morning=%+v err=%v", morning, err)
	}
}

func TestRescheduleValidatesAndPersists(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newSchedulerService(t)
	if err := svc.Start(true, "18:00"); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, bad := range []string{"25:00", "9.15", "", "12:60"} {
		err := svc.Reschedule(ctx, bad)
		if !errors.Is(err, errors.ErrInvalidScheduleSpec) {
			t.Fatalf("Reschedule(%q) err=%v", bad, err)
		}
	}
	if st := svc.Status(); *st.ScheduleTime != "18:00" {
		t.Fatalf("invalid input changed schedule: %+v", st)
	}

	if err := svc.Reschedule(ctx, "9:15"); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	st := svc.Status()
	if *st.ScheduleTime != "09:15" {
		t.Fatalf("time=%s", *st.ScheduleTime)
	}
	if want := time.Date(2026, 3, 4, 9, 15, 0, 0, time.UTC); !st.NextRunAt.Equal(want) {
		t.Fatalf("next=%v want %v", st.NextRunAt, want)
	}
	enabled, clock := svc.Settings.Schedule(ctx, false, "")
	if !enabled || clock != "09:15" {
		t.Fatalf("persisted enabled=%v clock=%q", enabled, clock)
	}
}

func TestDisableKeepsLoopRunning(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newSchedulerService(t)
	if err := svc.Start(true, "18:00"); err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Disable(ctx)

	st := svc.Status()
	if st.Enabled || st.ScheduleTime != nil || st.NextRunAt != nil || !st.SchedulerRunning {
		t.Fatalf("status=%+v", st)
	}
	for _, j := range svc.Jobs() {
		if j.Enabled {
			t.Fatalf("job %s still enabled", j.Name)
		}
	}
	if enabled, _ := svc.Settings.Schedule(ctx, true, ""); enabled {
		t.Fatalf("disable not persisted")
	}

	if err := svc.Enable(ctx, "07:30"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if st := svc.Status(); !st.Enabled || *st.ScheduleTime != "07:30" {
		t.Fatalf("status=%+v", st)
	}
}

func TestTriggerNowCountsDuplicatesAsSkipped(t *testing.T) {
	svc, sub, _, _ := newSchedulerService(t, "600519", "AAPL", "000001")
	sub.inflight["AAPL"] = true

	res := svc.TriggerNow(context.Background())
	if res.Submitted != 2 || res.Skipped != 1 {
		t.Fatalf("res=%+v", res)
	}
	if !res.TriggeredAt.Equal(schedNow) {
		t.Fatalf("triggered_at=%v", res.TriggeredAt)
	}
	st := svc.Status()
	if st.LastRunAt == nil || st.LastRunStocks != 2 {
		t.Fatalf("status=%+v", st)
	}
	if st.Enabled {
		t.Fatalf("manual trigger must not enable the schedule")
	}
}

type brokenWatchlist struct {
	repository.WatchlistRepository
}

func (brokenWatchlist) ListWatchlist(context.Context, uint64) ([]models.WatchlistStock, error) {
	return nil, errors.New("connection reset")
}

func TestTriggerNowReadFailureReportsNoSkips(t *testing.T) {
	svc, sub, _, store := newSchedulerService(t, "600519", "AAPL")
	sub.inflight["AAPL"] = true
	if res := svc.TriggerNow(context.Background()); res.Skipped != 1 {
		t.Fatalf("first run=%+v", res)
	}

	svc.Watchlist = brokenWatchlist{store}
	res := svc.TriggerNow(context.Background())
	if res.Submitted != 0 || res.Skipped != 0 {
		t.Fatalf("res=%+v", res)
	}
}

func TestTriggerNowEmptyWatchlist(t *testing.T) {
	svc, sub, _, _ := newSchedulerService(t)
	if err := svc.Start(true, "18:00"); err != nil {
		t.Fatalf("start: %v", err)
	}
	before := svc.Status().NextRunAt

	res := svc.TriggerNow(context.Background())
	if res.Submitted != 0 || len(sub.codes) != 0 {
		t.Fatalf("res=%+v codes=%v", res, sub.codes)
	}
	if after := svc.Status().NextRunAt; !after.Equal(*before) {
		t.Fatalf("next run moved from %v to %v", before, after)
	}
}

func TestTriggerPush(t *testing.T) {
	ctx := context.Background()
	svc, _, dg, _ := newSchedulerService(t)

	if _, err := svc.TriggerPush(ctx, "midnight"); !errors.Is(err, errors.ErrInvalidMode) {
		t.Fatalf("err=%v", err)
	}
	if len(dg.modes) != 0 {
		t.Fatalf("invalid mode ran a digest")
	}

	res, err := svc.TriggerPush(ctx, "Evening")
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Mode != digest.Evening || res.Pushed != 1 {
		t.Fatalf("res=%+v", res)
	}
	if len(dg.modes) != 1 || dg.modes[0] != digest.Evening {
		t.Fatalf("modes=%v", dg.modes)
	}
}
