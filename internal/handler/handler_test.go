package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahricool/raise/internal/analysis"
	cronrunner "github.com/ahricool/raise/internal/cron"
	"github.com/ahricool/raise/internal/digest"
	"github.com/ahricool/raise/internal/dispatch"
	"github.com/ahricool/raise/internal/intent"
	"github.com/ahricool/raise/internal/ledger"
	"github.com/ahricool/raise/internal/repository/memory"
	"github.com/ahricool/raise/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func do(t *testing.T, r http.Handler, method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

type blockingAnalyzer struct {
	release chan struct{}
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, code, _ string) (*analysis.Result, error) {
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &analysis.Result{Code: code, SentimentScore: 60}, nil
}

type noopDigest struct{}

func (noopDigest) Run(_ context.Context, mode digest.Mode) digest.Report {
	return digest.Report{Mode: mode}
}

func newServer(t *testing.T) (*gin.Engine, *memory.Store, *blockingAnalyzer) {
	t.Helper()
	store := memory.New()
	an := &blockingAnalyzer{release: make(chan struct{})}
	disp := dispatch.New(an, dispatch.Options{MaxWorkers: 2, TaskTimeout: time.Minute}, nil)
	t.Cleanup(func() {
		close(an.release)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = disp.Wait(ctx)
	})

	now := func() time.Time { return time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC) }
	sched := &service.SchedulerService{
		Cron:       cronrunner.New(time.UTC, nil, cronrunner.WithClock(now)),
		Dispatcher: disp,
		Watchlist:  store,
		Digest:     noopDigest{},
		Settings:   &service.SystemSettingsService{Repo: store},
		Now:        now,
	}
	if err := sched.Start(true, "18:00"); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(sched.Stop)

	chat := &service.ChatService{
		Parser: intent.NewParser(nil, nil, nil),
		Ledger: &ledger.Reconciler{Repo: store},
	}

	r := gin.New()
	(&HealthHandler{}).Register(r)
	(&SchedulerHandler{Service: sched}).Register(r)
	(&WatchlistHandler{Service: &service.WatchlistService{Repo: store}}).Register(r)
	(&AnalysisHandler{Dispatcher: disp}).Register(r)
	(&TelegramHandler{Chat: chat, Secret: "s3cret"}).Register(r)
	(&SettingsHandler{Repo: store}).Register(r)
	return r, store, an
}

func TestReadyWithoutDatabase(t *testing.T) {
	r, _, _ := newServer(t)
	w, _ := do(t, r, http.MethodGet, "/readyz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	r, _, _ := newServer(t)

	w, env := do(t, r, http.MethodGet, "/api/v1/system/scheduler/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code=%d", w.Code)
	}
	var st service.SchedulerStatus
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Enabled || st.ScheduleTime == nil || *st.ScheduleTime != "18:00" {
		t.Fatalf("status=%+v", st)
	}

	w, env = do(t, r, http.MethodPut, "/api/v1/system/scheduler/reschedule?schedule_time=25:00", nil, nil)
	if w.Code != http.StatusUnprocessableEntity || env.Message != "invalid_time" {
		t.Fatalf("reschedule bad code=%d msg=%s", w.Code, env.Message)
	}
	w, env = do(t, r, http.MethodPut, "/api/v1/system/scheduler/reschedule?schedule_time=9:15", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reschedule code=%d", w.Code)
	}
	_ = json.Unmarshal(env.Data, &st)
	if *st.ScheduleTime != "09:15" {
		t.Fatalf("time=%s", *st.ScheduleTime)
	}

	w, env = do(t, r, http.MethodGet, "/api/v1/system/settings/schedule.time", nil, nil)
	if w.Code != http.StatusOK || !bytes.Contains(env.Data, []byte(`"09:15"`)) {
		t.Fatalf("persisted setting code=%d data=%s", w.Code, env.Data)
	}
	if w, _ := do(t, r, http.MethodGet, "/api/v1/system/settings/missing", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing setting code=%d", w.Code)
	}

	w, env = do(t, r, http.MethodGet, "/api/v1/system/scheduler/trigger/push?mode=dusk", nil, nil)
	if w.Code != http.StatusUnprocessableEntity || env.Message != "invalid_mode" {
		t.Fatalf("push code=%d msg=%s", w.Code, env.Message)
	}

	w, env = do(t, r, http.MethodPut, "/api/v1/system/scheduler/disable", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("disable code=%d", w.Code)
	}
	st = service.SchedulerStatus{}
	_ = json.Unmarshal(env.Data, &st)
	if st.Enabled || st.ScheduleTime != nil || !st.SchedulerRunning {
		t.Fatalf("disabled status=%+v", st)
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	r, _, _ := newServer(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/watchlist", map[string]string{"stock_code": "??"}, nil)
	if w.Code != http.StatusUnprocessableEntity || env.Message != "invalid_code" {
		t.Fatalf("code=%d msg=%s", w.Code, env.Message)
	}

	w, env = do(t, r, http.MethodPost, "/api/v1/watchlist", map[string]string{"stock_code": " aapl "}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("add code=%d", w.Code)
	}
	var item struct {
		ID        uint64 `json:"id"`
		StockCode string `json:"stock_code"`
	}
	_ = json.Unmarshal(env.Data, &item)
	if item.StockCode != "AAPL" || item.ID == 0 {
		t.Fatalf("item=%+v", item)
	}

	_, env = do(t, r, http.MethodPost, "/api/v1/watchlist", map[string]string{"stock_code": "AAPL"}, nil)
	var again struct {
		ID uint64 `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &again)
	if again.ID != item.ID {
		t.Fatalf("re-add created a new row: %d vs %d", again.ID, item.ID)
	}

	path := "/api/v1/watchlist/" + jsonNumber(item.ID)
	if w, _ := do(t, r, http.MethodDelete, path, nil, nil); w.Code != http.StatusOK {
		t.Fatalf("delete code=%d", w.Code)
	}
	if w, _ := do(t, r, http.MethodDelete, path, nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete code=%d", w.Code)
	}
}

func TestAnalyzeAcceptsThenConflicts(t *testing.T) {
	r, _, _ := newServer(t)

	w, env := do(t, r, http.MethodPost, "/api/v1/analysis/analyze", map[string]string{"stock_code": "600519"}, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	var task dispatch.TaskInfo
	_ = json.Unmarshal(env.Data, &task)
	if task.TaskID == "" || task.StockCode != "600519" {
		t.Fatalf("task=%+v", task)
	}

	w, env = do(t, r, http.MethodPost, "/api/v1/analysis/analyze", map[string]string{"stock_code": "600519"}, nil)
	if w.Code != http.StatusConflict || env.Meta["task_id"] != task.TaskID {
		t.Fatalf("code=%d meta=%v", w.Code, env.Meta)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/analysis/analyze", map[string]string{"stock_code": ""}, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code=%d", w.Code)
	}

	w, env = do(t, r, http.MethodGet, "/api/v1/analysis/tasks", nil, nil)
	var list dispatch.TaskList
	_ = json.Unmarshal(env.Data, &list)
	if w.Code != http.StatusOK || list.Total != 1 {
		t.Fatalf("code=%d list=%+v", w.Code, list)
	}
}

func TestTelegramWebhook(t *testing.T) {
	r, _, _ := newServer(t)
	secret := map[string]string{telegramSecretHeader: "s3cret"}

	if w, _ := do(t, r, http.MethodPost, "/api/v1/bot/telegram", `{}`, map[string]string{telegramSecretHeader: "nope"}); w.Code != http.StatusForbidden {
		t.Fatalf("bad secret code=%d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/api/v1/bot/telegram", `{not json`, secret); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json code=%d", w.Code)
	}

	update := `{"update_id":1,"message":{"message_id":5,"date":1772582400,"chat":{"id":-100,"type":"group"},"from":{"id":42,"is_bot":false,"first_name":"A"},"text":"600519 200股 成本价 1820"}}`
	w, _ := do(t, r, http.MethodPost, "/api/v1/bot/telegram", update, secret)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	var out service.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.OK || out.Message != service.OutcomeUpserted || out.Count != 1 {
		t.Fatalf("out=%+v", out)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/bot/telegram", `{"update_id":2}`, secret)
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if w.Code != http.StatusOK || out.Message != service.OutcomeNoMessage {
		t.Fatalf("code=%d out=%+v", w.Code, out)
	}
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
