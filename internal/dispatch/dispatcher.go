// Package dispatch runs analysis requests in the background with at most one
// outstanding pipeline call per normalized stock code.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ahricool/raise/internal/analysis"
	"github.com/ahricool/raise/internal/stockcode"
)

type Options struct {
	MaxWorkers  int
	TaskTimeout time.Duration
	HistorySize int
}

type Dispatcher struct {
	analyzer analysis.Analyzer
	logger   *zap.Logger
	hub      *Hub
	sem      *semaphore.Weighted
	timeout  time.Duration
	histSize int
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]*TaskInfo
	history  []TaskInfo
	wg       sync.WaitGroup
}

func New(analyzer analysis.Analyzer, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 3
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 100
	}
	return &Dispatcher{
		analyzer: analyzer,
		logger:   logger,
		hub:      NewHub(),
		sem:      semaphore.NewWeighted(int64(opts.MaxWorkers)),
		timeout:  opts.TaskTimeout,
		histSize: opts.HistorySize,
		now:      time.Now,
		inflight: map[string]*TaskInfo{},
	}
}

func (d *Dispatcher) Hub() *Hub {
	return d.hub
}

// Submit registers the code as in flight and starts the pipeline call in the
// background. It never blocks on the pipeline.
func (d *Dispatcher) Submit(req Request) Submission {
	code := stockcode.Normalize(req.Code)
	if code == "" {
		return Submission{Outcome: Invalid, Code: req.Code}
	}
	reportType := req.ReportType
	if reportType == "" {
		reportType = "simple"
	}

	d.mu.Lock()
	if existing, ok := d.inflight[code]; ok {
		snapshot := *existing
		d.mu.Unlock()
		return Submission{Outcome: Duplicate, Code: code, Task: &snapshot}
	}
	task := &TaskInfo{
		TaskID:     uuid.NewString(),
		StockCode:  code,
		StockName:  req.Name,
		ReportType: reportType,
		Status:     StatusPending,
		Message:    "queued",
		CreatedAt:  d.now(),
	}
	d.inflight[code] = task
	snapshot := *task
	d.wg.Add(1)
	d.mu.Unlock()

	d.hub.Publish(Event{Type: EventTaskCreated, Task: snapshot})
	go d.run(task)
	return Submission{Outcome: Accepted, Code: code, Task: &snapshot}
}

func (d *Dispatcher) run(task *TaskInfo) {
	defer d.wg.Done()
	var (
		res *analysis.Result
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("analysis task panicked", zap.String("code", task.StockCode), zap.Any("panic", r))
			err = errPanicked
		}
		d.finish(task, res, err)
	}()

	_ = d.sem.Acquire(context.Background(), 1)
	defer d.sem.Release(1)

	d.update(task, func(t *TaskInfo) {
		now := d.now()
		t.Status = StatusProcessing
		t.Message = "analyzing"
		t.StartedAt = &now
	}, EventTaskStarted)

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	res, err = d.analyzer.Analyze(ctx, task.StockCode, task.ReportType)
}

// finish clears the in-flight marker whatever the outcome.
func (d *Dispatcher) finish(task *TaskInfo, res *analysis.Result, err error) {
	now := d.now()
	d.mu.Lock()
	task.CompletedAt = &now
	evType := EventTaskCompleted
	if err != nil {
		task.Status = StatusFailed
		task.Message = "analysis failed"
		task.Error = err.Error()
		evType = EventTaskFailed
	} else {
		task.Status = StatusCompleted
		task.Message = "analysis completed"
		if res != nil && task.StockName == "" {
			task.StockName = res.Name
		}
	}
	if cur, ok := d.inflight[task.StockCode]; ok && cur == task {
		delete(d.inflight, task.StockCode)
	}
	d.history = append(d.history, *task)
	if over := len(d.history) - d.histSize; over > 0 {
		d.history = append([]TaskInfo(nil), d.history[over:]...)
	}
	snapshot := *task
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn("analysis task failed", zap.String("task_id", task.TaskID), zap.String("code", task.StockCode), zap.Error(err))
	} else {
		d.logger.Info("analysis task completed", zap.String("task_id", task.TaskID), zap.String("code", task.StockCode))
	}
	d.hub.Publish(Event{Type: evType, Task: snapshot})
}

func (d *Dispatcher) update(task *TaskInfo, fn func(*TaskInfo), evType string) {
	d.mu.Lock()
	fn(task)
	snapshot := *task
	d.mu.Unlock()
	d.hub.Publish(Event{Type: evType, Task: snapshot})
}

// InFlight reports whether code is currently being processed.
func (d *Dispatcher) InFlight(code string) bool {
	code = stockcode.Normalize(code)
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[code]
	return ok
}

// ListTasks returns in-flight tasks (oldest first) followed by finished ones
// (newest first). An empty status matches everything.
func (d *Dispatcher) ListTasks(status Status, limit int) TaskList {
	d.mu.Lock()
	active := make([]TaskInfo, 0, len(d.inflight))
	out := TaskList{}
	for _, t := range d.inflight {
		switch t.Status {
		case StatusPending:
			out.PendingCount++
		case StatusProcessing:
			out.ProcessingCount++
		}
		active = append(active, *t)
	}
	done := make([]TaskInfo, 0, len(d.history))
	for i := len(d.history) - 1; i >= 0; i-- {
		done = append(done, d.history[i])
	}
	d.mu.Unlock()

	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	all := append(active, done...)
	tasks := make([]TaskInfo, 0, len(all))
	for _, t := range all {
		if status != "" && t.Status != status {
			continue
		}
		tasks = append(tasks, t)
	}
	out.Total = len(tasks)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	out.Tasks = tasks
	return out
}

// Wait blocks until every submitted task has finished or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
