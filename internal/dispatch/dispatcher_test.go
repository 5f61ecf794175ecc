package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahricool/raise/internal/analysis"
	"github.com/ahricool/raise/internal/errors"
)

type blockingAnalyzer struct {
	release chan struct{}
	active  sync.Map
	calls   atomic.Int32
	overlap atomic.Bool
	err     error
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{release: make(chan struct{})}
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, code, reportType string) (*analysis.Result, error) {
	a.calls.Add(1)
	if _, loaded := a.active.LoadOrStore(code, true); loaded {
		a.overlap.Store(true)
	}
	defer a.active.Delete(code)
	select {
	case <-a.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	return &analysis.Result{Code: code, Name: "name-" + code}, nil
}

func waitIdle(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestSubmitRejectsDuplicateUntilDone(t *testing.T) {
	a := newBlockingAnalyzer()
	d := New(a, Options{MaxWorkers: 2}, nil)

	first := d.Submit(Request{Code: "600519"})
	if !first.Accepted() || first.Task == nil || first.Task.TaskID == "" {
		t.Fatalf("first=%+v", first)
	}
	second := d.Submit(Request{Code: " 600519 "})
	if second.Outcome != Duplicate {
		t.Fatalf("second outcome=%s want duplicate", second.Outcome)
	}
	if second.Task == nil || second.Task.TaskID != first.Task.TaskID {
		t.Fatalf("duplicate should carry the in-flight task")
	}
	if !errors.Is(second.Err(), errors.ErrDuplicateTask) {
		t.Fatalf("err=%v", second.Err())
	}

	close(a.release)
	waitIdle(t, d)
	if d.InFlight("600519") {
		t.Fatalf("code still in flight")
	}
	third := d.Submit(Request{Code: "600519"})
	if !third.Accepted() {
		t.Fatalf("resubmit outcome=%s", third.Outcome)
	}
	waitIdle(t, d)
}

func TestSubmitConcurrentBurst(t *testing.T) {
	a := newBlockingAnalyzer()
	d := New(a, Options{MaxWorkers: 4}, nil)

	var accepted, duplicate atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := "600519"
			if i%2 == 1 {
				code = "aapl"
			}
			switch d.Submit(Request{Code: code}).Outcome {
			case Accepted:
				accepted.Add(1)
			case Duplicate:
				duplicate.Add(1)
			}
		}(i)
	}
	wg.Wait()
	close(a.release)
	waitIdle(t, d)

	if accepted.Load() != 2 || duplicate.Load() != 48 {
		t.Fatalf("accepted=%d duplicate=%d", accepted.Load(), duplicate.Load())
	}
	if a.overlap.Load() {
		t.Fatalf("pipeline ran twice for the same code")
	}
	if a.calls.Load() != 2 {
		t.Fatalf("calls=%d want 2", a.calls.Load())
	}
}

func TestSubmitInvalidCode(t *testing.T) {
	d := New(newBlockingAnalyzer(), Options{}, nil)
	sub := d.Submit(Request{Code: "  "})
	if sub.Outcome != Invalid || !errors.Is(sub.Err(), errors.ErrInvalidCode) {
		t.Fatalf("sub=%+v err=%v", sub, sub.Err())
	}
	if d.Submit(Request{Code: "60-05"}).Outcome != Invalid {
		t.Fatalf("expected invalid for malformed code")
	}
}

func TestFailedTaskClearsInFlight(t *testing.T) {
	a := newBlockingAnalyzer()
	a.err = errors.New("pipeline exploded")
	close(a.release)
	d := New(a, Options{}, nil)

	events, cancel := d.Hub().Subscribe(8)
	defer cancel()

	if !d.Submit(Request{Code: "000001"}).Accepted() {
		t.Fatalf("not accepted")
	}
	waitIdle(t, d)
	if d.InFlight("000001") {
		t.Fatalf("failed task left in flight")
	}
	list := d.ListTasks(StatusFailed, 10)
	if list.Total != 1 || list.Tasks[0].Error == "" {
		t.Fatalf("list=%+v", list)
	}

	var types []string
	for len(types) < 3 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("events=%v", types)
		}
	}
	if types[0] != EventTaskCreated || types[1] != EventTaskStarted || types[2] != EventTaskFailed {
		t.Fatalf("events=%v", types)
	}
}

func TestTaskTimeout(t *testing.T) {
	a := newBlockingAnalyzer()
	d := New(a, Options{TaskTimeout: 20 * time.Millisecond}, nil)
	d.Submit(Request{Code: "600519"})
	waitIdle(t, d)
	list := d.ListTasks("", 0)
	if list.Total != 1 || list.Tasks[0].Status != StatusFailed {
		t.Fatalf("list=%+v", list)
	}
}

func TestListTasksHistoryBounded(t *testing.T) {
	a := newBlockingAnalyzer()
	close(a.release)
	d := New(a, Options{HistorySize: 2}, nil)
	for _, code := range []string{"600000", "600001", "600002"} {
		d.Submit(Request{Code: code})
		waitIdle(t, d)
	}
	list := d.ListTasks("", 0)
	if list.Total != 2 {
		t.Fatalf("total=%d want 2", list.Total)
	}
	if list.Tasks[0].StockCode != "600002" {
		t.Fatalf("newest first, got %s", list.Tasks[0].StockCode)
	}
}
