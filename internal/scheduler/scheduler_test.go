package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/index"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/report"
)

type countingCycler struct {
	calls atomic.Int32
	ran   chan struct{}
	err   error
}

func (c *countingCycler) Cycle(context.Context) (domain.CycleSummary, error) {
	c.calls.Add(1)
	c.ran <- struct{}{}
	return domain.CycleSummary{CycleID: "test"}, c.err
}

func waitRun(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not run")
	}
}

func TestCycleSchedulerStartupAndManualTrigger(t *testing.T) {
	cycler := &countingCycler{ran: make(chan struct{}, 10)}
	trigger := make(chan struct{}, 1)

	cs := NewCycleScheduler(cycler, logger.New("error", false), time.Hour, trigger)
	cs.Start(context.Background())
	defer cs.Stop()

	waitRun(t, cycler.ran) // startup cycle

	trigger <- struct{}{}
	waitRun(t, cycler.ran)

	if got := cycler.calls.Load(); got != 2 {
		t.Errorf("Cycle() called %d times, want 2", got)
	}
}

func TestCycleSchedulerInterval(t *testing.T) {
	cycler := &countingCycler{ran: make(chan struct{}, 10), err: errors.New("redis down")}

	cs := NewCycleScheduler(cycler, logger.New("error", false), 20*time.Millisecond, make(chan struct{}, 1))
	cs.Start(context.Background())

	waitRun(t, cycler.ran)
	waitRun(t, cycler.ran) // failures do not stop the loop
	cs.Stop()

	if got := cycler.calls.Load(); got < 2 {
		t.Errorf("Cycle() called %d times, want >= 2", got)
	}
}

func TestCycleSchedulerStopsOnContext(t *testing.T) {
	cycler := &countingCycler{ran: make(chan struct{}, 10)}
	ctx, cancel := context.WithCancel(context.Background())

	cs := NewCycleScheduler(cycler, logger.New("error", false), time.Hour, make(chan struct{}, 1))
	cs.Start(ctx)
	waitRun(t, cycler.ran)

	cancel()
	done := make(chan struct{})
	go func() {
		cs.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after ctx was cancelled")
	}
}

func TestReportSyncer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	records := []domain.ServiceRecord{
		{Server: "http://a:11434", Models: []string{"llama3"}, TPS: 12, Status: domain.StatusSuccess},
		{Server: "http://b:11434", Models: []string{}, Status: domain.StatusError},
	}
	if err := report.NewFileWriter(path).Write(records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	idx := index.NewMemoryIndex()
	if err := NewReportSyncer(path, idx, logger.New("error", false)).Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	if idx.Count() != 2 {
		t.Errorf("Sync() loaded %d records, want 2", idx.Count())
	}
	if r, ok := idx.GetRecord("http://a:11434"); !ok || r.TPS != 12 {
		t.Errorf("GetRecord() = %+v, %v", r, ok)
	}
}

func TestReportSyncerMissingFile(t *testing.T) {
	idx := index.NewMemoryIndex()
	err := NewReportSyncer(filepath.Join(t.TempDir(), "none.json"), idx, logger.New("error", false)).Sync()
	if err != nil {
		t.Fatalf("Sync() error = %v, want nil for a missing report", err)
	}
	if idx.Count() != 0 {
		t.Errorf("Sync() loaded %d records, want 0", idx.Count())
	}
}
