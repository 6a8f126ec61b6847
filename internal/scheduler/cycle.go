package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/reconcile"
)

// Cycler runs one full reconcile cycle.
type Cycler interface {
	Cycle(ctx context.Context) (domain.CycleSummary, error)
}

// CycleScheduler runs a cycle at start, then on every tick and on every
// manual trigger.
type CycleScheduler struct {
	cycler        Cycler
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewCycleScheduler creates a scheduler. manualTrigger should be buffered
// so a trigger sent mid-cycle queues exactly one more run.
func NewCycleScheduler(cycler Cycler, log logger.Logger, interval time.Duration, manualTrigger chan struct{}) *CycleScheduler {
	return &CycleScheduler{
		cycler:        cycler,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start launches the loop and returns immediately. The first cycle runs in
// the background so the HTTP server is not held up by it.
func (cs *CycleScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(cs.interval)
	go func() {
		defer close(cs.done)
		defer ticker.Stop()

		cs.run(ctx, "startup")
		for {
			select {
			case <-ticker.C:
				cs.run(ctx, "interval")
			case <-cs.manualTrigger:
				cs.logger.Info("manual cycle triggered")
				cs.run(ctx, "manual")
			case <-cs.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for a running cycle to return.
func (cs *CycleScheduler) Stop() {
	cs.stopOnce.Do(func() { close(cs.stopCh) })
	<-cs.done
}

func (cs *CycleScheduler) run(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	summary, err := cs.cycler.Cycle(ctx)
	switch {
	case errors.Is(err, reconcile.ErrCycleInProgress):
		cs.logger.Warn("cycle skipped, another one is running", logger.String("reason", reason))
	case err != nil:
		cs.logger.Error("cycle failed",
			logger.String("reason", reason),
			logger.String("cycle_id", summary.CycleID),
			logger.Error(err))
	default:
		cs.logger.Info("cycle completed",
			logger.String("reason", reason),
			logger.String("cycle_id", summary.CycleID),
			logger.Int("valid", summary.Valid))
	}
}
