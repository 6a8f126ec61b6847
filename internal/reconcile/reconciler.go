// Package reconcile runs full cycles: it merges the durable host set with
// fresh discoveries, probes every candidate and rewrites the set with the
// hosts that measured successfully.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/ollamon/internal/batch"
	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/report"
)

// ErrCycleInProgress is returned when Cycle is called while another runs.
var ErrCycleInProgress = errors.New("cycle already in progress")

// Source yields candidate hosts. A non-nil error with hosts is a partial
// result; the hosts are still used.
type Source interface {
	Name() string
	Hosts(ctx context.Context) ([]string, error)
}

type ServerStore interface {
	Members(ctx context.Context) ([]string, error)
	Replace(ctx context.Context, hosts []string) error
}

type Runner interface {
	Run(ctx context.Context, hosts []string) []batch.Outcome
}

type ReportWriter interface {
	Write(records []domain.ServiceRecord) error
}

type Snapshot interface {
	UpdateRecords(records []domain.ServiceRecord)
	SetLastCycle(summary domain.CycleSummary)
}

type Options struct {
	IncludeFailures bool // report hosts that did not measure
}

type Reconciler struct {
	store   ServerStore
	runner  Runner
	writer  ReportWriter
	index   Snapshot
	sources []Source
	opts    Options
	logger  logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

func New(store ServerStore, runner Runner, writer ReportWriter, index Snapshot, log logger.Logger, opts Options, sources ...Source) *Reconciler {
	return &Reconciler{
		store:   store,
		runner:  runner,
		writer:  writer,
		index:   index,
		sources: sources,
		opts:    opts,
		logger:  log,
		now:     time.Now,
	}
}

// Cycle runs one full reconcile. Only reading and replacing the durable set
// can fail it; source and report failures are logged and recorded in the
// summary. A cancelled cycle changes neither the report nor the snapshot,
// and leaves the durable set as it was.
func (r *Reconciler) Cycle(ctx context.Context) (domain.CycleSummary, error) {
	if !r.mu.TryLock() {
		return domain.CycleSummary{}, ErrCycleInProgress
	}
	defer r.mu.Unlock()

	start := r.now()
	summary := domain.CycleSummary{
		CycleID:   uuid.NewString(),
		StartedAt: start.UTC(),
		Statuses:  make(map[domain.State]int),
	}
	log := r.logger.With(logger.String("cycle_id", summary.CycleID))
	log.Info("Cycle started")

	known, err := r.store.Members(ctx)
	if err != nil {
		log.Error("Failed to read known servers", logger.Error(err))
		return summary, fmt.Errorf("failed to read known servers: %w", err)
	}
	summary.Known = len(known)

	lists := [][]string{known}
	for _, src := range r.sources {
		hosts, err := src.Hosts(ctx)
		if err != nil {
			log.Warn("Source returned errors",
				logger.String("source", src.Name()),
				logger.Int("hosts", len(hosts)),
				logger.Error(err))
			summary.SourceErrors = append(summary.SourceErrors, fmt.Sprintf("%s: %v", src.Name(), err))
		}
		summary.Discovered += len(hosts)
		lists = append(lists, hosts)
	}

	candidates, invalid := domain.MergeHosts(lists...)
	if len(invalid) > 0 {
		log.Debug("Dropped invalid candidates", logger.Strings("hosts", invalid))
	}
	summary.Candidates = len(candidates)
	log.Info("Probing candidates",
		logger.Int("known", summary.Known),
		logger.Int("discovered", summary.Discovered),
		logger.Int("candidates", summary.Candidates))

	outcomes := r.runner.Run(ctx, candidates)
	for _, o := range outcomes {
		summary.Statuses[o.State]++
	}

	// hosts cut short by cancellation read as unreachable, so nothing below
	// may run
	if err := ctx.Err(); err != nil {
		log.Warn("Cycle cancelled, keeping report and stored servers", logger.Error(err))
		return summary, fmt.Errorf("cycle cancelled: %w", err)
	}

	records := report.Filter(batch.Records(outcomes), r.opts.IncludeFailures)
	if err := r.writer.Write(records); err != nil {
		log.Error("Failed to write report", logger.Error(err))
	}
	r.index.UpdateRecords(records)

	valid := batch.ValidHosts(outcomes)
	summary.Valid = len(valid)
	if err := r.store.Replace(ctx, valid); err != nil {
		log.Error("Failed to replace servers", logger.Error(err))
		return summary, fmt.Errorf("failed to replace servers: %w", err)
	}

	summary.Duration = r.now().Sub(start).Round(time.Millisecond).String()
	r.index.SetLastCycle(summary)

	log.Info("Cycle finished",
		logger.Int("valid", summary.Valid),
		logger.Int("candidates", summary.Candidates),
		logger.String("duration", summary.Duration))

	return summary, nil
}
