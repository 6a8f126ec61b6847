// Package batch runs the probe and benchmark pipeline over many hosts in
// fixed-size chunks.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/ollamon/internal/benchmark"
	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/ollama"
)

const DefaultChunkSize = 50

type Prober interface {
	Probe(ctx context.Context, host string) ollama.ProbeResult
}

type Benchmarker interface {
	Run(ctx context.Context, host, model string) benchmark.Result
}

// Outcome is the terminal state of one host pipeline.
type Outcome struct {
	Record domain.ServiceRecord
	State  domain.State
	Reason string
}

// Stats are cumulative counters across all runs of a Runner.
type Stats struct {
	Hosts       int64 `json:"hosts"`
	Measured    int64 `json:"measured"`
	Fake        int64 `json:"fake"`
	NoModels    int64 `json:"no_models"`
	Unreachable int64 `json:"unreachable"`
	Failed      int64 `json:"failed"`
}

type Runner struct {
	prober    Prober
	bench     Benchmarker
	chunkSize int
	logger    logger.Logger
	now       func() time.Time

	hosts       *xsync.Counter
	measured    *xsync.Counter
	fake        *xsync.Counter
	noModels    *xsync.Counter
	unreachable *xsync.Counter
	failed      *xsync.Counter
}

func NewRunner(prober Prober, bench Benchmarker, chunkSize int, log logger.Logger) *Runner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Runner{
		prober:      prober,
		bench:       bench,
		chunkSize:   chunkSize,
		logger:      log,
		now:         time.Now,
		hosts:       xsync.NewCounter(),
		measured:    xsync.NewCounter(),
		fake:        xsync.NewCounter(),
		noModels:    xsync.NewCounter(),
		unreachable: xsync.NewCounter(),
		failed:      xsync.NewCounter(),
	}
}

// Run processes hosts chunk by chunk. Every host of a chunk settles before
// the next chunk starts. Outcomes are in completion order.
func (r *Runner) Run(ctx context.Context, hosts []string) []Outcome {
	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, 0, len(hosts))
	)

	for start := 0; start < len(hosts); start += r.chunkSize {
		end := min(start+r.chunkSize, len(hosts))
		chunk := hosts[start:end]

		var g errgroup.Group
		for _, host := range chunk {
			g.Go(func() error {
				out := r.Detect(ctx, host)
				mu.Lock()
				outcomes = append(outcomes, out)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		r.logger.Debug("Chunk settled",
			logger.Int("from", start),
			logger.Int("to", end),
			logger.Int("total", len(hosts)))
	}

	return outcomes
}

// Detect runs the pipeline for a single host. A panic inside the pipeline
// is recorded as StateFailed instead of propagating.
func (r *Runner) Detect(ctx context.Context, host string) (out Outcome) {
	r.hosts.Inc()
	record := domain.NewServiceRecord(host, r.now())

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Host pipeline panicked",
				logger.String("host", host),
				logger.String("panic", fmt.Sprint(rec)))
			record.Status = domain.StateFailed.Status()
			out = Outcome{Record: record, State: domain.StateFailed, Reason: fmt.Sprint(rec)}
		}
		r.count(out.State)
	}()

	probe := r.prober.Probe(ctx, host)
	record.Models = probe.ModelNames()

	switch probe.Status {
	case domain.ProbeUnreachable:
		reason := ""
		if probe.Err != nil {
			reason = probe.Err.Error()
		}
		return r.finish(record, domain.StateUnreachable, reason)
	case domain.ProbeReachableNoModels:
		return r.finish(record, domain.StateNoModels, "")
	case domain.ProbeFake:
		// flagged from the listing, no benchmark needed
		return r.finish(record, domain.StateFake, "")
	}

	if err := ctx.Err(); err != nil {
		return r.finish(record, domain.StateFailed, err.Error())
	}

	res := r.bench.Run(ctx, host, record.Models[0])
	if res.Fake {
		return r.finish(record, domain.StateFake, string(res.Reason))
	}

	record.TPS = res.TPS
	return r.finish(record, domain.StateMeasured, "")
}

func (r *Runner) finish(record domain.ServiceRecord, state domain.State, reason string) Outcome {
	record.Status = state.Status()
	record.LastUpdate = r.now().UTC()
	if state != domain.StateMeasured {
		record.TPS = 0
	}
	return Outcome{Record: record, State: state, Reason: reason}
}

func (r *Runner) count(state domain.State) {
	switch state {
	case domain.StateMeasured:
		r.measured.Inc()
	case domain.StateFake:
		r.fake.Inc()
	case domain.StateNoModels:
		r.noModels.Inc()
	case domain.StateUnreachable:
		r.unreachable.Inc()
	default:
		r.failed.Inc()
	}
}

func (r *Runner) Stats() Stats {
	return Stats{
		Hosts:       r.hosts.Value(),
		Measured:    r.measured.Value(),
		Fake:        r.fake.Value(),
		NoModels:    r.noModels.Value(),
		Unreachable: r.unreachable.Value(),
		Failed:      r.failed.Value(),
	}
}

// Records extracts the report rows.
func Records(outcomes []Outcome) []domain.ServiceRecord {
	records := make([]domain.ServiceRecord, 0, len(outcomes))
	for _, o := range outcomes {
		records = append(records, o.Record)
	}
	return records
}

// ValidHosts returns the hosts whose outcome was measured.
func ValidHosts(outcomes []Outcome) []string {
	var hosts []string
	for _, o := range outcomes {
		if o.State == domain.StateMeasured && o.Record.IsValid() {
			hosts = append(hosts, o.Record.Server)
		}
	}
	return hosts
}
