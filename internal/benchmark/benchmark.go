package benchmark

import (
	"context"
	"math"
	"time"

	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/ollama"
)

const (
	DefaultRounds     = 3
	DefaultRoundDelay = time.Second
	DefaultTPSCeiling = 1000.0
)

// DefaultPrompts are cycled round-robin, one per round.
var DefaultPrompts = []string{
	"Tell me a short story about a robot who learns to love.",
	"Explain the concept of recursion in programming.",
	"What are the main differences between classical and quantum computing?",
}

type Reason string

const (
	ReasonNone    Reason = ""
	ReasonDecoy   Reason = "decoy"
	ReasonOutlier Reason = "outlier"
)

// Generator issues one non-streaming generate call.
type Generator interface {
	Generate(ctx context.Context, host string, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
}

type Options struct {
	Rounds       int
	Prompts      []string
	RoundDelay   time.Duration
	TPSCeiling   float64
	DecoyMarkers []string
	Generate     ollama.Options
}

// Result is either a measured TPS or Fake with a Reason.
type Result struct {
	TPS       float64
	Fake      bool
	Reason    Reason
	Measured  int // rounds that made it into the aggregate
	Attempted int
}

type Benchmarker struct {
	gen    Generator
	opts   Options
	decoy  *DecoyDetector
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(gen Generator, opts Options, log logger.Logger) *Benchmarker {
	if opts.Rounds <= 0 {
		opts.Rounds = DefaultRounds
	}
	if len(opts.Prompts) == 0 {
		opts.Prompts = DefaultPrompts
	}
	if opts.RoundDelay < 0 {
		opts.RoundDelay = 0
	}
	if opts.TPSCeiling <= 0 {
		opts.TPSCeiling = DefaultTPSCeiling
	}
	if opts.Generate == (ollama.Options{}) {
		opts.Generate = ollama.DefaultOptions
	}

	return &Benchmarker{
		gen:    gen,
		opts:   opts,
		decoy:  NewDecoyDetector(opts.DecoyMarkers),
		logger: log,
		sleep:  sleepContext,
	}
}

// Decoy exposes the detector so callers can reuse the same marker list.
func (b *Benchmarker) Decoy() *DecoyDetector { return b.decoy }

// Run benchmarks model on host. Rounds run strictly one after another.
// A failed round is skipped; a round whose raw TPS is outside the sane
// range is left out of the aggregate. A decoy reply ends the run at once.
func (b *Benchmarker) Run(ctx context.Context, host, model string) Result {
	var (
		totalTokens float64
		totalTime   float64
		res         Result
		outliers    int
	)

	for i := 0; i < b.opts.Rounds; i++ {
		if i > 0 {
			if err := b.sleep(ctx, b.opts.RoundDelay); err != nil {
				b.logger.Debug("Benchmark interrupted",
					logger.String("host", host),
					logger.Int("round", i+1),
					logger.Error(err))
				break
			}
		}

		prompt := b.opts.Prompts[i%len(b.opts.Prompts)]
		res.Attempted++

		resp, err := b.gen.Generate(ctx, host, ollama.GenerateRequest{
			Model:   model,
			Prompt:  prompt,
			Options: b.opts.Generate,
		})
		if err != nil {
			b.logger.Debug("Benchmark round failed",
				logger.String("host", host),
				logger.String("model", model),
				logger.Int("round", i+1),
				logger.Error(err))
			continue
		}

		if b.decoy.IsDecoy(resp.Response) {
			b.logger.Info("Decoy reply detected",
				logger.String("host", host),
				logger.Int("round", i+1))
			res.Fake = true
			res.Reason = ReasonDecoy
			res.TPS = 0
			return res
		}

		s := measure(prompt, resp)
		if raw := s.rawTPS(); !b.sane(raw) {
			outliers++
			b.logger.Warn("Discarding outlier round",
				logger.String("host", host),
				logger.Int("round", i+1),
				logger.Float64("tps", raw))
			continue
		}

		totalTokens += s.tokens
		totalTime += s.elapsed
		res.Measured++
	}

	if res.Measured == 0 && outliers > 0 {
		res.Fake = true
		res.Reason = ReasonOutlier
		return res
	}

	tps := 0.0
	if totalTime > 0 {
		tps = totalTokens / totalTime
	}
	if !b.sane(tps) {
		b.logger.Warn("Aggregate TPS out of range",
			logger.String("host", host),
			logger.Float64("tps", tps))
		res.Fake = true
		res.Reason = ReasonOutlier
		return res
	}

	res.TPS = tps
	return res
}

func (b *Benchmarker) sane(tps float64) bool {
	return !math.IsNaN(tps) && !math.IsInf(tps, 0) && tps >= 0 && tps <= b.opts.TPSCeiling
}

// sample is one round's measurement.
type sample struct {
	promptTokens   int
	responseTokens int
	tokens         float64
	elapsed        float64
	exact          bool
}

func measure(prompt string, resp *ollama.GenerateResponse) sample {
	if resp.HasEvalCounters() {
		return sample{
			tokens:  float64(*resp.EvalCount),
			elapsed: float64(*resp.EvalDuration) / 1e9,
			exact:   true,
		}
	}

	s := sample{
		promptTokens:   EstimateTokens(prompt),
		responseTokens: EstimateTokens(resp.Response),
		elapsed:        1,
	}
	s.tokens = float64(s.promptTokens + s.responseTokens)
	if resp.TotalDuration != nil && *resp.TotalDuration > 0 {
		s.elapsed = float64(*resp.TotalDuration) / 1e9
	}
	return s
}

func (s sample) rawTPS() float64 {
	if s.elapsed <= 0 {
		return math.NaN()
	}
	return s.tokens / s.elapsed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
