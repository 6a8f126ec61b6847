package batch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/ollamon/internal/benchmark"
	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/fetch"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/ollama"
)

type fakeProber struct {
	fn func(host string) ollama.ProbeResult
}

func (p fakeProber) Probe(_ context.Context, host string) ollama.ProbeResult { return p.fn(host) }

type fakeBench struct {
	fn func(host, model string) benchmark.Result
}

func (b fakeBench) Run(_ context.Context, host, model string) benchmark.Result {
	return b.fn(host, model)
}

func withModels(host string, names ...string) ollama.ProbeResult {
	models := make([]ollama.Model, 0, len(names))
	for _, n := range names {
		models = append(models, ollama.Model{Name: n})
	}
	return ollama.ProbeResult{Host: host, Status: domain.ProbeReachableWithModels, Models: models}
}

func TestDetectStates(t *testing.T) {
	tests := []struct {
		name       string
		probe      ollama.ProbeResult
		bench      benchmark.Result
		wantState  domain.State
		wantStatus domain.Status
		wantTPS    float64
		wantModels []string
	}{
		{
			name:       "unreachable",
			probe:      ollama.ProbeResult{Status: domain.ProbeUnreachable, Err: fmt.Errorf("dial tcp: refused")},
			wantState:  domain.StateUnreachable,
			wantStatus: domain.StatusError,
			wantModels: []string{},
		},
		{
			name:       "no models",
			probe:      ollama.ProbeResult{Status: domain.ProbeReachableNoModels},
			wantState:  domain.StateNoModels,
			wantStatus: domain.StatusError,
			wantModels: []string{},
		},
		{
			name:       "measured",
			probe:      withModels("h", "llama3", "qwen2"),
			bench:      benchmark.Result{TPS: 42},
			wantState:  domain.StateMeasured,
			wantStatus: domain.StatusSuccess,
			wantTPS:    42,
			wantModels: []string{"llama3", "qwen2"},
		},
		{
			name:       "fake keeps models",
			probe:      withModels("h", "llama3"),
			bench:      benchmark.Result{Fake: true, Reason: benchmark.ReasonDecoy, TPS: 99},
			wantState:  domain.StateFake,
			wantStatus: domain.StatusFake,
			wantModels: []string{"llama3"},
		},
		{
			name:       "flagged from listing skips benchmark",
			probe:      ollama.ProbeResult{Status: domain.ProbeFake, Models: []ollama.Model{{Name: "llama3"}}},
			bench:      benchmark.Result{TPS: 99},
			wantState:  domain.StateFake,
			wantStatus: domain.StatusFake,
			wantModels: []string{"llama3"},
		},
		{
			name:       "could not measure",
			probe:      withModels("h", "llama3"),
			bench:      benchmark.Result{TPS: 0},
			wantState:  domain.StateMeasured,
			wantStatus: domain.StatusSuccess,
			wantModels: []string{"llama3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var benchModel string
			r := NewRunner(
				fakeProber{fn: func(string) ollama.ProbeResult { return tt.probe }},
				fakeBench{fn: func(_, model string) benchmark.Result { benchModel = model; return tt.bench }},
				0, logger.New("error", false))

			out := r.Detect(context.Background(), "http://h:11434")

			assert.Equal(t, tt.wantState, out.State)
			assert.Equal(t, tt.wantStatus, out.Record.Status)
			assert.Equal(t, tt.wantTPS, out.Record.TPS)
			assert.Equal(t, tt.wantModels, out.Record.Models)
			assert.Equal(t, "http://h:11434", out.Record.Server)
			assert.False(t, out.Record.LastUpdate.IsZero())
			if tt.probe.Status == domain.ProbeReachableWithModels {
				assert.Equal(t, tt.wantModels[0], benchModel, "benchmark runs on the first model")
			} else {
				assert.Empty(t, benchModel, "no benchmark without a usable listing")
			}
		})
	}
}

func TestRunIsolatesPanics(t *testing.T) {
	hosts := make([]string, 10)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("http://10.0.0.%d:11434", i)
	}

	r := NewRunner(
		fakeProber{fn: func(host string) ollama.ProbeResult {
			if host == hosts[5] {
				panic("boom")
			}
			return withModels(host, "llama3")
		}},
		fakeBench{fn: func(string, string) benchmark.Result { return benchmark.Result{TPS: 10} }},
		3, logger.New("error", false))

	outcomes := r.Run(context.Background(), hosts)
	require.Len(t, outcomes, 10)

	var failed []string
	for _, o := range outcomes {
		if o.State == domain.StateFailed {
			failed = append(failed, o.Record.Server)
			assert.Equal(t, domain.StatusError, o.Record.Status)
		}
	}
	assert.Equal(t, []string{hosts[5]}, failed)

	valid := ValidHosts(outcomes)
	sort.Strings(valid)
	assert.Len(t, valid, 9)
	assert.NotContains(t, valid, hosts[5])

	stats := r.Stats()
	assert.Equal(t, int64(10), stats.Hosts)
	assert.Equal(t, int64(9), stats.Measured)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestRunBoundsConcurrencyPerChunk(t *testing.T) {
	const chunk = 4
	hosts := make([]string, 11)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("h%d", i)
	}

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
		mu       sync.Mutex
		order    []string
	)
	r := NewRunner(
		fakeProber{fn: func(host string) ollama.ProbeResult {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			mu.Lock()
			order = append(order, host)
			mu.Unlock()
			return ollama.ProbeResult{Status: domain.ProbeReachableNoModels}
		}},
		fakeBench{fn: func(string, string) benchmark.Result { return benchmark.Result{} }},
		chunk, logger.New("error", false))

	outcomes := r.Run(context.Background(), hosts)

	assert.Len(t, outcomes, len(hosts))
	assert.LessOrEqual(t, peak.Load(), int32(chunk))

	// a chunk settles completely before the next starts
	for i := 0; i < len(order); i += chunk {
		end := min(i+chunk, len(order))
		got := append([]string(nil), order[i:end]...)
		want := append([]string(nil), hosts[i:end]...)
		sort.Strings(got)
		sort.Strings(want)
		assert.Equal(t, want, got)
	}
}

func TestValidHostsAndRecords(t *testing.T) {
	outcomes := []Outcome{
		{State: domain.StateMeasured, Record: domain.ServiceRecord{Server: "a", Models: []string{"m"}, Status: domain.StatusSuccess}},
		{State: domain.StateFake, Record: domain.ServiceRecord{Server: "b", Models: []string{"m"}, Status: domain.StatusFake}},
		{State: domain.StateNoModels, Record: domain.ServiceRecord{Server: "c", Models: []string{}, Status: domain.StatusError}},
	}

	assert.Equal(t, []string{"a"}, ValidHosts(outcomes))
	assert.Len(t, Records(outcomes), 3)
	assert.Empty(t, ValidHosts(nil))
}

func TestRunEndToEnd(t *testing.T) {
	var generateCalls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ollama.TagsPath:
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
		case ollama.GeneratePath:
			generateCalls.Add(1)
			_, _ = w.Write([]byte(`{"response":"Once upon a time","done":true,"eval_count":50,"eval_duration":1000000000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	log := logger.New("error", false)
	client := ollama.NewClient(fetch.New(fetch.Options{Timeout: time.Second}), log)
	bench := benchmark.New(client, benchmark.Options{RoundDelay: time.Millisecond}, log)
	r := NewRunner(client, bench, 50, log)

	outcomes := r.Run(context.Background(), []string{ts.URL})
	require.Len(t, outcomes, 1)

	rec := outcomes[0].Record
	assert.Equal(t, ts.URL, rec.Server)
	assert.Equal(t, []string{"llama3"}, rec.Models)
	assert.InDelta(t, 50.0, rec.TPS, 1e-9)
	assert.Equal(t, domain.StatusSuccess, rec.Status)
	assert.Equal(t, int32(3), generateCalls.Load())
	assert.Equal(t, []string{ts.URL}, ValidHosts(outcomes))
}

func TestRunEndToEndDecoy(t *testing.T) {
	var generateCalls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ollama.TagsPath:
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3"}]}`))
		case ollama.GeneratePath:
			generateCalls.Add(1)
			_, _ = w.Write([]byte(`{"response":"这是一条来自固定回复","done":true,"eval_count":50,"eval_duration":1000000000}`))
		}
	}))
	defer ts.Close()

	log := logger.New("error", false)
	client := ollama.NewClient(fetch.New(fetch.Options{Timeout: time.Second}), log)
	r := NewRunner(client, benchmark.New(client, benchmark.Options{}, log), 50, log)

	outcomes := r.Run(context.Background(), []string{ts.URL})
	require.Len(t, outcomes, 1)

	assert.Equal(t, domain.StatusFake, outcomes[0].Record.Status)
	assert.Equal(t, domain.StateFake, outcomes[0].State)
	assert.Equal(t, int32(1), generateCalls.Load())
	assert.Empty(t, ValidHosts(outcomes))
}
