package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
)

type detectRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

// Detect probes and benchmarks one host. Unreachable hosts answer 404 with
// their record. Results are cached in redis for DetectCacheTTL; ?fresh=1
// bypasses the cache.
func Detect(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req detectRequest
		if details, err := decodePayload(w, r, d.Validate, &req); err != nil {
			d.Logger.Debug("invalid detect payload", logger.Error(err))
			writeError(w, http.StatusBadRequest, "URL is required", details...)
			return
		}

		host, err := domain.NormalizeHost(req.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		useCache := d.Store != nil && d.DetectCacheTTL > 0
		if useCache && r.URL.Query().Get("fresh") == "" {
			cached, err := d.Store.CachedRecord(ctx, host)
			if err != nil {
				d.Logger.Warn("detect cache read failed", logger.Error(err))
			}
			if cached != nil {
				d.Logger.Debug("detect served from cache", logger.String("host", host))
				writeRecord(w, cached.Record, cached.State)
				return
			}
		}

		d.Logger.Info("detect request", logger.String("host", host))
		out := d.Detector.Detect(ctx, host)

		if useCache && out.State != domain.StateFailed {
			if err := d.Store.CacheRecord(ctx, out.Record, out.State, d.DetectCacheTTL); err != nil {
				d.Logger.Warn("detect cache write failed", logger.Error(err))
			}
		}
		if _, ok := d.MemoryIndex.GetRecord(host); ok {
			d.MemoryIndex.UpsertRecord(out.Record)
		}

		d.Logger.Info("detect finished",
			logger.String("host", host),
			logger.String("state", string(out.State)),
			logger.Float64("tps", out.Record.TPS))

		writeRecord(w, out.Record, out.State)
	}
}

func writeRecord(w http.ResponseWriter, rec domain.ServiceRecord, state domain.State) {
	status := http.StatusOK
	if state == domain.StateUnreachable {
		status = http.StatusNotFound
	}
	writeJSON(w, status, rec)
}
