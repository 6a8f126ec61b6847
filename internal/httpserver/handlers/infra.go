package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/ollamon/internal/batch"
	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
)

type componentStatus struct {
	OK            bool   `json:"ok"`
	RecordsLoaded *int   `json:"records_loaded,omitempty"`
	StoredServers *int64 `json:"stored_servers,omitempty"`
	LastReload    string `json:"last_reload,omitempty"`
	Impact        string `json:"impact,omitempty"`
	Error         string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
	LastCycle  *domain.CycleSummary       `json:"last_cycle,omitempty"`
	Runner     *batch.Stats               `json:"runner,omitempty"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordsCount := d.MemoryIndex.Count()
		lastReload := d.MemoryIndex.GetLastReload()
		lastReloadStr := "never"
		if !lastReload.IsZero() {
			lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
		}

		components := map[string]componentStatus{
			"index": {
				OK:            recordsCount > 0,
				RecordsLoaded: &recordsCount,
				LastReload:    lastReloadStr,
			},
			"redis": checkRedis(r.Context(), d),
		}

		response := infraResponse{
			Mode:       determineMode(components),
			Components: components,
		}
		if summary, ok := d.MemoryIndex.LastCycle(); ok {
			response.LastCycle = &summary
		}
		if d.Detector != nil {
			stats := d.Detector.Stats()
			response.Runner = &stats
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func determineMode(components map[string]componentStatus) string {
	// Redis down = cycles cannot persist
	if redis, exists := components["redis"]; exists && !redis.OK {
		return "critical"
	}

	// No snapshot yet = dashboard is empty until the first cycle ends
	if idx, exists := components["index"]; exists && !idx.OK {
		return "degraded"
	}

	return "operational"
}

func checkRedis(parent context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{
			OK:     false,
			Impact: "cycles-disabled",
			Error:  "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	count, err := d.Store.Count(ctx)
	if err != nil {
		return componentStatus{
			OK:     false,
			Impact: "cycles-disabled",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:            true,
		StoredServers: &count,
	}
}
