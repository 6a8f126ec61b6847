package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
)

// Report serves the current snapshot, fastest hosts first. An optional
// ?status= keeps only the records with that status.
func Report(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := d.MemoryIndex.GetAllRecords()

		if status := domain.Status(r.URL.Query().Get("status")); status != "" {
			filtered := make([]domain.ServiceRecord, 0, len(records))
			for _, rec := range records {
				if rec.Status == status {
					filtered = append(filtered, rec)
				}
			}
			records = filtered
		}

		writeJSON(w, http.StatusOK, records)
	}
}
