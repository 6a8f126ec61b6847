package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
)

type cycleResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Cycle queues a full cycle without waiting for it.
func Cycle(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.CycleTrigger <- struct{}{}:
			d.Logger.Info("manual cycle triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, cycleResponse{Triggered: true, Message: "cycle queued"})
		default:
			d.Logger.Warn("cycle already queued",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, cycleResponse{Message: "a cycle is already queued, please wait"})
		}
	}
}
