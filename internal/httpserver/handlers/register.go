package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
)

type registerRequest struct {
	Server string `json:"server" validate:"required,max=2048"`
}

type registerResponse struct {
	Success bool `json:"success"`
	Exists  bool `json:"exists"`
}

// Register adds a host to the durable set so the next cycle probes it.
func Register(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if details, err := decodePayload(w, r, d.Validate, &req); err != nil {
			d.Logger.Debug("invalid register payload", logger.Error(err))
			writeError(w, http.StatusBadRequest, "server is required", details...)
			return
		}

		host, err := domain.NormalizeHost(req.Server)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		exists, err := d.Store.Register(r.Context(), host)
		if err != nil {
			d.Logger.Error("failed to register server",
				logger.String("host", host),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to update servers")
			return
		}

		if exists {
			d.Logger.Info("server already registered", logger.String("host", host))
		} else {
			d.Logger.Info("server registered", logger.String("host", host))
		}
		writeJSON(w, http.StatusOK, registerResponse{Success: true, Exists: exists})
	}
}
