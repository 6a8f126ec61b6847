package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/fetch"
	"github.com/MrSnakeDoc/ollamon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
	"github.com/MrSnakeDoc/ollamon/internal/ollama"
)

type generateRequest struct {
	Server string `json:"server" validate:"required,max=2048"`
	Model  string `json:"model" validate:"required"`
	Prompt string `json:"prompt" validate:"required"`
}

// Generate proxies a streaming generation and writes the text fragments as
// plain text, flushing after each one.
func Generate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if details, err := decodePayload(w, r, d.Validate, &req); err != nil {
			d.Logger.Debug("invalid generate payload", logger.Error(err))
			writeError(w, http.StatusBadRequest, "server, model and prompt are required", details...)
			return
		}

		host, err := domain.NormalizeHost(req.Server)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		stream, err := d.Streamer.GenerateStream(r.Context(), host, ollama.GenerateRequest{
			Model:   req.Model,
			Prompt:  req.Prompt,
			Options: ollama.DefaultOptions,
		})
		if err != nil {
			d.Logger.Warn("generate failed",
				logger.String("host", host),
				logger.String("kind", string(fetch.Classify(err))),
				logger.Error(err))
			status := http.StatusBadGateway
			var httpErr *fetch.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.StatusCode
			}
			writeError(w, status, "Generation failed")
			return
		}
		defer func() { _ = stream.Close() }()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)

		rc := http.NewResponseController(w)
		fragments := 0
		for {
			text, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				d.Logger.Warn("generate stream interrupted",
					logger.String("host", host),
					logger.Error(err))
				break
			}
			if _, err := io.WriteString(w, text); err != nil {
				d.Logger.Debug("client went away", logger.Error(err))
				return
			}
			_ = rc.Flush()
			fragments++
		}

		d.Logger.Debug("generate finished",
			logger.String("host", host),
			logger.Int("fragments", fragments),
			logger.Int("skipped", stream.Skipped()))
	}
}
