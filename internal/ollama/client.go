// Package ollama speaks the two Ollama endpoints needed for probing:
// model listing and generation.
package ollama

import (
	"context"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
	"github.com/MrSnakeDoc/ollamon/internal/fetch"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
)

const (
	TagsPath     = "/api/tags"
	GeneratePath = "/api/generate"
)

// Fetcher is the subset of fetch.Client used here.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) (*fetch.Response, error)
	PostJSON(ctx context.Context, url string, payload any) (*fetch.Response, error)
	OpenJSON(ctx context.Context, url string, payload any) (io.ReadCloser, error)
}

// Client talks to arbitrary Ollama hosts. It keeps no per-host state.
type Client struct {
	fetcher Fetcher
	logger  logger.Logger
}

func NewClient(f Fetcher, log logger.Logger) *Client {
	return &Client{fetcher: f, logger: log}
}

// ProbeResult is the outcome of a capability probe.
type ProbeResult struct {
	Host   string
	Status domain.ProbeStatus
	Models []Model
	Err    error
}

// ModelNames returns the names in host order.
func (p ProbeResult) ModelNames() []string {
	names := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		names = append(names, m.Name)
	}
	return names
}

// Tags lists the models of host. A nil slice with nil error means the host
// answered with no models.
func (c *Client) Tags(ctx context.Context, host string) ([]Model, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")

	resp, err := c.fetcher.Get(ctx, host+TagsPath, header)
	if err != nil {
		return nil, err
	}

	var tags TagsResponse
	if err := resp.DecodeJSON(&tags); err != nil {
		return nil, err
	}
	return tags.Models, nil
}

// Probe classifies host from a single model-listing call. It never retries.
func (c *Client) Probe(ctx context.Context, host string) ProbeResult {
	models, err := c.Tags(ctx, host)
	if err != nil {
		c.logger.Debug("probe failed",
			logger.String("host", host),
			logger.String("kind", string(fetch.Classify(err))),
			logger.Error(err))
		return ProbeResult{Host: host, Status: domain.ProbeUnreachable, Err: err}
	}

	if len(models) == 0 {
		return ProbeResult{Host: host, Status: domain.ProbeReachableNoModels, Models: []Model{}}
	}
	return ProbeResult{Host: host, Status: domain.ProbeReachableWithModels, Models: models}
}

// Generate issues one non-streaming generate call.
func (c *Client) Generate(ctx context.Context, host string, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false
	resp, err := c.fetcher.PostJSON(ctx, host+GeneratePath, req)
	if err != nil {
		return nil, err
	}

	var out GenerateResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateStream opens a streaming generate call. The caller must Close the
// returned stream.
func (c *Client) GenerateStream(ctx context.Context, host string, req GenerateRequest) (*Stream, error) {
	req.Stream = true
	body, err := c.fetcher.OpenJSON(ctx, host+GeneratePath, req)
	if err != nil {
		return nil, err
	}
	return NewStream(body), nil
}
