package ollama

import (
	"bytes"
	"encoding/json"
)

// Model is one entry of /api/tags. Only Name is interpreted; the raw object
// is kept so re-encoding passes unknown fields through unchanged.
type Model struct {
	Name       string        `json:"name"`
	Model      *string       `json:"model,omitempty"`
	ModifiedAt *string       `json:"modified_at,omitempty"`
	Size       *int64        `json:"size,omitempty"`
	Digest     *string       `json:"digest,omitempty"`
	Details    *ModelDetails `json:"details,omitempty"`

	raw json.RawMessage
}

// ModelDetails mirrors the optional details block.
type ModelDetails struct {
	ParentModel       *string  `json:"parent_model,omitempty"`
	Format            *string  `json:"format,omitempty"`
	Family            *string  `json:"family,omitempty"`
	Families          []string `json:"families,omitempty"`
	ParameterSize     *string  `json:"parameter_size,omitempty"`
	QuantizationLevel *string  `json:"quantization_level,omitempty"`
}

type modelAlias Model

func (m *Model) UnmarshalJSON(data []byte) error {
	var alias modelAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = Model(alias)
	m.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

func (m Model) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(modelAlias(m))
}

// TagsResponse is the body of GET /api/tags.
type TagsResponse struct {
	Models []Model `json:"models"`
}

// Options are the sampling parameters sent with every generate call.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k,omitempty"`
}

// DefaultOptions are the fixed decoding options used for benchmarking.
var DefaultOptions = Options{Temperature: 0.7, TopP: 0.9, TopK: 40}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

// GenerateResponse is a non-streaming generate reply. Counters are optional
// and decoys usually omit them.
type GenerateResponse struct {
	Model         string `json:"model,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	EvalCount     *int64 `json:"eval_count,omitempty"`
	EvalDuration  *int64 `json:"eval_duration,omitempty"`  // ns
	TotalDuration *int64 `json:"total_duration,omitempty"` // ns
}

// HasEvalCounters reports whether exact token accounting is available.
func (r *GenerateResponse) HasEvalCounters() bool {
	return r.EvalCount != nil && *r.EvalCount > 0 &&
		r.EvalDuration != nil && *r.EvalDuration > 0
}
