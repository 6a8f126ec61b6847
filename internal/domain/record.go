package domain

import "time"

// Status is the dashboard-facing outcome of one host in one cycle.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusFake    Status = "fake"
	StatusLoading Status = "loading"
)

// ProbeStatus classifies the answer of a model-listing call.
type ProbeStatus string

const (
	ProbeReachableWithModels ProbeStatus = "reachable-with-models"
	ProbeReachableNoModels   ProbeStatus = "reachable-no-models"
	ProbeUnreachable         ProbeStatus = "unreachable"
	// ProbeFake is for listers that can spot a decoy from the model list
	// alone. The Ollama client never returns it; decoys show up in the
	// benchmark instead.
	ProbeFake ProbeStatus = "fake"
)

// State is the terminal state of one host pipeline within a cycle.
type State string

const (
	StateUnreachable State = "unreachable"
	StateNoModels    State = "no_models"
	StateFake        State = "fake"
	StateMeasured    State = "measured"
	StateFailed      State = "failed" // pipeline panicked or was cancelled
)

// Status maps a terminal state to the status reported for the host.
func (s State) Status() Status {
	switch s {
	case StateMeasured:
		return StatusSuccess
	case StateFake:
		return StatusFake
	default:
		return StatusError
	}
}

// ServiceRecord is one row of the cycle report.
type ServiceRecord struct {
	Server     string    `json:"server"`
	Models     []string  `json:"models"`
	TPS        float64   `json:"tps"`
	LastUpdate time.Time `json:"lastUpdate"`
	Status     Status    `json:"status"`
}

// NewServiceRecord returns a record in the loading state.
func NewServiceRecord(server string, now time.Time) ServiceRecord {
	return ServiceRecord{
		Server:     server,
		Models:     []string{},
		LastUpdate: now.UTC(),
		Status:     StatusLoading,
	}
}

// IsValid reports whether the record belongs in the durable valid-set.
func (r ServiceRecord) IsValid() bool {
	return r.Status == StatusSuccess && len(r.Models) > 0
}
