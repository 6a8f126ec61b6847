package domain

import "time"

// CycleSummary describes one finished reconcile cycle.
type CycleSummary struct {
	CycleID      string        `json:"cycleId"`
	StartedAt    time.Time     `json:"startedAt"`
	Duration     string        `json:"duration"`
	Known        int           `json:"known"`      // hosts read from the durable set
	Discovered   int           `json:"discovered"` // hosts returned by discovery sources
	Candidates   int           `json:"candidates"` // deduplicated union actually probed
	Valid        int           `json:"valid"`
	Statuses     map[State]int `json:"statuses"`
	SourceErrors []string      `json:"sourceErrors,omitempty"`
}
