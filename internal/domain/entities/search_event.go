package entities

import (
	"time"
)

// SearchEvent records one completed concept search for analytics.
type SearchEvent struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id,omitempty"`
	Params      SearchParams `json:"params"`
	ECL         string       `json:"ecl"`
	ResultCount int          `json:"result_count"`
	Total       int          `json:"total"`
	ErrorKind   string       `json:"error_kind,omitempty"`
	LatencyMs   int          `json:"latency_ms"`
	CreatedAt   time.Time    `json:"created_at"`
}
