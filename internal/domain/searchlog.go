package domain

import "time"

type SearchStatus string

const (
	SearchStatusSuccess     SearchStatus = "success"
	SearchStatusExhausted   SearchStatus = "exhausted"
	SearchStatusRateLimited SearchStatus = "rate_limited"
)

// SearchLogEntry - строка журнала поисков (search_log)
type SearchLogEntry struct {
	ID               string       `json:"id"`
	Query            string       `json:"query"`
	Engine           string       `json:"engine,omitempty"`
	Status           SearchStatus `json:"status"`
	ResultCount      int          `json:"resultCount"`
	Error            string       `json:"error,omitempty"`
	ProcessingTimeMs int64        `json:"processingTime"`
	CreatedAt        time.Time    `json:"createdAt"`
}
