package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyQuery   = errors.New("empty query")
	ErrQueryTooLong = errors.New("query too long")
)

var (
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrAllSourcesExhausted = errors.New("all search engines failed to return results")
	ErrHistoryDisabled     = errors.New("search history is disabled")
)

// RateLimitError - отказ лимитера, до движков дело не дошло
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Total     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

type OutcomeStatus string

const (
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeEmpty   OutcomeStatus = "empty"
	OutcomeError   OutcomeStatus = "error"
)

// EngineOutcome - чем закончилась попытка одного движка
type EngineOutcome struct {
	Engine  string        `json:"engine"`
	Status  OutcomeStatus `json:"status"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"-"`
}

func (o EngineOutcome) String() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("%s: %s (%s)", o.Engine, o.Err, o.Elapsed.Round(time.Millisecond))
	case o.Status == OutcomeSkipped:
		return o.Engine + ": skipped (not configured)"
	default:
		return fmt.Sprintf("%s: %s (%s)", o.Engine, o.Status, o.Elapsed.Round(time.Millisecond))
	}
}

// ExhaustedError - ни один движок не дал результатов.
// Через errors.Is видны и ErrAllSourcesExhausted, и ошибки движков.
type ExhaustedError struct {
	Query    string
	Outcomes []EngineOutcome
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		parts = append(parts, o.String())
	}
	return fmt.Sprintf("%s: %s", ErrAllSourcesExhausted, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	errs := []error{ErrAllSourcesExhausted}
	for _, o := range e.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
