package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kitbuilder587/crawldock/internal/search"
)

func TestRateLimitError(t *testing.T) {
	reset := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var err error = &RateLimitError{ResetAt: reset, Remaining: 0, Total: 500}

	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Error("errors.Is(err, ErrRateLimitExceeded) = false")
	}
	if !strings.Contains(err.Error(), "2025-03-01T12:00:00Z") {
		t.Errorf("Error() = %q, want reset time", err.Error())
	}

	var rle *RateLimitError
	if !errors.As(fmt.Errorf("search: %w", err), &rle) || rle.Total != 500 {
		t.Errorf("errors.As() = %+v", rle)
	}
}

func TestExhaustedError(t *testing.T) {
	netErr := search.NewSourceError(search.EngineDuckDuckGo, search.KindNetworkFailure, "http 502", nil)
	err := &ExhaustedError{
		Query: "q",
		Outcomes: []EngineOutcome{
			{Engine: search.EngineGoogle, Status: OutcomeSkipped},
			{Engine: search.EngineDuckDuckGo, Status: OutcomeError, Err: netErr, Elapsed: 120 * time.Millisecond},
			{Engine: search.EngineScraping, Status: OutcomeEmpty, Elapsed: 2 * time.Second},
		},
	}

	if !errors.Is(err, ErrAllSourcesExhausted) {
		t.Error("errors.Is(err, ErrAllSourcesExhausted) = false")
	}
	if !errors.Is(err, search.ErrNetworkFailure) {
		t.Error("engine errors should be reachable through errors.Is")
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		t.Error("errors.Is(err, ErrRateLimitExceeded) = true")
	}

	msg := err.Error()
	for _, want := range []string{
		"google: skipped",
		"duckduckgo: duckduckgo: network_failure: http 502 (120ms)",
		"scraping: empty (2s)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
