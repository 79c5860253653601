package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSourceError_Is(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewSourceError(EngineGoogle, KindNetworkFailure, "", cause)

	if !errors.Is(err, ErrNetworkFailure) {
		t.Error("errors.Is(err, ErrNetworkFailure) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = true")
	}

	wrapped := fmt.Errorf("engine failed: %w", err)
	var se *SourceError
	if !errors.As(wrapped, &se) {
		t.Fatal("errors.As() = false")
	}
	if se.Engine != EngineGoogle {
		t.Errorf("Engine = %q", se.Engine)
	}
}

func TestSourceError_Error(t *testing.T) {
	err := NewSourceError("duckduckgo", KindMalformedResponse, "parse lite page", errors.New("eof"))
	want := "duckduckgo: malformed_response: parse lite page: eof"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status   int
		wantKind ErrorKind
		wantIs   error
	}{
		{429, KindRateLimitedUpstream, ErrUpstreamRateLimited},
		{500, KindNetworkFailure, ErrNetworkFailure},
		{404, KindNetworkFailure, ErrNetworkFailure},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := StatusError(EngineGoogle, tt.status, []byte("  body text  "))
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v) = false", tt.wantIs)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d", err.StatusCode)
			}
			want := fmt.Sprintf("http %d: body text", tt.status)
			if err.Message != want {
				t.Errorf("Message = %q, want %q", err.Message, want)
			}
		})
	}
}

type fakeNetErr struct{ timeout bool }

func (e fakeNetErr) Error() string   { return "net op failed" }
func (e fakeNetErr) Timeout() bool   { return e.timeout }
func (e fakeNetErr) Temporary() bool { return false }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		passThru bool
	}{
		{"nil", nil, "", true},
		{"deadline", fmt.Errorf("do: %w", context.DeadlineExceeded), KindTimeout, false},
		{"net timeout", fakeNetErr{timeout: true}, KindTimeout, false},
		{"net failure", fakeNetErr{}, KindNetworkFailure, false},
		{"plain", errors.New("boom"), KindNetworkFailure, false},
		{"canceled", fmt.Errorf("do: %w", context.Canceled), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransportError(EngineScraping, tt.err)
			if tt.passThru {
				if got != tt.err {
					t.Errorf("ClassifyTransportError() = %v, want unchanged", got)
				}
				return
			}
			if KindOf(got) != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", KindOf(got), tt.wantKind)
			}
			if !errors.Is(got, tt.err) {
				t.Error("cause lost")
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
	if KindOf(context.DeadlineExceeded) != KindTimeout {
		t.Error("deadline should be timeout")
	}
	if KindOf(errors.New("x")) != KindNetworkFailure {
		t.Error("unknown error should be network failure")
	}
	wrapped := fmt.Errorf("outer: %w", NewSourceError("", KindNotConfigured, "", nil))
	if KindOf(wrapped) != KindNotConfigured {
		t.Error("wrapped SourceError kind lost")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", StatusError(EngineGoogle, 503, nil), true},
		{"502", StatusError(EngineGoogle, 502, nil), true},
		{"429", StatusError(EngineGoogle, 429, nil), true},
		{"400", StatusError(EngineGoogle, 400, nil), false},
		{"403", StatusError(EngineGoogle, 403, []byte("forbidden")), false},
		{"400 body mentions network", StatusError(EngineGoogle, 400, []byte(`{"error":{"message":"Invalid value 'network' for dateRestrict"}}`)), false},
		{"404 body mentions 503", StatusError(EngineGoogle, 404, []byte("upstream 503 timeout")), false},
		{"504 with body", StatusError(EngineGoogle, 504, []byte("gateway")), true},
		{"timeout kind", NewSourceError("", KindTimeout, "", errors.New("slow")), true},
		{"not configured", NewSourceError("", KindNotConfigured, "timeout", nil), false},
		{"malformed", NewSourceError("", KindMalformedResponse, "", errors.New("network")), false},
		{"connection reset", NewSourceError("", KindNetworkFailure, "", errors.New("read: connection reset by peer")), true},
		{"no such host", NewSourceError("", KindNetworkFailure, "", errors.New("dial tcp: lookup x: no such host")), true},
		{"node style code", errors.New("ECONNRESET"), true},
		{"plain network text", errors.New("Network unreachable"), true},
		{"unrelated", errors.New("invalid argument"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
