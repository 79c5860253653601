package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxBodyBytes = 5 << 20

type HTTPRequest struct {
	Method string
	URL    string
	Query  url.Values
	// Form уходит как application/x-www-form-urlencoded (только POST)
	Form   url.Values
	Header http.Header
}

type HTTPResponse struct {
	StatusCode int
	Body       []byte
}

func (r *HTTPResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport - единственный способ сходить в сеть для движков.
// Ошибки транспорта приходят уже как SourceError (timeout / network_failure),
// не-2xx статус ошибкой не считается.
type Transport interface {
	Do(ctx context.Context, req HTTPRequest) (*HTTPResponse, error)
}

type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

func NewHTTPTransport(timeout time.Duration, userAgent string) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPTransport{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (t *HTTPTransport) Do(ctx context.Context, r HTTPRequest) (*HTTPResponse, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := r.URL
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var body io.Reader
	if r.Form != nil {
		body = strings.NewReader(r.Form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vals := range r.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", t.userAgent)
	if r.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError("", fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, ClassifyTransportError("", fmt.Errorf("read response: %w", err))
	}

	return &HTTPResponse{StatusCode: resp.StatusCode, Body: data}, nil
}

// Tag проставляет имя движка в SourceError от транспорта
func Tag(engine string, err error) error {
	if se, ok := err.(*SourceError); ok && se.Engine == "" {
		se.Engine = engine
	}
	return err
}
