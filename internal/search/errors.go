package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrInvalidOptions = errors.New("invalid search options")
	ErrInvalidConfig  = errors.New("invalid search config")
)

type ErrorKind string

const (
	KindNotConfigured       ErrorKind = "not_configured"
	KindNetworkFailure      ErrorKind = "network_failure"
	KindTimeout             ErrorKind = "timeout"
	KindMalformedResponse   ErrorKind = "malformed_response"
	KindRateLimitedUpstream ErrorKind = "rate_limited_upstream"
)

// сентинелы по видам ошибок, для errors.Is
var (
	ErrNotConfigured       = errors.New("engine not configured")
	ErrNetworkFailure      = errors.New("network failure")
	ErrTimeout             = errors.New("request timed out")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotConfigured:
		return ErrNotConfigured
	case KindNetworkFailure:
		return ErrNetworkFailure
	case KindTimeout:
		return ErrTimeout
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindRateLimitedUpstream:
		return ErrUpstreamRateLimited
	default:
		return nil
	}
}

// SourceError - ошибка конкретного движка. Наружу из оркестратора не выходит.
type SourceError struct {
	Engine     string
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	var sb strings.Builder
	if e.Engine != "" {
		sb.WriteString(e.Engine)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Kind))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *SourceError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewSourceError(engine string, kind ErrorKind, msg string, err error) *SourceError {
	return &SourceError{Engine: engine, Kind: kind, Message: msg, Err: err}
}

// StatusError - не-2xx ответ апстрима. Кусок тела идет только в текст
// ошибки для логов, повтор решается по StatusCode.
func StatusError(engine string, status int, body []byte) *SourceError {
	kind := KindNetworkFailure
	if status == 429 {
		kind = KindRateLimitedUpstream
	}
	msg := fmt.Sprintf("http %d", status)
	if snippet := strings.TrimSpace(Truncate(string(body), 200)); snippet != "" {
		msg += ": " + snippet
	}
	return &SourceError{Engine: engine, Kind: kind, Message: msg, StatusCode: status}
}

// KindOf - вид ошибки; для чужих ошибок угадываем по типу
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindNetworkFailure
}

// ClassifyTransportError заворачивает ошибку http-клиента в SourceError
func ClassifyTransportError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isTimeout(err) {
		return NewSourceError(engine, KindTimeout, "", err)
	}
	return NewSourceError(engine, KindNetworkFailure, "", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// маркеры временных сбоев, сравниваются с текстом ошибки в нижнем регистре
var retryableMarkers = []string{
	"econnreset",
	"etimedout",
	"enotfound",
	"econnrefused",
	"connection reset",
	"connection refused",
	"no such host",
	"timeout",
	"network",
	"429",
	"500",
	"502",
	"503",
	"504",
}

// IsRetryable - для ответов апстрима решает код статуса, для остального
// совпадение по подстроке без учета регистра. У SourceError смотрим
// только сообщение и причину: название вида (network_failure) само по
// себе ничего не говорит.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	var se *SourceError
	if errors.As(err, &se) {
		if se.Kind == KindNotConfigured || se.Kind == KindMalformedResponse {
			return false
		}
		if se.StatusCode != 0 {
			return retryableStatus(se.StatusCode)
		}
		msg = se.Message
		if se.Err != nil {
			msg += " " + se.Err.Error()
		}
		if se.Kind == KindTimeout {
			return true
		}
	}
	msg = strings.ToLower(msg)
	for _, m := range retryableMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
