package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorKind classifies oracle failures.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate_limit"
	KindQuota     ErrorKind = "quota_exhausted"
	KindMalformed ErrorKind = "malformed"
	KindTransport ErrorKind = "transport"
	KindCanceled  ErrorKind = "canceled"
)

// Retryable reports whether another attempt may succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindQuota, KindCanceled:
		return false
	default:
		return true
	}
}

// OracleError is returned once an oracle call has exhausted its attempts.
type OracleError struct {
	Task     string
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s: %s after %d attempt(s): %v", e.Task, e.Kind, e.Attempts, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// malformedError marks a response that did not parse or validate.
type malformedError struct {
	err error
}

func (e *malformedError) Error() string {
	return "malformed response: " + e.err.Error()
}

func (e *malformedError) Unwrap() error {
	return e.err
}

// Malformed wraps err so the oracle treats it as a malformed response.
// Stages use it for semantic checks the schema cannot express.
func Malformed(format string, args ...interface{}) error {
	return &malformedError{err: fmt.Errorf(format, args...)}
}

func classify(err error) ErrorKind {
	var malformed *malformedError
	if errors.As(err, &malformed) {
		return KindMalformed
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	// A zero quota never refills within a run.
	if strings.Contains(err.Error(), "limit: 0") {
		return KindQuota
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var statusErr *StatusError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.As(err, &statusErr):
		status = statusErr.StatusCode
	}
	if status == http.StatusTooManyRequests {
		return KindRateLimit
	}
	if status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout {
		return KindTimeout
	}
	return KindTransport
}
