package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/openfroyo/froyo-git/pkg/engine"
)

var (
	// ErrTokenRequired is returned when a gateway is built without a token.
	ErrTokenRequired = errors.New("API token is required")

	// ErrRepositoryExists is returned by CreateRepository when the platform
	// reports the repository is already there.
	ErrRepositoryExists = errors.New("repository already exists")
)

// UnexpectedStatusError is returned when a platform answers with a status the
// call does not handle.
type UnexpectedStatusError struct {
	Gateway    Kind
	Call       string
	StatusCode int
	Expected   []int
	Message    string
}

func (e *UnexpectedStatusError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, code := range e.Expected {
		expected[i] = strconv.Itoa(code)
	}

	msg := fmt.Sprintf("%s %s: unexpected status %d (expected %s)",
		e.Gateway, e.Call, e.StatusCode, strings.Join(expected, ", "))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// AsEngineError classifies the status: 429 is throttled, everything else is
// permanent.
func (e *UnexpectedStatusError) AsEngineError() *engine.EngineError {
	if e.StatusCode == http.StatusTooManyRequests {
		return engine.NewThrottledError(e.Error(), nil).
			WithCode(engine.ErrCodeRateLimited).
			WithDetail("status", e.StatusCode)
	}
	return engine.NewPermanentError(e.Error(), nil).
		WithCode(engine.ErrCodeUnexpectedStatus).
		WithDetail("status", e.StatusCode)
}

// requestError wraps a failure that produced no HTTP response.
func requestError(kind Kind, call string, err error) error {
	code := engine.ErrCodeProviderFailed
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		code = engine.ErrCodeTimeout
	}
	return engine.NewTransientError(fmt.Sprintf("%s %s request failed", kind, call), err).
		WithCode(code)
}
