package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrRateLimited is returned (wrapped) when a completion service refuses a
// request because of a rate limit or exhausted quota.
var ErrRateLimited = errors.New("completion service rate limited")

// Completer produces a completion for a prompt. In JSON mode the service is
// asked to answer with a JSON document only.
type Completer interface {
	GenerateCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// StatusError is a non-200 response from an HTTP completion backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion service returned status: %d", e.StatusCode)
	}
	return fmt.Sprintf("completion service returned status: %d: %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err signals a rate limit from any of the
// supported backends.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "rate_limit", "too many requests", "429"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
