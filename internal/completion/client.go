// internal/completion/client.go
package completion

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies provider failures so the orchestrator can pick
// a fallback without inspecting provider-specific errors.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureMalformed   FailureKind = "malformed_response"
)

// ProviderError is any failure of the external completion provider.
type ProviderError struct {
	Kind FailureKind
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("completion provider: %s", e.Kind)
	}
	return fmt.Sprintf("completion provider: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Client generates a free-text reply for a fully assembled prompt. The
// context bounds the call; implementations must respect its deadline.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
