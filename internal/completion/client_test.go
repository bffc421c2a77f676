// internal/completion/client_test.go
package completion

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderError_Kinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"timeout", &ProviderError{Kind: FailureTimeout}, FailureTimeout},
		{"rate limited", &ProviderError{Kind: FailureRateLimited}, FailureRateLimited},
		{"malformed", &ProviderError{Kind: FailureMalformed}, FailureMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe, ok := AsProviderError(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, pe.Kind)
		})
	}
}

func TestAsProviderError_Wrapped(t *testing.T) {
	inner := &ProviderError{Kind: FailureRateLimited}
	wrapped := fmt.Errorf("handle turn: %w", inner)

	pe, ok := AsProviderError(wrapped)
	require.True(t, ok)
	assert.Equal(t, FailureRateLimited, pe.Kind)
}

func TestAsProviderError_Unrelated(t *testing.T) {
	_, ok := AsProviderError(context.DeadlineExceeded)
	assert.False(t, ok)
}

func TestProviderError_Message(t *testing.T) {
	e := &ProviderError{Kind: FailureTimeout}
	assert.Contains(t, e.Error(), "timeout")

	e = &ProviderError{Kind: FailureMalformed, Err: fmt.Errorf("no choices")}
	assert.Contains(t, e.Error(), "no choices")
}
