package backend

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", NewError(CodeRateLimited, nil), true},
		{"unavailable wrapped", fmt.Errorf("fetch: %w", NewError(CodeUnavailable, nil)), true},
		{"timeout", NewError(CodeTimeout, context.DeadlineExceeded), true},
		{"not found", NewError(CodeNotFound, nil), false},
		{"permission", NewError(CodePermissionDenied, nil), false},
		{"plain error", fmt.Errorf("boom"), false},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestCodeAndRetryAfter(t *testing.T) {
	err := fmt.Errorf("list: %w", &Error{Code: CodeRateLimited, Retryable: true, RetryAfter: 2 * time.Second})
	assert.Equal(t, CodeRateLimited, CodeOf(err))
	assert.Equal(t, 2*time.Second, RetryAfterOf(err))
	assert.Equal(t, "", CodeOf(fmt.Errorf("x")))
	assert.Equal(t, "not_found: missing", Errorf(CodeNotFound, "missing").Error())
}
