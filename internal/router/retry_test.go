package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{}.withDefaults()
	assert.Equal(t, DefaultRetryPolicy(), p)

	p = RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Millisecond}.withDefaults()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.MaxBackoff)
}

func TestBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(20))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindModalityUnavailable, Handle: "abc", Op: "resolve", Reason: "no files"}
	assert.Equal(t, "dsroute: resolve abc: modality unavailable (empty): no files", err.Error())
	assert.ErrorIs(t, err, ErrModalityUnavailable)
	assert.NotErrorIs(t, err, ErrCanceled)
}
