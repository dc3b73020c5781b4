package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 5*time.Second, policy.NextDelay(5), "capped")
	assert.Equal(t, 5*time.Second, policy.NextDelay(5000), "no overflow")
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := RetryPolicy{}.WithDefaults()

	assert.Equal(t, time.Second, policy.InitialDelay)
	assert.Equal(t, 2.0, policy.BackoffFactor)
	assert.Equal(t, time.Minute, policy.MaxDelay)
	assert.Equal(t, time.Minute, RetryPolicy{}.NextDelay(10))
}

func TestRetryPolicyExhausted(t *testing.T) {
	assert.False(t, RetryPolicy{}.Exhausted(1000))

	policy := RetryPolicy{MaxRetries: 3}
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
}

func TestRetryPolicyWait(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Millisecond}
	assert.NoError(t, policy.Wait(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := RetryPolicy{InitialDelay: time.Hour, MaxDelay: time.Hour}
	assert.ErrorIs(t, slow.Wait(ctx, 1), context.Canceled)
}
