package edge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := &circuitBreaker{maxFailures: 3, retryAfter: time.Minute}

	for i := 0; i < 2; i++ {
		cb.recordFailure()
		assert.True(t, cb.allow(), "breaker should stay closed below the threshold")
	}

	cb.recordFailure()
	assert.False(t, cb.allow(), "breaker should open at the threshold")
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	cb := &circuitBreaker{maxFailures: 1, retryAfter: 10 * time.Millisecond}

	cb.recordFailure()
	assert.False(t, cb.allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.allow(), "breaker should admit a probe after retryAfter")

	// A failed probe re-opens immediately.
	cb.recordFailure()
	assert.False(t, cb.allow())
}

func TestCircuitBreakerResetOnSuccess(t *testing.T) {
	cb := &circuitBreaker{maxFailures: 2, retryAfter: time.Minute}

	cb.recordFailure()
	cb.recordSuccess()
	cb.recordFailure()
	assert.True(t, cb.allow(), "success should reset the failure count")
}

func TestVoicesIncludeDefault(t *testing.T) {
	p := New("en-US-AriaNeural", nil)

	var ids []string
	for _, v := range p.Voices() {
		ids = append(ids, v.ID)
	}
	assert.Contains(t, ids, "en-US-AriaNeural")
	assert.Contains(t, ids, "en-US-GuyNeural")
}
