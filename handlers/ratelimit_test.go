package handlers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter()
	ip := "127.0.0.1"

	assert.True(t, limiter.Allow(ip), "allowed initially")

	for i := 0; i < maxAttempts-1; i++ {
		limiter.RecordFailure(ip)
	}
	assert.True(t, limiter.Allow(ip), "allowed below the threshold")

	limiter.RecordFailure(ip)
	assert.False(t, limiter.Allow(ip), "blocked at the threshold")
	assert.True(t, limiter.Allow("127.0.0.2"), "other clients unaffected")

	limiter.Reset(ip)
	assert.True(t, limiter.Allow(ip), "allowed after reset")
}

func TestRateLimiterBlockExpires(t *testing.T) {
	limiter := newRateLimiter()
	ip := "10.0.0.9"

	limiter.blocked[ip] = time.Now().Add(-time.Second)
	limiter.attempts[ip] = &attemptData{count: maxAttempts, firstAttempt: time.Now().Add(-time.Hour)}

	assert.True(t, limiter.Allow(ip))
	assert.NotContains(t, limiter.attempts, ip)
}

func TestRateLimiterParallel(t *testing.T) {
	limiter := newRateLimiter()
	ip := "10.0.0.1"

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.RecordFailure(ip)
		}()
	}
	wg.Wait()

	assert.False(t, limiter.Allow(ip), "blocked after concurrent failures")
}

func TestKeyRateLimiter(t *testing.T) {
	limiter := newKeyRateLimiter(1, 2)

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))

	limiter.cleanup(time.Now().Add(time.Minute))
	assert.Empty(t, limiter.limiters)
	assert.True(t, limiter.Allow("a"), "fresh bucket after cleanup")
}

func TestKeyRateLimiterDisabled(t *testing.T) {
	limiter := newKeyRateLimiter(0, 5)
	assert.Nil(t, limiter)
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("a"))
	}
	limiter.cleanup(time.Now())
}
