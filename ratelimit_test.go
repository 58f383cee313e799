package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllowsBurstThenThrottles(t *testing.T) {
	now := time.Unix(0, 0)
	b := newTokenBucket(10, 5, now)

	assert.True(t, b.Allow(now, 10))
	assert.False(t, b.Allow(now, 1))

	now = now.Add(1 * time.Second)
	assert.True(t, b.Allow(now, 5))
	assert.False(t, b.Allow(now, 1))
}

func TestTokenBucketDisabledAlwaysAllows(t *testing.T) {
	b := newTokenBucket(0, 0, time.Now())
	assert.True(t, b.Allow(time.Now(), 1<<20))
}

func TestTokenBucketWaitReportsZeroWhenAllowed(t *testing.T) {
	now := time.Unix(0, 0)
	b := newTokenBucket(10, 5, now)
	assert.Equal(t, time.Duration(0), b.Wait(now, 5))
}

func TestTokenBucketWaitReportsPositiveWhenStarved(t *testing.T) {
	now := time.Unix(0, 0)
	b := newTokenBucket(10, 5, now)
	assert.True(t, b.Allow(now, 10))
	d := b.Wait(now, 5)
	assert.Greater(t, d, time.Duration(0))
}
