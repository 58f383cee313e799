package ws

import "time"

// tokenBucket throttles byte-oriented I/O to a configured rate with
// burst headroom. It assumes the single-engine-thread invariant section
// 5 describes — no mutex guards it, since the connection's I/O step is
// always driven from one thread.
//
// No dependency in the retrieved example pack provides a rate limiter
// (neither golang.org/x/time/rate nor any third-party token-bucket
// package appears in any of their go.mod/go.sum files), so this is
// built directly on the standard library's time package.
type tokenBucket struct {
	max          float64
	refillPerSec float64
	tokens       float64
	last         time.Time
}

// newTokenBucket constructs a bucket already full, matching the
// connection's posture immediately after entering OPEN: an idle
// connection may burst immediately up to max.
func newTokenBucket(maxTokens, refillPerSec float64, now time.Time) *tokenBucket {
	return &tokenBucket{max: maxTokens, refillPerSec: refillPerSec, tokens: maxTokens, last: now}
}

func (b *tokenBucket) refill(now time.Time) {
	if b.refillPerSec <= 0 {
		return
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.max {
		b.tokens = b.max
	}
	b.last = now
}

// Allow reports whether n bytes may pass right now, consuming tokens if
// so. A disabled bucket (max == 0) always allows.
func (b *tokenBucket) Allow(now time.Time, n int) bool {
	if b.max <= 0 {
		return true
	}
	b.refill(now)
	if b.tokens < float64(n) {
		return false
	}
	b.tokens -= float64(n)
	return true
}

// Wait reports how long the caller should wait before n bytes can pass,
// given the current fill level. It returns 0 if Allow(now, n) would
// already succeed.
func (b *tokenBucket) Wait(now time.Time, n int) time.Duration {
	if b.max <= 0 {
		return 0
	}
	b.refill(now)
	deficit := float64(n) - b.tokens
	if deficit <= 0 {
		return 0
	}
	if b.refillPerSec <= 0 {
		return time.Duration(1<<63 - 1) // never refills; caller should treat as blocked indefinitely
	}
	return time.Duration(deficit/b.refillPerSec*float64(time.Second)) + time.Millisecond
}
