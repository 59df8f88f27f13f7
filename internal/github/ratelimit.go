package github

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v41/github"
	"github.com/pavelurbanek/docmine/internal/logging"
)

// RateLimiter gates outbound API calls on the platform's core rate-limit
// budget. It records the budget reported by each response and, when the
// budget is exhausted, blocks the calling flow until the reported reset time
// has elapsed. It only gates timing: errors from gated calls propagate
// untouched.
type RateLimiter struct {
	rate *github.Rate

	// injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter returns a limiter with no recorded budget; the first call
// always proceeds.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Wait blocks until the remaining budget is non-zero. It returns early only
// when the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r.rate == nil || r.rate.Remaining > 0 {
		return nil
	}

	delay := r.rate.Reset.Time.Sub(r.now())
	if delay <= 0 {
		r.rate = nil
		return nil
	}

	logging.Info("rate limit exhausted, waiting for reset",
		"reset_at", r.rate.Reset.Time,
		"wait", delay)

	if err := r.sleep(ctx, delay); err != nil {
		return err
	}

	r.rate = nil
	return nil
}

// Record stores the rate-limit budget reported by an API response.
func (r *RateLimiter) Record(resp *github.Response) {
	if resp == nil {
		return
	}
	rate := resp.Rate
	r.rate = &rate
}

// RecordHeaders stores the rate-limit budget reported through raw response
// headers, for calls made outside the go-github client (the GraphQL
// endpoint). Missing or malformed headers leave the recorded budget as-is.
func (r *RateLimiter) RecordHeaders(header http.Header) {
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	reset, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}

	r.rate = &github.Rate{
		Remaining: remaining,
		Reset:     github.Timestamp{Time: time.Unix(reset, 0)},
	}
}

// sleepContext sleeps for d unless the context is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
