package tickets

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// MaxConcurrent and BatchDelay implement spec.md 4.10's write-pacing rule:
// at most MaxConcurrent writes in flight, then a pause after every batch of
// that size.
const (
	MaxConcurrent     = 2
	BatchDelay        = 500 * time.Millisecond
	ReadDelay         = 200 * time.Millisecond
	rateLimitBackoff  = 5 * time.Second
	remainingLowWater = 5
)

// ErrRateLimited is returned by an adapter call when the tracker responded
// 403 or 429.
var ErrRateLimited = errors.New("tracker rate limited the request")

// RateLimitedError wraps ErrRateLimited with the delay the tracker actually
// asked for (its Retry-After header, parsed by RetryAfter), so runBatched's
// retry honors that instead of always falling back to the fixed backoff.
type RateLimitedError struct {
	Delay time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }
func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// RetryAfter parses a Retry-After header (seconds form) into a duration,
// falling back to the fixed backoff when absent or unparsable.
func RetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return rateLimitBackoff
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return rateLimitBackoff
	}
	return time.Duration(secs) * time.Second
}

// parseRemaining reads a tracker's remaining rate-limit budget off a raw
// X-RateLimit-Remaining response header, for adapters that don't otherwise
// expose a parsed counter the way go-github's Response.Rate does.
func parseRemaining(h http.Header) (int, bool) {
	v := h.Get("X-RateLimit-Remaining")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// runBatched runs writeFn once per item, pacing at MaxConcurrent in flight and
// pausing BatchDelay after every full batch. A rate-limited item is retried
// once after sleeping the tracker's requested delay; a second failure is
// logged by the caller and the item is skipped, never aborting the batch.
func runBatched(ctx context.Context, n int, writeFn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	for start := 0; start < n; start += MaxConcurrent {
		end := start + MaxConcurrent
		if end > n {
			end = n
		}

		done := make(chan struct{}, end-start)
		for i := start; i < end; i++ {
			i := i
			go func() {
				defer func() { done <- struct{}{} }()
				err := writeFn(ctx, i)
				if errors.Is(err, ErrRateLimited) {
					delay := rateLimitBackoff
					var rle *RateLimitedError
					if errors.As(err, &rle) {
						delay = rle.Delay
					}
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						errs[i] = ctx.Err()
						return
					}
					err = writeFn(ctx, i)
				}
				errs[i] = err
			}()
		}
		for i := start; i < end; i++ {
			<-done
		}

		if end < n {
			select {
			case <-time.After(BatchDelay):
			case <-ctx.Done():
				return errs
			}
		}
	}
	return errs
}
