package api

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/shared"
)

const (
	// DefaultMaxRetries bounds the retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the wait before a retry when the response gave no Retry-After hint.
	DefaultRetryDelay = time.Second
)

// RateLimitEvent describes one 429 response.
type RateLimitEvent struct {
	RequestID     string
	Method        string
	Path          string
	Attempt       int
	RetryAfter    time.Duration
	HasRetryAfter bool
	OccurredAt    time.Time
}

// RetryPolicy retries rate-limited and transient failures with a fixed bound. The zero value uses the defaults.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt; nil means [DefaultMaxRetries] and
	// zero disables retrying.
	MaxRetries   *int
	DefaultDelay time.Duration
	// OnRateLimited is called once for every 429 response, including ones later recovered by a retry.
	OnRateLimited func(RateLimitEvent)
	Logger        *log.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// AttemptFunc performs attempt n (1-based) of a request.
type AttemptFunc func(ctx context.Context, n int) Outcome

// Do runs attempt until it succeeds, fails fatally or runs out of retries. On failure it returns the last
// attempt's error unchanged.
func (p RetryPolicy) Do(ctx context.Context, d RequestDescriptor, attempt AttemptFunc) (Outcome, error) {
	maxRetries := DefaultMaxRetries
	if p.MaxRetries != nil {
		maxRetries = max(*p.MaxRetries, 0)
	}
	logger := shared.WithLogger(p.Logger, "component", "retry")
	requestID := RequestID(ctx)

	var last Outcome
	for n := 1; n <= maxRetries+1; n++ {
		last = attempt(ctx, n)
		switch last.Kind {
		case OutcomeSuccess:
			return last, nil
		case OutcomeFatal:
			return last, last.Err
		}

		if _, ok := last.Err.(*RateLimitedError); ok && p.OnRateLimited != nil {
			p.OnRateLimited(RateLimitEvent{
				RequestID:     requestID,
				Method:        d.Method,
				Path:          d.Path,
				Attempt:       n,
				RetryAfter:    last.RetryAfter,
				HasRetryAfter: last.HasRetryAfter,
				OccurredAt:    time.Now(),
			})
		}

		if n > maxRetries {
			break
		}

		delay := p.delay(last)
		logger.Warn("retrying request", "request_id", requestID, "path", d.Path, "attempt", n, "delay", delay, "err", last.Err)
		if err := p.wait(ctx, delay); err != nil {
			return fatal(0, err), err
		}
	}

	logger.Warn("retries exhausted", "request_id", requestID, "path", d.Path, "attempts", maxRetries+1, "err", last.Err)
	return last, last.Err
}

func (p RetryPolicy) delay(o Outcome) time.Duration {
	if o.HasRetryAfter {
		return o.RetryAfter
	}
	if p.DefaultDelay > 0 {
		return p.DefaultDelay
	}
	return DefaultRetryDelay
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	return sleep(ctx, d)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return canceled(ctx, ctx.Err())
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return canceled(ctx, ctx.Err())
	case <-timer.C:
		return nil
	}
}
