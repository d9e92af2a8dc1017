package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Web API origin.
const DefaultBaseURL = "https://api.spotify.com/v1"

// OutcomeKind classifies a single attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the classified result of one attempt. Err is set for both failure kinds.
type Outcome struct {
	Kind          OutcomeKind
	Status        int
	Body          []byte
	Err           error
	RetryAfter    time.Duration
	HasRetryAfter bool
}

func success(status int, body []byte) Outcome {
	return Outcome{Kind: OutcomeSuccess, Status: status, Body: body}
}

func retryable(status int, err error) Outcome {
	return Outcome{Kind: OutcomeRetryable, Status: status, Err: err}
}

func fatal(status int, err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Status: status, Err: err}
}

// ExecutorOpts configures an [Executor].
type ExecutorOpts struct {
	BaseURL    string       // defaults to [DefaultBaseURL]
	HTTPClient *http.Client // defaults to [http.DefaultClient]
	Limiter    *rate.Limiter
	Logger     *log.Logger
}

// Executor sends one attempt of a request and classifies the response.
type Executor struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewExecutor creates an [Executor].
func NewExecutor(opts ExecutorOpts) *Executor {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Executor{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		logger:     shared.WithLogger(opts.Logger, "component", "executor"),
	}
}

// BaseURL returns the API origin requests are resolved against.
func (e *Executor) BaseURL() string {
	return e.baseURL
}

// NewLimiter paces requests at rps with a burst of at least one. A non-positive rps disables pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Send performs a single attempt of d with accessToken.
//
// Classification, in order: an error envelope in the body (following its own status, so a 429 or 5xx envelope
// stays retryable), 2xx success, 429 with its Retry-After hint, 500/502/503/504, then any other status as a
// rejection. Transport failures are retryable; cancellation of ctx is fatal.
func (e *Executor) Send(ctx context.Context, d RequestDescriptor, accessToken string) Outcome {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fatal(0, canceled(ctx, err))
		}
	}

	target, err := d.URL(e.baseURL)
	if err != nil {
		return fatal(0, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err))
	}

	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}
	req, err := http.NewRequestWithContext(ctx, d.Method, target, body)
	if err != nil {
		return fatal(0, fmt.Errorf("failed to create request: %w", err))
	}

	headers := d.Headers
	if headers == nil {
		headers = BearerHeaders
	}
	for key, values := range headers(accessToken) {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if d.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	e.logger.Debug("sending request", "method", d.Method, "url", target)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fatal(0, canceled(ctx, err))
		}
		return retryable(0, &TransportError{Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return fatal(resp.StatusCode, canceled(ctx, err))
		}
		return retryable(resp.StatusCode, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)})
	}

	return classify(resp.StatusCode, resp.Header, data)
}

func classify(status int, header http.Header, body []byte) Outcome {
	if envStatus, message, reason, ok := decodeEnvelope(body); ok {
		if envStatus == 0 {
			envStatus = status
		}
		switch {
		case envStatus == http.StatusTooManyRequests:
			return rateLimited(envStatus, header, message)
		case isTransientStatus(envStatus):
			return retryable(envStatus, &TransientServerError{Status: envStatus, Message: message})
		case reason != "":
			return fatal(envStatus, &PlaybackRejectedError{
				RequestRejectedError: RequestRejectedError{Status: envStatus, Message: message},
				Reason:               reason,
			})
		default:
			return fatal(envStatus, &RequestRejectedError{Status: envStatus, Message: message})
		}
	}

	switch {
	case status >= 200 && status < 300:
		return success(status, body)
	case status == http.StatusTooManyRequests:
		return rateLimited(status, header, "")
	case isTransientStatus(status):
		return retryable(status, &TransientServerError{Status: status})
	default:
		return fatal(status, &RequestRejectedError{Status: status, Message: http.StatusText(status)})
	}
}

func rateLimited(status int, header http.Header, message string) Outcome {
	hint, ok := parseRetryAfter(header)
	out := retryable(status, &RateLimitedError{RetryAfter: hint, Message: message})
	out.RetryAfter = hint
	out.HasRetryAfter = ok
	return out
}

// canceled reports ctx's error, keeping err for context when it differs.
func canceled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("request canceled: %w", ctxErr)
	}
	return err
}
