package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
	"golang.org/x/time/rate"
)

// ClientOpts configures a [Client].
type ClientOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Retry      RetryPolicy
	Logger     *log.Logger
}

// Client runs requests through the authorized pipeline.
type Client struct {
	authorizer auth.Authorizer
	executor   *Executor
	retry      RetryPolicy
	logger     *log.Logger
}

// NewClient creates a [Client] that obtains tokens from authorizer.
func NewClient(authorizer auth.Authorizer, opts ClientOpts) *Client {
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = opts.Logger
	}
	return &Client{
		authorizer: authorizer,
		executor: NewExecutor(ExecutorOpts{
			BaseURL:    opts.BaseURL,
			HTTPClient: opts.HTTPClient,
			Limiter:    opts.Limiter,
			Logger:     opts.Logger,
		}),
		retry:  opts.Retry,
		logger: shared.WithLogger(opts.Logger, "component", "api"),
	}
}

// Authorizer returns the authorizer the client was built with.
func (c *Client) Authorizer() auth.Authorizer {
	return c.authorizer
}

// Do runs d through the pipeline and returns the raw response body. Each attempt re-checks authorization, so a
// long backoff that crosses the token's expiry triggers a refresh before the next send.
func (c *Client) Do(ctx context.Context, d RequestDescriptor) ([]byte, error) {
	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = shared.GenerateID()
		ctx = WithRequestID(ctx, requestID)
	}

	out, err := c.retry.Do(ctx, d, func(ctx context.Context, n int) Outcome {
		cred, err := c.authorizer.EnsureAuthorized(ctx, d.Scopes)
		if err != nil {
			return fatal(0, err)
		}
		c.logger.Debug("attempt", "request_id", requestID, "method", d.Method, "path", d.Path, "n", n)
		return c.executor.Send(ctx, d, cred.AccessToken)
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// DoJSON runs d and decodes the response into a T. An empty body yields the zero value.
func DoJSON[T any](ctx context.Context, c *Client, d RequestDescriptor) (T, error) {
	var v T
	body, err := c.Do(ctx, d)
	if err != nil {
		return v, err
	}
	if len(body) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("%w: failed to decode %s: %w", shared.ErrAPIRequest, d.Path, err)
	}
	return v, nil
}

type requestIDKey struct{}

// WithRequestID tags ctx with the id logged and reported for the request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by [WithRequestID], or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
