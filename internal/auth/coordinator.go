package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTolerance is how long before expiry a credential is refreshed proactively.
	DefaultTolerance = 60 * time.Second
	// DefaultRefreshTimeout bounds a single token exchange.
	DefaultRefreshTimeout = 30 * time.Second
)

var (
	// ErrUnauthorized is returned when no credential has ever been obtained.
	ErrUnauthorized = shared.ErrNotAuthenticated
	// ErrNoRefreshToken is returned when a stale credential cannot be refreshed.
	ErrNoRefreshToken = shared.ErrNoRefreshToken
)

// InsufficientScopeError reports a credential that lacks scopes an operation requires.
type InsufficientScopeError struct {
	Required Scopes
	Granted  Scopes
}

func (e *InsufficientScopeError) Error() string {
	return fmt.Sprintf("insufficient scope: missing %q (granted %q)", e.Required.Missing(e.Granted).String(), e.Granted.String())
}

func (e *InsufficientScopeError) Unwrap() error {
	return shared.ErrMissingScope
}

// Authorizer yields a credential usable for the required scopes.
type Authorizer interface {
	EnsureAuthorized(ctx context.Context, required Scopes) (Credential, error)
}

// ScopeAuthorizer is an [Authorizer] that tracks which scopes were granted. Scope-gated operations are only
// offered on top of one.
type ScopeAuthorizer interface {
	Authorizer
	GrantedScopes() Scopes
}

// CoordinatorOpts configures a [Coordinator].
type CoordinatorOpts struct {
	Store     *Store
	Exchanger Exchanger
	Tolerance time.Duration // defaults to [DefaultTolerance]
	// RefreshTimeout defaults to [DefaultRefreshTimeout].
	RefreshTimeout time.Duration
	Now            func() time.Time
	Logger         *log.Logger
}

// Coordinator decides whether the stored credential is usable and refreshes it when it is not.
type Coordinator struct {
	store          *Store
	exchanger      Exchanger
	tolerance      time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	logger         *log.Logger

	flights singleflight.Group
	mu      sync.Mutex
	active  map[string]*flight
}

// flight is the context of one in-progress exchange and the number of callers waiting on it.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewCoordinator creates a [Coordinator]. A nil store gets an empty one.
func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		store:          opts.Store,
		exchanger:      opts.Exchanger,
		tolerance:      opts.Tolerance,
		refreshTimeout: opts.RefreshTimeout,
		now:            opts.Now,
		logger:         shared.WithLogger(opts.Logger, "component", "auth"),
		active:         make(map[string]*flight),
	}
}

// Store returns the credential store the coordinator manages.
func (c *Coordinator) Store() *Store {
	return c.store
}

// GrantedScopes returns the scopes of the current credential.
func (c *Coordinator) GrantedScopes() Scopes {
	cred, _ := c.store.Current()
	return cred.Scopes
}

// Deauthorize discards the stored credential.
func (c *Coordinator) Deauthorize() {
	c.store.Clear()
	c.logger.Info("credential cleared")
}

// EnsureAuthorized is [Coordinator.EnsureAuthorizedWithin] with the configured tolerance.
func (c *Coordinator) EnsureAuthorized(ctx context.Context, required Scopes) (Credential, error) {
	return c.EnsureAuthorizedWithin(ctx, required, c.tolerance)
}

// EnsureAuthorizedWithin returns a credential that stays valid for at least tolerance and grants required.
func (c *Coordinator) EnsureAuthorizedWithin(ctx context.Context, required Scopes, tolerance time.Duration) (Credential, error) {
	cred, ok := c.store.Current()
	if !ok || !cred.HasAccessToken() {
		return Credential{}, ErrUnauthorized
	}

	if cred.IsExpired(c.now(), tolerance) {
		refreshed, err := c.refresh(ctx, cred, tolerance)
		if err != nil {
			return Credential{}, err
		}
		cred = refreshed
	}

	if !required.IsSubsetOf(cred.Scopes) {
		return Credential{}, &InsufficientScopeError{Required: required, Granted: cred.Scopes}
	}
	return cred, nil
}

// ForceRefresh refreshes the credential regardless of its expiry.
func (c *Coordinator) ForceRefresh(ctx context.Context) (Credential, error) {
	cred, ok := c.store.Current()
	if !ok || !cred.HasAccessToken() {
		return Credential{}, ErrUnauthorized
	}
	return c.refresh(ctx, cred, -1)
}

// refresh runs at most one exchange per refresh token at a time. The exchange is bounded by the refresh
// timeout and is cancelled once every caller waiting on it has returned, so a later caller never joins
// an abandoned exchange.
func (c *Coordinator) refresh(ctx context.Context, stale Credential, tolerance time.Duration) (Credential, error) {
	if c.exchanger == nil {
		return Credential{}, fmt.Errorf("%w: no token exchanger configured", shared.ErrRefreshFailed)
	}

	key := "reauthorize"
	if stale.HasRefreshToken() {
		key = "refresh:" + *stale.RefreshToken
	} else if _, ok := c.exchanger.(Reauthorizer); !ok {
		return Credential{}, ErrNoRefreshToken
	}

	f := c.join(ctx, key)
	defer c.leave(key, f)

	ch := c.flights.DoChan(key, func() (any, error) {
		// A flight that finished just before this one may already have replaced the credential.
		if current, ok := c.store.Current(); ok && current.AccessToken != stale.AccessToken &&
			tolerance >= 0 && !current.IsExpired(c.now(), tolerance) {
			return current, nil
		}
		return c.exchange(f.ctx, stale)
	})

	select {
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

// join registers a waiter on the flight for key, creating the flight's context if there is none.
func (c *Coordinator) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.active[key]
	if !ok {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		f = &flight{ctx: fctx, cancel: cancel}
		c.active[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. The last one out cancels the exchange and frees the key for a new flight.
func (c *Coordinator) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.active[key] == f {
		delete(c.active, key)
		c.flights.Forget(key)
	}
}

func (c *Coordinator) exchange(ctx context.Context, stale Credential) (Credential, error) {
	var (
		fresh Credential
		err   error
	)
	if stale.HasRefreshToken() {
		fresh, err = c.exchanger.Refresh(ctx, *stale.RefreshToken)
	} else {
		fresh, err = c.exchanger.(Reauthorizer).Reauthorize(ctx)
	}
	if err != nil {
		c.logger.Error("credential refresh failed", "err", err)
		return Credential{}, err
	}
	if !fresh.HasAccessToken() {
		return Credential{}, fmt.Errorf("%w: empty access token", shared.ErrRefreshFailed)
	}

	merged := fresh.Merge(stale)
	c.store.Replace(merged)
	c.logger.Info("credential refreshed", "expires_at", merged.ExpiresAt.Format(time.RFC3339), "scopes", merged.Scopes.String())
	return merged, nil
}

// StaticAuthorizer serves a fixed bearer token. It cannot report granted scopes, so it only satisfies
// [Authorizer], never [ScopeAuthorizer].
type StaticAuthorizer struct {
	Token string
}

// EnsureAuthorized returns the fixed token; required scopes are not checked.
func (s StaticAuthorizer) EnsureAuthorized(context.Context, Scopes) (Credential, error) {
	if s.Token == "" {
		return Credential{}, ErrUnauthorized
	}
	return Credential{AccessToken: s.Token}, nil
}

var (
	_ ScopeAuthorizer = (*Coordinator)(nil)
	_ Authorizer      = StaticAuthorizer{}
	_ Reauthorizer    = (*ClientCredentialsExchanger)(nil)
	_ Exchanger       = (*OAuthExchanger)(nil)
)
