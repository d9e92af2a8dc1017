// Package api implements the authorized request pipeline for the Spotify Web API.
//
// # Pipeline
//
// Every call made through a [Client] runs the same chain on the caller's goroutine:
//
//	EnsureAuthorized -> Executor.Send -> classify -> retry or return
//
// The [auth.Authorizer] yields a usable access token for the request's required scopes, refreshing it when it
// is about to expire. The [Executor] builds the HTTP request from a [RequestDescriptor] and classifies the
// response into an [Outcome]. The [RetryPolicy] retries rate-limited (429) and transient (5xx, transport)
// failures at most [DefaultMaxRetries] times, honoring Retry-After.
//
// # Errors
//
// Failures surface as typed errors:
//   - [RateLimitedError] : 429 after all retries
//   - [TransientServerError] : 500/502/503/504 after all retries
//   - [TransportError] : connection or body read failure after all retries
//   - [RequestRejectedError] : any other non-2xx or an error envelope
//   - [PlaybackRejectedError] : an error envelope carrying a playback reason
//
// Authorization failures come from the auth package ([auth.ErrUnauthorized], [auth.InsufficientScopeError]).
//
// # Pagination
//
// [Pages] and [CursorPages] return range-over-func iterators that follow "next" links lazily, one request per
// page the consumer asks for.
//
// # Scoped Operations
//
// Playback control and library writes live on [ScopedClient] and [Player], which can only be built from an
// authorizer that reports its granted scopes ([auth.ScopeAuthorizer]).
package api
