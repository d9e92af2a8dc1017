// Package auth keeps a Spotify access credential valid across an unbounded sequence of API calls.
//
// # Credential Store
//
// [Store] is the single piece of state shared by concurrent requests. Every [Store.Replace] and
// [Store.Clear] pushes exactly one [Event] to each subscriber, in write order, without blocking the writer.
//
// # Authorization
//
// [Coordinator.EnsureAuthorized] returns a usable credential for a required [Scopes] set:
//   - no credential at all fails with [ErrUnauthorized] before anything else is checked
//   - a credential outside the refresh tolerance is returned without any network activity
//   - a stale credential is refreshed through an [Exchanger]; the previous refresh token is kept when the
//     accounts service does not send a new one
//   - the granted scopes must cover the required ones, otherwise [InsufficientScopeError]
//
// Concurrent callers that observe the same stale credential share one refresh (single-flight keyed on the
// refresh token).
//
// # Persistence
//
// [Persist] mirrors store events into a [Persister]. [FilePersister] writes JSON to disk; the repositories
// package provides a SQLite-backed implementation.
package auth
