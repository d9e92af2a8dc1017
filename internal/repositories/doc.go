// Package repositories implements SQLite persistence for credentials and request diagnostics.
//
// Key Implementations:
//   - [CredentialRepository] : one credential per client id; satisfies [auth.Persister]
//   - [RateLimitEventRepository] : 429 diagnostics reported by the request pipeline
//
// Tables are created by [shared.RunMigrations]. Rows use UUID primary keys and UTC timestamps.
package repositories
