package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
)

// CredentialRepository stores the credential of one application client id. It implements [auth.Persister].
type CredentialRepository struct {
	db       *sql.DB
	clientID string
	now      func() time.Time
}

// NewCredentialRepository creates a new [CredentialRepository] for clientID with the given database connection
func NewCredentialRepository(db *sql.DB, clientID string) *CredentialRepository {
	return &CredentialRepository{db: db, clientID: clientID, now: time.Now}
}

// ClientID returns the key rows are stored under.
func (r *CredentialRepository) ClientID() string {
	return r.clientID
}

// Load retrieves the stored credential, or [shared.ErrCredentialNotFound].
func (r *CredentialRepository) Load(ctx context.Context) (auth.Credential, error) {
	query := `
		SELECT access_token, refresh_token, expires_at, scopes
		FROM credentials
		WHERE client_id = ?
	`

	var (
		accessToken  string
		refreshToken sql.NullString
		expiresAt    time.Time
		scopes       string
	)

	err := r.db.QueryRowContext(ctx, query, r.clientID).Scan(&accessToken, &refreshToken, &expiresAt, &scopes)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Credential{}, shared.ErrCredentialNotFound
	}
	if err != nil {
		return auth.Credential{}, fmt.Errorf("failed to query credential: %w", err)
	}

	cred := auth.Credential{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt.UTC(),
		Scopes:      auth.ParseScopes(scopes),
	}
	if refreshToken.Valid {
		cred.RefreshToken = &refreshToken.String
	}
	return cred, nil
}

// Save inserts or replaces the credential for the client id.
func (r *CredentialRepository) Save(ctx context.Context, c auth.Credential) error {
	if !c.HasAccessToken() {
		return fmt.Errorf("%w: credential has no access token", shared.ErrInvalidInput)
	}

	var refreshToken sql.NullString
	if c.RefreshToken != nil {
		refreshToken = sql.NullString{String: *c.RefreshToken, Valid: true}
	}
	now := r.now().UTC()

	query := `
		INSERT INTO credentials (id, client_id, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		shared.GenerateID(), r.clientID, c.AccessToken, refreshToken, c.ExpiresAt.UTC(), c.Scopes.String(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete removes the stored credential. Deleting a missing credential is not an error.
func (r *CredentialRepository) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE client_id = ?`, r.clientID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// UpdatedAt reports when the credential was last written.
func (r *CredentialRepository) UpdatedAt(ctx context.Context) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM credentials WHERE client_id = ?`, r.clientID).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, shared.ErrCredentialNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query credential: %w", err)
	}
	return updatedAt.UTC(), nil
}

var _ auth.Persister = (*CredentialRepository)(nil)
