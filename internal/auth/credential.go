package auth

import (
	"encoding/json"
	"fmt"
	"time"
)

// Credential is an access token together with its refresh token, expiry and granted scopes.
//
// Values are replaced as a whole, never mutated in place, so a reader can never pair a new access token with an
// old expiry.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken *string   `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       Scopes    `json:"scopes"`
}

// NewCredential converts the relative expires_in of a token response into an absolute expiry at receipt time.
func NewCredential(accessToken, refreshToken string, expiresIn time.Duration, scopes Scopes, now time.Time) Credential {
	c := Credential{
		AccessToken: accessToken,
		ExpiresAt:   now.Add(expiresIn),
		Scopes:      scopes,
	}
	if refreshToken != "" {
		c.RefreshToken = &refreshToken
	}
	return c
}

// HasAccessToken reports whether a token has ever been obtained.
func (c Credential) HasAccessToken() bool {
	return c.AccessToken != ""
}

// HasRefreshToken reports whether the credential can be refreshed.
func (c Credential) HasRefreshToken() bool {
	return c.RefreshToken != nil && *c.RefreshToken != ""
}

// IsExpired reports whether now has reached expiresAt minus tolerance.
func (c Credential) IsExpired(now time.Time, tolerance time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-tolerance))
}

// Merge fills what a refresh response may leave out from the credential it replaces:
// the refresh token and the granted scopes.
func (c Credential) Merge(previous Credential) Credential {
	if !c.HasRefreshToken() && previous.HasRefreshToken() {
		token := *previous.RefreshToken
		c.RefreshToken = &token
	}
	if len(c.Scopes) == 0 {
		c.Scopes = previous.Scopes
	}
	return c
}

// Equal compares credentials by value, using [time.Time.Equal] for the expiry.
func (c Credential) Equal(other Credential) bool {
	if c.AccessToken != other.AccessToken || !c.ExpiresAt.Equal(other.ExpiresAt) {
		return false
	}
	if (c.RefreshToken == nil) != (other.RefreshToken == nil) {
		return false
	}
	if c.RefreshToken != nil && *c.RefreshToken != *other.RefreshToken {
		return false
	}
	return c.Scopes.String() == other.Scopes.String()
}

// String redacts the tokens.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{access=%s refresh=%t expires=%s scopes=%q}",
		redact(c.AccessToken), c.HasRefreshToken(), c.ExpiresAt.Format(time.RFC3339), c.Scopes.String())
}

// MarshalCredential encodes c in the persisted format. A missing refresh token is written as an explicit null.
func MarshalCredential(c Credential) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}
	return data, nil
}

// UnmarshalCredential decodes the persisted format written by [MarshalCredential].
func UnmarshalCredential(data []byte) (Credential, error) {
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, fmt.Errorf("failed to decode credential: %w", err)
	}
	if c.AccessToken != "" && c.ExpiresAt.IsZero() {
		return Credential{}, fmt.Errorf("failed to decode credential: access token without expires_at")
	}
	c.Scopes = NewScopes(c.Scopes...)
	return c, nil
}

func redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "***"
}
