package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/spotkit/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultAccountsURL = "https://accounts.spotify.com"
	authorizePath      = "/authorize"
	tokenPath          = "/api/token"
)

// Exchanger trades a refresh token for a new credential at the accounts service.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (Credential, error)
}

// Reauthorizer is implemented by exchangers that can mint a credential without a refresh token,
// such as the client-credentials grant.
type Reauthorizer interface {
	Reauthorize(ctx context.Context) (Credential, error)
}

// ExchangerOpts configures the OAuth2 exchangers.
type ExchangerOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       Scopes
	AccountsURL  string       // defaults to [DefaultAccountsURL]
	HTTPClient   *http.Client // defaults to [http.DefaultClient]
	Now          func() time.Time
}

func (o ExchangerOpts) validate() error {
	if o.ClientID == "" {
		return fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if o.ClientSecret == "" {
		return fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	return nil
}

func (o ExchangerOpts) endpoint() oauth2.Endpoint {
	base := strings.TrimRight(o.AccountsURL, "/")
	if base == "" {
		base = DefaultAccountsURL
	}
	return oauth2.Endpoint{
		AuthURL:   base + authorizePath,
		TokenURL:  base + tokenPath,
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// OAuthExchanger implements the authorization-code grant and refresh exchange with [oauth2].
type OAuthExchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuthExchanger validates opts and builds the [oauth2.Config] for the accounts service.
func NewOAuthExchanger(opts ExchangerOpts) (*OAuthExchanger, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.RedirectURI == "" {
		opts.RedirectURI = "http://127.0.0.1:3000/callback"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &OAuthExchanger{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       opts.Scopes,
			Endpoint:     opts.endpoint(),
		},
		httpClient: opts.HTTPClient,
		now:        opts.Now,
	}, nil
}

// ClientID returns the application client id, used as the persistence key.
func (e *OAuthExchanger) ClientID() string {
	return e.config.ClientID
}

// AuthCodeURL returns the URL the user visits to grant access. state guards the callback against CSRF.
func (e *OAuthExchanger) AuthCodeURL(state string, showDialog bool) string {
	if showDialog {
		return e.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return e.config.AuthCodeURL(state)
}

// Config exposes the underlying [oauth2.Config] for the callback handler.
func (e *OAuthExchanger) Config() *oauth2.Config {
	return e.config
}

// Exchange trades an authorization code for the initial credential.
func (e *OAuthExchanger) Exchange(ctx context.Context, code string) (Credential, error) {
	token, err := e.config.Exchange(e.withClient(ctx), code)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: code exchange: %w", shared.ErrAuthFailed, err)
	}
	return FromToken(token, e.config.Scopes, e.now()), nil
}

// Refresh exchanges refreshToken for a new credential. The returned value carries no refresh token when the
// accounts service omitted one; [Credential.Merge] restores the previous token.
func (e *OAuthExchanger) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	if refreshToken == "" {
		return Credential{}, shared.ErrNoRefreshToken
	}
	source := e.config.TokenSource(e.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	// x/oauth2 copies the old refresh token onto responses that omit one; report it as omitted so the
	// caller decides what to keep.
	if token.RefreshToken == refreshToken {
		token.RefreshToken = ""
	}
	return FromToken(token, nil, e.now()), nil
}

func (e *OAuthExchanger) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// ClientCredentialsExchanger implements the app-only client-credentials grant. Credentials it issues carry no
// refresh token, so the coordinator re-authorizes instead of refreshing.
type ClientCredentialsExchanger struct {
	config     *clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time
}

// NewClientCredentialsExchanger validates opts and builds the [clientcredentials.Config].
func NewClientCredentialsExchanger(opts ExchangerOpts) (*ClientCredentialsExchanger, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	endpoint := opts.endpoint()
	return &ClientCredentialsExchanger{
		config: &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     endpoint.TokenURL,
			Scopes:       opts.Scopes,
			AuthStyle:    endpoint.AuthStyle,
		},
		httpClient: opts.HTTPClient,
		now:        opts.Now,
	}, nil
}

// Reauthorize requests a fresh app-only credential.
func (e *ClientCredentialsExchanger) Reauthorize(ctx context.Context) (Credential, error) {
	token, err := e.config.Token(context.WithValue(ctx, oauth2.HTTPClient, e.httpClient))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: client credentials: %w", shared.ErrAuthFailed, err)
	}
	return FromToken(token, e.config.Scopes, e.now()), nil
}

// Refresh is never used by the client-credentials grant; tokens are re-issued through [Reauthorize].
func (e *ClientCredentialsExchanger) Refresh(ctx context.Context, _ string) (Credential, error) {
	return Credential{}, shared.ErrNoRefreshToken
}

// FromToken converts an [oauth2.Token] into a [Credential]. The granted scopes come from the token response's
// "scope" field; requested is used when the response omits it.
func FromToken(token *oauth2.Token, requested Scopes, now time.Time) Credential {
	c := Credential{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
		Scopes:      requested,
	}
	if token.RefreshToken != "" {
		refresh := token.RefreshToken
		c.RefreshToken = &refresh
	}
	if raw, ok := token.Extra("scope").(string); ok && strings.TrimSpace(raw) != "" {
		c.Scopes = ParseScopes(raw)
	}
	if c.ExpiresAt.IsZero() {
		// No expires_in in the response: assume the standard one-hour lifetime.
		c.ExpiresAt = now.Add(time.Hour)
	}
	return c
}
