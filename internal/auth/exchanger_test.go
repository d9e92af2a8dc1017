package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotkit/internal/shared"
	"golang.org/x/oauth2"
)

// tokenServer fakes the accounts service token endpoint and records the last form it received.
type tokenServer struct {
	*httptest.Server
	mu       sync.Mutex
	form     url.Values
	user     string
	pass     string
	status   int
	response map[string]any
}

func newTokenServer(t *testing.T, response map[string]any) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK, response: response}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokenPath {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()

		ts.mu.Lock()
		ts.form = r.PostForm
		ts.user, ts.pass, _ = r.BasicAuth()
		status, body := ts.status, ts.response
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) lastForm() url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.form
}

func testExchangerOpts(accountsURL string, now time.Time) ExchangerOpts {
	return ExchangerOpts{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://127.0.0.1:3000/callback",
		Scopes:       NewScopes(ScopeUserReadPrivate, ScopePlaylistReadPrivate),
		AccountsURL:  accountsURL,
		Now:          func() time.Time { return now },
	}
}

func TestNewOAuthExchanger(t *testing.T) {
	tests := []struct {
		name    string
		opts    ExchangerOpts
		wantErr bool
	}{
		{name: "valid", opts: ExchangerOpts{ClientID: "id", ClientSecret: "secret"}},
		{name: "missing client id", opts: ExchangerOpts{ClientSecret: "secret"}, wantErr: true},
		{name: "missing client secret", opts: ExchangerOpts{ClientID: "id"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := NewOAuthExchanger(tt.opts)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrMissingCredentials) {
					t.Errorf("expected ErrMissingCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewOAuthExchanger() error = %v", err)
			}
			if ex.Config().Endpoint.TokenURL != DefaultAccountsURL+tokenPath {
				t.Errorf("unexpected token url %s", ex.Config().Endpoint.TokenURL)
			}
			if ex.Config().Endpoint.AuthStyle != oauth2.AuthStyleInHeader {
				t.Error("expected credentials in the Authorization header")
			}
		})
	}
}

func TestOAuthExchangerAuthCodeURL(t *testing.T) {
	ex, err := NewOAuthExchanger(testExchangerOpts("https://accounts.example.com/", time.Now()))
	if err != nil {
		t.Fatalf("NewOAuthExchanger() error = %v", err)
	}

	raw := ex.AuthCodeURL("state-123", true)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url %q: %v", raw, err)
	}
	if u.Host != "accounts.example.com" || u.Path != authorizePath {
		t.Errorf("unexpected authorize url %s", raw)
	}

	q := u.Query()
	checks := map[string]string{
		"client_id":     "client",
		"response_type": "code",
		"state":         "state-123",
		"redirect_uri":  "http://127.0.0.1:3000/callback",
		"scope":         "playlist-read-private user-read-private",
		"show_dialog":   "true",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	if strings.Contains(ex.AuthCodeURL("s", false), "show_dialog") {
		t.Error("show_dialog should be omitted when false")
	}
}

func TestOAuthExchangerRefresh(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	t.Run("rotated refresh token and granted scopes", func(t *testing.T) {
		ts := newTokenServer(t, map[string]any{
			"access_token":  "A2",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "R2",
			"scope":         "user-read-private user-read-email",
		})
		ex, _ := NewOAuthExchanger(testExchangerOpts(ts.URL, now))

		got, err := ex.Refresh(context.Background(), "R1")
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if got.AccessToken != "A2" || got.RefreshToken == nil || *got.RefreshToken != "R2" {
			t.Errorf("unexpected credential %+v", got)
		}
		if got.Scopes.String() != "user-read-email user-read-private" {
			t.Errorf("unexpected scopes %q", got.Scopes)
		}
		if got.ExpiresAt.IsZero() {
			t.Error("expected an expiry")
		}

		form := ts.lastForm()
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "R1" {
			t.Errorf("unexpected form %v", form)
		}
		if ts.user != "client" || ts.pass != "secret" {
			t.Errorf("expected basic auth client:secret, got %s:%s", ts.user, ts.pass)
		}
	})

	t.Run("omitted refresh token is reported as absent", func(t *testing.T) {
		ts := newTokenServer(t, map[string]any{
			"access_token": "A2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
		ex, _ := NewOAuthExchanger(testExchangerOpts(ts.URL, now))

		got, err := ex.Refresh(context.Background(), "R1")
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if got.RefreshToken != nil {
			t.Errorf("expected no refresh token, got %q", *got.RefreshToken)
		}
		if len(got.Scopes) != 0 {
			t.Errorf("expected no scopes, got %q", got.Scopes)
		}

		merged := got.Merge(Credential{RefreshToken: ptr("R1"), Scopes: NewScopes(ScopeUserReadPrivate)})
		if *merged.RefreshToken != "R1" || merged.Scopes.String() != ScopeUserReadPrivate {
			t.Errorf("unexpected merge %+v", merged)
		}
	})

	t.Run("rejected refresh", func(t *testing.T) {
		ts := newTokenServer(t, map[string]any{"error": "invalid_grant", "error_description": "Refresh token revoked"})
		ts.status = http.StatusBadRequest
		ex, _ := NewOAuthExchanger(testExchangerOpts(ts.URL, now))

		_, err := ex.Refresh(context.Background(), "R1")
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}
		var retrieveErr *oauth2.RetrieveError
		if !errors.As(err, &retrieveErr) || retrieveErr.ErrorCode != "invalid_grant" {
			t.Errorf("expected invalid_grant RetrieveError, got %v", err)
		}
	})

	t.Run("empty refresh token", func(t *testing.T) {
		ex, _ := NewOAuthExchanger(testExchangerOpts("http://unused.invalid", now))
		if _, err := ex.Refresh(context.Background(), ""); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestOAuthExchangerExchange(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	ts := newTokenServer(t, map[string]any{
		"access_token":  "A1",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "R1",
	})
	ex, _ := NewOAuthExchanger(testExchangerOpts(ts.URL, now))

	got, err := ex.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if got.AccessToken != "A1" || *got.RefreshToken != "R1" {
		t.Errorf("unexpected credential %+v", got)
	}
	if got.Scopes.String() != "playlist-read-private user-read-private" {
		t.Errorf("expected requested scopes when the response omits scope, got %q", got.Scopes)
	}

	form := ts.lastForm()
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "the-code" {
		t.Errorf("unexpected form %v", form)
	}
	if form.Get("redirect_uri") != "http://127.0.0.1:3000/callback" {
		t.Errorf("unexpected redirect_uri %q", form.Get("redirect_uri"))
	}
}

func TestClientCredentialsExchanger(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	ts := newTokenServer(t, map[string]any{
		"access_token": "APP",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	ex, err := NewClientCredentialsExchanger(testExchangerOpts(ts.URL, now))
	if err != nil {
		t.Fatalf("NewClientCredentialsExchanger() error = %v", err)
	}

	got, err := ex.Reauthorize(context.Background())
	if err != nil {
		t.Fatalf("Reauthorize() error = %v", err)
	}
	if got.AccessToken != "APP" || got.HasRefreshToken() {
		t.Errorf("unexpected credential %+v", got)
	}
	if ts.lastForm().Get("grant_type") != "client_credentials" {
		t.Errorf("unexpected form %v", ts.lastForm())
	}

	if _, err := ex.Refresh(context.Background(), "R"); !errors.Is(err, shared.ErrNoRefreshToken) {
		t.Errorf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestFromToken(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	got := FromToken(&oauth2.Token{AccessToken: "A"}, NewScopes(ScopeUserReadEmail), now)
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expected one-hour default expiry, got %s", got.ExpiresAt)
	}
	if got.RefreshToken != nil {
		t.Error("expected nil refresh token")
	}
	if got.Scopes.String() != ScopeUserReadEmail {
		t.Errorf("expected requested scopes, got %q", got.Scopes)
	}

	expiry := now.Add(30 * time.Minute)
	token := (&oauth2.Token{AccessToken: "A", RefreshToken: "R", Expiry: expiry}).
		WithExtra(map[string]any{"scope": "user-follow-read"})
	got = FromToken(token, NewScopes(ScopeUserReadEmail), now)
	if !got.ExpiresAt.Equal(expiry) || *got.RefreshToken != "R" {
		t.Errorf("unexpected credential %+v", got)
	}
	if got.Scopes.String() != ScopeUserFollowRead {
		t.Errorf("expected granted scopes, got %q", got.Scopes)
	}
}
