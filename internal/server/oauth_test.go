package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
)

type fakeExchanger struct {
	code string
	err  error
}

func (f *fakeExchanger) Exchange(_ context.Context, code string) (auth.Credential, error) {
	f.code = code
	if f.err != nil {
		return auth.Credential{}, f.err
	}
	return auth.Credential{AccessToken: "access-" + code, Scopes: auth.NewScopes(auth.ScopeUserReadPrivate)}, nil
}

func callback(t *testing.T, h http.Handler, query string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?"+query, nil))
	return rec
}

func TestOAuthHandler(t *testing.T) {
	t.Run("successful exchange", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewOAuthHandler(ex, "s1", nil)

		rec := callback(t, h, "state=s1&code=abc")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "authorized") {
			t.Errorf("expected success page, got %q", rec.Body.String())
		}
		if ex.code != "abc" {
			t.Errorf("expected code abc, got %q", ex.code)
		}

		cred, err := WaitForCallback(context.Background(), h, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cred.AccessToken != "access-abc" {
			t.Errorf("unexpected credential: %+v", cred)
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewOAuthHandler(ex, "expected", nil)

		rec := callback(t, h, "state=forged&code=abc")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if ex.code != "" {
			t.Error("code must not be exchanged on state mismatch")
		}
		if _, err := WaitForCallback(context.Background(), h, time.Second); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("user denied access", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "s", nil)

		rec := callback(t, h, "state=s&error=access_denied")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		_, err := WaitForCallback(context.Background(), h, time.Second)
		if !errors.Is(err, shared.ErrAuthFailed) || !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("expected access_denied failure, got %v", err)
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{err: shared.ErrAuthFailed}, "s", nil)

		rec := callback(t, h, "state=s&code=abc")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if _, err := WaitForCallback(context.Background(), h, time.Second); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		ex := &fakeExchanger{}
		h := NewOAuthHandler(ex, "s", nil)

		callback(t, h, "state=s&code=first")
		rec := callback(t, h, "state=s&code=second")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replay, got %d", rec.Code)
		}
		if ex.code != "first" {
			t.Errorf("replayed code must not be exchanged, got %q", ex.code)
		}
	})
}

func TestWaitForCallback(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "s", nil)
		_, err := WaitForCallback(context.Background(), h, 10*time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
	})

	t.Run("consumed result", func(t *testing.T) {
		h := NewOAuthHandler(&fakeExchanger{}, "s", nil)
		h.Send(OAuthResult{Credential: auth.Credential{AccessToken: "t"}})
		if _, err := WaitForCallback(context.Background(), h, time.Second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := WaitForCallback(context.Background(), h, time.Second); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed on closed channel, got %v", err)
		}
	})
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty states, got %q and %q", a, b)
	}
}

func TestCallbackServer(t *testing.T) {
	ex := &fakeExchanger{}
	h := NewOAuthHandler(ex, "s", nil)
	router := NewBasicRouter()
	router.Use(Logging(nil), Recover(nil))
	router.Handler(h)

	srv := NewCallbackServer("127.0.0.1:0", router, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + CallbackPath + "?state=s&code=live")
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cred, err := WaitForCallback(context.Background(), h, time.Second)
	if err != nil || cred.AccessToken != "access-live" {
		t.Fatalf("unexpected result: %+v, %v", cred, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown should be a no-op, got %v", err)
	}

	t.Run("port in use", func(t *testing.T) {
		first := NewCallbackServer("127.0.0.1:0", router, nil)
		if err := first.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer first.Shutdown(context.Background())

		if err := NewCallbackServer(first.Addr(), router, nil).Start(); err == nil {
			t.Error("expected bind error")
		}
	})
}
