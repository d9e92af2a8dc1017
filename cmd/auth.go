package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/server"
	"github.com/desertthunder/spotkit/internal/ui"
	"github.com/urfave/cli/v3"
)

// credentialStatus is the redacted view of a credential printed by the auth commands.
type credentialStatus struct {
	Authorized      bool      `json:"authorized"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
	Expired         bool      `json:"expired"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	Scopes          []string  `json:"scopes"`
	Backend         string    `json:"backend"`
}

func (r *Runner) status(cred auth.Credential, ok bool) credentialStatus {
	backend := r.config.Store.Backend
	if backend == "" {
		backend = "file"
	}
	if !ok || !cred.HasAccessToken() {
		return credentialStatus{Backend: backend, Scopes: []string{}}
	}
	return credentialStatus{
		Authorized:      true,
		ExpiresAt:       cred.ExpiresAt,
		Expired:         cred.IsExpired(r.now(), 0),
		HasRefreshToken: cred.HasRefreshToken(),
		Scopes:          cred.Scopes,
		Backend:         backend,
	}
}

func (r *Runner) printStatus(cmd *cli.Command, s credentialStatus) error {
	if cmd.Bool("json") {
		return r.writeJSON(s, true)
	}
	if !s.Authorized {
		r.writeln(ui.Styles.Warn("Not authorized"))
		r.writeln(ui.Styles.Help("Run 'spotkit auth login' to authorize."))
		return nil
	}

	expiry := s.ExpiresAt.Local().Format(time.RFC1123)
	if s.Expired {
		expiry += " (expired)"
	} else {
		expiry += fmt.Sprintf(" (in %s)", s.ExpiresAt.Sub(r.now()).Round(time.Second))
	}
	return r.writeln(ui.KeyValues(
		ui.Pair{Key: "Expires", Value: expiry},
		ui.Pair{Key: "Refreshable", Value: fmt.Sprintf("%t", s.HasRefreshToken)},
		ui.Pair{Key: "Scopes", Value: auth.Scopes(s.Scopes).String()},
		ui.Pair{Key: "Store", Value: s.Backend},
	))
}

// AuthLogin performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for a credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	ex, err := r.oauthExchanger()
	if err != nil {
		return err
	}
	coord, err := r.authorize(ctx)
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler(ex, server.NewState(), r.logger)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger), server.Recover(r.logger))
	router.Handler(handler)

	srv := server.NewCallbackServer(r.config.Server.Addr(), router, r.logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("callback server did not shut down cleanly", "err", err)
		}
	}()

	url := ex.AuthCodeURL(handler.State(), cmd.Bool("show-dialog"))
	r.writeln(ui.Styles.Title("Authorize spotkit"))
	r.writePlain("Open this URL to continue:\n\n  %s\n\n", url)
	if !cmd.Bool("no-browser") {
		if err := r.openBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "err", err)
		}
	}

	r.logger.Info("waiting for authorization callback", "addr", srv.Addr())
	cred, err := server.WaitForCallback(ctx, handler, cmd.Duration("timeout"))
	if err != nil {
		return err
	}
	coord.Store().Replace(cred)

	if cmd.Bool("json") {
		return r.writeJSON(r.status(cred, true), true)
	}
	r.writeln(ui.Styles.OK("Authorization successful"))
	return r.printStatus(cmd, r.status(cred, true))
}

// AuthStatus prints the stored credential without contacting Spotify.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.authorize(ctx)
	if err != nil {
		return err
	}
	cred, ok := coord.Store().Current()
	return r.printStatus(cmd, r.status(cred, ok))
}

// AuthRefresh exchanges the refresh token regardless of expiry.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.authorize(ctx)
	if err != nil {
		return err
	}
	cred, err := coord.ForceRefresh(ctx)
	if err != nil {
		return r.requireLogin(err)
	}

	if !cmd.Bool("json") {
		r.writeln(ui.Styles.OK("Credential refreshed"))
	}
	return r.printStatus(cmd, r.status(cred, true))
}

// AuthLogout clears the credential from memory and from the persistence backend.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	coord, err := r.authorize(ctx)
	if err != nil {
		return err
	}
	coord.Deauthorize()
	if err := r.persister.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete stored credential: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(r.status(auth.Credential{}, false), true)
	}
	return r.writeln(ui.Styles.OK("Logged out"))
}
