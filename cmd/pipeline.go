package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/repositories"
	"github.com/desertthunder/spotkit/internal/shared"
	"github.com/desertthunder/spotkit/internal/ui"
)

// oauthExchanger builds the exchanger from the Spotify credentials in the config.
func (r *Runner) oauthExchanger() (*auth.OAuthExchanger, error) {
	if r.exchanger != nil {
		return r.exchanger, nil
	}

	spotify := r.config.Credentials.Spotify
	ex, err := auth.NewOAuthExchanger(auth.ExchangerOpts{
		ClientID:     spotify.ClientID,
		ClientSecret: spotify.ClientSecret,
		RedirectURI:  spotify.RedirectURI,
		Scopes:       auth.NewScopes(spotify.Scopes...),
		AccountsURL:  r.config.API.AccountsURL,
		HTTPClient:   r.httpClient,
		Now:          r.now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set client_id and client_secret in %s)", err, r.configName())
	}
	r.exchanger = ex
	return ex, nil
}

// database opens the configured database and applies pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	path := shared.ExpandPath(r.config.Database.Path)
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

// databaseReady reports whether the database has been created by setup or is needed by the store backend.
func (r *Runner) databaseReady() bool {
	if r.config.Store.Backend == "sqlite" {
		return true
	}
	path := shared.ExpandPath(r.config.Database.Path)
	if path == ":memory:" {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

// credentialPersister returns the backend selected by [store] backend.
func (r *Runner) credentialPersister() (auth.Persister, error) {
	if r.persister != nil {
		return r.persister, nil
	}

	switch r.config.Store.Backend {
	case "sqlite":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		r.persister = repositories.NewCredentialRepository(db, r.config.Credentials.Spotify.ClientID)
	case "", "file":
		r.persister = auth.NewFilePersister(shared.ExpandPath(r.config.Store.Path))
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, r.config.Store.Backend)
	}
	return r.persister, nil
}

// authorize builds the coordinator, restoring the persisted credential and mirroring later changes back.
func (r *Runner) authorize(ctx context.Context) (*auth.Coordinator, error) {
	if r.coordinator != nil {
		return r.coordinator, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	ex, err := r.oauthExchanger()
	if err != nil {
		return nil, err
	}
	persister, err := r.credentialPersister()
	if err != nil {
		return nil, err
	}
	tolerance, err := r.config.API.RefreshToleranceDuration()
	if err != nil {
		return nil, err
	}

	store := auth.NewStore()
	if ok, err := auth.Restore(ctx, store, persister); err != nil {
		return nil, fmt.Errorf("failed to restore credential: %w", err)
	} else if !ok {
		r.logger.Debug("no stored credential")
	}

	persistCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := auth.Persist(persistCtx, store, persister, r.logger)
	r.stopPersist = func() {
		cancel()
		<-done
	}

	r.coordinator = auth.NewCoordinator(auth.CoordinatorOpts{
		Store:     store,
		Exchanger: ex,
		Tolerance: tolerance,
		Now:       r.now,
		Logger:    r.logger,
	})
	return r.coordinator, nil
}

// pipeline returns the API client, building the whole request pipeline on first use.
func (r *Runner) pipeline(ctx context.Context) (*api.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	coord, err := r.authorize(ctx)
	if err != nil {
		return nil, err
	}
	retryDelay, err := r.config.API.RetryDelayDuration()
	if err != nil {
		return nil, err
	}

	retry := api.RetryPolicy{
		MaxRetries:   api.Ptr(r.config.API.MaxRetries),
		DefaultDelay: retryDelay,
		Logger:       r.logger,
	}
	if r.databaseReady() {
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		r.events = repositories.NewRateLimitEventRepository(db)
		retry.OnRateLimited = r.events.Recorder(func(err error) {
			r.logger.Warn("failed to record rate limit event", "err", err)
		})
	}

	r.client = api.NewClient(coord, api.ClientOpts{
		BaseURL:    r.config.API.BaseURL,
		HTTPClient: r.httpClient,
		Limiter:    api.NewLimiter(r.config.API.RequestsPerSecond),
		Retry:      retry,
		Logger:     r.logger,
	})
	return r.client, nil
}

// scoped returns the pipeline client with its scope capability.
func (r *Runner) scoped(ctx context.Context) (*api.ScopedClient, error) {
	client, err := r.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	return api.Scoped(client)
}

// Close stops persistence, saves the current credential and closes the database.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	if r.stopPersist != nil {
		r.stopPersist()
		r.stopPersist = nil
	}
	if r.coordinator != nil && r.persister != nil {
		if cred, ok := r.coordinator.Store().Current(); ok {
			if err := r.persister.Save(ctx, cred); err != nil {
				errs = append(errs, fmt.Errorf("failed to save credential: %w", err))
			}
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		r.db = nil
	}
	return errors.Join(errs...)
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// requireLogin explains how to authorize when err means there is no usable credential.
func (r *Runner) requireLogin(err error) error {
	if errors.Is(err, auth.ErrUnauthorized) {
		r.writeln(ui.Styles.Help("Run 'spotkit auth login' to authorize."))
	}
	return err
}
