package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/spotkit/internal/api"
	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()
	expiresAt := time.Date(2026, 10, 15, 13, 0, 0, 0, time.UTC)
	refresh := "R1"
	cred := auth.Credential{
		AccessToken:  "A1",
		RefreshToken: &refresh,
		ExpiresAt:    expiresAt,
		Scopes:       auth.NewScopes(auth.ScopeUserReadPrivate, auth.ScopeUserLibraryRead),
	}

	t.Run("Load", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db, "client")
		if _, err := repo.Load(ctx); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("Save", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db, "client")
		if err := repo.Save(ctx, cred); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("failed to load credential: %v", err)
		}
		if !got.Equal(cred) {
			t.Errorf("expected %v, got %v", cred, got)
		}
	})

	t.Run("SaveWithoutRefreshToken", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db, "client")
		appOnly := auth.Credential{AccessToken: "APP", ExpiresAt: expiresAt}
		if err := repo.Save(ctx, appOnly); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("failed to load credential: %v", err)
		}
		if got.RefreshToken != nil || got.Scopes != nil {
			t.Errorf("expected no refresh token or scopes, got %+v", got)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db, "client")
		if err := repo.Save(ctx, cred); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		refreshed := cred
		refreshed.AccessToken = "A2"
		refreshed.ExpiresAt = expiresAt.Add(time.Hour)
		if err := repo.Save(ctx, refreshed); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		got, _ := repo.Load(ctx)
		if !got.Equal(refreshed) {
			t.Errorf("expected %v, got %v", refreshed, got)
		}

		var rows int
		if err := db.QueryRow("SELECT COUNT(*) FROM credentials").Scan(&rows); err != nil {
			t.Fatal(err)
		}
		if rows != 1 {
			t.Errorf("expected 1 row, got %d", rows)
		}
	})

	t.Run("ClientsAreIsolated", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		first := NewCredentialRepository(db, "first")
		second := NewCredentialRepository(db, "second")
		if err := first.Save(ctx, cred); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		if _, err := second.Load(ctx); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db, "client")
		if err := repo.Save(ctx, cred); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}
		if err := repo.Delete(ctx); err != nil {
			t.Fatalf("failed to delete credential: %v", err)
		}
		if err := repo.Delete(ctx); err != nil {
			t.Errorf("second delete failed: %v", err)
		}
		if _, err := repo.Load(ctx); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("UpdatedAt", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db, "client")
		repo.now = func() time.Time { return expiresAt.Add(-time.Hour) }

		if _, err := repo.UpdatedAt(ctx); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
		if err := repo.Save(ctx, cred); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}
		got, err := repo.UpdatedAt(ctx)
		if err != nil || !got.Equal(expiresAt.Add(-time.Hour)) {
			t.Errorf("UpdatedAt() = %v, %v", got, err)
		}
	})

	t.Run("PersistsStoreChanges", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewCredentialRepository(db, "client")
		store := auth.NewStore()
		runCtx, cancel := context.WithCancel(ctx)
		done := auth.Persist(runCtx, store, repo, nil)

		store.Replace(cred)
		deadline := time.Now().Add(2 * time.Second)
		for {
			if got, err := repo.Load(ctx); err == nil && got.Equal(cred) {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("credential was not persisted")
			}
			time.Sleep(5 * time.Millisecond)
		}

		restored := auth.NewStore()
		ok, err := auth.Restore(ctx, restored, repo)
		if err != nil || !ok {
			t.Fatalf("Restore() = %v, %v", ok, err)
		}
		if got, _ := restored.Current(); !got.Equal(cred) {
			t.Errorf("expected %v, got %v", cred, got)
		}

		cancel()
		<-done
	})
}

func TestRateLimitEventRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	event := func(id string, offset time.Duration, hint bool) api.RateLimitEvent {
		ev := api.RateLimitEvent{
			RequestID:  id,
			Method:     "GET",
			Path:       "/me/tracks",
			Attempt:    1,
			OccurredAt: base.Add(offset),
		}
		if hint {
			ev.RetryAfter = 2 * time.Second
			ev.HasRetryAfter = true
		}
		return ev
	}

	t.Run("Record", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRateLimitEventRepository(db)
		id, err := repo.Record(ctx, event("req-1", 0, true))
		if err != nil {
			t.Fatalf("failed to record event: %v", err)
		}
		if id == "" {
			t.Error("expected generated ID")
		}

		events, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(events))
		}

		got := events[0]
		if got.ID != id || got.RequestID != "req-1" || got.Path != "/me/tracks" || got.Attempt != 1 {
			t.Errorf("unexpected event %+v", got)
		}
		if !got.HasRetryAfter || got.RetryAfter != 2*time.Second {
			t.Errorf("unexpected hint %v (%v)", got.RetryAfter, got.HasRetryAfter)
		}
		if !got.OccurredAt.Equal(base) {
			t.Errorf("expected %v, got %v", base, got.OccurredAt)
		}
	})

	t.Run("RecordWithoutHint", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRateLimitEventRepository(db)
		if _, err := repo.Record(ctx, event("req-1", 0, false)); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}
		events, _ := repo.List(ctx, 0)
		if len(events) != 1 || events[0].HasRetryAfter {
			t.Errorf("unexpected events %+v", events)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRateLimitEventRepository(db)
		for i, id := range []string{"a", "b", "c"} {
			if _, err := repo.Record(ctx, event(id, time.Duration(i)*time.Minute, true)); err != nil {
				t.Fatalf("failed to record event: %v", err)
			}
		}

		events, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("failed to list events: %v", err)
		}
		if len(events) != 2 || events[0].RequestID != "c" || events[1].RequestID != "b" {
			t.Errorf("unexpected order %+v", events)
		}
	})

	t.Run("CountAndPrune", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRateLimitEventRepository(db)
		for i := 0; i < 4; i++ {
			if _, err := repo.Record(ctx, event("r", time.Duration(i)*time.Hour, false)); err != nil {
				t.Fatalf("failed to record event: %v", err)
			}
		}

		n, err := repo.Count(ctx, base.Add(2*time.Hour))
		if err != nil || n != 2 {
			t.Errorf("Count() = %d, %v; want 2", n, err)
		}

		removed, err := repo.Prune(ctx, base.Add(time.Hour))
		if err != nil || removed != 1 {
			t.Errorf("Prune() = %d, %v; want 1", removed, err)
		}
		n, _ = repo.Count(ctx, base)
		if n != 3 {
			t.Errorf("expected 3 events after prune, got %d", n)
		}
	})

	t.Run("Recorder", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRateLimitEventRepository(db)
		var failures []error
		record := repo.Recorder(func(err error) { failures = append(failures, err) })

		record(event("req-1", 0, true))
		record(event("req-2", time.Second, true))

		events, _ := repo.List(ctx, 0)
		if len(events) != 2 || len(failures) != 0 {
			t.Errorf("expected 2 events and no failures, got %d / %v", len(events), failures)
		}
	})

	t.Run("DeleteEvent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRateLimitEventRepository(db)
		id, _ := repo.Record(ctx, event("req-1", 0, true))

		if err := repo.DeleteEvent(ctx, id); err != nil {
			t.Fatalf("failed to delete event: %v", err)
		}
		if err := repo.DeleteEvent(ctx, id); err == nil {
			t.Error("expected error when deleting a missing event")
		}
	})
}
