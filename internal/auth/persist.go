package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/shared"
)

// Persister stores the credential between runs. Load returns [shared.ErrCredentialNotFound] when nothing was
// saved.
type Persister interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, c Credential) error
	Delete(ctx context.Context) error
}

// FilePersister keeps the credential as JSON in a single file readable only by the owner.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path ("~" is expanded).
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: shared.ExpandPath(path)}
}

// Path returns the file location.
func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) Load(_ context.Context) (Credential, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credential{}, shared.ErrCredentialNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read credential file: %w", err)
	}
	return UnmarshalCredential(data)
}

// Save writes to a temporary file first and renames it into place, so a crash never leaves a torn file.
func (p *FilePersister) Save(_ context.Context, c Credential) error {
	data, err := MarshalCredential(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

func (p *FilePersister) Delete(_ context.Context) error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}
	return nil
}

// Restore loads the persisted credential into store. A missing credential is not an error; it reports false.
func Restore(ctx context.Context, store *Store, p Persister) (bool, error) {
	c, err := p.Load(ctx)
	if errors.Is(err, shared.ErrCredentialNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	store.Replace(c)
	return true, nil
}

// Persist mirrors store events into p until ctx ends. Failures are logged and do not stop the loop.
// The returned channel is closed once the subscription has ended.
func Persist(ctx context.Context, store *Store, p Persister, logger *log.Logger) <-chan struct{} {
	logger = shared.WithLogger(logger, "component", "persist")
	events, cancel := store.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Cleared {
					if err := p.Delete(ctx); err != nil {
						logger.Warn("failed to delete credential", "err", err)
					}
					continue
				}
				if err := p.Save(ctx, ev.Credential); err != nil {
					logger.Warn("failed to save credential", "err", err)
					continue
				}
				logger.Debug("credential saved", "seq", ev.Seq)
			}
		}
	}()

	return done
}
