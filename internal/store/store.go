// Package store persists per-lead checkpoint entries so interrupted runs can
// resume without re-rendering completed work.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// reconcileMessage is recorded on in_progress entries found at startup.
const reconcileMessage = "interrupted while in progress"

// Store is the durable checkpoint store keyed by identity key. Put is atomic
// per key and safe to call concurrently for distinct keys.
type Store interface {
	// Checkpoints
	Get(ctx context.Context, key string) (*model.CheckpointEntry, error)
	GetMany(ctx context.Context, keys []string) (map[string]*model.CheckpointEntry, error)
	Put(ctx context.Context, key string, entry *model.CheckpointEntry) error
	IsResumable(ctx context.Context, key, rowHash string) (bool, error)
	ReconcileInProgress(ctx context.Context) (int, error)
	Counts(ctx context.Context) (map[model.CheckpointState]int, error)
	Delete(ctx context.Context, state model.CheckpointState) (int, error)

	// Run history
	SaveRun(ctx context.Context, summary *model.RunSummary) error
	LatestRun(ctx context.Context) (*model.RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the configured store and applies its migration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		st, err = NewSQLite(cfg.Path)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "memory":
		st = NewMemory()
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// resumable evaluates IsResumable on top of Get.
func resumable(ctx context.Context, st Store, key, rowHash string) (bool, error) {
	e, err := st.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return e.Resumable(rowHash), nil
}

// prepareEntry stamps the key and update time onto entry before a write.
func prepareEntry(key string, entry *model.CheckpointEntry) error {
	if key == "" {
		return eris.New("store: empty identity key")
	}
	if entry == nil {
		return eris.Errorf("store: nil entry for %s", key)
	}
	entry.IdentityKey = key
	if entry.State == "" {
		entry.State = model.CheckpointNotStarted
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	return nil
}
