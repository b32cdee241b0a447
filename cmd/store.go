package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/store"
)

// openStore opens the configured checkpoint store. When writable is set the
// run lock is taken first so a second process fails fast instead of
// interleaving writes: a file lock for SQLite, an advisory lock for Postgres.
func openStore(ctx context.Context, writable bool) (store.Store, *store.RunLock, error) {
	var lock *store.RunLock
	if writable && cfg.Store.Lock {
		var err error
		switch cfg.Store.Driver {
		case "sqlite":
			lock, err = store.AcquireLock(cfg.Store.Path)
		case "postgres":
			lock, err = store.AcquirePostgresLock(ctx, cfg.Store.DatabaseURL)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		_ = lock.Release()
		return nil, nil, eris.Wrap(err, "open checkpoint store")
	}
	return st, lock, nil
}

// closeStore closes st and releases lock.
func closeStore(st store.Store, lock *store.RunLock) {
	_ = st.Close()
	_ = lock.Release()
}
