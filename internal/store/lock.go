package store

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// ErrLocked is returned when another process holds the run lock.
var ErrLocked = errors.New("store: checkpoint is locked by another run")

// runLockKey is the advisory lock id shared by every run against one database.
const runLockKey int64 = 0x6c656164676e

// LockConn is the dedicated session that holds a Postgres advisory lock.
// Advisory locks belong to a session, so it must not come from the store's pool.
type LockConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// RunLock is an exclusive, non-blocking lock held for the duration of a run
// so two processes never write the same checkpoint. It is a file lock for
// SQLite and a session advisory lock for Postgres.
type RunLock struct {
	fl *flock.Flock
	pg LockConn
}

// AcquireLock takes the lock at path+".lock". It fails fast with ErrLocked
// when the lock is already held.
func AcquireLock(path string) (*RunLock, error) {
	fl := flock.New(path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, eris.Wrapf(err, "store: lock %s", fl.Path())
	}
	if !ok {
		return nil, ErrLocked
	}
	return &RunLock{fl: fl}, nil
}

// AcquirePostgresLock opens a dedicated connection and takes the run's
// advisory lock on it. It fails fast with ErrLocked when another session
// holds the lock.
func AcquirePostgresLock(ctx context.Context, connString string) (*RunLock, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect for run lock")
	}
	return tryAdvisoryLock(ctx, conn)
}

func tryAdvisoryLock(ctx context.Context, conn LockConn) (*RunLock, error) {
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, runLockKey).Scan(&ok); err != nil {
		_ = conn.Close(ctx)
		return nil, eris.Wrap(err, "postgres: try advisory lock")
	}
	if !ok {
		_ = conn.Close(ctx)
		return nil, ErrLocked
	}
	return &RunLock{pg: conn}, nil
}

// Release unlocks. Safe to call on a nil lock.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	if l.pg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := l.pg.Exec(ctx, `SELECT pg_advisory_unlock($1)`, runLockKey)
		if cerr := l.pg.Close(ctx); err == nil {
			err = cerr
		}
		return eris.Wrap(err, "postgres: release advisory lock")
	}
	if l.fl == nil {
		return nil
	}
	return eris.Wrap(l.fl.Unlock(), "store: unlock")
}
