package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps per-connection pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	identity_key  TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	row_hash      TEXT NOT NULL,
	render_status TEXT NOT NULL DEFAULT '',
	failure_kind  TEXT NOT NULL DEFAULT '',
	content_ref   TEXT NOT NULL DEFAULT '',
	signals       TEXT NOT NULL DEFAULT '{}',
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	run_id        TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	summary     TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_state ON checkpoints(state);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const checkpointColumns = `identity_key, state, row_hash, render_status, failure_kind, content_ref, signals, attempts, last_error, run_id, updated_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.CheckpointEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+checkpointColumns+` FROM checkpoints WHERE identity_key = ?`,
		key,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get checkpoint")
	}
	return e, nil
}

func (s *SQLiteStore) GetMany(ctx context.Context, keys []string) (map[string]*model.CheckpointEntry, error) {
	out := make(map[string]*model.CheckpointEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkpointColumns+` FROM checkpoints WHERE identity_key IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get checkpoints")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan checkpoint")
		}
		out[e.IdentityKey] = e
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate checkpoints")
}

func (s *SQLiteStore) Put(ctx context.Context, key string, entry *model.CheckpointEntry) error {
	if err := prepareEntry(key, entry); err != nil {
		return err
	}
	signalsJSON, err := json.Marshal(entry.Signals)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal signals")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (`+checkpointColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity_key) DO UPDATE SET
		   state = excluded.state, row_hash = excluded.row_hash,
		   render_status = excluded.render_status, failure_kind = excluded.failure_kind,
		   content_ref = excluded.content_ref, signals = excluded.signals,
		   attempts = excluded.attempts, last_error = excluded.last_error,
		   run_id = excluded.run_id, updated_at = excluded.updated_at`,
		key, string(entry.State), entry.RowHash, string(entry.RenderStatus),
		string(entry.FailureKind), entry.ContentRef, string(signalsJSON),
		entry.Attempts, entry.LastError, entry.RunID, entry.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: put checkpoint %s", key)
}

func (s *SQLiteStore) IsResumable(ctx context.Context, key, rowHash string) (bool, error) {
	return resumable(ctx, s, key, rowHash)
}

func (s *SQLiteStore) ReconcileInProgress(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE checkpoints SET state = ?, last_error = ?, updated_at = ? WHERE state = ?`,
		string(model.CheckpointError), reconcileMessage, time.Now().UTC(), string(model.CheckpointInProgress),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reconcile in_progress")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Counts(ctx context.Context) (map[model.CheckpointState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM checkpoints GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count checkpoints")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.CheckpointState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[model.CheckpointState(state)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}

func (s *SQLiteStore) Delete(ctx context.Context, state model.CheckpointState) (int, error) {
	var (
		res sql.Result
		err error
	)
	if state == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM checkpoints`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE state = ?`, string(state))
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete checkpoints")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}

	var finished any
	if !summary.FinishedAt.IsZero() {
		finished = summary.FinishedAt
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, summary, started_at, finished_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET summary = excluded.summary, finished_at = excluded.finished_at`,
		summary.RunID, string(summaryJSON), summary.StartedAt, finished,
	)
	return eris.Wrap(err, "sqlite: save run")
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.RunSummary, error) {
	var summaryJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest run")
	}

	var summary model.RunSummary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run summary")
	}
	return &summary, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.CheckpointEntry, error) {
	var (
		e                                        model.CheckpointEntry
		state, renderStatus, failureKind, sigRaw string
	)
	err := row.Scan(&e.IdentityKey, &state, &e.RowHash, &renderStatus, &failureKind,
		&e.ContentRef, &sigRaw, &e.Attempts, &e.LastError, &e.RunID, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.State = model.CheckpointState(state)
	e.RenderStatus = model.RenderStatus(renderStatus)
	e.FailureKind = model.FailureKind(failureKind)
	if sigRaw != "" {
		if err := json.Unmarshal([]byte(sigRaw), &e.Signals); err != nil {
			return nil, eris.Wrap(err, "unmarshal signals")
		}
	}
	return &e, nil
}
