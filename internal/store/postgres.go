package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the per-record checkpoint operations.
var preparedStatements = map[string]string{
	"get_checkpoint": `SELECT ` + checkpointColumns + ` FROM checkpoints WHERE identity_key = $1`,
	"put_checkpoint": putCheckpointSQL,
}

const putCheckpointSQL = `INSERT INTO checkpoints (` + checkpointColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (identity_key) DO UPDATE SET
	  state = $2, row_hash = $3, render_status = $4, failure_kind = $5,
	  content_ref = $6, signals = $7, attempts = $8, last_error = $9,
	  run_id = $10, updated_at = $11`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS checkpoints (
	identity_key  TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	row_hash      TEXT NOT NULL,
	render_status TEXT NOT NULL DEFAULT '',
	failure_kind  TEXT NOT NULL DEFAULT '',
	content_ref   TEXT NOT NULL DEFAULT '',
	signals       JSONB NOT NULL DEFAULT '{}',
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	run_id        TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	summary     JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_state ON checkpoints(state);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*model.CheckpointEntry, error) {
	e, err := scanPGEntry(s.pool.QueryRow(ctx,
		`SELECT `+checkpointColumns+` FROM checkpoints WHERE identity_key = $1`,
		key,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get checkpoint")
	}
	return e, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, keys []string) (map[string]*model.CheckpointEntry, error) {
	out := make(map[string]*model.CheckpointEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+checkpointColumns+` FROM checkpoints WHERE identity_key = ANY($1)`,
		keys,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get checkpoints")
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanPGEntry(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan checkpoint")
		}
		out[e.IdentityKey] = e
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate checkpoints")
}

func (s *PostgresStore) Put(ctx context.Context, key string, entry *model.CheckpointEntry) error {
	if err := prepareEntry(key, entry); err != nil {
		return err
	}
	signalsJSON, err := json.Marshal(entry.Signals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal signals")
	}

	_, err = s.pool.Exec(ctx, putCheckpointSQL,
		key, string(entry.State), entry.RowHash, string(entry.RenderStatus),
		string(entry.FailureKind), entry.ContentRef, signalsJSON,
		entry.Attempts, entry.LastError, entry.RunID, entry.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: put checkpoint %s", key)
}

func (s *PostgresStore) IsResumable(ctx context.Context, key, rowHash string) (bool, error) {
	return resumable(ctx, s, key, rowHash)
}

func (s *PostgresStore) ReconcileInProgress(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checkpoints SET state = $1, last_error = $2, updated_at = $3 WHERE state = $4`,
		string(model.CheckpointError), reconcileMessage, time.Now().UTC(), string(model.CheckpointInProgress),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reconcile in_progress")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Counts(ctx context.Context) (map[model.CheckpointState]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT state, COUNT(*) FROM checkpoints GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count checkpoints")
	}
	defer rows.Close()

	counts := make(map[model.CheckpointState]int)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[model.CheckpointState(state)] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate counts")
}

func (s *PostgresStore) Delete(ctx context.Context, state model.CheckpointState) (int, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if state == "" {
		tag, err = s.pool.Exec(ctx, `DELETE FROM checkpoints`)
	} else {
		tag, err = s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE state = $1`, string(state))
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete checkpoints")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}

	var finished *time.Time
	if !summary.FinishedAt.IsZero() {
		finished = &summary.FinishedAt
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, summary, started_at, finished_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET summary = $2, finished_at = $4`,
		summary.RunID, summaryJSON, summary.StartedAt, finished,
	)
	return eris.Wrap(err, "postgres: save run")
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.RunSummary, error) {
	var summaryJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT summary FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&summaryJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest run")
	}

	var summary model.RunSummary
	if err := json.Unmarshal(summaryJSON, &summary); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run summary")
	}
	return &summary, nil
}

func scanPGEntry(row scannable) (*model.CheckpointEntry, error) {
	var (
		e                                model.CheckpointEntry
		state, renderStatus, failureKind string
		sigRaw                           []byte
	)
	err := row.Scan(&e.IdentityKey, &state, &e.RowHash, &renderStatus, &failureKind,
		&e.ContentRef, &sigRaw, &e.Attempts, &e.LastError, &e.RunID, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.State = model.CheckpointState(state)
	e.RenderStatus = model.RenderStatus(renderStatus)
	e.FailureKind = model.FailureKind(failureKind)
	if len(sigRaw) > 0 {
		if err := json.Unmarshal(sigRaw, &e.Signals); err != nil {
			return nil, eris.Wrap(err, "unmarshal signals")
		}
	}
	return &e, nil
}
