package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestMemory(t *testing.T) Store {
	t.Helper()
	return NewMemory()
}

func doneEntry(hash string) *model.CheckpointEntry {
	return &model.CheckpointEntry{
		State:        model.CheckpointDone,
		RowHash:      hash,
		RenderStatus: model.RenderRendered,
		ContentRef:   "abc:10",
		Signals: model.SignalBundle{
			MobileScore:      model.IntPtr(72),
			SSL:              model.BoolPtr(true),
			DetectedSoftware: []string{"MindBody"},
		},
		Attempts: 1,
		RunID:    "run-1",
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		e, err := s.Get(context.Background(), "url:nowhere.com")
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "url:gym.com", doneEntry("h1")))

		got, err := s.Get(ctx, "url:gym.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "url:gym.com", got.IdentityKey)
		assert.Equal(t, model.CheckpointDone, got.State)
		assert.Equal(t, "h1", got.RowHash)
		assert.Equal(t, model.RenderRendered, got.RenderStatus)
		assert.Equal(t, "abc:10", got.ContentRef)
		require.NotNil(t, got.Signals.MobileScore)
		assert.Equal(t, 72, *got.Signals.MobileScore)
		assert.Equal(t, []string{"MindBody"}, got.Signals.DetectedSoftware)
		assert.Nil(t, got.Signals.ModernTech)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, "run-1", got.RunID)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("PutIsIdempotentUpsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "k", &model.CheckpointEntry{State: model.CheckpointInProgress, RowHash: "h1"}))
		require.NoError(t, s.Put(ctx, "k", doneEntry("h1")))
		require.NoError(t, s.Put(ctx, "k", doneEntry("h1")))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, model.CheckpointDone, got.State)

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[model.CheckpointState]int{model.CheckpointDone: 1}, counts)
	})

	t.Run("PutRejectsEmptyKey", func(t *testing.T) {
		s := newStore(t)
		err := s.Put(context.Background(), "", doneEntry("h"))
		assert.ErrorContains(t, err, "empty identity key")
	})

	t.Run("IsResumable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "done", doneEntry("h1")))
		require.NoError(t, s.Put(ctx, "inprog", &model.CheckpointEntry{State: model.CheckpointInProgress, RowHash: "h1"}))
		require.NoError(t, s.Put(ctx, "errored", &model.CheckpointEntry{State: model.CheckpointError, RowHash: "h1"}))

		tests := []struct {
			key  string
			hash string
			want bool
		}{
			{"done", "h1", true},
			{"done", "h2", false},
			{"inprog", "h1", false},
			{"errored", "h1", false},
			{"missing", "h1", false},
		}
		for _, tt := range tests {
			got, err := s.IsResumable(ctx, tt.key, tt.hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "%s/%s", tt.key, tt.hash)
		}
	})

	t.Run("GetMany", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "a", doneEntry("ha")))
		require.NoError(t, s.Put(ctx, "b", doneEntry("hb")))

		got, err := s.GetMany(ctx, []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "ha", got["a"].RowHash)
		assert.Equal(t, "hb", got["b"].RowHash)

		empty, err := s.GetMany(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("ReconcileInProgress", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "a", &model.CheckpointEntry{State: model.CheckpointInProgress, RowHash: "h"}))
		require.NoError(t, s.Put(ctx, "b", &model.CheckpointEntry{State: model.CheckpointInProgress, RowHash: "h"}))
		require.NoError(t, s.Put(ctx, "c", doneEntry("h")))

		n, err := s.ReconcileInProgress(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, model.CheckpointError, got.State)
		assert.Equal(t, reconcileMessage, got.LastError)

		n, err = s.ReconcileInProgress(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "a", doneEntry("h")))
		require.NoError(t, s.Put(ctx, "b", &model.CheckpointEntry{State: model.CheckpointError, RowHash: "h"}))
		require.NoError(t, s.Put(ctx, "c", &model.CheckpointEntry{State: model.CheckpointError, RowHash: "h"}))

		n, err := s.Delete(ctx, model.CheckpointError)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.Delete(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("ConcurrentPutsDistinctKeys", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 50)
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Put(ctx, fmt.Sprintf("key-%d", i), doneEntry("h"))
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		counts, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, counts[model.CheckpointDone])
	})

	t.Run("RunHistory", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		latest, err := s.LatestRun(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)

		older := &model.RunSummary{RunID: "r1", StartedAt: time.Now().UTC().Add(-time.Hour), Total: 3}
		newer := &model.RunSummary{RunID: "r2", StartedAt: time.Now().UTC(), Total: 7}
		require.NoError(t, s.SaveRun(ctx, older))
		require.NoError(t, s.SaveRun(ctx, newer))

		newer.FinishedAt = time.Now().UTC()
		newer.Rendered = 5
		require.NoError(t, s.SaveRun(ctx, newer))

		latest, err = s.LatestRun(ctx)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "r2", latest.RunID)
		assert.Equal(t, 7, latest.Total)
		assert.Equal(t, 5, latest.Rendered)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestMemoryStore(t *testing.T) {
	storeTestSuite(t, newTestMemory)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Put(ctx, "url:gym.com", doneEntry("h1")))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })
	require.NoError(t, s2.Migrate(ctx))

	ok, err := s2.IsResumable(ctx, "url:gym.com", "h1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryPutCount(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "a", doneEntry("h")))
	require.NoError(t, m.Put(ctx, "a", doneEntry("h")))
	assert.Equal(t, 2, m.PutCount("a"))
	assert.Zero(t, m.PutCount("b"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	st, err = Open(ctx, config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	assert.IsType(t, &SQLiteStore{}, st)

	_, err = Open(ctx, config.StoreConfig{Driver: "bogus"})
	assert.ErrorContains(t, err, "unknown driver")
}
