package state_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VatsalSy/MPTimer/internal/state"
	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

func setupTestDB(t *testing.T) (*state.Manager, func()) {
	t.Helper()
	cfg := state.DBConfig{
		Path:         state.MemoryPath,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		MaxIdleTime:  5 * time.Minute,
	}
	manager, err := state.NewManager(cfg)
	require.NoError(t, err, "state.NewManager failed")
	require.NotNil(t, manager, "state.Manager is nil")
	cleanup := func() {
		assert.NoError(t, manager.Close(), "manager.Close() failed during cleanup")
	}
	return manager, cleanup
}

func testSample(now time.Duration, value int) timer.Sample {
	return timer.Sample{
		Now:           now,
		ResourceValue: value,
		Status:        timer.StatusFlags{RegenFavorable: true, Accelerant: true},
		Conditions: visibility.Conditions{
			Role:          visibility.SupportedRole,
			InCombat:      true,
			HostileTarget: true,
		},
	}
}

func TestManager_StartSession(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	seed := int64(7)
	session, err := manager.StartSession(ctx, state.SessionOptions{
		Label:  "ice rotation",
		Seed:   &seed,
		Period: 3 * time.Second,
	})
	require.NoError(t, err)

	assert.Len(t, session.ID, 36)
	assert.Equal(t, state.SourceSimulate, session.Source)
	assert.Equal(t, state.SessionStatusRecording, session.Status)
	assert.Equal(t, 3*time.Second, session.Period())
	assert.True(t, session.Seed.Valid)
	assert.Equal(t, "ice rotation", session.DisplayLabel())
	assert.WithinDuration(t, time.Now(), session.StartTime, 5*time.Second)

	_, err = manager.StartSession(ctx, state.SessionOptions{})
	assert.Error(t, err, "zero period must be rejected")
}

func TestManager_RecordAndLoad(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	session, err := manager.StartSession(ctx, state.SessionOptions{Period: 3 * time.Second})
	require.NoError(t, err)

	obs := []*state.Observation{
		state.NewObservation(0, testSample(time.Second, 100), false, 900*time.Millisecond),
		state.NewObservation(1, testSample(2*time.Second, 200), true, -1),
	}
	require.NoError(t, manager.Record(ctx, session.ID, obs))
	assert.NotZero(t, obs[0].ID)

	loaded, err := manager.LoadObservations(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, testSample(time.Second, 100), loaded[0].Sample())
	assert.Equal(t, testSample(2*time.Second, 200), loaded[1].Sample())
	assert.False(t, loaded[0].ContextChanged)
	assert.True(t, loaded[1].ContextChanged)

	tt, ok := loaded[0].TrueTick()
	assert.True(t, ok)
	assert.Equal(t, 900*time.Millisecond, tt)
	_, ok = loaded[1].TrueTick()
	assert.False(t, ok)

	got, err := manager.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.SampleCount)
}

func TestManager_RecordUnknownSessionRollsBack(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := manager.Record(ctx, "missing", []*state.Observation{
		state.NewObservation(0, testSample(time.Second, 1), false, -1),
	})
	require.Error(t, err)

	n, err := manager.Observations().Count(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecorder_BatchesAndFinishes(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	session, err := manager.StartSession(ctx, state.SessionOptions{Period: 3 * time.Second})
	require.NoError(t, err)

	rec := manager.NewRecorder(session.ID, 3)
	for i := 0; i < 7; i++ {
		now := time.Duration(i) * 100 * time.Millisecond
		require.NoError(t, rec.Add(ctx, state.NewObservation(0, testSample(now, i), false, -1)))
	}

	n, err := manager.Observations().Count(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n, "two full batches written before close")

	require.NoError(t, rec.Close(ctx))

	got, err := manager.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, state.SessionStatusCompleted, got.Status)
	assert.Equal(t, int64(7), got.SampleCount)
	assert.True(t, got.EndTime.Valid)

	var seqs []int64
	require.NoError(t, manager.EachObservation(ctx, session.ID, func(o *state.Observation) error {
		seqs = append(seqs, o.Seq)
		return nil
	}))
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6}, seqs)

	err = manager.FinishSession(ctx, session.ID, state.SessionStatusFailed)
	assert.ErrorIs(t, err, state.ErrSessionNotFound, "finished sessions cannot be finished again")
}

func TestManager_GetSessionByPrefix(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	session, err := manager.StartSession(ctx, state.SessionOptions{Period: 3 * time.Second})
	require.NoError(t, err)

	got, err := manager.GetSession(ctx, session.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	_, err = manager.GetSession(ctx, "zzzzzzzz")
	assert.True(t, errors.Is(err, state.ErrSessionNotFound))

	latest, err := manager.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.ID, latest.ID)
}

func TestManager_ListAndDelete(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := manager.StartSession(ctx, state.SessionOptions{Period: 3 * time.Second})
		require.NoError(t, err)
		require.NoError(t, manager.Record(ctx, s.ID, []*state.Observation{
			state.NewObservation(0, testSample(time.Second, 1), false, -1),
		}))
		ids = append(ids, s.ID)
	}

	sessions, err := manager.ListSessions(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)

	require.NoError(t, manager.DeleteSession(ctx, ids[0]))
	sessions, err = manager.ListSessions(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	n, err := manager.Observations().Count(ctx, ids[0])
	require.NoError(t, err)
	assert.Zero(t, n, "observations cascade with their session")

	assert.ErrorIs(t, manager.DeleteSession(ctx, ids[0]), state.ErrSessionNotFound)
}

func TestManager_SessionStats(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	session, err := manager.StartSession(ctx, state.SessionOptions{Period: 3 * time.Second})
	require.NoError(t, err)

	lucid := testSample(2*time.Second, 50)
	lucid.Status.LucidLike = true
	fire := testSample(3*time.Second, 900)
	fire.Status.RegenSuppressed = true

	require.NoError(t, manager.Record(ctx, session.ID, []*state.Observation{
		state.NewObservation(0, testSample(time.Second, 100), false, -1),
		state.NewObservation(1, lucid, true, -1),
		state.NewObservation(2, fire, false, -1),
	}))

	stats, err := manager.GetSessionStats(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Observations)
	assert.Equal(t, 2*time.Second, stats.Span())
	assert.Equal(t, int64(1), stats.ContextChanges)
	assert.Equal(t, int64(1), stats.LucidFrames)
	assert.Equal(t, int64(1), stats.SuppressedFrames)
	assert.Equal(t, int64(50), stats.MinValue)
	assert.Equal(t, int64(900), stats.MaxValue)
	assert.InDelta(t, 1000.0, stats.MeanFrameMillis, 1e-6)

	empty, err := manager.GetSessionStats(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, empty.Observations)
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")

	journal, err := state.New(path)
	require.NoError(t, err)
	defer journal.Close()

	assert.NoError(t, journal.HealthCheck(context.Background()))
	assert.FileExists(t, path)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1 second", state.FormatDuration(time.Second))
	assert.Equal(t, "42 seconds", state.FormatDuration(42*time.Second))
	assert.Equal(t, "2 minutes", state.FormatDuration(2*time.Minute))
	assert.Equal(t, "1 minute 5 seconds", state.FormatDuration(65*time.Second))
	assert.Equal(t, "3.250s", state.FormatHostTime(3250*time.Millisecond))
}
