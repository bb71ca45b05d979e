package mongodb_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aranya-one/toastd/internal/domain/errs"
	"github.com/aranya-one/toastd/internal/domain/notification"
	"github.com/aranya-one/toastd/internal/infrastructure/eventbus"
	infmongo "github.com/aranya-one/toastd/internal/infrastructure/mongodb"
	"github.com/aranya-one/toastd/internal/infrastructure/repository/mongodb"
	"github.com/aranya-one/toastd/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.CleanupContainers()
	os.Exit(code)
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupHistoryRepository(t *testing.T) *mongodb.MongoHistoryRepository {
	t.Helper()

	db := testutil.SetupTestMongoDB(t)
	require.NoError(t, infmongo.EnsureHistoryIndexes(context.Background(), db, infmongo.CollectionHistory, time.Hour))
	return mongodb.NewMongoHistoryRepository(db.Collection(infmongo.CollectionHistory))
}

func addedEntry(id string, kind notification.Kind, createdAt time.Time) notification.HistoryEntry {
	return notification.HistoryEntry{
		ID:         notification.ID(id),
		Kind:       kind,
		Title:      "Title " + id,
		Message:    "Message " + id,
		CreatedAt:  createdAt,
		Duration:   5 * time.Second,
		AutoRemove: true,
		Source:     "toastd-test",
	}
}

func TestHandleMongoError(t *testing.T) {
	assert.NoError(t, mongodb.HandleMongoError(nil, "thing"))

	err := mongodb.HandleMongoError(errors.New("boom"), "thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to operate on thing")
}

func TestDefaultLimitWithMax(t *testing.T) {
	assert.Equal(t, 50, mongodb.DefaultLimitWithMax(0, 50, 500))
	assert.Equal(t, 20, mongodb.DefaultLimitWithMax(20, 50, 500))
	assert.Equal(t, 500, mongodb.DefaultLimitWithMax(9000, 50, 500))
}

func TestMongoHistoryRepository_UpsertAndFind(t *testing.T) {
	t.Parallel()

	repo := setupHistoryRepository(t)
	ctx := context.Background()

	entry := addedEntry("n-1", notification.KindError, baseTime)
	entry.ActionLabel = "Retry"
	require.NoError(t, repo.Upsert(ctx, entry))

	got, err := repo.FindByID(ctx, "n-1")
	require.NoError(t, err)
	assert.True(t, got.IsActive())
	assert.Equal(t, notification.KindError, got.Kind)
	assert.Equal(t, "Retry", got.ActionLabel)
	assert.Equal(t, 5*time.Second, got.Duration)
	assert.Equal(t, "toastd-test", got.Source)
	assert.True(t, got.CreatedAt.Equal(baseTime))

	// The removed payload has no action label; the stored one survives.
	removed := addedEntry("n-1", notification.KindError, baseTime)
	removed.Reason = notification.ReasonAction
	removed.RemovedAt = baseTime.Add(2 * time.Second)
	require.NoError(t, repo.Upsert(ctx, removed))

	got, err = repo.FindByID(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, notification.ReasonAction, got.Reason)
	assert.True(t, got.RemovedAt.Equal(baseTime.Add(2*time.Second)))
	assert.Equal(t, "Retry", got.ActionLabel)
}

func TestMongoHistoryRepository_OutOfOrderDelivery(t *testing.T) {
	t.Parallel()

	repo := setupHistoryRepository(t)
	ctx := context.Background()

	removed := addedEntry("n-2", notification.KindInfo, baseTime)
	removed.Reason = notification.ReasonExpired
	removed.RemovedAt = baseTime.Add(5 * time.Second)
	require.NoError(t, repo.Upsert(ctx, removed))

	// The late add must not erase the removal.
	require.NoError(t, repo.Upsert(ctx, addedEntry("n-2", notification.KindInfo, baseTime)))

	got, err := repo.FindByID(ctx, "n-2")
	require.NoError(t, err)
	assert.Equal(t, notification.ReasonExpired, got.Reason)
	assert.Equal(t, "Message n-2", got.Message)
}

func TestMongoHistoryRepository_MarkRemoved(t *testing.T) {
	t.Parallel()

	repo := setupHistoryRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, addedEntry("a", notification.KindInfo, baseTime)))
	require.NoError(t, repo.MarkRemoved(ctx, nil, notification.ReasonCleared, baseTime))

	clearedAt := baseTime.Add(time.Minute)
	require.NoError(t, repo.MarkRemoved(ctx, []notification.ID{"a", "b"}, notification.ReasonCleared, clearedAt))

	a, err := repo.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, notification.ReasonCleared, a.Reason)
	assert.Equal(t, "Message a", a.Message)

	// "b" was cleared before its add was recorded.
	b, err := repo.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, notification.ReasonCleared, b.Reason)
	assert.True(t, b.RemovedAt.Equal(clearedAt))

	require.NoError(t, repo.Upsert(ctx, addedEntry("b", notification.KindWarning, baseTime)))
	b, err = repo.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, notification.KindWarning, b.Kind)
	assert.Equal(t, notification.ReasonCleared, b.Reason)
}

func TestMongoHistoryRepository_List(t *testing.T) {
	t.Parallel()

	repo := setupHistoryRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, addedEntry("old", notification.KindInfo, baseTime.Add(-time.Hour))))
	require.NoError(t, repo.Upsert(ctx, addedEntry("e1", notification.KindError, baseTime)))
	require.NoError(t, repo.Upsert(ctx, addedEntry("e2", notification.KindError, baseTime.Add(time.Second))))
	require.NoError(t, repo.Upsert(ctx, addedEntry("s1", notification.KindSuccess, baseTime.Add(2*time.Second))))
	require.NoError(t, repo.MarkRemoved(ctx, []notification.ID{"e1"}, notification.ReasonDismissed, baseTime.Add(3*time.Second)))

	t.Run("all, newest first", func(t *testing.T) {
		entries, err := repo.List(ctx, notification.HistoryFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, notification.ID("s1"), entries[0].ID)
		assert.Equal(t, notification.ID("old"), entries[3].ID)
	})

	t.Run("by kind", func(t *testing.T) {
		entries, err := repo.List(ctx, notification.HistoryFilter{Kind: notification.KindError})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, notification.ID("e2"), entries[0].ID)
	})

	t.Run("by reason", func(t *testing.T) {
		entries, err := repo.List(ctx, notification.HistoryFilter{Reason: notification.ReasonDismissed})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, notification.ID("e1"), entries[0].ID)
	})

	t.Run("since and limit", func(t *testing.T) {
		entries, err := repo.List(ctx, notification.HistoryFilter{Since: baseTime, Limit: 2})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, notification.ID("s1"), entries[0].ID)
		assert.Equal(t, notification.ID("e2"), entries[1].ID)
	})

	t.Run("no match is empty, not nil", func(t *testing.T) {
		entries, err := repo.List(ctx, notification.HistoryFilter{Kind: notification.KindWarning})
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

func TestMongoHistoryRepository_Validation(t *testing.T) {
	t.Parallel()

	repo := setupHistoryRepository(t)
	ctx := context.Background()

	require.ErrorIs(t, repo.Upsert(ctx, notification.HistoryEntry{}), errs.ErrInvalidInput)

	_, err := repo.FindByID(ctx, "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	_, err = repo.FindByID(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

var (
	_ eventbus.HistoryWriter = (*mongodb.MongoHistoryRepository)(nil)
)
