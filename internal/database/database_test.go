package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bryan-buckman/pushfeed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSQLite(t *testing.T) Store {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newPostgres(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("PUSHFEED_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PUSHFEED_TEST_POSTGRES_DSN not set")
	}
	db, err := NewPostgres(dsn)
	require.NoError(t, err)
	_, err = db.conn.Exec("TRUNCATE topic_updates")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func update(i int, callback string) model.TopicUpdate {
	return model.TopicUpdate{
		Key:      fmt.Sprintf("key_%06d", i),
		Topic:    "http://example.com/feed",
		Title:    fmt.Sprintf("title %d", i),
		Content:  fmt.Sprintf("content %d", i),
		Link:     fmt.Sprintf("http://example.com/%d", i),
		Callback: callback,
		Updated:  baseTime.Add(time.Duration(i) * time.Millisecond),
	}
}

func seed(t *testing.T, s Store, n int, callback string) {
	t.Helper()
	updates := make([]model.TopicUpdate, 0, n)
	for i := 0; i < n; i++ {
		updates = append(updates, update(i, callback))
	}
	require.NoError(t, s.PutUpdates(context.Background(), updates))
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, newSQLite)
}

func TestPostgresStore(t *testing.T) {
	runStoreTests(t, newPostgres)
}

func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("put and query newest first", func(t *testing.T) {
		s := open(t)
		seed(t, s, 5, "a")

		got, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 3})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "key_000004", got[0].Key)
		assert.Equal(t, "key_000003", got[1].Key)
		assert.Equal(t, "key_000002", got[2].Key)
		assert.True(t, got[0].Updated.Equal(baseTime.Add(4*time.Millisecond)))
		assert.Equal(t, "http://example.com/feed", got[0].Topic)
		assert.Equal(t, "a", got[0].Callback)
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		s := open(t)
		first := update(1, "a")
		require.NoError(t, s.PutUpdates(ctx, []model.TopicUpdate{first}))

		second := first
		second.Title = "changed"
		second.Updated = first.Updated.Add(time.Hour)
		require.NoError(t, s.PutUpdates(ctx, []model.TopicUpdate{second}))
		require.NoError(t, s.PutUpdates(ctx, []model.TopicUpdate{second}))

		n, err := s.CountUpdates(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "changed", got[0].Title)
		assert.True(t, got[0].Updated.Equal(second.Updated))
	})

	t.Run("ties ordered by key", func(t *testing.T) {
		s := open(t)
		a, b := update(1, ""), update(2, "")
		b.Updated = a.Updated
		require.NoError(t, s.PutUpdates(ctx, []model.TopicUpdate{a, b}))

		got, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, b.Key, got[0].Key)
	})

	t.Run("callback filter", func(t *testing.T) {
		s := open(t)
		seed(t, s, 3, "a")
		other := update(10, "b")
		require.NoError(t, s.PutUpdates(ctx, []model.TopicUpdate{other}))

		got, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 25, Callback: "b"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, other.Key, got[0].Key)

		got, err = s.QueryUpdates(ctx, model.UpdateQuery{Limit: 25, Callback: "missing"})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.QueryUpdates(ctx, model.UpdateQuery{Limit: 25})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("non-positive limit", func(t *testing.T) {
		s := open(t)
		seed(t, s, 2, "")
		got, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 0})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty put", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.PutUpdates(ctx, nil))
	})

	t.Run("sweep empty store", func(t *testing.T) {
		s := open(t)
		deleted, err := s.SweepUpdates(ctx, 50000)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("sweep keeps newest across batches", func(t *testing.T) {
		s := open(t)
		seed(t, s, 2500, "")

		deleted, err := s.SweepUpdates(ctx, 1200)
		require.NoError(t, err)
		assert.Equal(t, int64(1300), deleted)

		n, err := s.CountUpdates(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1200), n)

		got, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, "key_002499", got[0].Key)

		// The oldest survivor is record 1300.
		all, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 5000})
		require.NoError(t, err)
		require.Len(t, all, 1200)
		assert.Equal(t, "key_001300", all[len(all)-1].Key)
	})

	t.Run("sweep below threshold", func(t *testing.T) {
		s := open(t)
		seed(t, s, 10, "")
		deleted, err := s.SweepUpdates(ctx, 50000)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("sweep default retention", func(t *testing.T) {
		if testing.Short() {
			t.Skip("large sweep skipped in short mode")
		}
		s := open(t)
		seed(t, s, 60000, "")

		deleted, err := s.SweepUpdates(ctx, model.DefaultRetentionKeep)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), deleted)

		n, err := s.CountUpdates(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(model.DefaultRetentionKeep), n)

		all, err := s.QueryUpdates(ctx, model.UpdateQuery{Limit: 2 * model.DefaultRetentionKeep})
		require.NoError(t, err)
		require.Len(t, all, model.DefaultRetentionKeep)
		assert.Equal(t, "key_059999", all[0].Key)
		assert.Equal(t, "key_010000", all[len(all)-1].Key)
	})

	t.Run("topics", func(t *testing.T) {
		s := open(t)
		seed(t, s, 3, "a")
		b := update(7, "b")
		b.Topic = "http://example.com/other"
		untitled := update(8, "b")
		untitled.Topic = ""
		require.NoError(t, s.PutUpdates(ctx, []model.TopicUpdate{b, untitled}))

		topics, err := s.GetTopics(ctx)
		require.NoError(t, err)
		require.Len(t, topics, 2)
		assert.Equal(t, "a", topics[0].Callback)
		assert.Equal(t, "http://example.com/feed", topics[0].Topic)
		assert.Equal(t, int64(3), topics[0].Entries)
		assert.True(t, topics[0].LastUpdated.Equal(baseTime.Add(2*time.Millisecond)))
		assert.Equal(t, "b", topics[1].Callback)
		assert.Equal(t, "http://example.com/other", topics[1].Topic)
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	s, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "SQLite", s.DatabaseType())
}
