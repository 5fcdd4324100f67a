// Package database provides SQLite storage for topic updates.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bryan-buckman/pushfeed/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
// ":memory:" gives a private in-memory database.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps an
	// in-memory database alive for the lifetime of the pool.
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS topic_updates (
		key TEXT PRIMARY KEY,
		topic TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		callback TEXT NOT NULL DEFAULT '',
		updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_topic_updates_updated ON topic_updates(updated DESC, key DESC);
	CREATE INDEX IF NOT EXISTS idx_topic_updates_callback ON topic_updates(callback, updated DESC);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// PutUpdates upserts updates in a single transaction.
func (db *DB) PutUpdates(ctx context.Context, updates []model.TopicUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO topic_updates (key, topic, title, content, link, callback, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			topic = excluded.topic,
			title = excluded.title,
			content = excluded.content,
			link = excluded.link,
			callback = excluded.callback,
			updated = excluded.updated`)
	if err != nil {
		return fmt.Errorf("prepare put: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.Key, u.Topic, u.Title, u.Content, u.Link, u.Callback, u.Updated.UnixNano()); err != nil {
			return fmt.Errorf("put %s: %w", u.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put: %w", err)
	}
	return nil
}

// QueryUpdates returns up to q.Limit updates, newest first, optionally
// restricted to one callback.
func (db *DB) QueryUpdates(ctx context.Context, q model.UpdateQuery) ([]model.TopicUpdate, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	var rows *sql.Rows
	var err error
	if q.Callback == "" {
		rows, err = db.conn.QueryContext(ctx, `
			SELECT key, topic, title, content, link, callback, updated
			FROM topic_updates ORDER BY updated DESC, key DESC LIMIT ?`, q.Limit)
	} else {
		rows, err = db.conn.QueryContext(ctx, `
			SELECT key, topic, title, content, link, callback, updated
			FROM topic_updates WHERE callback = ? ORDER BY updated DESC, key DESC LIMIT ?`, q.Callback, q.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()
	return scanUpdates(rows)
}

// SweepUpdates deletes everything but the newest keep records, one batch of
// keys at a time.
func (db *DB) SweepUpdates(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var total int64
	for {
		res, err := db.conn.ExecContext(ctx, `
			DELETE FROM topic_updates WHERE key IN (
				SELECT key FROM topic_updates ORDER BY updated DESC, key DESC LIMIT ? OFFSET ?
			)`, SweepBatchSize, keep)
		if err != nil {
			return total, fmt.Errorf("sweep updates: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("sweep updates: %w", err)
		}
		total += n
		if n == 0 {
			return total, nil
		}
	}
}

// CountUpdates returns the number of stored updates.
func (db *DB) CountUpdates(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM topic_updates").Scan(&n); err != nil {
		return 0, fmt.Errorf("count updates: %w", err)
	}
	return n, nil
}

// GetTopics summarizes the known topics grouped by callback.
func (db *DB) GetTopics(ctx context.Context) ([]model.TopicSummary, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT topic, callback, COUNT(*), MAX(updated)
		FROM topic_updates WHERE topic != ''
		GROUP BY topic, callback ORDER BY callback, topic`)
	if err != nil {
		return nil, fmt.Errorf("get topics: %w", err)
	}
	defer rows.Close()
	return scanTopics(rows)
}

// --- Helper functions ---

func scanUpdates(rows *sql.Rows) ([]model.TopicUpdate, error) {
	var updates []model.TopicUpdate
	for rows.Next() {
		var u model.TopicUpdate
		var updated int64
		if err := rows.Scan(&u.Key, &u.Topic, &u.Title, &u.Content, &u.Link, &u.Callback, &updated); err != nil {
			return nil, err
		}
		u.Updated = time.Unix(0, updated)
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func scanTopics(rows *sql.Rows) ([]model.TopicSummary, error) {
	var topics []model.TopicSummary
	for rows.Next() {
		var t model.TopicSummary
		var last int64
		if err := rows.Scan(&t.Topic, &t.Callback, &t.Entries, &last); err != nil {
			return nil, err
		}
		t.LastUpdated = time.Unix(0, last)
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
