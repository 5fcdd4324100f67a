// Package database provides storage backends for pushed topic updates.
package database

import (
	"context"
	"fmt"

	"github.com/bryan-buckman/pushfeed/internal/model"
)

// SweepBatchSize is the number of keys removed per DELETE statement.
const SweepBatchSize = 1000

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// PutUpdates upserts all updates in one transaction. A record with an
	// existing key is overwritten.
	PutUpdates(ctx context.Context, updates []model.TopicUpdate) error

	// QueryUpdates returns the newest updates first.
	QueryUpdates(ctx context.Context, q model.UpdateQuery) ([]model.TopicUpdate, error)

	// SweepUpdates keeps the newest keep records and deletes the rest,
	// returning the number of deleted records.
	SweepUpdates(ctx context.Context, keep int) (int64, error)

	CountUpdates(ctx context.Context) (int64, error)

	// GetTopics returns one summary per distinct (topic, callback) pair
	// with a non-empty topic.
	GetTopics(ctx context.Context) ([]model.TopicSummary, error)
}

// Open opens the store for the named driver: "sqlite" or "postgres".
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return New(dsn)
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
