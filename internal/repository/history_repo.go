package repository

import (
	"context"
	"errors"

	"milestonez/internal/model"
)

var ErrHistoryNotFound = errors.New("history not found")

const historyTable = "history"

// HistoryStore persists the latest serialized plan per (user, project).
type HistoryStore interface {
	EnsureSchema(ctx context.Context) error
	// Put inserts or replaces the record with the same id.
	Put(ctx context.Context, rec model.HistoryRecord) error
	// Get matches on the (user_id, project_id) columns; the composite id is not unique per pair.
	Get(ctx context.Context, userID, projectID string) (*model.HistoryRecord, error)
	ListAll(ctx context.Context) ([]model.HistoryRecord, error)
	Ping(ctx context.Context) error
	Close() error
}
