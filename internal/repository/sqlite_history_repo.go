package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"milestonez/internal/model"
	"milestonez/pkg/logger"
	"milestonez/pkg/metrics"
	"milestonez/pkg/otel"
)

type SQLiteHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteHistoryRepository(db *sql.DB, logger *zap.Logger) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db, logger: logger}
}

func (r *SQLiteHistoryRepository) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS history (
            id         TEXT PRIMARY KEY,
            user_id    TEXT NOT NULL,
            project_id TEXT NOT NULL,
            history    TEXT NOT NULL
        )
    `
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		r.logger.Error("Failed to create history table", zap.Error(err))
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

// Put writes rec, replacing any record with the same id.
func (r *SQLiteHistoryRepository) Put(ctx context.Context, rec model.HistoryRecord) (err error) {
	ctx, span := otel.DBSpan(ctx, "sqlite", "put", historyTable)
	defer func() { otel.End(span, err) }()
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("put", historyTable, time.Since(start)) }()

	query := `
        INSERT OR REPLACE INTO history (id, user_id, project_id, history)
        VALUES (?, ?, ?, ?)
    `
	if _, err = r.db.ExecContext(ctx, query, rec.ID, rec.UserID, rec.ProjectID, rec.History); err != nil {
		logger.WithTrace(ctx, r.logger).Error("Failed to put history",
			zap.String("id", rec.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to put history %s: %w", rec.ID, err)
	}

	logger.WithTrace(ctx, r.logger).Debug("History stored",
		zap.String("id", rec.ID),
		zap.Int("bytes", len(rec.History)),
	)
	return nil
}

func (r *SQLiteHistoryRepository) Get(ctx context.Context, userID, projectID string) (_ *model.HistoryRecord, err error) {
	ctx, span := otel.DBSpan(ctx, "sqlite", "get", historyTable)
	defer func() { otel.End(span, err) }()
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("get", historyTable, time.Since(start)) }()

	query := `
        SELECT id, user_id, project_id, history
        FROM history
        WHERE user_id = ? AND project_id = ?
    `

	var rec model.HistoryRecord
	err = r.db.QueryRowContext(ctx, query, userID, projectID).Scan(&rec.ID, &rec.UserID, &rec.ProjectID, &rec.History)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s project %s", ErrHistoryNotFound, userID, projectID)
	}
	if err != nil {
		logger.WithTrace(ctx, r.logger).Error("Failed to get history",
			zap.String("user_id", userID),
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get history for user %s project %s: %w", userID, projectID, err)
	}
	return &rec, nil
}

// ListAll returns every record in storage order.
func (r *SQLiteHistoryRepository) ListAll(ctx context.Context) (_ []model.HistoryRecord, err error) {
	ctx, span := otel.DBSpan(ctx, "sqlite", "list", historyTable)
	defer func() { otel.End(span, err) }()
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("list", historyTable, time.Since(start)) }()

	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, project_id, history FROM history ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}
	defer rows.Close()

	out := make([]model.HistoryRecord, 0)
	for rows.Next() {
		var rec model.HistoryRecord
		if err = rows.Scan(&rec.ID, &rec.UserID, &rec.ProjectID, &rec.History); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		out = append(out, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate histories: %w", err)
	}
	return out, nil
}

func (r *SQLiteHistoryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteHistoryRepository) Close() error {
	return r.db.Close()
}
