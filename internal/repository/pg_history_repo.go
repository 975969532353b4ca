package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"milestonez/internal/model"
	"milestonez/pkg/logger"
	"milestonez/pkg/metrics"
	"milestonez/pkg/otel"
)

type PostgresHistoryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresHistoryRepository(db *pgxpool.Pool, logger *zap.Logger) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db, logger: logger}
}

func (r *PostgresHistoryRepository) EnsureSchema(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS history (
            seq        BIGSERIAL,
            id         TEXT PRIMARY KEY,
            user_id    TEXT NOT NULL,
            project_id TEXT NOT NULL,
            history    TEXT NOT NULL
        )
    `
	if _, err := r.db.Exec(ctx, query); err != nil {
		r.logger.Error("Failed to create history table", zap.Error(err))
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

// Put upserts rec. A replaced row takes a fresh seq and moves to the end of
// ListAll, matching INSERT OR REPLACE on SQLite.
func (r *PostgresHistoryRepository) Put(ctx context.Context, rec model.HistoryRecord) (err error) {
	ctx, span := otel.DBSpan(ctx, "postgresql", "put", historyTable)
	defer func() { otel.End(span, err) }()
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("put", historyTable, time.Since(start)) }()

	query := `
        INSERT INTO history (id, user_id, project_id, history)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE
        SET seq = nextval(pg_get_serial_sequence('history', 'seq')),
            user_id = EXCLUDED.user_id,
            project_id = EXCLUDED.project_id,
            history = EXCLUDED.history
    `
	if _, err = r.db.Exec(ctx, query, rec.ID, rec.UserID, rec.ProjectID, rec.History); err != nil {
		logger.WithTrace(ctx, r.logger).Error("Failed to put history",
			zap.String("id", rec.ID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to put history %s: %w", rec.ID, err)
	}
	return nil
}

func (r *PostgresHistoryRepository) Get(ctx context.Context, userID, projectID string) (_ *model.HistoryRecord, err error) {
	ctx, span := otel.DBSpan(ctx, "postgresql", "get", historyTable)
	defer func() { otel.End(span, err) }()
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("get", historyTable, time.Since(start)) }()

	query := `
        SELECT id, user_id, project_id, history
        FROM history
        WHERE user_id = $1 AND project_id = $2
    `

	var rec model.HistoryRecord
	err = r.db.QueryRow(ctx, query, userID, projectID).Scan(&rec.ID, &rec.UserID, &rec.ProjectID, &rec.History)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (r *PostgresHistoryRepository) ListAll(ctx context.Context) (_ []model.HistoryRecord, err error) {
	ctx, span := otel.DBSpan(ctx, "postgresql", "list", historyTable)
	defer func() { otel.End(span, err) }()
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("list", historyTable, time.Since(start)) }()

	rows, err := r.db.Query(ctx, `SELECT id, user_id, project_id, history FROM history ORDER BY seq`)
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

func (r *PostgresHistoryRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresHistoryRepository) Close() error {
	r.db.Close()
	return nil
}
