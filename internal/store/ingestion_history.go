package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type IngestionHistoryStore struct {
	db *sqlx.DB
}

var (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusFailure    = "failure"
	StatusSkipped    = "skipped"
)

func (ih *IngestionHistoryStore) InsertIngestionHistory(ctx context.Context, history *IngestionHistory) error {
	query := `INSERT INTO ingestion_history (
		run_id,
		source_file,
		checksum,
		period,
		status,
		target_rows,
		error_message
	) VALUES (
		:run_id,
		:source_file,
		:checksum,
		:period,
		:status,
		:target_rows,
		:error_message
	) RETURNING id, processed_at`

	rows, err := ih.db.NamedQueryContext(ctx, query, history)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion history for %s: %w", history.SourceFile, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&history.ID, &history.ProcessedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (ih *IngestionHistoryStore) GetLatest(ctx context.Context, limit int) ([]IngestionHistory, error) {
	query := `
	SELECT
		id, run_id, source_file, checksum, period, status, target_rows, error_message, processed_at
	FROM
		ingestion_history
	ORDER BY
		processed_at DESC, id DESC
	LIMIT $1`

	var out []IngestionHistory
	if err := ih.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query ingestion history: %w", err)
	}
	return out, nil
}

func (ih *IngestionHistoryStore) UpdateIngestionStatus(ctx context.Context, id int64, status, message string) error {
	query := `UPDATE ingestion_history SET status = $1, error_message = $2 WHERE id = $3`

	result, err := ih.db.ExecContext(ctx, query, status, message, id)
	if err != nil {
		return fmt.Errorf("failed to update ingestion status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("ingestion history %d not found", id)
	}
	return nil
}
