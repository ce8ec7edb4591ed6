package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

type Storage struct {
	Aggregates interface {
		UpsertAggregate(ctx context.Context, agg *MunicipalityAggregate) error
		GetAggregates(ctx context.Context, filter AggregateFilter) ([]MunicipalityAggregate, error)
		GetPeriods(ctx context.Context) ([]PeriodSummary, error)
		GetMunicipalitySeries(ctx context.Context, municipality string) ([]MunicipalityAggregate, error)
	}

	IngestionHistory interface {
		InsertIngestionHistory(ctx context.Context, history *IngestionHistory) error
		GetLatest(ctx context.Context, limit int) ([]IngestionHistory, error)
		UpdateIngestionStatus(ctx context.Context, id int64, status, message string) error
	}
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		Aggregates:       &AggregatesStore{db: db},
		IngestionHistory: &IngestionHistoryStore{db: db},
	}
}

// Migrate creates the tables if they are missing. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
