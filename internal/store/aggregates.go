package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type AggregatesStore struct {
	db *sqlx.DB
}

const aggregateColumns = `id, entity, municipality, year, quarter, total, codes, counts, percentages,
		source_file, source_rows, run_id, updated_at`

// UpsertAggregate writes one consolidated row. A later run replaces the row for the same
// municipality and period.
func (as *AggregatesStore) UpsertAggregate(ctx context.Context, agg *MunicipalityAggregate) error {
	query := `INSERT INTO municipality_aggregates (
		entity,
		municipality,
		year,
		quarter,
		total,
		codes,
		counts,
		percentages,
		source_file,
		source_rows,
		run_id,
		updated_at
	) VALUES (
		:entity,
		:municipality,
		:year,
		:quarter,
		:total,
		:codes,
		:counts,
		:percentages,
		:source_file,
		:source_rows,
		:run_id,
		NOW()
	)
	ON CONFLICT (entity, municipality, year, quarter) DO UPDATE SET
		total = EXCLUDED.total,
		codes = EXCLUDED.codes,
		counts = EXCLUDED.counts,
		percentages = EXCLUDED.percentages,
		source_file = EXCLUDED.source_file,
		source_rows = EXCLUDED.source_rows,
		run_id = EXCLUDED.run_id,
		updated_at = NOW()
	RETURNING id, updated_at`

	rows, err := as.db.NamedQueryContext(ctx, query, agg)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate %s/%s: %w", agg.Entity, agg.Municipality, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&agg.ID, &agg.UpdatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (as *AggregatesStore) GetAggregates(ctx context.Context, filter AggregateFilter) ([]MunicipalityAggregate, error) {
	query := `
	SELECT ` + aggregateColumns + `
	FROM
		municipality_aggregates
	WHERE
		($1 = 0 OR year = $1)
		AND ($2 = 0 OR quarter = $2)
		AND ($3 = '' OR municipality = $3)
	ORDER BY
		year, quarter, entity, municipality`

	var out []MunicipalityAggregate
	if err := as.db.SelectContext(ctx, &out, query, filter.Year, filter.Quarter, filter.Municipality); err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	return out, nil
}

func (as *AggregatesStore) GetPeriods(ctx context.Context) ([]PeriodSummary, error) {
	query := `
	SELECT
		year,
		quarter,
		COUNT(*) AS municipalities,
		COALESCE(SUM(total), 0) AS total_responses
	FROM
		municipality_aggregates
	GROUP BY
		year, quarter
	ORDER BY
		year, quarter`

	var out []PeriodSummary
	if err := as.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	return out, nil
}

func (as *AggregatesStore) GetMunicipalitySeries(ctx context.Context, municipality string) ([]MunicipalityAggregate, error) {
	query := `
	SELECT ` + aggregateColumns + `
	FROM
		municipality_aggregates
	WHERE
		municipality = $1
	ORDER BY
		year, quarter`

	var out []MunicipalityAggregate
	if err := as.db.SelectContext(ctx, &out, query, municipality); err != nil {
		return nil, fmt.Errorf("failed to query series for %s: %w", municipality, err)
	}
	return out, nil
}
