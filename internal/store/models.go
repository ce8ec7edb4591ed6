package store

import (
	"time"

	"github.com/lib/pq"
)

// MunicipalityAggregate represents the 'municipality_aggregates' table. Codes, Counts and
// Percentages are parallel arrays so the configured code set can change between runs.
type MunicipalityAggregate struct {
	ID           int64           `db:"id" json:"id"`
	Entity       string          `db:"entity" json:"entity"`
	Municipality string          `db:"municipality" json:"municipality"`
	Year         int             `db:"year" json:"year"`
	Quarter      int             `db:"quarter" json:"quarter"`
	Total        int             `db:"total" json:"total_valid_responses"`
	Codes        pq.Int64Array   `db:"codes" json:"codes"`
	Counts       pq.Int64Array   `db:"counts" json:"counts"`
	Percentages  pq.Float64Array `db:"percentages" json:"percentages"`
	SourceFile   string          `db:"source_file" json:"source_file"`
	SourceRows   int             `db:"source_rows" json:"source_rows"`
	RunID        string          `db:"run_id" json:"run_id"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// IngestionHistory represents the 'ingestion_history' table, one row per source file per run.
type IngestionHistory struct {
	ID           int64     `db:"id" json:"id"`
	RunID        string    `db:"run_id" json:"run_id"`
	SourceFile   string    `db:"source_file" json:"source_file"`
	Checksum     string    `db:"checksum" json:"checksum"`
	Period       string    `db:"period" json:"period"`
	Status       string    `db:"status" json:"status"`
	TargetRows   int       `db:"target_rows" json:"target_rows"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt  time.Time `db:"processed_at" json:"processed_at"`
}

type PeriodSummary struct {
	Year           int `db:"year" json:"year"`
	Quarter        int `db:"quarter" json:"quarter"`
	Municipalities int `db:"municipalities" json:"municipalities"`
	TotalResponses int `db:"total_responses" json:"total_responses"`
}

// AggregateFilter narrows GetAggregates. Zero values match everything.
type AggregateFilter struct {
	Year         int
	Quarter      int
	Municipality string
}
