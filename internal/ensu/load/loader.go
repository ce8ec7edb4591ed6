package load

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/farxc/ensu_insecurity/internal/ensu/consolidate"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/farxc/ensu_insecurity/internal/store"
	"github.com/lib/pq"
)

// Stats counts what a load wrote.
type Stats struct {
	Upserted     int
	Unidentified int
	Histories    int
	Failures     int
}

// ToStoreAggregate flattens the code maps into the parallel arrays the table keeps,
// ordered by code.
func ToStoreAggregate(agg types.MunicipalityAggregate, runID string) store.MunicipalityAggregate {
	codes := make([]int, 0, len(agg.Counts))
	for c := range agg.Counts {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	row := store.MunicipalityAggregate{
		Entity:       agg.Entity,
		Municipality: agg.Municipality,
		Year:         agg.Period.Year,
		Quarter:      agg.Period.Quarter,
		Total:        agg.Total,
		Codes:        make(pq.Int64Array, 0, len(codes)),
		Counts:       make(pq.Int64Array, 0, len(codes)),
		Percentages:  make(pq.Float64Array, 0, len(codes)),
		SourceFile:   agg.Source.Path,
		SourceRows:   agg.Source.TargetRows,
		RunID:        runID,
	}
	for _, c := range codes {
		row.Codes = append(row.Codes, int64(c))
		row.Counts = append(row.Counts, int64(agg.Counts[c]))
		row.Percentages = append(row.Percentages, agg.Percentages[c])
	}
	return row
}

func historyStatus(s types.FileStatus) string {
	switch s {
	case types.FileProcessed, types.FileKept:
		return store.StatusInProgress
	default:
		return store.StatusSkipped
	}
}

// LoadResult persists the retained records file by file. Each file gets an ingestion
// history row that starts in progress and ends as success or failure; skipped files are
// recorded as skipped. Records with an unidentified period have no key in the table and
// are left to the CSV outputs.
func LoadResult(ctx context.Context, result consolidate.Result, summary types.RunSummary, storage *store.Storage, appLogger *logger.Logger) (Stats, error) {
	const component = "Loader"
	appLogger.Info(component, "Starting data load: runID=%s files=%d records=%d", summary.RunID, len(summary.Files), len(result.Records))

	retained := make(map[string][]types.MunicipalityAggregate)
	for _, r := range result.Records {
		retained[r.Source.Path] = append(retained[r.Source.Path], r)
	}

	var stats Stats
	var errs []error
	for _, f := range summary.Files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		history := &store.IngestionHistory{
			RunID:        summary.RunID,
			SourceFile:   f.File.Path,
			Checksum:     f.File.Checksum,
			Period:       f.File.Period.String(),
			Status:       historyStatus(f.Status),
			TargetRows:   f.Stats.TargetRows,
			ErrorMessage: f.ErrMessage,
		}
		if err := storage.IngestionHistory.InsertIngestionHistory(ctx, history); err != nil {
			appLogger.Error(component, "Failed to insert ingestion history: file=%s error=%v", f.File.Path, err)
			stats.Failures++
			errs = append(errs, err)
			continue
		}
		stats.Histories++

		if history.Status == store.StatusSkipped {
			continue
		}

		var fileErr error
		for _, agg := range retained[f.File.Path] {
			if !agg.Period.Identified {
				appLogger.Warn(component, "Not persisting record with unidentified period: file=%s municipality=%s", f.File.Path, agg.Municipality)
				stats.Unidentified++
				continue
			}
			row := ToStoreAggregate(agg, summary.RunID)
			if err := storage.Aggregates.UpsertAggregate(ctx, &row); err != nil {
				appLogger.Error(component, "Failed to upsert aggregate: file=%s municipality=%s period=%s error=%v", f.File.Path, agg.Municipality, agg.Period, err)
				fileErr = errors.Join(fileErr, err)
				continue
			}
			stats.Upserted++
		}

		status, message := store.StatusSuccess, ""
		if fileErr != nil {
			status, message = store.StatusFailure, fileErr.Error()
			stats.Failures++
			errs = append(errs, fmt.Errorf("%s: %w", f.File.Path, fileErr))
		}
		if err := storage.IngestionHistory.UpdateIngestionStatus(ctx, history.ID, status, message); err != nil {
			appLogger.Error(component, "Failed to update final status: id=%d status=%s error=%v", history.ID, status, err)
			errs = append(errs, err)
		}
	}

	appLogger.Info(component, "Data load finished: runID=%s upserted=%d unidentified=%d histories=%d failures=%d",
		summary.RunID, stats.Upserted, stats.Unidentified, stats.Histories, stats.Failures)
	return stats, errors.Join(errs...)
}
