package consolidate

import (
	"fmt"
	"sort"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
)

type Result struct {
	Records    []types.MunicipalityAggregate
	Superseded []types.Superseded
}

// prefer reports whether a should be retained over b, and why. The order is: more
// target-entity rows, then the more recently modified file, then the smaller path.
func prefer(a, b types.Source) (bool, string) {
	if a.TargetRows != b.TargetRows {
		return a.TargetRows > b.TargetRows, fmt.Sprintf("target rows %d vs %d", a.TargetRows, b.TargetRows)
	}
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime), "more recently modified source"
	}
	return a.Path < b.Path, "lexicographic source path"
}

// Consolidate merges per-file aggregates into one dataset with at most one record per
// (entity, municipality, year, quarter). Unidentified-period records are never collapsed.
// Every superseded record is logged and returned.
func Consolidate(aggs []types.MunicipalityAggregate, appLogger *logger.Logger) Result {
	const component = "Consolidator"

	var result Result
	retained := make(map[string]int)

	for _, a := range aggs {
		if !a.Period.Identified {
			result.Records = append(result.Records, a)
			continue
		}

		idx, dup := retained[a.Key()]
		if !dup {
			retained[a.Key()] = len(result.Records)
			result.Records = append(result.Records, a)
			continue
		}

		current := result.Records[idx]
		winner, loser := current, a
		wins, reason := prefer(a.Source, current.Source)
		if wins {
			winner, loser = a, current
			result.Records[idx] = a
		} else {
			_, reason = prefer(current.Source, a.Source)
		}

		result.Superseded = append(result.Superseded, types.Superseded{
			Record:         loser,
			RetainedSource: winner.Source,
			Reason:         reason,
		})
		appLogger.Info(component, "Duplicate period resolved: key=%s retained=%s (rows=%d) superseded=%s (rows=%d) reason=%s",
			a.Key(), winner.Source.Path, winner.Source.TargetRows, loser.Source.Path, loser.Source.TargetRows, reason)
	}

	SortChronologically(result.Records)
	return result
}

// SortChronologically orders by year, quarter, entity and municipality, unidentified last.
func SortChronologically(records []types.MunicipalityAggregate) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Period != b.Period {
			return a.Period.Less(b.Period)
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Municipality != b.Municipality {
			return a.Municipality < b.Municipality
		}
		return a.Source.Path < b.Source.Path
	})
}

// Stats summarizes a consolidated dataset.
type Stats struct {
	Rows           int             `json:"rows"`
	Municipalities int             `json:"municipalities"`
	FirstPeriod    types.Period    `json:"first_period"`
	LastPeriod     types.Period    `json:"last_period"`
	Unidentified   int             `json:"unidentified"`
	Responses      int             `json:"responses"`
	MeanPercentage map[int]float64 `json:"mean_percentage"`
	RowsByYear     map[int]int     `json:"rows_by_year"`
}

func Summarize(records []types.MunicipalityAggregate, codes []int) Stats {
	stats := Stats{
		Rows:           len(records),
		MeanPercentage: make(map[int]float64, len(codes)),
		RowsByYear:     make(map[int]int),
	}

	municipalities := make(map[string]bool)
	for _, r := range records {
		municipalities[r.Entity+"|"+r.Municipality] = true
		stats.Responses += r.Total
		for _, c := range codes {
			stats.MeanPercentage[c] += r.Percentages[c]
		}

		if !r.Period.Identified {
			stats.Unidentified++
			continue
		}
		stats.RowsByYear[r.Period.Year]++
		if !stats.FirstPeriod.Identified || r.Period.Less(stats.FirstPeriod) {
			stats.FirstPeriod = r.Period
		}
		if !stats.LastPeriod.Identified || stats.LastPeriod.Less(r.Period) {
			stats.LastPeriod = r.Period
		}
	}
	stats.Municipalities = len(municipalities)

	if len(records) > 0 {
		for _, c := range codes {
			stats.MeanPercentage[c] /= float64(len(records))
		}
	}
	return stats
}
