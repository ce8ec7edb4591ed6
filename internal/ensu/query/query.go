package query

import (
	"fmt"
	"strconv"

	"github.com/farxc/ensu_insecurity/internal/ensu/schema"
	"github.com/farxc/ensu_insecurity/internal/ensu/text"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/ensu/utils"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// SelectCanonical projects the mapped source columns and renames them to the canonical names.
func SelectCanonical(df dataframe.DataFrame, mapping schema.Mapping) (dataframe.DataFrame, error) {
	order := schema.Required
	sources := make([]string, 0, len(order))
	for _, canonical := range order {
		src, ok := mapping[canonical]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("%w: %s", types.ErrSchemaMissingField, canonical)
		}
		sources = append(sources, src)
	}

	result := df.Select(sources)
	if result.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("error selecting columns: %v", result.Error())
	}

	for i, canonical := range order {
		result = result.Rename(canonical, sources[i])
	}
	if result.Error() != nil {
		return dataframe.DataFrame{}, fmt.Errorf("error renaming columns: %v", result.Error())
	}

	return result, nil
}

type FilterOptions struct {
	TargetEntity string
	ValidCodes   []int
	// ResolveCodes maps numeric entity values through the INEGI state catalog.
	ResolveCodes bool
}

// normalizeColumns rewrites the canonical text columns to their comparison form and the
// response code to its integer form ("" when it cannot be coerced).
func normalizeColumns(df dataframe.DataFrame, resolveCodes bool) dataframe.DataFrame {
	n := df.Nrow()
	entities := make([]string, n)
	municipalities := make([]string, n)
	codes := make([]string, n)

	for i := 0; i < n; i++ {
		ent := utils.GetStr(types.ColEntity, i, &df)
		if resolveCodes {
			entities[i] = text.ResolveEntity(ent)
		} else {
			entities[i] = text.Normalize(ent)
		}
		municipalities[i] = text.Normalize(utils.GetStr(types.ColMunicipality, i, &df))
		if code, ok := utils.ParseCode(utils.GetStr(types.ColResponseCode, i, &df)); ok {
			codes[i] = strconv.Itoa(code)
		}
	}

	return df.
		Mutate(series.New(entities, series.String, types.ColEntity)).
		Mutate(series.New(municipalities, series.String, types.ColMunicipality)).
		Mutate(series.New(codes, series.String, types.ColResponseCode))
}

func filterEq(df dataframe.DataFrame, col string, cmp series.Comparator, value interface{}) dataframe.DataFrame {
	if df.Nrow() == 0 {
		return df
	}
	return df.Filter(dataframe.F{Colname: col, Comparator: cmp, Comparando: value})
}

// FilterResponses keeps the rows of a canonical dataframe that belong to the target entity
// and carry a valid response code. Every dropped row lands in exactly one FilterStats bucket:
// missing entity or municipality first, then other entity, then invalid code.
func FilterResponses(df dataframe.DataFrame, opts FilterOptions, appLogger *logger.Logger) (dataframe.DataFrame, types.FilterStats, error) {
	const component = "RowFilter"

	stats := types.FilterStats{TotalRows: df.Nrow()}
	target := text.ResolveEntity(opts.TargetEntity)
	if target == "" {
		return dataframe.DataFrame{}, stats, fmt.Errorf("target entity is empty")
	}

	valid := make([]string, 0, len(opts.ValidCodes))
	for _, c := range opts.ValidCodes {
		valid = append(valid, strconv.Itoa(c))
	}

	current := normalizeColumns(df, opts.ResolveCodes)
	if current.Error() != nil {
		return dataframe.DataFrame{}, stats, fmt.Errorf("error normalizing columns: %v", current.Error())
	}

	// Empty entity or municipality rows are dropped, never coerced to a placeholder.
	before := current.Nrow()
	current = filterEq(current, types.ColEntity, series.Neq, "")
	current = filterEq(current, types.ColMunicipality, series.Neq, "")
	stats.MissingText = before - current.Nrow()

	before = current.Nrow()
	current = filterEq(current, types.ColEntity, series.Eq, target)
	stats.OtherEntity = before - current.Nrow()

	before = current.Nrow()
	current = filterEq(current, types.ColResponseCode, series.In, valid)
	stats.InvalidCode = before - current.Nrow()

	if current.Error() != nil {
		return dataframe.DataFrame{}, stats, fmt.Errorf("error filtering rows: %v", current.Error())
	}

	stats.TargetRows = current.Nrow()
	appLogger.Debug(component, "Row filter completed: target=%s total=%d kept=%d invalidCode=%d missingText=%d otherEntity=%d",
		target, stats.TotalRows, stats.TargetRows, stats.InvalidCode, stats.MissingText, stats.OtherEntity)

	return current, stats, nil
}
