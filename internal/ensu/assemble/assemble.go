package assemble

import (
	"sort"

	"github.com/farxc/ensu_insecurity/internal/ensu/converter"
	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/go-gota/gota/dataframe"
)

type groupKey struct {
	entity       string
	municipality string
}

/*
Aggregate groups records by (entity, municipality) and counts them per valid code.
Total is the sum of valid-code counts; records with any other code are not counted.
A group whose total is zero gets no percentages and is returned as flagged instead of emitted.
*/
func Aggregate(records []types.ResponseRecord, codes []int, period types.Period, source types.Source) ([]types.MunicipalityAggregate, []types.FlaggedGroup) {
	validCode := make(map[int]bool, len(codes))
	for _, c := range codes {
		validCode[c] = true
	}

	groups := make(map[groupKey]*types.MunicipalityAggregate)
	var order []groupKey

	getOrCreateGroup := func(k groupKey) *types.MunicipalityAggregate {
		if _, exists := groups[k]; !exists {
			counts := make(map[int]int, len(codes))
			for _, c := range codes {
				counts[c] = 0
			}
			groups[k] = &types.MunicipalityAggregate{
				Entity:       k.entity,
				Municipality: k.municipality,
				Period:       period,
				Counts:       counts,
				Source:       source,
			}
			order = append(order, k)
		}
		return groups[k]
	}

	for _, r := range records {
		g := getOrCreateGroup(groupKey{entity: r.Entity, municipality: r.Municipality})
		if validCode[r.Code] {
			g.Counts[r.Code]++
			g.Total++
		}
	}

	var aggregates []types.MunicipalityAggregate
	var flagged []types.FlaggedGroup
	for _, k := range order {
		g := groups[k]
		if g.Total == 0 {
			flagged = append(flagged, types.FlaggedGroup{Entity: g.Entity, Municipality: g.Municipality, Path: source.Path})
			continue
		}
		g.Percentages = make(map[int]float64, len(codes))
		for _, c := range codes {
			g.Percentages[c] = 100 * float64(g.Counts[c]) / float64(g.Total)
		}
		aggregates = append(aggregates, *g)
	}

	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].Entity != aggregates[j].Entity {
			return aggregates[i].Entity < aggregates[j].Entity
		}
		return aggregates[i].Municipality < aggregates[j].Municipality
	})

	return aggregates, flagged
}

// ByMunicipality aggregates a filtered canonical dataframe.
func ByMunicipality(df dataframe.DataFrame, codes []int, period types.Period, source types.Source) ([]types.MunicipalityAggregate, []types.FlaggedGroup) {
	return Aggregate(converter.DfToResponseRecords(df), codes, period, source)
}
