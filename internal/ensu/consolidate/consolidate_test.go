package consolidate

import (
	"bytes"
	"testing"
	"time"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func agg(mun string, p types.Period, path string, rows int, mod time.Time) types.MunicipalityAggregate {
	return types.MunicipalityAggregate{
		Entity:       "YUCATAN",
		Municipality: mun,
		Period:       p,
		Counts:       map[int]int{1: rows},
		Percentages:  map[int]float64{1: 100, 2: 0, 9: 0},
		Total:        rows,
		Source:       types.Source{Path: path, TargetRows: rows, ModTime: mod},
	}
}

func TestMoreTargetRowsWins(t *testing.T) {
	q1 := types.NewPeriod(2022, 1)
	small := agg("MERIDA", q1, "a.csv", 10, base.Add(time.Hour))
	large := agg("MERIDA", q1, "b.csv", 50, base)

	var buf bytes.Buffer
	res := Consolidate([]types.MunicipalityAggregate{small, large}, logger.New(&buf, logger.LevelInfo))

	require.Len(t, res.Records, 1)
	assert.Equal(t, "b.csv", res.Records[0].Source.Path)
	require.Len(t, res.Superseded, 1)
	assert.Equal(t, "a.csv", res.Superseded[0].Record.Source.Path)
	assert.Equal(t, "b.csv", res.Superseded[0].RetainedSource.Path)
	assert.Contains(t, buf.String(), "superseded=a.csv")

	// Order of arrival does not matter.
	res = Consolidate([]types.MunicipalityAggregate{large, small}, logger.Discard())
	assert.Equal(t, "b.csv", res.Records[0].Source.Path)
	assert.Equal(t, "a.csv", res.Superseded[0].Record.Source.Path)
}

func TestTieBreakByModTimeThenPath(t *testing.T) {
	q := types.NewPeriod(2023, 3)
	older := agg("UMAN", q, "a.csv", 20, base)
	newer := agg("UMAN", q, "b.csv", 20, base.Add(24*time.Hour))

	res := Consolidate([]types.MunicipalityAggregate{newer, older}, logger.Discard())
	assert.Equal(t, "b.csv", res.Records[0].Source.Path)
	assert.Equal(t, "more recently modified source", res.Superseded[0].Reason)

	x := agg("UMAN", q, "z.csv", 20, base)
	y := agg("UMAN", q, "m.csv", 20, base)
	res = Consolidate([]types.MunicipalityAggregate{x, y}, logger.Discard())
	assert.Equal(t, "m.csv", res.Records[0].Source.Path)
	assert.Equal(t, "lexicographic source path", res.Superseded[0].Reason)
}

func TestUnidentifiedAreNotDuplicates(t *testing.T) {
	a := agg("MERIDA", types.Unidentified, "a.csv", 10, base)
	b := agg("MERIDA", types.Unidentified, "b.csv", 50, base)

	res := Consolidate([]types.MunicipalityAggregate{a, b}, logger.Discard())
	assert.Len(t, res.Records, 2)
	assert.Empty(t, res.Superseded)
}

func TestChronologicalOrder(t *testing.T) {
	in := []types.MunicipalityAggregate{
		agg("MERIDA", types.Unidentified, "u.csv", 1, base),
		agg("TEKAX", types.NewPeriod(2023, 1), "c.csv", 1, base),
		agg("MERIDA", types.NewPeriod(2023, 1), "c.csv", 1, base),
		agg("MERIDA", types.NewPeriod(2016, 4), "a.csv", 1, base),
	}

	res := Consolidate(in, logger.Discard())

	var got []string
	for _, r := range res.Records {
		got = append(got, r.Period.String()+" "+r.Municipality)
	}
	assert.Equal(t, []string{"2016-Q4 MERIDA", "2023-Q1 MERIDA", "2023-Q1 TEKAX", "unidentified MERIDA"}, got)
}

func TestSummarize(t *testing.T) {
	records := []types.MunicipalityAggregate{
		agg("MERIDA", types.NewPeriod(2016, 4), "a.csv", 10, base),
		agg("MERIDA", types.NewPeriod(2023, 1), "b.csv", 30, base),
		agg("TEKAX", types.NewPeriod(2023, 1), "b.csv", 5, base),
		agg("TEKAX", types.Unidentified, "u.csv", 5, base),
	}

	stats := Summarize(records, []int{1, 2, 9})
	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 2, stats.Municipalities)
	assert.Equal(t, types.NewPeriod(2016, 4), stats.FirstPeriod)
	assert.Equal(t, types.NewPeriod(2023, 1), stats.LastPeriod)
	assert.Equal(t, 1, stats.Unidentified)
	assert.Equal(t, 50, stats.Responses)
	assert.Equal(t, map[int]int{2016: 1, 2023: 2}, stats.RowsByYear)
	assert.Equal(t, 100.0, stats.MeanPercentage[1])
}
