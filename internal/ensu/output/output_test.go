package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var codes = []int{1, 2, 9}

func sample(p types.Period) types.MunicipalityAggregate {
	return types.MunicipalityAggregate{
		Entity:       "YUCATAN",
		Municipality: "MERIDA",
		Period:       p,
		Counts:       map[int]int{1: 1, 2: 1, 9: 1},
		Percentages:  map[int]float64{1: 100.0 / 3, 2: 100.0 / 3, 9: 100.0 / 3},
		Total:        3,
		Source:       types.Source{Path: "in/conjunto_de_datos_ensu_cb_0625.csv", TargetRows: 3},
	}
}

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{
		"entity", "municipality", "total_valid_responses",
		"count_1", "count_2", "count_9",
		"pct_1", "pct_2", "pct_9",
		"year", "quarter", "source_file", "source_rows",
	}, Header(codes))
}

func TestWriteAndReadAggregates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procesados", "procesado_2025_Q2_x.csv")
	in := []types.MunicipalityAggregate{sample(types.NewPeriod(2025, 2)), sample(types.Unidentified)}

	require.NoError(t, WriteAggregates(path, in, codes))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "YUCATAN,MERIDA,3,1,1,1,33.33,33.33,33.33,2025,2,in/conjunto_de_datos_ensu_cb_0625.csv,3", lines[1])
	assert.Contains(t, lines[2], ",unidentified,unidentified,")

	out, err := ReadAggregates(path, codes)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, types.NewPeriod(2025, 2), out[0].Period)
	assert.Equal(t, types.Unidentified, out[1].Period)
	assert.Equal(t, in[0].Counts, out[0].Counts)
	assert.InDelta(t, 33.333, out[0].Percentages[1], 0.001)
	assert.Equal(t, 3, out[0].Source.TargetRows)
}

func TestWriteEmptyTableHasHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConsolidatedName)
	require.NoError(t, WriteAggregates(path, nil, codes))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Header(codes), ",")+"\n", string(raw))
}

func TestReadAggregatesRejectsForeignTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	_, err := ReadAggregates(path, codes)
	assert.Error(t, err)
}

func TestPerFilePath(t *testing.T) {
	file := types.SurveyFile{Path: filepath.Join("raw", "conjunto_de_datos_ensu_cb_0625.csv"), Period: types.NewPeriod(2025, 2)}
	assert.Equal(t, filepath.Join("out", ProcessedDir, "procesado_2025_Q2_conjunto_de_datos_ensu_cb_0625.csv"), PerFilePath("out", file))

	file.Period = types.Unidentified
	assert.Equal(t, filepath.Join("out", ProcessedDir, "procesado_unidentified_conjunto_de_datos_ensu_cb_0625.csv"), PerFilePath("out", file))
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consolidado.xlsx")
	loser := sample(types.NewPeriod(2025, 2))
	loser.Source = types.Source{Path: "old.csv", TargetRows: 1}
	superseded := []types.Superseded{{Record: loser, RetainedSource: types.Source{Path: "new.csv"}, Reason: "target rows 3 vs 1"}}

	require.NoError(t, WriteWorkbook(path, []types.MunicipalityAggregate{sample(types.NewPeriod(2025, 2))}, superseded, codes))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetConsolidated)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MERIDA", rows[1][1])
	assert.Equal(t, "33.33", rows[1][6])

	rows, err = f.GetRows(SheetSuperseded)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "new.csv", rows[1][13])
}

func TestWriteInventory(t *testing.T) {
	out := t.TempDir()
	summary := types.RunSummary{RunID: "run-1", Processed: 2, StartedAt: time.Now()}

	require.NoError(t, WriteInventory(InventoryPath(out), summary, map[string]int{"rows": 4}))

	raw, err := os.ReadFile(filepath.Join(out, "logs", InventoryName))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, float64(2), decoded["processed"])
	assert.Equal(t, float64(4), decoded["dataset"].(map[string]interface{})["rows"])
}

func TestWriteAggregatesConcurrentWritersNeverInterleave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procesado_2025_Q2_x.csv")

	small := []types.MunicipalityAggregate{sample(types.NewPeriod(2025, 2))}
	large := make([]types.MunicipalityAggregate, 0, 200)
	for i := 0; i < 200; i++ {
		large = append(large, sample(types.NewPeriod(2025, 2)))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			aggs := small
			if i%2 == 0 {
				aggs = large
			}
			assert.NoError(t, WriteAggregates(path, aggs, codes))
		}(i)
	}
	wg.Wait()

	out, err := ReadAggregates(path, codes)
	require.NoError(t, err)
	assert.Contains(t, []int{1, 200}, len(out))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
