package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/farxc/ensu_insecurity/internal/ensu/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	ProcessedDir            = "procesados"
	DefaultConsolidatedName = "data-yucatan-inseguridad.csv"
)

const (
	colEntity       = "entity"
	colMunicipality = "municipality"
	colTotal        = "total_valid_responses"
	colYear         = "year"
	colQuarter      = "quarter"
	colSourceFile   = "source_file"
	colSourceRows   = "source_rows"
)

func countCol(code int) string { return "count_" + strconv.Itoa(code) }
func pctCol(code int) string   { return "pct_" + strconv.Itoa(code) }

// Header returns the column layout for the given valid codes.
func Header(codes []int) []string {
	h := []string{colEntity, colMunicipality, colTotal}
	for _, c := range codes {
		h = append(h, countCol(c))
	}
	for _, c := range codes {
		h = append(h, pctCol(c))
	}
	return append(h, colYear, colQuarter, colSourceFile, colSourceRows)
}

// FormatPercentage rounds to two decimals.
func FormatPercentage(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func periodCells(p types.Period) (string, string) {
	if !p.Identified {
		return types.UnidentifiedLabel, types.UnidentifiedLabel
	}
	return strconv.Itoa(p.Year), strconv.Itoa(p.Quarter)
}

// Records renders aggregates as CSV records, header first.
func Records(aggs []types.MunicipalityAggregate, codes []int) [][]string {
	records := [][]string{Header(codes)}
	for _, a := range aggs {
		row := []string{a.Entity, a.Municipality, strconv.Itoa(a.Total)}
		for _, c := range codes {
			row = append(row, strconv.Itoa(a.Counts[c]))
		}
		for _, c := range codes {
			row = append(row, FormatPercentage(a.Percentages[c]))
		}
		year, quarter := periodCells(a.Period)
		row = append(row, year, quarter, a.Source.Path, strconv.Itoa(a.Source.TargetRows))
		records = append(records, row)
	}
	return records
}

// WriteAggregates writes aggregates to path as CSV, creating parent directories. The table
// is written to a temporary file and renamed into place, so concurrent writers of the same
// path never interleave and the last rename wins.
func WriteAggregates(path string, aggs []types.MunicipalityAggregate, codes []int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	// gota refuses header-only tables, and an empty consolidated table is a valid result.
	w := csv.NewWriter(f)
	if err := w.WriteAll(Records(aggs, codes)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// PerFilePath is where the aggregate table of one input file goes.
func PerFilePath(outDir string, file types.SurveyFile) string {
	stem := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path))
	name := fmt.Sprintf("procesado_%s_%s.csv", types.UnidentifiedLabel, stem)
	if file.Period.Identified {
		name = fmt.Sprintf("procesado_%d_Q%d_%s.csv", file.Period.Year, file.Period.Quarter, stem)
	}
	return filepath.Join(outDir, ProcessedDir, name)
}

// Exists reports whether a previous run already wrote path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ReadAggregates loads a table written by WriteAggregates. The source modification time
// is taken from the source file when it is still on disk.
func ReadAggregates(path string, codes []int) ([]types.MunicipalityAggregate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
	if df.Error() != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, df.Error())
	}
	for _, h := range Header(codes) {
		if !containsString(df.Names(), h) {
			return nil, fmt.Errorf("%s: missing column %s", path, h)
		}
	}

	aggs := make([]types.MunicipalityAggregate, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		a := types.MunicipalityAggregate{
			Entity:       utils.GetStr(colEntity, i, &df),
			Municipality: utils.GetStr(colMunicipality, i, &df),
			Counts:       make(map[int]int, len(codes)),
			Percentages:  make(map[int]float64, len(codes)),
		}
		if a.Total, err = strconv.Atoi(utils.GetStr(colTotal, i, &df)); err != nil {
			return nil, fmt.Errorf("%s row %d: invalid total: %w", path, i+1, err)
		}
		for _, c := range codes {
			if a.Counts[c], err = strconv.Atoi(utils.GetStr(countCol(c), i, &df)); err != nil {
				return nil, fmt.Errorf("%s row %d: invalid %s: %w", path, i+1, countCol(c), err)
			}
			if a.Total > 0 {
				a.Percentages[c] = 100 * float64(a.Counts[c]) / float64(a.Total)
			}
		}

		year, quarter := utils.GetStr(colYear, i, &df), utils.GetStr(colQuarter, i, &df)
		if year != types.UnidentifiedLabel {
			y, errY := strconv.Atoi(year)
			q, errQ := strconv.Atoi(quarter)
			if errY != nil || errQ != nil {
				return nil, fmt.Errorf("%s row %d: invalid period %s/%s", path, i+1, year, quarter)
			}
			a.Period = types.NewPeriod(y, q)
		}

		a.Source.Path = utils.GetStr(colSourceFile, i, &df)
		a.Source.TargetRows, _ = strconv.Atoi(utils.GetStr(colSourceRows, i, &df))
		if info, statErr := os.Stat(a.Source.Path); statErr == nil {
			a.Source.ModTime = info.ModTime()
		}
		aggs = append(aggs, a)
	}
	return aggs, nil
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
