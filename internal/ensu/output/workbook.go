package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/farxc/ensu_insecurity/internal/ensu/types"
	"github.com/xuri/excelize/v2"
)

const (
	SheetConsolidated = "Consolidado"
	SheetSuperseded   = "Superseded"
)

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func aggregateRow(a types.MunicipalityAggregate, codes []int) []interface{} {
	row := []interface{}{a.Entity, a.Municipality, a.Total}
	for _, c := range codes {
		row = append(row, a.Counts[c])
	}
	for _, c := range codes {
		row = append(row, FormatPercentage(a.Percentages[c]))
	}
	year, quarter := periodCells(a.Period)
	return append(row, year, quarter, a.Source.Path, a.Source.TargetRows)
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// WriteWorkbook writes the consolidated table and the superseded records as an XLSX workbook.
func WriteWorkbook(path string, records []types.MunicipalityAggregate, superseded []types.Superseded, codes []int) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetConsolidated); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := setRow(f, SheetConsolidated, 1, toRow(Header(codes))); err != nil {
		return err
	}
	for i, r := range records {
		if err := setRow(f, SheetConsolidated, i+2, aggregateRow(r, codes)); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetSuperseded); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	header := append(Header(codes), "retained_source", "reason")
	if err := setRow(f, SheetSuperseded, 1, toRow(header)); err != nil {
		return err
	}
	for i, s := range superseded {
		row := append(aggregateRow(s.Record, codes), s.RetainedSource.Path, s.Reason)
		if err := setRow(f, SheetSuperseded, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}
