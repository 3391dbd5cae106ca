package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/libertas/internal/model"
)

const (
	sheetSummary  = "Summary"
	sheetClusters = "Clusters"
	sheetTrend    = "Trend"
)

// RenderXLSX writes the cluster membership, the per-cluster averages and
// the trend points to a workbook with one sheet each.
// Missing averages are left as empty cells.
func (r *Renderer) RenderXLSX(report *model.Report, path string) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	for _, name := range []string{sheetClusters, sheetTrend} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	header := []interface{}{"cluster", "countries", "freedom", "reference"}
	for _, w := range report.Seasons {
		header = append(header, w.Name)
	}
	rows := [][]interface{}{header}
	for _, s := range report.Summaries {
		row := []interface{}{s.Label, len(s.Countries), cellMean(s.Freedom), cellMean(s.Reference)}
		for _, m := range s.Seasonal {
			row = append(row, cellMean(m))
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, sheetSummary, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"cluster", "country"}}
	for _, g := range report.Clusters.Groups {
		for _, c := range g.Countries {
			rows = append(rows, []interface{}{g.Label, string(c)})
		}
	}
	if err := writeRows(f, sheetClusters, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"country", "cluster", "freedom", "stringency"}}
	for _, p := range report.TrendPoints {
		rows = append(rows, []interface{}{string(p.Country), p.Cluster, p.Freedom, p.Stringency})
	}
	if err := writeRows(f, sheetTrend, rows); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// cellMean returns nil for a missing mean so the cell stays empty
func cellMean(m model.Mean) interface{} {
	if m.Missing() {
		return nil
	}
	return m.Value
}
