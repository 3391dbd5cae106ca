package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/libertas/internal/model"
)

// Column names of the freedom dataset
const (
	ColFreedomCountry    = "ISO_code"
	ColFreedomYear       = "year"
	ColFreedomExpression = "pf_expression"
)

// Column names of the stringency dataset
const (
	ColStringencyCountry = "Code"
	ColStringencyDate    = "Date"
	ColStringencyValue   = "stringency_index"
)

// FreedomColumns returns every column the freedom reader requires
func FreedomColumns() []string {
	cols := []string{ColFreedomCountry, ColFreedomYear, ColFreedomExpression}
	return append(cols, model.SubIndicators[:]...)
}

// StringencyColumns returns every column the stringency reader requires
func StringencyColumns() []string {
	return []string{ColStringencyCountry, ColStringencyDate, ColStringencyValue}
}

// ReadFreedom parses the freedom table at path (.csv or .xlsx).
// Rows without a country code are skipped. A blank or non-numeric
// pf_expression is loaded as absent. Sub-indicator cells are kept verbatim.
func ReadFreedom(path string) ([]model.FreedomRecord, error) {
	var records []model.FreedomRecord

	err := scan(path, FreedomColumns(), func(line int, get fieldFunc) error {
		country := get(ColFreedomCountry)
		if country == "" {
			return nil
		}

		year, err := strconv.Atoi(get(ColFreedomYear))
		if err != nil {
			return fmt.Errorf("line %d: invalid %s %q", line, ColFreedomYear, get(ColFreedomYear))
		}

		rec := model.FreedomRecord{
			Country: model.CountryCode(country),
			Year:    year,
			Line:    line,
		}
		if v, err := strconv.ParseFloat(get(ColFreedomExpression), 64); err == nil {
			rec.Expression = &v
		}
		for i, col := range model.SubIndicators {
			rec.SubIndicators[i] = get(col)
		}

		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// ReadStringency parses the stringency table at path (.csv or .xlsx).
// Rows without a country code or without a stringency value are skipped;
// an unparseable date or a non-numeric value fails the read.
func ReadStringency(path string) ([]model.StringencyRecord, error) {
	var records []model.StringencyRecord

	err := scan(path, StringencyColumns(), func(line int, get fieldFunc) error {
		country := get(ColStringencyCountry)
		raw := get(ColStringencyValue)
		if country == "" || raw == "" {
			return nil
		}

		date, err := model.ParseDate(get(ColStringencyDate))
		if err != nil {
			return fmt.Errorf("line %d: invalid %s %q", line, ColStringencyDate, get(ColStringencyDate))
		}

		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid %s %q", line, ColStringencyValue, raw)
		}

		records = append(records, model.StringencyRecord{
			Country:    model.CountryCode(country),
			Date:       date,
			Stringency: value,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// fieldFunc returns the trimmed cell of the named column in the current row
type fieldFunc func(column string) string

// scan opens path, resolves the required columns from the header and calls
// fn for each data row. The file is closed before scan returns. Every
// failure is wrapped with model.ErrSourceUnavailable.
func scan(path string, required []string, fn func(line int, get fieldFunc) error) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = scanXLSX(path, required, fn)
	default:
		err = scanCSV(path, required, fn)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, path, err)
	}
	return nil
}

func scanCSV(path string, required []string, fn func(line int, get fieldFunc) error) (err error) {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close: %w", closeErr)
		}
	}()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("empty file")
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	index, err := columnIndex(header, required)
	if err != nil {
		return err
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line, _ := reader.FieldPos(0)
		if err := fn(line, index.getter(row)); err != nil {
			return err
		}
	}
}

func scanXLSX(path string, required []string, fn func(line int, get fieldFunc) error) (err error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close: %w", closeErr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("empty sheet %q", sheets[0])
	}

	index, err := columnIndex(rows[0], required)
	if err != nil {
		return err
	}

	for i, row := range rows[1:] {
		if err := fn(i+2, index.getter(row)); err != nil {
			return err
		}
	}
	return nil
}

type columns map[string]int

// columnIndex maps each required column to its header position
func columnIndex(header []string, required []string) (columns, error) {
	index := make(columns, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}
	return index, nil
}

// getter binds a row; cells past the row end read as blank
func (c columns) getter(row []string) fieldFunc {
	return func(column string) string {
		i, ok := c[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
}
