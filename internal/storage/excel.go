package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/taxlens/internal/models"
)

// ExcelSource reads the filings table from one sheet of an .xlsx workbook.
// The first non-empty row is the header.
type ExcelSource struct {
	path  string
	sheet string
}

// NewExcelSource creates an ExcelSource. An empty sheet uses the first sheet.
func NewExcelSource(path, sheet string) *ExcelSource {
	return &ExcelSource{path: path, sheet: sheet}
}

// Load reads the workbook.
func (s *ExcelSource) Load(ctx context.Context) (*models.Table, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return models.NewTable(nil, nil), nil
		}
		sheet = sheets[0]
	}

	// Raw values keep numbers unformatted and dates as serials.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
	}
	for len(rows) > 0 && blankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return models.NewTable(nil, nil), nil
	}
	convertDateSerials(NormalizeColumns(rows[0]), rows[1:], date1904(f))
	return tableFromStrings(rows[0], rows[1:]), nil
}

// convertDateSerials rewrites numeric period cells (Excel date serials) as YYYY-MM-DD.
func convertDateSerials(columns []string, rows [][]string, use1904 bool) {
	for i, col := range columns {
		if col != models.ColumnTaxPeriodBegin && col != models.ColumnTaxPeriodEnd {
			continue
		}
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			serial, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, use1904)
			if err != nil {
				continue
			}
			row[i] = t.Format("2006-01-02")
		}
	}
}

func date1904(f *excelize.File) bool {
	props, err := f.GetWorkbookProps()
	if err != nil || props.Date1904 == nil {
		return false
	}
	return *props.Date1904
}

// Close is a no-op; the workbook is closed after each load.
func (s *ExcelSource) Close() error { return nil }
