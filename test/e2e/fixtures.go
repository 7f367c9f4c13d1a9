package e2e

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/taxlens/internal/storage"
)

// FixtureFormats are the file formats the corpus can be written as.
var FixtureFormats = []string{".csv", ".xlsx", ".db"}

// WriteFixture writes the corpus to path in the format implied by its extension.
func (c *Corpus) WriteFixture(path string) error {
	switch storage.KindFromPath(path) {
	case storage.KindCSV:
		return c.writeCSV(path)
	case storage.KindExcel:
		return c.writeXLSX(path)
	case storage.KindSQLite:
		return c.writeSQLite(path)
	}
	return fmt.Errorf("unsupported fixture path %q", path)
}

func (c *Corpus) writeCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for _, filing := range c.Filings {
		if err := w.Write(filing.Row()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (c *Corpus) writeXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Filings"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	// Exports often carry a blank title row above the header.
	if err := f.SetSheetRow(sheet, "A2", &Columns); err != nil {
		return err
	}
	for i, filing := range c.Filings {
		row := filing.Row()
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func (c *Corpus) writeSQLite(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	cols := storage.NormalizeColumns(Columns)
	defs := make([]string, len(cols))
	for i, col := range cols {
		typ := "REAL"
		if i < 4 {
			typ = "TEXT"
		}
		defs[i] = col + " " + typ
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", storage.DefaultTable, strings.Join(defs, ", "))); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := db.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", storage.DefaultTable, placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range c.Filings {
		var begin interface{} = f.PeriodBegin
		if f.PeriodBegin == "" {
			begin = nil
		}
		_, err := stmt.Exec(f.EIN, f.BusinessName, begin, f.PeriodEnd,
			f.TotalRevenue, f.TotalExpenses, f.ProgramExpenses, f.AdminExpenses,
			f.FundraisingExpenses, f.TotalAssets, f.TotalLiabilities,
			f.TotalAssets-f.TotalLiabilities, f.EmployeeCount)
		if err != nil {
			return err
		}
	}
	return nil
}
