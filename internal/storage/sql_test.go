package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLSource_LoadWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"EIN", "business_name", "tax_period_begin", "tax_period_end", "total_revenue", "employee_count", "state"}).
		AddRow("123456789", "Acme", "2023-01-01", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), []byte("120000.50"), int64(12), "NY").
		AddRow(int64(987654321), "Beta", "2022-01-01 00:00:00", "2022-12-31 00:00:00", 45000.0, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM tax_form_basic_data ORDER BY tax_period_end DESC")).WillReturnRows(rows)

	src, err := NewSQLSourceWithDB(db, "")
	require.NoError(t, err)

	tbl, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "ein", tbl.Columns[0])

	acme := tbl.Records[0]
	assert.Equal(t, "123456789", acme.EIN)
	assert.Equal(t, "2023-12-31", acme.TaxPeriodEnd)
	assert.Equal(t, 120000.50, acme.Values["total_revenue"])
	assert.Equal(t, float64(12), acme.Values["employee_count"])
	assert.Equal(t, "NY", acme.Attrs["state"])

	beta := tbl.Records[1]
	assert.Equal(t, "987654321", beta.EIN)
	assert.Equal(t, "2022-01-01", beta.TaxPeriodBegin)
	assert.Equal(t, "2022-12-31", beta.TaxPeriodEnd)
	_, ok := beta.Values["employee_count"]
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrConnDone)

	src, err := NewSQLSourceWithDB(db, "filings")
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestNewSQLSourceWithDB_RejectsBadTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLSourceWithDB(db, "filings; DROP TABLE x")
	assert.Error(t, err)
	_, err = NewSQLSourceWithDB(db, "public.filings")
	assert.NoError(t, err)
}

func TestSQLSource_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tax_data.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tax_form_basic_data (
		ein TEXT, business_name TEXT, tax_period_begin TEXT, tax_period_end TEXT,
		total_revenue REAL, total_expenses REAL, employee_count INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO tax_form_basic_data VALUES
		('111', 'Acme', '2022-01-01', '2022-12-31', 100000, 80000, 10),
		('111', 'Acme', '2023-01-01', '2023-12-31', 120000, 90000, NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer src.Close()

	tbl, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "2023-12-31", tbl.Records[0].TaxPeriodEnd)
	assert.Equal(t, float64(120000), tbl.Records[0].Values["total_revenue"])
	_, ok := tbl.Records[0].Values["employee_count"]
	assert.False(t, ok)
	assert.Equal(t, float64(10), tbl.Records[1].Values["employee_count"])
}
