package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/taxlens/internal/models"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads the filings table from a SQLite or PostgreSQL database.
type SQLSource struct {
	db    *sql.DB
	table string
}

// NewSQLSource opens a database with the given driver ("sqlite3" or "postgres").
func NewSQLSource(driver, dsn, table string) (*SQLSource, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	src, err := NewSQLSourceWithDB(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// NewSQLSourceWithDB wraps an open database handle.
func NewSQLSourceWithDB(db *sql.DB, table string) (*SQLSource, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLSource{db: db, table: table}, nil
}

// Load selects every row, most recent tax period first.
func (s *SQLSource) Load(ctx context.Context) (*models.Table, error) {
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY tax_period_end DESC", s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	columns := NormalizeColumns(header)

	var records []*models.Record
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, recordFromCells(columns, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return models.NewTable(columns, records), nil
}

// Close closes the database.
func (s *SQLSource) Close() error {
	return s.db.Close()
}
