// Package storage loads tax filing tables from SQL databases, CSV files, and Excel workbooks.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyperjump/taxlens/internal/models"
)

// Source kinds.
const (
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindCSV      = "csv"
	KindExcel    = "xlsx"
)

// DefaultTable is the filings table queried by SQL sources.
const DefaultTable = "tax_form_basic_data"

// Source reads the full filings table. Sources are read-only.
type Source interface {
	Load(ctx context.Context) (*models.Table, error)
	Close() error
}

// Options selects and configures a Source.
type Options struct {
	Kind  string
	Path  string
	DSN   string
	Table string
	Sheet string
}

// Open builds the Source described by opts. An empty Kind is inferred from the file extension.
func Open(opts Options) (Source, error) {
	kind := strings.ToLower(opts.Kind)
	if kind == "" {
		kind = KindFromPath(opts.Path)
	}
	switch kind {
	case KindSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite source requires a path")
		}
		return NewSQLSource("sqlite3", "file:"+opts.Path+"?mode=ro", opts.Table)
	case KindPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres source requires a dsn")
		}
		return NewSQLSource("postgres", opts.DSN, opts.Table)
	case KindCSV:
		return NewCSVSource(opts.Path), nil
	case KindExcel:
		return NewExcelSource(opts.Path, opts.Sheet), nil
	default:
		return nil, fmt.Errorf("unsupported data source %q", opts.Kind)
	}
}

// KindFromPath infers a source kind from a file extension.
func KindFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	case ".csv":
		return KindCSV
	case ".xlsx":
		return KindExcel
	}
	return ""
}
