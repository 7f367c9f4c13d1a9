// Package keyword provides an in-memory keyword index over stringified tax records.
package keyword

import "context"

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance in organization names.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// RowIndex defines keyword search over table rows.
type RowIndex interface {
	// IndexAll indexes rows with their slice positions as IDs.
	IndexAll(ctx context.Context, rows []string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	Close() error
	// DocCount returns the total number of rows in the index.
	DocCount() (uint64, error)
}

// Result is a single keyword search hit. ID is the row position as a decimal string.
type Result struct {
	ID    string
	Score float64
}
