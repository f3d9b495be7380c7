// internal/data/models.go
// Package data provides the data models and database interaction logic
// for the school library: the two book catalogs, the member and staff
// directories, the borrow/return ledger and the history log.
package data

import (
	"database/sql"
	"slices"
	"strings"
	"time"
)

// Scope selects one of the two disjoint halves of the library. Member
// copies are only ever lent to members and staff copies only to staff.
type Scope string

const (
	ScopeMember Scope = "member"
	ScopeStaff  Scope = "staff"
)

// ParseScope converts a userType string from a request into a Scope.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeMember:
		return ScopeMember, true
	case ScopeStaff:
		return ScopeStaff, true
	}
	return "", false
}

// bookTable returns the catalog table for the scope.
func (s Scope) bookTable() string {
	if s == ScopeStaff {
		return "staff_books"
	}
	return "member_books"
}

// directoryTable returns the borrower table for the scope.
func (s Scope) directoryTable() string {
	if s == ScopeStaff {
		return "staff"
	}
	return "members"
}

// identifierColumn is the unique human identifier column of the directory.
func (s Scope) identifierColumn() string {
	if s == ScopeStaff {
		return "tsc_number"
	}
	return "adm_id"
}

// Models is a top-level container that groups all database model types together.
// It is passed around the application via applicationDependencies so every handler
// has access to the database without importing sql directly.
type Models struct {
	Catalog   CatalogModel
	Directory DirectoryModel
	Ledger    LedgerModel
	History   HistoryModel
	Query     QueryModel
}

// NewModels constructs a Models value wired up to the given database connection pool.
// now is the clock used to stamp borrow and return times; nil means time.Now.
func NewModels(db *sql.DB, now func() time.Time) Models {
	if now == nil {
		now = time.Now
	}
	return Models{
		Catalog:   CatalogModel{DB: db},
		Directory: DirectoryModel{DB: db},
		Ledger:    LedgerModel{DB: db, Now: now},
		History:   HistoryModel{DB: db},
		Query:     QueryModel{DB: db, Now: now},
	}
}

// Filters holds the sort parameter extracted from URL query strings.
type Filters struct {
	Sort         string   // Column name to sort by (prefix with "-" for DESC)
	SortSafeList []string // Allowed sort values to prevent SQL injection
}

// sortColumns maps the public camelCase sort keys onto table columns.
var sortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"author":     "author",
	"bookNumber": "book_number",
	"subject":    "subject",
	"name":       "name",
	"admId":      "adm_id",
	"tscNumber":  "tsc_number",
}

// safeSort reports whether Sort is in the safelist and names a known column.
func (f Filters) safeSort() (string, bool) {
	if !slices.Contains(f.SortSafeList, f.Sort) {
		return "", false
	}
	col, ok := sortColumns[strings.TrimPrefix(f.Sort, "-")]
	return col, ok
}

// sortColumn returns the validated column name for ORDER BY, defaulting to id.
func (f Filters) sortColumn() string {
	if col, ok := f.safeSort(); ok {
		return col
	}
	return "id"
}

// sortDirection returns "ASC" or "DESC" based on the Sort prefix. An
// unaccepted Sort value sorts ascending by id.
func (f Filters) sortDirection() string {
	if _, ok := f.safeSort(); ok && strings.HasPrefix(f.Sort, "-") {
		return "DESC"
	}
	return "ASC"
}
