package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// DaysBetween returns ceil((end - start) / 24h), floored at zero. ok is
// false when either end is missing.
func DaysBetween(start, end *time.Time) (int, bool) {
	if start == nil || end == nil {
		return 0, false
	}
	days := int(math.Ceil(end.Sub(*start).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return days, true
}

// UncategorizedSubject is the group for copies with no subject.
const UncategorizedSubject = "Uncategorized"

// Holding pairs a copy with the borrower who currently has it.
type Holding struct {
	Book            *BookCopy `json:"book"`
	Holder          *Borrower `json:"holder"`
	DaysOutstanding *int      `json:"daysOutstanding,omitempty"`
}

// QueryModel provides the joined read views over catalogs and directories.
type QueryModel struct {
	DB  *sql.DB
	Now func() time.Time
}

func (m QueryModel) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

// WithDaysOutstanding sets b.DaysOutstanding when the copy is borrowed.
func (m QueryModel) WithDaysOutstanding(books ...*BookCopy) {
	now := m.now()
	for _, b := range books {
		if !b.Borrowed() {
			b.DaysOutstanding = nil
			continue
		}
		if days, ok := DaysBetween(b.BorrowedAt, &now); ok {
			b.DaysOutstanding = &days
		}
	}
}

// Holder returns the copy and, if it is borrowed, the borrower holding it.
// Holder is nil for an available copy, or when the borrower row is gone.
func (m QueryModel) Holder(ctx context.Context, scope Scope, bookID int64) (*Holding, error) {
	book, err := CatalogModel{DB: m.DB}.Get(ctx, scope, bookID)
	if err != nil {
		return nil, err
	}
	m.WithDaysOutstanding(book)

	h := &Holding{Book: book, DaysOutstanding: book.DaysOutstanding}
	if !book.Borrowed() {
		return h, nil
	}

	holder, err := DirectoryModel{DB: m.DB}.Get(ctx, *book.BorrowedByType, *book.BorrowedByID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return h, nil
		}
		return nil, err
	}
	h.Holder = holder
	return h, nil
}

// HeldBy lists the copies the borrower currently has from the catalog of
// their kind. The borrower must exist.
func (m QueryModel) HeldBy(ctx context.Context, kind Scope, borrowerID int64) ([]*BookCopy, error) {
	if _, err := (DirectoryModel{DB: m.DB}).Get(ctx, kind, borrowerID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE borrowed_by_id = $1 AND borrowed_by_type = $2
		ORDER BY borrowed_at ASC, id ASC`, bookColumns, kind.bookTable())
	books, err := CatalogModel{DB: m.DB}.query(ctx, query, borrowerID, string(kind))
	if err != nil {
		return nil, err
	}
	m.WithDaysOutstanding(books...)
	return books, nil
}

// BySubject groups the scope's catalog by subject. Copies inside a group
// keep title order.
func (m QueryModel) BySubject(ctx context.Context, scope Scope) (map[string][]*BookCopy, error) {
	books, err := CatalogModel{DB: m.DB}.List(ctx, scope, Filters{Sort: "title", SortSafeList: []string{"title"}})
	if err != nil {
		return nil, err
	}
	groups := map[string][]*BookCopy{}
	for _, b := range books {
		key := b.Subject
		if key == "" {
			key = UncategorizedSubject
		}
		groups[key] = append(groups[key], b)
	}
	return groups, nil
}

// Subjects returns the group names of BySubject in alphabetical order.
func Subjects(groups map[string][]*BookCopy) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
