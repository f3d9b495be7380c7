package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Fixed rejections for every attempt to change history from outside the
// ledger. The payload of such a request is never inspected.
var (
	ErrHistoryCreate = &ForbiddenError{Message: "History entries cannot be created manually. They are automatically generated by the system."}
	ErrHistoryModify = &ForbiddenError{Message: "History entries cannot be modified. They are permanent records."}
	ErrHistoryDelete = &ForbiddenError{Message: "History entries cannot be deleted. They are permanent records."}
)

// HistoryEntry records one borrow and, once it happens, the matching return.
// Name and BookTitle are snapshots taken at borrow time.
type HistoryEntry struct {
	ID         int64      `json:"id"`
	UserType   Scope      `json:"userType"`
	UserID     int64      `json:"userId"`
	Name       string     `json:"name"`
	BookID     int64      `json:"bookId"`
	BookTitle  string     `json:"bookTitle"`
	BorrowedAt time.Time  `json:"borrowedAt"`
	ReturnedAt *time.Time `json:"returnedAt"`
	Days       *int       `json:"days,omitempty"`
}

// Open reports whether the borrow recorded by e is still active.
func (e *HistoryEntry) Open() bool {
	return e.ReturnedAt == nil
}

const historyColumns = `id, user_type, user_id, name, book_id, book_title, borrowed_at, returned_at`

func scanHistory(row rowScanner) (*HistoryEntry, error) {
	var (
		e        HistoryEntry
		userType string
		returned sql.NullTime
	)
	err := row.Scan(&e.ID, &userType, &e.UserID, &e.Name, &e.BookID, &e.BookTitle, &e.BorrowedAt, &returned)
	if err != nil {
		return nil, err
	}
	e.UserType = Scope(userType)
	if returned.Valid {
		t := returned.Time
		e.ReturnedAt = &t
		if days, ok := DaysBetween(&e.BorrowedAt, e.ReturnedAt); ok {
			e.Days = &days
		}
	}
	return &e, nil
}

// HistoryFilter narrows History.List. Zero values mean "any".
type HistoryFilter struct {
	UserType Scope
	UserID   int64
	BookID   int64
	Status   string // "open", "returned" or ""
}

// HistoryModel is the read side of the history log. The only writers are
// appendHistory and closeHistory, called from inside ledger transactions.
type HistoryModel struct {
	DB *sql.DB
}

// List returns the matching entries, most recent borrow first.
func (m HistoryModel) List(ctx context.Context, f HistoryFilter) ([]*HistoryEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserType != "" {
		add("user_type = $%d", string(f.UserType))
	}
	if f.UserID > 0 {
		add("user_id = $%d", f.UserID)
	}
	if f.BookID > 0 {
		add("book_id = $%d", f.BookID)
	}
	switch f.Status {
	case "open":
		where = append(where, "returned_at IS NULL")
	case "returned":
		where = append(where, "returned_at IS NOT NULL")
	}

	query := `SELECT ` + historyColumns + ` FROM history`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY borrowed_at DESC, id DESC`

	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*HistoryEntry{}
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Get retrieves one entry by id.
func (m HistoryModel) Get(ctx context.Context, id int64) (*HistoryEntry, error) {
	row := m.DB.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM history WHERE id = $1`, id)
	e, err := scanHistory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Message: "History entry not found"}
		}
		return nil, err
	}
	return e, nil
}

// HistoryStats summarises the log the way the history page shows it.
type HistoryStats struct {
	TotalBorrows  int `json:"totalBorrows"`
	ActiveBorrows int `json:"activeBorrows"`
	TotalReturns  int `json:"totalReturns"`
	AverageDays   int `json:"averageDays"`
}

// Stats counts all, open and returned entries and the rounded mean number
// of days a returned copy was out.
func (m HistoryModel) Stats(ctx context.Context) (HistoryStats, error) {
	var stats HistoryStats

	rows, err := m.DB.QueryContext(ctx, `SELECT borrowed_at, returned_at FROM history`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	totalDays := 0
	for rows.Next() {
		var (
			borrowed time.Time
			returned sql.NullTime
		)
		if err := rows.Scan(&borrowed, &returned); err != nil {
			return stats, err
		}
		stats.TotalBorrows++
		if !returned.Valid {
			stats.ActiveBorrows++
			continue
		}
		stats.TotalReturns++
		if days, ok := DaysBetween(&borrowed, &returned.Time); ok {
			totalDays += days
		}
	}
	if err = rows.Err(); err != nil {
		return stats, err
	}

	if stats.TotalReturns > 0 {
		stats.AverageDays = int(math.Round(float64(totalDays) / float64(stats.TotalReturns)))
	}
	return stats, nil
}

// appendHistory inserts a new open entry. The entry's id is written back.
func appendHistory(ctx context.Context, tx *sql.Tx, e *HistoryEntry) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO history (user_type, user_id, name, book_id, book_title, borrowed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(e.UserType), e.UserID, e.Name, e.BookID, e.BookTitle, e.BorrowedAt,
	).Scan(&e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errAlreadyBorrowed
		}
		return err
	}
	return nil
}

// closeHistory stamps returned_at on the open entry for the copy. It
// returns nil without error when no open entry exists, which only happens
// for copies lent out before the log was kept.
func closeHistory(ctx context.Context, tx *sql.Tx, scope Scope, bookID int64, at time.Time) (*HistoryEntry, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+historyColumns+` FROM history
		WHERE user_type = $1 AND book_id = $2 AND returned_at IS NULL`,
		string(scope), bookID)
	e, err := scanHistory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `UPDATE history SET returned_at = $1 WHERE id = $2 AND returned_at IS NULL`, at, e.ID)
	if err != nil {
		return nil, err
	}

	e.ReturnedAt = &at
	if days, ok := DaysBetween(&e.BorrowedAt, e.ReturnedAt); ok {
		e.Days = &days
	}
	return e, nil
}
