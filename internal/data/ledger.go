package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aoideee/school-library/internal/validator"
)

// BorrowInput is the body of a borrow request.
type BorrowInput struct {
	BookID   int64  `json:"bookId" validate:"required,gt=0"`
	UserType string `json:"userType" validate:"required,oneof=member staff"`
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	Name     string `json:"name"`
}

// ReturnInput identifies one copy to bring back.
type ReturnInput struct {
	BookID   int64  `json:"bookId" validate:"required,gt=0"`
	UserType string `json:"userType" validate:"required,oneof=member staff"`
}

// UserTypeOrDefault returns userType, or "member" when it is blank. Requests
// that omit userType are served from the member catalog.
func UserTypeOrDefault(userType string) string {
	if strings.TrimSpace(userType) == "" {
		return string(ScopeMember)
	}
	return userType
}

// BatchResult reports the outcome of ReturnBatch per id.
type BatchResult struct {
	Returned []int64
	Failed   map[int64]error
}

// LedgerModel runs the borrow/return state machine. A copy is AVAILABLE
// while borrowed_by_id is NULL and BORROWED otherwise; each transition is
// one transaction covering the catalog row and its history entry.
type LedgerModel struct {
	DB  *sql.DB
	Now func() time.Time
}

func (m LedgerModel) now() time.Time {
	if m.Now == nil {
		return time.Now().UTC()
	}
	return m.Now().UTC()
}

func checkInput(dst any) error {
	v := validator.New()
	v.Struct(dst)
	return validationError(v)
}

// bookExists distinguishes "no such copy" from "wrong state" after a
// conditional update matched nothing.
func bookExists(ctx context.Context, tx *sql.Tx, scope Scope, id int64) (bool, error) {
	var one int
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, scope.bookTable())
	err := tx.QueryRowContext(ctx, query, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Borrow moves an AVAILABLE copy to BORROWED and opens a history entry.
// The catalog matching in.UserType is the only one consulted; a blank
// UserType means member. When in.Name
// is blank the borrower's directory name is recorded instead.
func (m LedgerModel) Borrow(ctx context.Context, in BorrowInput) (*HistoryEntry, error) {
	in.UserType = UserTypeOrDefault(in.UserType)
	if err := checkInput(in); err != nil {
		return nil, err
	}
	scope, _ := ParseScope(in.UserType)
	now := m.now()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The IS NULL guard makes the check-and-set a single statement, so two
	// concurrent borrows of the same copy cannot both succeed.
	var title string
	query := fmt.Sprintf(`
		UPDATE %s
		SET borrowed_by_type = $1, borrowed_by_id = $2, borrowed_at = $3, returned_at = NULL
		WHERE id = $4 AND borrowed_by_id IS NULL
		RETURNING title`, scope.bookTable())
	err = tx.QueryRowContext(ctx, query, string(scope), in.UserID, now, in.BookID).Scan(&title)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		exists, err := bookExists(ctx, tx, scope, in.BookID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errBookNotFound
		}
		return nil, errAlreadyBorrowed
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name, err = borrowerName(ctx, tx, scope, in.UserID)
		if err != nil {
			return nil, err
		}
	}

	entry := &HistoryEntry{
		UserType:   scope,
		UserID:     in.UserID,
		Name:       name,
		BookID:     in.BookID,
		BookTitle:  title,
		BorrowedAt: now,
	}
	if err := appendHistory(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

func borrowerName(ctx context.Context, tx *sql.Tx, scope Scope, id int64) (string, error) {
	var name string
	query := fmt.Sprintf(`SELECT name FROM %s WHERE id = $1`, scope.directoryTable())
	err := tx.QueryRowContext(ctx, query, id).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "Unknown", nil
	case err != nil:
		return "", err
	}
	return name, nil
}

// Return moves a BORROWED copy back to AVAILABLE, stamps the copy's
// returned_at and closes its open history entry with the same time. The
// closed entry is returned, or nil if the copy had none.
func (m LedgerModel) Return(ctx context.Context, in ReturnInput) (*HistoryEntry, error) {
	in.UserType = UserTypeOrDefault(in.UserType)
	if err := checkInput(in); err != nil {
		return nil, err
	}
	scope, _ := ParseScope(in.UserType)
	now := m.now()

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		UPDATE %s
		SET borrowed_by_type = NULL, borrowed_by_id = NULL, borrowed_at = NULL, returned_at = $1
		WHERE id = $2 AND borrowed_by_id IS NOT NULL`, scope.bookTable())
	result, err := tx.ExecContext(ctx, query, now, in.BookID)
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		exists, err := bookExists(ctx, tx, scope, in.BookID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errBookNotFound
		}
		return nil, errNotBorrowed
	}

	entry, err := closeHistory(ctx, tx, scope, in.BookID, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// ReturnBatch applies Return to every id independently and in order. A
// failure on one id is recorded in the result and does not stop the rest.
func (m LedgerModel) ReturnBatch(ctx context.Context, scope Scope, ids []int64) BatchResult {
	res := BatchResult{Returned: []int64{}, Failed: map[int64]error{}}
	for _, id := range ids {
		_, err := m.Return(ctx, ReturnInput{BookID: id, UserType: string(scope)})
		if err != nil {
			res.Failed[id] = err
			continue
		}
		res.Returned = append(res.Returned, id)
	}
	return res
}
