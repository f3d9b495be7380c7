package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aoideee/school-library/internal/validator"
)

// BookCopy is one physical copy in either the member or the staff catalog.
// BorrowedByType and BorrowedByID are both nil while the copy is available.
type BookCopy struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	BookNumber      string     `json:"bookNumber"`
	Subject         string     `json:"subject"`
	BorrowedByType  *Scope     `json:"borrowedByType"`
	BorrowedByID    *int64     `json:"borrowedById"`
	BorrowedAt      *time.Time `json:"borrowedAt"`
	ReturnedAt      *time.Time `json:"returnedAt"` // last time the copy came back
	DaysOutstanding *int       `json:"daysOutstanding,omitempty"`
}

// Borrowed reports whether the copy is currently lent out.
func (b *BookCopy) Borrowed() bool {
	return b.BorrowedByID != nil
}

// CreateBookInput holds the fields a client must supply when creating a copy.
type CreateBookInput struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	BookNumber string `json:"bookNumber"`
	Subject    string `json:"subject"`
}

// UpdateBookInput holds the fields a client may supply when updating a copy.
// A nil field is left unchanged.
type UpdateBookInput struct {
	Title      *string `json:"title"`
	Author     *string `json:"author"`
	BookNumber *string `json:"bookNumber"`
	Subject    *string `json:"subject"`
}

// ValidateBook checks the required fields and the book number rules.
func ValidateBook(v *validator.Validator, book *BookCopy) {
	v.Check(strings.TrimSpace(book.Title) != "", "title", "Title is required")
	v.Check(strings.TrimSpace(book.Author) != "", "author", "Author is required")
	ValidateBookNumber(v, book.BookNumber)
}

// ValidateBookNumber enforces length 2-15 and the allowed character set.
func ValidateBookNumber(v *validator.Validator, number string) {
	if number == "" {
		v.AddError("bookNumber", "Book number is required")
		return
	}
	n := utf8.RuneCountInString(number)
	v.Check(n >= 2 && n <= 15, "bookNumber", "Book number must be between 2 and 15 characters")
	v.Check(validator.Matches(number, validator.BookNumberRX), "bookNumber",
		"Book number can only contain letters, numbers, and separators (/, -, _, .)")
}

// validationError converts the first failure of v into a *ValidationError.
func validationError(v *validator.Validator) error {
	if v.Valid() {
		return nil
	}
	field, msg := v.First()
	return &ValidationError{Field: field, Message: msg}
}

const bookColumns = `id, title, author, book_number, subject, borrowed_by_type, borrowed_by_id, borrowed_at, returned_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*BookCopy, error) {
	var (
		book     BookCopy
		byType   sql.NullString
		byID     sql.NullInt64
		borrowed sql.NullTime
		returned sql.NullTime
	)
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.BookNumber, &book.Subject,
		&byType, &byID, &borrowed, &returned)
	if err != nil {
		return nil, err
	}
	if byType.Valid && byID.Valid {
		scope := Scope(byType.String)
		book.BorrowedByType = &scope
		book.BorrowedByID = &byID.Int64
	}
	if borrowed.Valid {
		t := borrowed.Time
		book.BorrowedAt = &t
	}
	if returned.Valid {
		t := returned.Time
		book.ReturnedAt = &t
	}
	return &book, nil
}

// CatalogModel wraps a *sql.DB connection and provides the CRUD operations
// of the two book catalogs. Every method takes the Scope it operates on.
type CatalogModel struct {
	DB *sql.DB
}

// List returns every copy in the scope's catalog, sorted by filters.
func (m CatalogModel) List(ctx context.Context, scope Scope, filters Filters) ([]*BookCopy, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s %s, id ASC`,
		bookColumns, scope.bookTable(), filters.sortColumn(), filters.sortDirection())
	return m.query(ctx, query)
}

func (m CatalogModel) query(ctx context.Context, query string, args ...any) ([]*BookCopy, error) {
	rows, err := m.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*BookCopy{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// Get retrieves a single copy by id.
func (m CatalogModel) Get(ctx context.Context, scope Scope, id int64) (*BookCopy, error) {
	if id < 1 {
		return nil, errBookNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, bookColumns, scope.bookTable())
	book, err := scanBook(m.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// checkBookNumber fails with a ConflictError naming the holder's title when
// number is already used in the scope by a copy other than excludeID.
func checkBookNumber(ctx context.Context, q queryer, scope Scope, number string, excludeID int64) error {
	var title string
	query := fmt.Sprintf(`SELECT title FROM %s WHERE book_number = $1 AND id <> $2`, scope.bookTable())
	err := q.QueryRowContext(ctx, query, number, excludeID).Scan(&title)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}
	return bookNumberConflict(number, title)
}

func bookNumberConflict(number, title string) *ConflictError {
	details := fmt.Sprintf("Book number %q is already assigned to another book. Please use a different book number.", number)
	if title != "" {
		details = fmt.Sprintf("Book number %q is already assigned to book %q. Please use a different book number.", number, title)
	}
	return &ConflictError{Message: "Book number already exists", Details: details}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert validates book, checks the book number is free in the scope, and
// writes the new copy. The generated id is written back into book.
func (m CatalogModel) Insert(ctx context.Context, scope Scope, book *BookCopy) error {
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	book.BookNumber = strings.TrimSpace(book.BookNumber)
	book.Subject = strings.TrimSpace(book.Subject)

	v := validator.New()
	ValidateBook(v, book)
	if err := validationError(v); err != nil {
		return err
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkBookNumber(ctx, tx, scope, book.BookNumber, 0); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (title, author, book_number, subject)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, scope.bookTable())
	err = tx.QueryRowContext(ctx, query, book.Title, book.Author, book.BookNumber, book.Subject).Scan(&book.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return bookNumberConflict(book.BookNumber, "")
		}
		return err
	}

	return tx.Commit()
}

// Update applies the non-nil fields of input to the copy with the given id.
// The merged record is validated and the book number re-checked for
// uniqueness, excluding the copy itself, before the row is written.
func (m CatalogModel) Update(ctx context.Context, scope Scope, id int64, input UpdateBookInput) (*BookCopy, error) {
	v := validator.New()
	if input.Title != nil {
		v.Check(strings.TrimSpace(*input.Title) != "", "title", "Title is required")
	}
	if input.Author != nil {
		v.Check(strings.TrimSpace(*input.Author) != "", "author", "Author is required")
	}
	if input.BookNumber != nil {
		ValidateBookNumber(v, strings.TrimSpace(*input.BookNumber))
	}
	if err := validationError(v); err != nil {
		return nil, err
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, bookColumns, scope.bookTable())
	book, err := scanBook(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errBookNotFound
		}
		return nil, err
	}

	if input.Title != nil {
		book.Title = strings.TrimSpace(*input.Title)
	}
	if input.Author != nil {
		book.Author = strings.TrimSpace(*input.Author)
	}
	if input.BookNumber != nil {
		book.BookNumber = strings.TrimSpace(*input.BookNumber)
	}
	if input.Subject != nil {
		book.Subject = strings.TrimSpace(*input.Subject)
	}

	if err := checkBookNumber(ctx, tx, scope, book.BookNumber, book.ID); err != nil {
		return nil, err
	}

	query = fmt.Sprintf(`
		UPDATE %s
		SET title = $1, author = $2, book_number = $3, subject = $4
		WHERE id = $5`, scope.bookTable())
	_, err = tx.ExecContext(ctx, query, book.Title, book.Author, book.BookNumber, book.Subject, book.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, bookNumberConflict(book.BookNumber, "")
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return book, nil
}

// Delete removes a copy that is not currently borrowed. Its history rows
// are left untouched and keep referring to the old id.
func (m CatalogModel) Delete(ctx context.Context, scope Scope, id int64) error {
	if id < 1 {
		return errBookNotFound
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		title  string
		byType sql.NullString
		byID   sql.NullInt64
	)
	query := fmt.Sprintf(`SELECT title, borrowed_by_type, borrowed_by_id FROM %s WHERE id = $1`, scope.bookTable())
	err = tx.QueryRowContext(ctx, query, id).Scan(&title, &byType, &byID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errBookNotFound
		}
		return err
	}

	if byID.Valid {
		holder := "staff"
		if byType.String == string(ScopeMember) {
			holder = "a member"
		}
		return &ConflictError{
			Message: "Cannot delete book. This book is currently borrowed and must be returned first.",
			Details: fmt.Sprintf("Book %q is currently borrowed by %s. Please return the book before deleting.", title, holder),
		}
	}

	query = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, scope.bookTable())
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return err
	}

	return tx.Commit()
}
