package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aoideee/school-library/internal/validator"
)

// Borrower is a member (identified by admission number) or a staff member
// (identified by TSC number). Exactly one of AdmID and TSCNumber is set,
// according to Kind.
type Borrower struct {
	ID        int64  `json:"id"`
	Kind      Scope  `json:"-"`
	Name      string `json:"name"`
	AdmID     string `json:"admId,omitempty"`
	TSCNumber string `json:"tscNumber,omitempty"`
}

// Identifier returns the unique human identifier for the borrower's kind.
func (b *Borrower) Identifier() string {
	if b.Kind == ScopeStaff {
		return b.TSCNumber
	}
	return b.AdmID
}

func (b *Borrower) setIdentifier(id string) {
	if b.Kind == ScopeStaff {
		b.TSCNumber = id
		return
	}
	b.AdmID = id
}

// BorrowerInput is the request body for creating or replacing a borrower.
// Members use admId, staff use tscNumber.
type BorrowerInput struct {
	Name      string `json:"name"`
	AdmID     string `json:"admId"`
	TSCNumber string `json:"tscNumber"`
}

// Borrower builds a Borrower of the given kind from the input.
func (in BorrowerInput) Borrower(kind Scope) *Borrower {
	b := &Borrower{Kind: kind, Name: strings.TrimSpace(in.Name)}
	if kind == ScopeStaff {
		b.TSCNumber = strings.TrimSpace(in.TSCNumber)
	} else {
		b.AdmID = strings.TrimSpace(in.AdmID)
	}
	return b
}

// identifierLabel is the user-facing name of the identifier field.
func identifierLabel(kind Scope) string {
	if kind == ScopeStaff {
		return "TSC Number"
	}
	return "ADM/ID No"
}

func identifierField(kind Scope) string {
	if kind == ScopeStaff {
		return "tscNumber"
	}
	return "admId"
}

func notFoundFor(kind Scope) error {
	if kind == ScopeStaff {
		return errStaffNotFound
	}
	return errMemberNotFound
}

// ValidateBorrower checks the mandatory name and identifier.
func ValidateBorrower(v *validator.Validator, b *Borrower) {
	v.Check(b.Identifier() != "", identifierField(b.Kind), identifierLabel(b.Kind)+" is required")
	v.Check(b.Name != "", "name", "Name is required")
}

// DirectoryModel provides CRUD over the members and staff tables.
type DirectoryModel struct {
	DB *sql.DB
}

func (m DirectoryModel) scan(kind Scope, row rowScanner) (*Borrower, error) {
	b := &Borrower{Kind: kind}
	var ident string
	if err := row.Scan(&b.ID, &b.Name, &ident); err != nil {
		return nil, err
	}
	b.setIdentifier(ident)
	return b, nil
}

// List returns every borrower of the given kind.
func (m DirectoryModel) List(ctx context.Context, kind Scope, filters Filters) ([]*Borrower, error) {
	query := fmt.Sprintf(`SELECT id, name, %s FROM %s ORDER BY %s %s, id ASC`,
		kind.identifierColumn(), kind.directoryTable(), filters.sortColumn(), filters.sortDirection())

	rows, err := m.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	borrowers := []*Borrower{}
	for rows.Next() {
		b, err := m.scan(kind, rows)
		if err != nil {
			return nil, err
		}
		borrowers = append(borrowers, b)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return borrowers, nil
}

// Get retrieves a borrower by id.
func (m DirectoryModel) Get(ctx context.Context, kind Scope, id int64) (*Borrower, error) {
	if id < 1 {
		return nil, notFoundFor(kind)
	}
	query := fmt.Sprintf(`SELECT id, name, %s FROM %s WHERE id = $1`, kind.identifierColumn(), kind.directoryTable())
	b, err := m.scan(kind, m.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundFor(kind)
		}
		return nil, err
	}
	return b, nil
}

func identifierConflict(kind Scope, ident, holder string) *ConflictError {
	label := identifierLabel(kind)
	who := "member"
	if kind == ScopeStaff {
		who = "staff"
	}
	details := fmt.Sprintf("%s %q is already in use. Please use a different %s.", label, ident, label)
	if holder != "" {
		details = fmt.Sprintf("%s %q is already assigned to %s %q. Please use a different %s.", label, ident, who, holder, label)
	}
	return &ConflictError{Message: label + " already exists", Details: details}
}

// checkIdentifier fails with a ConflictError naming the current holder when
// ident is taken by a borrower other than excludeID.
func checkIdentifier(ctx context.Context, q queryer, kind Scope, ident string, excludeID int64) error {
	var name string
	query := fmt.Sprintf(`SELECT name FROM %s WHERE %s = $1 AND id <> $2`, kind.directoryTable(), kind.identifierColumn())
	err := q.QueryRowContext(ctx, query, ident, excludeID).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}
	return identifierConflict(kind, ident, name)
}

// Insert validates b, checks its identifier is free and writes it.
func (m DirectoryModel) Insert(ctx context.Context, b *Borrower) error {
	v := validator.New()
	ValidateBorrower(v, b)
	if err := validationError(v); err != nil {
		return err
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkIdentifier(ctx, tx, b.Kind, b.Identifier(), 0); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (name, %s) VALUES ($1, $2) RETURNING id`,
		b.Kind.directoryTable(), b.Kind.identifierColumn())
	err = tx.QueryRowContext(ctx, query, b.Name, b.Identifier()).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return identifierConflict(b.Kind, b.Identifier(), "")
		}
		return err
	}

	return tx.Commit()
}

// Update replaces the name and identifier of the borrower with b.ID.
func (m DirectoryModel) Update(ctx context.Context, b *Borrower) error {
	v := validator.New()
	ValidateBorrower(v, b)
	if err := validationError(v); err != nil {
		return err
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := checkIdentifier(ctx, tx, b.Kind, b.Identifier(), b.ID); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET name = $1, %s = $2 WHERE id = $3`,
		b.Kind.directoryTable(), b.Kind.identifierColumn())
	result, err := tx.ExecContext(ctx, query, b.Name, b.Identifier(), b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return identifierConflict(b.Kind, b.Identifier(), "")
		}
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundFor(b.Kind)
	}

	return tx.Commit()
}

// Delete removes a borrower who holds no copy in the matching catalog.
// Past history does not block deletion.
func (m DirectoryModel) Delete(ctx context.Context, kind Scope, id int64) error {
	if id < 1 {
		return notFoundFor(kind)
	}

	tx, err := m.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var held int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE borrowed_by_id = $1 AND borrowed_by_type = $2`, kind.bookTable())
	if err := tx.QueryRowContext(ctx, query, id, string(kind)).Scan(&held); err != nil {
		return err
	}
	if held > 0 {
		if kind == ScopeStaff {
			return &ConflictError{
				Message: "Cannot delete staff. This staff member currently has borrowed books that must be returned first.",
				Details: fmt.Sprintf("Staff has %d book(s) currently borrowed. Please return all books before deleting.", held),
			}
		}
		return &ConflictError{
			Message: "Cannot delete member. This member currently has borrowed books that must be returned first.",
			Details: fmt.Sprintf("Member has %d book(s) currently borrowed. Please return all books before deleting.", held),
		}
	}

	query = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind.directoryTable())
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundFor(kind)
	}

	return tx.Commit()
}
