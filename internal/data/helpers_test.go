package data

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func tempModels(t *testing.T) (Models, *testClock) {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenDB(context.Background(), DBConfig{Driver: DriverSQLite, DSN: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &testClock{now: time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)}
	return NewModels(db, clock.Now), clock
}

// testClock is a settable clock shared by the models under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func addBook(t *testing.T, m Models, scope Scope, title, number string) *BookCopy {
	t.Helper()
	b := &BookCopy{Title: title, Author: "Author", BookNumber: number}
	if err := m.Catalog.Insert(context.Background(), scope, b); err != nil {
		t.Fatalf("insert %s book %q: %v", scope, number, err)
	}
	return b
}

func addBorrower(t *testing.T, m Models, kind Scope, name, ident string) *Borrower {
	t.Helper()
	b := BorrowerInput{Name: name, AdmID: ident, TSCNumber: ident}.Borrower(kind)
	if err := m.Directory.Insert(context.Background(), b); err != nil {
		t.Fatalf("insert %s %q: %v", kind, ident, err)
	}
	return b
}

func wantConflict(t *testing.T, err error) *ConflictError {
	t.Helper()
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConflictError, got %T %v", err, err)
	}
	return ce
}

func wantValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %T %v", err, err)
	}
	if ve.Field != field {
		t.Fatalf("want field %q, got %q (%s)", field, ve.Field, ve.Message)
	}
}

func wantNotFound(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("want not found, got %T %v", err, err)
	}
}
