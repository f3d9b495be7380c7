package data

import (
	"context"
	"strings"
	"testing"
)

func TestBookNumberUniquePerCatalog(t *testing.T) {
	m, _ := tempModels(t)
	ctx := context.Background()

	first := addBook(t, m, ScopeMember, "Mathematics", "MATH-001")
	if first.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	dup := &BookCopy{Title: "Physics", Author: "Jones", BookNumber: "MATH-001"}
	ce := wantConflict(t, m.Catalog.Insert(ctx, ScopeMember, dup))
	if ce.Message != "Book number already exists" {
		t.Fatalf("message = %q", ce.Message)
	}
	if !strings.Contains(ce.Details, `"Mathematics"`) {
		t.Fatalf("details should name the holder: %q", ce.Details)
	}

	// The staff catalog is a separate namespace.
	other := &BookCopy{Title: "Physics", Author: "Jones", BookNumber: "MATH-001"}
	if err := m.Catalog.Insert(ctx, ScopeStaff, other); err != nil {
		t.Fatalf("same number in staff catalog: %v", err)
	}

	books, err := m.Catalog.List(ctx, ScopeMember, Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("failed insert must not write, got %d books", len(books))
	}
}

func TestBookValidation(t *testing.T) {
	m, _ := tempModels(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		book  BookCopy
		field string
		msg   string
	}{
		{"missing title", BookCopy{Author: "A", BookNumber: "AB"}, "title", "Title is required"},
		{"missing author", BookCopy{Title: "T", BookNumber: "AB"}, "author", "Author is required"},
		{"missing number", BookCopy{Title: "T", Author: "A"}, "bookNumber", "Book number is required"},
		{"too short", BookCopy{Title: "T", Author: "A", BookNumber: "A"}, "bookNumber", "Book number must be between 2 and 15 characters"},
		{"too long", BookCopy{Title: "T", Author: "A", BookNumber: "ABCDEFGHIJKLMNOP"}, "bookNumber", "Book number must be between 2 and 15 characters"},
		{"bad chars", BookCopy{Title: "T", Author: "A", BookNumber: "AB 12"}, "bookNumber", "Book number can only contain letters, numbers, and separators (/, -, _, .)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.book
			err := m.Catalog.Insert(ctx, ScopeMember, &b)
			wantValidation(t, err, tt.field)
			if err.Error() != tt.msg {
				t.Fatalf("message = %q, want %q", err.Error(), tt.msg)
			}
		})
	}

	for _, ok := range []string{"AB", "ENG/2024_01.a", "123456789012345"} {
		b := &BookCopy{Title: "T", Author: "A", BookNumber: ok}
		if err := m.Catalog.Insert(ctx, ScopeMember, b); err != nil {
			t.Fatalf("%q should be accepted: %v", ok, err)
		}
	}
}

func TestBookUpdate(t *testing.T) {
	m, _ := tempModels(t)
	ctx := context.Background()

	a := addBook(t, m, ScopeMember, "Algebra", "ALG-1")
	addBook(t, m, ScopeMember, "Biology", "BIO-1")

	// Keeping its own number is not a conflict.
	same := "ALG-1"
	subject := "Maths"
	got, err := m.Catalog.Update(ctx, ScopeMember, a.ID, UpdateBookInput{BookNumber: &same, Subject: &subject})
	if err != nil {
		t.Fatalf("update with own number: %v", err)
	}
	if got.Subject != "Maths" || got.Title != "Algebra" {
		t.Fatalf("unexpected book after update: %+v", got)
	}

	taken := "BIO-1"
	_, err = m.Catalog.Update(ctx, ScopeMember, a.ID, UpdateBookInput{BookNumber: &taken})
	ce := wantConflict(t, err)
	if !strings.Contains(ce.Details, `"Biology"`) {
		t.Fatalf("details = %q", ce.Details)
	}

	bad := "x"
	_, err = m.Catalog.Update(ctx, ScopeMember, a.ID, UpdateBookInput{BookNumber: &bad})
	wantValidation(t, err, "bookNumber")

	_, err = m.Catalog.Update(ctx, ScopeMember, 999, UpdateBookInput{Title: &same})
	wantNotFound(t, err)

	stored, err := m.Catalog.Get(ctx, ScopeMember, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.BookNumber != "ALG-1" {
		t.Fatalf("rejected updates must not write, number = %q", stored.BookNumber)
	}
}

func TestDeleteBorrowedBookBlocked(t *testing.T) {
	m, _ := tempModels(t)
	ctx := context.Background()

	b := addBook(t, m, ScopeMember, "Chemistry", "CHEM-1")
	if _, err := m.Ledger.Borrow(ctx, BorrowInput{BookID: b.ID, UserType: "member", UserID: 3, Name: "Ann"}); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	ce := wantConflict(t, m.Catalog.Delete(ctx, ScopeMember, b.ID))
	if !strings.Contains(ce.Details, "borrowed by a member") {
		t.Fatalf("details = %q", ce.Details)
	}

	if _, err := m.Ledger.Return(ctx, ReturnInput{BookID: b.ID, UserType: "member"}); err != nil {
		t.Fatalf("return: %v", err)
	}
	if err := m.Catalog.Delete(ctx, ScopeMember, b.ID); err != nil {
		t.Fatalf("delete after return: %v", err)
	}
	wantNotFound(t, m.Catalog.Delete(ctx, ScopeMember, b.ID))

	// History outlives the copy.
	entries, err := m.History.List(ctx, HistoryFilter{BookID: b.ID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].BookTitle != "Chemistry" {
		t.Fatalf("history should keep the deleted copy's entry: %+v", entries)
	}
}

func TestListSort(t *testing.T) {
	m, _ := tempModels(t)
	ctx := context.Background()

	addBook(t, m, ScopeStaff, "Zoology", "Z-1")
	addBook(t, m, ScopeStaff, "Anatomy", "A-1")

	safe := []string{"id", "title", "-title"}
	books, err := m.Catalog.List(ctx, ScopeStaff, Filters{Sort: "title", SortSafeList: safe})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if books[0].Title != "Anatomy" {
		t.Fatalf("want Anatomy first, got %q", books[0].Title)
	}

	books, err = m.Catalog.List(ctx, ScopeStaff, Filters{Sort: "-title", SortSafeList: safe})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if books[0].Title != "Zoology" {
		t.Fatalf("want Zoology first, got %q", books[0].Title)
	}

	// Values outside the safelist sort by id ascending, direction included.
	books, err = m.Catalog.List(ctx, ScopeStaff, Filters{Sort: "-author", SortSafeList: safe})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if books[0].Title != "Zoology" || books[1].Title != "Anatomy" {
		t.Fatalf("want id order, got %q, %q", books[0].Title, books[1].Title)
	}
}
