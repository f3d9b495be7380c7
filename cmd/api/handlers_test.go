package main

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aoideee/school-library/internal/auth"
	"github.com/aoideee/school-library/internal/data"
)

func TestBorrowReturnFlow(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	rr := ts.mustDo(http.MethodPost, "/api/member-books", `{"title":"Mathematics","author":"Smith","bookNumber":"MATH-001"}`, http.StatusOK)
	book := decode[data.BookCopy](t, rr)
	if book.ID == 0 || book.BookNumber != "MATH-001" {
		t.Fatalf("created book = %+v", book)
	}

	ts.mustDo(http.MethodPost, "/api/borrow",
		fmt.Sprintf(`{"bookId":%d,"userType":"member","userId":7,"name":"Alice"}`, book.ID), http.StatusOK)

	got := decode[data.BookCopy](t, ts.mustDo(http.MethodGet, fmt.Sprintf("/api/member-books/%d", book.ID), "", http.StatusOK))
	if got.BorrowedByID == nil || *got.BorrowedByID != 7 || got.BorrowedAt == nil {
		t.Fatalf("book not borrowed: %+v", got)
	}
	if got.DaysOutstanding == nil || *got.DaysOutstanding > 1 {
		t.Fatalf("daysOutstanding = %v, want at most 1", got.DaysOutstanding)
	}

	history := decode[[]data.HistoryEntry](t, ts.mustDo(http.MethodGet, "/api/history", "", http.StatusOK))
	if len(history) != 1 || history[0].Name != "Alice" || history[0].ReturnedAt != nil {
		t.Fatalf("history after borrow = %+v", history)
	}

	rr = ts.mustDo(http.MethodPost, "/api/borrow",
		fmt.Sprintf(`{"bookId":%d,"userType":"member","userId":8,"name":"Bob"}`, book.ID), http.StatusBadRequest)
	if e := decode[errorBody](t, rr); e.Error != "Book already borrowed" {
		t.Fatalf("error = %q", e.Error)
	}

	returnBody := fmt.Sprintf(`{"bookId":%d,"userType":"member"}`, book.ID)
	rr = ts.mustDo(http.MethodPost, "/api/return", returnBody, http.StatusOK)
	if ok := decode[map[string]any](t, rr)["success"]; ok != true {
		t.Fatalf("return body = %s", rr.Body.String())
	}

	got = decode[data.BookCopy](t, ts.mustDo(http.MethodGet, fmt.Sprintf("/api/member-books/%d", book.ID), "", http.StatusOK))
	if got.Borrowed() || got.ReturnedAt == nil {
		t.Fatalf("book after return = %+v", got)
	}

	history = decode[[]data.HistoryEntry](t, ts.mustDo(http.MethodGet, "/api/history", "", http.StatusOK))
	if len(history) != 1 || history[0].ReturnedAt == nil {
		t.Fatalf("history after return = %+v", history)
	}

	rr = ts.mustDo(http.MethodPost, "/api/return", returnBody, http.StatusBadRequest)
	if e := decode[errorBody](t, rr); e.Error != "Book is not borrowed" {
		t.Fatalf("error = %q", e.Error)
	}
}

func TestLedgerErrorStatuses(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	tests := []struct {
		name string
		path string
		body string
		want int
		msg  string
	}{
		{"borrow unknown copy", "/api/borrow", `{"bookId":99,"userType":"staff","userId":1,"name":"X"}`, http.StatusNotFound, "Book not found"},
		{"return unknown copy", "/api/return", `{"bookId":99,"userType":"member"}`, http.StatusNotFound, "Book not found"},
		{"bad user type", "/api/borrow", `{"bookId":1,"userType":"guest","userId":1}`, http.StatusBadRequest, ""},
		// Omitting userType selects the member catalog, which has no copy 77.
		{"missing user type", "/api/return", `{"bookId":77}`, http.StatusNotFound, "Book not found"},
		{"unknown field", "/api/borrow", `{"bookId":1,"userType":"member","userId":1,"colour":"red"}`, http.StatusBadRequest, `body contains unknown key "colour"`},
		{"malformed json", "/api/return", `{"bookId":`, http.StatusBadRequest, "body contains badly-formed JSON"},
		{"empty body", "/api/return", ``, http.StatusBadRequest, "body must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.mustDo(http.MethodPost, tt.path, tt.body, tt.want)
			if tt.msg != "" {
				if e := decode[errorBody](t, rr); e.Error != tt.msg {
					t.Fatalf("error = %q, want %q", e.Error, tt.msg)
				}
			}
		})
	}
}

func TestBatchReturnAbsorbsFailures(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	var ids []int64
	for _, n := range []string{"B-1", "B-2"} {
		b := decode[data.BookCopy](t, ts.mustDo(http.MethodPost, "/api/member-books",
			fmt.Sprintf(`{"title":"Book %s","author":"A","bookNumber":%q}`, n, n), http.StatusOK))
		ids = append(ids, b.ID)
	}
	ts.mustDo(http.MethodPost, "/api/borrow", fmt.Sprintf(`{"bookId":%d,"userType":"member","userId":1,"name":"N"}`, ids[0]), http.StatusOK)

	// ids[1] is available and 404 does not exist; neither fails the batch.
	rr := ts.mustDo(http.MethodPost, "/api/return", fmt.Sprintf(`{"bookIds":[%d,%d,404]}`, ids[0], ids[1]), http.StatusOK)
	if msg := decode[map[string]any](t, rr)["message"]; msg != "Books returned successfully" {
		t.Fatalf("message = %v", msg)
	}

	got := decode[data.BookCopy](t, ts.mustDo(http.MethodGet, fmt.Sprintf("/api/member-books/%d", ids[0]), "", http.StatusOK))
	if got.Borrowed() {
		t.Fatal("batch should have returned the borrowed copy")
	}

	// The same failure through the single form is reported.
	ts.mustDo(http.MethodPost, "/api/return", fmt.Sprintf(`{"bookId":%d,"userType":"member"}`, ids[1]), http.StatusBadRequest)
}

func TestHistoryIsReadOnly(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	b := decode[data.BookCopy](t, ts.mustDo(http.MethodPost, "/api/staff-books", `{"title":"T","author":"A","bookNumber":"T-1"}`, http.StatusOK))
	ts.mustDo(http.MethodPost, "/api/borrow", fmt.Sprintf(`{"bookId":%d,"userType":"staff","userId":3,"name":"Mr K"}`, b.ID), http.StatusOK)

	create := "History entries cannot be created manually. They are automatically generated by the system."
	modify := "History entries cannot be modified. They are permanent records."
	remove := "History entries cannot be deleted. They are permanent records."

	tests := []struct {
		method string
		path   string
		body   string
		msg    string
	}{
		{http.MethodPost, "/api/history", `{"userType":"member","userId":1,"bookId":1}`, create},
		{http.MethodPost, "/api/history", `not even json`, create},
		{http.MethodPost, "/api/history/1", ``, create},
		{http.MethodPut, "/api/history/1", `{"returnedAt":null}`, modify},
		{http.MethodPatch, "/api/history/1", `{}`, modify},
		{http.MethodPut, "/api/history", `[]`, modify},
		{http.MethodDelete, "/api/history/1", ``, remove},
		{http.MethodDelete, "/api/history", ``, remove},
		{http.MethodDelete, "/api/history/1/anything", ``, remove},
	}
	for _, tt := range tests {
		rr := ts.mustDo(tt.method, tt.path, tt.body, http.StatusForbidden)
		if e := decode[errorBody](t, rr); e.Error != tt.msg {
			t.Errorf("%s %s: error = %q", tt.method, tt.path, e.Error)
		}
	}

	history := decode[[]data.HistoryEntry](t, ts.mustDo(http.MethodGet, "/api/history", "", http.StatusOK))
	if len(history) != 1 || !history[0].Open() {
		t.Fatalf("history changed: %+v", history)
	}
	entry := decode[data.HistoryEntry](t, ts.mustDo(http.MethodGet, fmt.Sprintf("/api/history/%d", history[0].ID), "", http.StatusOK))
	if entry.BookTitle != "T" || entry.UserType != data.ScopeStaff {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestConflictResponsesCarryDetails(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	ts.mustDo(http.MethodPost, "/api/members", `{"name":"Alice","admId":"ADM001"}`, http.StatusOK)
	rr := ts.mustDo(http.MethodPost, "/api/members", `{"name":"Bob","admId":"ADM001"}`, http.StatusBadRequest)
	e := decode[errorBody](t, rr)
	if e.Error != "ADM/ID No already exists" || !strings.Contains(e.Details, "Alice") {
		t.Fatalf("conflict body = %+v", e)
	}

	ts.mustDo(http.MethodPost, "/api/member-books", `{"title":"Maths","author":"S","bookNumber":"M-1"}`, http.StatusOK)
	rr = ts.mustDo(http.MethodPost, "/api/member-books", `{"title":"Other","author":"S","bookNumber":"M-1"}`, http.StatusBadRequest)
	e = decode[errorBody](t, rr)
	if e.Error != "Book number already exists" || e.Details == "" {
		t.Fatalf("conflict body = %+v", e)
	}

	rr = ts.mustDo(http.MethodPost, "/api/staff", `{"name":"Mrs K"}`, http.StatusBadRequest)
	if e := decode[errorBody](t, rr); e.Error != "TSC Number is required" {
		t.Fatalf("error = %q", e.Error)
	}
}

func TestDeleteBorrowerAndBook(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	m := decode[data.Borrower](t, ts.mustDo(http.MethodPost, "/api/members", `{"name":"Alice","admId":"ADM001"}`, http.StatusOK))
	b := decode[data.BookCopy](t, ts.mustDo(http.MethodPost, "/api/member-books", `{"title":"Maths","author":"S","bookNumber":"M-1"}`, http.StatusOK))
	ts.mustDo(http.MethodPost, "/api/borrow", fmt.Sprintf(`{"bookId":%d,"userType":"member","userId":%d}`, b.ID, m.ID), http.StatusOK)

	held := decode[[]data.BookCopy](t, ts.mustDo(http.MethodGet, fmt.Sprintf("/api/members/%d/books", m.ID), "", http.StatusOK))
	if len(held) != 1 || held[0].ID != b.ID {
		t.Fatalf("held = %+v", held)
	}

	holding := decode[map[string]any](t, ts.mustDo(http.MethodGet, fmt.Sprintf("/api/member-books/%d/holder", b.ID), "", http.StatusOK))
	if holder, _ := holding["holder"].(map[string]any); holder["name"] != "Alice" {
		t.Fatalf("holding = %v", holding)
	}

	ts.mustDo(http.MethodDelete, fmt.Sprintf("/api/members/%d", m.ID), "", http.StatusBadRequest)
	ts.mustDo(http.MethodDelete, fmt.Sprintf("/api/member-books/%d", b.ID), "", http.StatusBadRequest)

	ts.mustDo(http.MethodPost, "/api/return", fmt.Sprintf(`{"bookId":%d,"userType":"member"}`, b.ID), http.StatusOK)

	rr := ts.mustDo(http.MethodDelete, fmt.Sprintf("/api/member-books/%d", b.ID), "", http.StatusOK)
	body := decode[map[string]any](t, rr)
	if body["success"] != true || body["message"] != "Book deleted successfully. Borrowing history is preserved for future reference." {
		t.Fatalf("delete body = %v", body)
	}
	rr = ts.mustDo(http.MethodDelete, fmt.Sprintf("/api/members/%d", m.ID), "", http.StatusOK)
	if msg := decode[map[string]any](t, rr)["message"]; !strings.HasPrefix(msg.(string), "Member deleted successfully.") {
		t.Fatalf("delete message = %v", msg)
	}

	ts.mustDo(http.MethodDelete, fmt.Sprintf("/api/members/%d", m.ID), "", http.StatusNotFound)
	if n := len(decode[[]data.HistoryEntry](t, ts.mustDo(http.MethodGet, "/api/history", "", http.StatusOK))); n != 1 {
		t.Fatalf("history entries = %d, want 1", n)
	}
}

func TestWriteEndpointsRequireToken(t *testing.T) {
	app := newTestApplication(t, func(cfg *serverConfig) { cfg.jwt.secret = "test-secret" })
	ts := newTestServer(t, app)

	body := `{"title":"T","author":"A","bookNumber":"T-1"}`
	ts.mustDo(http.MethodPost, "/api/member-books", body, http.StatusUnauthorized)
	ts.mustDo(http.MethodGet, "/api/member-books", "", http.StatusOK)

	ts.token = "garbage"
	ts.mustDo(http.MethodPost, "/api/member-books", body, http.StatusUnauthorized)

	tok, err := auth.NewTokenManager("test-secret", "").GenerateToken("lib-1", auth.RoleLibrarian, "KHS", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	ts.token = tok
	ts.mustDo(http.MethodPost, "/api/member-books", body, http.StatusOK)

	// History stays forbidden for authenticated callers too.
	ts.mustDo(http.MethodDelete, "/api/history", "", http.StatusForbidden)
}

func TestRateLimitExceeded(t *testing.T) {
	app := newTestApplication(t, func(cfg *serverConfig) {
		cfg.limiter.enabled = true
		cfg.limiter.rps = 0.001
		cfg.limiter.burst = 2
	})
	ts := newTestServer(t, app)

	ts.mustDo(http.MethodGet, "/api/healthcheck", "", http.StatusOK)
	ts.mustDo(http.MethodGet, "/api/healthcheck", "", http.StatusOK)
	rr := ts.mustDo(http.MethodGet, "/api/healthcheck", "", http.StatusTooManyRequests)
	if e := decode[errorBody](t, rr); e.Error != "rate limit exceeded" {
		t.Fatalf("error = %q", e.Error)
	}
}

func TestRoutingAndHeaders(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	rr := ts.mustDo(http.MethodGet, "/api/school", "", http.StatusOK)
	if school := decode[map[string]any](t, rr); school["name"] != "Kisumu High School" {
		t.Fatalf("school = %v", school)
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "X-XSS-Protection", "Strict-Transport-Security", "X-Request-ID"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}

	ts.mustDo(http.MethodGet, "/api/nowhere", "", http.StatusNotFound)
	ts.mustDo(http.MethodPatch, "/api/members", "", http.StatusMethodNotAllowed)
	ts.mustDo(http.MethodGet, "/api/member-books/abc", "", http.StatusBadRequest)
	ts.mustDo(http.MethodGet, "/api/subjects/visitors", "", http.StatusNotFound)
	ts.mustDo(http.MethodGet, "/api/history?status=lost", "", http.StatusBadRequest)
	ts.mustDo(http.MethodGet, "/metrics", "", http.StatusOK)
}

func TestSubjectsAndStats(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	ts.mustDo(http.MethodPost, "/api/member-books", `{"title":"Algebra","author":"A","bookNumber":"M-1","subject":"Mathematics"}`, http.StatusOK)
	b := decode[data.BookCopy](t, ts.mustDo(http.MethodPost, "/api/member-books", `{"title":"Notes","author":"B","bookNumber":"N-1"}`, http.StatusOK))

	groups := decode[struct {
		Subjects []string                   `json:"subjects"`
		Books    map[string][]data.BookCopy `json:"books"`
	}](t, ts.mustDo(http.MethodGet, "/api/subjects/member", "", http.StatusOK))
	if len(groups.Subjects) != 2 || groups.Subjects[0] != "Mathematics" || len(groups.Books[data.UncategorizedSubject]) != 1 {
		t.Fatalf("groups = %+v", groups)
	}

	ts.mustDo(http.MethodPost, "/api/borrow", fmt.Sprintf(`{"bookId":%d,"userType":"member","userId":2,"name":"Z"}`, b.ID), http.StatusOK)
	stats := decode[data.HistoryStats](t, ts.mustDo(http.MethodGet, "/api/stats", "", http.StatusOK))
	if stats.TotalBorrows != 1 || stats.ActiveBorrows != 1 || stats.TotalReturns != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestBorrowerSortKeysPerDirectory(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	ts.mustDo(http.MethodPost, "/api/members", `{"name":"Amina","admId":"ADM002"}`, http.StatusOK)
	ts.mustDo(http.MethodPost, "/api/members", `{"name":"Brian","admId":"ADM001"}`, http.StatusOK)
	ts.mustDo(http.MethodPost, "/api/staff", `{"name":"Mrs Otieno","tscNumber":"TSC-2"}`, http.StatusOK)
	ts.mustDo(http.MethodPost, "/api/staff", `{"name":"Mr Kamau","tscNumber":"TSC-1"}`, http.StatusOK)

	tests := []struct {
		path  string
		first string
	}{
		{"/api/members?sort=admId", "Brian"},
		{"/api/members?sort=-admId", "Amina"},
		{"/api/members?sort=-name", "Brian"},
		{"/api/staff?sort=tscNumber", "Mr Kamau"},
		{"/api/staff?sort=-tscNumber", "Mrs Otieno"},
		{"/api/staff?sort=name", "Mr Kamau"},
		// The other directory's identifier is not a column here; it falls back to id.
		{"/api/members?sort=-tscNumber", "Amina"},
		{"/api/staff?sort=admId", "Mrs Otieno"},
	}
	for _, tt := range tests {
		list := decode[[]data.Borrower](t, ts.mustDo(http.MethodGet, tt.path, "", http.StatusOK))
		if len(list) != 2 || list[0].Name != tt.first {
			t.Errorf("GET %s: first = %+v, want %s", tt.path, list, tt.first)
		}
	}
}

func TestMetricsLabelledByRoute(t *testing.T) {
	ts := newTestServer(t, newTestApplication(t, nil))

	for i := 900; i < 905; i++ {
		ts.mustDo(http.MethodGet, fmt.Sprintf("/api/staff-books/%d", i), "", http.StatusNotFound)
		ts.mustDo(http.MethodGet, fmt.Sprintf("/api/unknown-%d", i), "", http.StatusNotFound)
	}

	body := ts.mustDo(http.MethodGet, "/metrics", "", http.StatusOK).Body.String()
	if !strings.Contains(body, `library_http_requests_total{method="GET",path="/api/staff-books/:id",status="404"}`) {
		t.Errorf("missing templated series")
	}
	for _, raw := range []string{"/api/staff-books/90", "/api/unknown-90"} {
		if strings.Contains(body, raw) {
			t.Errorf("raw path %s leaked into metric labels", raw)
		}
	}
}
