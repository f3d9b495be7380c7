package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aoideee/school-library/internal/config"
	"github.com/aoideee/school-library/internal/data"
)

func newTestApplication(t *testing.T, mutate func(*serverConfig)) *applicationDependencies {
	t.Helper()

	db, err := data.OpenDB(context.Background(), data.DBConfig{
		Driver: data.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var cfg serverConfig
	cfg.environment = "testing"
	cfg.school = config.School{Name: "Kisumu High School", Code: "KHS"}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newApplication(cfg, logger, data.NewModels(db, nil))
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, app *applicationDependencies) *testServer {
	return &testServer{t: t, handler: app.routes()}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// mustDo runs the request and fails unless the status matches.
func (ts *testServer) mustDo(method, path, body string, want int) *httptest.ResponseRecorder {
	ts.t.Helper()
	rr := ts.do(method, path, body)
	if rr.Code != want {
		ts.t.Fatalf("%s %s: status %d, want %d; body %s", method, path, rr.Code, want, rr.Body.String())
	}
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}
