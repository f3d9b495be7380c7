package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aoideee/school-library/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateAndStats(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "khs-library.db")

	out, err := run(t, "migrate", "--db-dsn", dsn)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema at version 1") {
		t.Fatalf("migrate output = %q", out)
	}

	out, err = run(t, "stats", "--db-dsn", dsn)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "Total borrows    0") {
		t.Fatalf("stats output = %q", out)
	}
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--user", "lib-1", "--role", "principal", "--secret", "s3cret", "--school-code", "KHS")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := auth.NewTokenManager("s3cret", "").ValidateToken(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("minted token invalid: %v", err)
	}
	if claims.UserID != "lib-1" || claims.Role != auth.RolePrincipal || claims.School != "KHS" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := run(t, "token", "--user", "x", "--role", "student", "--secret", "s3cret"); err == nil {
		t.Fatal("unknown role should fail")
	}
	if _, err := run(t, "token", "--role", "staff", "--secret", "s3cret"); err == nil {
		t.Fatal("missing --user should fail")
	}
}
