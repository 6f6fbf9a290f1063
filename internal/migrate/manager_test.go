package migrate

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestMigrationURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@db:5432/itroom?sslmode=disable": "pgx5://u:p@db:5432/itroom?sslmode=disable",
		"postgresql://u@db/itroom":                      "pgx5://u@db/itroom",
		" pgx5://u@db/itroom ":                          "pgx5://u@db/itroom",
	}
	for in, want := range cases {
		got, err := migrationURL(in)
		if err != nil {
			t.Fatalf("migrationURL(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("migrationURL(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := migrationURL("host=db user=u"); err == nil {
		t.Fatal("expected error for keyword DSN")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("iofs.New: %v", err)
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	count := 0
	for {
		count++
		up, _, err := src.ReadUp(v)
		if err != nil {
			t.Fatalf("ReadUp(%d): %v", v, err)
		}
		up.Close()
		down, _, err := src.ReadDown(v)
		if err != nil {
			t.Fatalf("ReadDown(%d): %v", v, err)
		}
		down.Close()

		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			t.Fatalf("Next(%d): %v", v, err)
		}
		v = next
	}
	if count != 3 {
		t.Fatalf("expected 3 migrations, got %d", count)
	}
}

func TestAuditTablesAreAppendOnly(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/000002_audit.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	sql := string(raw)
	for _, trigger := range []string{"audit_log_append_only", "entity_events_append_only"} {
		if !strings.Contains(sql, "create trigger "+trigger) {
			t.Fatalf("missing trigger %s", trigger)
		}
	}
}
