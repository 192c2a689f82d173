package repo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func openTestSQLite(t *testing.T) *SQLiteNutRepo {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nuts.db"))
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED=0") {
			t.Skip("sqlite3 requires cgo")
		}
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteNutRepo(db)
}

func TestSQLiteNutRepo(t *testing.T) {
	r := openTestSQLite(t)
	ctx := context.Background()

	recs := []*NutRecord{
		{Namespace: "site", Name: "js/b.js", Type: "js", Content: []byte("b()"), Version: "v1"},
		{Namespace: "site", Name: "js/a.js", Type: "js", Content: []byte("a()"), Version: "v1"},
		{Namespace: "other", Name: "c.css", Type: "css", Content: []byte("c{}"), Version: "v1"},
	}
	for _, rec := range recs {
		if err := r.Upsert(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	names, err := r.Names(ctx, "site")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"js/a.js", "js/b.js"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	// Повторный Upsert заменяет содержимое и версию
	if err := r.Upsert(ctx, &NutRecord{Namespace: "site", Name: "js/a.js", Type: "js", Content: []byte("a2()"), Version: "v2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := r.Get(ctx, "site", "js/a.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Content) != "a2()" || got.Version != "v2" {
		t.Errorf("unexpected record %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}

	versions, err := r.Versions(ctx, "site")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"js/a.js": "v2", "js/b.js": "v1"}, versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteNutRepo_NotFound(t *testing.T) {
	r := openTestSQLite(t)
	ctx := context.Background()

	if _, err := r.Get(ctx, "site", "missing.js"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(ctx, "site", "missing.js"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
