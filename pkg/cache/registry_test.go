package cache

import (
	"context"
	"net/http"
	"testing"
	"time"
)

// setupTestRegistry creates a registry over an embedded LevelDB backend in a
// temp directory. Redis-specific behavior is covered in redis_test.go.
func setupTestRegistry(t *testing.T) *Registry {
	t.Helper()

	backend, err := OpenLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open leveldb backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	return NewRegistry(backend)
}

func testEntry(body string) *Entry {
	return &Entry{
		Data:       []byte(body),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/plain"}},
		StoredAt:   time.Now(),
	}
}

func TestNewRegistry_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRegistry should panic with nil backend")
		}
	}()
	NewRegistry(nil)
}

func TestStore_PutAndMatch(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	store := registry.Open("static-v1")
	url := "https://example.com/css/site.css"

	entry := &Entry{
		Data:       []byte("body { margin: 0 }"),
		StatusCode: 200,
		Headers: http.Header{
			"Content-Type":  []string{"text/css"},
			"Cache-Control": []string{"max-age=3600"},
		},
		StoredAt: time.Now(),
	}

	if err := store.Put(ctx, url, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Round-trip: status, body, and headers come back unchanged.
	got, err := store.Match(ctx, url)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", got.Data, entry.Data)
	}
	if got.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode mismatch: got %d, want %d", got.StatusCode, entry.StatusCode)
	}
	if got.Headers.Get("Content-Type") != "text/css" {
		t.Errorf("Content-Type mismatch: got %q", got.Headers.Get("Content-Type"))
	}
	if got.Headers.Get("Cache-Control") != "max-age=3600" {
		t.Errorf("Cache-Control mismatch: got %q", got.Headers.Get("Cache-Control"))
	}
}

func TestStore_Match_CacheMiss(t *testing.T) {
	registry := setupTestRegistry(t)
	store := registry.Open("static-v1")

	_, err := store.Match(context.Background(), "https://example.com/missing")
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestStore_Put_Overwrite(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()
	store := registry.Open("dynamic-v1")
	url := "https://example.com/js/app.js"

	if err := store.Put(ctx, url, testEntry("old")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, url, testEntry("new")); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}

	got, err := store.Match(ctx, url)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if string(got.Data) != "new" {
		t.Errorf("Overwrite not applied: got %s", got.Data)
	}
}

func TestStore_Put_SkipsUnsuccessful(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()
	store := registry.Open("api-v1")
	url := "https://api.example.com/quote"

	entry := testEntry("not found")
	entry.StatusCode = 404

	if err := store.Put(ctx, url, entry); err != nil {
		t.Fatalf("Put of unsuccessful response should be a silent no-op, got %v", err)
	}
	if _, err := store.Match(ctx, url); err != ErrCacheMiss {
		t.Errorf("Unsuccessful response must not be stored, got %v", err)
	}
}

func TestStore_Match_GenerationIsolation(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()
	url := "https://example.com/index.html"

	if err := registry.Open("static-v1").Put(ctx, url, testEntry("v1 page")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Match must search only the given generation, never across all.
	if _, err := registry.Open("api-v1").Match(ctx, url); err != ErrCacheMiss {
		t.Errorf("Match leaked across generations: got %v, want ErrCacheMiss", err)
	}
}

func TestRegistry_Generations(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	registry.Open("static-v1").Put(ctx, "https://example.com/a", testEntry("a"))
	registry.Open("static-v1").Put(ctx, "https://example.com/b", testEntry("b"))
	registry.Open("api-v1").Put(ctx, "https://api.example.com/q", testEntry("q"))

	names, err := registry.Generations(ctx)
	if err != nil {
		t.Fatalf("Generations failed: %v", err)
	}
	want := []string{"api-v1", "static-v1"}
	if len(names) != len(want) {
		t.Fatalf("Generations = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Generations[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistry_EntryCounts(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	registry.Open("static-v1").Put(ctx, "https://example.com/a", testEntry("a"))
	registry.Open("static-v1").Put(ctx, "https://example.com/b", testEntry("b"))
	registry.Open("dynamic-v1").Put(ctx, "https://cdn.example.com/lib.js", testEntry("js"))

	counts, err := registry.EntryCounts(ctx)
	if err != nil {
		t.Fatalf("EntryCounts failed: %v", err)
	}
	if counts["static-v1"] != 2 {
		t.Errorf("static-v1 count = %d, want 2", counts["static-v1"])
	}
	if counts["dynamic-v1"] != 1 {
		t.Errorf("dynamic-v1 count = %d, want 1", counts["dynamic-v1"])
	}
}

func TestRegistry_DeleteGenerationsNotIn(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	registry.Open("static-v1").Put(ctx, "https://example.com/a", testEntry("a"))
	registry.Open("static-v2").Put(ctx, "https://example.com/a", testEntry("a2"))
	registry.Open("api-v2").Put(ctx, "https://api.example.com/q", testEntry("q"))

	keep := map[string]struct{}{
		"static-v2": {},
		"api-v2":    {},
	}

	deleted, err := registry.DeleteGenerationsNotIn(ctx, keep)
	if err != nil {
		t.Fatalf("DeleteGenerationsNotIn failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "static-v1" {
		t.Errorf("deleted = %v, want [static-v1]", deleted)
	}

	// static-v1 entries are gone, survivors untouched.
	if _, err := registry.Open("static-v1").Match(ctx, "https://example.com/a"); err != ErrCacheMiss {
		t.Errorf("static-v1 entry should be deleted, got %v", err)
	}
	if _, err := registry.Open("static-v2").Match(ctx, "https://example.com/a"); err != nil {
		t.Errorf("static-v2 entry should survive, got %v", err)
	}
}

func TestRegistry_DeleteGenerationsNotIn_Idempotent(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	registry.Open("static-v1").Put(ctx, "https://example.com/a", testEntry("a"))
	registry.Open("static-v2").Put(ctx, "https://example.com/a", testEntry("a2"))

	keep := map[string]struct{}{"static-v2": {}}

	if _, err := registry.DeleteGenerationsNotIn(ctx, keep); err != nil {
		t.Fatalf("First sweep failed: %v", err)
	}

	// Second sweep with the same set: no error, nothing more to delete.
	deleted, err := registry.DeleteGenerationsNotIn(ctx, keep)
	if err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("Second sweep deleted %v, want nothing", deleted)
	}
}

func TestRegistry_PurgeAll(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()

	registry.Open("static-v1").Put(ctx, "https://example.com/a", testEntry("a"))
	registry.Open("api-v1").Put(ctx, "https://api.example.com/q", testEntry("q"))

	n, err := registry.PurgeAll(ctx)
	if err != nil {
		t.Fatalf("PurgeAll failed: %v", err)
	}
	if n != 2 {
		t.Errorf("PurgeAll removed %d entries, want 2", n)
	}

	names, err := registry.Generations(ctx)
	if err != nil {
		t.Fatalf("Generations failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Generations after purge = %v, want none", names)
	}
}

func TestStore_Delete(t *testing.T) {
	registry := setupTestRegistry(t)
	ctx := context.Background()
	store := registry.Open("dynamic-v1")
	url := "https://example.com/tmp"

	if err := store.Put(ctx, url, testEntry("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Match(ctx, url); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}
