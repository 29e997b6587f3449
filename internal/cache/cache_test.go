package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestDB(t *testing.T, opts Options) (*SQLiteStore, string, func()) {
	tmpDir, err := os.MkdirTemp("", "webrag-cache-test")
	if err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(tmpDir, "cache.db")
	store, err := NewSQLiteStore(dbPath, opts, nil)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatal(err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, dbPath, cleanup
}

// clock is a settable time source
type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func TestKeyForURLNormalizesScheme(t *testing.T) {
	a := KeyForURL("http://example.com/page")
	b := KeyForURL("https://example.com/page")
	if a != b {
		t.Errorf("Expected http and https to share a key, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}
	if KeyForURL("https://example.com/other") == a {
		t.Error("Different URLs should not share a key")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://example.com/a", "https://example.com/a"},
		{"HTTP://example.com/a", "https://example.com/a"},
		{"https://example.com/a", "https://example.com/a"},
		{"  https://example.com/a  ", "https://example.com/a"},
		{"ftp://example.com/a", "ftp://example.com/a"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	stored := time.Unix(1700000000, 0)
	data, err := Encode(Entry{Text: "hello world", StoredAt: stored})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "webrag-cache/2\n") {
		t.Errorf("Unexpected header: %q", data[:20])
	}

	entry, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if entry.Text != "hello world" {
		t.Errorf("Expected 'hello world', got %q", entry.Text)
	}
	if !entry.StoredAt.Equal(stored) {
		t.Errorf("Expected %v, got %v", stored, entry.StoredAt)
	}
}

func TestNonUTF8TextRoundTrips(t *testing.T) {
	latin1 := "Caf\xe9 au lait "

	store, _, cleanup := setupTestDB(t, Options{})
	defer cleanup()

	stores := map[string]Store{
		"sqlite": store,
		"memory": NewMemoryStore(Options{}),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			key := KeyForURL("https://example.com/latin1")
			if err := s.Put(key, latin1); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			text, ok, err := s.Get(key)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !ok || text != latin1 {
				t.Errorf("Expected exact bytes %q, got %v %q", latin1, ok, text)
			}
		})
	}
}

func TestDecodeRejectsDamagedEntries(t *testing.T) {
	good, err := Encode(Entry{Text: "payload", StoredAt: time.Unix(1, 0)})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrCorrupt},
		{"no header", []byte(`{"text":"x"}`), ErrCorrupt},
		{"truncated header", []byte("webrag-cache/2"), ErrCorrupt},
		{"bad version", []byte("webrag-cache/x\n{}"), ErrCorrupt},
		{"future version", []byte("webrag-cache/9\n{}"), ErrUnsupportedVersion},
		{"bad json", []byte("webrag-cache/2\n{"), ErrCorrupt},
		{"tampered text", []byte(strings.Replace(string(good), "cGF5bG9hZA==", "cGF5bG9hWA==", 1)), ErrCorrupt},
		{"truncated body", good[:len(good)-5], ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSQLitePutAndGet(t *testing.T) {
	store, _, cleanup := setupTestDB(t, Options{})
	defer cleanup()

	key := KeyForURL("https://example.com/a")

	_, ok, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Empty cache should miss")
	}

	if err := store.Put(key, "article text"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	text, ok, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || text != "article text" {
		t.Errorf("Expected hit with 'article text', got %v %q", ok, text)
	}

	n, err := store.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 entry, got %d", n)
	}
}

func TestSQLitePutKeepsLiveEntry(t *testing.T) {
	store, _, cleanup := setupTestDB(t, Options{})
	defer cleanup()

	key := KeyForURL("https://example.com/a")
	if err := store.Put(key, "first"); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(key, "second"); err != nil {
		t.Fatal(err)
	}

	text, _, _ := store.Get(key)
	if text != "first" {
		t.Errorf("Expected write-once entry 'first', got %q", text)
	}
}

func TestSQLiteMaxAge(t *testing.T) {
	c := &clock{t: time.Unix(1700000000, 0)}
	store, _, cleanup := setupTestDB(t, Options{MaxAge: time.Hour, Now: c.Now})
	defer cleanup()

	key := KeyForURL("https://example.com/a")
	if err := store.Put(key, "old"); err != nil {
		t.Fatal(err)
	}

	c.t = c.t.Add(30 * time.Minute)
	if _, ok, _ := store.Get(key); !ok {
		t.Error("Entry within max age should hit")
	}

	c.t = c.t.Add(2 * time.Hour)
	if _, ok, _ := store.Get(key); ok {
		t.Error("Entry past max age should miss")
	}

	// Expired entries may be replaced
	if err := store.Put(key, "new"); err != nil {
		t.Fatal(err)
	}
	text, ok, _ := store.Get(key)
	if !ok || text != "new" {
		t.Errorf("Expected refreshed entry 'new', got %v %q", ok, text)
	}
}

func TestSQLiteCorruptEntryIsMiss(t *testing.T) {
	store, _, cleanup := setupTestDB(t, Options{})
	defer cleanup()

	key := KeyForURL("https://example.com/broken")
	if _, err := store.db.Exec(
		"INSERT INTO content_cache (key, body, stored_at) VALUES (?, ?, ?)",
		string(key), []byte("garbage"), time.Now().Unix(),
	); err != nil {
		t.Fatal(err)
	}

	text, ok, err := store.Get(key)
	if err != nil {
		t.Fatalf("Corrupt entry should not surface an error: %v", err)
	}
	if ok || text != "" {
		t.Errorf("Corrupt entry should miss, got %v %q", ok, text)
	}

	n, _ := store.Len()
	if n != 0 {
		t.Errorf("Corrupt entry should be removed, %d left", n)
	}

	if err := store.Put(key, "repaired"); err != nil {
		t.Fatal(err)
	}
	if text, ok, _ := store.Get(key); !ok || text != "repaired" {
		t.Errorf("Expected repaired entry, got %v %q", ok, text)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	store, dbPath, cleanup := setupTestDB(t, Options{})
	defer cleanup()

	key := KeyForURL("https://example.com/a")
	if err := store.Put(key, "kept"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if text, ok, _ := reopened.Get(key); !ok || text != "kept" {
		t.Errorf("Expected persisted entry, got %v %q", ok, text)
	}
}

func TestSQLiteClear(t *testing.T) {
	store, _, cleanup := setupTestDB(t, Options{})
	defer cleanup()

	for _, u := range []string{"https://a.example", "https://b.example"} {
		if err := store.Put(KeyForURL(u), u); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ := store.Len(); n != 0 {
		t.Errorf("Expected empty cache, got %d", n)
	}
}

func TestMemoryStore(t *testing.T) {
	c := &clock{t: time.Unix(1700000000, 0)}
	store := NewMemoryStore(Options{MaxAge: time.Minute, Now: c.Now})
	key := KeyForURL("https://example.com/a")

	if err := store.Put(key, "first"); err != nil {
		t.Fatal(err)
	}
	_ = store.Put(key, "second")
	if text, ok, _ := store.Get(key); !ok || text != "first" {
		t.Errorf("Expected 'first', got %v %q", ok, text)
	}

	c.t = c.t.Add(2 * time.Minute)
	if _, ok, _ := store.Get(key); ok {
		t.Error("Expired entry should miss")
	}

	store.PutRaw(key, []byte("webrag-cache/2\nnot json"))
	if _, ok, _ := store.Get(key); ok {
		t.Error("Corrupt entry should miss")
	}
	if n, _ := store.Len(); n != 0 {
		t.Errorf("Corrupt entry should be dropped, got %d", n)
	}
}
