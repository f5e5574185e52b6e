package webcache

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	c, err := Open(t.TempDir(), "static", 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	in := &Entry{
		Status: 200,
		Header: http.Header{"Content-Type": []string{"text/css"}},
		Body:   []byte("body{margin:0}"),
	}
	if err := c.Put("/assets/app-3f9c2a1b.css", in); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, ok := c.Get("/assets/app-3f9c2a1b.css")
	if !ok {
		t.Fatal("expected a hit")
	}
	if out.Status != 200 || string(out.Body) != "body{margin:0}" {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
	if out.Header.Get("Content-Type") != "text/css" {
		t.Fatalf("header lost: %v", out.Header)
	}
	if out.StoredAt == 0 {
		t.Fatal("StoredAt should be stamped on Put")
	}
}

func TestMissAndDelete(t *testing.T) {
	c, _ := Open(t.TempDir(), "static", 1)

	if _, ok := c.Get("/nothing"); ok {
		t.Fatal("expected a miss")
	}

	c.Put("/page", &Entry{Status: 200, Body: []byte("x")})
	c.Delete("/page")
	if _, ok := c.Get("/page"); ok {
		t.Fatal("deleted entry should miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestCorruptEntryReadsAsMissAndIsDropped(t *testing.T) {
	dir := t.TempDir()
	c, _ := Open(dir, "static", 1)
	c.Put("/page", &Entry{Status: 200, Body: []byte("ok")})

	entries, err := os.ReadDir(c.Dir())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry file: %v %d", err, len(entries))
	}
	path := filepath.Join(c.Dir(), entries[0].Name())
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	if _, ok := c.Get("/page"); ok {
		t.Fatal("corrupt entry must read as a miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("corrupt entry should be removed on read")
	}
}

func TestPruneOtherVersions(t *testing.T) {
	root := t.TempDir()

	v1, _ := Open(root, "static", 1)
	v1.Put("/a", &Entry{Status: 200, Body: []byte("1")})
	v2, _ := Open(root, "static", 2)
	v2.Put("/a", &Entry{Status: 200, Body: []byte("2")})

	// An unrelated sibling directory must be left alone.
	other := filepath.Join(root, "thumbnails")
	os.MkdirAll(other, 0o755)

	if err := v2.PruneOtherVersions(); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if _, err := os.Stat(v1.Dir()); !os.IsNotExist(err) {
		t.Fatal("v1 directory should be pruned")
	}
	if e, ok := v2.Get("/a"); !ok || string(e.Body) != "2" {
		t.Fatal("current version must survive the prune")
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatal("unrelated directories must survive the prune")
	}
}

func TestVersionsAreIsolated(t *testing.T) {
	root := t.TempDir()
	v1, _ := Open(root, "static", 1)
	v1.Put("/a", &Entry{Status: 200, Body: []byte("1")})

	v2, _ := Open(root, "static", 2)
	if _, ok := v2.Get("/a"); ok {
		t.Fatal("a new version must start cold")
	}
}
