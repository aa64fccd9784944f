package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheWriteLoadLatest(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 5)

	older := []byte(demoEntry)
	newer := []byte(demoEntry + largeEntry)

	if err := c.Write(older, time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("Write older: %v", err)
	}
	if err := c.Write(newer, time.Unix(1700000100, 0)); err != nil {
		t.Fatalf("Write newer: %v", err)
	}

	data, ts, err := c.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if !bytes.Equal(data, newer) {
		t.Errorf("LoadLatest returned %q, want newer snapshot", data)
	}
	if ts.Unix() != 1700000100 {
		t.Errorf("timestamp = %d, want 1700000100", ts.Unix())
	}

	// Snapshots are stored compressed, not as plain text.
	raw, err := os.ReadFile(filepath.Join(dir, "catalog_1700000100.txt.zst"))
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if bytes.Equal(raw, newer) {
		t.Error("snapshot on disk is not compressed")
	}
}

func TestCachePrune(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 2)

	for i := 0; i < 4; i++ {
		if err := c.Write([]byte(demoEntry), time.Unix(int64(1700000000+i), 0)); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	files, err := c.listFiles()
	if err != nil {
		t.Fatalf("listFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files after prune, want 2", len(files))
	}
	if files[0].ts.Unix() != 1700000002 || files[1].ts.Unix() != 1700000003 {
		t.Errorf("kept %v and %v, want the two newest", files[0].ts.Unix(), files[1].ts.Unix())
	}
}

func TestCacheEmpty(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "missing"), 0)
	if _, _, err := c.LoadLatest(); err == nil {
		t.Fatal("expected error from empty cache")
	}
}
