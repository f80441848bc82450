package patcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTaskCacheStoreThenLookup(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewTaskCache(dir)
	if err != nil {
		t.Fatalf("NewTaskCache: unexpected error %v", err)
	}

	src := filepath.Join(dir, "source.rpm")
	if err := os.WriteFile(src, []byte("rpm-bytes"), 0o644); err != nil {
		t.Fatalf("writing fixture rpm: %v", err)
	}

	if _, ok, err := cache.Lookup("abc123"); err != nil || ok {
		t.Fatalf("expected cache miss before Store, got ok=%v err=%v", ok, err)
	}

	stored, err := cache.Store("abc123", src)
	if err != nil {
		t.Fatalf("Store: unexpected error %v", err)
	}

	got, ok, err := cache.Lookup("abc123")
	if err != nil {
		t.Fatalf("Lookup: unexpected error %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit after Store")
	}
	if got != stored {
		t.Errorf("Lookup path = %q, want %q", got, stored)
	}
}

func TestTaskCacheDropAll(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewTaskCache(dir)
	if err != nil {
		t.Fatalf("NewTaskCache: unexpected error %v", err)
	}

	src := filepath.Join(dir, "source.rpm")
	if err := os.WriteFile(src, []byte("rpm-bytes"), 0o644); err != nil {
		t.Fatalf("writing fixture rpm: %v", err)
	}
	if _, err := cache.Store("abc123", src); err != nil {
		t.Fatalf("Store: unexpected error %v", err)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: unexpected error %v", err)
	}
	if _, ok, err := cache.Lookup("abc123"); err != nil || ok {
		t.Fatalf("expected cache miss after DropAll, got ok=%v err=%v", ok, err)
	}
}
