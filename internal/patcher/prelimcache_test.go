package patcher

import "testing"

func TestPreliminaryImageCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenPreliminaryImageCache(dir)
	if err != nil {
		t.Fatalf("OpenPreliminaryImageCache: unexpected error %v", err)
	}
	defer cache.Close()

	key := PreliminaryImageKey{
		RepositoryNames: []string{"original", "marked"},
		RepositoryURLs:  []string{"http://example.invalid/a", "http://example.invalid/b"},
		Architecture:    "aarch64",
		KickstartBase:   "image.ks",
	}

	if _, ok, err := cache.Lookup(key); err != nil {
		t.Fatalf("Lookup: unexpected error %v", err)
	} else if ok {
		t.Fatal("expected no entry before Store")
	}

	if err := cache.Store(key, "/var/chroots/abc123"); err != nil {
		t.Fatalf("Store: unexpected error %v", err)
	}

	path, ok, err := cache.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup after Store: unexpected error %v", err)
	}
	if !ok || path != "/var/chroots/abc123" {
		t.Errorf("Lookup after Store = (%q, %v), want (/var/chroots/abc123, true)", path, ok)
	}
}

func TestPreliminaryImageCacheDistinguishesKeys(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenPreliminaryImageCache(dir)
	if err != nil {
		t.Fatalf("OpenPreliminaryImageCache: unexpected error %v", err)
	}
	defer cache.Close()

	keyA := PreliminaryImageKey{RepositoryNames: []string{"a"}, RepositoryURLs: []string{"u"}, Architecture: "x86_64", KickstartBase: "a.ks"}
	keyB := PreliminaryImageKey{RepositoryNames: []string{"a"}, RepositoryURLs: []string{"u"}, Architecture: "x86_64", KickstartBase: "b.ks"}

	if err := cache.Store(keyA, "/chroots/a"); err != nil {
		t.Fatalf("Store keyA: %v", err)
	}
	if _, ok, err := cache.Lookup(keyB); err != nil {
		t.Fatalf("Lookup keyB: unexpected error %v", err)
	} else if ok {
		t.Error("expected keyB to remain unset after only storing keyA")
	}
}

func TestOpenPreliminaryImageCachePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	key := PreliminaryImageKey{RepositoryNames: []string{"r"}, RepositoryURLs: []string{"u"}, Architecture: "armv7l", KickstartBase: "k.ks"}

	cache, err := OpenPreliminaryImageCache(dir)
	if err != nil {
		t.Fatalf("OpenPreliminaryImageCache: %v", err)
	}
	if err := cache.Store(key, "/chroots/r"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenPreliminaryImageCache(dir)
	if err != nil {
		t.Fatalf("reopening cache: %v", err)
	}
	defer reopened.Close()

	path, ok, err := reopened.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup after reopen: %v", err)
	}
	if !ok || path != "/chroots/r" {
		t.Errorf("Lookup after reopen = (%q, %v), want (/chroots/r, true)", path, ok)
	}
}
