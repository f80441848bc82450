// Package patcher implements the RPM patcher (C5, spec.md §4.5): a
// content-addressed cache of rebuilt RPMs, a chrooted+emulated rebuild
// environment, and parallel make-driven header-rewrite workers.
package patcher

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"
)

// TaskCache is the content-addressed cache of rebuilt RPMs described in
// spec.md §4.5: each cached RPM sits beside a "<name>.info.txt" sidecar
// whose first line is the fingerprint. The cache directory is guarded by a
// single advisory file lock (github.com/theckman/go-flock, adopted from the
// teacher's vendored-but-unused dependency — see DESIGN.md), serializing
// lookups and writes across processes that share the cache directory. Within
// a run, Patcher.Run does its lookups before and its writes after the clone
// drivers run; the drivers themselves do not touch the cache.
type TaskCache struct {
	Dir  string
	lock *flock.Flock
}

// NewTaskCache opens (creating if needed) a TaskCache rooted at dir.
func NewTaskCache(dir string) (*TaskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating patching cache directory %q", dir)
	}
	return &TaskCache{Dir: dir, lock: flock.NewFlock(filepath.Join(dir, ".lock"))}, nil
}

// DropAll wipes every cached entry, used when drop_patching_cache is set
// (spec.md §4.5).
func (c *TaskCache) DropAll() error {
	if err := c.lock.Lock(); err != nil {
		return errors.Wrap(err, "locking patching cache")
	}
	defer c.lock.Unlock()

	entries, err := ioutil.ReadDir(c.Dir)
	if err != nil {
		return errors.Wrapf(err, "reading patching cache directory %q", c.Dir)
	}
	for _, e := range entries {
		if e.Name() == ".lock" {
			continue
		}
		if err := os.Remove(filepath.Join(c.Dir, e.Name())); err != nil {
			return errors.Wrapf(err, "removing cached entry %q", e.Name())
		}
	}
	return nil
}

// Lookup returns the cached RPM path for fingerprint, if present.
func (c *TaskCache) Lookup(fingerprint string) (path string, ok bool, err error) {
	if err := c.lock.Lock(); err != nil {
		return "", false, errors.Wrap(err, "locking patching cache")
	}
	defer c.lock.Unlock()

	info := filepath.Join(c.Dir, fingerprint+".info.txt")
	data, err := ioutil.ReadFile(info)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading cache sidecar %q", info)
	}

	lines := strings.SplitN(string(data), "\n", 2)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != fingerprint {
		return "", false, nil
	}
	rpmPath := filepath.Join(c.Dir, fingerprint+".rpm")
	if _, err := os.Stat(rpmPath); err != nil {
		return "", false, nil
	}
	return rpmPath, true, nil
}

// Store writes rebuiltRPMPath into the cache under fingerprint, creating the
// "<fingerprint>.info.txt" sidecar, and returns the cache-resident path.
// Concurrent writes of the same fingerprint are safe: the bytes written are
// identical, so a racing writer simply overwrites with the same content
// (spec.md §5, Shared resources).
func (c *TaskCache) Store(fingerprint, rebuiltRPMPath string) (string, error) {
	if err := c.lock.Lock(); err != nil {
		return "", errors.Wrap(err, "locking patching cache")
	}
	defer c.lock.Unlock()

	dst := filepath.Join(c.Dir, fingerprint+".rpm")
	if err := copyFile(rebuiltRPMPath, dst); err != nil {
		return "", errors.Wrapf(err, "storing cache entry for %q", fingerprint)
	}

	info := filepath.Join(c.Dir, fingerprint+".info.txt")
	content := fmt.Sprintf("%s\nstored: %s\n", fingerprint, time.Now().UTC().Format(time.RFC3339))
	if err := ioutil.WriteFile(info, []byte(content), 0o644); err != nil {
		return "", errors.Wrapf(err, "writing cache sidecar for %q", fingerprint)
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
