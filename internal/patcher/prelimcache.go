package patcher

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
)

// prelimBucket is the top-level BoltDB bucket holding prepared-chroot
// records, nested one level per repository-pair key component via
// github.com/jmank88/nuts (adopted from the teacher's own
// internal/gps/source_cache_bolt.go nested-bucket layout, which this cache
// mirrors for the same reason: one composite key, several natural
// sub-levels).
var prelimBucket = []byte("preliminary-images")

// PreliminaryImageCache memoises a prepared chroot keyed by (repository
// names, repository urls, architecture, kickstart basename), per spec.md
// §4.5.
type PreliminaryImageCache struct {
	db *bolt.DB
}

// OpenPreliminaryImageCache opens (creating if needed) the BoltDB file under
// cacheDir.
func OpenPreliminaryImageCache(cacheDir string) (*PreliminaryImageCache, error) {
	path := filepath.Join(cacheDir, "preliminary-images.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening preliminary image cache %q", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(prelimBucket)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "initializing preliminary image cache")
	}
	return &PreliminaryImageCache{db: db}, nil
}

// Close releases the underlying BoltDB handle.
func (c *PreliminaryImageCache) Close() error {
	return errors.Wrap(c.db.Close(), "closing preliminary image cache")
}

// PreliminaryImageKey is the composite key of spec.md §4.5's second cache.
type PreliminaryImageKey struct {
	RepositoryNames []string
	RepositoryURLs  []string
	Architecture    string
	KickstartBase   string
}

func (k PreliminaryImageKey) path() []string {
	return []string{
		strings.Join(k.RepositoryNames, ","),
		strings.Join(k.RepositoryURLs, ","),
		k.Architecture,
		k.KickstartBase,
	}
}

// Lookup returns the recorded chroot path for key, if any.
func (c *PreliminaryImageCache) Lookup(key PreliminaryImageKey) (chrootPath string, ok bool, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		b, err := nuts.NestedBucket(tx.Bucket(prelimBucket), key.path()[:len(key.path())-1])
		if err != nil || b == nil {
			return nil
		}
		v := b.Get([]byte(key.KickstartBase))
		if v != nil {
			chrootPath = string(v)
			ok = true
		}
		return nil
	})
	return chrootPath, ok, errors.Wrap(err, "reading preliminary image cache")
}

// Store records chrootPath under key.
func (c *PreliminaryImageCache) Store(key PreliminaryImageKey, chrootPath string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b, err := nuts.CreateNestedBucket(tx.Bucket(prelimBucket), key.path()[:len(key.path())-1])
		if err != nil {
			return err
		}
		return b.Put([]byte(key.KickstartBase), []byte(chrootPath))
	})
	return errors.Wrap(err, "writing preliminary image cache")
}
