package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"

	"sift/internal/core/cache"
)

// Decision classifies one observed file change.
type Decision int

const (
	// Unchanged: size and mtime match the stored entry; skip everything.
	Unchanged Decision = iota
	// Touched: metadata moved but content hash is identical; store the new
	// mtime, skip rechunking.
	Touched
	// Changed: content hash differs; rechunk.
	Changed
	// Created: no stored entry for this path yet.
	Created
)

// Gate decides whether a file needs rework. Reads never block; writes are
// serialized per path, not globally.
type Gate struct {
	store        *Store
	hashes       *cache.LRU
	chunkVersion int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type Options struct {
	// HashCacheSize bounds the LRU of content hashes. <= 0 uses 4096.
	HashCacheSize int
	// ChunkVersion forces rechunking when the chunking strategy changes.
	ChunkVersion int
}

func New(store *Store, opts Options) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	size := opts.HashCacheSize
	if size <= 0 {
		size = 4096
	}
	version := opts.ChunkVersion
	if version <= 0 {
		version = 1
	}
	return &Gate{
		store:        store,
		hashes:       cache.NewLRU(size),
		chunkVersion: version,
		locks:        map[string]*sync.Mutex{},
	}, nil
}

// Check runs the two-stage gate for one file. read is only invoked when the
// cheap size+mtime comparison fails and the hash cache misses.
func (g *Gate) Check(path string, size int64, mtime int64, read func() ([]byte, error)) (Decision, Entry, string, error) {
	path = filepath.ToSlash(path)

	prior, ok, err := g.store.Get(path)
	if err != nil {
		return Changed, Entry{}, "", err
	}
	if ok && prior.Size == size && prior.MTime == mtime && prior.ChunkVersion == g.chunkVersion {
		return Unchanged, prior, prior.Hash, nil
	}

	hash, err := g.contentHash(path, size, mtime, read)
	if err != nil {
		return Changed, prior, "", err
	}

	if !ok {
		return Created, Entry{}, hash, nil
	}
	if prior.Hash == hash && prior.ChunkVersion == g.chunkVersion {
		return Touched, prior, hash, nil
	}
	return Changed, prior, hash, nil
}

// Touch records a metadata-only change.
func (g *Gate) Touch(path string, size int64, mtime int64) error {
	unlock := g.lock(path)
	defer unlock()

	e, ok, err := g.store.Get(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("touch of unknown file %q", path)
	}
	e.Size = size
	e.MTime = mtime
	return g.store.Put(e)
}

// Commit records a file whose chunks were fully applied to the indexes.
func (g *Gate) Commit(e Entry) error {
	unlock := g.lock(e.Path)
	defer unlock()

	e.ChunkVersion = g.chunkVersion
	return g.store.Put(e)
}

// Remove deletes the entry once the file's removal is fully applied,
// returning the chunk IDs that were live for it.
func (g *Gate) Remove(path string) ([]string, error) {
	unlock := g.lock(path)
	defer unlock()

	e, ok, err := g.store.Get(path)
	if err != nil {
		return nil, err
	}
	g.hashes.Remove(hashKey(path, e.Size, e.MTime))
	if !ok {
		return nil, nil
	}
	if err := g.store.Delete(path); err != nil {
		return nil, err
	}
	return e.ChunkIDs, nil
}

// Entry returns the stored record for a path.
func (g *Gate) Entry(path string) (Entry, bool, error) {
	return g.store.Get(path)
}

// Known lists every tracked path, for removal detection on full rescans.
func (g *Gate) Known() (map[string]Entry, error) {
	return g.store.List()
}

func (g *Gate) ChunkVersion() int { return g.chunkVersion }

func (g *Gate) contentHash(path string, size int64, mtime int64, read func() ([]byte, error)) (string, error) {
	key := hashKey(path, size, mtime)
	if v, ok := g.hashes.Get(key); ok {
		if h, ok := v.(string); ok {
			return h, nil
		}
	}
	b, err := read()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	h := hex.EncodeToString(sum[:])
	g.hashes.Put(key, h)
	return h, nil
}

func (g *Gate) lock(path string) func() {
	g.locksMu.Lock()
	mu, ok := g.locks[path]
	if !ok {
		mu = &sync.Mutex{}
		g.locks[path] = mu
	}
	g.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func hashKey(path string, size int64, mtime int64) string {
	return fmt.Sprintf("%s|%d|%d", path, size, mtime)
}

// HashBytes exposes the gate's content hash for callers that already hold
// the bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
