package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.etcd.io/bbolt"
)

const bucketFiles = "files"

// Entry is the per-file bookkeeping record. Hash always reflects the last
// content actually chunked, never just the last observed mtime.
type Entry struct {
	Path         string   `json:"path"`
	Size         int64    `json:"size"`
	MTime        int64    `json:"mtime"`
	Hash         string   `json:"hash"`
	ChunkVersion int      `json:"chunk_version"`
	ChunkIDs     []string `json:"chunk_ids,omitempty"`
}

// Store persists file entries in a bbolt database.
type Store struct {
	db *bbolt.DB
}

func OpenStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketFiles))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(path string) (Entry, bool, error) {
	path = filepath.ToSlash(path)
	var e Entry
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketFiles)).Get([]byte(path))
		if raw == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(raw, &e)
	})
	if err != nil {
		return Entry{}, false, err
	}
	return e, ok, nil
}

func (s *Store) Put(e Entry) error {
	e.Path = filepath.ToSlash(e.Path)
	if strings.TrimSpace(e.Path) == "" {
		return fmt.Errorf("path is required")
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketFiles)).Put([]byte(e.Path), buf)
	})
}

func (s *Store) Delete(path string) error {
	path = filepath.ToSlash(path)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketFiles)).Delete([]byte(path))
	})
}

func (s *Store) List() (map[string]Entry, error) {
	out := map[string]Entry{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketFiles)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out[string(k)] = e
			return nil
		})
	})
	return out, err
}
