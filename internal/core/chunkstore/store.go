// Package chunkstore is the arena for chunk data: it owns chunks keyed
// by chunk_id, and every other component (indexes, delta log, fusion)
// refers to chunks by id only.
package chunkstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.etcd.io/bbolt"

	"sift/internal/model"
)

const bucketChunks = "chunks"

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketChunks))
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

func (s *Store) Put(chunks []model.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketChunks))
		for _, c := range chunks {
			if strings.TrimSpace(c.ID) == "" {
				return fmt.Errorf("chunk id is required")
			}
			raw, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(c.ID), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Get(chunkID string) (model.Chunk, bool, error) {
	var c model.Chunk
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketChunks)).Get([]byte(chunkID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &c)
	})
	return c, found, err
}

func (s *Store) Delete(chunkIDs []string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketChunks))
		for _, id := range chunkIDs {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(bucketChunks)).Stats().KeyN
		return nil
	})
	return n, err
}
