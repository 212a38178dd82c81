package deltalog

import (
	"encoding/binary"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"
)

const bucketWatermarks = "watermarks"

type watermarks struct {
	db *bbolt.DB
}

func openWatermarks(path string) (*watermarks, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketWatermarks))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &watermarks{db: db}, nil
}

func (w *watermarks) close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *watermarks) get(consumer string) (uint64, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return 0, fmt.Errorf("consumer is required")
	}
	var seq uint64
	err := w.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketWatermarks)).Get([]byte(consumer))
		if len(raw) == 8 {
			seq = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	return seq, err
}

func (w *watermarks) set(consumer string, seq uint64) error {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	return w.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketWatermarks))
		if raw := b.Get([]byte(consumer)); len(raw) == 8 {
			if binary.BigEndian.Uint64(raw) >= seq {
				return nil
			}
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], seq)
		return b.Put([]byte(consumer), buf[:])
	})
}

func (w *watermarks) min() (uint64, error) {
	var min uint64
	first := true
	err := w.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketWatermarks)).ForEach(func(_, v []byte) error {
			if len(v) != 8 {
				return nil
			}
			seq := binary.BigEndian.Uint64(v)
			if first || seq < min {
				min = seq
				first = false
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if first {
		return 0, nil
	}
	return min, nil
}
