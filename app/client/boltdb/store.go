// Package boltdb is the embedded document store shared by the customer context lookup
// and the session metadata snapshot. Each dataset lives in its own bucket.
package boltdb

import (
	"encoding/json"
	"fmt"
	"meetassist/app/config"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/do"
	bolt "go.etcd.io/bbolt"
)

var _ do.Shutdownable = (*Store)(nil)

type Store struct {
	db *bolt.DB
}

func New(di *do.Injector) (*Store, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return Open(cfg.Storage.Path)
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	return &Store{db: db}, nil
}

// Get decodes the JSON value stored under key. It reports false when the bucket or key
// does not exist.
func (s *Store) Get(bucket, key string, target any) (bool, error) {
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}

		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}

		found = true
		return json.Unmarshal(v, target)
	})
	if err != nil {
		return false, fmt.Errorf("failed to read %s/%s: %w", bucket, key, err)
	}

	return found, nil
}

func (s *Store) Put(bucket, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", bucket, key, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *Store) Shutdown() error {
	return s.db.Close()
}
