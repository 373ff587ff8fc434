// Package bolt implements ports.KVStore on an embedded bbolt database file.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/diagramflow/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

const bucketDiagrams = "diagrams"

// Store keeps every key in a single bucket.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketDiagrams))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Set writes the JSON-encoded value.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketDiagrams)).Put([]byte(key), data)
	})
}

// Get reads and decodes the value.
func (s *Store) Get(ctx context.Context, key string) (any, error) {
	var value any
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketDiagrams)).Get([]byte(key))
		if v == nil {
			return domain.ErrNotFound
		}
		// v is only valid inside the transaction; Unmarshal copies.
		return json.Unmarshal(v, &value)
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Keys seeks to prefix and walks the sorted keys sharing it.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketDiagrams)).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Delete removes the key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketDiagrams)).Delete([]byte(key))
	})
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
