// Package boltstore implements converse.Storage on a single BoltDB file.
//
// Images are stored in one bucket keyed by path, with their content types in
// a second bucket, so a saved caption demo can be reloaded without guessing
// formats from file extensions.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mhpenta/converse"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketImages       = []byte("images")
	bucketContentTypes = []byte("content_types")
)

// ErrNotFound is returned by Load for unknown paths.
var ErrNotFound = errors.New("boltstore: not found")

// Store persists generated images in BoltDB.
type Store struct {
	db   *bolt.DB
	path string
}

var _ converse.Storage = (*Store)(nil)

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(bucketImages); e != nil {
			return e
		}
		_, e := tx.CreateBucketIfNotExists(bucketContentTypes)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// SaveFile stores data under path and returns a bolt:// URL for it.
func (s *Store) SaveFile(ctx context.Context, data []byte, path string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("%w: empty storage path", converse.ErrInvalidInput)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if e := tx.Bucket(bucketImages).Put([]byte(path), data); e != nil {
			return e
		}
		return tx.Bucket(bucketContentTypes).Put([]byte(path), []byte(contentType))
	})
	if err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return s.URL(path), nil
}

// Load returns the bytes and content type stored under path.
func (s *Store) Load(path string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketImages).Get([]byte(path))
		if v == nil {
			return ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		data = append([]byte(nil), v...)
		contentType = string(tx.Bucket(bucketContentTypes).Get([]byte(path)))
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// List returns every stored path in key order.
func (s *Store) List() ([]string, error) {
	var paths []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	return paths, err
}

// URL is the location SaveFile reports for path.
func (s *Store) URL(path string) string {
	return "bolt://" + filepath.Base(s.path) + "/" + path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
