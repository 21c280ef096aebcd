package functions

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sinas-io/burrow/pkg/types"
)

var bucketFunctions = []byte("functions")

// BoltDirectory implements Directory using BoltDB. Keys are
// "namespace/name"; values are JSON-encoded FunctionSource records.
type BoltDirectory struct {
	db *bolt.DB
}

// NewBoltDirectory opens (or creates) the function database under dataDir
func NewBoltDirectory(dataDir string) (*BoltDirectory, error) {
	dbPath := filepath.Join(dataDir, "functions.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFunctions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltDirectory{db: db}, nil
}

// Close closes the database
func (d *BoltDirectory) Close() error {
	return d.db.Close()
}

// Put creates or updates a function source
func (d *BoltDirectory) Put(fn *types.FunctionSource) error {
	if fn.Namespace == "" || fn.Name == "" {
		return fmt.Errorf("function namespace and name are required")
	}

	now := time.Now().UTC()
	fn.UpdatedAt = now

	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFunctions)
		key := []byte(fn.Key())

		if existing := b.Get(key); existing == nil {
			fn.CreatedAt = now
		} else {
			var prev types.FunctionSource
			if err := json.Unmarshal(existing, &prev); err == nil {
				fn.CreatedAt = prev.CreatedAt
			}
		}

		data, err := json.Marshal(fn)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// Get returns a function regardless of eligibility flags
func (d *BoltDirectory) Get(namespace, name string) (*types.FunctionSource, error) {
	var fn types.FunctionSource
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFunctions)
		data := b.Get([]byte(namespace + "/" + name))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &fn)
	})
	if err != nil {
		return nil, err
	}
	return &fn, nil
}

// Resolve returns the function iff it may run in the shared pool
func (d *BoltDirectory) Resolve(namespace, name string) (*types.FunctionSource, error) {
	fn, err := d.Get(namespace, name)
	if err != nil {
		return nil, err
	}
	if !fn.IsActive || !fn.SharedPool {
		return nil, ErrNotEligible
	}
	return fn, nil
}

// List returns all registered functions
func (d *BoltDirectory) List() ([]*types.FunctionSource, error) {
	var fns []*types.FunctionSource
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFunctions)
		return b.ForEach(func(k, v []byte) error {
			var fn types.FunctionSource
			if err := json.Unmarshal(v, &fn); err != nil {
				return err
			}
			fns = append(fns, &fn)
			return nil
		})
	})
	return fns, err
}

// ListNamespace returns all functions registered under one namespace
func (d *BoltDirectory) ListNamespace(namespace string) ([]*types.FunctionSource, error) {
	prefix := []byte(namespace + "/")
	var fns []*types.FunctionSource
	err := d.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketFunctions).Cursor()
		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			var fn types.FunctionSource
			if err := json.Unmarshal(v, &fn); err != nil {
				return err
			}
			fns = append(fns, &fn)
		}
		return nil
	})
	return fns, err
}

// Delete removes a function source
func (d *BoltDirectory) Delete(namespace, name string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFunctions)
		key := []byte(namespace + "/" + name)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}
