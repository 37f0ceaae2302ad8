// Package kv implements the ordered key-value adapter: an in-process
// byte-key map with range scan, atomic put/delete, and JSON helpers,
// backed by github.com/google/btree.
package kv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/btree"
)

// Store is the contract consumed by the hybrid store and the id allocator:
// an ordered map from string keys to opaque byte payloads.
type Store interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, bool, error)
	Delete(key string) error
	Exists(key string) (bool, error)
	RangeScan(startKey, endKeyInclusive string) ([]Pair, error)
	Count() int
	Clear()
	Compact() error

	PutJSON(key string, value any) error
	GetJSON(key string, dest any) (bool, error)
}

// Pair is one (key, value) result of a RangeScan.
type Pair struct {
	Key   string
	Value []byte
}

type item struct {
	key   string
	value []byte
}

func (i item) Less(than btree.Item) bool {
	return i.key < than.(item).key
}

// MemoryStore is the default Store implementation: an ordered map backed
// by a B-tree, guarded by a single RWMutex.
type MemoryStore struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// NewMemoryStore creates an empty, ready-to-use KV store. The B-tree
// degree of 32 is a reasonable default for string-keyed workloads of
// this size.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: btree.New(32)}
}

// Put writes value under key, overwriting any existing value. Values
// are stored as raw bytes, exactly as handed in; no base64 or other
// wrapping is applied.
func (s *MemoryStore) Put(key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(item{key: key, value: cp})
	return nil
}

// Get returns the value for key and whether it was present.
func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.tree.Get(item{key: key})
	if found == nil {
		return nil, false, nil
	}
	it := found.(item)
	cp := make([]byte, len(it.value))
	copy(cp, it.value)
	return cp, true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(item{key: key})
	return nil
}

// Exists reports whether key is present without copying its value.
func (s *MemoryStore) Exists(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Get(item{key: key}) != nil, nil
}

// RangeScan returns every (key, value) pair with startKey <= key <=
// endKeyInclusive, in ascending byte-wise key order.
func (s *MemoryStore) RangeScan(startKey, endKeyInclusive string) ([]Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Pair
	s.tree.AscendRange(item{key: startKey}, item{key: endKeyInclusive + "\x00"}, func(i btree.Item) bool {
		it := i.(item)
		if bytes.Compare([]byte(it.key), []byte(endKeyInclusive)) > 0 {
			return true
		}
		cp := make([]byte, len(it.value))
		copy(cp, it.value)
		out = append(out, Pair{Key: it.key, Value: cp})
		return true
	})
	return out, nil
}

// Count returns the number of stored keys.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Clear drops every stored key.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Clear(false)
}

// Compact is a no-op for the in-memory implementation; it exists so
// callers written against the Store contract don't need a type switch
// when a future on-disk implementation needs real compaction.
func (s *MemoryStore) Compact() error {
	return nil
}

// PutJSON marshals value and stores it under key.
func (s *MemoryStore) PutJSON(key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv: marshal value for %q: %w", key, err)
	}
	return s.Put(key, b)
}

// GetJSON reads key and unmarshals it into dest, reporting whether the key
// was present.
func (s *MemoryStore) GetJSON(key string, dest any) (bool, error) {
	b, ok, err := s.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return true, fmt.Errorf("kv: unmarshal value for %q: %w", key, err)
	}
	return true, nil
}

var _ Store = (*MemoryStore)(nil)
