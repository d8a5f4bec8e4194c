// Package memory keeps mirrored result objects in process memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"snpbench/internal/blob/core"
)

type object struct {
	info core.Info
	data []byte
}

// Store is a core.Store over a map plus a sorted key index, so List is a
// range scan over keys that share the prefix.
type Store struct {
	mu   sync.RWMutex
	objs map[string]object
	keys []string // sorted
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{objs: make(map[string]object), now: time.Now}
}

// Driver returns core.DriverMemory.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a copy of r's content under a new key.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("read %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, found := slices.BinarySearch(s.keys, key)
	if found {
		return core.Info{}, fmt.Errorf("blob %s: %w", key, core.ErrExists)
	}
	s.keys = slices.Insert(s.keys, i, key)
	info := core.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		Metadata:     maps.Clone(opts.Metadata),
		LastModified: s.now().UTC(),
	}
	s.objs[key] = object{info: info, data: data}
	return detach(info), nil
}

// Get returns the object's metadata and a reader over its content.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, nil, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	// stored bytes are never mutated, so readers can share them
	return detach(obj.info), io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes key, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, found := slices.BinarySearch(s.keys, key)
	if !found {
		return false, nil
	}
	s.keys = slices.Delete(s.keys, i, i+1)
	delete(s.objs, key)
	return true, nil
}

// List returns the objects whose key starts with prefix.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, _ := slices.BinarySearch(s.keys, prefix)
	var out []core.Info
	for _, k := range s.keys[start:] {
		if !strings.HasPrefix(k, prefix) {
			break
		}
		out = append(out, detach(s.objs[k].info))
	}
	return out, nil
}

func detach(info core.Info) core.Info {
	info.Metadata = maps.Clone(info.Metadata)
	return info
}
