// Package memstore keeps a kvfs volume in an in-process B-tree. Content is
// lost when the last handle on the volume is closed.
//
// It registers the "memory" filesystem type.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/tidwall/btree"

	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs"
)

func init() {
	fs.Register("memory", kvfs.NewFactory("memory", func() kvfs.Backend {
		return &Options{Options: kvfs.DefaultOptions()}
	}))
}

// Options configures a memory volume. It has no settings beyond the
// shared ones.
type Options struct {
	kvfs.Options `mapstructure:",squash"`
}

func (o *Options) Open(context.Context) (kvfs.Store, error) {
	return New(), nil
}

// Store is a kvfs.Store over an ordered in-memory map.
type Store struct {
	mu     sync.RWMutex
	keys   *btree.Map[string, []byte]
	closed bool
}

var _ kvfs.Store = (*Store)(nil)

func New() *Store {
	return &Store{keys: btree.NewMap[string, []byte](0)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fs.NewError(fs.ErrClosed, "get", key, "store closed")
	}
	v, ok := s.keys.Get(key)
	if !ok {
		return nil, kvfs.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fs.NewError(fs.ErrClosed, "scan", prefix, "store closed")
	}
	s.keys.Ascend(prefix, func(k string, v []byte) bool {
		if !strings.HasPrefix(k, prefix) || ctx.Err() != nil {
			return false
		}
		return fn(k, append([]byte(nil), v...))
	})
	return ctx.Err()
}

func (s *Store) Update(_ context.Context, fn func(txn kvfs.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fs.NewError(fs.ErrClosed, "update", "", "store closed")
	}

	txn := kvfs.NewStagedTxn(func(key string) ([]byte, error) {
		v, ok := s.keys.Get(key)
		if !ok {
			return nil, kvfs.ErrKeyNotFound
		}
		return v, nil
	})
	if err := fn(txn); err != nil {
		return err
	}

	return txn.Apply(
		func(key string, value []byte) error {
			s.keys.Set(key, value)
			return nil
		},
		func(key string) error {
			s.keys.Delete(key)
			return nil
		},
	)
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys.Len()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.keys = btree.NewMap[string, []byte](0)
	return nil
}
