// Package badgerstore keeps a kvfs volume in a BadgerDB database.
//
// It registers the "badger" filesystem type. Options:
//
//	path:        database directory (required unless in_memory)
//	in_memory:   keep the database in memory only
//	sync_writes: fsync every commit
//	compression: compress value-log content with zstd
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs"
)

func init() {
	fs.Register("badger", kvfs.NewFactory("badger", func() kvfs.Backend {
		return &Options{Options: kvfs.DefaultOptions()}
	}))
}

// Options configures a badger volume.
type Options struct {
	kvfs.Options `mapstructure:",squash"`

	Path        string `mapstructure:"path"`
	InMemory    bool   `mapstructure:"in_memory"`
	SyncWrites  bool   `mapstructure:"sync_writes"`
	Compression bool   `mapstructure:"compression"`
}

func (o *Options) Open(context.Context) (kvfs.Store, error) {
	if o.Path == "" && !o.InMemory {
		return nil, fmt.Errorf("%w: badger filesystem requires path", fs.ErrInvalidOptions)
	}

	opts := badgerdb.DefaultOptions(o.Path)
	if o.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	log := logger.With("component", "badger_store", "db_path", o.Path)
	opts = opts.WithLogger(badgerLogger{log}).WithSyncWrites(o.SyncWrites)
	if o.Compression {
		opts = opts.WithCompression(options.ZSTD)
	} else {
		opts = opts.WithCompression(options.None)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", o.Path, err)
	}

	log.Debug("BadgerDB opened", "in_memory", o.InMemory)
	return New(db), nil
}

// Store is a kvfs.Store over a BadgerDB database.
type Store struct {
	db *badgerdb.DB
}

var _ kvfs.Store = (*Store)(nil)

// New wraps an open database. Close closes it.
func New(db *badgerdb.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		value, err = txnGet(txn, key)
		return err
	})
	return value, err
}

func (s *Store) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	return s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(string(item.KeyCopy(nil)), value) {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) Update(_ context.Context, fn func(txn kvfs.Txn) error) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return fn(badgerTxn{txn})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

type badgerTxn struct {
	txn *badgerdb.Txn
}

func (t badgerTxn) Get(key string) ([]byte, error) {
	return txnGet(t.txn, key)
}

func (t badgerTxn) Put(key string, value []byte) error {
	return t.txn.Set([]byte(key), value)
}

func (t badgerTxn) Delete(key string) error {
	return t.txn.Delete([]byte(key))
}

func txnGet(txn *badgerdb.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, kvfs.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// badgerLogger forwards badger's printf-style logging to slog. Badger's
// info output is chatty, so it is logged at debug.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
