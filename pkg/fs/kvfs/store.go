package kvfs

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Store and Txn lookups of a missing key.
var ErrKeyNotFound = errors.New("kvfs: key not found")

// Store is the ordered key-value space a volume keeps its namespace and
// file content in.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Scan calls fn for every key with the given prefix in ascending key
	// order until fn returns false.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error

	// Update runs fn in a read-write transaction. Writes become visible
	// atomically when fn returns nil and are discarded otherwise.
	Update(ctx context.Context, fn func(txn Txn) error) error

	Close() error
}

// Txn is a read-write view of a Store inside Update.
type Txn interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

type stagedOp struct {
	key     string
	value   []byte
	deleted bool
}

// StagedTxn buffers writes in memory for stores without native
// transactions. Reads see the transaction's own writes first.
type StagedTxn struct {
	read  func(key string) ([]byte, error)
	ops   []stagedOp
	index map[string]int
}

// NewStagedTxn returns a transaction reading committed state through read.
func NewStagedTxn(read func(key string) ([]byte, error)) *StagedTxn {
	return &StagedTxn{read: read, index: make(map[string]int)}
}

func (t *StagedTxn) Get(key string) ([]byte, error) {
	if i, ok := t.index[key]; ok {
		if t.ops[i].deleted {
			return nil, ErrKeyNotFound
		}
		return t.ops[i].value, nil
	}
	return t.read(key)
}

func (t *StagedTxn) Put(key string, value []byte) error {
	t.stage(stagedOp{key: key, value: append([]byte(nil), value...)})
	return nil
}

func (t *StagedTxn) Delete(key string) error {
	t.stage(stagedOp{key: key, deleted: true})
	return nil
}

func (t *StagedTxn) stage(op stagedOp) {
	if i, ok := t.index[op.key]; ok {
		t.ops[i] = op
		return
	}
	t.index[op.key] = len(t.ops)
	t.ops = append(t.ops, op)
}

// Len returns the number of staged keys.
func (t *StagedTxn) Len() int {
	return len(t.ops)
}

// Apply replays the staged writes in first-write order.
func (t *StagedTxn) Apply(put func(key string, value []byte) error, del func(key string) error) error {
	for _, op := range t.ops {
		var err error
		if op.deleted {
			err = del(op.key)
		} else {
			err = put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
