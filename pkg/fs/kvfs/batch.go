package kvfs

import (
	"context"

	"github.com/google/uuid"
)

// batch collects the mutations of one namespace operation and writes them
// in a single store transaction. Inodes are encoded at commit so an inode
// touched twice is written once with both changes.
type batch struct {
	dirty map[uuid.UUID]*inode
	order []uuid.UUID
	ops   *StagedTxn
}

func newBatch() *batch {
	return &batch{
		dirty: make(map[uuid.UUID]*inode),
		ops: NewStagedTxn(func(string) ([]byte, error) {
			return nil, ErrKeyNotFound
		}),
	}
}

// touch schedules n to be written.
func (b *batch) touch(n *inode) {
	if _, ok := b.dirty[n.ID]; !ok {
		b.order = append(b.order, n.ID)
	}
	b.dirty[n.ID] = n
}

func (b *batch) link(parent uuid.UUID, name string, id uuid.UUID) {
	_ = b.ops.Put(keyChild(parent, name), []byte(id.String()))
}

func (b *batch) unlink(parent uuid.UUID, name string) {
	_ = b.ops.Delete(keyChild(parent, name))
}

// remove deletes n and its content.
func (b *batch) remove(n *inode) {
	delete(b.dirty, n.ID)
	_ = b.ops.Delete(keyInode(n.ID))
	_ = b.ops.Delete(keyContent(n.ID))
}

func (b *batch) setContent(id uuid.UUID, data []byte) {
	_ = b.ops.Put(keyContent(id), data)
}

func (b *batch) commit(ctx context.Context, store Store) error {
	for _, id := range b.order {
		n, ok := b.dirty[id]
		if !ok {
			continue
		}
		raw, err := encodeInode(n)
		if err != nil {
			return err
		}
		_ = b.ops.Put(keyInode(id), raw)
	}

	return store.Update(ctx, func(txn Txn) error {
		return b.ops.Apply(txn.Put, txn.Delete)
	})
}
