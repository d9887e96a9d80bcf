package kvfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/fs"
)

// volume is the state shared by every handle on one scheme://name: the
// store, the namespace lock, space accounting and the open-file leases.
type volume struct {
	uri   string
	store Store
	opts  Options

	// mu serializes namespace mutations; readers take it shared.
	mu     sync.RWMutex
	root   uuid.UUID
	used   int64
	leases map[uuid.UUID]string // inode -> holder

	refs int
}

var volumes = struct {
	sync.Mutex
	m map[string]*volume
}{m: make(map[string]*volume)}

// acquireVolume returns the open volume for uri, opening its store on first
// use. Later handles share the volume and its options.
func acquireVolume(ctx context.Context, uri string, opts Options, open func(ctx context.Context) (Store, error)) (*volume, error) {
	volumes.Lock()
	defer volumes.Unlock()

	if v, ok := volumes.m[uri]; ok {
		v.refs++
		return v, nil
	}

	store, err := open(ctx)
	if err != nil {
		return nil, err
	}

	v := &volume{
		uri:    uri,
		store:  store,
		opts:   opts,
		leases: make(map[uuid.UUID]string),
		refs:   1,
	}
	if err := v.load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	volumes.m[uri] = v
	logger.Debug("Volume opened", logger.KeyVolume, uri, "used", v.used)
	return v, nil
}

// release drops one reference and closes the store with the last one.
func (v *volume) release() error {
	volumes.Lock()
	defer volumes.Unlock()

	v.refs--
	if v.refs > 0 {
		return nil
	}
	delete(volumes.m, v.uri)
	logger.Debug("Volume closed", logger.KeyVolume, v.uri)
	return v.store.Close()
}

// load creates the root on an empty store and recomputes space usage.
func (v *volume) load(ctx context.Context) error {
	raw, err := v.store.Get(ctx, keyRoot)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		root := &inode{
			ID:    uuid.New(),
			Dir:   true,
			Owner: v.opts.Superuser,
			Group: v.opts.Supergroup,
			Mode:  0o755,
		}
		root.MTime = time.Now().UnixMilli()
		root.ATime = root.MTime

		err = v.store.Update(ctx, func(txn Txn) error {
			if err := putInode(txn, root); err != nil {
				return err
			}
			return txn.Put(keyRoot, []byte(root.ID.String()))
		})
		if err != nil {
			return fmt.Errorf("initialize volume root: %w", err)
		}
		v.root = root.ID
		return nil
	case err != nil:
		return fmt.Errorf("read volume root: %w", err)
	}

	if v.root, err = decodeID(raw); err != nil {
		return err
	}

	var decodeErr error
	err = v.store.Scan(ctx, prefixInode, func(_ string, value []byte) bool {
		n, err := decodeInode(value)
		if err != nil {
			decodeErr = err
			return false
		}
		v.used += n.consumed()
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return fmt.Errorf("scan volume: %w", err)
	}
	return nil
}

// getter reads one committed key.
type getter func(key string) ([]byte, error)

func (v *volume) reader(ctx context.Context) getter {
	return func(key string) ([]byte, error) {
		return v.store.Get(ctx, key)
	}
}

func getInode(get getter, id uuid.UUID) (*inode, error) {
	raw, err := get(keyInode(id))
	if err != nil {
		return nil, err
	}
	return decodeInode(raw)
}

func putInode(txn Txn, n *inode) error {
	raw, err := encodeInode(n)
	if err != nil {
		return err
	}
	return txn.Put(keyInode(n.ID), raw)
}

func lookupChild(get getter, parent uuid.UUID, name string) (*inode, error) {
	raw, err := get(keyChild(parent, name))
	if err != nil {
		return nil, err
	}
	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	return getInode(get, id)
}

// resolution is the result of walking a path from the root. nodes holds
// the root followed by every component found, stopping at the first
// missing one or at a file with components left below it.
type resolution struct {
	path       string
	components []string
	nodes      []*inode
}

func (r *resolution) found() bool {
	return len(r.nodes) == len(r.components)+1
}

// target returns the inode of the full path, or nil.
func (r *resolution) target() *inode {
	if !r.found() {
		return nil
	}
	return r.nodes[len(r.nodes)-1]
}

// parent returns the inode of the immediate parent when it exists.
func (r *resolution) parent() *inode {
	if len(r.components) == 0 || len(r.nodes) < len(r.components) {
		return nil
	}
	return r.nodes[len(r.components)-1]
}

// deepest returns the last existing inode along the path.
func (r *resolution) deepest() *inode {
	return r.nodes[len(r.nodes)-1]
}

// blockedByFile reports whether the walk stopped at a file that has
// components below it.
func (r *resolution) blockedByFile() bool {
	return !r.found() && !r.deepest().Dir
}

// pathAt returns the path of nodes[i].
func (r *resolution) pathAt(i int) string {
	if i == 0 {
		return fs.Separator
	}
	return fs.Separator + strings.Join(r.components[:i], fs.Separator)
}

func splitPath(p string) []string {
	p = fs.Clean(p)
	if p == fs.Separator {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, fs.Separator), fs.Separator)
}

func (v *volume) resolve(get getter, p string) (*resolution, error) {
	p = fs.StripSchemeAndAuthority(p)
	r := &resolution{path: p, components: splitPath(p)}

	root, err := getInode(get, v.root)
	if err != nil {
		return nil, fmt.Errorf("read root inode: %w", err)
	}
	r.nodes = append(r.nodes, root)

	cur := root
	for _, name := range r.components {
		if !cur.Dir {
			break
		}
		child, err := lookupChild(get, cur.ID, name)
		if errors.Is(err, ErrKeyNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		r.nodes = append(r.nodes, child)
		cur = child
	}
	return r, nil
}

// children returns the entries of directory id in name order.
func (v *volume) children(ctx context.Context, get getter, id uuid.UUID) ([]*inode, error) {
	var ids []uuid.UUID
	var decodeErr error
	err := v.store.Scan(ctx, keyChildPrefix(id), func(_ string, value []byte) bool {
		child, err := decodeID(value)
		if err != nil {
			decodeErr = err
			return false
		}
		ids = append(ids, child)
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]*inode, 0, len(ids))
	for _, child := range ids {
		n, err := getInode(get, child)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// leaseHolder returns who holds the write lease on id, if anyone.
func (v *volume) leaseHolder(id uuid.UUID) (string, bool) {
	holder, ok := v.leases[id]
	return holder, ok
}

// releaseLeases drops every lease held by holder. Callers hold mu.
func (v *volume) releaseLeases(holder string) int {
	n := 0
	for id, h := range v.leases {
		if h == holder {
			delete(v.leases, id)
			n++
		}
	}
	return n
}
