// Package kvfs implements fs.FileSystem on top of an ordered key-value
// store, with HDFS semantics: owner/group/other permission checks on every
// call, a superuser and supergroup, umask, write leases on files being
// written, capacity accounting and impersonation rules.
//
// Store implementations live in the memstore, badgerstore and s3store
// subpackages and register themselves with fs.Register.
package kvfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/permission"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// Backend is the decoded configuration of one store implementation.
type Backend interface {
	// Common returns the embedded shared Options.
	Common() *Options

	// Open opens the store the volume lives in.
	Open(ctx context.Context) (Store, error)
}

// NewFactory returns an fs.Factory that decodes the configured options into
// a fresh backend from newBackend and opens the volume scheme://name.
func NewFactory(scheme string, newBackend func() Backend) fs.Factory {
	return func(ctx context.Context, cfg fs.Config) (fs.FileSystem, error) {
		b := newBackend()
		if err := DecodeOptions(cfg.Options, b); err != nil {
			return nil, err
		}
		return Open(ctx, scheme+"://"+cfg.Name, *b.Common(), b.Open)
	}
}

// FileSystem is one handle on a volume. The acting user of each call is
// taken from the context.
type FileSystem struct {
	vol    *volume
	uri    string
	client string
	closed atomic.Bool
}

var _ fs.FileSystem = (*FileSystem)(nil)

// Open opens a handle on the volume uri, opening the store with open when
// the volume is not in use yet. The acting user of ctx must pass the
// volume's authentication and impersonation rules.
func Open(ctx context.Context, uri string, opts Options, open func(ctx context.Context) (Store, error)) (*FileSystem, error) {
	if err := opts.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", fs.ErrInvalidOptions, err)
	}

	vol, err := acquireVolume(ctx, uri, opts, open)
	if err != nil {
		return nil, err
	}

	f := &FileSystem{vol: vol, uri: uri, client: "DFSClient_" + uuid.NewString()}

	c, err := f.begin(ctx, "connect", fs.Separator)
	if err == nil && vol.opts.AutoCreateHome {
		err = vol.ensureHome(ctx, c.user)
	}
	if err != nil {
		_ = vol.release()
		return nil, err
	}

	logger.DebugCtx(ctx, "Filesystem handle opened",
		logger.KeyVolume, uri, logger.KeyUsername, c.user.ShortUserName())
	return f, nil
}

func (f *FileSystem) URI() string {
	return f.uri
}

// begin resolves and authorizes the acting user of an operation.
func (f *FileSystem) begin(ctx context.Context, op, p string) (*caller, error) {
	if f.closed.Load() {
		return nil, fs.NewError(fs.ErrClosed, op, p, "Filesystem closed")
	}
	u, err := ugi.CurrentUser(ctx)
	if err != nil {
		return nil, fs.WrapIOError(op, p, err)
	}
	if err := f.vol.opts.authorize(u); err != nil {
		return nil, err
	}
	return newCaller(u, &f.vol.opts), nil
}

// storeErr converts store failures into I/O errors, leaving fs errors as is.
func storeErr(op, p string, err error) error {
	var fe *fs.Error
	if errors.As(err, &fe) {
		return err
	}
	return fs.WrapIOError(op, p, err)
}

func (f *FileSystem) HomeDirectory(ctx context.Context) (string, error) {
	c, err := f.begin(ctx, "getHomeDirectory", "")
	if err != nil {
		return "", err
	}
	return fs.Join(f.vol.opts.HomePrefix, c.user.ShortUserName()), nil
}

// lookup resolves p for a read-only operation after the traverse check.
func (f *FileSystem) lookup(ctx context.Context, c *caller, op, p string) (*resolution, error) {
	r, err := f.vol.resolve(f.vol.reader(ctx), p)
	if err != nil {
		return nil, storeErr(op, p, err)
	}
	if err := c.checkTraverse(op, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (f *FileSystem) GetFileStatus(ctx context.Context, p string) (*fs.FileStatus, error) {
	const op = "getFileStatus"
	c, err := f.begin(ctx, op, p)
	if err != nil {
		return nil, err
	}

	f.vol.mu.RLock()
	defer f.vol.mu.RUnlock()

	r, err := f.lookup(ctx, c, op, p)
	if err != nil {
		return nil, err
	}
	n := r.target()
	if n == nil {
		return nil, fs.NewNotFoundError(op, r.path)
	}
	return n.status(f.uri, r.path), nil
}

func (f *FileSystem) Exists(ctx context.Context, p string) (bool, error) {
	_, err := f.GetFileStatus(ctx, p)
	if fs.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileSystem) ListStatus(ctx context.Context, p string) ([]*fs.FileStatus, error) {
	const op = "listStatus"
	c, err := f.begin(ctx, op, p)
	if err != nil {
		return nil, err
	}

	f.vol.mu.RLock()
	defer f.vol.mu.RUnlock()

	r, err := f.lookup(ctx, c, op, p)
	if err != nil {
		return nil, err
	}
	n := r.target()
	if n == nil {
		return nil, fs.NewError(fs.ErrNotFound, op, r.path, "File "+r.path+" does not exist.")
	}
	if !n.Dir {
		return []*fs.FileStatus{n.status(f.uri, r.path)}, nil
	}
	if err := c.check(op, r.path, n, permission.ReadExecute); err != nil {
		return nil, err
	}

	kids, err := f.vol.children(ctx, f.vol.reader(ctx), n.ID)
	if err != nil {
		return nil, storeErr(op, r.path, err)
	}
	out := make([]*fs.FileStatus, len(kids))
	for i, kid := range kids {
		out[i] = kid.status(f.uri, fs.Join(r.path, kid.Name))
	}
	return out, nil
}

func (f *FileSystem) Mkdirs(ctx context.Context, p string, perm *permission.Permission) (bool, error) {
	const op = "mkdirs"
	c, err := f.begin(ctx, op, p)
	if err != nil {
		return false, err
	}

	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	r, err := f.lookup(ctx, c, op, p)
	if err != nil {
		return false, err
	}
	if n := r.target(); n != nil {
		if n.Dir {
			return true, nil
		}
		return false, fs.NewError(fs.ErrAlreadyExists, op, r.path, "Path is not a directory: "+r.path)
	}
	if r.blockedByFile() {
		last := len(r.nodes) - 1
		return false, fs.NewError(fs.ErrNotDirectory, op, r.path, "Parent path is not a directory: "+r.pathAt(last))
	}
	if err := c.check(op, r.pathAt(len(r.nodes)-1), r.deepest(), permission.Write); err != nil {
		return false, err
	}

	mode := uint16(0o777)
	if perm != nil {
		mode = perm.Mode()
	}
	mode &^= f.vol.opts.umask

	b := newBatch()
	f.vol.makeDirs(b, r, len(r.components), mode, mode|0o300, c.user.ShortUserName(), time.Now().UnixMilli())
	if err := b.commit(ctx, f.vol.store); err != nil {
		return false, storeErr(op, r.path, err)
	}

	logger.DebugCtx(ctx, "Directory created", logger.KeyPath, r.path)
	return true, nil
}

// makeDirs creates the missing components of r up to index upto (exclusive
// of the root), returning the last directory. Callers hold mu.
func (v *volume) makeDirs(b *batch, r *resolution, upto int, last, intermediate uint16, owner string, now int64) *inode {
	parent := r.deepest()
	for i := len(r.nodes) - 1; i < upto; i++ {
		mode := intermediate
		if i == upto-1 {
			mode = last
		}
		dir := &inode{
			ID:     uuid.New(),
			Parent: parent.ID,
			Name:   r.components[i],
			Dir:    true,
			Owner:  owner,
			Group:  parent.Group,
			Mode:   mode,
			MTime:  now,
			ATime:  now,
		}
		parent.MTime = now
		b.touch(parent)
		b.touch(dir)
		b.link(parent.ID, dir.Name, dir.ID)

		r.nodes = append(r.nodes, dir)
		parent = dir
	}
	return parent
}

// ensureHome provisions the home directory of u, owned by u.
func (v *volume) ensureHome(ctx context.Context, u *ugi.User) error {
	home := fs.Join(v.opts.HomePrefix, u.ShortUserName())

	v.mu.Lock()
	defer v.mu.Unlock()

	r, err := v.resolve(v.reader(ctx), home)
	if err != nil {
		return storeErr("mkdirs", home, err)
	}
	if r.found() {
		return nil
	}
	if r.blockedByFile() {
		return fs.NewError(fs.ErrNotDirectory, "mkdirs", home, "Parent path is not a directory: "+r.pathAt(len(r.nodes)-1))
	}

	now := time.Now().UnixMilli()
	b := newBatch()
	prefix := splitPath(v.opts.HomePrefix)
	if len(r.nodes) <= len(prefix) {
		v.makeDirs(b, r, len(prefix), 0o755, 0o755, v.opts.Superuser, now)
	}
	group := u.PrimaryGroup()
	if group == "" {
		group = v.opts.Supergroup
	}
	dir := v.makeDirs(b, r, len(r.components), 0o755&^v.opts.umask, 0o755, u.ShortUserName(), now)
	dir.Group = group

	if err := b.commit(ctx, v.store); err != nil {
		return storeErr("mkdirs", home, err)
	}
	logger.InfoCtx(ctx, "Home directory created", logger.KeyPath, home, logger.KeyUsername, u.ShortUserName())
	return nil
}

// Rename follows the non-overwriting rename contract: it returns false
// without an error when src is missing or the root, when dst is taken,
// when dst's parent does not exist, or when dst lies inside src.
func (f *FileSystem) Rename(ctx context.Context, src, dst string) (bool, error) {
	const op = "rename"
	c, err := f.begin(ctx, op, src)
	if err != nil {
		return false, err
	}

	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	rs, err := f.lookup(ctx, c, op, src)
	if err != nil {
		return false, err
	}
	n := rs.target()
	if n == nil || len(rs.components) == 0 {
		logger.DebugCtx(ctx, "Rename source missing or root", logger.KeySrc, rs.path)
		return false, nil
	}

	rd, err := f.lookup(ctx, c, op, dst)
	if err != nil {
		return false, err
	}
	if t := rd.target(); t != nil && t.Dir {
		if rd, err = f.lookup(ctx, c, op, fs.Join(rd.path, n.Name)); err != nil {
			return false, err
		}
	}

	if rd.path == rs.path {
		return true, nil
	}
	if fs.IsAncestor(rs.path, rd.path) || rd.found() {
		logger.DebugCtx(ctx, "Rename destination taken or below source",
			logger.KeySrc, rs.path, logger.KeyDst, rd.path)
		return false, nil
	}
	dstParent := rd.parent()
	if dstParent == nil || !dstParent.Dir {
		return false, nil
	}

	if err := c.checkParentWrite(op, rs); err != nil {
		return false, err
	}
	if err := c.check(op, rd.pathAt(len(rd.components)-1), dstParent, permission.Write|permission.Execute); err != nil {
		return false, err
	}

	now := time.Now().UnixMilli()
	srcParent := rs.parent()
	if srcParent.ID == dstParent.ID {
		dstParent = srcParent
	}

	b := newBatch()
	b.unlink(srcParent.ID, n.Name)
	n.Parent = dstParent.ID
	n.Name = fs.Name(rd.path)
	b.link(dstParent.ID, n.Name, n.ID)
	srcParent.MTime = now
	dstParent.MTime = now
	b.touch(n)
	b.touch(srcParent)
	b.touch(dstParent)

	if err := b.commit(ctx, f.vol.store); err != nil {
		return false, storeErr(op, rs.path, err)
	}

	logger.DebugCtx(ctx, "Renamed", logger.KeySrc, rs.path, logger.KeyDst, rd.path)
	return true, nil
}

type subtreeEntry struct {
	path string
	node *inode
}

func (v *volume) subtreeEntries(ctx context.Context, root *inode, rootPath string) ([]subtreeEntry, error) {
	out := []subtreeEntry{{path: rootPath, node: root}}
	for i := 0; i < len(out); i++ {
		if !out[i].node.Dir {
			continue
		}
		kids, err := v.children(ctx, v.reader(ctx), out[i].node.ID)
		if err != nil {
			return nil, err
		}
		for _, kid := range kids {
			out = append(out, subtreeEntry{path: fs.Join(out[i].path, kid.Name), node: kid})
		}
	}
	return out, nil
}

func (f *FileSystem) Delete(ctx context.Context, p string, recursive bool) (bool, error) {
	const op = "delete"
	c, err := f.begin(ctx, op, p)
	if err != nil {
		return false, err
	}

	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	r, err := f.lookup(ctx, c, op, p)
	if err != nil {
		return false, err
	}
	n := r.target()
	if n == nil || len(r.components) == 0 {
		return false, nil
	}
	if err := c.checkParentWrite(op, r); err != nil {
		return false, err
	}

	entries, err := f.vol.subtreeEntries(ctx, n, r.path)
	if err != nil {
		return false, storeErr(op, r.path, err)
	}
	if len(entries) > 1 && !recursive {
		return false, fs.NewError(fs.ErrNotEmpty, op, r.path, "`"+r.path+" is non empty': Directory is not empty")
	}

	// Every non-empty directory of the subtree must grant full access.
	nonEmpty := make(map[uuid.UUID]bool)
	for _, e := range entries[1:] {
		nonEmpty[e.node.Parent] = true
	}
	for _, e := range entries {
		if !nonEmpty[e.node.ID] {
			continue
		}
		if err := c.check(op, e.path, e.node, permission.All); err != nil {
			return false, err
		}
	}

	b := newBatch()
	parent := r.parent()
	b.unlink(parent.ID, n.Name)
	parent.MTime = time.Now().UnixMilli()
	b.touch(parent)

	var freed int64
	for _, e := range entries {
		if e.node.ID != n.ID {
			b.unlink(e.node.Parent, e.node.Name)
		}
		b.remove(e.node)
		freed += e.node.consumed()
	}

	if err := b.commit(ctx, f.vol.store); err != nil {
		return false, storeErr(op, r.path, err)
	}

	f.vol.used -= freed
	for _, e := range entries {
		delete(f.vol.leases, e.node.ID)
	}

	logger.DebugCtx(ctx, "Deleted", logger.KeyPath, r.path, logger.KeyRecursive, recursive, logger.KeyEntries, len(entries))
	return true, nil
}

func (f *FileSystem) Create(ctx context.Context, p string, overwrite bool) (io.WriteCloser, error) {
	const op = "create"
	c, err := f.begin(ctx, op, p)
	if err != nil {
		return nil, err
	}

	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	r, err := f.lookup(ctx, c, op, p)
	if err != nil {
		return nil, err
	}
	if len(r.components) == 0 {
		return nil, fs.NewError(fs.ErrIsDirectory, op, r.path, r.path+" already exists as a directory")
	}
	if r.blockedByFile() {
		return nil, fs.NewError(fs.ErrNotDirectory, op, r.path, "Parent path is not a directory: "+r.pathAt(len(r.nodes)-1))
	}

	b := newBatch()
	now := time.Now().UnixMilli()
	var freed int64

	old := r.target()
	if old != nil {
		if old.Dir {
			return nil, fs.NewError(fs.ErrIsDirectory, op, r.path, r.path+" already exists as a directory")
		}
		if !overwrite {
			return nil, fs.NewError(fs.ErrAlreadyExists, op, r.path, r.path+" for client "+f.client+" already exists")
		}
		if holder, ok := f.vol.leaseHolder(old.ID); ok {
			return nil, fs.NewError(fs.ErrIO, op, r.path, fmt.Sprintf(
				"Failed to CREATE_FILE %s for %s because this file lease is currently owned by %s", r.path, f.client, holder))
		}
		if err := c.check(op, r.path, old, permission.Write); err != nil {
			return nil, err
		}
		if err := c.checkParentWrite(op, r); err != nil {
			return nil, err
		}
		b.remove(old)
		freed = old.consumed()
		r.nodes = r.nodes[:len(r.nodes)-1]
	} else if err := c.check(op, r.pathAt(len(r.nodes)-1), r.deepest(), permission.Write); err != nil {
		return nil, err
	}

	dirMode := (0o777 &^ f.vol.opts.umask) | 0o300
	parent := f.vol.makeDirs(b, r, len(r.components)-1, dirMode, dirMode, c.user.ShortUserName(), now)

	file := &inode{
		ID:          uuid.New(),
		Parent:      parent.ID,
		Name:        r.components[len(r.components)-1],
		Owner:       c.user.ShortUserName(),
		Group:       parent.Group,
		Mode:        0o666 &^ f.vol.opts.umask,
		Replication: f.vol.opts.Replication,
		BlockSize:   f.vol.opts.BlockSize.Int64(),
		MTime:       now,
		ATime:       now,
	}
	parent.MTime = now
	b.touch(parent)
	b.touch(file)
	b.link(parent.ID, file.Name, file.ID)

	if err := b.commit(ctx, f.vol.store); err != nil {
		return nil, storeErr(op, r.path, err)
	}
	f.vol.used -= freed
	f.vol.leases[file.ID] = f.client

	logger.DebugCtx(ctx, "File created", logger.KeyPath, r.path)
	return &writer{
		ctx:    context.WithoutCancel(ctx),
		vol:    f.vol,
		id:     file.ID,
		path:   r.path,
		holder: f.client,
	}, nil
}

// writer buffers a file's content until Close commits it and releases the
// lease.
type writer struct {
	ctx    context.Context
	vol    *volume
	id     uuid.UUID
	path   string
	holder string

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, fs.NewError(fs.ErrIO, "write", w.path, "Stream closed")
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.vol.commit(w.ctx, w.id, w.path, w.holder, w.buf.Bytes())
}

func (v *volume) commit(ctx context.Context, id uuid.UUID, p, holder string, data []byte) error {
	const op = "complete"

	v.mu.Lock()
	defer v.mu.Unlock()

	noLease := fs.NewError(fs.ErrNotFound, op, p, fmt.Sprintf(
		"No lease on %s: File does not exist. Holder %s does not have any open files.", p, holder))
	if h, ok := v.leases[id]; !ok || h != holder {
		return noLease
	}
	delete(v.leases, id)

	n, err := getInode(v.reader(ctx), id)
	if errors.Is(err, ErrKeyNotFound) {
		return noLease
	}
	if err != nil {
		return storeErr(op, p, err)
	}

	before := n.consumed()
	n.Length = int64(len(data))
	delta := n.consumed() - before
	if limit := v.opts.Capacity.Int64(); v.used+delta > limit {
		return fs.NewError(fs.ErrNoSpace, op, p, fmt.Sprintf(
			"The DiskSpace quota of / is exceeded: quota = %d B but diskspace consumed = %d B", limit, v.used+delta))
	}
	n.MTime = time.Now().UnixMilli()
	n.ATime = n.MTime

	b := newBatch()
	b.touch(n)
	b.setContent(id, data)
	if err := b.commit(ctx, v.store); err != nil {
		return storeErr(op, p, err)
	}
	v.used += delta
	return nil
}

func (f *FileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	const op = "open"
	c, err := f.begin(ctx, op, p)
	if err != nil {
		return nil, err
	}

	f.vol.mu.RLock()
	defer f.vol.mu.RUnlock()

	r, err := f.lookup(ctx, c, op, p)
	if err != nil {
		return nil, err
	}
	n := r.target()
	if n == nil {
		return nil, fs.NewNotFoundError(op, r.path)
	}
	if n.Dir {
		return nil, fs.NewError(fs.ErrIsDirectory, op, r.path, "Path is not a file: "+r.path)
	}
	if err := c.check(op, r.path, n, permission.Read); err != nil {
		return nil, err
	}
	if _, ok := f.vol.leaseHolder(n.ID); ok {
		return nil, fs.NewError(fs.ErrIO, op, r.path, fmt.Sprintf(
			"Cannot obtain block length for LocatedBlock{path=%s; offset=0; underConstruction=true}", r.path))
	}

	data, err := f.vol.store.Get(ctx, keyContent(n.ID))
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return nil, storeErr(op, r.path, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *FileSystem) SetPermission(ctx context.Context, p string, perm *permission.Permission) error {
	const op = "setPermission"
	if perm == nil {
		return fs.NewError(fs.ErrInvalidArgument, op, p, "permission is required")
	}
	c, err := f.begin(ctx, op, p)
	if err != nil {
		return err
	}

	f.vol.mu.Lock()
	defer f.vol.mu.Unlock()

	r, err := f.lookup(ctx, c, op, p)
	if err != nil {
		return err
	}
	n := r.target()
	if n == nil {
		return fs.NewNotFoundError(op, r.path)
	}
	if err := c.checkOwner(op, r.path, n); err != nil {
		return err
	}

	n.Mode = perm.Mode()
	b := newBatch()
	b.touch(n)
	if err := b.commit(ctx, f.vol.store); err != nil {
		return storeErr(op, r.path, err)
	}

	logger.DebugCtx(ctx, "Permission set", logger.KeyPath, r.path, logger.KeyPermission, perm.String())
	return nil
}

func (f *FileSystem) Status(ctx context.Context) (*fs.FsStatus, error) {
	if _, err := f.begin(ctx, "getStatus", ""); err != nil {
		return nil, err
	}

	f.vol.mu.RLock()
	defer f.vol.mu.RUnlock()

	capacity := f.vol.opts.Capacity.Int64()
	return &fs.FsStatus{
		Capacity:  capacity,
		Used:      f.vol.used,
		Remaining: max(0, capacity-f.vol.used),
	}, nil
}

// Close releases the leases of files this handle left open and drops its
// reference on the volume.
func (f *FileSystem) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}

	f.vol.mu.Lock()
	if n := f.vol.releaseLeases(f.client); n > 0 {
		logger.Debug("Released open file leases", logger.KeyVolume, f.uri, "leases", n)
	}
	f.vol.mu.Unlock()

	return f.vol.release()
}
