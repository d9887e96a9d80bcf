package delegate

import (
	"context"
	"io"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/permission"
)

// Operation names used for spans, logs and metrics.
const (
	OpList         = "list"
	OpStat         = "stat"
	OpMkdir        = "mkdir"
	OpRename       = "rename"
	OpTrashEnabled = "trash_enabled"
	OpHome         = "home"
	OpStatus       = "fs_status"
	OpTrashDir     = "trash_dir"
	OpEmptyTrash   = "empty_trash"
	OpMoveToTrash  = "move_to_trash"
	OpDelete       = "delete"
	OpCreate       = "create"
	OpOpen         = "open"
	OpChmod        = "chmod"
	OpCopy         = "copy"
	OpExists       = "exists"
)

// ListDir returns the entries of path, or path itself when it is a file.
func (s *Session) ListDir(ctx context.Context, path string) ([]*fs.FileStatus, error) {
	return execute(ctx, s, OpList, func(ctx context.Context, fsys fs.FileSystem) ([]*fs.FileStatus, error) {
		entries, err := fsys.ListStatus(ctx, path)
		if err != nil {
			return nil, err
		}
		telemetry.SetAttributes(ctx, telemetry.Entries(len(entries)))
		return entries, nil
	}, telemetry.FSPath(path))
}

func (s *Session) GetFileStatus(ctx context.Context, path string) (*fs.FileStatus, error) {
	return execute(ctx, s, OpStat, func(ctx context.Context, fsys fs.FileSystem) (*fs.FileStatus, error) {
		return fsys.GetFileStatus(ctx, path)
	}, telemetry.FSPath(path))
}

// Mkdir creates path and any missing parents.
func (s *Session) Mkdir(ctx context.Context, path string) (bool, error) {
	return execute(ctx, s, OpMkdir, func(ctx context.Context, fsys fs.FileSystem) (bool, error) {
		return fsys.Mkdirs(ctx, path, nil)
	}, telemetry.FSPath(path))
}

func (s *Session) Rename(ctx context.Context, src, dst string) (bool, error) {
	return execute(ctx, s, OpRename, func(ctx context.Context, fsys fs.FileSystem) (bool, error) {
		return fsys.Rename(ctx, src, dst)
	}, telemetry.Src(src), telemetry.Dst(dst))
}

func (s *Session) TrashEnabled(ctx context.Context) (bool, error) {
	return execute(ctx, s, OpTrashEnabled, func(context.Context, fs.FileSystem) (bool, error) {
		return s.trash.IsEnabled(), nil
	})
}

// HomeDir returns the qualified home directory of the impersonated user.
func (s *Session) HomeDir(ctx context.Context) (string, error) {
	return execute(ctx, s, OpHome, func(ctx context.Context, fsys fs.FileSystem) (string, error) {
		home, err := fsys.HomeDirectory(ctx)
		if err != nil {
			return "", err
		}
		return fs.Qualify(fsys.URI(), home), nil
	})
}

// Status reports capacity and usage. Concurrent calls on one session are
// serialized.
func (s *Session) Status(ctx context.Context) (*fs.FsStatus, error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	return execute(ctx, s, OpStatus, func(ctx context.Context, fsys fs.FileSystem) (*fs.FsStatus, error) {
		return fsys.Status(ctx)
	})
}

// TrashDir returns the qualified trash root of the impersonated user,
// the parent of the current trash directory.
func (s *Session) TrashDir(ctx context.Context) (string, error) {
	return execute(ctx, s, OpTrashDir, func(ctx context.Context, fsys fs.FileSystem) (string, error) {
		root, err := s.trash.Root(ctx)
		if err != nil {
			return "", err
		}
		return fs.Qualify(fsys.URI(), root), nil
	})
}

// TrashDirPath returns TrashDir without scheme and authority.
func (s *Session) TrashDirPath(ctx context.Context) (string, error) {
	dir, err := s.TrashDir(ctx)
	if err != nil {
		return "", err
	}
	return fs.StripSchemeAndAuthority(dir), nil
}

// TrashDirPathFor returns TrashDirPath joined with the base name of
// filePath.
func (s *Session) TrashDirPathFor(ctx context.Context, filePath string) (string, error) {
	dir, err := s.TrashDirPath(ctx)
	if err != nil {
		return "", err
	}
	return dir + "/" + fs.Name(filePath), nil
}

// EmptyTrash removes expired trash checkpoints and checkpoints the current
// trash directory.
func (s *Session) EmptyTrash(ctx context.Context) error {
	_, err := execute(ctx, s, OpEmptyTrash, func(ctx context.Context, _ fs.FileSystem) (struct{}, error) {
		return struct{}{}, s.trash.Expunge(ctx)
	})
	return err
}

// MoveToTrash moves path into the current trash directory. It returns
// false when the trash is disabled or path is already in the trash.
func (s *Session) MoveToTrash(ctx context.Context, path string) (bool, error) {
	return execute(ctx, s, OpMoveToTrash, func(ctx context.Context, _ fs.FileSystem) (bool, error) {
		return s.trash.MoveToTrash(ctx, path)
	}, telemetry.FSPath(path))
}

func (s *Session) Delete(ctx context.Context, path string, recursive bool) (bool, error) {
	return execute(ctx, s, OpDelete, func(ctx context.Context, fsys fs.FileSystem) (bool, error) {
		return fsys.Delete(ctx, path, recursive)
	}, telemetry.FSPath(path), telemetry.Recursive(recursive))
}

// Create opens path for writing. The caller must close the writer; its
// content becomes visible on Close.
func (s *Session) Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error) {
	return execute(ctx, s, OpCreate, func(ctx context.Context, fsys fs.FileSystem) (io.WriteCloser, error) {
		return fsys.Create(ctx, path, overwrite)
	}, telemetry.FSPath(path))
}

func (s *Session) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return execute(ctx, s, OpOpen, func(ctx context.Context, fsys fs.FileSystem) (io.ReadCloser, error) {
		return fsys.Open(ctx, path)
	}, telemetry.FSPath(path))
}

// Chmod applies a ten-character symbolic permission such as "-rwxr-x---".
// Any failure, including an unparsable permission, yields false.
func (s *Session) Chmod(ctx context.Context, path, perm string) (bool, error) {
	return execute(ctx, s, OpChmod, func(ctx context.Context, fsys fs.FileSystem) (bool, error) {
		p, err := permission.ParseSymbolic(perm)
		if err == nil {
			err = fsys.SetPermission(ctx, path, p)
		}
		if err != nil {
			logger.DebugCtx(ctx, "Permission not applied",
				logger.KeyPath, path,
				logger.KeyPermission, perm,
				logger.KeyError, err)
			return false, nil
		}
		return true, nil
	}, telemetry.FSPath(path))
}

// Copy copies src to dst within the session's filesystem, replacing
// existing destination files. It fails with *CopyError when the copy
// reports failure without an error.
func (s *Session) Copy(ctx context.Context, src, dst string) error {
	ok, err := execute(ctx, s, OpCopy, func(ctx context.Context, fsys fs.FileSystem) (bool, error) {
		return fs.Copy(ctx, fsys, src, fsys, dst, false, true)
	}, telemetry.Src(src), telemetry.Dst(dst))
	if err != nil {
		return err
	}
	if !ok {
		return &CopyError{Src: src, Dst: dst}
	}
	return nil
}

func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	return execute(ctx, s, OpExists, func(ctx context.Context, fsys fs.FileSystem) (bool, error) {
		return fsys.Exists(ctx, path)
	}, telemetry.FSPath(path))
}
