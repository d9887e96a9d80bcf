package fs

import (
	"context"
	"fmt"
	"io"
)

// Copy copies src on srcFS to dst on dstFS, recursing into directories.
//
// When dst is an existing directory the source is copied into it under its
// own name. An existing file at the destination is replaced only when
// overwrite is set. With deleteSource the source is removed after a
// successful copy, and the result of that delete is returned. Copy returns
// false without an error when a destination directory cannot be created.
func Copy(ctx context.Context, srcFS FileSystem, src string, dstFS FileSystem, dst string, deleteSource, overwrite bool) (bool, error) {
	st, err := srcFS.GetFileStatus(ctx, src)
	if err != nil {
		return false, err
	}
	return copyStatus(ctx, srcFS, st, dstFS, dst, deleteSource, overwrite)
}

func copyStatus(ctx context.Context, srcFS FileSystem, st *FileStatus, dstFS FileSystem, dst string, deleteSource, overwrite bool) (bool, error) {
	src := StripSchemeAndAuthority(st.Path)

	dst, err := checkDest(ctx, Name(src), dstFS, dst, overwrite)
	if err != nil {
		return false, err
	}

	if st.IsDir {
		if srcFS.URI() == dstFS.URI() && IsAncestor(src, dst) {
			return false, NewError(ErrInvalidArgument, "copy", src,
				fmt.Sprintf("Cannot copy %s to its subdirectory %s", src, dst))
		}

		ok, err := dstFS.Mkdirs(ctx, dst, nil)
		if err != nil || !ok {
			return false, err
		}

		children, err := srcFS.ListStatus(ctx, src)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			if _, err := copyStatus(ctx, srcFS, child, dstFS, Join(dst, Name(child.Path)), deleteSource, overwrite); err != nil {
				return false, err
			}
		}
	} else if err := copyContent(ctx, srcFS, src, dstFS, dst, overwrite); err != nil {
		return false, err
	}

	if deleteSource {
		return srcFS.Delete(ctx, src, true)
	}
	return true, nil
}

func copyContent(ctx context.Context, srcFS FileSystem, src string, dstFS FileSystem, dst string, overwrite bool) error {
	in, err := srcFS.Open(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := dstFS.Create(ctx, dst, overwrite)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// checkDest resolves the final destination path: an existing directory
// receives the source under srcName; an existing file is rejected unless
// overwrite is set.
func checkDest(ctx context.Context, srcName string, dstFS FileSystem, dst string, overwrite bool) (string, error) {
	st, err := dstFS.GetFileStatus(ctx, dst)
	if IsNotFound(err) {
		return dst, nil
	}
	if err != nil {
		return "", err
	}

	if st.IsDir {
		if srcName == "" {
			return "", NewError(ErrIsDirectory, "copy", dst, "Target "+dst+" is a directory")
		}
		return checkDest(ctx, "", dstFS, Join(dst, srcName), overwrite)
	}
	if !overwrite {
		return "", NewError(ErrAlreadyExists, "copy", dst, "Target "+dst+" already exists")
	}
	return dst, nil
}
