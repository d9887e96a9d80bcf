package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fsdelegate/pkg/fs"
)

func TestCopyFile(t *testing.T) {
	fsys := openVolume(t, "")
	ctx := aliceCtx()
	put(t, fsys, "/user/alice/src.txt", "payload")

	ok, err := fs.Copy(ctx, fsys, "/user/alice/src.txt", fsys, "/user/alice/dst.txt", false, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", cat(t, fsys, "/user/alice/dst.txt"))
	assert.True(t, exists(t, fsys, "/user/alice/src.txt"))

	_, err = fs.Copy(ctx, fsys, "/user/alice/src.txt", fsys, "/user/alice/dst.txt", false, false)
	require.True(t, fs.IsAlreadyExists(err))
	assert.Contains(t, err.Error(), "Target /user/alice/dst.txt already exists")

	put(t, fsys, "/user/alice/newer.txt", "newer")
	ok, err = fs.Copy(ctx, fsys, "/user/alice/newer.txt", fsys, "/user/alice/dst.txt", false, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "newer", cat(t, fsys, "/user/alice/dst.txt"))

	_, err = fs.Copy(ctx, fsys, "/user/alice/missing", fsys, "/user/alice/x", false, false)
	assert.True(t, fs.IsNotFound(err))
}

func TestCopyIntoDirectory(t *testing.T) {
	fsys := openVolume(t, "")
	ctx := aliceCtx()
	put(t, fsys, "/user/alice/src.txt", "payload")
	_, err := fsys.Mkdirs(ctx, "/user/alice/inbox", nil)
	require.NoError(t, err)

	ok, err := fs.Copy(ctx, fsys, "/user/alice/src.txt", fsys, "/user/alice/inbox", false, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", cat(t, fsys, "/user/alice/inbox/src.txt"))
}

func TestCopyDirectoryRecursively(t *testing.T) {
	fsys := openVolume(t, "")
	ctx := aliceCtx()
	put(t, fsys, "/user/alice/tree/a.txt", "a")
	put(t, fsys, "/user/alice/tree/sub/b.txt", "b")

	ok, err := fs.Copy(ctx, fsys, "/user/alice/tree", fsys, "/user/alice/copy", false, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", cat(t, fsys, "/user/alice/copy/a.txt"))
	assert.Equal(t, "b", cat(t, fsys, "/user/alice/copy/sub/b.txt"))

	_, err = fs.Copy(ctx, fsys, "/user/alice/tree", fsys, "/user/alice/tree/sub/deeper", false, false)
	code, isFSErr := fs.CodeOf(err)
	require.True(t, isFSErr)
	assert.Equal(t, fs.ErrInvalidArgument, code)
	assert.Contains(t, err.Error(), "Cannot copy /user/alice/tree to its subdirectory /user/alice/tree/sub/deeper")
}

func TestCopyAcrossVolumesDeletingSource(t *testing.T) {
	src := openVolume(t, "-src")
	dst := openVolume(t, "-dst")
	ctx := aliceCtx()
	put(t, src, "/user/alice/tree/a.txt", "a")

	ok, err := fs.Copy(ctx, src, "/user/alice/tree", dst, "/user/alice/tree", true, false)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "a", cat(t, dst, "/user/alice/tree/a.txt"))
	assert.False(t, exists(t, src, "/user/alice/tree"))
}
