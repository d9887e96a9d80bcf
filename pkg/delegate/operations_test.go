package delegate_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/permission"
)

func writeFile(t *testing.T, s *delegate.Session, p, content string) {
	t.Helper()
	w, err := s.Create(context.Background(), p, false)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readFile(t *testing.T, s *delegate.Session, p string) string {
	t.Helper()
	r, err := s.Open(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestDirectoryOperations(t *testing.T) {
	s := newSession(t, "alice", config{})
	ctx := context.Background()

	ok, err := s.Mkdir(ctx, "/user/alice/reports/2026")
	require.NoError(t, err)
	assert.True(t, ok)
	writeFile(t, s, "/user/alice/reports/q1.csv", "a,b\n")

	entries, err := s.ListDir(ctx, "/user/alice/reports")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "memory://"+volumeName(t)+"/user/alice/reports/2026", entries[0].Path)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, int64(4), entries[1].Length)

	_, err = s.ListDir(ctx, "/user/alice/missing")
	assert.True(t, fs.IsNotFound(err))

	_, err = s.GetFileStatus(ctx, "/user/alice/missing")
	assert.True(t, fs.IsNotFound(err))

	ok, err = s.Rename(ctx, "/user/alice/reports/q1.csv", "/user/alice/reports/2026/q1.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := s.Exists(ctx, "/user/alice/reports/2026/q1.csv")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.Exists(ctx, "/user/alice/reports/q1.csv")
	require.NoError(t, err)
	assert.False(t, exists)

	ok, err = s.Delete(ctx, "/user/alice/reports", true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "/user/alice/reports", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionErrorsSurface(t *testing.T) {
	alice := newSession(t, "alice", config{})
	bob := newSession(t, "bob", config{})
	ctx := context.Background()

	_, err := alice.Mkdir(ctx, "/user/alice/private")
	require.NoError(t, err)
	ok, err := alice.Chmod(ctx, "/user/alice/private", "drwx------")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = bob.ListDir(ctx, "/user/alice/private")
	assert.True(t, fs.IsPermissionDenied(err))

	_, err = bob.Create(ctx, "/user/alice/private/x", false)
	assert.True(t, fs.IsPermissionDenied(err))
}

func TestOpenRetriesWhileFileIsBeingWritten(t *testing.T) {
	writer := newSession(t, "alice", config{})
	ctx := context.Background()

	w, err := writer.Create(ctx, "/user/alice/busy.log", false)
	require.NoError(t, err)
	_, err = io.WriteString(w, "complete")
	require.NoError(t, err)

	var closeOnce sync.Once
	clock := &fakeClock{onWake: func(int) {
		closeOnce.Do(func() { require.NoError(t, w.Close()) })
	}}
	reader := newSession(t, "alice", config{opts: []delegate.Option{withClock(clock)}})

	assert.Equal(t, "complete", readFile(t, reader, "/user/alice/busy.log"))
	assert.Equal(t, []time.Duration{time.Second}, clock.slept())
}

func TestOpenGivesUpOnLongWrite(t *testing.T) {
	writer := newSession(t, "alice", config{})
	ctx := context.Background()

	w, err := writer.Create(ctx, "/user/alice/busy.log", false)
	require.NoError(t, err)
	defer w.Close()

	clock := &fakeClock{}
	reader := newSession(t, "alice", config{opts: []delegate.Option{withClock(clock)}})

	_, err = reader.Open(ctx, "/user/alice/busy.log")
	require.Error(t, err)
	assert.True(t, fs.IsIOError(err))
	assert.Contains(t, err.Error(), delegate.BlockLengthMarker)
	assert.Len(t, clock.slept(), 2)
}

func TestCreateOverwrite(t *testing.T) {
	s := newSession(t, "alice", config{})
	ctx := context.Background()
	writeFile(t, s, "/user/alice/f.txt", "v1")

	_, err := s.Create(ctx, "/user/alice/f.txt", false)
	assert.True(t, fs.IsAlreadyExists(err))

	w, err := s.Create(ctx, "/user/alice/f.txt", true)
	require.NoError(t, err)
	_, err = io.WriteString(w, "v2")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "v2", readFile(t, s, "/user/alice/f.txt"))
}

func TestFileLifecycle(t *testing.T) {
	s := newSession(t, "alice", config{})
	ctx := context.Background()
	const p = "/user/alice/report.csv"

	w, err := s.Create(ctx, p, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	ok, err := s.Exists(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := s.Delete(ctx, p, false)
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err = s.Exists(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err = s.Delete(ctx, p, false)
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a missing path reports false")
}

func TestChmod(t *testing.T) {
	alice := newSession(t, "alice", config{})
	bob := newSession(t, "bob", config{})
	ctx := context.Background()
	writeFile(t, alice, "/user/alice/f.txt", "x")

	ok, err := alice.Chmod(ctx, "/user/alice/f.txt", "-rwxr-x--x")
	require.NoError(t, err)
	assert.True(t, ok)
	st, err := alice.GetFileStatus(ctx, "/user/alice/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "rwxr-x--x", st.Permission.String())

	tests := []struct {
		name string
		s    *delegate.Session
		path string
		perm string
	}{
		{"malformed", alice, "/user/alice/f.txt", "rwx"},
		{"not owner", bob, "/user/alice/f.txt", "-rwxrwxrwx"},
		{"missing path", alice, "/user/alice/missing", "-rw-r--r--"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.s.Chmod(ctx, tt.path, tt.perm)
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}

	st, err = alice.GetFileStatus(ctx, "/user/alice/f.txt")
	require.NoError(t, err)
	assert.Equal(t, "rwxr-x--x", st.Permission.String())
}

func TestCopy(t *testing.T) {
	s := newSession(t, "alice", config{})
	ctx := context.Background()
	writeFile(t, s, "/user/alice/src/a.txt", "a")

	require.NoError(t, s.Copy(ctx, "/user/alice/src", "/user/alice/dst"))
	assert.Equal(t, "a", readFile(t, s, "/user/alice/dst/a.txt"))
	assert.Equal(t, "a", readFile(t, s, "/user/alice/src/a.txt"))

	writeFile(t, s, "/user/alice/b.txt", "new")
	writeFile(t, s, "/user/alice/dst/b.txt", "old")
	require.NoError(t, s.Copy(ctx, "/user/alice/b.txt", "/user/alice/dst/b.txt"))
	assert.Equal(t, "new", readFile(t, s, "/user/alice/dst/b.txt"), "an existing destination file is replaced")

	err := s.Copy(ctx, "/user/alice/missing", "/user/alice/elsewhere")
	assert.True(t, fs.IsNotFound(err))
}

func TestCopyReportsFailure(t *testing.T) {
	s := newSession(t, "alice", config{fsType: "refusing"})
	ctx := context.Background()

	// The home directory was provisioned by the wrapped volume itself.
	writeFile(t, s, "/user/alice/src/a.txt", "a")

	err := s.Copy(ctx, "/user/alice/src", "/user/alice/dst")
	var copyErr *delegate.CopyError
	require.ErrorAs(t, err, &copyErr)
	assert.Equal(t, "/user/alice/src", copyErr.Src)
	assert.Equal(t, "/user/alice/dst", copyErr.Dst)
	assert.Equal(t, "can't copy source file from /user/alice/src to /user/alice/dst", err.Error())
}

func TestStatus(t *testing.T) {
	s := newSession(t, "alice", config{options: map[string]any{
		"auto_create_home": true,
		"replication":      1,
		"capacity":         "1KiB",
	}})
	ctx := context.Background()
	writeFile(t, s, "/user/alice/f.txt", "0123456789")

	var wg sync.WaitGroup
	results := make([]*fs.FsStatus, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := s.Status(ctx)
			assert.NoError(t, err)
			results[i] = st
		}(i)
	}
	wg.Wait()

	for _, st := range results {
		require.NotNil(t, st)
		assert.Equal(t, int64(1024), st.Capacity)
		assert.Equal(t, int64(10), st.Used)
		assert.Equal(t, int64(1014), st.Remaining)
	}
}

func TestTrashOperations(t *testing.T) {
	s := newSession(t, "alice", config{trash: fs.TrashConfig{Interval: time.Hour}})
	ctx := context.Background()

	enabled, err := s.TrashEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	dir, err := s.TrashDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory://"+volumeName(t)+"/user/alice/.Trash", dir)

	dirPath, err := s.TrashDirPath(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/user/alice/.Trash", dirPath)

	forFile, err := s.TrashDirPathFor(ctx, "/a/b/report.csv")
	require.NoError(t, err)
	assert.Equal(t, "/user/alice/.Trash/report.csv", forFile)

	writeFile(t, s, "/user/alice/old.csv", "x")
	moved, err := s.MoveToTrash(ctx, "/user/alice/old.csv")
	require.NoError(t, err)
	assert.True(t, moved)

	exists, err := s.Exists(ctx, "/user/alice/.Trash/Current/user/alice/old.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.EmptyTrash(ctx))
	exists, err = s.Exists(ctx, "/user/alice/.Trash/Current")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.MoveToTrash(ctx, "/user/alice/missing")
	assert.True(t, fs.IsNotFound(err))
}

func TestTrashDisabled(t *testing.T) {
	s := newSession(t, "alice", config{})
	ctx := context.Background()
	writeFile(t, s, "/user/alice/keep.csv", "x")

	enabled, err := s.TrashEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	moved, err := s.MoveToTrash(ctx, "/user/alice/keep.csv")
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestFileStatusToRecord(t *testing.T) {
	alice := newSession(t, "alice", config{})
	bob := newSession(t, "bob", config{})
	ctx := context.Background()
	writeFile(t, alice, "/user/alice/data.csv", "12345")
	ok, err := alice.Chmod(ctx, "/user/alice/data.csv", "-rw-r-----")
	require.NoError(t, err)
	require.True(t, ok)

	st, err := alice.GetFileStatus(ctx, "/user/alice/data.csv")
	require.NoError(t, err)

	rec := alice.FileStatusToRecord(st)
	assert.Equal(t, "/user/alice/data.csv", rec.Path)
	assert.Equal(t, int16(1), rec.Replication)
	assert.False(t, rec.IsDirectory)
	assert.Equal(t, int64(5), rec.Length)
	assert.Equal(t, "alice", rec.Owner)
	assert.Equal(t, "-rw-r-----", rec.Permission)
	assert.Equal(t, st.ModificationTime.UnixMilli(), rec.ModificationTime)
	assert.True(t, rec.ReadAccess)
	assert.True(t, rec.WriteAccess)
	assert.False(t, rec.ExecuteAccess)

	// bob is neither owner nor in the file's group: other bits apply.
	rec = bob.FileStatusToRecord(st)
	assert.False(t, rec.ReadAccess)
	assert.False(t, rec.WriteAccess)
	assert.False(t, rec.ExecuteAccess)
}

func TestRecordJSONKeyOrder(t *testing.T) {
	s := newSession(t, "alice", config{})
	st := &fs.FileStatus{
		Path:             "memory://vol/user/alice/x",
		Length:           3,
		Replication:      3,
		BlockSize:        128,
		ModificationTime: time.UnixMilli(1700000000000),
		AccessTime:       time.UnixMilli(1700000001000),
		Owner:            "alice",
		Group:            "analysts",
		Permission:       permission.FromMode(0o754),
	}

	b, err := json.Marshal(s.FileStatusToRecord(st))
	require.NoError(t, err)
	assert.Equal(t, `{"path":"/user/alice/x","replication":3,"isDirectory":false,"length":3,`+
		`"owner":"alice","group":"analysts","permission":"-rwxr-xr--","accessTime":1700000001000,`+
		`"modificationTime":1700000000000,"blockSize":128,"readAccess":true,"writeAccess":true,"executeAccess":true}`,
		string(b))

	st.Permission = nil
	rec := s.FileStatusToRecord(st)
	assert.Equal(t, "default", rec.Permission)
	assert.False(t, rec.ReadAccess)
}

func TestFileStatusesToRecords(t *testing.T) {
	s := newSession(t, "alice", config{})

	records := s.FileStatusesToRecords(nil)
	require.NotNil(t, records)
	assert.Empty(t, records)

	b, err := json.Marshal(records)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	sts := []*fs.FileStatus{
		{Path: "memory://vol/b", Permission: permission.FromMode(0o644)},
		{Path: "memory://vol/a", Permission: permission.FromMode(0o644)},
	}
	records = s.FileStatusesToRecords(sts)
	require.Len(t, records, 2)
	assert.Equal(t, "/b", records[0].Path)
	assert.Equal(t, "/a", records[1].Path)
}
