package badgerstore_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs/badgerstore"
	"github.com/marmos91/fsdelegate/pkg/fs/kvfs/storetest"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) kvfs.Store {
		opts := &badgerstore.Options{InMemory: true}
		s, err := opts.Open(t.Context())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRequiresPath(t *testing.T) {
	opts := &badgerstore.Options{}
	_, err := opts.Open(t.Context())
	require.ErrorIs(t, err, fs.ErrInvalidOptions)
}

func TestOpenLogsThroughComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "DEBUG", "json", false)
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout, "INFO", "text", false) })

	opts := &badgerstore.Options{Path: filepath.Join(t.TempDir(), "db")}
	s, err := opts.Open(t.Context())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out := buf.String()
	assert.Contains(t, out, "BadgerDB opened")
	assert.Contains(t, out, `"component":"badger_store"`)
}

func TestVolumeSurvivesReopen(t *testing.T) {
	ctx := ugi.WithUser(context.Background(), ugi.CreateUserForTesting("hdfs", nil))
	cfg := fs.Config{
		Type: "badger",
		Name: "reopen",
		Options: map[string]any{
			"path":        filepath.Join(t.TempDir(), "volume"),
			"replication": 1,
		},
	}

	fsys, err := fs.Get(ctx, cfg)
	require.NoError(t, err)

	w, err := fsys.Create(ctx, "/data/part-0000", false)
	require.NoError(t, err)
	_, err = w.Write([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, fsys.Close())

	fsys, err = fs.Get(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsys.Close() })

	st, err := fsys.GetFileStatus(ctx, "/data/part-0000")
	require.NoError(t, err)
	assert.Equal(t, int64(9), st.Length)

	status, err := fsys.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), status.Used)
}
