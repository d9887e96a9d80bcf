// Package fs defines the filesystem capability the delegate operates on,
// together with the pieces layered on top of any implementation: the error
// taxonomy, path helpers, the trash policy and the recursive copy utility.
//
// Implementations register a Factory under a type name from an init
// function; Get opens a handle for a Config:
//
//	import _ "github.com/marmos91/fsdelegate/pkg/fs/kvfs/badgerstore"
//
//	fsys, err := fs.Get(ctx, fs.Config{Type: "badger", Name: "warehouse", Options: opts})
//
// The acting user of every call is read from the context (see ugi.WithUser).
package fs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/fsdelegate/pkg/permission"
)

// FileStatus describes one filesystem entry.
type FileStatus struct {
	// Path is fully qualified: scheme://authority/absolute/path.
	Path             string
	Length           int64
	IsDir            bool
	Replication      int16
	BlockSize        int64
	ModificationTime time.Time
	AccessTime       time.Time
	Owner            string
	Group            string
	Permission       *permission.Permission
}

// FsStatus is the overall capacity report of a filesystem.
type FsStatus struct {
	Capacity  int64 `json:"capacity"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

// FileSystem is a handle on one filesystem, bound to a configuration.
// Handles are safe for concurrent use, except that Status is expected to be
// serialized by the caller.
type FileSystem interface {
	// URI returns scheme://authority of the filesystem.
	URI() string

	// HomeDirectory returns the acting user's home directory (unqualified).
	HomeDirectory(ctx context.Context) (string, error)

	ListStatus(ctx context.Context, path string) ([]*FileStatus, error)
	GetFileStatus(ctx context.Context, path string) (*FileStatus, error)
	Exists(ctx context.Context, path string) (bool, error)

	// Mkdirs creates path and any missing parents with perm (nil selects the
	// filesystem default). It returns true when path exists as a directory
	// afterwards.
	Mkdirs(ctx context.Context, path string, perm *permission.Permission) (bool, error)

	// Rename moves src to dst. Renaming onto an existing directory moves src
	// into it. It returns false when src is missing or dst is occupied.
	Rename(ctx context.Context, src, dst string) (bool, error)

	// Delete removes path. Non-empty directories require recursive. It
	// returns false when path does not exist.
	Delete(ctx context.Context, path string, recursive bool) (bool, error)

	// Create opens path for writing. The content becomes visible when the
	// writer is closed.
	Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	SetPermission(ctx context.Context, path string, perm *permission.Permission) error

	Status(ctx context.Context) (*FsStatus, error)

	Close() error
}

// Config selects and configures a filesystem implementation.
type Config struct {
	// Type is the registered implementation name (memory, badger, s3).
	Type string `mapstructure:"type" yaml:"type" json:"type" validate:"required"`

	// Name is the volume name; it becomes the authority of qualified paths.
	Name string `mapstructure:"name" yaml:"name" json:"name" validate:"required"`

	// Options are implementation-specific settings.
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty" json:"options,omitempty"`

	Trash TrashConfig `mapstructure:"trash" yaml:"trash" json:"trash"`
}

// Factory opens a filesystem handle for cfg.
type Factory func(ctx context.Context, cfg Config) (FileSystem, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a filesystem implementation available under name. It
// panics on a nil factory or a duplicate name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("fs: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("fs: Register called twice for " + name)
	}
	registry[name] = factory
}

// Types returns the registered implementation names, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get opens a handle on the filesystem described by cfg.
func Get(ctx context.Context, cfg Config) (FileSystem, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnsupportedType, cfg.Type, Types())
	}
	return factory(ctx, cfg)
}
