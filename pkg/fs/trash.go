package fs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/permission"
)

const (
	// TrashDirName is the per-user trash root below the home directory.
	TrashDirName = ".Trash"

	// CurrentDirName holds entries trashed since the last checkpoint.
	CurrentDirName = "Current"

	// checkpointLayout names checkpoint directories (yyMMddHHmmss).
	checkpointLayout = "060102150405"
)

// trashDirPermission is applied to directories created inside the trash.
var trashDirPermission = permission.New(permission.All, permission.None, permission.None)

// TrashConfig configures the trash policy.
type TrashConfig struct {
	// Interval is how long a checkpoint is kept before Expunge deletes it.
	// Zero disables the trash.
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
}

// Trash implements the default trash policy over any FileSystem: deleted
// entries are moved below <home>/.Trash/Current, keeping their absolute
// path; Expunge turns Current into a timestamped checkpoint and removes
// checkpoints older than the interval.
type Trash struct {
	fs       FileSystem
	interval time.Duration
	now      func() time.Time
}

// NewTrash returns the trash policy of fsys.
func NewTrash(fsys FileSystem, cfg TrashConfig) *Trash {
	return &Trash{fs: fsys, interval: cfg.Interval, now: time.Now}
}

// IsEnabled reports whether entries are moved to the trash at all.
func (t *Trash) IsEnabled() bool {
	return t.interval > 0
}

// Root returns the acting user's trash root, <home>/.Trash.
func (t *Trash) Root(ctx context.Context) (string, error) {
	home, err := t.fs.HomeDirectory(ctx)
	if err != nil {
		return "", err
	}
	return Join(home, TrashDirName), nil
}

// CurrentDir returns <home>/.Trash/Current.
func (t *Trash) CurrentDir(ctx context.Context) (string, error) {
	root, err := t.Root(ctx)
	if err != nil {
		return "", err
	}
	return Join(root, CurrentDirName), nil
}

// MoveToTrash moves p into the current trash directory. It returns false
// when the trash is disabled or p is already inside the trash.
func (t *Trash) MoveToTrash(ctx context.Context, p string) (bool, error) {
	if !t.IsEnabled() {
		return false, nil
	}

	p = StripSchemeAndAuthority(p)

	// The entry must exist; not-found propagates.
	if _, err := t.fs.GetFileStatus(ctx, p); err != nil {
		return false, err
	}

	root, err := t.Root(ctx)
	if err != nil {
		return false, err
	}
	if IsAncestor(root, p) {
		return false, nil
	}
	if IsAncestor(p, root) {
		return false, NewError(ErrInvalidArgument, "moveToTrash", p,
			fmt.Sprintf("Cannot move %q to the trash, as it contains the trash", p))
	}

	current := Join(root, CurrentDirName)
	trashPath := Join(current, p)
	baseTrashPath := Parent(trashPath)

	ok, err := t.fs.Mkdirs(ctx, baseTrashPath, trashDirPermission)
	if err != nil {
		return false, &Error{Code: ErrIO, Op: "moveToTrash", Path: p,
			Message: "Failed to move to trash: " + p, Err: err}
	}
	if !ok {
		logger.WarnCtx(ctx, "Can't create trash directory", logger.KeyPath, baseTrashPath)
		return false, nil
	}

	// Keep earlier trashed entries of the same name by suffixing a timestamp.
	orig := trashPath
	for i := int64(0); ; i++ {
		exists, err := t.fs.Exists(ctx, trashPath)
		if err != nil {
			return false, err
		}
		if !exists {
			break
		}
		trashPath = orig + strconv.FormatInt(t.now().UnixMilli()+i, 10)
	}

	moved, err := t.fs.Rename(ctx, p, trashPath)
	if err != nil {
		return false, &Error{Code: ErrIO, Op: "moveToTrash", Path: p,
			Message: "Failed to move to trash: " + p, Err: err}
	}
	if !moved {
		return false, NewError(ErrIO, "moveToTrash", p, "Failed to move to trash: "+p)
	}

	logger.InfoCtx(ctx, "Moved to trash", logger.KeyPath, p, logger.KeyDst, trashPath)
	return true, nil
}

// Checkpoint renames Current to a timestamped checkpoint directory. It is a
// no-op when Current does not exist.
func (t *Trash) Checkpoint(ctx context.Context) error {
	root, err := t.Root(ctx)
	if err != nil {
		return err
	}
	current := Join(root, CurrentDirName)

	exists, err := t.fs.Exists(ctx, current)
	if err != nil || !exists {
		return err
	}

	base := Join(root, t.now().Format(checkpointLayout))
	checkpoint := base
	for attempt := 1; ; attempt++ {
		taken, err := t.fs.Exists(ctx, checkpoint)
		if err != nil {
			return err
		}
		if !taken {
			break
		}
		if attempt > 1000 {
			return NewError(ErrIO, "checkpoint", current, "Failed to checkpoint trash: "+checkpoint)
		}
		checkpoint = base + "-" + strconv.Itoa(attempt)
	}

	ok, err := t.fs.Rename(ctx, current, checkpoint)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(ErrIO, "checkpoint", current, "Failed to checkpoint trash: "+checkpoint)
	}

	logger.InfoCtx(ctx, "Created trash checkpoint", logger.KeyPath, checkpoint)
	return nil
}

// DeleteExpiredCheckpoints removes checkpoints older than the interval.
// Directories whose names are not checkpoint timestamps are left alone.
func (t *Trash) DeleteExpiredCheckpoints(ctx context.Context) error {
	root, err := t.Root(ctx)
	if err != nil {
		return err
	}

	entries, err := t.fs.ListStatus(ctx, root)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	now := t.now()
	for _, st := range entries {
		if !st.IsDir {
			continue
		}
		name := Name(st.Path)
		if name == CurrentDirName {
			continue
		}

		taken, ok := parseCheckpoint(name)
		if !ok {
			logger.WarnCtx(ctx, "Unexpected item in trash", logger.KeyPath, st.Path)
			continue
		}

		if now.Sub(taken) > t.interval {
			if _, err := t.fs.Delete(ctx, StripSchemeAndAuthority(st.Path), true); err != nil {
				return err
			}
			logger.InfoCtx(ctx, "Deleted trash checkpoint", logger.KeyPath, st.Path)
		}
	}
	return nil
}

// Expunge deletes expired checkpoints and then checkpoints Current.
func (t *Trash) Expunge(ctx context.Context) error {
	if err := t.DeleteExpiredCheckpoints(ctx); err != nil {
		return err
	}
	return t.Checkpoint(ctx)
}

// parseCheckpoint reads the timestamp of a checkpoint name, ignoring any
// "-N" collision suffix.
func parseCheckpoint(name string) (time.Time, bool) {
	if len(name) < len(checkpointLayout) {
		return time.Time{}, false
	}
	rest := name[len(checkpointLayout):]
	if rest != "" && rest[0] != '-' {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(checkpointLayout, name[:len(checkpointLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
