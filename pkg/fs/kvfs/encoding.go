package kvfs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/permission"
)

// Key namespace of a volume:
//
//	Data type        Prefix   Key format                 Value
//	=====================================================================
//	Inode            "f:"     f:<uuid>                   inode (JSON)
//	Children map     "c:"     c:<parentUUID>:<name>      child uuid (text)
//	File content     "d:"     d:<uuid>                   raw bytes
//	Volume config    "cfg:"   cfg:root                   root uuid (text)
//
// Inodes are addressed by a random UUID that is stable across renames, so
// moving a directory rewrites one children entry regardless of its size.
const (
	prefixInode   = "f:"
	prefixChild   = "c:"
	prefixContent = "d:"
	keyRoot       = "cfg:root"
)

func keyInode(id uuid.UUID) string {
	return prefixInode + id.String()
}

func keyChild(parent uuid.UUID, name string) string {
	return prefixChild + parent.String() + ":" + name
}

func keyChildPrefix(parent uuid.UUID) string {
	return prefixChild + parent.String() + ":"
}

func keyContent(id uuid.UUID) string {
	return prefixContent + id.String()
}

// inode is the stored form of one namespace entry.
type inode struct {
	ID          uuid.UUID `json:"id"`
	Parent      uuid.UUID `json:"parent"`
	Name        string    `json:"name"`
	Dir         bool      `json:"dir,omitempty"`
	Length      int64     `json:"length"`
	Owner       string    `json:"owner"`
	Group       string    `json:"group"`
	Mode        uint16    `json:"mode"`
	Replication int16     `json:"replication,omitempty"`
	BlockSize   int64     `json:"block_size,omitempty"`
	MTime       int64     `json:"mtime"`
	ATime       int64     `json:"atime"`
}

func (n *inode) perm() *permission.Permission {
	return permission.FromMode(n.Mode)
}

// consumed is the space the inode accounts for against the volume capacity.
func (n *inode) consumed() int64 {
	if n.Dir {
		return 0
	}
	return n.Length * int64(n.Replication)
}

// status converts the inode into a FileStatus for the path p.
func (n *inode) status(uri, p string) *fs.FileStatus {
	st := &fs.FileStatus{
		Path:             fs.Qualify(uri, p),
		Length:           n.Length,
		IsDir:            n.Dir,
		ModificationTime: time.UnixMilli(n.MTime),
		AccessTime:       time.UnixMilli(n.ATime),
		Owner:            n.Owner,
		Group:            n.Group,
		Permission:       n.perm(),
	}
	if !n.Dir {
		st.Replication = n.Replication
		st.BlockSize = n.BlockSize
	}
	return st
}

// inodeString renders the inode the way access-control failures quote it,
// e.g. "/user/alice":alice:analysts:drwxr-xr-x.
func inodeString(p string, n *inode) string {
	kind := "-"
	if n.Dir {
		kind = "d"
	}
	return fmt.Sprintf("%q:%s:%s:%s%s", p, n.Owner, n.Group, kind, n.perm())
}

func encodeInode(n *inode) ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode inode: %w", err)
	}
	return b, nil
}

func decodeInode(b []byte) (*inode, error) {
	var n inode
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, fmt.Errorf("decode inode: %w", err)
	}
	return &n, nil
}

func decodeID(b []byte) (uuid.UUID, error) {
	id, err := uuid.ParseBytes(b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode inode id: %w", err)
	}
	return id, nil
}
