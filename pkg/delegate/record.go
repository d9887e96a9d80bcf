package delegate

import (
	"time"

	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/permission"
)

// Record is the external rendering of a FileStatus. Times are Unix
// milliseconds. The access flags are evaluated for the session's user.
type Record struct {
	Path             string `json:"path" yaml:"path"`
	Replication      int16  `json:"replication" yaml:"replication"`
	IsDirectory      bool   `json:"isDirectory" yaml:"isDirectory"`
	Length           int64  `json:"length" yaml:"length"`
	Owner            string `json:"owner" yaml:"owner"`
	Group            string `json:"group" yaml:"group"`
	Permission       string `json:"permission" yaml:"permission"`
	AccessTime       int64  `json:"accessTime" yaml:"accessTime"`
	ModificationTime int64  `json:"modificationTime" yaml:"modificationTime"`
	BlockSize        int64  `json:"blockSize" yaml:"blockSize"`
	ReadAccess       bool   `json:"readAccess" yaml:"readAccess"`
	WriteAccess      bool   `json:"writeAccess" yaml:"writeAccess"`
	ExecuteAccess    bool   `json:"executeAccess" yaml:"executeAccess"`
}

// FileStatusToRecord renders st for the session's user.
func (s *Session) FileStatusToRecord(st *fs.FileStatus) Record {
	access := permission.Evaluate(st.Owner, st.Group, st.Permission, s.user)
	return Record{
		Path:             fs.StripSchemeAndAuthority(st.Path),
		Replication:      st.Replication,
		IsDirectory:      st.IsDir,
		Length:           st.Length,
		Owner:            st.Owner,
		Group:            st.Group,
		Permission:       permission.Symbolic(st.Permission),
		AccessTime:       unixMilli(st.AccessTime),
		ModificationTime: unixMilli(st.ModificationTime),
		BlockSize:        st.BlockSize,
		ReadAccess:       access.Read,
		WriteAccess:      access.Write,
		ExecuteAccess:    access.Execute,
	}
}

// FileStatusesToRecords renders sts in order. A nil or empty input yields
// an empty, non-nil slice.
func (s *Session) FileStatusesToRecords(sts []*fs.FileStatus) []Record {
	records := make([]Record, 0, len(sts))
	for _, st := range sts {
		records = append(records, s.FileStatusToRecord(st))
	}
	return records
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
