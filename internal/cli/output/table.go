package output

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
)

// TimeLayout is used for modification times in listings.
const TimeLayout = "2006-01-02 15:04"

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w)
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	table.SetColumnSeparator("")

	for _, row := range data.Rows() {
		table.Append(row)
	}

	table.Render()
	return nil
}

// SimpleTable prints key: value pairs.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	table := newTable(w)
	table.SetAutoFormatHeaders(false)
	table.SetColumnSeparator(":")

	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}

	table.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// TableData is an ad-hoc TableRenderer.
type TableData struct {
	headers []string
	rows    [][]string
}

func NewTableData(headers ...string) *TableData {
	return &TableData{
		headers: headers,
		rows:    make([][]string, 0),
	}
}

func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string {
	return t.headers
}

func (t *TableData) Rows() [][]string {
	return t.rows
}

// Listing renders records the way `ls -l` does. JSON and YAML output use
// the records unchanged.
type Listing []delegate.Record

func (l Listing) Headers() []string {
	return []string{"Permission", "Repl", "Owner", "Group", "Size", "Modified", "Path"}
}

func (l Listing) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		repl := "-"
		if !r.IsDirectory {
			repl = strconv.Itoa(int(r.Replication))
		}
		rows = append(rows, []string{
			r.Permission,
			repl,
			r.Owner,
			r.Group,
			strconv.FormatInt(r.Length, 10),
			FormatMillis(r.ModificationTime),
			r.Path,
		})
	}
	return rows
}

// StatusTable renders one record as key: value pairs.
type StatusTable delegate.Record

func (s StatusTable) pairs() [][2]string {
	kind := "file"
	if s.IsDirectory {
		kind = "directory"
	}
	return [][2]string{
		{"Path", s.Path},
		{"Type", kind},
		{"Length", strconv.FormatInt(s.Length, 10)},
		{"Replication", strconv.Itoa(int(s.Replication))},
		{"Block size", strconv.FormatInt(s.BlockSize, 10)},
		{"Owner", s.Owner},
		{"Group", s.Group},
		{"Permission", s.Permission},
		{"Modified", FormatMillis(s.ModificationTime)},
		{"Accessed", FormatMillis(s.AccessTime)},
		{"Access", accessFlags(s.ReadAccess, s.WriteAccess, s.ExecuteAccess)},
	}
}

// Headers implements TableRenderer.
func (s StatusTable) Headers() []string {
	return []string{"Field", "Value"}
}

// Rows implements TableRenderer.
func (s StatusTable) Rows() [][]string {
	pairs := s.pairs()
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	return rows
}

// CapacityTable renders an FsStatus like `df`.
type CapacityTable struct {
	Filesystem string
	Status     fs.FsStatus
}

func (c CapacityTable) Headers() []string {
	return []string{"Filesystem", "Size", "Used", "Available", "Use%"}
}

func (c CapacityTable) Rows() [][]string {
	use := "0%"
	if c.Status.Capacity > 0 {
		use = fmt.Sprintf("%d%%", c.Status.Used*100/c.Status.Capacity)
	}
	return [][]string{{
		c.Filesystem,
		strconv.FormatInt(c.Status.Capacity, 10),
		strconv.FormatInt(c.Status.Used, 10),
		strconv.FormatInt(c.Status.Remaining, 10),
		use,
	}}
}

// FormatMillis renders Unix milliseconds in local time. Zero renders as "-".
func FormatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format(TimeLayout)
}

func accessFlags(r, w, x bool) string {
	b := []byte("---")
	if r {
		b[0] = 'r'
	}
	if w {
		b[1] = 'w'
	}
	if x {
		b[2] = 'x'
	}
	return string(b)
}
