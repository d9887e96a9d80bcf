package permission

// Action is a subset of {read, write, execute}, encoded as the three Unix
// permission bits (r=4, w=2, x=1).
type Action uint8

const (
	None    Action = 0
	Execute Action = 1
	Write   Action = 2
	Read    Action = 4

	ReadWrite   = Read | Write
	ReadExecute = Read | Execute
	All         = Read | Write | Execute
)

// Implies reports whether every capability in other is included in a.
func (a Action) Implies(other Action) bool {
	return a&other == other
}

// Symbol returns the three-character ls-style symbol, e.g. "r-x".
func (a Action) Symbol() string {
	b := [3]byte{'-', '-', '-'}
	if a&Read != 0 {
		b[0] = 'r'
	}
	if a&Write != 0 {
		b[1] = 'w'
	}
	if a&Execute != 0 {
		b[2] = 'x'
	}
	return string(b[:])
}

func (a Action) String() string {
	return a.Symbol()
}
