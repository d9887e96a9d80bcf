// Package permission models Unix-style owner/group/other permissions and the
// access decision derived from them.
package permission

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultSymbol is rendered in place of a missing permission.
const DefaultSymbol = "default"

// Permission holds the owner, group and other action subsets of an entry,
// plus the sticky bit.
type Permission struct {
	User   Action `json:"user"`
	Group  Action `json:"group"`
	Other  Action `json:"other"`
	Sticky bool   `json:"sticky,omitempty"`
}

// New builds a Permission from the three action subsets.
func New(user, group, other Action) *Permission {
	return &Permission{User: user, Group: group, Other: other}
}

// FromMode converts a numeric mode such as 0o1755 into a Permission.
func FromMode(mode uint16) *Permission {
	return &Permission{
		User:   Action((mode >> 6) & 7),
		Group:  Action((mode >> 3) & 7),
		Other:  Action(mode & 7),
		Sticky: mode&0o1000 != 0,
	}
}

// Mode returns the numeric mode, including the sticky bit.
func (p *Permission) Mode() uint16 {
	m := uint16(p.User)<<6 | uint16(p.Group)<<3 | uint16(p.Other)
	if p.Sticky {
		m |= 0o1000
	}
	return m
}

// ApplyUMask clears the bits set in umask.
func (p *Permission) ApplyUMask(umask uint16) *Permission {
	return FromMode(p.Mode() &^ (umask & 0o777))
}

// String renders the nine-character owner/group/other form, with the sticky
// bit shown in the last position as t or T.
func (p *Permission) String() string {
	s := []byte(p.User.Symbol() + p.Group.Symbol() + p.Other.Symbol())
	if p.Sticky {
		if p.Other&Execute != 0 {
			s[8] = 't'
		} else {
			s[8] = 'T'
		}
	}
	return string(s)
}

// Symbolic renders p for external records: "default" when p is nil,
// otherwise "-" followed by the owner, group and other symbols.
func Symbolic(p *Permission) string {
	if p == nil {
		return DefaultSymbol
	}
	return "-" + p.User.Symbol() + p.Group.Symbol() + p.Other.Symbol()
}

// ParseSymbolic parses a ten-character ls-style permission string such as
// "-rwxr-x--x" or "drwxrwxrwt". The first character is a file-type marker
// and is not retained. The last position may carry the sticky bit as t/T,
// and the owner/group execute positions may carry s/S.
func ParseSymbolic(s string) (*Permission, error) {
	if len(s) != 10 {
		return nil, fmt.Errorf("length != 10 (unixSymbolicPermission=%s)", s)
	}
	if !strings.ContainsRune("-dlbcps", rune(s[0])) {
		return nil, fmt.Errorf("invalid file type marker %q in %q", s[0], s)
	}

	var triples [3]Action
	var sticky bool
	for i := 0; i < 9; i++ {
		c := s[i+1]
		bit := Action(4 >> (i % 3))
		want := "rwx"[i%3]

		switch {
		case c == want:
			triples[i/3] |= bit
		case c == '-':
		case i%3 == 2 && i < 6 && (c == 's' || c == 'S'):
			if c == 's' {
				triples[i/3] |= bit
			}
		case i == 8 && (c == 't' || c == 'T'):
			sticky = true
			if c == 't' {
				triples[2] |= bit
			}
		default:
			return nil, fmt.Errorf("invalid character %q at position %d in %q", c, i+1, s)
		}
	}

	return &Permission{User: triples[0], Group: triples[1], Other: triples[2], Sticky: sticky}, nil
}

// ParseOctal parses an octal mode such as "755", "0644" or "1777".
func ParseOctal(s string) (*Permission, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 8, 16)
	if err != nil || n > 0o1777 {
		return nil, fmt.Errorf("invalid octal permission %q", s)
	}
	return FromMode(uint16(n)), nil
}
