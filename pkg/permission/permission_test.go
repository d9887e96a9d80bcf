package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requester struct {
	name   string
	groups []string
}

func (r requester) ShortUserName() string { return r.name }
func (r requester) GroupNames() []string  { return r.groups }

func TestDecideTiers(t *testing.T) {
	// Owner has nothing, group and other have everything.
	ownerLocked := New(None, All, All)
	// Group has nothing, other has everything.
	groupLocked := New(All, None, All)

	alice := requester{name: "alice", groups: []string{"staff", "hadoop"}}
	bob := requester{name: "bob", groups: []string{"hadoop"}}
	eve := requester{name: "eve", groups: []string{"guests"}}

	tests := []struct {
		name  string
		perm  *Permission
		who   Requester
		mode  Action
		allow bool
	}{
		{"OwnerBitsOnlyForOwner", ownerLocked, alice, Read, false},
		{"OwnerBitsIgnoreGroupMembership", ownerLocked, alice, Write, false},
		{"GroupBitsForGroupMember", groupLocked, bob, Read, false},
		{"GroupMemberNeverFallsToOther", groupLocked, bob, Execute, false},
		{"OtherBitsForStranger", groupLocked, eve, Read, true},
		{"OtherBitsDenyStranger", New(All, All, None), eve, Read, false},
		{"OwnerGranted", New(ReadWrite, None, None), alice, Write, true},
		{"OwnerMissingExecute", New(ReadWrite, All, All), alice, Execute, false},
		{"GroupGranted", New(None, ReadExecute, None), bob, Execute, true},
		{"NilPermissionDenies", nil, alice, Read, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide("alice", "hadoop", tt.perm, tt.who, tt.mode)
			assert.Equal(t, tt.allow, got)
		})
	}
}

func TestEvaluate(t *testing.T) {
	acc := Evaluate("alice", "hadoop", New(All, Read, None), requester{name: "carol", groups: []string{"hadoop"}})
	assert.Equal(t, Access{Read: true}, acc)
}

func TestSymbolic(t *testing.T) {
	assert.Equal(t, "default", Symbolic(nil))
	assert.Equal(t, "-rwxr--r--", Symbolic(New(All, Read, Read)))
	assert.Equal(t, "----------", Symbolic(New(None, None, None)))

	// Sticky bit is not part of the record form.
	assert.Equal(t, "-rwxrwxrwx", Symbolic(FromMode(0o1777)))
	assert.Equal(t, "rwxrwxrwt", FromMode(0o1777).String())
}

func TestParseSymbolic(t *testing.T) {
	tests := []struct {
		in      string
		mode    uint16
		wantErr bool
	}{
		{"-rwxr-xr-x", 0o755, false},
		{"-rw-r-----", 0o640, false},
		{"drwxrwxrwt", 0o1777, false},
		{"drwxrwxrwT", 0o1776, false},
		{"-rwsr-Sr--", 0o744, false},
		{"----------", 0, false},
		{"rwxr-xr-x", 0, true},
		{"-rwxr-xr-x-", 0, true},
		{"", 0, true},
		{"-rwxq-xr-x", 0, true},
		{"-xwrr-xr-x", 0, true},
		{"?rwxr-xr-x", 0, true},
		{"-rwxr-xr-s", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseSymbolic(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mode, p.Mode())
		})
	}
}

func TestParseOctal(t *testing.T) {
	p, err := ParseOctal("0644")
	require.NoError(t, err)
	assert.Equal(t, New(ReadWrite, Read, Read), p)

	_, err = ParseOctal("888")
	require.Error(t, err)
	_, err = ParseOctal("7777")
	require.Error(t, err)
}

func TestApplyUMask(t *testing.T) {
	assert.Equal(t, uint16(0o644), FromMode(0o666).ApplyUMask(0o022).Mode())
	assert.Equal(t, uint16(0o1755), FromMode(0o1777).ApplyUMask(0o022).Mode())
}

func TestActionImplies(t *testing.T) {
	assert.True(t, All.Implies(ReadWrite))
	assert.True(t, Read.Implies(None))
	assert.False(t, ReadExecute.Implies(Write))
	assert.Equal(t, "r-x", ReadExecute.Symbol())
}
