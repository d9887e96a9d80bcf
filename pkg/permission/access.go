package permission

// Requester is the identity an access decision is made for.
type Requester interface {
	ShortUserName() string
	GroupNames() []string
}

// Decide reports whether who may perform mode on an entry owned by owner and
// group with permission perm.
//
// Exactly one tier is consulted: the owner bits when who is the owner,
// otherwise the group bits when who belongs to group, otherwise the other
// bits. A failed owner check never falls through to the group or other bits.
// A nil permission grants nothing.
func Decide(owner, group string, perm *Permission, who Requester, mode Action) bool {
	if perm == nil || who == nil {
		return false
	}

	if who.ShortUserName() == owner {
		return perm.User.Implies(mode)
	}

	for _, g := range who.GroupNames() {
		if g == group {
			return perm.Group.Implies(mode)
		}
	}

	return perm.Other.Implies(mode)
}

// Access is the read/write/execute decision triple for one entry.
type Access struct {
	Read    bool
	Write   bool
	Execute bool
}

// Evaluate computes all three decisions for who.
func Evaluate(owner, group string, perm *Permission, who Requester) Access {
	return Access{
		Read:    Decide(owner, group, perm, who, Read),
		Write:   Decide(owner, group, perm, who, Write),
		Execute: Decide(owner, group, perm, who, Execute),
	}
}
