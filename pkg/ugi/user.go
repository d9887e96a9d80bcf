package ugi

import (
	"fmt"
	"slices"
)

// User is an immutable user identity: a short name, the groups resolved for
// it at creation, its authentication method and, for proxy users, the real
// user it acts through.
type User struct {
	shortName  string
	fullName   string
	groups     []string
	authMethod AuthMethod
	realUser   *User
}

// ShortUserName returns the user name without any Kerberos instance or realm.
func (u *User) ShortUserName() string {
	return u.shortName
}

// UserName returns the full name, e.g. the Kerberos principal of a login user.
func (u *User) UserName() string {
	if u.fullName != "" {
		return u.fullName
	}
	return u.shortName
}

// GroupNames returns a copy of the user's groups.
func (u *User) GroupNames() []string {
	return slices.Clone(u.groups)
}

// PrimaryGroup returns the first group, or "" when the user has none.
func (u *User) PrimaryGroup() string {
	if len(u.groups) == 0 {
		return ""
	}
	return u.groups[0]
}

func (u *User) AuthMethod() AuthMethod {
	return u.authMethod
}

// RealUser returns the identity a proxy user was created through, or nil.
func (u *User) RealUser() *User {
	return u.realUser
}

// RealAuthMethod returns the method of the real user for proxy users and
// the user's own method otherwise.
func (u *User) RealAuthMethod() AuthMethod {
	if u.realUser != nil {
		return u.realUser.authMethod
	}
	return u.authMethod
}

// WithAuthMethod returns a copy of u carrying method m.
func (u *User) WithAuthMethod(m AuthMethod) *User {
	clone := *u
	clone.groups = slices.Clone(u.groups)
	clone.authMethod = m
	return &clone
}

// String renders the user the way the delegate logs it, e.g.
// "alice (auth:PROXY) via hue (auth:KERBEROS)".
func (u *User) String() string {
	s := fmt.Sprintf("%s (auth:%s)", u.UserName(), u.authMethod)
	if u.realUser != nil {
		s += " via " + u.realUser.String()
	}
	return s
}
