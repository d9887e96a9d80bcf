package kvfs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/permission"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// accessName spells an action the way access-control failures report it.
func accessName(a permission.Action) string {
	switch a {
	case permission.None:
		return "NONE"
	case permission.Execute:
		return "EXECUTE"
	case permission.Write:
		return "WRITE"
	case permission.Write | permission.Execute:
		return "WRITE_EXECUTE"
	case permission.Read:
		return "READ"
	case permission.ReadExecute:
		return "READ_EXECUTE"
	case permission.ReadWrite:
		return "READ_WRITE"
	default:
		return "ALL"
	}
}

// authorize rejects connections whose authentication method is not enabled
// and impersonation the real user is not allowed to perform.
func (o *Options) authorize(u *ugi.User) error {
	if method := u.RealAuthMethod(); len(o.methods) > 0 && !slices.Contains(o.methods, method) {
		names := make([]string, len(o.methods))
		for i, m := range o.methods {
			names[i] = m.String()
		}
		return fs.NewPermissionError("connect", "", fmt.Sprintf(
			"%s authentication is not enabled.  Available:[%s]", method, strings.Join(names, ", ")))
	}

	realUser := u.RealUser()
	if realUser == nil || o.ProxyUsers == nil {
		return nil
	}
	rule, ok := o.ProxyUsers[realUser.ShortUserName()]
	if !ok || !rule.allows(u) {
		return fs.NewPermissionError("connect", "", fmt.Sprintf(
			"User: %s is not allowed to impersonate %s", realUser.UserName(), u.ShortUserName()))
	}
	return nil
}

func (r ProxyUserRule) allows(u *ugi.User) bool {
	for _, name := range r.Users {
		if name == "*" || name == u.ShortUserName() {
			return true
		}
	}
	for _, g := range r.Groups {
		if g == "*" || slices.Contains(u.GroupNames(), g) {
			return true
		}
	}
	return false
}

func (o *Options) isSuperuser(u *ugi.User) bool {
	return u.ShortUserName() == o.Superuser ||
		(o.Supergroup != "" && slices.Contains(u.GroupNames(), o.Supergroup))
}

// caller is the permission checker for one operation.
type caller struct {
	user   *ugi.User
	bypass bool
}

func newCaller(u *ugi.User, o *Options) *caller {
	return &caller{user: u, bypass: o.DisablePermissions || o.isSuperuser(u)}
}

func (c *caller) check(op, p string, n *inode, mode permission.Action) error {
	if c.bypass || permission.Decide(n.Owner, n.Group, n.perm(), c.user, mode) {
		return nil
	}
	return fs.NewPermissionError(op, p, fmt.Sprintf(
		"Permission denied: user=%s, access=%s, inode=%s",
		c.user.ShortUserName(), accessName(mode), inodeString(p, n)))
}

// checkTraverse requires execute on every directory above the target.
func (c *caller) checkTraverse(op string, r *resolution) error {
	n := len(r.nodes)
	if r.found() {
		n--
	}
	for i := 0; i < n; i++ {
		if !r.nodes[i].Dir {
			continue
		}
		if err := c.check(op, r.pathAt(i), r.nodes[i], permission.Execute); err != nil {
			return err
		}
	}
	return nil
}

// checkParentWrite requires write and execute on the parent of the target
// and enforces the sticky bit of the parent.
func (c *caller) checkParentWrite(op string, r *resolution) error {
	parent := r.parent()
	parentPath := r.pathAt(len(r.components) - 1)
	if err := c.check(op, parentPath, parent, permission.Write|permission.Execute); err != nil {
		return err
	}
	return c.checkSticky(op, parentPath, parent, r.path, r.target())
}

func (c *caller) checkSticky(op, parentPath string, parent *inode, p string, n *inode) error {
	if c.bypass || parent.Mode&0o1000 == 0 || n == nil {
		return nil
	}
	name := c.user.ShortUserName()
	if name == parent.Owner || name == n.Owner {
		return nil
	}
	return fs.NewPermissionError(op, p, fmt.Sprintf(
		"Permission denied by sticky bit: user=%s, path=%s, parent=%s",
		name, inodeString(p, n), inodeString(parentPath, parent)))
}

func (c *caller) checkOwner(op, p string, n *inode) error {
	if c.bypass || c.user.ShortUserName() == n.Owner {
		return nil
	}
	return fs.NewPermissionError(op, p, fmt.Sprintf(
		"Permission denied. user=%s is not the owner of inode=%s", c.user.ShortUserName(), p))
}
