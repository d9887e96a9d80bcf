package fs

import (
	"net/url"
	"path"
	"strings"
)

// Separator is the path separator of every filesystem.
const Separator = "/"

// Clean returns the absolute, lexically cleaned form of p. Relative paths
// are resolved against the root.
func Clean(p string) string {
	if p == "" {
		return Separator
	}
	if !strings.HasPrefix(p, Separator) {
		p = Separator + p
	}
	return path.Clean(p)
}

// Join joins elements onto base and cleans the result.
func Join(base string, elem ...string) string {
	return Clean(path.Join(append([]string{base}, elem...)...))
}

// Name returns the final component of p ("" for the root).
func Name(p string) string {
	p = StripSchemeAndAuthority(p)
	if p == Separator {
		return ""
	}
	return path.Base(p)
}

// Parent returns the parent of p; the root is its own parent.
func Parent(p string) string {
	return path.Dir(Clean(p))
}

// IsAncestor reports whether ancestor is p or a directory above p.
func IsAncestor(ancestor, p string) bool {
	ancestor, p = Clean(ancestor), Clean(p)
	if ancestor == p || ancestor == Separator {
		return true
	}
	return strings.HasPrefix(p, ancestor+Separator)
}

// Qualify prefixes the absolute path p with the filesystem URI.
func Qualify(uri, p string) string {
	return strings.TrimSuffix(uri, Separator) + Clean(p)
}

// StripSchemeAndAuthority reduces a qualified path such as
// "s3://bucket/user/alice" to "/user/alice". Unqualified paths are returned
// cleaned.
func StripSchemeAndAuthority(p string) string {
	if !strings.Contains(p, "://") {
		return Clean(p)
	}
	u, err := url.Parse(p)
	if err != nil {
		_, rest, _ := strings.Cut(p, "://")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return Clean(rest[i:])
		}
		return Separator
	}
	return Clean(u.Path)
}
