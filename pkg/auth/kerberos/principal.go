package kerberos

import (
	"fmt"
	"strings"
)

// Principal is a parsed Kerberos principal name: primary[/instance][@REALM].
type Principal struct {
	Primary  string
	Instance string
	Realm    string
}

// ParsePrincipal splits a principal string into its components.
func ParsePrincipal(s string) (Principal, error) {
	var p Principal

	name := s
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		name, p.Realm = s[:i], s[i+1:]
		if p.Realm == "" {
			return Principal{}, fmt.Errorf("malformed kerberos principal %q: empty realm", s)
		}
	}

	parts := strings.Split(name, "/")
	switch {
	case len(parts) > 2:
		return Principal{}, fmt.Errorf("malformed kerberos principal %q: too many components", s)
	case parts[0] == "":
		return Principal{}, fmt.Errorf("malformed kerberos principal %q: empty primary", s)
	case len(parts) == 2:
		if parts[1] == "" {
			return Principal{}, fmt.Errorf("malformed kerberos principal %q: empty instance", s)
		}
		p.Instance = parts[1]
	}
	p.Primary = parts[0]

	return p, nil
}

// Name returns the principal without its realm.
func (p Principal) Name() string {
	if p.Instance == "" {
		return p.Primary
	}
	return p.Primary + "/" + p.Instance
}

func (p Principal) String() string {
	if p.Realm == "" {
		return p.Name()
	}
	return p.Name() + "@" + p.Realm
}

// ShortName applies the DEFAULT auth_to_local rule: principals in the
// default realm map to their primary component; any other realm has no
// mapping.
func (p Principal) ShortName(defaultRealm string) (string, error) {
	if p.Realm != "" && !strings.EqualFold(p.Realm, defaultRealm) {
		return "", fmt.Errorf("no auth_to_local rule applies to %s", p)
	}
	return p.Primary, nil
}
