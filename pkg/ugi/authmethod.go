package ugi

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMethod is the authentication method attached to a user.
type AuthMethod int

const (
	Simple AuthMethod = iota
	Kerberos
	Token
	Certificate
	KerberosSSL
	Proxy
)

var authMethodNames = [...]string{
	Simple:      "SIMPLE",
	Kerberos:    "KERBEROS",
	Token:       "TOKEN",
	Certificate: "CERTIFICATE",
	KerberosSSL: "KERBEROS_SSL",
	Proxy:       "PROXY",
}

// ErrUnknownAuthMethod is returned for names outside the supported set.
var ErrUnknownAuthMethod = errors.New("ugi: unknown authentication method")

func (m AuthMethod) String() string {
	if m < 0 || int(m) >= len(authMethodNames) {
		return fmt.Sprintf("AuthMethod(%d)", int(m))
	}
	return authMethodNames[m]
}

// ParseAuthMethod matches name case-insensitively against the supported
// methods.
func ParseAuthMethod(name string) (AuthMethod, error) {
	for i, n := range authMethodNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return AuthMethod(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAuthMethod, name)
}

// MarshalText implements encoding.TextMarshaler.
func (m AuthMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *AuthMethod) UnmarshalText(text []byte) error {
	parsed, err := ParseAuthMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
