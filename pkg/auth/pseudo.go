package auth

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
)

// PseudoScheme prefixes credentials that simply assert a user name, the
// way Hadoop's pseudo authentication trusts the user.name parameter.
const PseudoScheme = "Pseudo "

var validUsername = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*[$]?$`)

// PseudoProvider accepts "Pseudo <username>" credentials. It performs no
// verification and should only be enabled behind a trusted proxy.
type PseudoProvider struct{}

func (PseudoProvider) Name() string { return "pseudo" }

func (PseudoProvider) CanHandle(credential []byte) bool {
	return bytes.HasPrefix(credential, []byte(PseudoScheme))
}

func (p PseudoProvider) Authenticate(_ context.Context, credential []byte) (*AuthResult, error) {
	name := string(bytes.TrimSpace(credential[len(PseudoScheme):]))
	if !validUsername.MatchString(name) {
		return nil, fmt.Errorf("%w: invalid user name %q", ErrInvalidCredentials, name)
	}
	return &AuthResult{
		Identity:      Identity{Username: name, Method: "SIMPLE"},
		Authenticated: true,
		Provider:      p.Name(),
	}, nil
}
