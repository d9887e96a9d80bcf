package auth

import (
	"context"
	"errors"
	"slices"
)

// AuthProvider is one authentication mechanism.
//
// Thread safety: implementations must be safe for concurrent use.
type AuthProvider interface {
	// CanHandle reports whether the credential is in this provider's
	// format. It should only look at the scheme prefix.
	CanHandle(credential []byte) bool

	// Authenticate verifies the credential. Returning
	// ErrUnsupportedMechanism hands the credential to the next provider.
	Authenticate(ctx context.Context, credential []byte) (*AuthResult, error)

	// Name is used in logs ("token", "pseudo").
	Name() string
}

// AuthResult is the outcome of a successful authentication.
type AuthResult struct {
	Identity Identity

	Authenticated bool

	// Provider is the name of the provider that accepted the credential.
	Provider string
}

// Authenticator chains providers and tries each in order.
//
// Thread safety: safe for concurrent use (providers are read-only after construction).
type Authenticator struct {
	providers []AuthProvider
}

// NewAuthenticator creates an Authenticator over providers, tried in order.
func NewAuthenticator(providers ...AuthProvider) *Authenticator {
	return &Authenticator{providers: providers}
}

// Authenticate hands credential to the first provider that can handle it.
// A provider answering ErrUnsupportedMechanism passes it on to the next
// one. ErrUnsupportedMechanism is returned when no provider accepts it.
func (a *Authenticator) Authenticate(ctx context.Context, credential []byte) (*AuthResult, error) {
	for _, p := range a.providers {
		if !p.CanHandle(credential) {
			continue
		}
		res, err := p.Authenticate(ctx, credential)
		if errors.Is(err, ErrUnsupportedMechanism) {
			continue
		}
		return res, err
	}
	return nil, ErrUnsupportedMechanism
}

// Providers returns a copy of the registered providers.
func (a *Authenticator) Providers() []AuthProvider {
	if a == nil || len(a.providers) == 0 {
		return nil
	}
	return slices.Clone(a.providers)
}

// Standard authentication errors.
var (
	// ErrAuthFailed indicates that authentication was attempted but failed
	// (e.g., bad signature, expired token, disabled mechanism).
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrUnsupportedMechanism indicates that no registered AuthProvider can
	// handle the presented credential.
	ErrUnsupportedMechanism = errors.New("auth: unsupported authentication mechanism")

	// ErrInvalidCredentials indicates that the credential is malformed
	// (distinct from a wrong credential).
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
