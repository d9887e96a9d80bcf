package auth

import "context"

// Identity is an authenticated caller.
type Identity struct {
	// Username is the short name the delegate session impersonates.
	Username string

	// Method is the authentication method of the credential, as understood
	// by ugi.ParseAuthMethod (SIMPLE, TOKEN, ...).
	Method string

	// Attributes holds provider-specific details such as the token id.
	Attributes map[string]string
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
