package ugi

import "context"

type userKey struct{}

// WithUser returns a context whose operations run as u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext returns the user ctx runs as, or nil.
func FromContext(ctx context.Context) *User {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// DoAs runs fn with a context carrying u as the acting user.
func DoAs[T any](ctx context.Context, u *User, fn func(ctx context.Context) (T, error)) (T, error) {
	return fn(WithUser(ctx, u))
}
