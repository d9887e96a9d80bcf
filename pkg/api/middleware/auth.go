// Package middleware provides HTTP middleware for the fsdelegate API.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/api/handlers"
	"github.com/marmos91/fsdelegate/pkg/auth"
)

// UserNameParam is the query parameter naming the user under pseudo
// authentication, as in WebHDFS.
const UserNameParam = "user.name"

// credential returns the Authorization header, or a pseudo credential built
// from the user.name parameter when queryUser is set and no header is sent.
func credential(r *http.Request, queryUser bool) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		// Accept any casing of the scheme.
		if scheme, rest, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return "Bearer " + strings.TrimSpace(rest)
		}
		return h
	}
	if queryUser {
		if name := r.URL.Query().Get(UserNameParam); name != "" {
			return auth.PseudoScheme + name
		}
	}
	return ""
}

// Authenticate resolves the caller through authn and stores the resulting
// identity in the request context. Requests without a usable credential
// get 401 Unauthorized.
func Authenticate(authn *auth.Authenticator, queryUser bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := credential(r, queryUser)
			if cred == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fsdelegate"`)
				handlers.Unauthorized(w, "Authorization header required")
				return
			}

			res, err := authn.Authenticate(r.Context(), []byte(cred))
			if err != nil {
				logger.DebugCtx(r.Context(), "API authentication failed",
					logger.KeyRemoteAddr, r.RemoteAddr, logger.KeyError, err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="fsdelegate"`)
				if errors.Is(err, auth.ErrUnsupportedMechanism) {
					handlers.Unauthorized(w, "Unsupported authentication scheme")
					return
				}
				handlers.Unauthorized(w, "Invalid or expired credential")
				return
			}

			id := res.Identity
			ctx := auth.WithIdentity(r.Context(), &id)
			if lc := logger.FromContext(ctx); lc != nil {
				lc = lc.Clone()
				lc.Username = id.Username
				ctx = logger.WithContext(ctx, lc)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
