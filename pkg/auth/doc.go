// Package auth authenticates callers of the HTTP API.
//
// A credential is the raw value of the Authorization header, for example
// "Bearer eyJhbGciOi..." or "Pseudo alice". The Authenticator tries its
// providers in order and the first one that can handle the credential
// decides. The resulting Identity names the end user a delegate session is
// opened for.
//
// Sub-packages:
//   - kerberos/: keytab login and principal mapping for the service identity
//   - token/: HS256 bearer tokens
package auth
