package token_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fsdelegate/pkg/auth"
	"github.com/marmos91/fsdelegate/pkg/auth/token"
)

const secret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T) *token.Service {
	t.Helper()
	s, err := token.NewService(token.Config{Secret: secret})
	require.NoError(t, err)
	return s
}

func TestNewServiceRejectsShortSecret(t *testing.T) {
	_, err := token.NewService(token.Config{Secret: "short"})
	assert.ErrorIs(t, err, token.ErrInvalidSecretLength)
}

func TestIssueAndValidate(t *testing.T) {
	s := newService(t)

	signed, expiresAt, err := s.Issue("alice", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := s.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "fsdelegate", claims.Issuer)
	assert.Equal(t, "TOKEN", claims.AuthMethod)
	assert.NotEmpty(t, claims.ID)

	_, _, err = s.Issue("", 0)
	assert.ErrorIs(t, err, token.ErrEmptySubject)
}

func TestValidateRejects(t *testing.T) {
	s := newService(t)
	signed, _, err := s.Issue("alice", time.Minute)
	require.NoError(t, err)

	other, err := token.NewService(token.Config{Secret: strings.Repeat("x", 32)})
	require.NoError(t, err)
	_, err = other.Validate(signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	foreign, err := token.NewService(token.Config{Secret: secret, Issuer: "someone-else"})
	require.NoError(t, err)
	_, err = foreign.Validate(signed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = s.Validate("not-a-jwt")
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "root", Issuer: "fsdelegate"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Validate(none)
	assert.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	s := newService(t)
	signed, _, err := s.Issue("alice", time.Minute)
	require.NoError(t, err)

	s.SetClock(func() time.Time { return time.Now().Add(2 * time.Minute) })
	_, err = s.Validate(signed)
	assert.ErrorIs(t, err, token.ErrExpiredToken)
}

func TestAuthProvider(t *testing.T) {
	s := newService(t)
	signed, _, err := s.Issue("alice", 0)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(s, auth.PseudoProvider{})

	res, err := authenticator.Authenticate(context.Background(), []byte("Bearer "+signed))
	require.NoError(t, err)
	assert.Equal(t, "token", res.Provider)
	assert.Equal(t, "alice", res.Identity.Username)
	assert.Equal(t, "TOKEN", res.Identity.Method)

	_, err = authenticator.Authenticate(context.Background(), []byte("Bearer garbage"))
	assert.ErrorIs(t, err, auth.ErrAuthFailed)
	assert.ErrorIs(t, err, token.ErrInvalidToken)

	res, err = authenticator.Authenticate(context.Background(), []byte("Pseudo bob"))
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Identity.Username)

	_, err = authenticator.Authenticate(context.Background(), []byte("Basic Ym9iOnB3"))
	assert.ErrorIs(t, err, auth.ErrUnsupportedMechanism)
}
