// Package token issues and validates the HS256 bearer tokens accepted by
// the HTTP API. The token subject is the user a delegate session is opened
// for.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marmos91/fsdelegate/pkg/auth"
)

// Common errors for token operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
	ErrEmptySubject        = errors.New("token subject is empty")
)

// BearerScheme prefixes token credentials in the Authorization header.
const BearerScheme = "Bearer "

// Config holds configuration for token generation.
type Config struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string `mapstructure:"secret" yaml:"secret" json:"-"`

	// Issuer is the token issuer claim. Default: "fsdelegate"
	Issuer string `mapstructure:"issuer" yaml:"issuer" json:"issuer,omitempty"`

	// TTL is the token lifetime. Default: 1 hour.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl,omitempty"`
}

// Claims are the registered claims plus the authentication method the
// proxied user is reported with.
type Claims struct {
	jwt.RegisteredClaims

	// AuthMethod is reported as the end user's authentication method.
	AuthMethod string `json:"auth_method,omitempty"`
}

// Service signs and validates tokens.
type Service struct {
	config Config
	now    func() time.Time
}

// NewService creates a token service with the given configuration.
func NewService(config Config) (*Service, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = "fsdelegate"
	}
	if config.TTL == 0 {
		config.TTL = time.Hour
	}
	return &Service{config: config, now: time.Now}, nil
}

// Issue signs a token for username, valid for ttl (or the configured TTL
// when ttl is zero).
func (s *Service) Issue(username string, ttl time.Duration) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = s.config.TTL
	}

	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		AuthMethod: "TOKEN",
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, ErrTokenSigningFailed
	}
	return signed, expiresAt, nil
}

// Validate checks the signature, issuer and lifetime of tokenString.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Name implements auth.AuthProvider.
func (s *Service) Name() string { return "token" }

// CanHandle implements auth.AuthProvider for "Bearer <jwt>" credentials.
func (s *Service) CanHandle(credential []byte) bool {
	return strings.HasPrefix(string(credential), BearerScheme)
}

// Authenticate implements auth.AuthProvider.
func (s *Service) Authenticate(_ context.Context, credential []byte) (*auth.AuthResult, error) {
	claims, err := s.Validate(strings.TrimSpace(string(credential)[len(BearerScheme):]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrAuthFailed, err)
	}
	return &auth.AuthResult{
		Identity: auth.Identity{
			Username:   claims.Subject,
			Method:     claims.AuthMethod,
			Attributes: map[string]string{"jti": claims.ID},
		},
		Authenticated: true,
		Provider:      s.Name(),
	}, nil
}
