// Package ugi holds user and group information for the delegate: the
// process-wide security configuration, the login user, and the remote and
// proxy users that filesystem operations are impersonated as.
package ugi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"sync"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/auth/kerberos"
)

// UserNameEnv overrides the login user name under simple authentication.
const UserNameEnv = "FSDELEGATE_USER_NAME"

// Config is the process-wide security configuration.
type Config struct {
	// Authentication is the login mechanism: "simple" or "kerberos".
	Authentication string `mapstructure:"authentication" yaml:"authentication" json:"authentication,omitempty" validate:"omitempty,oneof=simple kerberos"`

	GroupMapping GroupMappingConfig `mapstructure:"group_mapping" yaml:"group_mapping" json:"group_mapping"`

	// Kerberos configures the login principal when Authentication is "kerberos".
	Kerberos kerberos.Config `mapstructure:"kerberos" yaml:"kerberos" json:"kerberos"`
}

// ErrNotConfigured is returned by Configuration before SetConfiguration ran.
var ErrNotConfigured = errors.New("ugi: security configuration not set")

// security is the write-once, read-many global state. The first successful
// SetConfiguration wins; later calls reuse it.
var security struct {
	mu         sync.RWMutex
	configured bool
	cfg        Config
	groups     GroupMapping
	krb        *kerberos.Provider
	login      *User
}

// SetConfiguration installs the process-wide security configuration. Only
// the first successful call takes effect; subsequent calls leave the
// existing configuration in place and return nil. A failed call leaves the
// process unconfigured so a later call may succeed.
func SetConfiguration(cfg Config) error {
	security.mu.Lock()
	defer security.mu.Unlock()

	if security.configured {
		logger.Debug("Security configuration already set, reusing it",
			logger.KeyAuth, security.cfg.Authentication)
		return nil
	}

	groups, err := NewGroupMapping(cfg.GroupMapping)
	if err != nil {
		return err
	}

	var krb *kerberos.Provider
	switch strings.ToLower(cfg.Authentication) {
	case "", "simple":
	case "kerberos":
		krb, err = kerberos.NewProvider(cfg.Kerberos)
		if err != nil {
			return fmt.Errorf("kerberos login: %w", err)
		}
	default:
		return fmt.Errorf("unsupported security authentication %q", cfg.Authentication)
	}

	security.cfg = cfg
	security.groups = groups
	security.krb = krb
	security.login = nil
	security.configured = true

	logger.Debug("Security configuration set",
		logger.KeyAuth, cfg.Authentication,
		"group_mapping", cfg.GroupMapping.Type)
	return nil
}

// IsConfigured reports whether SetConfiguration has taken effect.
func IsConfigured() bool {
	security.mu.RLock()
	defer security.mu.RUnlock()
	return security.configured
}

// Configuration returns the installed security configuration.
func Configuration() (Config, error) {
	security.mu.RLock()
	defer security.mu.RUnlock()
	if !security.configured {
		return Config{}, ErrNotConfigured
	}
	return security.cfg, nil
}

func ensureConfigured() error {
	if IsConfigured() {
		return nil
	}
	return SetConfiguration(Config{})
}

// LoginUser returns the identity the process itself runs as: the Kerberos
// login principal when kerberos authentication is configured, otherwise the
// operating-system user (or FSDELEGATE_USER_NAME when set). The result is
// cached for the life of the process.
func LoginUser() (*User, error) {
	if err := ensureConfigured(); err != nil {
		return nil, err
	}

	security.mu.Lock()
	defer security.mu.Unlock()

	if security.login != nil {
		return security.login, nil
	}

	var u *User
	if security.krb != nil {
		short, err := security.krb.ShortName()
		if err != nil {
			return nil, err
		}
		u = &User{
			shortName:  short,
			fullName:   security.krb.Principal().String(),
			authMethod: Kerberos,
		}
	} else {
		name := os.Getenv(UserNameEnv)
		if name == "" {
			osUser, err := user.Current()
			if err != nil {
				return nil, fmt.Errorf("resolve login user: %w", err)
			}
			name = osUser.Username
		}
		u = &User{shortName: name, authMethod: Simple}
	}
	u.groups = resolveGroups(security.groups, u.shortName)

	security.login = u
	return u, nil
}

// CurrentUser returns the user ctx runs as, falling back to the login user.
func CurrentUser(ctx context.Context) (*User, error) {
	if u := FromContext(ctx); u != nil {
		return u, nil
	}
	return LoginUser()
}

// CreateRemoteUser returns a user with the given name and simple
// authentication, without any credentials.
func CreateRemoteUser(name string) (*User, error) {
	if name == "" {
		return nil, errors.New("ugi: remote user name is empty")
	}
	if err := ensureConfigured(); err != nil {
		return nil, err
	}
	return &User{
		shortName:  name,
		groups:     resolveGroups(currentGroupMapping(), name),
		authMethod: Simple,
	}, nil
}

// CreateProxyUser returns a user named name that acts through real.
func CreateProxyUser(name string, real *User) (*User, error) {
	if name == "" {
		return nil, errors.New("ugi: proxy user name is empty")
	}
	if real == nil {
		return nil, errors.New("ugi: proxy user requires a real user")
	}
	if err := ensureConfigured(); err != nil {
		return nil, err
	}
	return &User{
		shortName:  name,
		groups:     resolveGroups(currentGroupMapping(), name),
		authMethod: Proxy,
		realUser:   real,
	}, nil
}

// CreateUserForTesting returns a simple-auth user with fixed groups,
// bypassing the group mapping.
func CreateUserForTesting(name string, groups []string) *User {
	return &User{shortName: name, groups: append([]string(nil), groups...), authMethod: Simple}
}

func currentGroupMapping() GroupMapping {
	security.mu.RLock()
	defer security.mu.RUnlock()
	return security.groups
}

// resolveGroups returns no groups when the mapping fails; a user without
// groups is still a valid identity.
func resolveGroups(m GroupMapping, name string) []string {
	if m == nil {
		return nil
	}
	groups, err := m.Groups(name)
	if err != nil {
		logger.Debug("No groups available for user", logger.KeyUsername, name, logger.Err(err))
		return nil
	}
	return groups
}
