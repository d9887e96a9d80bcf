package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// minSecretLength is the shortest accepted JWT signing secret.
const minSecretLength = 32

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tags cover ranges and enumerations; validateCustomRules covers the
// rules that depend on other sections or on registered implementations.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !slices.Contains(fs.Types(), cfg.FileSystem.Type) {
		return fmt.Errorf("filesystem.type: %q is not a registered filesystem (available: %v)",
			cfg.FileSystem.Type, fs.Types())
	}

	if cfg.Security.Authentication == "kerberos" {
		if cfg.Security.Kerberos.Principal == "" {
			return errors.New("security.kerberos.principal: required when authentication is kerberos")
		}
		if cfg.Security.Kerberos.Keytab == "" {
			return errors.New("security.kerberos.keytab: required when authentication is kerberos")
		}
	}

	if name, ok := cfg.AuthParams[delegate.AuthParamAuth]; ok {
		if _, err := ugi.ParseAuthMethod(name); err != nil {
			return fmt.Errorf("auth_params.%s: %w", delegate.AuthParamAuth, err)
		}
	}
	if name, ok := cfg.AuthParams[delegate.AuthParamProxyUser]; ok && name == "" {
		return fmt.Errorf("auth_params.%s: must not be empty", delegate.AuthParamProxyUser)
	}

	if secret := cfg.API.JWT.Secret; secret != "" && len(secret) < minSecretLength {
		return fmt.Errorf("api.jwt.secret: must be at least %d characters", minSecretLength)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
