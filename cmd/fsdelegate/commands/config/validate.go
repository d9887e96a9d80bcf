package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/fsdelegate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the fsdelegate configuration file.

Checks for syntax errors, missing required fields and invalid values, and
warns about settings that will make "fsdelegate serve" fail.

Examples:
  # Validate default config
  fsdelegate config validate

  # Validate specific config file
  fsdelegate config validate --config /etc/fsdelegate/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	displayPath := path
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.API.JWT.Secret == "" && !cfg.API.AllowPseudo {
		warnings = append(warnings, "neither api.jwt.secret nor api.allow_pseudo is set - the API cannot authenticate callers")
	}
	if cfg.API.AllowPseudo {
		warnings = append(warnings, "api.allow_pseudo trusts the caller's user name - only enable it behind a trusted gateway")
	}
	if _, ok := cfg.AuthParams["proxyuser"]; !ok {
		warnings = append(warnings, "auth_params.proxyuser is not set - users are proxied through the login user")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Filesystem:      %s://%s\n", cfg.FileSystem.Type, cfg.FileSystem.Name)
	_, _ = fmt.Fprintf(out, "  Authentication:  %s\n", cfg.Security.Authentication)
	_, _ = fmt.Fprintf(out, "  Trash interval:  %s\n", cfg.FileSystem.Trash.Interval)
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.API.Port)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
