package config

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/marmos91/fsdelegate/internal/cli/prompt"
	"github.com/marmos91/fsdelegate/pkg/config"
	"github.com/marmos91/fsdelegate/pkg/fs"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample fsdelegate configuration file with a freshly
generated JWT secret.

Examples:
  # Initialize with default location
  fsdelegate config init

  # Initialize with custom path
  fsdelegate config init --config /etc/fsdelegate/config.yaml

  # Choose the filesystem and proxy user interactively
  fsdelegate config init -i

  # Force overwrite existing config
  fsdelegate config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the filesystem and proxy user")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	if initInteractive {
		if err := customize(path); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to select your filesystem and proxy user")
	_, _ = fmt.Fprintln(out, "  2. Try it out with: fsdelegate ls / --as <user>")
	_, _ = fmt.Fprintln(out, "  3. Start the HTTP API with: fsdelegate serve")
	_, _ = fmt.Fprintln(out, "\nSecurity note:")
	_, _ = fmt.Fprintln(out, "  A random JWT secret has been generated. To keep it out of the file, set:")
	_, _ = fmt.Fprintln(out, "    export FSDELEGATE_API_JWT_SECRET=$(openssl rand -hex 32)")
	return nil
}

// customize rewrites the generated file with the answers to a few prompts.
// Comments of the sample file are lost.
func customize(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	types := fs.Types()
	fsType, err := prompt.Select("Filesystem", types)
	if err != nil {
		return err
	}
	if !slices.Contains(types, fsType) {
		return fmt.Errorf("unknown filesystem %q", fsType)
	}
	if fsType != cfg.FileSystem.Type {
		cfg.FileSystem.Type = fsType
		cfg.FileSystem.Options = nil
	}

	name, err := prompt.Input("Volume name", cfg.FileSystem.Name, func(s string) error {
		if s == "" {
			return fmt.Errorf("a volume name is required")
		}
		return nil
	})
	if err != nil {
		return err
	}
	cfg.FileSystem.Name = name

	proxyUser, err := prompt.Input("Proxy user (empty: login user)", "", nil)
	if err != nil {
		return err
	}
	if proxyUser != "" {
		cfg.AuthParams = map[string]string{"proxyuser": proxyUser}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	return config.SaveConfig(cfg, path)
}
