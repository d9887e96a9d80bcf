// Package commands implements the fsdelegate command line.
package commands

import (
	"github.com/spf13/cobra"

	configcmd "github.com/marmos91/fsdelegate/cmd/fsdelegate/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	As         string
	Output     string
	NoColor    bool
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fsdelegate",
	Short: "Filesystem operations on behalf of other users",
	Long: `fsdelegate runs filesystem operations as an end user, impersonated through
a trusted service identity, against a configured filesystem (memory, badger
or s3). Every operation is checked against the end user's permissions.

Use it directly from the command line with --as, or start the HTTP API with
"fsdelegate serve".

Use "fsdelegate [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&Flags.ConfigFile, "config", "", "config file (default: $XDG_CONFIG_HOME/fsdelegate/config.yaml)")
	pf.StringVar(&Flags.As, "as", "", "user to act as (default: the login user)")
	pf.StringVarP(&Flags.Output, "output", "o", "table", "Output format (table|json|yaml)")
	pf.BoolVar(&Flags.NoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		lsCmd,
		statCmd,
		mkdirCmd,
		mvCmd,
		rmCmd,
		putCmd,
		catCmd,
		chmodCmd,
		cpCmd,
		testCmd,
		homeCmd,
		dfCmd,
		trashCmd,
		serveCmd,
		tokenCmd,
		configcmd.Cmd,
		versionCmd,
	)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
