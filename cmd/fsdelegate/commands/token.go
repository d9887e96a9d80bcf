package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/fsdelegate/internal/cli/output"
	"github.com/marmos91/fsdelegate/pkg/auth/token"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var tokenTTL time.Duration

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user>",
	Short: "Issue a bearer token acting as user",
	Long: `Issue a bearer token for the HTTP API. Requests carrying the token run
as <user>, impersonated through the configured proxy identity.

Examples:
  fsdelegate token issue alice
  curl -H "Authorization: Bearer $(fsdelegate token issue alice)" \
    http://localhost:8080/api/v1/fs/home`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		svc, err := token.NewService(cfg.API.JWT)
		if err != nil {
			return fmt.Errorf("api.jwt: %w", err)
		}
		signed, expiresAt, err := svc.Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}

		if p.Format() == output.FormatTable {
			// Bare token, so it can be piped into an Authorization header.
			p.Println(signed)
			return nil
		}
		return p.Print(tokenResult{
			Token:     signed,
			Subject:   args[0],
			ExpiresAt: expiresAt.UTC(),
		})
	},
}

type tokenResult struct {
	Token     string    `json:"token" yaml:"token"`
	Subject   string    `json:"subject" yaml:"subject"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

func init() {
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default: api.jwt.ttl)")
	tokenCmd.AddCommand(tokenIssueCmd)
}
