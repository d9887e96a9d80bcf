package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/fsdelegate/internal/cli/output"
	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/pkg/config"
	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

// ExitError ends the process with Code and no message, the way `test`
// reports a missing path.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// loadConfig reads the configuration named by --config, falling back to the
// built-in defaults when no file exists.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.Logging.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// printer returns the printer selected by -o and --no-color, writing to
// the command's output.
func printer(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, !Flags.NoColor), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// requestedUser returns --as, or the login user when it is not set.
func requestedUser(cfg *config.Config) (string, error) {
	if Flags.As != "" {
		return Flags.As, nil
	}
	if err := ugi.SetConfiguration(cfg.Security); err != nil {
		return "", fmt.Errorf("security configuration: %w", err)
	}
	login, err := ugi.LoginUser()
	if err != nil {
		return "", fmt.Errorf("cannot determine the login user, use --as: %w", err)
	}
	return login.ShortUserName(), nil
}

// withSession loads the configuration, opens a session for the requested
// user, runs fn and closes the session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *delegate.Session, p *output.Printer) error) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	username, err := requestedUser(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := cfg.OpenSession(ctx, username, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warn("Failed to close session", logger.KeyError, cerr)
		}
	}()

	return fn(ctx, s, p)
}
