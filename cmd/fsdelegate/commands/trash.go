package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/fsdelegate/internal/cli/output"
	"github.com/marmos91/fsdelegate/internal/cli/prompt"
	"github.com/marmos91/fsdelegate/pkg/delegate"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect and manage the user's trash",
	Long: `Inspect and manage the trash of the acting user.

The trash lives at <home>/.Trash. Entries are moved below .Trash/Current and
"trash empty" turns Current into a timestamped checkpoint, deleting
checkpoints older than filesystem.trash.interval.`,
}

var trashEnabledCmd = &cobra.Command{
	Use:   "enabled",
	Short: "Report whether the trash is enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			ok, err := s.TrashEnabled(ctx)
			if err != nil {
				return err
			}
			return p.PrintValue("boolean", ok)
		})
	},
}

var trashDirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Print the qualified trash directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			dir, err := s.TrashDir(ctx)
			if err != nil {
				return err
			}
			return p.PrintValue("uri", dir)
		})
	},
}

var trashPathCmd = &cobra.Command{
	Use:   "path [file]",
	Short: "Print the trash path, or where file would land in it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			var (
				path string
				err  error
			)
			if len(args) == 1 {
				path, err = s.TrashDirPathFor(ctx, args[0])
			} else {
				path, err = s.TrashDirPath(ctx)
			}
			if err != nil {
				return err
			}
			return p.PrintValue("path", path)
		})
	},
}

var trashEmptyForce bool

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Checkpoint the trash and delete expired checkpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := prompt.ConfirmWithForce("Empty the trash?", trashEmptyForce)
		if err != nil {
			return err
		}
		if !ok {
			return prompt.ErrAborted
		}

		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			if err := s.EmptyTrash(ctx); err != nil {
				return err
			}
			p.Success("Trash emptied")
			return nil
		})
	},
}

var trashMoveCmd = &cobra.Command{
	Use:   "move <path>",
	Short: "Move an entry to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			ok, err := s.MoveToTrash(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok && p.Format() == output.FormatTable {
				p.Warning(fmt.Sprintf("%s was not moved: the trash is disabled or it is already trashed", args[0]))
			}
			return p.PrintValue("boolean", ok)
		})
	},
}

func init() {
	trashEmptyCmd.Flags().BoolVarP(&trashEmptyForce, "force", "f", false, "Do not ask for confirmation")

	trashCmd.AddCommand(trashEnabledCmd, trashDirCmd, trashPathCmd, trashEmptyCmd, trashMoveCmd)
}
