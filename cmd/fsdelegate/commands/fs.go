package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/fsdelegate/internal/cli/output"
	"github.com/marmos91/fsdelegate/internal/cli/prompt"
	"github.com/marmos91/fsdelegate/pkg/delegate"
)

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List a directory",
	Long: `List the entries of a directory, or the file itself when path is a file.

Examples:
  fsdelegate ls /user/alice --as alice
  fsdelegate ls /tmp -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			entries, err := s.ListDir(ctx, args[0])
			if err != nil {
				return err
			}
			return p.Print(output.Listing(s.FileStatusesToRecords(entries)))
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show the status of a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			st, err := s.GetFileStatus(ctx, args[0])
			if err != nil {
				return err
			}
			rec := s.FileStatusToRecord(st)
			if p.Format() == output.FormatTable {
				return p.Print(output.StatusTable(rec))
			}
			return p.Print(rec)
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory and any missing parents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			ok, err := s.Mkdir(ctx, args[0])
			if err != nil {
				return err
			}
			return p.PrintValue("boolean", ok)
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Rename or move an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			ok, err := s.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return p.PrintValue("boolean", ok)
		})
	},
}

var (
	rmRecursive bool
	rmSkipTrash bool
	rmForce     bool
)

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete an entry, moving it to the trash when enabled",
	Long: `Delete a file or directory.

When the trash is enabled the entry is moved to the user's trash instead of
being deleted. Use --skip-trash to delete immediately. Recursive deletes ask
for confirmation unless --force is given.

Examples:
  fsdelegate rm /user/alice/report.csv
  fsdelegate rm -r /user/alice/tmp --skip-trash --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if rmRecursive {
			ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s and everything below it?", path), rmForce)
			if err != nil {
				return err
			}
			if !ok {
				return prompt.ErrAborted
			}
		}

		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			if !rmSkipTrash {
				enabled, err := s.TrashEnabled(ctx)
				if err != nil {
					return err
				}
				if enabled {
					if !rmRecursive {
						st, err := s.GetFileStatus(ctx, path)
						if err != nil {
							return err
						}
						if st.IsDir {
							return fmt.Errorf("%s is a directory, use -r", path)
						}
					}
					moved, err := s.MoveToTrash(ctx, path)
					if err != nil {
						return err
					}
					if moved {
						dir, err := s.TrashDirPath(ctx)
						if err != nil {
							return err
						}
						p.Success(fmt.Sprintf("Moved %s to trash at %s", path, dir))
						return nil
					}
				}
			}

			ok, err := s.Delete(ctx, path, rmRecursive)
			if err != nil {
				return err
			}
			return p.PrintValue("boolean", ok)
		})
	},
}

var putOverwrite bool

var putCmd = &cobra.Command{
	Use:   "put <local> <remote>",
	Short: "Upload a local file (\"-\" reads stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			src = f
		}

		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			w, err := s.Create(ctx, args[1], putOverwrite)
			if err != nil {
				return err
			}
			n, err := io.Copy(w, src)
			if err != nil {
				_ = w.Close()
				return fmt.Errorf("upload %s: %w", args[1], err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("upload %s: %w", args[1], err)
			}
			if p.Format() == output.FormatTable {
				p.Success(fmt.Sprintf("Wrote %d bytes to %s", n, args[1]))
				return nil
			}
			return p.Print(map[string]any{"path": args[1], "bytes": n})
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, _ *output.Printer) error {
			r, err := s.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		})
	},
}

var chmodCmd = &cobra.Command{
	Use:   "chmod <permission> <path>",
	Short: "Change permissions (symbolic, e.g. -rwxr-x---)",
	Long: `Change the permissions of an entry.

The permission is the 10-character symbolic form printed by ls, such as
"-rw-r-----" or "drwxr-x---". Failures are reported as "false" rather than
as errors.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			ok, err := s.Chmod(ctx, args[1], args[0])
			if err != nil {
				return err
			}
			return p.PrintValue("boolean", ok)
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a file or directory tree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			if err := s.Copy(ctx, args[0], args[1]); err != nil {
				return err
			}
			if p.Format() == output.FormatTable {
				p.Success(fmt.Sprintf("Copied %s to %s", args[0], args[1]))
				return nil
			}
			return p.PrintValue("boolean", true)
		})
	},
}

var testCmd = &cobra.Command{
	Use:   "test <path>",
	Short: "Check whether a path exists (exit status 1 when it does not)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			ok, err := s.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			if err := p.PrintValue("boolean", ok); err != nil {
				return err
			}
			if !ok {
				return &ExitError{Code: 1}
			}
			return nil
		})
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Print the home directory of the user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			home, err := s.HomeDir(ctx)
			if err != nil {
				return err
			}
			return p.PrintValue("path", home)
		})
	},
}

var dfCmd = &cobra.Command{
	Use:   "df",
	Short: "Show filesystem capacity and usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *delegate.Session, p *output.Printer) error {
			st, err := s.Status(ctx)
			if err != nil {
				return err
			}
			if p.Format() == output.FormatTable {
				return p.Print(output.CapacityTable{Filesystem: s.URI(), Status: *st})
			}
			return p.Print(st)
		})
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "Delete directories and their contents")
	rmCmd.Flags().BoolVar(&rmSkipTrash, "skip-trash", false, "Delete immediately instead of moving to the trash")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Do not ask for confirmation")

	putCmd.Flags().BoolVar(&putOverwrite, "overwrite", false, "Replace an existing file")
}
