package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewBackupsCommand creates the backups command group.
func NewBackupsCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Manage extension backups",
		Long: `List and prune the timestamped backups taken before destructive
operations such as replacing or removing an extension.`,
	}

	cmd.AddCommand(newBackupsListCommand(container))
	cmd.AddCommand(newBackupsPruneCommand(container))
	return cmd
}

func newBackupsListCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := container.Extensions.Backups().List()
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}
			if len(infos) == 0 {
				fmt.Println("No backups.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tEXTENSION\tCREATED\tSIZE")
			fmt.Fprintln(w, "----\t---------\t-------\t----")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					info.Name,
					info.ExtensionID,
					info.CreatedAt.Format("2006-01-02 15:04:05"),
					formatSize(info.SizeBytes),
				)
			}
			return w.Flush()
		},
	}
}

func newBackupsPruneCommand(container *CLIContainer) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old backups, keeping the newest ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := container.Extensions.Backups().Prune(keep)
			if err != nil {
				return fmt.Errorf("failed to prune backups: %w", err)
			}
			fmt.Printf("🗑️  Removed %d backup(s), kept the newest %d\n", removed, keep)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "Number of backups to keep")
	return cmd
}

// formatSize formats a byte count for display.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB"}
	return fmt.Sprintf("%.1f %s", float64(size)/float64(div), units[exp])
}
