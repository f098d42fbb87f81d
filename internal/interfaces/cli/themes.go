package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stronghold.gg/cms/internal/core/domain"
)

// NewThemesCommand creates the themes command group.
func NewThemesCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "Manage installed themes",
		Long: `List, install, activate and remove themes.

At most one theme is active at a time. Activating a theme replaces the
previous one; deactivating returns the site to the built-in default styling.`,
		Example: `  # List discovered themes
  stronghold themes list

  # Install and activate a theme
  stronghold themes install ./darkwood.zip
  stronghold themes activate darkwood

  # Return to the default styling
  stronghold themes deactivate`,
	}

	cmd.AddCommand(newThemesListCommand(container))
	cmd.AddCommand(newThemesInstallCommand(container))
	cmd.AddCommand(newThemesActivateCommand(container))
	cmd.AddCommand(newThemesDeactivateCommand(container))
	cmd.AddCommand(newThemesRemoveCommand(container))
	return cmd
}

func newThemesListCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := container.Themes.ListThemes(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list themes: %w", err)
			}
			if len(statuses) == 0 {
				fmt.Println("No themes installed. The built-in default styling is active.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS")
			fmt.Fprintln(w, "--\t----\t-------\t------")
			for _, status := range statuses {
				state := ""
				if status.Active {
					state = "active"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					status.Descriptor.ID,
					status.Descriptor.DisplayName(),
					status.Descriptor.Version,
					state,
				)
			}
			return w.Flush()
		},
	}
}

func newThemesInstallCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "install <archive.zip>",
		Short: "Install a theme from a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, container, args[0], domain.KindTheme, false)
		},
	}
}

func newThemesActivateCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a theme the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Themes.Activate(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to activate %s: %w", args[0], err)
			}
			fmt.Printf("✅ Theme active: %s\n", args[0])
			return nil
		},
	}
}

func newThemesDeactivateCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Return to the built-in default styling",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Themes.Deactivate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to deactivate theme: %w", err)
			}
			fmt.Println("✅ Default styling restored")
			return nil
		},
	}
}

func newThemesRemoveCommand(container *CLIContainer) *cobra.Command {
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an installed theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("🗑️  Removing theme: %s\n", args[0])
			if err := container.Extensions.Uninstall(cmd.Context(), args[0], domain.KindTheme, !noBackup); err != nil {
				return fmt.Errorf("failed to remove %s: %w", args[0], err)
			}
			fmt.Printf("✅ Theme removed: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the backup before removal")
	return cmd
}
