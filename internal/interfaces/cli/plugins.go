package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stronghold.gg/cms/internal/core/domain"
)

// NewPluginsCommand creates the plugins command group.
func NewPluginsCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage installed plugins",
		Long: `List, install, enable, disable and remove plugins.

Plugins live as directories under the plugins path and are described by a
plugin.json manifest. Enabling a plugin is a durable setting, separate from
the files being present on disk.`,
		Example: `  # List discovered plugins
  stronghold plugins list

  # Install a plugin archive
  stronghold plugins install ./shop.zip --enable

  # Enable or disable a plugin
  stronghold plugins enable shop
  stronghold plugins disable shop

  # Remove a plugin, keeping a backup
  stronghold plugins remove shop`,
	}

	cmd.AddCommand(newPluginsListCommand(container))
	cmd.AddCommand(newPluginsInstallCommand(container))
	cmd.AddCommand(newPluginsEnableCommand(container))
	cmd.AddCommand(newPluginsDisableCommand(container))
	cmd.AddCommand(newPluginsRemoveCommand(container))
	return cmd
}

func newPluginsListCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := container.Extensions.ListPlugins(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list plugins: %w", err)
			}
			if len(statuses) == 0 {
				fmt.Println("No plugins installed.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS\tDETECTION")
			fmt.Fprintln(w, "--\t----\t-------\t------\t---------")
			for _, status := range statuses {
				state := "disabled"
				if status.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					status.Descriptor.ID,
					status.Descriptor.DisplayName(),
					status.Descriptor.Version,
					state,
					status.Descriptor.Detection,
				)
			}
			return w.Flush()
		},
	}
}

func newPluginsInstallCommand(container *CLIContainer) *cobra.Command {
	var enable bool

	cmd := &cobra.Command{
		Use:   "install <archive.zip>",
		Short: "Install a plugin from a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, container, args[0], domain.KindPlugin, enable)
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the plugin after installation")
	return cmd
}

func newPluginsEnableCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id>",
		Short: "Enable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Extensions.EnablePlugin(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to enable %s: %w", args[0], err)
			}
			fmt.Printf("✅ Plugin enabled: %s\n", args[0])
			return nil
		},
	}
}

func newPluginsDisableCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id>",
		Short: "Disable a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Extensions.DisablePlugin(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to disable %s: %w", args[0], err)
			}
			fmt.Printf("✅ Plugin disabled: %s\n", args[0])
			return nil
		},
	}
}

func newPluginsRemoveCommand(container *CLIContainer) *cobra.Command {
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("🗑️  Removing plugin: %s\n", args[0])
			if err := container.Extensions.Uninstall(cmd.Context(), args[0], domain.KindPlugin, !noBackup); err != nil {
				return fmt.Errorf("failed to remove %s: %w", args[0], err)
			}
			fmt.Printf("✅ Plugin removed: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the backup before removal")
	return cmd
}

// runInstall is shared between plugin and theme installation.
func runInstall(cmd *cobra.Command, container *CLIContainer, archivePath string, kind domain.Kind, enable bool) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	fmt.Printf("📦 Installing %s from %s\n", kind, archivePath)
	result, err := container.Extensions.Install(cmd.Context(), file, info.Size(), kind, enable)
	if err != nil {
		return fmt.Errorf("installation failed: %w", err)
	}

	fmt.Printf("✅ Installed %s %s (version %s)\n",
		result.Descriptor.ID, result.Descriptor.DisplayName(), result.Descriptor.Version)
	if result.Replaced {
		fmt.Printf("   Previous version backed up as %s\n", result.BackupName)
	}
	if result.Enabled {
		fmt.Printf("   Plugin enabled\n")
	}
	return nil
}
