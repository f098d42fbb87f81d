package cli

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"stronghold.gg/cms/internal/application/services"
	"stronghold.gg/cms/internal/infrastructure/config"
	"stronghold.gg/cms/internal/infrastructure/watcher"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// CLIContainer holds the dependencies the CLI commands operate on.
type CLIContainer struct {
	Extensions *services.ExtensionService
	Themes     *services.ThemeService
	Watcher    *watcher.DirWatcher
	Handler    http.Handler
	Config     *config.Config
	Logger     *log.Logger
}

// NewRootCommand builds the base command when called without subcommands.
func NewRootCommand(container *CLIContainer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stronghold",
		Short: "Stronghold - game community CMS extension host",
		Long: `Stronghold hosts the plugin and theme extensions of a game community site.

It discovers extensions on disk, tracks which plugins are enabled and which
theme is active, installs uploaded archives safely, and serves the bound
extension routes together with an admin API.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (default is $HOME/.stronghold)")

	rootCmd.AddCommand(NewServeCommand(container))
	rootCmd.AddCommand(NewPluginsCommand(container))
	rootCmd.AddCommand(NewThemesCommand(container))
	rootCmd.AddCommand(NewBackupsCommand(container))
	rootCmd.AddCommand(NewDashboardCommand(container))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// goVersion returns the Go version used to build the binary.
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command and exits non-zero on error.
func Execute(container *CLIContainer) {
	rootCmd := NewRootCommand(container)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
