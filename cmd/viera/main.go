// Viera discovers Panasonic Viera televisions on the local network and
// sends them remote control commands.
//
// Usage:
//
//	viera [command] [flags]
//
// Running without arguments launches the interactive remote.
// See 'viera --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/viera/internal/config"
	"github.com/muurk/viera/internal/logging"
	"github.com/muurk/viera/internal/ui"
	"github.com/muurk/viera/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
	plainOut   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "viera",
	Short: "Panasonic Viera network remote control",
	Long: `A command line remote for Panasonic Viera televisions.

Finds televisions with SSDP, remembers them by name and sends remote
control key presses over the TV's SOAP control service. The TV must have
"TV Remote App Settings" enabled in its network menu.

If no command is specified, the interactive remote will launch.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless --log-level or VIERA_LOG_LEVEL is given
		return logging.Initialize(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemote(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: platform config dir, or $"+config.PathEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent by default")
	rootCmd.PersistentFlags().BoolVar(&plainOut, "plain", false, "Plain output without boxes or colour")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("viera %s (commit: %s)\n", version.Version, version.Commit)
	},
}

// loadRegistry reads the configuration named by --config or the default path
func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

func saveRegistry(reg *config.Registry) error {
	if configPath != "" {
		return reg.SaveTo(configPath)
	}
	return reg.Save()
}

func newPrinter() *ui.Printer {
	p := ui.NewPrinter(os.Stdout)
	p.Plain = plainOut || !ui.IsTerminal()
	return p
}
