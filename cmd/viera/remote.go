package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/viera/internal/remote"
	"github.com/muurk/viera/internal/tui"
	"github.com/muurk/viera/internal/ui"
)

func init() {
	rootCmd.AddCommand(remoteCmd)
}

// remoteCmd launches the interactive remote
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Launch the interactive remote",
	Long: `Launch a full-screen remote control in the terminal.

Without --device a picker lists remembered televisions and scans the
network; an address can also be typed in. Key presses are sent in order,
one at a time.`,
	Example: `  # Pick a television, then control it
  viera remote

  # Go straight to the keypad
  viera remote --device living-room`,
	Args: cobra.NoArgs,
	RunE: runRemote,
}

func runRemote(cmd *cobra.Command, args []string) error {
	if !ui.IsTerminal() {
		return fmt.Errorf("the interactive remote needs a terminal; use 'viera send' in scripts")
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	scanner, err := reg.NewScanner()
	if err != nil {
		return err
	}

	opts := tui.Options{
		Scan: scanner.Discover,
		Resolve: func(ctx context.Context, host string) (*remote.Device, error) {
			return scanner.Resolve(ctx, locationFor(host))
		},
	}

	for _, name := range reg.DeviceNames() {
		device, err := reg.Device(name)
		if err != nil {
			continue
		}
		opts.Known = append(opts.Known, tui.NamedDevice{Name: name, Device: device})
	}

	if deviceTarget != "" {
		device, name, err := resolveTarget(cmd.Context(), reg, deviceTarget)
		if err != nil {
			return err
		}
		opts.Device = device
		opts.Name = displayName(name, device)
	}

	if err := tui.Run(opts); err != nil {
		return fmt.Errorf("remote error: %w", err)
	}
	return nil
}
