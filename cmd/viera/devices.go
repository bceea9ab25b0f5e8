package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/viera/internal/ui"
)

func init() {
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesAddCmd)
	devicesCmd.AddCommand(devicesRemoveCmd)
	rootCmd.AddCommand(devicesCmd)
}

// devicesCmd manages remembered televisions
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage remembered televisions",
	Long: `List, add and remove the televisions stored in the configuration file.

A remembered television is addressed by name with --device and needs no
discovery.`,
}

var devicesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List remembered televisions",
	Args:    cobra.NoArgs,
	RunE:    runDevicesList,
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	p := newPrinter()
	names := reg.DeviceNames()
	if len(names) == 0 {
		p.PrintResult(ui.NewWarningResult("No televisions remembered",
			"Run 'viera discover --save' to find and remember televisions",
			"Or add one by address with 'viera devices add <name> <host>'"))
		return nil
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		d := reg.Devices[name]
		lastSeen := ""
		if !d.LastSeen.IsZero() {
			lastSeen = d.LastSeen.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{name, d.Hostname, d.FriendlyName, d.ModelName, lastSeen})
	}
	p.PrintTable([]string{"NAME", "HOST", "FRIENDLY NAME", "MODEL", "LAST SEEN"}, rows)
	return nil
}

var devicesAddCmd = &cobra.Command{
	Use:   "add <name> <host>",
	Short: "Remember a television by address",
	Long: `Fetch the service description from a television and remember it under
name. The host may carry a port; the description is read from
http://<host>:55000/nrc/ddd.xml unless a full URL is given.`,
	Example: `  viera devices add living-room 192.168.1.20
  viera devices add bedroom http://192.168.1.21:55000/nrc/ddd.xml`,
	Args: cobra.ExactArgs(2),
	RunE: runDevicesAdd,
}

func runDevicesAdd(cmd *cobra.Command, args []string) error {
	name, host := args[0], args[1]

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	scanner, err := reg.NewScanner()
	if err != nil {
		return err
	}

	p := newPrinter()
	location := locationFor(host)
	p.PrintHeader("Add device", "viera devices add",
		ui.Param{Key: "Name", Value: name},
		ui.Param{Key: "Description", Value: location})

	device, err := scanner.Resolve(cmd.Context(), location)
	if err != nil {
		p.PrintResult(ui.NewFailureResult("Could not read the television's description", err))
		return err
	}

	reg.RememberDevice(name, device)
	if err := saveRegistry(reg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	p.PrintResult(ui.NewSuccessResult("Device remembered",
		ui.Param{Key: "Name", Value: name},
		ui.Param{Key: "Friendly name", Value: device.FriendlyName},
		ui.Param{Key: "Model", Value: device.ModelName},
		ui.Param{Key: "Control URL", Value: device.ControlURL}))
	return nil
}

var devicesRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Forget a television",
	Args:    cobra.ExactArgs(1),
	RunE:    runDevicesRemove,
}

func runDevicesRemove(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	if !reg.RemoveDevice(args[0]) {
		return fmt.Errorf("no device named %q", args[0])
	}
	if err := saveRegistry(reg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	newPrinter().PrintResult(ui.NewSuccessResult("Device removed", ui.Param{Key: "Name", Value: args[0]}))
	return nil
}
