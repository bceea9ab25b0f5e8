package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/viera/internal/config"
	"github.com/muurk/viera/internal/remote"
	"github.com/muurk/viera/internal/ui"
)

// Command flags
var (
	deviceTarget    string
	discoverTimeout time.Duration
	failFast        bool
	saveDiscovered  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceTarget, "device", "", "Registered device name, host or description URL")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(sendCmd)
}

// discoverCmd finds televisions on the network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find televisions on the network",
	Long: `Send one SSDP search for the Viera remote control service and list every
television that answers within the listening window.

Each respondent's service description is fetched to learn its control
endpoint. A respondent that cannot be resolved is skipped unless
--fail-fast is given.`,
	Example: `  # Listen for the default window
  viera discover

  # Wait longer on a busy network
  viera discover --timeout 3s

  # Remember every television found
  viera discover --save`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "Wait for further responses (default from preferences, 1s)")
	discoverCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Abort when any respondent cannot be resolved")
	discoverCmd.Flags().BoolVar(&saveDiscovered, "save", false, "Remember discovered televisions in the configuration")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	scanner, err := reg.NewScanner()
	if err != nil {
		return err
	}
	if discoverTimeout > 0 {
		scanner.Timeout = discoverTimeout
	}
	if failFast {
		scanner.FailFast = true
	}

	p := newPrinter()
	p.PrintHeader("Discover", "viera discover",
		ui.Param{Key: "Timeout", Value: scanner.Timeout.String()},
		ui.Param{Key: "Fail fast", Value: strconv.FormatBool(scanner.FailFast)})

	devices, err := scanner.Discover(cmd.Context())
	if err != nil {
		p.PrintResult(ui.NewFailureResult("Discovery failed", err))
		return err
	}

	if len(devices) == 0 {
		p.PrintResult(ui.NewWarningResult("No televisions found",
			"Check that the TV is switched on (not in standby)",
			"Enable Menu > Network > TV Remote App Settings on the TV",
			"Verify the TV and this computer are on the same network",
			"Try a longer --timeout",
			"Add a TV by address with 'viera devices add <name> <host>'"))
		return nil
	}

	rows := make([][]string, 0, len(devices))
	for _, device := range devices {
		name, known := reg.NameFor(device)
		if !known {
			name = reg.SuggestName(device)
		}
		if saveDiscovered {
			reg.RememberDevice(name, device)
		} else if !known {
			name = "(" + name + ")"
		}
		rows = append(rows, []string{name, device.Hostname, device.FriendlyName, device.ModelName, device.ControlURL})
	}

	p.PrintTable([]string{"NAME", "HOST", "FRIENDLY NAME", "MODEL", "CONTROL URL"}, rows)

	if saveDiscovered {
		if err := saveRegistry(reg); err != nil {
			return fmt.Errorf("failed to save configuration: %w", err)
		}
		p.Newline()
		p.PrintResult(ui.NewSuccessResult(fmt.Sprintf("Saved %d device(s)", len(devices))))
	} else {
		p.Newline()
		p.Println("Names in parentheses are suggestions; use --save to remember them.")
	}
	return nil
}

// keysCmd lists the command table
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the available commands",
	Long: `List the command names accepted by 'viera send' and the key each one
transmits. Commands marked numeric take one number and send it digit by
digit. The 'commands' section of the configuration adds or overrides
entries.`,
	Args: cobra.NoArgs,
	RunE: runKeys,
}

func runKeys(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	table, err := reg.CommandTable()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, table.Len())
	for _, name := range table.Names() {
		tmpl, _ := table.Lookup(name)
		kind := ""
		if tmpl.Numeric() {
			kind = "numeric"
		}
		rows = append(rows, []string{name, string(tmpl), kind})
	}
	newPrinter().PrintTable([]string{"COMMAND", "KEY", ""}, rows)
	return nil
}

// sendCmd dispatches one command
var sendCmd = &cobra.Command{
	Use:   "send <command> [number]",
	Short: "Send one command to a television",
	Long: `Send a named command to a television. Numeric commands such as 'num'
take a non-negative number and send one key press per digit.

Without --device the only registered television is used, or the only one
discovered when none are registered.`,
	Example: `  # Toggle power on the registered TV
  viera send power

  # Change to channel 23 on a named TV
  viera send num 23 --device living-room

  # Address a TV directly
  viera send mute --device 192.168.1.20`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	command := args[0]
	var numbers []int
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", args[1], err)
		}
		numbers = append(numbers, n)
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	p := newPrinter()
	ctx := cmd.Context()

	device, name, err := resolveTarget(ctx, reg, deviceTarget)
	if err != nil {
		p.PrintResult(ui.NewFailureResult("Could not find the television", err))
		return err
	}

	if _, err := device.Send(ctx, command, numbers...); err != nil {
		p.PrintResult(ui.NewFailureResult("Command failed", err))
		return err
	}

	details := []ui.Param{
		{Key: "Device", Value: displayName(name, device)},
		{Key: "Command", Value: command},
	}
	if len(numbers) == 1 {
		details = append(details, ui.Param{Key: "Number", Value: strconv.Itoa(numbers[0])})
	}
	p.PrintResult(ui.NewSuccessResult("Sent", details...))

	rememberLastSeen(reg, name, device)
	return nil
}

// rememberLastSeen refreshes a registered device entry after a successful
// exchange. Failures to save are not fatal.
func rememberLastSeen(reg *config.Registry, name string, device *remote.Device) {
	if name == "" {
		return
	}
	if _, ok := reg.Devices[name]; !ok {
		return
	}
	reg.RememberDevice(name, device)
	_ = saveRegistry(reg)
}
