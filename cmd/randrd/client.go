package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/ipc"
)

// wantJSON reports whether output to w should be JSON: when asked for,
// or when w is not a terminal.
func wantJSON(flag bool, w io.Writer) bool {
	if flag {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			status, err := client.GetStatus()
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printStatus(w io.Writer, status *ipc.StatusData) {
	fmt.Fprintf(w, "daemon_running:       %v\n", status.DaemonRunning)
	fmt.Fprintf(w, "display:              %s\n", status.Display)
	fmt.Fprintf(w, "screen:               %dx%d (%dx%d mm)\n",
		status.Screen.Width, status.Screen.Height, status.Screen.MmWidth, status.Screen.MmHeight)
	fmt.Fprintf(w, "outputs:              %d\n", status.Outputs)
	fmt.Fprintf(w, "active_monitors:      %d\n", status.ActiveMonitors)
	fmt.Fprintf(w, "managed:              %v\n", status.Managed)
	fmt.Fprintf(w, "pending_confirmation: %v\n", status.PendingConfirmation)
	fmt.Fprintf(w, "power_save:           %s\n", status.PowerSave)
	fmt.Fprintf(w, "uptime_seconds:       %d\n", status.UptimeSeconds)
}

func newOutputsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "List connected outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			data, err := client.GetOutputs()
			if err != nil {
				return err
			}
			if wantJSON(jsonOut, cmd.OutOrStdout()) {
				return writeJSON(cmd.OutOrStdout(), data)
			}
			return printOutputs(cmd.OutOrStdout(), data.Outputs)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	return cmd
}

func printOutputs(w io.Writer, outputs []ipc.OutputInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCONNECTOR\tMONITOR\tSTATE\tGEOMETRY\tTRANSFORM\tMODES")
	for _, o := range outputs {
		state := "off"
		geometry := "-"
		if o.Enabled {
			state = "on"
			if o.Primary {
				state = "primary"
			}
			geometry = fmt.Sprintf("%dx%d+%d+%d", o.Layout.Width, o.Layout.Height, o.Layout.X, o.Layout.Y)
		}
		monitor := strings.TrimSpace(o.Vendor + " " + o.Product)
		if monitor == "" {
			monitor = "-"
		}
		modes := make([]string, 0, len(o.Modes))
		for _, m := range o.Modes {
			name := fmt.Sprintf("%dx%d@%.2f", m.Width, m.Height, m.Refresh)
			if m.Current {
				name += "*"
			}
			if m.Preferred {
				name += "+"
			}
			modes = append(modes, name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Name, o.Connector, monitor, state, geometry, o.Transform, strings.Join(modes, " "))
	}
	return tw.Flush()
}

func newMonitorsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "monitors",
		Short: "Show the logical monitor layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			data, err := client.GetMonitors()
			if err != nil {
				return err
			}
			if wantJSON(jsonOut, cmd.OutOrStdout()) {
				return writeJSON(cmd.OutOrStdout(), data)
			}
			return printMonitors(cmd.OutOrStdout(), data.Monitors)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	return cmd
}

func printMonitors(w io.Writer, monitors []display.LogicalMonitor) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GEOMETRY\tTRANSFORM\tMODE\tPRIMARY\tOUTPUTS")
	for _, m := range monitors {
		fmt.Fprintf(tw, "%dx%d+%d+%d\t%s\t%s@%.2f\t%v\t%s\n",
			m.Layout.Width, m.Layout.Height, m.Layout.X, m.Layout.Y,
			m.Transform, m.Mode, m.Refresh, m.Primary, strings.Join(m.Outputs, ","))
	}
	return tw.Flush()
}

func newApplyCmd() *cobra.Command {
	var (
		verify    bool
		temporary bool
		planFile  string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the configured layout or an explicit plan",
		Long: `Apply the layout the daemon computes from its config, or the JSON plan in
--plan ("-" reads stdin). --verify only checks the configuration. --temporary
applies it and reverts after the confirm timeout unless "randrd confirm" runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verify && temporary {
				return fmt.Errorf("--verify and --temporary are mutually exclusive")
			}
			method := backend.MethodPersistent
			switch {
			case verify:
				method = backend.MethodVerify
			case temporary:
				method = backend.MethodTemporary
			}

			var plan *display.Plan
			if planFile != "" {
				var err error
				if plan, err = readPlan(planFile, cmd.InOrStdin()); err != nil {
					return err
				}
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			data, err := client.Apply(method, plan)
			if err != nil {
				return err
			}
			printApply(cmd.OutOrStdout(), data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Only check the configuration")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "Revert unless confirmed")
	cmd.Flags().StringVar(&planFile, "plan", "", "JSON plan file to apply instead of the configured layout")
	return cmd
}

func readPlan(path string, stdin io.Reader) (*display.Plan, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan display.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &plan, nil
}

func printApply(w io.Writer, data *ipc.ApplyData) {
	fmt.Fprintf(w, "method: %s\n", data.Method)
	if data.Width > 0 {
		fmt.Fprintf(w, "screen: %dx%d\n", data.Width, data.Height)
	}
	for _, f := range data.Failures {
		fmt.Fprintf(w, "failed: %s\n", f)
	}
	if data.PendingConfirmation {
		if data.ConfirmTimeout > 0 {
			fmt.Fprintf(w, "run 'randrd confirm' within %ds to keep this configuration\n", data.ConfirmTimeout)
		} else {
			fmt.Fprintln(w, "run 'randrd confirm' to keep this configuration")
		}
	}
}

func newConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm",
		Short: "Keep a temporary configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			data, err := client.Confirm()
			if err != nil {
				return err
			}
			if !data.WasPending {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to confirm")
			}
			return nil
		},
	}
}

func newRevertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert",
		Short: "Restore the configuration before a temporary apply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			data, err := client.Revert()
			if err != nil {
				return err
			}
			if !data.WasPending {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
			}
			return nil
		},
	}
}

func newGammaCmd() *cobra.Command {
	var p ipc.GammaPayload
	cmd := &cobra.Command{
		Use:   "gamma <crtc>",
		Short: "Set a CRTC gamma ramp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			crtc, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid crtc %q: %w", args[0], err)
			}
			p.Crtc = uint32(crtc)
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.SetGamma(p)
		},
	}
	cmd.Flags().Float64Var(&p.Red, "red", 1, "Red gamma exponent")
	cmd.Flags().Float64Var(&p.Green, "green", 1, "Green gamma exponent")
	cmd.Flags().Float64Var(&p.Blue, "blue", 1, "Blue gamma exponent")
	cmd.Flags().Float64Var(&p.Brightness, "brightness", 1, "Brightness between 0 and 1")
	return cmd
}

func newPowerCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "power <on|standby|suspend|off>",
		Short:     "Set the DPMS power save mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "standby", "suspend", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := backend.ParsePowerSaveMode(args[0])
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.SetPowerSave(mode)
		},
	}
}

// outputValueCmd builds a command taking an output name and an integer.
func outputValueCmd(use, short string, set func(c *ipc.Client, output string, value int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			return set(client, args[0], value)
		},
	}
}

func newMaxBPCCmd() *cobra.Command {
	return outputValueCmd("maxbpc <output> <bits>", "Set the maximum bits per color channel of an output",
		(*ipc.Client).SetMaxBPC)
}

func newBacklightCmd() *cobra.Command {
	return outputValueCmd("backlight <output> <value>", "Set the backlight level of an output",
		(*ipc.Client).SetBacklight)
}

func newCTMCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ctm <output> <m00> <m01> ... <m22>",
		Short: "Set the color transformation matrix of an output",
		Long:  `Set a 3x3 color transformation matrix, given as nine coefficients in row-major order.`,
		Args:  cobra.ExactArgs(10),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctm, err := parseCTM(args[1:])
			if err != nil {
				return err
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.SetCTM(args[0], ctm)
		},
	}
}

func parseCTM(args []string) (backend.CTM, error) {
	var ctm backend.CTM
	if len(args) != len(ctm) {
		return ctm, fmt.Errorf("need %d coefficients, got %d", len(ctm), len(args))
	}
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return ctm, fmt.Errorf("invalid coefficient %q: %w", a, err)
		}
		ctm[i] = v
	}
	return ctm, nil
}

func newReloadCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload the daemon's config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			return client.Reload(apply)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the reloaded layout")
	return cmd
}
