package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1broseidon/randrd/internal/config"
	"github.com/1broseidon/randrd/internal/ipc"
	"github.com/1broseidon/randrd/internal/runtimepath"
)

// Version is set during build.
var Version = "0.1.0-dev"

var (
	configPath  string
	socketFlag  string
	displayFlag string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "randrd",
		Short: "randrd - X11 display configuration daemon",
		Long: `randrd keeps the outputs of an X server configured. It reads the RandR
hardware state, applies a layout from its config when monitors are plugged
in, and lets clients change modes, rotation, gamma and power state over IPC.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file path (default: ~/.config/randrd/config.yaml)")
	flags.StringVar(&socketFlag, "socket", "", "IPC socket path (default: $XDG_RUNTIME_DIR/randrd.sock)")
	flags.StringVar(&displayFlag, "display", "", "X display to manage (default: $DISPLAY)")

	root.AddCommand(
		newDaemonCmd(),
		newStatusCmd(),
		newOutputsCmd(),
		newMonitorsCmd(),
		newApplyCmd(),
		newConfirmCmd(),
		newRevertCmd(),
		newGammaCmd(),
		newPowerCmd(),
		newMaxBPCCmd(),
		newBacklightCmd(),
		newCTMCmd(),
		newReloadCmd(),
		newConfigCmd(),
		newMCPCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// socketPath resolves the IPC socket shared by the daemon and its clients.
func socketPath() (string, error) {
	if socketFlag != "" {
		return socketFlag, nil
	}
	return runtimepath.SocketPathFor(displayFlag)
}

func newClient() (*ipc.Client, error) {
	path, err := socketPath()
	if err != nil {
		return nil, err
	}
	return ipc.NewClientAt(path), nil
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}
