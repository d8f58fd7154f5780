package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/ipc"
)

const (
	ServerName    = "randrd"
	ServerVersion = "0.1.0"
)

// Daemon is the part of the IPC client the tools call. *ipc.Client
// implements it.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	GetOutputs() (*ipc.OutputsData, error)
	GetMonitors() (*ipc.MonitorsData, error)
	Apply(method backend.Method, plan *display.Plan) (*ipc.ApplyData, error)
	Confirm() (*ipc.ConfirmData, error)
	Revert() (*ipc.ConfirmData, error)
	SetPowerSave(mode backend.PowerSaveMode) error
	Reload(apply bool) error
}

// Server exposes the display daemon to MCP clients over stdio.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *zap.Logger
}

// NewServer creates an MCP server that forwards tool calls to daemon.
func NewServer(daemon Daemon, logger *zap.Logger) (*Server, error) {
	if daemon == nil {
		return nil, errors.New("mcp: daemon client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{daemon: daemon, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the daemon's screen size, output count, power save state and whether a temporary configuration is waiting for confirmation.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_outputs",
		Description: "List connected outputs with their monitor identity, current position, rotation and available modes.",
	}, s.handleListOutputs)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List the lit regions of the screen, one per CRTC, with the outputs shown on each.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "apply_layout",
		Description: "Apply the configured layout for the connected outputs. verify only checks the layout. temporary applies it and reverts after the confirm timeout unless confirm_configuration keeps it. persistent applies it without confirmation.",
	}, s.handleApplyLayout)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "confirm_configuration",
		Description: "Keep or revert a temporary configuration applied with apply_layout.",
	}, s.handleConfirm)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_power_save",
		Description: "Set the DPMS power save mode of all monitors.",
	}, s.handleSetPowerSave)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reload_config",
		Description: "Reload the daemon's config file, optionally applying the new layout.",
	}, s.handleReloadConfig)
}

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		Display:             status.Display,
		ScreenWidth:         status.Screen.Width,
		ScreenHeight:        status.Screen.Height,
		Outputs:             status.Outputs,
		ActiveMonitors:      status.ActiveMonitors,
		Managed:             status.Managed,
		PendingConfirmation: status.PendingConfirmation,
		PowerSave:           status.PowerSave,
		UptimeSeconds:       status.UptimeSeconds,
	}, nil
}

func (s *Server) handleListOutputs(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListOutputsInput) (*mcpsdk.CallToolResult, ListOutputsOutput, error) {
	data, err := s.daemon.GetOutputs()
	if err != nil {
		return nil, ListOutputsOutput{}, err
	}

	outputs := make([]OutputSummary, 0, len(data.Outputs))
	for _, o := range data.Outputs {
		summary := OutputSummary{
			Name:      o.Name,
			Connector: o.Connector,
			Vendor:    o.Vendor,
			Product:   o.Product,
			Enabled:   o.Enabled,
			Primary:   o.Primary,
			X:         o.Layout.X,
			Y:         o.Layout.Y,
			Width:     o.Layout.Width,
			Height:    o.Layout.Height,
			Transform: o.Transform.String(),
			Modes:     make([]string, 0, len(o.Modes)),
		}
		for _, m := range o.Modes {
			name := fmt.Sprintf("%dx%d@%.2f", m.Width, m.Height, m.Refresh)
			summary.Modes = append(summary.Modes, name)
			if m.Current {
				summary.Mode = name
			}
		}
		outputs = append(outputs, summary)
	}
	return nil, ListOutputsOutput{Outputs: outputs}, nil
}

func (s *Server) handleListMonitors(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListMonitorsInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	monitors, err := s.monitors()
	if err != nil {
		return nil, ListMonitorsOutput{}, err
	}
	return nil, ListMonitorsOutput{Monitors: monitors}, nil
}

func (s *Server) monitors() ([]MonitorSummary, error) {
	data, err := s.daemon.GetMonitors()
	if err != nil {
		return nil, err
	}
	monitors := make([]MonitorSummary, 0, len(data.Monitors))
	for _, m := range data.Monitors {
		monitors = append(monitors, MonitorSummary{
			X:         m.Layout.X,
			Y:         m.Layout.Y,
			Width:     m.Layout.Width,
			Height:    m.Layout.Height,
			Transform: m.Transform.String(),
			Primary:   m.Primary,
			Mode:      m.Mode,
			Refresh:   m.Refresh,
			Outputs:   m.Outputs,
		})
	}
	return monitors, nil
}

func (s *Server) handleApplyLayout(_ context.Context, _ *mcpsdk.CallToolRequest, args ApplyLayoutInput) (*mcpsdk.CallToolResult, ApplyLayoutOutput, error) {
	method := backend.MethodTemporary
	if args.Method != "" {
		var err error
		if method, err = backend.ParseMethod(args.Method); err != nil {
			return nil, ApplyLayoutOutput{}, err
		}
	}

	data, err := s.daemon.Apply(method, nil)
	if err != nil {
		s.logger.Warn("mcp apply failed", zap.Stringer("method", method), zap.Error(err))
		return nil, ApplyLayoutOutput{}, err
	}
	s.logger.Info("mcp apply",
		zap.Stringer("method", method),
		zap.Int("width", data.Width),
		zap.Int("height", data.Height),
		zap.Bool("pending", data.PendingConfirmation),
	)

	out := ApplyLayoutOutput{
		Method:              data.Method,
		Width:               data.Width,
		Height:              data.Height,
		Failures:            data.Failures,
		PendingConfirmation: data.PendingConfirmation,
		ConfirmTimeout:      data.ConfirmTimeout,
	}
	if method != backend.MethodVerify {
		if out.Monitors, err = s.monitors(); err != nil {
			return nil, ApplyLayoutOutput{}, err
		}
	}
	return nil, out, nil
}

func (s *Server) handleConfirm(_ context.Context, _ *mcpsdk.CallToolRequest, args ConfirmInput) (*mcpsdk.CallToolResult, ConfirmOutput, error) {
	var (
		data *ipc.ConfirmData
		err  error
	)
	if args.Keep {
		data, err = s.daemon.Confirm()
	} else {
		data, err = s.daemon.Revert()
	}
	if err != nil {
		return nil, ConfirmOutput{}, err
	}
	return nil, ConfirmOutput{WasPending: data.WasPending, Kept: args.Keep}, nil
}

func (s *Server) handleSetPowerSave(_ context.Context, _ *mcpsdk.CallToolRequest, args SetPowerSaveInput) (*mcpsdk.CallToolResult, SetPowerSaveOutput, error) {
	mode, err := backend.ParsePowerSaveMode(args.Mode)
	if err != nil {
		return nil, SetPowerSaveOutput{}, err
	}
	if err := s.daemon.SetPowerSave(mode); err != nil {
		return nil, SetPowerSaveOutput{}, err
	}
	return nil, SetPowerSaveOutput{Mode: mode.String()}, nil
}

func (s *Server) handleReloadConfig(_ context.Context, _ *mcpsdk.CallToolRequest, args ReloadConfigInput) (*mcpsdk.CallToolResult, ReloadConfigOutput, error) {
	if err := s.daemon.Reload(args.Apply); err != nil {
		return nil, ReloadConfigOutput{}, err
	}
	return nil, ReloadConfigOutput{Applied: args.Apply}, nil
}
