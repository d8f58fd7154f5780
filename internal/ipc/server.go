package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/config"
	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/layout"
)

// Backend is the part of the display backend the server reports on.
type Backend interface {
	backend.Backend
	Target() *display.Plan
	ScreenSize() backend.ScreenSize
}

// Layout is the daemon's layout manager.
type Layout interface {
	Config() *config.Config
	SetConfig(cfg *config.Config)
	Apply(method backend.Method) (*display.Plan, display.ApplyResult, error)
	ApplyPlan(plan *display.Plan, method backend.Method) (display.ApplyResult, error)
	Pending() bool
	Confirm() bool
	Revert() error
}

// ServerConfig holds the dependencies of a Server.
type ServerConfig struct {
	SocketPath string
	Display    string
	Backend    Backend
	Layout     Layout
	// Runner serializes backend access, normally the backend's Loop.
	Runner     layout.Runner
	LoadConfig func() (*config.Config, error)
	Logger     *zap.Logger
	// RequestTimeout bounds how long a request waits for the loop.
	RequestTimeout time.Duration
}

// Server handles IPC requests from clients
type Server struct {
	socketPath     string
	listener       net.Listener
	display        string
	backend        Backend
	layout         Layout
	runner         layout.Runner
	loadConfig     func() (*config.Config, error)
	logger         *zap.Logger
	requestTimeout time.Duration
	startTime      time.Time
	shuttingDown   bool
	shutdownMu     sync.Mutex
	wg             sync.WaitGroup
}

// NewServer creates a new IPC server
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("IPC socket path is empty")
	}
	if cfg.Backend == nil || cfg.Layout == nil || cfg.Runner == nil {
		return nil, fmt.Errorf("IPC server needs a backend, a layout manager and a runner")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	loadConfig := cfg.LoadConfig
	if loadConfig == nil {
		loadConfig = func() (*config.Config, error) {
			res, err := config.LoadWithSources()
			if err != nil {
				return nil, err
			}
			return res.Config, nil
		}
	}

	return &Server{
		socketPath:     cfg.SocketPath,
		display:        cfg.Display,
		backend:        cfg.Backend,
		layout:         cfg.Layout,
		runner:         cfg.Runner,
		loadConfig:     loadConfig,
		logger:         logger,
		requestTimeout: timeout,
		startTime:      time.Now(),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// Remove a stale socket left by a previous run.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale IPC socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", zap.String("socket", s.socketPath))

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", zap.Error(err))
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", zap.Error(err))
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	s.logger.Debug("IPC request", zap.String("command", string(req.Command)))
	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal IPC response", zap.Error(err))
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send IPC response", zap.Error(err))
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload(req.Payload)
	case CommandGetStatus:
		return s.onLoop(s.handleGetStatus)
	case CommandGetOutputs:
		return s.onLoop(s.handleGetOutputs)
	case CommandGetMonitors:
		return s.onLoop(s.handleGetMonitors)
	case CommandReread:
		return s.onLoop(s.handleReread)
	case CommandApply:
		var p ApplyPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid apply payload: %v", err))
		}
		return s.onLoop(func() *Response { return s.handleApply(p) })
	case CommandConfirm:
		return s.onLoop(s.handleConfirm)
	case CommandRevert:
		return s.onLoop(s.handleRevert)
	case CommandSetGamma:
		var p GammaPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid gamma payload: %v", err))
		}
		return s.onLoop(func() *Response { return s.handleSetGamma(p) })
	case CommandSetPowerSave:
		var p PowerSavePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid power save payload: %v", err))
		}
		mode, err := backend.ParsePowerSaveMode(p.Mode)
		if err != nil {
			return NewErrorResponse(err.Error())
		}
		return s.onLoop(func() *Response { return s.ok(nil, s.backend.SetPowerSaveMode(mode)) })
	case CommandSetMaxBPC, CommandSetBacklight:
		var p OutputValuePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid payload: %v", err))
		}
		return s.onLoop(func() *Response { return s.handleOutputValue(req.Command, p) })
	case CommandSetCTM:
		var p CTMPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid CTM payload: %v", err))
		}
		return s.onLoop(func() *Response { return s.handleSetCTM(p) })
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}

// onLoop runs fn on the backend's loop.
func (s *Server) onLoop(fn func() *Response) *Response {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()

	var resp *Response
	if err := s.runner.Do(ctx, func() { resp = fn() }); err != nil {
		return NewErrorResponse(fmt.Sprintf("Display loop unavailable: %v", err))
	}
	return resp
}

func (s *Server) ok(data any, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// handleReload reloads the configuration
func (s *Server) handleReload(payload json.RawMessage) *Response {
	var p ReloadPayload
	if err := decodePayload(payload, &p); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid reload payload: %v", err))
	}
	s.logger.Info("IPC: reloading config")

	newCfg, err := s.loadConfig()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	s.layout.SetConfig(newCfg)

	if !p.Apply {
		return s.ok(nil, nil)
	}
	return s.onLoop(func() *Response {
		return s.handleApply(ApplyPayload{Method: backend.MethodPersistent.String()})
	})
}

// handleGetStatus returns current daemon status
func (s *Server) handleGetStatus() *Response {
	power := "unknown"
	if mode, err := s.backend.PowerSaveMode(); err == nil {
		power = mode.String()
	}
	status := StatusData{
		DaemonRunning:       true,
		UptimeSeconds:       int64(time.Since(s.startTime).Seconds()),
		Display:             s.display,
		Screen:              s.backend.ScreenSize(),
		Generation:          s.backend.GPU().Generation(),
		Outputs:             len(s.backend.Outputs()),
		ActiveMonitors:      len(s.backend.LogicalMonitors()),
		Managed:             s.backend.Target() != nil,
		PendingConfirmation: s.layout.Pending(),
		PowerSave:           power,
	}
	return s.ok(status, nil)
}

func (s *Server) handleGetOutputs() *Response {
	return s.ok(OutputsData{Outputs: describeOutputs(s.backend.Outputs())}, nil)
}

func (s *Server) handleGetMonitors() *Response {
	return s.ok(MonitorsData{Monitors: s.backend.LogicalMonitors()}, nil)
}

func (s *Server) handleReread() *Response {
	if err := s.backend.Reread(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reread display state: %v", err))
	}
	return s.handleGetOutputs()
}

func (s *Server) handleApply(p ApplyPayload) *Response {
	method, err := backend.ParseMethod(p.Method)
	if err != nil {
		return NewErrorResponse(err.Error())
	}

	plan := p.Plan
	var result display.ApplyResult
	if plan == nil {
		plan, result, err = s.layout.Apply(method)
	} else {
		result, err = s.layout.ApplyPlan(plan, method)
	}
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to apply configuration: %v", err))
	}

	data := ApplyData{
		Method:              method.String(),
		Plan:                plan,
		Timestamp:           result.Timestamp,
		Width:               result.Width,
		Height:              result.Height,
		PendingConfirmation: s.layout.Pending(),
	}
	for _, err := range multierr.Errors(result.Failures) {
		data.Failures = append(data.Failures, err.Error())
	}
	if data.PendingConfirmation {
		data.ConfirmTimeout = s.layout.Config().ConfirmTimeout
	}
	return s.ok(data, nil)
}

func (s *Server) handleConfirm() *Response {
	return s.ok(ConfirmData{WasPending: s.layout.Confirm()}, nil)
}

func (s *Server) handleRevert() *Response {
	pending := s.layout.Pending()
	if err := s.layout.Revert(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to revert: %v", err))
	}
	return s.ok(ConfirmData{WasPending: pending}, nil)
}

func (s *Server) handleSetGamma(p GammaPayload) *Response {
	current, err := s.backend.CrtcGamma(p.Crtc)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to read gamma: %v", err))
	}
	ramp, err := backend.GammaRamp(current.Size(), orOne(p.Red), orOne(p.Green), orOne(p.Blue), orOne(p.Brightness))
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.ok(nil, s.backend.SetCrtcGamma(p.Crtc, ramp))
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func (s *Server) outputID(name string) (uint32, error) {
	o := s.backend.GPU().OutputByName(name)
	if o == nil {
		return 0, fmt.Errorf("unknown output %q", name)
	}
	return o.ID, nil
}

func (s *Server) handleOutputValue(cmd CommandType, p OutputValuePayload) *Response {
	id, err := s.outputID(p.Output)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	if cmd == CommandSetMaxBPC {
		return s.ok(nil, s.backend.SetOutputMaxBPC(id, p.Value))
	}
	return s.ok(nil, s.backend.SetOutputBacklight(id, p.Value))
}

func (s *Server) handleSetCTM(p CTMPayload) *Response {
	id, err := s.outputID(p.Output)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.ok(nil, s.backend.SetOutputCTM(id, p.Matrix))
}

func describeOutputs(outputs []*display.Output) []OutputInfo {
	infos := make([]OutputInfo, 0, len(outputs))
	for _, o := range outputs {
		info := OutputInfo{
			ID:                o.ID,
			Name:              o.Name,
			Connector:         o.ConnectorType.String(),
			Vendor:            o.Vendor,
			Product:           o.Product,
			Serial:            o.Serial,
			WidthMM:           o.WidthMM,
			HeightMM:          o.HeightMM,
			Primary:           o.State.Primary,
			Presentation:      o.State.Presentation,
			Underscan:         o.State.Underscan,
			SupportsUnderscan: o.SupportsUnderscanning,
			SupportsCTM:       o.SupportsColorTransform,
			NonDesktop:        o.NonDesktop,
		}
		if o.State.HasMaxBPC {
			info.MaxBPC = o.State.MaxBPC
		}
		if o.HasMaxBPCRange {
			info.MaxBPCRange = []int{o.MaxBPCMin, o.MaxBPCMax}
		}
		if o.Backlight != nil {
			info.Backlight = &BacklightInfo{Min: o.Backlight.Min, Max: o.Backlight.Max, Value: o.Backlight.Value}
		}

		var current *display.Mode
		if c := o.AssignedCrtc; c != nil && c.On() {
			info.Enabled = true
			info.Crtc = c.ID
			info.Layout = c.Config.Layout
			info.Transform = c.Config.Transform
			current = c.Mode()
		}
		for i, m := range o.Modes {
			info.Modes = append(info.Modes, ModeInfo{
				ID:        m.ID,
				Name:      m.Name,
				Width:     m.Width,
				Height:    m.Height,
				Refresh:   m.RefreshRate,
				Preferred: i == 0,
				Current:   m == current,
			})
		}
		infos = append(infos, info)
	}
	return infos
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
		s.wg.Wait()
	}
	os.Remove(s.socketPath)
}
