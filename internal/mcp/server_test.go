package mcp

import (
	"context"
	"errors"
	"sort"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/ipc"
)

type fakeDaemon struct {
	outputs  *ipc.OutputsData
	monitors *ipc.MonitorsData
	apply    *ipc.ApplyData
	applyErr error

	methods  []backend.Method
	power    backend.PowerSaveMode
	pending  bool
	reverted bool
	reloaded []bool
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	return &ipc.StatusData{
		DaemonRunning:       true,
		Display:             ":0",
		Screen:              backend.ScreenSize{Width: 3200, Height: 1080},
		Outputs:             2,
		ActiveMonitors:      2,
		PendingConfirmation: f.pending,
		PowerSave:           "on",
	}, nil
}

func (f *fakeDaemon) GetOutputs() (*ipc.OutputsData, error) { return f.outputs, nil }

func (f *fakeDaemon) GetMonitors() (*ipc.MonitorsData, error) { return f.monitors, nil }

func (f *fakeDaemon) Apply(method backend.Method, plan *display.Plan) (*ipc.ApplyData, error) {
	f.methods = append(f.methods, method)
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.pending = method == backend.MethodTemporary
	data := *f.apply
	data.Method = method.String()
	data.PendingConfirmation = f.pending
	return &data, nil
}

func (f *fakeDaemon) Confirm() (*ipc.ConfirmData, error) {
	was := f.pending
	f.pending = false
	return &ipc.ConfirmData{WasPending: was}, nil
}

func (f *fakeDaemon) Revert() (*ipc.ConfirmData, error) {
	was := f.pending
	f.pending = false
	f.reverted = was
	return &ipc.ConfirmData{WasPending: was}, nil
}

func (f *fakeDaemon) SetPowerSave(mode backend.PowerSaveMode) error {
	f.power = mode
	return nil
}

func (f *fakeDaemon) Reload(apply bool) error {
	f.reloaded = append(f.reloaded, apply)
	return nil
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		outputs: &ipc.OutputsData{Outputs: []ipc.OutputInfo{{
			Name:      "DP-1",
			Connector: "DisplayPort",
			Vendor:    "DEL",
			Enabled:   true,
			Primary:   true,
			Layout:    display.Rect{Width: 1080, Height: 1920},
			Transform: display.Transform90,
			Modes: []ipc.ModeInfo{
				{ID: 42, Width: 1920, Height: 1080, Refresh: 60, Preferred: true, Current: true},
				{ID: 43, Width: 1280, Height: 720, Refresh: 59.94},
			},
		}}},
		monitors: &ipc.MonitorsData{Monitors: []display.LogicalMonitor{{
			Layout:    display.Rect{Width: 1080, Height: 1920},
			Transform: display.Transform90,
			Primary:   true,
			Mode:      "1920x1080",
			Refresh:   60,
			Outputs:   []string{"DP-1"},
		}}},
		apply: &ipc.ApplyData{Width: 1080, Height: 1920, ConfirmTimeout: 20},
	}
}

func newTestServer(t *testing.T, d Daemon) *Server {
	t.Helper()
	s, err := NewServer(d, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewServerRequiresDaemon(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestToolsAreListed(t *testing.T) {
	s := newTestServer(t, newFakeDaemon())
	ctx := context.Background()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ss, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	res, err := cs.ListTools(ctx, &mcpsdk.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"apply_layout",
		"confirm_configuration",
		"get_status",
		"list_monitors",
		"list_outputs",
		"reload_config",
		"set_power_save",
	}, names)

	call, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: "get_status", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, call.IsError)
}

func TestListOutputs(t *testing.T) {
	s := newTestServer(t, newFakeDaemon())

	_, out, err := s.handleListOutputs(context.Background(), nil, ListOutputsInput{})
	require.NoError(t, err)
	require.Len(t, out.Outputs, 1)
	dp := out.Outputs[0]
	assert.Equal(t, "DP-1", dp.Name)
	assert.Equal(t, "90", dp.Transform)
	assert.Equal(t, 1080, dp.Width)
	assert.Equal(t, "1920x1080@60.00", dp.Mode)
	assert.Equal(t, []string{"1920x1080@60.00", "1280x720@59.94"}, dp.Modes)
}

func TestListMonitors(t *testing.T) {
	s := newTestServer(t, newFakeDaemon())

	_, out, err := s.handleListMonitors(context.Background(), nil, ListMonitorsInput{})
	require.NoError(t, err)
	require.Len(t, out.Monitors, 1)
	assert.Equal(t, []string{"DP-1"}, out.Monitors[0].Outputs)
	assert.True(t, out.Monitors[0].Primary)
}

func TestApplyLayoutAndConfirm(t *testing.T) {
	d := newFakeDaemon()
	s := newTestServer(t, d)
	ctx := context.Background()

	_, out, err := s.handleApplyLayout(ctx, nil, ApplyLayoutInput{})
	require.NoError(t, err)
	assert.Equal(t, "temporary", out.Method)
	assert.True(t, out.PendingConfirmation)
	assert.Equal(t, 20, out.ConfirmTimeout)
	assert.Len(t, out.Monitors, 1)

	_, conf, err := s.handleConfirm(ctx, nil, ConfirmInput{Keep: true})
	require.NoError(t, err)
	assert.True(t, conf.WasPending)
	assert.True(t, conf.Kept)
	assert.False(t, d.reverted)
}

func TestApplyLayoutRevert(t *testing.T) {
	d := newFakeDaemon()
	s := newTestServer(t, d)
	ctx := context.Background()

	_, _, err := s.handleApplyLayout(ctx, nil, ApplyLayoutInput{Method: "temporary"})
	require.NoError(t, err)
	_, conf, err := s.handleConfirm(ctx, nil, ConfirmInput{Keep: false})
	require.NoError(t, err)
	assert.True(t, conf.WasPending)
	assert.True(t, d.reverted)
}

func TestApplyLayoutVerifySkipsMonitors(t *testing.T) {
	d := newFakeDaemon()
	s := newTestServer(t, d)

	_, out, err := s.handleApplyLayout(context.Background(), nil, ApplyLayoutInput{Method: "verify"})
	require.NoError(t, err)
	assert.False(t, out.PendingConfirmation)
	assert.Nil(t, out.Monitors)
	assert.Equal(t, []backend.Method{backend.MethodVerify}, d.methods)
}

func TestApplyLayoutErrors(t *testing.T) {
	d := newFakeDaemon()
	s := newTestServer(t, d)
	ctx := context.Background()

	_, _, err := s.handleApplyLayout(ctx, nil, ApplyLayoutInput{Method: "sometimes"})
	assert.Error(t, err)
	assert.Empty(t, d.methods)

	d.applyErr = errors.New("daemon error: no crtc")
	_, _, err = s.handleApplyLayout(ctx, nil, ApplyLayoutInput{Method: "persistent"})
	assert.ErrorContains(t, err, "no crtc")
}

func TestSetPowerSave(t *testing.T) {
	d := newFakeDaemon()
	s := newTestServer(t, d)
	ctx := context.Background()

	_, out, err := s.handleSetPowerSave(ctx, nil, SetPowerSaveInput{Mode: "standby"})
	require.NoError(t, err)
	assert.Equal(t, "standby", out.Mode)
	assert.Equal(t, backend.PowerSaveStandby, d.power)

	_, _, err = s.handleSetPowerSave(ctx, nil, SetPowerSaveInput{Mode: "nap"})
	assert.Error(t, err)
}

func TestReloadConfig(t *testing.T) {
	d := newFakeDaemon()
	s := newTestServer(t, d)

	_, out, err := s.handleReloadConfig(context.Background(), nil, ReloadConfigInput{Apply: true})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, []bool{true}, d.reloaded)
}
