package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/config"
	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/randr"
	"github.com/1broseidon/randrd/internal/randr/randrtest"
)

const (
	mode1080 = 42
	mode720  = 43
	mode720r = 44
	crtcA    = 7
	crtcB    = 8
	outDP    = 70
	outHDMI  = 71
)

func newTestServer() *randrtest.Server {
	s := randrtest.New()
	s.AddMode(mode1080, 1920, 1080, 148500000, 2200, 1125)
	s.AddMode(mode720, 1280, 720, 74250000, 1650, 750)
	s.AddMode(mode720r, 1280, 720, 64000000, 1440, 741)
	s.AddCrtc(crtcA, randr.AllRotations, outDP, outHDMI)
	s.AddCrtc(crtcB, randr.Rotate0, outDP, outHDMI)
	s.AddOutput(outDP, "DP-1", []uint32{mode1080, mode720, mode720r}, []uint32{crtcA, crtcB})
	s.AddOutput(outHDMI, "HDMI-2", []uint32{mode720}, []uint32{crtcA, crtcB})
	return s
}

func readGPU(t *testing.T, s *randrtest.Server) *display.GPU {
	t.Helper()
	g := display.NewGPU(s, zap.NewNop())
	require.NoError(t, g.ReadCurrent())
	return g
}

func enabled(v bool) *bool { return &v }

func crtcFor(t *testing.T, plan *display.Plan, output uint32) display.CrtcPlan {
	t.Helper()
	for _, cp := range plan.Crtcs {
		for _, id := range cp.Outputs {
			if id == output {
				return cp
			}
		}
	}
	t.Fatalf("output %d not in plan", output)
	return display.CrtcPlan{}
}

func outputFor(t *testing.T, plan *display.Plan, output uint32) display.OutputPlan {
	t.Helper()
	for _, op := range plan.Outputs {
		if op.Output == output {
			return op
		}
	}
	t.Fatalf("output %d not in plan", output)
	return display.OutputPlan{}
}

func TestPlanExtendsInDirection(t *testing.T) {
	tests := []struct {
		dir      config.ExtendDirection
		dpRect   display.Rect
		hdmiRect display.Rect
	}{
		{config.ExtendRight, display.Rect{Width: 1920, Height: 1080}, display.Rect{X: 1920, Width: 1280, Height: 720}},
		{config.ExtendDown, display.Rect{Width: 1920, Height: 1080}, display.Rect{Y: 1080, Width: 1280, Height: 720}},
		{config.ExtendLeft, display.Rect{X: 1280, Width: 1920, Height: 1080}, display.Rect{Width: 1280, Height: 720}},
		{config.ExtendUp, display.Rect{Y: 720, Width: 1920, Height: 1080}, display.Rect{Width: 1280, Height: 720}},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			g := readGPU(t, newTestServer())
			cfg := config.DefaultConfig()
			cfg.ExtendDirection = tt.dir

			plan, err := NewPlanner(nil).Plan(g, cfg)
			require.NoError(t, err)
			require.Len(t, plan.Crtcs, 2)

			dp := crtcFor(t, plan, outDP)
			assert.Equal(t, uint32(crtcA), dp.Crtc)
			assert.Equal(t, uint32(mode1080), dp.Mode)
			assert.Equal(t, tt.dpRect, dp.Layout)

			hdmi := crtcFor(t, plan, outHDMI)
			assert.Equal(t, uint32(crtcB), hdmi.Crtc)
			assert.Equal(t, tt.hdmiRect, hdmi.Layout)

			assert.True(t, outputFor(t, plan, outDP).Primary)
			assert.False(t, outputFor(t, plan, outHDMI).Primary)

			crtcs, outputs, err := plan.Resolve(g)
			require.NoError(t, err)
			assert.NoError(t, display.Verify(g, crtcs, outputs))
		})
	}
}

func TestPlanOverrides(t *testing.T) {
	g := readGPU(t, newTestServer())
	cfg := config.DefaultConfig()
	cfg.Outputs = []config.OutputConfig{
		{Name: "DP-1", Enabled: enabled(false)},
		{Name: "HDMI-2", Transform: "90", MaxBPC: 8, Presentation: true},
	}

	plan, err := NewPlanner(nil).Plan(g, cfg)
	require.NoError(t, err)
	require.Len(t, plan.Crtcs, 1)

	hdmi := crtcFor(t, plan, outHDMI)
	// Only crtcA can rotate.
	assert.Equal(t, uint32(crtcA), hdmi.Crtc)
	assert.Equal(t, display.Transform90, hdmi.Transform)
	assert.Equal(t, display.Rect{Width: 720, Height: 1280}, hdmi.Layout)

	op := outputFor(t, plan, outHDMI)
	assert.True(t, op.Primary)
	assert.True(t, op.Presentation)
	assert.Equal(t, 8, op.MaxBPC)
}

func TestPlanModeSelection(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want uint32
	}{
		{"size only picks the preferred rate", "1280x720", mode720},
		{"exact rate", "1280x720@60", mode720},
		{"closest rate", "1280x720@59.9", mode720r},
		{"unavailable falls back to preferred", "1280x720@75", mode1080},
		{"unknown size falls back to preferred", "800x600", mode1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := readGPU(t, newTestServer())
			cfg := config.DefaultConfig()
			cfg.Outputs = []config.OutputConfig{{Name: "DP-1", Mode: tt.mode}}

			plan, err := NewPlanner(nil).Plan(g, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, crtcFor(t, plan, outDP).Mode)
		})
	}
}

func TestPlanSlowModeMatchesItsOwnRate(t *testing.T) {
	g := readGPU(t, newTestServer())
	rate := g.ModeByID(mode720r).RefreshRate
	require.InDelta(t, 59.98, rate, 0.01)

	m := matchMode(g.OutputByName("DP-1").Modes, config.ModeSpec{Width: 1280, Height: 720, Refresh: 59.98})
	require.NotNil(t, m)
	assert.Equal(t, uint32(mode720r), m.ID)
}

func TestPlanFixedPositionsAndPrimary(t *testing.T) {
	g := readGPU(t, newTestServer())
	cfg := config.DefaultConfig()
	cfg.Outputs = []config.OutputConfig{
		{Name: "DP-1", Position: &config.Position{X: 1280, Y: 0}},
		{Name: "HDMI-2", Primary: true},
	}

	plan, err := NewPlanner(nil).Plan(g, cfg)
	require.NoError(t, err)

	assert.Equal(t, display.Rect{X: 1280, Width: 1920, Height: 1080}, crtcFor(t, plan, outDP).Layout)
	assert.Equal(t, display.Rect{X: 3200, Width: 1280, Height: 720}, crtcFor(t, plan, outHDMI).Layout)
	assert.False(t, outputFor(t, plan, outDP).Primary)
	assert.True(t, outputFor(t, plan, outHDMI).Primary)
}

func TestPlanKeepsCurrentCrtc(t *testing.T) {
	s := newTestServer()
	s.Enable(crtcB, mode1080, 0, 0, randr.Rotate0, outDP)
	g := readGPU(t, s)

	plan, err := NewPlanner(nil).Plan(g, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, uint32(crtcB), crtcFor(t, plan, outDP).Crtc)
	assert.Equal(t, uint32(crtcA), crtcFor(t, plan, outHDMI).Crtc)
}

func TestPlanSwitchesOffUnusedCrtcs(t *testing.T) {
	s := newTestServer()
	s.Enable(crtcB, mode720, 1920, 0, randr.Rotate0, outHDMI)
	g := readGPU(t, s)
	cfg := config.DefaultConfig()
	cfg.Outputs = []config.OutputConfig{{Name: "HDMI-2", Enabled: enabled(false)}}

	plan, err := NewPlanner(nil).Plan(g, cfg)
	require.NoError(t, err)
	require.Len(t, plan.Crtcs, 2)
	assert.Equal(t, display.CrtcPlan{Crtc: crtcB}, plan.Crtcs[1])
	assert.Len(t, plan.Outputs, 1)
}

func TestPlanSkipsOutputsWithoutCrtc(t *testing.T) {
	s := newTestServer()
	s.AddOutput(72, "HDMI-3", []uint32{mode720}, []uint32{crtcA, crtcB})
	g := readGPU(t, s)

	plan, err := NewPlanner(nil).Plan(g, config.DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, plan.Crtcs, 2)
	assert.Len(t, plan.Outputs, 2)
}

func TestPlanRejectsBadModeSpec(t *testing.T) {
	g := readGPU(t, newTestServer())
	cfg := config.DefaultConfig()
	cfg.Outputs = []config.OutputConfig{{Name: "DP-1", Mode: "big"}}

	_, err := NewPlanner(nil).Plan(g, cfg)
	assert.Error(t, err)
}
