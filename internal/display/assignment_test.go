package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/1broseidon/randrd/internal/randr"
	"github.com/1broseidon/randrd/internal/randr/randrtest"
)

func TestPlanResolveUnknownIDs(t *testing.T) {
	g := readGPU(t, newTestServer())

	tests := []struct {
		name string
		plan Plan
	}{
		{"crtc", Plan{Crtcs: []CrtcPlan{{Crtc: 99}}}},
		{"mode", Plan{Crtcs: []CrtcPlan{{Crtc: crtcA, Mode: 99}}}},
		{"crtc output", Plan{Crtcs: []CrtcPlan{{Crtc: crtcA, Mode: mode1080, Outputs: []uint32{99}}}}},
		{"output", Plan{Outputs: []OutputPlan{{Output: 99}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.plan.Resolve(g)
			assert.ErrorIs(t, err, ErrInvalidAssignment)
		})
	}
}

func TestPlanResolveMaxBPC(t *testing.T) {
	g := readGPU(t, newTestServer())
	_, outputs, err := (&Plan{Outputs: []OutputPlan{{Output: outDP, MaxBPC: 10}, {Output: outHDMI}}}).Resolve(g)
	require.NoError(t, err)

	assert.True(t, outputs[0].HasMaxBPC)
	assert.Equal(t, 10, outputs[0].MaxBPC)
	assert.False(t, outputs[1].HasMaxBPC)
	assert.Same(t, outputs[1], FindOutputAssignment(outputs, g.OutputByID(outHDMI)))
}

func TestVerify(t *testing.T) {
	g := readGPU(t, newTestServer())
	crtcs, outputs := resolve(t, g, extendPlan())
	require.NoError(t, Verify(g, crtcs, outputs))
	require.NoError(t, Verify(g, nil, nil))
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *randrtest.Server)
		plan  *Plan
	}{
		{
			name: "mode not supported by output",
			setup: func(s *randrtest.Server) {
				s.AddMode(44, 3840, 2160, 533250000, 4000, 2222)
			},
			plan: &Plan{Crtcs: []CrtcPlan{{Crtc: crtcA, Mode: 44, Layout: Rect{Width: 3840, Height: 2160}, Outputs: []uint32{outDP}}}},
		},
		{
			name: "crtc not possible for output",
			setup: func(s *randrtest.Server) {
				s.Outputs[outDP].Info.Crtcs = []uint32{crtcA}
			},
			plan: &Plan{Crtcs: []CrtcPlan{{Crtc: crtcB, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}, Outputs: []uint32{outDP}}}},
		},
		{
			name:  "unsupported transform",
			setup: func(*randrtest.Server) {},
			plan:  &Plan{Crtcs: []CrtcPlan{{Crtc: crtcB, Mode: mode1080, Transform: Transform90, Layout: Rect{Width: 1080, Height: 1920}, Outputs: []uint32{outDP}}}},
		},
		{
			name: "screen too large",
			setup: func(s *randrtest.Server) {
				s.SizeRange.MaxWidth = 2048
			},
			plan: extendPlan(),
		},
		{
			name:  "output on two crtcs",
			setup: func(*randrtest.Server) {},
			plan: &Plan{Crtcs: []CrtcPlan{
				{Crtc: crtcA, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}, Outputs: []uint32{outDP}},
				{Crtc: crtcB, Mode: mode1080, Layout: Rect{X: 1920, Width: 1920, Height: 1080}, Outputs: []uint32{outDP}},
			}},
		},
		{
			name:  "mode without outputs",
			setup: func(*randrtest.Server) {},
			plan:  &Plan{Crtcs: []CrtcPlan{{Crtc: crtcA, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}}}},
		},
		{
			name:  "outputs without mode",
			setup: func(*randrtest.Server) {},
			plan:  &Plan{Crtcs: []CrtcPlan{{Crtc: crtcA, Outputs: []uint32{outDP}}}},
		},
		{
			name:  "underscan unsupported",
			setup: func(*randrtest.Server) {},
			plan: &Plan{
				Crtcs:   []CrtcPlan{{Crtc: crtcA, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}, Outputs: []uint32{outDP}}},
				Outputs: []OutputPlan{{Output: outDP, Underscan: true}},
			},
		},
		{
			name: "max bpc out of range",
			setup: func(s *randrtest.Server) {
				s.Outputs[outDP].SetRange(randr.PropMaxBPC, 6, 12)
			},
			plan: &Plan{
				Crtcs:   []CrtcPlan{{Crtc: crtcA, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}, Outputs: []uint32{outDP}}},
				Outputs: []OutputPlan{{Output: outDP, MaxBPC: 16}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			tt.setup(s)
			g := readGPU(t, s)

			crtcs, outputs := resolve(t, g, tt.plan)
			err := Verify(g, crtcs, outputs)
			require.Error(t, err)
			for _, e := range multierr.Errors(err) {
				assert.ErrorIs(t, e, ErrInvalidAssignment)
			}
		})
	}
}

func TestCrtcApplyPatch(t *testing.T) {
	m := &Mode{ID: 1, Name: "800x600", Width: 800, Height: 600}
	c := &Crtc{ID: 3}

	c.ApplyPatch(CrtcPatch{Layout: Rect{X: 10, Width: 600, Height: 800}, Mode: m, Transform: Transform90})
	require.True(t, c.On())
	assert.Same(t, m, c.Mode())
	assert.Equal(t, Rect{X: 10, Width: 600, Height: 800}, c.Rect)
	assert.Equal(t, Transform90, c.Transform)
	assert.True(t, c.Dirty)

	c.ApplyPatch(CrtcPatch{})
	assert.False(t, c.On())
	assert.Nil(t, c.Config)
	assert.Equal(t, TransformNormal, c.Transform)
}

func TestDeriveLogicalMonitors(t *testing.T) {
	s := newTestServer()
	s.Primary = outHDMI
	s.Enable(crtcA, mode1080, 1280, 0, randr.Rotate0, outDP)
	s.Enable(crtcB, mode720, 0, 0, randr.Rotate0, outHDMI)
	g := readGPU(t, s)

	monitors := DeriveLogicalMonitors(g)
	require.Len(t, monitors, 2)
	assert.Equal(t, []string{"HDMI-2"}, monitors[0].Outputs)
	assert.True(t, monitors[0].Primary)
	assert.Equal(t, "1280x720", monitors[0].Mode)
	assert.Equal(t, []string{"DP-1"}, monitors[1].Outputs)
	assert.Equal(t, Rect{X: 1280, Width: 1920, Height: 1080}, monitors[1].Layout)
	assert.False(t, monitors[1].Primary)
}

func TestLogicalMonitorsFor(t *testing.T) {
	g := readGPU(t, newTestServer())
	crtcs, outputs := resolve(t, g, extendPlan())

	monitors := LogicalMonitorsFor(crtcs, outputs)
	require.Len(t, monitors, 2)
	assert.Equal(t, []string{"DP-1"}, monitors[0].Outputs)
	assert.True(t, monitors[0].Primary)
	assert.Equal(t, Rect{X: 1920, Width: 1280, Height: 720}, monitors[1].Layout)
	assert.False(t, monitors[1].Primary)

	// Nothing is live yet, so the hardware view is still empty.
	assert.Empty(t, DeriveLogicalMonitors(g))
}
