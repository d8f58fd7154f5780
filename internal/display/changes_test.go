package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/randrd/internal/randr"
)

func TestNeedsApply(t *testing.T) {
	current := &Plan{
		Crtcs: []CrtcPlan{
			{Crtc: crtcA, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}, Outputs: []uint32{outDP}},
		},
		Outputs: []OutputPlan{{Output: outDP, Primary: true}},
	}

	tests := []struct {
		name string
		plan func() *Plan
		want bool
	}{
		{
			name: "identical",
			plan: func() *Plan { return current },
			want: false,
		},
		{
			name: "moved",
			plan: func() *Plan {
				p := *current
				p.Crtcs = []CrtcPlan{current.Crtcs[0]}
				p.Crtcs[0].Layout.X = 10
				return &p
			},
			want: true,
		},
		{
			name: "different mode",
			plan: func() *Plan {
				p := *current
				p.Crtcs = []CrtcPlan{current.Crtcs[0]}
				p.Crtcs[0].Mode = mode720
				return &p
			},
			want: true,
		},
		{
			name: "rotated",
			plan: func() *Plan {
				p := *current
				p.Crtcs = []CrtcPlan{current.Crtcs[0]}
				p.Crtcs[0].Transform = Transform90
				return &p
			},
			want: true,
		},
		{
			name: "primary flag",
			plan: func() *Plan {
				p := *current
				p.Outputs = []OutputPlan{{Output: outDP}}
				return &p
			},
			want: true,
		},
		{
			name: "max bpc requested",
			plan: func() *Plan {
				p := *current
				p.Outputs = []OutputPlan{{Output: outDP, Primary: true, MaxBPC: 8}}
				return &p
			},
			want: true,
		},
		{
			name: "moved to another crtc",
			plan: func() *Plan {
				p := *current
				p.Crtcs = []CrtcPlan{{Crtc: crtcB, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}, Outputs: []uint32{outDP}}}
				return &p
			},
			want: true,
		},
		{
			name: "everything off",
			plan: func() *Plan { return &Plan{} },
			want: true,
		},
		{
			name: "second output added",
			plan: func() *Plan {
				p := *current
				p.Crtcs = append([]CrtcPlan{current.Crtcs[0]}, CrtcPlan{
					Crtc: crtcB, Mode: mode1080, Layout: Rect{X: 1920, Width: 1920, Height: 1080}, Outputs: []uint32{outHDMI},
				})
				p.Outputs = append([]OutputPlan{current.Outputs[0]}, OutputPlan{Output: outHDMI})
				return &p
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.Primary = outDP
			s.Enable(crtcA, mode1080, 0, 0, randr.Rotate0, outDP)
			g := readGPU(t, s)

			crtcs, outputs := resolve(t, g, tt.plan())
			assert.Equal(t, tt.want, NeedsApply(g, crtcs, outputs))
		})
	}
}

func TestNeedsApplyIgnoresUnsetMaxBPC(t *testing.T) {
	s := newTestServer()
	s.Primary = outDP
	s.Enable(crtcA, mode1080, 0, 0, randr.Rotate0, outDP)
	s.Outputs[outDP].SetInt(randr.PropMaxBPC, 8).SetRange(randr.PropMaxBPC, 6, 12)
	g := readGPU(t, s)
	require.True(t, g.OutputByID(outDP).State.HasMaxBPC)

	tests := []struct {
		name   string
		maxBPC int
		want   bool
	}{
		{"unset", 0, false},
		{"same as driver", 8, false},
		{"different", 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &Plan{
				Crtcs: []CrtcPlan{
					{Crtc: crtcA, Mode: mode1080, Layout: Rect{Width: 1920, Height: 1080}, Outputs: []uint32{outDP}},
				},
				Outputs: []OutputPlan{{Output: outDP, Primary: true, MaxBPC: tt.maxBPC}},
			}
			crtcs, outputs := resolve(t, g, plan)
			assert.Equal(t, tt.want, NeedsApply(g, crtcs, outputs))
		})
	}
}

func TestChangedOutputWithoutAssignment(t *testing.T) {
	s := newTestServer()
	s.Enable(crtcA, mode1080, 0, 0, randr.Rotate0, outDP)
	g := readGPU(t, s)
	crtc := g.CrtcByID(crtcA)
	dp := g.OutputByID(outDP)
	hdmi := g.OutputByID(outHDMI)

	// The CRTC keeps its mode but the output is not listed anywhere.
	crtcs := []*CrtcAssignment{{Crtc: crtc, Mode: crtc.Mode(), Layout: crtc.Rect}}

	assert.False(t, ChangedCrtc(crtc, crtcs))
	assert.True(t, ChangedOutput(dp, crtcs, nil), "live output without a proposal must be torn down")
	assert.False(t, ChangedOutput(hdmi, crtcs, nil), "idle output without a proposal is unchanged")
}

func TestChangedCrtcWithoutAssignment(t *testing.T) {
	s := newTestServer()
	s.Enable(crtcA, mode1080, 0, 0, randr.Rotate0, outDP)
	g := readGPU(t, s)

	assert.True(t, ChangedCrtc(g.CrtcByID(crtcA), nil))
	assert.False(t, ChangedCrtc(g.CrtcByID(crtcB), nil))
	assert.False(t, ChangedCrtc(g.CrtcByID(crtcB), []*CrtcAssignment{{Crtc: g.CrtcByID(crtcB)}}))
}

func TestCurrentPlanIsUnchanged(t *testing.T) {
	s := newTestServer()
	s.Primary = outHDMI
	s.Enable(crtcA, mode1080, 0, 0, randr.Rotate0, outDP)
	s.Enable(crtcB, mode720, 1920, 0, randr.Rotate0, outHDMI)
	g := readGPU(t, s)

	crtcs, outputs := resolve(t, g, CurrentPlan(g))
	assert.False(t, NeedsApply(g, crtcs, outputs))
}
