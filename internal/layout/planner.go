// Package layout decides which configuration the daemon applies for the
// connected outputs.
package layout

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/config"
	"github.com/1broseidon/randrd/internal/display"
)

// refreshTolerance is how far a mode's computed rate may be from a
// configured one, so 59.94 Hz modes match "@60".
const refreshTolerance = 0.5

// Planner turns a hardware snapshot and the user's overrides into a Plan.
type Planner struct {
	logger *zap.Logger
}

func NewPlanner(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

type placement struct {
	output    *display.Output
	override  *config.OutputConfig
	crtc      *display.Crtc
	mode      *display.Mode
	transform display.Transform
	rect      display.Rect
}

// Plan computes a configuration for every connected desktop output of g.
// Outputs without a usable mode or a free CRTC are left off and logged.
func (p *Planner) Plan(g *display.GPU, cfg *config.Config) (*display.Plan, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	used := make(map[*display.Crtc]bool)
	var placed []*placement
	for _, o := range g.Outputs() {
		if o.NonDesktop {
			p.logger.Debug("skipping non-desktop output", zap.String("output", o.Name))
			continue
		}
		override := cfg.OutputFor(o.Name, o.Vendor, o.Product, o.Serial)
		if override != nil && !override.IsEnabled() {
			p.logger.Debug("output disabled by config", zap.String("output", o.Name))
			continue
		}

		pl := &placement{output: o, override: override, transform: o.PanelOrientation}
		mode, err := p.pickMode(o, override)
		if err != nil {
			return nil, err
		}
		if mode == nil {
			p.logger.Warn("output has no modes", zap.String("output", o.Name))
			continue
		}
		pl.mode = mode
		if override != nil && override.Transform != "" {
			t, err := override.TransformValue()
			if err != nil {
				return nil, fmt.Errorf("output %s: %w", o.Name, err)
			}
			pl.transform = t
		}

		pl.crtc = pickCrtc(o, pl.transform, used)
		if pl.crtc == nil && pl.transform != display.TransformNormal && (override == nil || override.Transform == "") {
			// The panel orientation is only a hint; scan out upright instead.
			pl.transform = display.TransformNormal
			pl.crtc = pickCrtc(o, pl.transform, used)
		}
		if pl.crtc == nil {
			p.logger.Warn("no free crtc for output",
				zap.String("output", o.Name),
				zap.Stringer("transform", pl.transform))
			continue
		}
		used[pl.crtc] = true

		w, h := mode.Width, mode.Height
		if pl.transform.Rotated() {
			w, h = h, w
		}
		pl.rect = display.Rect{Width: w, Height: h}
		placed = append(placed, pl)
	}

	arrange(placed, cfg.ExtendDirection)
	return buildPlan(g, placed), nil
}

// pickMode returns the configured mode, or the preferred one when the
// output has no mode override. A configured mode the output cannot drive
// falls back to the preferred mode.
func (p *Planner) pickMode(o *display.Output, override *config.OutputConfig) (*display.Mode, error) {
	if override == nil || override.Mode == "" {
		return o.PreferredMode(), nil
	}
	spec, err := config.ParseModeSpec(override.Mode)
	if err != nil {
		return nil, fmt.Errorf("output %s: %w", o.Name, err)
	}
	if m := matchMode(o.Modes, spec); m != nil {
		return m, nil
	}
	p.logger.Warn("configured mode not available, using preferred mode",
		zap.String("output", o.Name),
		zap.String("mode", override.Mode))
	return o.PreferredMode(), nil
}

// matchMode finds the mode with the requested size whose refresh rate is
// closest to the requested one. Modes are scanned in preference order so
// an unspecified rate picks the most preferred mode of that size.
func matchMode(modes []*display.Mode, spec config.ModeSpec) *display.Mode {
	var best *display.Mode
	bestDelta := math.Inf(1)
	for _, m := range modes {
		if m.Width != spec.Width || m.Height != spec.Height {
			continue
		}
		if spec.Refresh == 0 {
			return m
		}
		delta := math.Abs(m.RefreshRate - spec.Refresh)
		if delta < bestDelta {
			best, bestDelta = m, delta
		}
	}
	if bestDelta > refreshTolerance {
		return nil
	}
	return best
}

// pickCrtc keeps the output on its current CRTC when that still works,
// otherwise takes the first free compatible one.
func pickCrtc(o *display.Output, t display.Transform, used map[*display.Crtc]bool) *display.Crtc {
	usable := func(c *display.Crtc) bool {
		return c != nil && !used[c] && o.CanUseCrtc(c) && c.AllTransforms.Has(t)
	}
	if usable(o.AssignedCrtc) {
		return o.AssignedCrtc
	}
	for _, c := range o.PossibleCrtcs {
		if usable(c) {
			return c
		}
	}
	return nil
}

// arrange positions every placement. Outputs with a configured position
// keep it; the rest are chained in the extend direction after the
// bounding box of the fixed ones.
func arrange(placed []*placement, dir config.ExtendDirection) {
	var auto []*placement
	originX, originY := 0, 0
	for _, pl := range placed {
		if pl.override != nil && pl.override.Position != nil {
			pl.rect.X = pl.override.Position.X
			pl.rect.Y = pl.override.Position.Y
			switch dir {
			case config.ExtendDown, config.ExtendUp:
				originY = max(originY, pl.rect.Bottom())
			default:
				originX = max(originX, pl.rect.Right())
			}
			continue
		}
		auto = append(auto, pl)
	}

	// Extending left or up is chaining the reversed list right or down.
	if dir == config.ExtendLeft || dir == config.ExtendUp {
		for i, j := 0, len(auto)-1; i < j; i, j = i+1, j-1 {
			auto[i], auto[j] = auto[j], auto[i]
		}
	}

	x, y := originX, originY
	for _, pl := range auto {
		pl.rect.X, pl.rect.Y = x, y
		switch dir {
		case config.ExtendDown, config.ExtendUp:
			y += pl.rect.Height
		default:
			x += pl.rect.Width
		}
	}
}

func buildPlan(g *display.GPU, placed []*placement) *display.Plan {
	plan := &display.Plan{}

	primary := -1
	for i, pl := range placed {
		if pl.override != nil && pl.override.Primary {
			primary = i
			break
		}
	}
	if primary < 0 && len(placed) > 0 {
		primary = 0
	}

	for i, pl := range placed {
		plan.Crtcs = append(plan.Crtcs, display.CrtcPlan{
			Crtc:      pl.crtc.ID,
			Mode:      pl.mode.ID,
			Layout:    pl.rect,
			Transform: pl.transform,
			Outputs:   []uint32{pl.output.ID},
		})

		op := display.OutputPlan{Output: pl.output.ID, Primary: i == primary}
		if pl.override != nil {
			op.Presentation = pl.override.Presentation
			op.Underscan = pl.override.Underscan && pl.output.SupportsUnderscanning
			op.MaxBPC = pl.override.MaxBPC
		}
		plan.Outputs = append(plan.Outputs, op)
	}

	// CRTCs not used by the layout are switched off explicitly.
	lit := make(map[uint32]bool, len(placed))
	for _, pl := range placed {
		lit[pl.crtc.ID] = true
	}
	for _, c := range g.Crtcs() {
		if !lit[c.ID] && c.On() {
			plan.Crtcs = append(plan.Crtcs, display.CrtcPlan{Crtc: c.ID})
		}
	}
	return plan
}
