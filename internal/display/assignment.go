package display

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrNoConfigTimestamp is returned when the resources carry no
	// configuration timestamp to correlate CRTC requests against.
	ErrNoConfigTimestamp = errors.New("display: no configuration timestamp")
	// ErrCrtcRejected wraps a CRTC configuration the server refused.
	ErrCrtcRejected = errors.New("display: crtc configuration rejected")
	// ErrInvalidAssignment wraps assignment validation failures.
	ErrInvalidAssignment = errors.New("display: invalid assignment")
)

// CrtcAssignment is the requested state of one CRTC. A nil Mode disables
// it. Layout is the rectangle the CRTC covers after its transform.
type CrtcAssignment struct {
	Crtc      *Crtc
	Mode      *Mode
	Layout    Rect
	Transform Transform
	Outputs   []*Output
}

// OutputAssignment is the requested per-output state.
type OutputAssignment struct {
	Output *Output
	OutputState
}

// FindOutputAssignment returns the assignment for o, or nil.
func FindOutputAssignment(assignments []*OutputAssignment, o *Output) *OutputAssignment {
	for _, a := range assignments {
		if a.Output == o {
			return a
		}
	}
	return nil
}

// CrtcPlan is a CRTC assignment by hardware id. Mode 0 disables the CRTC.
type CrtcPlan struct {
	Crtc      uint32    `json:"crtc"`
	Mode      uint32    `json:"mode"`
	Layout    Rect      `json:"layout"`
	Transform Transform `json:"transform"`
	Outputs   []uint32  `json:"outputs"`
}

// OutputPlan is an output assignment by hardware id.
type OutputPlan struct {
	Output       uint32 `json:"output"`
	Primary      bool   `json:"primary,omitempty"`
	Presentation bool   `json:"presentation,omitempty"`
	Underscan    bool   `json:"underscan,omitempty"`
	MaxBPC       int    `json:"max_bpc,omitempty"`
}

// Plan is a configuration expressed in hardware ids so it can outlive the
// GPU generation it was computed from. Resolve binds it to a generation.
type Plan struct {
	Crtcs   []CrtcPlan   `json:"crtcs"`
	Outputs []OutputPlan `json:"outputs"`
}

// Resolve binds the plan to the objects of the GPU's current generation.
func (p *Plan) Resolve(g *GPU) ([]*CrtcAssignment, []*OutputAssignment, error) {
	crtcs := make([]*CrtcAssignment, 0, len(p.Crtcs))
	for _, cp := range p.Crtcs {
		crtc := g.CrtcByID(cp.Crtc)
		if crtc == nil {
			return nil, nil, fmt.Errorf("%w: unknown crtc %d", ErrInvalidAssignment, cp.Crtc)
		}
		a := &CrtcAssignment{Crtc: crtc, Layout: cp.Layout, Transform: cp.Transform}
		if cp.Mode != 0 {
			if a.Mode = g.ModeByID(cp.Mode); a.Mode == nil {
				return nil, nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidAssignment, cp.Mode)
			}
		}
		for _, id := range cp.Outputs {
			o := g.OutputByID(id)
			if o == nil {
				return nil, nil, fmt.Errorf("%w: unknown output %d", ErrInvalidAssignment, id)
			}
			a.Outputs = append(a.Outputs, o)
		}
		crtcs = append(crtcs, a)
	}

	outputs := make([]*OutputAssignment, 0, len(p.Outputs))
	for _, op := range p.Outputs {
		o := g.OutputByID(op.Output)
		if o == nil {
			return nil, nil, fmt.Errorf("%w: unknown output %d", ErrInvalidAssignment, op.Output)
		}
		outputs = append(outputs, &OutputAssignment{
			Output: o,
			OutputState: OutputState{
				Primary:      op.Primary,
				Presentation: op.Presentation,
				Underscan:    op.Underscan,
				MaxBPC:       op.MaxBPC,
				HasMaxBPC:    op.MaxBPC > 0,
			},
		})
	}
	return crtcs, outputs, nil
}

// CurrentPlan captures the GPU's live configuration as a plan.
func CurrentPlan(g *GPU) *Plan {
	p := &Plan{}
	for _, c := range g.Crtcs() {
		if !c.On() {
			continue
		}
		cp := CrtcPlan{
			Crtc:      c.ID,
			Mode:      c.Mode().ID,
			Layout:    c.Config.Layout,
			Transform: c.Config.Transform,
		}
		for _, o := range g.OutputsOn(c) {
			cp.Outputs = append(cp.Outputs, o.ID)
			op := OutputPlan{
				Output:       o.ID,
				Primary:      o.State.Primary,
				Presentation: o.State.Presentation,
				Underscan:    o.State.Underscan,
			}
			if o.State.HasMaxBPC {
				op.MaxBPC = o.State.MaxBPC
			}
			p.Outputs = append(p.Outputs, op)
		}
		p.Crtcs = append(p.Crtcs, cp)
	}
	return p
}

// Verify checks the assignments against the GPU's capabilities without
// touching the server. All problems found are returned combined.
func Verify(g *GPU, crtcs []*CrtcAssignment, outputs []*OutputAssignment) error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidAssignment}, args...)...))
	}

	seenCrtcs := make(map[*Crtc]bool)
	seenOutputs := make(map[*Output]bool)
	width, height := 0, 0
	for _, a := range crtcs {
		if a.Crtc == nil || g.CrtcByID(a.Crtc.ID) != a.Crtc {
			invalid("crtc not part of the current generation")
			continue
		}
		if seenCrtcs[a.Crtc] {
			invalid("crtc %d assigned twice", a.Crtc.ID)
		}
		seenCrtcs[a.Crtc] = true

		if a.Mode == nil {
			if len(a.Outputs) > 0 {
				invalid("crtc %d has outputs but no mode", a.Crtc.ID)
			}
			continue
		}
		if g.ModeByID(a.Mode.ID) != a.Mode {
			invalid("mode %s not part of the current generation", a.Mode.Name)
		}
		if !a.Crtc.AllTransforms.Has(a.Transform) {
			invalid("crtc %d does not support transform %s", a.Crtc.ID, a.Transform)
		}
		if a.Layout.Empty() {
			invalid("crtc %d has an empty layout", a.Crtc.ID)
		}
		if len(a.Outputs) == 0 {
			invalid("crtc %d has a mode but no outputs", a.Crtc.ID)
		}
		for _, o := range a.Outputs {
			if seenOutputs[o] {
				invalid("output %s assigned to more than one crtc", o.Name)
			}
			seenOutputs[o] = true
			if !o.SupportsMode(a.Mode) {
				invalid("output %s does not support mode %s", o.Name, a.Mode)
			}
			if !o.CanUseCrtc(a.Crtc) {
				invalid("output %s cannot be driven by crtc %d", o.Name, a.Crtc.ID)
			}
		}
		width = max(width, a.Layout.Right())
		height = max(height, a.Layout.Bottom())
	}

	for _, oa := range outputs {
		if oa.Output == nil || g.OutputByID(oa.Output.ID) != oa.Output {
			invalid("output not part of the current generation")
			continue
		}
		o := oa.Output
		if oa.Underscan && !o.SupportsUnderscanning {
			invalid("output %s does not support underscanning", o.Name)
		}
		if oa.HasMaxBPC && o.HasMaxBPCRange && (oa.MaxBPC < o.MaxBPCMin || oa.MaxBPC > o.MaxBPCMax) {
			invalid("output %s max bpc %d outside %d-%d", o.Name, oa.MaxBPC, o.MaxBPCMin, o.MaxBPCMax)
		}
	}

	maxW, maxH := g.MaxScreenSize()
	if maxW > 0 && maxH > 0 && (width > maxW || height > maxH) {
		invalid("screen size %dx%d exceeds maximum %dx%d", width, height, maxW, maxH)
	}
	return errs
}
