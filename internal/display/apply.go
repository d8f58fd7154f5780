package display

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/randr"
)

const (
	// DefaultDPI is used to derive the physical screen size reported to
	// clients, since a multi-monitor screen has no meaningful one.
	DefaultDPI = 96.0
	// DefaultUnderscanBorderPercent is the underscan border as a percentage
	// of the mode size.
	DefaultUnderscanBorderPercent = 5
)

// ApplyOptions controls a single apply.
type ApplyOptions struct {
	// SaveTimestamp records the server timestamp of each accepted CRTC
	// change so the resulting screen change event is recognised as ours.
	SaveTimestamp bool
}

// ApplyResult reports what an apply did.
type ApplyResult struct {
	// Timestamp is the last timestamp saved during this apply, if any.
	Timestamp uint32
	// Width and Height are the new screen size; both are zero when no
	// resize happened.
	Width  int
	Height int
	// Failures combines the non-fatal per-CRTC and per-output failures.
	Failures error
}

// Applier pushes CRTC and output assignments to the server.
type Applier struct {
	client randr.Client
	gpu    *GPU
	props  randr.Properties
	logger *zap.Logger

	dpi           float64
	borderPercent int
	lastTimestamp uint32
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithDPI sets the DPI used to derive the screen's physical size.
func WithDPI(dpi float64) ApplierOption {
	return func(a *Applier) {
		if dpi > 0 {
			a.dpi = dpi
		}
	}
}

// WithUnderscanBorder sets the underscan border percentage.
func WithUnderscanBorder(percent int) ApplierOption {
	return func(a *Applier) {
		if percent >= 0 {
			a.borderPercent = percent
		}
	}
}

func NewApplier(client randr.Client, gpu *GPU, logger *zap.Logger, opts ...ApplierOption) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Applier{
		client:        client,
		gpu:           gpu,
		props:         randr.Properties{Client: client},
		logger:        logger,
		dpi:           DefaultDPI,
		borderPercent: DefaultUnderscanBorderPercent,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LastTimestamp is the timestamp of the last saved self-initiated change.
func (a *Applier) LastTimestamp() uint32 {
	return a.lastTimestamp
}

// Apply configures the server so that exactly the given CRTCs are on, in
// phases under a server grab: disable CRTCs that are going away or would
// fall outside the new screen, resize the screen, configure each CRTC,
// write per-output properties and release outputs left without a CRTC.
// A CRTC the server rejects is logged and skipped; only missing resources
// abort the apply.
func (a *Applier) Apply(crtcs []*CrtcAssignment, outputs []*OutputAssignment, opts ApplyOptions) (ApplyResult, error) {
	var result ApplyResult

	res := a.gpu.Resources()
	if res == nil {
		return result, randr.ErrNoResources
	}
	if res.ConfigTimestamp == 0 {
		return result, ErrNoConfigTimestamp
	}

	if err := a.client.GrabServer(); err != nil {
		return result, fmt.Errorf("grab server: %w", err)
	}
	defer func() {
		if err := a.client.UngrabServer(); err != nil {
			a.logger.Warn("failed to ungrab server", zap.Error(err))
		}
		if err := a.client.Sync(); err != nil {
			a.logger.Warn("failed to flush display connection", zap.Error(err))
		}
	}()

	unconfigured := make(map[*Output]bool, len(a.gpu.Outputs()))
	for _, o := range a.gpu.Outputs() {
		unconfigured[o] = true
	}
	assigned := make(map[*Crtc]bool, len(crtcs))

	width, height := 0, 0
	for _, ca := range crtcs {
		assigned[ca.Crtc] = true
		if ca.Mode == nil {
			continue
		}
		width = max(width, ca.Layout.Right())
		height = max(height, ca.Layout.Bottom())
	}

	for _, ca := range crtcs {
		c := ca.Crtc
		if !c.On() {
			continue
		}
		if ca.Mode == nil || c.Config.Layout.Right() > width || c.Config.Layout.Bottom() > height {
			result.Failures = multierr.Append(result.Failures, a.disable(c, res, opts, &result))
		}
	}
	for _, c := range a.gpu.Crtcs() {
		if assigned[c] || !c.On() {
			continue
		}
		result.Failures = multierr.Append(result.Failures, a.disable(c, res, opts, &result))
	}

	if len(crtcs) == 0 || width == 0 || height == 0 {
		a.releaseOrphans(unconfigured, nil)
		return result, nil
	}

	mmWidth := int(float64(width)/a.dpi*25.4 + 0.5)
	mmHeight := int(float64(height)/a.dpi*25.4 + 0.5)
	if err := a.client.SetScreenSize(width, height, mmWidth, mmHeight); err != nil {
		a.logger.Warn("failed to resize screen",
			zap.Int("width", width), zap.Int("height", height), zap.Error(err))
		result.Failures = multierr.Append(result.Failures, fmt.Errorf("resize screen to %dx%d: %w", width, height, err))
	} else {
		result.Width, result.Height = width, height
	}

	failed := make(map[*Crtc]bool)
	for _, ca := range crtcs {
		if ca.Mode == nil {
			continue
		}
		if err := a.configure(ca, res, opts, &result); err != nil {
			failed[ca.Crtc] = true
			result.Failures = multierr.Append(result.Failures, err)
			continue
		}
		for _, o := range ca.Outputs {
			delete(unconfigured, o)
			var state OutputState
			if oa := FindOutputAssignment(outputs, o); oa != nil {
				state = oa.OutputState
			}
			o.Assign(ca.Crtc, state)
		}
	}

	for _, oa := range outputs {
		o := oa.Output
		if o.AssignedCrtc == nil || !o.AssignedCrtc.On() || unconfigured[o] {
			continue
		}
		result.Failures = multierr.Append(result.Failures, a.applyOutputProperties(o))
	}

	a.releaseOrphans(unconfigured, failed)
	return result, nil
}

func (a *Applier) disable(c *Crtc, res *randr.Resources, opts ApplyOptions, result *ApplyResult) error {
	status, ts, err := a.client.SetCrtcConfig(randr.CrtcConfig{
		Crtc:            c.ID,
		ConfigTimestamp: res.ConfigTimestamp,
		Mode:            randr.None,
		Rotation:        randr.Rotate0,
	})
	if err == nil && status != randr.SetConfigSuccess {
		err = fmt.Errorf("%w: %s", ErrCrtcRejected, status)
	}
	if err != nil {
		a.logger.Warn("failed to disable crtc", zap.Uint32("crtc", c.ID), zap.Error(err))
		return fmt.Errorf("disable crtc %d: %w", c.ID, err)
	}
	a.saveTimestamp(ts, opts, result)

	c.ApplyPatch(CrtcPatch{})
	for _, o := range a.gpu.OutputsOn(c) {
		o.Unassign()
	}
	return nil
}

func (a *Applier) configure(ca *CrtcAssignment, res *randr.Resources, opts ApplyOptions, result *ApplyResult) error {
	ids := make([]uint32, len(ca.Outputs))
	for i, o := range ca.Outputs {
		ids[i] = o.ID
	}
	status, ts, err := a.client.SetCrtcConfig(randr.CrtcConfig{
		Crtc:            ca.Crtc.ID,
		ConfigTimestamp: res.ConfigTimestamp,
		X:               ca.Layout.X,
		Y:               ca.Layout.Y,
		Mode:            ca.Mode.ID,
		Rotation:        ca.Transform.ToXrandr(),
		Outputs:         ids,
	})
	if err == nil && status != randr.SetConfigSuccess {
		err = fmt.Errorf("%w: %s", ErrCrtcRejected, status)
	}
	if err != nil {
		a.logger.Warn("failed to configure crtc",
			zap.Uint32("crtc", ca.Crtc.ID),
			zap.Uint32("mode", ca.Mode.ID),
			zap.Stringer("size", ca.Mode),
			zap.Int("x", ca.Layout.X),
			zap.Int("y", ca.Layout.Y),
			zap.Stringer("transform", ca.Transform),
			zap.Error(err))
		return fmt.Errorf("configure crtc %d: %w", ca.Crtc.ID, err)
	}
	a.saveTimestamp(ts, opts, result)

	ca.Crtc.ApplyPatch(CrtcPatch{Layout: ca.Layout, Mode: ca.Mode, Transform: ca.Transform})
	return nil
}

func (a *Applier) saveTimestamp(ts uint32, opts ApplyOptions, result *ApplyResult) {
	if !opts.SaveTimestamp {
		return
	}
	a.lastTimestamp = ts
	result.Timestamp = ts
}

// applyOutputProperties writes primary, presentation, underscan and max
// bpc for an output that ended up attached to a live CRTC.
func (a *Applier) applyOutputProperties(o *Output) error {
	var errs error
	fail := func(what string, err error) {
		if err == nil {
			return
		}
		a.logger.Warn("failed to set output property",
			zap.String("output", o.Name), zap.String("property", what), zap.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("output %s %s: %w", o.Name, what, err))
	}

	if o.State.Primary {
		fail("primary", a.client.SetOutputPrimary(o.ID))
	}

	presentation := int32(0)
	if o.State.Presentation {
		presentation = 1
	}
	fail(randr.PropPresentation, a.props.SetInt32s(o.ID, randr.PropPresentation, presentation))

	if o.SupportsUnderscanning {
		fail(randr.PropUnderscan, a.setUnderscan(o))
	}

	if o.State.HasMaxBPC && o.HasMaxBPCRange &&
		o.State.MaxBPC >= o.MaxBPCMin && o.State.MaxBPC <= o.MaxBPCMax {
		fail(randr.PropMaxBPC, a.props.SetInt32s(o.ID, randr.PropMaxBPC, int32(o.State.MaxBPC)))
	}
	return errs
}

func (a *Applier) setUnderscan(o *Output) error {
	value := "off"
	if o.State.Underscan {
		value = "on"
	}
	if err := a.props.SetAtom(o.ID, randr.PropUnderscan, value); err != nil {
		return err
	}
	if !o.State.Underscan {
		return nil
	}
	mode := o.AssignedCrtc.Mode()
	hborder := int32(mode.Width * a.borderPercent / 100)
	vborder := int32(mode.Height * a.borderPercent / 100)
	if err := a.props.SetInt32s(o.ID, randr.PropUnderscanHBorder, hborder); err != nil {
		return err
	}
	return a.props.SetInt32s(o.ID, randr.PropUnderscanVBorder, vborder)
}

// releaseOrphans clears the CRTC of outputs that no assignment configured.
// Outputs still shown by a CRTC whose reconfiguration failed keep it.
func (a *Applier) releaseOrphans(unconfigured map[*Output]bool, failed map[*Crtc]bool) {
	for _, o := range a.gpu.Outputs() {
		if !unconfigured[o] || o.AssignedCrtc == nil {
			continue
		}
		if failed[o.AssignedCrtc] && o.AssignedCrtc.On() {
			continue
		}
		o.Unassign()
	}
}
