package backend

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/randr"
)

// ScreenSize is the root window size as last reported by the server.
type ScreenSize struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	MmWidth  int `json:"mm_width"`
	MmHeight int `json:"mm_height"`
}

// X11Backend implements Backend on top of a RandR client.
type X11Backend struct {
	client  randr.Client
	props   randr.Properties
	gpu     *display.GPU
	applier *display.Applier
	logger  *zap.Logger

	// target is the last configuration we applied or adopted; nil after an
	// external change.
	target   *display.Plan
	monitors []display.LogicalMonitor
	screen   ScreenSize

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend builds a backend and reads the initial hardware state.
func NewX11Backend(client randr.Client, logger *zap.Logger, opts ...display.ApplierOption) (*X11Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gpu := display.NewGPU(client, logger.Named("gpu"))
	b := &X11Backend{
		client:    client,
		props:     randr.Properties{Client: client},
		gpu:       gpu,
		applier:   display.NewApplier(client, gpu, logger.Named("apply"), opts...),
		logger:    logger,
		listeners: make(map[int]Listener),
	}
	if err := b.Reread(); err != nil {
		return nil, err
	}
	b.screen.Width, b.screen.Height = gpu.ScreenSize()
	return b, nil
}

func (b *X11Backend) Reread() error {
	if err := b.gpu.ReadCurrent(); err != nil {
		return err
	}
	b.monitors = display.DeriveLogicalMonitors(b.gpu)
	return nil
}

func (b *X11Backend) GPU() *display.GPU                         { return b.gpu }
func (b *X11Backend) Modes() []*display.Mode                    { return b.gpu.Modes() }
func (b *X11Backend) Crtcs() []*display.Crtc                    { return b.gpu.Crtcs() }
func (b *X11Backend) Outputs() []*display.Output                { return b.gpu.Outputs() }
func (b *X11Backend) LogicalMonitors() []display.LogicalMonitor { return b.monitors }

// Target returns the configuration the backend believes is live, or nil if
// the last change was external.
func (b *X11Backend) Target() *display.Plan { return b.target }

// ScreenSize returns the cached root window size.
func (b *X11Backend) ScreenSize() ScreenSize { return b.screen }

// LastTimestamp is the server timestamp of our last accepted change.
func (b *X11Backend) LastTimestamp() uint32 { return b.applier.LastTimestamp() }

func (b *X11Backend) ApplyConfig(plan *display.Plan, method Method) (display.ApplyResult, error) {
	var result display.ApplyResult
	if plan == nil {
		return result, fmt.Errorf("%w: no configuration", display.ErrInvalidAssignment)
	}
	crtcs, outputs, err := plan.Resolve(b.gpu)
	if err != nil {
		return result, err
	}
	if err := display.Verify(b.gpu, crtcs, outputs); err != nil {
		return result, err
	}
	if method == MethodVerify {
		return result, nil
	}

	if display.NeedsApply(b.gpu, crtcs, outputs) {
		result, err = b.applier.Apply(crtcs, outputs, display.ApplyOptions{SaveTimestamp: true})
		if err != nil {
			return result, err
		}
		if result.Width > 0 && result.Height > 0 {
			b.screen.Width, b.screen.Height = result.Width, result.Height
		}
		if result.Failures != nil {
			b.logger.Warn("configuration applied with failures",
				zap.Stringer("method", method), zap.Error(result.Failures))
		} else {
			b.logger.Info("configuration applied",
				zap.Stringer("method", method),
				zap.Int("crtcs", len(crtcs)),
				zap.Uint32("timestamp", result.Timestamp))
		}
	} else {
		b.logger.Debug("configuration unchanged, skipping apply")
	}

	b.target = plan
	b.monitors = display.LogicalMonitorsFor(crtcs, outputs)

	if method == MethodTemporary {
		b.notify(func(l Listener) { l.ConfirmConfiguration() })
	}
	return result, nil
}

func (b *X11Backend) CrtcGamma(crtc uint32) (*randr.Gamma, error) {
	if b.gpu.CrtcByID(crtc) == nil {
		return nil, fmt.Errorf("unknown crtc %d", crtc)
	}
	return b.client.CrtcGamma(crtc)
}

func (b *X11Backend) SetCrtcGamma(crtc uint32, gamma randr.Gamma) error {
	if b.gpu.CrtcByID(crtc) == nil {
		return fmt.Errorf("unknown crtc %d", crtc)
	}
	if gamma.Size() == 0 || len(gamma.Green) != gamma.Size() || len(gamma.Blue) != gamma.Size() {
		return fmt.Errorf("gamma ramp channels must be non-empty and of equal length")
	}
	return b.client.SetCrtcGamma(crtc, gamma)
}

func (b *X11Backend) output(id uint32) (*display.Output, error) {
	o := b.gpu.OutputByID(id)
	if o == nil {
		return nil, fmt.Errorf("unknown output %d", id)
	}
	return o, nil
}

func (b *X11Backend) SetOutputCTM(output uint32, ctm CTM) error {
	o, err := b.output(output)
	if err != nil {
		return err
	}
	if !o.SupportsColorTransform {
		return fmt.Errorf("output %s: %w: %s", o.Name, randr.ErrPropertyUnsupported, randr.PropCTM)
	}
	return b.props.SetUint32s(o.ID, randr.PropCTM, ctm.Words()...)
}

func (b *X11Backend) SetOutputMaxBPC(output uint32, bpc int) error {
	o, err := b.output(output)
	if err != nil {
		return err
	}
	if !o.HasMaxBPCRange {
		return fmt.Errorf("output %s: %w: %s", o.Name, randr.ErrPropertyUnsupported, randr.PropMaxBPC)
	}
	if bpc < o.MaxBPCMin || bpc > o.MaxBPCMax {
		return fmt.Errorf("%w: output %s max bpc %d outside %d-%d",
			display.ErrInvalidAssignment, o.Name, bpc, o.MaxBPCMin, o.MaxBPCMax)
	}
	if err := b.props.SetInt32s(o.ID, randr.PropMaxBPC, int32(bpc)); err != nil {
		return err
	}
	o.State.MaxBPC, o.State.HasMaxBPC = bpc, true
	return nil
}

func (b *X11Backend) SetOutputBacklight(output uint32, value int) error {
	o, err := b.output(output)
	if err != nil {
		return err
	}
	if o.Backlight == nil {
		return fmt.Errorf("output %s: %w: %s", o.Name, randr.ErrPropertyUnsupported, randr.PropBacklight)
	}
	if value < o.Backlight.Min || value > o.Backlight.Max {
		return fmt.Errorf("output %s backlight %d outside %d-%d", o.Name, value, o.Backlight.Min, o.Backlight.Max)
	}
	if err := b.props.SetInt32s(o.ID, randr.PropBacklight, int32(value)); err != nil {
		return err
	}
	o.Backlight.Value = value
	return nil
}

func (b *X11Backend) PowerSaveMode() (PowerSaveMode, error) {
	level, ok, err := b.client.PowerLevel()
	if err != nil {
		return PowerSaveUnsupported, err
	}
	if !ok {
		return PowerSaveUnsupported, nil
	}
	return PowerSaveMode(level), nil
}

func (b *X11Backend) SetPowerSaveMode(mode PowerSaveMode) error {
	if mode < PowerSaveOn || mode > PowerSaveOff {
		return fmt.Errorf("invalid power save mode %d", int(mode))
	}
	if err := b.client.SetPowerLevel(randr.PowerLevel(mode)); err != nil {
		return fmt.Errorf("set power save mode %s: %w", mode, err)
	}
	b.logger.Info("power save mode changed", zap.Stringer("mode", mode))
	return nil
}

func (b *X11Backend) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// notify calls fn for each listener in subscription order, outside the
// lock so listeners may subscribe or call back into the backend.
func (b *X11Backend) notify(fn func(Listener)) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	listeners := make([]Listener, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.Unlock()

	for _, l := range listeners {
		fn(l)
	}
}
