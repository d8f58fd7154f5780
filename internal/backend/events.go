package backend

import (
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/randr"
)

// HandleScreenChange processes a RandR screen change notification: it
// updates the cached screen size, rereads the hardware and classifies the
// change before notifying listeners.
func (b *X11Backend) HandleScreenChange(ev randr.ScreenChange) {
	b.updateScreenSize(ev)

	if err := b.gpu.ReadCurrent(); err != nil {
		b.logger.Error("failed to reread display state after screen change", zap.Error(err))
		return
	}
	res := b.gpu.Resources()

	reason := classify(res, b.applier.LastTimestamp())
	switch reason {
	case ReasonSelfApplied:
		b.monitors = b.monitorsForTarget()
	default:
		b.target = nil
		b.monitors = display.DeriveLogicalMonitors(b.gpu)
	}

	b.logger.Debug("screen changed",
		zap.Stringer("reason", reason),
		zap.Uint32("timestamp", res.Timestamp),
		zap.Uint32("config_timestamp", res.ConfigTimestamp),
		zap.Int("width", b.screen.Width),
		zap.Int("height", b.screen.Height))
	b.notify(func(l Listener) { l.HardwareChanged(reason) })
}

func classify(res *randr.Resources, lastApplied uint32) Reason {
	switch {
	case res.Timestamp < res.ConfigTimestamp:
		return ReasonPendingReconfigure
	case res.Timestamp == lastApplied:
		return ReasonSelfApplied
	default:
		return ReasonExternal
	}
}

// monitorsForTarget rebuilds the logical layout from the known target. A
// target that no longer resolves against the new generation falls back to
// the live state.
func (b *X11Backend) monitorsForTarget() []display.LogicalMonitor {
	if b.target == nil {
		return display.DeriveLogicalMonitors(b.gpu)
	}
	crtcs, outputs, err := b.target.Resolve(b.gpu)
	if err != nil {
		b.logger.Warn("applied configuration no longer matches hardware", zap.Error(err))
		return display.DeriveLogicalMonitors(b.gpu)
	}
	return display.LogicalMonitorsFor(crtcs, outputs)
}

func (b *X11Backend) updateScreenSize(ev randr.ScreenChange) {
	size := ScreenSize{
		Width:    ev.Width,
		Height:   ev.Height,
		MmWidth:  ev.MmWidth,
		MmHeight: ev.MmHeight,
	}
	if ev.Rotation&(randr.Rotate90|randr.Rotate270) != 0 {
		size.Width, size.Height = size.Height, size.Width
		size.MmWidth, size.MmHeight = size.MmHeight, size.MmWidth
	}
	b.screen = size
}
