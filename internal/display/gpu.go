package display

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/randr"
)

// GPU owns one generation of Modes, Crtcs and Outputs read from the server.
// ReadCurrent replaces the whole generation; objects from a previous
// generation must not be kept across it.
type GPU struct {
	client randr.Client
	logger *zap.Logger

	resources  *randr.Resources
	modes      []*Mode
	crtcs      []*Crtc
	outputs    []*Output
	sizeRange  randr.SizeRange
	generation uint64
}

// NewGPU returns an empty GPU. Call ReadCurrent to populate it.
func NewGPU(client randr.Client, logger *zap.Logger) *GPU {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPU{client: client, logger: logger}
}

// ReadCurrent rereads the server state and swaps in a new generation. It
// fails only when the screen resources cannot be read, in which case the
// previous generation stays in place. Objects that cannot be read are
// skipped.
func (g *GPU) ReadCurrent() error {
	sizeRange, err := g.client.ScreenSizeRange()
	if err != nil {
		g.logger.Warn("failed to query screen size range", zap.Error(err))
		sizeRange = g.sizeRange
	}

	res, err := g.client.ScreenResources()
	if err != nil {
		return fmt.Errorf("read screen resources: %w", err)
	}
	if res == nil {
		return randr.ErrNoResources
	}

	modes := make([]*Mode, 0, len(res.Modes))
	modeIndex := make(map[uint32]*Mode, len(res.Modes))
	for _, info := range res.Modes {
		m := newMode(info)
		modes = append(modes, m)
		modeIndex[m.ID] = m
	}

	crtcs := make([]*Crtc, 0, len(res.Crtcs))
	crtcIndex := make(map[uint32]*Crtc, len(res.Crtcs))
	for _, id := range res.Crtcs {
		info, err := g.client.CrtcInfo(id, res.ConfigTimestamp)
		if err != nil {
			g.logger.Warn("skipping crtc", zap.Uint32("crtc", id), zap.Error(err))
			continue
		}
		c := newCrtc(id, info, modeIndex)
		crtcs = append(crtcs, c)
		crtcIndex[id] = c
	}

	primary, err := g.client.OutputPrimary()
	if err != nil {
		g.logger.Warn("failed to query primary output", zap.Error(err))
		primary = randr.None
	}

	builder := &outputBuilder{
		props:   randr.Properties{Client: g.client},
		modes:   modeIndex,
		crtcs:   crtcIndex,
		primary: primary,
	}
	outputs := make([]*Output, 0, len(res.Outputs))
	for _, id := range res.Outputs {
		info, err := g.client.OutputInfo(id, res.ConfigTimestamp)
		if err != nil {
			g.logger.Warn("skipping output", zap.Uint32("output", id), zap.Error(err))
			continue
		}
		if info.Connection == randr.Disconnected {
			continue
		}
		o, err := builder.build(id, info)
		if err != nil {
			g.logger.Warn("failed to read output properties",
				zap.String("output", info.Name), zap.Error(err))
		}
		if o == nil {
			g.logger.Debug("discarding output without usable modes or crtcs",
				zap.String("output", info.Name))
			continue
		}
		outputs = append(outputs, o)
	}
	sortOutputs(outputs)
	fixupClones(outputs)

	g.resources = res
	g.modes = modes
	g.crtcs = crtcs
	g.outputs = outputs
	g.sizeRange = sizeRange
	g.generation++

	g.logger.Debug("read display state",
		zap.Uint64("generation", g.generation),
		zap.Int("modes", len(modes)),
		zap.Int("crtcs", len(crtcs)),
		zap.Int("outputs", len(outputs)),
		zap.Uint32("timestamp", res.Timestamp),
		zap.Uint32("config_timestamp", res.ConfigTimestamp))
	return nil
}

func (g *GPU) Modes() []*Mode     { return g.modes }
func (g *GPU) Crtcs() []*Crtc     { return g.crtcs }
func (g *GPU) Outputs() []*Output { return g.outputs }

// Resources returns the screen resources of the current generation, or nil
// before the first successful read.
func (g *GPU) Resources() *randr.Resources { return g.resources }

// Generation counts successful rereads.
func (g *GPU) Generation() uint64 { return g.generation }

// MaxScreenSize is the largest framebuffer the server accepts.
func (g *GPU) MaxScreenSize() (width, height int) {
	return g.sizeRange.MaxWidth, g.sizeRange.MaxHeight
}

// MinScreenSize is the smallest framebuffer the server accepts.
func (g *GPU) MinScreenSize() (width, height int) {
	return g.sizeRange.MinWidth, g.sizeRange.MinHeight
}

// ScreenSize is the bounding box of all enabled CRTCs.
func (g *GPU) ScreenSize() (width, height int) {
	for _, c := range g.crtcs {
		if !c.On() {
			continue
		}
		width = max(width, c.Rect.Right())
		height = max(height, c.Rect.Bottom())
	}
	return width, height
}

func (g *GPU) CrtcByID(id uint32) *Crtc {
	for _, c := range g.crtcs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (g *GPU) OutputByID(id uint32) *Output {
	for _, o := range g.outputs {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (g *GPU) OutputByName(name string) *Output {
	for _, o := range g.outputs {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func (g *GPU) ModeByID(id uint32) *Mode {
	for _, m := range g.modes {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// OutputsOn returns the outputs currently attached to crtc.
func (g *GPU) OutputsOn(crtc *Crtc) []*Output {
	var out []*Output
	for _, o := range g.outputs {
		if o.AssignedCrtc == crtc {
			out = append(out, o)
		}
	}
	return out
}
