package display

import (
	"fmt"

	"github.com/1broseidon/randrd/internal/randr"
)

// Rect is an integer rectangle in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// CrtcConfig is the active configuration of a CRTC that scans out a mode.
type CrtcConfig struct {
	Layout    Rect
	Mode      *Mode
	Transform Transform
}

// Crtc mirrors one hardware scanout engine. A Crtc is created by a full
// reread and only otherwise changes through ApplyPatch.
type Crtc struct {
	ID            uint32
	Rect          Rect
	Transform     Transform
	AllTransforms TransformSet
	// Config is nil while the CRTC is off.
	Config *CrtcConfig
	// Dirty is set once the mirror has been patched since the last reread.
	Dirty bool
}

// CrtcPatch is the narrow set of fields the applier may change in place.
// A nil Mode turns the CRTC off.
type CrtcPatch struct {
	Layout    Rect
	Mode      *Mode
	Transform Transform
}

// Mode returns the bound mode, or nil when the CRTC is off.
func (c *Crtc) Mode() *Mode {
	if c.Config == nil {
		return nil
	}
	return c.Config.Mode
}

// On reports whether a mode is bound.
func (c *Crtc) On() bool {
	return c.Mode() != nil
}

// ApplyPatch updates the mirror after the server accepted a configuration.
func (c *Crtc) ApplyPatch(p CrtcPatch) {
	c.Dirty = true
	if p.Mode == nil {
		c.Config = nil
		c.Rect = Rect{}
		c.Transform = TransformNormal
		return
	}
	c.Config = &CrtcConfig{Layout: p.Layout, Mode: p.Mode, Transform: p.Transform}
	c.Rect = p.Layout
	c.Transform = p.Transform
}

func newCrtc(id uint32, info *randr.CrtcInfo, modes map[uint32]*Mode) *Crtc {
	c := &Crtc{
		ID: id,
		Rect: Rect{
			X:      info.X,
			Y:      info.Y,
			Width:  info.Width,
			Height: info.Height,
		},
		Transform:     TransformFromXrandr(info.Rotation),
		AllTransforms: TransformSetFromXrandr(info.Rotations),
	}
	if mode, ok := modes[info.Mode]; ok && info.Mode != randr.None {
		c.Config = &CrtcConfig{Layout: c.Rect, Mode: mode, Transform: c.Transform}
	}
	return c
}
