package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/dpms"
	xrandr "github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"

	"github.com/1broseidon/randrd/internal/randr"
)

// propertyLength bounds property reads, in 32-bit units.
const propertyLength = 4096

var _ randr.Client = (*Connection)(nil)

func (c *Connection) ScreenResources() (*randr.Resources, error) {
	reply, err := xrandr.GetScreenResourcesCurrent(c.conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", randr.ErrNoResources, err)
	}
	if reply == nil {
		return nil, randr.ErrNoResources
	}

	res := &randr.Resources{
		Timestamp:       uint32(reply.Timestamp),
		ConfigTimestamp: uint32(reply.ConfigTimestamp),
		Crtcs:           make([]uint32, len(reply.Crtcs)),
		Outputs:         make([]uint32, len(reply.Outputs)),
		Modes:           make([]randr.ModeInfo, len(reply.Modes)),
	}
	for i, crtc := range reply.Crtcs {
		res.Crtcs[i] = uint32(crtc)
	}
	for i, out := range reply.Outputs {
		res.Outputs[i] = uint32(out)
	}

	// Mode names are packed back to back in the order of the modes.
	names := reply.Names
	for i, m := range reply.Modes {
		var name string
		if n := int(m.NameLen); n <= len(names) {
			name, names = string(names[:n]), names[n:]
		}
		res.Modes[i] = randr.ModeInfo{
			ID:       m.Id,
			Name:     name,
			Width:    m.Width,
			Height:   m.Height,
			DotClock: m.DotClock,
			HTotal:   m.Htotal,
			VTotal:   m.Vtotal,
			Flags:    m.ModeFlags,
		}
	}
	return res, nil
}

func (c *Connection) CrtcInfo(crtc, configTimestamp uint32) (*randr.CrtcInfo, error) {
	reply, err := xrandr.GetCrtcInfo(c.conn(), xrandr.Crtc(crtc), xproto.Timestamp(configTimestamp)).Reply()
	if err != nil {
		return nil, fmt.Errorf("get crtc %d info: %w", crtc, err)
	}
	if randr.SetConfigStatus(reply.Status) != randr.SetConfigSuccess {
		return nil, fmt.Errorf("get crtc %d info: %s", crtc, randr.SetConfigStatus(reply.Status))
	}
	info := &randr.CrtcInfo{
		Timestamp: uint32(reply.Timestamp),
		X:         int(reply.X),
		Y:         int(reply.Y),
		Width:     int(reply.Width),
		Height:    int(reply.Height),
		Mode:      uint32(reply.Mode),
		Rotation:  reply.Rotation,
		Rotations: reply.Rotations,
		Outputs:   make([]uint32, len(reply.Outputs)),
		Possible:  make([]uint32, len(reply.Possible)),
	}
	for i, o := range reply.Outputs {
		info.Outputs[i] = uint32(o)
	}
	for i, o := range reply.Possible {
		info.Possible[i] = uint32(o)
	}
	return info, nil
}

func (c *Connection) OutputInfo(output, configTimestamp uint32) (*randr.OutputInfo, error) {
	reply, err := xrandr.GetOutputInfo(c.conn(), xrandr.Output(output), xproto.Timestamp(configTimestamp)).Reply()
	if err != nil {
		return nil, fmt.Errorf("get output %d info: %w", output, err)
	}
	if randr.SetConfigStatus(reply.Status) != randr.SetConfigSuccess {
		return nil, fmt.Errorf("get output %d info: %s", output, randr.SetConfigStatus(reply.Status))
	}
	info := &randr.OutputInfo{
		Timestamp:    uint32(reply.Timestamp),
		Name:         string(reply.Name),
		Crtc:         uint32(reply.Crtc),
		MmWidth:      reply.MmWidth,
		MmHeight:     reply.MmHeight,
		Connection:   reply.Connection,
		NumPreferred: int(reply.NumPreferred),
		Crtcs:        make([]uint32, len(reply.Crtcs)),
		Modes:        make([]uint32, len(reply.Modes)),
		Clones:       make([]uint32, len(reply.Clones)),
	}
	for i, v := range reply.Crtcs {
		info.Crtcs[i] = uint32(v)
	}
	for i, v := range reply.Modes {
		info.Modes[i] = uint32(v)
	}
	for i, v := range reply.Clones {
		info.Clones[i] = uint32(v)
	}
	return info, nil
}

func (c *Connection) ScreenSizeRange() (randr.SizeRange, error) {
	reply, err := xrandr.GetScreenSizeRange(c.conn(), c.Root).Reply()
	if err != nil {
		return randr.SizeRange{}, fmt.Errorf("get screen size range: %w", err)
	}
	return randr.SizeRange{
		MinWidth:  int(reply.MinWidth),
		MinHeight: int(reply.MinHeight),
		MaxWidth:  int(reply.MaxWidth),
		MaxHeight: int(reply.MaxHeight),
	}, nil
}

func (c *Connection) SetScreenSize(width, height, mmWidth, mmHeight int) error {
	return xrandr.SetScreenSizeChecked(c.conn(), c.Root,
		uint16(width), uint16(height), uint32(mmWidth), uint32(mmHeight)).Check()
}

func (c *Connection) SetCrtcConfig(req randr.CrtcConfig) (randr.SetConfigStatus, uint32, error) {
	outputs := make([]xrandr.Output, len(req.Outputs))
	for i, o := range req.Outputs {
		outputs[i] = xrandr.Output(o)
	}
	reply, err := xrandr.SetCrtcConfig(c.conn(),
		xrandr.Crtc(req.Crtc),
		xproto.TimeCurrentTime,
		xproto.Timestamp(req.ConfigTimestamp),
		int16(req.X), int16(req.Y),
		xrandr.Mode(req.Mode),
		req.Rotation,
		outputs).Reply()
	if err != nil {
		return randr.SetConfigFailed, 0, fmt.Errorf("set crtc %d config: %w", req.Crtc, err)
	}
	return randr.SetConfigStatus(reply.Status), uint32(reply.Timestamp), nil
}

func (c *Connection) OutputPrimary() (uint32, error) {
	reply, err := xrandr.GetOutputPrimary(c.conn(), c.Root).Reply()
	if err != nil {
		return randr.None, fmt.Errorf("get primary output: %w", err)
	}
	return uint32(reply.Output), nil
}

func (c *Connection) SetOutputPrimary(output uint32) error {
	return xrandr.SetOutputPrimaryChecked(c.conn(), c.Root, xrandr.Output(output)).Check()
}

// existingAtom returns the atom for name without creating it; zero means
// no client ever interned it, so no output can carry the property.
func (c *Connection) existingAtom(name string) (xproto.Atom, error) {
	atom, err := xprop.Atom(c.XUtil, name, true)
	if err != nil {
		return 0, fmt.Errorf("intern %q: %w", name, err)
	}
	return atom, nil
}

func (c *Connection) OutputProperty(output uint32, name string) (*randr.Property, error) {
	atom, err := c.existingAtom(name)
	if err != nil || atom == xproto.AtomNone {
		return nil, err
	}
	reply, err := xrandr.GetOutputProperty(c.conn(), xrandr.Output(output), atom,
		xproto.GetPropertyTypeAny, 0, propertyLength, false, false).Reply()
	if err != nil {
		return nil, fmt.Errorf("get output %d property %q: %w", output, name, err)
	}
	if reply.Type == xproto.AtomNone {
		return nil, nil
	}
	typeName, err := xprop.AtomName(c.XUtil, reply.Type)
	if err != nil {
		return nil, fmt.Errorf("property %q type: %w", name, err)
	}
	data := reply.Data
	if n := int(reply.NumItems) * int(reply.Format) / 8; n < len(data) {
		data = data[:n]
	}
	return &randr.Property{
		Type:   typeName,
		Format: int(reply.Format),
		Data:   data,
	}, nil
}

func (c *Connection) QueryOutputProperty(output uint32, name string) (*randr.PropertyInfo, error) {
	// Querying a property the output does not have is a protocol error, so
	// check for it first.
	prop, err := c.OutputProperty(output, name)
	if err != nil || prop == nil {
		return nil, err
	}
	atom, err := c.existingAtom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xrandr.QueryOutputProperty(c.conn(), xrandr.Output(output), atom).Reply()
	if err != nil {
		return nil, fmt.Errorf("query output %d property %q: %w", output, name, err)
	}
	return &randr.PropertyInfo{
		Pending:     reply.Pending,
		Range:       reply.Range,
		Immutable:   reply.Immutable,
		ValidValues: reply.ValidValues,
	}, nil
}

func (c *Connection) ChangeOutputProperty(output uint32, name string, prop randr.Property) error {
	atom, err := xprop.Atm(c.XUtil, name)
	if err != nil {
		return fmt.Errorf("intern %q: %w", name, err)
	}
	typ, err := xprop.Atm(c.XUtil, prop.Type)
	if err != nil {
		return fmt.Errorf("intern %q: %w", prop.Type, err)
	}
	if prop.Format != 8 && prop.Format != 16 && prop.Format != 32 {
		return fmt.Errorf("property %q: invalid format %d", name, prop.Format)
	}
	units := uint32(len(prop.Data) / (prop.Format / 8))
	return xrandr.ChangeOutputPropertyChecked(c.conn(), xrandr.Output(output), atom, typ,
		byte(prop.Format), xproto.PropModeReplace, units, prop.Data).Check()
}

func (c *Connection) Atom(name string) (uint32, error) {
	atom, err := xprop.Atm(c.XUtil, name)
	return uint32(atom), err
}

func (c *Connection) AtomName(atom uint32) (string, error) {
	return xprop.AtomName(c.XUtil, xproto.Atom(atom))
}

func (c *Connection) CrtcGamma(crtc uint32) (*randr.Gamma, error) {
	reply, err := xrandr.GetCrtcGamma(c.conn(), xrandr.Crtc(crtc)).Reply()
	if err != nil {
		return nil, fmt.Errorf("get crtc %d gamma: %w", crtc, err)
	}
	return &randr.Gamma{Red: reply.Red, Green: reply.Green, Blue: reply.Blue}, nil
}

func (c *Connection) SetCrtcGamma(crtc uint32, gamma randr.Gamma) error {
	size, err := xrandr.GetCrtcGammaSize(c.conn(), xrandr.Crtc(crtc)).Reply()
	if err != nil {
		return fmt.Errorf("get crtc %d gamma size: %w", crtc, err)
	}
	if int(size.Size) != gamma.Size() || len(gamma.Green) != gamma.Size() || len(gamma.Blue) != gamma.Size() {
		return fmt.Errorf("crtc %d expects %d gamma entries per channel, got %d/%d/%d",
			crtc, size.Size, len(gamma.Red), len(gamma.Green), len(gamma.Blue))
	}
	return xrandr.SetCrtcGammaChecked(c.conn(), xrandr.Crtc(crtc), size.Size,
		gamma.Red, gamma.Green, gamma.Blue).Check()
}

func (c *Connection) PowerLevel() (randr.PowerLevel, bool, error) {
	if !c.dpms {
		return randr.PowerOn, false, nil
	}
	reply, err := dpms.Info(c.conn()).Reply()
	if err != nil {
		return randr.PowerOn, false, fmt.Errorf("dpms info: %w", err)
	}
	return randr.PowerLevel(reply.PowerLevel), reply.State, nil
}

func (c *Connection) SetPowerLevel(level randr.PowerLevel) error {
	if !c.dpms {
		return fmt.Errorf("dpms extension unavailable")
	}
	if err := dpms.EnableChecked(c.conn()).Check(); err != nil {
		return fmt.Errorf("dpms enable: %w", err)
	}
	return dpms.ForceLevelChecked(c.conn(), uint16(level)).Check()
}

func (c *Connection) GrabServer() error {
	return xproto.GrabServerChecked(c.conn()).Check()
}

func (c *Connection) UngrabServer() error {
	return xproto.UngrabServerChecked(c.conn()).Check()
}

// Sync waits for a round trip so every queued request has been processed.
func (c *Connection) Sync() error {
	_, err := xproto.GetInputFocus(c.conn()).Reply()
	return err
}
