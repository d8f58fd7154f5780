package display

import (
	"sort"

	"go.uber.org/multierr"

	"github.com/1broseidon/randrd/internal/randr"
)

// TileInfo describes an output's place in a tiled monitor.
type TileInfo struct {
	GroupID   uint32
	Flags     uint32
	MaxHTiles int
	MaxVTiles int
	LocH      int
	LocV      int
	TileW     int
	TileH     int
}

// Backlight is the brightness range and level of an output.
type Backlight struct {
	Min   int
	Max   int
	Value int
}

// OutputState carries the per-output settings an assignment controls.
type OutputState struct {
	Primary      bool
	Presentation bool
	Underscan    bool
	MaxBPC       int
	HasMaxBPC    bool
}

// Output mirrors one connected physical connector.
type Output struct {
	ID       uint32
	Name     string
	Vendor   string
	Product  string
	Serial   string
	EDID     []byte
	WidthMM  int
	HeightMM int

	ConnectorType    ConnectorType
	PanelOrientation Transform
	NonDesktop       bool

	// Modes lists the supported modes; the first one is preferred.
	Modes          []*Mode
	PossibleCrtcs  []*Crtc
	PossibleClones []*Output
	Tile           *TileInfo

	HotplugModeUpdate bool
	// SuggestedX and SuggestedY are -1 when the driver has no suggestion.
	SuggestedX int
	SuggestedY int

	SupportsUnderscanning  bool
	SupportsColorTransform bool
	MaxBPCMin              int
	MaxBPCMax              int
	HasMaxBPCRange         bool
	Backlight              *Backlight

	AssignedCrtc *Crtc
	State        OutputState

	cloneIDs []uint32
}

// PreferredMode returns the first supported mode.
func (o *Output) PreferredMode() *Mode {
	if len(o.Modes) == 0 {
		return nil
	}
	return o.Modes[0]
}

// SupportsMode reports whether m is one of the output's modes.
func (o *Output) SupportsMode(m *Mode) bool {
	for _, mode := range o.Modes {
		if mode == m {
			return true
		}
	}
	return false
}

// CanUseCrtc reports whether c is in the output's possible CRTC list.
func (o *Output) CanUseCrtc(c *Crtc) bool {
	for _, crtc := range o.PossibleCrtcs {
		if crtc == c {
			return true
		}
	}
	return false
}

// Assign records that crtc now drives the output with the given state.
func (o *Output) Assign(crtc *Crtc, state OutputState) {
	o.AssignedCrtc = crtc
	o.State = state
}

// Unassign clears the CRTC reference and the assignment state.
func (o *Output) Unassign() {
	o.AssignedCrtc = nil
	o.State = OutputState{}
}

type outputBuilder struct {
	props   randr.Properties
	modes   map[uint32]*Mode
	crtcs   map[uint32]*Crtc
	primary uint32
}

// build returns nil for outputs that can never be driven. Property read
// failures are collected and the affected feature is treated as absent.
func (b *outputBuilder) build(id uint32, info *randr.OutputInfo) (*Output, error) {
	o := &Output{
		ID:         id,
		Name:       info.Name,
		WidthMM:    int(info.MmWidth),
		HeightMM:   int(info.MmHeight),
		SuggestedX: -1,
		SuggestedY: -1,
		cloneIDs:   append([]uint32(nil), info.Clones...),
	}

	for _, modeID := range info.Modes {
		if m, ok := b.modes[modeID]; ok {
			o.Modes = append(o.Modes, m)
		}
	}
	for _, crtcID := range info.Crtcs {
		if c, ok := b.crtcs[crtcID]; ok {
			o.PossibleCrtcs = append(o.PossibleCrtcs, c)
		}
	}
	if len(o.Modes) == 0 || len(o.PossibleCrtcs) == 0 {
		return nil, nil
	}

	var errs error
	errs = multierr.Append(errs, b.readIdentity(o))
	errs = multierr.Append(errs, b.readHints(o))
	errs = multierr.Append(errs, b.readCapabilities(o))
	errs = multierr.Append(errs, b.readState(o, info))
	return o, errs
}

// readIdentity fills in EDID identity, connector type and panel
// orientation. A failed property read does not stop the others, so the
// name-based connector fallback always runs.
func (b *outputBuilder) readIdentity(o *Output) error {
	var errs error

	data, ok, err := b.props.Bytes(o.ID, randr.PropEDID)
	errs = multierr.Append(errs, err)
	if ok {
		o.EDID = data
		if parsed, perr := ParseEDID(data); perr == nil {
			o.Vendor, o.Product, o.Serial = parsed.Vendor, parsed.Product, parsed.Serial
		}
	}

	o.ConnectorType = ConnectorUnknown
	value, ok, err := b.props.AtomValue(o.ID, randr.PropConnectorType)
	errs = multierr.Append(errs, err)
	if ok {
		o.ConnectorType = ConnectorTypeFromProperty(value)
	}
	if o.ConnectorType == ConnectorUnknown {
		o.ConnectorType = ConnectorTypeFromName(o.Name)
	}

	orientation, ok, err := b.props.AtomValue(o.ID, randr.PropPanelOrientation)
	errs = multierr.Append(errs, err)
	if ok {
		o.PanelOrientation = panelOrientationTransform(orientation)
	}
	if o.PanelOrientation.Rotated() {
		o.WidthMM, o.HeightMM = o.HeightMM, o.WidthMM
	}
	return errs
}

func panelOrientationTransform(value string) Transform {
	switch value {
	case "Upside Down":
		return Transform180
	case "Left Side Up":
		return Transform90
	case "Right Side Up":
		return Transform270
	default:
		return TransformNormal
	}
}

func (b *outputBuilder) readHints(o *Output) error {
	if v, ok, err := b.props.Int32(o.ID, randr.PropHotplugModeUpdate); err != nil {
		return err
	} else if ok {
		o.HotplugModeUpdate = v != 0
	}
	if v, ok, err := b.props.Int32(o.ID, randr.PropSuggestedX); err != nil {
		return err
	} else if ok {
		o.SuggestedX = int(v)
	}
	if v, ok, err := b.props.Int32(o.ID, randr.PropSuggestedY); err != nil {
		return err
	} else if ok {
		o.SuggestedY = int(v)
	}
	if v, ok, err := b.props.Int32(o.ID, randr.PropNonDesktop); err != nil {
		return err
	} else if ok {
		o.NonDesktop = v != 0
	}

	tile, ok, err := b.props.Int32s(o.ID, randr.PropTile)
	if err != nil {
		return err
	}
	if ok && len(tile) == 8 {
		o.Tile = &TileInfo{
			GroupID:   uint32(tile[0]),
			Flags:     uint32(tile[1]),
			MaxHTiles: int(tile[2]),
			MaxVTiles: int(tile[3]),
			LocH:      int(tile[4]),
			LocV:      int(tile[5]),
			TileW:     int(tile[6]),
			TileH:     int(tile[7]),
		}
	}
	return nil
}

func (b *outputBuilder) readCapabilities(o *Output) error {
	if _, ok, err := b.props.AtomValue(o.ID, randr.PropUnderscan); err != nil {
		return err
	} else if ok {
		choices, err := b.props.AtomChoices(o.ID, randr.PropUnderscan)
		if err != nil {
			return err
		}
		for _, c := range choices {
			if c == "on" {
				o.SupportsUnderscanning = true
			}
		}
	}

	lo, hi, ok, err := b.props.Range(o.ID, randr.PropMaxBPC)
	if err != nil {
		return err
	}
	if ok {
		o.MaxBPCMin, o.MaxBPCMax, o.HasMaxBPCRange = int(lo), int(hi), true
	}

	ctm, err := b.props.Client.OutputProperty(o.ID, randr.PropCTM)
	if err != nil {
		return err
	}
	o.SupportsColorTransform = ctm != nil

	level, ok, err := b.props.Int32(o.ID, randr.PropBacklight)
	if err != nil {
		return err
	}
	if ok {
		lo, hi, ranged, err := b.props.Range(o.ID, randr.PropBacklight)
		if err != nil {
			return err
		}
		if ranged {
			o.Backlight = &Backlight{Min: int(lo), Max: int(hi), Value: int(level)}
		}
	}
	return nil
}

// readState mirrors the current assignment. Outputs are only attached to
// CRTCs that have a mode bound.
func (b *outputBuilder) readState(o *Output, info *randr.OutputInfo) error {
	state := OutputState{Primary: o.ID == b.primary}

	if v, ok, err := b.props.Int32(o.ID, randr.PropPresentation); err != nil {
		return err
	} else if ok {
		state.Presentation = v != 0
	}
	if o.SupportsUnderscanning {
		value, _, err := b.props.AtomValue(o.ID, randr.PropUnderscan)
		if err != nil {
			return err
		}
		state.Underscan = value == "on"
	}
	if v, ok, err := b.props.Int32(o.ID, randr.PropMaxBPC); err != nil {
		return err
	} else if ok {
		state.MaxBPC, state.HasMaxBPC = int(v), true
	}

	if crtc, ok := b.crtcs[info.Crtc]; ok && info.Crtc != randr.None && crtc.On() {
		o.Assign(crtc, state)
	} else {
		o.State = state
	}
	return nil
}

// fixupClones resolves raw clone ids against the final output arena. Ids
// that name no output of this generation are dropped.
func fixupClones(outputs []*Output) {
	index := make(map[uint32]int, len(outputs))
	for i, o := range outputs {
		index[o.ID] = i
	}
	for _, o := range outputs {
		o.PossibleClones = o.PossibleClones[:0]
		for _, id := range o.cloneIDs {
			if i, ok := index[id]; ok {
				o.PossibleClones = append(o.PossibleClones, outputs[i])
			}
		}
	}
}

func sortOutputs(outputs []*Output) {
	sort.SliceStable(outputs, func(i, j int) bool {
		return outputs[i].Name < outputs[j].Name
	})
}
