// Package randr describes the subset of the X11 RandR protocol the display
// backend needs, independent of any particular X binding.
package randr

import "errors"

// Rotation bits as defined by the RandR protocol.
const (
	Rotate0   uint16 = 1
	Rotate90  uint16 = 2
	Rotate180 uint16 = 4
	Rotate270 uint16 = 8
	ReflectX  uint16 = 16
	ReflectY  uint16 = 32

	AllRotations   = Rotate0 | Rotate90 | Rotate180 | Rotate270
	AllReflections = ReflectX | ReflectY
)

// Mode flag bits.
const (
	ModeFlagHsyncPositive uint32 = 1 << iota
	ModeFlagHsyncNegative
	ModeFlagVsyncPositive
	ModeFlagVsyncNegative
	ModeFlagInterlace
	ModeFlagDoubleScan
	ModeFlagCsync
	ModeFlagCsyncPositive
	ModeFlagCsyncNegative
	ModeFlagHskewPresent
	ModeFlagBcast
	ModeFlagPixelMultiplex
	ModeFlagDoubleClock
	ModeFlagHalveClock
)

// Connection states reported for an output.
const (
	Connected    uint8 = 0
	Disconnected uint8 = 1
	Unknown      uint8 = 2
)

// SetConfigStatus is the status returned by a CRTC configuration request.
type SetConfigStatus uint8

const (
	SetConfigSuccess           SetConfigStatus = 0
	SetConfigInvalidConfigTime SetConfigStatus = 1
	SetConfigInvalidTime       SetConfigStatus = 2
	SetConfigFailed            SetConfigStatus = 3
)

func (s SetConfigStatus) String() string {
	switch s {
	case SetConfigSuccess:
		return "success"
	case SetConfigInvalidConfigTime:
		return "invalid config time"
	case SetConfigInvalidTime:
		return "invalid time"
	case SetConfigFailed:
		return "failed"
	default:
		return "unknown status"
	}
}

// None is the X resource id used for "no mode", "no crtc" and "no output".
const None uint32 = 0

var (
	// ErrNoResources is returned when the server does not answer a screen
	// resources query.
	ErrNoResources = errors.New("randr: failed to retrieve screen resources")
	// ErrPropertyUnsupported is returned when writing a property the output
	// does not expose.
	ErrPropertyUnsupported = errors.New("randr: property not supported by output")
)

// ModeInfo is a raw mode entry from the screen resources.
type ModeInfo struct {
	ID       uint32
	Name     string
	Width    uint16
	Height   uint16
	DotClock uint32
	HTotal   uint16
	VTotal   uint16
	Flags    uint32
}

// Resources is a snapshot of the screen resources.
type Resources struct {
	Timestamp       uint32
	ConfigTimestamp uint32
	Crtcs           []uint32
	Outputs         []uint32
	Modes           []ModeInfo
}

// CrtcInfo is the raw state of one CRTC.
type CrtcInfo struct {
	Timestamp uint32
	X         int
	Y         int
	Width     int
	Height    int
	Mode      uint32
	Rotation  uint16
	Rotations uint16
	Outputs   []uint32
	Possible  []uint32
}

// OutputInfo is the raw state of one output.
type OutputInfo struct {
	Timestamp    uint32
	Name         string
	Crtc         uint32
	MmWidth      uint32
	MmHeight     uint32
	Connection   uint8
	Crtcs        []uint32
	Modes        []uint32
	NumPreferred int
	Clones       []uint32
}

// SizeRange is the minimum and maximum screen size the server accepts.
type SizeRange struct {
	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int
}

// CrtcConfig is a single CRTC configuration request. An empty output list
// with Mode None disables the CRTC.
type CrtcConfig struct {
	Crtc            uint32
	ConfigTimestamp uint32
	X               int
	Y               int
	Mode            uint32
	Rotation        uint16
	Outputs         []uint32
}

// Property is the raw value of an output property. Type is the name of the
// property type atom, e.g. "INTEGER" or "ATOM".
type Property struct {
	Type   string
	Format int
	Data   []byte
}

// PropertyInfo describes the valid values of an output property.
type PropertyInfo struct {
	Pending     bool
	Range       bool
	Immutable   bool
	ValidValues []int32
}

// Gamma is a per-channel gamma ramp. All channels have the same length.
type Gamma struct {
	Red   []uint16
	Green []uint16
	Blue  []uint16
}

// Size returns the number of entries in each channel.
func (g Gamma) Size() int {
	return len(g.Red)
}

// PowerLevel is a DPMS power level.
type PowerLevel uint16

const (
	PowerOn      PowerLevel = 0
	PowerStandby PowerLevel = 1
	PowerSuspend PowerLevel = 2
	PowerOff     PowerLevel = 3
)

// ScreenChange carries the fields of a RandR screen change notification.
type ScreenChange struct {
	Timestamp       uint32
	ConfigTimestamp uint32
	Rotation        uint16
	Width           int
	Height          int
	MmWidth         int
	MmHeight        int
}
