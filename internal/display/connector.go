package display

import "strings"

// ConnectorType is the physical connector kind of an output.
type ConnectorType int

const (
	ConnectorUnknown ConnectorType = iota
	ConnectorVGA
	ConnectorDVII
	ConnectorDVID
	ConnectorDVIA
	ConnectorComposite
	ConnectorSVideo
	ConnectorLVDS
	ConnectorComponent
	Connector9PinDIN
	ConnectorDisplayPort
	ConnectorHDMIA
	ConnectorHDMIB
	ConnectorTV
	ConnectorEDP
	ConnectorVirtual
	ConnectorDSI
)

var connectorNames = map[ConnectorType]string{
	ConnectorUnknown:     "Unknown",
	ConnectorVGA:         "VGA",
	ConnectorDVII:        "DVI-I",
	ConnectorDVID:        "DVI-D",
	ConnectorDVIA:        "DVI-A",
	ConnectorComposite:   "Composite",
	ConnectorSVideo:      "S-Video",
	ConnectorLVDS:        "LVDS",
	ConnectorComponent:   "Component",
	Connector9PinDIN:     "9-pin DIN",
	ConnectorDisplayPort: "DisplayPort",
	ConnectorHDMIA:       "HDMI-A",
	ConnectorHDMIB:       "HDMI-B",
	ConnectorTV:          "TV",
	ConnectorEDP:         "eDP",
	ConnectorVirtual:     "Virtual",
	ConnectorDSI:         "DSI",
}

func (c ConnectorType) String() string {
	if name, ok := connectorNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Builtin reports whether the connector type is used for internal panels.
func (c ConnectorType) Builtin() bool {
	return c == ConnectorLVDS || c == ConnectorEDP || c == ConnectorDSI
}

// connector type property values as exposed by drivers
var connectorPropertyTypes = map[string]ConnectorType{
	"VGA":          ConnectorVGA,
	"DVI":          ConnectorDVII,
	"DVI-I":        ConnectorDVII,
	"DVI-A":        ConnectorDVIA,
	"DVI-D":        ConnectorDVID,
	"HDMI":         ConnectorHDMIA,
	"Panel":        ConnectorLVDS,
	"TV":           ConnectorTV,
	"TV-Composite": ConnectorComposite,
	"TV-SVideo":    ConnectorSVideo,
	"TV-SCART":     ConnectorTV,
	"TV-C4":        ConnectorTV,
	"DisplayPort":  ConnectorDisplayPort,
}

// ConnectorTypeFromProperty maps the value of the ConnectorType output
// property. Unrecognised values map to ConnectorUnknown.
func ConnectorTypeFromProperty(value string) ConnectorType {
	if t, ok := connectorPropertyTypes[value]; ok {
		return t
	}
	return ConnectorUnknown
}

// Order matters: longer prefixes sharing a stem come first.
var connectorNamePrefixes = []struct {
	prefix string
	typ    ConnectorType
}{
	{"HDMI", ConnectorHDMIA},
	{"VGA", ConnectorVGA},
	{"DVI-I", ConnectorDVII},
	{"DVI-A", ConnectorDVIA},
	{"DVI-D", ConnectorDVID},
	{"DVI", ConnectorDVII},
	{"LVDS", ConnectorLVDS},
	{"Lvds", ConnectorLVDS},
	{"eDP", ConnectorEDP},
	{"Virtual", ConnectorVirtual},
	{"Composite", ConnectorComposite},
	{"S-video", ConnectorSVideo},
	{"S-Video", ConnectorSVideo},
	{"SVIDEO", ConnectorSVideo},
	{"Component", ConnectorComponent},
	{"DIN", Connector9PinDIN},
	{"DisplayPort", ConnectorDisplayPort},
	{"DP", ConnectorDisplayPort},
	{"DSI", ConnectorDSI},
	{"TV", ConnectorTV},
}

// ConnectorTypeFromName guesses the connector type from the output name,
// e.g. "DP-1" or "HDMI-2".
func ConnectorTypeFromName(name string) ConnectorType {
	for _, p := range connectorNamePrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.typ
		}
	}
	return ConnectorUnknown
}
