package display

import (
	"fmt"

	"gitlab.com/lehn/edid"
)

// EDIDInfo is the identity part of an EDID block.
type EDIDInfo struct {
	Vendor  string
	Product string
	Serial  string
}

// ParseEDID decodes the PNP vendor id, product code and serial number of a
// base EDID block. A zero serial is reported as empty.
func ParseEDID(data []byte) (EDIDInfo, error) {
	if len(data) < 128 {
		return EDIDInfo{}, fmt.Errorf("edid block of %d bytes is too short", len(data))
	}
	e, err := edid.New(data)
	if err != nil {
		return EDIDInfo{}, fmt.Errorf("parse edid: %w", err)
	}

	info := EDIDInfo{
		Vendor:  string(e.PNPID[:]),
		Product: fmt.Sprintf("0x%04x", e.Model),
	}
	if e.Serial != 0 {
		info.Serial = fmt.Sprintf("0x%08x", e.Serial)
	}
	return info, nil
}
