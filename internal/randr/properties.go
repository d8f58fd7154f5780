package randr

import (
	"fmt"

	"github.com/BurntSushi/xgb"
)

// Output property names read or written by the backend.
const (
	PropEDID              = "EDID"
	PropTile              = "TILE"
	PropHotplugModeUpdate = "hotplug_mode_update"
	PropSuggestedX        = "suggested X"
	PropSuggestedY        = "suggested Y"
	PropConnectorType     = "ConnectorType"
	PropPanelOrientation  = "panel orientation"
	PropUnderscan         = "underscan"
	PropUnderscanHBorder  = "underscan hborder"
	PropUnderscanVBorder  = "underscan vborder"
	PropMaxBPC            = "max bpc"
	PropCTM               = "CTM"
	PropBacklight         = "Backlight"
	PropNonDesktop        = "non-desktop"
	PropPresentation      = "_RANDRD_PRESENTATION_OUTPUT"
)

// Property type names.
const (
	TypeInteger  = "INTEGER"
	TypeAtom     = "ATOM"
	TypeCardinal = "CARDINAL"
)

// Properties decodes typed output property values on top of a Client.
type Properties struct {
	Client Client
}

// Int32s reads a format-32 property as signed integers.
func (p Properties) Int32s(output uint32, name string) ([]int32, bool, error) {
	prop, err := p.Client.OutputProperty(output, name)
	if err != nil {
		return nil, false, err
	}
	if prop == nil || prop.Format != 32 {
		return nil, false, nil
	}
	if prop.Type != TypeInteger && prop.Type != TypeCardinal {
		return nil, false, nil
	}
	values := make([]int32, len(prop.Data)/4)
	for i := range values {
		values[i] = int32(xgb.Get32(prop.Data[i*4:]))
	}
	return values, true, nil
}

// Int32 reads the first value of an integer property.
func (p Properties) Int32(output uint32, name string) (int32, bool, error) {
	values, ok, err := p.Int32s(output, name)
	if err != nil || !ok || len(values) == 0 {
		return 0, false, err
	}
	return values[0], true, nil
}

// Bytes reads a format-8 property.
func (p Properties) Bytes(output uint32, name string) ([]byte, bool, error) {
	prop, err := p.Client.OutputProperty(output, name)
	if err != nil {
		return nil, false, err
	}
	if prop == nil || prop.Format != 8 || len(prop.Data) == 0 {
		return nil, false, nil
	}
	return prop.Data, true, nil
}

// AtomValue reads an ATOM property and returns the name of its first value.
func (p Properties) AtomValue(output uint32, name string) (string, bool, error) {
	prop, err := p.Client.OutputProperty(output, name)
	if err != nil {
		return "", false, err
	}
	if prop == nil || prop.Type != TypeAtom || prop.Format != 32 || len(prop.Data) < 4 {
		return "", false, nil
	}
	value, err := p.Client.AtomName(xgb.Get32(prop.Data))
	if err != nil {
		return "", false, fmt.Errorf("property %q: %w", name, err)
	}
	return value, true, nil
}

// AtomChoices returns the names of the atoms an ATOM property accepts.
func (p Properties) AtomChoices(output uint32, name string) ([]string, error) {
	info, err := p.Client.QueryOutputProperty(output, name)
	if err != nil || info == nil {
		return nil, err
	}
	choices := make([]string, 0, len(info.ValidValues))
	for _, v := range info.ValidValues {
		atomName, err := p.Client.AtomName(uint32(v))
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		choices = append(choices, atomName)
	}
	return choices, nil
}

// Range returns the bounds of a range property.
func (p Properties) Range(output uint32, name string) (lo, hi int32, ok bool, err error) {
	info, err := p.Client.QueryOutputProperty(output, name)
	if err != nil || info == nil {
		return 0, 0, false, err
	}
	if !info.Range || len(info.ValidValues) != 2 {
		return 0, 0, false, nil
	}
	return info.ValidValues[0], info.ValidValues[1], true, nil
}

// SetInt32s replaces a property with format-32 INTEGER values.
func (p Properties) SetInt32s(output uint32, name string, values ...int32) error {
	words := make([]uint32, len(values))
	for i, v := range values {
		words[i] = uint32(v)
	}
	return p.SetUint32s(output, name, words...)
}

// SetUint32s replaces a property with raw format-32 INTEGER words.
func (p Properties) SetUint32s(output uint32, name string, words ...uint32) error {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		xgb.Put32(data[i*4:], w)
	}
	return p.Client.ChangeOutputProperty(output, name, Property{
		Type:   TypeInteger,
		Format: 32,
		Data:   data,
	})
}

// SetAtom replaces an ATOM property with a single atom.
func (p Properties) SetAtom(output uint32, name, value string) error {
	atom, err := p.Client.Atom(value)
	if err != nil {
		return fmt.Errorf("intern %q: %w", value, err)
	}
	data := make([]byte, 4)
	xgb.Put32(data, atom)
	return p.Client.ChangeOutputProperty(output, name, Property{
		Type:   TypeAtom,
		Format: 32,
		Data:   data,
	})
}
