package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawDBusConfig struct {
	Enabled *bool   `yaml:"enabled"`
	Name    *string `yaml:"name"`
}

type RawConfig struct {
	Include                IncludeList    `yaml:"include"`
	Display                *string        `yaml:"display"`
	XAuthority             *string        `yaml:"xauthority"`
	LogLevel               *string        `yaml:"log_level"`
	LogDevelopment         *bool          `yaml:"log_development"`
	DPI                    *float64       `yaml:"dpi"`
	UnderscanBorderPercent *int           `yaml:"underscan_border_percent"`
	ApplyOnStart           *bool          `yaml:"apply_on_start"`
	ReconfigureOnHotplug   *bool          `yaml:"reconfigure_on_hotplug"`
	ConfirmTimeout         *int           `yaml:"confirm_timeout"`
	ExtendDirection        *string        `yaml:"extend_direction"`
	DBus                   *RawDBusConfig `yaml:"dbus"`
	// Outputs from a later file replace the whole list; entries are
	// matched in order, so merging them would reorder priorities.
	Outputs []OutputConfig `yaml:"outputs"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.XAuthority != nil {
		out.XAuthority = overlay.XAuthority
	}
	if overlay.LogLevel != nil {
		out.LogLevel = overlay.LogLevel
	}
	if overlay.LogDevelopment != nil {
		out.LogDevelopment = overlay.LogDevelopment
	}
	if overlay.DPI != nil {
		out.DPI = overlay.DPI
	}
	if overlay.UnderscanBorderPercent != nil {
		out.UnderscanBorderPercent = overlay.UnderscanBorderPercent
	}
	if overlay.ApplyOnStart != nil {
		out.ApplyOnStart = overlay.ApplyOnStart
	}
	if overlay.ReconfigureOnHotplug != nil {
		out.ReconfigureOnHotplug = overlay.ReconfigureOnHotplug
	}
	if overlay.ConfirmTimeout != nil {
		out.ConfirmTimeout = overlay.ConfirmTimeout
	}
	if overlay.ExtendDirection != nil {
		out.ExtendDirection = overlay.ExtendDirection
	}

	if overlay.DBus != nil {
		if out.DBus == nil {
			out.DBus = &RawDBusConfig{}
		}
		merged := mergeRawDBus(*out.DBus, *overlay.DBus)
		out.DBus = &merged
	}

	if overlay.Outputs != nil {
		out.Outputs = append([]OutputConfig(nil), overlay.Outputs...)
	}

	return out
}

func mergeRawDBus(base RawDBusConfig, overlay RawDBusConfig) RawDBusConfig {
	out := base
	if overlay.Enabled != nil {
		out.Enabled = overlay.Enabled
	}
	if overlay.Name != nil {
		out.Name = overlay.Name
	}
	return out
}
