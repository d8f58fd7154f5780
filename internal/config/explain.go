package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths include:
//
//	display
//	xauthority
//	log_level
//	log_development
//	dpi
//	underscan_border_percent
//	apply_on_start
//	reconfigure_on_hotplug
//	confirm_timeout
//	extend_direction
//	dbus.enabled
//	dbus.name
//	outputs
//	outputs.<index>
//	outputs.<index>.mode
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	// Exact-path file source wins.
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	scalar := func(v any) (any, error) {
		if len(parts) != 1 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		return v, nil
	}

	switch parts[0] {
	case "display":
		return scalar(cfg.Display)
	case "xauthority":
		return scalar(cfg.XAuthority)
	case "log_level":
		return scalar(cfg.LogLevel)
	case "log_development":
		return scalar(cfg.LogDevelopment)
	case "dpi":
		return scalar(cfg.DPI)
	case "underscan_border_percent":
		return scalar(cfg.UnderscanBorderPercent)
	case "apply_on_start":
		return scalar(cfg.ApplyOnStart)
	case "reconfigure_on_hotplug":
		return scalar(cfg.ReconfigureOnHotplug)
	case "confirm_timeout":
		return scalar(cfg.ConfirmTimeout)
	case "extend_direction":
		return scalar(string(cfg.ExtendDirection))
	case "dbus":
		if len(parts) == 1 {
			return cfg.DBus, nil
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("unknown path: %s", path)
		}
		switch parts[1] {
		case "enabled":
			return cfg.DBus.Enabled, nil
		case "name":
			return cfg.DBus.Name, nil
		}
		return nil, fmt.Errorf("unknown path: %s", path)
	case "outputs":
		return lookupOutput(cfg, parts[1:], path)
	default:
		return nil, fmt.Errorf("unknown path: %s", path)
	}
}

func lookupOutput(cfg *Config, parts []string, path string) (any, error) {
	if len(parts) == 0 {
		return cfg.Outputs, nil
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 0 || idx >= len(cfg.Outputs) {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	o := cfg.Outputs[idx]
	if len(parts) == 1 {
		return o, nil
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("unknown path: %s", path)
	}
	switch parts[1] {
	case "name":
		return o.Name, nil
	case "vendor":
		return o.Vendor, nil
	case "product":
		return o.Product, nil
	case "serial":
		return o.Serial, nil
	case "enabled":
		return o.IsEnabled(), nil
	case "mode":
		return o.Mode, nil
	case "position":
		return o.Position, nil
	case "transform":
		return o.Transform, nil
	case "primary":
		return o.Primary, nil
	case "presentation":
		return o.Presentation, nil
	case "underscan":
		return o.Underscan, nil
	case "max_bpc":
		return o.MaxBPC, nil
	default:
		return nil, fmt.Errorf("unknown path: %s", path)
	}
}
