package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig layers raw over the defaults.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Display != nil {
		cfg.Display = *raw.Display
	}
	if raw.XAuthority != nil {
		cfg.XAuthority = *raw.XAuthority
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
		if cfg.LogLevel == "warning" {
			cfg.LogLevel = "warn"
		}
	}
	if raw.LogDevelopment != nil {
		cfg.LogDevelopment = *raw.LogDevelopment
	}
	if raw.DPI != nil {
		cfg.DPI = *raw.DPI
	}
	if raw.UnderscanBorderPercent != nil {
		cfg.UnderscanBorderPercent = *raw.UnderscanBorderPercent
	}
	if raw.ApplyOnStart != nil {
		cfg.ApplyOnStart = *raw.ApplyOnStart
	}
	if raw.ReconfigureOnHotplug != nil {
		cfg.ReconfigureOnHotplug = *raw.ReconfigureOnHotplug
	}
	if raw.ConfirmTimeout != nil {
		cfg.ConfirmTimeout = *raw.ConfirmTimeout
	}
	if raw.ExtendDirection != nil {
		cfg.ExtendDirection = ExtendDirection(strings.ToLower(strings.TrimSpace(*raw.ExtendDirection)))
	}
	if raw.DBus != nil {
		if raw.DBus.Enabled != nil {
			cfg.DBus.Enabled = *raw.DBus.Enabled
		}
		if raw.DBus.Name != nil {
			cfg.DBus.Name = *raw.DBus.Name
		}
	}
	if raw.Outputs != nil {
		cfg.Outputs = append([]OutputConfig(nil), raw.Outputs...)
	}

	return cfg, nil
}
