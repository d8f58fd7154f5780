package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/randrd/internal/display"
)

// ExtendDirection is where the automatic layout places each further output.
type ExtendDirection string

const (
	ExtendRight ExtendDirection = "right"
	ExtendLeft  ExtendDirection = "left"
	ExtendDown  ExtendDirection = "down"
	ExtendUp    ExtendDirection = "up"
)

// Position is a fixed top-left corner for an output.
type Position struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// OutputConfig overrides the automatic layout for the outputs it matches.
// Every non-empty identity field must match; an entry with no identity
// fields matches nothing.
type OutputConfig struct {
	Name    string `yaml:"name,omitempty"`
	Vendor  string `yaml:"vendor,omitempty"`
	Product string `yaml:"product,omitempty"`
	Serial  string `yaml:"serial,omitempty"`

	Enabled      *bool     `yaml:"enabled,omitempty"`
	Mode         string    `yaml:"mode,omitempty"`
	Position     *Position `yaml:"position,omitempty"`
	Transform    string    `yaml:"transform,omitempty"`
	Primary      bool      `yaml:"primary,omitempty"`
	Presentation bool      `yaml:"presentation,omitempty"`
	Underscan    bool      `yaml:"underscan,omitempty"`
	MaxBPC       int       `yaml:"max_bpc,omitempty"`
}

// DBusConfig controls the session bus notifier.
type DBusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// Config holds the application configuration.
type Config struct {
	Display                string          `yaml:"display,omitempty"`
	XAuthority             string          `yaml:"xauthority,omitempty"`
	LogLevel               string          `yaml:"log_level"`
	LogDevelopment         bool            `yaml:"log_development"`
	DPI                    float64         `yaml:"dpi"`
	UnderscanBorderPercent int             `yaml:"underscan_border_percent"`
	ApplyOnStart           bool            `yaml:"apply_on_start"`
	ReconfigureOnHotplug   bool            `yaml:"reconfigure_on_hotplug"`
	ConfirmTimeout         int             `yaml:"confirm_timeout"`
	ExtendDirection        ExtendDirection `yaml:"extend_direction"`
	DBus                   DBusConfig      `yaml:"dbus"`
	Outputs                []OutputConfig  `yaml:"outputs,omitempty"`
}

const DefaultDBusName = "org.randrd.DisplayConfig"

func DefaultConfig() *Config {
	return &Config{
		LogLevel:               "info",
		DPI:                    display.DefaultDPI,
		UnderscanBorderPercent: display.DefaultUnderscanBorderPercent,
		ApplyOnStart:           true,
		ReconfigureOnHotplug:   true,
		ConfirmTimeout:         20,
		ExtendDirection:        ExtendRight,
		DBus: DBusConfig{
			Enabled: false,
			Name:    DefaultDBusName,
		},
	}
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// OutputFor returns the first override matching an output, or nil.
func (c *Config) OutputFor(name, vendor, product, serial string) *OutputConfig {
	for i := range c.Outputs {
		if c.Outputs[i].Matches(name, vendor, product, serial) {
			return &c.Outputs[i]
		}
	}
	return nil
}

// Matches reports whether every identity field set on the override equals
// the output's.
func (o *OutputConfig) Matches(name, vendor, product, serial string) bool {
	if !o.hasIdentity() {
		return false
	}
	return (o.Name == "" || o.Name == name) &&
		(o.Vendor == "" || strings.EqualFold(o.Vendor, vendor)) &&
		(o.Product == "" || o.Product == product) &&
		(o.Serial == "" || o.Serial == serial)
}

func (o *OutputConfig) hasIdentity() bool {
	return o.Name != "" || o.Vendor != "" || o.Product != "" || o.Serial != ""
}

// IsEnabled defaults to true.
func (o *OutputConfig) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// ModeSpec is a parsed mode request. Refresh is 0 when any rate will do.
type ModeSpec struct {
	Width   int
	Height  int
	Refresh float64
}

var modePattern = regexp.MustCompile(`^(\d+)x(\d+)(?:@(\d+(?:\.\d+)?))?$`)

// ParseModeSpec parses WxH or WxH@rate.
func ParseModeSpec(s string) (ModeSpec, error) {
	m := modePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ModeSpec{}, fmt.Errorf("mode %q must look like 1920x1080 or 1920x1080@60", s)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	spec := ModeSpec{Width: w, Height: h}
	if m[3] != "" {
		spec.Refresh, _ = strconv.ParseFloat(m[3], 64)
	}
	if w == 0 || h == 0 {
		return ModeSpec{}, fmt.Errorf("mode %q has a zero dimension", s)
	}
	return spec, nil
}

// TransformValue returns the configured transform, normal when unset.
func (o *OutputConfig) TransformValue() (display.Transform, error) {
	if o.Transform == "" {
		return display.TransformNormal, nil
	}
	return display.ParseTransform(o.Transform)
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	if c.DPI <= 0 {
		return &ValidationError{Path: "dpi", Err: fmt.Errorf("dpi must be > 0")}
	}
	if c.UnderscanBorderPercent < 0 || c.UnderscanBorderPercent >= 50 {
		return &ValidationError{Path: "underscan_border_percent", Err: fmt.Errorf("underscan_border_percent must be in [0, 50)")}
	}
	if c.ConfirmTimeout < 0 {
		return &ValidationError{Path: "confirm_timeout", Err: fmt.Errorf("confirm_timeout must be >= 0")}
	}
	switch c.ExtendDirection {
	case ExtendRight, ExtendLeft, ExtendDown, ExtendUp:
	default:
		return &ValidationError{Path: "extend_direction", Err: fmt.Errorf("extend_direction must be one of: right, left, down, up")}
	}
	if c.DBus.Enabled && strings.TrimSpace(c.DBus.Name) == "" {
		return &ValidationError{Path: "dbus.name", Err: fmt.Errorf("dbus.name is required when dbus is enabled")}
	}

	primaries := 0
	for i := range c.Outputs {
		o := &c.Outputs[i]
		path := fmt.Sprintf("outputs.%d", i)
		if !o.hasIdentity() {
			return &ValidationError{Path: path, Err: fmt.Errorf("output needs at least one of name, vendor, product, serial")}
		}
		if o.Mode != "" {
			if _, err := ParseModeSpec(o.Mode); err != nil {
				return &ValidationError{Path: path + ".mode", Err: err}
			}
		}
		if _, err := o.TransformValue(); err != nil {
			return &ValidationError{Path: path + ".transform", Err: err}
		}
		if o.Position != nil && (o.Position.X < 0 || o.Position.Y < 0) {
			return &ValidationError{Path: path + ".position", Err: fmt.Errorf("position must not be negative")}
		}
		if o.MaxBPC < 0 {
			return &ValidationError{Path: path + ".max_bpc", Err: fmt.Errorf("max_bpc must be >= 0")}
		}
		if o.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		return &ValidationError{Path: "outputs", Err: fmt.Errorf("at most one output may be primary")}
	}
	return nil
}
