package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/randrd/internal/display"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.DPI != display.DefaultDPI {
		t.Fatalf("expected default dpi %v, got %v", display.DefaultDPI, cfg.DPI)
	}
	if cfg.ExtendDirection != ExtendRight {
		t.Fatalf("expected extend_direction right, got %q", cfg.ExtendDirection)
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.LogLevel != "info" {
		t.Fatalf("expected log_level info, got %q", res.Config.LogLevel)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !res.Config.ApplyOnStart {
		t.Fatalf("expected apply_on_start default true")
	}
}

func TestLoadFromPath_Outputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, strings.Join([]string{
		"display: \":1\"",
		"log_level: warning",
		"dpi: 120",
		"extend_direction: Down",
		"dbus:",
		"  enabled: true",
		"outputs:",
		"  - name: eDP-1",
		"    enabled: false",
		"  - vendor: DEL",
		"    product: \"0xa0b1\"",
		"    mode: 3840x2160@59.99",
		"    position: {x: 0, y: 0}",
		"    transform: \"90\"",
		"    primary: true",
		"    max_bpc: 10",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Display != ":1" || cfg.LogLevel != "warn" || cfg.DPI != 120 || cfg.ExtendDirection != ExtendDown {
		t.Fatalf("unexpected scalars: %+v", cfg)
	}
	if !cfg.DBus.Enabled || cfg.DBus.Name != DefaultDBusName {
		t.Fatalf("unexpected dbus config: %+v", cfg.DBus)
	}
	if len(cfg.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(cfg.Outputs))
	}

	if o := cfg.OutputFor("eDP-1", "", "", ""); o == nil || o.IsEnabled() {
		t.Fatalf("expected eDP-1 override to disable the output, got %+v", o)
	}
	o := cfg.OutputFor("DP-2", "del", "0xa0b1", "0x12345678")
	if o == nil {
		t.Fatalf("expected vendor/product match")
	}
	tr, err := o.TransformValue()
	if err != nil || tr != display.Transform90 {
		t.Fatalf("expected transform 90, got %v (%v)", tr, err)
	}
	if cfg.OutputFor("DP-2", "DEL", "0xa0b2", "") != nil {
		t.Fatalf("product mismatch must not match")
	}

	val, src, err := Explain(res, "outputs.1.mode")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "3840x2160@59.99" {
		t.Fatalf("unexpected explain value %v", val)
	}
	if src.Kind != SourceFile || src.Line != 12 {
		t.Fatalf("expected file source at line 12, got %+v", src)
	}

	_, src, err = Explain(res, "confirm_timeout")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if src.Kind != SourceDefault {
		t.Fatalf("expected default source, got %+v", src)
	}
}

func TestLoadFromPath_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "hotkey: Mod4-t\n")

	if _, err := LoadFromPath(path); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "dpi: 96\noutputs:\n  - name: DP-1\n    mode: huge\n")

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Path != "outputs.0.mode" {
		t.Fatalf("expected path outputs.0.mode, got %q", verr.Path)
	}
	if verr.Source.Line != 4 {
		t.Fatalf("expected line 4, got %d", verr.Source.Line)
	}
	if !strings.Contains(err.Error(), ":4:") {
		t.Fatalf("expected location in error, got %q", err.Error())
	}
}

func TestLoadFromPath_Includes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, filepath.Join(dir, "conf.d", "10-base.yaml"), "dpi: 144\nlog_level: debug\n")
	writeFile(t, filepath.Join(dir, "conf.d", "20-outputs.yaml"), "outputs:\n  - name: HDMI-1\n")
	writeFile(t, path, "include: conf.d\nlog_level: error\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.DPI != 144 {
		t.Fatalf("expected included dpi 144, got %v", res.Config.DPI)
	}
	if res.Config.LogLevel != "error" {
		t.Fatalf("expected main file to override log_level, got %q", res.Config.LogLevel)
	}
	if len(res.Config.Outputs) != 1 || res.Config.Outputs[0].Name != "HDMI-1" {
		t.Fatalf("expected included outputs, got %+v", res.Config.Outputs)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "include: b.yaml\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "include: a.yaml\n")

	_, err := LoadFromPath(filepath.Join(dir, "a.yaml"))
	if err == nil || !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected include cycle error, got %v", err)
	}
}

func TestLoadFromPath_IncludeOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "dpi: 110\nconfirm_timeout: 5\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "dpi: 120\n")
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include: [a.yaml, "+filepath.Join(dir, "b.yaml")+"]\nlog_level: warn\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.DPI != 120 || res.Config.ConfirmTimeout != 5 {
		t.Fatalf("expected later include to win, got dpi %v timeout %v", res.Config.DPI, res.Config.ConfirmTimeout)
	}
	if src := res.Sources["dpi"]; !strings.HasSuffix(src.File, "b.yaml") {
		t.Fatalf("expected dpi sourced from b.yaml, got %+v", src)
	}
}

func TestLoadFromPath_MissingIncludeHasLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "dpi: 96\ninclude: nowhere.yaml\n")

	_, err := LoadFromPath(path)
	if err == nil || !strings.Contains(err.Error(), ":2:10: include \"nowhere.yaml\"") {
		t.Fatalf("expected located include error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		path   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"dpi", func(c *Config) { c.DPI = 0 }, "dpi"},
		{"border", func(c *Config) { c.UnderscanBorderPercent = 50 }, "underscan_border_percent"},
		{"direction", func(c *Config) { c.ExtendDirection = "diagonal" }, "extend_direction"},
		{"dbus name", func(c *Config) { c.DBus = DBusConfig{Enabled: true} }, "dbus.name"},
		{"anonymous output", func(c *Config) { c.Outputs = []OutputConfig{{Primary: true}} }, "outputs.0"},
		{"transform", func(c *Config) { c.Outputs = []OutputConfig{{Name: "DP-1", Transform: "sideways"}} }, "outputs.0.transform"},
		{"position", func(c *Config) { c.Outputs = []OutputConfig{{Name: "DP-1", Position: &Position{X: -1}}} }, "outputs.0.position"},
		{"two primaries", func(c *Config) {
			c.Outputs = []OutputConfig{{Name: "DP-1", Primary: true}, {Name: "DP-2", Primary: true}}
		}, "outputs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("expected path %q, got %q", tt.path, verr.Path)
			}
		})
	}
}

func TestParseModeSpec(t *testing.T) {
	spec, err := ParseModeSpec("2560x1440@143.91")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spec.Width != 2560 || spec.Height != 1440 || spec.Refresh != 143.91 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	spec, err = ParseModeSpec("1280x720")
	if err != nil || spec.Refresh != 0 {
		t.Fatalf("expected any refresh, got %+v (%v)", spec, err)
	}
	for _, bad := range []string{"", "1920", "1920x", "0x1080", "1920x1080@", "1920*1080"} {
		if _, err := ParseModeSpec(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestSaveToRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "randrd", "config.yaml")
	cfg := DefaultConfig()
	cfg.Outputs = []OutputConfig{{Name: "DP-1", Mode: "1920x1080"}}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Config.Outputs) != 1 || res.Config.Outputs[0].Mode != "1920x1080" {
		t.Fatalf("unexpected outputs after reload: %+v", res.Config.Outputs)
	}
}
