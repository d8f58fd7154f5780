package mcp

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// StatusOutput is the output for the get_status tool.
type StatusOutput struct {
	Display             string `json:"display,omitempty"`
	ScreenWidth         int    `json:"screen_width"`
	ScreenHeight        int    `json:"screen_height"`
	Outputs             int    `json:"outputs"`
	ActiveMonitors      int    `json:"active_monitors"`
	Managed             bool   `json:"managed"`
	PendingConfirmation bool   `json:"pending_confirmation"`
	PowerSave           string `json:"power_save"`
	UptimeSeconds       int64  `json:"uptime_seconds"`
}

// ListOutputsInput is the input for the list_outputs tool.
type ListOutputsInput struct{}

// OutputSummary describes one connected output.
type OutputSummary struct {
	Name      string   `json:"name"`
	Connector string   `json:"connector"`
	Vendor    string   `json:"vendor,omitempty"`
	Product   string   `json:"product,omitempty"`
	Enabled   bool     `json:"enabled"`
	Primary   bool     `json:"primary,omitempty"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Transform string   `json:"transform"`
	Mode      string   `json:"mode,omitempty"`
	Modes     []string `json:"modes"`
}

// ListOutputsOutput is the output for the list_outputs tool.
type ListOutputsOutput struct {
	Outputs []OutputSummary `json:"outputs"`
}

// ListMonitorsInput is the input for the list_monitors tool.
type ListMonitorsInput struct{}

// MonitorSummary is one lit region of the screen.
type MonitorSummary struct {
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Transform string   `json:"transform"`
	Primary   bool     `json:"primary"`
	Mode      string   `json:"mode"`
	Refresh   float64  `json:"refresh"`
	Outputs   []string `json:"outputs"`
}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []MonitorSummary `json:"monitors"`
}

// ApplyLayoutInput is the input for the apply_layout tool.
type ApplyLayoutInput struct {
	Method string `json:"method,omitempty" jsonschema:"verify, temporary or persistent (default: temporary). Temporary changes revert unless confirmed."`
}

// ApplyLayoutOutput is the output for the apply_layout tool.
type ApplyLayoutOutput struct {
	Method              string           `json:"method"`
	Width               int              `json:"width,omitempty"`
	Height              int              `json:"height,omitempty"`
	Monitors            []MonitorSummary `json:"monitors"`
	Failures            []string         `json:"failures,omitempty"`
	PendingConfirmation bool             `json:"pending_confirmation"`
	ConfirmTimeout      int              `json:"confirm_timeout,omitempty"`
}

// ConfirmInput is the input for the confirm_configuration tool.
type ConfirmInput struct {
	Keep bool `json:"keep" jsonschema:"required,true keeps the pending configuration, false restores the previous one"`
}

// ConfirmOutput is the output for the confirm_configuration tool.
type ConfirmOutput struct {
	WasPending bool `json:"was_pending"`
	Kept       bool `json:"kept"`
}

// SetPowerSaveInput is the input for the set_power_save tool.
type SetPowerSaveInput struct {
	Mode string `json:"mode" jsonschema:"required,on, standby, suspend or off"`
}

// SetPowerSaveOutput is the output for the set_power_save tool.
type SetPowerSaveOutput struct {
	Mode string `json:"mode"`
}

// ReloadConfigInput is the input for the reload_config tool.
type ReloadConfigInput struct {
	Apply bool `json:"apply,omitempty" jsonschema:"When true, apply the reloaded layout persistently"`
}

// ReloadConfigOutput is the output for the reload_config tool.
type ReloadConfigOutput struct {
	Applied bool `json:"applied"`
}
