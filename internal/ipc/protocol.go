package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/display"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload       CommandType = "RELOAD"
	CommandGetStatus    CommandType = "GET_STATUS"
	CommandGetOutputs   CommandType = "GET_OUTPUTS"
	CommandGetMonitors  CommandType = "GET_MONITORS"
	CommandReread       CommandType = "REREAD"
	CommandApply        CommandType = "APPLY"
	CommandConfirm      CommandType = "CONFIRM"
	CommandRevert       CommandType = "REVERT"
	CommandSetGamma     CommandType = "SET_GAMMA"
	CommandSetPowerSave CommandType = "SET_POWER_SAVE"
	CommandSetMaxBPC    CommandType = "SET_MAX_BPC"
	CommandSetCTM       CommandType = "SET_CTM"
	CommandSetBacklight CommandType = "SET_BACKLIGHT"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	DaemonRunning       bool               `json:"daemon_running"`
	UptimeSeconds       int64              `json:"uptime_seconds"`
	Display             string             `json:"display,omitempty"`
	Screen              backend.ScreenSize `json:"screen"`
	Generation          uint64             `json:"generation"`
	Outputs             int                `json:"outputs"`
	ActiveMonitors      int                `json:"active_monitors"`
	Managed             bool               `json:"managed"`
	PendingConfirmation bool               `json:"pending_confirmation"`
	PowerSave           string             `json:"power_save"`
}

// ModeInfo is one mode an output supports.
type ModeInfo struct {
	ID        uint32  `json:"id"`
	Name      string  `json:"name"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Refresh   float64 `json:"refresh"`
	Preferred bool    `json:"preferred,omitempty"`
	Current   bool    `json:"current,omitempty"`
}

// BacklightInfo is an output's brightness range and level.
type BacklightInfo struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Value int `json:"value"`
}

// OutputInfo represents information about a single connected output
type OutputInfo struct {
	ID        uint32 `json:"id"`
	Name      string `json:"name"`
	Connector string `json:"connector"`
	Vendor    string `json:"vendor,omitempty"`
	Product   string `json:"product,omitempty"`
	Serial    string `json:"serial,omitempty"`
	WidthMM   int    `json:"width_mm"`
	HeightMM  int    `json:"height_mm"`

	Enabled   bool              `json:"enabled"`
	Crtc      uint32            `json:"crtc,omitempty"`
	Layout    display.Rect      `json:"layout"`
	Transform display.Transform `json:"transform"`

	Primary      bool `json:"primary,omitempty"`
	Presentation bool `json:"presentation,omitempty"`
	Underscan    bool `json:"underscan,omitempty"`
	MaxBPC       int  `json:"max_bpc,omitempty"`

	SupportsUnderscan bool           `json:"supports_underscan,omitempty"`
	SupportsCTM       bool           `json:"supports_ctm,omitempty"`
	MaxBPCRange       []int          `json:"max_bpc_range,omitempty"`
	Backlight         *BacklightInfo `json:"backlight,omitempty"`
	NonDesktop        bool           `json:"non_desktop,omitempty"`

	Modes []ModeInfo `json:"modes"`
}

// OutputsData represents the data returned by GET_OUTPUTS
type OutputsData struct {
	Outputs []OutputInfo `json:"outputs"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []display.LogicalMonitor `json:"monitors"`
}

// ApplyPayload represents the payload for APPLY. Without a plan the
// daemon's layout policy computes one.
type ApplyPayload struct {
	Method string        `json:"method,omitempty"` // verify, temporary or persistent
	Plan   *display.Plan `json:"plan,omitempty"`
}

// ApplyData represents the data returned by APPLY
type ApplyData struct {
	Method              string        `json:"method"`
	Plan                *display.Plan `json:"plan"`
	Timestamp           uint32        `json:"timestamp,omitempty"`
	Width               int           `json:"width,omitempty"`
	Height              int           `json:"height,omitempty"`
	Failures            []string      `json:"failures,omitempty"`
	PendingConfirmation bool          `json:"pending_confirmation,omitempty"`
	ConfirmTimeout      int           `json:"confirm_timeout,omitempty"`
}

// ConfirmData represents the data returned by CONFIRM and REVERT
type ConfirmData struct {
	WasPending bool `json:"was_pending"`
}

// GammaPayload sets a CRTC gamma ramp from per-channel exponents.
// Zero values mean 1.
type GammaPayload struct {
	Crtc       uint32  `json:"crtc"`
	Red        float64 `json:"red,omitempty"`
	Green      float64 `json:"green,omitempty"`
	Blue       float64 `json:"blue,omitempty"`
	Brightness float64 `json:"brightness,omitempty"`
}

type PowerSavePayload struct {
	Mode string `json:"mode"`
}

// OutputValuePayload targets one output by name with an integer value,
// for SET_MAX_BPC and SET_BACKLIGHT.
type OutputValuePayload struct {
	Output string `json:"output"`
	Value  int    `json:"value"`
}

type CTMPayload struct {
	Output string      `json:"output"`
	Matrix backend.CTM `json:"matrix"`
}

type ReloadPayload struct {
	Apply bool `json:"apply,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
