// Package backend exposes the display hardware model to the rest of the
// session: rereads, configuration applies, color and power controls and
// change notifications.
package backend

import (
	"fmt"
	"strings"

	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/randr"
)

// Method selects how ApplyConfig treats a configuration.
type Method int

const (
	// MethodVerify validates the configuration without touching the server.
	MethodVerify Method = iota
	// MethodTemporary applies the configuration and asks listeners to
	// confirm it.
	MethodTemporary
	// MethodPersistent applies the configuration as final.
	MethodPersistent
)

func (m Method) String() string {
	switch m {
	case MethodVerify:
		return "verify"
	case MethodTemporary:
		return "temporary"
	case MethodPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod parses the names produced by Method.String.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verify":
		return MethodVerify, nil
	case "temporary":
		return MethodTemporary, nil
	case "persistent", "":
		return MethodPersistent, nil
	default:
		return 0, fmt.Errorf("unknown apply method %q", s)
	}
}

// Reason tells listeners where a hardware change came from.
type Reason int

const (
	// ReasonExternal is a change made by another client or by a hotplug.
	// There is no target configuration to assume.
	ReasonExternal Reason = iota
	// ReasonSelfApplied is the echo of our own apply.
	ReasonSelfApplied
	// ReasonPendingReconfigure means the server holds a configuration newer
	// than the last change and a full reconfiguration is needed.
	ReasonPendingReconfigure
)

func (r Reason) String() string {
	switch r {
	case ReasonExternal:
		return "external"
	case ReasonSelfApplied:
		return "self-applied"
	case ReasonPendingReconfigure:
		return "pending-reconfigure"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Listener receives backend notifications. Callbacks run on the backend's
// loop and may call back into the backend.
type Listener interface {
	HardwareChanged(reason Reason)
	ConfirmConfiguration()
}

// PowerSaveMode is the global DPMS state.
type PowerSaveMode int

const (
	PowerSaveUnsupported PowerSaveMode = -1
	PowerSaveOn          PowerSaveMode = PowerSaveMode(randr.PowerOn)
	PowerSaveStandby     PowerSaveMode = PowerSaveMode(randr.PowerStandby)
	PowerSaveSuspend     PowerSaveMode = PowerSaveMode(randr.PowerSuspend)
	PowerSaveOff         PowerSaveMode = PowerSaveMode(randr.PowerOff)
)

func (m PowerSaveMode) String() string {
	switch m {
	case PowerSaveOn:
		return "on"
	case PowerSaveStandby:
		return "standby"
	case PowerSaveSuspend:
		return "suspend"
	case PowerSaveOff:
		return "off"
	default:
		return "unsupported"
	}
}

// ParsePowerSaveMode parses on, standby, suspend or off.
func ParsePowerSaveMode(s string) (PowerSaveMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return PowerSaveOn, nil
	case "standby":
		return PowerSaveStandby, nil
	case "suspend":
		return PowerSaveSuspend, nil
	case "off":
		return PowerSaveOff, nil
	default:
		return PowerSaveUnsupported, fmt.Errorf("unknown power save mode %q (want on, standby, suspend or off)", s)
	}
}

// Backend is the display backend API. Implementations are not safe for
// concurrent use; callers serialize through the backend's Loop.
type Backend interface {
	// Reread replaces the hardware model with the server's current state.
	Reread() error

	GPU() *display.GPU
	Modes() []*display.Mode
	Crtcs() []*display.Crtc
	Outputs() []*display.Output
	LogicalMonitors() []display.LogicalMonitor

	// ApplyConfig verifies plan and, unless method is MethodVerify, applies
	// it. The error reports invalid plans and fatal failures only; per-CRTC
	// failures are in the result.
	ApplyConfig(plan *display.Plan, method Method) (display.ApplyResult, error)

	CrtcGamma(crtc uint32) (*randr.Gamma, error)
	SetCrtcGamma(crtc uint32, gamma randr.Gamma) error
	SetOutputCTM(output uint32, ctm CTM) error
	SetOutputMaxBPC(output uint32, bpc int) error
	SetOutputBacklight(output uint32, value int) error
	PowerSaveMode() (PowerSaveMode, error)
	SetPowerSaveMode(mode PowerSaveMode) error

	// Subscribe registers l and returns a function that unregisters it.
	Subscribe(l Listener) (unsubscribe func())
}
