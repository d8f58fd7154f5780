package layout

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/config"
	"github.com/1broseidon/randrd/internal/display"
)

// Runner executes fn on the goroutine that owns the backend.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// Manager keeps the screen configured according to the policy. It reacts
// to hardware changes and reverts temporary configurations that were not
// confirmed in time. Apart from Config and SetConfig, methods must be
// called on the backend's loop.
type Manager struct {
	backend backend.Backend
	planner *Planner
	runner  Runner
	logger  *zap.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	// outputs is the connected output set the current layout was made for.
	outputs []string

	// revertTo is the configuration restored when a temporary apply is
	// not confirmed; confirmGen invalidates stale timers.
	revertTo     *display.Plan
	confirmGen   int
	confirmTimer *time.Timer

	afterFunc func(time.Duration, func()) *time.Timer
}

var _ backend.Listener = (*Manager)(nil)

func NewManager(b backend.Backend, cfg *config.Config, runner Runner, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Manager{
		backend:   b,
		planner:   NewPlanner(logger),
		runner:    runner,
		logger:    logger,
		cfg:       cfg,
		afterFunc: time.AfterFunc,
	}
}

// Config returns the configuration the policy currently uses.
func (m *Manager) Config() *config.Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// SetConfig replaces the configuration used by subsequent plans.
func (m *Manager) SetConfig(cfg *config.Config) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	m.cfg = cfg
}

// Start records the connected outputs and, when configured, applies the
// layout once.
func (m *Manager) Start() error {
	m.outputs = connectedOutputs(m.backend.GPU())
	if !m.Config().ApplyOnStart {
		return nil
	}
	_, _, err := m.Apply(backend.MethodPersistent)
	return err
}

// Plan computes the policy's configuration for the current hardware.
func (m *Manager) Plan() (*display.Plan, error) {
	return m.planner.Plan(m.backend.GPU(), m.Config())
}

// Apply plans and applies the layout with method.
func (m *Manager) Apply(method backend.Method) (*display.Plan, display.ApplyResult, error) {
	plan, err := m.Plan()
	if err != nil {
		return nil, display.ApplyResult{}, err
	}
	result, err := m.ApplyPlan(plan, method)
	return plan, result, err
}

// ApplyPlan applies an explicit plan. A temporary apply remembers the
// live configuration so it can be restored if not confirmed.
func (m *Manager) ApplyPlan(plan *display.Plan, method backend.Method) (display.ApplyResult, error) {
	var previous *display.Plan
	if method == backend.MethodTemporary {
		previous = display.CurrentPlan(m.backend.GPU())
	}
	if method != backend.MethodVerify {
		m.cancelConfirm()
		m.revertTo = previous
	}

	result, err := m.backend.ApplyConfig(plan, method)
	if err != nil {
		m.revertTo = nil
		return result, err
	}
	if method != backend.MethodVerify {
		m.outputs = connectedOutputs(m.backend.GPU())
	}
	return result, nil
}

// Pending reports whether a temporary configuration awaits confirmation.
func (m *Manager) Pending() bool {
	return m.revertTo != nil
}

// Confirm keeps the temporary configuration. It reports false when
// nothing was pending.
func (m *Manager) Confirm() bool {
	if m.revertTo == nil {
		return false
	}
	m.cancelConfirm()
	m.revertTo = nil
	m.logger.Info("configuration confirmed")
	return true
}

// Revert restores the configuration saved by the last temporary apply.
func (m *Manager) Revert() error {
	previous := m.revertTo
	if previous == nil {
		return nil
	}
	m.cancelConfirm()
	m.revertTo = nil
	if _, err := m.backend.ApplyConfig(previous, backend.MethodPersistent); err != nil {
		m.logger.Error("failed to restore previous configuration", zap.Error(err))
		return err
	}
	m.logger.Info("restored previous configuration")
	return nil
}

// ConfirmConfiguration starts the confirmation countdown for a temporary
// apply. A zero timeout waits forever.
func (m *Manager) ConfirmConfiguration() {
	if m.revertTo == nil {
		return
	}
	timeout := time.Duration(m.Config().ConfirmTimeout) * time.Second
	m.logger.Info("waiting for configuration confirmation", zap.Duration("timeout", timeout))
	if timeout <= 0 {
		return
	}
	gen := m.confirmGen
	m.confirmTimer = m.afterFunc(timeout, func() {
		err := m.runner.Do(context.Background(), func() {
			if gen != m.confirmGen || m.revertTo == nil {
				return
			}
			m.logger.Warn("configuration not confirmed in time, reverting")
			_ = m.Revert()
		})
		if err != nil {
			m.logger.Debug("confirmation timer dropped", zap.Error(err))
		}
	})
}

func (m *Manager) cancelConfirm() {
	m.confirmGen++
	if m.confirmTimer != nil {
		m.confirmTimer.Stop()
		m.confirmTimer = nil
	}
}

// HardwareChanged replans after a pending reconfiguration, and after an
// external change that added or removed outputs when reconfigure_on_hotplug
// is set.
func (m *Manager) HardwareChanged(reason backend.Reason) {
	current := connectedOutputs(m.backend.GPU())
	changed := !slices.Equal(current, m.outputs)
	m.outputs = current

	switch reason {
	case backend.ReasonSelfApplied:
		return
	case backend.ReasonExternal:
		if !changed || !m.Config().ReconfigureOnHotplug {
			return
		}
		m.logger.Info("outputs changed, reconfiguring", zap.Strings("outputs", current))
	case backend.ReasonPendingReconfigure:
		m.logger.Info("server requested reconfiguration")
	}

	if _, _, err := m.Apply(backend.MethodPersistent); err != nil {
		m.logger.Error("failed to reconfigure", zap.Stringer("reason", reason), zap.Error(err))
	}
}

func connectedOutputs(g *display.GPU) []string {
	names := make([]string, 0, len(g.Outputs()))
	for _, o := range g.Outputs() {
		names = append(names, o.Name)
	}
	return names
}
