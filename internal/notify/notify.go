// Package notify publishes display configuration events on the session bus.
package notify

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/backend"
)

const (
	signalMonitorsChanged      = "MonitorsChanged"
	signalConfirmConfiguration = "ConfirmConfiguration"
)

// Notifier is a backend listener that re-emits its callbacks as D-Bus
// signals. The bus name doubles as the interface name, and the object path
// is derived from it.
type Notifier struct {
	conn   Conn
	name   string
	path   dbus.ObjectPath
	logger *zap.Logger
}

// New creates a notifier that emits on conn under name.
func New(conn Conn, name string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		conn:   conn,
		name:   name,
		path:   ObjectPath(name),
		logger: logger.Named("notify"),
	}
}

// ObjectPath maps a bus name like org.randrd.DisplayConfig to
// /org/randrd/DisplayConfig.
func ObjectPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/" + strings.ReplaceAll(name, ".", "/"))
}

// Path returns the object path signals are emitted from.
func (n *Notifier) Path() dbus.ObjectPath {
	return n.path
}

// Start claims the bus name. Another owner of the name is an error.
func (n *Notifier) Start() error {
	reply, err := n.conn.RequestName(n.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name %s: %w", n.name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner && reply != dbus.RequestNameReplyAlreadyOwner {
		return fmt.Errorf("bus name %s is already taken", n.name)
	}
	n.logger.Info("claimed bus name", zap.String("name", n.name), zap.String("path", string(n.path)))
	return nil
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	return n.conn.Close()
}

// HardwareChanged emits MonitorsChanged with the change reason.
func (n *Notifier) HardwareChanged(reason backend.Reason) {
	n.emit(signalMonitorsChanged, reason.String())
}

// ConfirmConfiguration emits ConfirmConfiguration so a session UI can ask
// the user to keep the new layout.
func (n *Notifier) ConfirmConfiguration() {
	n.emit(signalConfirmConfiguration)
}

func (n *Notifier) emit(signal string, values ...interface{}) {
	member := n.name + "." + signal
	if err := n.conn.Emit(n.path, member, values...); err != nil {
		n.logger.Warn("emit failed", zap.String("signal", member), zap.Error(err))
		return
	}
	n.logger.Debug("emitted", zap.String("signal", member))
}
