package notify

import (
	"github.com/godbus/dbus/v5"
)

// Conn is the part of a D-Bus connection the notifier uses.
//
//go:generate mockgen -destination=mocks/conn_mock.go -package=mocks github.com/1broseidon/randrd/internal/notify Conn
type Conn interface {
	// RequestName claims a well-known bus name.
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)

	// Emit sends a signal from the object at path.
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error

	// Close closes the connection.
	Close() error
}

// StdConn is the real implementation using godbus.
type StdConn struct {
	conn *dbus.Conn
}

// NewSessionConn opens a private connection to the session bus.
func NewSessionConn() (*StdConn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdConn{conn: conn}, nil
}

func (c *StdConn) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return c.conn.RequestName(name, flags)
}

func (c *StdConn) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	return c.conn.Emit(path, name, values...)
}

func (c *StdConn) Close() error {
	return c.conn.Close()
}
