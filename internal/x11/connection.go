package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/dpms"
	xrandr "github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"go.uber.org/zap"
)

// Minimum RandR version: GetScreenResourcesCurrent and the primary output
// requests arrived in 1.3.
const (
	randrMajor = 1
	randrMinor = 3
)

// Connection manages the X11 connection and the extensions the display
// backend relies on.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	logger *zap.Logger
	dpms   bool
}

// NewConnection connects to display (or $DISPLAY when empty), initializes
// RandR and selects screen change notifications on the root window.
func NewConnection(display string, logger *zap.Logger) (*Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	c := &Connection{
		XUtil:  xu,
		Root:   xu.RootWin(),
		logger: logger,
	}

	if err := c.initRandr(); err != nil {
		xu.Conn().Close()
		return nil, err
	}
	if err := dpms.Init(xu.Conn()); err != nil {
		logger.Info("DPMS extension unavailable", zap.Error(err))
	} else {
		c.dpms = true
	}
	return c, nil
}

func (c *Connection) initRandr() error {
	conn := c.conn()
	if err := xrandr.Init(conn); err != nil {
		return fmt.Errorf("randr init failed: %w", err)
	}
	version, err := xrandr.QueryVersion(conn, randrMajor, randrMinor).Reply()
	if err != nil {
		return fmt.Errorf("randr version query failed: %w", err)
	}
	if version.MajorVersion < randrMajor ||
		(version.MajorVersion == randrMajor && version.MinorVersion < randrMinor) {
		return fmt.Errorf("randr %d.%d is too old, need %d.%d",
			version.MajorVersion, version.MinorVersion, randrMajor, randrMinor)
	}
	err = xrandr.SelectInputChecked(conn, c.Root,
		xrandr.NotifyMaskScreenChange|xrandr.NotifyMaskOutputChange|xrandr.NotifyMaskCrtcChange).Check()
	if err != nil {
		return fmt.Errorf("select randr input: %w", err)
	}
	c.logger.Debug("randr initialized",
		zap.Uint32("major", version.MajorVersion),
		zap.Uint32("minor", version.MinorVersion))
	return nil
}

func (c *Connection) conn() *xgb.Conn {
	return c.XUtil.Conn()
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
