package x11

import (
	xrandr "github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/randrd/internal/randr"
)

// OnScreenChange calls fn for every RandR screen change notification. All
// other events keep flowing through the xevent queue and are dropped there
// when nothing listens for them.
func (c *Connection) OnScreenChange(fn func(randr.ScreenChange)) {
	xevent.HookFun(func(_ *xgbutil.XUtil, ev interface{}) bool {
		if sc, ok := ev.(xrandr.ScreenChangeNotifyEvent); ok {
			fn(screenChange(sc))
		}
		return true
	}).Connect(c.XUtil)
}

func screenChange(ev xrandr.ScreenChangeNotifyEvent) randr.ScreenChange {
	return randr.ScreenChange{
		Timestamp:       uint32(ev.Timestamp),
		ConfigTimestamp: uint32(ev.ConfigTimestamp),
		Rotation:        uint16(ev.Rotation),
		Width:           int(ev.Width),
		Height:          int(ev.Height),
		MmWidth:         int(ev.Mwidth),
		MmHeight:        int(ev.Mheight),
	}
}

// Ping starts the xevent main loop in its own goroutine. The loop sends on
// before ahead of dispatching queued events and on after once done; a caller
// that blocks on after once it received before yields the connection to
// event handlers in between. quit receives once the loop exits.
func (c *Connection) Ping() (before, after, quit chan struct{}) {
	return xevent.MainPing(c.XUtil)
}

// Quit stops the xevent main loop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}
