package randr

// Client is the set of RandR requests the display backend issues. The X11
// implementation lives in internal/x11; tests use randrtest.Server.
//
// Lookups of objects the server does not know return an error; property
// reads of a property the output does not carry return (nil, nil).
type Client interface {
	ScreenResources() (*Resources, error)
	CrtcInfo(crtc, configTimestamp uint32) (*CrtcInfo, error)
	OutputInfo(output, configTimestamp uint32) (*OutputInfo, error)
	ScreenSizeRange() (SizeRange, error)
	SetScreenSize(width, height, mmWidth, mmHeight int) error

	// SetCrtcConfig returns the request status and the server timestamp of
	// the configuration change.
	SetCrtcConfig(req CrtcConfig) (SetConfigStatus, uint32, error)

	OutputPrimary() (uint32, error)
	SetOutputPrimary(output uint32) error

	OutputProperty(output uint32, name string) (*Property, error)
	QueryOutputProperty(output uint32, name string) (*PropertyInfo, error)
	ChangeOutputProperty(output uint32, name string, prop Property) error

	// Atom and AtomName translate between atom names and ids for properties
	// whose values are atoms.
	Atom(name string) (uint32, error)
	AtomName(atom uint32) (string, error)

	CrtcGamma(crtc uint32) (*Gamma, error)
	SetCrtcGamma(crtc uint32, gamma Gamma) error

	// PowerLevel reports the DPMS level; ok is false when DPMS is not
	// available or disabled.
	PowerLevel() (level PowerLevel, ok bool, err error)
	SetPowerLevel(level PowerLevel) error

	GrabServer() error
	UngrabServer() error
	// Sync flushes pending requests and waits for the server to process
	// them.
	Sync() error
}
