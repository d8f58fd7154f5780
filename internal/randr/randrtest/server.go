// Package randrtest provides an in-memory RandR server for tests.
package randrtest

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"

	"github.com/1broseidon/randrd/internal/randr"
)

// Output is the server-side state of one output.
type Output struct {
	Info      randr.OutputInfo
	Props     map[string]randr.Property
	PropInfos map[string]randr.PropertyInfo

	server *Server
}

// Server is a fake RandR server. Every exported field may be set directly
// by tests before handing the server to code under test.
type Server struct {
	mu sync.Mutex

	Time       uint32
	ConfigTime uint32

	Modes     []randr.ModeInfo
	Crtcs     map[uint32]*randr.CrtcInfo
	Outputs   map[uint32]*Output
	Primary   uint32
	SizeRange randr.SizeRange

	ScreenWidth    int
	ScreenHeight   int
	ScreenMmWidth  int
	ScreenMmHeight int

	Gammas map[uint32]randr.Gamma

	DPMS  bool
	Power randr.PowerLevel

	// RejectCrtcs makes SetCrtcConfig fail for the listed CRTCs.
	RejectCrtcs map[uint32]bool
	// FailResources makes ScreenResources return an error.
	FailResources bool
	// FailProperties makes OutputProperty fail for the listed names.
	FailProperties map[string]bool

	// Calls records every mutating request in order.
	Calls []string
	// CrtcConfigs records every SetCrtcConfig request in order.
	CrtcConfigs []randr.CrtcConfig
	Grabbed     bool

	crtcOrder   []uint32
	outputOrder []uint32
	atoms       map[string]uint32
	atomNames   map[uint32]string
}

// New returns an empty server with a 16384x16384 maximum screen size.
func New() *Server {
	return &Server{
		Time:        10,
		ConfigTime:  5,
		Crtcs:       make(map[uint32]*randr.CrtcInfo),
		Outputs:     make(map[uint32]*Output),
		Gammas:      make(map[uint32]randr.Gamma),
		RejectCrtcs: make(map[uint32]bool),
		SizeRange: randr.SizeRange{
			MinWidth: 320, MinHeight: 200,
			MaxWidth: 16384, MaxHeight: 16384,
		},
		DPMS:      true,
		atoms:     make(map[string]uint32),
		atomNames: make(map[uint32]string),
	}
}

// AddMode registers a mode with the given timings.
func (s *Server) AddMode(id uint32, width, height uint16, dotClock uint32, hTotal, vTotal uint16) randr.ModeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := randr.ModeInfo{
		ID:       id,
		Name:     fmt.Sprintf("%dx%d", width, height),
		Width:    width,
		Height:   height,
		DotClock: dotClock,
		HTotal:   hTotal,
		VTotal:   vTotal,
	}
	s.Modes = append(s.Modes, mode)
	return mode
}

// AddCrtc registers a disabled CRTC.
func (s *Server) AddCrtc(id uint32, rotations uint16, possible ...uint32) *randr.CrtcInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := &randr.CrtcInfo{
		Rotation:  randr.Rotate0,
		Rotations: rotations,
		Possible:  possible,
	}
	s.Crtcs[id] = info
	s.crtcOrder = append(s.crtcOrder, id)
	return info
}

// AddOutput registers a connected output. The first mode is preferred.
func (s *Server) AddOutput(id uint32, name string, modes, crtcs []uint32) *Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &Output{
		Info: randr.OutputInfo{
			Name:         name,
			Connection:   randr.Connected,
			MmWidth:      520,
			MmHeight:     290,
			Modes:        modes,
			Crtcs:        crtcs,
			NumPreferred: 1,
		},
		Props:     make(map[string]randr.Property),
		PropInfos: make(map[string]randr.PropertyInfo),
		server:    s,
	}
	s.Outputs[id] = out
	s.outputOrder = append(s.outputOrder, id)
	return out
}

// Enable configures a CRTC as if a previous client had done so.
func (s *Server) Enable(crtc, mode uint32, x, y int, rotation uint16, outputs ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configure(randr.CrtcConfig{
		Crtc: crtc, X: x, Y: y, Mode: mode, Rotation: rotation, Outputs: outputs,
	})
}

// SetInt sets an INTEGER property.
func (o *Output) SetInt(name string, values ...int32) *Output {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		xgb.Put32(data[i*4:], uint32(v))
	}
	o.Props[name] = randr.Property{Type: randr.TypeInteger, Format: 32, Data: data}
	return o
}

// SetRange sets the valid range of a property.
func (o *Output) SetRange(name string, lo, hi int32) *Output {
	o.PropInfos[name] = randr.PropertyInfo{Range: true, ValidValues: []int32{lo, hi}}
	return o
}

// SetAtom sets an ATOM property and the list of atoms it accepts.
func (o *Output) SetAtom(name, value string, choices ...string) *Output {
	o.server.mu.Lock()
	defer o.server.mu.Unlock()
	data := make([]byte, 4)
	xgb.Put32(data, o.server.intern(value))
	o.Props[name] = randr.Property{Type: randr.TypeAtom, Format: 32, Data: data}
	if len(choices) > 0 {
		valid := make([]int32, len(choices))
		for i, c := range choices {
			valid[i] = int32(o.server.intern(c))
		}
		o.PropInfos[name] = randr.PropertyInfo{ValidValues: valid}
	}
	return o
}

// SetBytes sets a format-8 property.
func (o *Output) SetBytes(name string, data []byte) *Output {
	o.Props[name] = randr.Property{Type: randr.TypeInteger, Format: 8, Data: data}
	return o
}

// IntProp returns the first value of an INTEGER property, if set.
func (o *Output) IntProp(name string) (int32, bool) {
	o.server.mu.Lock()
	defer o.server.mu.Unlock()
	prop, ok := o.Props[name]
	if !ok || prop.Format != 32 || len(prop.Data) < 4 {
		return 0, false
	}
	return int32(xgb.Get32(prop.Data)), true
}

// AtomProp returns the atom name stored in an ATOM property, if set.
func (o *Output) AtomProp(name string) (string, bool) {
	o.server.mu.Lock()
	defer o.server.mu.Unlock()
	prop, ok := o.Props[name]
	if !ok || prop.Type != randr.TypeAtom || len(prop.Data) < 4 {
		return "", false
	}
	atomName, ok := o.server.atomNames[xgb.Get32(prop.Data)]
	return atomName, ok
}

// Disconnect marks the output as disconnected.
func (o *Output) Disconnect() *Output {
	o.Info.Connection = randr.Disconnected
	return o
}

// Bump simulates an external configuration change by advancing the server
// timestamp.
func (s *Server) Bump() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Time++
	return s.Time
}

// Hotplug simulates a hotplug: the configuration timestamp moves past the
// last change timestamp.
func (s *Server) Hotplug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ConfigTime = s.Time + 1
}

func (s *Server) ScreenResources() (*randr.Resources, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailResources {
		return nil, randr.ErrNoResources
	}
	res := &randr.Resources{
		Timestamp:       s.Time,
		ConfigTimestamp: s.ConfigTime,
		Crtcs:           append([]uint32(nil), s.crtcOrder...),
		Outputs:         append([]uint32(nil), s.outputOrder...),
		Modes:           append([]randr.ModeInfo(nil), s.Modes...),
	}
	return res, nil
}

func (s *Server) CrtcInfo(crtc, _ uint32) (*randr.CrtcInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.Crtcs[crtc]
	if !ok {
		return nil, fmt.Errorf("bad crtc %d", crtc)
	}
	c := *info
	c.Timestamp = s.Time
	c.Outputs = append([]uint32(nil), info.Outputs...)
	c.Possible = append([]uint32(nil), info.Possible...)
	return &c, nil
}

func (s *Server) OutputInfo(output, _ uint32) (*randr.OutputInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.Outputs[output]
	if !ok {
		return nil, fmt.Errorf("bad output %d", output)
	}
	info := out.Info
	info.Timestamp = s.Time
	return &info, nil
}

func (s *Server) ScreenSizeRange() (randr.SizeRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SizeRange, nil
}

func (s *Server) SetScreenSize(width, height, mmWidth, mmHeight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, fmt.Sprintf("screen %dx%d %dx%dmm", width, height, mmWidth, mmHeight))
	s.ScreenWidth, s.ScreenHeight = width, height
	s.ScreenMmWidth, s.ScreenMmHeight = mmWidth, mmHeight
	return nil
}

func (s *Server) SetCrtcConfig(req randr.CrtcConfig) (randr.SetConfigStatus, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CrtcConfigs = append(s.CrtcConfigs, req)
	if req.Mode == randr.None {
		s.Calls = append(s.Calls, fmt.Sprintf("disable %d", req.Crtc))
	} else {
		s.Calls = append(s.Calls, fmt.Sprintf("crtc %d mode %d +%d+%d", req.Crtc, req.Mode, req.X, req.Y))
	}
	if _, ok := s.Crtcs[req.Crtc]; !ok {
		return 0, 0, fmt.Errorf("bad crtc %d", req.Crtc)
	}
	if s.RejectCrtcs[req.Crtc] {
		return randr.SetConfigFailed, s.Time, nil
	}
	if req.ConfigTimestamp != s.ConfigTime {
		return randr.SetConfigInvalidConfigTime, s.Time, nil
	}
	s.configure(req)
	s.Time++
	return randr.SetConfigSuccess, s.Time, nil
}

func (s *Server) configure(req randr.CrtcConfig) {
	info := s.Crtcs[req.Crtc]
	for _, id := range info.Outputs {
		if out, ok := s.Outputs[id]; ok {
			out.Info.Crtc = randr.None
		}
	}
	info.X, info.Y = req.X, req.Y
	info.Mode = req.Mode
	info.Rotation = req.Rotation
	info.Outputs = append([]uint32(nil), req.Outputs...)
	info.Width, info.Height = 0, 0
	for _, m := range s.Modes {
		if m.ID != req.Mode {
			continue
		}
		info.Width, info.Height = int(m.Width), int(m.Height)
		if req.Rotation&(randr.Rotate90|randr.Rotate270) != 0 {
			info.Width, info.Height = info.Height, info.Width
		}
	}
	for _, id := range req.Outputs {
		if out, ok := s.Outputs[id]; ok {
			out.Info.Crtc = req.Crtc
		}
	}
}

func (s *Server) OutputPrimary() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Primary, nil
}

func (s *Server) SetOutputPrimary(output uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, fmt.Sprintf("primary %d", output))
	s.Primary = output
	return nil
}

func (s *Server) OutputProperty(output uint32, name string) (*randr.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.Outputs[output]
	if !ok {
		return nil, fmt.Errorf("bad output %d", output)
	}
	if s.FailProperties[name] {
		return nil, fmt.Errorf("output %d: property %s: bad request", output, name)
	}
	prop, ok := out.Props[name]
	if !ok {
		return nil, nil
	}
	prop.Data = append([]byte(nil), prop.Data...)
	return &prop, nil
}

func (s *Server) QueryOutputProperty(output uint32, name string) (*randr.PropertyInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.Outputs[output]
	if !ok {
		return nil, fmt.Errorf("bad output %d", output)
	}
	info, ok := out.PropInfos[name]
	if !ok {
		if _, exists := out.Props[name]; !exists {
			return nil, nil
		}
		return &randr.PropertyInfo{}, nil
	}
	return &info, nil
}

func (s *Server) ChangeOutputProperty(output uint32, name string, prop randr.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.Outputs[output]
	if !ok {
		return fmt.Errorf("bad output %d", output)
	}
	s.Calls = append(s.Calls, fmt.Sprintf("property %d %s", output, name))
	out.Props[name] = prop
	return nil
}

func (s *Server) Atom(name string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intern(name), nil
}

func (s *Server) AtomName(atom uint32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.atomNames[atom]
	if !ok {
		return "", fmt.Errorf("bad atom %d", atom)
	}
	return name, nil
}

func (s *Server) intern(name string) uint32 {
	if id, ok := s.atoms[name]; ok {
		return id
	}
	id := uint32(100 + len(s.atoms))
	s.atoms[name] = id
	s.atomNames[id] = name
	return id
}

func (s *Server) CrtcGamma(crtc uint32) (*randr.Gamma, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Crtcs[crtc]; !ok {
		return nil, fmt.Errorf("bad crtc %d", crtc)
	}
	if g, ok := s.Gammas[crtc]; ok {
		return &g, nil
	}
	ramp := make([]uint16, 256)
	for i := range ramp {
		ramp[i] = uint16(i * 257)
	}
	return &randr.Gamma{Red: ramp, Green: ramp, Blue: ramp}, nil
}

func (s *Server) SetCrtcGamma(crtc uint32, gamma randr.Gamma) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Crtcs[crtc]; !ok {
		return fmt.Errorf("bad crtc %d", crtc)
	}
	s.Calls = append(s.Calls, fmt.Sprintf("gamma %d", crtc))
	s.Gammas[crtc] = gamma
	return nil
}

func (s *Server) PowerLevel() (randr.PowerLevel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Power, s.DPMS, nil
}

func (s *Server) SetPowerLevel(level randr.PowerLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.DPMS {
		return fmt.Errorf("dpms disabled")
	}
	s.Calls = append(s.Calls, fmt.Sprintf("power %d", level))
	s.Power = level
	return nil
}

func (s *Server) GrabServer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "grab")
	s.Grabbed = true
	return nil
}

func (s *Server) UngrabServer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "ungrab")
	s.Grabbed = false
	return nil
}

func (s *Server) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "sync")
	return nil
}

// ResetCalls clears the recorded request log.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
	s.CrtcConfigs = nil
}

// CallLog returns a copy of the request log.
func (s *Server) CallLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Calls...)
}

var _ randr.Client = (*Server)(nil)
