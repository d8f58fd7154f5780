package display

import (
	"fmt"

	"github.com/1broseidon/randrd/internal/randr"
)

// Mode is an immutable display timing owned by the GPU generation that
// created it.
type Mode struct {
	ID          uint32
	Name        string
	Width       int
	Height      int
	RefreshRate float64
	Flags       uint32
}

// RefreshRate computes the vertical refresh rate in Hz of a raw mode.
// DoubleScan doubles the effective vertical total and Interlace halves it.
// Modes with a zero horizontal or vertical total report 0.
func RefreshRate(info randr.ModeInfo) float64 {
	if info.HTotal == 0 || info.VTotal == 0 {
		return 0
	}
	vTotal := float64(info.VTotal)
	if info.Flags&randr.ModeFlagDoubleScan != 0 {
		vTotal *= 2
	}
	if info.Flags&randr.ModeFlagInterlace != 0 {
		vTotal /= 2
	}
	return float64(info.DotClock) / (float64(info.HTotal) * vTotal)
}

func newMode(info randr.ModeInfo) *Mode {
	return &Mode{
		ID:          info.ID,
		Name:        fmt.Sprintf("%dx%d", info.Width, info.Height),
		Width:       int(info.Width),
		Height:      int(info.Height),
		RefreshRate: RefreshRate(info),
		Flags:       info.Flags,
	}
}

// Interlaced reports whether the mode scans alternate lines.
func (m *Mode) Interlaced() bool {
	return m.Flags&randr.ModeFlagInterlace != 0
}

func (m *Mode) String() string {
	return fmt.Sprintf("%s@%.2f", m.Name, m.RefreshRate)
}
