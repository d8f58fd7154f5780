package display

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/1broseidon/randrd/internal/randr"
)

func TestRefreshRate(t *testing.T) {
	tests := []struct {
		name string
		info randr.ModeInfo
		want float64
	}{
		{
			name: "1080p60",
			info: randr.ModeInfo{DotClock: 148500000, HTotal: 2200, VTotal: 1125},
			want: 60.0,
		},
		{
			name: "1080p59.94",
			info: randr.ModeInfo{DotClock: 148352000, HTotal: 2200, VTotal: 1125},
			want: 59.94,
		},
		{
			name: "doublescan halves the rate",
			info: randr.ModeInfo{DotClock: 25175000, HTotal: 800, VTotal: 525, Flags: randr.ModeFlagDoubleScan},
			want: 29.97,
		},
		{
			name: "interlace doubles the rate",
			info: randr.ModeInfo{DotClock: 74250000, HTotal: 2200, VTotal: 1125, Flags: randr.ModeFlagInterlace},
			want: 60.0,
		},
		{
			name: "zero htotal",
			info: randr.ModeInfo{DotClock: 148500000, HTotal: 0, VTotal: 1125},
			want: 0,
		},
		{
			name: "zero vtotal",
			info: randr.ModeInfo{DotClock: 148500000, HTotal: 2200, VTotal: 0},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RefreshRate(tt.info), 0.01)
		})
	}
}

func TestRefreshRateZeroTotalsForAllFlags(t *testing.T) {
	for flags := uint32(0); flags < 1<<14; flags++ {
		for _, totals := range [][2]uint16{{0, 0}, {0, 1125}, {2200, 0}} {
			info := randr.ModeInfo{DotClock: 148500000, HTotal: totals[0], VTotal: totals[1], Flags: flags}
			if got := RefreshRate(info); got != 0 {
				t.Fatalf("flags %#x totals %v: got %v, want 0", flags, totals, got)
			}
		}
		info := randr.ModeInfo{DotClock: 148500000, HTotal: 2200, VTotal: 1125, Flags: flags}
		if got := RefreshRate(info); got <= 0 {
			t.Fatalf("flags %#x: got %v, want positive rate", flags, got)
		}
	}
}

func TestNewModeName(t *testing.T) {
	m := newMode(randr.ModeInfo{ID: 42, Name: "ignored", Width: 1920, Height: 1080, DotClock: 148500000, HTotal: 2200, VTotal: 1125})

	assert.Equal(t, uint32(42), m.ID)
	assert.Equal(t, "1920x1080", m.Name)
	assert.Equal(t, 1920, m.Width)
	assert.Equal(t, 1080, m.Height)
	assert.Equal(t, "1920x1080@60.00", m.String())
	assert.False(t, m.Interlaced())
}
