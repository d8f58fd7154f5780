package backend

import (
	"fmt"
	"math"

	"github.com/1broseidon/randrd/internal/randr"
)

// GammaRamp builds a ramp of size entries with a per-channel gamma
// exponent, scaled by brightness in [0, 1]. Gamma 1 is linear.
func GammaRamp(size int, red, green, blue, brightness float64) (randr.Gamma, error) {
	if size < 2 {
		return randr.Gamma{}, fmt.Errorf("gamma ramp size %d too small", size)
	}
	for _, g := range []float64{red, green, blue} {
		if !(g > 0) || math.IsInf(g, 0) {
			return randr.Gamma{}, fmt.Errorf("gamma %v must be positive", g)
		}
	}
	if brightness < 0 || brightness > 1 {
		return randr.Gamma{}, fmt.Errorf("brightness %v outside [0, 1]", brightness)
	}
	return randr.Gamma{
		Red:   channel(size, red, brightness),
		Green: channel(size, green, brightness),
		Blue:  channel(size, blue, brightness),
	}, nil
}

func channel(size int, gamma, brightness float64) []uint16 {
	ramp := make([]uint16, size)
	for i := range ramp {
		v := math.Pow(float64(i)/float64(size-1), 1/gamma) * brightness * 65535
		ramp[i] = uint16(math.Min(65535, math.Round(v)))
	}
	return ramp
}
