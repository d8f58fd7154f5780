package backend

import "math"

// CTM is a 3x3 color transformation matrix in row-major order.
type CTM [9]float64

// IdentityCTM leaves colors unchanged.
var IdentityCTM = CTM{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Words encodes the matrix the way the kernel expects it in the CTM output
// property: each coefficient is an S31.32 sign-magnitude fixed point value
// split into its low and high 32-bit halves.
func (m CTM) Words() []uint32 {
	words := make([]uint32, 0, 2*len(m))
	for _, v := range m {
		fixed := fixedS3132(v)
		words = append(words, uint32(fixed), uint32(fixed>>32))
	}
	return words
}

func fixedS3132(v float64) uint64 {
	const signBit = uint64(1) << 63
	var sign uint64
	if math.Signbit(v) {
		sign = signBit
		v = -v
	}
	scaled := math.Round(v * (1 << 32))
	if scaled >= float64(signBit) || math.IsNaN(scaled) {
		return sign | (signBit - 1)
	}
	return sign | uint64(scaled)
}
