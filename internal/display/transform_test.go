package display

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/randrd/internal/randr"
)

var (
	singleRotations = []uint16{randr.Rotate0, randr.Rotate90, randr.Rotate180, randr.Rotate270}
	reflections     = []uint16{0, randr.ReflectX, randr.ReflectY, randr.ReflectX | randr.ReflectY}
)

func TestTransformFromXrandrCanonical(t *testing.T) {
	for _, rot := range singleRotations {
		for _, refl := range reflections {
			got := TransformFromXrandr(rot | refl)
			assert.GreaterOrEqual(t, int(got), int(TransformNormal))
			assert.LessOrEqual(t, int(got), int(TransformFlipped270))
		}
	}
}

func TestTransformFromXrandr(t *testing.T) {
	tests := []struct {
		bits uint16
		want Transform
	}{
		{randr.Rotate0, TransformNormal},
		{randr.Rotate90, Transform90},
		{randr.Rotate180, Transform180},
		{randr.Rotate270, Transform270},
		{randr.Rotate0 | randr.ReflectX, TransformFlipped},
		{randr.Rotate90 | randr.ReflectX, TransformFlipped90},
		{randr.Rotate180 | randr.ReflectX, TransformFlipped180},
		{randr.Rotate270 | randr.ReflectX, TransformFlipped270},
		{randr.Rotate0 | randr.ReflectY, TransformFlipped180},
		{randr.Rotate90 | randr.ReflectY, TransformFlipped90},
		{randr.Rotate180 | randr.ReflectY, TransformFlipped},
		{randr.Rotate270 | randr.ReflectY, TransformFlipped270},
		{0, TransformNormal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TransformFromXrandr(tt.bits), "bits %#x", tt.bits)
	}
}

func TestTransformRoundTrip(t *testing.T) {
	for tr := TransformNormal; tr <= TransformFlipped270; tr++ {
		assert.Equal(t, tr, TransformFromXrandr(tr.ToXrandr()), tr.String())
	}

	for _, rot := range singleRotations {
		for _, refl := range reflections {
			bits := rot | refl
			first := TransformFromXrandr(bits)
			assert.Equal(t, first, TransformFromXrandr(first.ToXrandr()), "bits %#x", bits)
		}
	}
}

func TestTransformSetFromXrandr(t *testing.T) {
	normal := TransformSet(1 << TransformNormal)

	tests := []struct {
		name string
		mask uint16
		want TransformSet
	}{
		{"empty", 0, normal},
		{"rotate0 only", randr.Rotate0, normal},
		{"all rotations and reflect x", randr.AllRotations | randr.ReflectX, AllTransforms},
		{"rotate0 and reflect y", randr.Rotate0 | randr.ReflectY, AllTransforms},
		{"one rotation and both reflections", randr.Rotate90 | randr.AllReflections, AllTransforms},
		{"half turn", randr.Rotate0 | randr.Rotate180, normal | 1<<Transform180},
		{"all rotations", randr.AllRotations, normal | 1<<Transform90 | 1<<Transform180 | 1<<Transform270},
		{"reflect x alone", randr.ReflectX, normal | 1<<TransformFlipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TransformSetFromXrandr(tt.mask))
		})
	}
}

func TestTransformSetFromXrandrAnyReflection(t *testing.T) {
	for mask := uint16(0); mask < 64; mask++ {
		if mask&randr.AllRotations == 0 || mask&randr.AllReflections == 0 {
			continue
		}
		assert.Equal(t, AllTransforms, TransformSetFromXrandr(mask), "mask %#x", mask)
	}
}

func TestParseTransform(t *testing.T) {
	for tr := TransformNormal; tr <= TransformFlipped270; tr++ {
		got, err := ParseTransform(tr.String())
		require.NoError(t, err)
		assert.Equal(t, tr, got)
	}

	_, err := ParseTransform("sideways")
	assert.Error(t, err)
}

func TestTransformSetTransforms(t *testing.T) {
	set := TransformSet(1<<TransformNormal | 1<<Transform270)
	assert.Equal(t, []Transform{TransformNormal, Transform270}, set.Transforms())
	assert.True(t, Transform270.Rotated())
	assert.False(t, TransformFlipped180.Rotated())
}

func TestTransformJSON(t *testing.T) {
	data, err := json.Marshal(CrtcPlan{Crtc: 1, Transform: TransformFlipped90})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"transform":"flipped-90"`)

	var cp CrtcPlan
	require.NoError(t, json.Unmarshal(data, &cp))
	assert.Equal(t, TransformFlipped90, cp.Transform)

	assert.Error(t, json.Unmarshal([]byte(`{"transform":"sideways"}`), &cp))
}
