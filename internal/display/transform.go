package display

import (
	"fmt"
	"strings"

	"github.com/1broseidon/randrd/internal/randr"
)

// Transform is one of the eight rotation/reflection combinations a CRTC can
// scan out with. Flipped variants mirror along the vertical axis first.
type Transform int

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

var transformNames = [...]string{
	"normal", "90", "180", "270",
	"flipped", "flipped-90", "flipped-180", "flipped-270",
}

func (t Transform) String() string {
	if t < 0 || int(t) >= len(transformNames) {
		return fmt.Sprintf("transform(%d)", int(t))
	}
	return transformNames[t]
}

// ParseTransform accepts the names produced by Transform.String.
func ParseTransform(s string) (Transform, error) {
	for i, name := range transformNames {
		if strings.EqualFold(s, name) {
			return Transform(i), nil
		}
	}
	return TransformNormal, fmt.Errorf("unknown transform %q", s)
}

func (t Transform) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(transformNames) {
		return nil, fmt.Errorf("invalid transform %d", int(t))
	}
	return []byte(transformNames[t]), nil
}

func (t *Transform) UnmarshalText(text []byte) error {
	v, err := ParseTransform(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Rotated reports whether the transform swaps width and height.
func (t Transform) Rotated() bool {
	return t%2 == 1
}

// rotation indices for the y-reflected transforms: reflecting along Y is
// reflecting along X followed by a half turn.
var yReflected = [4]Transform{
	TransformFlipped180,
	TransformFlipped90,
	TransformFlipped,
	TransformFlipped270,
}

func rotationIndex(rotation uint16) Transform {
	switch rotation & randr.AllRotations {
	case randr.Rotate90:
		return Transform90
	case randr.Rotate180:
		return Transform180
	case randr.Rotate270:
		return Transform270
	default:
		return TransformNormal
	}
}

// TransformFromXrandr converts a single RandR rotation value to a Transform.
func TransformFromXrandr(rotation uint16) Transform {
	t := rotationIndex(rotation)
	switch {
	case rotation&randr.ReflectX != 0:
		return t + 4
	case rotation&randr.ReflectY != 0:
		return yReflected[t]
	default:
		return t
	}
}

// ToXrandr converts the transform to RandR rotation bits. Flipped variants
// are always expressed with ReflectX.
func (t Transform) ToXrandr() uint16 {
	var rotation uint16
	switch t % 4 {
	case Transform90:
		rotation = randr.Rotate90
	case Transform180:
		rotation = randr.Rotate180
	case Transform270:
		rotation = randr.Rotate270
	default:
		rotation = randr.Rotate0
	}
	if t >= TransformFlipped {
		rotation |= randr.ReflectX
	}
	return rotation
}

// TransformSet is a bitmask of supported transforms, bit i for Transform(i).
type TransformSet uint8

// AllTransforms has every transform bit set.
const AllTransforms TransformSet = 0xff

// Has reports whether t is in the set.
func (s TransformSet) Has(t Transform) bool {
	return s&(1<<uint(t)) != 0
}

// Transforms lists the members of the set in ascending order.
func (s TransformSet) Transforms() []Transform {
	var out []Transform
	for t := TransformNormal; t <= TransformFlipped270; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// TransformSetFromXrandr converts a RandR supported-rotations mask to the
// set of transforms the CRTC can use.
func TransformSetFromXrandr(rotations uint16) TransformSet {
	if rotations == 0 || rotations == randr.Rotate0 {
		return 1 << TransformNormal
	}
	// One reflection composed with the rotations yields every transform.
	if rotations&randr.AllRotations != 0 && rotations&randr.AllReflections != 0 {
		return AllTransforms
	}

	set := TransformSet(1 << TransformNormal)
	for _, r := range []uint16{randr.Rotate90, randr.Rotate180, randr.Rotate270} {
		if rotations&r != 0 {
			set |= 1 << uint(TransformFromXrandr(r))
		}
	}
	if rotations&randr.ReflectX != 0 {
		set |= 1 << TransformFlipped
	}
	if rotations&randr.ReflectY != 0 {
		set |= 1 << TransformFlipped180
	}
	return set
}
