package nanoscan

import "strings"

// Axis is an aperture of the scan head
type Axis int16

const (
	// X is the horizontal aperture
	X Axis = iota

	// Y is the vertical aperture
	Y

	// Both selects both apertures where an operation supports it
	Both
)

func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Both:
		return "Both"
	}
	return "Axis(?)"
}

// ParseAxis converts "x", "y", or "both" (any case) to an Axis
func ParseAxis(s string) (Axis, bool) {
	switch strings.ToLower(s) {
	case "x", "0":
		return X, true
	case "y", "1":
		return Y, true
	case "both", "xy", "2":
		return Both, true
	}
	return 0, false
}

// Parameter is a bitmask of results the instrument computes
type Parameter uint64

// one bit per result, in the vendor's order
const (
	BeamWidth13_5Clip Parameter = 1 << iota
	BeamWidthFWHMClip
	BeamWidthUserClip1
	BeamWidthUserClip2
	BeamWidthD4Sigma
	BeamCentroidPos
	BeamPeakPos
	SepCentroid
	SepPeak
	BeamPeak
	ProfileGaussFit
	Ellipticity
	Power
	PowerTotal
	Divergence
	BeamWidthRatio13_5Clip
	BeamWidthRatioFWHMClip
	BeamWidthRatioUserClip1
	BeamWidthRatioUserClip2
	BeamWidthRatioD4Sigma
)

// BeamWidthBasis selects the definition of beam width used for divergence
// and ellipticity
type BeamWidthBasis int16

const (
	// W13_5 is the width at 13.5% of the peak
	W13_5 BeamWidthBasis = iota + 1

	// W50 is the width at 50% of the peak
	W50

	// WD4Sigma is the second moment width
	WD4Sigma

	// WUser1 is the width at user clip level 1
	WUser1

	// WUser2 is the width at user clip level 2
	WUser2
)

// sentinels written to every output before a native call, so that a failed
// call leaves a recognizable value
const (
	SentinelShort  int16   = -1
	SentinelFloat  float32 = -0.1
	SentinelUint64 uint64  = 0
	SentinelBool           = false
)

// ScanRates are the head rotation frequencies, in Hz, the instrument accepts
var ScanRates = []float32{1.25, 2.5, 5, 10, 20}
