package fixmath

import "math"

// MdegPerRotation is the number of millidegrees in one full rotation.
const MdegPerRotation = 360_000

// Angle is an unbounded shaft angle. Rotations carries the whole turns so
// that the millidegree part never overflows on long runs.
type Angle struct {
	Rotations    int32
	Millidegrees int32
}

// NewAngle builds a normalized angle from a millidegree count.
func NewAngle(mdeg int64) Angle {
	return Angle{
		Rotations:    int32(mdeg / MdegPerRotation),
		Millidegrees: int32(mdeg % MdegPerRotation),
	}
}

// AngleFromDegrees converts whole degrees to an angle.
func AngleFromDegrees(deg int64) Angle {
	return NewAngle(deg * 1000)
}

// Mdeg returns the angle as a 64-bit millidegree count.
func (a Angle) Mdeg() int64 {
	return int64(a.Rotations)*MdegPerRotation + int64(a.Millidegrees)
}

// Add shifts the angle by a millidegree offset.
func (a Angle) Add(mdeg int64) Angle {
	return NewAngle(a.Mdeg() + mdeg)
}

// Sub returns a-b in millidegrees.
func (a Angle) Sub(b Angle) int64 {
	return a.Mdeg() - b.Mdeg()
}

// Diff returns a-b in millidegrees, saturated to the int32 range.
func Diff(a, b Angle) int32 {
	return SaturateInt32(a.Sub(b))
}

// Degrees returns the angle in whole degrees, truncated toward zero.
func (a Angle) Degrees() int64 {
	return a.Mdeg() / 1000
}

// SaturateInt32 narrows v, clamping it to the int32 range.
func SaturateInt32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
