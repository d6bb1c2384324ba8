package fixmath

import "math/bits"

// Integer is the set of signed integer types used on the control path.
type Integer interface {
	~int32 | ~int64
}

func Abs[T Integer](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

func Sign[T Integer](v T) T {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func Clamp[T Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampAbs limits v to [-limit, limit].
func ClampAbs[T Integer](v, limit T) T {
	return Clamp(v, -limit, limit)
}

// MulDiv computes a*b/c with a 64-bit intermediate.
func MulDiv(a, b, c int32) int32 {
	return SaturateInt32(int64(a) * int64(b) / int64(c))
}

// Scale applies a prescaled coefficient to v: v*coeff/prescale.
func Scale(v, coeff int32, prescale int64) int32 {
	return SaturateInt32(int64(v) * int64(coeff) / prescale)
}

// Sqrt returns floor(sqrt(n)) for n >= 0 using only integer operations.
// Negative inputs yield 0.
func Sqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	x := uint64(n)
	var res uint64
	bit := uint64(1) << 62
	for bit > x {
		bit >>= 2
	}
	for bit != 0 {
		if x >= res+bit {
			x -= res + bit
			res = res>>1 + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	return int64(res)
}

// MulDiv64 computes a*b/c with a 128-bit intermediate, truncating toward
// zero. The quotient saturates at the int64 range; c must not be zero.
func MulDiv64(a, b, c int64) int64 {
	neg := (a < 0) != (b < 0)
	if c < 0 {
		neg = !neg
	}
	hi, lo := bits.Mul64(uabs(a), uabs(b))
	uc := uabs(c)
	if hi >= uc {
		if neg {
			return -1 << 63
		}
		return 1<<63 - 1
	}
	q, _ := bits.Div64(hi, lo, uc)
	if q > 1<<63-1 {
		if neg {
			return -1 << 63
		}
		return 1<<63 - 1
	}
	if neg {
		return -int64(q)
	}
	return int64(q)
}

func uabs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
