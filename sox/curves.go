package sox

import "bms-core/x/mathx"

// Curve is one three-region piecewise-linear derating curve: zero below
// limit (or at cutoff, for the high-side shape), rated current at the
// other extreme, and a straight-line ramp between the two. Slope and
// offset are fixed-point (Q16) and computed once by NewCurve so Eval is
// a single multiply-add per call.
type Curve struct {
	limit, cutoff int32
	rated         int32
	highSide      bool // true: derates going up (charge-style); false: derates going down (discharge-style)
	slopeQ16      int64
	offsetQ16     int64
}

const curveQ16 = 1 << 16

// NewCurve builds a Curve. For !highSide (discharge), output is 0 at or
// below limit and rated at or above cutoff. For highSide (charge),
// output is rated at or below limit and 0 at or above cutoff.
func NewCurve(limit, cutoff, rated int32, highSide bool) Curve {
	span := int64(cutoff) - int64(limit)
	if span == 0 {
		span = 1
	}
	var slope, offset int64
	if !highSide {
		slope = int64(rated) * curveQ16 / span
		offset = -slope * int64(limit)
	} else {
		slope = -int64(rated) * curveQ16 / span
		offset = -slope * int64(cutoff)
	}
	return Curve{limit: limit, cutoff: cutoff, rated: rated, highSide: highSide, slopeQ16: slope, offsetQ16: offset}
}

// Eval returns the derated current for input x, saturated to [0, rated].
func (c Curve) Eval(x int32) int32 {
	if !c.highSide {
		if x <= c.limit {
			return 0
		}
		if x >= c.cutoff {
			return c.rated
		}
	} else {
		if x >= c.cutoff {
			return 0
		}
		if x <= c.limit {
			return c.rated
		}
	}
	y := (c.slopeQ16*int64(x) + c.offsetQ16) / curveQ16
	return int32(mathx.Clamp(y, int64(0), int64(c.rated)))
}
