package measure

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/nasa-jpl/nanosquared/nanoscan"
)

// ErrOutOfRange is generated when the beam does not grow to √2 times its
// waist within the travel of the stage
var ErrOutOfRange = errors.New("no point beyond the Rayleigh length within the stage range")

const (
	// revolutions averaged per point while searching
	searchSamples = 10

	// smallest precision for which the searches shrink their interval
	minPrecision = 2

	// ITP parameters.  kappa1 = 0 makes the interpolation a regula falsi
	itpKappa1 = 0
	itpKappa2 = math.Phi

	// bound on ITP iterations, which converge in log2 of the interval
	itpMaxIter = 64
)

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func roundInt(x float64) int {
	return int(math.RoundToEven(x))
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func (m *Measurement) checkPrecision(precision int) int {
	if precision < minPrecision {
		m.log.Warn("precision too small, using the minimum",
			zap.Int("precision", precision), zap.Int("minimum", minPrecision))
		return minPrecision
	}
	return precision
}

// FindCenter finds the waist of axis, X or Y, by ternary search over the
// range of the stage.  precision is the width in pulses the search stops at
func (m *Measurement) FindCenter(ctx context.Context, axis nanoscan.Axis, precision int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureStage(ctx); err != nil {
		return 0, err
	}
	return m.findCenter(ctx, axis, precision)
}

func (m *Measurement) findCenter(ctx context.Context, axis nanoscan.Axis, precision int) (int, error) {
	if axis != nanoscan.X && axis != nanoscan.Y {
		return 0, fmt.Errorf("%w: %v, use FindCenterXY for both", nanoscan.ErrBadAxis, axis)
	}
	precision = m.checkPrecision(precision)
	left, right := m.stage.Limits()
	for abs(right-left) >= precision {
		third := float64(right-left) / 3
		lt := roundInt(float64(left) + third)
		rt := roundInt(float64(right) - third)
		l, err := m.measureAt(ctx, axis, lt, searchSamples)
		if err != nil {
			return 0, err
		}
		r, err := m.measureAt(ctx, axis, rt, searchSamples)
		if err != nil {
			return 0, err
		}
		if width(l, axis) > width(r, axis) {
			left = lt
		} else {
			right = rt
		}
	}
	c := roundInt(float64(left+right) / 2)
	m.log.Info("found center", zap.Stringer("axis", axis), zap.Int("pulses", c))
	return c, nil
}

// FindCenterXY finds the waists of both axes at once.  Every pair of points
// measured narrows the search of both axes
func (m *Measurement) FindCenterXY(ctx context.Context, precision int) ([2]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureStage(ctx); err != nil {
		return [2]int{}, err
	}
	return m.findCenterXY(ctx, precision)
}

func (m *Measurement) findCenterXY(ctx context.Context, precision int) ([2]int, error) {
	precision = m.checkPrecision(precision)
	lower, upper := m.stage.Limits()
	left := [2]int{lower, lower}
	right := [2]int{upper, upper}
	remaining := []int{0, 1}
	for step := 1; ; step++ {
		for len(remaining) > 0 && abs(right[remaining[0]]-left[remaining[0]]) <= precision {
			remaining = remaining[1:]
		}
		if len(remaining) == 0 {
			break
		}
		cur := remaining[0]
		third := float64(right[cur]-left[cur]) / 3
		lt := roundInt(float64(left[cur]) + third)
		rt := roundInt(float64(right[cur]) - third)
		m.log.Debug("center search", zap.Int("step", step), zap.Int("axis", cur),
			zap.Ints("left", left[:]), zap.Ints("right", right[:]))
		l, err := m.measureAt(ctx, nanoscan.Both, lt, searchSamples)
		if err != nil {
			return [2]int{}, err
		}
		r, err := m.measureAt(ctx, nanoscan.Both, rt, searchSamples)
		if err != nil {
			return [2]int{}, err
		}
		// the minimum of a unimodal axis lies right of lt when l > r, else left
		// of rt, wherever its interval is
		for _, ax := range remaining {
			a := nanoscan.Axis(ax)
			if width(l, a) > width(r, a) {
				if lt > left[ax] {
					left[ax] = lt
				}
			} else if rt < right[ax] {
				right[ax] = rt
			}
		}
	}
	var c [2]int
	for i := range c {
		c[i] = roundInt(float64(left[i]+right[i]) / 2)
	}
	m.log.Info("found centers", zap.Int("x", c[0]), zap.Int("y", c[1]))
	return c, nil
}

// FindRayleighLength finds the Rayleigh length of axis, X or Y, in pulses,
// given the center of the beam.  It first searches toward the upper limit
// for a point where the beam is wider than √2 times the waist, then toward
// the lower limit, and refines the crossing with the ITP method
func (m *Measurement) FindRayleighLength(ctx context.Context, center int, axis nanoscan.Axis, precision int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureStage(ctx); err != nil {
		return 0, err
	}
	return m.findRayleighLength(ctx, center, axis, precision)
}

// FindRayleighLengthXY is FindRayleighLength for both axes
func (m *Measurement) FindRayleighLengthXY(ctx context.Context, centers [2]int, precision int) ([2]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureStage(ctx); err != nil {
		return [2]int{}, err
	}
	var zR [2]int
	for i, axis := range []nanoscan.Axis{nanoscan.X, nanoscan.Y} {
		z, err := m.findRayleighLength(ctx, centers[i], axis, precision)
		if err != nil {
			return zR, err
		}
		zR[i] = z
	}
	return zR, nil
}

func (m *Measurement) findRayleighLength(ctx context.Context, center int, axis nanoscan.Axis, precision int) (int, error) {
	if axis != nanoscan.X && axis != nanoscan.Y {
		return 0, fmt.Errorf("%w: %v", nanoscan.ErrBadAxis, axis)
	}
	precision = m.checkPrecision(precision)
	w0, err := m.measureAt(ctx, axis, center, searchSamples)
	if err != nil {
		return 0, err
	}
	target := math.Sqrt2 * width(w0, axis)
	waist := width(w0, axis) - target
	eval := func(pos int) (float64, error) {
		w, err := m.measureAt(ctx, axis, pos, searchSamples)
		return width(w, axis) - target, err
	}

	// bracket the crossing
	lower, upper := m.stage.Limits()
	origin, bound := center, upper
	retried := false
	var x int
	var y float64
	for it := 1; ; it++ {
		x = roundInt(float64(origin) + float64(bound-origin)/3)
		if y, err = eval(x); err != nil {
			return 0, err
		}
		m.log.Debug("bounding search", zap.Int("iter", it),
			zap.Int("origin", origin), zap.Int("bound", bound), zap.Int("x", x), zap.Float64("y", y))
		if y > 0 {
			break
		}
		if y == 0 {
			return abs(x - center), nil
		}
		origin = x
		if abs(bound-origin) <= precision {
			if retried {
				return 0, fmt.Errorf("%w: searched [%d, %d] and [%d, %d]", ErrOutOfRange, center, upper, lower, center)
			}
			m.log.Warn("no point beyond the Rayleigh length above the center, searching below",
				zap.Int("center", center), zap.Int("upper", upper))
			retried = true
			origin, bound = center, lower
		}
	}

	xa, ya, xb, yb := center, waist, x, y
	if x < center {
		xa, ya, xb, yb = x, y, center, waist
	}
	nMax := math.Ceil(math.Log2(float64(xb-xa) / (2 * float64(precision))))
	for j := 0; xb-xa > 2*precision && j < itpMaxIter; j++ {
		xHalf := float64(xa+xb) / 2
		r := float64(precision)*math.Pow(2, nMax-float64(j)) - float64(xb-xa)/2
		delta := itpKappa1 * math.Pow(float64(xb-xa), itpKappa2)
		xf := (yb*float64(xa) - ya*float64(xb)) / (yb - ya)
		s := sign(xHalf - xf)
		xt := xHalf
		if delta <= math.Abs(xHalf-xf) {
			xt = xf + s*delta
		}
		xitp := xt
		if r < math.Abs(xt-xHalf) {
			xitp = xHalf - s*r
		}
		xi := roundInt(xitp)
		if xi <= xa || xi >= xb {
			xi = roundInt(xHalf)
		}
		yi, err := eval(xi)
		if err != nil {
			return 0, err
		}
		m.log.Debug("ITP", zap.Int("iter", j+1), zap.Int("xa", xa), zap.Int("xb", xb), zap.Int("x", xi), zap.Float64("y", yi))
		switch o := sign(yb - ya); {
		case yi*o > 0:
			xb, yb = xi, yi
		case yi*o < 0:
			xa, ya = xi, yi
		default:
			xa, xb = xi, xi
		}
	}
	zR := abs(roundInt(float64(xa+xb)/2) - center)
	m.log.Info("found Rayleigh length", zap.Stringer("axis", axis),
		zap.Int("pulses", zR), zap.Float64("mm", m.stage.PulseToMM(zR)))
	return zR, nil
}
