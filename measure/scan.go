package measure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/nasa-jpl/nanosquared/nanoscan"
	"github.com/nasa-jpl/nanosquared/util"
)

// limitMargin is the distance in pulses scan points keep from the limits
const limitMargin = 10

// ScanOptions configures TakeMeasurements
type ScanOptions struct {
	// Axis is X, Y, or Both.  The waists and Rayleigh lengths of the axes
	// place the points; both axes are always measured at every point
	Axis nanoscan.Axis `json:"axis"`

	// Center is the waist position in pulses, one per axis (X then Y for
	// Both).  Nil finds it
	Center []int `json:"center"`

	// RayleighLength is in mm, one per axis or one for all.  Nil finds it
	RayleighLength []float64 `json:"rayleighLength"`

	// Precision of the searches, in pulses
	Precision int `json:"precision"`

	// Samples is the number of revolutions averaged per point
	Samples int `json:"samples"`

	Outliers  nanoscan.OutlierMode `json:"outliers"`
	Threshold float64              `json:"threshold"`

	// Metadata is added to the dataset, overriding the defaults
	Metadata []Meta `json:"metadata"`
}

// DefaultScan is the usual scan.  TakeMeasurements substitutes its
// Precision and Samples for zero values
var DefaultScan = ScanOptions{Axis: nanoscan.Both, Precision: 100, Samples: 50, Threshold: 0.2}

var outlierNames = map[nanoscan.OutlierMode]string{
	nanoscan.OutlierNone:      "0: Do Nothing",
	nanoscan.OutlierTopDecile: "1: Remove top 10%",
	nanoscan.OutlierSpikes:    "2: Remove positive peaks from data",
}

// linspaceInt is Linspace floored to integers
func linspaceInt(start, stop float64, n int) []int {
	fs := util.Linspace(start, stop, n)
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(math.Floor(f))
	}
	return out
}

// Points returns the positions of a caustic scan in pulses, following ISO
// 11146-1: 10 points within one Rayleigh length of the waist, 5 on each side
// from two to three Rayleigh lengths, and the waist.  centers and zRs hold
// one waist and Rayleigh length per axis; the points of all axes are merged.
// If the points leave [lower, upper], the 10 far points are put on one side
// of the waist, first above and then below it
func Points(centers, zRs []int, lower, upper int) ([]int, error) {
	if len(centers) == 0 || len(centers) != len(zRs) {
		return nil, fmt.Errorf("need one Rayleigh length per center, got %d centers and %d lengths", len(centers), len(zRs))
	}
	fits := func(pts []int) bool {
		return pts[0] >= lower+limitMargin && pts[len(pts)-1] <= upper-limitMargin
	}
	sym := func(zR float64) []int {
		far := linspaceInt(2*zR, 3*zR, 5)
		for _, f := range far {
			far = append(far, -f)
		}
		return far
	}
	asym := func(zR float64) []int {
		return linspaceInt(2*zR, 3*zR, 10)
	}

	pts := scanPoints(centers, zRs, 1, sym)
	if fits(pts) {
		return pts, nil
	}
	pts = scanPoints(centers, zRs, 1, asym)
	if fits(pts) {
		return pts, nil
	}
	pts = scanPoints(centers, zRs, -1, asym)
	if fits(pts) {
		return pts, nil
	}
	return nil, fmt.Errorf("%w: travel range [%d, %d], points [%d, %d]",
		ErrConfiguration, lower, upper, pts[0], pts[len(pts)-1])
}

// scanPoints merges the points of every axis, the offsets mirrored about the
// center when dir is -1
func scanPoints(centers, zRs []int, dir int, far func(float64) []int) []int {
	var all []float64
	for i, c := range centers {
		zR := float64(zRs[i])
		offsets := append(linspaceInt(-zR, zR, 10), far(zR)...)
		offsets = append(offsets, 0)
		for _, o := range offsets {
			all = append(all, float64(c+dir*o))
		}
	}
	uniq := util.UniqueSortedFloats(all)
	out := make([]int, len(uniq))
	for i, f := range uniq {
		out[i] = int(f)
	}
	return out
}

func fmtMM(vals []float64) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = fmtFloat(v)
	}
	return strings.Join(strs, ", ") + " mm"
}

// TakeMeasurements runs a caustic scan.  Missing waists and Rayleigh
// lengths are found first, then every point is measured on both axes.  The
// dataset is returned and kept for Data
func (m *Measurement) TakeMeasurements(ctx context.Context, opts ScanOptions) (Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.Axis != nanoscan.X && opts.Axis != nanoscan.Y && opts.Axis != nanoscan.Both {
		m.log.Info("defaulting to both axes", zap.Stringer("axis", opts.Axis))
		opts.Axis = nanoscan.Both
	}
	if opts.Precision <= 0 {
		opts.Precision = DefaultScan.Precision
	}
	if opts.Samples <= 0 {
		opts.Samples = DefaultScan.Samples
	}
	if _, ok := outlierNames[opts.Outliers]; !ok {
		m.log.Warn("invalid outlier mode, using none", zap.Int("mode", int(opts.Outliers)))
		opts.Outliers = nanoscan.OutlierNone
	}
	if opts.Outliers == nanoscan.OutlierSpikes && !(opts.Threshold > 0) {
		m.log.Warn("invalid spike threshold, using 0.2", zap.Float64("threshold", opts.Threshold))
		opts.Threshold = DefaultScan.Threshold
	}
	m.avg.Outliers = opts.Outliers
	m.avg.Threshold = opts.Threshold

	if err := m.ensureStage(ctx); err != nil {
		return Dataset{}, err
	}

	axes := []nanoscan.Axis{opts.Axis}
	if opts.Axis == nanoscan.Both {
		axes = []nanoscan.Axis{nanoscan.X, nanoscan.Y}
	}

	centers := opts.Center
	if centers == nil {
		m.rawSection("Finding Center")
		if opts.Axis == nanoscan.Both {
			c, err := m.findCenterXY(ctx, opts.Precision)
			if err != nil {
				return Dataset{}, err
			}
			centers = c[:]
		} else {
			c, err := m.findCenter(ctx, opts.Axis, opts.Precision)
			if err != nil {
				return Dataset{}, err
			}
			centers = []int{c}
		}
	} else if len(centers) != len(axes) {
		return Dataset{}, fmt.Errorf("need %d centers for axis %v, got %d", len(axes), opts.Axis, len(centers))
	}

	zRs := make([]int, len(axes))
	if opts.RayleighLength == nil {
		m.rawSection("Finding Rayleigh Length")
		for i, ax := range axes {
			zR, err := m.findRayleighLength(ctx, centers[i], ax, opts.Precision)
			if errors.Is(err, ErrOutOfRange) {
				return Dataset{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			if err != nil {
				return Dataset{}, err
			}
			zRs[i] = zR
		}
	} else {
		switch len(opts.RayleighLength) {
		case 1, len(axes):
		default:
			return Dataset{}, fmt.Errorf("need 1 or %d Rayleigh lengths for axis %v, got %d",
				len(axes), opts.Axis, len(opts.RayleighLength))
		}
		for i := range zRs {
			mm := opts.RayleighLength[0]
			if len(opts.RayleighLength) > 1 {
				mm = opts.RayleighLength[i]
			}
			zRs[i] = m.stage.MMToPulse(mm)
		}
	}

	lower, upper := m.stage.Limits()
	pts, err := Points(centers, zRs, lower, upper)
	if err != nil {
		return Dataset{}, err
	}
	m.log.Info("scanning", zap.Ints("points", pts))

	m.rawSection("Measuring")
	data := Dataset{}
	for n, pt := range pts {
		m.log.Info("measuring point", zap.Int("n", n+1), zap.Int("of", len(pts)), zap.Int("pulses", pt))
		w, err := m.measureAt(ctx, nanoscan.Both, pt, opts.Samples)
		if err != nil {
			return Dataset{}, err
		}
		data.Points = append(data.Points, Point{Z: m.stage.PulseToMM(pt), X: w.X, Y: w.Y})
	}

	zRmm := make([]float64, len(zRs))
	for i, z := range zRs {
		zRmm[i] = m.stage.PulseToMM(z)
	}
	data.SetMeta("Rayleigh Length", fmtMM(zRmm))
	for _, kv := range opts.Metadata {
		data.SetMeta(kv.Key, kv.Value)
	}
	data.SetMeta("Post Processing Mode", outlierNames[opts.Outliers])
	if opts.Outliers == nanoscan.OutlierSpikes {
		data.SetMeta("Threshold", fmtFloat(opts.Threshold))
	}
	m.data = data
	return data, nil
}
