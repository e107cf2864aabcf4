package measure_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/nasa-jpl/nanosquared/fitting"
	"github.com/nasa-jpl/nanosquared/measure"
	"github.com/nasa-jpl/nanosquared/nanoscan"
	"github.com/nasa-jpl/nanosquared/optosigma"
)

var _ measure.Stage = (*optosigma.GSC01)(nil)
var _ measure.Profiler = (*nanoscan.Profiler)(nil)

// newRig returns a measurement on a simulated profiler riding a mock stage,
// with the beam following the stage
func newRig(t *testing.T, beam nanoscan.Beam, opts ...measure.Option) (*measure.Measurement, *optosigma.GSC01) {
	t.Helper()
	ctx := context.Background()
	g, em := optosigma.NewMock(optosigma.WithPollInterval(time.Millisecond))
	em.BusyPolls = 0
	require.NoError(t, g.Init(ctx))
	t.Cleanup(func() { g.Close() })

	sim := nanoscan.NewSimulator(nanoscan.WithBeam(beam),
		nanoscan.WithPositionSource(func() float64 { return g.PulseToMM(em.Position()) }))
	p, err := nanoscan.NewProfiler(nanoscan.New(sim), nanoscan.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	log := zaptest.NewLogger(t, zaptest.Level(zapcore.InfoLevel))
	m := measure.New(p, g, append([]measure.Option{measure.WithLogger(log)}, opts...)...)
	require.NoError(t, m.Init(ctx))
	return m, g
}

func TestPoints(t *testing.T) {
	pts, err := measure.Points([]int{0}, []int{1000}, -50000, 50000)
	require.NoError(t, err)
	assert.Len(t, pts, 21)
	assert.Equal(t, -3000, pts[0])
	assert.Equal(t, 3000, pts[len(pts)-1])
	assert.Contains(t, pts, -778, "floored like an integer linspace")
	assert.Contains(t, pts, 0)

	pts, err = measure.Points([]int{0, 100}, []int{1000, 1000}, -50000, 50000)
	require.NoError(t, err)
	assert.Equal(t, -3000, pts[0], "axes merged")
	assert.Equal(t, 3100, pts[len(pts)-1])

	pts, err = measure.Points([]int{-45000}, []int{2000}, -50000, 50000)
	require.NoError(t, err)
	assert.Equal(t, -47000, pts[0])
	assert.Equal(t, -39000, pts[len(pts)-1], "far points above the waist")

	pts, err = measure.Points([]int{45000}, []int{2000}, -50000, 50000)
	require.NoError(t, err)
	assert.Equal(t, 39000, pts[0], "far points below the waist")
	assert.Equal(t, 47000, pts[len(pts)-1])

	_, err = measure.Points([]int{0}, []int{20000}, -50000, 50000)
	assert.ErrorIs(t, err, measure.ErrConfiguration)

	_, err = measure.Points([]int{0, 1}, []int{20000}, -50000, 50000)
	assert.Error(t, err)
}

func TestFindCenter(t *testing.T) {
	beam := nanoscan.DefaultBeam
	beam.Z0 = 20
	m, g := newRig(t, beam)
	ctx := context.Background()
	want := g.MMToPulse(20)

	c, err := m.FindCenter(ctx, nanoscan.X, 100)
	require.NoError(t, err)
	assert.InDelta(t, want, c, 100)

	xy, err := m.FindCenterXY(ctx, 100)
	require.NoError(t, err)
	assert.InDelta(t, want, xy[0], 100)
	assert.InDelta(t, want, xy[1], 100)

	_, err = m.FindCenter(ctx, nanoscan.Both, 100)
	assert.ErrorIs(t, err, nanoscan.ErrBadAxis)
}

func TestFindRayleighLength(t *testing.T) {
	m, g := newRig(t, nanoscan.DefaultBeam)
	ctx := context.Background()
	want := g.MMToPulse(nanoscan.DefaultBeam.ZR)

	zR, err := m.FindRayleighLength(ctx, 0, nanoscan.X, 10)
	require.NoError(t, err)
	assert.InDelta(t, want, zR, 25)

	zRs, err := m.FindRayleighLengthXY(ctx, [2]int{0, 0}, 10)
	require.NoError(t, err)
	assert.InDelta(t, want, zRs[1], 25)
}

func TestFindRayleighLengthBelowCenter(t *testing.T) {
	beam := nanoscan.DefaultBeam
	beam.Z0 = 90
	m, g := newRig(t, beam)
	zR, err := m.FindRayleighLength(context.Background(), g.MMToPulse(90), nanoscan.Y, 10)
	require.NoError(t, err)
	assert.InDelta(t, g.MMToPulse(beam.ZR), zR, 25)
}

func TestFindRayleighLengthOutOfRange(t *testing.T) {
	m, _ := newRig(t, nanoscan.Beam{W0: 1000, Z0: 0, ZR: 500})
	_, err := m.FindRayleighLength(context.Background(), 0, nanoscan.X, 100)
	assert.ErrorIs(t, err, measure.ErrOutOfRange)
}

func TestTakeMeasurements(t *testing.T) {
	var raw bytes.Buffer
	m, _ := newRig(t, nanoscan.DefaultBeam, measure.WithRawLog(&raw))
	data, err := m.TakeMeasurements(context.Background(), measure.ScanOptions{
		Axis:           nanoscan.X,
		Center:         []int{0},
		RayleighLength: []float64{nanoscan.DefaultBeam.ZR},
		Samples:        5,
		Outliers:       nanoscan.OutlierSpikes,
		Metadata:       []measure.Meta{{Key: "Laser", Value: "test"}},
	})
	require.NoError(t, err)
	assert.Len(t, data.Points, 21)
	assert.Equal(t, data, m.Data())

	v, ok := data.Meta("Threshold")
	assert.True(t, ok)
	assert.Equal(t, "0.2", v, "invalid thresholds replaced")
	v, _ = data.Meta("Post Processing Mode")
	assert.Equal(t, "2: Remove positive peaks from data", v)
	v, _ = data.Meta("Laser")
	assert.Equal(t, "test", v)
	v, _ = data.Meta("Rayleigh Length")
	assert.True(t, strings.HasSuffix(v, " mm"), v)

	assert.Contains(t, raw.String(), "# === Measuring ===")
	assert.Contains(t, raw.String(), "# position[mm]\tx_diam[um]\ty_diam[um]")

	for _, axis := range []nanoscan.Axis{nanoscan.X, nanoscan.Y} {
		_, msq, err := data.Fit(axis, 2300, 0, fitting.M2Mode)
		require.NoError(t, err)
		assert.InDelta(t, 1, msq.Value, 0.01, "axis %v", axis)
	}
}

func TestTakeMeasurementsFindsBeam(t *testing.T) {
	beam := nanoscan.DefaultBeam
	beam.Z0 = -10
	m, _ := newRig(t, beam)
	data, err := m.TakeMeasurements(context.Background(), measure.ScanOptions{Axis: nanoscan.Both, Samples: 3})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(data.Points), 21)

	f, msq, err := data.Fit(nanoscan.X, 2300, 10, fitting.ISOMode)
	require.NoError(t, err)
	assert.InDelta(t, 1, msq.Value, 0.05)
	w0, z0, err := f.Waist()
	require.NoError(t, err)
	assert.InDelta(t, 100, w0, 5)
	assert.InDelta(t, -10, z0, 0.5)
}

func TestTakeMeasurementsConfiguration(t *testing.T) {
	m, _ := newRig(t, nanoscan.Beam{W0: 1000, Z0: 0, ZR: 500})
	ctx := context.Background()
	_, err := m.TakeMeasurements(ctx, measure.ScanOptions{Axis: nanoscan.X, Center: []int{0}, Samples: 1})
	assert.ErrorIs(t, err, measure.ErrConfiguration)

	_, err = m.TakeMeasurements(ctx, measure.ScanOptions{Axis: nanoscan.X, Center: []int{0}, RayleighLength: []float64{60}})
	assert.ErrorIs(t, err, measure.ErrConfiguration)

	_, err = m.TakeMeasurements(ctx, measure.ScanOptions{Axis: nanoscan.Both, Center: []int{0}})
	assert.Error(t, err, "one center for two axes")
}

func testDataset() measure.Dataset {
	return measure.Dataset{
		Written:  time.Date(2021, 9, 2, 12, 30, 0, 0, time.Local),
		Metadata: []measure.Meta{{Key: "Rayleigh Length", Value: "13.66 mm"}, {Key: "Laser", Value: "2.3 um"}},
		Points: []measure.Point{
			{Z: -1.5, X: nanoscan.Width{Mean: 210.25, Std: 1.5}, Y: nanoscan.Width{Mean: 205, Std: 2}},
			{Z: 0, X: nanoscan.Width{Mean: 200, Std: 1}, Y: nanoscan.Width{Mean: 199.5, Std: 0.5}},
		},
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	d := testDataset()
	var buf bytes.Buffer
	_, err := d.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "# position[mm]\tx_diam[um]\tdx_diam[um]\ty_diam[um]\tdy_diam[um]\n-1.5\t210.25\t1.5\t205\t2\n")
	assert.Contains(t, buf.String(), "#\tLaser: 2.3 um\n")

	got, err := measure.ReadDataset(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("dataset mismatch (-want +got):\n%s", diff)
	}
}

func TestReadDatasetErrors(t *testing.T) {
	_, err := measure.ReadDataset(strings.NewReader("# header\n1\t2\t3\n"))
	assert.Error(t, err)
	_, err = measure.ReadDataset(strings.NewReader("1\t2\t3\tfour\t5\n"))
	assert.Error(t, err)
}

func TestDatasetFitErrors(t *testing.T) {
	_, _, err := measure.Dataset{}.Fit(nanoscan.X, 2300, 0, fitting.M2Mode)
	assert.ErrorIs(t, err, measure.ErrNoData)
	_, _, err = testDataset().Fit(nanoscan.Both, 2300, 0, fitting.M2Mode)
	assert.ErrorIs(t, err, nanoscan.ErrBadAxis)
	_, _, err = testDataset().Fit(nanoscan.X, 2300, 0, fitting.Mode(5))
	assert.ErrorIs(t, err, fitting.ErrInvalidMode)
}

func TestDatasetWriteFITS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, testDataset().WriteFITS(&buf))
	f, err := fitsio.Open(&buf)
	require.NoError(t, err)
	defer f.Close()
	img := f.HDU(0).(fitsio.Image)
	assert.Equal(t, []int{2, 5}, img.Header().Axes())
	assert.Equal(t, "Laser: 2.3 um", img.Header().Get("META2").Value)
	data := make([]float64, 10)
	require.NoError(t, img.Read(&data))
	assert.Equal(t, []float64{-1.5, 0, 210.25, 200, 1.5, 1, 205, 199.5, 2, 0.5}, data)

	assert.ErrorIs(t, measure.Dataset{}.WriteFITS(&buf), measure.ErrNoData)
}

func TestBeamHelpers(t *testing.T) {
	assert.InDelta(t, 13.65909849, measure.RayleighLength(100, 2300, 1), 1e-8)
	assert.InDelta(t, 13.65909849/2, measure.RayleighLength(100, 2300, 2), 1e-8)
	assert.InDelta(t, 12.7323954, measure.BeamWaistRadius(5, 100, 1000, 1), 1e-6)
	w0, zR := measure.WaistAndRayleigh(5, 100, 1000, 1.2)
	assert.InDelta(t, 1.2*12.7323954, w0, 1e-6)
	assert.Equal(t, measure.RayleighLength(w0, 1000, 1.2), zR)
}
