package nanoscan_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/nasa-jpl/nanosquared/nanoscan"
	"github.com/nasa-jpl/nanosquared/util"
)

func newProfiler(t *testing.T, opts ...nanoscan.SimOption) (*nanoscan.Profiler, *nanoscan.Simulator) {
	t.Helper()
	sim := nanoscan.NewSimulator(opts...)
	p, err := nanoscan.NewProfiler(nanoscan.New(sim),
		nanoscan.WithLogger(zaptest.NewLogger(t)),
		nanoscan.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, sim
}

type noDevices struct{ *nanoscan.Simulator }

func (noDevices) GetNumDevices(n *int16) int32 {
	*n = 0
	return 0
}

type deviceInUse struct{ *nanoscan.Simulator }

func (deviceInUse) GetDeviceID(id *int16) int32 {
	*id = -1
	return 0
}

func TestNewProfilerChecksDevices(t *testing.T) {
	_, err := nanoscan.NewProfiler(nanoscan.New(noDevices{nanoscan.NewSimulator()}))
	assert.ErrorIs(t, err, nanoscan.ErrNoDevice)

	_, err = nanoscan.NewProfiler(nanoscan.New(deviceInUse{nanoscan.NewSimulator()}))
	assert.ErrorIs(t, err, nanoscan.ErrDeviceInUse)

	p, _ := newProfiler(t)
	assert.True(t, p.NanoScan().Initialized())
	assert.Equal(t, nanoscan.ScanRates, p.ScanRates())
	assert.Equal(t, float32(20), p.RotationFrequency())
}

func TestSetRotationFrequency(t *testing.T) {
	p, _ := newProfiler(t)
	err := p.SetRotationFrequency(3)
	assert.ErrorIs(t, err, nanoscan.ErrRateNotAllowed)
	assert.Equal(t, float32(20), p.RotationFrequency(), "rejected rates are ignored")

	require.NoError(t, p.SetRotationFrequency(5))
	assert.Equal(t, float32(5), p.RotationFrequency())
	ns := p.NanoScan()
	max, err := ns.GetMaxSamplingResolution()
	require.NoError(t, err)
	res, err := ns.GetSamplingResolution(nanoscan.X)
	require.NoError(t, err)
	assert.Equal(t, max, res, "sampling resolution follows the rate")
}

func TestWaitForData(t *testing.T) {
	defer goleak.VerifyNone(t)
	p, _ := newProfiler(t)
	ctx := context.Background()

	assert.ErrorIs(t, p.WaitForData(ctx), nanoscan.ErrDAQStopped)

	require.NoError(t, p.SetDAQ(true))
	require.NoError(t, p.WaitForData(ctx))
	params, err := p.NanoScan().GetSelectedParameters()
	require.NoError(t, err)
	assert.Equal(t, nanoscan.Parameter(0), params, "selection restored")
	require.NoError(t, p.SetDAQ(false))

	require.NoError(t, p.WaitStable(ctx))
	assert.False(t, p.DAQ())
	daq, err := p.NanoScan().GetDataAcquisition()
	require.NoError(t, err)
	assert.False(t, daq)
}

// slowCentroid fails the first centroid reads, as the head does while it
// spins up
type slowCentroid struct {
	*nanoscan.Simulator
	failures int
	reads    int
}

func (s *slowCentroid) GetCentroidPosition(aperture, roi int16, pos *float32) int32 {
	s.reads++
	if s.reads <= s.failures {
		return 1
	}
	return s.Simulator.GetCentroidPosition(aperture, roi, pos)
}

func TestWaitForDataPollsThroughFailedReads(t *testing.T) {
	defer goleak.VerifyNone(t)
	in := &slowCentroid{Simulator: nanoscan.NewSimulator(), failures: 3}
	p, err := nanoscan.NewProfiler(nanoscan.New(in),
		nanoscan.WithLogger(zaptest.NewLogger(t)),
		nanoscan.WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.WaitStable(context.Background()))
	assert.Greater(t, in.reads, in.failures)

	in.failures = 1 << 30
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	assert.ErrorIs(t, p.WaitStable(ctx), context.Canceled, "waits while reads keep failing")
}

func TestWaitForDataCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	p, _ := newProfiler(t)
	require.NoError(t, p.NanoScan().SelectParameters(nanoscan.Power))
	require.NoError(t, p.SetDAQ(true))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.WaitForData(ctx), context.Canceled)
	params, err := p.NanoScan().GetSelectedParameters()
	require.NoError(t, err)
	assert.Equal(t, nanoscan.Power, params)
}

func TestOneRev(t *testing.T) {
	p, _ := newProfiler(t)
	_, _, err := p.OneRev()
	assert.Error(t, err, "D4σ not selected")

	require.NoError(t, p.NanoScan().SelectParameters(nanoscan.BeamWidthD4Sigma))
	x, y, err := p.OneRev()
	require.NoError(t, err)
	assert.Equal(t, 200., x)
	assert.Equal(t, 200., y)
}

func TestAverageD4Sigma(t *testing.T) {
	p, _ := newProfiler(t)
	ctx := context.Background()
	require.NoError(t, p.NanoScan().SelectParameters(nanoscan.Ellipticity))

	w, err := p.AverageD4Sigma(ctx, nanoscan.Both, nanoscan.DefaultAverage)
	require.NoError(t, err)
	assert.Equal(t, nanoscan.Widths{X: nanoscan.Width{Mean: 200}, Y: nanoscan.Width{Mean: 200}}, w)

	params, err := p.NanoScan().GetSelectedParameters()
	require.NoError(t, err)
	assert.Equal(t, nanoscan.Ellipticity, params, "selection restored")

	n, err := p.NanoScan().GetNumberOfROIs(nanoscan.X)
	require.NoError(t, err)
	assert.Equal(t, int16(1), n, "regions placed by AutoFind")

	w, err = p.AverageD4Sigma(ctx, nanoscan.Y, nanoscan.AverageOptions{Samples: 5})
	require.NoError(t, err)
	assert.Equal(t, nanoscan.Width{}, w.X, "X not measured")
	assert.Equal(t, 200., w.Y.Mean)

	_, err = p.AverageD4Sigma(ctx, nanoscan.Axis(7), nanoscan.DefaultAverage)
	assert.ErrorIs(t, err, nanoscan.ErrBadAxis)
}

func TestAverageD4SigmaNoisy(t *testing.T) {
	p, _ := newProfiler(t, nanoscan.WithNoise(0.01, 42))
	w, err := p.AverageD4Sigma(context.Background(), nanoscan.X, nanoscan.AverageOptions{Samples: 20, Outliers: 9})
	require.NoError(t, err, "invalid modes fall back to none")
	assert.InDelta(t, 200, w.X.Mean, 4)
	assert.InDelta(t, 2, w.X.Std, 1.5)
}

func TestAverageD4SigmaSpikes(t *testing.T) {
	beam := nanoscan.DefaultBeam
	p, _ := newProfiler(t, nanoscan.WithSpikes(0.2, 3), nanoscan.WithBeam(beam))
	ctx := context.Background()
	raw, err := p.AverageD4Sigma(ctx, nanoscan.X, nanoscan.AverageOptions{Samples: 40})
	require.NoError(t, err)
	clean, err := p.AverageD4Sigma(ctx, nanoscan.X, nanoscan.AverageOptions{Samples: 40, Outliers: nanoscan.OutlierSpikes, Threshold: -1})
	require.NoError(t, err)
	assert.Less(t, clean.X.Mean, raw.X.Mean)
	assert.Less(t, clean.X.Std, raw.X.Std)
}

func TestAverageD4SigmaRaw(t *testing.T) {
	p, _ := newProfiler(t, nanoscan.WithSpikes(0.2, 3), nanoscan.WithNoise(0.001, 7))
	opts := nanoscan.AverageOptions{Samples: 30, Outliers: nanoscan.OutlierTopDecile}
	w, raw, err := p.AverageD4SigmaRaw(context.Background(), nanoscan.X, opts)
	require.NoError(t, err)
	assert.Len(t, raw.X, 30, "warmup revolutions are not returned")
	assert.Nil(t, raw.Y, "Y not measured")
	mean, _ := util.MeanStd(raw.X)
	assert.Less(t, w.X.Mean, mean, "top decile dropped")
}

func ExampleRemoveSpikes() {
	widths := []float64{500, 502, 900, 501, 499, 503}
	fmt.Println(nanoscan.RemoveSpikes(widths, 50))
	// Output: [500 502 501 499 503]
}
