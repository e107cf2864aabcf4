package nanoscan_test

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/nanosquared/nanoscan"
)

// recorder is an Interop that records calls and fails the ones named in fail
// without touching their outputs
type recorder struct {
	*nanoscan.Simulator
	initCode int32
	fail     map[string]int32
	calls    []string
}

func newRecorder() *recorder {
	return &recorder{Simulator: nanoscan.NewSimulator(), initCode: 1, fail: map[string]int32{}}
}

func (r *recorder) InitNsInterop() int32 {
	r.calls = append(r.calls, "InitNsInterop")
	if r.initCode != 1 {
		return r.initCode
	}
	return r.Simulator.InitNsInterop()
}

func (r *recorder) GetGain(aperture int16, gain *int16) int32 {
	r.calls = append(r.calls, "GetGain")
	if c, ok := r.fail["GetGain"]; ok {
		return c
	}
	return r.Simulator.GetGain(aperture, gain)
}

func (r *recorder) SetGain(aperture, gain int16) int32 {
	r.calls = append(r.calls, "SetGain")
	if c, ok := r.fail["SetGain"]; ok {
		return c
	}
	return r.Simulator.SetGain(aperture, gain)
}

func (r *recorder) GetFilter(aperture int16, filter *float32) int32 {
	r.calls = append(r.calls, "GetFilter")
	if c, ok := r.fail["GetFilter"]; ok {
		return c
	}
	return r.Simulator.GetFilter(aperture, filter)
}

func (r *recorder) GetSelectedParameters(params *uint64) int32 {
	r.calls = append(r.calls, "GetSelectedParameters")
	if c, ok := r.fail["GetSelectedParameters"]; ok {
		return c
	}
	return r.Simulator.GetSelectedParameters(params)
}

func (r *recorder) IsSignalSaturated(aperture int16, saturated *bool) int32 {
	r.calls = append(r.calls, "IsSignalSaturated")
	if c, ok := r.fail["IsSignalSaturated"]; ok {
		return c
	}
	return r.Simulator.IsSignalSaturated(aperture, saturated)
}

func (r *recorder) GetROI(aperture, roi int16, left, right *float32, enabled *bool) int32 {
	r.calls = append(r.calls, "GetROI")
	if c, ok := r.fail["GetROI"]; ok {
		return c
	}
	return r.Simulator.GetROI(aperture, roi, left, right, enabled)
}

func open(t *testing.T, in nanoscan.Interop) *nanoscan.NanoScan {
	t.Helper()
	ns := nanoscan.New(in)
	require.NoError(t, ns.Init())
	return ns
}

func TestRefusesCallsWhenClosed(t *testing.T) {
	rec := newRecorder()
	ns := nanoscan.New(rec)

	gain, err := ns.GetGain(nanoscan.X)
	assert.ErrorIs(t, err, nanoscan.ErrNotInitialized)
	assert.Equal(t, nanoscan.SentinelShort, gain)
	assert.ErrorIs(t, ns.SetGain(nanoscan.X, 2), nanoscan.ErrNotInitialized)
	_, err = ns.GetShowWindow()
	assert.ErrorIs(t, err, nanoscan.ErrNotInitialized)
	assert.Empty(t, rec.calls, "no native call may be made before init")

	require.NoError(t, ns.Init())
	require.NoError(t, ns.Shutdown())
	assert.ErrorIs(t, ns.AutoFind(), nanoscan.ErrNotInitialized)
	assert.NoError(t, ns.Shutdown(), "second shutdown")
}

func TestInitStatus(t *testing.T) {
	rec := newRecorder()
	rec.initCode = 0
	ns := nanoscan.New(rec)
	err := ns.Init()
	var nerr *nanoscan.Error
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "InitNsInterop", nerr.Func)
	assert.Equal(t, int32(0), nerr.Code)
	assert.False(t, ns.Initialized())

	rec.initCode = 1
	require.NoError(t, ns.Init())
	assert.True(t, ns.Initialized())
}

func TestFailedGettersReturnSentinels(t *testing.T) {
	rec := newRecorder()
	ns := open(t, rec)
	rec.fail["GetGain"] = 7
	rec.fail["GetFilter"] = 3
	rec.fail["GetSelectedParameters"] = 2
	rec.fail["IsSignalSaturated"] = 5
	rec.fail["GetROI"] = 9

	gain, err := ns.GetGain(nanoscan.Y)
	assert.Equal(t, int16(-1), gain)
	assert.Equal(t, &nanoscan.Error{Func: "NsInteropGetGain", Code: 7}, err)

	filter, err := ns.GetFilter(nanoscan.X)
	assert.Equal(t, float32(-0.1), filter)
	assert.Error(t, err)

	params, err := ns.GetSelectedParameters()
	assert.Equal(t, nanoscan.Parameter(0), params)
	assert.Error(t, err)

	sat, err := ns.IsSignalSaturated(nanoscan.X)
	assert.False(t, sat)
	assert.Error(t, err)

	roi, err := ns.GetROI(nanoscan.X, 0)
	assert.Equal(t, nanoscan.ROI{-0.1, -0.1, 0}, roi)
	assert.Error(t, err)
}

func TestSetterStatusPassesThrough(t *testing.T) {
	rec := newRecorder()
	ns := open(t, rec)
	require.NoError(t, ns.SetGain(nanoscan.X, 8))
	gain, err := ns.GetGain(nanoscan.X)
	require.NoError(t, err)
	assert.Equal(t, int16(8), gain)

	rec.fail["SetGain"] = -4
	err = ns.SetGain(nanoscan.X, 2)
	assert.Equal(t, &nanoscan.Error{Func: "NsInteropSetGain", Code: -4}, err)
	assert.EqualError(t, err, "NsInteropSetGain returned status -4")
}

func TestROITriple(t *testing.T) {
	ns := open(t, nanoscan.NewSimulator())
	require.NoError(t, ns.AddROI(nanoscan.X, 100, 200, true))
	require.NoError(t, ns.AddROI(nanoscan.X, 300, 400, false))
	n, err := ns.GetNumberOfROIs(nanoscan.X)
	require.NoError(t, err)
	assert.Equal(t, int16(2), n)

	roi, err := ns.GetROI(nanoscan.X, 0)
	require.NoError(t, err)
	assert.Equal(t, nanoscan.ROI{100, 200, 1}, roi)
	roi, err = ns.GetROI(nanoscan.X, 1)
	require.NoError(t, err)
	assert.Equal(t, nanoscan.ROI{300, 400, 0}, roi)

	require.NoError(t, ns.UpdateROI(nanoscan.X, 1, 350, 450, true))
	require.NoError(t, ns.DeleteROI(nanoscan.X, 0))
	roi, err = ns.GetROI(nanoscan.X, 0)
	require.NoError(t, err)
	assert.Equal(t, nanoscan.ROI{350, 450, 1}, roi)

	_, err = ns.GetROI(nanoscan.X, 1)
	assert.Error(t, err)
}

func TestArrayResults(t *testing.T) {
	ns := open(t, nanoscan.NewSimulator())

	require.NoError(t, ns.SetDivergenceMethod(2, 13.5, 50))
	div, err := ns.GetDivergenceMethod()
	require.NoError(t, err)
	assert.Equal(t, [3]float32{2, 13.5, 50}, div)

	require.NoError(t, ns.SetAveraging(4, 8))
	avg, err := ns.GetAveraging()
	require.NoError(t, err)
	assert.Equal(t, [2]int16{4, 8}, avg)

	lim, err := ns.GetApertureLimits(nanoscan.Y)
	require.NoError(t, err)
	assert.Equal(t, [2]float32{0, 9000}, lim)

	pc, err := ns.GetPowerCalibrationBreakOut(0)
	require.NoError(t, err)
	assert.Equal(t, nanoscan.PowerCalibration{Descriptor: "Factory", RefPower: 1, Wavelength: 2300}, pc)

	pc, err = ns.GetPowerCalibrationBreakOut(3)
	require.NoError(t, err, "the native call has no status")
	assert.Equal(t, float32(-0.1), pc.RefPower)

	rates, err := ns.GetHeadScanRates(0)
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{1.25, 2.5, 5, 10, 20}, rates); diff != "" {
		t.Errorf("scan rates mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulatorGatesResults(t *testing.T) {
	ns := open(t, nanoscan.NewSimulator())

	w, err := ns.GetBeamWidth4Sigma(nanoscan.X, 0)
	assert.Error(t, err, "nothing acquired")
	assert.Equal(t, nanoscan.SentinelFloat, w)

	require.NoError(t, ns.AcquireSync1Rev())
	require.NoError(t, ns.RunComputation())
	_, err = ns.GetBeamWidth4Sigma(nanoscan.X, 0)
	assert.Error(t, err, "parameter not selected")

	require.NoError(t, ns.SelectParameters(nanoscan.BeamWidthD4Sigma|nanoscan.BeamWidthFWHMClip))
	w, err = ns.GetBeamWidth4Sigma(nanoscan.X, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(200), w)

	fwhm, err := ns.GetBeamWidth(nanoscan.Y, 0, 50)
	require.NoError(t, err)
	assert.InDelta(t, 200*math.Sqrt(math.Ln2/2), fwhm, 1e-3)

	_, err = ns.GetBeamWidth4Sigma(nanoscan.Both, 0)
	assert.Error(t, err, "results are per aperture")
}

func TestSimulatorFollowsPosition(t *testing.T) {
	z := 0.
	sim := nanoscan.NewSimulator(nanoscan.WithPositionSource(func() float64 { return z }))
	ns := open(t, sim)
	require.NoError(t, ns.SelectParameters(nanoscan.BeamWidthD4Sigma))

	width := func() float64 {
		require.NoError(t, ns.AcquireSync1Rev())
		require.NoError(t, ns.RunComputation())
		w, err := ns.GetBeamWidth4Sigma(nanoscan.Y, 0)
		require.NoError(t, err)
		return float64(w)
	}
	assert.InDelta(t, 200, width(), 1e-3)
	z = nanoscan.DefaultBeam.ZR
	assert.InDelta(t, 200*math.Sqrt2, width(), 1e-3)
	z = -3 * nanoscan.DefaultBeam.ZR
	assert.InDelta(t, 200*math.Sqrt(10), width(), 1e-2)
}

func TestSimulatorRail(t *testing.T) {
	ns := open(t, nanoscan.NewSimulator())
	assert.Error(t, ns.Go2Position(10), "port closed")
	require.NoError(t, ns.OpenMotionPort("COM3"))
	require.NoError(t, ns.Go2Position(float32(nanoscan.DefaultBeam.ZR)))
	assert.Error(t, ns.Go2Position(500), "beyond the rail")
	require.NoError(t, ns.SelectParameters(nanoscan.BeamWidthD4Sigma))
	require.NoError(t, ns.AcquireSync1Rev())
	require.NoError(t, ns.RunComputation())
	w, err := ns.GetBeamWidth4Sigma(nanoscan.X, 0)
	require.NoError(t, err)
	assert.InDelta(t, 200*math.Sqrt2, w, 1e-3)
	require.NoError(t, ns.CloseMotionPort())
}

func TestSimulatorRotationFrequency(t *testing.T) {
	ns := open(t, nanoscan.NewSimulator())
	assert.Error(t, ns.SetRotationFrequency(3))
	require.NoError(t, ns.SetRotationFrequency(1.25))
	res, err := ns.GetMaxSamplingResolution()
	require.NoError(t, err)
	assert.InDelta(t, 0.0366, res, 1e-6)
	require.NoError(t, ns.SetSamplingResolution(res))
	require.NoError(t, ns.SetRotationFrequency(20))
	got, err := ns.GetSamplingResolution(nanoscan.X)
	require.NoError(t, err)
	assert.InDelta(t, 0.0366*16, got, 1e-5, "coarsened to what 20 Hz allows")
}

func TestReadProfile(t *testing.T) {
	ns := open(t, nanoscan.NewSimulator())
	_, err := ns.ReadProfile(nanoscan.X, 0, 9000, 1)
	assert.Error(t, err, "nothing acquired")

	require.NoError(t, ns.AcquireSync1Rev())
	require.NoError(t, ns.RunComputation())
	require.NoError(t, ns.SetRotationFrequency(1.25))
	p, err := ns.ReadProfile(nanoscan.X, 4000, 5000, 10)
	require.NoError(t, err)
	require.Len(t, p.Position, len(p.Amplitude))
	require.NotEmpty(t, p.Position)
	assert.Equal(t, 4000., p.Position[0])
	peak := 0
	for i, a := range p.Amplitude {
		if a > p.Amplitude[peak] {
			peak = i
		}
	}
	assert.InDelta(t, 4600, p.Position[peak], 10*0.0366*16, "within one sample")
}

// reentrancy is an Interop that counts the native calls in flight
type reentrancy struct {
	*nanoscan.Simulator
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (r *reentrancy) enter() func() {
	n := r.inFlight.Add(1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(10 * time.Microsecond)
	return func() { r.inFlight.Add(-1) }
}

func (r *reentrancy) GetGain(aperture int16, gain *int16) int32 {
	defer r.enter()()
	return r.Simulator.GetGain(aperture, gain)
}

func (r *reentrancy) SetGain(aperture, gain int16) int32 {
	defer r.enter()()
	return r.Simulator.SetGain(aperture, gain)
}

func (r *reentrancy) GetBeamWidth4Sigma(aperture, roi int16, width *float32) int32 {
	defer r.enter()()
	return r.Simulator.GetBeamWidth4Sigma(aperture, roi, width)
}

func (r *reentrancy) GetDataAcquisition() bool {
	defer r.enter()()
	return r.Simulator.GetDataAcquisition()
}

func TestCallsAreSerialized(t *testing.T) {
	in := &reentrancy{Simulator: nanoscan.NewSimulator()}
	ns := open(t, in)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				switch (g + i) % 4 {
				case 0:
					ns.GetGain(nanoscan.X)
				case 1:
					ns.SetGain(nanoscan.Y, int16(i%4))
				case 2:
					ns.GetBeamWidth4Sigma(nanoscan.X, 0)
				default:
					ns.GetDataAcquisition()
				}
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, int32(1), in.maxSeen.Load(), "no native call overlaps another")
	assert.Equal(t, int32(0), in.inFlight.Load())
}

// fixedArrays is an Interop whose array results are known, or fail
type fixedArrays struct {
	*nanoscan.Simulator
	code int32
}

func (f fixedArrays) GetDivergenceMethod(method *int16, clip, distance *float32) int32 {
	if f.code != 0 {
		return f.code
	}
	*method, *clip, *distance = 3, 50, 120.5
	return 0
}

func (f fixedArrays) GetAveraging(finite, rolling *int16) int32 {
	if f.code != 0 {
		return f.code
	}
	*finite, *rolling = 5, 20
	return 0
}

func TestArrayConversions(t *testing.T) {
	ns := open(t, fixedArrays{Simulator: nanoscan.NewSimulator()})
	div, err := ns.GetDivergenceMethod()
	require.NoError(t, err)
	assert.Equal(t, [3]float32{3, 50, 120.5}, div, "the short method becomes a float")
	avg, err := ns.GetAveraging()
	require.NoError(t, err)
	assert.Equal(t, [2]int16{5, 20}, avg)

	ns = open(t, fixedArrays{Simulator: nanoscan.NewSimulator(), code: 4})
	div, err = ns.GetDivergenceMethod()
	var nserr *nanoscan.Error
	require.ErrorAs(t, err, &nserr)
	assert.Equal(t, int32(4), nserr.Code)
	assert.Equal(t, [3]float32{float32(nanoscan.SentinelShort), nanoscan.SentinelFloat, nanoscan.SentinelFloat}, div)
	avg, err = ns.GetAveraging()
	assert.Error(t, err)
	assert.Equal(t, [2]int16{nanoscan.SentinelShort, nanoscan.SentinelShort}, avg)
}
