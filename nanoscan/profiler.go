package nanoscan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/nanosquared/util"
)

// ErrBadAxis is generated when an operation is asked for an aperture that
// does not exist
var ErrBadAxis = errors.New("axis must be X, Y, or Both")

// warmupRevs revolutions are discarded before averaging, the head settles
// after AutoFind
const warmupRevs = 10

// OutlierMode selects how AverageD4Sigma rejects bad revolutions
type OutlierMode int

const (
	// OutlierNone keeps every revolution
	OutlierNone OutlierMode = iota

	// OutlierTopDecile drops the largest 10% of widths on each axis
	OutlierTopDecile

	// OutlierSpikes drops positive spikes, see RemoveSpikes
	OutlierSpikes
)

// AverageOptions configures AverageD4Sigma
type AverageOptions struct {
	// Samples is the number of revolutions averaged
	Samples int `json:"samples"`

	// Outliers is the rejection mode
	Outliers OutlierMode `json:"outliers"`

	// Threshold is the spike prominence for OutlierSpikes.  At or below 1 it
	// is a fraction of the mean width, above 1 a width in µm
	Threshold float64 `json:"threshold"`
}

// DefaultAverage is the averaging used when none is given
var DefaultAverage = AverageOptions{Samples: 20, Outliers: OutlierNone, Threshold: 0.2}

// Width is a statistic of D4σ beam width, in µm.  Std is the population
// standard deviation
type Width struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Widths holds the widths of both apertures.  An aperture that was not
// measured is zero
type Widths struct {
	X Width `json:"x"`
	Y Width `json:"y"`
}

// ProfilerOption configures a Profiler
type ProfilerOption func(*Profiler)

// WithLogger sets the logger of the profiler
func WithLogger(l *zap.Logger) ProfilerOption {
	return func(p *Profiler) {
		p.log = l
	}
}

// WithPollInterval sets how often WaitForData looks for results
func WithPollInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		p.poll = d
	}
}

// WithROI sets the region the profiler reads results from
func WithROI(roi int16) ProfilerOption {
	return func(p *Profiler) {
		p.roi = roi
	}
}

// Profiler runs acquisition sequences on a NanoScan.  Sequences hold the
// profiler, so they do not interleave
type Profiler struct {
	ns   *NanoScan
	log  *zap.Logger
	poll time.Duration
	roi  int16

	mu      sync.Mutex
	daq     bool
	rotFreq float32
	rates   []float32
}

// NewProfiler initializes ns if needed and checks that a profiler is present
// and free
func NewProfiler(ns *NanoScan, opts ...ProfilerOption) (*Profiler, error) {
	p := &Profiler{
		ns:   ns,
		log:  zap.NewNop(),
		poll: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if !ns.Initialized() {
		if err := ns.Init(); err != nil {
			return nil, err
		}
	}
	n, err := ns.GetNumDevices()
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, ErrNoDevice
	}
	id, err := ns.GetDeviceID()
	if err != nil {
		return nil, err
	}
	if id < 0 {
		return nil, ErrDeviceInUse
	}
	p.rotFreq, err = ns.GetRotationFrequency()
	if err != nil {
		return nil, err
	}
	p.rates = ScanRates
	if rates, err := ns.GetHeadScanRates(0); err == nil && len(rates) > 0 {
		p.rates = make([]float32, len(rates))
		for i, r := range rates {
			p.rates[i] = float32(r)
		}
	}
	p.log.Info("profiler ready",
		zap.Int16("device", id),
		zap.Float32("rotationFrequency", p.rotFreq))
	return p, nil
}

// NanoScan returns the underlying binding
func (p *Profiler) NanoScan() *NanoScan {
	return p.ns
}

// ScanRates returns the rotation frequencies the head allows
func (p *Profiler) ScanRates() []float32 {
	return append([]float32(nil), p.rates...)
}

// RotationFrequency returns the last rotation frequency set
func (p *Profiler) RotationFrequency() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotFreq
}

// SetRotationFrequency sets the head rotation frequency to one of ScanRates
// and the finest sampling resolution it allows
func (p *Profiler) SetRotationFrequency(freq float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	allowed := false
	for _, r := range p.rates {
		if r == freq {
			allowed = true
			break
		}
	}
	if !allowed {
		p.log.Warn("ignoring rotation frequency",
			zap.Float32("requested", freq),
			zap.Float32s("allowed", p.rates))
		return fmt.Errorf("%w: %v Hz", ErrRateNotAllowed, freq)
	}
	if err := p.ns.SetRotationFrequency(freq); err != nil {
		return err
	}
	p.rotFreq = freq
	res, err := p.ns.GetMaxSamplingResolution()
	if err != nil {
		return err
	}
	return p.ns.SetSamplingResolution(res)
}

// DAQ returns true if data acquisition was started through the profiler
func (p *Profiler) DAQ() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.daq
}

// SetDAQ starts or stops data acquisition.  Use this instead of the binding,
// the profiler tracks the state
func (p *Profiler) SetDAQ(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setDAQ(on)
}

func (p *Profiler) setDAQ(on bool) error {
	if err := p.ns.SetDataAcquisition(on); err != nil {
		return err
	}
	p.daq = on
	return nil
}

// WaitForData blocks until the head has computed results, which is when it
// reports a positive centroid on both apertures.  Data acquisition must be
// running
func (p *Profiler) WaitForData(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitForData(ctx)
}

func (p *Profiler) waitForData(ctx context.Context) (err error) {
	if !p.daq {
		p.log.Warn("start DAQ before waiting for data")
		return ErrDAQStopped
	}
	restore, err := p.addParameters(BeamCentroidPos)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); err == nil {
			err = rerr
		}
	}()

	lim := rate.NewLimiter(rate.Every(p.poll), 1)
	for cnt := 0; ; cnt++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		// a failed read leaves the sentinel and is polled again
		x, xerr := p.ns.GetCentroidPosition(X, p.roi)
		y, yerr := p.ns.GetCentroidPosition(Y, p.roi)
		for _, err := range []error{xerr, yerr} {
			var nserr *Error
			if err != nil && !errors.As(err, &nserr) {
				return err
			}
		}
		p.log.Debug("waiting for data", zap.Int("poll", cnt), zap.Float32("x", x), zap.Float32("y", y),
			zap.NamedError("errx", xerr), zap.NamedError("erry", yerr))
		if xerr == nil && yerr == nil && x > 0 && y > 0 {
			return nil
		}
	}
}

// WaitStable runs data acquisition until the head produces results
func (p *Profiler) WaitStable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitStable(ctx)
}

func (p *Profiler) waitStable(ctx context.Context) error {
	if err := p.setDAQ(true); err != nil {
		return err
	}
	werr := p.waitForData(ctx)
	if err := p.setDAQ(false); err != nil && werr == nil {
		return err
	}
	return werr
}

// addParameters selects extra results and returns a func that restores the
// original selection
func (p *Profiler) addParameters(extra Parameter) (func() error, error) {
	orig, err := p.ns.GetSelectedParameters()
	if err != nil {
		return nil, err
	}
	if err := p.ns.SelectParameters(orig | extra); err != nil {
		return nil, err
	}
	return func() error { return p.ns.SelectParameters(orig) }, nil
}

// OneRev acquires a single revolution and returns the D4σ widths of both
// apertures, in µm.  The D4σ parameter must be selected
func (p *Profiler) OneRev() (x, y float64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.oneRev()
}

func (p *Profiler) oneRev() (x, y float64, err error) {
	if err = p.ns.AcquireSync1Rev(); err != nil {
		return
	}
	if err = p.ns.RunComputation(); err != nil {
		return
	}
	wx, err := p.ns.GetBeamWidth4Sigma(X, p.roi)
	if err != nil {
		return
	}
	wy, err := p.ns.GetBeamWidth4Sigma(Y, p.roi)
	if err != nil {
		return
	}
	p.log.Debug("one revolution", zap.Float32("x", wx), zap.Float32("y", wy))
	return float64(wx), float64(wy), nil
}

// Samples are the D4σ widths of single revolutions, in µm
type Samples struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// AverageD4Sigma waits for a stable beam, places regions on it, and returns
// the D4σ width of axis averaged over opts.Samples revolutions.  The first
// revolutions are discarded.  Invalid outlier modes and thresholds are
// replaced with OutlierNone and 0.2
func (p *Profiler) AverageD4Sigma(ctx context.Context, axis Axis, opts AverageOptions) (Widths, error) {
	w, _, err := p.AverageD4SigmaRaw(ctx, axis, opts)
	return w, err
}

// AverageD4SigmaRaw is AverageD4Sigma, also returning the widths of every
// revolution averaged, before outliers were rejected
func (p *Profiler) AverageD4SigmaRaw(ctx context.Context, axis Axis, opts AverageOptions) (w Widths, raw Samples, err error) {
	if axis != X && axis != Y && axis != Both {
		return w, raw, fmt.Errorf("%w: %d", ErrBadAxis, axis)
	}
	if opts.Samples < 1 {
		opts.Samples = DefaultAverage.Samples
	}
	if opts.Outliers < OutlierNone || opts.Outliers > OutlierSpikes {
		p.log.Warn("invalid outlier mode, using none", zap.Int("mode", int(opts.Outliers)))
		opts.Outliers = OutlierNone
	}
	if opts.Outliers == OutlierSpikes && !(opts.Threshold > 0) {
		p.log.Warn("invalid spike threshold, using 0.2", zap.Float64("threshold", opts.Threshold))
		opts.Threshold = 0.2
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err = p.waitStable(ctx); err != nil {
		return
	}
	if err = p.ns.AutoFind(); err != nil {
		return
	}
	restore, err := p.addParameters(BeamWidthD4Sigma)
	if err != nil {
		return
	}
	defer func() {
		if rerr := restore(); err == nil {
			err = rerr
		}
	}()

	xs := make([]float64, 0, opts.Samples)
	ys := make([]float64, 0, opts.Samples)
	for i := 0; i < opts.Samples+warmupRevs; i++ {
		if err = ctx.Err(); err != nil {
			return
		}
		x, y, err2 := p.oneRev()
		if err2 != nil {
			return w, raw, err2
		}
		if i >= warmupRevs {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}

	if axis != Y {
		w.X = summarize(rejectOutliers(xs, opts))
		raw.X = xs
	}
	if axis != X {
		w.Y = summarize(rejectOutliers(ys, opts))
		raw.Y = ys
	}
	p.log.Debug("averaged D4σ", zap.Stringer("axis", axis),
		zap.Float64("x", w.X.Mean), zap.Float64("dx", w.X.Std),
		zap.Float64("y", w.Y.Mean), zap.Float64("dy", w.Y.Std))
	return w, raw, nil
}

// Close stops data acquisition and shuts the binding down
func (p *Profiler) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.daq {
		if err := p.setDAQ(false); err != nil {
			return err
		}
	}
	return p.ns.Shutdown()
}

// rejectOutliers applies opts.Outliers to one axis.  The top decile rounds
// half to even, and keeps everything when it rounds to zero
func rejectOutliers(xs []float64, opts AverageOptions) []float64 {
	switch opts.Outliers {
	case OutlierTopDecile:
		drop := int(math.RoundToEven(0.1 * float64(opts.Samples)))
		if drop == 0 || drop >= len(xs) {
			return xs
		}
		s := append([]float64(nil), xs...)
		sort.Float64s(s)
		return s[:len(s)-drop]
	case OutlierSpikes:
		th := opts.Threshold
		if th <= 1 {
			th *= summarize(xs).Mean
		}
		return RemoveSpikes(xs, th)
	}
	return xs
}

func summarize(xs []float64) Width {
	mean, std := util.MeanStd(xs)
	return Width{Mean: mean, Std: std}
}
