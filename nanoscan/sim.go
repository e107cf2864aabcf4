package nanoscan

import (
	"math"
	"math/rand"
	"sync"

	"github.com/nasa-jpl/nanosquared/util"
)

const (
	// simFail is the status the simulator returns for any rejected call
	simFail int32 = 1

	// the simulated head has a 9 mm aperture, in µm
	simApertureStart = 0
	simApertureEnd   = 9000

	// revolutions the head makes after DAQ starts before it reports data
	simWarmup = 2

	maxProfileSamples = 1 << 16
)

var _ Interop = (*Simulator)(nil)

// Beam is a Gaussian beam.  W0 is the waist radius in µm, Z0 the waist
// location and ZR the Rayleigh length, both in mm
type Beam struct {
	W0 float64 `json:"w0" yaml:"W0"`
	Z0 float64 `json:"z0" yaml:"Z0"`
	ZR float64 `json:"zR" yaml:"ZR"`
}

// DefaultBeam is a diffraction limited (M²=1) 2300 nm beam with a 100 µm waist
var DefaultBeam = Beam{W0: 100, Z0: 0, ZR: 13.65909849}

// Radius is the 1/e² radius of the beam at z, in µm
func (b Beam) Radius(z float64) float64 {
	dz := (z - b.Z0) / b.ZR
	return b.W0 * math.Sqrt(1+dz*dz)
}

type simROI struct {
	left, right float32
	enabled     bool
}

// SimOption configures a Simulator
type SimOption func(*Simulator)

// WithBeam sets the beam the simulator measures
func WithBeam(b Beam) SimOption {
	return func(s *Simulator) {
		s.beam = b
	}
}

// WithPositionSource makes the beam waist location relative to the position
// returned by f, in mm, instead of the motion rail
func WithPositionSource(f func() float64) SimOption {
	return func(s *Simulator) {
		s.pos = f
	}
}

// WithNoise adds gaussian noise with relative standard deviation sigma to
// every width, drawn from a generator seeded with seed
func WithNoise(sigma float64, seed int64) SimOption {
	return func(s *Simulator) {
		s.noise = sigma
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithSpikes makes a fraction prob of revolutions report widths scale times
// too large, as happens with a dusty or vibrating head
func WithSpikes(prob, scale float64) SimOption {
	return func(s *Simulator) {
		s.spikeProb = prob
		s.spikeScale = scale
	}
}

// Simulator is an Interop backed by a model of one NanoScan head looking at
// a Gaussian beam.  Results are only available for selected parameters, and
// only after RunComputation or while data acquisition runs
type Simulator struct {
	mu sync.Mutex

	beam       Beam
	pos        func() float64
	noise      float64
	spikeProb  float64
	spikeScale float64
	rng        *rand.Rand

	open     bool
	deviceID int16

	gain     [2]int16
	filter   [2]float32
	rotFreq  float32
	sampRes  float32
	rois     [2][]simROI
	params   uint64
	clip1    float32
	clip2    float32
	pulse    float32
	avg      [2]int16
	div      int16
	divClip  float32
	divDist  float32
	computed bool
	warmup   int

	// last measured 1/e² diameters, µm
	width [2]float64

	motionOpen bool
	rail       float32

	showWindow  bool
	daq         bool
	autoROI     bool
	trackGain   bool
	trackFilter bool
	pulsedMode  int32
	defaultCal  int16
	powerUnits  int16
	multiROI    bool
	railLength  float32
	gaussFit    int16
	mag         float32
	basis       int16
}

// NewSimulator returns a Simulator with one idle head
func NewSimulator(opts ...SimOption) *Simulator {
	s := &Simulator{
		beam:       DefaultBeam,
		rng:        rand.New(rand.NewSource(1)),
		spikeScale: 1,
		gain:       [2]int16{1, 1},
		filter:     [2]float32{0, 0},
		rotFreq:    20,
		clip1:      13.5,
		clip2:      50,
		avg:        [2]int16{1, 1},
		div:        1,
		divClip:    13.5,
		divDist:    100,
		railLength: 200,
		mag:        1,
		basis:      int16(WD4Sigma),
		deviceID:   -1,
	}
	s.sampRes = s.maxRes()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBeam changes the beam under measurement
func (s *Simulator) SetBeam(b Beam) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beam = b
}

// the finest resolution scales with the time the slit spends on the beam
func (s *Simulator) maxRes() float32 {
	return 0.0366 * s.rotFreq / 1.25
}

func (s *Simulator) position() float64 {
	if s.pos != nil {
		return s.pos()
	}
	return float64(s.rail)
}

func validAperture(ap int16) bool { return ap == int16(X) || ap == int16(Y) }

func (s *Simulator) selected(p Parameter) bool { return Parameter(s.params)&p != 0 }

func (s *Simulator) validROI(ap, roi int16) bool {
	if !validAperture(ap) {
		return false
	}
	return roi == 0 || (roi > 0 && int(roi) < len(s.rois[ap]))
}

// revolve takes one revolution's worth of data
func (s *Simulator) revolve() {
	d := 2 * s.beam.Radius(s.position())
	for i := range s.width {
		w := d * (1 + s.noise*s.rng.NormFloat64())
		if s.spikeProb > 0 && s.rng.Float64() < s.spikeProb {
			w *= s.spikeScale
		}
		s.width[i] = w
	}
}

// result gates a measurement on the parameter being selected and data being
// present.  While DAQ runs every read is a fresh revolution and the first
// few report zero
func (s *Simulator) result(p Parameter, out *float32, f func() float64) int32 {
	if !s.selected(p) {
		return simFail
	}
	if s.daq {
		if s.warmup > 0 {
			s.warmup--
			*out = 0
			return 0
		}
		s.revolve()
	} else if !s.computed {
		return simFail
	}
	*out = float32(f())
	return 0
}

func (s *Simulator) centroid(ap int16) float64 {
	if ap == int16(Y) {
		return 4400
	}
	return 4600
}

// width at a clip level of a Gaussian whose 1/e² diameter is d.  clip is a
// percentage when above 1
func clipWidth(d float64, clip float32) float64 {
	c := float64(clip)
	if c > 1 {
		c /= 100
	}
	if c <= 0 || c >= 1 {
		return 0
	}
	return d * math.Sqrt(-math.Log(c)/2)
}

// InitNsInterop claims the simulated head
func (s *Simulator) InitNsInterop() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.deviceID = 0
	return 1
}

// ShutdownNsInterop releases the simulated head
func (s *Simulator) ShutdownNsInterop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.daq = false
	s.deviceID = -1
}

// SetGain sets the gain of one or both apertures
func (s *Simulator) SetGain(aperture, gain int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gain < 1 {
		return simFail
	}
	switch aperture {
	case int16(X), int16(Y):
		s.gain[aperture] = gain
	case int16(Both):
		s.gain = [2]int16{gain, gain}
	default:
		return simFail
	}
	return 0
}

// GetGain returns the gain of an aperture
func (s *Simulator) GetGain(aperture int16, gain *int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) {
		return simFail
	}
	*gain = s.gain[aperture]
	return 0
}

// SetFilter sets the filter of one or both apertures
func (s *Simulator) SetFilter(aperture int16, filter float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filter < 0 {
		return simFail
	}
	switch aperture {
	case int16(X), int16(Y):
		s.filter[aperture] = filter
	case int16(Both):
		s.filter = [2]float32{filter, filter}
	default:
		return simFail
	}
	return 0
}

// GetFilter returns the filter of an aperture
func (s *Simulator) GetFilter(aperture int16, filter *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) {
		return simFail
	}
	*filter = s.filter[aperture]
	return 0
}

// SetSamplingResolution sets the resolution, which may not be finer than the
// rotation frequency allows
func (s *Simulator) SetSamplingResolution(res float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res < s.maxRes() {
		return simFail
	}
	s.sampRes = res
	return 0
}

// GetSamplingResolution returns the sampling resolution
func (s *Simulator) GetSamplingResolution(aperture int16, res *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) {
		return simFail
	}
	*res = s.sampRes
	return 0
}

// GetMaxSamplingResolution returns the finest resolution at the rotation
// frequency
func (s *Simulator) GetMaxSamplingResolution(res *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*res = s.maxRes()
	return 0
}

// SetRotationFrequency accepts one of ScanRates.  The sampling resolution is
// coarsened if the new frequency requires it
func (s *Simulator) SetRotationFrequency(freq float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range ScanRates {
		if r == freq {
			s.rotFreq = freq
			if m := s.maxRes(); s.sampRes < m {
				s.sampRes = m
			}
			return 0
		}
	}
	return simFail
}

// GetRotationFrequency returns the rotation frequency setpoint
func (s *Simulator) GetRotationFrequency(freq *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*freq = s.rotFreq
	return 0
}

// GetMeasuredRotationFreq returns the setpoint; the simulated motor is ideal
func (s *Simulator) GetMeasuredRotationFreq(freq *float32) int32 {
	return s.GetRotationFrequency(freq)
}

// GetHeadGainTable returns the gains of the head
func (s *Simulator) GetHeadGainTable(capabilityID int64, table *[]float64) {
	if capabilityID != 0 {
		return
	}
	t := make([]float64, 0, 11)
	for g := 1.; g <= 1024; g *= 2 {
		t = append(t, g)
	}
	*table = t
}

// GetHeadScanRates returns ScanRates
func (s *Simulator) GetHeadScanRates(capabilityID int64, rates *[]float64) {
	if capabilityID != 0 {
		return
	}
	*rates = util.Float32sToFloat64s(ScanRates)
}

// IsSignalSaturated is never true for the simulated beam
func (s *Simulator) IsSignalSaturated(aperture int16, saturated *bool) int32 {
	if !validAperture(aperture) {
		return simFail
	}
	*saturated = false
	return 0
}

// AutoFind places one enabled region ±1.5 diameters about each centroid
func (s *Simulator) AutoFind() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := 2 * s.beam.Radius(s.position())
	for ap := range s.rois {
		c := s.centroid(int16(ap))
		s.rois[ap] = []simROI{{left: float32(c - 1.5*d), right: float32(c + 1.5*d), enabled: true}}
	}
	return 0
}

// AddROI appends a region to one or both apertures
func (s *Simulator) AddROI(aperture int16, left, right float32, enabled bool) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if left >= right {
		return simFail
	}
	r := simROI{left, right, enabled}
	switch aperture {
	case int16(X), int16(Y):
		s.rois[aperture] = append(s.rois[aperture], r)
	case int16(Both):
		s.rois[X] = append(s.rois[X], r)
		s.rois[Y] = append(s.rois[Y], r)
	default:
		return simFail
	}
	return 0
}

// DeleteROI removes a region
func (s *Simulator) DeleteROI(aperture, roi int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) || roi < 0 || int(roi) >= len(s.rois[aperture]) {
		return simFail
	}
	rs := s.rois[aperture]
	s.rois[aperture] = append(rs[:roi:roi], rs[roi+1:]...)
	return 0
}

// UpdateROI replaces a region
func (s *Simulator) UpdateROI(aperture, roi int16, left, right float32, enabled bool) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) || roi < 0 || int(roi) >= len(s.rois[aperture]) || left >= right {
		return simFail
	}
	s.rois[aperture][roi] = simROI{left, right, enabled}
	return 0
}

// GetNumberOfROIs returns the number of regions on an aperture
func (s *Simulator) GetNumberOfROIs(aperture int16, n *int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) {
		return simFail
	}
	*n = int16(len(s.rois[aperture]))
	return 0
}

// GetROI returns a region
func (s *Simulator) GetROI(aperture, roi int16, left, right *float32, enabled *bool) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) || roi < 0 || int(roi) >= len(s.rois[aperture]) {
		return simFail
	}
	r := s.rois[aperture][roi]
	*left, *right, *enabled = r.left, r.right, r.enabled
	return 0
}

// GetApertureLimits returns the 9 mm span of the slit
func (s *Simulator) GetApertureLimits(aperture int16, start, end *float32) int32 {
	if !validAperture(aperture) {
		return simFail
	}
	*start, *end = simApertureStart, simApertureEnd
	return 0
}

// ReadProfile samples the Gaussian profile of the last revolution
func (s *Simulator) ReadProfile(aperture int16, start, end float32, decimation int16, amplitude, position *[]float64) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validAperture(aperture) || decimation < 1 || start >= end {
		return simFail
	}
	if !s.computed && !s.daq {
		return simFail
	}
	if s.daq {
		s.revolve()
	}
	step := float64(s.sampRes) * float64(decimation)
	n := int((float64(end)-float64(start))/step) + 1
	if n > maxProfileSamples {
		return simFail
	}
	c := s.centroid(aperture)
	w := s.width[aperture] / 2
	peak := float64(s.gain[aperture]) * 1000 / math.Pow(10, float64(s.filter[aperture]))
	amp := make([]float64, n)
	pos := make([]float64, n)
	for i := range pos {
		x := float64(start) + float64(i)*step
		pos[i] = x
		amp[i] = peak * math.Exp(-2*(x-c)*(x-c)/(w*w))
	}
	*amplitude, *position = amp, pos
	return 0
}

// SelectParameters sets the results to compute
func (s *Simulator) SelectParameters(params uint64) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	return 0
}

// GetSelectedParameters returns the results to compute
func (s *Simulator) GetSelectedParameters(params *uint64) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*params = s.params
	return 0
}

func validClip(level float32) bool { return level > 0 && level < 100 }

// SetUserClipLevel1 sets the first user clip level, in percent
func (s *Simulator) SetUserClipLevel1(level float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validClip(level) {
		return simFail
	}
	s.clip1 = level
	return 0
}

// SetUserClipLevel2 sets the second user clip level, in percent
func (s *Simulator) SetUserClipLevel2(level float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !validClip(level) {
		return simFail
	}
	s.clip2 = level
	return 0
}

// GetUserClipLevel1 returns the first user clip level
func (s *Simulator) GetUserClipLevel1(level *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*level = s.clip1
	return 0
}

// GetUserClipLevel2 returns the second user clip level
func (s *Simulator) GetUserClipLevel2(level *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*level = s.clip2
	return 0
}

// clipParameter is the parameter that enables the width at a clip level
func (s *Simulator) clipParameter(clip float32) Parameter {
	switch clip {
	case 13.5:
		return BeamWidth13_5Clip
	case 50:
		return BeamWidthFWHMClip
	case s.clip1:
		return BeamWidthUserClip1
	case s.clip2:
		return BeamWidthUserClip2
	}
	return 0
}

// GetBeamWidth returns the width at a clip level
func (s *Simulator) GetBeamWidth(aperture, roi int16, clip float32, width *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(s.clipParameter(clip), width, func() float64 {
		return clipWidth(s.width[aperture], clip) * float64(s.mag)
	})
}

// GetBeamWidth4Sigma returns the D4σ width, which for a Gaussian is the
// 1/e² diameter
func (s *Simulator) GetBeamWidth4Sigma(aperture, roi int16, width *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(BeamWidthD4Sigma, width, func() float64 {
		return s.width[aperture] * float64(s.mag)
	})
}

// GetCentroidPosition returns the centroid
func (s *Simulator) GetCentroidPosition(aperture, roi int16, pos *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(BeamCentroidPos, pos, func() float64 { return s.centroid(aperture) })
}

// GetPeakPosition returns the peak, which coincides with the centroid
func (s *Simulator) GetPeakPosition(aperture, roi int16, pos *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(BeamPeakPos, pos, func() float64 { return s.centroid(aperture) })
}

// GetCentroidSeparation is zero; there is one beam
func (s *Simulator) GetCentroidSeparation(aperture, roi int16, sep *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(SepCentroid, sep, func() float64 { return 0 })
}

// GetPeakSeparation is zero; there is one beam
func (s *Simulator) GetPeakSeparation(aperture, roi int16, sep *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(SepPeak, sep, func() float64 { return 0 })
}

// GetBeamIrradiance returns the peak irradiance of a 1 mW beam, in mW/cm²
func (s *Simulator) GetBeamIrradiance(aperture, roi int16, irr *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(BeamPeak, irr, func() float64 {
		wx, wy := s.width[X]/2e4, s.width[Y]/2e4
		return 2 / (math.Pi * wx * wy)
	})
}

// GetGaussianFit reports a near perfect fit
func (s *Simulator) GetGaussianFit(aperture, roi int16, goodness, roughness *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	code := s.result(ProfileGaussFit, goodness, func() float64 { return 99.5 })
	if code == 0 {
		*roughness = 0.5
	}
	return code
}

// GetBeamEllipticity returns the ratio of the smaller to larger width
func (s *Simulator) GetBeamEllipticity(roi int16, ell *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(int16(X), roi) {
		return simFail
	}
	return s.result(Ellipticity, ell, func() float64 {
		return math.Min(s.width[X], s.width[Y]) / math.Max(s.width[X], s.width[Y])
	})
}

// GetBeamWidthRatio returns the X to Y width ratio at a clip level
func (s *Simulator) GetBeamWidthRatio(roi int16, clip float32, ratio *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(int16(X), roi) {
		return simFail
	}
	var p Parameter
	switch s.clipParameter(clip) {
	case BeamWidth13_5Clip:
		p = BeamWidthRatio13_5Clip
	case BeamWidthFWHMClip:
		p = BeamWidthRatioFWHMClip
	case BeamWidthUserClip1:
		p = BeamWidthRatioUserClip1
	case BeamWidthUserClip2:
		p = BeamWidthRatioUserClip2
	}
	return s.result(p, ratio, func() float64 { return s.width[X] / s.width[Y] })
}

// GetBeamWidth4SigmaRatio returns the X to Y D4σ ratio
func (s *Simulator) GetBeamWidth4SigmaRatio(roi int16, ratio *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(int16(X), roi) {
		return simFail
	}
	return s.result(BeamWidthRatioD4Sigma, ratio, func() float64 { return s.width[X] / s.width[Y] })
}

// GetDivergenceParameter returns the far field full angle, in mrad
func (s *Simulator) GetDivergenceParameter(aperture, roi int16, div *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(aperture, roi) {
		return simFail
	}
	return s.result(Divergence, div, func() float64 { return 2 * s.beam.W0 / s.beam.ZR })
}

// GetTotalPower returns 1 mW
func (s *Simulator) GetTotalPower(power *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result(PowerTotal, power, func() float64 { return 1 })
}

// GetPower returns 1 mW for the region holding the beam
func (s *Simulator) GetPower(roi int16, power *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validROI(int16(X), roi) {
		return simFail
	}
	return s.result(Power, power, func() float64 { return 1 })
}

// SetPulseFrequency sets the pulsed source repetition rate
func (s *Simulator) SetPulseFrequency(freq float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if freq < 0 {
		return simFail
	}
	s.pulse = freq
	return 0
}

// GetPulseFrequency returns the pulsed source repetition rate
func (s *Simulator) GetPulseFrequency(freq *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*freq = s.pulse
	return 0
}

// AcquireSync1Rev takes one revolution.  It fails while DAQ runs
func (s *Simulator) AcquireSync1Rev() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.daq {
		return simFail
	}
	s.revolve()
	s.computed = false
	return 0
}

// RunComputation makes the last revolution's results readable
func (s *Simulator) RunComputation() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width[X] == 0 {
		return simFail
	}
	s.computed = true
	return 0
}

// Recompute is RunComputation
func (s *Simulator) Recompute() int32 {
	return s.RunComputation()
}

// SetAveraging sets the averaging counts
func (s *Simulator) SetAveraging(finite, rolling int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if finite < 1 || rolling < 1 {
		return simFail
	}
	s.avg = [2]int16{finite, rolling}
	return 0
}

// GetAveraging returns the averaging counts
func (s *Simulator) GetAveraging(finite, rolling *int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*finite, *rolling = s.avg[0], s.avg[1]
	return 0
}

// SetDivergenceMethod sets the divergence computation
func (s *Simulator) SetDivergenceMethod(method int16, clip, distance float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if method < 0 || distance <= 0 {
		return simFail
	}
	s.div, s.divClip, s.divDist = method, clip, distance
	return 0
}

// GetDivergenceMethod returns the divergence computation
func (s *Simulator) GetDivergenceMethod(method *int16, clip, distance *float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*method, *clip, *distance = s.div, s.divClip, s.divDist
	return 0
}

// GetNumDevices returns 1
func (s *Simulator) GetNumDevices(n *int16) int32 {
	*n = 1
	return 0
}

// GetDeviceID returns 0 once initialized
func (s *Simulator) GetDeviceID(id *int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*id = s.deviceID
	return 0
}

// SetDeviceID accepts only device 0
func (s *Simulator) SetDeviceID(id int16) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != 0 {
		return simFail
	}
	s.deviceID = id
	return 0
}

// GetNumPwrCalibrations returns 1
func (s *Simulator) GetNumPwrCalibrations(n *int16) int32 {
	*n = 1
	return 0
}

// GetPowerCalibrationBreakOut returns the factory calibration
func (s *Simulator) GetPowerCalibrationBreakOut(idx int16, descriptor *string, refPower, wavelength *float32) {
	if idx != 0 {
		return
	}
	*descriptor, *refPower, *wavelength = "Factory", 1, 2300
}

// OpenMotionPort connects the simulated rail
func (s *Simulator) OpenMotionPort(port string) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if port == "" {
		return simFail
	}
	s.motionOpen = true
	return 0
}

// CloseMotionPort disconnects the simulated rail
func (s *Simulator) CloseMotionPort() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.motionOpen {
		return simFail
	}
	s.motionOpen = false
	return 0
}

// Go2Position moves the rail, in mm
func (s *Simulator) Go2Position(pos float32) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.motionOpen || pos < 0 || pos > s.railLength {
		return simFail
	}
	s.rail = pos
	return 0
}

func (s *Simulator) GetShowWindow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showWindow
}

func (s *Simulator) SetShowWindow(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showWindow = show
}

func (s *Simulator) GetDataAcquisition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.daq
}

// SetDataAcquisition starts free running acquisition; the head reports zeros
// for its first revolutions
func (s *Simulator) SetDataAcquisition(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && !s.daq {
		s.warmup = simWarmup
	}
	if !on && s.daq {
		s.computed = s.width[X] != 0
	}
	s.daq = on
}

func (s *Simulator) GetAutoROI() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoROI
}

func (s *Simulator) SetAutoROI(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoROI = on
}

func (s *Simulator) GetTrackGain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackGain
}

func (s *Simulator) SetTrackGain(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackGain = on
}

func (s *Simulator) GetTrackFilter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackFilter
}

func (s *Simulator) SetTrackFilter(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackFilter = on
}

func (s *Simulator) GetPulsedMode() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulsedMode
}

func (s *Simulator) SetPulsedMode(mode int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulsedMode = mode
}

func (s *Simulator) GetDefaultCalibration() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultCal
}

func (s *Simulator) SetDefaultCalibration(idx int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultCal = idx
}

func (s *Simulator) GetPowerUnits() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powerUnits
}

func (s *Simulator) SetPowerUnits(units int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powerUnits = units
}

func (s *Simulator) GetMultiROIMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiROI
}

func (s *Simulator) SetMultiROIMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multiROI = on
}

func (s *Simulator) GetRailLength() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.railLength
}

func (s *Simulator) SetRailLength(length float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if length > 0 {
		s.railLength = length
	}
}

func (s *Simulator) GetGaussFitMethod() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gaussFit
}

func (s *Simulator) SetGaussFitMethod(method int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gaussFit = method
}

func (s *Simulator) GetMagnificationFactor() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mag
}

func (s *Simulator) SetMagnificationFactor(factor float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if factor > 0 {
		s.mag = factor
	}
}

func (s *Simulator) GetBeamWidthBasis() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basis
}

func (s *Simulator) SetBeamWidthBasis(basis int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if basis >= int16(W13_5) && basis <= int16(WUser2) {
		s.basis = basis
	}
}
