package fitting

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// OmegaZ is the radius of a Gaussian beam at z, half the D4σ width.
// p = [w0, z0, M²λ]
func OmegaZ(p []float64, z float64) float64 {
	w0, z0, msqLambda := p[0], p[1], p[2]
	dz := z - z0
	t := msqLambda / (math.Pi * w0 * w0)
	return w0 * math.Sqrt(1+dz*dz*t*t)
}

// OmegaZLambda returns OmegaZ with the wavelength fixed, p = [w0, z0, M²]
func OmegaZLambda(wavelength float64) Model {
	return func(p []float64, z float64) float64 {
		return OmegaZ([]float64{p[0], p[1], p[2] * wavelength}, z)
	}
}

// ISOOmegaZ is the hyperbolic beam radius of ISO 11146-1,
// ½√(a + bz + cz²) with p = [a, b, c]
func ISOOmegaZ(p []float64, z float64) float64 {
	a, b, c := p[0], p[1], p[2]
	return 0.5 * math.Sqrt(a+b*z+c*z*z)
}

// Mode selects the model an MsqFitter fits
type Mode int

const (
	// M2LambdaMode fits OmegaZ, the product M²λ is a free parameter
	M2LambdaMode Mode = iota

	// M2Mode fits OmegaZLambda with the wavelength given
	M2Mode

	// ISOMode fits ISOOmegaZ
	ISOMode
)

func (m Mode) String() string {
	switch m {
	case M2LambdaMode:
		return "M2Lambda"
	case M2Mode:
		return "M2"
	case ISOMode:
		return "ISO"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts "m2lambda", "m2", or "iso" (any case) to a Mode
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "m2lambda", "msqlambda":
		return M2LambdaMode, true
	case "m2", "msq":
		return M2Mode, true
	case "iso":
		return ISOMode, true
	}
	return 0, false
}

var (
	// ErrInvalidMode is generated when a Mode is not one of the constants
	ErrInvalidMode = errors.New("invalid fit mode")

	// ErrNotFitted is generated when results are requested before Fit
	ErrNotFitted = errors.New("fit has not been run")
)

// Estimate is a value and its one standard deviation uncertainty
type Estimate struct {
	Value float64 `json:"value"`
	Err   float64 `json:"err"`
}

func (e Estimate) String() string {
	return fmt.Sprintf("%.4g ± %.2g", e.Value, e.Err)
}

// MsqFitter fits the radii of a beam caustic for M².  The data are the
// positions z in mm and radii w in µm, with the uncertainties of w
type MsqFitter struct {
	z, w, dw []float64

	wavelength    float64
	wavelengthErr float64

	mode    Mode
	guesses []float64
	result  *Result
}

// NewMsqFitter returns a fitter for the caustic (z, w ± dw) of a beam of the
// given wavelength in nm.  dw may be nil, or all zero, for an unweighted fit.
// wavelengthErr enters the error of M²
func NewMsqFitter(z, w, dw []float64, wavelength, wavelengthErr float64, mode Mode) (*MsqFitter, error) {
	if mode < M2LambdaMode || mode > ISOMode {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	if len(w) != len(z) || (dw != nil && len(dw) != len(z)) {
		return nil, ErrLength
	}
	if allZero(dw) {
		dw = nil
	}
	f := &MsqFitter{
		z:             z,
		w:             w,
		dw:            dw,
		wavelength:    wavelength,
		wavelengthErr: wavelengthErr,
		mode:          mode,
	}
	f.guesses = f.defaultGuesses()
	return f, nil
}

func allZero(xs []float64) bool {
	for _, x := range xs {
		if x != 0 {
			return false
		}
	}
	return true
}

func (f *MsqFitter) defaultGuesses() []float64 {
	if f.mode == M2LambdaMode {
		return []float64{1, 1, f.wavelength}
	}
	return []float64{1, 1, 1}
}

// Mode returns the mode of the fitter
func (f *MsqFitter) Mode() Mode {
	return f.mode
}

// Model returns the function fit in the current mode
func (f *MsqFitter) Model() Model {
	switch f.mode {
	case M2LambdaMode:
		return OmegaZ
	case M2Mode:
		return OmegaZLambda(f.wavelength)
	default:
		return ISOOmegaZ
	}
}

// InitialGuesses returns the parameters the next Fit starts from
func (f *MsqFitter) InitialGuesses() []float64 {
	return append([]float64(nil), f.guesses...)
}

// SetInitialGuesses sets the starting waist radius, waist position and M².
// It does nothing in ISOMode, whose parameters are not physical
func (f *MsqFitter) SetInitialGuesses(w0, z0, msq float64) {
	switch f.mode {
	case M2LambdaMode:
		f.guesses = []float64{w0, z0, msq * f.wavelength}
	case M2Mode:
		f.guesses = []float64{w0, z0, msq}
	}
}

// EstimateInitialGuesses takes the waist from the smallest radius in the
// data, with M² = 1.  In ISOMode the data are first fit in M2Mode and the
// hyperbola coefficients are computed from that fit
func (f *MsqFitter) EstimateInitialGuesses() error {
	if len(f.w) == 0 {
		return fmt.Errorf("%w: no data", ErrTooFewPoints)
	}
	min := 0
	for i, w := range f.w {
		if w < f.w[min] {
			min = i
		}
	}
	if f.mode != ISOMode {
		f.SetInitialGuesses(f.w[min], f.z[min], 1)
		return nil
	}

	seed := &MsqFitter{
		z:          f.z,
		w:          f.w,
		dw:         f.dw,
		wavelength: f.wavelength,
		mode:       M2Mode,
	}
	seed.SetInitialGuesses(f.w[min], f.z[min], 1)
	res, err := seed.Fit()
	if err != nil {
		return fmt.Errorf("seeding ISO fit: %w", err)
	}
	w0, z0, msq := res.Params[0], res.Params[1], res.Params[2]
	theta := msq * f.wavelength / (math.Pi * w0)
	c := 4 * theta * theta
	a := 4*w0*w0 + c*z0*z0
	b := -2 * z0 * c
	f.guesses = []float64{a, b, c}
	return nil
}

// Fit fits the data from the initial guesses
func (f *MsqFitter) Fit() (Result, error) {
	f.result = nil
	res, err := CurveFit(f.Model(), f.z, f.w, f.dw, f.guesses)
	if err != nil {
		return res, err
	}
	f.result = &res
	return res, nil
}

// EstimateAndFit is EstimateInitialGuesses followed by Fit
func (f *MsqFitter) EstimateAndFit() (Result, error) {
	if err := f.EstimateInitialGuesses(); err != nil {
		return Result{}, err
	}
	return f.Fit()
}

// Result returns the last fit
func (f *MsqFitter) Result() (Result, error) {
	if f.result == nil {
		return Result{}, ErrNotFitted
	}
	return *f.result, nil
}

// Predict evaluates the fit at z
func (f *MsqFitter) Predict(z float64) (float64, error) {
	if f.result == nil {
		return 0, ErrNotFitted
	}
	return f.Model()(f.result.Params, z), nil
}

// MSquared returns M² of the fit.  The error is propagated from the
// parameter errors and the wavelength error, neglecting correlations
func (f *MsqFitter) MSquared() (Estimate, error) {
	if f.result == nil {
		return Estimate{}, ErrNotFitted
	}
	p, sd := f.result.Params, f.result.Errors
	wv, dwv := f.wavelength, f.wavelengthErr
	switch f.mode {
	case M2Mode:
		return Estimate{Value: p[2], Err: sd[2]}, nil
	case M2LambdaMode:
		msq := p[2] / wv
		rel := math.Hypot(sd[2]/p[2], dwv/wv)
		return Estimate{Value: msq, Err: math.Abs(msq) * rel}, nil
	}
	a, b, c := p[0], p[1], p[2]
	da, db, dc := sd[0], sd[1], sd[2]
	k := math.Sqrt(4*a*c - b*b)
	msq := math.Pi / (8 * wv) * k
	dMda := math.Pi * c / (4 * wv * k)
	dMdb := -math.Pi * b / (8 * wv * k)
	dMdc := math.Pi * a / (4 * wv * k)
	dMdwv := -math.Pi * k / (8 * wv * wv)
	err := math.Sqrt(sq(dMda*da) + sq(dMdb*db) + sq(dMdc*dc) + sq(dMdwv*dwv))
	return Estimate{Value: msq, Err: err}, nil
}

// Waist returns the waist radius w0 in µm and its position z0 in mm
func (f *MsqFitter) Waist() (w0, z0 float64, err error) {
	if f.result == nil {
		return 0, 0, ErrNotFitted
	}
	p := f.result.Params
	if f.mode != ISOMode {
		return math.Abs(p[0]), p[1], nil
	}
	a, b, c := p[0], p[1], p[2]
	z0 = -b / (2 * c)
	w0 = 0.5 * math.Sqrt((4*a*c-b*b)/(4*c))
	return w0, z0, nil
}

func sq(x float64) float64 {
	return x * x
}
