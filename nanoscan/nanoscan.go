/*Package nanoscan exposes the Ophir NanoScan 2s scanning slit beam profiler
through the vendor's NS2_Interop.dll.

The binding is mechanical.  Every method of NanoScan is one call into the
vendor library.  Outputs are preset to a sentinel (short -1, float -0.1,
uint64 0, bool false) before each call, so a failed call returns the sentinel
alongside a non-nil *Error.  Setters pass the status code through as an *Error.
The vendor library is neither re-entrant nor safe to use before InitNsInterop,
so NanoScan serializes calls and refuses them while closed.

The Interop interface is the raw ABI.  NewDLL returns the real library on
windows, and NewSimulator a pure Go profiler for development and tests.
Profiler layers the acquisition helpers (waiting for a stable beam, averaged
D4σ widths, outlier rejection) over a NanoScan, and HTTPWrapper serves both.
*/
package nanoscan

import (
	"sync"
)

// ROI is the triple returned by GetROI: left bound, right bound, and 1 if the
// region is enabled, else 0
type ROI [3]float32

// Profile is the amplitude and position of a profile read from an aperture
type Profile struct {
	Amplitude []float64 `json:"amplitude"`
	Position  []float64 `json:"position"`
}

// PowerCalibration is one power calibration of the head
type PowerCalibration struct {
	Descriptor string  `json:"descriptor"`
	RefPower   float32 `json:"refPower"`
	Wavelength float32 `json:"wavelength"`
}

// NanoScan is a profiler reached through an Interop.  It is concurrent safe
type NanoScan struct {
	mu   sync.Mutex
	in   Interop
	open bool
}

// New returns a NanoScan over in.  Call Init before anything else
func New(in Interop) *NanoScan {
	return &NanoScan{in: in}
}

func (n *NanoScan) call(fn string, f func() int32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open {
		return ErrNotInitialized
	}
	return status(fn, f())
}

func (n *NanoScan) do(f func()) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open {
		return ErrNotInitialized
	}
	f()
	return nil
}

// Init starts the interop layer.  The vendor library signals success with 1
func (n *NanoScan) Init() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.open {
		return nil
	}
	if code := n.in.InitNsInterop(); code != 1 {
		return &Error{Func: "InitNsInterop", Code: code}
	}
	n.open = true
	return nil
}

// Shutdown stops the interop layer.  Shutting down twice is harmless
func (n *NanoScan) Shutdown() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open {
		return nil
	}
	n.in.ShutdownNsInterop()
	n.open = false
	return nil
}

// Initialized returns true between Init and Shutdown
func (n *NanoScan) Initialized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.open
}

// SetGain sets the gain of an aperture
func (n *NanoScan) SetGain(aperture Axis, gain int16) error {
	return n.call("NsInteropSetGain", func() int32 { return n.in.SetGain(int16(aperture), gain) })
}

// GetGain returns the gain of an aperture
func (n *NanoScan) GetGain(aperture Axis) (int16, error) {
	gain := SentinelShort
	err := n.call("NsInteropGetGain", func() int32 { return n.in.GetGain(int16(aperture), &gain) })
	return gain, err
}

// SetFilter sets the filter of an aperture
func (n *NanoScan) SetFilter(aperture Axis, filter float32) error {
	return n.call("NsInteropSetFilter", func() int32 { return n.in.SetFilter(int16(aperture), filter) })
}

// GetFilter returns the filter of an aperture
func (n *NanoScan) GetFilter(aperture Axis) (float32, error) {
	filter := SentinelFloat
	err := n.call("NsInteropGetFilter", func() int32 { return n.in.GetFilter(int16(aperture), &filter) })
	return filter, err
}

// SetSamplingResolution sets the sampling resolution of both apertures
func (n *NanoScan) SetSamplingResolution(res float32) error {
	return n.call("NsInteropSetSamplingResolution", func() int32 { return n.in.SetSamplingResolution(res) })
}

// GetSamplingResolution returns the sampling resolution of an aperture
func (n *NanoScan) GetSamplingResolution(aperture Axis) (float32, error) {
	res := SentinelFloat
	err := n.call("NsInteropGetSamplingResolution", func() int32 { return n.in.GetSamplingResolution(int16(aperture), &res) })
	return res, err
}

// GetMaxSamplingResolution returns the finest sampling resolution at the
// current rotation frequency
func (n *NanoScan) GetMaxSamplingResolution() (float32, error) {
	res := SentinelFloat
	err := n.call("NsInteropGetMaxSamplingResolution", func() int32 { return n.in.GetMaxSamplingResolution(&res) })
	return res, err
}

// SetRotationFrequency sets the head rotation frequency, in Hz
func (n *NanoScan) SetRotationFrequency(freq float32) error {
	return n.call("NsInteropSetRotationFrequency", func() int32 { return n.in.SetRotationFrequency(freq) })
}

// GetRotationFrequency returns the head rotation frequency setpoint, in Hz
func (n *NanoScan) GetRotationFrequency() (float32, error) {
	freq := SentinelFloat
	err := n.call("NsInteropGetRotationFrequency", func() int32 { return n.in.GetRotationFrequency(&freq) })
	return freq, err
}

// GetMeasuredRotationFreq returns the measured head rotation frequency, in Hz
func (n *NanoScan) GetMeasuredRotationFreq() (float32, error) {
	freq := SentinelFloat
	err := n.call("NsInteropGetMeasuredRotationFreq", func() int32 { return n.in.GetMeasuredRotationFreq(&freq) })
	return freq, err
}

// GetHeadGainTable returns the gain table of the head with the given
// capability ID.  The native call has no status, an empty table means failure
func (n *NanoScan) GetHeadGainTable(capabilityID int64) ([]float64, error) {
	var table []float64
	err := n.do(func() { n.in.GetHeadGainTable(capabilityID, &table) })
	return table, err
}

// GetHeadScanRates returns the rotation frequencies the head with the given
// capability ID supports
func (n *NanoScan) GetHeadScanRates(capabilityID int64) ([]float64, error) {
	var rates []float64
	err := n.do(func() { n.in.GetHeadScanRates(capabilityID, &rates) })
	return rates, err
}

// IsSignalSaturated returns true if the detector of an aperture is saturated
func (n *NanoScan) IsSignalSaturated(aperture Axis) (bool, error) {
	sat := SentinelBool
	err := n.call("NsInteropIsSignalSaturated", func() int32 { return n.in.IsSignalSaturated(int16(aperture), &sat) })
	return sat, err
}

// AutoFind places regions of interest around the beam automatically
func (n *NanoScan) AutoFind() error {
	return n.call("NsInteropAutoFind", n.in.AutoFind)
}

// AddROI adds a region of interest to an aperture
func (n *NanoScan) AddROI(aperture Axis, left, right float32, enabled bool) error {
	return n.call("NsInteropAddROI", func() int32 { return n.in.AddROI(int16(aperture), left, right, enabled) })
}

// DeleteROI deletes a region of interest from an aperture
func (n *NanoScan) DeleteROI(aperture Axis, roi int16) error {
	return n.call("NsInteropDeleteROI", func() int32 { return n.in.DeleteROI(int16(aperture), roi) })
}

// UpdateROI replaces a region of interest of an aperture
func (n *NanoScan) UpdateROI(aperture Axis, roi int16, left, right float32, enabled bool) error {
	return n.call("NsInteropUpdateROI", func() int32 { return n.in.UpdateROI(int16(aperture), roi, left, right, enabled) })
}

// GetNumberOfROIs returns the number of regions of interest on an aperture
func (n *NanoScan) GetNumberOfROIs(aperture Axis) (int16, error) {
	num := SentinelShort
	err := n.call("NsInteropGetNumberOfROIs", func() int32 { return n.in.GetNumberOfROIs(int16(aperture), &num) })
	return num, err
}

// GetROI returns a region of interest of an aperture
func (n *NanoScan) GetROI(aperture Axis, roi int16) (ROI, error) {
	left, right, enabled := SentinelFloat, SentinelFloat, SentinelBool
	err := n.call("NsInteropGetROI", func() int32 { return n.in.GetROI(int16(aperture), roi, &left, &right, &enabled) })
	var en float32
	if enabled {
		en = 1
	}
	return ROI{left, right, en}, err
}

// GetApertureLimits returns the start and end position of an aperture
func (n *NanoScan) GetApertureLimits(aperture Axis) ([2]float32, error) {
	start, end := SentinelFloat, SentinelFloat
	err := n.call("NsInteropGetApertureLimits", func() int32 { return n.in.GetApertureLimits(int16(aperture), &start, &end) })
	return [2]float32{start, end}, err
}

// ReadProfile reads the profile of an aperture between start and end,
// keeping every decimation'th sample
func (n *NanoScan) ReadProfile(aperture Axis, start, end float32, decimation int16) (Profile, error) {
	var p Profile
	err := n.call("NsInteropReadProfile", func() int32 {
		return n.in.ReadProfile(int16(aperture), start, end, decimation, &p.Amplitude, &p.Position)
	})
	return p, err
}

// SelectParameters sets the results the instrument computes
func (n *NanoScan) SelectParameters(params Parameter) error {
	return n.call("NsInteropSelectParameters", func() int32 { return n.in.SelectParameters(uint64(params)) })
}

// GetSelectedParameters returns the results the instrument computes
func (n *NanoScan) GetSelectedParameters() (Parameter, error) {
	params := SentinelUint64
	err := n.call("NsInteropGetSelectedParameters", func() int32 { return n.in.GetSelectedParameters(&params) })
	return Parameter(params), err
}

// SetUserClipLevel1 sets the first user clip level
func (n *NanoScan) SetUserClipLevel1(level float32) error {
	return n.call("NsInteropSetUserClipLevel1", func() int32 { return n.in.SetUserClipLevel1(level) })
}

// SetUserClipLevel2 sets the second user clip level
func (n *NanoScan) SetUserClipLevel2(level float32) error {
	return n.call("NsInteropSetUserClipLevel2", func() int32 { return n.in.SetUserClipLevel2(level) })
}

// GetUserClipLevel1 returns the first user clip level
func (n *NanoScan) GetUserClipLevel1() (float32, error) {
	level := SentinelFloat
	err := n.call("NsInteropGetUserClipLevel1", func() int32 { return n.in.GetUserClipLevel1(&level) })
	return level, err
}

// GetUserClipLevel2 returns the second user clip level
func (n *NanoScan) GetUserClipLevel2() (float32, error) {
	level := SentinelFloat
	err := n.call("NsInteropGetUserClipLevel2", func() int32 { return n.in.GetUserClipLevel2(&level) })
	return level, err
}

// GetBeamWidth returns the beam width at a clip level, in µm
func (n *NanoScan) GetBeamWidth(aperture Axis, roi int16, clip float32) (float32, error) {
	w := SentinelFloat
	err := n.call("NsInteropGetBeamWidth", func() int32 { return n.in.GetBeamWidth(int16(aperture), roi, clip, &w) })
	return w, err
}

// GetBeamWidth4Sigma returns the second moment (D4σ) beam width, in µm
func (n *NanoScan) GetBeamWidth4Sigma(aperture Axis, roi int16) (float32, error) {
	w := SentinelFloat
	err := n.call("NsInteropGetBeamWidth4Sigma", func() int32 { return n.in.GetBeamWidth4Sigma(int16(aperture), roi, &w) })
	return w, err
}

// GetCentroidPosition returns the centroid of the beam, in µm
func (n *NanoScan) GetCentroidPosition(aperture Axis, roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetCentroidPosition", func() int32 { return n.in.GetCentroidPosition(int16(aperture), roi, &v) })
	return v, err
}

// GetPeakPosition returns the position of the beam peak, in µm
func (n *NanoScan) GetPeakPosition(aperture Axis, roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetPeakPosition", func() int32 { return n.in.GetPeakPosition(int16(aperture), roi, &v) })
	return v, err
}

// GetCentroidSeparation returns the separation of the centroids of two
// regions, in µm
func (n *NanoScan) GetCentroidSeparation(aperture Axis, roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetCentroidSeparation", func() int32 { return n.in.GetCentroidSeparation(int16(aperture), roi, &v) })
	return v, err
}

// GetPeakSeparation returns the separation of the peaks of two regions, in µm
func (n *NanoScan) GetPeakSeparation(aperture Axis, roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetPeakSeparation", func() int32 { return n.in.GetPeakSeparation(int16(aperture), roi, &v) })
	return v, err
}

// GetBeamIrradiance returns the peak irradiance of the beam
func (n *NanoScan) GetBeamIrradiance(aperture Axis, roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetBeamIrradiance", func() int32 { return n.in.GetBeamIrradiance(int16(aperture), roi, &v) })
	return v, err
}

// GetGaussianFit returns the goodness and roughness of a Gaussian fit to
// the profile
func (n *NanoScan) GetGaussianFit(aperture Axis, roi int16) ([2]float32, error) {
	good, rough := SentinelFloat, SentinelFloat
	err := n.call("NsInteropGetGaussianFit", func() int32 { return n.in.GetGaussianFit(int16(aperture), roi, &good, &rough) })
	return [2]float32{good, rough}, err
}

// GetBeamEllipticity returns the ellipticity of the beam in a region
func (n *NanoScan) GetBeamEllipticity(roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetBeamEllipticity", func() int32 { return n.in.GetBeamEllipticity(roi, &v) })
	return v, err
}

// GetBeamWidthRatio returns the ratio of the X and Y widths at a clip level
func (n *NanoScan) GetBeamWidthRatio(roi int16, clip float32) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetBeamWidthRatio", func() int32 { return n.in.GetBeamWidthRatio(roi, clip, &v) })
	return v, err
}

// GetBeamWidth4SigmaRatio returns the ratio of the X and Y D4σ widths
func (n *NanoScan) GetBeamWidth4SigmaRatio(roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetBeamWidth4SigmaRatio", func() int32 { return n.in.GetBeamWidth4SigmaRatio(roi, &v) })
	return v, err
}

// GetDivergenceParameter returns the divergence of the beam
func (n *NanoScan) GetDivergenceParameter(aperture Axis, roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetDivergenceParameter", func() int32 { return n.in.GetDivergenceParameter(int16(aperture), roi, &v) })
	return v, err
}

// GetTotalPower returns the power over all regions
func (n *NanoScan) GetTotalPower() (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetTotalPower", func() int32 { return n.in.GetTotalPower(&v) })
	return v, err
}

// GetPower returns the power in a region
func (n *NanoScan) GetPower(roi int16) (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetPower", func() int32 { return n.in.GetPower(roi, &v) })
	return v, err
}

// SetPulseFrequency sets the repetition rate of a pulsed source, in Hz
func (n *NanoScan) SetPulseFrequency(freq float32) error {
	return n.call("NsInteropSetPulseFrequency", func() int32 { return n.in.SetPulseFrequency(freq) })
}

// GetPulseFrequency returns the repetition rate of a pulsed source, in Hz
func (n *NanoScan) GetPulseFrequency() (float32, error) {
	v := SentinelFloat
	err := n.call("NsInteropGetPulseFrequency", func() int32 { return n.in.GetPulseFrequency(&v) })
	return v, err
}

// AcquireSync1Rev acquires exactly one revolution of the head
func (n *NanoScan) AcquireSync1Rev() error {
	return n.call("NsInteropAcquireSync1Rev", n.in.AcquireSync1Rev)
}

// RunComputation computes the selected results from the last acquisition
func (n *NanoScan) RunComputation() error {
	return n.call("NsInteropRunComputation", n.in.RunComputation)
}

// Recompute recomputes the selected results after a settings change
func (n *NanoScan) Recompute() error {
	return n.call("NsInteropRecompute", n.in.Recompute)
}

// SetAveraging sets the finite and rolling averaging counts
func (n *NanoScan) SetAveraging(finite, rolling int16) error {
	return n.call("NsInteropSetAveraging", func() int32 { return n.in.SetAveraging(finite, rolling) })
}

// GetAveraging returns the finite and rolling averaging counts
func (n *NanoScan) GetAveraging() ([2]int16, error) {
	finite, rolling := SentinelShort, SentinelShort
	err := n.call("NsInteropGetAveraging", func() int32 { return n.in.GetAveraging(&finite, &rolling) })
	return [2]int16{finite, rolling}, err
}

// SetDivergenceMethod sets the divergence method, its clip level and the
// distance between measurement planes
func (n *NanoScan) SetDivergenceMethod(method int16, clip, distance float32) error {
	return n.call("NsInteropSetDivergenceMethod", func() int32 { return n.in.SetDivergenceMethod(method, clip, distance) })
}

// GetDivergenceMethod returns the method (as a float), clip level, and
// distance of the divergence computation
func (n *NanoScan) GetDivergenceMethod() ([3]float32, error) {
	method, clip, distance := SentinelShort, SentinelFloat, SentinelFloat
	err := n.call("NsInteropGetDivergenceMethod", func() int32 { return n.in.GetDivergenceMethod(&method, &clip, &distance) })
	return [3]float32{float32(method), clip, distance}, err
}

// GetNumDevices returns the number of connected profilers
func (n *NanoScan) GetNumDevices() (int16, error) {
	v := SentinelShort
	err := n.call("NsInteropGetNumDevices", func() int32 { return n.in.GetNumDevices(&v) })
	return v, err
}

// GetDeviceID returns the ID of the profiler in use, -1 if none is free
func (n *NanoScan) GetDeviceID() (int16, error) {
	v := SentinelShort
	err := n.call("NsInteropGetDeviceID", func() int32 { return n.in.GetDeviceID(&v) })
	return v, err
}

// SetDeviceID selects the profiler to use
func (n *NanoScan) SetDeviceID(id int16) error {
	return n.call("NsInteropSetDeviceID", func() int32 { return n.in.SetDeviceID(id) })
}

// GetNumPwrCalibrations returns the number of power calibrations of the head
func (n *NanoScan) GetNumPwrCalibrations() (int16, error) {
	v := SentinelShort
	err := n.call("NsInteropGetNumPwrCalibrations", func() int32 { return n.in.GetNumPwrCalibrations(&v) })
	return v, err
}

// GetPowerCalibrationBreakOut returns a power calibration of the head.  The
// native call has no status; a failure leaves the sentinels in place
func (n *NanoScan) GetPowerCalibrationBreakOut(idx int16) (PowerCalibration, error) {
	pc := PowerCalibration{RefPower: SentinelFloat, Wavelength: SentinelFloat}
	err := n.do(func() { n.in.GetPowerCalibrationBreakOut(idx, &pc.Descriptor, &pc.RefPower, &pc.Wavelength) })
	return pc, err
}

// OpenMotionPort opens the serial port of a motion rail
func (n *NanoScan) OpenMotionPort(port string) error {
	return n.call("NsInteropOpenMotionPort", func() int32 { return n.in.OpenMotionPort(port) })
}

// CloseMotionPort closes the serial port of the motion rail
func (n *NanoScan) CloseMotionPort() error {
	return n.call("NsInteropCloseMotionPort", n.in.CloseMotionPort)
}

// Go2Position moves the motion rail, in mm
func (n *NanoScan) Go2Position(pos float32) error {
	return n.call("NsInteropGo2Position", func() int32 { return n.in.Go2Position(pos) })
}

// the properties below have no status, only ErrNotInitialized is possible

// GetShowWindow returns true if the vendor GUI is shown
func (n *NanoScan) GetShowWindow() (bool, error) {
	v := SentinelBool
	err := n.do(func() { v = n.in.GetShowWindow() })
	return v, err
}

// SetShowWindow shows or hides the vendor GUI
func (n *NanoScan) SetShowWindow(show bool) error {
	return n.do(func() { n.in.SetShowWindow(show) })
}

// GetDataAcquisition returns true while data acquisition runs
func (n *NanoScan) GetDataAcquisition() (bool, error) {
	v := SentinelBool
	err := n.do(func() { v = n.in.GetDataAcquisition() })
	return v, err
}

// SetDataAcquisition starts or stops continuous data acquisition
func (n *NanoScan) SetDataAcquisition(on bool) error {
	return n.do(func() { n.in.SetDataAcquisition(on) })
}

// GetAutoROI returns true if regions follow the beam
func (n *NanoScan) GetAutoROI() (bool, error) {
	v := SentinelBool
	err := n.do(func() { v = n.in.GetAutoROI() })
	return v, err
}

// SetAutoROI makes regions follow the beam
func (n *NanoScan) SetAutoROI(on bool) error {
	return n.do(func() { n.in.SetAutoROI(on) })
}

// GetTrackGain returns true if the gain follows the signal
func (n *NanoScan) GetTrackGain() (bool, error) {
	v := SentinelBool
	err := n.do(func() { v = n.in.GetTrackGain() })
	return v, err
}

// SetTrackGain makes the gain follow the signal
func (n *NanoScan) SetTrackGain(on bool) error {
	return n.do(func() { n.in.SetTrackGain(on) })
}

// GetTrackFilter returns true if the filter follows the signal
func (n *NanoScan) GetTrackFilter() (bool, error) {
	v := SentinelBool
	err := n.do(func() { v = n.in.GetTrackFilter() })
	return v, err
}

// SetTrackFilter makes the filter follow the signal
func (n *NanoScan) SetTrackFilter(on bool) error {
	return n.do(func() { n.in.SetTrackFilter(on) })
}

// GetPulsedMode returns the pulsed source mode
func (n *NanoScan) GetPulsedMode() (int32, error) {
	var v int32
	err := n.do(func() { v = n.in.GetPulsedMode() })
	return v, err
}

// SetPulsedMode sets the pulsed source mode
func (n *NanoScan) SetPulsedMode(mode int32) error {
	return n.do(func() { n.in.SetPulsedMode(mode) })
}

// GetDefaultCalibration returns the index of the default power calibration
func (n *NanoScan) GetDefaultCalibration() (int16, error) {
	v := SentinelShort
	err := n.do(func() { v = n.in.GetDefaultCalibration() })
	return v, err
}

// SetDefaultCalibration sets the index of the default power calibration
func (n *NanoScan) SetDefaultCalibration(idx int16) error {
	return n.do(func() { n.in.SetDefaultCalibration(idx) })
}

// GetPowerUnits returns the power unit selection
func (n *NanoScan) GetPowerUnits() (int16, error) {
	v := SentinelShort
	err := n.do(func() { v = n.in.GetPowerUnits() })
	return v, err
}

// SetPowerUnits sets the power unit selection
func (n *NanoScan) SetPowerUnits(units int16) error {
	return n.do(func() { n.in.SetPowerUnits(units) })
}

// GetMultiROIMode returns true if multiple regions per aperture are allowed
func (n *NanoScan) GetMultiROIMode() (bool, error) {
	v := SentinelBool
	err := n.do(func() { v = n.in.GetMultiROIMode() })
	return v, err
}

// SetMultiROIMode allows multiple regions per aperture
func (n *NanoScan) SetMultiROIMode(on bool) error {
	return n.do(func() { n.in.SetMultiROIMode(on) })
}

// GetRailLength returns the length of the motion rail, in mm
func (n *NanoScan) GetRailLength() (float32, error) {
	v := SentinelFloat
	err := n.do(func() { v = n.in.GetRailLength() })
	return v, err
}

// SetRailLength sets the length of the motion rail, in mm
func (n *NanoScan) SetRailLength(length float32) error {
	return n.do(func() { n.in.SetRailLength(length) })
}

// GetGaussFitMethod returns the Gaussian fit method
func (n *NanoScan) GetGaussFitMethod() (int16, error) {
	v := SentinelShort
	err := n.do(func() { v = n.in.GetGaussFitMethod() })
	return v, err
}

// SetGaussFitMethod sets the Gaussian fit method
func (n *NanoScan) SetGaussFitMethod(method int16) error {
	return n.do(func() { n.in.SetGaussFitMethod(method) })
}

// GetMagnificationFactor returns the magnification applied to widths
func (n *NanoScan) GetMagnificationFactor() (float32, error) {
	v := SentinelFloat
	err := n.do(func() { v = n.in.GetMagnificationFactor() })
	return v, err
}

// SetMagnificationFactor sets the magnification applied to widths
func (n *NanoScan) SetMagnificationFactor(factor float32) error {
	return n.do(func() { n.in.SetMagnificationFactor(factor) })
}

// GetBeamWidthBasis returns the definition of width used for derived results
func (n *NanoScan) GetBeamWidthBasis() (BeamWidthBasis, error) {
	v := SentinelShort
	err := n.do(func() { v = n.in.GetBeamWidthBasis() })
	return BeamWidthBasis(v), err
}

// SetBeamWidthBasis sets the definition of width used for derived results
func (n *NanoScan) SetBeamWidthBasis(basis BeamWidthBasis) error {
	return n.do(func() { n.in.SetBeamWidthBasis(int16(basis)) })
}
