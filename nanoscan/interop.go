package nanoscan

// Interop is the flat C ABI of NS2_Interop.dll in Go types.  Each method is
// the export of the same name with the NsInterop prefix removed.  C short is
// int16, float is float32, unsigned long long is uint64, long long is int64
// and Win32 BOOL is bool.  Pointer arguments are the by-reference outputs;
// VARIANT arrays arrive as []float64 and BSTRs as string.
//
// Implementations do no validation or bookkeeping.  That is the job of
// NanoScan
type Interop interface {
	InitNsInterop() int32
	ShutdownNsInterop()

	SetGain(aperture, gain int16) int32
	GetGain(aperture int16, gain *int16) int32
	SetFilter(aperture int16, filter float32) int32
	GetFilter(aperture int16, filter *float32) int32
	SetSamplingResolution(res float32) int32
	GetSamplingResolution(aperture int16, res *float32) int32
	GetMaxSamplingResolution(res *float32) int32
	SetRotationFrequency(freq float32) int32
	GetRotationFrequency(freq *float32) int32
	GetMeasuredRotationFreq(freq *float32) int32
	GetHeadGainTable(capabilityID int64, table *[]float64)
	GetHeadScanRates(capabilityID int64, rates *[]float64)
	IsSignalSaturated(aperture int16, saturated *bool) int32

	AutoFind() int32
	AddROI(aperture int16, left, right float32, enabled bool) int32
	DeleteROI(aperture, roi int16) int32
	UpdateROI(aperture, roi int16, left, right float32, enabled bool) int32
	GetNumberOfROIs(aperture int16, n *int16) int32
	GetROI(aperture, roi int16, left, right *float32, enabled *bool) int32
	GetApertureLimits(aperture int16, start, end *float32) int32
	ReadProfile(aperture int16, start, end float32, decimation int16, amplitude, position *[]float64) int32

	SelectParameters(params uint64) int32
	GetSelectedParameters(params *uint64) int32
	SetUserClipLevel1(level float32) int32
	SetUserClipLevel2(level float32) int32
	GetUserClipLevel1(level *float32) int32
	GetUserClipLevel2(level *float32) int32

	GetBeamWidth(aperture, roi int16, clip float32, width *float32) int32
	GetBeamWidth4Sigma(aperture, roi int16, width *float32) int32
	GetCentroidPosition(aperture, roi int16, pos *float32) int32
	GetPeakPosition(aperture, roi int16, pos *float32) int32
	GetCentroidSeparation(aperture, roi int16, sep *float32) int32
	GetPeakSeparation(aperture, roi int16, sep *float32) int32
	GetBeamIrradiance(aperture, roi int16, irr *float32) int32
	GetGaussianFit(aperture, roi int16, goodness, roughness *float32) int32
	GetBeamEllipticity(roi int16, ell *float32) int32
	GetBeamWidthRatio(roi int16, clip float32, ratio *float32) int32
	GetBeamWidth4SigmaRatio(roi int16, ratio *float32) int32
	GetDivergenceParameter(aperture, roi int16, div *float32) int32
	GetTotalPower(power *float32) int32
	GetPower(roi int16, power *float32) int32

	SetPulseFrequency(freq float32) int32
	GetPulseFrequency(freq *float32) int32
	AcquireSync1Rev() int32
	RunComputation() int32
	Recompute() int32
	SetAveraging(finite, rolling int16) int32
	GetAveraging(finite, rolling *int16) int32
	SetDivergenceMethod(method int16, clip, distance float32) int32
	GetDivergenceMethod(method *int16, clip, distance *float32) int32

	GetNumDevices(n *int16) int32
	GetDeviceID(id *int16) int32
	SetDeviceID(id int16) int32
	GetNumPwrCalibrations(n *int16) int32
	GetPowerCalibrationBreakOut(idx int16, descriptor *string, refPower, wavelength *float32)

	OpenMotionPort(port string) int32
	CloseMotionPort() int32
	Go2Position(pos float32) int32

	GetShowWindow() bool
	SetShowWindow(show bool)
	GetDataAcquisition() bool
	SetDataAcquisition(on bool)
	GetAutoROI() bool
	SetAutoROI(on bool)
	GetTrackGain() bool
	SetTrackGain(on bool)
	GetTrackFilter() bool
	SetTrackFilter(on bool)
	GetPulsedMode() int32
	SetPulsedMode(mode int32)
	GetDefaultCalibration() int16
	SetDefaultCalibration(idx int16)
	GetPowerUnits() int16
	SetPowerUnits(units int16)
	GetMultiROIMode() bool
	SetMultiROIMode(on bool)
	GetRailLength() float32
	SetRailLength(length float32)
	GetGaussFitMethod() int16
	SetGaussFitMethod(method int16)
	GetMagnificationFactor() float32
	SetMagnificationFactor(factor float32)
	GetBeamWidthBasis() int16
	SetBeamWidthBasis(basis int16)
}
