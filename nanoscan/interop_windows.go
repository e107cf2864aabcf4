//go:build windows && cgo

package nanoscan

/*
#cgo LDFLAGS: -L${SRCDIR}/lib -lNS2_Interop -loleaut32
#include <stdlib.h>
#include <windows.h>
#include <oleauto.h>

#define NSAPI __declspec(dllimport) __cdecl

extern int  NSAPI InitNsInterop(void);
extern void NSAPI ShutdownNsInterop(void);

extern int NSAPI NsInteropSetGain(short aperture, short gain);
extern int NSAPI NsInteropGetGain(short aperture, short* gain);
extern int NSAPI NsInteropSetFilter(short aperture, float filter);
extern int NSAPI NsInteropGetFilter(short aperture, float* filter);
extern int NSAPI NsInteropSetSamplingResolution(float res);
extern int NSAPI NsInteropGetSamplingResolution(short aperture, float* res);
extern int NSAPI NsInteropGetMaxSamplingResolution(float* res);
extern int NSAPI NsInteropSetRotationFrequency(float freq);
extern int NSAPI NsInteropGetRotationFrequency(float* freq);
extern int NSAPI NsInteropGetMeasuredRotationFreq(float* freq);
extern void NSAPI NsInteropGetHeadGainTable(long long capabilityID, VARIANT* table);
extern void NSAPI NsInteropGetHeadScanRates(long long capabilityID, VARIANT* rates);
extern int NSAPI NsInteropIsSignalSaturated(short aperture, BOOL* saturated);

extern int NSAPI NsInteropAutoFind(void);
extern int NSAPI NsInteropAddROI(short aperture, float left, float right, BOOL enabled);
extern int NSAPI NsInteropDeleteROI(short aperture, short roi);
extern int NSAPI NsInteropUpdateROI(short aperture, short roi, float left, float right, BOOL enabled);
extern int NSAPI NsInteropGetNumberOfROIs(short aperture, short* n);
extern int NSAPI NsInteropGetROI(short aperture, short roi, float* left, float* right, BOOL* enabled);
extern int NSAPI NsInteropGetApertureLimits(short aperture, float* start, float* end);
extern int NSAPI NsInteropReadProfile(short aperture, float start, float end, short decimation, VARIANT* amplitude, VARIANT* position);

extern int NSAPI NsInteropSelectParameters(unsigned long long params);
extern int NSAPI NsInteropGetSelectedParameters(unsigned long long* params);
extern int NSAPI NsInteropSetUserClipLevel1(float level);
extern int NSAPI NsInteropSetUserClipLevel2(float level);
extern int NSAPI NsInteropGetUserClipLevel1(float* level);
extern int NSAPI NsInteropGetUserClipLevel2(float* level);

extern int NSAPI NsInteropGetBeamWidth(short aperture, short roi, float clip, float* width);
extern int NSAPI NsInteropGetBeamWidth4Sigma(short aperture, short roi, float* width);
extern int NSAPI NsInteropGetCentroidPosition(short aperture, short roi, float* pos);
extern int NSAPI NsInteropGetPeakPosition(short aperture, short roi, float* pos);
extern int NSAPI NsInteropGetCentroidSeparation(short aperture, short roi, float* sep);
extern int NSAPI NsInteropGetPeakSeparation(short aperture, short roi, float* sep);
extern int NSAPI NsInteropGetBeamIrradiance(short aperture, short roi, float* irr);
extern int NSAPI NsInteropGetGaussianFit(short aperture, short roi, float* goodness, float* roughness);
extern int NSAPI NsInteropGetBeamEllipticity(short roi, float* ell);
extern int NSAPI NsInteropGetBeamWidthRatio(short roi, float clip, float* ratio);
extern int NSAPI NsInteropGetBeamWidth4SigmaRatio(short roi, float* ratio);
extern int NSAPI NsInteropGetDivergenceParameter(short aperture, short roi, float* div);
extern int NSAPI NsInteropGetTotalPower(float* power);
extern int NSAPI NsInteropGetPower(short roi, float* power);

extern int NSAPI NsInteropSetPulseFrequency(float freq);
extern int NSAPI NsInteropGetPulseFrequency(float* freq);
extern int NSAPI NsInteropAcquireSync1Rev(void);
extern int NSAPI NsInteropRunComputation(void);
extern int NSAPI NsInteropRecompute(void);
extern int NSAPI NsInteropSetAveraging(short finite, short rolling);
extern int NSAPI NsInteropGetAveraging(short* finite, short* rolling);
extern int NSAPI NsInteropSetDivergenceMethod(short method, float clip, float distance);
extern int NSAPI NsInteropGetDivergenceMethod(short* method, float* clip, float* distance);

extern int NSAPI NsInteropGetNumDevices(short* n);
extern int NSAPI NsInteropGetDeviceID(short* id);
extern int NSAPI NsInteropSetDeviceID(short id);
extern int NSAPI NsInteropGetNumPwrCalibrations(short* n);
extern void NSAPI NsInteropGetPowerCalibrationBreakOut(short idx, BSTR* descriptor, float* refPower, float* wavelength);

extern int NSAPI NsInteropOpenMotionPort(const char* port);
extern int NSAPI NsInteropCloseMotionPort(void);
extern int NSAPI NsInteropGo2Position(float pos);

extern BOOL  NSAPI NsInteropGetShowWindow(void);
extern void  NSAPI NsInteropSetShowWindow(BOOL show);
extern BOOL  NSAPI NsInteropGetDataAcquisition(void);
extern void  NSAPI NsInteropSetDataAcquisition(BOOL on);
extern BOOL  NSAPI NsInteropGetAutoROI(void);
extern void  NSAPI NsInteropSetAutoROI(BOOL on);
extern BOOL  NSAPI NsInteropGetTrackGain(void);
extern void  NSAPI NsInteropSetTrackGain(BOOL on);
extern BOOL  NSAPI NsInteropGetTrackFilter(void);
extern void  NSAPI NsInteropSetTrackFilter(BOOL on);
extern int   NSAPI NsInteropGetPulsedMode(void);
extern void  NSAPI NsInteropSetPulsedMode(int mode);
extern short NSAPI NsInteropGetDefaultCalibration(void);
extern void  NSAPI NsInteropSetDefaultCalibration(short idx);
extern short NSAPI NsInteropGetPowerUnits(void);
extern void  NSAPI NsInteropSetPowerUnits(short units);
extern BOOL  NSAPI NsInteropGetMultiROIMode(void);
extern void  NSAPI NsInteropSetMultiROIMode(BOOL on);
extern float NSAPI NsInteropGetRailLength(void);
extern void  NSAPI NsInteropSetRailLength(float length);
extern short NSAPI NsInteropGetGaussFitMethod(void);
extern void  NSAPI NsInteropSetGaussFitMethod(short method);
extern float NSAPI NsInteropGetMagnificationFactor(void);
extern void  NSAPI NsInteropSetMagnificationFactor(float factor);
extern short NSAPI NsInteropGetBeamWidthBasis(void);
extern void  NSAPI NsInteropSetBeamWidthBasis(short basis);

// numeric one dimensional SAFEARRAYs only
static int ns_variant_len(VARIANT* v) {
	LONG lo, hi;
	if (!(v->vt & VT_ARRAY) || v->parray == NULL) {
		return 0;
	}
	if (FAILED(SafeArrayGetLBound(v->parray, 1, &lo)) || FAILED(SafeArrayGetUBound(v->parray, 1, &hi))) {
		return 0;
	}
	return (int)(hi - lo + 1);
}

static void ns_variant_copy(VARIANT* v, double* dst, int n) {
	void* data;
	VARTYPE t = v->vt & VT_TYPEMASK;
	if (FAILED(SafeArrayAccessData(v->parray, &data))) {
		return;
	}
	for (int i = 0; i < n; i++) {
		switch (t) {
		case VT_R4: dst[i] = ((float*)data)[i]; break;
		case VT_R8: dst[i] = ((double*)data)[i]; break;
		case VT_I2: dst[i] = ((short*)data)[i]; break;
		case VT_I4: dst[i] = ((int*)data)[i]; break;
		default: dst[i] = 0;
		}
	}
	SafeArrayUnaccessData(v->parray);
}

static int ns_bstr_len(BSTR b) {
	return b == NULL ? 0 : (int)SysStringLen(b);
}

static void ns_bstr_copy(BSTR b, unsigned short* dst, int n) {
	for (int i = 0; i < n; i++) {
		dst[i] = (unsigned short)b[i];
	}
}
*/
import "C"
import (
	"unicode/utf16"
	"unsafe"
)

// dll calls straight into NS2_Interop.dll, linked at build time from
// nanoscan/lib.  The 32/64 bit flavor of the DLL must match GOARCH
type dll struct{}

// NewDLL returns the Interop backed by the vendor library
func NewDLL() (Interop, error) {
	return dll{}, nil
}

func cbool(b bool) C.BOOL {
	if b {
		return C.TRUE
	}
	return C.FALSE
}

func variantFloats(v *C.VARIANT) []float64 {
	defer C.VariantClear(v)
	n := int(C.ns_variant_len(v))
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	C.ns_variant_copy(v, (*C.double)(unsafe.Pointer(&out[0])), C.int(n))
	return out
}

func (dll) InitNsInterop() int32 { return int32(C.InitNsInterop()) }
func (dll) ShutdownNsInterop()   { C.ShutdownNsInterop() }

func (dll) SetGain(aperture, gain int16) int32 {
	return int32(C.NsInteropSetGain(C.short(aperture), C.short(gain)))
}

func (dll) GetGain(aperture int16, gain *int16) int32 {
	return int32(C.NsInteropGetGain(C.short(aperture), (*C.short)(gain)))
}

func (dll) SetFilter(aperture int16, filter float32) int32 {
	return int32(C.NsInteropSetFilter(C.short(aperture), C.float(filter)))
}

func (dll) GetFilter(aperture int16, filter *float32) int32 {
	return int32(C.NsInteropGetFilter(C.short(aperture), (*C.float)(filter)))
}

func (dll) SetSamplingResolution(res float32) int32 {
	return int32(C.NsInteropSetSamplingResolution(C.float(res)))
}

func (dll) GetSamplingResolution(aperture int16, res *float32) int32 {
	return int32(C.NsInteropGetSamplingResolution(C.short(aperture), (*C.float)(res)))
}

func (dll) GetMaxSamplingResolution(res *float32) int32 {
	return int32(C.NsInteropGetMaxSamplingResolution((*C.float)(res)))
}

func (dll) SetRotationFrequency(freq float32) int32 {
	return int32(C.NsInteropSetRotationFrequency(C.float(freq)))
}

func (dll) GetRotationFrequency(freq *float32) int32 {
	return int32(C.NsInteropGetRotationFrequency((*C.float)(freq)))
}

func (dll) GetMeasuredRotationFreq(freq *float32) int32 {
	return int32(C.NsInteropGetMeasuredRotationFreq((*C.float)(freq)))
}

func (dll) GetHeadGainTable(capabilityID int64, table *[]float64) {
	var v C.VARIANT
	C.VariantInit(&v)
	C.NsInteropGetHeadGainTable(C.longlong(capabilityID), &v)
	*table = variantFloats(&v)
}

func (dll) GetHeadScanRates(capabilityID int64, rates *[]float64) {
	var v C.VARIANT
	C.VariantInit(&v)
	C.NsInteropGetHeadScanRates(C.longlong(capabilityID), &v)
	*rates = variantFloats(&v)
}

func (dll) IsSignalSaturated(aperture int16, saturated *bool) int32 {
	b := cbool(*saturated)
	code := int32(C.NsInteropIsSignalSaturated(C.short(aperture), &b))
	*saturated = b != 0
	return code
}

func (dll) AutoFind() int32 { return int32(C.NsInteropAutoFind()) }

func (dll) AddROI(aperture int16, left, right float32, enabled bool) int32 {
	return int32(C.NsInteropAddROI(C.short(aperture), C.float(left), C.float(right), cbool(enabled)))
}

func (dll) DeleteROI(aperture, roi int16) int32 {
	return int32(C.NsInteropDeleteROI(C.short(aperture), C.short(roi)))
}

func (dll) UpdateROI(aperture, roi int16, left, right float32, enabled bool) int32 {
	return int32(C.NsInteropUpdateROI(C.short(aperture), C.short(roi), C.float(left), C.float(right), cbool(enabled)))
}

func (dll) GetNumberOfROIs(aperture int16, n *int16) int32 {
	return int32(C.NsInteropGetNumberOfROIs(C.short(aperture), (*C.short)(n)))
}

func (dll) GetROI(aperture, roi int16, left, right *float32, enabled *bool) int32 {
	b := cbool(*enabled)
	code := int32(C.NsInteropGetROI(C.short(aperture), C.short(roi), (*C.float)(left), (*C.float)(right), &b))
	*enabled = b != 0
	return code
}

func (dll) GetApertureLimits(aperture int16, start, end *float32) int32 {
	return int32(C.NsInteropGetApertureLimits(C.short(aperture), (*C.float)(start), (*C.float)(end)))
}

func (dll) ReadProfile(aperture int16, start, end float32, decimation int16, amplitude, position *[]float64) int32 {
	var amp, pos C.VARIANT
	C.VariantInit(&amp)
	C.VariantInit(&pos)
	code := int32(C.NsInteropReadProfile(C.short(aperture), C.float(start), C.float(end), C.short(decimation), &amp, &pos))
	*amplitude = variantFloats(&amp)
	*position = variantFloats(&pos)
	return code
}

func (dll) SelectParameters(params uint64) int32 {
	return int32(C.NsInteropSelectParameters(C.ulonglong(params)))
}

func (dll) GetSelectedParameters(params *uint64) int32 {
	return int32(C.NsInteropGetSelectedParameters((*C.ulonglong)(params)))
}

func (dll) SetUserClipLevel1(level float32) int32 {
	return int32(C.NsInteropSetUserClipLevel1(C.float(level)))
}

func (dll) SetUserClipLevel2(level float32) int32 {
	return int32(C.NsInteropSetUserClipLevel2(C.float(level)))
}

func (dll) GetUserClipLevel1(level *float32) int32 {
	return int32(C.NsInteropGetUserClipLevel1((*C.float)(level)))
}

func (dll) GetUserClipLevel2(level *float32) int32 {
	return int32(C.NsInteropGetUserClipLevel2((*C.float)(level)))
}

func (dll) GetBeamWidth(aperture, roi int16, clip float32, width *float32) int32 {
	return int32(C.NsInteropGetBeamWidth(C.short(aperture), C.short(roi), C.float(clip), (*C.float)(width)))
}

func (dll) GetBeamWidth4Sigma(aperture, roi int16, width *float32) int32 {
	return int32(C.NsInteropGetBeamWidth4Sigma(C.short(aperture), C.short(roi), (*C.float)(width)))
}

func (dll) GetCentroidPosition(aperture, roi int16, pos *float32) int32 {
	return int32(C.NsInteropGetCentroidPosition(C.short(aperture), C.short(roi), (*C.float)(pos)))
}

func (dll) GetPeakPosition(aperture, roi int16, pos *float32) int32 {
	return int32(C.NsInteropGetPeakPosition(C.short(aperture), C.short(roi), (*C.float)(pos)))
}

func (dll) GetCentroidSeparation(aperture, roi int16, sep *float32) int32 {
	return int32(C.NsInteropGetCentroidSeparation(C.short(aperture), C.short(roi), (*C.float)(sep)))
}

func (dll) GetPeakSeparation(aperture, roi int16, sep *float32) int32 {
	return int32(C.NsInteropGetPeakSeparation(C.short(aperture), C.short(roi), (*C.float)(sep)))
}

func (dll) GetBeamIrradiance(aperture, roi int16, irr *float32) int32 {
	return int32(C.NsInteropGetBeamIrradiance(C.short(aperture), C.short(roi), (*C.float)(irr)))
}

func (dll) GetGaussianFit(aperture, roi int16, goodness, roughness *float32) int32 {
	return int32(C.NsInteropGetGaussianFit(C.short(aperture), C.short(roi), (*C.float)(goodness), (*C.float)(roughness)))
}

func (dll) GetBeamEllipticity(roi int16, ell *float32) int32 {
	return int32(C.NsInteropGetBeamEllipticity(C.short(roi), (*C.float)(ell)))
}

func (dll) GetBeamWidthRatio(roi int16, clip float32, ratio *float32) int32 {
	return int32(C.NsInteropGetBeamWidthRatio(C.short(roi), C.float(clip), (*C.float)(ratio)))
}

func (dll) GetBeamWidth4SigmaRatio(roi int16, ratio *float32) int32 {
	return int32(C.NsInteropGetBeamWidth4SigmaRatio(C.short(roi), (*C.float)(ratio)))
}

func (dll) GetDivergenceParameter(aperture, roi int16, div *float32) int32 {
	return int32(C.NsInteropGetDivergenceParameter(C.short(aperture), C.short(roi), (*C.float)(div)))
}

func (dll) GetTotalPower(power *float32) int32 {
	return int32(C.NsInteropGetTotalPower((*C.float)(power)))
}

func (dll) GetPower(roi int16, power *float32) int32 {
	return int32(C.NsInteropGetPower(C.short(roi), (*C.float)(power)))
}

func (dll) SetPulseFrequency(freq float32) int32 {
	return int32(C.NsInteropSetPulseFrequency(C.float(freq)))
}

func (dll) GetPulseFrequency(freq *float32) int32 {
	return int32(C.NsInteropGetPulseFrequency((*C.float)(freq)))
}

func (dll) AcquireSync1Rev() int32 { return int32(C.NsInteropAcquireSync1Rev()) }
func (dll) RunComputation() int32  { return int32(C.NsInteropRunComputation()) }
func (dll) Recompute() int32       { return int32(C.NsInteropRecompute()) }

func (dll) SetAveraging(finite, rolling int16) int32 {
	return int32(C.NsInteropSetAveraging(C.short(finite), C.short(rolling)))
}

func (dll) GetAveraging(finite, rolling *int16) int32 {
	return int32(C.NsInteropGetAveraging((*C.short)(finite), (*C.short)(rolling)))
}

func (dll) SetDivergenceMethod(method int16, clip, distance float32) int32 {
	return int32(C.NsInteropSetDivergenceMethod(C.short(method), C.float(clip), C.float(distance)))
}

func (dll) GetDivergenceMethod(method *int16, clip, distance *float32) int32 {
	return int32(C.NsInteropGetDivergenceMethod((*C.short)(method), (*C.float)(clip), (*C.float)(distance)))
}

func (dll) GetNumDevices(n *int16) int32 {
	return int32(C.NsInteropGetNumDevices((*C.short)(n)))
}

func (dll) GetDeviceID(id *int16) int32 {
	return int32(C.NsInteropGetDeviceID((*C.short)(id)))
}

func (dll) SetDeviceID(id int16) int32 {
	return int32(C.NsInteropSetDeviceID(C.short(id)))
}

func (dll) GetNumPwrCalibrations(n *int16) int32 {
	return int32(C.NsInteropGetNumPwrCalibrations((*C.short)(n)))
}

func (dll) GetPowerCalibrationBreakOut(idx int16, descriptor *string, refPower, wavelength *float32) {
	var b C.BSTR
	C.NsInteropGetPowerCalibrationBreakOut(C.short(idx), &b, (*C.float)(refPower), (*C.float)(wavelength))
	if b == nil {
		return
	}
	defer C.SysFreeString(b)
	n := int(C.ns_bstr_len(b))
	if n == 0 {
		*descriptor = ""
		return
	}
	units := make([]uint16, n)
	C.ns_bstr_copy(b, (*C.ushort)(unsafe.Pointer(&units[0])), C.int(n))
	*descriptor = string(utf16.Decode(units))
}

func (dll) OpenMotionPort(port string) int32 {
	cs := C.CString(port)
	defer C.free(unsafe.Pointer(cs))
	return int32(C.NsInteropOpenMotionPort(cs))
}

func (dll) CloseMotionPort() int32        { return int32(C.NsInteropCloseMotionPort()) }
func (dll) Go2Position(pos float32) int32 { return int32(C.NsInteropGo2Position(C.float(pos))) }

func (dll) GetShowWindow() bool          { return C.NsInteropGetShowWindow() != 0 }
func (dll) SetShowWindow(show bool)      { C.NsInteropSetShowWindow(cbool(show)) }
func (dll) GetDataAcquisition() bool     { return C.NsInteropGetDataAcquisition() != 0 }
func (dll) SetDataAcquisition(on bool)   { C.NsInteropSetDataAcquisition(cbool(on)) }
func (dll) GetAutoROI() bool             { return C.NsInteropGetAutoROI() != 0 }
func (dll) SetAutoROI(on bool)           { C.NsInteropSetAutoROI(cbool(on)) }
func (dll) GetTrackGain() bool           { return C.NsInteropGetTrackGain() != 0 }
func (dll) SetTrackGain(on bool)         { C.NsInteropSetTrackGain(cbool(on)) }
func (dll) GetTrackFilter() bool         { return C.NsInteropGetTrackFilter() != 0 }
func (dll) SetTrackFilter(on bool)       { C.NsInteropSetTrackFilter(cbool(on)) }
func (dll) GetPulsedMode() int32         { return int32(C.NsInteropGetPulsedMode()) }
func (dll) SetPulsedMode(mode int32)     { C.NsInteropSetPulsedMode(C.int(mode)) }
func (dll) GetDefaultCalibration() int16 { return int16(C.NsInteropGetDefaultCalibration()) }
func (dll) SetDefaultCalibration(idx int16) {
	C.NsInteropSetDefaultCalibration(C.short(idx))
}
func (dll) GetPowerUnits() int16             { return int16(C.NsInteropGetPowerUnits()) }
func (dll) SetPowerUnits(units int16)        { C.NsInteropSetPowerUnits(C.short(units)) }
func (dll) GetMultiROIMode() bool            { return C.NsInteropGetMultiROIMode() != 0 }
func (dll) SetMultiROIMode(on bool)          { C.NsInteropSetMultiROIMode(cbool(on)) }
func (dll) GetRailLength() float32           { return float32(C.NsInteropGetRailLength()) }
func (dll) SetRailLength(length float32)     { C.NsInteropSetRailLength(C.float(length)) }
func (dll) GetGaussFitMethod() int16         { return int16(C.NsInteropGetGaussFitMethod()) }
func (dll) SetGaussFitMethod(method int16)   { C.NsInteropSetGaussFitMethod(C.short(method)) }
func (dll) GetMagnificationFactor() float32  { return float32(C.NsInteropGetMagnificationFactor()) }
func (dll) SetMagnificationFactor(f float32) { C.NsInteropSetMagnificationFactor(C.float(f)) }
func (dll) GetBeamWidthBasis() int16         { return int16(C.NsInteropGetBeamWidthBasis()) }
func (dll) SetBeamWidthBasis(basis int16)    { C.NsInteropSetBeamWidthBasis(C.short(basis)) }
