package nanoscan

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"

	"github.com/nasa-jpl/nanosquared/generichttp"
)

// HTTPWrapper provides an HTTP interface to a profiler and its binding
type HTTPWrapper struct {
	// Profiler is the object being wrapped
	*Profiler

	RouteTable generichttp.RouteTable
}

// RT satisfies generichttp.HTTPer
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated
func NewHTTPWrapper(p *Profiler) HTTPWrapper {
	w := HTTPWrapper{Profiler: p}
	ns := p.NanoScan()
	get := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodGet, Path: path}
	}
	post := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodPost, Path: path}
	}
	del := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodDelete, Path: path}
	}
	rt := generichttp.RouteTable{}
	// head
	rt[get("/axis/{axis}/gain")] = getAxisInt(ns.GetGain)
	rt[post("/axis/{axis}/gain")] = setAxisInt(ns.SetGain)
	rt[get("/axis/{axis}/filter")] = getAxisFloat(ns.GetFilter)
	rt[post("/axis/{axis}/filter")] = setAxisFloat(ns.SetFilter)
	rt[get("/axis/{axis}/sampling-resolution")] = getAxisFloat(ns.GetSamplingResolution)
	rt[post("/sampling-resolution")] = generichttp.SetFloat(f32Setter(ns.SetSamplingResolution))
	rt[get("/max-sampling-resolution")] = generichttp.GetFloat(f32Getter(ns.GetMaxSamplingResolution))
	rt[get("/rotation-frequency")] = generichttp.GetFloat(f32Getter(ns.GetRotationFrequency))
	rt[post("/rotation-frequency")] = generichttp.SetFloat(f32Setter(p.SetRotationFrequency))
	rt[get("/measured-rotation-frequency")] = generichttp.GetFloat(f32Getter(ns.GetMeasuredRotationFreq))
	rt[get("/scan-rates")] = w.GetScanRates
	rt[get("/gain-table")] = w.GetGainTable
	rt[get("/axis/{axis}/saturated")] = w.GetSaturated
	rt[get("/axis/{axis}/aperture-limits")] = w.GetApertureLimits
	rt[get("/axis/{axis}/profile")] = w.GetProfile
	rt[get("/devices")] = w.GetDevices
	rt[get("/power-calibrations")] = w.GetPowerCalibrations
	rt[get("/averaging")] = w.GetAveraging
	rt[post("/averaging")] = w.SetAveraging
	rt[get("/pulse-frequency")] = generichttp.GetFloat(f32Getter(ns.GetPulseFrequency))
	rt[post("/pulse-frequency")] = generichttp.SetFloat(f32Setter(ns.SetPulseFrequency))
	rt[get("/clip-level/{n}")] = w.GetClipLevel
	rt[post("/clip-level/{n}")] = w.SetClipLevel
	rt[get("/parameters")] = generichttp.GetUint(w.getParameters)
	rt[post("/parameters")] = generichttp.SetUint(func(u uint64) error { return ns.SelectParameters(Parameter(u)) })
	rt[get("/beam-width-basis")] = generichttp.GetInt(w.getBasis)
	rt[post("/beam-width-basis")] = generichttp.SetInt(func(i int) error { return ns.SetBeamWidthBasis(BeamWidthBasis(i)) })
	rt[get("/magnification")] = generichttp.GetFloat(f32Getter(ns.GetMagnificationFactor))
	rt[post("/magnification")] = generichttp.SetFloat(f32Setter(ns.SetMagnificationFactor))
	rt[get("/auto-roi")] = generichttp.GetBool(ns.GetAutoROI)
	rt[post("/auto-roi")] = generichttp.SetBool(ns.SetAutoROI)
	rt[get("/track-gain")] = generichttp.GetBool(ns.GetTrackGain)
	rt[post("/track-gain")] = generichttp.SetBool(ns.SetTrackGain)
	rt[get("/track-filter")] = generichttp.GetBool(ns.GetTrackFilter)
	rt[post("/track-filter")] = generichttp.SetBool(ns.SetTrackFilter)
	rt[get("/multi-roi")] = generichttp.GetBool(ns.GetMultiROIMode)
	rt[post("/multi-roi")] = generichttp.SetBool(ns.SetMultiROIMode)
	rt[get("/show-window")] = generichttp.GetBool(ns.GetShowWindow)
	rt[post("/show-window")] = generichttp.SetBool(ns.SetShowWindow)
	rt[post("/rail/port")] = generichttp.SetString(ns.OpenMotionPort)
	rt[del("/rail/port")] = generichttp.Trigger(ns.CloseMotionPort)
	rt[get("/rail/length")] = generichttp.GetFloat(f32Getter(ns.GetRailLength))
	rt[post("/rail/length")] = generichttp.SetFloat(f32Setter(ns.SetRailLength))
	rt[post("/rail/pos")] = generichttp.SetFloat(f32Setter(ns.Go2Position))

	// regions of interest
	rt[post("/autofind")] = generichttp.Trigger(ns.AutoFind)
	rt[get("/axis/{axis}/roi")] = w.GetROIs
	rt[post("/axis/{axis}/roi")] = w.AddROI
	rt[post("/axis/{axis}/roi/{roi}")] = w.UpdateROI
	rt[del("/axis/{axis}/roi/{roi}")] = w.DeleteROI

	// results
	rt[get("/axis/{axis}/roi/{roi}/d4sigma")] = getResult(ns.GetBeamWidth4Sigma)
	rt[get("/axis/{axis}/roi/{roi}/width")] = w.GetWidth
	rt[get("/axis/{axis}/roi/{roi}/centroid")] = getResult(ns.GetCentroidPosition)
	rt[get("/axis/{axis}/roi/{roi}/peak")] = getResult(ns.GetPeakPosition)
	rt[get("/axis/{axis}/roi/{roi}/centroid-separation")] = getResult(ns.GetCentroidSeparation)
	rt[get("/axis/{axis}/roi/{roi}/peak-separation")] = getResult(ns.GetPeakSeparation)
	rt[get("/axis/{axis}/roi/{roi}/irradiance")] = getResult(ns.GetBeamIrradiance)
	rt[get("/axis/{axis}/roi/{roi}/divergence")] = getResult(ns.GetDivergenceParameter)
	rt[get("/axis/{axis}/roi/{roi}/gaussian-fit")] = w.GetGaussianFit
	rt[get("/roi/{roi}/ellipticity")] = getROIResult(ns.GetBeamEllipticity)
	rt[get("/roi/{roi}/d4sigma-ratio")] = getROIResult(ns.GetBeamWidth4SigmaRatio)
	rt[get("/roi/{roi}/power")] = getROIResult(ns.GetPower)
	rt[get("/power")] = generichttp.GetFloat(f32Getter(ns.GetTotalPower))

	// acquisition
	rt[post("/acquire")] = generichttp.Trigger(w.acquire)
	rt[post("/recompute")] = generichttp.Trigger(ns.Recompute)
	rt[get("/daq")] = generichttp.GetBool(func() (bool, error) { return p.DAQ(), nil })
	rt[post("/daq")] = generichttp.SetBool(p.SetDAQ)
	rt[post("/wait-stable")] = w.WaitStable
	rt[get("/axis/{axis}/d4sigma-avg")] = w.GetAverageD4Sigma
	w.RouteTable = rt
	return w
}

func (h HTTPWrapper) acquire() error {
	ns := h.NanoScan()
	if err := ns.AcquireSync1Rev(); err != nil {
		return err
	}
	return ns.RunComputation()
}

func (h HTTPWrapper) getParameters() (uint64, error) {
	p, err := h.NanoScan().GetSelectedParameters()
	return uint64(p), err
}

func (h HTTPWrapper) getBasis() (int, error) {
	b, err := h.NanoScan().GetBeamWidthBasis()
	return int(b), err
}

func f32Getter(fcn func() (float32, error)) func() (float64, error) {
	return func() (float64, error) {
		f, err := fcn()
		return float64(f), err
	}
}

func f32Setter(fcn func(float32) error) func(float64) error {
	return func(f float64) error {
		return fcn(float32(f))
	}
}

// axisParam parses the {axis} URL parameter
func axisParam(r *http.Request) (Axis, error) {
	s := chi.URLParam(r, "axis")
	a, ok := ParseAxis(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadAxis, s)
	}
	return a, nil
}

// roiParam parses the {roi} URL parameter
func roiParam(r *http.Request) (int16, error) {
	i, err := strconv.ParseInt(chi.URLParam(r, "roi"), 10, 16)
	return int16(i), err
}

func axisROI(w http.ResponseWriter, r *http.Request) (Axis, int16, bool) {
	a, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	roi, err := roiParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	return a, roi, true
}

func respondFloat(w http.ResponseWriter, r *http.Request, f float32, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	hp := generichttp.HumanPayload{T: types.Float64, Float: float64(f)}
	hp.EncodeAndRespond(w, r)
}

func getAxisFloat(fcn func(Axis) (float32, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := axisParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, err := fcn(a)
		respondFloat(w, r, f, err)
	}
}

func setAxisFloat(fcn func(Axis, float32) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := axisParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		generichttp.SetFloat(func(f float64) error { return fcn(a, float32(f)) })(w, r)
	}
}

func getAxisInt(fcn func(Axis) (int16, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := axisParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		i, err := fcn(a)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := generichttp.HumanPayload{T: types.Int, Int: int(i)}
		hp.EncodeAndRespond(w, r)
	}
}

func setAxisInt(fcn func(Axis, int16) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := axisParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		generichttp.SetInt(func(i int) error { return fcn(a, int16(i)) })(w, r)
	}
}

func getResult(fcn func(Axis, int16) (float32, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, roi, ok := axisROI(w, r)
		if !ok {
			return
		}
		f, err := fcn(a, roi)
		respondFloat(w, r, f, err)
	}
}

func getROIResult(fcn func(int16) (float32, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roi, err := roiParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, err := fcn(roi)
		respondFloat(w, r, f, err)
	}
}

// GetScanRates returns the allowed rotation frequencies as a JSON array
func (h HTTPWrapper) GetScanRates(w http.ResponseWriter, r *http.Request) {
	generichttp.RespondJSON(w, h.Profiler.ScanRates())
}

// GetGainTable returns the gains of the head as a JSON array.  The capability
// ID may be given with the id query parameter
func (h HTTPWrapper) GetGainTable(w http.ResponseWriter, r *http.Request) {
	var id int64
	if s := r.URL.Query().Get("id"); s != "" {
		var err error
		id, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	t, err := h.NanoScan().GetHeadGainTable(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	generichttp.RespondJSON(w, t)
}

// GetSaturated returns {"bool": true} if the detector of an aperture saturates
func (h HTTPWrapper) GetSaturated(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	generichttp.GetBool(func() (bool, error) { return h.NanoScan().IsSignalSaturated(a) })(w, r)
}

// GetApertureLimits returns {"start": s, "end": e}, in µm
func (h HTTPWrapper) GetApertureLimits(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lim, err := h.NanoScan().GetApertureLimits(a)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	generichttp.RespondJSON(w, struct {
		Start float32 `json:"start"`
		End   float32 `json:"end"`
	}{lim[0], lim[1]})
}

func queryFloat32(r *http.Request, key string, def float32) (float32, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

// GetProfile reads a profile of an aperture.  The start and end query
// parameters default to the aperture limits and decimation to 1.  With
// format=fits the profile is a FITS file, else JSON
func (h HTTPWrapper) GetProfile(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ns := h.NanoScan()
	lim, err := ns.GetApertureLimits(a)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	start, err := queryFloat32(r, "start", lim[0])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := queryFloat32(r, "end", lim[1])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	decimation := int64(1)
	if s := r.URL.Query().Get("decimation"); s != "" {
		decimation, err = strconv.ParseInt(s, 10, 16)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	p, err := ns.ReadProfile(a, start, end, int16(decimation))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if strings.ToLower(r.URL.Query().Get("format")) != "fits" {
		generichttp.RespondJSON(w, p)
		return
	}
	cards := []fitsio.Card{
		{Name: "APERTURE", Value: a.String(), Comment: "scan head aperture"},
		{Name: "START", Value: float64(start), Comment: "profile start, um"},
		{Name: "END", Value: float64(end), Comment: "profile end, um"},
		{Name: "DECIM", Value: int(decimation), Comment: "decimation factor"},
		{Name: "ROTFREQ", Value: float64(h.Profiler.RotationFrequency()), Comment: "head rotation frequency, Hz"},
	}
	w.Header().Set("Content-Type", "image/fits")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=profile-%s.fits", strings.ToLower(a.String())))
	err = WriteProfileFITS(w, p, cards)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// GetDevices returns {"count": n, "id": i}
func (h HTTPWrapper) GetDevices(w http.ResponseWriter, r *http.Request) {
	ns := h.NanoScan()
	n, err := ns.GetNumDevices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	id, err := ns.GetDeviceID()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	generichttp.RespondJSON(w, struct {
		Count int16 `json:"count"`
		ID    int16 `json:"id"`
	}{n, id})
}

// GetPowerCalibrations returns every power calibration of the head
func (h HTTPWrapper) GetPowerCalibrations(w http.ResponseWriter, r *http.Request) {
	ns := h.NanoScan()
	n, err := ns.GetNumPwrCalibrations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]PowerCalibration, 0, n)
	for i := int16(0); i < n; i++ {
		pc, err := ns.GetPowerCalibrationBreakOut(i)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, pc)
	}
	generichttp.RespondJSON(w, out)
}

type averaging struct {
	Finite  int16 `json:"finite"`
	Rolling int16 `json:"rolling"`
}

// GetAveraging returns {"finite": f, "rolling": r}
func (h HTTPWrapper) GetAveraging(w http.ResponseWriter, r *http.Request) {
	avg, err := h.NanoScan().GetAveraging()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	generichttp.RespondJSON(w, averaging{avg[0], avg[1]})
}

// SetAveraging takes {"finite": f, "rolling": r}
func (h HTTPWrapper) SetAveraging(w http.ResponseWriter, r *http.Request) {
	avg := averaging{}
	err := json.NewDecoder(r.Body).Decode(&avg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.NanoScan().SetAveraging(avg.Finite, avg.Rolling)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func clipLevelParam(r *http.Request) (int, error) {
	n := chi.URLParam(r, "n")
	if n != "1" && n != "2" {
		return 0, fmt.Errorf("clip level must be 1 or 2, not %q", n)
	}
	return strconv.Atoi(n)
}

// GetClipLevel returns user clip level 1 or 2 as {"f64": level}
func (h HTTPWrapper) GetClipLevel(w http.ResponseWriter, r *http.Request) {
	n, err := clipLevelParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ns := h.NanoScan()
	fcn := ns.GetUserClipLevel1
	if n == 2 {
		fcn = ns.GetUserClipLevel2
	}
	generichttp.GetFloat(f32Getter(fcn))(w, r)
}

// SetClipLevel sets user clip level 1 or 2 from {"f64": level}
func (h HTTPWrapper) SetClipLevel(w http.ResponseWriter, r *http.Request) {
	n, err := clipLevelParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ns := h.NanoScan()
	fcn := ns.SetUserClipLevel1
	if n == 2 {
		fcn = ns.SetUserClipLevel2
	}
	generichttp.SetFloat(f32Setter(fcn))(w, r)
}

type roiJSON struct {
	Left    float32 `json:"left"`
	Right   float32 `json:"right"`
	Enabled bool    `json:"enabled"`
}

// GetROIs returns the regions of an aperture as a JSON array
func (h HTTPWrapper) GetROIs(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ns := h.NanoScan()
	n, err := ns.GetNumberOfROIs(a)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]roiJSON, 0, n)
	for i := int16(0); i < n; i++ {
		roi, err := ns.GetROI(a, i)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, roiJSON{Left: roi[0], Right: roi[1], Enabled: roi[2] != 0})
	}
	generichttp.RespondJSON(w, out)
}

// AddROI adds a region from {"left": l, "right": r, "enabled": b}
func (h HTTPWrapper) AddROI(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	roi := roiJSON{}
	err = json.NewDecoder(r.Body).Decode(&roi)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.NanoScan().AddROI(a, roi.Left, roi.Right, roi.Enabled)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// UpdateROI replaces a region with {"left": l, "right": r, "enabled": b}
func (h HTTPWrapper) UpdateROI(w http.ResponseWriter, r *http.Request) {
	a, idx, ok := axisROI(w, r)
	if !ok {
		return
	}
	roi := roiJSON{}
	err := json.NewDecoder(r.Body).Decode(&roi)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.NanoScan().UpdateROI(a, idx, roi.Left, roi.Right, roi.Enabled)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteROI deletes a region
func (h HTTPWrapper) DeleteROI(w http.ResponseWriter, r *http.Request) {
	a, idx, ok := axisROI(w, r)
	if !ok {
		return
	}
	generichttp.Trigger(func() error { return h.NanoScan().DeleteROI(a, idx) })(w, r)
}

// GetWidth returns the width at the clip level given by the clip query
// parameter, in percent
func (h HTTPWrapper) GetWidth(w http.ResponseWriter, r *http.Request) {
	a, roi, ok := axisROI(w, r)
	if !ok {
		return
	}
	clip, err := queryFloat32(r, "clip", 13.5)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := h.NanoScan().GetBeamWidth(a, roi, clip)
	respondFloat(w, r, f, err)
}

// GetGaussianFit returns {"goodness": g, "roughness": r}
func (h HTTPWrapper) GetGaussianFit(w http.ResponseWriter, r *http.Request) {
	a, roi, ok := axisROI(w, r)
	if !ok {
		return
	}
	fit, err := h.NanoScan().GetGaussianFit(a, roi)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	generichttp.RespondJSON(w, struct {
		Goodness  float32 `json:"goodness"`
		Roughness float32 `json:"roughness"`
	}{fit[0], fit[1]})
}

// WaitStable blocks until the head produces data, or the request is
// cancelled
func (h HTTPWrapper) WaitStable(w http.ResponseWriter, r *http.Request) {
	err := h.Profiler.WaitStable(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetAverageD4Sigma returns the averaged D4σ widths of {axis}, which may be
// both.  The samples, outliers, and threshold query parameters override
// DefaultAverage
func (h HTTPWrapper) GetAverageD4Sigma(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := DefaultAverage
	q := r.URL.Query()
	if s := q.Get("samples"); s != "" {
		opts.Samples, err = strconv.Atoi(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if s := q.Get("outliers"); s != "" {
		i, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Outliers = OutlierMode(i)
	}
	if s := q.Get("threshold"); s != "" {
		opts.Threshold, err = strconv.ParseFloat(s, 64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	widths, err := h.Profiler.AverageD4Sigma(r.Context(), a, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	generichttp.RespondJSON(w, widths)
}
