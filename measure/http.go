package measure

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/nanosquared/fitting"
	"github.com/nasa-jpl/nanosquared/generichttp"
	"github.com/nasa-jpl/nanosquared/nanoscan"
)

// HTTPWrapper provides an HTTP interface to a Measurement
type HTTPWrapper struct {
	*Measurement

	RouteTable generichttp.RouteTable
}

// RT satisfies generichttp.HTTPer
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated
func NewHTTPWrapper(m *Measurement) HTTPWrapper {
	w := HTTPWrapper{Measurement: m}
	get := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodGet, Path: path}
	}
	post := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodPost, Path: path}
	}
	rt := generichttp.RouteTable{}
	rt[post("/init")] = w.HTTPInit
	rt[get("/averaging")] = w.GetAveraging
	rt[post("/averaging")] = w.SetAveraging
	rt[post("/axis/{axis}/measure")] = w.HTTPMeasureAt
	rt[post("/axis/{axis}/find-center")] = w.HTTPFindCenter
	rt[post("/axis/{axis}/find-rayleigh-length")] = w.HTTPFindRayleighLength
	rt[post("/scan")] = w.HTTPScan
	rt[get("/data")] = w.GetData
	rt[get("/axis/{axis}/fit")] = w.GetFit
	w.RouteTable = rt
	return w
}

func axisParam(r *http.Request, both bool) (nanoscan.Axis, error) {
	s := chi.URLParam(r, "axis")
	a, ok := nanoscan.ParseAxis(s)
	if !ok || (a == nanoscan.Both && !both) {
		return 0, fmt.Errorf("%w: %q", nanoscan.ErrBadAxis, s)
	}
	return a, nil
}

// status maps the errors of a measurement to an HTTP status
func status(err error) int {
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrOutOfRange):
		return http.StatusConflict
	case errors.Is(err, ErrNoData):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// HTTPInit homes the stage and measures its range
func (h HTTPWrapper) HTTPInit(w http.ResponseWriter, r *http.Request) {
	err := h.Init(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type averaging struct {
	Outliers  nanoscan.OutlierMode `json:"outliers"`
	Threshold float64              `json:"threshold"`
}

// GetAveraging returns {"outliers": mode, "threshold": t}
func (h HTTPWrapper) GetAveraging(w http.ResponseWriter, r *http.Request) {
	avg := h.Averaging()
	generichttp.RespondJSON(w, averaging{avg.Outliers, avg.Threshold})
}

// SetAveraging takes {"outliers": mode, "threshold": t}
func (h HTTPWrapper) SetAveraging(w http.ResponseWriter, r *http.Request) {
	avg := averaging{}
	err := json.NewDecoder(r.Body).Decode(&avg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := outlierNames[avg.Outliers]; !ok {
		http.Error(w, fmt.Sprintf("invalid outlier mode %d", avg.Outliers), http.StatusBadRequest)
		return
	}
	h.Measurement.SetAveraging(nanoscan.AverageOptions{Outliers: avg.Outliers, Threshold: avg.Threshold})
	w.WriteHeader(http.StatusOK)
}

type searchRequest struct {
	Pos       int   `json:"pos"`
	Center    []int `json:"center"`
	Samples   int   `json:"samples"`
	Precision int   `json:"precision"`
}

func decodeSearch(r *http.Request) (searchRequest, error) {
	req := searchRequest{Samples: searchSamples, Precision: DefaultScan.Precision}
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

// HTTPMeasureAt takes {"pos": pulses, "samples": n} and returns the widths
// of {axis}, which may be both
func (h HTTPWrapper) HTTPMeasureAt(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeSearch(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	widths, err := h.MeasureAt(r.Context(), a, req.Pos, req.Samples)
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	generichttp.RespondJSON(w, widths)
}

// HTTPFindCenter takes {"precision": pulses} and returns the waist
// positions, one per axis
func (h HTTPWrapper) HTTPFindCenter(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeSearch(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var centers []int
	if a == nanoscan.Both {
		var c [2]int
		c, err = h.FindCenterXY(r.Context(), req.Precision)
		centers = c[:]
	} else {
		var c int
		c, err = h.FindCenter(r.Context(), a, req.Precision)
		centers = []int{c}
	}
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	generichttp.RespondJSON(w, centers)
}

// HTTPFindRayleighLength takes {"center": [pulses], "precision": pulses} and
// returns the Rayleigh lengths in pulses, one per axis
func (h HTTPWrapper) HTTPFindRayleighLength(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := decodeSearch(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	want := 1
	if a == nanoscan.Both {
		want = 2
	}
	if len(req.Center) != want {
		http.Error(w, fmt.Sprintf("need %d centers for axis %v, got %d", want, a, len(req.Center)), http.StatusBadRequest)
		return
	}
	var zRs []int
	if a == nanoscan.Both {
		var z [2]int
		z, err = h.FindRayleighLengthXY(r.Context(), [2]int{req.Center[0], req.Center[1]}, req.Precision)
		zRs = z[:]
	} else {
		var z int
		z, err = h.FindRayleighLength(r.Context(), req.Center[0], a, req.Precision)
		zRs = []int{z}
	}
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	generichttp.RespondJSON(w, zRs)
}

// HTTPScan takes ScanOptions, runs a caustic scan, and returns the dataset.
// The request blocks for the whole scan
func (h HTTPWrapper) HTTPScan(w http.ResponseWriter, r *http.Request) {
	opts := DefaultScan
	err := json.NewDecoder(r.Body).Decode(&opts)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := h.TakeMeasurements(r.Context(), opts)
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	generichttp.RespondJSON(w, data)
}

// GetData returns the dataset of the last scan.  The format query parameter
// selects json (default), text, or fits
func (h HTTPWrapper) GetData(w http.ResponseWriter, r *http.Request) {
	data := h.Data()
	if len(data.Points) == 0 {
		http.Error(w, ErrNoData.Error(), http.StatusNotFound)
		return
	}
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		generichttp.RespondJSON(w, data)
	case "text", "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=m2data.txt")
		_, err := data.WriteTo(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	case "fits":
		w.Header().Set("Content-Type", "image/fits")
		w.Header().Set("Content-Disposition", "attachment; filename=m2data.fits")
		err := data.WriteFITS(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", r.URL.Query().Get("format")), http.StatusBadRequest)
	}
}

// FitResult is the M² fit of one axis
type FitResult struct {
	Mode     string           `json:"mode"`
	MSquared fitting.Estimate `json:"msq"`

	// W0 is the waist radius in µm, Z0 its position in mm
	W0 float64 `json:"w0"`
	Z0 float64 `json:"z0"`

	Params   []float64 `json:"params"`
	Errors   []float64 `json:"errors"`
	ChiSqRed float64   `json:"chiSqRed"`
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

// GetFit fits the last dataset for {axis}, X or Y.  The wavelength and
// wavelength-err query parameters are in nm, mode is m2lambda, m2, or iso
// (default)
func (h HTTPWrapper) GetFit(w http.ResponseWriter, r *http.Request) {
	a, err := axisParam(r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wv, err := queryFloat(r, "wavelength", 0)
	if err != nil || !(wv > 0) {
		http.Error(w, "wavelength must be a positive number of nm", http.StatusBadRequest)
		return
	}
	dwv, err := queryFloat(r, "wavelength-err", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mode := fitting.ISOMode
	if s := r.URL.Query().Get("mode"); s != "" {
		var ok bool
		mode, ok = fitting.ParseMode(s)
		if !ok {
			http.Error(w, fmt.Sprintf("%v: %q", fitting.ErrInvalidMode, s), http.StatusBadRequest)
			return
		}
	}
	f, msq, err := h.Data().Fit(a, wv, dwv, mode)
	if err != nil {
		http.Error(w, err.Error(), status(err))
		return
	}
	res, _ := f.Result()
	w0, z0, _ := f.Waist()
	generichttp.RespondJSON(w, FitResult{
		Mode:     mode.String(),
		MSquared: msq,
		W0:       w0,
		Z0:       z0,
		Params:   res.Params,
		Errors:   res.Errors,
		ChiSqRed: res.ChiSqRed,
	})
}
