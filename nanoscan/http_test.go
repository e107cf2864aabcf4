package nanoscan_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/nanosquared/nanoscan"
)

func newRouter(t *testing.T) (chi.Router, *nanoscan.Profiler) {
	t.Helper()
	p, _ := newProfiler(t)
	r := chi.NewRouter()
	nanoscan.NewHTTPWrapper(p).RT().Bind(r)
	return r, p
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestHTTPGain(t *testing.T) {
	r, _ := newRouter(t)
	w := do(r, http.MethodPost, "/axis/y/gain", `{"int": 16}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(r, http.MethodGet, "/axis/y/gain", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"int": 16}`, w.Body.String())

	w = do(r, http.MethodGet, "/axis/z/gain", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPRotationFrequency(t *testing.T) {
	r, p := newRouter(t)
	w := do(r, http.MethodPost, "/rotation-frequency", `{"f64": 3}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	w = do(r, http.MethodPost, "/rotation-frequency", `{"f64": 10}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float32(10), p.RotationFrequency())

	w = do(r, http.MethodGet, "/scan-rates", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[1.25, 2.5, 5, 10, 20]`, w.Body.String())
}

func TestHTTPROIs(t *testing.T) {
	r, _ := newRouter(t)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/autofind", "").Code)
	w := do(r, http.MethodPost, "/axis/x/roi", `{"left": 10, "right": 20, "enabled": false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodGet, "/axis/x/roi", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rois []struct {
		Left    float32 `json:"left"`
		Right   float32 `json:"right"`
		Enabled bool    `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rois))
	require.Len(t, rois, 2)
	assert.True(t, rois[0].Enabled)
	assert.Equal(t, float32(10), rois[1].Left)

	require.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/axis/x/roi/1", "").Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodDelete, "/axis/x/roi/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/axis/x/roi/one", "").Code)
}

func TestHTTPResults(t *testing.T) {
	r, _ := newRouter(t)
	w := do(r, http.MethodGet, "/axis/x/roi/0/d4sigma", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code, "nothing acquired")

	body := `{"uint": ` + strconv.FormatUint(uint64(nanoscan.BeamWidthD4Sigma|nanoscan.ProfileGaussFit), 10) + `}`
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/parameters", body).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/acquire", "").Code)

	w = do(r, http.MethodGet, "/axis/x/roi/0/d4sigma", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"f64": 200}`, w.Body.String())

	w = do(r, http.MethodGet, "/axis/y/roi/0/gaussian-fit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"goodness": 99.5, "roughness": 0.5}`, w.Body.String())
}

func TestHTTPAverage(t *testing.T) {
	r, _ := newRouter(t)
	w := do(r, http.MethodGet, "/axis/both/d4sigma-avg?samples=5&outliers=1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"x": {"mean": 200, "std": 0}, "y": {"mean": 200, "std": 0}}`, w.Body.String())

	w = do(r, http.MethodGet, "/axis/x/d4sigma-avg?samples=many", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPProfile(t *testing.T) {
	r, _ := newRouter(t)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/acquire", "").Code)

	w := do(r, http.MethodGet, "/axis/x/profile?start=4000&end=5000&decimation=4", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p nanoscan.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.NotEmpty(t, p.Amplitude)
	assert.Len(t, p.Position, len(p.Amplitude))

	w = do(r, http.MethodGet, "/axis/x/profile?format=fits&decimation=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/fits", w.Header().Get("Content-Type"))
	f, err := fitsio.Open(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	img, ok := f.HDU(0).(fitsio.Image)
	require.True(t, ok)
	assert.Equal(t, 2, img.Header().Axes()[1])
	assert.Equal(t, "X", img.Header().Get("APERTURE").Value)
}

func TestWriteProfileFITS(t *testing.T) {
	var buf bytes.Buffer
	p := nanoscan.Profile{Position: []float64{1, 2, 3}, Amplitude: []float64{4, 5, 6}}
	require.NoError(t, nanoscan.WriteProfileFITS(&buf, p, nil))

	f, err := fitsio.Open(&buf)
	require.NoError(t, err)
	defer f.Close()
	img := f.HDU(0).(fitsio.Image)
	assert.Equal(t, []int{3, 2}, img.Header().Axes())
	data := make([]float64, 6)
	require.NoError(t, img.Read(&data))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, data)

	err = nanoscan.WriteProfileFITS(&buf, nanoscan.Profile{Position: []float64{1}}, nil)
	assert.Error(t, err)
}
