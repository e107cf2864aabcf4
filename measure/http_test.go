package measure_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/nanosquared/measure"
	"github.com/nasa-jpl/nanosquared/nanoscan"
)

func newRouter(t *testing.T, beam nanoscan.Beam) chi.Router {
	t.Helper()
	m, _ := newRig(t, beam)
	r := chi.NewRouter()
	measure.NewHTTPWrapper(m).RT().Bind(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestHTTPMeasureAt(t *testing.T) {
	r := newRouter(t, nanoscan.DefaultBeam)
	w := do(r, http.MethodPost, "/axis/both/measure", `{"pos": 0, "samples": 2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var widths nanoscan.Widths
	require.NoError(t, json.NewDecoder(w.Body).Decode(&widths))
	assert.InDelta(t, 2*nanoscan.DefaultBeam.W0, widths.X.Mean, 1)
	assert.InDelta(t, 2*nanoscan.DefaultBeam.W0, widths.Y.Mean, 1)

	w = do(r, http.MethodPost, "/axis/z/measure", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPAveraging(t *testing.T) {
	r := newRouter(t, nanoscan.DefaultBeam)
	w := do(r, http.MethodPost, "/averaging", `{"outliers": 2, "threshold": 0.5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(r, http.MethodGet, "/averaging", "")
	assert.JSONEq(t, `{"outliers": 2, "threshold": 0.5}`, w.Body.String())

	w = do(r, http.MethodPost, "/averaging", `{"outliers": 7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPScanAndFit(t *testing.T) {
	r := newRouter(t, nanoscan.DefaultBeam)
	w := do(r, http.MethodGet, "/data", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := fmt.Sprintf(`{"axis": 2, "center": [0, 0], "rayleighLength": [%g], "samples": 2}`, nanoscan.DefaultBeam.ZR)
	w = do(r, http.MethodPost, "/scan", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data measure.Dataset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&data))
	assert.Len(t, data.Points, 21)

	w = do(r, http.MethodGet, "/data?format=text", "")
	require.Equal(t, http.StatusOK, w.Code)
	text, err := measure.ReadDataset(w.Body)
	require.NoError(t, err)
	assert.Len(t, text.Points, 21)

	w = do(r, http.MethodGet, "/data?format=fits", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/fits", w.Header().Get("Content-Type"))

	w = do(r, http.MethodGet, "/axis/y/fit?wavelength=2300&mode=m2", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fit measure.FitResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fit))
	assert.Equal(t, "M2", fit.Mode)
	assert.InDelta(t, 1, fit.MSquared.Value, 0.01)
	assert.InDelta(t, nanoscan.DefaultBeam.W0, fit.W0, 1)

	w = do(r, http.MethodGet, "/axis/y/fit", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "wavelength required")
	w = do(r, http.MethodGet, "/axis/both/fit?wavelength=2300", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/axis/x/fit?wavelength=2300&mode=tophat", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPScanConfiguration(t *testing.T) {
	r := newRouter(t, nanoscan.Beam{W0: 1000, Z0: 0, ZR: 500})
	w := do(r, http.MethodPost, "/scan", `{"axis": 0, "center": [0], "rayleighLength": [60]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}
