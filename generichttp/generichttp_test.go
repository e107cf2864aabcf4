package generichttp_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/nanosquared/generichttp"
)

func TestSubMuxSanitize(t *testing.T) {
	cases := map[string]string{
		"omc/nkt":    "/omc/nkt",
		"/omc/nkt/":  "/omc/nkt",
		"omc/nkt/*":  "/omc/nkt",
		"/nanoscan":  "/nanoscan",
		"nanoscan/*": "/nanoscan",
	}
	for in, want := range cases {
		assert.Equal(t, want, generichttp.SubMuxSanitize(in), in)
	}
}

func TestEndpointsSorted(t *testing.T) {
	rt := generichttp.RouteTable{
		{Method: http.MethodPost, Path: "/gain"}: nil,
		{Method: http.MethodGet, Path: "/gain"}:  nil,
		{Method: http.MethodGet, Path: "/auto"}:  nil,
	}
	assert.Equal(t, []string{"GET /auto", "GET /gain", "POST /gain"}, rt.Endpoints())
}

func TestFloatRoundTrip(t *testing.T) {
	var stored float64
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/val"}:  generichttp.GetFloat(func() (float64, error) { return stored, nil }),
		{Method: http.MethodPost, Path: "/val"}: generichttp.SetFloat(func(f float64) error { stored = f; return nil }),
	}
	r := chi.NewRouter()
	rt.Bind(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/val", strings.NewReader(`{"f64": 2.5}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.5, stored)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/val", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"f64": 2.5}`, w.Body.String())
}

func TestSetterBadBody(t *testing.T) {
	h := generichttp.SetBool(func(bool) error { return nil })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetterError(t *testing.T) {
	h := generichttp.GetUint(func() (uint64, error) { return 0, errors.New("boom") })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "boom")
}

func TestTrigger(t *testing.T) {
	called := false
	h := generichttp.Trigger(func() error { called = true; return nil })
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}
