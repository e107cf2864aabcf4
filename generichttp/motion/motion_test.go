package motion_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/nanosquared/generichttp/motion"
	"github.com/nasa-jpl/nanosquared/util"
)

type fakeStage struct {
	pos     map[string]float64
	stopped bool
	waited  bool
}

func (f *fakeStage) GetPos(a string) (float64, error)       { return f.pos[a], nil }
func (f *fakeStage) MoveAbs(a string, x float64) error      { f.pos[a] = x; return nil }
func (f *fakeStage) MoveRel(a string, x float64) error      { f.pos[a] += x; return nil }
func (f *fakeStage) Stop(string) error                      { f.stopped = true; return nil }
func (f *fakeStage) WaitIdle(context.Context, string) error { f.waited = true; return nil }

func (f *fakeStage) Home(ctx context.Context, a string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.pos[a] = 0
	return nil
}

// rawStage also speaks a command language
type rawStage struct {
	fakeStage
	sent []string
}

func (r *rawStage) Raw(cmd string) (string, error) {
	r.sent = append(r.sent, cmd)
	return "OK", nil
}

func setup(f *fakeStage, limits map[string]util.Limiter) chi.Router {
	h := motion.NewHTTPMotionController(f)
	lm := &motion.LimitMiddleware{Limits: limits, Mov: f}
	lm.Inject(h)
	r := chi.NewRouter()
	r.Use(lm.Check)
	h.RT().Bind(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestRoutesFollowInterfaces(t *testing.T) {
	h := motion.NewHTTPMotionController(&fakeStage{pos: map[string]float64{}})
	eps := h.RT().Endpoints()
	assert.Contains(t, eps, "POST /axis/{axis}/stop")
	assert.Contains(t, eps, "POST /axis/{axis}/wait")
	assert.Contains(t, eps, "POST /axis/{axis}/home")
	assert.NotContains(t, eps, "POST /axis/{axis}/velocity")
	assert.NotContains(t, eps, "POST /raw")
}

func TestRaw(t *testing.T) {
	s := &rawStage{fakeStage: fakeStage{pos: map[string]float64{}}}
	h := motion.NewHTTPMotionController(s)
	r := chi.NewRouter()
	h.RT().Bind(r)
	w := do(r, http.MethodPost, "/raw", `{"str": "Q:"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"str": "OK"}`, w.Body.String())
	assert.Equal(t, []string{"Q:"}, s.sent)

	w = do(r, http.MethodPost, "/raw", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMoveAndQuery(t *testing.T) {
	f := &fakeStage{pos: map[string]float64{}}
	r := setup(f, nil)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/axis/1/pos", `{"f64": 12.5}`).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/axis/1/pos?relative=true", `{"f64": -2.5}`).Code)
	w := do(r, http.MethodGet, "/axis/1/pos", "")
	assert.JSONEq(t, `{"f64": 10}`, w.Body.String())
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/axis/1/wait", "").Code)
	assert.True(t, f.waited)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/axis/1/home", "").Code)
	assert.Equal(t, 0., f.pos["1"])
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/axis/1/stop", "").Code)
	assert.True(t, f.stopped)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/axis/1/pos?relative=maybe", `{"f64": 1}`).Code)
}

func TestLimitMiddleware(t *testing.T) {
	f := &fakeStage{pos: map[string]float64{"1": 90}}
	r := setup(f, map[string]util.Limiter{"1": {Min: -100, Max: 100}})

	w := do(r, http.MethodPost, "/axis/1/pos", `{"f64": 150}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 90., f.pos["1"])

	w = do(r, http.MethodPost, "/axis/1/pos?relative=true", `{"f64": 20}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "relative moves are checked against the current position")

	w = do(r, http.MethodPost, "/axis/1/pos?relative=true", `{"f64": 5}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 95., f.pos["1"])

	w = do(r, http.MethodGet, "/axis/1/limits", "")
	assert.JSONEq(t, `{"min": -100, "max": 100}`, w.Body.String())
	w = do(r, http.MethodGet, "/axis/2/limits", "")
	assert.JSONEq(t, `null`, w.Body.String())
}
