// Package locker provides an HTTP middleware which allows an HTTPHandler to be locked, returning 423 (locked)
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/nanosquared/generichttp"
)

// ManipulableLock is a lock which can be checked by middleware and toggled over HTTP
type ManipulableLock interface {
	// Check is an HTTP middleware
	Check(http.Handler) http.Handler

	// HTTPGet replies with the lock state
	HTTPGet(http.ResponseWriter, *http.Request)

	// HTTPSet locks or unlocks based on {"bool": value}
	HTTPSet(http.ResponseWriter, *http.Request)
}

// Inject adds lock routes to an HTTPer which are used to manipulate the locker.
// a plain Locker is served at /lock, an AxisLocker at /axis/{axis}/lock
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	rt := other.RT()
	path := "/lock"
	if _, ok := l.(*AxisLocker); ok {
		path = "/axis/{axis}/lock"
	}
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: path}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: path}] = l.HTTPSet
}

// Locker is a type which behaves like a sync.Mutex without the blocking,
// and holds a list of routes to not protect
type Locker struct {
	mu       sync.Mutex
	isLocked bool

	// DoNotProtect is a list of paths not to apply the lock to
	DoNotProtect []string
}

// New returns a new Locker with DoNotProtect prepopulated with "lock"
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock"}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.mu.Lock()
	l.isLocked = true
	l.mu.Unlock()
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.mu.Lock()
	l.isLocked = false
	l.mu.Unlock()
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isLocked
}

func protected(url string, exempt []string) bool {
	for _, str := range exempt {
		if strings.Contains(url, str) {
			return false
		}
	}
	return true
}

// Check is an HTTP middleware that returns http.StatusLocked if Locked() is true, otherwise passes down the line
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() && protected(r.URL.Path, l.DoNotProtect) {
			w.WriteHeader(http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet calls Lock or Unlock based on json:bool on the request body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := generichttp.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked() over HTTP as JSON
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked()}
	hp.EncodeAndRespond(w, r)
}

// AxisLocker is a Locker with one lock per axis of a motion controller.
// Routes without an /axis/<name>/ segment are never locked
type AxisLocker struct {
	mu    sync.Mutex
	locks map[string]bool

	// DoNotProtect is a list of paths not to apply the lock to
	DoNotProtect []string
}

// NewAL returns a new AxisLocker with DoNotProtect prepopulated with "lock"
func NewAL() *AxisLocker {
	return &AxisLocker{locks: map[string]bool{}, DoNotProtect: []string{"lock"}}
}

// Lock the axis
func (al *AxisLocker) Lock(axis string) {
	al.mu.Lock()
	al.locks[axis] = true
	al.mu.Unlock()
}

// Unlock the axis
func (al *AxisLocker) Unlock(axis string) {
	al.mu.Lock()
	al.locks[axis] = false
	al.mu.Unlock()
}

// Locked returns true if the axis is locked
func (al *AxisLocker) Locked(axis string) bool {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.locks[axis]
}

// axisFromPath extracts <name> from a path containing /axis/<name>/
// chi has not resolved URL params yet when middleware runs
func axisFromPath(path string) (string, bool) {
	pieces := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(pieces)-1; i++ {
		if pieces[i] == "axis" {
			return pieces[i+1], true
		}
	}
	return "", false
}

// Check is an HTTP middleware that returns http.StatusLocked if the axis in
// the request is locked, otherwise passes down the line
func (al *AxisLocker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		axis, ok := axisFromPath(r.URL.Path)
		if ok && al.Locked(axis) && protected(r.URL.Path, al.DoNotProtect) {
			w.WriteHeader(http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet locks or unlocks the axis in the URL based on json:bool on the request body
func (al *AxisLocker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	b := generichttp.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		al.Lock(axis)
	} else {
		al.Unlock(axis)
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet returns Locked(axis) over HTTP as JSON
func (al *AxisLocker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	hp := generichttp.HumanPayload{T: types.Bool, Bool: al.Locked(axis)}
	hp.EncodeAndRespond(w, r)
}
