// Package motion provides an HTTP interface to motion controllers
package motion

/*
A controller must be a Mover and may implement any of the other interfaces
in this package.  NewHTTPMotionController checks the concrete type against
each of them and adds their routes.
*/
import (
	"context"
	"net/http"
	"strings"

	"github.com/nasa-jpl/nanosquared/generichttp"
)

// Mover describes an interface with position-related methods for axes.
// units are those of the controller, mm for linear stages
type Mover interface {
	// GetPos gets the current position of an axis
	GetPos(string) (float64, error)

	// MoveAbs starts a move of an axis to an absolute position
	MoveAbs(string, float64) error

	// MoveRel starts a move of an axis by a relative amount
	MoveRel(string, float64) error
}

// Homer can send an axis to its home position, blocking until it arrives
type Homer interface {
	Home(context.Context, string) error
}

// Stopper decelerates and stops motion of an axis
type Stopper interface {
	Stop(string) error
}

// EmergencyStopper can halt every axis of a controller at once
type EmergencyStopper interface {
	EmergencyStop() error
}

// InPositionQueryer is a type which can query whether an axis is in position
type InPositionQueryer interface {
	GetInPosition(string) (bool, error)
}

// Waiter can block until an axis has finished moving
type Waiter interface {
	WaitIdle(context.Context, string) error
}

// Enabler describes an interface with enable/disable methods for axes,
// e.g. powering the motor driver
type Enabler interface {
	Enable(string) error
	Disable(string) error
	GetEnabled(string) (bool, error)
}

// Speeder describes an interface with velocity-related methods for axes,
// in units per second
type Speeder interface {
	SetVelocity(string, float64) error
	GetVelocity(string) (float64, error)
}

// Initializer is a type which may initialize an axis, for a stepper stage
// this establishes the travel range against the limit switches
type Initializer interface {
	Initialize(context.Context, string) error
}

// RawCommunicator sends a command verbatim and returns the reply
type RawCommunicator interface {
	Raw(string) (string, error)
}

// HTTPMotionController wraps a motion controller with HTTP
type HTTPMotionController struct {
	Mover

	RouteTable generichttp.RouteTable
}

// NewHTTPMotionController returns a new HTTP wrapper with the route table
// holding the routes of every interface m implements
func NewHTTPMotionController(m Mover) HTTPMotionController {
	rt := generichttp.RouteTable{}
	get := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodGet, Path: path}
	}
	post := func(path string) generichttp.MethodPath {
		return generichttp.MethodPath{Method: http.MethodPost, Path: path}
	}

	rt[get("/axis/{axis}/pos")] = axisFloat(m.GetPos)
	rt[post("/axis/{axis}/pos")] = setPos(m)
	if h, ok := m.(Homer); ok {
		rt[post("/axis/{axis}/home")] = axisCtx(h.Home)
	}
	if s, ok := m.(Stopper); ok {
		rt[post("/axis/{axis}/stop")] = axisCall(s.Stop)
	}
	if e, ok := m.(EmergencyStopper); ok {
		rt[post("/estop")] = generichttp.Trigger(e.EmergencyStop)
	}
	if i, ok := m.(InPositionQueryer); ok {
		rt[get("/axis/{axis}/inposition")] = axisBool(i.GetInPosition)
	}
	if wt, ok := m.(Waiter); ok {
		rt[post("/axis/{axis}/wait")] = axisCtx(wt.WaitIdle)
	}
	if e, ok := m.(Enabler); ok {
		rt[get("/axis/{axis}/enabled")] = axisBool(e.GetEnabled)
		rt[post("/axis/{axis}/enabled")] = setEnabled(e)
	}
	if s, ok := m.(Speeder); ok {
		rt[get("/axis/{axis}/velocity")] = axisFloat(s.GetVelocity)
		rt[post("/axis/{axis}/velocity")] = axisSetFloat(s.SetVelocity)
	}
	if i, ok := m.(Initializer); ok {
		rt[post("/axis/{axis}/initialize")] = axisCtx(i.Initialize)
	}
	if r, ok := m.(RawCommunicator); ok {
		rt[post("/raw")] = raw(r)
	}
	return HTTPMotionController{Mover: m, RouteTable: rt}
}

// RT satisfies the HTTPer interface
func (h HTTPMotionController) RT() generichttp.RouteTable {
	return h.RouteTable
}

// axisFromPath pulls <name> out of a path containing /axis/<name>/.
// middleware runs before chi has resolved URL params, so chi.URLParam
// cannot be used there
func axisFromPath(path string) string {
	pieces := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(pieces)-1; i++ {
		if pieces[i] == "axis" {
			return pieces[i+1]
		}
	}
	return ""
}
