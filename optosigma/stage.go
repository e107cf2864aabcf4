package optosigma

import (
	"errors"
	"fmt"
	"math"

	"github.com/nasa-jpl/nanosquared/mathx"
)

const (
	// PulseLimit is the largest coordinate magnitude the GSC-01 can represent
	PulseLimit = 16777215

	// MinSpeed is the smallest legal speed, in pulses per second
	MinSpeed = 100

	// MaxSpeed is the largest legal speed, in pulses per second
	MaxSpeed = 20000

	// MaxAccelTime is the largest legal acceleration/deceleration time, in ms
	MaxAccelTime = 1000
)

var (
	// ErrControllerNG is generated when the controller replies NG to a command
	ErrControllerNG = errors.New("controller replied NG")

	// ErrPositionDirty is generated when the tracked position can not be
	// trusted, after a jog or after the motor was released
	ErrPositionDirty = errors.New("stage position is dirty, sync or home the stage")

	// ErrPermanentlyDirty is generated when a position is requested from a
	// stage whose motor was released; only homing clears it
	ErrPermanentlyDirty = fmt.Errorf("%w: motor was released, home the stage", ErrPositionDirty)

	// ErrOutOfBounds is generated when a move would leave the stage limits
	ErrOutOfBounds = errors.New("position out of bounds")

	// ErrNoResponse is generated when the controller does not answer a busy query
	ErrNoResponse = errors.New("controller did not respond, is it switched on?")
)

// Model describes a linear stage driven by the GSC-01
type Model struct {
	// Name is the part number
	Name string

	// Travel is the nominal travel in mm
	Travel float64

	// PulseRange is the nominal number of pulses spanning the travel
	PulseRange int
}

// SGSP26200 is the OptoSigma SGSP26-200 linear stage.  The pulse range is
// approximate; FindRange measures it against the limit switches
var SGSP26200 = Model{Name: "SGSP26-200", Travel: 200, PulseRange: 100557}

// Speed holds the speed table of the controller, in pulses per second and ms
type Speed struct {
	Jog       int `json:"jog"`
	Min       int `json:"min"`
	Max       int `json:"max"`
	AccelTime int `json:"accelTime"`
}

// DefaultSpeed is applied when the controller is initialized
var DefaultSpeed = Speed{Jog: 500, Min: 500, Max: 5000, AccelTime: 200}

// SpeedRequest is a change to the speed table.  Nil fields keep their
// current value
type SpeedRequest struct {
	Jog       *int `json:"jog,omitempty"`
	Min       *int `json:"min,omitempty"`
	Max       *int `json:"max,omitempty"`
	AccelTime *int `json:"accelTime,omitempty"`
}

// IntPtr returns a pointer to v, for SpeedRequest fields
func IntPtr(v int) *int {
	return &v
}

// Merge applies the controller's speed rules to a requested speed table,
// using old for any value that is unset or illegal.  Negative values are made
// positive and speeds are rounded down to multiples of 100 pps.  A min above
// max after substitution is swapped.  The returned slice describes every
// substitution, for logging
func (old Speed) Merge(req SpeedRequest) (Speed, []string, error) {
	pick := func(v *int, o int) int {
		if v == nil {
			return o
		}
		if *v < 0 {
			return -*v
		}
		return *v
	}
	next := Speed{
		Jog:       pick(req.Jog, old.Jog),
		Min:       pick(req.Min, old.Min),
		Max:       pick(req.Max, old.Max),
		AccelTime: pick(req.AccelTime, old.AccelTime),
	}
	if next.Min > next.Max {
		return old, nil, fmt.Errorf("min speed %d above max speed %d", next.Min, next.Max)
	}
	var notes []string
	olds := [3]int{old.Jog, old.Min, old.Max}
	vals := [3]*int{&next.Jog, &next.Min, &next.Max}
	for i, v := range vals {
		if r := mathx.RoundDown(*v, 100); r != *v {
			notes = append(notes, fmt.Sprintf("got %d, using %d", *v, r))
			*v = r
		}
		if *v < MinSpeed || *v > MaxSpeed {
			notes = append(notes, fmt.Sprintf("illegal speed %d, using old value %d", *v, olds[i]))
			*v = olds[i]
		}
	}
	if next.Min > next.Max {
		next.Min, next.Max = next.Max, next.Min
	}
	if next.AccelTime < 0 || next.AccelTime > MaxAccelTime {
		notes = append(notes, fmt.Sprintf("illegal acceleration time %d, using old value %d", next.AccelTime, old.AccelTime))
		next.AccelTime = old.AccelTime
	}
	return next, notes, nil
}

// tracker follows the position of the stage in software.  It is not
// concurrent safe; the controller guards it
type tracker struct {
	model      Model
	pos        int
	lower      int
	upper      int
	pulseRange int
	umPerPulse float64
	ranged     bool
	dirty      bool
	permDirty  bool
	speed      Speed
}

func newTracker(m Model) *tracker {
	t := &tracker{model: m, lower: -PulseLimit, upper: PulseLimit, pulseRange: m.PulseRange}
	t.recalc()
	return t
}

func (t *tracker) recalc() {
	t.umPerPulse = t.model.Travel * 1000 / float64(t.pulseRange)
}

func (t *tracker) position() (int, error) {
	if t.permDirty {
		return 0, ErrPermanentlyDirty
	}
	if t.dirty {
		return 0, ErrPositionDirty
	}
	return t.pos, nil
}

// setPosition records a commanded position, checked against the limits
func (t *tracker) setPosition(p int) error {
	if p < t.lower || p > t.upper {
		return fmt.Errorf("%w: %d not within [%d, %d]", ErrOutOfBounds, p, t.lower, t.upper)
	}
	t.pos = p
	return nil
}

func (t *tracker) setDirty(d bool) error {
	if t.permDirty {
		if d {
			return ErrPermanentlyDirty
		}
		return nil
	}
	t.dirty = d
	return nil
}

func (t *tracker) setPermDirty() {
	t.dirty = true
	t.permDirty = true
}

// setLimits installs new limits; upper below lower is rejected
func (t *tracker) setLimits(lower, upper int) error {
	if upper < lower {
		return fmt.Errorf("upper limit %d below lower limit %d", upper, lower)
	}
	t.lower, t.upper = lower, upper
	return nil
}

// absorb accepts a position read back from the controller, widening the
// limits if the controller reports a coordinate beyond them
func (t *tracker) absorb(p int) {
	if p < t.lower || p > t.upper {
		if p < t.lower {
			t.lower = p
		} else {
			t.upper = p
		}
		t.pulseRange = t.upper - t.lower
		t.recalc()
	}
	t.pos = p
}

func (t *tracker) pulseToMM(p int) float64 {
	return float64(p) * t.umPerPulse / 1000
}

func (t *tracker) mmToPulse(mm float64) int {
	return int(math.Round(mm * 1000 / t.umPerPulse))
}
