// Package optosigma provides an interface to OptoSigma GSC-01 single axis
// stepper controllers and the linear stages they drive.
//
// The controller speaks a terse ASCII protocol over RS-232, for example
// "A:1+P1000" loads an absolute move of axis 1 to +1000 pulses and "G:"
// executes it.  Positions are tracked in software as well as on the
// controller, since jogging and releasing the motor leave the controller's
// coordinate untrustworthy.  The motion interfaces speak mm, everything else
// speaks pulses.
package optosigma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/nanosquared/comm"
)

const (
	// Axis is the only axis of the GSC-01
	Axis = "1"

	// misses before the busy poll backs off
	missLimit = 5

	// the busy poll gives up once the backoff reaches this
	backoffLimit = 300 * time.Millisecond
)

// Status is the reply to the status1 (Q:) query
type Status struct {
	// Position is the controller's coordinate, in pulses
	Position int `json:"position"`

	// CommandError is true if the last command was rejected (ACK1 = X)
	CommandError bool `json:"commandError"`

	// LimitStop is true if the last motion ended on a limit switch (ACK2 = L)
	LimitStop bool `json:"limitStop"`

	// Busy is true while the stage is moving (ACK3 = B)
	Busy bool `json:"busy"`
}

func parseStatus(s string) (Status, error) {
	var st Status
	pieces := strings.Split(s, ",")
	if len(pieces) != 4 {
		return st, fmt.Errorf("expected 4 fields in status reply, got %q", s)
	}
	pos, err := strconv.Atoi(strings.ReplaceAll(pieces[0], " ", ""))
	if err != nil {
		return st, fmt.Errorf("parsing coordinate of status reply %q: %w", s, err)
	}
	st.Position = pos
	st.CommandError = strings.TrimSpace(pieces[1]) == "X"
	st.LimitStop = strings.TrimSpace(pieces[2]) == "L"
	st.Busy = strings.TrimSpace(pieces[3]) == "B"
	return st, nil
}

func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        9600,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 2 * time.Second}
}

// Option configures a GSC01
type Option func(*GSC01)

// WithLogger sets the logger used for warnings and progress
func WithLogger(l *zap.Logger) Option {
	return func(g *GSC01) { g.log = l }
}

// WithModel sets the stage attached to the controller.  SGSP26200 by default
func WithModel(m Model) Option {
	return func(g *GSC01) { g.t = newTracker(m) }
}

// WithPollInterval sets the interval of the busy poll, 100 ms by default
func WithPollInterval(d time.Duration) Option {
	return func(g *GSC01) { g.poll = d }
}

// GSC01 is an OptoSigma GSC-01 controller.  It is concurrent safe; command
// sequences such as load-then-go are atomic with respect to other callers
type GSC01 struct {
	pool *comm.Pool
	log  *zap.Logger
	poll time.Duration

	mu      sync.Mutex // guards the link, t, and powered
	t       *tracker
	powered bool
}

// NewGSC01 returns a controller reached at addr, a serial port if serial is
// true, otherwise a TCP address of a terminal server.  No communication
// happens until Init
func NewGSC01(addr string, serial bool, opts ...Option) *GSC01 {
	var maker comm.CreationFunc
	if serial {
		maker = comm.BackingOffSerialConnMaker(makeSerConf(addr))
	} else {
		maker = comm.BackingOffTCPConnMaker(addr, 3*time.Second)
	}
	return NewGSC01FromMaker(maker, opts...)
}

// NewGSC01FromMaker returns a controller that opens its link with maker
func NewGSC01FromMaker(maker comm.CreationFunc, opts ...Option) *GSC01 {
	g := &GSC01{
		pool: comm.NewPool(1, 30*time.Second, maker),
		log:  zap.NewNop(),
		poll: 100 * time.Millisecond,
		t:    newTracker(SGSP26200),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Close frees the link to the controller
func (g *GSC01) Close() error {
	g.pool.Close()
	return nil
}

// Raw sends a command (without terminators) and returns the reply verbatim
func (g *GSC01) Raw(cmd string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.raw(cmd)
}

func (g *GSC01) raw(cmd string) (resp string, err error) {
	conn, err := g.pool.Get()
	if err != nil {
		return "", err
	}
	defer func() { g.pool.ReturnWithError(conn, err) }()
	// CRLF out, LF in with the CR trimmed below
	wrap := comm.NewTerminator(conn, '\n', '\n')
	_, err = io.WriteString(wrap, cmd+"\r")
	if err != nil {
		return "", err
	}
	buf := make([]byte, 64)
	n, err := wrap.Read(buf)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

// send is raw, with NG converted to an error
func (g *GSC01) send(cmd string) (string, error) {
	resp, err := g.raw(cmd)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", cmd, err)
	}
	if resp == "NG" {
		return resp, fmt.Errorf("%s: %w", cmd, ErrControllerNG)
	}
	return resp, nil
}

func (g *GSC01) status() (Status, error) {
	resp, err := g.send("Q:")
	if err != nil {
		return Status{}, err
	}
	return parseStatus(resp)
}

// Status queries the status1 of the controller
func (g *GSC01) Status() (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status()
}

func (g *GSC01) busy() (bool, error) {
	resp, err := g.send("!:")
	if err != nil {
		if silent(err) {
			return false, ErrNoResponse
		}
		return false, err
	}
	switch resp {
	case "B":
		return true, nil
	case "R":
		return false, nil
	case "":
		return false, ErrNoResponse
	}
	return false, fmt.Errorf("unknown busy reply %q", resp)
}

// silent reports if err means the controller did not answer in time
func silent(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, comm.ErrTerminatorNotFound) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}

// Busy returns true while the stage is moving
func (g *GSC01) Busy() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy()
}

// waitClear polls query until the stage is ready.  Unanswered polls are
// tolerated; every missLimit of them slow the poll by 100 ms, and the wait
// fails once that reaches backoffLimit
func (g *GSC01) waitClear(ctx context.Context, query func() (bool, error)) error {
	var (
		misses int
		extra  time.Duration
	)
	lim := rate.NewLimiter(rate.Every(g.poll), 1)
	for {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		busy, err := query()
		switch {
		case err == nil && !busy:
			return nil
		case err == nil:
			continue
		case errors.Is(err, ErrNoResponse):
			misses++
			if misses < missLimit {
				continue
			}
			misses = 0
			extra += 100 * time.Millisecond
			if extra >= backoffLimit {
				return ErrNoResponse
			}
			g.log.Warn("controller not answering, slowing poll", zap.Duration("interval", g.poll+extra))
			lim.SetLimit(rate.Every(g.poll + extra))
		default:
			return err
		}
	}
}

// Wait blocks until the stage is ready.  Other callers may use the
// controller between polls
func (g *GSC01) Wait(ctx context.Context) error {
	return g.waitClear(ctx, g.Busy)
}

// Init waits for the controller to come up, adopts its coordinate, powers the
// motor, loads DefaultSpeed, and checks if the controller still tracks the
// stage.  If it does not, the position is permanently dirty until Home
func (g *GSC01) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.waitClear(ctx, g.busy); err != nil {
		return err
	}
	st, err := g.status()
	if err != nil {
		return err
	}
	g.t.absorb(st.Position)
	if err = g.setPower(true); err != nil {
		return err
	}
	g.t.speed = DefaultSpeed
	if err = g.applySpeed(DefaultSpeed); err != nil {
		return err
	}
	// a relative move is only accepted if the controller trusts its coordinate.
	// Without a G: the stage stays put
	_, err = g.send("M:" + Axis + "+P1")
	if errors.Is(err, ErrControllerNG) {
		g.log.Warn("controller lost track of the stage, home it before moving")
		g.t.setPermDirty()
		return nil
	}
	return err
}

func sign(x int) string {
	if x < 0 {
		return "-"
	}
	return "+"
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// MovePulses starts an absolute move to pos pulses.  It does not wait
func (g *GSC01) MovePulses(pos int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.t.setPosition(pos); err != nil {
		return err
	}
	if _, err := g.send(fmt.Sprintf("A:%s%sP%d", Axis, sign(pos), abs(pos))); err != nil {
		return err
	}
	_, err := g.send("G:")
	return err
}

// MovePulsesRel starts a relative move of delta pulses.  It does not wait
func (g *GSC01) MovePulsesRel(delta int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	pos, err := g.t.position()
	if err != nil {
		return err
	}
	if err = g.t.setPosition(pos + delta); err != nil {
		return err
	}
	if _, err = g.send(fmt.Sprintf("M:%s%sP%d", Axis, sign(delta), abs(delta))); err != nil {
		return err
	}
	_, err = g.send("G:")
	return err
}

// Pulses returns the tracked position in pulses, which fails while the
// position is dirty
func (g *GSC01) Pulses() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.position()
}

// Jog starts a continuous move at the jog speed, until Stop or a limit
// switch.  The tracked position becomes dirty
func (g *GSC01) Jog(positive bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.jog(positive)
}

func (g *GSC01) jog(positive bool) error {
	dir := "+"
	if !positive {
		dir = "-"
	}
	if _, err := g.send("J:" + Axis + dir); err != nil {
		return err
	}
	if _, err := g.send("G:"); err != nil {
		return err
	}
	return g.t.setDirty(true)
}

// HomeStage drives to the mechanical origin, clears the dirty flags and
// zeroes the coordinate there.  The controller homes with its own fixed
// speed table
func (g *GSC01) HomeStage(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.Info("homing stage")
	if _, err := g.send("H:" + Axis); err != nil {
		return err
	}
	if err := g.waitClear(ctx, g.busy); err != nil {
		return err
	}
	g.t.permDirty = false
	g.t.dirty = false
	return g.resetOrigin()
}

// ResetOrigin makes the current position the zero of the coordinate
func (g *GSC01) ResetOrigin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resetOrigin()
}

func (g *GSC01) resetOrigin() error {
	cur := g.t.pos
	g.t.pos = 0
	if g.t.ranged {
		if err := g.t.setLimits(g.t.lower-cur, g.t.upper-cur); err != nil {
			return err
		}
	}
	_, err := g.send("R:" + Axis)
	return err
}

// SyncPosition adopts the controller's coordinate as the tracked position.
// A coordinate beyond the known limits widens them.  If the motor is powered
// the position is no longer dirty
func (g *GSC01) SyncPosition() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.syncPosition()
}

func (g *GSC01) syncPosition() (int, error) {
	st, err := g.status()
	if err != nil {
		return 0, err
	}
	g.t.absorb(st.Position)
	if g.powered {
		g.t.setDirty(false)
	}
	return st.Position, nil
}

// FindRange jogs into both limit switches to measure the travel of the stage
// in pulses, recalculates the µm per pulse from it, and adopts the switches as
// the limits.  The jog speed is restored afterwards
func (g *GSC01) FindRange(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.Info("finding stage range")
	orig := g.t.speed.Jog
	if err := g.setSpeed(SpeedRequest{Jog: IntPtr(4000)}); err != nil {
		return 0, err
	}
	ends := [2]int{}
	for i, positive := range []bool{true, false} {
		if err := g.jog(positive); err != nil {
			return 0, err
		}
		if err := g.waitClear(ctx, g.busy); err != nil {
			return 0, err
		}
		st, err := g.status()
		if err != nil {
			return 0, err
		}
		ends[i] = st.Position
	}
	lower, upper := ends[1], ends[0]
	if lower > upper {
		lower, upper = upper, lower
	}
	g.t.pulseRange = upper - lower
	g.t.recalc()
	if _, err := g.syncPosition(); err != nil {
		return 0, err
	}
	if err := g.t.setLimits(lower, upper); err != nil {
		return 0, err
	}
	g.t.ranged = true
	if err := g.setSpeed(SpeedRequest{Jog: IntPtr(orig)}); err != nil {
		return 0, err
	}
	g.log.Info("found stage range",
		zap.Int("pulses", g.t.pulseRange),
		zap.Float64("umPerPulse", g.t.umPerPulse))
	return g.t.pulseRange, nil
}

// Ranged returns true once FindRange has measured the limits
func (g *GSC01) Ranged() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.ranged
}

// Limits returns the lower and upper limits, in pulses
func (g *GSC01) Limits() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.lower, g.t.upper
}

// UmPerPulse returns the current scale of the stage
func (g *GSC01) UmPerPulse() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.umPerPulse
}

// PulseToMM converts pulses to mm
func (g *GSC01) PulseToMM(p int) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.pulseToMM(p)
}

// MMToPulse converts mm to the nearest pulse
func (g *GSC01) MMToPulse(mm float64) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.mmToPulse(mm)
}

// SetSpeed loads a new speed table.  Nil fields keep their current value,
// see Speed.Merge for the rest of the rules
func (g *GSC01) SetSpeed(s SpeedRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setSpeed(s)
}

func (g *GSC01) setSpeed(req SpeedRequest) error {
	next, notes, err := g.t.speed.Merge(req)
	if err != nil {
		return err
	}
	for _, n := range notes {
		g.log.Warn("adjusted speed", zap.String("note", n))
	}
	if err = g.applySpeed(next); err != nil {
		return err
	}
	g.t.speed = next
	return nil
}

func (g *GSC01) applySpeed(s Speed) error {
	g.log.Info("setting speed",
		zap.Int("jog", s.Jog), zap.Int("min", s.Min),
		zap.Int("max", s.Max), zap.Int("accelTime", s.AccelTime))
	if _, err := g.send(fmt.Sprintf("D:%sS%dF%dR%d", Axis, s.Min, s.Max, s.AccelTime)); err != nil {
		return err
	}
	_, err := g.send(fmt.Sprintf("S:J%d", s.Jog))
	return err
}

// GetSpeed returns the speed table last loaded
func (g *GSC01) GetSpeed() Speed {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.t.speed
}

// SetPower energizes or releases the motor.  Releasing a powered motor makes
// the position permanently dirty
func (g *GSC01) SetPower(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setPower(on)
}

func (g *GSC01) setPower(on bool) error {
	arg := "0"
	if on {
		arg = "1"
	}
	if _, err := g.send("C:" + Axis + arg); err != nil {
		return err
	}
	if g.powered && !on {
		g.t.setPermDirty()
	}
	g.powered = on
	return nil
}

// Halt decelerates and stops the stage, syncing a dirty position first
func (g *GSC01) Halt() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.t.dirty && !g.t.permDirty {
		if _, err := g.syncPosition(); err != nil {
			return err
		}
	}
	_, err := g.send("L:" + Axis)
	return err
}

// EmergencyStop stops the stage immediately, without deceleration
func (g *GSC01) EmergencyStop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.send("L:E")
	return err
}
