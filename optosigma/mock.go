package optosigma

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	reMove  = regexp.MustCompile(`^([AM]):1([+-])P(\d+)$`)
	reJog   = regexp.MustCompile(`^J:1([+-])$`)
	reSpeed = regexp.MustCompile(`^D:1S(\d+)F(\d+)R(\d+)$`)
	reJogSp = regexp.MustCompile(`^S:J(\d+)$`)
)

// Emulator is an in-memory GSC-01 with a stage attached, speaking the
// controller's ASCII protocol.  Moves complete instantly, but the stage
// reports busy to the next BusyPolls busy queries after each motion.
//
// The limit switches sit at Lower and Upper physical pulses, which with the
// defaults gives the SGSP26-200's nominal range.  Releasing the motor makes
// the emulator refuse moves until homed, as the real controller does once it
// loses track of the stage
type Emulator struct {
	// Lower and Upper are the physical limit switch positions
	Lower, Upper int

	// BusyPolls is the number of busy replies after every motion
	BusyPolls int

	mu        sync.Mutex
	phys      int
	origin    int
	powered   bool
	lost      bool
	limitStop bool
	busyLeft  int
	pending   func()
	speed     Speed
}

// NewEmulator returns an emulator with the stage at its mechanical origin
func NewEmulator() *Emulator {
	half := SGSP26200.PulseRange / 2
	return &Emulator{Lower: -half, Upper: SGSP26200.PulseRange - half, BusyPolls: 2}
}

// Position returns the controller coordinate of the stage, in pulses
func (e *Emulator) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phys - e.origin
}

// SetLost marks the stage as untracked, as after a power cycle of a
// released motor
func (e *Emulator) SetLost(lost bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lost = lost
}

// Conn returns a new connection to the emulator
func (e *Emulator) Conn() io.ReadWriteCloser {
	return &emuConn{e: e}
}

// Maker returns a function making connections to the emulator, for
// NewGSC01FromMaker
func (e *Emulator) Maker() func() (io.ReadWriteCloser, error) {
	return func() (io.ReadWriteCloser, error) { return e.Conn(), nil }
}

// travel moves to target, stopping on a limit switch
func (e *Emulator) travel(target int) {
	e.limitStop = false
	if target <= e.Lower {
		target = e.Lower
		e.limitStop = true
	} else if target >= e.Upper {
		target = e.Upper
		e.limitStop = true
	}
	e.phys = target
	e.busyLeft = e.BusyPolls
}

func (e *Emulator) handle(cmd string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case cmd == "Q:":
		p := e.phys - e.origin
		s := " "
		if p < 0 {
			s, p = "-", -p
		}
		ack2, ack3 := "K", "R"
		if e.limitStop {
			ack2 = "L"
		}
		if e.busyLeft > 0 {
			ack3 = "B"
		}
		return fmt.Sprintf("%s%9d,K,%s,%s", s, p, ack2, ack3)
	case cmd == "!:":
		if e.busyLeft > 0 {
			e.busyLeft--
			return "B"
		}
		return "R"
	case cmd == "G:":
		if e.pending == nil || !e.powered {
			return "NG"
		}
		e.pending()
		e.pending = nil
		return "OK"
	case cmd == "H:1":
		if !e.powered {
			return "NG"
		}
		e.origin = 0
		e.travel(0)
		e.lost = false
		return "OK"
	case cmd == "R:1":
		e.origin = e.phys
		return "OK"
	case cmd == "L:1", cmd == "L:E":
		e.pending = nil
		e.busyLeft = 0
		return "OK"
	case cmd == "C:11", cmd == "C:10":
		on := cmd == "C:11"
		if e.powered && !on {
			e.lost = true
		}
		e.powered = on
		return "OK"
	}
	if m := reMove.FindStringSubmatch(cmd); m != nil {
		if e.lost || !e.powered {
			return "NG"
		}
		n, _ := strconv.Atoi(m[3])
		if m[2] == "-" {
			n = -n
		}
		if m[1] == "A" {
			e.pending = func() { e.travel(e.origin + n) }
		} else {
			e.pending = func() { e.travel(e.phys + n) }
		}
		return "OK"
	}
	if m := reJog.FindStringSubmatch(cmd); m != nil {
		if m[1] == "+" {
			e.pending = func() { e.travel(e.Upper) }
		} else {
			e.pending = func() { e.travel(e.Lower) }
		}
		return "OK"
	}
	if m := reSpeed.FindStringSubmatch(cmd); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		acc, _ := strconv.Atoi(m[3])
		if lo < MinSpeed || hi > MaxSpeed || lo > hi || acc > MaxAccelTime {
			return "NG"
		}
		e.speed.Min, e.speed.Max, e.speed.AccelTime = lo, hi, acc
		return "OK"
	}
	if m := reJogSp.FindStringSubmatch(cmd); m != nil {
		j, _ := strconv.Atoi(m[1])
		if j < MinSpeed || j > MaxSpeed {
			return "NG"
		}
		e.speed.Jog = j
		return "OK"
	}
	return "NG"
}

// Speed returns the speed table last loaded into the emulator
func (e *Emulator) Speed() Speed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

type emuConn struct {
	e   *Emulator
	in  bytes.Buffer
	out bytes.Buffer
}

// Write executes every complete CRLF-terminated command in p
func (c *emuConn) Write(p []byte) (int, error) {
	c.in.Write(p)
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			// incomplete command, keep it for the next write
			c.in.Reset()
			c.in.WriteString(line)
			break
		}
		cmd := strings.TrimRight(line, "\r\n")
		c.out.WriteString(c.e.handle(cmd) + "\r\n")
	}
	return len(p), nil
}

func (c *emuConn) Read(p []byte) (int, error) {
	if c.out.Len() == 0 {
		return 0, io.EOF
	}
	return c.out.Read(p)
}

func (c *emuConn) Close() error {
	return nil
}

// NewMock returns a controller wired to a new emulator
func NewMock(opts ...Option) (*GSC01, *Emulator) {
	e := NewEmulator()
	return NewGSC01FromMaker(e.Maker(), opts...), e
}
