package optosigma

import (
	"context"
	"fmt"
)

// these methods satisfy the interfaces of generichttp/motion, in mm and mm/s

func checkAxis(axis string) error {
	if axis != Axis {
		return fmt.Errorf("unknown axis %q, the GSC-01 drives axis %s", axis, Axis)
	}
	return nil
}

// GetPos returns the tracked position in mm
func (g *GSC01) GetPos(axis string) (float64, error) {
	if err := checkAxis(axis); err != nil {
		return 0, err
	}
	p, err := g.Pulses()
	if err != nil {
		return 0, err
	}
	return g.PulseToMM(p), nil
}

// MoveAbs starts a move to pos mm
func (g *GSC01) MoveAbs(axis string, pos float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.MovePulses(g.MMToPulse(pos))
}

// MoveRel starts a move of delta mm
func (g *GSC01) MoveRel(axis string, delta float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.MovePulsesRel(g.MMToPulse(delta))
}

// Home homes the stage
func (g *GSC01) Home(ctx context.Context, axis string) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.HomeStage(ctx)
}

// Stop decelerates and stops the axis
func (g *GSC01) Stop(axis string) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.Halt()
}

// GetInPosition returns true if the stage is not moving
func (g *GSC01) GetInPosition(axis string) (bool, error) {
	if err := checkAxis(axis); err != nil {
		return false, err
	}
	busy, err := g.Busy()
	return !busy, err
}

// WaitIdle blocks until the axis is not moving
func (g *GSC01) WaitIdle(ctx context.Context, axis string) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.Wait(ctx)
}

// Enable powers the motor
func (g *GSC01) Enable(axis string) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.SetPower(true)
}

// Disable releases the motor
func (g *GSC01) Disable(axis string) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.SetPower(false)
}

// GetEnabled returns true if the motor is powered
func (g *GSC01) GetEnabled(axis string) (bool, error) {
	if err := checkAxis(axis); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.powered, nil
}

// SetVelocity sets the maximum speed of the axis in mm/s
func (g *GSC01) SetVelocity(axis string, v float64) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	return g.SetSpeed(SpeedRequest{Max: IntPtr(g.MMToPulse(v))})
}

// GetVelocity returns the maximum speed of the axis in mm/s
func (g *GSC01) GetVelocity(axis string) (float64, error) {
	if err := checkAxis(axis); err != nil {
		return 0, err
	}
	return g.PulseToMM(g.GetSpeed().Max), nil
}

// Initialize measures the range of the stage with FindRange
func (g *GSC01) Initialize(ctx context.Context, axis string) error {
	if err := checkAxis(axis); err != nil {
		return err
	}
	_, err := g.FindRange(ctx)
	return err
}
