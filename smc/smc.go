// Package smc drives a stepper-motor rotator controller over a serial
// line using its ASCII command protocol.
package smc

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/w1xm/smc_interface/internal/transport"
	"github.com/w1xm/smc_interface/rotator"
)

// Direction of rotation as seen from the output shaft.
type Direction int

const (
	CW Direction = iota
	CCW
)

func (d Direction) String() string {
	if d == CCW {
		return "CCW"
	}
	return "CW"
}

// Status is a snapshot of the driver state.
type Status struct {
	Address        int
	Direction      Direction
	DegreesPerStep float64
	// Velocity is in revolutions/second, Acceleration in
	// revolutions/second^2.
	Velocity     float64
	Acceleration float64
	GearboxRatio float64
	SafetyLimits bool
	// Angle is the software-tracked cumulative commanded angle. It is
	// never read back from the hardware and drifts if commands fail
	// silently.
	Angle float64
	// RawPosition is the encoder count from the last position query.
	RawPosition int
	Connected   bool
	Moving      bool
}

func (s Status) Clone() rotator.Status {
	return s
}

func (s Status) Position() float64 {
	return s.Angle
}

// Rotor is a driver for one controller. It owns its connection; all
// operations serialize their send/receive pairs, and operations other
// than Stop and EmergencyStop fail with ErrBusy while a step-and-wait
// call is blocking.
type Rotor struct {
	conn transport.Conn
	cfg  Config

	// statusCallback is invoked, with the internal lock held, after
	// every state change. It must not call back into the Rotor.
	statusCallback rotator.StatusCallback
	mu             sync.Mutex
	state          Status
	// closed releases the Connect watcher when the driver is torn
	// down via Close rather than context cancellation.
	closed chan struct{}
}

// Connect opens the serial port and returns an idle driver. The port
// is closed when ctx is canceled.
func Connect(ctx context.Context, port string, baud int, cfg Config, statusCallback rotator.StatusCallback) (*Rotor, error) {
	c := &transport.Serial{Port: port, Baud: baud}
	if err := c.Connect(); err != nil {
		return nil, err
	}
	r := New(c, cfg, statusCallback)
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-r.closed:
		}
	}()
	return r, nil
}

// New wraps an already-open connection.
func New(conn transport.Conn, cfg Config, statusCallback rotator.StatusCallback) *Rotor {
	cfg = cfg.withDefaults()
	r := &Rotor{conn: conn, cfg: cfg, statusCallback: statusCallback, closed: make(chan struct{})}
	r.state = Status{
		Address:        cfg.Address,
		Direction:      CW,
		DegreesPerStep: 10,
		Velocity:       10,
		Acceleration:   10,
		GearboxRatio:   1,
		SafetyLimits:   true,
		Connected:      true,
	}
	return r
}

func (r *Rotor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Connected {
		return nil
	}
	close(r.closed)
	err := r.conn.Close()
	r.state.Connected = false
	r.state.Moving = false
	r.notifyStatus()
	return err
}

// Status returns a snapshot of the driver state.
func (r *Rotor) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Rotor) notifyStatus() {
	if r.statusCallback == nil {
		return
	}
	r.statusCallback(r.state)
}

func (r *Rotor) checkIdle() error {
	if !r.state.Connected {
		return ErrNotConnected
	}
	if r.state.Moving {
		return ErrBusy
	}
	return nil
}

func (r *Rotor) send(body string) error {
	return r.write(encodeUnaddressed(body))
}

func (r *Rotor) sendAddressed(body string) error {
	return r.write(encode(r.state.Address, body))
}

func (r *Rotor) write(frame []byte) error {
	if !r.state.Connected {
		return ErrNotConnected
	}
	if _, err := r.conn.Write(frame); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}
	return nil
}

func (r *Rotor) SetDirection(d Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	cmd := "H+"
	if d == CCW {
		cmd = "H-"
	}
	if err := r.send(cmd); err != nil {
		return err
	}
	r.state.Direction = d
	r.notifyStatus()
	return nil
}

// stepCounts converts an output-shaft angle to encoder counts.
func (r *Rotor) stepCounts(degrees float64) int {
	return int(math.Round(degrees * float64(r.cfg.DegreesPerMotorRev) * r.state.GearboxRatio))
}

func (r *Rotor) SetDegreesPerStep(degrees float64) error {
	if degrees <= 0 {
		return fmt.Errorf("%w: degrees per step %v", ErrInvalidArgument, degrees)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	if err := r.send(fmt.Sprintf("D%d", r.stepCounts(degrees))); err != nil {
		return err
	}
	r.state.DegreesPerStep = degrees
	r.notifyStatus()
	return nil
}

// SetVelocity sets the motion velocity in revolutions/second.
func (r *Rotor) SetVelocity(revPerSec float64) error {
	if revPerSec <= 0 {
		return fmt.Errorf("%w: velocity %v", ErrInvalidArgument, revPerSec)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	if err := r.send(fmt.Sprintf("V%d", int(math.Round(revPerSec)))); err != nil {
		return err
	}
	r.state.Velocity = revPerSec
	r.notifyStatus()
	return nil
}

// SetAcceleration sets the motion acceleration in revolutions/second^2.
func (r *Rotor) SetAcceleration(revPerSecSq float64) error {
	if revPerSecSq <= 0 {
		return fmt.Errorf("%w: acceleration %v", ErrInvalidArgument, revPerSecSq)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	if err := r.send(fmt.Sprintf("A%d", int(math.Round(revPerSecSq)))); err != nil {
		return err
	}
	r.state.Acceleration = revPerSecSq
	r.notifyStatus()
	return nil
}

// SetGearboxRatio sets the output-shaft reduction factor, in (0, 1].
// Local only; no command is sent.
func (r *Rotor) SetGearboxRatio(ratio float64) error {
	if ratio <= 0 || ratio > 1 {
		return fmt.Errorf("%w: gearbox ratio %v", ErrInvalidArgument, ratio)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	r.state.GearboxRatio = ratio
	r.notifyStatus()
	return nil
}

// SetControllerAddress changes which bus address prefixes subsequent
// addressed commands. Local only; no command is sent.
func (r *Rotor) SetControllerAddress(address int) error {
	if address < 0 {
		return fmt.Errorf("%w: controller address %d", ErrInvalidArgument, address)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	r.state.Address = address
	r.notifyStatus()
	return nil
}

func (r *Rotor) DisableSafetyLimits() error {
	return r.setSafetyLimits(false)
}

func (r *Rotor) EnableSafetyLimits() error {
	return r.setSafetyLimits(true)
}

func (r *Rotor) setSafetyLimits(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	cmd := "LD3"
	if enabled {
		cmd = "LD0"
	}
	if err := r.sendAddressed(cmd); err != nil {
		return err
	}
	r.state.SafetyLimits = enabled
	r.notifyStatus()
	return nil
}

// ResetSystem resets the controller, then holds off further commands
// for the reset settle interval.
func (r *Rotor) ResetSystem() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	if err := r.sendAddressed("Z"); err != nil {
		return err
	}
	time.Sleep(r.cfg.ResetDelay)
	return nil
}

// ResetPositionRegister zeroes the hardware encoder count. The
// software angle is untouched.
func (r *Rotor) ResetPositionRegister() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	return r.sendAddressed("PZ")
}

func (r *Rotor) applyStep() {
	if r.state.Direction == CW {
		r.state.Angle += r.state.DegreesPerStep
	} else {
		r.state.Angle -= r.state.DegreesPerStep
	}
}

// Step activates one step and returns without waiting for the motion
// to complete.
func (r *Rotor) Step() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	if err := r.send("G"); err != nil {
		return err
	}
	r.applyStep()
	r.notifyStatus()
	return nil
}

// StepWait activates one step, then blocks for the estimated motion
// time (degrees per step / velocity). The estimate has no feedback and
// may under- or over-wait.
func (r *Rotor) StepWait() error {
	r.mu.Lock()
	if err := r.checkIdle(); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.send("G"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.applyStep()
	delay := time.Duration(r.state.DegreesPerStep / r.state.Velocity * float64(time.Second))
	r.state.Moving = true
	r.notifyStatus()
	r.mu.Unlock()

	time.Sleep(delay)

	r.mu.Lock()
	r.state.Moving = false
	r.notifyStatus()
	r.mu.Unlock()
	return nil
}

// StepWaitUntilReached activates one step and polls the controller's
// absolute position until it reaches the expected target, the poll
// timeout elapses (ErrTimedOut), or ctx is canceled. On ErrTimedOut or
// cancellation the motor may still be moving; callers should issue
// Stop or EmergencyStop.
func (r *Rotor) StepWaitUntilReached(ctx context.Context) error {
	r.mu.Lock()
	if err := r.checkIdle(); err != nil {
		r.mu.Unlock()
		return err
	}
	initial, err := r.absolutePosition()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	counts := r.stepCounts(r.state.DegreesPerStep)
	target := initial + counts
	if r.state.Direction == CCW {
		target = initial - counts
	}
	if err := r.send("G"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.applyStep()
	r.state.Moving = true
	r.notifyStatus()
	r.mu.Unlock()

	err = pollUntil(ctx, func() (int, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.absolutePosition()
	}, target, r.cfg.PositionTolerance, r.cfg.PollInterval, r.cfg.PollTimeout)

	r.mu.Lock()
	r.state.Moving = false
	r.notifyStatus()
	r.mu.Unlock()
	return err
}

// Home flips the direction, force-disables the safety limits, and
// commands the controller's homing cycle. The software angle is reset
// to zero optimistically; the controller's homing is authoritative.
func (r *Rotor) Home() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return err
	}
	flipped := CW
	cmd := "H+"
	if r.state.Direction == CW {
		flipped = CCW
		cmd = "H-"
	}
	if err := r.send(cmd); err != nil {
		return err
	}
	r.state.Direction = flipped
	if err := r.sendAddressed("LD3"); err != nil {
		return err
	}
	r.state.SafetyLimits = false
	if err := r.send("GH-2"); err != nil {
		return err
	}
	r.state.Angle = 0
	r.notifyStatus()
	return nil
}

// EmergencyStop commands an unconditional, non-recoverable stop. It is
// callable from any state, including while another call is blocking in
// a wait.
func (r *Rotor) EmergencyStop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.send("MN"); err != nil {
		return err
	}
	return r.send("K")
}

// Stop commands a controlled stop. Like EmergencyStop it bypasses the
// busy guard.
func (r *Rotor) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.send("MN"); err != nil {
		return err
	}
	return r.send("S")
}

// AbsolutePosition queries the controller's encoder count and returns
// it converted to output-shaft degrees. The software angle is not
// updated; the query is informational.
func (r *Rotor) AbsolutePosition() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkIdle(); err != nil {
		return 0, err
	}
	raw, err := r.absolutePosition()
	if err != nil {
		return 0, err
	}
	return toDegrees(raw, r.cfg.DegreesPerMotorRev, r.state.GearboxRatio), nil
}

// absolutePosition is the raw query: flush stale input, request the
// position register, force a line feed so the controller emits it,
// read one line. Callers hold r.mu so the send/receive pair cannot
// interleave with another command.
func (r *Rotor) absolutePosition() (int, error) {
	if !r.state.Connected {
		return 0, ErrNotConnected
	}
	if err := r.conn.Flush(); err != nil {
		return 0, fmt.Errorf("flushing input: %w", err)
	}
	if err := r.sendAddressed("PR"); err != nil {
		return 0, err
	}
	if err := r.sendAddressed("LF"); err != nil {
		return 0, err
	}
	line, err := r.conn.ReadLine()
	if err != nil {
		return 0, fmt.Errorf("reading position: %w", err)
	}
	raw, err := parsePosition(line)
	if err != nil {
		return 0, err
	}
	r.state.RawPosition = raw
	return raw, nil
}

// Rotate applies the default setup (velocity 10, acceleration 10),
// sets the requested direction and step size, disables the safety
// limits, and performs a single step. Commands are spaced by the
// settle delay.
func (r *Rotor) Rotate(d Direction, degrees float64) error {
	if degrees <= 0 {
		return fmt.Errorf("%w: rotation %v degrees", ErrInvalidArgument, degrees)
	}
	steps := []func() error{
		func() error { return r.SetVelocity(10) },
		func() error { return r.SetAcceleration(10) },
		func() error { return r.SetDirection(d) },
		func() error { return r.SetDegreesPerStep(degrees) },
		r.DisableSafetyLimits,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
		time.Sleep(r.cfg.SettleDelay)
	}
	return r.Step()
}

// RotateCW opens the port, rotates clockwise by the given angle, and
// closes the port.
func RotateCW(port string, baud int, degrees float64) error {
	return easyRotate(port, baud, CW, degrees)
}

// RotateCCW opens the port, rotates counterclockwise by the given
// angle, and closes the port.
func RotateCCW(port string, baud int, degrees float64) error {
	return easyRotate(port, baud, CCW, degrees)
}

func easyRotate(port string, baud int, d Direction, degrees float64) error {
	c := &transport.Serial{Port: port, Baud: baud}
	if err := c.Connect(); err != nil {
		return err
	}
	r := New(c, Config{}, nil)
	defer r.Close()
	return r.Rotate(d, degrees)
}

var (
	_ rotator.Rotator    = (*Rotor)(nil)
	_ rotator.Homer      = (*Rotor)(nil)
	_ rotator.Positioner = (*Rotor)(nil)
	_ rotator.Resetter   = (*Rotor)(nil)
	_ rotator.Status     = Status{}
)
