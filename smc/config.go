package smc

import "time"

const (
	DefaultDegreesPerMotorRev = 1000
	// The controller needs processing time between commands.
	DefaultSettleDelay = 300 * time.Millisecond
	// A system reset takes this long before the controller accepts
	// further commands. Protocol requirement, not a tunable.
	DefaultResetDelay   = 2 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	DefaultPollTimeout  = 30 * time.Second
)

// Config holds the protocol constants for one controller. The zero
// value is usable; zero fields take the defaults above.
type Config struct {
	// Address is the numeric prefix selecting which unit on a shared
	// bus receives addressed commands.
	Address int
	// DegreesPerMotorRev is the scale factor converting motor
	// revolutions to angular degrees before gearbox reduction.
	DegreesPerMotorRev int
	// SettleDelay is the pause between consecutive setup commands.
	SettleDelay time.Duration
	// ResetDelay is the pause after a system reset.
	ResetDelay time.Duration
	// PollInterval and PollTimeout bound the wait-until-reached poll.
	PollInterval time.Duration
	PollTimeout  time.Duration
	// PositionTolerance widens the wait-until-reached comparison to
	// ±tolerance encoder counts. The default of 0 demands exact
	// equality, which a step size that rounds to a fractional count
	// can never satisfy; set a small tolerance in that case.
	PositionTolerance int
}

func (c Config) withDefaults() Config {
	if c.DegreesPerMotorRev == 0 {
		c.DegreesPerMotorRev = DefaultDegreesPerMotorRev
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.ResetDelay == 0 {
		c.ResetDelay = DefaultResetDelay
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	return c
}
