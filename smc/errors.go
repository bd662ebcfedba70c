package smc

import "errors"

var (
	// ErrNotConnected is returned when an operation needs an open
	// transport session.
	ErrNotConnected = errors.New("smc: not connected")
	// ErrBusy is returned when an operation is issued while a
	// step-and-wait call is still blocking.
	ErrBusy = errors.New("smc: motion in progress")
	// ErrTimedOut is returned when a position poll exceeds its bound.
	// The motor may still be moving physically.
	ErrTimedOut = errors.New("smc: timed out waiting for position")
	// ErrParse is returned for a malformed controller response.
	ErrParse = errors.New("smc: malformed response")
	// ErrInvalidArgument is returned for an out-of-range parameter,
	// before any command is sent.
	ErrInvalidArgument = errors.New("smc: invalid argument")
)
