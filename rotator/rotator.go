package rotator

type Rotator interface {
	Stop() error
	EmergencyStop() error
	Step() error
}

type StatusCallback func(status Status)

type Status interface {
	Position() float64

	Clone() Status
}

type Homer interface {
	Home() error
}

type Positioner interface {
	AbsolutePosition() (float64, error)
}

type Resetter interface {
	ResetSystem() error
	ResetPositionRegister() error
}
