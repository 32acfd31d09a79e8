package clock

import "time"

// Clock abstracts wall time so services and audit records can be tested
// against a deterministic timeline.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
