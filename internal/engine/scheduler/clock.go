// internal/engine/scheduler/clock.go
package scheduler

import "time"

// Clock abstracts the time source so scheduling logic is testable without a
// wall clock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
