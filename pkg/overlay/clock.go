package overlay

import "time"

// Clock abstracts wall time so scheduling arithmetic can be driven
// deterministically in tests. Production code uses the system clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
