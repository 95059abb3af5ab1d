package reconstruction

import "github.com/jonboulle/clockwork"

// clock times pipeline stages; tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for stage timings. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
