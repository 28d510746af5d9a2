package capture

import "time"

// Default capture rates.
const (
	DefaultIdleFPS     = 5
	DefaultActiveFPS   = 15
	DefaultIdleTimeout = 2 * time.Second
)

// RateController picks the capture rate. Activity switches to the active
// rate at once; the idle rate returns only after IdleTimeout without any.
// It is not safe for concurrent use.
type RateController struct {
	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	active       bool
	lastActivity time.Time
}

// NewRateController creates a RateController in idle mode. Zero or negative
// arguments take the defaults.
func NewRateController(idleFPS, activeFPS int, idleTimeout time.Duration) *RateController {
	if idleFPS <= 0 {
		idleFPS = DefaultIdleFPS
	}
	if activeFPS <= 0 {
		activeFPS = DefaultActiveFPS
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &RateController{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleTimeout: idleTimeout}
}

// Observe records whether the latest frame showed activity and returns the
// rate to use from now on, and whether it differs from the previous one.
func (r *RateController) Observe(activity bool, now time.Time) (fps int, changed bool) {
	switch {
	case activity:
		r.lastActivity = now
		if !r.active {
			r.active = true
			changed = true
		}
	case r.active && now.Sub(r.lastActivity) > r.IdleTimeout:
		r.active = false
		changed = true
	}
	return r.FPS(), changed
}

// Active reports whether the controller is in active mode.
func (r *RateController) Active() bool {
	return r.active
}

// FPS returns the current rate.
func (r *RateController) FPS() int {
	if r.active {
		return r.ActiveFPS
	}
	return r.IdleFPS
}

// Interval returns the frame period at the current rate.
func (r *RateController) Interval() time.Duration {
	return time.Second / time.Duration(r.FPS())
}
