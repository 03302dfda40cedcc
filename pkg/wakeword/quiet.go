package wakeword

import "time"

// QuietHours is a veto policy that discards wake triggers during a
// configured window of local hours. A window whose start hour is greater
// than its end hour wraps past midnight (e.g. 23 to 7).
type QuietHours struct {
	// Start and End are local hours in [0, 24). A negative Start
	// disables the policy.
	Start int
	End   int

	// Now allows tests to inject a clock. Nil means time.Now.
	Now func() time.Time
}

// Active reports whether the current time falls inside the quiet window.
func (q QuietHours) Active() bool {
	if q.Start < 0 {
		return false
	}
	now := time.Now
	if q.Now != nil {
		now = q.Now
	}
	hour := now().Hour()

	if q.Start > q.End {
		return hour >= q.Start || hour < q.End
	}
	return hour >= q.Start && hour < q.End
}
