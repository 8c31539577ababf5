package core

import "time"

// NextMonthlyReset returns the first instant of the calendar month following
// now, in UTC. Billing months align to calendar months.
func NextMonthlyReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// ApplyMonthlyReset zeroes the monthly counters and advances MonthlyReset to
// the next period boundary if now has crossed the stored boundary. The
// operation is idempotent: calling it again within the same billing month is
// a no-op. Returns true if a reset was applied.
func (u *UsageCounter) ApplyMonthlyReset(now time.Time) bool {
	now = now.UTC()
	if u.MonthlyReset.IsZero() {
		u.MonthlyReset = NextMonthlyReset(now)
		return false
	}
	if now.Before(u.MonthlyReset) {
		return false
	}
	u.MonthRequests = 0
	u.MonthDocuments = 0
	// Skip any fully elapsed months so the boundary lands in the future.
	for !now.Before(u.MonthlyReset) {
		u.MonthlyReset = NextMonthlyReset(u.MonthlyReset)
	}
	return true
}
