package schedule

import (
	"finansheet/internal/core"
)

// ActivityChecker decides, for one frequency, whether a commitment is due in
// the month that lies monthsDiff months after its term started.
type ActivityChecker interface {
	IsActive(monthsDiff int) bool
}

// EveryNMonths is due on the start month and every n months after it.
type EveryNMonths int

func (n EveryNMonths) IsActive(monthsDiff int) bool {
	if n <= 1 {
		return true
	}
	return monthsDiff%int(n) == 0
}

// OnceChecker is due only in the start month.
type OnceChecker struct{}

func (OnceChecker) IsActive(monthsDiff int) bool {
	return monthsDiff == 0
}

// activityStrategies maps frequencies to their checkers.
var activityStrategies = map[core.Frequency]ActivityChecker{
	core.Once:         OnceChecker{},
	core.Monthly:      EveryNMonths(1),
	core.Bimonthly:    EveryNMonths(2),
	core.Quarterly:    EveryNMonths(3),
	core.Semiannually: EveryNMonths(6),
	core.Annually:     EveryNMonths(12),
}

// GetActivityChecker returns the checker for a frequency, and false when the
// frequency is unknown.
func GetActivityChecker(frequency core.Frequency) (ActivityChecker, bool) {
	checker, ok := activityStrategies[frequency]
	return checker, ok
}

// RegisterActivityChecker adds or replaces the checker for a frequency.
// Registration is not synchronized; call it during program start-up.
func RegisterActivityChecker(frequency core.Frequency, checker ActivityChecker) {
	activityStrategies[frequency] = checker
}

// IsActiveInMonth reports whether term makes the commitment due in target.
//
// Only the start month is checked, not the end: callers passing a term that
// was not resolved for target must check term.Covers(target) themselves.
// Unknown frequencies are treated as active.
func IsActiveInMonth(term core.Term, target core.Period) bool {
	monthsDiff := target.MonthsSince(term.StartPeriod())
	if monthsDiff < 0 {
		return false
	}
	checker, ok := GetActivityChecker(term.Frequency)
	if !ok {
		return true
	}
	return checker.IsActive(monthsDiff)
}
