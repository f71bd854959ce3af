package schedule

import (
	"github.com/shopspring/decimal"

	"finansheet/internal/core"
)

// Status is the display state of one grid cell.
type Status string

const (
	// StatusGap: no term and no payment for the period.
	StatusGap Status = "GAP"
	// StatusOrphan: a payment exists but no term covers the period.
	StatusOrphan    Status = "ORPHAN"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusPending   Status = "PENDING"
	StatusScheduled Status = "SCHEDULED"
	// StatusInactive: a term covers the period but the commitment is not due
	// that month (e.g. the off months of a quarterly bill).
	StatusInactive Status = "INACTIVE"
)

// Counted reports whether the cell contributes an amount to the month's
// totals.
func (s Status) Counted() bool {
	switch s {
	case StatusPaid, StatusOverdue, StatusPending, StatusScheduled, StatusOrphan:
		return true
	}
	return false
}

// Cell is the derived status of one commitment in one month.
type Cell struct {
	Period   core.Period
	Status   Status
	Term     *core.Term
	IsActive bool
	Payment  PaymentMatch

	TotalAmount     decimal.Decimal
	PerPeriodAmount decimal.Decimal
	// DisplayAmount is the recorded payment amount when there is a record,
	// the projected per-period amount otherwise.
	DisplayAmount decimal.Decimal
	// Installment is the 1-based cuota number, nil when the term has no
	// installment count or the month is outside it.
	Installment *int

	DueDate       core.Date
	DaysOverdue   int
	DaysRemaining int
}

// SynthesizeStatus combines the resolved term, its activity and the payment
// match into a cell. term is nil for a gap.
func SynthesizeStatus(term *core.Term, active bool, match PaymentMatch, target core.Period, today core.Date) Cell {
	c := Cell{
		Period:   target,
		Term:     term,
		IsActive: active,
		Payment:  match,
	}

	if term == nil {
		if !match.HasRecord {
			c.Status = StatusGap
			return c
		}
		c.Status = StatusOrphan
		c.DisplayAmount = recordedAmount(match)
		return c
	}

	c.TotalAmount = term.TotalAmount()
	c.PerPeriodAmount = term.PerPeriodAmount()
	c.DisplayAmount = c.PerPeriodAmount
	if match.HasRecord {
		c.DisplayAmount = recordedAmount(match)
	}
	c.Installment = InstallmentNumber(*term, target)
	c.DueDate = target.DueDate(term.DueDayOfMonth)

	if !active && !match.IsPaid {
		c.Status = StatusInactive
		return c
	}

	current := today.Period()
	switch {
	case match.IsPaid:
		c.Status = StatusPaid
	case c.DueDate.Before(today.Time) && !target.After(current):
		c.Status = StatusOverdue
		c.DaysOverdue = c.DueDate.DaysUntil(today)
	case target == current:
		c.Status = StatusPending
		c.DaysRemaining = max(0, today.DaysUntil(c.DueDate))
	default:
		c.Status = StatusScheduled
	}
	return c
}

// InstallmentNumber returns the cuota number of target within term, or nil
// when it falls outside 1..InstallmentsCount.
func InstallmentNumber(term core.Term, target core.Period) *int {
	count := term.Installments()
	if count == 0 {
		return nil
	}
	n := target.MonthsSince(term.StartPeriod()) + 1
	if n < 1 || n > count {
		return nil
	}
	return &n
}

func recordedAmount(m PaymentMatch) decimal.Decimal {
	if m.Amount == nil {
		return decimal.Zero
	}
	return *m.Amount
}
