package schedule

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"finansheet/internal/core"
)

// Priority ranks, lowest first.
const (
	PriorityNew       = -2
	PriorityImportant = -1
	PriorityOverdue   = 0
	PriorityPending   = 1
	PriorityPaid      = 2
)

// DefaultRecentWindow is how long a new commitment stays pinned to the top.
const DefaultRecentWindow = 5 * time.Minute

// noDueDay sorts commitments without a term for the current month last
// among equal priorities.
const noDueDay = 32

// Sorter orders commitments by urgency. Priority is always computed against
// Now's month, never the month being viewed, so the order does not change
// while navigating.
type Sorter struct {
	Now          time.Time
	Match        MatchOptions
	Locale       language.Tag
	RecentWindow time.Duration
}

// Ranked is a commitment with the keys it is sorted by.
type Ranked struct {
	Commitment core.Commitment
	Priority   int
	DueDay     int
	Amount     decimal.Decimal
}

// Rank computes the sort keys of c.
func (s Sorter) Rank(c core.Commitment, payments []core.Payment) Ranked {
	period := core.PeriodOf(s.Now)
	today := core.DateOf(s.Now)

	r := Ranked{Commitment: c, DueDay: noDueDay}
	var term *core.Term
	if res := ResolveTermForPeriod(c, period); res.Trusted() {
		term = res.Term
	}
	active := false
	if term != nil {
		r.DueDay = term.DueDayOfMonth
		r.Amount = term.PerPeriodAmount()
		active = IsActiveInMonth(*term, period)
	}
	match := MatchPayment(payments, period, r.DueDay, s.Match)

	window := s.RecentWindow
	if window <= 0 {
		window = DefaultRecentWindow
	}

	switch {
	case match.IsPaid:
		r.Priority = PriorityPaid
	case !c.CreatedAt.IsZero() && s.Now.Sub(c.CreatedAt) < window:
		r.Priority = PriorityNew
	case c.IsImportant:
		r.Priority = PriorityImportant
	case active && period.DueDate(r.DueDay).Before(today.Time):
		r.Priority = PriorityOverdue
	default:
		r.Priority = PriorityPending
	}
	return r
}

// Compare orders a before b (negative), after (positive), or equal only
// when both are the same commitment.
func (s Sorter) Compare(a, b core.Commitment, payments map[int64][]core.Payment) int {
	col := collate.New(s.locale())
	return compareRanked(col, s.Rank(a, payments[a.ID]), s.Rank(b, payments[b.ID]))
}

// Sort returns the commitments ranked and ordered. The input is not
// modified.
func (s Sorter) Sort(commitments []core.Commitment, payments map[int64][]core.Payment) []Ranked {
	ranked := make([]Ranked, len(commitments))
	for i, c := range commitments {
		ranked[i] = s.Rank(c, payments[c.ID])
	}
	col := collate.New(s.locale())
	slices.SortStableFunc(ranked, func(a, b Ranked) int {
		return compareRanked(col, a, b)
	})
	return ranked
}

func (s Sorter) locale() language.Tag {
	if s.Locale == language.Und {
		return language.Spanish
	}
	return s.Locale
}

func compareRanked(col *collate.Collator, a, b Ranked) int {
	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(a.DueDay, b.DueDay); c != 0 {
		return c
	}
	if c := b.Amount.Cmp(a.Amount); c != 0 {
		return c
	}
	if c := col.CompareString(a.Commitment.Name, b.Commitment.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.Commitment.ID, b.Commitment.ID)
}
