package core

import (
	"errors"
	"fmt"
)

var (
	ErrTermOrder       = errors.New("new term must start after the latest term")
	ErrNothingToPause  = errors.New("no term covers the pause month")
	ErrNothingToResume = errors.New("commitment has no terms")
	ErrNotPaused       = errors.New("commitment is not paused")
)

// TermChange is an edit to a term history: at most one existing term gets a
// new end date and at most one term is added.
type TermChange struct {
	Closed *Term
	Added  *Term
}

// Apply returns a copy of terms with the change applied.
func (ch TermChange) Apply(terms []Term) []Term {
	out := make([]Term, 0, len(terms)+1)
	for _, t := range terms {
		if ch.Closed != nil && t.Version == ch.Closed.Version {
			t = *ch.Closed
		}
		out = append(out, t)
	}
	if ch.Added != nil {
		out = append(out, *ch.Added)
	}
	return out
}

// PlanNewTerm adds t as the next version. The previous latest term is closed
// at the end of the month before t starts when it would otherwise overlap.
func PlanNewTerm(terms []Term, t Term) (TermChange, error) {
	t.ID = 0
	t.Version = 1
	if err := t.Validate(); err != nil {
		return TermChange{}, err
	}

	var ch TermChange
	if latest := (Commitment{Terms: terms}).LatestTerm(); latest != nil {
		if !t.StartPeriod().After(latest.StartPeriod()) {
			return TermChange{}, fmt.Errorf("%w: %s is not after %s", ErrTermOrder, t.StartPeriod(), latest.StartPeriod())
		}
		t.Version = latest.Version + 1
		if end, ok := latest.EndPeriod(); !ok || !end.Before(t.StartPeriod()) {
			closed := closeBefore(*latest, t.StartPeriod())
			ch.Closed = &closed
		}
	}
	ch.Added = &t
	return ch, checkHistory(ch.Apply(terms))
}

// PlanPause closes the term covering from at the end of the previous month.
func PlanPause(terms []Term, from Period) (TermChange, error) {
	for i := range terms {
		if !terms[i].Covers(from) {
			continue
		}
		if !terms[i].StartPeriod().Before(from) {
			return TermChange{}, fmt.Errorf("%w: term v%d starts in %s", ErrTermRange, terms[i].Version, from)
		}
		closed := closeBefore(terms[i], from)
		return TermChange{Closed: &closed}, nil
	}
	return TermChange{}, fmt.Errorf("%w: %s", ErrNothingToPause, from)
}

// PlanResume starts a copy of the latest term in from, on the latest term's
// start day clamped to the month. The latest term must have ended before
// from.
func PlanResume(terms []Term, from Period) (TermChange, error) {
	latest := (Commitment{Terms: terms}).LatestTerm()
	if latest == nil {
		return TermChange{}, ErrNothingToResume
	}
	if end, ok := latest.EndPeriod(); !ok || !end.Before(from) {
		return TermChange{}, fmt.Errorf("%w at %s", ErrNotPaused, from)
	}

	t := *latest
	t.ID = 0
	t.Version = latest.Version + 1
	t.EffectiveFrom = from.DueDate(latest.EffectiveFrom.Day())
	t.EffectiveUntil = nil
	ch := TermChange{Added: &t}
	return ch, checkHistory(ch.Apply(terms))
}

func closeBefore(t Term, start Period) Term {
	until := start.AddMonths(-1).LastDay()
	t.EffectiveUntil = &until
	return t
}

func checkHistory(terms []Term) error {
	c := Commitment{Name: "-", FlowType: Expense, Terms: terms}
	return c.Validate()
}
