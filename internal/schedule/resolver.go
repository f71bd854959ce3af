// Package schedule derives per-month commitment status from terms and
// payments. Everything here is a pure function of its inputs; "today" is
// always passed in.
package schedule

import "finansheet/internal/core"

// Source tells how a term was obtained for a period.
type Source int

const (
	// SourceNone means no term covers the period (a gap).
	SourceNone Source = iota
	// SourceHistory means the term was found in the full term history.
	SourceHistory
	// SourceActiveTerm means history was unavailable and the cached active
	// term was used instead. It is not scoped to the period.
	SourceActiveTerm
)

func (s Source) String() string {
	switch s {
	case SourceHistory:
		return "history"
	case SourceActiveTerm:
		return "active_term"
	default:
		return "none"
	}
}

// Resolution is the outcome of resolving a commitment's term for a period.
type Resolution struct {
	Term   *core.Term
	Source Source
	Period core.Period
}

// Found reports whether a term was returned.
func (r Resolution) Found() bool {
	return r.Term != nil
}

// Trusted reports whether the term can be relied on for the period. A
// history term always can; the cached active term only when its own range
// covers the period.
func (r Resolution) Trusted() bool {
	switch r.Source {
	case SourceHistory:
		return true
	case SourceActiveTerm:
		return r.Term != nil && r.Term.Covers(r.Period)
	}
	return false
}

// ResolveTermForPeriod finds the term effective for target.
//
// With a term history the first term whose year-month range contains target
// wins; collection order breaks ties, which cannot happen for commitments
// without overlapping terms. Without history the cached active term is
// returned as a degraded approximation.
func ResolveTermForPeriod(c core.Commitment, target core.Period) Resolution {
	if !c.HasTermHistory() {
		if c.ActiveTerm == nil {
			return Resolution{Source: SourceNone, Period: target}
		}
		return Resolution{Term: c.ActiveTerm, Source: SourceActiveTerm, Period: target}
	}
	for i := range c.Terms {
		if c.Terms[i].Covers(target) {
			return Resolution{Term: &c.Terms[i], Source: SourceHistory, Period: target}
		}
	}
	return Resolution{Source: SourceNone, Period: target}
}

// ActiveTermAt returns the term covering the given period from the history,
// falling back to the cached active term. Storage uses it to refresh the
// cached field.
func ActiveTermAt(c core.Commitment, p core.Period) *core.Term {
	res := ResolveTermForPeriod(c, p)
	if !res.Trusted() {
		return nil
	}
	return res.Term
}
