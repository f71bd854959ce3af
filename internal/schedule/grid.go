package schedule

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"finansheet/internal/core"
)

// Options configure grid construction.
type Options struct {
	Match        MatchOptions
	Locale       language.Tag
	RecentWindow time.Duration
}

// Row is one commitment across the visible months.
type Row struct {
	Commitment core.Commitment
	Priority   int
	Cells      []Cell
}

// Grid is the calendar view: commitments as rows, months as columns.
type Grid struct {
	Months []core.Period
	Today  core.Date
	Rows   []Row
	Totals []core.MonthTotals

	index map[int64]int
}

// BuildGrid derives every cell for the given months. Rows are ordered by the
// priority sorter evaluated at now. The visible months are the caller's
// choice; BuildGrid does not pick a range.
func BuildGrid(commitments []core.Commitment, payments map[int64][]core.Payment, months []core.Period, now time.Time, opts Options) *Grid {
	today := core.DateOf(now)
	sorter := Sorter{Now: now, Match: opts.Match, Locale: opts.Locale, RecentWindow: opts.RecentWindow}
	ranked := sorter.Sort(commitments, payments)

	g := &Grid{
		Months: months,
		Today:  today,
		Rows:   make([]Row, len(ranked)),
		Totals: make([]core.MonthTotals, len(months)),
		index:  make(map[int64]int, len(ranked)),
	}
	for i, m := range months {
		g.Totals[i].Period = m
	}

	for i, r := range ranked {
		c := r.Commitment
		row := Row{Commitment: c, Priority: r.Priority, Cells: make([]Cell, len(months))}
		for j, m := range months {
			cell := BuildCell(c, payments[c.ID], m, today, opts.Match)
			row.Cells[j] = cell
			if cell.Status.Counted() {
				g.Totals[j].Add(c.FlowType, cell.DisplayAmount, cell.Payment.IsPaid)
			}
		}
		g.Rows[i] = row
		g.index[c.ID] = i
	}
	return g
}

// BuildCell runs the resolver, classifier, matcher and synthesizer for one
// commitment and month.
func BuildCell(c core.Commitment, payments []core.Payment, target core.Period, today core.Date, opts MatchOptions) Cell {
	res := ResolveTermForPeriod(c, target)
	var term *core.Term
	if res.Trusted() {
		term = res.Term
	}

	active := false
	dueDay := 1
	if term != nil {
		active = IsActiveInMonth(*term, target)
		dueDay = term.DueDayOfMonth
	} else if latest := c.LatestTerm(); latest != nil {
		dueDay = latest.DueDayOfMonth
	}

	match := MatchPayment(payments, target, dueDay, opts)
	return SynthesizeStatus(term, active, match, target, today)
}

// Row returns the row of a commitment.
func (g *Grid) Row(id int64) (Row, bool) {
	i, ok := g.index[id]
	if !ok {
		return Row{}, false
	}
	return g.Rows[i], true
}

// LinkedNet returns the signed net of a commitment and the commitment it is
// linked to for month i (income positive, expenses negative). ok is false
// when the commitment has no link or either side is not in the grid.
func (g *Grid) LinkedNet(id int64, i int) (decimal.Decimal, bool) {
	row, ok := g.Row(id)
	if !ok || row.Commitment.LinkedCommitmentID == nil || i < 0 || i >= len(g.Months) {
		return decimal.Zero, false
	}
	linked, ok := g.Row(*row.Commitment.LinkedCommitmentID)
	if !ok {
		return decimal.Zero, false
	}
	return signedAmount(row, i).Add(signedAmount(linked, i)), true
}

// Anomaly is an orphan payment: recorded for a month no term covers.
type Anomaly struct {
	CommitmentID int64
	Cell         Cell
}

// Anomalies returns every orphan cell in the grid.
func (g *Grid) Anomalies() []Anomaly {
	var out []Anomaly
	for _, row := range g.Rows {
		for _, cell := range row.Cells {
			if cell.Status == StatusOrphan {
				out = append(out, Anomaly{CommitmentID: row.Commitment.ID, Cell: cell})
			}
		}
	}
	return out
}

func signedAmount(row Row, i int) decimal.Decimal {
	cell := row.Cells[i]
	if !cell.Status.Counted() {
		return decimal.Zero
	}
	return cell.DisplayAmount.Mul(row.Commitment.FlowType.Sign())
}
