package google

import (
	"fmt"

	"github.com/shopspring/decimal"

	"finansheet/internal/core"
	"finansheet/internal/schedule"
)

var statusMarkers = map[schedule.Status]string{
	schedule.StatusPaid:      "✓",
	schedule.StatusOverdue:   "!",
	schedule.StatusPending:   "…",
	schedule.StatusScheduled: "",
	schedule.StatusOrphan:    "?",
}

// GridValues lays a grid out as sheet rows: a header with one column per
// month, one row per commitment in grid order, then the monthly totals.
func GridValues(g *schedule.Grid) [][]any {
	header := []any{"Compromiso", "Tipo"}
	for _, m := range g.Months {
		header = append(header, m.String())
	}
	out := [][]any{header}

	for _, row := range g.Rows {
		line := []any{row.Commitment.Name, string(row.Commitment.FlowType)}
		for _, cell := range row.Cells {
			line = append(line, cellValue(cell))
		}
		out = append(out, line)
	}

	income := []any{"Ingresos", ""}
	expense := []any{"Gastos", ""}
	net := []any{"Neto", ""}
	for _, t := range g.Totals {
		income = append(income, amount(t.ExpectedIncome))
		expense = append(expense, amount(t.ExpectedExpense))
		net = append(net, amount(t.Net()))
	}
	return append(out, income, expense, net)
}

func cellValue(c schedule.Cell) string {
	marker, ok := statusMarkers[c.Status]
	if !ok {
		return ""
	}
	v := amount(c.DisplayAmount)
	if c.Installment != nil && c.Term != nil {
		v = fmt.Sprintf("%s (%d/%d)", v, *c.Installment, c.Term.Installments())
	}
	if marker != "" {
		v += " " + marker
	}
	return v
}

func amount(d decimal.Decimal) string {
	return core.FormatAmount(d)
}
