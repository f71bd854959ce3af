package http

import (
	"time"

	"github.com/shopspring/decimal"

	"finansheet/internal/core"
	"finansheet/internal/schedule"
	"finansheet/internal/services"
)

// JSON views of domain values. Amounts are decimal strings so no precision
// is lost in transit.

type TermView struct {
	ID                int64   `json:"id"`
	Version           int     `json:"version"`
	EffectiveFrom     string  `json:"effective_from"`
	EffectiveUntil    *string `json:"effective_until,omitempty"`
	Frequency         string  `json:"frequency"`
	Amount            string  `json:"amount"`
	AmountInBase      *string `json:"amount_in_base,omitempty"`
	Currency          string  `json:"currency"`
	InstallmentsCount *int    `json:"installments_count,omitempty"`
	IsDividedAmount   bool    `json:"is_divided_amount"`
	PerPeriodAmount   string  `json:"per_period_amount"`
	DueDay            int     `json:"due_day"`
}

type CommitmentView struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	FlowType           string     `json:"flow_type"`
	CategoryID         *int64     `json:"category_id,omitempty"`
	IsImportant        bool       `json:"is_important"`
	CreatedAt          time.Time  `json:"created_at"`
	LinkedCommitmentID *int64     `json:"linked_commitment_id,omitempty"`
	Terms              []TermView `json:"terms"`
}

// RankedView is a commitment in the prioritized list.
type RankedView struct {
	CommitmentView
	Priority int    `json:"priority"`
	DueDay   *int   `json:"due_day,omitempty"`
	Amount   string `json:"amount"`
}

type PaymentView struct {
	ID           int64   `json:"id"`
	CommitmentID int64   `json:"commitment_id"`
	Period       string  `json:"period"`
	PaymentDate  *string `json:"payment_date,omitempty"`
	Amount       string  `json:"amount"`
	AmountInBase *string `json:"amount_in_base,omitempty"`
	Currency     string  `json:"currency"`
	Paid         bool    `json:"paid"`
}

type CellView struct {
	Period        string  `json:"period"`
	Status        string  `json:"status"`
	Amount        string  `json:"amount,omitempty"`
	TermVersion   int     `json:"term_version,omitempty"`
	DueDate       string  `json:"due_date,omitempty"`
	DaysOverdue   int     `json:"days_overdue,omitempty"`
	DaysRemaining int     `json:"days_remaining,omitempty"`
	Installment   *int    `json:"installment,omitempty"`
	Installments  int     `json:"installments,omitempty"`
	PaymentID     int64   `json:"payment_id,omitempty"`
	PaymentDate   *string `json:"payment_date,omitempty"`
	PaidOnTime    *bool   `json:"paid_on_time,omitempty"`
}

type RowView struct {
	Commitment CommitmentView `json:"commitment"`
	Priority   int            `json:"priority"`
	Cells      []CellView     `json:"cells"`
	// LinkedNet holds, per month, the net with the linked commitment.
	LinkedNet []string `json:"linked_net,omitempty"`
}

type TotalsView struct {
	Period          string `json:"period"`
	ExpectedIncome  string `json:"expected_income"`
	ExpectedExpense string `json:"expected_expense"`
	PaidIncome      string `json:"paid_income"`
	PaidExpense     string `json:"paid_expense"`
	Net             string `json:"net"`
	Outstanding     string `json:"outstanding"`
}

type GridView struct {
	Months []string     `json:"months"`
	Today  string       `json:"today"`
	Rows   []RowView    `json:"rows"`
	Totals []TotalsView `json:"totals"`
}

type AnomalyView struct {
	CommitmentID int64  `json:"commitment_id"`
	Period       string `json:"period"`
	Amount       string `json:"amount"`
}

type SummaryView struct {
	Period    string         `json:"period"`
	Totals    TotalsView     `json:"totals"`
	Counts    map[string]int `json:"counts"`
	Anomalies []AnomalyView  `json:"anomalies"`
}

func amountString(d decimal.Decimal) string {
	return d.String()
}

func nullAmountString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func dateString(d *core.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func NewTermView(t core.Term) TermView {
	return TermView{
		ID:                t.ID,
		Version:           t.Version,
		EffectiveFrom:     t.EffectiveFrom.String(),
		EffectiveUntil:    dateString(t.EffectiveUntil),
		Frequency:         string(t.Frequency),
		Amount:            amountString(t.AmountOriginal),
		AmountInBase:      nullAmountString(t.AmountInBase),
		Currency:          t.CurrencyOriginal,
		InstallmentsCount: t.InstallmentsCount,
		IsDividedAmount:   t.IsDividedAmount,
		PerPeriodAmount:   amountString(t.PerPeriodAmount()),
		DueDay:            t.DueDayOfMonth,
	}
}

func NewCommitmentView(c core.Commitment) CommitmentView {
	v := CommitmentView{
		ID:                 c.ID,
		Name:               c.Name,
		FlowType:           string(c.FlowType),
		CategoryID:         c.CategoryID,
		IsImportant:        c.IsImportant,
		CreatedAt:          c.CreatedAt,
		LinkedCommitmentID: c.LinkedCommitmentID,
		Terms:              make([]TermView, 0, len(c.Terms)),
	}
	for _, t := range c.Terms {
		v.Terms = append(v.Terms, NewTermView(t))
	}
	return v
}

func NewRankedView(r schedule.Ranked) RankedView {
	v := RankedView{
		CommitmentView: NewCommitmentView(r.Commitment),
		Priority:       r.Priority,
		Amount:         amountString(r.Amount),
	}
	if r.DueDay >= 1 && r.DueDay <= 31 {
		day := r.DueDay
		v.DueDay = &day
	}
	return v
}

func NewPaymentView(p core.Payment) PaymentView {
	return PaymentView{
		ID:           p.ID,
		CommitmentID: p.CommitmentID,
		Period:       p.Period.String(),
		PaymentDate:  dateString(p.PaymentDate),
		Amount:       amountString(p.AmountOriginal),
		AmountInBase: nullAmountString(p.AmountInBase),
		Currency:     p.CurrencyOriginal,
		Paid:         p.IsCompleted(),
	}
}

func NewCellView(c schedule.Cell) CellView {
	v := CellView{
		Period:      c.Period.String(),
		Status:      string(c.Status),
		Installment: c.Installment,
	}
	if c.Status.Counted() {
		v.Amount = amountString(c.DisplayAmount)
	}
	if c.Term != nil {
		v.TermVersion = c.Term.Version
		v.Installments = c.Term.Installments()
		v.DueDate = c.DueDate.String()
	}
	v.DaysOverdue = c.DaysOverdue
	v.DaysRemaining = c.DaysRemaining
	if c.Payment.HasRecord {
		v.PaymentID = c.Payment.PaymentID
		v.PaymentDate = dateString(c.Payment.PaymentDate)
		if c.Payment.IsPaid {
			onTime := c.Payment.PaidOnTime
			v.PaidOnTime = &onTime
		}
	}
	return v
}

func NewTotalsView(t core.MonthTotals) TotalsView {
	return TotalsView{
		Period:          t.Period.String(),
		ExpectedIncome:  amountString(t.ExpectedIncome),
		ExpectedExpense: amountString(t.ExpectedExpense),
		PaidIncome:      amountString(t.PaidIncome),
		PaidExpense:     amountString(t.PaidExpense),
		Net:             amountString(t.Net()),
		Outstanding:     amountString(t.Outstanding()),
	}
}

func NewGridView(g *schedule.Grid) GridView {
	v := GridView{
		Months: make([]string, len(g.Months)),
		Today:  g.Today.String(),
		Rows:   make([]RowView, 0, len(g.Rows)),
		Totals: make([]TotalsView, 0, len(g.Totals)),
	}
	for i, m := range g.Months {
		v.Months[i] = m.String()
	}
	for _, row := range g.Rows {
		rv := RowView{
			Commitment: NewCommitmentView(row.Commitment),
			Priority:   row.Priority,
			Cells:      make([]CellView, len(row.Cells)),
		}
		for i, cell := range row.Cells {
			rv.Cells[i] = NewCellView(cell)
		}
		if row.Commitment.LinkedCommitmentID != nil {
			for i := range g.Months {
				net, ok := g.LinkedNet(row.Commitment.ID, i)
				if !ok {
					rv.LinkedNet = nil
					break
				}
				rv.LinkedNet = append(rv.LinkedNet, amountString(net))
			}
		}
		v.Rows = append(v.Rows, rv)
	}
	for _, t := range g.Totals {
		v.Totals = append(v.Totals, NewTotalsView(t))
	}
	return v
}

func NewSummaryView(s services.MonthSummary) SummaryView {
	v := SummaryView{
		Period:    s.Period.String(),
		Totals:    NewTotalsView(s.Totals),
		Counts:    make(map[string]int, len(s.Counts)),
		Anomalies: make([]AnomalyView, 0, len(s.Anomalies)),
	}
	for status, n := range s.Counts {
		v.Counts[string(status)] = n
	}
	for _, a := range s.Anomalies {
		v.Anomalies = append(v.Anomalies, AnomalyView{
			CommitmentID: a.CommitmentID,
			Period:       a.Cell.Period.String(),
			Amount:       amountString(a.Cell.DisplayAmount),
		})
	}
	return v
}
