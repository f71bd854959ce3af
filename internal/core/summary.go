package core

import "github.com/shopspring/decimal"

// MonthTotals aggregates a grid column. Expected amounts include every
// due or paid cell; paid amounts only completed payments.
type MonthTotals struct {
	Period          Period
	ExpectedIncome  decimal.Decimal
	ExpectedExpense decimal.Decimal
	PaidIncome      decimal.Decimal
	PaidExpense     decimal.Decimal
}

// Add accumulates one cell amount into the totals.
func (t *MonthTotals) Add(flow FlowType, amount decimal.Decimal, paid bool) {
	switch flow {
	case Income:
		t.ExpectedIncome = t.ExpectedIncome.Add(amount)
		if paid {
			t.PaidIncome = t.PaidIncome.Add(amount)
		}
	case Expense:
		t.ExpectedExpense = t.ExpectedExpense.Add(amount)
		if paid {
			t.PaidExpense = t.PaidExpense.Add(amount)
		}
	}
}

// Net is expected income minus expected expenses.
func (t MonthTotals) Net() decimal.Decimal {
	return t.ExpectedIncome.Sub(t.ExpectedExpense)
}

// Outstanding is what is still to be paid out this month.
func (t MonthTotals) Outstanding() decimal.Decimal {
	return t.ExpectedExpense.Sub(t.PaidExpense)
}
