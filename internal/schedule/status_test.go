package schedule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finansheet/internal/core"
)

func rentCommitment() core.Commitment {
	term := monthlyTerm(1, "2024-01-05", nil)
	term.DueDayOfMonth = 5
	term.AmountOriginal = decimal.NewFromInt(400000)
	return core.Commitment{ID: 2, Name: "Arriendo", FlowType: core.Expense, Terms: []core.Term{term}}
}

func TestBuildCell_Statuses(t *testing.T) {
	c := rentCommitment()
	june := core.NewPeriod(2024, 6)

	tests := []struct {
		name     string
		payments []core.Payment
		target   core.Period
		today    string
		want     Status
		overdue  int
		remain   int
	}{
		{name: "overdue this month", target: june, today: "2024-06-20", want: StatusOverdue, overdue: 15},
		{name: "overdue past month", target: core.NewPeriod(2024, 4), today: "2024-06-20", want: StatusOverdue, overdue: 76},
		{name: "pending before due day", target: june, today: "2024-06-03", want: StatusPending, remain: 2},
		{name: "pending on due day", target: june, today: "2024-06-05", want: StatusPending},
		{name: "scheduled future month", target: core.NewPeriod(2024, 8), today: "2024-06-20", want: StatusScheduled},
		{
			name:     "paid",
			payments: []core.Payment{paidPayment(2, june, "2024-06-04", 400000)},
			target:   june, today: "2024-06-20", want: StatusPaid,
		},
		{name: "gap before first term", target: core.NewPeriod(2023, 11), today: "2024-06-20", want: StatusGap},
		{
			name:     "orphan before first term",
			payments: []core.Payment{paidPayment(2, core.NewPeriod(2023, 11), "2023-11-05", 380000)},
			target:   core.NewPeriod(2023, 11), today: "2024-06-20", want: StatusOrphan,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell := BuildCell(c, tt.payments, tt.target, core.MustParseDate(tt.today), clp)
			assert.Equal(t, tt.want, cell.Status)
			assert.Equal(t, tt.overdue, cell.DaysOverdue)
			assert.Equal(t, tt.remain, cell.DaysRemaining)
			assert.Equal(t, tt.target, cell.Period)
		})
	}
}

func TestBuildCell_PaidOnTimeVersusLate(t *testing.T) {
	c := rentCommitment()
	c.Terms[0].DueDayOfMonth = 10
	march := core.NewPeriod(2024, 3)
	today := core.MustParseDate("2024-04-01")

	onTime := BuildCell(c, []core.Payment{paidPayment(2, march, "2024-03-08", 400000)}, march, today, clp)
	assert.Equal(t, StatusPaid, onTime.Status)
	assert.True(t, onTime.Payment.PaidOnTime)

	late := BuildCell(c, []core.Payment{paidPayment(2, march, "2024-03-15", 400000)}, march, today, clp)
	assert.Equal(t, StatusPaid, late.Status)
	assert.False(t, late.Payment.PaidOnTime)
	assert.Zero(t, late.DaysOverdue)
}

func TestBuildCell_GapThenResumed(t *testing.T) {
	c := gapCommitment()
	today := core.MustParseDate("2024-08-20")

	may := BuildCell(c, nil, core.NewPeriod(2024, 5), today, clp)
	assert.Equal(t, StatusGap, may.Status)
	assert.Nil(t, may.Term)
	assert.False(t, may.Status.Counted())

	july := BuildCell(c, nil, core.NewPeriod(2024, 7), today, clp)
	require.NotNil(t, july.Term)
	assert.Equal(t, 2, july.Term.Version)
	assert.Equal(t, StatusOverdue, july.Status)
}

func TestBuildCell_InactiveMonth(t *testing.T) {
	c := rentCommitment()
	c.Terms[0].Frequency = core.Quarterly
	today := core.MustParseDate("2024-06-20")

	cell := BuildCell(c, nil, core.NewPeriod(2024, 2), today, clp)
	assert.Equal(t, StatusInactive, cell.Status)
	assert.False(t, cell.IsActive)
	assert.False(t, cell.Status.Counted())

	paid := BuildCell(c, []core.Payment{paidPayment(2, core.NewPeriod(2024, 2), "2024-02-03", 400000)}, core.NewPeriod(2024, 2), today, clp)
	assert.Equal(t, StatusPaid, paid.Status, "a payment in an off month still shows as paid")
}

func TestBuildCell_RegisteredButUnpaidIsNotPaid(t *testing.T) {
	c := rentCommitment()
	june := core.NewPeriod(2024, 6)
	p := paidPayment(2, june, "2024-06-01", 410000)
	p.PaymentDate = nil

	cell := BuildCell(c, []core.Payment{p}, june, core.MustParseDate("2024-06-20"), clp)
	assert.Equal(t, StatusOverdue, cell.Status)
	assertAmount(t, "410000", cell.DisplayAmount)
}

func TestBuildCell_Installments(t *testing.T) {
	term := monthlyTerm(1, "2024-01-05", nil)
	term.AmountOriginal = decimal.NewFromInt(120000)
	term.InstallmentsCount = intPtr(4)
	term.IsDividedAmount = true
	c := core.Commitment{ID: 5, Name: "Notebook", FlowType: core.Expense, Terms: []core.Term{term}}
	today := core.MustParseDate("2024-01-20")

	jan := BuildCell(c, nil, core.NewPeriod(2024, 1), today, clp)
	require.NotNil(t, jan.Installment)
	assert.Equal(t, 1, *jan.Installment)
	assertAmount(t, "120000", jan.TotalAmount)
	assertAmount(t, "30000", jan.PerPeriodAmount)
	assertAmount(t, "30000", jan.DisplayAmount)

	apr := BuildCell(c, nil, core.NewPeriod(2024, 4), today, clp)
	require.NotNil(t, apr.Installment)
	assert.Equal(t, 4, *apr.Installment)

	may := BuildCell(c, nil, core.NewPeriod(2024, 5), today, clp)
	assert.Nil(t, may.Installment)

	term.IsDividedAmount = false
	assertAmount(t, "120000", term.PerPeriodAmount())
}

func TestInstallmentNumber(t *testing.T) {
	term := monthlyTerm(1, "2024-01-05", nil)
	term.InstallmentsCount = intPtr(3)

	assert.Nil(t, InstallmentNumber(term, core.NewPeriod(2023, 12)))
	assert.Equal(t, intPtr(1), InstallmentNumber(term, core.NewPeriod(2024, 1)))
	assert.Equal(t, intPtr(3), InstallmentNumber(term, core.NewPeriod(2024, 3)))
	assert.Nil(t, InstallmentNumber(term, core.NewPeriod(2024, 5)))

	term.InstallmentsCount = nil
	assert.Nil(t, InstallmentNumber(term, core.NewPeriod(2024, 1)))
}

func TestBuildCell_DueDayClampedToMonthEnd(t *testing.T) {
	c := rentCommitment()
	c.Terms[0].DueDayOfMonth = 31

	cell := BuildCell(c, nil, core.NewPeriod(2024, 2), core.MustParseDate("2024-02-10"), clp)
	assert.Equal(t, "2024-02-29", cell.DueDate.String())
	assert.Equal(t, StatusPending, cell.Status)
	assert.Equal(t, 19, cell.DaysRemaining)
}

func TestBuildCell_DegradedActiveTermOutsideRangeIsGap(t *testing.T) {
	active := monthlyTerm(3, "2024-04-01", datePtr("2024-09-30"))
	c := core.Commitment{ID: 7, Name: "Seguro", FlowType: core.Expense, ActiveTerm: &active}
	today := core.MustParseDate("2024-06-20")

	inRange := BuildCell(c, nil, core.NewPeriod(2024, 5), today, clp)
	assert.Equal(t, StatusOverdue, inRange.Status)

	outside := BuildCell(c, nil, core.NewPeriod(2024, 12), today, clp)
	assert.Equal(t, StatusGap, outside.Status)
}

func TestBuildCell_Idempotent(t *testing.T) {
	c := rentCommitment()
	payments := []core.Payment{paidPayment(2, core.NewPeriod(2024, 6), "2024-06-07", 400000)}
	today := core.MustParseDate("2024-06-20")

	first := BuildCell(c, payments, core.NewPeriod(2024, 6), today, clp)
	second := BuildCell(c, payments, core.NewPeriod(2024, 6), today, clp)
	assert.Equal(t, first, second)
}
