package schedule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finansheet/internal/core"
)

func householdFixture() ([]core.Commitment, map[int64][]core.Payment) {
	salaryTerm := monthlyTerm(1, "2024-01-01", nil)
	salaryTerm.DueDayOfMonth = 1
	salaryTerm.AmountOriginal = decimal.NewFromInt(1000000)
	salary := core.Commitment{ID: 1, Name: "Sueldo", FlowType: core.Income, Terms: []core.Term{salaryTerm}}

	rent := rentCommitment()
	rent.LinkedCommitmentID = &salary.ID

	gymTerm := monthlyTerm(1, "2024-01-10", datePtr("2024-03-10"))
	gym := core.Commitment{ID: 3, Name: "Gimnasio", FlowType: core.Expense, Terms: []core.Term{gymTerm}}

	may := core.NewPeriod(2024, 5)
	payments := map[int64][]core.Payment{
		1: {paidPayment(1, may, "2024-05-01", 1000000)},
		3: {paidPayment(3, may, "2024-05-12", 50000)},
	}
	return []core.Commitment{salary, rent, gym}, payments
}

func TestBuildGrid(t *testing.T) {
	commitments, payments := householdFixture()
	months := core.PeriodRange(core.NewPeriod(2024, 4), 3)

	g := BuildGrid(commitments, payments, months, at("2024-05-10"), Options{Match: clp})
	require.Len(t, g.Rows, 3)
	assert.Equal(t, "2024-05-10", g.Today.String())

	var order []int64
	for _, r := range g.Rows {
		order = append(order, r.Commitment.ID)
		assert.Len(t, r.Cells, len(months))
	}
	// both paid rows rank last; the gym has no current term so its due day
	// sorts after the salary's
	assert.Equal(t, []int64{2, 1, 3}, order, "overdue rent, then paid salary, then the paid orphan gym")

	salary, ok := g.Row(1)
	require.True(t, ok)
	assert.Equal(t, PriorityPaid, salary.Priority)
	assert.Equal(t, []Status{StatusOverdue, StatusPaid, StatusScheduled},
		[]Status{salary.Cells[0].Status, salary.Cells[1].Status, salary.Cells[2].Status})

	gym, ok := g.Row(3)
	require.True(t, ok)
	assert.Equal(t, PriorityPaid, gym.Priority)
	assert.Equal(t, []Status{StatusGap, StatusOrphan, StatusGap},
		[]Status{gym.Cells[0].Status, gym.Cells[1].Status, gym.Cells[2].Status})

	_, ok = g.Row(99)
	assert.False(t, ok)
}

func TestBuildGrid_Totals(t *testing.T) {
	commitments, payments := householdFixture()
	months := core.PeriodRange(core.NewPeriod(2024, 4), 3)

	g := BuildGrid(commitments, payments, months, at("2024-05-10"), Options{Match: clp})
	require.Len(t, g.Totals, 3)

	may := g.Totals[1]
	assert.Equal(t, core.NewPeriod(2024, 5), may.Period)
	assertAmount(t, "1000000", may.ExpectedIncome)
	assertAmount(t, "1000000", may.PaidIncome)
	assertAmount(t, "450000", may.ExpectedExpense)
	assertAmount(t, "50000", may.PaidExpense)
	assertAmount(t, "550000", may.Net())
	assertAmount(t, "400000", may.Outstanding())

	june := g.Totals[2]
	assertAmount(t, "1000000", june.ExpectedIncome)
	assertAmount(t, "400000", june.ExpectedExpense)
	assertAmount(t, "0", june.PaidExpense)
}

func TestGrid_LinkedNet(t *testing.T) {
	commitments, payments := householdFixture()
	months := core.PeriodRange(core.NewPeriod(2024, 4), 3)
	g := BuildGrid(commitments, payments, months, at("2024-05-10"), Options{Match: clp})

	for i := range months {
		net, ok := g.LinkedNet(2, i)
		require.True(t, ok)
		assertAmount(t, "600000", net)
	}

	_, ok := g.LinkedNet(1, 0)
	assert.False(t, ok, "salary has no link of its own")
	_, ok = g.LinkedNet(2, len(months))
	assert.False(t, ok)
}

func TestGrid_Anomalies(t *testing.T) {
	commitments, payments := householdFixture()
	months := core.PeriodRange(core.NewPeriod(2024, 4), 3)
	g := BuildGrid(commitments, payments, months, at("2024-05-10"), Options{Match: clp})

	anomalies := g.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, int64(3), anomalies[0].CommitmentID)
	assert.Equal(t, core.NewPeriod(2024, 5), anomalies[0].Cell.Period)
	assertAmount(t, "50000", anomalies[0].Cell.DisplayAmount)
}

func TestBuildGrid_Empty(t *testing.T) {
	g := BuildGrid(nil, nil, core.PeriodRange(core.NewPeriod(2024, 1), 2), at("2024-01-15"), Options{})
	assert.Empty(t, g.Rows)
	require.Len(t, g.Totals, 2)
	assert.True(t, g.Totals[0].Net().IsZero())
	assert.Empty(t, g.Anomalies())
}
