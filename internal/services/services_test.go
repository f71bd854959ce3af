package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"finansheet/internal/amqp"
	"finansheet/internal/core"
	"finansheet/internal/schedule"
	"finansheet/internal/sheets/memory"
)

var (
	storeTime = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	today     = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	may       = core.NewPeriod(2024, 5)
)

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	events    []*amqp.CommitmentEvent
	reminders []*amqp.ReminderMessage
}

func (f *fakePublisher) PublishEvent(_ context.Context, e *amqp.CommitmentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) PublishReminder(_ context.Context, m *amqp.ReminderMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reminders = append(f.reminders, m)
	return nil
}

func (f *fakePublisher) eventTypes() []amqp.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]amqp.EventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store       *memory.Store
	dashboard   *DashboardService
	commitments *CommitmentService
	publisher   *fakePublisher
	ids         map[string]int64
}

func monthly(amount int64, due int) core.Term {
	return core.Term{
		EffectiveFrom:    core.NewDate(2024, 5, 1),
		Frequency:        core.Monthly,
		AmountOriginal:   decimal.NewFromInt(amount),
		CurrencyOriginal: "CLP",
		DueDayOfMonth:    due,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewWithClock(func() time.Time { return storeTime })
	pub := &fakePublisher{}
	dash := NewDashboardService(store, store, schedule.Options{
		Match:  schedule.MatchOptions{BaseCurrency: "CLP"},
		Locale: language.Spanish,
	}).WithClock(func() time.Time { return today })
	svc := NewCommitmentService(store, pub, dash, "CLP").WithClock(func() time.Time { return today })

	f := &fixture{store: store, dashboard: dash, commitments: svc, publisher: pub, ids: map[string]int64{}}
	for _, c := range []struct {
		name string
		flow core.FlowType
		term core.Term
	}{
		{"Sueldo", core.Income, monthly(1000000, 1)},
		{"Arriendo", core.Expense, monthly(400000, 5)},
		{"Gimnasio", core.Expense, monthly(30000, 17)},
		{"Internet", core.Expense, monthly(20000, 28)},
	} {
		created, err := svc.CreateCommitment(ctx, core.Commitment{Name: c.name, FlowType: c.flow}, c.term)
		require.NoError(t, err)
		f.ids[c.name] = created.ID
	}

	paid := core.NewDate(2024, 5, 1)
	_, err := svc.RecordPayment(ctx, core.Payment{
		CommitmentID:   f.ids["Sueldo"],
		Period:         may,
		PaymentDate:    &paid,
		AmountOriginal: decimal.NewFromInt(1000000),
	})
	require.NoError(t, err)

	pub.events = nil
	return f
}

func TestCommitmentService_PublishesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.dashboard.Grid(ctx, may, 1)
	require.NoError(t, err)
	require.Equal(t, 1, f.dashboard.GridCache().Size())

	require.NoError(t, f.commitments.SetImportant(ctx, f.ids["Internet"], true))
	assert.Equal(t, 0, f.dashboard.GridCache().Size(), "mutation must drop cached grids")

	require.NoError(t, f.commitments.Pause(ctx, f.ids["Gimnasio"], core.NewPeriod(2024, 7)))
	_, err = f.commitments.Resume(ctx, f.ids["Gimnasio"], core.NewPeriod(2024, 9))
	require.NoError(t, err)
	_, err = f.commitments.AddTerm(ctx, f.ids["Arriendo"], core.Term{
		EffectiveFrom:  core.NewDate(2024, 10, 1),
		Frequency:      core.Monthly,
		AmountOriginal: decimal.NewFromInt(420000),
		DueDayOfMonth:  5,
	})
	require.NoError(t, err)
	require.NoError(t, f.commitments.DeletePayment(ctx, f.ids["Sueldo"], may))
	require.NoError(t, f.commitments.Delete(ctx, f.ids["Internet"]))

	assert.Equal(t, []amqp.EventType{
		amqp.EventImportanceChanged,
		amqp.EventCommitmentPaused,
		amqp.EventCommitmentResumed,
		amqp.EventTermAdded,
		amqp.EventPaymentDeleted,
		amqp.EventCommitmentDeleted,
	}, f.publisher.eventTypes())
	assert.Equal(t, "2024-10", f.publisher.events[3].Period)
	assert.Equal(t, today, f.publisher.events[0].Timestamp)
}

func TestCommitmentService_ErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.commitments.Delete(ctx, 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.commitments.Resume(ctx, f.ids["Arriendo"], core.NewPeriod(2024, 6))
	assert.ErrorIs(t, err, core.ErrNotPaused)

	_, err = f.commitments.CreateCommitment(ctx, core.Commitment{Name: "x", FlowType: core.Expense}, core.Term{
		EffectiveFrom:  core.NewDate(2024, 1, 1),
		Frequency:      core.Monthly,
		AmountOriginal: decimal.NewFromInt(1),
		DueDayOfMonth:  40,
	})
	assert.ErrorIs(t, err, core.ErrInvalidDueDay)
	assert.Empty(t, f.publisher.eventTypes(), "failed changes publish nothing")
}

func TestCommitmentService_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	require.NoError(t, f.commitments.SetImportant(ctx, f.ids["Arriendo"], true))

	withoutBroker := NewCommitmentService(f.store, nil, nil, "CLP")
	require.NoError(t, withoutBroker.SetImportant(ctx, f.ids["Arriendo"], false))
}

func TestCommitmentService_RecordPaymentDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	usd := monthly(10, 20)
	usd.CurrencyOriginal = "USD"
	created, err := f.commitments.CreateCommitment(ctx, core.Commitment{Name: "Hosting", FlowType: core.Expense}, usd)
	require.NoError(t, err)

	p, err := f.commitments.RecordPayment(ctx, core.Payment{
		CommitmentID:   created.ID,
		Period:         may,
		AmountOriginal: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", p.CurrencyOriginal, "currency comes from the term covering the month")
	assert.False(t, p.AmountInBase.Valid)

	p, err = f.commitments.RecordPayment(ctx, core.Payment{
		CommitmentID:   f.ids["Arriendo"],
		Period:         core.NewPeriod(2023, 1),
		AmountOriginal: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "CLP", p.CurrencyOriginal, "orphan months fall back to the base currency")
	require.True(t, p.AmountInBase.Valid)
	assert.True(t, p.AmountInBase.Decimal.Equal(decimal.NewFromInt(5)))

	_, err = f.commitments.RecordPayment(ctx, core.Payment{CommitmentID: 999, Period: may})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDashboardService_Grid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	g, err := f.dashboard.Grid(ctx, core.NewPeriod(2024, 4), 3)
	require.NoError(t, err)
	require.Len(t, g.Months, 3)

	var order []string
	for _, row := range g.Rows {
		order = append(order, row.Commitment.Name)
	}
	assert.Equal(t, []string{"Arriendo", "Gimnasio", "Internet", "Sueldo"}, order)

	rent, ok := g.Row(f.ids["Arriendo"])
	require.True(t, ok)
	assert.Equal(t, schedule.StatusGap, rent.Cells[0].Status)
	assert.Equal(t, schedule.StatusOverdue, rent.Cells[1].Status)
	assert.Equal(t, schedule.StatusScheduled, rent.Cells[2].Status)

	again, err := f.dashboard.Grid(ctx, core.NewPeriod(2024, 4), 3)
	require.NoError(t, err)
	assert.Same(t, g, again)
	assert.EqualValues(t, 1, f.dashboard.GridCache().Stats().Hits)

	_, err = f.dashboard.Grid(ctx, may, 0)
	assert.Error(t, err)
}

func TestDashboardService_GridOutsideCurrentMonthStillRanks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The salary is paid in May; a window that does not include May must
	// still rank it as paid.
	g, err := f.dashboard.Grid(ctx, core.NewPeriod(2024, 8), 2)
	require.NoError(t, err)
	last := g.Rows[len(g.Rows)-1]
	assert.Equal(t, "Sueldo", last.Commitment.Name)
	assert.Equal(t, schedule.PriorityPaid, last.Priority)
}

func TestDashboardService_CommitmentsAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ranked, err := f.dashboard.Commitments(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, 4)
	assert.Equal(t, schedule.PriorityOverdue, ranked[0].Priority)
	assert.Equal(t, "Sueldo", ranked[3].Commitment.Name)

	sum, err := f.dashboard.Summary(ctx, may)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Counts[schedule.StatusOverdue])
	assert.Equal(t, 2, sum.Counts[schedule.StatusPending])
	assert.Equal(t, 1, sum.Counts[schedule.StatusPaid])
	assert.True(t, sum.Totals.ExpectedExpense.Equal(decimal.NewFromInt(450000)))
	assert.True(t, sum.Totals.PaidIncome.Equal(decimal.NewFromInt(1000000)))
	assert.Empty(t, sum.Anomalies)
}

func TestReminderProcessor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := NewReminderProcessor(f.dashboard, f.publisher)
	sent, err := p.ProcessReminders(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sent)

	byName := map[string]*amqp.ReminderMessage{}
	for _, m := range f.publisher.reminders {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "Arriendo")
	require.Contains(t, byName, "Gimnasio")
	assert.Equal(t, schedule.StatusOverdue, byName["Arriendo"].Status)
	assert.Equal(t, 10, byName["Arriendo"].DaysOverdue)
	assert.Equal(t, schedule.StatusPending, byName["Gimnasio"].Status)
	assert.Equal(t, 2, byName["Gimnasio"].DaysRemaining)
	assert.Equal(t, "2024-05-17", byName["Gimnasio"].DueDate)

	p.DueSoonDays = 30
	reminders, err := p.DueReminders(ctx)
	require.NoError(t, err)
	assert.Len(t, reminders, 3)

	noBroker := NewReminderProcessor(f.dashboard, nil)
	sent, err = noBroker.ProcessReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestReminderProcessor_SendsOncePerDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := NewReminderProcessor(f.dashboard, f.publisher)

	sent, err := p.ProcessReminders(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sent)

	// a later tick on the same day publishes nothing new
	f.dashboard.WithClock(func() time.Time { return today.Add(3 * time.Hour) })
	sent, err = p.ProcessReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, f.publisher.reminders, 2)

	// the next day both are still due and are sent again
	f.dashboard.WithClock(func() time.Time { return today.Add(24 * time.Hour) })
	sent, err = p.ProcessReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, f.publisher.reminders, 4)
}

func TestReminderProcessor_FailedPublishIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := NewReminderProcessor(f.dashboard, f.publisher)

	f.publisher.err = errors.New("circuit breaker is open")
	sent, err := p.ProcessReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	f.publisher.err = nil
	sent, err = p.ProcessReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}
