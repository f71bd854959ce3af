package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finansheet/internal/core"
)

func TestMatchPayment_OnTimeVersusLate(t *testing.T) {
	march := core.NewPeriod(2024, 3)

	early := MatchPayment([]core.Payment{paidPayment(1, march, "2024-03-08", 1000)}, march, 10, clp)
	assert.True(t, early.HasRecord)
	assert.True(t, early.IsPaid)
	assert.True(t, early.PaidOnTime)
	require.NotNil(t, early.PaymentDate)
	assert.Equal(t, "2024-03-08", early.PaymentDate.String())

	onDueDay := MatchPayment([]core.Payment{paidPayment(1, march, "2024-03-10", 1000)}, march, 10, clp)
	assert.True(t, onDueDay.PaidOnTime)

	late := MatchPayment([]core.Payment{paidPayment(1, march, "2024-03-15", 1000)}, march, 10, clp)
	assert.True(t, late.IsPaid)
	assert.False(t, late.PaidOnTime)
}

func TestMatchPayment_NoRecord(t *testing.T) {
	payments := []core.Payment{paidPayment(1, core.NewPeriod(2024, 2), "2024-02-08", 1000)}
	m := MatchPayment(payments, core.NewPeriod(2024, 3), 10, clp)
	assert.Equal(t, PaymentMatch{}, m)

	assert.Equal(t, PaymentMatch{}, MatchPayment(nil, core.NewPeriod(2024, 3), 10, clp))
}

func TestMatchPayment_RegisteredNotPaid(t *testing.T) {
	p := paidPayment(1, core.NewPeriod(2024, 3), "2024-03-01", 500)
	p.PaymentDate = nil

	m := MatchPayment([]core.Payment{p}, core.NewPeriod(2024, 3), 10, clp)
	assert.True(t, m.HasRecord)
	assert.False(t, m.IsPaid)
	assert.True(t, m.PaidOnTime, "unknown payment date counts as on time")
	require.NotNil(t, m.Amount)
	assert.True(t, m.Amount.Equal(decimal.NewFromInt(500)))
}

func TestMatchPayment_CurrencyAmounts(t *testing.T) {
	march := core.NewPeriod(2024, 3)

	tests := []struct {
		name    string
		payment core.Payment
		opts    MatchOptions
		want    int64
	}{
		{
			name: "home currency ignores a bad base amount",
			payment: core.Payment{Period: march, CurrencyOriginal: "CLP",
				AmountOriginal: decimal.NewFromInt(1000), AmountInBase: decimal.NewNullDecimal(decimal.NewFromInt(1))},
			opts: clp,
			want: 1000,
		},
		{
			name: "foreign currency uses base amount",
			payment: core.Payment{Period: march, CurrencyOriginal: "USD",
				AmountOriginal: decimal.NewFromInt(10), AmountInBase: decimal.NewNullDecimal(decimal.NewFromInt(9500))},
			opts: clp,
			want: 9500,
		},
		{
			name: "foreign currency without base amount falls back to original",
			payment: core.Payment{Period: march, CurrencyOriginal: "USD",
				AmountOriginal: decimal.NewFromInt(10)},
			opts: clp,
			want: 10,
		},
		{
			name: "trusted base amounts",
			payment: core.Payment{Period: march, CurrencyOriginal: "CLP",
				AmountOriginal: decimal.NewFromInt(1000), AmountInBase: decimal.NewNullDecimal(decimal.NewFromInt(999))},
			opts: MatchOptions{BaseCurrency: "CLP", TrustBaseAmounts: true},
			want: 999,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MatchPayment([]core.Payment{tt.payment}, march, 10, tt.opts)
			require.NotNil(t, m.Amount)
			assert.True(t, m.Amount.Equal(decimal.NewFromInt(tt.want)), "got %s", m.Amount)
		})
	}
}

func TestMatchPayment_DuplicatesPreferMostRecentlyUpdated(t *testing.T) {
	march := core.NewPeriod(2024, 3)
	older := paidPayment(1, march, "2024-03-01", 100)
	older.ID = 1
	older.UpdatedAt = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := paidPayment(1, march, "2024-03-02", 200)
	newer.ID = 2
	newer.UpdatedAt = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	m := MatchPayment([]core.Payment{older, newer}, march, 10, clp)
	assert.Equal(t, int64(2), m.PaymentID)

	m = MatchPayment([]core.Payment{newer, older}, march, 10, clp)
	assert.Equal(t, int64(2), m.PaymentID)

	older.UpdatedAt, newer.UpdatedAt = time.Time{}, time.Time{}
	m = MatchPayment([]core.Payment{older, newer}, march, 10, clp)
	assert.Equal(t, int64(1), m.PaymentID, "equal timestamps keep the first match")
}

func TestMatchPayment_Idempotent(t *testing.T) {
	march := core.NewPeriod(2024, 3)
	payments := []core.Payment{
		paidPayment(1, core.NewPeriod(2024, 2), "2024-02-09", 1000),
		paidPayment(1, march, "2024-03-12", 1000),
	}
	snapshot := append([]core.Payment(nil), payments...)

	first := MatchPayment(payments, march, 10, clp)
	second := MatchPayment(payments, march, 10, clp)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, payments)
}
