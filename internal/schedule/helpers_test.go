package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"finansheet/internal/core"
)

func intPtr(v int) *int { return &v }

func datePtr(s string) *core.Date {
	d := core.MustParseDate(s)
	return &d
}

func monthlyTerm(version int, from string, until *core.Date) core.Term {
	return core.Term{
		Version:          version,
		EffectiveFrom:    core.MustParseDate(from),
		EffectiveUntil:   until,
		Frequency:        core.Monthly,
		AmountOriginal:   decimal.NewFromInt(1000),
		CurrencyOriginal: "CLP",
		DueDayOfMonth:    10,
	}
}

func paidPayment(commitmentID int64, period core.Period, paidOn string, amount int64) core.Payment {
	return core.Payment{
		CommitmentID:     commitmentID,
		Period:           period,
		PaymentDate:      datePtr(paidOn),
		AmountOriginal:   decimal.NewFromInt(amount),
		CurrencyOriginal: "CLP",
	}
}

var clp = MatchOptions{BaseCurrency: "CLP"}

func at(s string) time.Time {
	return core.MustParseDate(s).Add(12 * time.Hour)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}
