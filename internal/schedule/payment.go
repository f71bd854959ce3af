package schedule

import (
	"github.com/shopspring/decimal"

	"finansheet/internal/core"
)

// MatchOptions controls how payment amounts are read.
type MatchOptions struct {
	// BaseCurrency is the user's home currency (e.g. "CLP").
	BaseCurrency string
	// TrustBaseAmounts disables the home-currency workaround and always
	// reads the base amount first. Leave false until historical payments
	// with a missing or wrong base amount have been repaired.
	TrustBaseAmounts bool
}

// PaymentMatch is the payment state of one commitment for one period.
type PaymentMatch struct {
	HasRecord   bool
	IsPaid      bool
	Amount      *decimal.Decimal
	PaymentDate *core.Date
	PaidOnTime  bool
	PaymentID   int64
}

// MatchPayment finds the payment recorded for target among all payments of a
// commitment.
//
// When several records share the period, the most recently updated one wins
// and list order breaks remaining ties. Home-currency payments report their
// original amount because their base amount was not always migrated
// correctly; foreign payments report the base amount, or the original when
// the base amount is missing.
func MatchPayment(payments []core.Payment, target core.Period, dueDay int, opts MatchOptions) PaymentMatch {
	var found *core.Payment
	for i := range payments {
		p := &payments[i]
		if p.Period != target {
			continue
		}
		if found == nil || p.UpdatedAt.After(found.UpdatedAt) {
			found = p
		}
	}
	if found == nil {
		return PaymentMatch{}
	}

	amount := paymentAmount(*found, opts)
	m := PaymentMatch{
		HasRecord:  true,
		IsPaid:     found.IsCompleted(),
		Amount:     &amount,
		PaidOnTime: true,
		PaymentID:  found.ID,
	}
	if found.PaymentDate != nil {
		paid := *found.PaymentDate
		m.PaymentDate = &paid
		m.PaidOnTime = !paid.After(target.DueDate(dueDay).Time)
	}
	return m
}

func paymentAmount(p core.Payment, opts MatchOptions) decimal.Decimal {
	if !opts.TrustBaseAmounts && p.CurrencyOriginal == opts.BaseCurrency {
		return p.AmountOriginal
	}
	if p.AmountInBase.Valid {
		return p.AmountInBase.Decimal
	}
	return p.AmountOriginal
}
