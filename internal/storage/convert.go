package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"finansheet/internal/core"
)

const timestampLayout = time.RFC3339Nano

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func datePtr(v sql.NullString) (*core.Date, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := core.ParseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(v sql.NullString) (decimal.NullDecimal, error) {
	if !v.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func commitmentFromRow(row CommitmentRow) (core.Commitment, error) {
	created, err := time.Parse(timestampLayout, row.CreatedAt)
	if err != nil {
		return core.Commitment{}, fmt.Errorf("decode commitment %d created_at: %w", row.ID, err)
	}
	return core.Commitment{
		ID:                 row.ID,
		Name:               row.Name,
		FlowType:           core.FlowType(row.FlowType),
		CategoryID:         int64Ptr(row.CategoryID),
		IsImportant:        row.IsImportant,
		CreatedAt:          created,
		LinkedCommitmentID: int64Ptr(row.LinkedCommitmentID),
	}, nil
}

func termFromRow(row TermRow) (core.Term, error) {
	from, err := core.ParseDate(row.EffectiveFrom)
	if err != nil {
		return core.Term{}, fmt.Errorf("decode term %d effective_from: %w", row.ID, err)
	}
	until, err := datePtr(row.EffectiveUntil)
	if err != nil {
		return core.Term{}, fmt.Errorf("decode term %d effective_until: %w", row.ID, err)
	}
	amount, err := decimal.NewFromString(row.AmountOriginal)
	if err != nil {
		return core.Term{}, fmt.Errorf("decode term %d amount: %w", row.ID, err)
	}
	inBase, err := parseNullDecimal(row.AmountInBase)
	if err != nil {
		return core.Term{}, fmt.Errorf("decode term %d base amount: %w", row.ID, err)
	}

	t := core.Term{
		ID:               row.ID,
		Version:          int(row.Version),
		EffectiveFrom:    from,
		EffectiveUntil:   until,
		Frequency:        core.Frequency(row.Frequency),
		AmountOriginal:   amount,
		AmountInBase:     inBase,
		CurrencyOriginal: row.CurrencyOriginal,
		IsDividedAmount:  row.IsDividedAmount,
		DueDayOfMonth:    int(row.DueDayOfMonth),
	}
	if row.InstallmentsCount.Valid {
		n := int(row.InstallmentsCount.Int64)
		t.InstallmentsCount = &n
	}
	return t, nil
}

func termParams(commitmentID int64, t core.Term) CreateTermParams {
	p := CreateTermParams{
		CommitmentID:     commitmentID,
		Version:          int64(t.Version),
		EffectiveFrom:    t.EffectiveFrom.String(),
		EffectiveUntil:   nullDate(t.EffectiveUntil),
		Frequency:        string(t.Frequency),
		AmountOriginal:   t.AmountOriginal.String(),
		AmountInBase:     nullDecimal(t.AmountInBase),
		CurrencyOriginal: t.CurrencyOriginal,
		IsDividedAmount:  t.IsDividedAmount,
		DueDayOfMonth:    int64(t.DueDayOfMonth),
	}
	if t.InstallmentsCount != nil {
		p.InstallmentsCount = sql.NullInt64{Int64: int64(*t.InstallmentsCount), Valid: true}
	}
	return p
}

func paymentFromRow(row PaymentRow) (core.Payment, error) {
	period, err := core.ParsePeriod(row.Period)
	if err != nil {
		return core.Payment{}, fmt.Errorf("decode payment %d period: %w", row.ID, err)
	}
	paid, err := datePtr(row.PaymentDate)
	if err != nil {
		return core.Payment{}, fmt.Errorf("decode payment %d payment_date: %w", row.ID, err)
	}
	amount, err := decimal.NewFromString(row.AmountOriginal)
	if err != nil {
		return core.Payment{}, fmt.Errorf("decode payment %d amount: %w", row.ID, err)
	}
	inBase, err := parseNullDecimal(row.AmountInBase)
	if err != nil {
		return core.Payment{}, fmt.Errorf("decode payment %d base amount: %w", row.ID, err)
	}
	updated, err := time.Parse(timestampLayout, row.UpdatedAt)
	if err != nil {
		return core.Payment{}, fmt.Errorf("decode payment %d updated_at: %w", row.ID, err)
	}
	return core.Payment{
		ID:               row.ID,
		CommitmentID:     row.CommitmentID,
		Period:           period,
		PaymentDate:      paid,
		AmountOriginal:   amount,
		AmountInBase:     inBase,
		CurrencyOriginal: row.CurrencyOriginal,
		UpdatedAt:        updated,
	}, nil
}
