package storage

import "database/sql"

// Row types mirror the tables one to one. Amounts are decimal strings,
// dates YYYY-MM-DD, periods YYYY-MM and timestamps RFC 3339.

type CommitmentRow struct {
	ID                 int64
	Name               string
	FlowType           string
	CategoryID         sql.NullInt64
	IsImportant        bool
	LinkedCommitmentID sql.NullInt64
	CreatedAt          string
}

type TermRow struct {
	ID                int64
	CommitmentID      int64
	Version           int64
	EffectiveFrom     string
	EffectiveUntil    sql.NullString
	Frequency         string
	AmountOriginal    string
	AmountInBase      sql.NullString
	CurrencyOriginal  string
	InstallmentsCount sql.NullInt64
	IsDividedAmount   bool
	DueDayOfMonth     int64
}

type PaymentRow struct {
	ID               int64
	CommitmentID     int64
	Period           string
	PaymentDate      sql.NullString
	AmountOriginal   string
	AmountInBase     sql.NullString
	CurrencyOriginal string
	UpdatedAt        string
}
