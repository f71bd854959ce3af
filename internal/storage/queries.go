package storage

import (
	"context"
	"database/sql"
)

const commitmentColumns = `id, name, flow_type, category_id, is_important, linked_commitment_id, created_at`

const termColumns = `id, commitment_id, version, effective_from, effective_until, frequency,
	amount_original, amount_in_base, currency_original, installments_count,
	is_divided_amount, due_day_of_month`

const paymentColumns = `id, commitment_id, period, payment_date, amount_original, amount_in_base,
	currency_original, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommitment(s rowScanner) (CommitmentRow, error) {
	var c CommitmentRow
	err := s.Scan(&c.ID, &c.Name, &c.FlowType, &c.CategoryID, &c.IsImportant, &c.LinkedCommitmentID, &c.CreatedAt)
	return c, err
}

func scanTerm(s rowScanner) (TermRow, error) {
	var t TermRow
	err := s.Scan(&t.ID, &t.CommitmentID, &t.Version, &t.EffectiveFrom, &t.EffectiveUntil, &t.Frequency,
		&t.AmountOriginal, &t.AmountInBase, &t.CurrencyOriginal, &t.InstallmentsCount,
		&t.IsDividedAmount, &t.DueDayOfMonth)
	return t, err
}

func scanPayment(s rowScanner) (PaymentRow, error) {
	var p PaymentRow
	err := s.Scan(&p.ID, &p.CommitmentID, &p.Period, &p.PaymentDate, &p.AmountOriginal, &p.AmountInBase,
		&p.CurrencyOriginal, &p.UpdatedAt)
	return p, err
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCommitment = `INSERT INTO commitments (name, flow_type, category_id, is_important, linked_commitment_id, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + commitmentColumns

type CreateCommitmentParams struct {
	Name               string
	FlowType           string
	CategoryID         sql.NullInt64
	IsImportant        bool
	LinkedCommitmentID sql.NullInt64
	CreatedAt          string
}

func (q *Queries) CreateCommitment(ctx context.Context, arg CreateCommitmentParams) (CommitmentRow, error) {
	row := q.db.QueryRowContext(ctx, createCommitment,
		arg.Name, arg.FlowType, arg.CategoryID, arg.IsImportant, arg.LinkedCommitmentID, arg.CreatedAt)
	return scanCommitment(row)
}

const getCommitment = `SELECT ` + commitmentColumns + ` FROM commitments WHERE id = ?`

func (q *Queries) GetCommitment(ctx context.Context, id int64) (CommitmentRow, error) {
	return scanCommitment(q.db.QueryRowContext(ctx, getCommitment, id))
}

const listCommitments = `SELECT ` + commitmentColumns + ` FROM commitments ORDER BY id`

func (q *Queries) ListCommitments(ctx context.Context) ([]CommitmentRow, error) {
	rows, err := q.db.QueryContext(ctx, listCommitments)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCommitment)
}

const setImportant = `UPDATE commitments SET is_important = ? WHERE id = ?`

func (q *Queries) SetImportant(ctx context.Context, id int64, important bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, setImportant, important, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCommitment = `DELETE FROM commitments WHERE id = ?`

func (q *Queries) DeleteCommitment(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCommitment, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const unlinkCommitment = `UPDATE commitments SET linked_commitment_id = NULL WHERE linked_commitment_id = ?`

func (q *Queries) UnlinkCommitment(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, unlinkCommitment, id)
	return err
}

const createTerm = `INSERT INTO terms (commitment_id, version, effective_from, effective_until, frequency,
	amount_original, amount_in_base, currency_original, installments_count, is_divided_amount, due_day_of_month)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + termColumns

type CreateTermParams struct {
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

func (q *Queries) CreateTerm(ctx context.Context, arg CreateTermParams) (TermRow, error) {
	row := q.db.QueryRowContext(ctx, createTerm,
		arg.CommitmentID, arg.Version, arg.EffectiveFrom, arg.EffectiveUntil, arg.Frequency,
		arg.AmountOriginal, arg.AmountInBase, arg.CurrencyOriginal, arg.InstallmentsCount,
		arg.IsDividedAmount, arg.DueDayOfMonth)
	return scanTerm(row)
}

const closeTerm = `UPDATE terms SET effective_until = ? WHERE commitment_id = ? AND version = ?`

func (q *Queries) CloseTerm(ctx context.Context, commitmentID, version int64, until string) error {
	_, err := q.db.ExecContext(ctx, closeTerm, until, commitmentID, version)
	return err
}

const listTermsByCommitment = `SELECT ` + termColumns + ` FROM terms WHERE commitment_id = ? ORDER BY version`

func (q *Queries) ListTermsByCommitment(ctx context.Context, commitmentID int64) ([]TermRow, error) {
	rows, err := q.db.QueryContext(ctx, listTermsByCommitment, commitmentID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTerm)
}

const listTerms = `SELECT ` + termColumns + ` FROM terms ORDER BY commitment_id, version`

func (q *Queries) ListTerms(ctx context.Context) ([]TermRow, error) {
	rows, err := q.db.QueryContext(ctx, listTerms)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTerm)
}

const deleteTermsByCommitment = `DELETE FROM terms WHERE commitment_id = ?`

func (q *Queries) DeleteTermsByCommitment(ctx context.Context, commitmentID int64) error {
	_, err := q.db.ExecContext(ctx, deleteTermsByCommitment, commitmentID)
	return err
}

const upsertPayment = `INSERT INTO payments (commitment_id, period, payment_date, amount_original, amount_in_base,
	currency_original, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (commitment_id, period) DO UPDATE SET
	payment_date      = excluded.payment_date,
	amount_original   = excluded.amount_original,
	amount_in_base    = excluded.amount_in_base,
	currency_original = excluded.currency_original,
	updated_at        = excluded.updated_at
RETURNING ` + paymentColumns

type UpsertPaymentParams struct {
	CommitmentID     int64
	Period           string
	PaymentDate      sql.NullString
	AmountOriginal   string
	AmountInBase     sql.NullString
	CurrencyOriginal string
	UpdatedAt        string
}

func (q *Queries) UpsertPayment(ctx context.Context, arg UpsertPaymentParams) (PaymentRow, error) {
	row := q.db.QueryRowContext(ctx, upsertPayment,
		arg.CommitmentID, arg.Period, arg.PaymentDate, arg.AmountOriginal, arg.AmountInBase,
		arg.CurrencyOriginal, arg.UpdatedAt)
	return scanPayment(row)
}

const deletePayment = `DELETE FROM payments WHERE commitment_id = ? AND period = ?`

func (q *Queries) DeletePayment(ctx context.Context, commitmentID int64, period string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePayment, commitmentID, period)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deletePaymentsByCommitment = `DELETE FROM payments WHERE commitment_id = ?`

func (q *Queries) DeletePaymentsByCommitment(ctx context.Context, commitmentID int64) error {
	_, err := q.db.ExecContext(ctx, deletePaymentsByCommitment, commitmentID)
	return err
}

// Periods are zero-padded YYYY-MM so string comparison orders them.
const listPaymentsInRange = `SELECT ` + paymentColumns + ` FROM payments
WHERE period >= ? AND period <= ?
ORDER BY commitment_id, period`

func (q *Queries) ListPaymentsInRange(ctx context.Context, from, to string) ([]PaymentRow, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentsInRange, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPayment)
}
