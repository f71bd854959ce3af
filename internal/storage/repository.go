package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finansheet/internal/core"
	"finansheet/internal/schedule"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
	schema  uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
		schema:  schema,
	}, nil
}

// SchemaVersion returns the migration version the database was opened at.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

// CreateCommitment implements sheets.CommitmentWriter. The first term is
// stored as version 1.
func (r *SQLiteRepository) CreateCommitment(ctx context.Context, c core.Commitment, first core.Term) (core.Commitment, error) {
	first.Version = 1
	c.Terms = []core.Term{first}
	if err := c.Validate(); err != nil {
		return core.Commitment{}, fmt.Errorf("validate commitment: %w", err)
	}
	c.CreatedAt = r.now().UTC()

	err := r.withTx(ctx, func(q *Queries) error {
		if c.LinkedCommitmentID != nil {
			if _, err := q.GetCommitment(ctx, *c.LinkedCommitmentID); err != nil {
				return notFound(err, "linked commitment", *c.LinkedCommitmentID)
			}
		}
		row, err := q.CreateCommitment(ctx, CreateCommitmentParams{
			Name:               c.Name,
			FlowType:           string(c.FlowType),
			CategoryID:         nullInt64(c.CategoryID),
			IsImportant:        c.IsImportant,
			LinkedCommitmentID: nullInt64(c.LinkedCommitmentID),
			CreatedAt:          c.CreatedAt.Format(timestampLayout),
		})
		if err != nil {
			return fmt.Errorf("create commitment: %w", err)
		}
		c.ID = row.ID

		termRow, err := q.CreateTerm(ctx, termParams(c.ID, first))
		if err != nil {
			return fmt.Errorf("create term: %w", err)
		}
		c.Terms[0].ID = termRow.ID
		return nil
	})
	if err != nil {
		return core.Commitment{}, err
	}
	c.ActiveTerm = schedule.ActiveTermAt(c, core.PeriodOf(r.now()))

	slog.InfoContext(ctx, "Commitment saved to SQLite",
		"id", c.ID,
		"name", c.Name,
		"flow_type", c.FlowType,
		"effective_from", first.EffectiveFrom.String())

	return c, nil
}

// GetCommitment implements sheets.CommitmentReader. The active term is the
// one covering at.
func (r *SQLiteRepository) GetCommitment(ctx context.Context, id int64, at core.Period) (core.Commitment, error) {
	row, err := r.queries.GetCommitment(ctx, id)
	if err != nil {
		return core.Commitment{}, notFound(err, "commitment", id)
	}
	c, err := commitmentFromRow(row)
	if err != nil {
		return core.Commitment{}, err
	}

	termRows, err := r.queries.ListTermsByCommitment(ctx, id)
	if err != nil {
		return core.Commitment{}, fmt.Errorf("list terms: %w", err)
	}
	for _, tr := range termRows {
		t, err := termFromRow(tr)
		if err != nil {
			return core.Commitment{}, err
		}
		c.Terms = append(c.Terms, t)
	}
	c.ActiveTerm = schedule.ActiveTermAt(c, at)
	return c, nil
}

// ListCommitments implements sheets.CommitmentReader. Commitments come with
// their full term history.
func (r *SQLiteRepository) ListCommitments(ctx context.Context, at core.Period) ([]core.Commitment, error) {
	rows, err := r.queries.ListCommitments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	termRows, err := r.queries.ListTerms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}

	terms := make(map[int64][]core.Term, len(rows))
	for _, tr := range termRows {
		t, err := termFromRow(tr)
		if err != nil {
			return nil, err
		}
		terms[tr.CommitmentID] = append(terms[tr.CommitmentID], t)
	}

	commitments := make([]core.Commitment, 0, len(rows))
	for _, row := range rows {
		c, err := commitmentFromRow(row)
		if err != nil {
			return nil, err
		}
		c.Terms = terms[c.ID]
		c.ActiveTerm = schedule.ActiveTermAt(c, at)
		commitments = append(commitments, c)
	}
	return commitments, nil
}

// AddTerm implements sheets.CommitmentWriter.
func (r *SQLiteRepository) AddTerm(ctx context.Context, id int64, t core.Term) (core.Term, error) {
	added, err := r.changeTerms(ctx, id, func(terms []core.Term) (core.TermChange, error) {
		return core.PlanNewTerm(terms, t)
	})
	if err != nil {
		return core.Term{}, err
	}
	slog.InfoContext(ctx, "Term added",
		"commitment_id", id,
		"version", added.Version,
		"effective_from", added.EffectiveFrom.String())
	return *added, nil
}

// PauseCommitment implements sheets.CommitmentWriter.
func (r *SQLiteRepository) PauseCommitment(ctx context.Context, id int64, from core.Period) error {
	_, err := r.changeTerms(ctx, id, func(terms []core.Term) (core.TermChange, error) {
		return core.PlanPause(terms, from)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Commitment paused", "commitment_id", id, "from", from.String())
	return nil
}

// ResumeCommitment implements sheets.CommitmentWriter.
func (r *SQLiteRepository) ResumeCommitment(ctx context.Context, id int64, from core.Period) (core.Term, error) {
	added, err := r.changeTerms(ctx, id, func(terms []core.Term) (core.TermChange, error) {
		return core.PlanResume(terms, from)
	})
	if err != nil {
		return core.Term{}, err
	}
	slog.InfoContext(ctx, "Commitment resumed",
		"commitment_id", id,
		"version", added.Version,
		"from", from.String())
	return *added, nil
}

// changeTerms loads the term history of a commitment, plans a change and
// persists it in one transaction. It returns the added term, if any.
func (r *SQLiteRepository) changeTerms(ctx context.Context, id int64, plan func([]core.Term) (core.TermChange, error)) (*core.Term, error) {
	var added *core.Term
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := q.GetCommitment(ctx, id); err != nil {
			return notFound(err, "commitment", id)
		}
		rows, err := q.ListTermsByCommitment(ctx, id)
		if err != nil {
			return fmt.Errorf("list terms: %w", err)
		}
		terms := make([]core.Term, 0, len(rows))
		for _, row := range rows {
			t, err := termFromRow(row)
			if err != nil {
				return err
			}
			terms = append(terms, t)
		}

		ch, err := plan(terms)
		if err != nil {
			return err
		}
		if ch.Closed != nil {
			if err := q.CloseTerm(ctx, id, int64(ch.Closed.Version), ch.Closed.EffectiveUntil.String()); err != nil {
				return fmt.Errorf("close term v%d: %w", ch.Closed.Version, err)
			}
		}
		if ch.Added != nil {
			row, err := q.CreateTerm(ctx, termParams(id, *ch.Added))
			if err != nil {
				return fmt.Errorf("create term: %w", err)
			}
			t, err := termFromRow(row)
			if err != nil {
				return err
			}
			added = &t
		}
		return nil
	})
	return added, err
}

// SetImportant implements sheets.CommitmentWriter.
func (r *SQLiteRepository) SetImportant(ctx context.Context, id int64, important bool) error {
	n, err := r.queries.SetImportant(ctx, id, important)
	if err != nil {
		return fmt.Errorf("set important: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("commitment %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// DeleteCommitment implements sheets.CommitmentWriter. Terms and payments go
// with it and links pointing at it are cleared.
func (r *SQLiteRepository) DeleteCommitment(ctx context.Context, id int64) error {
	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.DeletePaymentsByCommitment(ctx, id); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if err := q.DeleteTermsByCommitment(ctx, id); err != nil {
			return fmt.Errorf("delete terms: %w", err)
		}
		if err := q.UnlinkCommitment(ctx, id); err != nil {
			return fmt.Errorf("unlink commitment: %w", err)
		}
		n, err := q.DeleteCommitment(ctx, id)
		if err != nil {
			return fmt.Errorf("delete commitment: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("commitment %d: %w", id, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Commitment deleted", "id", id)
	return nil
}

// RecordPayment implements sheets.PaymentWriter. A second payment for the
// same commitment and period replaces the first.
func (r *SQLiteRepository) RecordPayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	if err := p.Validate(); err != nil {
		return core.Payment{}, fmt.Errorf("validate payment: %w", err)
	}
	if _, err := r.queries.GetCommitment(ctx, p.CommitmentID); err != nil {
		return core.Payment{}, notFound(err, "commitment", p.CommitmentID)
	}

	row, err := r.queries.UpsertPayment(ctx, UpsertPaymentParams{
		CommitmentID:     p.CommitmentID,
		Period:           p.Period.String(),
		PaymentDate:      nullDate(p.PaymentDate),
		AmountOriginal:   p.AmountOriginal.String(),
		AmountInBase:     nullDecimal(p.AmountInBase),
		CurrencyOriginal: p.CurrencyOriginal,
		UpdatedAt:        r.now().UTC().Format(timestampLayout),
	})
	if err != nil {
		return core.Payment{}, fmt.Errorf("upsert payment: %w", err)
	}
	saved, err := paymentFromRow(row)
	if err != nil {
		return core.Payment{}, err
	}

	slog.InfoContext(ctx, "Payment saved to SQLite",
		"id", saved.ID,
		"commitment_id", saved.CommitmentID,
		"period", saved.Period.String(),
		"paid", saved.IsCompleted())

	return saved, nil
}

// DeletePayment implements sheets.PaymentWriter.
func (r *SQLiteRepository) DeletePayment(ctx context.Context, commitmentID int64, period core.Period) error {
	n, err := r.queries.DeletePayment(ctx, commitmentID, period.String())
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment %d/%s: %w", commitmentID, period, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Payment deleted", "commitment_id", commitmentID, "period", period.String())
	return nil
}

// ListPaymentsInRange implements sheets.PaymentReader. Both ends are
// inclusive; payments are grouped by commitment.
func (r *SQLiteRepository) ListPaymentsInRange(ctx context.Context, from, to core.Period) (map[int64][]core.Payment, error) {
	rows, err := r.queries.ListPaymentsInRange(ctx, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make(map[int64][]core.Payment)
	for _, row := range rows {
		p, err := paymentFromRow(row)
		if err != nil {
			return nil, err
		}
		out[p.CommitmentID] = append(out[p.CommitmentID], p)
	}
	return out, nil
}
