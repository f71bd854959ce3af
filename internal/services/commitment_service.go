package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finansheet/internal/amqp"
	"finansheet/internal/core"
	"finansheet/internal/log"
	"finansheet/internal/schedule"
)

// CommitmentService applies user changes to commitments and payments. Every
// successful change invalidates derived views and publishes an event; the
// publish is best effort and never fails the change.
type CommitmentService struct {
	store        Store
	publisher    EventPublisher
	invalidator  Invalidator
	baseCurrency string
	now          func() time.Time
	logger       *log.StructuredLogger
}

// NewCommitmentService wires the service. publisher and invalidator may be
// nil.
func NewCommitmentService(store Store, publisher EventPublisher, invalidator Invalidator, baseCurrency string) *CommitmentService {
	return &CommitmentService{
		store:        store,
		publisher:    publisher,
		invalidator:  invalidator,
		baseCurrency: baseCurrency,
		now:          time.Now,
		logger:       log.NewStructuredLogger(log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentCommitment})),
	}
}

// WithClock replaces the clock used for event timestamps and default
// periods.
func (s *CommitmentService) WithClock(now func() time.Time) *CommitmentService {
	s.now = now
	return s
}

// CreateCommitment stores c with first as its version 1 term.
func (s *CommitmentService) CreateCommitment(ctx context.Context, c core.Commitment, first core.Term) (core.Commitment, error) {
	if first.CurrencyOriginal == "" {
		first.CurrencyOriginal = s.baseCurrency
	}
	if err := first.Validate(); err != nil {
		return core.Commitment{}, fmt.Errorf("validate term: %w", err)
	}
	created, err := s.store.CreateCommitment(ctx, c, first)
	if err != nil {
		return core.Commitment{}, fmt.Errorf("create commitment: %w", err)
	}
	s.changed(ctx, amqp.EventCommitmentCreated, created.ID, nil)
	s.logger.LogCommitmentChanged(ctx, log.OpCreate, created.ID, created.Name)
	return created, nil
}

// AddTerm appends a new term version, closing the current one.
func (s *CommitmentService) AddTerm(ctx context.Context, id int64, t core.Term) (core.Term, error) {
	if t.CurrencyOriginal == "" {
		t.CurrencyOriginal = s.baseCurrency
	}
	added, err := s.store.AddTerm(ctx, id, t)
	if err != nil {
		return core.Term{}, fmt.Errorf("add term to commitment %d: %w", id, err)
	}
	start := added.StartPeriod()
	s.changed(ctx, amqp.EventTermAdded, id, &start)
	s.logger.LogCommitmentChanged(ctx, log.OpUpdate, id, "")
	return added, nil
}

// Pause ends the commitment's schedule at the month before from.
func (s *CommitmentService) Pause(ctx context.Context, id int64, from core.Period) error {
	if err := s.store.PauseCommitment(ctx, id, from); err != nil {
		return fmt.Errorf("pause commitment %d: %w", id, err)
	}
	s.changed(ctx, amqp.EventCommitmentPaused, id, &from)
	s.logger.LogCommitmentChanged(ctx, log.OpPause, id, "")
	return nil
}

// Resume restarts a paused commitment at from with its last known terms.
func (s *CommitmentService) Resume(ctx context.Context, id int64, from core.Period) (core.Term, error) {
	t, err := s.store.ResumeCommitment(ctx, id, from)
	if err != nil {
		return core.Term{}, fmt.Errorf("resume commitment %d: %w", id, err)
	}
	s.changed(ctx, amqp.EventCommitmentResumed, id, &from)
	s.logger.LogCommitmentChanged(ctx, log.OpResume, id, "")
	return t, nil
}

// SetImportant flags or unflags a commitment.
func (s *CommitmentService) SetImportant(ctx context.Context, id int64, important bool) error {
	if err := s.store.SetImportant(ctx, id, important); err != nil {
		return fmt.Errorf("set importance of commitment %d: %w", id, err)
	}
	s.changed(ctx, amqp.EventImportanceChanged, id, nil)
	return nil
}

// Delete removes a commitment with its terms and payments.
func (s *CommitmentService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteCommitment(ctx, id); err != nil {
		return fmt.Errorf("delete commitment %d: %w", id, err)
	}
	s.changed(ctx, amqp.EventCommitmentDeleted, id, nil)
	s.logger.LogCommitmentChanged(ctx, log.OpDelete, id, "")
	return nil
}

// RecordPayment stores p, replacing any payment for the same month. A
// missing currency defaults to the term covering the month, then to the
// base currency. Home-currency payments always carry their base amount.
func (s *CommitmentService) RecordPayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	c, err := s.store.GetCommitment(ctx, p.CommitmentID, core.PeriodOf(s.now()))
	if err != nil {
		return core.Payment{}, fmt.Errorf("record payment: %w", err)
	}
	if p.CurrencyOriginal == "" {
		p.CurrencyOriginal = s.baseCurrency
		if res := schedule.ResolveTermForPeriod(c, p.Period); res.Term != nil {
			p.CurrencyOriginal = res.Term.CurrencyOriginal
		}
	}
	if p.CurrencyOriginal == s.baseCurrency && !p.AmountInBase.Valid {
		p.AmountInBase = core.NullAmount(&p.AmountOriginal)
	}

	stored, err := s.store.RecordPayment(ctx, p)
	if err != nil {
		return core.Payment{}, fmt.Errorf("record payment: %w", err)
	}
	s.changed(ctx, amqp.EventPaymentRecorded, p.CommitmentID, &stored.Period)
	s.logger.LogPaymentRecorded(ctx, stored.CommitmentID, stored.Period.String(),
		stored.AmountOriginal.String(), stored.CurrencyOriginal)
	return stored, nil
}

// DeletePayment removes the payment of one month.
func (s *CommitmentService) DeletePayment(ctx context.Context, commitmentID int64, period core.Period) error {
	if err := s.store.DeletePayment(ctx, commitmentID, period); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	s.changed(ctx, amqp.EventPaymentDeleted, commitmentID, &period)
	return nil
}

func (s *CommitmentService) changed(ctx context.Context, typ amqp.EventType, id int64, period *core.Period) {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	if err := s.publishEvent(ctx, amqp.NewCommitmentEvent(typ, id, period, s.now())); err != nil {
		slog.ErrorContext(ctx, "Failed to publish commitment event",
			log.FieldCommitmentID, id, "type", typ, log.FieldError, err)
	}
}

func (s *CommitmentService) publishEvent(ctx context.Context, e *amqp.CommitmentEvent) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping commitment event", "type", e.Type)
		return nil
	}
	return s.publisher.PublishEvent(ctx, e)
}
