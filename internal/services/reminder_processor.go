package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"finansheet/internal/amqp"
	"finansheet/internal/core"
	"finansheet/internal/log"
	"finansheet/internal/schedule"
)

const (
	// DefaultReminderLookback is how many months before the current one are
	// scanned for overdue payments.
	DefaultReminderLookback = 2
	// DefaultDueSoonDays limits pending reminders to payments due within
	// this many days.
	DefaultDueSoonDays = 3
)

// ReminderProcessor publishes a reminder for every overdue cell in the
// lookback window and every pending cell of the current month that is due
// soon. Each (commitment, period, status) is sent at most once per day.
type ReminderProcessor struct {
	dashboard   *DashboardService
	publisher   ReminderPublisher
	Lookback    int
	DueSoonDays int

	mu sync.Mutex
	// sent maps a reminder key to the day it was last published
	sent map[string]core.Date
}

func NewReminderProcessor(dashboard *DashboardService, publisher ReminderPublisher) *ReminderProcessor {
	return &ReminderProcessor{
		dashboard:   dashboard,
		publisher:   publisher,
		Lookback:    DefaultReminderLookback,
		DueSoonDays: DefaultDueSoonDays,
		sent:        make(map[string]core.Date),
	}
}

func reminderKey(m *amqp.ReminderMessage) string {
	return fmt.Sprintf("%d|%s|%s", m.CommitmentID, m.Period, m.Status)
}

// DueReminders derives the reminders for the dashboard's current time
// without publishing them.
func (p *ReminderProcessor) DueReminders(ctx context.Context) ([]*amqp.ReminderMessage, error) {
	now := p.dashboard.Now()
	from := core.PeriodOf(now).AddMonths(-p.Lookback)
	g, err := p.dashboard.Grid(ctx, from, p.Lookback+1)
	if err != nil {
		return nil, fmt.Errorf("build reminder grid: %w", err)
	}

	var out []*amqp.ReminderMessage
	for _, row := range g.Rows {
		for _, cell := range row.Cells {
			if p.wants(cell) {
				out = append(out, amqp.NewReminderMessage(row.Commitment, cell, now))
			}
		}
	}
	return out, nil
}

func (p *ReminderProcessor) wants(cell schedule.Cell) bool {
	switch cell.Status {
	case schedule.StatusOverdue:
		return true
	case schedule.StatusPending:
		return cell.DaysRemaining <= p.DueSoonDays
	}
	return false
}

// ProcessReminders publishes the due reminders and returns how many were
// sent. A failed publish is logged and does not stop the others.
func (p *ReminderProcessor) ProcessReminders(ctx context.Context) (int, error) {
	if p.dashboard == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	reminders, err := p.DueReminders(ctx)
	if err != nil {
		return 0, err
	}
	if p.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping reminders", "count", len(reminders))
		return 0, nil
	}

	day := core.DateOf(p.dashboard.Now())
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, last := range p.sent {
		if !last.Equal(day.Time) {
			delete(p.sent, key)
		}
	}

	sent, skipped := 0, 0
	for _, m := range reminders {
		key := reminderKey(m)
		if _, ok := p.sent[key]; ok {
			skipped++
			continue
		}
		if err := p.publisher.PublishReminder(ctx, m); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				log.FieldCommitmentID, m.CommitmentID,
				log.FieldPeriod, m.Period,
				log.FieldError, err)
			continue
		}
		p.sent[key] = day
		sent++
	}

	slog.InfoContext(ctx, "Reminder processing complete",
		log.FieldComponent, log.ComponentReminder,
		"sent", sent,
		"already_sent_today", skipped,
		"total", len(reminders))
	return sent, nil
}
