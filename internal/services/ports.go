// Package services orchestrates the data layer, the schedule core and the
// message broker.
package services

import (
	"context"

	"finansheet/internal/amqp"
	"finansheet/internal/sheets"
)

// Store is the data layer the services need.
type Store interface {
	sheets.CommitmentReader
	sheets.CommitmentWriter
	sheets.PaymentReader
	sheets.PaymentWriter
}

// EventPublisher announces commitment changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e *amqp.CommitmentEvent) error
}

// ReminderPublisher sends reminders. *amqp.Client implements it.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, m *amqp.ReminderMessage) error
}

// Invalidator drops derived data after a mutation.
type Invalidator interface {
	Invalidate()
}
