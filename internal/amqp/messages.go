package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finansheet/internal/core"
	"finansheet/internal/schedule"
)

var validate = validator.New()

// EventType names a change to a commitment or its payments.
type EventType string

const (
	EventCommitmentCreated EventType = "commitment.created"
	EventCommitmentDeleted EventType = "commitment.deleted"
	EventCommitmentPaused  EventType = "commitment.paused"
	EventCommitmentResumed EventType = "commitment.resumed"
	EventImportanceChanged EventType = "commitment.importance_changed"
	EventTermAdded         EventType = "term.added"
	EventPaymentRecorded   EventType = "payment.recorded"
	EventPaymentDeleted    EventType = "payment.deleted"
)

// CommitmentEvent announces that a commitment changed. It carries only
// identifiers; consumers reload what they need.
type CommitmentEvent struct {
	ID           uuid.UUID `json:"id" validate:"required"`
	Type         EventType `json:"type" validate:"required"`
	CommitmentID int64     `json:"commitment_id" validate:"gt=0"`
	// Period is the affected month (YYYY-MM) for payment events.
	Period    string    `json:"period,omitempty"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// NewCommitmentEvent creates an event with a fresh id.
func NewCommitmentEvent(typ EventType, commitmentID int64, period *core.Period, now time.Time) *CommitmentEvent {
	e := &CommitmentEvent{
		ID:           uuid.New(),
		Type:         typ,
		CommitmentID: commitmentID,
		Timestamp:    now.UTC(),
	}
	if period != nil {
		e.Period = period.String()
	}
	return e
}

// ToJSON converts the message to JSON bytes
func (m *CommitmentEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CommitmentEventFromJSON decodes and validates an event.
func CommitmentEventFromJSON(data []byte) (*CommitmentEvent, error) {
	var msg CommitmentEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("invalid commitment event: %w", err)
	}
	return &msg, nil
}

// ReminderMessage tells a notifier that a commitment is due or overdue.
type ReminderMessage struct {
	ID            uuid.UUID       `json:"id" validate:"required"`
	CommitmentID  int64           `json:"commitment_id" validate:"gt=0"`
	Name          string          `json:"name" validate:"required"`
	Period        string          `json:"period" validate:"required,len=7"`
	Status        schedule.Status `json:"status" validate:"oneof=OVERDUE PENDING"`
	DueDate       string          `json:"due_date" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	DaysOverdue   int             `json:"days_overdue"`
	DaysRemaining int             `json:"days_remaining"`
	Important     bool            `json:"important"`
	Timestamp     time.Time       `json:"timestamp" validate:"required"`
}

// NewReminderMessage builds a reminder from a derived cell.
func NewReminderMessage(c core.Commitment, cell schedule.Cell, now time.Time) *ReminderMessage {
	return &ReminderMessage{
		ID:            uuid.New(),
		CommitmentID:  c.ID,
		Name:          c.Name,
		Period:        cell.Period.String(),
		Status:        cell.Status,
		DueDate:       cell.DueDate.String(),
		Amount:        cell.DisplayAmount,
		DaysOverdue:   cell.DaysOverdue,
		DaysRemaining: cell.DaysRemaining,
		Important:     c.IsImportant,
		Timestamp:     now.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReminderMessageFromJSON decodes and validates a reminder.
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("invalid reminder: %w", err)
	}
	return &msg, nil
}
