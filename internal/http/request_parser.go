// Package http provides the JSON API server and its handlers.
//
// This file implements request decoding and validation: JSON bodies into
// request types checked with validator tags, and path and query parameters
// into domain values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"finansheet/internal/config"
	"finansheet/internal/core"
	"finansheet/internal/services"
)

// maxBodyBytes bounds request bodies; every request type is small.
const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		_, err := core.ParsePeriod(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseAmount(fl.Field().String())
		return err == nil
	})
	return v
}

// TermRequest is the JSON body describing one term.
type TermRequest struct {
	EffectiveFrom     string  `json:"effective_from" validate:"required,datetime=2006-01-02"`
	EffectiveUntil    *string `json:"effective_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Frequency         string  `json:"frequency" validate:"required,oneof=ONCE MONTHLY BIMONTHLY QUARTERLY SEMIANNUALLY ANNUALLY"`
	Amount            string  `json:"amount" validate:"required,amount"`
	AmountInBase      *string `json:"amount_in_base,omitempty" validate:"omitempty,amount"`
	Currency          string  `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	InstallmentsCount *int    `json:"installments_count,omitempty" validate:"omitempty,min=1,max=600"`
	IsDividedAmount   bool    `json:"is_divided_amount"`
	DueDay            int     `json:"due_day" validate:"required,min=1,max=31"`
}

// CreateCommitmentRequest creates a commitment with its first term.
type CreateCommitmentRequest struct {
	Name               string      `json:"name" validate:"required,max=200"`
	FlowType           string      `json:"flow_type" validate:"required,oneof=INCOME EXPENSE"`
	CategoryID         *int64      `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	IsImportant        bool        `json:"is_important"`
	LinkedCommitmentID *int64      `json:"linked_commitment_id,omitempty" validate:"omitempty,gt=0"`
	Term               TermRequest `json:"term"`
}

// PeriodRequest names the month a pause or resume takes effect. An empty
// period means the current month.
type PeriodRequest struct {
	From string `json:"from,omitempty" validate:"omitempty,period"`
}

// ImportantRequest flags or unflags a commitment.
type ImportantRequest struct {
	Important *bool `json:"is_important" validate:"required"`
}

// PaymentRequest records a payment. A payment without payment_date is only
// registered, not paid.
type PaymentRequest struct {
	Period       string  `json:"period" validate:"required,period"`
	Amount       string  `json:"amount" validate:"required,amount"`
	AmountInBase *string `json:"amount_in_base,omitempty" validate:"omitempty,amount"`
	Currency     string  `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	PaymentDate  *string `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// DecodeJSON reads a JSON body into dst and validates it. Decoding problems
// are returned as *BodyError; validation problems as
// validator.ValidationErrors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &BodyError{Msg: "request body is empty"}
		}
		return &BodyError{Msg: "invalid JSON body: " + err.Error()}
	}
	if dec.More() {
		return &BodyError{Msg: "request body must hold a single JSON object"}
	}
	return validate.Struct(dst)
}

// BodyError is a malformed request.
type BodyError struct {
	Msg string
}

func (e *BodyError) Error() string { return e.Msg }

// ToTerm converts the request into a domain term.
func (t TermRequest) ToTerm() (core.Term, error) {
	from, err := core.ParseDate(t.EffectiveFrom)
	if err != nil {
		return core.Term{}, err
	}
	term := core.Term{
		EffectiveFrom:     from,
		Frequency:         core.Frequency(t.Frequency),
		CurrencyOriginal:  t.Currency,
		InstallmentsCount: t.InstallmentsCount,
		IsDividedAmount:   t.IsDividedAmount,
		DueDayOfMonth:     t.DueDay,
	}
	if t.EffectiveUntil != nil {
		until, err := core.ParseDate(*t.EffectiveUntil)
		if err != nil {
			return core.Term{}, err
		}
		term.EffectiveUntil = &until
	}
	if term.AmountOriginal, err = core.ParseAmount(t.Amount); err != nil {
		return core.Term{}, err
	}
	if term.AmountInBase, err = parseOptionalAmount(t.AmountInBase); err != nil {
		return core.Term{}, err
	}
	return term, nil
}

// ToCommitment converts the request into a commitment and its first term.
func (c CreateCommitmentRequest) ToCommitment() (core.Commitment, core.Term, error) {
	term, err := c.Term.ToTerm()
	if err != nil {
		return core.Commitment{}, core.Term{}, err
	}
	return core.Commitment{
		Name:               sanitizeInput(c.Name),
		FlowType:           core.FlowType(c.FlowType),
		CategoryID:         c.CategoryID,
		IsImportant:        c.IsImportant,
		LinkedCommitmentID: c.LinkedCommitmentID,
	}, term, nil
}

// ToPayment converts the request into a payment of commitment id.
func (p PaymentRequest) ToPayment(id int64) (core.Payment, error) {
	period, err := core.ParsePeriod(p.Period)
	if err != nil {
		return core.Payment{}, err
	}
	payment := core.Payment{
		CommitmentID:     id,
		Period:           period,
		CurrencyOriginal: p.Currency,
	}
	if payment.AmountOriginal, err = core.ParseAmount(p.Amount); err != nil {
		return core.Payment{}, err
	}
	if payment.AmountInBase, err = parseOptionalAmount(p.AmountInBase); err != nil {
		return core.Payment{}, err
	}
	if p.PaymentDate != nil {
		d, err := core.ParseDate(*p.PaymentDate)
		if err != nil {
			return core.Payment{}, err
		}
		payment.PaymentDate = &d
	}
	return payment, nil
}

// Period returns the requested month, defaulting to the month of now.
func (p PeriodRequest) Period(now time.Time) (core.Period, error) {
	if p.From == "" {
		return core.PeriodOf(now), nil
	}
	return core.ParsePeriod(p.From)
}

func parseOptionalAmount(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := core.ParseAmount(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return core.NullAmount(&d), nil
}

// PathID parses the {id} path value.
func PathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &BodyError{Msg: fmt.Sprintf("invalid commitment id %q", raw)}
	}
	return id, nil
}

// PathPeriod parses the {period} path value.
func PathPeriod(r *http.Request) (core.Period, error) {
	p, err := core.ParsePeriod(r.PathValue("period"))
	if err != nil {
		return core.Period{}, &BodyError{Msg: err.Error()}
	}
	return p, nil
}

// GridParams is the window requested from the grid endpoint.
type GridParams struct {
	From   core.Period
	Months int
}

// ParseGridParams reads from=YYYY-MM and months=N. Missing values fall back
// to defaultMonths starting a quarter of the window before now.
func ParseGridParams(r *http.Request, now time.Time, defaultMonths int) (GridParams, error) {
	q := r.URL.Query()
	params := GridParams{Months: defaultMonths}

	if v := strings.TrimSpace(q.Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > config.MaxGridMonths {
			return GridParams{}, &BodyError{Msg: fmt.Sprintf("months must be between 1 and %d", config.MaxGridMonths)}
		}
		params.Months = n
	}

	params.From = services.DefaultFrom(now, params.Months)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		p, err := core.ParsePeriod(v)
		if err != nil {
			return GridParams{}, &BodyError{Msg: err.Error()}
		}
		params.From = p
	}
	return params, nil
}

// ParsePeriodParam reads period=YYYY-MM, defaulting to the month of now.
func ParsePeriodParam(r *http.Request, now time.Time) (core.Period, error) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return core.PeriodOf(now), nil
	}
	p, err := core.ParsePeriod(v)
	if err != nil {
		return core.Period{}, &BodyError{Msg: err.Error()}
	}
	return p, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
