package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  FlowType = "INCOME"
	Expense FlowType = "EXPENSE"
)

const (
	Once         Frequency = "ONCE"
	Monthly      Frequency = "MONTHLY"
	Bimonthly    Frequency = "BIMONTHLY"
	Quarterly    Frequency = "QUARTERLY"
	Semiannually Frequency = "SEMIANNUALLY"
	Annually     Frequency = "ANNUALLY"
)

const dateLayout = "2006-01-02"

type (
	FlowType  string
	Frequency string

	// Date is a calendar day in UTC. The time-of-day part is always zero.
	Date struct {
		time.Time
	}

	// Term is one version of a commitment's schedule and amount.
	Term struct {
		ID               int64
		Version          int
		EffectiveFrom    Date
		EffectiveUntil   *Date // nil = open ended
		Frequency        Frequency
		AmountOriginal   decimal.Decimal
		AmountInBase     decimal.NullDecimal
		CurrencyOriginal string
		// InstallmentsCount is nil for commitments that are not paid in cuotas.
		InstallmentsCount *int
		IsDividedAmount   bool
		DueDayOfMonth     int
	}

	Commitment struct {
		ID                 int64
		Name               string
		FlowType           FlowType
		CategoryID         *int64
		IsImportant        bool
		CreatedAt          time.Time
		LinkedCommitmentID *int64
		Terms              []Term // ordered by version
		ActiveTerm         *Term  // cached term covering "today", may be stale
	}

	// Payment records money paid, or pre-registered, for one period.
	Payment struct {
		ID               int64
		CommitmentID     int64
		Period           Period
		PaymentDate      *Date // set only once the payment is completed
		AmountOriginal   decimal.Decimal
		AmountInBase     decimal.NullDecimal
		CurrencyOriginal string
		UpdatedAt        time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDueDay    = errors.New("due day must be between 1 and 31")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidFlowType  = errors.New("invalid flow type")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrEmptyName        = errors.New("empty name")
	ErrTermOverlap      = errors.New("terms overlap")
	ErrTermRange        = errors.New("effective until precedes effective from")
	ErrNotFound         = errors.New("not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's own location for the
// day boundary.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a strict YYYY-MM-DD string. Anything else is rejected
// rather than guessed, since period matching depends on the year-month part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(dateLayout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// MustParseDate is ParseDate for literals in tests and seeds.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Period returns the calendar month containing d.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// DaysUntil returns the whole number of days from d to other (negative when
// other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

func (f FlowType) Valid() bool {
	return f == Income || f == Expense
}

// Sign is +1 for income and -1 for expenses.
func (f FlowType) Sign() decimal.Decimal {
	if f == Income {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

func (f Frequency) Valid() bool {
	switch f {
	case Once, Monthly, Bimonthly, Quarterly, Semiannually, Annually:
		return true
	}
	return false
}

// StartPeriod is the month the term takes effect. The day is ignored.
func (t Term) StartPeriod() Period {
	return t.EffectiveFrom.Period()
}

// EndPeriod is the last month covered by the term, or false when open ended.
func (t Term) EndPeriod() (Period, bool) {
	if t.EffectiveUntil == nil {
		return Period{}, false
	}
	return t.EffectiveUntil.Period(), true
}

// Covers reports whether p falls inside the term's range compared at
// year-month granularity.
func (t Term) Covers(p Period) bool {
	if p.Before(t.StartPeriod()) {
		return false
	}
	end, ok := t.EndPeriod()
	return !ok || !p.After(end)
}

// TotalAmount prefers the base-currency amount over the original one.
func (t Term) TotalAmount() decimal.Decimal {
	if t.AmountInBase.Valid {
		return t.AmountInBase.Decimal
	}
	return t.AmountOriginal
}

// Installments returns the installment count, 0 when unset.
func (t Term) Installments() int {
	if t.InstallmentsCount == nil {
		return 0
	}
	return *t.InstallmentsCount
}

// PerPeriodAmount divides the total across installments only when the term
// says the amount is a total to be split.
func (t Term) PerPeriodAmount() decimal.Decimal {
	total := t.TotalAmount()
	if n := t.Installments(); t.IsDividedAmount && n > 1 {
		return total.Div(decimal.NewFromInt(int64(n)))
	}
	return total
}

func (t Term) Validate() error {
	if err := t.EffectiveFrom.Validate(); err != nil {
		return fmt.Errorf("effective from: %w", err)
	}
	if t.EffectiveUntil != nil {
		if err := t.EffectiveUntil.Validate(); err != nil {
			return fmt.Errorf("effective until: %w", err)
		}
		if t.EffectiveUntil.Before(t.EffectiveFrom.Time) {
			return ErrTermRange
		}
	}
	if !t.Frequency.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, t.Frequency)
	}
	if t.AmountOriginal.IsNegative() {
		return ErrInvalidAmount
	}
	if t.AmountInBase.Valid && t.AmountInBase.Decimal.IsNegative() {
		return ErrInvalidAmount
	}
	if err := ValidateCurrency(t.CurrencyOriginal); err != nil {
		return err
	}
	if t.InstallmentsCount != nil && *t.InstallmentsCount < 1 {
		return errors.New("installments count must be at least 1")
	}
	if t.DueDayOfMonth < 1 || t.DueDayOfMonth > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

// overlaps compares both ranges at year-month granularity.
func (t Term) overlaps(o Term) bool {
	if t.Covers(o.StartPeriod()) || o.Covers(t.StartPeriod()) {
		return true
	}
	return false
}

// HasTermHistory reports whether the full term history is loaded. Without
// it only the cached active term is available.
func (c Commitment) HasTermHistory() bool {
	return len(c.Terms) > 0
}

// LatestTerm returns the term with the highest version.
func (c Commitment) LatestTerm() *Term {
	var latest *Term
	for i := range c.Terms {
		if latest == nil || c.Terms[i].Version > latest.Version {
			latest = &c.Terms[i]
		}
	}
	if latest == nil {
		return c.ActiveTerm
	}
	return latest
}

func (c Commitment) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if !c.FlowType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFlowType, c.FlowType)
	}
	for i := range c.Terms {
		if err := c.Terms[i].Validate(); err != nil {
			return fmt.Errorf("term v%d: %w", c.Terms[i].Version, err)
		}
		for j := i + 1; j < len(c.Terms); j++ {
			if c.Terms[i].overlaps(c.Terms[j]) {
				return fmt.Errorf("%w: v%d and v%d", ErrTermOverlap, c.Terms[i].Version, c.Terms[j].Version)
			}
		}
	}
	return nil
}

// IsCompleted reports whether the payment was actually paid rather than
// only registered.
func (p Payment) IsCompleted() bool {
	return p.PaymentDate != nil
}

func (p Payment) Validate() error {
	if p.CommitmentID <= 0 {
		return errors.New("payment without commitment")
	}
	if err := p.Period.Validate(); err != nil {
		return err
	}
	if p.AmountOriginal.IsNegative() {
		return ErrInvalidAmount
	}
	return ValidateCurrency(p.CurrencyOriginal)
}

// ValidateCurrency checks for a three letter upper-case ISO 4217 code.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}
