package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is one calendar month, the unit of scheduling and payment matching.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod creates a Period from year and month (1-12).
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: time.Month(month)}
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses a strict YYYY-MM string.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[4] != '-' {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil || m < 1 || m > 12 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return NewPeriod(y, m), nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December || p.Year < 1 {
		return fmt.Errorf("%w: %04d-%02d", ErrInvalidPeriod, p.Year, int(p.Month))
	}
	return nil
}

func (p Period) index() int {
	return p.Year*12 + int(p.Month) - 1
}

// AddMonths returns the period n months after p (n may be negative).
func (p Period) AddMonths(n int) Period {
	i := p.index() + n
	return Period{Year: i / 12, Month: time.Month(i%12 + 1)}
}

// MonthsSince returns the signed number of months from start to p.
func (p Period) MonthsSince(start Period) int {
	return p.index() - start.index()
}

// Compare returns -1, 0 or +1.
func (p Period) Compare(o Period) int {
	switch a, b := p.index(), o.index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }
func (p Period) After(o Period) bool  { return p.Compare(o) > 0 }

// FirstDay returns the first day of the month.
func (p Period) FirstDay() Date {
	return NewDate(p.Year, int(p.Month), 1)
}

// LastDay returns the last day of the month.
func (p Period) LastDay() Date {
	return Date{Time: time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC)}
}

// DueDate returns the given day of the month. Days past the end of a short
// month fall on its last day (a due day of 31 is February 28/29).
func (p Period) DueDate(day int) Date {
	if day < 1 {
		day = 1
	}
	if last := p.LastDay().Day(); day > last {
		day = last
	}
	return NewDate(p.Year, int(p.Month), day)
}

// PeriodRange returns n consecutive months starting at from.
func PeriodRange(from Period, n int) []Period {
	if n <= 0 {
		return nil
	}
	out := make([]Period, n)
	for i := range out {
		out[i] = from.AddMonths(i)
	}
	return out
}
