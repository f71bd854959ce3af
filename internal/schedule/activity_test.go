package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"finansheet/internal/core"
)

func TestIsActiveInMonth_MonthlyOpenEnded(t *testing.T) {
	term := monthlyTerm(1, "2024-03-31", nil)
	start := term.StartPeriod()

	assert.False(t, IsActiveInMonth(term, start.AddMonths(-1)))
	for i := 0; i < 240; i++ {
		assert.True(t, IsActiveInMonth(term, start.AddMonths(i)), "month +%d", i)
	}
}

func TestIsActiveInMonth_Frequencies(t *testing.T) {
	tests := []struct {
		frequency core.Frequency
		every     int
	}{
		{core.Bimonthly, 2},
		{core.Quarterly, 3},
		{core.Semiannually, 6},
		{core.Annually, 12},
	}
	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			term := monthlyTerm(1, "2024-02-14", nil)
			term.Frequency = tt.frequency
			start := term.StartPeriod()
			for i := 0; i < 36; i++ {
				assert.Equal(t, i%tt.every == 0, IsActiveInMonth(term, start.AddMonths(i)), "month +%d", i)
			}
		})
	}
}

func TestIsActiveInMonth_Quarterly(t *testing.T) {
	term := monthlyTerm(1, "2024-01-05", nil)
	term.Frequency = core.Quarterly

	assert.True(t, IsActiveInMonth(term, core.NewPeriod(2024, 1)))
	assert.False(t, IsActiveInMonth(term, core.NewPeriod(2024, 2)))
	assert.False(t, IsActiveInMonth(term, core.NewPeriod(2024, 3)))
	assert.True(t, IsActiveInMonth(term, core.NewPeriod(2024, 4)))
	assert.True(t, IsActiveInMonth(term, core.NewPeriod(2024, 7)))
}

func TestIsActiveInMonth_Once(t *testing.T) {
	term := monthlyTerm(1, "2024-05-20", nil)
	term.Frequency = core.Once

	assert.True(t, IsActiveInMonth(term, core.NewPeriod(2024, 5)))
	assert.False(t, IsActiveInMonth(term, core.NewPeriod(2024, 6)))
	assert.False(t, IsActiveInMonth(term, core.NewPeriod(2024, 4)))
}

func TestIsActiveInMonth_UnknownFrequencyIsPermissive(t *testing.T) {
	term := monthlyTerm(1, "2024-01-01", nil)
	term.Frequency = core.Frequency("FORTNIGHTLY")

	assert.True(t, IsActiveInMonth(term, core.NewPeriod(2024, 2)))
	assert.False(t, IsActiveInMonth(term, core.NewPeriod(2023, 12)))
}

func TestRegisterActivityChecker(t *testing.T) {
	custom := core.Frequency("EVERY_FOUR_MONTHS")
	RegisterActivityChecker(custom, EveryNMonths(4))
	defer delete(activityStrategies, custom)

	checker, ok := GetActivityChecker(custom)
	assert.True(t, ok)
	assert.True(t, checker.IsActive(8))
	assert.False(t, checker.IsActive(6))
}
