package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0", "0", true},
		{" 2.50 ", "2.5", true},
		{"120000", "120000", true},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.NewFromInt(30000)); got != "30000.00" {
		t.Fatalf("got %q", got)
	}
}

func TestMonthTotals(t *testing.T) {
	var mt MonthTotals
	mt.Add(Income, decimal.NewFromInt(1000), true)
	mt.Add(Expense, decimal.NewFromInt(300), true)
	mt.Add(Expense, decimal.NewFromInt(200), false)

	if !mt.Net().Equal(decimal.NewFromInt(500)) {
		t.Fatalf("net = %s, want 500", mt.Net())
	}
	if !mt.Outstanding().Equal(decimal.NewFromInt(200)) {
		t.Fatalf("outstanding = %s, want 200", mt.Outstanding())
	}
}
