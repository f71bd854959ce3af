package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finansheet/internal/core"
)

func fixedStore() *Store {
	s := New()
	clock := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func rentTerm(from string) core.Term {
	return core.Term{
		EffectiveFrom:    core.MustParseDate(from),
		Frequency:        core.Monthly,
		AmountOriginal:   decimal.NewFromInt(400000),
		CurrencyOriginal: "CLP",
		DueDayOfMonth:    5,
	}
}

func TestMemoryStoreCommitmentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := fixedStore()

	c, err := s.CreateCommitment(ctx, core.Commitment{Name: "Arriendo", FlowType: core.Expense}, rentTerm("2024-01-05"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == 0 || c.ActiveTerm == nil || c.Terms[0].Version != 1 {
		t.Fatalf("unexpected commitment %+v", c)
	}

	if _, err := s.AddTerm(ctx, c.ID, rentTerm("2024-07-01")); err != nil {
		t.Fatalf("add term: %v", err)
	}
	if err := s.PauseCommitment(ctx, c.ID, core.NewPeriod(2024, 9)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	resumed, err := s.ResumeCommitment(ctx, c.ID, core.NewPeriod(2025, 1))
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Version != 3 || resumed.ID == 0 {
		t.Fatalf("unexpected resumed term %+v", resumed)
	}

	got, err := s.GetCommitment(ctx, c.ID, core.NewPeriod(2024, 10))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Terms) != 3 || got.ActiveTerm != nil {
		t.Fatalf("expected 3 terms and a paused October, got %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("history invalid: %v", err)
	}

	got.Terms[0].DueDayOfMonth = 30
	again, _ := s.GetCommitment(ctx, c.ID, core.NewPeriod(2024, 10))
	if again.Terms[0].DueDayOfMonth != 5 {
		t.Fatal("returned commitments must not alias the store")
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := fixedStore()

	if _, err := s.GetCommitment(ctx, 1, core.NewPeriod(2024, 1)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteCommitment(ctx, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetImportant(ctx, 1, true); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeletePayment(ctx, 1, core.NewPeriod(2024, 1)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err := s.RecordPayment(ctx, core.Payment{CommitmentID: 1, Period: core.NewPeriod(2024, 1), CurrencyOriginal: "CLP"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStorePayments(t *testing.T) {
	ctx := context.Background()
	s := fixedStore()
	c, _ := s.CreateCommitment(ctx, core.Commitment{Name: "Luz", FlowType: core.Expense}, rentTerm("2024-01-05"))

	march := core.NewPeriod(2024, 3)
	first, err := s.RecordPayment(ctx, core.Payment{CommitmentID: c.ID, Period: march,
		AmountOriginal: decimal.NewFromInt(100), CurrencyOriginal: "CLP"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	paid := core.MustParseDate("2024-03-04")
	second, err := s.RecordPayment(ctx, core.Payment{CommitmentID: c.ID, Period: march, PaymentDate: &paid,
		AmountOriginal: decimal.NewFromInt(120), CurrencyOriginal: "CLP"})
	if err != nil {
		t.Fatalf("record again: %v", err)
	}
	if second.ID != first.ID || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("expected upsert, got %+v then %+v", first, second)
	}
	for _, m := range []int{1, 12} {
		if _, err := s.RecordPayment(ctx, core.Payment{CommitmentID: c.ID, Period: core.NewPeriod(2024, m),
			AmountOriginal: decimal.NewFromInt(1), CurrencyOriginal: "CLP"}); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := s.ListPaymentsInRange(ctx, core.NewPeriod(2024, 1), core.NewPeriod(2024, 6))
	if len(got[c.ID]) != 2 || got[c.ID][0].Period != core.NewPeriod(2024, 1) || !got[c.ID][1].IsCompleted() {
		t.Fatalf("unexpected range %+v", got[c.ID])
	}

	if err := s.DeletePayment(ctx, c.ID, march); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.ListPaymentsInRange(ctx, core.NewPeriod(2024, 1), core.NewPeriod(2024, 6))
	if len(got[c.ID]) != 1 {
		t.Fatalf("expected one payment left, got %+v", got[c.ID])
	}
}

func TestMemoryStoreDeleteClearsLinks(t *testing.T) {
	ctx := context.Background()
	s := fixedStore()
	a, _ := s.CreateCommitment(ctx, core.Commitment{Name: "Sueldo", FlowType: core.Income}, rentTerm("2024-01-01"))
	b, err := s.CreateCommitment(ctx, core.Commitment{Name: "Arriendo", FlowType: core.Expense, LinkedCommitmentID: &a.ID}, rentTerm("2024-01-01"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCommitment(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetCommitment(ctx, b.ID, core.NewPeriod(2024, 1))
	if got.LinkedCommitmentID != nil {
		t.Fatalf("link should be cleared, got %d", *got.LinkedCommitmentID)
	}
	list, _ := s.ListCommitments(ctx, core.NewPeriod(2024, 1))
	if len(list) != 1 {
		t.Fatalf("expected one commitment, got %d", len(list))
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	if list, _ := NewFromFiles(dir).ListCommitments(context.Background(), core.NewPeriod(2024, 1)); len(list) != 0 {
		t.Fatalf("expected empty store without seed file, got %d", len(list))
	}

	seed := "# name|flow|frequency|amount|currency|due|from\n" +
		"Arriendo|expense|monthly|400000|clp|5|2024-01-05|important\n" +
		"Sueldo|INCOME|MONTHLY|1.500.000|CLP|1|2024-01-01\n" +
		"broken line\n" +
		"Seguro|EXPENSE|WEEKLY|1000|CLP|5|2024-01-01\n"
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	list, _ := NewFromFiles(dir).ListCommitments(context.Background(), core.NewPeriod(2024, 6))
	if len(list) != 1 {
		t.Fatalf("expected 1 valid seed, got %d: %+v", len(list), list)
	}
	if list[0].Name != "Arriendo" || !list[0].IsImportant || list[0].FlowType != core.Expense {
		t.Fatalf("unexpected seed %+v", list[0])
	}
}
