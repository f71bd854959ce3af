package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"finansheet/internal/core"
	"finansheet/internal/schedule"
)

// SeedFile is the optional commitment seed read by NewFromFiles.
const SeedFile = "seed_commitments.txt"

type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	nextID      int64
	commitments map[int64]*core.Commitment
	payments    map[int64][]core.Payment
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty store that stamps creation and update times
// with now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:         now,
		commitments: make(map[int64]*core.Commitment),
		payments:    make(map[int64][]core.Payment),
	}
}

// NewFromFiles creates a store seeded from base/seed_commitments.txt. Each
// non-comment line is
//
//	name|INCOME or EXPENSE|frequency|amount|currency|due day|effective from[|important]
//
// Malformed lines are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, SeedFile)) {
		c, t, err := parseSeedLine(line)
		if err != nil {
			continue
		}
		_, _ = s.CreateCommitment(context.Background(), c, t)
	}
	return s
}

func (s *Store) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// CreateCommitment implements sheets.CommitmentWriter.
func (s *Store) CreateCommitment(_ context.Context, c core.Commitment, first core.Term) (core.Commitment, error) {
	first.Version = 1
	c.Terms = []core.Term{first}
	if err := c.Validate(); err != nil {
		return core.Commitment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c.LinkedCommitmentID != nil {
		if _, ok := s.commitments[*c.LinkedCommitmentID]; !ok {
			return core.Commitment{}, fmt.Errorf("linked commitment %d: %w", *c.LinkedCommitmentID, core.ErrNotFound)
		}
	}
	c.ID = s.nextIDLocked()
	c.Terms[0].ID = s.nextIDLocked()
	c.CreatedAt = s.now().UTC()
	c.ActiveTerm = nil
	stored := c
	s.commitments[c.ID] = &stored

	return s.snapshotLocked(c.ID, core.PeriodOf(s.now())), nil
}

// GetCommitment implements sheets.CommitmentReader.
func (s *Store) GetCommitment(_ context.Context, id int64, at core.Period) (core.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commitments[id]; !ok {
		return core.Commitment{}, fmt.Errorf("commitment %d: %w", id, core.ErrNotFound)
	}
	return s.snapshotLocked(id, at), nil
}

// ListCommitments implements sheets.CommitmentReader, ordered by id.
func (s *Store) ListCommitments(_ context.Context, at core.Period) ([]core.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.commitments))
	for id := range s.commitments {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]core.Commitment, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.snapshotLocked(id, at))
	}
	return out, nil
}

// snapshotLocked copies a commitment so callers cannot mutate the store.
func (s *Store) snapshotLocked(id int64, at core.Period) core.Commitment {
	c := *s.commitments[id]
	c.Terms = slices.Clone(c.Terms)
	c.ActiveTerm = schedule.ActiveTermAt(c, at)
	return c
}

// AddTerm implements sheets.CommitmentWriter.
func (s *Store) AddTerm(_ context.Context, id int64, t core.Term) (core.Term, error) {
	return s.changeTerms(id, func(terms []core.Term) (core.TermChange, error) {
		return core.PlanNewTerm(terms, t)
	})
}

// PauseCommitment implements sheets.CommitmentWriter.
func (s *Store) PauseCommitment(_ context.Context, id int64, from core.Period) error {
	_, err := s.changeTerms(id, func(terms []core.Term) (core.TermChange, error) {
		return core.PlanPause(terms, from)
	})
	return err
}

// ResumeCommitment implements sheets.CommitmentWriter.
func (s *Store) ResumeCommitment(_ context.Context, id int64, from core.Period) (core.Term, error) {
	return s.changeTerms(id, func(terms []core.Term) (core.TermChange, error) {
		return core.PlanResume(terms, from)
	})
}

func (s *Store) changeTerms(id int64, plan func([]core.Term) (core.TermChange, error)) (core.Term, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commitments[id]
	if !ok {
		return core.Term{}, fmt.Errorf("commitment %d: %w", id, core.ErrNotFound)
	}
	ch, err := plan(c.Terms)
	if err != nil {
		return core.Term{}, err
	}
	if ch.Added != nil {
		ch.Added.ID = s.nextIDLocked()
	}
	c.Terms = ch.Apply(c.Terms)
	if ch.Added == nil {
		return core.Term{}, nil
	}
	return *ch.Added, nil
}

// SetImportant implements sheets.CommitmentWriter.
func (s *Store) SetImportant(_ context.Context, id int64, important bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commitments[id]
	if !ok {
		return fmt.Errorf("commitment %d: %w", id, core.ErrNotFound)
	}
	c.IsImportant = important
	return nil
}

// DeleteCommitment implements sheets.CommitmentWriter.
func (s *Store) DeleteCommitment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commitments[id]; !ok {
		return fmt.Errorf("commitment %d: %w", id, core.ErrNotFound)
	}
	delete(s.commitments, id)
	delete(s.payments, id)
	for _, c := range s.commitments {
		if c.LinkedCommitmentID != nil && *c.LinkedCommitmentID == id {
			c.LinkedCommitmentID = nil
		}
	}
	return nil
}

// RecordPayment implements sheets.PaymentWriter.
func (s *Store) RecordPayment(_ context.Context, p core.Payment) (core.Payment, error) {
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commitments[p.CommitmentID]; !ok {
		return core.Payment{}, fmt.Errorf("commitment %d: %w", p.CommitmentID, core.ErrNotFound)
	}
	p.UpdatedAt = s.now().UTC()

	list := s.payments[p.CommitmentID]
	for i := range list {
		if list[i].Period == p.Period {
			p.ID = list[i].ID
			list[i] = p
			return p, nil
		}
	}
	p.ID = s.nextIDLocked()
	s.payments[p.CommitmentID] = append(list, p)
	return p, nil
}

// DeletePayment implements sheets.PaymentWriter.
func (s *Store) DeletePayment(_ context.Context, commitmentID int64, period core.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.payments[commitmentID]
	for i := range list {
		if list[i].Period == period {
			s.payments[commitmentID] = slices.Delete(list, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("payment %d/%s: %w", commitmentID, period, core.ErrNotFound)
}

// ListPaymentsInRange implements sheets.PaymentReader.
func (s *Store) ListPaymentsInRange(_ context.Context, from, to core.Period) (map[int64][]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]core.Payment)
	for id, list := range s.payments {
		for _, p := range list {
			if p.Period.Before(from) || p.Period.After(to) {
				continue
			}
			out[id] = append(out[id], p)
		}
	}
	for id := range out {
		slices.SortFunc(out[id], func(a, b core.Payment) int { return a.Period.Compare(b.Period) })
	}
	return out, nil
}

// Ping always succeeds; it lets the store back readiness probes.
func (s *Store) Ping(context.Context) error { return nil }

func parseSeedLine(line string) (core.Commitment, core.Term, error) {
	parts := strings.Split(line, "|")
	if len(parts) < 7 {
		return core.Commitment{}, core.Term{}, fmt.Errorf("seed line needs 7 fields: %q", line)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	amount, err := core.ParseAmount(parts[3])
	if err != nil {
		return core.Commitment{}, core.Term{}, err
	}
	due, err := strconv.Atoi(parts[5])
	if err != nil {
		return core.Commitment{}, core.Term{}, fmt.Errorf("due day: %w", err)
	}
	from, err := core.ParseDate(parts[6])
	if err != nil {
		return core.Commitment{}, core.Term{}, err
	}
	c := core.Commitment{
		Name:        parts[0],
		FlowType:    core.FlowType(strings.ToUpper(parts[1])),
		IsImportant: len(parts) > 7 && strings.EqualFold(parts[7], "important"),
	}
	t := core.Term{
		EffectiveFrom:    from,
		Frequency:        core.Frequency(strings.ToUpper(parts[2])),
		AmountOriginal:   amount,
		CurrencyOriginal: strings.ToUpper(parts[4]),
		DueDayOfMonth:    due,
	}
	return c, t, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
