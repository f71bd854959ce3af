package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"finansheet/internal/cache"
	"finansheet/internal/core"
	"finansheet/internal/log"
	"finansheet/internal/schedule"
	"finansheet/internal/sheets"
)

const (
	// DefaultGridCacheSize bounds the number of cached grid windows.
	DefaultGridCacheSize = 32
	// DefaultGridCacheTTL keeps a cached grid short lived: statuses and
	// the "new" priority depend on the clock.
	DefaultGridCacheTTL = time.Minute
)

// Snapshot is everything needed to build a grid for a range of months.
type Snapshot struct {
	Commitments []core.Commitment
	Payments    map[int64][]core.Payment
}

// MonthSummary is the aggregated view of one month.
type MonthSummary struct {
	Period    core.Period
	Totals    core.MonthTotals
	Counts    map[schedule.Status]int
	Anomalies []schedule.Anomaly
}

// DashboardService loads data and derives the views the UI shows. Built
// grids are cached until the next mutation.
type DashboardService struct {
	commitments sheets.CommitmentReader
	payments    sheets.PaymentReader
	opts        schedule.Options
	now         func() time.Time
	grids       *cache.LRUCache[*schedule.Grid]
}

func NewDashboardService(commitments sheets.CommitmentReader, payments sheets.PaymentReader, opts schedule.Options) *DashboardService {
	return &DashboardService{
		commitments: commitments,
		payments:    payments,
		opts:        opts,
		now:         time.Now,
		grids:       cache.NewLRUCache[*schedule.Grid](DefaultGridCacheSize, DefaultGridCacheTTL),
	}
}

// WithClock replaces the clock used as "now" for every derived view.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// Now returns the service clock's current time.
func (s *DashboardService) Now() time.Time {
	return s.now()
}

// GridCache exposes the cache for cleanup registration and metrics.
func (s *DashboardService) GridCache() *cache.LRUCache[*schedule.Grid] {
	return s.grids
}

// Invalidate drops every cached grid.
func (s *DashboardService) Invalidate() {
	if n := s.grids.Purge(); n > 0 {
		slog.Debug("Grid cache invalidated", log.FieldComponent, log.ComponentCache, "entries_removed", n)
	}
}

// LoadSnapshot reads commitments and the payments between from and to
// concurrently.
func (s *DashboardService) LoadSnapshot(ctx context.Context, from, to core.Period) (Snapshot, error) {
	at := core.PeriodOf(s.now())
	var snap Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.commitments.ListCommitments(gctx, at)
		if err != nil {
			return fmt.Errorf("list commitments: %w", err)
		}
		snap.Commitments = list
		return nil
	})
	g.Go(func() error {
		payments, err := s.payments.ListPaymentsInRange(gctx, from, to)
		if err != nil {
			return fmt.Errorf("list payments %s..%s: %w", from, to, err)
		}
		snap.Payments = payments
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Grid builds the grid for months consecutive months starting at from.
func (s *DashboardService) Grid(ctx context.Context, from core.Period, months int) (*schedule.Grid, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if months < 1 {
		return nil, fmt.Errorf("months must be positive, got %d", months)
	}

	now := s.now()
	key := gridKey(from, months, core.DateOf(now))
	if g, ok := s.grids.Get(key); ok {
		slog.DebugContext(ctx, "Grid cache hit", log.FieldPeriod, from.String(), "months", months)
		return g, nil
	}

	lo, hi := paymentWindow(from, months, core.PeriodOf(now))
	snap, err := s.LoadSnapshot(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("load grid %s+%d: %w", from, months, err)
	}

	g := schedule.BuildGrid(snap.Commitments, snap.Payments, core.PeriodRange(from, months), now, s.opts)
	s.grids.Set(key, g)
	slog.DebugContext(ctx, "Grid built",
		log.FieldPeriod, from.String(),
		"months", months,
		"rows", len(g.Rows),
		"anomalies", len(g.Anomalies()))
	return g, nil
}

// Commitments returns every commitment ranked by the priority sorter for
// the current month.
func (s *DashboardService) Commitments(ctx context.Context) ([]schedule.Ranked, error) {
	now := s.now()
	current := core.PeriodOf(now)
	snap, err := s.LoadSnapshot(ctx, current, current)
	if err != nil {
		return nil, err
	}
	sorter := schedule.Sorter{
		Now:          now,
		Match:        s.opts.Match,
		Locale:       s.opts.Locale,
		RecentWindow: s.opts.RecentWindow,
	}
	return sorter.Sort(snap.Commitments, snap.Payments), nil
}

// Summary aggregates one month.
func (s *DashboardService) Summary(ctx context.Context, period core.Period) (MonthSummary, error) {
	g, err := s.Grid(ctx, period, 1)
	if err != nil {
		return MonthSummary{}, err
	}
	sum := MonthSummary{
		Period:    period,
		Totals:    g.Totals[0],
		Counts:    make(map[schedule.Status]int),
		Anomalies: g.Anomalies(),
	}
	for _, row := range g.Rows {
		sum.Counts[row.Cells[0].Status]++
	}
	return sum, nil
}

func gridKey(from core.Period, months int, today core.Date) string {
	return from.String() + "+" + strconv.Itoa(months) + "@" + today.String()
}

// paymentWindow widens the visible range to include the current month,
// which the priority sorter always reads.
func paymentWindow(from core.Period, months int, current core.Period) (core.Period, core.Period) {
	lo, hi := from, from.AddMonths(months-1)
	if current.Before(lo) {
		lo = current
	}
	if current.After(hi) {
		hi = current
	}
	return lo, hi
}

// DefaultFrom is the first month of the default window of months months:
// a quarter of the window lies before the current month.
func DefaultFrom(now time.Time, months int) core.Period {
	return core.PeriodOf(now).AddMonths(-(months / 4))
}
