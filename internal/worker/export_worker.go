package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"finansheet/internal/amqp"
	"finansheet/internal/core"
	"finansheet/internal/log"
	"finansheet/internal/services"
	"finansheet/internal/sheets"
)

// ExportWorker mirrors the grid window into an external sheet. The sheet is
// rewritten as a whole on every export.
type ExportWorker struct {
	dashboard *services.DashboardService
	exporter  sheets.GridExporter
	months    int

	// exports are serialized so an older grid never overwrites a newer one
	mu sync.Mutex
}

func NewExportWorker(dashboard *services.DashboardService, exporter sheets.GridExporter, months int) *ExportWorker {
	if months < 1 {
		months = 12
	}
	return &ExportWorker{
		dashboard: dashboard,
		exporter:  exporter,
		months:    months,
	}
}

// Window returns the months currently exported.
func (w *ExportWorker) Window() (from core.Period, months int) {
	return services.DefaultFrom(w.dashboard.Now(), w.months), w.months
}

// HandleEvent re-exports the window when the event touches it. Events for
// a month outside the window are acknowledged without exporting.
func (w *ExportWorker) HandleEvent(ctx context.Context, e *amqp.CommitmentEvent) error {
	slog.InfoContext(ctx, "Processing commitment event",
		"event_id", e.ID,
		"type", e.Type,
		log.FieldCommitmentID, e.CommitmentID,
		log.FieldPeriod, e.Period)

	// the server process owns the data; anything cached here is stale
	w.dashboard.Invalidate()

	if e.Period != "" {
		p, err := core.ParsePeriod(e.Period)
		if err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
		if !w.touchesWindow(e.Type, p) {
			slog.DebugContext(ctx, "Event outside export window, skipping",
				"event_id", e.ID, log.FieldPeriod, e.Period)
			return nil
		}
	}
	return w.ExportAll(ctx)
}

// touchesWindow reports whether an event for period p can change an
// exported month. Schedule changes reach every month after p.
func (w *ExportWorker) touchesWindow(t amqp.EventType, p core.Period) bool {
	from, months := w.Window()
	if p.After(from.AddMonths(months - 1)) {
		return false
	}
	if p.Before(from) {
		return isScheduleChange(t)
	}
	return true
}

// isScheduleChange reports whether an event can change months after its own
// period.
func isScheduleChange(t amqp.EventType) bool {
	switch t {
	case amqp.EventCommitmentPaused, amqp.EventCommitmentResumed, amqp.EventTermAdded:
		return true
	}
	return false
}

// ExportAll builds the current window and writes it out.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	from, months := w.Window()
	g, err := w.dashboard.Grid(ctx, from, months)
	if err != nil {
		return fmt.Errorf("build export grid: %w", err)
	}
	if err := w.exporter.ExportGrid(ctx, g); err != nil {
		return fmt.Errorf("export grid: %w", err)
	}

	slog.InfoContext(ctx, "Grid exported",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpExport,
		log.FieldPeriod, from.String(),
		"months", months,
		"rows", len(g.Rows))
	return nil
}
