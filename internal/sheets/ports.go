package sheets

import (
	"context"

	"finansheet/internal/core"
	"finansheet/internal/schedule"
)

// Ports for outbound adapters.
type (
	// CommitmentReader loads commitments with their full term history. The
	// cached active term is the one covering at.
	CommitmentReader interface {
		ListCommitments(ctx context.Context, at core.Period) ([]core.Commitment, error)
		GetCommitment(ctx context.Context, id int64, at core.Period) (core.Commitment, error)
	}

	CommitmentWriter interface {
		CreateCommitment(ctx context.Context, c core.Commitment, first core.Term) (core.Commitment, error)
		AddTerm(ctx context.Context, id int64, t core.Term) (core.Term, error)
		PauseCommitment(ctx context.Context, id int64, from core.Period) error
		ResumeCommitment(ctx context.Context, id int64, from core.Period) (core.Term, error)
		SetImportant(ctx context.Context, id int64, important bool) error
		DeleteCommitment(ctx context.Context, id int64) error
	}

	// PaymentReader returns payments between two months, both inclusive,
	// grouped by commitment.
	PaymentReader interface {
		ListPaymentsInRange(ctx context.Context, from, to core.Period) (map[int64][]core.Payment, error)
	}

	PaymentWriter interface {
		// RecordPayment stores p, replacing any payment for the same
		// commitment and period.
		RecordPayment(ctx context.Context, p core.Payment) (core.Payment, error)
		DeletePayment(ctx context.Context, commitmentID int64, period core.Period) error
	}

	// GridExporter publishes a built grid to an external sheet.
	GridExporter interface {
		ExportGrid(ctx context.Context, g *schedule.Grid) error
	}
)
