package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"github.com/keyward/keyward-backend/pkg/logger"
	"go.uber.org/multierr"
)

type overdueLoansRepository interface {
	ListOverdue(ctx context.Context, cutoff, oldest time.Time) ([]models.Loan, error)
}

type overdueAlertsRepository interface {
	Create(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	HasRecentForLoan(ctx context.Context, loanID uuid.UUID, alertType enums.AlertType, since time.Time) (bool, error)
}

// OverdueJob emits OVERDUE alerts for active loans past their due date. It
// never touches the loan status: a loan only closes as V when the key comes
// back, so the key-P/one-active-loan pairing stays intact.
type OverdueJob struct {
	loans       overdueLoansRepository
	alerts      overdueAlertsRepository
	logg        *logger.Logger
	lookback    time.Duration
	dedupWindow time.Duration
	now         func() time.Time
}

// NewOverdueJob builds the overdue detection job.
func NewOverdueJob(loans overdueLoansRepository, alerts overdueAlertsRepository, logg *logger.Logger, lookback, dedupWindow time.Duration) (*OverdueJob, error) {
	if loans == nil {
		return nil, fmt.Errorf("loans repository required")
	}
	if alerts == nil {
		return nil, fmt.Errorf("alerts repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if lookback <= 0 {
		return nil, fmt.Errorf("lookback must be positive")
	}
	if dedupWindow <= 0 {
		return nil, fmt.Errorf("dedup window must be positive")
	}
	return &OverdueJob{
		loans:       loans,
		alerts:      alerts,
		logg:        logg,
		lookback:    lookback,
		dedupWindow: dedupWindow,
		now:         time.Now,
	}, nil
}

// Name implements Job.
func (j *OverdueJob) Name() string {
	return "overdue-loans"
}

// Run scans for overdue loans and emits one alert per loan per dedup window.
// Individual failures accumulate so one bad row does not stop the scan.
func (j *OverdueJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	rows, err := j.loans.ListOverdue(ctx, now, now.Add(-j.lookback))
	if err != nil {
		return fmt.Errorf("listing overdue loans: %w", err)
	}

	var errs error
	emitted := 0
	for _, loan := range rows {
		duplicate, err := j.alerts.HasRecentForLoan(ctx, loan.ID, enums.AlertTypeOverdue, now.Add(-j.dedupWindow))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("loan %s: checking prior alerts: %w", loan.ID, err))
			continue
		}
		if duplicate {
			continue
		}

		loanID := loan.ID
		keyID := loan.KeyID
		if _, err := j.alerts.Create(ctx, &models.Alert{
			AlertType:   enums.AlertTypeOverdue,
			LoanID:      &loanID,
			KeyID:       &keyID,
			Message:     j.message(loan),
			GeneratedAt: now,
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("loan %s: creating alert: %w", loan.ID, err))
			continue
		}
		emitted++
	}

	fields := map[string]any{"scanned": len(rows), "emitted": emitted}
	j.logg.Info(j.logg.WithFields(ctx, fields), "overdue scan finished")
	return errs
}

func (j *OverdueJob) message(loan models.Loan) string {
	keyCode := loan.KeyID.String()
	if loan.Key != nil {
		keyCode = loan.Key.Code
	}
	holder := loan.PersonID.String()
	if loan.Person != nil {
		holder = loan.Person.FullName()
	}
	due := ""
	if loan.DueAt != nil {
		due = loan.DueAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("key %s held by %s is overdue (due %s)", keyCode, holder, due)
}
