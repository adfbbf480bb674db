package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keyward/keyward-backend/pkg/db/models"
	"github.com/keyward/keyward-backend/pkg/enums"
	"github.com/keyward/keyward-backend/pkg/logger"
)

type stubOverdueLoans struct {
	rows []models.Loan
	err  error
}

func (s *stubOverdueLoans) ListOverdue(ctx context.Context, cutoff, oldest time.Time) ([]models.Loan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

type stubOverdueAlerts struct {
	recent    map[uuid.UUID]bool
	created   []*models.Alert
	createErr map[uuid.UUID]error
	checkErr  map[uuid.UUID]error
}

func newStubOverdueAlerts() *stubOverdueAlerts {
	return &stubOverdueAlerts{
		recent:    map[uuid.UUID]bool{},
		createErr: map[uuid.UUID]error{},
		checkErr:  map[uuid.UUID]error{},
	}
}

func (s *stubOverdueAlerts) Create(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if alert.LoanID != nil {
		if err := s.createErr[*alert.LoanID]; err != nil {
			return nil, err
		}
	}
	s.created = append(s.created, alert)
	return alert, nil
}

func (s *stubOverdueAlerts) HasRecentForLoan(ctx context.Context, loanID uuid.UUID, alertType enums.AlertType, since time.Time) (bool, error) {
	if err := s.checkErr[loanID]; err != nil {
		return false, err
	}
	return s.recent[loanID], nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func overdueLoan(due time.Time) models.Loan {
	return models.Loan{
		ID:       uuid.New(),
		KeyID:    uuid.New(),
		PersonID: uuid.New(),
		Status:   enums.LoanStatusActive,
		DueAt:    &due,
	}
}

func newOverdueJobForTests(t *testing.T, loans *stubOverdueLoans, alerts *stubOverdueAlerts, at time.Time) *OverdueJob {
	t.Helper()
	job, err := NewOverdueJob(loans, alerts, testLogger(), 30*24*time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewOverdueJob failed: %v", err)
	}
	if !at.IsZero() {
		job.now = func() time.Time { return at }
	}
	return job
}

func TestOverdueJobEmitsOneAlertPerLoan(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	loans := &stubOverdueLoans{rows: []models.Loan{
		overdueLoan(now.Add(-2 * time.Hour)),
		overdueLoan(now.Add(-26 * time.Hour)),
	}}
	alerts := newStubOverdueAlerts()
	job := newOverdueJobForTests(t, loans, alerts, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(alerts.created) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts.created))
	}
	for _, alert := range alerts.created {
		if alert.AlertType != enums.AlertTypeOverdue {
			t.Fatalf("expected overdue alert type, got %s", alert.AlertType)
		}
		if alert.LoanID == nil || alert.KeyID == nil {
			t.Fatal("expected alert bound to loan and key")
		}
	}
}

func TestOverdueJobSkipsRecentlyAlerted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fresh := overdueLoan(now.Add(-time.Hour))
	alreadyAlerted := overdueLoan(now.Add(-3 * time.Hour))

	loans := &stubOverdueLoans{rows: []models.Loan{fresh, alreadyAlerted}}
	alerts := newStubOverdueAlerts()
	alerts.recent[alreadyAlerted.ID] = true
	job := newOverdueJobForTests(t, loans, alerts, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(alerts.created) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts.created))
	}
	if alerts.created[0].LoanID == nil || *alerts.created[0].LoanID != fresh.ID {
		t.Fatal("expected the alert for the not-yet-alerted loan")
	}
}

func TestOverdueJobAccumulatesRowFailures(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	good := overdueLoan(now.Add(-time.Hour))
	badCheck := overdueLoan(now.Add(-2 * time.Hour))
	badCreate := overdueLoan(now.Add(-3 * time.Hour))

	loans := &stubOverdueLoans{rows: []models.Loan{badCheck, badCreate, good}}
	alerts := newStubOverdueAlerts()
	alerts.checkErr[badCheck.ID] = errors.New("dedup query failed")
	alerts.createErr[badCreate.ID] = errors.New("insert failed")
	job := newOverdueJobForTests(t, loans, alerts, now)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected accumulated error")
	}
	if len(alerts.created) != 1 {
		t.Fatalf("good row must still be processed, got %d alerts", len(alerts.created))
	}
	if alerts.created[0].LoanID == nil || *alerts.created[0].LoanID != good.ID {
		t.Fatal("expected the surviving alert for the healthy loan")
	}
}

func TestOverdueJobListFailureAborts(t *testing.T) {
	loans := &stubOverdueLoans{err: errors.New("db down")}
	alerts := newStubOverdueAlerts()
	job := newOverdueJobForTests(t, loans, alerts, time.Time{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when the scan query fails")
	}
	if len(alerts.created) != 0 {
		t.Fatal("no alerts expected when the scan fails")
	}
}
