package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/keymutex"
	"github.com/solarops/tamper-detection-worker/internal/service"
	"go.uber.org/zap"
)

func newEventService(store *fakeStore) *service.EventService {
	audit := service.NewSecurityLogService(store, zap.NewNop())
	return service.NewEventService(store, audit, keymutex.New(8), 0.3, zap.NewNop())
}

func seedUnresolvedEvent(store *fakeStore, installationID uuid.UUID, severity db.TamperSeverity) *db.TamperEvent {
	return store.addEvent(&db.TamperEvent{
		InstallationID:  installationID,
		EventType:       db.EventPhysicalMovement,
		Timestamp:       time.Now().UTC(),
		Severity:        severity,
		ConfidenceScore: 0.8,
		Description:     "Physical movement detected",
		Status:          db.StatusNew,
	})
}

func TestResolve_ClearsFlagOnlyWhenLastEventResolved(t *testing.T) {
	installationID := uuid.New()
	store := newFakeStore(&db.Installation{
		ID:             installationID,
		Status:         db.InstallationActive,
		TamperDetected: true,
	})
	first := seedUnresolvedEvent(store, installationID, db.SeverityHigh)
	second := seedUnresolvedEvent(store, installationID, db.SeverityMedium)

	events := newEventService(store)

	resolved, err := events.Resolve(context.Background(), first.ID, "admin", nil)
	if err != nil {
		t.Fatalf("Failed to resolve first event: %v", err)
	}
	if resolved.Status != db.StatusResolved || !resolved.Resolved {
		t.Errorf("Expected resolved event, got status %s", resolved.Status)
	}
	if !store.installation.TamperDetected {
		t.Error("Expected tamper flag to stay set while an unresolved event remains")
	}

	if _, err := events.Resolve(context.Background(), second.ID, "admin", nil); err != nil {
		t.Fatalf("Failed to resolve second event: %v", err)
	}
	if store.installation.TamperDetected {
		t.Error("Expected tamper flag to clear once no unresolved events remain")
	}
}

func TestResolve_ResolvedEventIsTerminal(t *testing.T) {
	installationID := uuid.New()
	store := newFakeStore(&db.Installation{ID: installationID, Status: db.InstallationActive, TamperDetected: true})
	event := seedUnresolvedEvent(store, installationID, db.SeverityHigh)

	events := newEventService(store)

	if _, err := events.Resolve(context.Background(), event.ID, "admin", nil); err != nil {
		t.Fatalf("Failed to resolve event: %v", err)
	}

	_, err := events.Resolve(context.Background(), event.ID, "admin", nil)
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for resolving a resolved event, got %v", err)
	}
}

func TestCreate_DropsBelowCutoffWithoutSideEffects(t *testing.T) {
	installationID := uuid.New()
	store := newFakeStore(&db.Installation{ID: installationID, Status: db.InstallationActive})

	events := newEventService(store)

	event, err := events.Create(context.Background(), service.CreateEventParams{
		InstallationID:  installationID,
		EventType:       db.EventVoltageFluctuation,
		ConfidenceScore: 0.2,
		Description:     "Voltage fluctuation detected",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if event != nil {
		t.Error("Expected candidate below the cutoff to be dropped")
	}
	if len(store.events) != 0 {
		t.Errorf("Expected no stored events, got %d", len(store.events))
	}
	if store.installation.TamperDetected {
		t.Error("Expected tamper flag untouched for a dropped candidate")
	}
}

func TestCreate_SetsFlagAndWritesAudit(t *testing.T) {
	installationID := uuid.New()
	store := newFakeStore(&db.Installation{ID: installationID, Status: db.InstallationActive})

	events := newEventService(store)

	event, err := events.Create(context.Background(), service.CreateEventParams{
		InstallationID:  installationID,
		EventType:       db.EventPhysicalMovement,
		ConfidenceScore: 0.95,
		Description:     "Physical movement detected",
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	if event.Severity != db.SeverityCritical {
		t.Errorf("Expected CRITICAL severity for confidence 0.95, got %s", event.Severity)
	}
	if !store.installation.TamperDetected {
		t.Error("Expected tamper flag set after event creation")
	}
	if len(store.logs) != 1 || store.logs[0].ActivityType != db.ActivityAlertGenerated {
		t.Errorf("Expected one ALERT_GENERATED audit entry, got %+v", store.logs)
	}
}
