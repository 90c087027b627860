package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/detection"
	"github.com/solarops/tamper-detection-worker/internal/keymutex"
	"github.com/solarops/tamper-detection-worker/internal/repository"
	"go.uber.org/zap"
)

// EventRepository is the storage surface the event service depends on.
type EventRepository interface {
	BeginTx(ctx context.Context) (repository.Tx, error)
	GetInstallation(ctx context.Context, id uuid.UUID) (*db.Installation, error)
	SetInstallationTamperTx(ctx context.Context, tx repository.Tx, id uuid.UUID, detected bool, checkedAt time.Time) error
	GetTamperEvent(ctx context.Context, id uuid.UUID) (*db.TamperEvent, error)
	GetTamperEventForUpdateTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*db.TamperEvent, error)
	InsertTamperEventTx(ctx context.Context, tx repository.Tx, event *db.TamperEvent) error
	UpdateTamperEventStatusTx(ctx context.Context, tx repository.Tx, event *db.TamperEvent) error
	CountUnresolvedByInstallationTx(ctx context.Context, tx repository.Tx, installationID uuid.UUID) (int64, error)
	ListEventsByInstallation(ctx context.Context, installationID uuid.UUID, limit int) ([]db.TamperEvent, error)
	ListUnresolvedEvents(ctx context.Context, severities []db.TamperSeverity) ([]db.TamperEvent, error)
	ListEventsByTimeRange(ctx context.Context, installationID uuid.UUID, start, end time.Time) ([]db.TamperEvent, error)
}

// CreateEventParams describes a tamper event candidate entering the store.
type CreateEventParams struct {
	InstallationID  uuid.UUID
	EventType       db.TamperEventType
	ConfidenceScore float64
	Description     string
	RawSensorData   *string
}

// EventService persists tamper events, enforces the status state machine and
// keeps the per-installation aggregate tamper flag consistent.
type EventService struct {
	repo                EventRepository
	audit               *SecurityLogService
	locks               *keymutex.KeyedMutex
	falsePositiveCutoff float64
	logger              *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(repo EventRepository, audit *SecurityLogService, locks *keymutex.KeyedMutex, falsePositiveCutoff float64, logger *zap.Logger) *EventService {
	return &EventService{
		repo:                repo,
		audit:               audit,
		locks:               locks,
		falsePositiveCutoff: falsePositiveCutoff,
		logger:              logger,
	}
}

// Create validates and persists a tamper event. Candidates below the false
// positive cutoff are dropped and (nil, nil) is returned. The event row, the
// installation's tamper flag and the audit entry commit as one transaction.
//
// Callers are expected to hold the installation's stripe in the shared keyed
// mutex; the detection service does this for every path that reaches here.
func (s *EventService) Create(ctx context.Context, p CreateEventParams) (*db.TamperEvent, error) {
	if !p.EventType.Valid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidArgument, p.EventType)
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return nil, fmt.Errorf("%w: confidence score must be within [0,1], got %v", ErrInvalidArgument, p.ConfidenceScore)
	}

	if detection.IsLikelyFalsePositive(p.ConfidenceScore, s.falsePositiveCutoff) {
		s.logger.Info("tamper event dropped as likely false positive",
			zap.String("installation_id", p.InstallationID.String()),
			zap.String("event_type", string(p.EventType)),
			zap.Float64("confidence", p.ConfidenceScore),
		)
		return nil, nil
	}

	if _, err := s.repo.GetInstallation(ctx, p.InstallationID); err != nil {
		if noRows(err) {
			return nil, fmt.Errorf("installation %s: %w", p.InstallationID, ErrNotFound)
		}
		return nil, err
	}

	severity := detection.ClassifySeverity(p.ConfidenceScore)
	now := time.Now().UTC()
	event := &db.TamperEvent{
		InstallationID:  p.InstallationID,
		EventType:       p.EventType,
		Timestamp:       now,
		Severity:        severity,
		ConfidenceScore: p.ConfidenceScore,
		Description:     p.Description,
		RawSensorData:   p.RawSensorData,
		Status:          db.StatusNew,
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.InsertTamperEventTx(ctx, tx, event); err != nil {
		return nil, err
	}
	if err := s.repo.SetInstallationTamperTx(ctx, tx, p.InstallationID, true, now); err != nil {
		return nil, err
	}
	details := fmt.Sprintf("Tamper event created: %s with severity %s", event.EventType, event.Severity)
	if err := s.audit.RecordTx(ctx, tx, p.InstallationID, db.ActivityAlertGenerated, details, SystemActor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("tamper event created",
		zap.String("event_id", event.ID.String()),
		zap.String("installation_id", p.InstallationID.String()),
		zap.String("event_type", string(event.EventType)),
		zap.String("severity", string(event.Severity)),
		zap.Float64("confidence", event.ConfidenceScore),
	)

	return event, nil
}

// Get retrieves a tamper event by ID.
func (s *EventService) Get(ctx context.Context, id uuid.UUID) (*db.TamperEvent, error) {
	event, err := s.repo.GetTamperEvent(ctx, id)
	if err != nil {
		if noRows(err) {
			return nil, fmt.Errorf("tamper event %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return event, nil
}

// Acknowledge moves an event from NEW to ACKNOWLEDGED.
func (s *EventService) Acknowledge(ctx context.Context, id uuid.UUID, actor string) (*db.TamperEvent, error) {
	return s.UpdateStatus(ctx, id, db.StatusAcknowledged, actor, nil)
}

// Resolve moves an event to RESOLVED with resolution metadata.
func (s *EventService) Resolve(ctx context.Context, id uuid.UUID, actor string, notes *string) (*db.TamperEvent, error) {
	return s.UpdateStatus(ctx, id, db.StatusResolved, actor, notes)
}

// UpdateStatus transitions an event's status. Transitioning to RESOLVED also
// stamps the resolution metadata and recomputes the installation's aggregate
// tamper flag: the flag clears only when no unresolved events remain. The
// recount and the flag write happen inside the same transaction, under the
// installation's stripe, so concurrent resolutions or a concurrent create
// cannot interleave between them.
func (s *EventService) UpdateStatus(ctx context.Context, id uuid.UUID, next db.TamperEventStatus, actor string, notes *string) (*db.TamperEvent, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if next == db.StatusResolved {
		s.locks.Lock(existing.InstallationID)
		defer s.locks.Unlock(existing.InstallationID)
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	event, err := s.repo.GetTamperEventForUpdateTx(ctx, tx, id)
	if err != nil {
		if noRows(err) {
			return nil, fmt.Errorf("tamper event %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	if !event.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, event.Status, next)
	}

	now := time.Now().UTC()
	event.Status = next
	activity := db.ActivityAlertAcknowledged
	if next == db.StatusResolved {
		activity = db.ActivityAlertResolved
		event.Resolved = true
		event.ResolvedAt = &now
		event.ResolvedBy = &actor
		event.ResolutionNotes = notes
	}

	if err := s.repo.UpdateTamperEventStatusTx(ctx, tx, event); err != nil {
		return nil, err
	}

	if next == db.StatusResolved {
		remaining, err := s.repo.CountUnresolvedByInstallationTx(ctx, tx, event.InstallationID)
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			if err := s.repo.SetInstallationTamperTx(ctx, tx, event.InstallationID, false, now); err != nil {
				return nil, err
			}
		}
	}

	details := fmt.Sprintf("Tamper event status updated to: %s", next)
	if err := s.audit.RecordTx(ctx, tx, event.InstallationID, activity, details, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("tamper event status updated",
		zap.String("event_id", id.String()),
		zap.String("status", string(next)),
		zap.String("actor", actor),
	)

	return event, nil
}

// ListByInstallation retrieves events for an installation, newest first.
func (s *EventService) ListByInstallation(ctx context.Context, installationID uuid.UUID, limit int) ([]db.TamperEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListEventsByInstallation(ctx, installationID, limit)
}

// ListUnresolved retrieves unresolved events, optionally filtered by
// severity.
func (s *EventService) ListUnresolved(ctx context.Context, severities []db.TamperSeverity) ([]db.TamperEvent, error) {
	return s.repo.ListUnresolvedEvents(ctx, severities)
}

// ListByTimeRange retrieves events for an installation within a time range.
func (s *EventService) ListByTimeRange(ctx context.Context, installationID uuid.UUID, start, end time.Time) ([]db.TamperEvent, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: time range end precedes start", ErrInvalidArgument)
	}
	return s.repo.ListEventsByTimeRange(ctx, installationID, start, end)
}
