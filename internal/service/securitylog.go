package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/repository"
	"go.uber.org/zap"
)

// SystemActor is the identity recorded for actions the worker takes on its
// own.
const SystemActor = "SYSTEM"

// SecurityLogRepository is the storage surface the security log service
// depends on.
type SecurityLogRepository interface {
	InsertSecurityLog(ctx context.Context, entry *db.SecurityLog) error
	InsertSecurityLogTx(ctx context.Context, tx repository.Tx, entry *db.SecurityLog) error
	ListSecurityLogsByInstallation(ctx context.Context, installationID uuid.UUID, limit int) ([]db.SecurityLog, error)
}

// SecurityLogService appends and reads the per-installation audit trail.
type SecurityLogService struct {
	repo   SecurityLogRepository
	logger *zap.Logger
}

// NewSecurityLogService creates a new security log service
func NewSecurityLogService(repo SecurityLogRepository, logger *zap.Logger) *SecurityLogService {
	return &SecurityLogService{repo: repo, logger: logger}
}

// Record appends a security log entry for an installation.
func (s *SecurityLogService) Record(ctx context.Context, installationID uuid.UUID, activity db.ActivityType, details, actor string) error {
	entry := newEntry(installationID, activity, details, actor)
	if err := s.repo.InsertSecurityLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to record security log: %w", err)
	}
	return nil
}

// RecordTx appends a security log entry within a transaction, so the entry
// commits or rolls back together with the mutation it describes.
func (s *SecurityLogService) RecordTx(ctx context.Context, tx repository.Tx, installationID uuid.UUID, activity db.ActivityType, details, actor string) error {
	entry := newEntry(installationID, activity, details, actor)
	if err := s.repo.InsertSecurityLogTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to record security log: %w", err)
	}
	return nil
}

// ListByInstallation retrieves security log entries for an installation,
// newest first.
func (s *SecurityLogService) ListByInstallation(ctx context.Context, installationID uuid.UUID, limit int) ([]db.SecurityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListSecurityLogsByInstallation(ctx, installationID, limit)
}

func newEntry(installationID uuid.UUID, activity db.ActivityType, details, actor string) *db.SecurityLog {
	if actor == "" {
		actor = SystemActor
	}
	return &db.SecurityLog{
		InstallationID: installationID,
		Timestamp:      time.Now().UTC(),
		ActivityType:   activity,
		Details:        details,
		UserID:         actor,
	}
}
