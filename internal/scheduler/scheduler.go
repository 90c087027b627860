package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/config"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/mq"
	"github.com/solarops/tamper-detection-worker/internal/service"
	"go.uber.org/zap"
)

// Repository is the storage surface the scheduler depends on.
type Repository interface {
	ListInstallations(ctx context.Context) ([]db.Installation, error)
	ListUnresolvedOlderThan(ctx context.Context, cutoff time.Time, severities []db.TamperSeverity) ([]db.TamperEvent, error)
}

// Detector is the monitoring surface the sweeps drive.
type Detector interface {
	IsMonitoring(ctx context.Context, installationID uuid.UUID) (bool, error)
	StartMonitoring(ctx context.Context, installationID uuid.UUID) error
	StopMonitoring(ctx context.Context, installationID uuid.UUID) error
	RunDiagnostics(ctx context.Context, installationID uuid.UUID) error
}

// ConfigProvider resolves the alert config used for escalation fan-out.
type ConfigProvider interface {
	GetOrCreateDefault(ctx context.Context, installationID uuid.UUID) (*db.AlertConfig, error)
}

// AuditRecorder appends security log entries for sweep actions.
type AuditRecorder interface {
	Record(ctx context.Context, installationID uuid.UUID, activity db.ActivityType, details, actor string) error
}

// AlertPublisher delivers escalation alerts to the notification exchange.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, msg mq.AlertMessage, routingKey string) error
}

// Scheduler runs the periodic background sweeps: escalation of stale
// unresolved high-severity events, reconciliation of monitoring status
// against installation status, and the daily diagnostics pass over monitored
// installations.
type Scheduler struct {
	repo            Repository
	detector        Detector
	configs         ConfigProvider
	audit           AuditRecorder
	publisher       AlertPublisher
	alertRoutingKey string
	cfg             config.SchedulerConfig
	logger          *zap.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	repo Repository,
	detector Detector,
	configs ConfigProvider,
	audit AuditRecorder,
	publisher AlertPublisher,
	alertRoutingKey string,
	cfg config.SchedulerConfig,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		repo:            repo,
		detector:        detector,
		configs:         configs,
		audit:           audit,
		publisher:       publisher,
		alertRoutingKey: alertRoutingKey,
		cfg:             cfg,
		logger:          logger,
	}
}

// Start launches the sweep goroutines. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx, time.Duration(s.cfg.EscalationIntervalMinutes)*time.Minute, s.escalateStaleEvents)
	go s.loop(ctx, time.Duration(s.cfg.ReconciliationIntervalMinutes)*time.Minute, s.reconcileMonitoring)
	go s.loop(ctx, time.Duration(s.cfg.DiagnosticsIntervalMinutes)*time.Minute, s.runDiagnostics)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}

// escalateStaleEvents re-alerts on unresolved HIGH and CRITICAL events older
// than the configured escalation age.
func (s *Scheduler) escalateStaleEvents(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-time.Duration(s.cfg.EscalationAgeMinutes) * time.Minute)

	events, err := s.repo.ListUnresolvedOlderThan(ctx, cutoff,
		[]db.TamperSeverity{db.SeverityHigh, db.SeverityCritical})
	if err != nil {
		s.logger.Error("escalation sweep failed to list stale events", zap.Error(err))
		return
	}

	s.logger.Info("escalation sweep", zap.Int("stale_events", len(events)))

	for _, event := range events {
		details := fmt.Sprintf("ESCALATION: Unresolved %s tamper event from %s - %s",
			event.Severity, event.Timestamp.Format(time.RFC3339), event.Description)
		if err := s.audit.Record(ctx, event.InstallationID, db.ActivityAlertGenerated, details, service.SystemActor); err != nil {
			s.logger.Error("failed to record escalation", zap.Error(err),
				zap.String("event_id", event.ID.String()))
			continue
		}

		s.publishEscalation(ctx, event)
	}
}

func (s *Scheduler) publishEscalation(ctx context.Context, event db.TamperEvent) {
	cfg, err := s.configs.GetOrCreateDefault(ctx, event.InstallationID)
	if err != nil {
		s.logger.Error("failed to load alert config for escalation", zap.Error(err),
			zap.String("installation_id", event.InstallationID.String()))
		return
	}

	for _, channel := range cfg.NotificationChannels {
		msg := mq.AlertMessage{
			EventID:         event.ID.String(),
			InstallationID:  event.InstallationID.String(),
			EventType:       string(event.EventType),
			Severity:        string(event.Severity),
			ConfidenceScore: event.ConfidenceScore,
			Description:     event.Description,
			Channel:         string(channel),
			ResponseType:    string(db.ResponseAdminAlert),
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		}
		routingKey := fmt.Sprintf("%s.%s", s.alertRoutingKey, strings.ToLower(string(channel)))
		if err := s.publisher.PublishAlert(ctx, msg, routingKey); err != nil {
			s.logger.Error("failed to publish escalation alert", zap.Error(err),
				zap.String("event_id", event.ID.String()),
				zap.String("channel", string(channel)))
		}
	}
}

// reconcileMonitoring starts monitoring for ACTIVE installations that are not
// monitored and stops it for installations that are no longer ACTIVE.
func (s *Scheduler) reconcileMonitoring(ctx context.Context) {
	installations, err := s.repo.ListInstallations(ctx)
	if err != nil {
		s.logger.Error("reconciliation sweep failed to list installations", zap.Error(err))
		return
	}

	for _, installation := range installations {
		shouldMonitor := installation.Status == db.InstallationActive

		monitored, err := s.detector.IsMonitoring(ctx, installation.ID)
		if err != nil {
			s.logger.Error("failed to read monitoring status", zap.Error(err),
				zap.String("installation_id", installation.ID.String()))
			continue
		}

		switch {
		case shouldMonitor && !monitored:
			if err := s.detector.StartMonitoring(ctx, installation.ID); err != nil {
				s.logger.Error("failed to start monitoring", zap.Error(err),
					zap.String("installation_id", installation.ID.String()))
			}
		case !shouldMonitor && monitored:
			if err := s.detector.StopMonitoring(ctx, installation.ID); err != nil {
				s.logger.Error("failed to stop monitoring", zap.Error(err),
					zap.String("installation_id", installation.ID.String()))
			}
		}
	}
}

// runDiagnostics executes the diagnostics pass over every monitored
// installation.
func (s *Scheduler) runDiagnostics(ctx context.Context) {
	installations, err := s.repo.ListInstallations(ctx)
	if err != nil {
		s.logger.Error("diagnostics sweep failed to list installations", zap.Error(err))
		return
	}

	var ran int
	for _, installation := range installations {
		monitored, err := s.detector.IsMonitoring(ctx, installation.ID)
		if err != nil {
			s.logger.Error("failed to read monitoring status", zap.Error(err),
				zap.String("installation_id", installation.ID.String()))
			continue
		}
		if !monitored {
			continue
		}

		if err := s.detector.RunDiagnostics(ctx, installation.ID); err != nil {
			s.logger.Error("diagnostics failed", zap.Error(err),
				zap.String("installation_id", installation.ID.String()))
			continue
		}
		ran++
	}

	s.logger.Info("diagnostics sweep completed", zap.Int("installations", ran))
}
