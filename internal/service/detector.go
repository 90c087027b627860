package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/detection"
	"github.com/solarops/tamper-detection-worker/internal/keymutex"
	"github.com/solarops/tamper-detection-worker/internal/logging"
	"github.com/solarops/tamper-detection-worker/internal/response"
	"go.uber.org/zap"
)

// DetectionRepository is the storage surface the detection service depends
// on.
type DetectionRepository interface {
	GetInstallation(ctx context.Context, id uuid.UUID) (*db.Installation, error)
	IsMonitoring(ctx context.Context, installationID uuid.UUID) (bool, error)
	UpsertMonitoringStatus(ctx context.Context, installationID uuid.UUID, monitoring bool) (*db.MonitoringStatus, error)
}

// DetectionService is the entry point of the tamper detection pipeline: it
// owns the monitoring toggle, the last-known-value comparison and the
// hand-off of created events to the response dispatcher.
type DetectionService struct {
	repo       DetectionRepository
	events     *EventService
	configs    *AlertConfigService
	audit      *SecurityLogService
	cache      *detection.Cache
	locks      *keymutex.KeyedMutex
	dispatcher *response.Dispatcher
	logger     *zap.Logger
}

// NewDetectionService creates a new detection service
func NewDetectionService(
	repo DetectionRepository,
	events *EventService,
	configs *AlertConfigService,
	audit *SecurityLogService,
	cache *detection.Cache,
	locks *keymutex.KeyedMutex,
	dispatcher *response.Dispatcher,
	logger *zap.Logger,
) *DetectionService {
	return &DetectionService{
		repo:       repo,
		events:     events,
		configs:    configs,
		audit:      audit,
		cache:      cache,
		locks:      locks,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// StartMonitoring activates tamper monitoring for an installation.
// Idempotent: repeated calls keep existing cache state and config.
func (s *DetectionService) StartMonitoring(ctx context.Context, installationID uuid.UUID) error {
	if err := s.requireInstallation(ctx, installationID); err != nil {
		return err
	}

	s.cache.Ensure(installationID)

	if _, err := s.repo.UpsertMonitoringStatus(ctx, installationID, true); err != nil {
		return err
	}

	if _, err := s.configs.GetOrCreateDefault(ctx, installationID); err != nil {
		return err
	}

	logging.WithInstallation(s.logger, installationID).Info("monitoring started")
	return s.audit.Record(ctx, installationID, db.ActivitySystemDiagnostic,
		"Tamper detection monitoring started", SystemActor)
}

// StopMonitoring deactivates tamper monitoring for an installation. The
// last-known-value cache entry is kept, so resuming compares against the
// values observed before the pause.
func (s *DetectionService) StopMonitoring(ctx context.Context, installationID uuid.UUID) error {
	if err := s.requireInstallation(ctx, installationID); err != nil {
		return err
	}

	if _, err := s.repo.UpsertMonitoringStatus(ctx, installationID, false); err != nil {
		return err
	}

	logging.WithInstallation(s.logger, installationID).Info("monitoring stopped")
	return s.audit.Record(ctx, installationID, db.ActivitySystemDiagnostic,
		"Tamper detection monitoring stopped", SystemActor)
}

// IsMonitoring reports whether monitoring is active for an installation.
func (s *DetectionService) IsMonitoring(ctx context.Context, installationID uuid.UUID) (bool, error) {
	return s.repo.IsMonitoring(ctx, installationID)
}

// ProcessReading runs one sensor reading through the detection pipeline.
// Returns (nil, nil) when monitoring is off, when the reading stays within
// its threshold, or when the candidate is dropped as a false positive.
//
// The comparison against the last known values, the cache update and the
// event creation run under the installation's stripe, so two concurrent
// readings for the same installation never compare against the same stale
// value. Readings for different installations proceed in parallel.
func (s *DetectionService) ProcessReading(ctx context.Context, installationID uuid.UUID, reading detection.Reading) (*db.TamperEvent, error) {
	if !detection.Supported(reading.EventType) {
		return nil, fmt.Errorf("%w: event type %q has no sensor evaluation", ErrInvalidArgument, reading.EventType)
	}

	monitoring, err := s.IsMonitoring(ctx, installationID)
	if err != nil {
		return nil, err
	}
	if !monitoring {
		// Deliberate freeze: no cache update either, so state is unchanged
		// while monitoring is paused.
		logging.WithInstallation(s.logger, installationID).Debug("monitoring disabled, reading ignored")
		return nil, nil
	}

	threshold, err := s.configs.ThresholdFor(ctx, installationID, reading.EventType)
	if err != nil {
		return nil, err
	}

	event, err := s.evaluateLocked(ctx, installationID, reading, threshold)
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.dispatcher.Enqueue(event.ID)
	}
	return event, nil
}

func (s *DetectionService) evaluateLocked(ctx context.Context, installationID uuid.UUID, reading detection.Reading, threshold float64) (*db.TamperEvent, error) {
	s.locks.Lock(installationID)
	defer s.locks.Unlock(installationID)

	last := s.cache.Get(installationID)
	eval, _ := detection.Evaluate(reading, last, threshold)

	// Cache always advances, triggered or not, so the next comparison uses
	// the latest observed value.
	s.cache.Put(installationID, detection.Apply(reading, last))

	if !eval.Triggered {
		return nil, nil
	}

	var raw *string
	if reading.RawData != "" {
		raw = &reading.RawData
	}

	return s.events.Create(ctx, CreateEventParams{
		InstallationID:  installationID,
		EventType:       reading.EventType,
		ConfidenceScore: eval.Confidence,
		Description:     eval.Description,
		RawSensorData:   raw,
	})
}

// ReportTampering records a tamper signal that carries its own confidence,
// for event types without a sensor evaluation rule. Monitoring must be
// active for the installation.
func (s *DetectionService) ReportTampering(ctx context.Context, installationID uuid.UUID, eventType db.TamperEventType, confidence float64, description string, rawData *string) (*db.TamperEvent, error) {
	monitoring, err := s.IsMonitoring(ctx, installationID)
	if err != nil {
		return nil, err
	}
	if !monitoring {
		return nil, nil
	}

	s.locks.Lock(installationID)
	event, err := s.events.Create(ctx, CreateEventParams{
		InstallationID:  installationID,
		EventType:       eventType,
		ConfidenceScore: confidence,
		Description:     description,
		RawSensorData:   rawData,
	})
	s.locks.Unlock(installationID)
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.dispatcher.Enqueue(event.ID)
	}
	return event, nil
}

// AdjustSensitivity updates one event type's threshold, leaving the rest of
// the alert config untouched, and records a sensitivity-change audit entry.
func (s *DetectionService) AdjustSensitivity(ctx context.Context, installationID uuid.UUID, eventType db.TamperEventType, newThreshold float64, actor string) error {
	if newThreshold < 0 {
		return fmt.Errorf("%w: threshold must be non-negative, got %v", ErrInvalidArgument, newThreshold)
	}

	config, err := s.configs.GetOrCreateDefault(ctx, installationID)
	if err != nil {
		return err
	}

	update := AlertConfigUpdate{
		AlertLevel:                      config.AlertLevel,
		NotificationChannels:            config.NotificationChannels,
		AutoResponseEnabled:             config.AutoResponseEnabled,
		PhysicalMovementThreshold:       config.PhysicalMovementThreshold,
		VoltageFluctuationThreshold:     config.VoltageFluctuationThreshold,
		ConnectionInterruptionThreshold: config.ConnectionInterruptionThreshold,
		SamplingRateSeconds:             config.SamplingRateSeconds,
	}

	switch eventType {
	case db.EventPhysicalMovement:
		update.PhysicalMovementThreshold = newThreshold
	case db.EventVoltageFluctuation:
		update.VoltageFluctuationThreshold = newThreshold
	case db.EventConnectionTampering:
		update.ConnectionInterruptionThreshold = newThreshold
	default:
		return fmt.Errorf("%w: event type %q has no configurable threshold", ErrInvalidArgument, eventType)
	}

	if _, err := s.configs.Update(ctx, installationID, update, actor); err != nil {
		return err
	}

	details := fmt.Sprintf("Tamper detection sensitivity adjusted for %s to %v", eventType, newThreshold)
	return s.audit.Record(ctx, installationID, db.ActivitySensitivityChange, details, actor)
}

// RunDiagnostics records a diagnostic pass for an installation.
func (s *DetectionService) RunDiagnostics(ctx context.Context, installationID uuid.UUID) error {
	if err := s.requireInstallation(ctx, installationID); err != nil {
		return err
	}

	return s.audit.Record(ctx, installationID, db.ActivitySystemDiagnostic,
		"Tamper detection diagnostics executed", SystemActor)
}

func (s *DetectionService) requireInstallation(ctx context.Context, installationID uuid.UUID) error {
	if _, err := s.repo.GetInstallation(ctx, installationID); err != nil {
		if noRows(err) {
			return fmt.Errorf("installation %s: %w", installationID, ErrNotFound)
		}
		return err
	}
	return nil
}
