package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"go.uber.org/zap"
)

// Default alert configuration synthesized on first access.
const (
	defaultMovementThreshold   = 0.75
	defaultVoltageThreshold    = 0.50
	defaultConnectionThreshold = 0.80
	defaultSamplingRateSeconds = 60

	// Threshold applied to event types without a dedicated config field.
	fallbackThreshold = 0.5
)

// AlertConfigUpdate carries the mutable alert config fields. All fields are
// overwritten atomically on update.
type AlertConfigUpdate struct {
	AlertLevel                      db.AlertLevel            `validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	NotificationChannels            []db.NotificationChannel `validate:"required,min=1,dive,oneof=EMAIL SMS PUSH IN_APP"`
	AutoResponseEnabled             bool
	PhysicalMovementThreshold       float64 `validate:"gte=0"`
	VoltageFluctuationThreshold     float64 `validate:"gte=0"`
	ConnectionInterruptionThreshold float64 `validate:"gte=0"`
	SamplingRateSeconds             int     `validate:"gt=0"`
}

// AlertConfigRepository is the storage surface the alert config service
// depends on.
type AlertConfigRepository interface {
	GetInstallation(ctx context.Context, id uuid.UUID) (*db.Installation, error)
	GetAlertConfigByInstallation(ctx context.Context, installationID uuid.UUID) (*db.AlertConfig, error)
	InsertAlertConfig(ctx context.Context, config *db.AlertConfig) error
	UpdateAlertConfig(ctx context.Context, config *db.AlertConfig) error
}

// AlertConfigService owns per-installation alert configuration.
type AlertConfigService struct {
	repo     AlertConfigRepository
	audit    *SecurityLogService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAlertConfigService creates a new alert config service
func NewAlertConfigService(repo AlertConfigRepository, audit *SecurityLogService, logger *zap.Logger) *AlertConfigService {
	return &AlertConfigService{
		repo:     repo,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetOrCreateDefault returns the installation's alert config, synthesizing
// and persisting the default one on first access.
func (s *AlertConfigService) GetOrCreateDefault(ctx context.Context, installationID uuid.UUID) (*db.AlertConfig, error) {
	config, err := s.repo.GetAlertConfigByInstallation(ctx, installationID)
	if err == nil {
		return config, nil
	}
	if !noRows(err) {
		return nil, err
	}

	if _, err := s.repo.GetInstallation(ctx, installationID); err != nil {
		if noRows(err) {
			return nil, fmt.Errorf("installation %s: %w", installationID, ErrNotFound)
		}
		return nil, err
	}

	config = defaultAlertConfig(installationID)
	if err := s.repo.InsertAlertConfig(ctx, config); err != nil {
		// A concurrent first access may have inserted it already; the insert
		// is a no-op then and returns no row.
		if noRows(err) {
			return s.repo.GetAlertConfigByInstallation(ctx, installationID)
		}
		return nil, err
	}

	s.logger.Info("default alert config created",
		zap.String("installation_id", installationID.String()))

	if err := s.audit.Record(ctx, installationID, db.ActivityConfigurationChange,
		"Default alert configuration created", SystemActor); err != nil {
		return nil, err
	}

	return config, nil
}

// Update overwrites all mutable alert config fields atomically and records a
// configuration-change audit entry.
func (s *AlertConfigService) Update(ctx context.Context, installationID uuid.UUID, update AlertConfigUpdate, actor string) (*db.AlertConfig, error) {
	if err := s.validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	config, err := s.GetOrCreateDefault(ctx, installationID)
	if err != nil {
		return nil, err
	}

	config.AlertLevel = update.AlertLevel
	config.NotificationChannels = update.NotificationChannels
	config.AutoResponseEnabled = update.AutoResponseEnabled
	config.PhysicalMovementThreshold = update.PhysicalMovementThreshold
	config.VoltageFluctuationThreshold = update.VoltageFluctuationThreshold
	config.ConnectionInterruptionThreshold = update.ConnectionInterruptionThreshold
	config.SamplingRateSeconds = update.SamplingRateSeconds

	if err := s.repo.UpdateAlertConfig(ctx, config); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("Alert configuration updated: Alert level=%s, Auto response=%t",
		config.AlertLevel, config.AutoResponseEnabled)
	if err := s.audit.Record(ctx, installationID, db.ActivityConfigurationChange, details, actor); err != nil {
		return nil, err
	}

	return config, nil
}

// ThresholdFor resolves the configured threshold for an event type. Event
// types without a dedicated field share a fixed fallback.
func (s *AlertConfigService) ThresholdFor(ctx context.Context, installationID uuid.UUID, eventType db.TamperEventType) (float64, error) {
	config, err := s.GetOrCreateDefault(ctx, installationID)
	if err != nil {
		return 0, err
	}

	switch eventType {
	case db.EventPhysicalMovement:
		return config.PhysicalMovementThreshold, nil
	case db.EventVoltageFluctuation:
		return config.VoltageFluctuationThreshold, nil
	case db.EventConnectionTampering:
		return config.ConnectionInterruptionThreshold, nil
	default:
		return fallbackThreshold, nil
	}
}

// IsAutoResponseEnabled reports whether automatic responses are enabled for
// an installation. Installations without a config default to enabled.
func (s *AlertConfigService) IsAutoResponseEnabled(ctx context.Context, installationID uuid.UUID) (bool, error) {
	config, err := s.repo.GetAlertConfigByInstallation(ctx, installationID)
	if err != nil {
		if noRows(err) {
			return true, nil
		}
		return false, err
	}
	return config.AutoResponseEnabled, nil
}

// SamplingRateSeconds returns the configured sensor sampling interval.
func (s *AlertConfigService) SamplingRateSeconds(ctx context.Context, installationID uuid.UUID) (int, error) {
	config, err := s.repo.GetAlertConfigByInstallation(ctx, installationID)
	if err != nil {
		if noRows(err) {
			return defaultSamplingRateSeconds, nil
		}
		return 0, err
	}
	return config.SamplingRateSeconds, nil
}

func defaultAlertConfig(installationID uuid.UUID) *db.AlertConfig {
	return &db.AlertConfig{
		InstallationID:                  installationID,
		AlertLevel:                      db.AlertLevelMedium,
		NotificationChannels:            []db.NotificationChannel{db.ChannelEmail, db.ChannelInApp},
		AutoResponseEnabled:             true,
		PhysicalMovementThreshold:       defaultMovementThreshold,
		VoltageFluctuationThreshold:     defaultVoltageThreshold,
		ConnectionInterruptionThreshold: defaultConnectionThreshold,
		SamplingRateSeconds:             defaultSamplingRateSeconds,
	}
}
