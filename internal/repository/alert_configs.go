package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
)

const alertConfigColumns = `
	id, installation_id, alert_level, notification_channels, auto_response_enabled,
	physical_movement_threshold, voltage_fluctuation_threshold,
	connection_interruption_threshold, sampling_rate_seconds, created_at, updated_at
`

func scanAlertConfig(row interface{ Scan(...any) error }, config *db.AlertConfig) error {
	var channels []string
	if err := row.Scan(
		&config.ID,
		&config.InstallationID,
		&config.AlertLevel,
		&channels,
		&config.AutoResponseEnabled,
		&config.PhysicalMovementThreshold,
		&config.VoltageFluctuationThreshold,
		&config.ConnectionInterruptionThreshold,
		&config.SamplingRateSeconds,
		&config.CreatedAt,
		&config.UpdatedAt,
	); err != nil {
		return err
	}

	config.NotificationChannels = make([]db.NotificationChannel, len(channels))
	for i, c := range channels {
		config.NotificationChannels[i] = db.NotificationChannel(c)
	}
	return nil
}

func channelNames(channels []db.NotificationChannel) []string {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = string(c)
	}
	return names
}

// GetAlertConfigByInstallation retrieves the alert config for an installation
func (r *Repository) GetAlertConfigByInstallation(ctx context.Context, installationID uuid.UUID) (*db.AlertConfig, error) {
	query := `SELECT ` + alertConfigColumns + ` FROM alert_configs WHERE installation_id = $1`

	var config db.AlertConfig
	if err := scanAlertConfig(r.pool.QueryRow(ctx, query, installationID), &config); err != nil {
		return nil, fmt.Errorf("failed to query alert config: %w", err)
	}

	return &config, nil
}

// InsertAlertConfig inserts an alert config and fills in the generated ID and
// timestamps
func (r *Repository) InsertAlertConfig(ctx context.Context, config *db.AlertConfig) error {
	query := `
		INSERT INTO alert_configs (
			installation_id, alert_level, notification_channels, auto_response_enabled,
			physical_movement_threshold, voltage_fluctuation_threshold,
			connection_interruption_threshold, sampling_rate_seconds
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (installation_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		config.InstallationID,
		config.AlertLevel,
		channelNames(config.NotificationChannels),
		config.AutoResponseEnabled,
		config.PhysicalMovementThreshold,
		config.VoltageFluctuationThreshold,
		config.ConnectionInterruptionThreshold,
		config.SamplingRateSeconds,
	).Scan(&config.ID, &config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert config: %w", err)
	}

	return nil
}

// UpdateAlertConfig overwrites the mutable fields of an installation's alert
// config
func (r *Repository) UpdateAlertConfig(ctx context.Context, config *db.AlertConfig) error {
	query := `
		UPDATE alert_configs
		SET alert_level = $1, notification_channels = $2, auto_response_enabled = $3,
			physical_movement_threshold = $4, voltage_fluctuation_threshold = $5,
			connection_interruption_threshold = $6, sampling_rate_seconds = $7,
			updated_at = now()
		WHERE installation_id = $8
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		config.AlertLevel,
		channelNames(config.NotificationChannels),
		config.AutoResponseEnabled,
		config.PhysicalMovementThreshold,
		config.VoltageFluctuationThreshold,
		config.ConnectionInterruptionThreshold,
		config.SamplingRateSeconds,
		config.InstallationID,
	).Scan(&config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update alert config: %w", err)
	}

	return nil
}
