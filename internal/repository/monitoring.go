package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/solarops/tamper-detection-worker/internal/db"
)

// IsMonitoring reports whether monitoring is active for an installation.
// Installations without a status row default to false.
func (r *Repository) IsMonitoring(ctx context.Context, installationID uuid.UUID) (bool, error) {
	query := `
		SELECT monitoring
		FROM monitoring_statuses
		WHERE installation_id = $1
	`

	var monitoring bool
	err := r.pool.QueryRow(ctx, query, installationID).Scan(&monitoring)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query monitoring status: %w", err)
	}

	return monitoring, nil
}

// UpsertMonitoringStatus sets the monitoring flag for an installation,
// creating the status row if needed
func (r *Repository) UpsertMonitoringStatus(ctx context.Context, installationID uuid.UUID, monitoring bool) (*db.MonitoringStatus, error) {
	query := `
		INSERT INTO monitoring_statuses (installation_id, monitoring, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (installation_id)
		DO UPDATE SET monitoring = EXCLUDED.monitoring, updated_at = now()
		RETURNING id, installation_id, monitoring, updated_at
	`

	var status db.MonitoringStatus
	err := r.pool.QueryRow(ctx, query, installationID, monitoring).Scan(
		&status.ID,
		&status.InstallationID,
		&status.Monitoring,
		&status.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert monitoring status: %w", err)
	}

	return &status, nil
}
