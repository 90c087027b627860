package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/solarops/tamper-detection-worker/internal/db"
)

const securityLogInsert = `
	INSERT INTO security_logs (
		installation_id, log_timestamp, activity_type, details, ip_address,
		location, user_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
`

// InsertSecurityLog appends a security log entry
func (r *Repository) InsertSecurityLog(ctx context.Context, entry *db.SecurityLog) error {
	err := r.pool.QueryRow(ctx, securityLogInsert,
		entry.InstallationID,
		entry.Timestamp,
		entry.ActivityType,
		entry.Details,
		entry.IPAddress,
		entry.Location,
		entry.UserID,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert security log: %w", err)
	}

	return nil
}

// InsertSecurityLogTx appends a security log entry within a transaction
func (r *Repository) InsertSecurityLogTx(ctx context.Context, tx Tx, entry *db.SecurityLog) error {
	err := tx.QueryRow(ctx, securityLogInsert,
		entry.InstallationID,
		entry.Timestamp,
		entry.ActivityType,
		entry.Details,
		entry.IPAddress,
		entry.Location,
		entry.UserID,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert security log: %w", err)
	}

	return nil
}

// ListSecurityLogsByInstallation retrieves security logs for an installation,
// newest first
func (r *Repository) ListSecurityLogsByInstallation(ctx context.Context, installationID uuid.UUID, limit int) ([]db.SecurityLog, error) {
	query := `
		SELECT id, installation_id, log_timestamp, activity_type, details,
			ip_address, location, user_id
		FROM security_logs
		WHERE installation_id = $1
		ORDER BY log_timestamp DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, installationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security logs: %w", err)
	}
	defer rows.Close()

	var entries []db.SecurityLog
	for rows.Next() {
		var entry db.SecurityLog
		if err := rows.Scan(
			&entry.ID,
			&entry.InstallationID,
			&entry.Timestamp,
			&entry.ActivityType,
			&entry.Details,
			&entry.IPAddress,
			&entry.Location,
			&entry.UserID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan security log: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
